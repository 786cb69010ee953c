package console

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/reconcile"
	"github.com/laudoscribe/laudoscribe/internal/session"
	"github.com/laudoscribe/laudoscribe/internal/store"
	"github.com/laudoscribe/laudoscribe/internal/transcription"
)

// Prometheus collectors register globally, so the package shares one
// bundle across tests.
var testMetrics = metrics.NewMetrics()

type fakeSession struct {
	handlers      map[session.EventType]map[uint64]session.Handler
	interceptors  map[uint64]session.Interceptor
	toolResponses [][]session.ToolResponse
	nextID        uint64
	mu            sync.Mutex
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		handlers:     make(map[session.EventType]map[uint64]session.Handler),
		interceptors: make(map[uint64]session.Interceptor),
	}
}

func (f *fakeSession) On(eventType session.EventType, handler session.Handler) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	if f.handlers[eventType] == nil {
		f.handlers[eventType] = make(map[uint64]session.Handler)
	}
	f.handlers[eventType][f.nextID] = handler
	return f.nextID
}

func (f *fakeSession) Off(eventType session.EventType, id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers[eventType], id)
}

func (f *fakeSession) RegisterSendInterceptor(fn session.Interceptor) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.interceptors[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.interceptors, id)
	}
}

func (f *fakeSession) SendToolResponse(responses []session.ToolResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolResponses = append(f.toolResponses, responses)
	return nil
}

func (f *fakeSession) emit(ev session.ServerEvent) {
	f.mu.Lock()
	var handlers []session.Handler
	for _, h := range f.handlers[ev.Type] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeSession) send(chunks []session.Chunk) {
	f.mu.Lock()
	var interceptors []session.Interceptor
	for _, fn := range f.interceptors {
		interceptors = append(interceptors, fn)
	}
	f.mu.Unlock()

	for _, fn := range interceptors {
		fn(chunks)
	}
}

type turnRequest struct {
	pcm      []byte
	previous string
}

type fakeTranscriber struct {
	outcome  transcription.Outcome
	requests []turnRequest
	mu       sync.Mutex
}

func (f *fakeTranscriber) TranscribeTurn(_ context.Context, pcm []byte, previous string) transcription.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, turnRequest{pcm: pcm, previous: previous})
	return f.outcome
}

func (f *fakeTranscriber) setOutcome(outcome transcription.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcome = outcome
}

func (f *fakeTranscriber) lastRequest() turnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	console *Console
	session *fakeSession
	trans   *fakeTranscriber
	store   *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := reconcile.NewEngine(reconcile.Config{TypingSuspension: time.Second}, testMetrics, logger)
	fs := newFakeSession()
	ft := &fakeTranscriber{}
	st := store.NewMemoryStore()

	console := NewConsole(Config{
		ReportID:   "report-1",
		UserID:     "user-1",
		SampleRate: 16000,
	}, fs, engine, ft, st, testMetrics, logger)
	console.Start(context.Background())
	t.Cleanup(console.Stop)

	return &fixture{console: console, session: fs, trans: ft, store: st}
}

func TestFullTurnFlow(t *testing.T) {
	fx := newFixture(t)

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	fx.session.send([]session.Chunk{{
		MIMEType: "audio/pcm;rate=16000",
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}})

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "nodulo hepatico"})
	assert.Equal(t, "nodulo hepatico", fx.console.Document())

	fx.session.emit(session.ServerEvent{Type: session.EventContent, Text: "Nódulo hepático."})
	assert.Equal(t, "Nódulo hepático.", fx.console.Document())

	fx.trans.setOutcome(transcription.Outcome{Text: "Nódulo hepático, medindo 2cm."})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	assert.Equal(t, "Nódulo hepático, medindo 2cm.", fx.console.Document())

	// The pipeline received the assembled turn audio
	request := fx.trans.lastRequest()
	assert.Equal(t, pcm, request.pcm)
	assert.Empty(t, request.previous)

	// The finalized turn was persisted with playable audio
	list, err := fx.store.ListTranscriptions(context.Background(), "report-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Nódulo hepático, medindo 2cm.", list[0].Text)
	assert.NotEmpty(t, list[0].AudioData)

	turns := fx.console.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, reconcile.StatusFinal, turns[0].Status)
}

func TestLiveFragmentsAccumulateAcrossEvents(t *testing.T) {
	fx := newFixture(t)

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "opacidade"})
	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: " heterogênea"})

	assert.Equal(t, "opacidade heterogênea", fx.console.Document(),
		"each fragment extends the turn's live text instead of replacing it")

	fx.trans.setOutcome(transcription.Outcome{Text: "Opacidade heterogênea."})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	// The next turn starts from an empty fragment buffer
	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "sem derrame"})
	assert.Equal(t, "Opacidade heterogênea. sem derrame", fx.console.Document())
}

func TestSecondTurnCarriesContextHint(t *testing.T) {
	fx := newFixture(t)

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "primeiro achado"})
	fx.trans.setOutcome(transcription.Outcome{Text: "Primeiro achado."})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "segundo achado"})
	fx.trans.setOutcome(transcription.Outcome{Text: "Segundo achado."})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	request := fx.trans.lastRequest()
	assert.Equal(t, "Primeiro achado.", request.previous)

	// The second turn's live span is replaced in place
	assert.Equal(t, "Primeiro achado. Segundo achado.", fx.console.Document())
}

func TestSilentTurnKeepsInterimTextAndSkipsStore(t *testing.T) {
	fx := newFixture(t)

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "texto provisório"})
	fx.trans.setOutcome(transcription.Outcome{Silent: true})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	assert.Equal(t, "texto provisório", fx.console.Document())

	list, err := fx.store.ListTranscriptions(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFailedTurnMarksTurnFailed(t *testing.T) {
	fx := newFixture(t)

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "laudo parcial"})
	fx.trans.setOutcome(transcription.Outcome{
		Text:   transcription.SentinelErrorText,
		Failed: true,
	})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	assert.Equal(t, "laudo parcial", fx.console.Document())

	turns := fx.console.Turns()
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Failed)
	assert.Equal(t, reconcile.StatusFinal, turns[0].Status)
}

func TestNonAudioChunksAreIgnored(t *testing.T) {
	fx := newFixture(t)

	fx.session.send([]session.Chunk{{MIMEType: "image/jpeg", Data: "AAAA"}})

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "achado"})
	fx.trans.setOutcome(transcription.Outcome{Text: "Achado."})
	fx.session.emit(session.ServerEvent{Type: session.EventTurnComplete})
	fx.console.wg.Wait()

	assert.Empty(t, fx.trans.lastRequest().pcm)
}

func TestToolCallsAreAcknowledged(t *testing.T) {
	fx := newFixture(t)

	fx.session.emit(session.ServerEvent{
		Type:  session.EventToolCall,
		Calls: []session.ToolCall{{ID: "call-1", Name: "render_chart"}},
	})

	require.Len(t, fx.session.toolResponses, 1)
	require.Len(t, fx.session.toolResponses[0], 1)
	assert.Equal(t, "call-1", fx.session.toolResponses[0][0].ID)
	assert.Equal(t, "ok", fx.session.toolResponses[0][0].Response["status"])
}

func TestUserEditFlowsToEngine(t *testing.T) {
	fx := newFixture(t)

	fx.console.UserEdit("Texto digitado à mão", 5)
	assert.Equal(t, "Texto digitado à mão", fx.console.Document())
}

func TestStopUnsubscribes(t *testing.T) {
	fx := newFixture(t)

	fx.console.Stop()

	fx.session.emit(session.ServerEvent{Type: session.EventTranscription, Text: "depois do stop"})
	assert.Empty(t, fx.console.Document())
}
