package console

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/laudoscribe/laudoscribe/internal/audio"
	"github.com/laudoscribe/laudoscribe/internal/export"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/reconcile"
	"github.com/laudoscribe/laudoscribe/internal/session"
	"github.com/laudoscribe/laudoscribe/internal/store"
	"github.com/laudoscribe/laudoscribe/internal/textnorm"
	"github.com/laudoscribe/laudoscribe/internal/transcription"
)

// SessionSurface is the slice of the realtime session the console
// consumes.
type SessionSurface interface {
	On(eventType session.EventType, handler session.Handler) uint64
	Off(eventType session.EventType, id uint64)
	RegisterSendInterceptor(fn session.Interceptor) func()
	SendToolResponse(responses []session.ToolResponse) error
}

// Transcriber runs one turn's audio through the transcription pipeline.
type Transcriber interface {
	TranscribeTurn(ctx context.Context, pcm []byte, previousTranscript string) transcription.Outcome
}

// Config contains console configuration.
type Config struct {
	ReportID      string
	UserID        string
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Console orchestrates one dictation session.
type Console struct {
	cfg         Config
	client      SessionSurface
	engine      *reconcile.Engine
	transcriber Transcriber
	store       store.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger

	accumulator *audio.TurnAccumulator

	// live and refined accumulate the in-progress turn's stream text.
	// Both streams deliver incremental fragments; the engine consumes
	// growing whole-turn snapshots.
	live        strings.Builder
	refined     strings.Builder
	accumulated string
	lastFinal   string
	mu          sync.Mutex

	ctx           context.Context
	cancel        context.CancelFunc
	subscriptions []subscription
	unintercept   func()
	wg            sync.WaitGroup
}

type subscription struct {
	eventType session.EventType
	id        uint64
}

// NewConsole creates a console. Start must be called before any session
// traffic flows.
func NewConsole(cfg Config, client SessionSurface, engine *reconcile.Engine, transcriber Transcriber, st store.Store, m *metrics.Metrics, logger *slog.Logger) *Console {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BitsPerSample <= 0 {
		cfg.BitsPerSample = 16
	}

	return &Console{
		cfg:         cfg,
		client:      client,
		engine:      engine,
		transcriber: transcriber,
		store:       st,
		metrics:     m,
		logger:      logger,
		accumulator: audio.NewTurnAccumulator(),
	}
}

// Start subscribes to the session events and begins observing outbound
// audio.
func (c *Console) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.subscriptions = []subscription{
		{session.EventTranscription, c.client.On(session.EventTranscription, c.onTranscription)},
		{session.EventContent, c.client.On(session.EventContent, c.onContent)},
		{session.EventTurnComplete, c.client.On(session.EventTurnComplete, c.onTurnComplete)},
		{session.EventToolCall, c.client.On(session.EventToolCall, c.onToolCall)},
	}

	c.unintercept = c.client.RegisterSendInterceptor(c.onOutboundAudio)

	c.logger.Info("Console started",
		slog.String("report_id", c.cfg.ReportID),
		slog.Int("sample_rate", c.cfg.SampleRate),
	)
}

// Stop unsubscribes from the session and waits for in-flight
// transcriptions to finish.
func (c *Console) Stop() {
	for _, sub := range c.subscriptions {
		c.client.Off(sub.eventType, sub.id)
	}
	c.subscriptions = nil

	if c.unintercept != nil {
		c.unintercept()
		c.unintercept = nil
	}

	c.wg.Wait()

	if c.cancel != nil {
		c.cancel()
	}

	c.logger.Info("Console stopped")
}

// onOutboundAudio accumulates microphone chunks for the in-flight turn.
func (c *Console) onOutboundAudio(chunks []session.Chunk) {
	for _, chunk := range chunks {
		if !strings.HasPrefix(chunk.MIMEType, "audio/pcm") {
			continue
		}
		c.accumulator.Append(chunk.Data)
	}
}

func (c *Console) onTranscription(ev session.ServerEvent) {
	if ev.Text == "" {
		return
	}
	c.metrics.RecordLiveFragment()

	c.mu.Lock()
	c.live.WriteString(ev.Text)
	live := textnorm.Normalize(c.live.String())
	c.mu.Unlock()

	c.engine.Apply(reconcile.Event{
		Kind:    reconcile.EventLiveTranscript,
		Streams: reconcile.StreamSnapshot{Live: live},
	})
}

func (c *Console) onContent(ev session.ServerEvent) {
	if ev.Text == "" {
		return
	}
	c.metrics.RecordRefineEvent()

	c.mu.Lock()
	c.refined.WriteString(ev.Text)
	refined := textnorm.Normalize(c.refined.String())
	c.mu.Unlock()

	c.engine.Apply(reconcile.Event{
		Kind:    reconcile.EventRefinedContent,
		Streams: reconcile.StreamSnapshot{Refined: refined},
	})
}

func (c *Console) onTurnComplete(session.ServerEvent) {
	c.mu.Lock()
	c.live.Reset()
	c.refined.Reset()
	previous := c.lastFinal
	c.mu.Unlock()

	turnID := c.engine.MarkTurnBoundary()
	pcm := c.accumulator.Flush(c.logger)

	if turnID == 0 {
		c.logger.Debug("Turn boundary without an active turn",
			slog.Int("audio_bytes", len(pcm)),
		)
		return
	}

	c.wg.Add(1)
	go c.finalizeTurn(turnID, pcm, previous)
}

// finalizeTurn runs the transcription pipeline for one completed turn
// and applies its result. Late results only touch their own turn.
func (c *Console) finalizeTurn(turnID uint64, pcm []byte, previous string) {
	defer c.wg.Done()

	started := time.Now()
	outcome := c.transcriber.TranscribeTurn(c.ctx, pcm, previous)
	elapsed := time.Since(started).Seconds()

	c.metrics.RecordTurnFinalized(len(pcm), outcome.Silent)

	switch {
	case outcome.Failed:
		c.metrics.RecordTranscriptionFailure(elapsed)
		c.engine.Apply(reconcile.Event{
			Kind:    reconcile.EventTurnComplete,
			TurnID:  turnID,
			Failed:  true,
			Streams: reconcile.StreamSnapshot{Accumulated: c.currentAccumulated()},
		})
		return

	case outcome.Silent:
		c.engine.Apply(reconcile.Event{
			Kind:    reconcile.EventTurnComplete,
			TurnID:  turnID,
			Streams: reconcile.StreamSnapshot{Accumulated: c.currentAccumulated()},
		})
		return
	}

	c.metrics.RecordTranscriptionSuccess(elapsed)

	final := textnorm.Normalize(outcome.Text)

	c.mu.Lock()
	if c.accumulated == "" {
		c.accumulated = final
	} else {
		c.accumulated += "\n" + final
	}
	accumulated := c.accumulated
	c.lastFinal = final
	c.mu.Unlock()

	c.engine.Apply(reconcile.Event{
		Kind:    reconcile.EventTurnComplete,
		TurnID:  turnID,
		Streams: reconcile.StreamSnapshot{Accumulated: accumulated},
	})

	c.persistTurn(turnID, final, pcm)
}

func (c *Console) persistTurn(turnID uint64, text string, pcm []byte) {
	audioData := ""
	if len(pcm) > 0 {
		wavData, err := export.Playback(pcm, c.cfg.SampleRate, c.cfg.Channels, c.cfg.BitsPerSample)
		if err != nil {
			c.logger.Error("Failed to encode turn audio for persistence",
				slog.Uint64("turn_id", turnID),
				slog.String("error", err.Error()),
			)
		} else {
			audioData = base64.StdEncoding.EncodeToString(wavData)
		}
	}

	if _, err := c.store.CreateTranscription(c.ctx, c.cfg.ReportID, c.cfg.UserID, text, audioData); err != nil {
		c.logger.Error("Failed to persist transcription",
			slog.Uint64("turn_id", turnID),
			slog.String("error", err.Error()),
		)
	}
}

// onToolCall acknowledges tool calls. The console carries no tool
// implementations; every call is answered so the session can proceed.
func (c *Console) onToolCall(ev session.ServerEvent) {
	c.metrics.RecordToolCall()

	responses := make([]session.ToolResponse, 0, len(ev.Calls))
	for _, call := range ev.Calls {
		c.logger.Info("Acknowledging tool call",
			slog.String("name", call.Name),
			slog.String("id", call.ID),
		)
		responses = append(responses, session.ToolResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"status": "ok"},
		})
	}

	if err := c.client.SendToolResponse(responses); err != nil {
		c.logger.Error("Failed to answer tool call", slog.String("error", err.Error()))
	}
}

// UserEdit applies a direct keystroke: the full buffer content and
// cursor position after the edit.
func (c *Console) UserEdit(buffer string, cursor int) {
	c.metrics.RecordUserEdit()

	c.engine.Apply(reconcile.Event{
		Kind:   reconcile.EventUserEdit,
		Buffer: buffer,
		Cursor: cursor,
	})
}

// ReportID returns the report this session's transcriptions attach to.
func (c *Console) ReportID() string {
	return c.cfg.ReportID
}

// Document returns the current shared buffer content.
func (c *Console) Document() string {
	return c.engine.Document()
}

// Turns returns the session's turn log.
func (c *Console) Turns() []reconcile.Turn {
	return c.engine.Log().Turns()
}

// EngineStats returns reconciliation engine counters.
func (c *Console) EngineStats() reconcile.Stats {
	return c.engine.GetStats()
}

func (c *Console) currentAccumulated() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accumulated
}
