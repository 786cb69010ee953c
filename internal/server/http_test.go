package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laudoscribe/laudoscribe/internal/config"
	"github.com/laudoscribe/laudoscribe/internal/console"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/reconcile"
	"github.com/laudoscribe/laudoscribe/internal/session"
	"github.com/laudoscribe/laudoscribe/internal/store"
	"github.com/laudoscribe/laudoscribe/internal/transcription"
	"github.com/laudoscribe/laudoscribe/internal/vad"
)

// Prometheus collectors register globally, so the package shares one
// bundle across tests.
var testMetrics = metrics.NewMetrics()

type stubCapability struct{}

func (stubCapability) Transcribe(context.Context, transcription.Request) (string, error) {
	return "", nil
}

type stubTranscriber struct{}

func (stubTranscriber) TranscribeTurn(context.Context, []byte, string) transcription.Outcome {
	return transcription.Outcome{Silent: true}
}

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{
			Endpoint:         "wss://example.test/session",
			Model:            "models/gemini-live",
			APIKey:           "secret-session-key",
			HandshakeTimeout: 10,
		},
		HTTP:  config.HTTPConfig{Port: 8080, Address: "127.0.0.1", Enabled: true},
		Audio: config.AudioConfig{SampleRate: 16000, Channels: 1, BitDepth: 16},
		VAD: config.VADConfig{
			Threshold:   0.02,
			WindowMs:    30,
			TailTrimSec: 2.0,
			MinKeepSec:  0.5,
		},
		Transcription: config.TranscriptionConfig{
			Model:         "gemini-2.5-flash",
			APIKey:        "secret-transcription-key",
			Timeout:       30,
			MaxRetries:    2,
			MaxConcurrent: 2,
		},
		Editor:  config.EditorConfig{TypingSuspensionMs: 1000},
		Logging: config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

func newTestServer(t *testing.T) (*HTTPServer, *console.Console, *store.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	client, err := session.NewClient(session.Config{
		Endpoint: cfg.Session.Endpoint,
		Model:    cfg.Session.Model,
	}, testMetrics, logger)
	require.NoError(t, err)

	trimmer, err := vad.NewTrimmer(vad.Config{SampleRate: 16000}, testMetrics)
	require.NoError(t, err)
	pipeline := transcription.NewPipeline(stubCapability{}, trimmer, transcription.Config{
		SampleRate: 16000,
	}, testMetrics, logger)

	st := store.NewMemoryStore()
	engine := reconcile.NewEngine(reconcile.Config{TypingSuspension: time.Second}, testMetrics, logger)
	cons := console.NewConsole(console.Config{
		ReportID:   "report-1",
		UserID:     "user-1",
		SampleRate: 16000,
	}, client, engine, stubTranscriber{}, st, testMetrics, logger)
	cons.Start(context.Background())
	t.Cleanup(cons.Stop)

	h := NewHTTPServer(cfg.HTTP, logger, cfg, cons, pipeline, client, st, testMetrics)
	return h, cons, st
}

func serve(h *HTTPServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "components")
}

func TestDocumentReadAndEdit(t *testing.T) {
	h, cons, _ := newTestServer(t)

	cons.UserEdit("Nódulo hepático.", 16)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Nódulo hepático.", body["content"])

	edit := bytes.NewBufferString(`{"content":"Texto corrigido.","cursor":5}`)
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/document", edit))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Texto corrigido.", cons.Document())
}

func TestDocumentEditRejectsMalformedPayload(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/document", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTurnsEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/turns", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalTurns int              `json:"total_turns"`
		Turns      []reconcile.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.TotalTurns)
}

func TestConfigEndpointOmitsAPIKeys(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), "secret-session-key")
	assert.NotContains(t, rec.Body.String(), "secret-transcription-key")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "session")
	assert.Contains(t, body, "transcription")
}

func TestStatsEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "session")
	assert.Contains(t, body, "reconciliation")
	assert.Contains(t, body, "transcription")
}

func TestExportTextDownload(t *testing.T) {
	h, cons, _ := newTestServer(t)

	cons.UserEdit("Fígado sem alterações.", 22)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/export/text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fígado sem alterações.\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "transcricao-")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestExportMarkdownDownload(t *testing.T) {
	h, cons, _ := newTestServer(t)

	cons.UserEdit("Fígado sem alterações.", 22)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/export/markdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fígado sem alterações.")
	assert.Contains(t, rec.Body.String(), "# Transcrição")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestTranscriptionsEndpointOmitsAudio(t *testing.T) {
	h, _, st := newTestServer(t)

	_, err := st.CreateTranscription(context.Background(), "report-1", "user-1",
		"Nódulo hepático.", base64.StdEncoding.EncodeToString([]byte("RIFFdata")))
	require.NoError(t, err)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/transcriptions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ReportID       string                `json:"report_id"`
		Total          int                   `json:"total"`
		Transcriptions []store.Transcription `json:"transcriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "report-1", body.ReportID)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "Nódulo hepático.", body.Transcriptions[0].Text)
	assert.Empty(t, body.Transcriptions[0].AudioData)
}

func TestTranscriptionAudioDownload(t *testing.T) {
	h, _, st := newTestServer(t)

	wavBytes := []byte("RIFF....WAVEfmt ")
	created, err := st.CreateTranscription(context.Background(), "report-1", "user-1",
		"Fígado sem alterações.", base64.StdEncoding.EncodeToString(wavBytes))
	require.NoError(t, err)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/transcriptions/"+created.ID+"/audio", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wavBytes, rec.Body.Bytes())
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), created.ID)
}

func TestTranscriptionAudioNotFound(t *testing.T) {
	h, _, st := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/transcriptions/missing/audio", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A stored transcription without captured audio is also a 404
	created, err := st.CreateTranscription(context.Background(), "report-1", "user-1", "Sem áudio.", "")
	require.NoError(t, err)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/transcriptions/"+created.ID+"/audio", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRootListsEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/export/markdown")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestServer(t)

	for _, path := range []string{"/health", "/turns", "/transcriptions", "/config", "/stats", "/export/text"} {
		rec := serve(h, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}

	rec := serve(h, httptest.NewRequest(http.MethodDelete, "/document", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
