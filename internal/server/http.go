package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laudoscribe/laudoscribe/internal/config"
	"github.com/laudoscribe/laudoscribe/internal/console"
	"github.com/laudoscribe/laudoscribe/internal/export"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/session"
	"github.com/laudoscribe/laudoscribe/internal/store"
	"github.com/laudoscribe/laudoscribe/internal/transcription"
)

// HTTPServer provides HTTP API endpoints for the dictation console
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	console  *console.Console
	pipeline *transcription.Pipeline
	client   *session.Client
	store    store.Store
	metrics  *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, cons *console.Console, pipeline *transcription.Pipeline,
	client *session.Client, st store.Store, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		console:   cons,
		pipeline:  pipeline,
		client:    client,
		store:     st,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Document endpoints
	mux.HandleFunc("/document", h.withMetrics("/document", h.handleDocument))

	// Turn log endpoint
	mux.HandleFunc("/turns", h.withMetrics("/turns", h.handleTurns))

	// Stored transcription endpoints
	mux.HandleFunc("/transcriptions", h.withMetrics("/transcriptions", h.handleTranscriptions))
	mux.HandleFunc("/transcriptions/{id}/audio", h.withMetrics("/transcriptions/{id}/audio", h.handleTranscriptionAudio))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Export endpoints
	mux.HandleFunc("/export/text", h.withMetrics("/export/text", h.handleExportText))
	mux.HandleFunc("/export/markdown", h.withMetrics("/export/markdown", h.handleExportMarkdown))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	engineStats := h.console.EngineStats()
	pipelineStats := h.pipeline.GetStats()
	sessionStats := h.client.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "laudoscribe",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"session": map[string]interface{}{
				"status":            "running",
				"frames_received":   sessionStats.FramesReceived,
				"events_dispatched": sessionStats.EventsDispatched,
				"parse_errors":      sessionStats.ParseErrors,
			},
			"reconciliation": map[string]interface{}{
				"status":          "running",
				"turns_finalized": engineStats.TurnsFinalized,
				"live_fragments":  engineStats.LiveFragments,
			},
			"transcription": map[string]interface{}{
				"status":         "running",
				"total_requests": pipelineStats.TotalRequests,
				"failures":       pipelineStats.FailedRequests,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleDocument implements the /document endpoint: GET returns the
// current buffer, POST applies a user edit.
func (h *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		response := map[string]interface{}{
			"content":   h.console.Document(),
			"timestamp": time.Now().UTC(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)

	case http.MethodPost:
		var edit struct {
			Content string `json:"content"`
			Cursor  int    `json:"cursor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
			http.Error(w, "Invalid edit payload", http.StatusBadRequest)
			return
		}

		h.console.UserEdit(edit.Content, edit.Cursor)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTurns implements the /turns endpoint
func (h *HTTPServer) handleTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	turns := h.console.Turns()

	response := map[string]interface{}{
		"total_turns": len(turns),
		"timestamp":   time.Now().UTC(),
		"turns":       turns,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleTranscriptions implements the /transcriptions endpoint: the
// stored transcriptions for the session's report, newest first.
func (h *HTTPServer) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	transcriptions, err := h.store.ListTranscriptions(r.Context(), h.console.ReportID())
	if err != nil {
		http.Error(w, "Failed to list transcriptions", http.StatusInternalServerError)
		return
	}

	// Audio is served per transcription, not inlined in the listing
	for i := range transcriptions {
		transcriptions[i].AudioData = ""
	}

	response := map[string]interface{}{
		"report_id":      h.console.ReportID(),
		"total":          len(transcriptions),
		"timestamp":      time.Now().UTC(),
		"transcriptions": transcriptions,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleTranscriptionAudio implements the /transcriptions/{id}/audio
// endpoint: the turn's captured audio as a playable WAV download.
func (h *HTTPServer) handleTranscriptionAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	record, err := h.store.GetTranscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Transcription not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load transcription", http.StatusInternalServerError)
		}
		return
	}

	if record.AudioData == "" {
		http.Error(w, "Transcription has no captured audio", http.StatusNotFound)
		return
	}

	wavData, err := base64.StdEncoding.DecodeString(record.AudioData)
	if err != nil {
		h.logger.Error("Stored transcription audio is undecodable",
			slog.String("transcription_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Stored audio is unreadable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcricao-"+id+".wav"))
	w.Write(wavData)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"session": map[string]interface{}{
			"endpoint":          h.config.Session.Endpoint,
			"model":             h.config.Session.Model,
			"handshake_timeout": h.config.Session.HandshakeTimeout,
			// Note: API key is intentionally omitted for security
		},
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"channels":    h.config.Audio.Channels,
			"bit_depth":   h.config.Audio.BitDepth,
		},
		"vad": map[string]interface{}{
			"threshold":     h.config.VAD.Threshold,
			"window_ms":     h.config.VAD.WindowMs,
			"tail_trim_sec": h.config.VAD.TailTrimSec,
			"min_keep_sec":  h.config.VAD.MinKeepSec,
		},
		"transcription": map[string]interface{}{
			"model":          h.config.Transcription.Model,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"editor": map[string]interface{}{
			"typing_suspension_ms": h.config.Editor.TypingSuspensionMs,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":         uptime.String(),
		"timestamp":      time.Now().UTC(),
		"session":        h.client.GetStats(),
		"reconciliation": h.console.EngineStats(),
		"transcription":  h.pipeline.GetStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleExportText implements the /export/text endpoint
func (h *HTTPServer) handleExportText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := export.TextFilename(time.Now())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(export.Text(h.console.Document()))
}

// handleExportMarkdown implements the /export/markdown endpoint
func (h *HTTPServer) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	markdown := export.Markdown(export.Metadata{
		Title:     "Transcrição de laudo",
		Model:     h.config.Transcription.Model,
		Generated: time.Now(),
	}, h.console.Document(), h.console.Turns())

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(markdown))
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "LaudoScribe Dictation Console",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                "API documentation",
			"GET /health":          "Service health check",
			"GET /document":        "Current document buffer",
			"POST /document":       "Apply a user edit to the document",
			"GET /turns":           "Session turn log",
			"GET /transcriptions":  "Stored transcriptions for the session's report",
			"GET /transcriptions/{id}/audio": "Download a turn's captured audio as WAV",
			"GET /config":          "Get console configuration",
			"GET /stats":           "Get console statistics",
			"GET /export/text":     "Download the document as plain text",
			"GET /export/markdown": "Download the document as Markdown",
			"GET /metrics":         "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
