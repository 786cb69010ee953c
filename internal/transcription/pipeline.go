package transcription

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laudoscribe/laudoscribe/internal/audio"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/vad"
)

// SentinelErrorText replaces a turn's transcript when dispatch fails. The
// pipeline never surfaces a transport error to the reconciliation layer;
// callers receive this inline status string instead.
const SentinelErrorText = "Erro na transcrição"

// Config contains pipeline configuration.
type Config struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// Outcome is the pipeline result for one turn.
type Outcome struct {
	Text      string
	RequestID string
	Silent    bool // no speech detected or empty model response
	Failed    bool // dispatch failed; Text holds the sentinel
}

// Pipeline runs the full turn transcription flow: silence trim, WAV
// encode, dispatch, defensive unwrap.
type Pipeline struct {
	capability Capability
	trimmer    *vad.Trimmer
	cfg        Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
	semaphore  chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	silentTurns     uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// Stats reports pipeline counters for monitoring.
type Stats struct {
	TotalRequests   uint64 `json:"total_requests"`
	SuccessRequests uint64 `json:"success_requests"`
	FailedRequests  uint64 `json:"failed_requests"`
	SilentTurns     uint64 `json:"silent_turns"`
	TotalRetries    uint64 `json:"total_retries"`
}

// NewPipeline creates a transcription pipeline.
func NewPipeline(capability Capability, trimmer *vad.Trimmer, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	if cfg.BitsPerSample <= 0 {
		cfg.BitsPerSample = 16
	}

	return &Pipeline{
		capability: capability,
		trimmer:    trimmer,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
	}
}

// TranscribeTurn trims, encodes, and transcribes one turn's PCM audio. It
// never returns an error: silence yields an empty-text outcome without a
// network call, and dispatch failures yield the sentinel text.
func (p *Pipeline) TranscribeTurn(ctx context.Context, pcm []byte, previousTranscript string) Outcome {
	requestID := uuid.NewString()

	p.mu.Lock()
	p.totalRequests++
	p.mu.Unlock()
	p.metrics.RecordTranscriptionRequest()

	trimmed := p.trimmer.Trim(pcm)
	if len(trimmed) == 0 {
		p.mu.Lock()
		p.silentTurns++
		p.mu.Unlock()

		p.logger.Info("No speech detected in turn audio, skipping dispatch",
			slog.String("request_id", requestID),
			slog.Int("input_bytes", len(pcm)),
		)
		return Outcome{RequestID: requestID, Silent: true}
	}

	wavData, err := audio.EncodeWAV(trimmed, p.cfg.SampleRate, p.cfg.Channels, p.cfg.BitsPerSample)
	if err != nil {
		p.mu.Lock()
		p.failedRequests++
		p.mu.Unlock()

		p.logger.Error("Failed to encode turn audio",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return Outcome{Text: SentinelErrorText, RequestID: requestID, Failed: true}
	}

	req := Request{
		Audio:       base64.StdEncoding.EncodeToString(wavData),
		MIMEType:    "audio/wav",
		ContextHint: previousTranscript,
	}

	raw, err := p.dispatch(ctx, req, requestID)
	if err != nil {
		p.mu.Lock()
		p.failedRequests++
		p.mu.Unlock()

		p.logger.Error("Transcription dispatch failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return Outcome{Text: SentinelErrorText, RequestID: requestID, Failed: true}
	}

	result := unwrapResponse(raw)
	if result.Text == "" {
		p.mu.Lock()
		p.silentTurns++
		p.mu.Unlock()

		p.logger.Warn("Received empty transcription, finalizing turn with interim text",
			slog.String("request_id", requestID),
		)
		return Outcome{RequestID: requestID, Silent: true}
	}

	p.mu.Lock()
	p.successRequests++
	p.mu.Unlock()

	p.logger.Info("Turn transcription completed",
		slog.String("request_id", requestID),
		slog.Int("text_length", len(result.Text)),
		slog.Bool("json_wrapped", result.Source == SourceWrappedJSON),
	)

	return Outcome{Text: result.Text, RequestID: requestID}
}

// dispatch sends the request with the in-flight limit, bounded timeout, and
// retry with exponential backoff.
func (p *Pipeline) dispatch(ctx context.Context, req Request, requestID string) (string, error) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.mu.Lock()
			p.totalRetries++
			p.mu.Unlock()
			p.metrics.RecordTranscriptionRetry()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			p.logger.Warn("Retrying transcription request",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		raw, err := p.capability.Transcribe(attemptCtx, req)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

// GetStats returns current pipeline statistics.
func (p *Pipeline) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		TotalRequests:   p.totalRequests,
		SuccessRequests: p.successRequests,
		FailedRequests:  p.failedRequests,
		SilentTurns:     p.silentTurns,
		TotalRetries:    p.totalRetries,
	}
}
