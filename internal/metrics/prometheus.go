package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation console.
// A nil *Metrics is valid; its Record helpers do nothing, so components
// can be constructed without a bundle in tests.
type Metrics struct {
	// Session event metrics
	FramesReceived prometheus.Counter
	LiveFragments  prometheus.Counter
	RefineEvents   prometheus.Counter
	ToolCalls      prometheus.Counter
	ParseErrors    prometheus.Counter

	// Turn metrics
	TurnsStarted   prometheus.Counter
	TurnsFinalized prometheus.Counter
	SilentTurns    prometheus.Counter
	TurnAudioBytes prometheus.Histogram

	// Reconciliation metrics
	FallbackAppends    prometheus.Counter
	SuspendedMutations prometheus.Counter
	UserEdits          prometheus.Counter

	// VAD metrics
	TrimmedSeconds prometheus.Counter
	SilentTrims    prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session event metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_session_frames_received_total",
			Help: "Total number of server frames received on the realtime session",
		}),
		LiveFragments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_live_fragments_total",
			Help: "Total number of live transcript fragments received",
		}),
		RefineEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_refine_events_total",
			Help: "Total number of refined content events received",
		}),
		ToolCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_tool_calls_total",
			Help: "Total number of tool call events received",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_frame_parse_errors_total",
			Help: "Total number of undecodable server frames",
		}),

		// Turn metrics
		TurnsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_turns_started_total",
			Help: "Total number of spoken turns started",
		}),
		TurnsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_turns_finalized_total",
			Help: "Total number of turns finalized",
		}),
		SilentTurns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_silent_turns_total",
			Help: "Total number of turns finalized without speech or transcript",
		}),
		TurnAudioBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "laudo_turn_audio_bytes",
			Help:    "Size of assembled turn audio in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Reconciliation metrics
		FallbackAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_reconcile_fallback_appends_total",
			Help: "Total number of finalized turns appended because no span matched",
		}),
		SuspendedMutations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_reconcile_suspended_mutations_total",
			Help: "Total number of buffer mutations skipped during typing suspension",
		}),
		UserEdits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_user_edits_total",
			Help: "Total number of direct user edit events",
		}),

		// VAD metrics
		TrimmedSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_vad_trimmed_seconds_total",
			Help: "Total seconds of audio removed by silence trimming",
		}),
		SilentTrims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_vad_silent_trims_total",
			Help: "Total number of turns trimmed down to no speech at all",
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "laudo_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "laudo_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laudo_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "laudo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "laudo_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrameReceived increments the session frames counter
func (m *Metrics) RecordFrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

// RecordLiveFragment increments the live fragments counter
func (m *Metrics) RecordLiveFragment() {
	if m == nil {
		return
	}
	m.LiveFragments.Inc()
}

// RecordRefineEvent increments the refine events counter
func (m *Metrics) RecordRefineEvent() {
	if m == nil {
		return
	}
	m.RefineEvents.Inc()
}

// RecordToolCall increments the tool calls counter
func (m *Metrics) RecordToolCall() {
	if m == nil {
		return
	}
	m.ToolCalls.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// RecordTurnStarted increments the turns started counter
func (m *Metrics) RecordTurnStarted() {
	if m == nil {
		return
	}
	m.TurnsStarted.Inc()
}

// RecordTurnFinalized records a finalized turn and its audio size
func (m *Metrics) RecordTurnFinalized(audioBytes int, silent bool) {
	if m == nil {
		return
	}
	m.TurnsFinalized.Inc()
	m.TurnAudioBytes.Observe(float64(audioBytes))
	if silent {
		m.SilentTurns.Inc()
	}
}

// RecordFallbackAppend increments the fallback appends counter
func (m *Metrics) RecordFallbackAppend() {
	if m == nil {
		return
	}
	m.FallbackAppends.Inc()
}

// RecordSuspendedMutation increments the suspended mutations counter
func (m *Metrics) RecordSuspendedMutation() {
	if m == nil {
		return
	}
	m.SuspendedMutations.Inc()
}

// RecordUserEdit increments the user edits counter
func (m *Metrics) RecordUserEdit() {
	if m == nil {
		return
	}
	m.UserEdits.Inc()
}

// RecordTrim records the audio removed by one trim pass
func (m *Metrics) RecordTrim(trimmedSeconds float64, silent bool) {
	if m == nil {
		return
	}
	m.TrimmedSeconds.Add(trimmedSeconds)
	if silent {
		m.SilentTrims.Inc()
	}
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	if m == nil {
		return
	}
	m.TranscriptionRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
