package vad

import (
	"fmt"
	"math"
	"sync"

	"github.com/laudoscribe/laudoscribe/internal/audio"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
)

const (
	// DefaultThreshold is the fraction of int16 full scale a window's RMS
	// energy must exceed to count as speech. Microphone gain varies by
	// device, so callers expose this as a sensitivity knob.
	DefaultThreshold = 0.01

	// DefaultWindowMs is the RMS window length used for onset detection.
	DefaultWindowMs = 20

	// DefaultTailTrimSec is the fixed trailing window stripped from the
	// end of every turn (dead air between the last word and the turn
	// boundary signal).
	DefaultTailTrimSec = 2.0

	// DefaultMinKeepSec is the minimum audio kept from the detected onset
	// when the tail strip would otherwise consume the whole buffer.
	DefaultMinKeepSec = 0.5
)

// Config contains trimmer tuning parameters.
type Config struct {
	Threshold   float64 // fraction of full scale, 0..1
	SampleRate  int     // Hz
	WindowMs    int     // onset detection window, milliseconds
	TailTrimSec float64 // trailing window to strip, seconds
	MinKeepSec  float64 // minimum kept audio from onset, seconds
}

// Trimmer strips leading silence and trailing dead air from turn audio.
// Detection is a cheap RMS scan; there is no spectral analysis. The bounds
// guarantee the trimmer never produces negative-length or below-minimum
// output, and never silently deletes audio that contains speech.
type Trimmer struct {
	cfg     Config
	metrics *metrics.Metrics

	// Statistics
	totalTrims   uint64
	silentTrims  uint64
	bytesIn      uint64
	bytesOut     uint64

	mu sync.RWMutex
}

// Stats reports trimmer counters for monitoring.
type Stats struct {
	TotalTrims  uint64  `json:"total_trims"`
	SilentTrims uint64  `json:"silent_trims"`
	BytesIn     uint64  `json:"bytes_in"`
	BytesOut    uint64  `json:"bytes_out"`
	Threshold   float64 `json:"threshold"`
}

// NewTrimmer creates a trimmer, filling unset config fields with defaults.
func NewTrimmer(cfg Config, m *metrics.Metrics) (*Trimmer, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.WindowMs <= 0 {
		cfg.WindowMs = DefaultWindowMs
	}

	if cfg.TailTrimSec <= 0 {
		cfg.TailTrimSec = DefaultTailTrimSec
	}

	if cfg.MinKeepSec <= 0 {
		cfg.MinKeepSec = DefaultMinKeepSec
	}

	return &Trimmer{cfg: cfg, metrics: m}, nil
}

// Trim scans pcm for speech onset and returns a copy of the voiced region.
// A zero-length result means "no speech detected, skip downstream work".
// If the windowed scan finds no onset but a raw per-sample check does find
// an above-threshold sample, the buffer is returned unmodified rather than
// risking deletion of real audio. Output length is always <= input length.
func (t *Trimmer) Trim(pcm []byte) []byte {
	if len(pcm)%2 != 0 {
		// Odd trailing byte; drop it and trim the aligned remainder.
		pcm = pcm[:len(pcm)-1]
	}
	samples, _ := audio.BytesToSamples(pcm)

	t.mu.Lock()
	t.totalTrims++
	t.bytesIn += uint64(len(pcm))
	t.mu.Unlock()

	if len(samples) == 0 {
		return []byte{}
	}

	windowSamples := t.cfg.SampleRate * t.cfg.WindowMs / 1000
	if windowSamples < 1 {
		windowSamples = 1
	}

	threshold := t.cfg.Threshold * float64(math.MaxInt16)

	onset := -1
	for start := 0; start+windowSamples <= len(samples); start += windowSamples {
		if windowRMS(samples[start:start+windowSamples]) > threshold {
			onset = start
			break
		}
	}

	if onset == -1 {
		// The windowed scan saw nothing. Cross-check sample by sample
		// before declaring silence: a buffer shorter than one window, or
		// an isolated loud click, must not be thrown away.
		for _, s := range samples {
			if math.Abs(float64(s)) > threshold {
				return t.record(len(pcm), append([]byte{}, pcm...))
			}
		}

		t.mu.Lock()
		t.silentTrims++
		t.mu.Unlock()
		t.metrics.RecordTrim(t.seconds(len(pcm)), true)
		return []byte{}
	}

	// Back up one window for context before the detected onset.
	startIndex := onset - windowSamples
	if startIndex < 0 {
		startIndex = 0
	}

	endIndex := len(samples) - int(float64(t.cfg.SampleRate)*t.cfg.TailTrimSec)
	if endIndex <= startIndex {
		endIndex = startIndex + int(float64(t.cfg.SampleRate)*t.cfg.MinKeepSec)
	}

	if endIndex > len(samples) {
		endIndex = len(samples)
	}

	return t.record(len(pcm), audio.SamplesToBytes(samples[startIndex:endIndex]))
}

// GetStats returns current trimmer statistics.
func (t *Trimmer) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Stats{
		TotalTrims:  t.totalTrims,
		SilentTrims: t.silentTrims,
		BytesIn:     t.bytesIn,
		BytesOut:    t.bytesOut,
		Threshold:   t.cfg.Threshold,
	}
}

// Threshold returns the configured sensitivity threshold.
func (t *Trimmer) Threshold() float64 {
	return t.cfg.Threshold
}

func (t *Trimmer) record(inBytes int, out []byte) []byte {
	t.mu.Lock()
	t.bytesOut += uint64(len(out))
	t.mu.Unlock()
	t.metrics.RecordTrim(t.seconds(inBytes-len(out)), false)
	return out
}

// seconds converts a 16-bit mono byte count to audio seconds.
func (t *Trimmer) seconds(bytes int) float64 {
	if bytes <= 0 {
		return 0
	}
	return float64(bytes) / float64(2*t.cfg.SampleRate)
}

func windowRMS(samples []int16) float64 {
	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	return math.Sqrt(energy / float64(len(samples)))
}
