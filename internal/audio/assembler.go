package audio

import (
	"encoding/base64"
	"log/slog"
	"sync"
	"time"
)

// ConcatenateBase64 decodes a sequence of base64-encoded PCM fragments and
// copies them into one contiguous buffer, preserving arrival order. PCM is
// order-dependent, so chunks are never reordered. A chunk that fails to
// decode is skipped and logged; a malformed fragment must not abort the
// turn. An empty chunk list yields an empty buffer, not an error.
func ConcatenateBase64(chunks []string, logger *slog.Logger) []byte {
	if len(chunks) == 0 {
		return []byte{}
	}

	decoded := make([][]byte, 0, len(chunks))
	total := 0
	for i, chunk := range chunks {
		data, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			if logger != nil {
				logger.Warn("Skipping undecodable audio chunk",
					slog.Int("chunk_index", i),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		decoded = append(decoded, data)
		total += len(data)
	}

	result := make([]byte, total)
	offset := 0
	for _, data := range decoded {
		copy(result[offset:], data)
		offset += len(data)
	}

	return result
}

// TurnAccumulator collects the base64 audio chunks captured during one
// spoken turn. It is created empty at turn start (or implicitly on the
// first chunk), appended to per capture, and flushed on turn completion.
type TurnAccumulator struct {
	chunks     []string
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewTurnAccumulator creates an empty accumulator.
func NewTurnAccumulator() *TurnAccumulator {
	return &TurnAccumulator{
		chunks: make([]string, 0, 64),
	}
}

// Append adds one captured base64 chunk in arrival order.
func (a *TurnAccumulator) Append(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.chunks = append(a.chunks, chunk)
	a.lastUpdate = time.Now()
}

// Len returns the number of chunks accumulated so far.
func (a *TurnAccumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// LastUpdate returns the time of the most recent append.
func (a *TurnAccumulator) LastUpdate() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastUpdate
}

// Flush concatenates the accumulated chunks into one PCM buffer and resets
// the accumulator for the next turn.
func (a *TurnAccumulator) Flush(logger *slog.Logger) []byte {
	a.mu.Lock()
	chunks := a.chunks
	a.chunks = make([]string, 0, 64)
	a.mu.Unlock()

	return ConcatenateBase64(chunks, logger)
}

// Reset discards any accumulated chunks without producing a buffer.
func (a *TurnAccumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = a.chunks[:0]
}
