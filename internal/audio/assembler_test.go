package audio

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func b64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestConcatenateBase64(t *testing.T) {
	chunkA := []byte{1, 2, 3, 4}
	chunkB := []byte{5, 6}
	chunkC := []byte{7, 8, 9, 10, 11, 12}

	result := ConcatenateBase64([]string{b64(chunkA), b64(chunkB), b64(chunkC)}, nil)

	expectedLen := len(chunkA) + len(chunkB) + len(chunkC)
	if len(result) != expectedLen {
		t.Errorf("Expected %d bytes, got %d", expectedLen, len(result))
	}

	expected := append(append(append([]byte{}, chunkA...), chunkB...), chunkC...)
	if !bytes.Equal(result, expected) {
		t.Errorf("Concatenated bytes do not match input order")
	}
}

func TestConcatenateBase64OrderMatters(t *testing.T) {
	chunkA := []byte{1, 2}
	chunkB := []byte{3, 4}

	ab := ConcatenateBase64([]string{b64(chunkA), b64(chunkB)}, nil)
	ba := ConcatenateBase64([]string{b64(chunkB), b64(chunkA)}, nil)

	if bytes.Equal(ab, ba) {
		t.Error("Expected different output for reordered chunks")
	}
}

func TestConcatenateBase64Empty(t *testing.T) {
	result := ConcatenateBase64(nil, nil)
	if len(result) != 0 {
		t.Errorf("Expected empty buffer for no chunks, got %d bytes", len(result))
	}
}

func TestConcatenateBase64SkipsMalformedChunk(t *testing.T) {
	chunkA := []byte{1, 2, 3, 4}
	chunkB := []byte{5, 6, 7, 8}

	result := ConcatenateBase64([]string{b64(chunkA), "!!!not-base64!!!", b64(chunkB)}, nil)

	expected := append(append([]byte{}, chunkA...), chunkB...)
	if !bytes.Equal(result, expected) {
		t.Errorf("Expected malformed chunk to be skipped, got %v", result)
	}
}

func TestTurnAccumulatorFlush(t *testing.T) {
	acc := NewTurnAccumulator()

	acc.Append(b64([]byte{1, 2}))
	acc.Append(b64([]byte{3, 4}))

	if acc.Len() != 2 {
		t.Errorf("Expected 2 chunks, got %d", acc.Len())
	}

	pcm := acc.Flush(nil)
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4}) {
		t.Errorf("Unexpected flush result: %v", pcm)
	}

	// Flush must reset the accumulator for the next turn
	if acc.Len() != 0 {
		t.Errorf("Expected accumulator to be empty after flush, got %d chunks", acc.Len())
	}

	if len(acc.Flush(nil)) != 0 {
		t.Error("Expected second flush to produce an empty buffer")
	}
}

func TestTurnAccumulatorReset(t *testing.T) {
	acc := NewTurnAccumulator()
	acc.Append(b64([]byte{1, 2}))
	acc.Reset()

	if acc.Len() != 0 {
		t.Errorf("Expected empty accumulator after reset, got %d chunks", acc.Len())
	}
}

func TestBytesToSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	pcm := SamplesToBytes(samples)

	if len(pcm) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(pcm))
	}

	decoded, err := BytesToSamples(pcm)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}

	for i, s := range samples {
		if decoded[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, decoded[i])
		}
	}
}

func TestBytesToSamplesOddLength(t *testing.T) {
	_, err := BytesToSamples([]byte{1, 2, 3})
	if err == nil {
		t.Error("Expected error for odd byte length")
	}
}
