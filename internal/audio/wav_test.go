package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	// 0.1 seconds of a 440Hz sine wave at 16kHz
	sampleRate := 16000
	numSamples := sampleRate / 10
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		ts := float64(i) / float64(sampleRate)
		samples[i] = int16(16383.0 * math.Sin(2*math.Pi*440.0*ts))
	}

	pcm := SamplesToBytes(samples)
	wavData, err := EncodeWAV(pcm, sampleRate, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(pcm)
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	// Declared data-subchunk size must match the payload length
	dataSize := binary.LittleEndian.Uint32(wavData[40:44])
	if int(dataSize) != len(pcm) {
		t.Errorf("Expected declared data size %d, got %d", len(pcm), dataSize)
	}

	duration, err := Duration(wavData)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}

	if math.Abs(duration-0.1) > 0.001 {
		t.Errorf("Expected duration 0.100, got %.3f", duration)
	}
}

func TestEncodeWAVEmptyPayload(t *testing.T) {
	// A zero-length PCM buffer is a valid silent sentinel and must still
	// produce a well-formed 44-byte container.
	wavData, err := EncodeWAV(nil, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed for empty payload: %v", err)
	}

	if len(wavData) != 44 {
		t.Errorf("Expected 44 bytes for empty payload, got %d", len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Empty WAV is invalid: %v", err)
	}
}

func TestEncodeWAVHeaderFields(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wavData, err := EncodeWAV(pcm, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	sampleRate := binary.LittleEndian.Uint32(wavData[24:28])
	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}

	byteRate := binary.LittleEndian.Uint32(wavData[28:32])
	if byteRate != 32000 {
		t.Errorf("Expected byte rate 32000, got %d", byteRate)
	}

	blockAlign := binary.LittleEndian.Uint16(wavData[32:34])
	if blockAlign != 2 {
		t.Errorf("Expected block align 2, got %d", blockAlign)
	}
}

func TestEncodeWAVInvalidParams(t *testing.T) {
	pcm := []byte{1, 2}

	if _, err := EncodeWAV(pcm, 0, 1, 16); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV(pcm, 16000, 0, 16); err == nil {
		t.Error("Expected error for zero channels")
	}

	if _, err := EncodeWAV(pcm, 16000, 1, 12); err == nil {
		t.Error("Expected error for non-multiple-of-8 bit depth")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	original := SamplesToBytes([]int16{100, -200, 300, -400, 500})

	wavData, err := EncodeWAV(original, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	pcm, sampleRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}

	if len(pcm) != len(original) {
		t.Fatalf("Expected %d payload bytes, got %d", len(original), len(pcm))
	}

	for i := range original {
		if pcm[i] != original[i] {
			t.Errorf("Byte %d: expected %d, got %d", i, original[i], pcm[i])
		}
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalid := make([]byte, 50)
	copy(invalid[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalid); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}
