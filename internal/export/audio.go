package export

import (
	"fmt"

	"github.com/laudoscribe/laudoscribe/internal/audio"
)

// Playback wraps a turn's raw PCM capture in a WAV container for
// download or in-browser playback.
func Playback(pcm []byte, sampleRate, channels, bitsPerSample int) ([]byte, error) {
	wavData, err := audio.EncodeWAV(pcm, sampleRate, channels, bitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("failed to encode playback audio: %w", err)
	}
	return wavData, nil
}
