// Package audio handles captured audio for one spoken turn: base64 chunk
// assembly into contiguous PCM, little-endian int16 sample conversion, and
// WAV container encoding for playback and transcription upload.
package audio
