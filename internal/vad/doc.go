// Package vad provides energy-threshold voice activity trimming for PCM
// audio. It locates speech onset with a sliding RMS window and strips
// leading silence plus a fixed trailing window before transcription.
package vad
