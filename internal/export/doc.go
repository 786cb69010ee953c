// Package export produces user-facing file outputs: plain-text and
// Markdown renderings of the current document, and WAV playback bytes
// for a turn's captured audio.
package export
