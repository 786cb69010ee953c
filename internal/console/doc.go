// Package console wires the dictation session together: it observes
// outbound microphone audio, turns session events into reconciliation
// engine inputs, runs completed turns through the transcription
// pipeline, and persists finalized transcriptions.
package console
