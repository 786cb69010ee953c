// Package textnorm rewrites dictated Brazilian Portuguese punctuation words
// into their symbols and normalizes the surrounding whitespace. The rewrite
// is deterministic and idempotent so it can be applied at every stage of the
// transcription pipeline without accumulating artifacts.
package textnorm
