// Package reconcile implements the turn reconciliation engine: a
// single-writer state machine that merges live partial transcripts,
// refined restatements, and finalized turn results into one editable
// document buffer shared with a human operator.
//
// All replacement is best-effort last-occurrence string search anchored
// on the spans the engine itself materialized into the buffer. When
// every anchor fails, the engine appends the text as a new paragraph
// instead of dropping it.
package reconcile
