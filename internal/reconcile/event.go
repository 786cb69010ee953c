package reconcile

// EventKind identifies one of the reconciliation input variants.
type EventKind int

const (
	// EventLiveTranscript carries a new snapshot of the in-progress
	// turn's partial transcript.
	EventLiveTranscript EventKind = iota

	// EventRefinedContent carries a higher-quality restatement of the
	// current turn; the live stream is cleared in the same update.
	EventRefinedContent

	// EventTurnComplete carries the finalized transcript for a completed
	// turn as growth of the accumulated results string.
	EventTurnComplete

	// EventUserEdit reports a direct keystroke: the full buffer content
	// and cursor position after the edit.
	EventUserEdit
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventLiveTranscript:
		return "live_transcript"
	case EventRefinedContent:
		return "refined_content"
	case EventTurnComplete:
		return "turn_complete"
	case EventUserEdit:
		return "user_edit"
	default:
		return "unknown"
	}
}

// StreamSnapshot is the value of the three transcript streams at the
// moment an event was observed. Live and Refined reset to empty at turn
// boundaries; Accumulated only ever grows.
type StreamSnapshot struct {
	Live        string
	Refined     string
	Accumulated string
}

// Event is one reconciliation input. Which fields apply depends on Kind:
// the three transcript kinds carry Streams, EventTurnComplete
// additionally carries TurnID and Failed, and EventUserEdit carries
// Buffer and Cursor.
type Event struct {
	Kind    EventKind
	Streams StreamSnapshot

	// TurnID keys a turn-complete event to the turn it finalizes, so a
	// late transcription result can only touch its own turn's span.
	TurnID uint64

	// Failed marks a turn whose transcription dispatch failed. The turn
	// finalizes with its interim text left in place.
	Failed bool

	Buffer string
	Cursor int
}
