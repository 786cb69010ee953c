package reconcile

import (
	"errors"
	"sync"
	"time"
)

// TurnStatus tracks a turn's lifecycle: live while fragments are still
// arriving, interim once the turn completed and its transcription is
// outstanding, final once the transcription resolved.
type TurnStatus string

const (
	StatusLive    TurnStatus = "live"
	StatusInterim TurnStatus = "interim"
	StatusFinal   TurnStatus = "final"
)

var (
	// ErrTurnNotFound is returned when the referenced turn id does not
	// exist in the log.
	ErrTurnNotFound = errors.New("turn not found")

	// ErrDislikeLocked is returned when clearing the dislike flag on an
	// entry that is both disliked and hand-edited. Such entries record
	// human-corrected ground truth and stay disliked permanently.
	ErrDislikeLocked = errors.New("dislike flag is locked on an edited entry")
)

// Turn is one log entry for a spoken turn.
type Turn struct {
	ID        uint64     `json:"id"`
	Text      string     `json:"text"`
	Status    TurnStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Disliked  bool       `json:"disliked"`
	Edited    bool       `json:"edited"`
	Failed    bool       `json:"failed"`
}

// TurnLog is the ordered record of turns for one session.
type TurnLog struct {
	turns []*Turn
	index map[uint64]*Turn
	mu    sync.RWMutex
}

// NewTurnLog creates an empty turn log.
func NewTurnLog() *TurnLog {
	return &TurnLog{
		index: make(map[uint64]*Turn),
	}
}

func (l *TurnLog) begin(id uint64, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := &Turn{ID: id, Status: StatusLive, Timestamp: ts}
	l.turns = append(l.turns, turn)
	l.index[id] = turn
}

// setText updates the turn's transcript unless the operator already
// hand-edited the entry.
func (l *TurnLog) setText(id uint64, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if turn, ok := l.index[id]; ok && !turn.Edited {
		turn.Text = text
	}
}

func (l *TurnLog) escalate(id uint64, status TurnStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if turn, ok := l.index[id]; ok {
		turn.Status = status
	}
}

// finalize marks the turn final. Empty text preserves whatever interim
// text the turn already holds; silence and dispatch failures finalize
// without discarding it.
func (l *TurnLog) finalize(id uint64, text string, failed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn, ok := l.index[id]
	if !ok {
		return
	}

	turn.Status = StatusFinal
	turn.Failed = failed
	if text != "" && !turn.Edited {
		turn.Text = text
	}
}

// Len returns the number of logged turns.
func (l *TurnLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a copy of all logged turns in arrival order.
func (l *TurnLog) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	turns := make([]Turn, len(l.turns))
	for i, turn := range l.turns {
		turns[i] = *turn
	}
	return turns
}

// Get returns a copy of the turn with the given id.
func (l *TurnLog) Get(id uint64) (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	turn, ok := l.index[id]
	if !ok {
		return Turn{}, false
	}
	return *turn, true
}

// MarkEdited records a hand-corrected transcript for the turn. Edited
// entries are no longer overwritten by stream updates.
func (l *TurnLog) MarkEdited(id uint64, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn, ok := l.index[id]
	if !ok {
		return ErrTurnNotFound
	}

	turn.Edited = true
	turn.Text = text
	return nil
}

// SetDisliked toggles the dislike flag. Once an entry is both disliked
// and edited the flag can no longer be cleared.
func (l *TurnLog) SetDisliked(id uint64, disliked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn, ok := l.index[id]
	if !ok {
		return ErrTurnNotFound
	}

	if !disliked && turn.Disliked && turn.Edited {
		return ErrDislikeLocked
	}

	turn.Disliked = disliked
	return nil
}
