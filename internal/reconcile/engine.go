package reconcile

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/laudoscribe/laudoscribe/internal/metrics"
)

// punctuationJoin lists the characters that require a separating space
// before text inserted directly after them.
const punctuationJoin = ".,;:?!"

// Config contains engine configuration.
type Config struct {
	// TypingSuspension is how long automatic reconciliation stays
	// suspended after a keystroke.
	TypingSuspension time.Duration
}

// turnSpans are the buffer search anchors snapshotted for a turn when it
// completes, so a late transcription result can still locate the text it
// is supposed to replace.
type turnSpans struct {
	live      string
	refined   string
	preRefine string
}

// deferredFinal is a finalization that arrived during typing suspension.
// It is applied once the suspension window lapses.
type deferredFinal struct {
	spans turnSpans
	text  string
}

// Engine merges the three transcript streams and direct user edits into
// one shared document buffer. All mutation is serialized under a single
// mutex; events must be applied in arrival order.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	log     *TurnLog

	buffer     string
	cursor     int
	followTail bool

	// Materialized spans for the in-progress turn. These anchor all
	// replacements; they track what was actually inserted into the
	// buffer, which lags the stream snapshots while typing suspension
	// is active.
	liveSpan      string
	refinedSpan   string
	preRefineSpan string

	currentTurn uint64
	nextTurn    uint64

	// Spans of completed turns awaiting their transcription result.
	pending map[uint64]turnSpans

	// Finalizations held back by typing suspension, applied in order
	// once the window lapses.
	deferred []deferredFinal

	prevAccumulated string

	typingUntil time.Time
	now         func() time.Time

	// Statistics
	liveFragments      uint64
	refineEvents       uint64
	turnsFinalized     uint64
	fallbackAppends    uint64
	suspendedMutations uint64
	userEdits          uint64

	mu sync.Mutex
}

// Stats reports engine counters for monitoring.
type Stats struct {
	LiveFragments      uint64 `json:"live_fragments"`
	RefineEvents       uint64 `json:"refine_events"`
	TurnsFinalized     uint64 `json:"turns_finalized"`
	FallbackAppends    uint64 `json:"fallback_appends"`
	SuspendedMutations uint64 `json:"suspended_mutations"`
	UserEdits          uint64 `json:"user_edits"`
}

// NewEngine creates a reconciliation engine with an empty buffer.
func NewEngine(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.TypingSuspension <= 0 {
		cfg.TypingSuspension = time.Second
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		log:        NewTurnLog(),
		nextTurn:   1,
		pending:    make(map[uint64]turnSpans),
		followTail: true,
		now:        time.Now,
	}
}

// Apply processes one reconciliation event. Events are dispatched by
// kind; unknown kinds are ignored.
func (e *Engine) Apply(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case EventLiveTranscript:
		e.applyLive(ev.Streams.Live)
	case EventRefinedContent:
		e.applyRefined(ev.Streams.Refined)
	case EventTurnComplete:
		e.applyTurnComplete(ev)
	case EventUserEdit:
		e.applyUserEdit(ev)
	default:
		e.logger.Warn("Ignoring unknown reconciliation event kind",
			slog.Int("kind", int(ev.Kind)),
		)
	}
}

// MarkTurnBoundary escalates the in-progress turn to interim status and
// snapshots its buffer spans for the transcription result that follows.
// Returns the turn id, or 0 when no turn is in progress.
func (e *Engine) MarkTurnBoundary() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainDeferred()

	if e.currentTurn == 0 {
		return 0
	}

	id := e.currentTurn
	e.pending[id] = turnSpans{
		live:      e.liveSpan,
		refined:   e.refinedSpan,
		preRefine: e.preRefineSpan,
	}
	e.log.escalate(id, StatusInterim)
	e.resetTurnState()

	return id
}

func (e *Engine) applyLive(live string) {
	if live == "" {
		return
	}
	e.liveFragments++
	e.drainDeferred()

	if e.currentTurn == 0 {
		e.beginTurn()
	}
	e.log.setText(e.currentTurn, live)

	if e.suspended() {
		e.suspendedMutations++
		e.metrics.RecordSuspendedMutation()
		return
	}

	switch {
	case e.liveSpan == "":
		e.insertAt(e.cursor, live)
	case live == e.liveSpan:
		return
	case strings.HasPrefix(live, e.liveSpan):
		delta := live[len(e.liveSpan):]
		if idx := strings.LastIndex(e.buffer, e.liveSpan); idx >= 0 {
			e.insertAt(idx+len(e.liveSpan), delta)
		} else {
			// span edited away, re-insert the full snapshot
			e.insertAt(e.cursor, live)
		}
	default:
		if !e.tryReplaceLast(e.liveSpan, live) {
			e.insertAt(e.cursor, live)
		}
	}

	e.liveSpan = live
}

func (e *Engine) applyRefined(refined string) {
	if refined == "" || refined == e.refinedSpan {
		return
	}
	e.refineEvents++
	e.drainDeferred()

	// Refined text can arrive before any live fragment
	if e.currentTurn == 0 {
		e.beginTurn()
	}
	e.log.setText(e.currentTurn, refined)

	if e.suspended() {
		e.suspendedMutations++
		e.metrics.RecordSuspendedMutation()
		return
	}

	target := e.refinedSpan
	if target == "" {
		target = e.liveSpan
		e.preRefineSpan = e.liveSpan
	}

	if target == "" || !e.tryReplaceLast(target, refined) {
		e.insertAt(e.cursor, refined)
	}

	e.refinedSpan = refined
	e.liveSpan = ""
}

func (e *Engine) applyTurnComplete(ev Event) {
	e.drainDeferred()

	accumulated := ev.Streams.Accumulated
	suffix := accumulated
	if strings.HasPrefix(accumulated, e.prevAccumulated) {
		suffix = accumulated[len(e.prevAccumulated):]
	}
	suffix = strings.TrimSpace(suffix)
	e.prevAccumulated = accumulated
	e.turnsFinalized++

	spans, ok := e.pending[ev.TurnID]
	if ok {
		delete(e.pending, ev.TurnID)
	} else if ev.TurnID != 0 && ev.TurnID == e.currentTurn {
		// finalization without an explicit boundary
		spans = turnSpans{
			live:      e.liveSpan,
			refined:   e.refinedSpan,
			preRefine: e.preRefineSpan,
		}
		e.resetTurnState()
	}

	e.log.finalize(ev.TurnID, suffix, ev.Failed)

	// Silence and dispatch failures keep the interim text in place
	if suffix == "" {
		return
	}

	if e.suspended() {
		e.suspendedMutations++
		e.metrics.RecordSuspendedMutation()
		e.deferred = append(e.deferred, deferredFinal{spans: spans, text: suffix})
		return
	}

	e.finalizeSpan(spans, suffix)
}

// drainDeferred applies finalizations that were held back by typing
// suspension. Deferred text reaches the buffer on the first automatic
// event after the window lapses; a user edit restarts the window, so the
// edit's buffer snapshot is never overwritten mid-keystroke.
func (e *Engine) drainDeferred() {
	if len(e.deferred) == 0 || e.suspended() {
		return
	}

	for _, d := range e.deferred {
		e.finalizeSpan(d.spans, d.text)
	}
	e.deferred = nil
}

func (e *Engine) applyUserEdit(ev Event) {
	e.userEdits++

	e.buffer = ev.Buffer
	cursor := ev.Cursor
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(e.buffer) {
		cursor = len(e.buffer)
	}
	e.cursor = cursor
	e.followTail = cursor == len(e.buffer)
	e.typingUntil = e.now().Add(e.cfg.TypingSuspension)
}

// finalizeSpan replaces the turn's span with the finalized text, walking
// the fallback chain: exact refined match, trimmed buffer suffix,
// pre-refinement text, live text, append as new paragraph.
func (e *Engine) finalizeSpan(spans turnSpans, final string) {
	if spans.refined != "" {
		if e.tryReplaceLast(spans.refined, final) {
			return
		}
		if e.tryReplaceTail(spans.refined, final) {
			return
		}
	}
	if spans.preRefine != "" && e.tryReplaceLast(spans.preRefine, final) {
		return
	}
	if spans.live != "" && e.tryReplaceLast(spans.live, final) {
		return
	}

	e.appendParagraph(final)
	e.fallbackAppends++
	e.metrics.RecordFallbackAppend()
	e.logger.Warn("No span matched for finalized turn, appended as new paragraph",
		slog.Int("text_length", len(final)),
	)
}

func (e *Engine) beginTurn() {
	e.currentTurn = e.nextTurn
	e.nextTurn++
	e.log.begin(e.currentTurn, e.now())
	e.metrics.RecordTurnStarted()
}

func (e *Engine) resetTurnState() {
	e.liveSpan = ""
	e.refinedSpan = ""
	e.preRefineSpan = ""
	e.currentTurn = 0
}

func (e *Engine) suspended() bool {
	return e.now().Before(e.typingUntil)
}

func (e *Engine) insertAt(pos int, text string) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(e.buffer) {
		pos = len(e.buffer)
	}

	wasAtEnd := e.cursor == len(e.buffer)
	text = e.joinText(pos, text)
	e.buffer = e.buffer[:pos] + text + e.buffer[pos:]
	e.cursor = pos + len(text)
	e.followTail = wasAtEnd
}

func (e *Engine) tryReplaceLast(span, replacement string) bool {
	idx := strings.LastIndex(e.buffer, span)
	if idx < 0 {
		return false
	}

	wasAtEnd := e.cursor == len(e.buffer)
	replacement = e.joinText(idx, replacement)
	e.buffer = e.buffer[:idx] + replacement + e.buffer[idx+len(span):]
	e.cursor = idx + len(replacement)
	e.followTail = wasAtEnd
	return true
}

// tryReplaceTail matches the span against the whitespace-trimmed end of
// the buffer and replaces that tail.
func (e *Engine) tryReplaceTail(span, replacement string) bool {
	tail := strings.TrimRight(e.buffer, " \t\n")
	span = strings.TrimSpace(span)
	if span == "" || !strings.HasSuffix(tail, span) {
		return false
	}

	idx := len(tail) - len(span)
	wasAtEnd := e.cursor == len(e.buffer)
	replacement = e.joinText(idx, replacement)
	e.buffer = e.buffer[:idx] + replacement
	e.cursor = len(e.buffer)
	e.followTail = wasAtEnd
	return true
}

func (e *Engine) appendParagraph(text string) {
	wasAtEnd := e.cursor == len(e.buffer)
	trimmed := strings.TrimRight(e.buffer, " \t\n")
	if trimmed == "" {
		e.buffer = text
	} else {
		e.buffer = trimmed + "\n\n" + text
	}
	e.cursor = len(e.buffer)
	e.followTail = wasAtEnd
}

// joinText inserts a separating space when text lands directly after
// sentence punctuation and does not itself start with whitespace.
func (e *Engine) joinText(pos int, text string) string {
	if pos == 0 || text == "" {
		return text
	}
	switch text[0] {
	case ' ', '\t', '\n':
		return text
	}
	if strings.IndexByte(punctuationJoin, e.buffer[pos-1]) >= 0 {
		return " " + text
	}
	return text
}

// Document returns the current buffer content.
func (e *Engine) Document() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer
}

// Cursor returns the current cursor position.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// FollowTail reports whether the viewport should scroll to the end of
// the document: true when the last mutation happened while the cursor
// was already at the end.
func (e *Engine) FollowTail() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.followTail
}

// Log returns the engine's turn log.
func (e *Engine) Log() *TurnLog {
	return e.log
}

// GetStats returns current engine statistics.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		LiveFragments:      e.liveFragments,
		RefineEvents:       e.refineEvents,
		TurnsFinalized:     e.turnsFinalized,
		FallbackAppends:    e.fallbackAppends,
		SuspendedMutations: e.suspendedMutations,
		UserEdits:          e.userEdits,
	}
}
