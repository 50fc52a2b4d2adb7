package metadata

// Phase is the lifecycle stage of a metadata preview.
type Phase int

// Phases of the preview lifecycle.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// State is the visible preview state. Columns is only set in PhaseSuccess and
// Err only in PhaseFailed.
type State struct {
	Phase   Phase
	Key     string
	Columns []Column
	Err     error
}

// Token identifies the selection a request was issued for.
type Token struct {
	Key string
}

// Tracker is the single-threaded core of the guarded fetch: it records the
// current selection and decides whether an arriving outcome may be applied.
// It is not safe for concurrent use; callers own the goroutine it runs on.
type Tracker struct {
	current string
	state   State
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Select moves to a new selection. An empty key returns to idle and needs no
// request; otherwise the tracker enters loading and returns the token the
// caller must issue exactly one fetch for.
func (t *Tracker) Select(key string) (Token, bool) {
	t.current = key
	if key == "" {
		t.state = State{Phase: PhaseIdle}
		return Token{}, false
	}
	t.state = State{Phase: PhaseLoading, Key: key}
	return Token{Key: key}, true
}

// Current returns the selection key outcomes are matched against.
func (t *Tracker) Current() string {
	return t.current
}

// Matches reports whether an outcome for tok would be applied now.
func (t *Tracker) Matches(tok Token) bool {
	return tok.Key != "" && tok.Key == t.current
}

// Resolve applies a successful response if tok still matches the current
// selection. It returns false when the response was dropped.
func (t *Tracker) Resolve(tok Token, table *Table) bool {
	if !t.Matches(tok) {
		return false
	}
	cols := []Column{}
	if table != nil && table.Columns != nil {
		cols = make([]Column, len(table.Columns))
		copy(cols, table.Columns)
	}
	t.state = State{Phase: PhaseSuccess, Key: tok.Key, Columns: cols}
	return true
}

// Reject applies a failure if tok still matches the current selection.
func (t *Tracker) Reject(tok Token, err error) bool {
	if !t.Matches(tok) {
		return false
	}
	t.state = State{Phase: PhaseFailed, Key: tok.Key, Err: err}
	return true
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}
