package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const eventBuffer = 16

// Listener is called with every state the loader publishes. Listeners run on
// the loader goroutine, one at a time, in publication order.
type Listener func(State)

// Option configures a Loader.
type Option func(*Loader)

// WithDiagnostics sets the collaborator that receives failure messages.
func WithDiagnostics(d Diagnostics) Option {
	return func(l *Loader) { l.diag = d }
}

// WithListener registers a listener before the loader starts.
func WithListener(fn Listener) Option {
	return func(l *Loader) { l.listeners = append(l.listeners, fn) }
}

// Loader owns the request lifecycle for a changing selection. Every request
// is allowed to finish; only the outcome matching the selection current at
// arrival time is applied. All transitions happen on one goroutine.
type Loader struct {
	fetcher Fetcher
	diag    Diagnostics
	tracker *Tracker

	events chan any
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	snapshot  State
	listeners []Listener
	closeOnce sync.Once

	// notifying is set while listeners run on the loop goroutine.
	notifying atomic.Bool
}

type selectEvent struct{ key string }

type refreshEvent struct{}

type outcomeEvent struct {
	tok   Token
	table *Table
	err   error
}

// NewLoader creates a Loader and starts its event loop. Close must be called
// to release it.
func NewLoader(fetcher Fetcher, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		fetcher: fetcher,
		tracker: NewTracker(),
		events:  make(chan any, eventBuffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Select changes the current selection. Selecting the key that is already
// current does nothing; use Refresh to fetch it again.
func (l *Loader) Select(key string) {
	l.post(selectEvent{key: key})
}

// Refresh issues a new request for the current selection, if any.
func (l *Loader) Refresh() {
	l.post(refreshEvent{})
}

// Subscribe adds a listener. It only sees states published after it was added.
func (l *Loader) Subscribe(fn Listener) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// State returns the last published state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Close stops the loader. Outcomes arriving afterwards are discarded and
// in-flight requests see a cancelled context. Close may be called from a
// listener; it then returns without waiting for the loop to exit, and no
// further listener is invoked.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		if l.notifying.Load() {
			return
		}
		<-l.done
	})
	return nil
}

func (l *Loader) post(ev any) {
	select {
	case <-l.ctx.Done():
	case l.events <- ev:
	}
}

func (l *Loader) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case ev := <-l.events:
			// Close may race with a queued event; disposal wins.
			if l.ctx.Err() != nil {
				return
			}
			l.handle(ev)
		}
	}
}

func (l *Loader) handle(ev any) {
	switch e := ev.(type) {
	case selectEvent:
		if e.key == l.tracker.Current() {
			return
		}
		l.begin(e.key)
	case refreshEvent:
		if key := l.tracker.Current(); key != "" {
			l.begin(key)
		}
	case outcomeEvent:
		l.complete(e)
	}
}

func (l *Loader) begin(key string) {
	tok, ok := l.tracker.Select(key)
	l.publish()
	if !ok {
		return
	}
	go l.fetch(tok)
}

func (l *Loader) fetch(tok Token) {
	table, err := l.fetcher.TableMetadata(l.ctx, tok.Key)
	if err == nil {
		err = CheckShape(tok.Key, table)
	}
	l.post(outcomeEvent{tok: tok, table: table, err: err})
}

func (l *Loader) complete(e outcomeEvent) {
	if e.err != nil {
		if !l.tracker.Reject(e.tok, e.err) {
			slog.Debug("dropping failure for superseded selection", "table", e.tok.Key, "error", e.err)
			return
		}
		l.report(e.tok, e.err)
		l.publish()
		return
	}

	if !l.tracker.Resolve(e.tok, e.table) {
		slog.Debug("dropping response for superseded selection", "table", e.tok.Key)
		return
	}
	l.publish()
}

func (l *Loader) report(tok Token, err error) {
	msg := FailureText(tok.Key, err)
	if l.diag != nil {
		l.diag.Error(msg)
	}
}

// FailureText logs a failed fetch for key and returns the message to show
// the user. Shape errors are shown verbatim.
func FailureText(key string, err error) string {
	if IsShapeError(err) {
		slog.Error("table metadata response failed validation", "table", key, "error", err)
		return err.Error()
	}
	slog.Warn("table metadata request failed", "table", key, "error", err)
	return fmt.Sprintf("There was an error loading metadata for table %s", key)
}

func (l *Loader) publish() {
	st := l.tracker.State()

	l.mu.Lock()
	l.snapshot = st
	listeners := make([]Listener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	l.notifying.Store(true)
	defer l.notifying.Store(false)
	for _, fn := range listeners {
		if l.ctx.Err() != nil {
			return
		}
		fn(st)
	}
}

// CheckShape validates what a Fetcher returned without an error.
func CheckShape(key string, table *Table) error {
	if table == nil {
		return &ShapeError{Path: key, Reason: "empty response"}
	}
	if table.Name == "" {
		return &ShapeError{Path: key, Reason: "missing table name"}
	}
	return nil
}
