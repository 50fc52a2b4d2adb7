package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type reply struct {
	table *Table
	err   error
}

type pendingCall struct {
	name  string
	reply chan reply
}

// scriptedFetcher hands every request to the test, which answers it whenever
// and in whatever order it likes.
type scriptedFetcher struct {
	calls chan pendingCall
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan pendingCall, 16)}
}

func (f *scriptedFetcher) TableMetadata(ctx context.Context, name string) (*Table, error) {
	c := pendingCall{name: name, reply: make(chan reply, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.table, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *scriptedFetcher) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for fetch")
		return pendingCall{}
	}
}

type recorder struct {
	ch chan State
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan State, 64)}
}

func (r *recorder) listen(st State) { r.ch <- st }

func (r *recorder) next(t *testing.T) State {
	t.Helper()
	select {
	case st := <-r.ch:
		return st
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for state")
		return State{}
	}
}

type diagSink struct {
	mu   sync.Mutex
	msgs []string
}

func (d *diagSink) Error(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *diagSink) messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.msgs...)
}

func columns(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: "VARCHAR"}
	}
	return cols
}

func newTestLoader(t *testing.T) (*Loader, *scriptedFetcher, *recorder, *diagSink) {
	t.Helper()
	f := newScriptedFetcher()
	rec := newRecorder()
	diag := &diagSink{}
	l := NewLoader(f, WithDiagnostics(diag), WithListener(rec.listen))
	t.Cleanup(func() { _ = l.Close() })
	return l, f, rec, diag
}

func TestLoader_SuccessfulFetch(t *testing.T) {
	l, f, rec, diag := newTestLoader(t)

	l.Select("orders")
	assert.Equal(t, State{Phase: PhaseLoading, Key: "orders"}, rec.next(t))

	call := f.next(t)
	assert.Equal(t, "orders", call.name)
	call.reply <- reply{table: &Table{Name: "orders", Columns: columns("id", "total")}}

	st := rec.next(t)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, columns("id", "total"), st.Columns)
	assert.Equal(t, st, l.State())
	assert.Empty(t, diag.messages())
}

func TestLoader_EmptySelectionGoesIdleWithoutRequest(t *testing.T) {
	l, f, rec, _ := newTestLoader(t)

	l.Select("orders")
	rec.next(t)
	f.next(t)

	l.Select("")
	assert.Equal(t, State{Phase: PhaseIdle}, rec.next(t))

	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch for %q", c.name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoader_LastSelectionWinsRegardlessOfArrivalOrder(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}

	for _, order := range orders {
		l, f, rec, diag := newTestLoader(t)

		calls := make([]pendingCall, len(keys))
		for i, k := range keys {
			l.Select(k)
			calls[i] = f.next(t)
		}
		for range keys {
			rec.next(t) // loading states
		}

		for _, idx := range order {
			c := calls[idx]
			c.reply <- reply{table: &Table{Name: c.name, Columns: columns(c.name + "_col")}}
		}

		st := rec.next(t)
		assert.Equal(t, PhaseSuccess, st.Phase)
		assert.Equal(t, "d", st.Key)
		assert.Equal(t, columns("d_col"), st.Columns)

		// Flush the loop: anything stale would have been published before this.
		l.Refresh()
		assert.Equal(t, State{Phase: PhaseLoading, Key: "d"}, rec.next(t))
		assert.Empty(t, diag.messages())
		_ = l.Close()
	}
}

func TestLoader_StaleFailureIsSilent(t *testing.T) {
	l, f, rec, diag := newTestLoader(t)

	l.Select("shopify")
	stale := f.next(t)
	l.Select("amazon")
	current := f.next(t)
	rec.next(t)
	rec.next(t)

	stale.reply <- reply{err: errors.New("connection reset")}

	l.Refresh()
	assert.Equal(t, State{Phase: PhaseLoading, Key: "amazon"}, rec.next(t))
	refreshed := f.next(t)
	assert.Empty(t, diag.messages())

	current.reply <- reply{err: errors.New("timeout")}
	st := rec.next(t)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Len(t, diag.messages(), 1)

	refreshed.reply <- reply{table: &Table{Name: "amazon", Columns: columns("y")}}
	assert.Equal(t, PhaseSuccess, rec.next(t).Phase)
}

func TestLoader_ShapeFailureReported(t *testing.T) {
	l, f, rec, diag := newTestLoader(t)

	l.Select("orders")
	rec.next(t)
	f.next(t).reply <- reply{table: &Table{}}

	st := rec.next(t)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.True(t, IsShapeError(st.Err))
	msgs := diag.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "does not match the table metadata shape")
}

func TestLoader_TransportFailureReported(t *testing.T) {
	l, f, rec, diag := newTestLoader(t)

	l.Select("orders")
	rec.next(t)
	f.next(t).reply <- reply{err: errors.New("502 bad gateway")}

	st := rec.next(t)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.False(t, IsShapeError(st.Err))
	msgs := diag.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "orders")
}

func TestLoader_ReselectSameKeyIsNoop(t *testing.T) {
	l, f, rec, _ := newTestLoader(t)

	l.Select("orders")
	rec.next(t)
	call := f.next(t)

	l.Select("orders")
	call.reply <- reply{table: &Table{Name: "orders"}}

	st := rec.next(t)
	assert.Equal(t, PhaseSuccess, st.Phase)
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected second fetch for %q", c.name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoader_NoUpdatesAfterClose(t *testing.T) {
	f := newScriptedFetcher()
	rec := newRecorder()
	l := NewLoader(f, WithListener(rec.listen))

	l.Select("orders")
	rec.next(t)
	call := f.next(t)

	require.NoError(t, l.Close())
	call.reply <- reply{table: &Table{Name: "orders", Columns: columns("id")}}

	select {
	case st := <-rec.ch:
		t.Fatalf("state published after close: %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, PhaseLoading, l.State().Phase)

	// Operations after close are no-ops.
	l.Select("other")
	l.Refresh()
	require.NoError(t, l.Close())
}

func TestLoader_CloseFromListener(t *testing.T) {
	f := newScriptedFetcher()
	closed := make(chan error, 1)
	after := newRecorder()

	l := NewLoader(f)
	l.Subscribe(func(st State) {
		if st.Phase == PhaseSuccess {
			closed <- l.Close()
		}
	})
	l.Subscribe(after.listen)

	l.Select("orders")
	after.next(t)
	f.next(t).reply <- reply{table: &Table{Name: "orders", Columns: columns("id")}}

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Close called from a listener did not return")
	}

	select {
	case st := <-after.ch:
		t.Fatalf("listener invoked after close: %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, l.Close())
}

func TestLoader_Subscribe(t *testing.T) {
	l, f, rec, _ := newTestLoader(t)
	extra := newRecorder()
	l.Subscribe(extra.listen)

	l.Select("orders")
	assert.Equal(t, PhaseLoading, rec.next(t).Phase)
	assert.Equal(t, PhaseLoading, extra.next(t).Phase)
	f.next(t).reply <- reply{table: &Table{Name: "orders"}}
	assert.Equal(t, PhaseSuccess, extra.next(t).Phase)
}

func TestFetcherFunc(t *testing.T) {
	fn := FetcherFunc(func(_ context.Context, name string) (*Table, error) {
		return &Table{Name: name}, nil
	})
	table, err := fn.TableMetadata(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", table.Name)
}

func TestCheckShapeAndFailureText(t *testing.T) {
	assert.True(t, IsShapeError(CheckShape("orders", nil)))
	assert.True(t, IsShapeError(CheckShape("orders", &Table{})))
	assert.NoError(t, CheckShape("orders", &Table{Name: "orders"}))

	shape := &ShapeError{Path: "/api/v1/database/1/table_metadata/", Reason: "missing table name"}
	assert.Equal(t, shape.Error(), FailureText("orders", shape))
	assert.Equal(t, "There was an error loading metadata for table orders", FailureText("orders", errors.New("timeout")))
}
