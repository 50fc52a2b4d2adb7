// Package preview turns metadata loader state into the render model of the
// dataset panel and tells the footer whether the selected table is usable.
package preview

import (
	"sync"

	"github.com/txn2/source-wizard/pkg/metadata"
)

// Model is what the dataset panel renders.
type Model struct {
	TableName string
	Columns   []metadata.Column
	Loading   bool
	HasError  bool
}

// HasColumns reports whether the model shows at least one column.
func (m Model) HasColumns() bool {
	return len(m.Columns) > 0
}

// Adapter maps loader states to a Model. Report, when set, is called with
// whether the selected table has columns every time a phase is entered.
type Adapter struct {
	report func(bool)

	mu    sync.RWMutex
	model Model
}

// NewAdapter creates an adapter. report may be nil.
func NewAdapter(report func(hasColumns bool)) *Adapter {
	return &Adapter{report: report}
}

// Apply consumes a loader state. It is usable directly as a metadata.Listener.
func (a *Adapter) Apply(st metadata.State) {
	m := Model{TableName: st.Key}
	switch st.Phase {
	case metadata.PhaseLoading:
		m.Loading = true
	case metadata.PhaseSuccess:
		m.Columns = st.Columns
	case metadata.PhaseFailed:
		m.HasError = true
	}

	a.mu.Lock()
	a.model = m
	a.mu.Unlock()

	if a.report != nil {
		a.report(st.Phase == metadata.PhaseSuccess && m.HasColumns())
	}
}

// Model returns the current render model.
func (a *Adapter) Model() Model {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}
