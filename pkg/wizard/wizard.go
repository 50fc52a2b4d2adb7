// Package wizard assembles the add-source wizard: the selection cell, the
// guarded metadata loader, the preview adapter and the action footer.
package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/preview"
	"github.com/txn2/source-wizard/pkg/selection"
	"github.com/txn2/source-wizard/pkg/telemetry"
)

// MetadataClient fetches column metadata for a table in a database.
type MetadataClient interface {
	TableMetadata(ctx context.Context, databaseID int64, schema, table string) (*metadata.Table, error)
}

// Config holds the wizard's collaborators.
type Config struct {
	Metadata    MetadataClient
	Creator     footer.Creator
	Telemetry   telemetry.Logger
	Navigator   footer.Navigator
	Diagnostics metadata.Diagnostics

	// Initial is the selection the wizard starts with, typically the one
	// persisted by a previous session.
	Initial *selection.Selection

	// Existing lists table names that already have datasets.
	Existing []string

	// Store, when set, receives every new selection. The wizard never
	// reads from it.
	Store selection.Store

	// OnUpdate, when set, is registered before the initial load starts.
	OnUpdate func(preview.Model)
}

// Wizard is one running instance of the add-source flow.
type Wizard struct {
	cfg     Config
	cell    *selection.Cell
	loader  *metadata.Loader
	adapter *preview.Adapter
	footer  *footer.Footer

	hasColumns atomic.Bool

	mu        sync.RWMutex
	sel       *selection.Selection
	listeners []func(preview.Model)
}

// Key returns the key the metadata preview follows for sel: the table name,
// once a database is chosen. Anything less yields the empty key, which
// leaves the preview idle without a request.
func Key(sel *selection.Selection) string {
	if sel.DatabaseID() <= 0 {
		return ""
	}
	return sel.TableName
}

// Follow moves t to the key for sel and returns the token to fetch, if any.
// Following the key already current does nothing.
func Follow(t *metadata.Tracker, sel *selection.Selection) (metadata.Token, bool) {
	key := Key(sel)
	if key == t.Current() {
		return metadata.Token{}, false
	}
	return t.Select(key)
}

// New creates a wizard and starts loading metadata for the initial
// selection. Close must be called to release it.
func New(cfg Config) (*Wizard, error) {
	if cfg.Metadata == nil {
		return nil, errors.New("wizard: metadata client is required")
	}
	if cfg.Creator == nil {
		return nil, errors.New("wizard: dataset creator is required")
	}

	w := &Wizard{
		cfg: cfg,
		sel: cfg.Initial.Clone(),
	}
	if cfg.OnUpdate != nil {
		w.listeners = append(w.listeners, cfg.OnUpdate)
	}
	w.adapter = preview.NewAdapter(w.hasColumns.Store)
	w.footer = footer.New(cfg.Creator, cfg.Telemetry, cfg.Navigator, cfg.Diagnostics)
	w.loader = metadata.NewLoader(
		metadata.FetcherFunc(w.fetch),
		metadata.WithDiagnostics(cfg.Diagnostics),
		metadata.WithListener(w.adapter.Apply),
		metadata.WithListener(w.notify),
	)

	w.cell = selection.NewCell("")
	w.cell.OnChange(w.loader.Select)
	w.cell.Set(Key(w.sel))
	return w, nil
}

// Dispatch applies a reducer action to the selection.
func (w *Wizard) Dispatch(ctx context.Context, a selection.Action) {
	w.mu.Lock()
	w.sel = selection.Reduce(w.sel, a)
	sel := w.sel.Clone()
	w.mu.Unlock()

	if w.cfg.Store != nil {
		if err := w.cfg.Store.Save(ctx, sel); err != nil {
			slog.Warn("failed to persist selection", "error", err)
		}
	}
	w.cell.Set(Key(sel))
}

// Selection returns a copy of the current selection.
func (w *Wizard) Selection() *selection.Selection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sel.Clone()
}

// Refresh fetches the current table metadata again.
func (w *Wizard) Refresh() {
	w.loader.Refresh()
}

// Preview returns the current preview model.
func (w *Wizard) Preview() preview.Model {
	return w.adapter.Model()
}

// State returns the loader state behind the preview.
func (w *Wizard) State() metadata.State {
	return w.loader.State()
}

// HasColumns reports whether the selected table loaded with columns.
func (w *Wizard) HasColumns() bool {
	return w.hasColumns.Load()
}

// CanCreate reports whether the create action is enabled.
func (w *Wizard) CanCreate() bool {
	return footer.Enabled(w.Selection(), w.HasColumns(), w.cfg.Existing)
}

// Tooltip returns the hint for a disabled create action.
func (w *Wizard) Tooltip() string {
	return footer.Tooltip(w.Selection())
}

// Create creates the dataset for the current selection.
func (w *Wizard) Create(ctx context.Context) (int64, error) {
	if !w.CanCreate() {
		return 0, nil
	}
	return w.footer.Confirm(ctx, w.Selection())
}

// TestSource runs the "Test source" footer action.
func (w *Wizard) TestSource(ctx context.Context) (int64, error) {
	return w.Create(ctx)
}

// SaveSource runs the "Save source" footer action.
func (w *Wizard) SaveSource(ctx context.Context) (int64, error) {
	return w.Create(ctx)
}

// Cancel logs the cancellation and navigates back.
func (w *Wizard) Cancel(ctx context.Context) {
	w.footer.Cancel(ctx, w.Selection())
}

// OnUpdate registers fn to receive the preview model after every loader
// transition. fn runs on the loader goroutine.
func (w *Wizard) OnUpdate(fn func(preview.Model)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Close stops the loader. No metadata is applied afterwards.
func (w *Wizard) Close() error {
	return w.loader.Close()
}

func (w *Wizard) fetch(ctx context.Context, name string) (*metadata.Table, error) {
	sel := w.Selection()
	return w.cfg.Metadata.TableMetadata(ctx, sel.DatabaseID(), schemaOf(sel), name)
}

func (w *Wizard) notify(metadata.State) {
	w.mu.RLock()
	listeners := make([]func(preview.Model), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.RUnlock()

	m := w.adapter.Model()
	for _, fn := range listeners {
		fn(m)
	}
}

func schemaOf(sel *selection.Selection) string {
	if sel == nil {
		return ""
	}
	return sel.Schema
}
