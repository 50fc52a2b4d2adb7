// Package tui is the terminal front end of the add-source wizard.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/txn2/source-wizard/pkg/client"
	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/preview"
	"github.com/txn2/source-wizard/pkg/selection"
	"github.com/txn2/source-wizard/pkg/source"
	"github.com/txn2/source-wizard/pkg/telemetry"
	"github.com/txn2/source-wizard/pkg/wizard"
)

// Wizard steps.
const (
	stepSource = iota
	stepDatabase
	stepTable
	stepPreview
)

// API is what the wizard needs from the server.
type API interface {
	Databases(ctx context.Context) ([]client.Database, error)
	DatasetNames(ctx context.Context, databaseID int64) ([]string, error)
	TableMetadata(ctx context.Context, databaseID int64, schema, table string) (*metadata.Table, error)
	footer.Creator
}

// Config holds the model's collaborators.
type Config struct {
	API       API
	Telemetry telemetry.Logger
	Store     selection.Store
	Initial   *selection.Selection
}

// Result is how the wizard ended.
type Result struct {
	mu        sync.Mutex
	DatasetID int64
	Redirect  string
	Canceled  bool
}

// Push records the route to open after a dataset is created.
func (r *Result) Push(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Redirect = path
}

// Back records that the user left the wizard.
func (r *Result) Back() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Canceled = true
}

// notices collects diagnostics raised outside Update.
type notices struct {
	mu   sync.Mutex
	last string
}

func (n *notices) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
}

func (n *notices) take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg := n.last
	n.last = ""
	return msg
}

type databasesMsg struct {
	dbs []client.Database
	err error
}

type existingMsg struct{ names []string }

type metadataMsg struct {
	tok   metadata.Token
	table *metadata.Table
	err   error
}

type createdMsg struct {
	id  int64
	err error
}

// Model is the bubbletea model of the wizard.
type Model struct {
	cfg     Config
	ctx     context.Context
	step    int
	cursor  int
	sources []string

	sel      *selection.Selection
	dbs      []client.Database
	existing []string

	schema textinput.Model
	table  textinput.Model

	tracker *metadata.Tracker
	adapter *preview.Adapter
	footer  *footer.Footer
	notices *notices
	result  *Result

	spinner spinner.Model
	notice  string
	busy    bool
	width   int
}

// New creates the wizard model. ctx bounds every request it makes.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.NoopLogger{}
	}

	schema := textinput.New()
	schema.Placeholder = "public"
	schema.Prompt = "Schema: "
	table := textinput.New()
	table.Placeholder = "table name"
	table.Prompt = "Table:  "

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		cfg:     cfg,
		ctx:     ctx,
		sources: source.Names(),
		sel:     cfg.Initial.Clone(),
		schema:  schema,
		table:   table,
		tracker: metadata.NewTracker(),
		adapter: preview.NewAdapter(nil),
		notices: &notices{},
		result:  &Result{},
		spinner: s,
	}
	m.footer = footer.New(cfg.API, cfg.Telemetry, m.result, m.notices)
	if m.sel != nil {
		m.schema.SetValue(m.sel.Schema)
		m.table.SetValue(m.sel.TableName)
	}
	return m
}

// Result returns how the wizard ended. It is shared by every copy of m.
func (m Model) Result() *Result {
	return m.result
}

// Init loads the database list and starts the fetch for the initial
// selection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadDatabases(), m.follow())
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case databasesMsg:
		if msg.err != nil {
			m.notice = "Unable to load databases: " + msg.err.Error()
			return m, nil
		}
		m.dbs = msg.dbs
		return m, nil

	case existingMsg:
		m.existing = msg.names
		return m, nil

	case metadataMsg:
		return m.applyMetadata(msg), nil

	case createdMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = m.notices.take()
			return m, nil
		}
		if msg.id > 0 {
			m.result.mu.Lock()
			m.result.DatasetID = msg.id
			m.result.mu.Unlock()
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applyMetadata(msg metadataMsg) Model {
	if msg.err == nil {
		msg.err = metadata.CheckShape(msg.tok.Key, msg.table)
	}
	if msg.err != nil {
		if m.tracker.Reject(msg.tok, msg.err) {
			m.notice = metadata.FailureText(msg.tok.Key, msg.err)
			m.adapter.Apply(m.tracker.State())
		}
		return m
	}
	if m.tracker.Resolve(msg.tok, msg.table) {
		m.adapter.Apply(m.tracker.State())
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if msg.Type == tea.KeyEsc {
		f, ctx, sel := m.footer, m.ctx, m.sel.Clone()
		return m, tea.Sequence(func() tea.Msg {
			f.Cancel(ctx, sel)
			return nil
		}, tea.Quit)
	}

	switch m.step {
	case stepSource:
		i, ok := m.move(msg, len(m.sources))
		if !ok {
			return m, nil
		}
		m.step = stepDatabase
		m.cursor = 0
		return m, m.dispatch(selection.Action{
			Type:    selection.ActionSelectSource,
			Payload: selection.Selection{Name: m.sources[i]},
		})
	case stepDatabase:
		i, ok := m.move(msg, len(m.dbs))
		if !ok {
			return m, nil
		}
		db := m.dbs[i]
		m.step = stepTable
		m.schema.Focus()
		if m.schema.Value() == "" {
			m.schema.SetValue(db.DefaultSchema)
		}
		return m, tea.Batch(
			m.dispatch(selection.Action{
				Type:    selection.ActionSelectSource,
				Payload: selection.Selection{DB: &selection.Database{ID: db.ID, Name: db.Name}},
			}),
			m.loadExisting(db.ID),
		)
	case stepTable:
		return m.editTable(msg)
	default:
		return m.previewKey(msg)
	}
}

// move moves the cursor over n entries. It returns the chosen index on enter.
func (m *Model) move(msg tea.KeyMsg, n int) (int, bool) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "enter":
		return m.cursor, n > 0
	}
	return 0, false
}

func (m Model) editTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		if m.schema.Focused() {
			m.schema.Blur()
			m.table.Focus()
		} else {
			m.table.Blur()
			m.schema.Focus()
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.table.Value())
		if name == "" {
			m.notice = footer.DisabledTooltip
			return m, nil
		}
		m.step = stepPreview
		m.notice = ""
		return m, m.dispatch(selection.Action{
			Type: selection.ActionSelectSource,
			Payload: selection.Selection{
				Schema:    strings.TrimSpace(m.schema.Value()),
				TableName: name,
			},
		})
	}

	var cmd tea.Cmd
	if m.schema.Focused() {
		m.schema, cmd = m.schema.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m Model) previewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "c":
		if m.busy || !m.canCreate() {
			return m, nil
		}
		m.busy = true
		return m, m.create()
	case "r":
		return m, m.refresh()
	case "b", "backspace":
		m.step = stepTable
		m.table.Focus()
		return m, nil
	}
	return m, nil
}

func (m Model) canCreate() bool {
	return footer.Enabled(m.sel, m.adapter.Model().HasColumns(), m.existing)
}

// dispatch applies a to the selection, persists it and follows the new key.
func (m *Model) dispatch(a selection.Action) tea.Cmd {
	m.sel = selection.Reduce(m.sel, a)
	return tea.Batch(m.save(m.sel.Clone()), m.follow())
}

// follow moves the tracker to the current key and returns the fetch for it.
func (m *Model) follow() tea.Cmd {
	tok, ok := wizard.Follow(m.tracker, m.sel)
	m.adapter.Apply(m.tracker.State())
	return m.fetch(tok, ok)
}

// refresh fetches the current key again.
func (m *Model) refresh() tea.Cmd {
	tok, ok := m.tracker.Select(wizard.Key(m.sel))
	m.adapter.Apply(m.tracker.State())
	return m.fetch(tok, ok)
}

func (m *Model) fetch(tok metadata.Token, ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	api, ctx := m.cfg.API, m.ctx
	dbID, schema := m.sel.DatabaseID(), m.sel.Schema
	return func() tea.Msg {
		table, err := api.TableMetadata(ctx, dbID, schema, tok.Key)
		return metadataMsg{tok: tok, table: table, err: err}
	}
}

func (m Model) save(sel *selection.Selection) tea.Cmd {
	if m.cfg.Store == nil {
		return nil
	}
	store, ctx := m.cfg.Store, m.ctx
	return func() tea.Msg {
		if err := store.Save(ctx, sel); err != nil {
			slog.Warn("failed to persist selection", "error", err)
		}
		return nil
	}
}

func (m Model) loadDatabases() tea.Cmd {
	api, ctx := m.cfg.API, m.ctx
	return func() tea.Msg {
		dbs, err := api.Databases(ctx)
		return databasesMsg{dbs: dbs, err: err}
	}
}

func (m Model) loadExisting(dbID int64) tea.Cmd {
	api, ctx := m.cfg.API, m.ctx
	return func() tea.Msg {
		names, err := api.DatasetNames(ctx, dbID)
		if err != nil {
			return existingMsg{}
		}
		return existingMsg{names: names}
	}
}

func (m Model) create() tea.Cmd {
	f, ctx, sel := m.footer, m.ctx, m.sel.Clone()
	return func() tea.Msg {
		id, err := f.Confirm(ctx, sel)
		return createdMsg{id: id, err: err}
	}
}

// String describes the result for printing after the program exits.
func (r *Result) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.DatasetID > 0:
		return fmt.Sprintf("Created dataset %d. Continue at %s", r.DatasetID, r.Redirect)
	case r.Canceled:
		return "Canceled."
	default:
		return ""
	}
}
