// Package footer implements the dataset wizard's action footer: whether the
// create action is enabled, what confirming does, and what cancelling logs.
package footer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"

	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/selection"
	"github.com/txn2/source-wizard/pkg/telemetry"
)

// ChartAddPath is the route pushed after a dataset is created.
const ChartAddPath = "/chart/add/"

// DisabledTooltip is shown on the create action when no table is selected.
const DisabledTooltip = "Select a source to add."

// CreateErrorText is the notification shown when dataset creation fails.
const CreateErrorText = "There was an error creating the dataset. Please try again."

// cancelActions is indexed by the number of populated selection fields.
var cancelActions = [...]string{
	telemetry.ActionDatasetCreationEmptyCancellation,
	telemetry.ActionDatasetCreationDatabaseCancellation,
	telemetry.ActionDatasetCreationSchemaCancellation,
	telemetry.ActionDatasetCreationTableCancellation,
}

// CreateDatasetRequest is the body sent to the dataset creation endpoint.
type CreateDatasetRequest struct {
	Database  int64  `json:"database"`
	Catalog   string `json:"catalog,omitempty"`
	Schema    string `json:"schema,omitempty"`
	TableName string `json:"table_name"`
}

// Creator creates datasets. A zero id means nothing was created.
type Creator interface {
	CreateDataset(ctx context.Context, req CreateDatasetRequest) (int64, error)
}

// Navigator moves the user between routes.
type Navigator interface {
	Push(path string)
	Back()
}

// Footer performs the footer actions against its collaborators.
type Footer struct {
	creator   Creator
	telemetry telemetry.Logger
	nav       Navigator
	diag      metadata.Diagnostics
}

// New creates a Footer. A nil telemetry logger discards events and a nil
// diagnostics sink drops notifications.
func New(creator Creator, tl telemetry.Logger, nav Navigator, diag metadata.Diagnostics) *Footer {
	if tl == nil {
		tl = telemetry.NoopLogger{}
	}
	return &Footer{creator: creator, telemetry: tl, nav: nav, diag: diag}
}

// Enabled reports whether the create action may be used for sel.
func Enabled(sel *selection.Selection, hasColumns bool, existing []string) bool {
	if sel == nil || sel.TableName == "" || !hasColumns {
		return false
	}
	return !slices.Contains(existing, sel.TableName)
}

// Tooltip returns the hint shown on a disabled create action, or "" when
// no hint applies.
func Tooltip(sel *selection.Selection) string {
	if sel == nil || sel.TableName == "" {
		return DisabledTooltip
	}
	return ""
}

// ChartAddURL returns the chart creation route for a dataset table.
func ChartAddURL(table string) string {
	return ChartAddPath + "?" + url.Values{"dataset": {table}}.Encode()
}

// CancelAction returns the telemetry action for cancelling with sel.
func CancelAction(sel *selection.Selection) string {
	if sel == nil {
		return cancelActions[0]
	}
	n := 0
	if sel.DB != nil {
		n++
	}
	if sel.Schema != "" {
		n++
	}
	if sel.TableName != "" {
		n++
	}
	return cancelActions[n]
}

// Confirm creates a dataset for sel. On a positive id it logs the success
// event and navigates to chart creation. It returns the created id.
func (f *Footer) Confirm(ctx context.Context, sel *selection.Selection) (int64, error) {
	if sel == nil || sel.TableName == "" {
		return 0, nil
	}

	req := CreateDatasetRequest{
		Database:  sel.DatabaseID(),
		Catalog:   sel.Catalog,
		Schema:    sel.Schema,
		TableName: sel.TableName,
	}
	id, err := f.creator.CreateDataset(ctx, req)
	if err != nil {
		slog.Warn("dataset creation failed", "table", sel.TableName, "error", err)
		if f.diag != nil {
			f.diag.Error(CreateErrorText)
		}
		return 0, fmt.Errorf("creating dataset %s: %w", sel.TableName, err)
	}
	if id <= 0 {
		return 0, nil
	}

	f.log(ctx, telemetry.ActionDatasetCreationSuccess, sel)
	if f.nav != nil {
		f.nav.Push(ChartAddURL(sel.TableName))
	}
	return id, nil
}

// Cancel logs the cancellation event for sel and navigates back.
func (f *Footer) Cancel(ctx context.Context, sel *selection.Selection) {
	f.log(ctx, CancelAction(sel), sel)
	if f.nav != nil {
		f.nav.Back()
	}
}

func (f *Footer) log(ctx context.Context, action string, sel *selection.Selection) {
	if err := f.telemetry.Log(ctx, telemetry.NewEvent(action, sel.Payload())); err != nil {
		slog.Warn("failed to log telemetry event", "event_name", action, "error", err)
	}
}
