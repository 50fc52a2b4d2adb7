// Package metadata loads table metadata for the currently selected table and
// guards the visible state against out-of-order responses.
package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
	Ordinal  int    `json:"ordinal,omitempty"`
}

// Table is the success shape of a metadata request.
type Table struct {
	Name    string   `json:"name"`
	Schema  string   `json:"schema,omitempty"`
	Columns []Column `json:"columns"`
}

// Fetcher retrieves metadata for a table name.
type Fetcher interface {
	TableMetadata(ctx context.Context, name string) (*Table, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, name string) (*Table, error)

// TableMetadata calls f.
func (f FetcherFunc) TableMetadata(ctx context.Context, name string) (*Table, error) {
	return f(ctx, name)
}

// Diagnostics receives human readable failure messages, typically shown as a
// non-blocking notification.
type Diagnostics interface {
	Error(msg string)
}

// ShapeError reports a response that parsed but did not have the table shape.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("the API response from %s does not match the table metadata shape: %s", e.Path, e.Reason)
}

// IsShapeError reports whether err is (or wraps) a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
