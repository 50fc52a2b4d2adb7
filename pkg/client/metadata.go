package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/txn2/source-wizard/pkg/metadata"
)

// TablePath returns the table metadata endpoint of a database.
func TablePath(databaseID int64) string {
	return fmt.Sprintf("/api/v1/database/%d/table_metadata/", databaseID)
}

// TableMetadata fetches the columns of a table. A response that is valid JSON
// but lacks a non-empty name or a columns array is a *metadata.ShapeError.
func (c *Client) TableMetadata(ctx context.Context, databaseID int64, schema, table string) (*metadata.Table, error) {
	path := TablePath(databaseID)
	q := url.Values{"name": {table}}
	if schema != "" {
		q.Set("schema", schema)
	}

	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, q, nil, &body); err != nil {
		return nil, err
	}
	return decodeTable(path, body)
}

func decodeTable(path string, body json.RawMessage) (*metadata.Table, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, &metadata.ShapeError{Path: path, Reason: "response is not an object"}
	}

	var name string
	if err := json.Unmarshal(raw["name"], &name); err != nil || name == "" {
		return nil, &metadata.ShapeError{Path: path, Reason: "name must be a non-empty string"}
	}

	colsRaw, ok := raw["columns"]
	if !ok || len(colsRaw) == 0 || colsRaw[0] != '[' {
		return nil, &metadata.ShapeError{Path: path, Reason: "columns must be an array"}
	}
	cols := []metadata.Column{}
	if err := json.Unmarshal(colsRaw, &cols); err != nil {
		return nil, &metadata.ShapeError{Path: path, Reason: "columns: " + err.Error()}
	}

	t := &metadata.Table{Name: name, Columns: cols}
	if s, ok := raw["schema"]; ok {
		_ = json.Unmarshal(s, &t.Schema) //nolint:errcheck // schema is optional
	}
	return t, nil
}

// Databases lists the warehouses the server can introspect.
func (c *Client) Databases(ctx context.Context) ([]Database, error) {
	var resp struct {
		Result []Database `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/database/", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Database is a warehouse as listed by the server.
type Database struct {
	ID            int64  `json:"id"`
	Name          string `json:"database_name"`
	DefaultSchema string `json:"default_schema,omitempty"`
}

// String implements fmt.Stringer for pickers.
func (d Database) String() string {
	return d.Name + " (" + strconv.FormatInt(d.ID, 10) + ")"
}
