package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/txn2/source-wizard/pkg/datasets"
	"github.com/txn2/source-wizard/pkg/footer"
)

const datasetPath = "/api/v1/dataset/"

// CreateDataset creates a dataset and returns its id. A response without an
// id yields 0.
func (c *Client) CreateDataset(ctx context.Context, req footer.CreateDatasetRequest) (int64, error) {
	body := map[string]any{
		"database":   req.Database,
		"catalog":    req.Catalog,
		"schema":     req.Schema,
		"table_name": req.TableName,
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, datasetPath, nil, body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// ListDatasets lists datasets, optionally restricted to one database.
func (c *Client) ListDatasets(ctx context.Context, databaseID int64) ([]datasets.Dataset, error) {
	var q url.Values
	if databaseID > 0 {
		q = url.Values{"database": {strconv.FormatInt(databaseID, 10)}}
	}
	var resp struct {
		Result []datasets.Dataset `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, datasetPath, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// DatasetNames returns the table names that already have datasets.
func (c *Client) DatasetNames(ctx context.Context, databaseID int64) ([]string, error) {
	list, err := c.ListDatasets(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.TableName
	}
	return names, nil
}

var _ footer.Creator = (*Client)(nil)
