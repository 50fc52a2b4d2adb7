package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/txn2/source-wizard/pkg/sources"
)

const sourcesPath = "/api/v1/sources/"

// SourceList is one page of sources.
type SourceList struct {
	Result []sources.Source `json:"result"`
	Count  int              `json:"count"`
}

// ListSources lists sources matching filter.
func (c *Client) ListSources(ctx context.Context, filter sources.ListFilter) (*SourceList, error) {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.OrderBy != "" {
		q.Set("order_column", filter.OrderBy)
		dir := "asc"
		if filter.OrderDesc {
			dir = "desc"
		}
		q.Set("order_direction", dir)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var out SourceList
	if err := c.do(ctx, http.MethodGet, sourcesPath, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSource returns one source.
func (c *Client) GetSource(ctx context.Context, id int64) (*sources.Source, error) {
	var resp struct {
		Result sources.Source `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, sourcePath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// CreateSource creates a source from panel values.
func (c *Client) CreateSource(ctx context.Context, req sources.CreateRequest) (*sources.Source, error) {
	var resp struct {
		ID     int64          `json:"id"`
		Result sources.Source `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, sourcesPath, nil, req, &resp); err != nil {
		return nil, err
	}
	resp.Result.ID = resp.ID
	return &resp.Result, nil
}

// UpdateSource changes a source.
func (c *Client) UpdateSource(ctx context.Context, id int64, req sources.UpdateRequest) (*sources.Source, error) {
	var resp struct {
		Result sources.Source `json:"result"`
	}
	if err := c.do(ctx, http.MethodPut, sourcePath(id), nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// DeleteSource deletes a source.
func (c *Client) DeleteSource(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, sourcePath(id), nil, nil, nil)
}

// SourcesChangedSince returns the caller's sources changed at or after
// lastUpdatedMS, a Unix timestamp in milliseconds.
func (c *Client) SourcesChangedSince(ctx context.Context, lastUpdatedMS int64) ([]sources.Source, error) {
	q := url.Values{"last_updated_ms": {strconv.FormatInt(lastUpdatedMS, 10)}}
	var resp struct {
		Result []sources.Source `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, sourcesPath+"changed_since/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// ExploreURL asks the server for the explore route of a source.
func (c *Client) ExploreURL(ctx context.Context, id int64) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, sourcePath(id)+"explore_url/", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func sourcePath(id int64) string {
	return fmt.Sprintf("%s%d/", sourcesPath, id)
}
