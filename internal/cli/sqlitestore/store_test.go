package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/source-wizard/pkg/selection"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sel := &selection.Selection{
		Name:      "Shopify",
		DB:        &selection.Database{ID: 3, Name: "examples"},
		Schema:    "public",
		TableName: "orders",
	}
	require.NoError(t, s.Save(ctx, sel))
	sel.TableName = "customers"
	require.NoError(t, s.Save(ctx, sel))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sel, got)

	require.NoError(t, s.Save(ctx, nil))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
