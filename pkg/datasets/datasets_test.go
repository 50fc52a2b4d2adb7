package datasets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/metadata"
)

type memStore struct {
	items []Dataset
}

func (m *memStore) Create(_ context.Context, ds *Dataset) (int64, error) {
	for _, d := range m.items {
		if d.DatabaseID == ds.DatabaseID && d.Schema == ds.Schema && d.TableName == ds.TableName {
			return 0, ErrDuplicate
		}
	}
	c := *ds
	c.ID = int64(len(m.items) + 1)
	m.items = append(m.items, c)
	return c.ID, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Dataset, error) {
	var out []Dataset
	for _, d := range m.items {
		if f.DatabaseID != 0 && d.DatabaseID != f.DatabaseID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type tables map[string]bool

func (t tables) TableMetadata(_ context.Context, _ int64, _, name string) (*metadata.Table, error) {
	if !t[name] {
		return nil, errors.New("table not found")
	}
	return &metadata.Table{Name: name}, nil
}

func TestService_Create(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, tables{"orders": true})
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	ds, err := svc.Create(context.Background(), &auth.UserContext{UserID: "alice"}, footer.CreateDatasetRequest{
		Database: 1, Schema: "public", TableName: " orders ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.ID)
	assert.Equal(t, "orders", ds.TableName)
	assert.Equal(t, "alice", ds.CreatedBy)

	_, err = svc.Create(context.Background(), nil, footer.CreateDatasetRequest{Database: 1, Schema: "public", TableName: "orders"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(&memStore{}, tables{})

	_, err := svc.Create(context.Background(), nil, footer.CreateDatasetRequest{Database: 1})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(context.Background(), nil, footer.CreateDatasetRequest{TableName: "orders"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(context.Background(), nil, footer.CreateDatasetRequest{Database: 1, TableName: "missing"})
	assert.ErrorContains(t, err, "checking table missing")
}

func TestService_Names(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil)
	for _, name := range []string{"orders", "customers"} {
		_, err := svc.Create(context.Background(), nil, footer.CreateDatasetRequest{Database: 1, TableName: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(context.Background(), nil, footer.CreateDatasetRequest{Database: 2, TableName: "events"})
	require.NoError(t, err)

	names, err := svc.Names(context.Background(), Filter{DatabaseID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers"}, names)
}
