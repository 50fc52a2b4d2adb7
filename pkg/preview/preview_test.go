package preview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/txn2/source-wizard/pkg/metadata"
)

func TestAdapter_ReportsOnEveryPhase(t *testing.T) {
	var reports []bool
	a := NewAdapter(func(has bool) { reports = append(reports, has) })

	a.Apply(metadata.State{Phase: metadata.PhaseLoading, Key: "orders"})
	assert.Equal(t, Model{TableName: "orders", Loading: true}, a.Model())

	cols := []metadata.Column{{Name: "id", Type: "INTEGER"}}
	a.Apply(metadata.State{Phase: metadata.PhaseSuccess, Key: "orders", Columns: cols})
	assert.Equal(t, Model{TableName: "orders", Columns: cols}, a.Model())

	a.Apply(metadata.State{Phase: metadata.PhaseFailed, Key: "orders", Err: errors.New("x")})
	assert.True(t, a.Model().HasError)

	a.Apply(metadata.State{Phase: metadata.PhaseIdle})
	assert.Equal(t, Model{}, a.Model())

	assert.Equal(t, []bool{false, true, false, false}, reports)
}

func TestAdapter_EmptySuccessReportsFalse(t *testing.T) {
	var last *bool
	a := NewAdapter(func(has bool) { last = &has })

	a.Apply(metadata.State{Phase: metadata.PhaseSuccess, Key: "empty", Columns: []metadata.Column{}})
	if assert.NotNil(t, last) {
		assert.False(t, *last)
	}
	assert.False(t, a.Model().Loading)
	assert.False(t, a.Model().HasError)
}

func TestAdapter_NilReport(t *testing.T) {
	a := NewAdapter(nil)
	a.Apply(metadata.State{Phase: metadata.PhaseLoading, Key: "orders"})
	assert.True(t, a.Model().Loading)
}

func TestRender(t *testing.T) {
	assert.Equal(t, SelectTableText, Render(Model{}))
	assert.Equal(t, LoadingText, Render(Model{TableName: "t", Loading: true}))
	assert.Equal(t, ErrorText, Render(Model{TableName: "t", HasError: true}))
	assert.Contains(t, Render(Model{TableName: "t"}), NoColumnsText)

	out := Render(Model{TableName: "orders", Columns: []metadata.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "total", Type: "NUMERIC(10,2)", Nullable: true},
	}})
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "NUMERIC(10,2)")
}
