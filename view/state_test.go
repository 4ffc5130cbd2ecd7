package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	s := NewState(accounts())

	assert.Equal(t, 1, s.Page)
	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.Equal(t, LogicAnd, s.Filter.Logic)
	assert.Equal(t, []string{"Id", "Name", "Industry", "AnnualRevenue"}, s.Columns.Ordered([]string{"Id", "Name", "Industry", "AnnualRevenue"}))
}

func TestToggleSort(t *testing.T) {
	s := NewState(nil)

	s.ToggleSort("Name")
	assert.Equal(t, SortSpec{Key: "Name", Direction: Asc}, s.Sort)

	s.ToggleSort("Name")
	assert.Equal(t, SortSpec{Key: "Name", Direction: Desc}, s.Sort)

	s.ToggleSort("Name")
	assert.Equal(t, SortSpec{Key: "Name", Direction: Asc}, s.Sort)

	s.ToggleSort("Id")
	assert.Equal(t, SortSpec{Key: "Id", Direction: Asc}, s.Sort)
}

func TestConditionLifecycle(t *testing.T) {
	s := NewState(nil)

	c := s.AddCondition([]string{"Industry", "Name"})
	assert.Len(t, c.ID, 9)
	assert.Equal(t, "Industry", c.Column)
	assert.Equal(t, OpContains, c.Operator)
	assert.Empty(t, c.Value)

	other := s.AddCondition(nil)
	assert.NotEqual(t, c.ID, other.ID)
	assert.Empty(t, other.Column)

	c.Value = "tech"
	assert.True(t, s.UpdateCondition(c))
	assert.False(t, s.UpdateCondition(Condition{ID: "nope"}))
	assert.Equal(t, "tech", s.Filter.Conditions[0].Value)

	s.RemoveCondition(other.ID)
	s.RemoveCondition("nope")
	require.Len(t, s.Filter.Conditions, 1)

	p, err := s.Params()
	require.NoError(t, err)
	res, err := ComputeView(accounts(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalResults)

	s.ClearFilter()
	assert.Empty(t, s.Filter.Conditions)
}

func TestPageNavigation(t *testing.T) {
	s := NewState(nil)

	s.PrevPage()
	assert.Equal(t, 1, s.Page)

	s.NextPage(3)
	s.NextPage(3)
	s.NextPage(3)
	assert.Equal(t, 3, s.Page)

	require.NoError(t, s.SetPageSize(25))
	assert.Equal(t, 1, s.Page)
	assert.ErrorIs(t, s.SetPageSize(0), ErrInvalidPageSize)
	assert.Equal(t, 25, s.PageSize)

	s.NextPage(0)
	assert.Equal(t, 1, s.Page)
}

func TestClampPageAfterFilterShrinks(t *testing.T) {
	s := NewState(accounts())
	require.NoError(t, s.SetPageSize(2))
	s.Page = 3

	s.SetSearch("technology")
	p, err := s.Params()
	require.NoError(t, err)
	res, err := ComputeView(accounts(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Page)

	s.ClampPage(res.TotalPages)
	assert.Equal(t, 1, s.Page)

	s.ClampPage(0)
	assert.Equal(t, 1, s.Page)
}

func TestStateInvalidExpression(t *testing.T) {
	s := NewState(nil)
	s.Expression = "row.Name =="

	_, err := s.Params()
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestVisibleColumns(t *testing.T) {
	available := []string{"Id", "Name", "Email"}
	v := NewVisibleColumns(available)

	v.Toggle("Name")
	assert.False(t, v.Contains("Name"))
	assert.Equal(t, []string{"Id", "Email"}, v.Ordered(available))

	v.Toggle("Name")
	assert.Equal(t, available, v.Ordered(available))

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `["Email","Id","Name"]`, string(b))

	var decoded VisibleColumns
	require.NoError(t, json.Unmarshal([]byte(`["Name"]`), &decoded))
	assert.Equal(t, 1, decoded.Len())

	projected := Project(accounts()[:1], []string{"Name", "Id"})
	assert.Equal(t, []string{"Name", "Id"}, projected[0].Keys())
	assert.Len(t, Project(accounts(), nil), 5)
}
