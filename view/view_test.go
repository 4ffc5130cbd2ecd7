package view

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

func accounts() []resultset.Row {
	return []resultset.Row{
		resultset.NewRow(resultset.F("Id", "001XX000003DHP0"), resultset.F("Name", "Acme Corporation"), resultset.F("Industry", "Technology"), resultset.F("AnnualRevenue", 5000000)),
		resultset.NewRow(resultset.F("Id", "001XX000003DHP1"), resultset.F("Name", "Global Industries"), resultset.F("Industry", "Manufacturing"), resultset.F("AnnualRevenue", 12000000)),
		resultset.NewRow(resultset.F("Id", "001XX000003DHP2"), resultset.F("Name", "Tech Solutions Inc"), resultset.F("Industry", "Technology"), resultset.F("AnnualRevenue", 8500000)),
		resultset.NewRow(resultset.F("Id", "001XX000003DHP3"), resultset.F("Name", "Financial Services Co"), resultset.F("Industry", "Financial Services"), resultset.F("AnnualRevenue", 15000000)),
		resultset.NewRow(resultset.F("Id", "001XX000003DHP4"), resultset.F("Name", "Healthcare Plus"), resultset.F("Industry", "Healthcare"), resultset.F("AnnualRevenue", 7500000)),
	}
}

func ids(rows []resultset.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Value("Id").Text()
	}
	return out
}

func TestComputeViewPassThrough(t *testing.T) {
	rows := accounts()

	res, err := ComputeView(rows, Params{Page: 1, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, ids(rows), ids(res.Filtered))
	assert.Equal(t, ids(rows), ids(res.Page))
	assert.Equal(t, 5, res.TotalResults)
	assert.Equal(t, 1, res.TotalPages)
}

func TestComputeViewFilterThenSortDesc(t *testing.T) {
	res, err := ComputeView(accounts(), Params{
		Filter: AdvancedFilter{Logic: LogicAnd, Conditions: []Condition{
			{ID: "c1", Column: "Industry", Operator: OpContains, Value: "tech"},
		}},
		Sort:     SortSpec{Key: "AnnualRevenue", Direction: Desc},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	require.Equal(t, 2, res.TotalResults)
	assert.Equal(t, 8500000.0, mustNum(t, res.Page[0].Value("AnnualRevenue")))
	assert.Equal(t, 5000000.0, mustNum(t, res.Page[1].Value("AnnualRevenue")))
}

func mustNum(t *testing.T, v resultset.Value) float64 {
	t.Helper()
	n, ok := v.Num()
	require.True(t, ok, "expected number, got %s", v.Kind())
	return n
}

func TestComputeViewLastPartialPage(t *testing.T) {
	rows := accounts()

	res, err := ComputeView(rows, Params{Page: 3, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []string{"001XX000003DHP4"}, ids(res.Page))
}

func TestComputeViewPageOutOfRangeIsEmpty(t *testing.T) {
	res, err := ComputeView(accounts(), Params{Page: 9, PageSize: 2})
	require.NoError(t, err)

	assert.Empty(t, res.Page)
	assert.NotNil(t, res.Page)
	assert.Equal(t, 3, res.TotalPages)
}

func TestComputeViewHugePage(t *testing.T) {
	res, err := ComputeView(accounts(), Params{Page: 1<<60 + 1, PageSize: 8})
	require.NoError(t, err)

	assert.Empty(t, res.Page)
	assert.NotNil(t, res.Page)
	assert.Equal(t, 1, res.TotalPages)

	assert.Empty(t, Paginate(accounts(), math.MaxInt, math.MaxInt))
}

func TestComputeViewHugePageSize(t *testing.T) {
	res, err := ComputeView(accounts(), Params{Page: 1, PageSize: math.MaxInt})
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalResults)
	assert.Equal(t, 1, res.TotalPages)
	assert.Len(t, res.Page, 5)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 1, TotalPages(math.MaxInt, math.MaxInt))
	assert.Equal(t, 1, TotalPages(3, math.MaxInt-1))
}

func TestComputeViewEmptySet(t *testing.T) {
	res, err := ComputeView(nil, Params{Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalResults)
	assert.Equal(t, 0, res.TotalPages)
	assert.Empty(t, res.Page)
}

func TestComputeViewRejectsInvalidPaging(t *testing.T) {
	_, err := ComputeView(accounts(), Params{Page: 1, PageSize: 0})
	assert.ErrorIs(t, err, ErrInvalidPageSize)

	_, err = ComputeView(accounts(), Params{Page: 0, PageSize: 5})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestComputeViewDoesNotMutateInput(t *testing.T) {
	rows := accounts()
	before := ids(rows)

	_, err := ComputeView(rows, Params{
		Sort:     SortSpec{Key: "Name", Direction: Desc},
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, before, ids(rows))
}

func TestPagesReconstructFilteredSet(t *testing.T) {
	rows := accounts()
	for size := 1; size <= 6; size++ {
		first, err := ComputeView(rows, Params{Page: 1, PageSize: size})
		require.NoError(t, err)

		var all []string
		for page := 1; page <= first.TotalPages; page++ {
			res, err := ComputeView(rows, Params{Page: page, PageSize: size})
			require.NoError(t, err)
			all = append(all, ids(res.Page)...)
		}
		assert.Equal(t, ids(first.Filtered), all, "page size %d", size)
	}
}

func TestAndIsSubsetOfOr(t *testing.T) {
	conds := []Condition{
		{ID: "a", Column: "Industry", Operator: OpEquals, Value: "technology"},
		{ID: "b", Column: "Name", Operator: OpStartsWith, Value: "acme"},
	}

	and := Filter(accounts(), AdvancedFilter{Logic: LogicAnd, Conditions: conds}, nil)
	or := Filter(accounts(), AdvancedFilter{Logic: LogicOr, Conditions: conds}, nil)

	assert.Equal(t, []string{"001XX000003DHP0"}, ids(and))
	assert.Equal(t, []string{"001XX000003DHP0", "001XX000003DHP2"}, ids(or))
	assert.Subset(t, ids(or), ids(and))
}

func TestConditionOperators(t *testing.T) {
	row := resultset.NewRow(resultset.F("Email", "Contact@Acme.com"), resultset.F("Empty", nil))

	tests := []struct {
		op    Operator
		col   string
		value string
		want  bool
	}{
		{OpContains, "Email", "ACME", true},
		{OpEquals, "Email", "contact@acme.com", true},
		{OpNotEquals, "Email", "contact@acme.com", false},
		{OpStartsWith, "Email", "contact@", true},
		{OpEndsWith, "Email", ".COM", true},
		{OpEndsWith, "Email", ".org", false},
		{Operator("bogus"), "Email", "acme", true},
		{Operator("EQUALS"), "Email", "contact", false},
		{OpEquals, "Missing", "", true},
		{OpEquals, "Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+tt.col, func(t *testing.T) {
			c := Condition{Column: tt.col, Operator: tt.op, Value: tt.value}
			assert.Equal(t, tt.want, c.Match(row))
		})
	}
}

func TestSearchAfterFilter(t *testing.T) {
	res, err := ComputeView(accounts(), Params{
		Filter: AdvancedFilter{Conditions: []Condition{
			{Column: "Industry", Operator: OpEquals, Value: "technology"},
		}},
		Search:   "SOLUTIONS",
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"001XX000003DHP2"}, ids(res.Filtered))
}

func TestSearchMatchesNumbers(t *testing.T) {
	got := Search(accounts(), "8500")
	assert.Equal(t, []string{"001XX000003DHP2"}, ids(got))
}

func TestSearchIgnoresNullCells(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(resultset.F("Id", "a"), resultset.F("Note", nil)),
		resultset.NewRow(resultset.F("Id", "b"), resultset.F("Note", "null pointer")),
	}

	assert.Equal(t, []string{"b"}, ids(Search(rows, "null")))
	assert.Equal(t, []string{"a", "b"}, ids(Search(rows, "")))
}

func TestSortIsStableInBothDirections(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(resultset.F("Id", "a"), resultset.F("Group", "x")),
		resultset.NewRow(resultset.F("Id", "b"), resultset.F("Group", "y")),
		resultset.NewRow(resultset.F("Id", "c"), resultset.F("Group", "x")),
		resultset.NewRow(resultset.F("Id", "d"), resultset.F("Group", "y")),
	}

	asc := Sort(rows, SortSpec{Key: "Group", Direction: Asc})
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(asc))

	desc := Sort(rows, SortSpec{Key: "Group", Direction: Desc})
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(desc))

	again := Sort(asc, SortSpec{Key: "Group", Direction: Asc})
	assert.Equal(t, ids(asc), ids(again))
}

func TestSortMixedKinds(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(resultset.F("Id", "str"), resultset.F("V", "10")),
		resultset.NewRow(resultset.F("Id", "num"), resultset.F("V", 9)),
		resultset.NewRow(resultset.F("Id", "missing")),
		resultset.NewRow(resultset.F("Id", "bool"), resultset.F("V", true)),
		resultset.NewRow(resultset.F("Id", "null"), resultset.F("V", nil)),
	}

	got := Sort(rows, SortSpec{Key: "V", Direction: Asc})
	assert.Equal(t, []string{"missing", "null", "bool", "num", "str"}, ids(got))
}

func TestExpressionFilter(t *testing.T) {
	expr, err := CompileExpression(`row.AnnualRevenue > 8000000.0 && row.Industry != "Manufacturing"`)
	require.NoError(t, err)

	got := Filter(accounts(), AdvancedFilter{}, expr)
	assert.Equal(t, []string{"001XX000003DHP2", "001XX000003DHP3"}, ids(got))
}

func TestExpressionErrors(t *testing.T) {
	_, err := CompileExpression(`row.Name ==`)
	assert.ErrorIs(t, err, ErrInvalidExpression)

	expr, err := CompileExpression(`row.Missing == "x"`)
	require.NoError(t, err)
	assert.Empty(t, Filter(accounts(), AdvancedFilter{}, expr))

	nonBool, err := CompileExpression(`row.Name`)
	require.NoError(t, err)
	assert.Empty(t, Filter(accounts(), AdvancedFilter{}, nonBool))

	empty, err := CompileExpression("")
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.Len(t, Filter(accounts(), AdvancedFilter{}, empty), 5)
}

func TestParseHelpers(t *testing.T) {
	l, err := ParseLogic("or")
	require.NoError(t, err)
	assert.Equal(t, LogicOr, l)

	_, err = ParseLogic("xor")
	assert.Error(t, err)

	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	_, err = ParseDirection("up")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	op, ok := ParseOperator("startswith")
	assert.True(t, ok)
	assert.Equal(t, OpStartsWith, op)

	op, ok = ParseOperator("like")
	assert.False(t, ok)
	assert.Equal(t, OpContains, op)
}

func TestEmptyFilterPassesEveryRow(t *testing.T) {
	f := AdvancedFilter{Logic: LogicOr}
	assert.True(t, f.IsEmpty())
	for _, row := range accounts() {
		assert.True(t, f.Match(row))
	}

	f.Conditions = []Condition{{Column: "Name", Operator: OpEquals, Value: "nobody"}}
	assert.False(t, f.IsEmpty())
}
