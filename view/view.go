package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

var (
	// ErrInvalidPageSize is returned for page sizes below 1.
	ErrInvalidPageSize = errors.New("page size must be greater than 0")
	// ErrInvalidPage is returned for pages below 1.
	ErrInvalidPage = errors.New("page must be at least 1")
	// ErrInvalidExpression wraps CEL compile errors.
	ErrInvalidExpression = errors.New("invalid filter expression")
	// ErrInvalidDirection is returned for sort directions other than asc or desc.
	ErrInvalidDirection = errors.New("sort direction must be asc or desc")
)

// Direction orders a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses asc or desc in any letter case. The empty string is asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// SortSpec names the sort column. An empty Key leaves the order unchanged.
type SortSpec struct {
	Key       string    `json:"key,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// Params are the inputs of one view computation.
type Params struct {
	Filter     AdvancedFilter
	Expression *Expression
	Search     string
	Sort       SortSpec
	Page       int
	PageSize   int
}

// Result is the output of one view computation.
type Result struct {
	// Filtered is the filtered, searched and sorted set, before pagination.
	Filtered     []resultset.Row
	Page         []resultset.Row
	TotalResults int
	TotalPages   int
}

// ComputeView filters, searches, sorts and paginates rows. It never mutates
// rows. A page past the end yields an empty Page rather than an error.
func ComputeView(rows []resultset.Row, p Params) (Result, error) {
	if p.PageSize < 1 {
		return Result{}, ErrInvalidPageSize
	}
	if p.Page < 1 {
		return Result{}, ErrInvalidPage
	}

	filtered := Filter(rows, p.Filter, p.Expression)
	filtered = Search(filtered, p.Search)
	filtered = Sort(filtered, p.Sort)

	total := len(filtered)
	return Result{
		Filtered:     filtered,
		Page:         Paginate(filtered, p.Page, p.PageSize),
		TotalResults: total,
		TotalPages:   TotalPages(total, p.PageSize),
	}, nil
}

// Filter keeps rows matching both the advanced filter and the expression.
// The result is always a new slice.
func Filter(rows []resultset.Row, f AdvancedFilter, expr *Expression) []resultset.Row {
	out := make([]resultset.Row, 0, len(rows))
	for _, row := range rows {
		if f.Match(row) && expr.Match(row) {
			out = append(out, row)
		}
	}
	return out
}

// Search keeps rows where any cell contains term, case-insensitively.
func Search(rows []resultset.Row, term string) []resultset.Row {
	if term == "" {
		return rows
	}
	out := make([]resultset.Row, 0, len(rows))
	for _, row := range rows {
		if MatchSearch(row, term) {
			out = append(out, row)
		}
	}
	return out
}

// Sort returns a stably sorted copy of rows. Descending order negates the
// comparison so equal keys keep their input order in both directions.
func Sort(rows []resultset.Row, spec SortSpec) []resultset.Row {
	if spec.Key == "" {
		return rows
	}

	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b resultset.Row) int {
		c := resultset.Compare(a.Value(spec.Key), b.Value(spec.Key))
		if spec.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

// Paginate returns the 1-based page of rows. Out-of-range pages are empty.
func Paginate(rows []resultset.Row, page, pageSize int) []resultset.Row {
	if page < 1 || pageSize < 1 || page > TotalPages(len(rows), pageSize) {
		return []resultset.Row{}
	}
	start := (page - 1) * pageSize
	end := start + min(pageSize, len(rows)-start)
	return rows[start:end:end]
}

// TotalPages is ceil(total / pageSize), and 0 for an empty set.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total-1)/pageSize + 1
}
