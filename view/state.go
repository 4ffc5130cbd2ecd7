package view

import (
	"crypto/rand"
	"math/big"
	"slices"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// PageSizes are the page sizes offered to users.
var PageSizes = []int{5, 10, 25, 50}

// DefaultPageSize is the initial page size of a new ViewState.
const DefaultPageSize = 10

// State is the mutable view of one result set: what the user has typed and
// clicked so far. Compute turns it into a Result.
type State struct {
	Search     string         `json:"search"`
	Filter     AdvancedFilter `json:"filter"`
	Expression string         `json:"expression,omitempty"`
	Sort       SortSpec       `json:"sort"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Columns    VisibleColumns `json:"columns"`
}

// NewState returns the initial view for rows: no filter, no sort, first page
// of DefaultPageSize, every column visible.
func NewState(rows []resultset.Row) *State {
	return &State{
		Filter:   AdvancedFilter{Logic: LogicAnd},
		Page:     1,
		PageSize: DefaultPageSize,
		Columns:  NewVisibleColumns(resultset.Columns(rows)),
	}
}

// Params compiles the state into ComputeView parameters.
func (s *State) Params() (Params, error) {
	expr, err := CompileExpression(s.Expression)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Filter:     s.Filter,
		Expression: expr,
		Search:     s.Search,
		Sort:       s.Sort,
		Page:       s.Page,
		PageSize:   s.PageSize,
	}, nil
}

// ToggleSort sorts by key ascending, or flips to descending when key is
// already the ascending sort key.
func (s *State) ToggleSort(key string) {
	if s.Sort.Key == key && s.Sort.Direction != Desc {
		s.Sort = SortSpec{Key: key, Direction: Desc}
		return
	}
	s.Sort = SortSpec{Key: key, Direction: Asc}
}

// AddCondition appends an empty contains condition on the first available
// column and returns it.
func (s *State) AddCondition(available []string) Condition {
	c := Condition{
		ID:       newConditionID(),
		Operator: OpContains,
	}
	if len(available) > 0 {
		c.Column = available[0]
	}
	s.Filter.Conditions = append(s.Filter.Conditions, c)
	return c
}

// UpdateCondition replaces the condition with the same ID. It reports whether
// one was found.
func (s *State) UpdateCondition(c Condition) bool {
	for i := range s.Filter.Conditions {
		if s.Filter.Conditions[i].ID == c.ID {
			s.Filter.Conditions[i] = c
			return true
		}
	}
	return false
}

// RemoveCondition drops the condition with id, if present.
func (s *State) RemoveCondition(id string) {
	s.Filter.Conditions = slices.DeleteFunc(s.Filter.Conditions, func(c Condition) bool {
		return c.ID == id
	})
}

// ClearFilter removes every condition.
func (s *State) ClearFilter() {
	s.Filter.Conditions = nil
}

// SetLogic sets how conditions combine.
func (s *State) SetLogic(l Logic) { s.Filter.Logic = l }

// SetSearch sets the free-text search term.
func (s *State) SetSearch(term string) { s.Search = term }

// SetPageSize changes the page size and returns to the first page.
func (s *State) SetPageSize(size int) error {
	if size < 1 {
		return ErrInvalidPageSize
	}
	s.PageSize = size
	s.Page = 1
	return nil
}

// NextPage advances one page, stopping at totalPages.
func (s *State) NextPage(totalPages int) {
	s.Page = max(1, min(totalPages, s.Page+1))
}

// PrevPage goes back one page, stopping at 1.
func (s *State) PrevPage() {
	s.Page = max(1, s.Page-1)
}

// ClampPage pulls Page back into [1, totalPages] after the filtered set
// shrinks.
func (s *State) ClampPage(totalPages int) {
	if s.Page > totalPages {
		s.Page = totalPages
	}
	if s.Page < 1 {
		s.Page = 1
	}
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newConditionID returns a random 9-character id.
func newConditionID() string {
	b := make([]byte, 9)
	limit := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			b[i] = idAlphabet[i]
			continue
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b)
}
