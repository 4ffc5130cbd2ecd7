package view

import (
	"encoding/json"
	"slices"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// VisibleColumns is the set of columns shown to the user. It only affects
// projection of the current page, never filtering or sorting.
type VisibleColumns struct {
	set map[string]struct{}
}

// NewVisibleColumns returns a set holding columns.
func NewVisibleColumns(columns []string) VisibleColumns {
	v := VisibleColumns{set: make(map[string]struct{}, len(columns))}
	for _, c := range columns {
		v.set[c] = struct{}{}
	}
	return v
}

// Contains reports whether column is visible.
func (v VisibleColumns) Contains(column string) bool {
	_, ok := v.set[column]
	return ok
}

// Toggle hides a visible column or shows a hidden one.
func (v *VisibleColumns) Toggle(column string) {
	if v.set == nil {
		v.set = make(map[string]struct{})
	}
	if _, ok := v.set[column]; ok {
		delete(v.set, column)
		return
	}
	v.set[column] = struct{}{}
}

// Len returns the number of visible columns.
func (v VisibleColumns) Len() int { return len(v.set) }

// Ordered returns the visible columns in the order of available.
func (v VisibleColumns) Ordered(available []string) []string {
	out := make([]string, 0, len(v.set))
	for _, c := range available {
		if v.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (v VisibleColumns) MarshalJSON() ([]byte, error) {
	out := make([]string, 0, len(v.set))
	for c := range v.set {
		out = append(out, c)
	}
	slices.Sort(out)
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of column names.
func (v *VisibleColumns) UnmarshalJSON(data []byte) error {
	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	*v = NewVisibleColumns(cols)
	return nil
}

// Project keeps only columns in every row, in the order given. A nil columns
// slice returns rows unchanged.
func Project(rows []resultset.Row, columns []string) []resultset.Row {
	if columns == nil {
		return rows
	}
	out := make([]resultset.Row, len(rows))
	for i, row := range rows {
		out[i] = row.Project(columns)
	}
	return out
}
