// Package view computes the visible page of a result set: advanced filter,
// free-text search, stable sort and pagination, applied in that order.
package view

import (
	"fmt"
	"strings"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// Operator is a case-insensitive string comparison applied by a Condition.
type Operator string

const (
	OpContains   Operator = "contains"
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
)

// Operators lists the supported operators in display order.
var Operators = []Operator{OpContains, OpEquals, OpNotEquals, OpStartsWith, OpEndsWith}

// ParseOperator accepts an operator name in any letter case. Unknown names
// return OpContains and false.
func ParseOperator(s string) (Operator, bool) {
	for _, op := range Operators {
		if strings.EqualFold(string(op), s) {
			return op, true
		}
	}
	return OpContains, false
}

// Logic combines per-condition results.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ParseLogic parses AND or OR in any letter case. The empty string is AND.
func ParseLogic(s string) (Logic, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return LogicAnd, nil
	case "OR":
		return LogicOr, nil
	default:
		return "", fmt.Errorf("invalid logic %q: must be AND or OR", s)
	}
}

// Condition tests one column of a row.
type Condition struct {
	ID       string   `json:"id"`
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Match lower-cases both the cell text and the condition value before
// comparing. A missing column compares as the empty string and an unknown
// operator as contains.
func (c Condition) Match(row resultset.Row) bool {
	cell := strings.ToLower(row.Value(c.Column).Text())
	want := strings.ToLower(c.Value)

	op, _ := ParseOperator(string(c.Operator))
	switch op {
	case OpEquals:
		return cell == want
	case OpNotEquals:
		return cell != want
	case OpStartsWith:
		return strings.HasPrefix(cell, want)
	case OpEndsWith:
		return strings.HasSuffix(cell, want)
	default:
		return strings.Contains(cell, want)
	}
}

// AdvancedFilter is an ordered list of conditions joined by one logic.
type AdvancedFilter struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

// IsEmpty reports whether the filter passes every row.
func (f AdvancedFilter) IsEmpty() bool { return len(f.Conditions) == 0 }

// Match applies the filter. Any logic other than OR is treated as AND.
func (f AdvancedFilter) Match(row resultset.Row) bool {
	if f.IsEmpty() {
		return true
	}

	if f.Logic == LogicOr {
		for _, c := range f.Conditions {
			if c.Match(row) {
				return true
			}
		}
		return false
	}

	for _, c := range f.Conditions {
		if !c.Match(row) {
			return false
		}
	}
	return true
}

// MatchSearch reports whether any cell of row contains term,
// case-insensitively. An empty term matches every row.
func MatchSearch(row resultset.Row, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	for _, f := range row.Fields() {
		if strings.Contains(strings.ToLower(f.Value.Text()), needle) {
			return true
		}
	}
	return false
}
