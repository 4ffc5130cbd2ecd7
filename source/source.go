// Package source executes query text and returns result rows.
package source

import (
	"context"
	"errors"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// Source names accepted by configuration.
const (
	NameMock = "mock"
	NameSQL  = "sql"
)

var (
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text is required")
	// ErrNotReadOnly is returned when query text would modify data.
	ErrNotReadOnly = errors.New("only read-only queries can be executed")
)

// Source runs a query and returns its rows. Every row of one result shares
// the same columns.
type Source interface {
	Execute(ctx context.Context, soql string) ([]resultset.Row, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context, soql string) ([]resultset.Row, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, soql string) ([]resultset.Row, error) {
	return f(ctx, soql)
}
