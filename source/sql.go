package source

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// Querier runs a read query and passes the rows to scan.
type Querier interface {
	QuerySandbox(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error
}

// Execer runs a statement that returns no rows.
type Execer interface {
	ExecSandbox(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQL executes query text against the DuckDB sandbox.
type SQL struct {
	db      Querier
	maxRows int
	logger  *zap.Logger
}

// NewSQL returns a source reading from db. Results are cut at maxRows when
// maxRows is positive.
func NewSQL(db Querier, maxRows int, logger *zap.Logger) *SQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQL{db: db, maxRows: maxRows, logger: logger}
}

// Execute runs soql and converts every cell to a Value.
func (s *SQL) Execute(ctx context.Context, soql string) ([]resultset.Row, error) {
	query := strings.TrimRight(strings.TrimSpace(soql), "; \t\r\n")
	if query == "" {
		return nil, ErrEmptyQuery
	}
	// A single statement only; a trailing semicolon is allowed.
	if hasStatementSeparator(query) || !isReadOnlyStatement(query) {
		return nil, ErrNotReadOnly
	}

	rows := []resultset.Row{}
	truncated := false

	err := s.db.QuerySandbox(ctx, query, func(r *sql.Rows) error {
		columns, err := r.Columns()
		if err != nil {
			return fmt.Errorf("failed to get columns: %w", err)
		}

		for r.Next() {
			if s.maxRows > 0 && len(rows) >= s.maxRows {
				truncated = true
				break
			}

			values := make([]any, len(columns))
			valuePtrs := make([]any, len(columns))
			for i := range columns {
				valuePtrs[i] = &values[i]
			}
			if err := r.Scan(valuePtrs...); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			fields := make([]resultset.Field, len(columns))
			for i, col := range columns {
				fields[i] = resultset.Field{Name: col, Value: convertValue(values[i])}
			}
			rows = append(rows, resultset.NewRow(fields...))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	if truncated {
		s.logger.Warn("Query result truncated",
			zap.Int("max_rows", s.maxRows),
		)
	}
	return rows, nil
}

// convertValue maps DuckDB scan results onto Values.
func convertValue(val any) resultset.Value {
	switch v := val.(type) {
	case duckdb.Decimal:
		return resultset.NewNumber(v.Float64())
	case duckdb.UUID:
		return resultset.NewString(uuid.UUID(v).String())
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return resultset.NewNumber(f)
	default:
		return resultset.FromInterface(val)
	}
}

// hasStatementSeparator reports whether query holds a semicolon outside
// quoted strings and identifiers.
func hasStatementSeparator(query string) bool {
	var quote rune
	for _, c := range query {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return true
		}
	}
	return false
}

// isReadOnlyStatement reports whether query starts with a keyword that only
// reads data.
func isReadOnlyStatement(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "FROM", "DESCRIBE", "SHOW", "SUMMARIZE", "VALUES", "TABLE":
		return true
	default:
		return false
	}
}

// SeedAccounts creates the Account table in the sandbox and fills it with
// DemoAccounts, replacing any existing table.
func SeedAccounts(ctx context.Context, db Execer) error {
	_, err := db.ExecSandbox(ctx, `CREATE OR REPLACE TABLE Account (
		Id VARCHAR PRIMARY KEY,
		Name VARCHAR,
		Email VARCHAR,
		Industry VARCHAR,
		AnnualRevenue DOUBLE,
		CreatedDate DATE
	)`)
	if err != nil {
		return fmt.Errorf("failed to create Account table: %w", err)
	}

	for _, a := range demoAccounts {
		_, err := db.ExecSandbox(ctx,
			`INSERT INTO Account VALUES (?, ?, ?, ?, ?, CAST(? AS DATE))`,
			a.id, a.name, a.email, a.industry, a.revenue, a.created)
		if err != nil {
			return fmt.Errorf("failed to insert account %s: %w", a.id, err)
		}
	}
	return nil
}
