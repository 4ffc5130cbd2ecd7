package view

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// Expression is a compiled CEL predicate over a row, exposed to the
// expression as the variable `row` (map of column name to value).
type Expression struct {
	program cel.Program
}

// CompileExpression compiles src. An empty src yields a nil Expression,
// which matches every row.
func CompileExpression(src string) (*Expression, error) {
	if src == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("row", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &Expression{program: program}, nil
}

// Match evaluates the expression. Evaluation errors and non-boolean results
// exclude the row.
func (e *Expression) Match(row resultset.Row) bool {
	if e == nil {
		return true
	}

	result, _, err := e.program.Eval(map[string]any{
		"row": row.Map(),
	})
	if err != nil {
		return false
	}

	matched, ok := result.Value().(bool)
	return ok && matched
}
