package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotAllowed     = errors.New("only SELECT queries are allowed")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// PgQueryValidator checks ad-hoc SQL with PostgreSQL's own parser before it
// reaches the executor.
type PgQueryValidator struct{}

func NewPgQueryValidator() *PgQueryValidator {
	return &PgQueryValidator{}
}

// Validate rejects anything that isn't a single SELECT or EXPLAIN SELECT.
func (v *PgQueryValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyQuery
	}

	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return ErrEmptyQuery
	}

	return checkReadOnly(stmt)
}

// checkReadOnly accepts a SELECT without INTO, or an EXPLAIN of one.
// EXPLAIN ANALYZE runs its target, so EXPLAIN DELETE is rejected too.
func checkReadOnly(n *pg_query.Node) error {
	switch node := n.Node.(type) {
	case *pg_query.Node_SelectStmt:
		if node.SelectStmt.IntoClause != nil {
			return ErrNotAllowed
		}
		return nil
	case *pg_query.Node_ExplainStmt:
		if node.ExplainStmt.Query == nil {
			return ErrNotAllowed
		}
		return checkReadOnly(node.ExplainStmt.Query)
	default:
		return ErrNotAllowed
	}
}
