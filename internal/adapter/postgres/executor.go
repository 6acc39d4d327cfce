package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs validated ad-hoc statements on a pooled connection inside a
// read-only transaction with a statement timeout.
type Executor struct {
	pool    *pgxpool.Pool
	maxRows int
	timeout time.Duration
}

var _ port.QueryExecutor = (*Executor)(nil)

func NewExecutor(pool *pgxpool.Pool, maxRows int, queryTimeout time.Duration) *Executor {
	return &Executor{pool: pool, maxRows: maxRows, timeout: queryTimeout}
}

func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	stmt := boundedStatement(sql, e.maxRows)

	var out []map[string]any
	err := readOnlyTx(ctx, e.pool, e.timeout, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt)
		if err != nil {
			return fmt.Errorf("executing query: %w", err)
		}
		defer rows.Close()
		out, err = rowsToMaps(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// boundedStatement caps a SELECT at maxRows by wrapping it in a subquery.
// EXPLAIN output cannot be wrapped and is returned as is.
func boundedStatement(sql string, maxRows int) string {
	sql = strings.TrimRight(strings.TrimSpace(sql), ";")
	if isExplain(sql) || maxRows <= 0 {
		return sql
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", sql, maxRows)
}

func isExplain(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN")
}
