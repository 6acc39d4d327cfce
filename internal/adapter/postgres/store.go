package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store opens analysis sessions against one schema of a pgx pool.
type Store struct {
	pool         *pgxpool.Pool
	schema       string
	queryTimeout time.Duration
}

var _ port.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, schema string, queryTimeout time.Duration) *Store {
	return &Store{pool: pool, schema: schema, queryTimeout: queryTimeout}
}

// Open checks the pool is reachable and returns a session bound to it. The
// session holds no connection of its own.
func (s *Store) Open(ctx context.Context) (port.Session, error) {
	if err := s.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Session{store: s}, nil
}

// Session implements port.Session. Every read runs in its own read-only
// transaction on a connection borrowed from the pool for that read only.
type Session struct {
	store  *Store
	closed atomic.Bool
}

var _ port.Session = (*Session)(nil)

func (s *Session) Close() {
	s.closed.Store(true)
}

func (s *Session) ListColumns(ctx context.Context, table string) ([]domain.ColumnDescriptor, error) {
	var cols []domain.ColumnDescriptor
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, queryColumns, s.store.schema, table)
		if err != nil {
			return fmt.Errorf("querying columns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c := domain.ColumnDescriptor{Table: table}
			if err := rows.Scan(&c.Name, &c.DataType); err != nil {
				return fmt.Errorf("scanning column: %w", err)
			}
			cols = append(cols, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: table %q: %w", domain.ErrSchemaLookup, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %q %w in schema %q", domain.ErrSchemaLookup, table, domain.ErrNotFound, s.store.schema)
	}
	return cols, nil
}

func (s *Session) SampleValues(ctx context.Context, table, column string, limit int) (domain.ValueSample, error) {
	var values []string
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, distinctValuesQuery(s.store.schema, table, column), limit)
		if err != nil {
			return err
		}
		values, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return domain.ValueSample{}, fmt.Errorf("%w: %s.%s: %w", domain.ErrSampleFetch, table, column, err)
	}
	return domain.NewValueSample(table, column, limit, values), nil
}

func (s *Session) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, fmt.Sprintf(queryCountRows, qualifiedName(s.store.schema, table))).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting rows of %q: %w", domain.ErrStatisticFetch, table, err)
	}
	return n, nil
}

func (s *Session) CountNonNull(ctx context.Context, table, column string) (int64, error) {
	var n int64
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		q := fmt.Sprintf(queryCountNonNull, quoteColumn(column), qualifiedName(s.store.schema, table))
		return tx.QueryRow(ctx, q).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting non-null %s.%s: %w", domain.ErrStatisticFetch, table, column, err)
	}
	return n, nil
}

// NullCounts tries one aggregate scan first. If that fails it falls back to
// a row count plus one query per column, recording per-column failures.
func (s *Session) NullCounts(ctx context.Context, table string, columns []string) (domain.TableStats, error) {
	stats := domain.TableStats{
		Table:   table,
		NonNull: make(map[string]int64, len(columns)),
		Failed:  make(map[string]error),
	}

	counts := make([]int64, len(columns)+1)
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, nullCountsQuery(s.store.schema, table, columns)).Scan(dest...)
	})
	if err == nil {
		stats.RowCount = counts[0]
		for i, c := range columns {
			stats.NonNull[c] = counts[i+1]
		}
		return stats, nil
	}

	rowCount, err := s.CountRows(ctx, table)
	if err != nil {
		return domain.TableStats{}, err
	}
	stats.RowCount = rowCount
	for _, c := range columns {
		n, err := s.CountNonNull(ctx, table, c)
		if err != nil {
			stats.Failed[c] = err
			continue
		}
		stats.NonNull[c] = n
	}
	return stats, nil
}

func (s *Session) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	var result []map[string]any
	err := s.read(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(querySampleRows, qualifiedName(s.store.schema, table)), limit)
		if err != nil {
			return fmt.Errorf("querying sample rows: %w", err)
		}
		defer rows.Close()
		result, err = rowsToMaps(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sampling rows of %q: %w", table, err)
	}
	return result, nil
}

func (s *Session) read(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	return readOnlyTx(ctx, s.store.pool, s.store.queryTimeout, fn)
}

// readOnlyTx runs fn inside a read-only transaction with a server-side
// statement timeout. The transaction is always rolled back unless fn
// succeeds and the commit goes through.
func readOnlyTx(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, fn func(context.Context, pgx.Tx) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET LOCAL scopes to this transaction only.
	if timeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeout.Milliseconds())); err != nil {
			return fmt.Errorf("setting statement timeout: %w", err)
		}
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
