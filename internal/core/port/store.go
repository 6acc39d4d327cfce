package port

import (
	"context"

	"github.com/guillermoBallester/colscope/internal/core/domain"
)

// Store hands out analysis sessions. Each invocation of the analysis opens
// exactly one session and closes it on every exit path.
type Store interface {
	Open(ctx context.Context) (Session, error)
}

// Session is the read-only view of the backing store used during one
// analysis. Implementations must be safe for concurrent use; every call
// acquires and releases its own connection.
type Session interface {
	// ListColumns returns the table's column descriptors in store order.
	// Errors wrap domain.ErrSchemaLookup.
	ListColumns(ctx context.Context, table string) ([]domain.ColumnDescriptor, error)

	// SampleValues returns up to limit distinct non-null values of a column.
	// Errors wrap domain.ErrSampleFetch.
	SampleValues(ctx context.Context, table, column string, limit int) (domain.ValueSample, error)

	// CountRows returns the table's row count. Errors wrap domain.ErrStatisticFetch.
	CountRows(ctx context.Context, table string) (int64, error)

	// CountNonNull returns the number of non-null values in a column.
	// Errors wrap domain.ErrStatisticFetch.
	CountNonNull(ctx context.Context, table, column string) (int64, error)

	// NullCounts gathers the row count and every column's non-null count,
	// preferring a single aggregate query per table. Columns whose count
	// could not be fetched are reported in TableStats.Failed. An error is
	// returned only when the row count itself is unavailable.
	NullCounts(ctx context.Context, table string, columns []string) (domain.TableStats, error)

	// SampleRows returns up to limit full rows of a table in store order.
	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)

	Close()
}

// QueryExecutor runs an ad-hoc read-only SQL statement.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}

// QueryValidator rejects statements the executor must not run.
type QueryValidator interface {
	Validate(sql string) error
}
