package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgQueryCanceled is the SQLSTATE for a statement cancelled by statement_timeout.
const pgQueryCanceled = "57014"

// userFacing lists errors whose message is safe and useful to return as is.
var userFacing = []error{
	domain.ErrEmptyQuery,
	domain.ErrNotAllowed,
	domain.ErrMultiStatement,
	domain.ErrParseFailed,
	domain.ErrNoTables,
	domain.ErrSchemaLookup,
}

// sanitizeError turns err into a message for the tool caller. Validation and
// lookup failures pass through, timeouts get a fixed message, and anything
// else is logged and hidden behind a generic one.
func sanitizeError(logger *slog.Logger, err error, action string) string {
	for _, target := range userFacing {
		if errors.Is(err, target) {
			return fmt.Sprintf("%s failed: %v", action, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &pgErr) && pgErr.Code == pgQueryCanceled) {
		return fmt.Sprintf("%s failed: query timed out", action)
	}

	logger.Error("tool failed",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	return fmt.Sprintf("%s failed: internal error (check server logs)", action)
}
