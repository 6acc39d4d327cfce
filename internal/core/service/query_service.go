package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type operationKey struct{}

// WithOperation returns a context carrying the caller's operation name
// (MCP tool or CLI command) for audit logging.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

func operationFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(operationKey{}).(string); ok {
		return v
	}
	return "query"
}

// QueryService runs ad-hoc read-only SQL for the query command and tool.
type QueryService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	auditor   port.QueryAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Execute validates sql and runs it through the read-only executor. Rejected
// statements never reach the store but are still audited.
func (s *QueryService) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	op := operationFromCtx(ctx)
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", op),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	entry := port.AuditEntry{Operation: op, SQL: sql}

	if err := s.validator.Validate(sql); err != nil {
		s.logger.WarnContext(ctx, "query rejected",
			slog.String("db.operation.name", op),
			slog.String("db.statement", sql),
			slog.String("error.type", "validation_error"),
			slog.String("error", err.Error()),
		)
		entry.Err = err
		s.auditor.Record(ctx, entry)
		return nil, s.fail(ctx, span, fmt.Errorf("validation: %w", err))
	}

	start := time.Now()
	results, err := s.executor.Execute(ctx, sql)
	entry.DurationMS = time.Since(start).Milliseconds()
	entry.RowsReturned = len(results)
	entry.Err = err

	s.inst.RecordQueryDuration(ctx, float64(entry.DurationMS))
	s.auditor.Record(ctx, entry)

	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(results)))
	s.logger.DebugContext(ctx, "query executed",
		slog.String("db.operation.name", op),
		slog.Int("db.response.rows", len(results)),
		slog.Int64("duration_ms", entry.DurationMS),
	)

	return results, nil
}

func (s *QueryService) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.inst.IncrementQueryErrors(ctx)
	return err
}
