package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// AnalysisService gathers raw facts for a table set and runs every detector
// against that snapshot.
type AnalysisService struct {
	store       port.Store
	settings    domain.Settings
	concurrency int
	auditor     port.QueryAuditor
	logger      *slog.Logger
	tracer      trace.Tracer
	inst        port.Instrumentation

	now      func() time.Time
	newRunID func() string
}

func NewAnalysisService(store port.Store, settings domain.Settings, concurrency int, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *AnalysisService {
	if concurrency < 1 {
		concurrency = 1
	}
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &AnalysisService{
		store:       store,
		settings:    settings,
		concurrency: concurrency,
		auditor:     auditor,
		logger:      logger,
		tracer:      tracer,
		inst:        inst,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

// Settings returns the policy knobs the service analyzes with.
func (s *AnalysisService) Settings() domain.Settings {
	return s.settings
}

// Analyze profiles the given tables and returns the merged report. A table
// whose columns cannot be listed is skipped; sampling and statistic failures
// degrade to absent evidence. The only hard failures are an unopenable
// session and a table set in which nothing resolves.
func (s *AnalysisService) Analyze(ctx context.Context, tables []string) (*domain.AnalysisReport, error) {
	runID := s.newRunID()
	tables = domain.UniqueTables(tables)

	ctx, span := s.tracer.Start(ctx, "AnalysisService.Analyze",
		trace.WithAttributes(
			attribute.String("colscope.run_id", runID),
			attribute.Int("colscope.tables.requested", len(tables)),
		),
	)
	defer span.End()

	start := time.Now()
	s.logger.InfoContext(ctx, "analysis started",
		slog.String("run_id", runID),
		slog.Int("tables", len(tables)),
		slog.Int("concurrency", s.concurrency),
	)

	if len(tables) == 0 {
		return nil, s.fail(span, fmt.Errorf("%w: empty table set", domain.ErrNoTables))
	}

	session, err := s.store.Open(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("opening store session: %w", err))
	}
	defer session.Close()

	snap, skipped := s.gather(ctx, runID, session, tables)
	if err := ctx.Err(); err != nil {
		return nil, s.fail(span, err)
	}
	if len(snap.Tables) == 0 {
		return nil, s.fail(span, fmt.Errorf("%w: none of %d requested tables could be described", domain.ErrNoTables, len(tables)))
	}

	report := domain.BuildReport(runID, s.now().UTC(), snap, skipped, s.settings)

	elapsed := time.Since(start)
	s.inst.RecordAnalysisDuration(ctx, float64(elapsed.Milliseconds()))
	span.SetAttributes(
		attribute.Int("colscope.tables.analyzed", len(report.Tables)),
		attribute.Int("colscope.semantic_matches", len(report.SemanticMatches)),
	)
	s.logger.InfoContext(ctx, "analysis complete",
		slog.String("run_id", runID),
		slog.Int("tables", len(report.Tables)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("semantic_matches", len(report.SemanticMatches)),
		slog.Int("shared_columns", len(report.SharedColumns)),
		slog.Duration("duration", elapsed),
	)

	return report, nil
}

// SharedColumns runs only the shared-column aggregator. It reads column
// metadata and nothing else.
func (s *AnalysisService) SharedColumns(ctx context.Context, tables []string, minOccurrence int) ([]domain.SharedColumn, []domain.SkippedTable, error) {
	if minOccurrence < 1 {
		return nil, nil, fmt.Errorf("min occurrence must be at least 1, got %d", minOccurrence)
	}
	tables = domain.UniqueTables(tables)
	if len(tables) == 0 {
		return nil, nil, fmt.Errorf("%w: empty table set", domain.ErrNoTables)
	}

	session, err := s.store.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store session: %w", err)
	}
	defer session.Close()

	runID := s.newRunID()
	resolved, columns, skipped := s.describe(ctx, runID, session, tables)
	if len(resolved) == 0 {
		return nil, skipped, fmt.Errorf("%w: none of %d requested tables could be described", domain.ErrNoTables, len(tables))
	}

	names := make(map[string][]string, len(resolved))
	for _, t := range resolved {
		names[t] = domain.ColumnNames(columns[t])
	}
	return domain.FindSharedColumns(resolved, names, minOccurrence), skipped, nil
}

// gather collects descriptors, then samples and statistics, for the whole
// table set. It returns only after every read has finished or failed.
func (s *AnalysisService) gather(ctx context.Context, runID string, session port.Session, tables []string) (domain.Snapshot, []domain.SkippedTable) {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.gather")
	defer span.End()

	resolved, columns, skipped := s.describe(ctx, runID, session, tables)

	snap := domain.Snapshot{
		Tables:  resolved,
		Columns: columns,
		Samples: make(map[string][]domain.ValueSample, len(resolved)),
		Stats:   make(map[string]domain.TableStats, len(resolved)),
	}

	// Every slot is allocated before any worker starts; workers only write
	// their own index.
	distinct := make(map[string][]string, len(resolved))
	for _, t := range resolved {
		distinct[t] = distinctNames(columns[t])
		snap.Samples[t] = make([]domain.ValueSample, len(distinct[t]))
	}
	stats := make([]domain.TableStats, len(resolved))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, table := range resolved {
		g.Go(func() error {
			stats[i] = s.nullCounts(ctx, runID, session, table, distinct[table])
			return nil
		})
		for j, column := range distinct[table] {
			samples := snap.Samples[table]
			g.Go(func() error {
				samples[j] = s.sampleValues(ctx, runID, session, table, column)
				return nil
			})
		}
	}
	_ = g.Wait()

	for i, table := range resolved {
		snap.Stats[table] = stats[i]
	}
	return snap, skipped
}

// describe lists the columns of every table concurrently. Tables that fail
// are returned as skipped, in request order.
func (s *AnalysisService) describe(ctx context.Context, runID string, session port.Session, tables []string) ([]string, map[string][]domain.ColumnDescriptor, []domain.SkippedTable) {
	descs := make([][]domain.ColumnDescriptor, len(tables))
	errs := make([]error, len(tables))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, table := range tables {
		g.Go(func() error {
			descs[i], errs[i] = s.listColumns(ctx, runID, session, table)
			return nil
		})
	}
	_ = g.Wait()

	var resolved []string
	columns := make(map[string][]domain.ColumnDescriptor, len(tables))
	var skipped []domain.SkippedTable
	for i, table := range tables {
		if errs[i] != nil {
			s.logger.WarnContext(ctx, "skipping table",
				slog.String("run_id", runID),
				slog.String("table", table),
				slog.String("error", errs[i].Error()),
			)
			s.inst.IncrementDegraded(ctx, "schema")
			skipped = append(skipped, domain.SkippedTable{Table: table, Reason: errs[i].Error()})
			continue
		}
		resolved = append(resolved, table)
		columns[table] = descs[i]
	}
	return resolved, columns, skipped
}

func (s *AnalysisService) listColumns(ctx context.Context, runID string, session port.Session, table string) ([]domain.ColumnDescriptor, error) {
	var cols []domain.ColumnDescriptor
	err := s.observe(ctx, port.AuditEntry{RunID: runID, Operation: "list_columns", Table: table}, func() (int, error) {
		var err error
		cols, err = session.ListColumns(ctx, table)
		return len(cols), err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSchemaLookup) {
			err = fmt.Errorf("%w: %w", domain.ErrSchemaLookup, err)
		}
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %q has no columns", domain.ErrSchemaLookup, table)
	}
	return cols, nil
}

func (s *AnalysisService) sampleValues(ctx context.Context, runID string, session port.Session, table, column string) domain.ValueSample {
	limit := s.settings.SemanticSampleLimit
	var sample domain.ValueSample
	err := s.observe(ctx, port.AuditEntry{RunID: runID, Operation: "sample_values", Table: table, Column: column}, func() (int, error) {
		var err error
		sample, err = session.SampleValues(ctx, table, column, limit)
		return sample.Len(), err
	})
	if err != nil {
		s.logger.WarnContext(ctx, "sampling failed, using empty sample",
			slog.String("run_id", runID),
			slog.String("table", table),
			slog.String("column", column),
			slog.String("error", err.Error()),
		)
		s.inst.IncrementDegraded(ctx, "sample")
		return domain.EmptySample(table, column, limit)
	}
	return sample
}

func (s *AnalysisService) nullCounts(ctx context.Context, runID string, session port.Session, table string, columns []string) domain.TableStats {
	var stats domain.TableStats
	err := s.observe(ctx, port.AuditEntry{RunID: runID, Operation: "null_counts", Table: table}, func() (int, error) {
		var err error
		stats, err = session.NullCounts(ctx, table, columns)
		return len(stats.NonNull), err
	})
	if err != nil {
		s.logger.WarnContext(ctx, "statistics unavailable, near-empty check skipped",
			slog.String("run_id", runID),
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		s.inst.IncrementDegraded(ctx, "statistic")
		return domain.TableStats{Table: table}
	}

	for column, cause := range stats.Failed {
		s.logger.WarnContext(ctx, "non-null count failed, near-empty check skipped",
			slog.String("run_id", runID),
			slog.String("table", table),
			slog.String("column", column),
			slog.String("error", cause.Error()),
		)
		s.inst.IncrementDegraded(ctx, "statistic")
	}
	return stats
}

// observe times one store read and feeds metrics and the audit log.
func (s *AnalysisService) observe(ctx context.Context, entry port.AuditEntry, fn func() (int, error)) error {
	start := time.Now()
	rows, err := fn()
	elapsed := time.Since(start)

	s.inst.RecordQueryDuration(ctx, float64(elapsed.Milliseconds()))
	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
	} else {
		s.inst.IncrementQueryCount(ctx)
	}

	entry.RowsReturned = rows
	entry.DurationMS = elapsed.Milliseconds()
	entry.Err = err
	s.auditor.Record(ctx, entry)
	return err
}

func (s *AnalysisService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// distinctNames returns column names with exact repeats removed.
func distinctNames(cols []domain.ColumnDescriptor) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c.Name)
	}
	return out
}

// ParseTableList splits a comma-separated table list, trimming blanks.
func ParseTableList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
