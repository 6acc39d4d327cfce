package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	exploreSampleRows     = 3
	explorePatternColumns = 2
	explorePatternValues  = 5
	rowCountUnavailable   = -1
)

// PatternSample is a handful of distinct values for a column whose name
// matched an explore pattern.
type PatternSample struct {
	Pattern string   `json:"pattern"`
	Column  string   `json:"column"`
	Values  []string `json:"values"`
}

// TableExploration is a quick look at one table's shape and contents.
type TableExploration struct {
	Table          string                    `json:"table"`
	RowCount       int64                     `json:"row_count"`
	Columns        []domain.ColumnDescriptor `json:"columns"`
	SampleRows     []map[string]any          `json:"sample_rows"`
	PatternSamples []PatternSample           `json:"pattern_samples,omitempty"`
}

// RowCount is one table's row count; Rows is -1 when the count failed.
type RowCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
	Error string `json:"error,omitempty"`
}

// ExploreService answers interactive questions about individual tables.
type ExploreService struct {
	store       port.Store
	patterns    []string
	sampleLimit int
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewExploreService builds the service. sampleLimit caps every value and row
// sample it requests from the store.
func NewExploreService(store port.Store, patterns []string, sampleLimit, concurrency int, logger *slog.Logger, tracer trace.Tracer) *ExploreService {
	if sampleLimit < 1 {
		sampleLimit = domain.DefaultSampleLimit
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &ExploreService{
		store:       store,
		patterns:    patterns,
		sampleLimit: sampleLimit,
		concurrency: concurrency,
		logger:      logger,
		tracer:      tracer,
	}
}

// ExploreTable returns the table's columns, row count, a few rows, and value
// samples for columns matching the explore patterns. Only a missing table is
// an error; the remaining reads degrade to empty results.
func (s *ExploreService) ExploreTable(ctx context.Context, table string) (*TableExploration, error) {
	ctx, span := s.tracer.Start(ctx, "ExploreService.ExploreTable",
		trace.WithAttributes(attribute.String("colscope.table", table)),
	)
	defer span.End()

	session, err := s.store.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening store session: %w", err)
	}
	defer session.Close()

	cols, err := session.ListColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	out := &TableExploration{Table: table, Columns: cols, RowCount: rowCountUnavailable}

	if n, err := session.CountRows(ctx, table); err != nil {
		s.warn(ctx, "row count failed", table, "", err)
	} else {
		out.RowCount = n
	}

	rows, err := session.SampleRows(ctx, table, min(exploreSampleRows, s.sampleLimit))
	if err != nil {
		s.warn(ctx, "sample rows failed", table, "", err)
	}
	out.SampleRows = rows

	for _, pattern := range s.patterns {
		p := strings.ToLower(pattern)
		taken := 0
		for _, c := range cols {
			if taken == explorePatternColumns {
				break
			}
			if !strings.Contains(strings.ToLower(c.Name), p) {
				continue
			}
			taken++
			sample, err := session.SampleValues(ctx, table, c.Name, s.sampleLimit)
			if err != nil {
				s.warn(ctx, "pattern sample failed", table, c.Name, err)
				continue
			}
			values := sortedValues(sample)
			if len(values) > explorePatternValues {
				values = values[:explorePatternValues]
			}
			out.PatternSamples = append(out.PatternSamples, PatternSample{
				Pattern: pattern,
				Column:  c.Name,
				Values:  values,
			})
		}
	}

	return out, nil
}

// CountRows counts every table concurrently. A failed count is reported as
// -1 with its error and never aborts the others.
func (s *ExploreService) CountRows(ctx context.Context, tables []string) ([]RowCount, error) {
	session, err := s.store.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening store session: %w", err)
	}
	defer session.Close()

	out := make([]RowCount, len(tables))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, table := range tables {
		g.Go(func() error {
			out[i] = RowCount{Table: table}
			n, err := session.CountRows(ctx, table)
			if err != nil {
				s.warn(ctx, "row count failed", table, "", err)
				out[i].Rows = rowCountUnavailable
				out[i].Error = err.Error()
				return nil
			}
			out[i].Rows = n
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (s *ExploreService) warn(ctx context.Context, msg, table, column string, err error) {
	attrs := []any{slog.String("table", table), slog.String("error", err.Error())}
	if column != "" {
		attrs = append(attrs, slog.String("column", column))
	}
	s.logger.WarnContext(ctx, msg, attrs...)
}

func sortedValues(s domain.ValueSample) []string {
	out := make([]string, 0, s.Len())
	for v := range s.Values {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
