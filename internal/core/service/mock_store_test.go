package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/port"
)

// --- mock Store / Session ---

type fakeTable struct {
	columns []string
	rows    int64
	values  map[string][]string
	nonNull map[string]int64
}

type mockStore struct {
	tables map[string]fakeTable

	openErr     error
	schemaErr   map[string]error
	sampleErr   map[string]error // keyed by "table.column"
	statsErr    map[string]error
	countErr    map[string]error
	statsFailed map[string]string // table -> column whose count fails

	mu       sync.Mutex
	opened   int
	closed   int
	samples  map[string]int
	limits   map[string]int // last limit passed to SampleValues, keyed by "table.column"
	rowLimit int
	lastSess *mockSession
}

func (m *mockStore) Open(_ context.Context) (port.Session, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	if m.samples == nil {
		m.samples = make(map[string]int)
	}
	if m.limits == nil {
		m.limits = make(map[string]int)
	}
	s := &mockSession{store: m}
	m.lastSess = s
	return s, nil
}

type mockSession struct {
	store  *mockStore
	closed bool
}

func (s *mockSession) ListColumns(_ context.Context, table string) ([]domain.ColumnDescriptor, error) {
	if err := s.store.schemaErr[table]; err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSchemaLookup, err)
	}
	t, ok := s.store.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: table %q: %w", domain.ErrSchemaLookup, table, domain.ErrNotFound)
	}
	out := make([]domain.ColumnDescriptor, len(t.columns))
	for i, c := range t.columns {
		out[i] = domain.ColumnDescriptor{Name: c, DataType: "text", Table: table}
	}
	return out, nil
}

func (s *mockSession) SampleValues(_ context.Context, table, column string, limit int) (domain.ValueSample, error) {
	key := table + "." + column
	s.store.mu.Lock()
	s.store.samples[key]++
	s.store.limits[key] = limit
	s.store.mu.Unlock()

	if err := s.store.sampleErr[key]; err != nil {
		return domain.ValueSample{}, fmt.Errorf("%w: %w", domain.ErrSampleFetch, err)
	}
	return domain.NewValueSample(table, column, limit, s.store.tables[table].values[column]), nil
}

func (s *mockSession) CountRows(_ context.Context, table string) (int64, error) {
	if err := s.store.countErr[table]; err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStatisticFetch, err)
	}
	t, ok := s.store.tables[table]
	if !ok {
		return 0, fmt.Errorf("%w: %w", domain.ErrStatisticFetch, domain.ErrNotFound)
	}
	return t.rows, nil
}

func (s *mockSession) CountNonNull(_ context.Context, table, column string) (int64, error) {
	return s.store.tables[table].nonNull[column], nil
}

func (s *mockSession) NullCounts(_ context.Context, table string, columns []string) (domain.TableStats, error) {
	if err := s.store.statsErr[table]; err != nil {
		return domain.TableStats{}, fmt.Errorf("%w: %w", domain.ErrStatisticFetch, err)
	}
	t := s.store.tables[table]
	stats := domain.TableStats{
		Table:    table,
		RowCount: t.rows,
		NonNull:  make(map[string]int64, len(columns)),
		Failed:   make(map[string]error),
	}
	for _, c := range columns {
		if s.store.statsFailed[table] == c {
			stats.Failed[c] = fmt.Errorf("%w: count failed", domain.ErrStatisticFetch)
			continue
		}
		n, ok := t.nonNull[c]
		if !ok {
			n = t.rows
		}
		stats.NonNull[c] = n
	}
	return stats, nil
}

func (s *mockSession) SampleRows(_ context.Context, table string, limit int) ([]map[string]any, error) {
	s.store.mu.Lock()
	s.store.rowLimit = limit
	s.store.mu.Unlock()
	t := s.store.tables[table]
	var rows []map[string]any
	for i := 0; i < limit && i < int(t.rows); i++ {
		row := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			if vals := t.values[c]; i < len(vals) {
				row[c] = vals[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *mockSession) Close() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.closed = true
	s.store.closed++
}

// --- recording instrumentation ---

type recordingInst struct {
	port.NoopInstrumentation
	mu       sync.Mutex
	degraded map[string]int
	analyses int
}

func (r *recordingInst) IncrementDegraded(_ context.Context, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded == nil {
		r.degraded = make(map[string]int)
	}
	r.degraded[kind]++
}

func (r *recordingInst) RecordAnalysisDuration(context.Context, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses++
}
