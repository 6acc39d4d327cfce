package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func priceCostStore() *mockStore {
	prices := []string{"0.10", "0.20", "0.30", "0.40", "0.50"}
	return &mockStore{
		tables: map[string]fakeTable{
			"ec2": {
				columns: []string{"instance_type", "price", "instance_id"},
				rows:    100,
				values: map[string][]string{
					"instance_type": {"t3.micro", "m5.large"},
					"price":         prices,
					"instance_id":   {"i-001", "i-002"},
				},
			},
			"s3": {
				columns: []string{"storage_class", "cost", "notes"},
				rows:    100,
				values: map[string][]string{
					"storage_class": {"STANDARD", "GLACIER"},
					"cost":          prices,
					"notes":         {"legacy"},
				},
				nonNull: map[string]int64{"notes": 3},
			},
		},
	}
}

func newAnalysisService(store *mockStore, inst *recordingInst) *AnalysisService {
	settings := domain.DefaultSettings()
	settings.Priorities = map[string][]string{"ec2": {"instance_type", "price"}}
	svc := NewAnalysisService(store, settings, 4, nil, testLogger(), nil, inst)
	svc.now = func() time.Time { return fixedTime }
	svc.newRunID = func() string { return "run-1" }
	return svc
}

func TestAnalysisService_PriceCostScenario(t *testing.T) {
	store := priceCostStore()
	svc := newAnalysisService(store, &recordingInst{})

	report, err := svc.Analyze(context.Background(), []string{"ec2", "s3"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, fixedTime, report.GeneratedAt)
	assert.Equal(t, []string{"ec2", "s3"}, report.Tables)
	assert.Empty(t, report.Skipped)

	require.Len(t, report.SemanticMatches, 1)
	m := report.SemanticMatches[0]
	assert.Equal(t, "ec2", m.TableA)
	assert.Equal(t, "price", m.ColumnA)
	assert.Equal(t, "s3", m.TableB)
	assert.Equal(t, "cost", m.ColumnB)
	assert.InDelta(t, 1.0, m.Similarity, 1e-9)

	idVerdicts := report.Redundancy["ec2"].Verdicts("instance_id")
	require.Len(t, idVerdicts, 1)
	assert.Equal(t, domain.RedundancyPotential, idVerdicts[0].Kind)

	notes := report.Redundancy["s3"].Verdicts("notes")
	require.Len(t, notes, 2)
	assert.Equal(t, domain.RuleNaming, notes[0].Rule)
	assert.Equal(t, domain.RuleNearEmpty, notes[1].Rule)
	assert.Contains(t, notes[1].Reason, "97%")

	assert.Equal(t, []string{"instance_type", "price"}, report.Importance["ec2"].MostCritical)
	assert.Empty(t, report.Importance["ec2"].ConfigurationSpecific)
	assert.Equal(t, []string{"storage_class"}, report.Importance["s3"].ConfigurationSpecific)

	assert.Equal(t, 1, store.opened)
	assert.Equal(t, 1, store.closed)
}

func TestAnalysisService_SkipsUnresolvableTable(t *testing.T) {
	store := priceCostStore()
	inst := &recordingInst{}
	svc := newAnalysisService(store, inst)

	report, err := svc.Analyze(context.Background(), []string{"ec2", "missing", "s3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ec2", "s3"}, report.Tables)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "missing", report.Skipped[0].Table)
	assert.Contains(t, report.Skipped[0].Reason, "schema lookup failed")
	assert.NotContains(t, report.Columns, "missing")
	assert.Len(t, report.SemanticMatches, 1)
	assert.Equal(t, 1, inst.degraded["schema"])
}

func TestAnalysisService_SampleFailureDegrades(t *testing.T) {
	store := priceCostStore()
	store.sampleErr = map[string]error{"ec2.price": errors.New("canceling statement due to statement timeout")}
	inst := &recordingInst{}
	svc := newAnalysisService(store, inst)

	report, err := svc.Analyze(context.Background(), []string{"ec2", "s3"})
	require.NoError(t, err)

	assert.Empty(t, report.SemanticMatches)
	assert.Equal(t, 1, inst.degraded["sample"])
	assert.Equal(t, []string{"ec2", "s3"}, report.Tables)
}

func TestAnalysisService_StatisticFailureYieldsNoVerdict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mockStore)
	}{
		{
			name:   "whole table",
			mutate: func(s *mockStore) { s.statsErr = map[string]error{"s3": errors.New("permission denied")} },
		},
		{
			name:   "single column",
			mutate: func(s *mockStore) { s.statsFailed = map[string]string{"s3": "notes"} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := priceCostStore()
			tt.mutate(store)
			inst := &recordingInst{}
			svc := newAnalysisService(store, inst)

			report, err := svc.Analyze(context.Background(), []string{"ec2", "s3"})
			require.NoError(t, err)

			notes := report.Redundancy["s3"].Verdicts("notes")
			require.Len(t, notes, 1)
			assert.Equal(t, domain.RuleNaming, notes[0].Rule)
			assert.Equal(t, 1, inst.degraded["statistic"])
		})
	}
}

func TestAnalysisService_NoResolvableTables(t *testing.T) {
	store := priceCostStore()
	inst := &recordingInst{}
	svc := newAnalysisService(store, inst)

	_, err := svc.Analyze(context.Background(), []string{"nope", "gone"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoTables))
	assert.Equal(t, 2, inst.degraded["schema"])
	assert.Equal(t, 1, store.closed, "session must be closed on the error path")
}

func TestAnalysisService_EmptyTableSet(t *testing.T) {
	store := priceCostStore()
	svc := newAnalysisService(store, &recordingInst{})

	_, err := svc.Analyze(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrNoTables)
	assert.Equal(t, 0, store.opened)
}

func TestAnalysisService_OpenFailure(t *testing.T) {
	store := priceCostStore()
	store.openErr = errors.New("connection refused")
	svc := newAnalysisService(store, &recordingInst{})

	_, err := svc.Analyze(context.Background(), []string{"ec2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnalysisService_CanceledContext(t *testing.T) {
	store := priceCostStore()
	svc := newAnalysisService(store, &recordingInst{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, []string{"ec2", "s3"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.closed)
}

func TestAnalysisService_Idempotent(t *testing.T) {
	store := priceCostStore()
	svc := newAnalysisService(store, &recordingInst{})

	first, err := svc.Analyze(context.Background(), []string{"ec2", "s3"})
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), []string{"ec2", "s3"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalysisService_SamplesEachColumnOnce(t *testing.T) {
	store := priceCostStore()
	ec2 := store.tables["ec2"]
	ec2.columns = append(ec2.columns, "price")
	store.tables["ec2"] = ec2
	svc := newAnalysisService(store, &recordingInst{})

	report, err := svc.Analyze(context.Background(), []string{"ec2", "s3", "ec2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ec2", "s3"}, report.Tables)
	assert.Equal(t, 1, store.samples["ec2.price"])
	assert.Len(t, report.SemanticMatches, 1)
	assert.Equal(t, []string{"price"}, report.NameMatches["ec2"].Within)
}

func TestAnalysisService_SharedColumns(t *testing.T) {
	store := &mockStore{tables: map[string]fakeTable{
		"a": {columns: []string{"price", "Region"}},
		"b": {columns: []string{"PRICE", "region"}},
		"c": {columns: []string{"price"}},
	}}
	svc := newAnalysisService(store, &recordingInst{})

	shared, skipped, err := svc.SharedColumns(context.Background(), []string{"a", "b", "c", "d"}, 2)
	require.NoError(t, err)

	require.Len(t, shared, 2)
	assert.Equal(t, "price", shared[0].Column)
	assert.Equal(t, 3, shared[0].Count)
	assert.Equal(t, "region", shared[1].Column)
	assert.Equal(t, 2, shared[1].Count)
	require.Len(t, skipped, 1)
	assert.Equal(t, "d", skipped[0].Table)
	assert.Empty(t, store.samples, "shared columns must not sample values")
}

func TestAnalysisService_SharedColumnsRejectsZero(t *testing.T) {
	svc := newAnalysisService(priceCostStore(), &recordingInst{})

	_, _, err := svc.SharedColumns(context.Background(), []string{"ec2"}, 0)
	require.Error(t, err)
}

func TestParseTableList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseTableList(" a, ,b ,"))
	assert.Nil(t, ParseTableList(""))
}
