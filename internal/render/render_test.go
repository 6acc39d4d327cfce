package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptors(table string, names ...string) []domain.ColumnDescriptor {
	out := make([]domain.ColumnDescriptor, len(names))
	for i, n := range names {
		out[i] = domain.ColumnDescriptor{Name: n, DataType: "text", Table: table}
	}
	return out
}

func sampleReport() *domain.AnalysisReport {
	prices := []string{"0.1", "0.2", "0.3"}
	snap := domain.Snapshot{
		Tables: []string{"ec2", "s3"},
		Columns: map[string][]domain.ColumnDescriptor{
			"ec2": descriptors("ec2", "instance_type", "price", "region"),
			"s3":  descriptors("s3", "storage_class", "cost", "region", "notes"),
		},
		Samples: map[string][]domain.ValueSample{
			"ec2": {domain.NewValueSample("ec2", "price", 500, prices)},
			"s3":  {domain.NewValueSample("s3", "cost", 500, prices)},
		},
		Stats: map[string]domain.TableStats{
			"s3": {Table: "s3", RowCount: 100, NonNull: map[string]int64{"notes": 3}},
		},
	}
	settings := domain.DefaultSettings()
	settings.MinOccurrence = 2
	settings.Priorities = map[string][]string{"ec2": {"instance_type", "price"}}

	skipped := []domain.SkippedTable{{Table: "lambda", Reason: "schema lookup failed: not found"}}
	return domain.BuildReport("run-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), snap, skipped, settings)
}

func TestReport_Sections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "1. DUPLICATE INFORMATION")
	assert.Contains(t, out, "Cross-table duplicates with s3 (name match): region")
	assert.Contains(t, out, "'price' (in ec2) and 'cost' (in s3) have high data overlap (1.00)")
	assert.Contains(t, out, "'cost' (in s3) and 'price' (in ec2)")

	assert.Contains(t, out, "2. SHARED COLUMNS ACROSS TABLES")
	assert.Contains(t, out, "Columns appearing in at least 2 of 2 tables:")
	assert.Contains(t, out, "  - region  |  Appears in 2 tables: ec2, s3")

	assert.Contains(t, out, "3. MOST IMPORTANT TABLE-SPECIFIC COLUMNS")
	assert.Contains(t, out, "Most critical: instance_type, price")
	assert.Contains(t, out, "Configuration-specific: storage_class")

	assert.Contains(t, out, "4. REDUNDANT COLUMNS")
	assert.Contains(t, out, "notes: Metadata column, likely non-essential")
	assert.Contains(t, out, "notes: Near-empty column (97% nulls), contains mostly null values")

	assert.Contains(t, out, "SKIPPED TABLES")
	assert.Contains(t, out, "lambda: schema lookup failed: not found")
}

func TestReport_NoFindings(t *testing.T) {
	snap := domain.Snapshot{
		Tables:  []string{"solo"},
		Columns: map[string][]domain.ColumnDescriptor{"solo": descriptors("solo", "price")},
	}
	r := domain.BuildReport("run-2", time.Now(), snap, nil, domain.DefaultSettings())

	var buf bytes.Buffer
	require.NoError(t, Report(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "No significant duplicates found (by name or data sample).")
	assert.Contains(t, out, "No columns appear in 3 or more tables.")
	assert.NotContains(t, out, "SKIPPED TABLES")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestReport_WriteError(t *testing.T) {
	err := Report(failingWriter{}, sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestJSON_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded["run_id"])
	matches, ok := decoded["semantic_matches"].([]any)
	require.True(t, ok)
	require.Len(t, matches, 1)
	assert.Equal(t, "High data overlap (1.00) suggests semantic duplication.", matches[0].(map[string]any)["reason"])
	assert.Contains(t, decoded, "skipped_tables")
}

func TestShared(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Shared(&buf, 2,
		[]domain.SharedColumn{{Column: "region", Count: 2, Tables: []string{"ec2", "s3"}}},
		[]domain.SkippedTable{{Table: "lambda", Reason: "not found"}},
	))
	out := buf.String()

	assert.Contains(t, out, "region  |  Appears in 2 tables: ec2, s3")
	assert.Contains(t, out, "skipped lambda: not found")

	buf.Reset()
	require.NoError(t, Shared(&buf, 4, nil, nil))
	assert.Equal(t, "No columns appear in 4 or more tables.\n", buf.String())
}

func TestExploration(t *testing.T) {
	e := &service.TableExploration{
		Table:    "ec2",
		RowCount: -1,
		Columns:  descriptors("ec2", "instance_type", "price"),
		SampleRows: []map[string]any{
			{"price": 0.1, "instance_type": "t3.micro"},
		},
		PatternSamples: []service.PatternSample{
			{Pattern: "price", Column: "price", Values: []string{"0.1", "0.2"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Exploration(&buf, e))
	out := buf.String()

	assert.Contains(t, out, "Table: ec2")
	assert.Contains(t, out, "Rows: unavailable")
	assert.Contains(t, out, "instance_type")
	assert.Contains(t, out, "Row 1: instance_type=t3.micro, price=0.1")
	assert.Contains(t, out, "[price] price: 0.1, 0.2")
}

func TestRowCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RowCounts(&buf, []service.RowCount{
		{Table: "ec2", Rows: 100},
		{Table: "s3", Rows: -1, Error: "permission denied"},
	}))
	out := buf.String()

	assert.Contains(t, out, "ec2")
	assert.Contains(t, out, "100")
	assert.Contains(t, out, "-1")
	assert.Contains(t, out, "(permission denied)")
}
