package domain

import "time"

// SkippedTable records a table excluded from the comparison set.
type SkippedTable struct {
	Table  string `json:"table"`
	Reason string `json:"reason"`
}

// AnalysisReport aggregates every verdict for one analysis run. It is built
// once by the orchestrator and not modified afterwards.
type AnalysisReport struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	// Tables is the resolvable table set in analysis order.
	Tables  []string       `json:"tables"`
	Skipped []SkippedTable `json:"skipped_tables,omitempty"`

	Columns         map[string][]ColumnDescriptor `json:"columns"`
	NameMatches     map[string]NameMatchResult    `json:"name_matches"`
	SemanticMatches []SemanticMatch               `json:"semantic_matches"`
	Redundancy      map[string]RedundancyResult   `json:"redundancy"`
	Importance      map[string]ImportanceResult   `json:"importance"`
	SharedColumns   []SharedColumn                `json:"shared_columns"`
	MinOccurrence   int                           `json:"min_occurrence"`
}

// SemanticMatchesFor returns the semantic matches that involve table.
func (r *AnalysisReport) SemanticMatchesFor(table string) []SemanticMatch {
	var out []SemanticMatch
	for _, m := range r.SemanticMatches {
		if m.Involves(table) {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot is the raw facts gathered for a table set: descriptors, value
// samples, and null statistics. Every classifier reads from it.
type Snapshot struct {
	Tables  []string
	Columns map[string][]ColumnDescriptor
	Samples map[string][]ValueSample
	Stats   map[string]TableStats
}

// BuildReport runs every detector against snap and merges the results.
func BuildReport(runID string, generatedAt time.Time, snap Snapshot, skipped []SkippedTable, s Settings) *AnalysisReport {
	names := make(map[string][]string, len(snap.Tables))
	for _, t := range snap.Tables {
		names[t] = ColumnNames(snap.Columns[t])
	}

	report := &AnalysisReport{
		RunID:           runID,
		GeneratedAt:     generatedAt,
		Tables:          snap.Tables,
		Skipped:         skipped,
		Columns:         snap.Columns,
		NameMatches:     DetectNameMatches(snap.Tables, names),
		SemanticMatches: DetectSemanticMatches(snap.Tables, snap.Samples, s.SemanticThreshold),
		Redundancy:      make(map[string]RedundancyResult, len(snap.Tables)),
		Importance:      make(map[string]ImportanceResult, len(snap.Tables)),
		SharedColumns:   FindSharedColumns(snap.Tables, names, s.MinOccurrence),
		MinOccurrence:   s.MinOccurrence,
	}

	for _, t := range snap.Tables {
		report.Redundancy[t] = ClassifyRedundancy(snap.Columns[t], snap.Stats[t], s)
		report.Importance[t] = ScoreImportance(names[t], s.PrioritiesFor(t), s.ConfigurationKeywords)
	}

	return report
}
