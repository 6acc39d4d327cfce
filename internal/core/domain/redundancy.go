package domain

import (
	"fmt"
	"strings"
)

// RedundancyKind classifies how confident a redundancy verdict is.
type RedundancyKind string

const (
	RedundancyLikely    RedundancyKind = "likely_redundant"
	RedundancyPotential RedundancyKind = "potentially_redundant"
)

// RedundancyRule names the heuristic that produced a verdict.
type RedundancyRule string

const (
	RuleNaming    RedundancyRule = "naming"
	RuleNearEmpty RedundancyRule = "near_empty"
)

const (
	reasonIdentifier = "Identifier column, may be unnecessary for comparison"
	reasonMetadata   = "Metadata column, likely non-essential"
)

// RedundancyVerdict is one reason a column may be dropped. A column can earn
// several verdicts, one per rule that fired.
type RedundancyVerdict struct {
	Column string         `json:"column"`
	Kind   RedundancyKind `json:"kind"`
	Rule   RedundancyRule `json:"rule"`
	Reason string         `json:"reason"`

	// NullRatio is set for near-empty verdicts.
	NullRatio float64 `json:"null_ratio,omitempty"`
}

// RedundancyResult groups a table's verdicts by kind. Verdicts accumulate:
// the same column may appear in LikelyRedundant once per rule.
type RedundancyResult struct {
	LikelyRedundant      []RedundancyVerdict `json:"likely_redundant"`
	PotentiallyRedundant []RedundancyVerdict `json:"potentially_redundant"`
}

// Verdicts returns every verdict for column across both buckets.
func (r RedundancyResult) Verdicts(column string) []RedundancyVerdict {
	var out []RedundancyVerdict
	for _, v := range r.LikelyRedundant {
		if v.Column == column {
			out = append(out, v)
		}
	}
	for _, v := range r.PotentiallyRedundant {
		if v.Column == column {
			out = append(out, v)
		}
	}
	return out
}

func (r *RedundancyResult) add(v RedundancyVerdict) {
	switch v.Kind {
	case RedundancyLikely:
		r.LikelyRedundant = append(r.LikelyRedundant, v)
	case RedundancyPotential:
		r.PotentiallyRedundant = append(r.PotentiallyRedundant, v)
	}
}

// ClassifyNaming applies the naming rule to a single column name. Names
// containing a redundancy keyword are metadata (likely redundant) unless they
// also contain an identifier keyword, in which case they are only potentially
// redundant.
func ClassifyNaming(column string, s Settings) (RedundancyVerdict, bool) {
	lower := canonicalName(column)
	if !containsAny(lower, lowerAll(s.RedundancyKeywords)) {
		return RedundancyVerdict{}, false
	}
	if containsAny(lower, lowerAll(s.IdentifierKeywords)) {
		return RedundancyVerdict{
			Column: column,
			Kind:   RedundancyPotential,
			Rule:   RuleNaming,
			Reason: reasonIdentifier,
		}, true
	}
	return RedundancyVerdict{
		Column: column,
		Kind:   RedundancyLikely,
		Rule:   RuleNaming,
		Reason: reasonMetadata,
	}, true
}

// ClassifyNearEmpty applies the null-density rule. It yields no verdict when
// the ratio is unknown (empty table or failed statistic).
func ClassifyNearEmpty(column string, stats TableStats, s Settings) (RedundancyVerdict, bool) {
	ratio, ok := stats.NullRatio(column)
	if !ok || ratio < s.NearEmptyThreshold {
		return RedundancyVerdict{}, false
	}
	return RedundancyVerdict{
		Column:    column,
		Kind:      RedundancyLikely,
		Rule:      RuleNearEmpty,
		Reason:    fmt.Sprintf("Near-empty column (%s nulls), contains mostly null values", formatPercent(ratio)),
		NullRatio: ratio,
	}, true
}

// ClassifyRedundancy runs both rules over every column of one table. The
// naming verdicts for all columns come first, then the near-empty ones.
func ClassifyRedundancy(cols []ColumnDescriptor, stats TableStats, s Settings) RedundancyResult {
	result := RedundancyResult{
		LikelyRedundant:      []RedundancyVerdict{},
		PotentiallyRedundant: []RedundancyVerdict{},
	}
	for _, c := range cols {
		if v, ok := ClassifyNaming(c.Name, s); ok {
			result.add(v)
		}
	}
	for _, c := range cols {
		if v, ok := ClassifyNearEmpty(c.Name, stats, s); ok {
			result.add(v)
		}
	}
	return result
}

func formatPercent(ratio float64) string {
	p := fmt.Sprintf("%.2f", ratio*100)
	p = strings.TrimRight(strings.TrimRight(p, "0"), ".")
	if p == "" {
		p = "0"
	}
	return p + "%"
}
