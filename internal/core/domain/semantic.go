package domain

import (
	"encoding/json"
	"fmt"
)

// SemanticMatch pairs two columns from different tables whose sampled values
// overlap above the configured threshold. Each unordered column pair appears
// at most once; TableA precedes TableB in the analyzed table order.
type SemanticMatch struct {
	TableA     string  `json:"table_a"`
	ColumnA    string  `json:"column_a"`
	TableB     string  `json:"table_b"`
	ColumnB    string  `json:"column_b"`
	Similarity float64 `json:"similarity"`
}

// Reason describes why the pair was reported.
func (m SemanticMatch) Reason() string {
	return fmt.Sprintf("High data overlap (%.2f) suggests semantic duplication.", m.Similarity)
}

// MarshalJSON adds the reason to the serialized match.
func (m SemanticMatch) MarshalJSON() ([]byte, error) {
	type plain SemanticMatch
	return json.Marshal(struct {
		plain
		Reason string `json:"reason"`
	}{plain(m), m.Reason()})
}

// Involves reports whether table is one side of the match.
func (m SemanticMatch) Involves(table string) bool {
	return m.TableA == table || m.TableB == table
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets yield 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for v := range small {
		if _, ok := large[v]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// DetectSemanticMatches compares every column of every table against every
// column of every other table and reports pairs whose Jaccard similarity is
// strictly greater than threshold. samples maps a table to its per-column
// samples in column order. Each table pair is visited exactly once (i < j in
// tables order), so no pair needs deduplication afterwards. Pairs where
// either sample is empty are skipped.
func DetectSemanticMatches(tables []string, samples map[string][]ValueSample, threshold float64) []SemanticMatch {
	tables = UniqueTables(tables)
	matches := []SemanticMatch{}

	forEachTablePair(tables, func(ta, tb string) {
		for _, a := range samples[ta] {
			if a.IsEmpty() {
				continue
			}
			for _, b := range samples[tb] {
				if b.IsEmpty() {
					continue
				}
				sim := Jaccard(a.Values, b.Values)
				if sim > threshold {
					matches = append(matches, SemanticMatch{
						TableA:     ta,
						ColumnA:    a.Column,
						TableB:     tb,
						ColumnB:    b.Column,
						Similarity: sim,
					})
				}
			}
		}
	})

	return matches
}
