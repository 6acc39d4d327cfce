package domain

import "sort"

// AcrossNameMatch lists the column names a table shares with one other table.
type AcrossNameMatch struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// NameMatchResult is the structural duplicate verdict for one table.
type NameMatchResult struct {
	// Within holds names repeated in the table's own descriptor list. This is
	// a schema anomaly rather than real duplication.
	Within []string          `json:"within_name_match"`
	Across []AcrossNameMatch `json:"across_name_match"`
}

// DetectNameMatches finds within-table repeats and cross-table name
// collisions. columns maps each table to its ordered column names; tables
// fixes the iteration order. Names are compared exactly as the store reports
// them. A cross-table collision is recorded on both tables.
func DetectNameMatches(tables []string, columns map[string][]string) map[string]NameMatchResult {
	tables = UniqueTables(tables)
	result := make(map[string]NameMatchResult, len(tables))

	sets := make(map[string]map[string]struct{}, len(tables))
	for _, table := range tables {
		seen := make(map[string]int)
		within := []string{}
		for _, name := range columns[table] {
			seen[name]++
			if seen[name] == 2 {
				within = append(within, name)
			}
		}
		set := make(map[string]struct{}, len(seen))
		for name := range seen {
			set[name] = struct{}{}
		}
		sets[table] = set
		result[table] = NameMatchResult{Within: within, Across: []AcrossNameMatch{}}
	}

	forEachTablePair(tables, func(a, b string) {
		common := intersectNames(sets[a], sets[b])
		if len(common) == 0 {
			return
		}
		ra := result[a]
		ra.Across = append(ra.Across, AcrossNameMatch{Table: b, Columns: common})
		result[a] = ra

		rb := result[b]
		rb.Across = append(rb.Across, AcrossNameMatch{Table: a, Columns: append([]string(nil), common...)})
		result[b] = rb
	})

	return result
}

// forEachTablePair calls fn once for every unordered pair of distinct tables,
// with a preceding b in the given order.
func forEachTablePair(tables []string, fn func(a, b string)) {
	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			fn(tables[i], tables[j])
		}
	}
}

// UniqueTables drops repeated table names, keeping first occurrences.
func UniqueTables(tables []string) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func intersectNames(a, b map[string]struct{}) []string {
	if len(b) < len(a) {
		a, b = b, a
	}
	var out []string
	for name := range a {
		if _, ok := b[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
