package domain

import "sort"

// SharedColumn is a lower-cased column name found in at least K tables.
type SharedColumn struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Tables []string `json:"tables"`
}

// FindSharedColumns groups column names case-insensitively across tables and
// keeps those owned by at least minOccurrence distinct tables. Results are
// sorted by count descending; ties keep first-encounter order.
func FindSharedColumns(tables []string, columns map[string][]string, minOccurrence int) []SharedColumn {
	type entry struct {
		owners map[string]bool
		order  []string
	}

	var keys []string
	byKey := make(map[string]*entry)

	for _, table := range UniqueTables(tables) {
		for _, name := range columns[table] {
			key := canonicalName(name)
			e, ok := byKey[key]
			if !ok {
				e = &entry{owners: make(map[string]bool)}
				byKey[key] = e
				keys = append(keys, key)
			}
			if !e.owners[table] {
				e.owners[table] = true
				e.order = append(e.order, table)
			}
		}
	}

	shared := []SharedColumn{}
	for _, key := range keys {
		e := byKey[key]
		if len(e.owners) < minOccurrence {
			continue
		}
		owners := append([]string(nil), e.order...)
		sort.Strings(owners)
		shared = append(shared, SharedColumn{
			Column: key,
			Count:  len(e.owners),
			Tables: owners,
		})
	}

	sort.SliceStable(shared, func(i, j int) bool {
		return shared[i].Count > shared[j].Count
	})
	return shared
}
