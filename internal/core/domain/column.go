package domain

import "strings"

// ColumnDescriptor is a column's metadata as reported by the store.
type ColumnDescriptor struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Table    string `json:"table"`
}

// ColumnNames returns the names of cols in their original order.
func ColumnNames(cols []ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// canonicalName is the grouping key used wherever column names are compared
// case-insensitively.
func canonicalName(name string) string {
	return strings.ToLower(name)
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ValueSample is a bounded, deduplicated set of non-null stringified values
// drawn from one column. An empty sample means the column is entirely null or
// the fetch failed; both are treated the same.
type ValueSample struct {
	Table  string              `json:"table"`
	Column string              `json:"column"`
	Values map[string]struct{} `json:"-"`
	Limit  int                 `json:"sample_size"`
}

// NewValueSample builds a sample from raw values, dropping duplicates and
// capping the set at limit distinct entries (limit <= 0 means no cap).
func NewValueSample(table, column string, limit int, values []string) ValueSample {
	s := ValueSample{
		Table:  table,
		Column: column,
		Values: make(map[string]struct{}, len(values)),
		Limit:  limit,
	}
	for _, v := range values {
		if limit > 0 && len(s.Values) >= limit {
			break
		}
		s.Values[v] = struct{}{}
	}
	return s
}

// EmptySample returns a sample with no values.
func EmptySample(table, column string, limit int) ValueSample {
	return NewValueSample(table, column, limit, nil)
}

// Len returns the number of distinct values in the sample.
func (s ValueSample) Len() int {
	return len(s.Values)
}

// IsEmpty reports whether the sample holds no values.
func (s ValueSample) IsEmpty() bool {
	return len(s.Values) == 0
}

// TableStats holds the row count of a table and the non-null count of each
// column whose statistic could be fetched. Columns whose count query failed
// appear in Failed instead of NonNull.
type TableStats struct {
	Table    string           `json:"table"`
	RowCount int64            `json:"row_count"`
	NonNull  map[string]int64 `json:"non_null"`
	Failed   map[string]error `json:"-"`
}

// NullRatio returns the fraction of null values in column and whether the
// ratio is known. It is unknown when the table is empty or the column's
// non-null count is missing.
func (s TableStats) NullRatio(column string) (float64, bool) {
	if s.RowCount <= 0 {
		return 0, false
	}
	nonNull, ok := s.NonNull[column]
	if !ok {
		return 0, false
	}
	return float64(s.RowCount-nonNull) / float64(s.RowCount), true
}
