package domain

import "errors"

// Failure taxonomy for the profiling pass. Adapters tag their errors with one
// of these so callers can decide between skipping and degrading with errors.Is.
var (
	// ErrSchemaLookup means column metadata for a table is unavailable.
	// The table is dropped from the comparison set.
	ErrSchemaLookup = errors.New("schema lookup failed")

	// ErrSampleFetch means a value sampling query failed. Recovered as an
	// empty ValueSample.
	ErrSampleFetch = errors.New("sample fetch failed")

	// ErrStatisticFetch means a row or non-null count query failed. Recovered
	// as "no verdict" from the near-empty rule.
	ErrStatisticFetch = errors.New("statistic fetch failed")

	// ErrNoTables is returned when none of the requested tables resolve.
	ErrNoTables = errors.New("no resolvable tables")

	ErrNotFound      = errors.New("not found")
	ErrSessionClosed = errors.New("session closed")
)
