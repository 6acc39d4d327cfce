package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordQueryDuration(ctx context.Context, ms float64)
	IncrementQueryCount(ctx context.Context)
	IncrementQueryErrors(ctx context.Context)
	RecordAnalysisDuration(ctx context.Context, ms float64)
	// IncrementDegraded counts a read that failed and was downgraded to an
	// absent result. kind is "schema", "sample", or "statistic".
	IncrementDegraded(ctx context.Context, kind string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordQueryDuration(context.Context, float64)    {}
func (NoopInstrumentation) IncrementQueryCount(context.Context)             {}
func (NoopInstrumentation) IncrementQueryErrors(context.Context)            {}
func (NoopInstrumentation) RecordAnalysisDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementDegraded(context.Context, string)       {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)     {}
