package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/guillermoBallester/colscope"

// Instruments holds pre-created OTel metric instruments. It implements
// port.Instrumentation.
type Instruments struct {
	QueryCount       metric.Int64Counter
	QueryDuration    metric.Float64Histogram
	QueryErrors      metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	Degraded         metric.Int64Counter
	ToolDuration     metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(instrumentationName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(instrumentationName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("colscope.query.count",
		metric.WithDescription("Total number of store reads and ad-hoc queries executed"),
	)
	queryDuration, _ := meter.Float64Histogram("colscope.query.duration",
		metric.WithDescription("Store read duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("colscope.query.errors",
		metric.WithDescription("Total number of failed store reads"),
	)
	analysisDuration, _ := meter.Float64Histogram("colscope.analysis.duration",
		metric.WithDescription("End-to-end analysis duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	degraded, _ := meter.Int64Counter("colscope.gather.degraded",
		metric.WithDescription("Reads downgraded to absent evidence, by kind"),
	)
	toolDuration, _ := meter.Float64Histogram("colscope.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:       queryCount,
		QueryDuration:    queryDuration,
		QueryErrors:      queryErrors,
		AnalysisDuration: analysisDuration,
		Degraded:         degraded,
		ToolDuration:     toolDuration,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) RecordAnalysisDuration(ctx context.Context, ms float64) {
	i.AnalysisDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementDegraded(ctx context.Context, kind string) {
	i.Degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
