// Package metrics provides Prometheus observability metrics for the practice
// insights pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

// factory allows us to register metrics to our custom Registry directly
var factory = promauto.With(Registry)

// =============================================================================
// PARSING
// =============================================================================

// ParserRecordsTotal counts CSV data rows read, by file kind.
var ParserRecordsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "records_total",
	Help:      "Total CSV data rows read, by file kind",
}, []string{"kind"})

// ParserErrorsTotal counts fatal parse failures by error type.
var ParserErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "errors_total",
	Help:      "Total fatal parse errors by error type",
}, []string{"error_type"})

// RowsSkippedTotal counts malformed rows dropped without aborting a run.
var RowsSkippedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "rows_skipped_total",
	Help:      "Rows skipped because of an unparseable date or value, by file kind",
}, []string{"kind"})

// ParserDurationSeconds tracks time to read one input file.
var ParserDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "parser",
	Name:      "duration_seconds",
	Help:      "Time taken to read one CSV input file",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
})

// =============================================================================
// PROCESSING
// =============================================================================

// PipelineRunsTotal counts processing runs by outcome.
var PipelineRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pipeline",
	Name:      "runs_total",
	Help:      "Processing runs by outcome (ok|error)",
}, []string{"outcome"})

// PipelineDurationSeconds tracks time to derive all monthly metrics.
var PipelineDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pipeline",
	Name:      "duration_seconds",
	Help:      "Time taken for one processing run",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1.0},
})

// MonthsProduced is the number of enriched months of the latest run.
var MonthsProduced = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "pipeline",
	Name:      "months_produced",
	Help:      "Number of calendar months in the latest processing run",
})

// RowsDroppedTotal counts secondary rows dropped because their month or
// staff member was not present in the appointments data.
var RowsDroppedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pipeline",
	Name:      "rows_dropped_total",
	Help:      "Secondary rows dropped for an unknown month or staff member, by source",
}, []string{"source"})

// =============================================================================
// COMPARISON
// =============================================================================

// PracticeLoadsTotal counts comparison practice loads by status.
var PracticeLoadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "comparison",
	Name:      "practice_loads_total",
	Help:      "Comparison practice loads by status (ok|expired|error)",
}, []string{"status"})

// OutliersFlaggedTotal counts national comparisons flagged as outliers.
var OutliersFlaggedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "comparison",
	Name:      "outliers_flagged_total",
	Help:      "National comparisons flagged as outliers, by direction",
}, []string{"direction"})

// =============================================================================
// Helper Functions
// =============================================================================

// ResetRunGauges resets per-run gauges before a new processing run.
func ResetRunGauges() {
	MonthsProduced.Set(0)
}
