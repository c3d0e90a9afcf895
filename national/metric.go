package national

import (
	"sort"

	"practice-insights/models"
)

// Metric is a comparable per-month KPI.
type Metric struct {
	Name           string
	HigherIsBetter bool
	Value          func(m models.EnrichedMonth) *float64
}

// Metrics lists every KPI a practice can be compared on.
var Metrics = []Metric{
	{Name: "gpApptPerDayPct", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.GPApptPerDayPct }},
	{Name: "gpTriageCapacityPerDayPct", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.GPTriageCapacityPerDayPct }},
	{Name: "utilization", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.Utilization }},
	{Name: "dnaPct", Value: func(m models.EnrichedMonth) *float64 { return m.DNAPct }},
	{Name: "gpDnaPct", Value: func(m models.EnrichedMonth) *float64 { return m.GPDNAPct }},
	{Name: "apptsPer1000", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.ApptsPer1000 }},
	{Name: "gpApptsPer1000", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.GPApptsPer1000 }},
	{Name: "onlinePer1000", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.OnlinePer1000 }},
	{Name: "inboundPer1000", Value: func(m models.EnrichedMonth) *float64 { return m.InboundPer1000 }},
	{Name: "callAnswerRatePct", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.CallAnswerRatePct }},
	{Name: "missedCallRatePct", Value: func(m models.EnrichedMonth) *float64 { return m.MissedCallRatePct }},
	{Name: "callbackRatePct", Value: func(m models.EnrichedMonth) *float64 { return m.CallbackRatePct }},
	{Name: "avgWaitSeconds", Value: func(m models.EnrichedMonth) *float64 { return m.AvgWaitSeconds }},
	{Name: "conversionRatio", HigherIsBetter: true, Value: func(m models.EnrichedMonth) *float64 { return m.ConversionRatio }},
	{Name: "extraSlotsPerDay", Value: func(m models.EnrichedMonth) *float64 { return m.ExtraSlotsPerDay }},
}

var metricsByName = func() map[string]Metric {
	m := make(map[string]Metric, len(Metrics))
	for _, def := range Metrics {
		m[def.Name] = def
	}
	return m
}()

// Lookup returns the metric named name.
func Lookup(name string) (Metric, bool) {
	def, ok := metricsByName[name]
	return def, ok
}

// MetricNames returns the comparable metric names in alphabetical order.
func MetricNames() []string {
	names := make([]string, 0, len(Metrics))
	for _, def := range Metrics {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}
