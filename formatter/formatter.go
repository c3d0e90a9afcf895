package formatter

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"practice-insights/followup"
	"practice-insights/models"
	"practice-insights/pipeline"
)

// NA is rendered for metrics that are undefined.
const NA = "N/A"

// ReportData holds prepared report data used by all formatters
type ReportData struct {
	Months    []MonthLine
	Forecasts []models.ForecastSeries
	FollowUp  *followup.Result
	Workforce *models.WorkforceSummary
}

// MonthLine is one month's headline figures as display strings
type MonthLine struct {
	Month       string
	WorkingDays int
	TotalAppts  int
	GPAppts     int
	Values      map[string]string
}

// Column is one rendered KPI.
type Column struct {
	Key    string
	Header string
	Unit   string
	Value  func(m models.EnrichedMonth) *float64
}

// Columns lists the per-month KPIs in report order.
var Columns = []Column{
	{Key: "dna", Header: "DNA %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.DNAPct }},
	{Key: "utilization", Header: "Utilization %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.Utilization }},
	{Key: "gpApptPerDay", Header: "GP Appts/Day %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.GPApptPerDayPct }},
	{Key: "triage", Header: "GP Triage Capacity/Day %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.GPTriageCapacityPerDayPct }},
	{Key: "apptsPer1000", Header: "Appts per 1000", Value: func(m models.EnrichedMonth) *float64 { return m.ApptsPer1000 }},
	{Key: "onlinePer1000", Header: "Online per 1000", Value: func(m models.EnrichedMonth) *float64 { return m.OnlinePer1000 }},
	{Key: "answerRate", Header: "Call Answer Rate %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.CallAnswerRatePct }},
	{Key: "callbackRate", Header: "Callback Rate %", Unit: "%", Value: func(m models.EnrichedMonth) *float64 { return m.CallbackRatePct }},
	{Key: "conversion", Header: "Conversion Ratio", Value: func(m models.EnrichedMonth) *float64 { return m.ConversionRatio }},
	{Key: "extraSlots", Header: "Extra Slots/Day", Value: func(m models.EnrichedMonth) *float64 { return m.ExtraSlotsPerDay }},
}

// prepareReportData extracts and organizes run data for formatting
func prepareReportData(res *pipeline.Result) *ReportData {
	data := &ReportData{
		Months:    make([]MonthLine, 0, len(res.Months)),
		FollowUp:  res.FollowUp,
		Workforce: res.Workforce,
	}
	for _, m := range res.Months {
		line := MonthLine{
			Month:       m.Month,
			WorkingDays: m.WorkingDays,
			TotalAppts:  m.TotalAppts,
			GPAppts:     m.GPAppts,
			Values:      make(map[string]string, len(Columns)),
		}
		for _, c := range Columns {
			line.Values[c.Key] = Number(c.Value(m), c.Unit)
		}
		data.Months = append(data.Months, line)
	}

	keys := make([]string, 0, len(res.Forecasts))
	for k := range res.Forecasts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Forecasts = append(data.Forecasts, res.Forecasts[k])
	}
	return data
}

// Number renders v with two decimals and an optional unit, or N/A.
func Number(v *float64, unit string) string {
	if v == nil {
		return NA
	}
	return fmt.Sprintf("%.2f%s", *v, unit)
}

// FormatText returns the text representation of a processing run
func FormatText(res *pipeline.Result) string {
	data := prepareReportData(res)
	var sb strings.Builder

	for _, m := range data.Months {
		sb.WriteString(formatTextLine(m))
		sb.WriteString("\n")
	}

	for _, f := range data.Forecasts {
		sb.WriteString(formatForecastLine(f))
		sb.WriteString("\n")
	}

	if data.FollowUp != nil {
		sb.WriteString(fmt.Sprintf("Follow-up: patients=%d, appointments=%d\n",
			data.FollowUp.Patients, data.FollowUp.Appointments))
		sb.WriteString(formatRates("any doctor", data.FollowUp.AnyDoctor))
		sb.WriteString(formatRates("same GP", data.FollowUp.SameGP))
	}

	if w := data.Workforce; w != nil {
		label := "Workforce"
		if w.Month != "" {
			label = fmt.Sprintf("Workforce %s", strings.TrimSpace(w.Practice+" "+w.Month))
		}
		sb.WriteString(fmt.Sprintf("%s: wte=%.2f (gp=%.2f, clinical=%.2f, arrs=%.2f, non-clinical=%.2f) ; patients/WTE=%s ; patients/GP WTE=%s\n",
			label, w.Totals.TotalWte, w.Totals.TotalWteGP, w.Totals.TotalWteClinical,
			w.Totals.TotalWteARRS, w.Totals.TotalWteNonClinical,
			Number(w.PatientsPerWte, ""), Number(w.PatientsPerGPWte, "")))
		for _, c := range w.Capacity {
			sb.WriteString(fmt.Sprintf("  capacity %s: actual=%.0f, theoretical=%.0f, utilization=%s\n",
				c.Group, c.Actual, c.Theoretical, Number(scale(c.Utilization, 100), "%")))
			if c.OverCapacity {
				sb.WriteString(fmt.Sprintf("  ⚠️  OVER CAPACITY: %s group is above its modelled capacity\n", c.Group))
			}
		}
	}

	return sb.String()
}

// FormatJSON returns the JSON representation of a processing run
func FormatJSON(res *pipeline.Result) string {
	jsonBytes, _ := json.MarshalIndent(res, "", "  ")
	return string(jsonBytes)
}

// FormatCSV returns one CSV row per month
func FormatCSV(res *pipeline.Result) string {
	data := prepareReportData(res)
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	header := []string{"Month", "Working Days", "Total Appointments", "GP Appointments"}
	for _, c := range Columns {
		header = append(header, c.Header)
	}
	writer.Write(header)

	for _, m := range data.Months {
		row := []string{
			m.Month,
			fmt.Sprintf("%d", m.WorkingDays),
			fmt.Sprintf("%d", m.TotalAppts),
			fmt.Sprintf("%d", m.GPAppts),
		}
		for _, c := range Columns {
			row = append(row, m.Values[c.Key])
		}
		writer.Write(row)
	}

	writer.Flush()
	return sb.String()
}

// formatTextLine formats a single month line for text output
func formatTextLine(m MonthLine) string {
	parts := make([]string, 0, len(Columns))
	for _, c := range Columns {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Key, m.Values[c.Key]))
	}
	return fmt.Sprintf("%s : appts=%d (gp=%d) ; days=%d ; [%s]",
		m.Month, m.TotalAppts, m.GPAppts, m.WorkingDays, strings.Join(parts, ", "))
}

// formatForecastLine formats one forecast series
func formatForecastLine(f models.ForecastSeries) string {
	if !f.HasData {
		return fmt.Sprintf("Forecast %s: insufficient data (%d months)", f.Metric, f.Count)
	}
	var projected []string
	for i := f.Count; i < len(f.Labels); i++ {
		projected = append(projected, fmt.Sprintf("%s=%.0f", f.Labels[i], f.Projected[i]))
	}
	return fmt.Sprintf("Forecast %s: trend=%s, slope=%.2f, r2=%.2f ; [%s]",
		f.Metric, f.Trend, f.Slope, f.R2, strings.Join(projected, ", "))
}

func formatRates(label string, r followup.Rates) string {
	return fmt.Sprintf("  %s: pairs=%d, <=7d=%s, <=14d=%s, <=28d=%s\n",
		label, r.Total, Number(r.Within7, "%"), Number(r.Within14, "%"), Number(r.Within28, "%"))
}

func scale(v *float64, by float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * by
	return &s
}
