// Package calculator derives monthly KPIs from aggregated totals. Every
// function is pure and returns nil instead of dividing by zero.
package calculator

import (
	"math"

	"practice-insights/models"
)

// Ratio returns num / den, or nil when den is zero or the result is not a
// finite number.
func Ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return finite(num / den)
}

// Percentage returns num / den * 100, or nil when den is zero.
func Percentage(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return finite(num / den * 100)
}

// Per1000 normalises a count to a rate per 1000 registered patients.
func Per1000(value, population float64) *float64 {
	if population <= 0 {
		return nil
	}
	return finite(value / population * 1000)
}

// PerWorkingDay spreads a monthly count over the month's working days.
func PerWorkingDay(value float64, workingDays int) *float64 {
	if workingDays <= 0 {
		return nil
	}
	return finite(value / float64(workingDays))
}

// CalculateDNARate is the share of booked appointments not attended.
func CalculateDNARate(dna, total float64) *float64 {
	return Percentage(dna, total)
}

// GPApptPerDayPct is GP appointments per working day as a percentage of the
// registered population.
func GPApptPerDayPct(gpAppts, population float64, workingDays int) *float64 {
	if population <= 0 || workingDays <= 0 {
		return nil
	}
	return finite(gpAppts / (population * float64(workingDays)) * 100)
}

// GPTriageCapacityPerDayPct adds digitally resolved medical requests to GP
// appointments before normalising per working day and population.
func GPTriageCapacityPerDayPct(gpAppts, onlineResolved, population float64, workingDays int) *float64 {
	if population <= 0 || workingDays <= 0 {
		return nil
	}
	return finite((gpAppts + onlineResolved) / float64(workingDays) / population * 100)
}

// Utilization is the share of offered slots that were booked.
func Utilization(totalAppts, estUnused float64) *float64 {
	return Percentage(totalAppts, totalAppts+estUnused)
}

// ConversionRatio is appointments per answered inbound call.
func ConversionRatio(totalAppts, answeredCalls float64) *float64 {
	return Ratio(totalAppts, answeredCalls)
}

// DemandConversionRatio is appointments per unit of multi-channel demand:
// inbound calls plus medical online submissions.
func DemandConversionRatio(totalAppts, inboundCalls, medicalOnline float64) *float64 {
	return Ratio(totalAppts, inboundCalls+medicalOnline)
}

// GPBookingRatio is GP appointments per answered call.
func GPBookingRatio(gpAppts, answeredCalls float64) *float64 {
	return Ratio(gpAppts, answeredCalls)
}

// ExtraSlotsPerDay estimates the daily GP shortfall: the appointments unique
// missed callers would have booked, less GP capacity already wasted on
// unused slots and DNAs. Negative values mean spare capacity.
func ExtraSlotsPerDay(gpBookingRatio, uniqueMissed *float64, estGPUnused, estGPDNA float64, workingDays int) *float64 {
	if gpBookingRatio == nil || uniqueMissed == nil || workingDays <= 0 {
		return nil
	}
	hidden := *gpBookingRatio * *uniqueMissed
	return finite((hidden - (estGPUnused + estGPDNA)) / float64(workingDays))
}

// UniqueMissedCallers returns the report's unique missed caller figure. When
// the report has none, a positive repeatFactor estimates it from all missed
// calls; otherwise the figure is unknown.
func UniqueMissedCallers(t models.TelephonyStats, repeatFactor float64) *float64 {
	if t.MissedExcludingRepeats != nil {
		v := float64(*t.MissedExcludingRepeats)
		return &v
	}
	if repeatFactor > 0 {
		v := float64(t.MissedFromQueue) * repeatFactor
		return &v
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ptr(v float64) *float64 {
	return &v
}
