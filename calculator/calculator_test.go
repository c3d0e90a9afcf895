package calculator_test

import (
	"math"
	"testing"
	"time"

	"practice-insights/calculator"
	"practice-insights/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

// assertValue checks a nullable KPI against an expected nullable value.
func assertValue(t *testing.T, expected, got *float64) {
	t.Helper()
	if expected == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.InDelta(t, *expected, *got, 1e-9)
}

func TestCalculateDNARate(t *testing.T) {
	tests := map[string]struct {
		dna, total float64
		expected   *float64
	}{
		"ZeroTotal":    {dna: 5, total: 0, expected: nil},
		"FivePercent":  {dna: 5, total: 100, expected: f(5)},
		"NoDNAs":       {dna: 0, total: 40, expected: f(0)},
		"Fractional":   {dna: 1, total: 3, expected: f(1.0 / 3 * 100)},
		"AllocatedDNA": {dna: 2.5, total: 50, expected: f(5)},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := calculator.CalculateDNARate(tt.dna, tt.total)
			assertValue(t, tt.expected, got)
			if got != nil {
				assert.Equal(t, tt.dna/tt.total*100, *got, "must equal dna/total*100 exactly")
			}
		})
	}
}

func TestKPIFunctions(t *testing.T) {
	tests := map[string]struct {
		got      *float64
		expected *float64
	}{
		"GPApptPerDayPct":              {calculator.GPApptPerDayPct(1120, 5600, 20), f(1)},
		"GPApptPerDayPct_NoPopulation": {calculator.GPApptPerDayPct(1120, 0, 20), nil},
		"GPApptPerDayPct_NoDays":       {calculator.GPApptPerDayPct(1120, 5600, 0), nil},
		"TriageCapacity":               {calculator.GPTriageCapacityPerDayPct(1000, 120, 5600, 20), f(1)},
		"TriageCapacity_NoDays":        {calculator.GPTriageCapacityPerDayPct(1000, 120, 5600, 0), nil},
		"Utilization":                  {calculator.Utilization(90, 10), f(90)},
		"Utilization_Empty":            {calculator.Utilization(0, 0), nil},
		"ConversionRatio":              {calculator.ConversionRatio(300, 600), f(0.5)},
		"ConversionRatio_NoCalls":      {calculator.ConversionRatio(300, 0), nil},
		"DemandConversionRatio":        {calculator.DemandConversionRatio(300, 500, 100), f(0.5)},
		"GPBookingRatio":               {calculator.GPBookingRatio(150, 600), f(0.25)},
		"Per1000":                      {calculator.Per1000(56, 5600), f(10)},
		"Per1000_NoPopulation":         {calculator.Per1000(56, 0), nil},
		"PerWorkingDay":                {calculator.PerWorkingDay(84, 21), f(4)},
		"Percentage_Infinite":          {calculator.Percentage(math.MaxFloat64, math.SmallestNonzeroFloat64), nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assertValue(t, tt.expected, tt.got)
		})
	}
}

func TestExtraSlotsPerDay(t *testing.T) {
	tests := map[string]struct {
		ratio, missed *float64
		gpUnused      float64
		gpDNA         float64
		workingDays   int
		expected      *float64
	}{
		// (0.5 * 100 - (10 + 20)) / 20
		"Shortfall": {ratio: f(0.5), missed: f(100), gpUnused: 10, gpDNA: 20, workingDays: 20, expected: f(1)},
		// (0.5 * 20 - 30) / 20: spare capacity
		"Surplus":         {ratio: f(0.5), missed: f(20), gpUnused: 10, gpDNA: 20, workingDays: 20, expected: f(-1)},
		"NoUniqueMissed":  {ratio: f(0.5), missed: nil, workingDays: 20, expected: nil},
		"NoAnsweredCalls": {ratio: nil, missed: f(100), workingDays: 20, expected: nil},
		"NoWorkingDays":   {ratio: f(0.5), missed: f(100), workingDays: 0, expected: nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := calculator.ExtraSlotsPerDay(tt.ratio, tt.missed, tt.gpUnused, tt.gpDNA, tt.workingDays)
			assertValue(t, tt.expected, got)
		})
	}
}

func TestUniqueMissedCallers(t *testing.T) {
	explicit := 42
	tests := map[string]struct {
		stats    models.TelephonyStats
		factor   float64
		expected *float64
	}{
		"ExplicitFigureWins":  {models.TelephonyStats{MissedFromQueue: 100, MissedExcludingRepeats: &explicit}, 0.8, f(42)},
		"RepeatFactorOptIn":   {models.TelephonyStats{MissedFromQueue: 100}, 0.8, f(80)},
		"UnknownWithoutOptIn": {models.TelephonyStats{MissedFromQueue: 100}, 0, nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assertValue(t, tt.expected, calculator.UniqueMissedCallers(tt.stats, tt.factor))
		})
	}
}

func TestEnrichMonths(t *testing.T) {
	unique := 100
	buckets := []models.MonthBucket{
		{
			MonthKey:             "Aug-25",
			Date:                 time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
			TotalAppts:           2000,
			WorkingDays:          20,
			OnlineTotal:          200,
			OnlineMedical:        150,
			OnlineClinicalNoAppt: 120,
			Telephony: &models.TelephonyStats{
				InboundReceived:        1000,
				InboundAnswered:        800,
				MissedFromQueue:        200,
				MissedExcludingRepeats: &unique,
				AvgWaitSeconds:         90,
				CallbacksRequested:     50,
			},
		},
		{
			MonthKey: "Sep-25",
			Date:     time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	staff := []models.StaffMonthRecord{
		{Month: "Aug-25", StaffName: "Dr Smith", IsGP: true, TotalAppts: 1000, DNACount: 20, UnusedSlots: 10},
		{Month: "Aug-25", StaffName: "Nurse Jones", TotalAppts: 1000, DNACount: 80, UnusedSlots: 490},
	}

	t.Run("AllChannels", func(t *testing.T) {
		cfg := models.Config{Population: 5000, UseOnline: true, UseTelephony: true}
		months := calculator.EnrichMonths(buckets, staff, cfg)
		require.Len(t, months, 2)
		m := months[0]

		assert.Equal(t, 1000, m.GPAppts)
		assert.Equal(t, 1000, m.NonGPAppts)
		assert.Equal(t, 100.0, m.EstDNA)
		assertValue(t, f(5), m.DNAPct)
		assertValue(t, f(2), m.GPDNAPct)
		assertValue(t, f(80), m.Utilization)
		// 1000 / (5000 * 20) * 100
		assertValue(t, f(1), m.GPApptPerDayPct)
		// (1000 + 120) / 20 / 5000 * 100
		assertValue(t, f(1.12), m.GPTriageCapacityPerDayPct)
		assertValue(t, f(400), m.ApptsPer1000)
		assertValue(t, f(40), m.OnlinePer1000)
		assertValue(t, f(80), m.OnlineResolvedPct)

		assertValue(t, f(80), m.CallAnswerRatePct)
		assertValue(t, f(20), m.MissedCallRatePct)
		assertValue(t, f(2.5), m.ConversionRatio)
		// 2000 / (1000 + 150)
		assertValue(t, f(2000.0/1150), m.DemandConversionRatio)
		assertValue(t, f(1.25), m.GPBookingRatio)
		// (1.25 * 100 - (10 + 20)) / 20
		assertValue(t, f(4.75), m.ExtraSlotsPerDay)
		assertValue(t, f(90), m.AvgWaitSeconds)
		assert.Nil(t, m.AvgTalkSeconds)
		assertValue(t, f(50), m.CallbacksRequested)
		assertValue(t, f(5), m.CallbackRatePct)
	})

	t.Run("EmptyMonthIsNullNotNaN", func(t *testing.T) {
		months := calculator.EnrichMonths(buckets, staff, models.Config{Population: 5000})
		m := months[1]
		assert.Nil(t, m.DNAPct)
		assert.Nil(t, m.Utilization)
		assert.Nil(t, m.GPApptPerDayPct)
		assert.Nil(t, m.GPTriageCapacityPerDayPct)
		assert.Nil(t, m.ApptsPerWorkingDay)
		assertValue(t, f(0), m.ApptsPer1000)
	})

	t.Run("ChannelsDisabled", func(t *testing.T) {
		months := calculator.EnrichMonths(buckets, staff, models.Config{Population: 5000})
		m := months[0]
		assert.Equal(t, 0, m.OnlineTotal)
		assert.Nil(t, m.OnlinePer1000)
		assert.Nil(t, m.InboundCalls)
		assert.Nil(t, m.CallbacksRequested)
		assert.Nil(t, m.ExtraSlotsPerDay)
		// Without online data triage capacity equals GP appointments alone.
		assertValue(t, f(1), m.GPTriageCapacityPerDayPct)
	})
}
