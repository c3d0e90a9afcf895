package aggregator_test

import (
	"testing"
	"time"

	"practice-insights/aggregator"
	"practice-insights/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func appt(date time.Time, staff, slot string, count int) models.AppointmentRow {
	return models.AppointmentRow{Date: date, StaffName: staff, SlotType: slot, Count: count}
}

func monthKeys(buckets []models.MonthBucket) []string {
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, b.MonthKey)
	}
	return keys
}

func TestAggregate_Months(t *testing.T) {
	in := aggregator.Input{
		Appointments: []models.AppointmentRow{
			appt(day(2025, time.January, 6), "Dr Smith", "Routine", 10),
			appt(day(2024, time.December, 2), "Dr Smith", "Routine", 5),
			appt(day(2025, time.February, 3), "Nurse Jones", "Bloods", 7),
			appt(day(2025, time.January, 7), "Nurse Jones", "Bloods", 3),
			appt(day(2025, time.January, 8), "Nurse Jones", "Bloods", 0),
		},
	}
	res := aggregator.Aggregate(in, models.Config{}, zap.NewNop())

	// Chronological, not lexical.
	assert.Equal(t, []string{"Dec-24", "Jan-25", "Feb-25"}, monthKeys(res.Months))

	sum := 0
	for _, b := range res.Months {
		sum += b.TotalAppts
	}
	assert.Equal(t, 25, sum, "month totals must equal the sum of row counts")
	assert.Equal(t, day(2025, time.January, 1), res.Months[1].Date)
	assert.Equal(t, 13, res.Months[1].TotalAppts)
}

func TestAggregate_WorkingDays(t *testing.T) {
	tests := map[string]struct {
		rows     []models.AppointmentRow
		expected int
	}{
		"DistinctWeekdays": {
			rows: []models.AppointmentRow{
				appt(day(2025, time.August, 1), "Dr Smith", "Routine", 4), // Fri
				appt(day(2025, time.August, 4), "Dr Smith", "Routine", 2), // Mon
				appt(day(2025, time.August, 4), "Nurse Jones", "Routine", 3),
			},
			expected: 2,
		},
		"WeekendNotCounted": {
			rows: []models.AppointmentRow{
				appt(day(2025, time.August, 2), "Dr Smith", "Routine", 4), // Sat
				appt(day(2025, time.August, 3), "Dr Smith", "Routine", 4), // Sun
				appt(day(2025, time.August, 5), "Dr Smith", "Routine", 1), // Tue
			},
			expected: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := aggregator.Aggregate(aggregator.Input{Appointments: tt.rows}, models.Config{}, nil)
			require.Len(t, res.Months, 1)
			assert.Equal(t, tt.expected, res.Months[0].WorkingDays)
		})
	}
}

func TestAggregate_Records(t *testing.T) {
	in := aggregator.Input{
		Appointments: []models.AppointmentRow{
			appt(day(2025, time.August, 4), "Dr Smith", "Routine", 10),
			appt(day(2025, time.August, 4), "Nurse Jones", "Routine", 5),
			appt(day(2025, time.August, 5), "Nurse Jones", "Bloods", 6),
		},
	}
	res := aggregator.Aggregate(in, models.Config{}, nil)

	require.Len(t, res.Staff, 2)
	assert.Equal(t, "Dr Smith", res.Staff[0].StaffName)
	assert.True(t, res.Staff[0].IsGP)
	assert.False(t, res.Staff[1].IsGP)
	assert.Equal(t, 11, res.Staff[1].TotalAppts)

	require.Len(t, res.Slots, 2)
	assert.Equal(t, "Bloods", res.Slots[0].SlotType)
	assert.False(t, res.Slots[0].HasGPActivity)
	assert.Equal(t, "Routine", res.Slots[1].SlotType)
	assert.True(t, res.Slots[1].HasGPActivity, "a GP row touched this slot")
	assert.Equal(t, 15, res.Slots[1].TotalAppts)

	assert.Len(t, res.Combined, 3)
}

func TestAggregate_UndatedDNAIsAllocated(t *testing.T) {
	appts := []models.AppointmentRow{
		appt(day(2024, time.December, 2), "Dr Smith", "Routine", 10),
		appt(day(2025, time.January, 6), "Dr Smith", "Routine", 30),
		appt(day(2025, time.January, 6), "Nurse Jones", "Routine", 10),
	}
	dna := []models.SlotCountRow{
		{StaffName: "Dr Smith", SlotType: "Routine", Count: 4},
		{StaffName: "Dr Smith", SlotType: "Routine", Count: 2},
		{StaffName: "Nurse Jones", SlotType: "Routine", Count: 3},
	}

	tests := map[string]struct {
		policy   models.AllocationPolicy
		expected map[models.StaffKey]float64
	}{
		"EvenSplit": {
			policy: models.AllocateEvenSplit,
			expected: map[models.StaffKey]float64{
				{Month: "Dec-24", Staff: "Dr Smith"}:    3,
				{Month: "Jan-25", Staff: "Dr Smith"}:    3,
				{Month: "Jan-25", Staff: "Nurse Jones"}: 3,
			},
		},
		"VolumeWeighted": {
			policy: models.AllocateVolumeWeighted,
			// Dec-24 holds 10 of 50 practice appointments.
			expected: map[models.StaffKey]float64{
				{Month: "Dec-24", Staff: "Dr Smith"}:    1.2,
				{Month: "Jan-25", Staff: "Dr Smith"}:    4.8,
				{Month: "Dec-24", Staff: "Nurse Jones"}: 0.6,
				{Month: "Jan-25", Staff: "Nurse Jones"}: 2.4,
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := aggregator.Aggregate(aggregator.Input{Appointments: appts, DNA: dna},
				models.Config{Allocation: tt.policy}, nil)

			got := make(map[models.StaffKey]float64)
			total := 0.0
			for _, r := range res.Staff {
				if r.DNACount != 0 {
					got[models.StaffKey{Month: r.Month, Staff: r.StaffName}] = r.DNACount
				}
				total += r.DNACount
			}
			assert.InDelta(t, 9, total, 1e-9, "allocation must conserve the DNA total")
			assert.Len(t, got, len(tt.expected))
			for k, want := range tt.expected {
				assert.InDelta(t, want, got[k], 1e-9, k.Month+" "+k.Staff)
			}
		})
	}
}

func TestAggregate_UnknownMonth(t *testing.T) {
	appts := []models.AppointmentRow{
		appt(day(2025, time.March, 3), "Dr Smith", "Routine", 10),
		appt(day(2025, time.February, 3), "Dr Smith", "Routine", 10),
	}
	unused := []models.SlotCountRow{
		{Date: day(2025, time.March, 4), Dated: true, StaffName: "Dr Smith", SlotType: "Routine", Count: 2},
		{Date: day(2025, time.June, 2), Dated: true, StaffName: "Dr Smith", SlotType: "Routine", Count: 5},
		{Date: day(2025, time.March, 4), Dated: true, StaffName: "Dr Who", SlotType: "Routine", Count: 1},
	}
	online := []models.OnlineRequest{
		{Submitted: day(2025, time.July, 1), Type: "Admin", Age: -1},
	}

	t.Run("Fallback", func(t *testing.T) {
		res := aggregator.Aggregate(aggregator.Input{Appointments: appts, Unused: unused, Online: online},
			models.Config{UnknownMonth: models.UnknownMonthFallback}, nil)

		assert.Equal(t, 3, res.Fallback)
		assert.Equal(t, 0, res.Dropped)
		// The June row lands in February, the first month.
		assert.Equal(t, 1, res.Months[0].OnlineTotal)
		unusedByMonth := map[string]float64{}
		for _, r := range res.Staff {
			unusedByMonth[r.Month] += r.UnusedSlots
		}
		assert.Equal(t, 5.0, unusedByMonth["Feb-25"])
		assert.Equal(t, 3.0, unusedByMonth["Mar-25"])
	})

	t.Run("Drop", func(t *testing.T) {
		res := aggregator.Aggregate(aggregator.Input{Appointments: appts, Unused: unused, Online: online},
			models.Config{UnknownMonth: models.UnknownMonthDrop}, nil)

		assert.Equal(t, 3, res.Dropped)
		assert.Equal(t, 0, res.Months[0].OnlineTotal)
		total := 0.0
		for _, r := range res.Staff {
			total += r.UnusedSlots
		}
		assert.Equal(t, 2.0, total)
	})
}

func TestAggregate_Online(t *testing.T) {
	in := aggregator.Input{
		Appointments: []models.AppointmentRow{appt(day(2025, time.August, 4), "Dr Smith", "Routine", 1)},
		Online: []models.OnlineRequest{
			{Submitted: day(2025, time.August, 4), Type: "Medical", Outcome: "Self-care advice", AccessMethod: "Online", Sex: "Female", Age: 34},
			{Submitted: day(2025, time.August, 5), Type: "Medical", Outcome: "Booked appointment", AccessMethod: "Online", Sex: "Male", Age: 70},
			{Submitted: day(2025, time.August, 6), Type: "Admin", Outcome: "Fit note issued", AccessMethod: "Reception", Age: -1},
		},
	}
	res := aggregator.Aggregate(in, models.Config{}, nil)
	b := res.Months[0]

	assert.Equal(t, 3, b.OnlineTotal)
	assert.Equal(t, 2, b.OnlineMedical)
	assert.Equal(t, 1, b.OnlineClinicalNoAppt)
	require.NotNil(t, b.Online)
	assert.Equal(t, 1, b.Online.Admin)
	assert.Equal(t, map[string]int{"Online": 2, "Reception": 1}, b.Online.ByAccessMethod)
	assert.Equal(t, map[string]int{"Female": 1, "Male": 1, "Unknown": 1}, b.Online.BySex)
	assert.Equal(t, map[string]int{"18-39": 1, "65+": 1, "unknown": 1}, b.Online.ByAgeBand)
}

func TestAggregate_Telephony(t *testing.T) {
	unique := 40
	in := aggregator.Input{
		Appointments: []models.AppointmentRow{appt(day(2025, time.August, 4), "Dr Smith", "Routine", 1)},
		Telephony: []models.TelephonyStats{
			{PeriodStart: day(2025, time.August, 1), InboundReceived: 1000, InboundAnswered: 900, MissedFromQueue: 100, MissedExcludingRepeats: &unique, AvgWaitSeconds: 60},
			{PeriodStart: day(2025, time.August, 16), InboundReceived: 500, InboundAnswered: 300, MissedFromQueue: 200, AvgWaitSeconds: 120},
		},
	}
	res := aggregator.Aggregate(in, models.Config{}, nil)
	tel := res.Months[0].Telephony

	require.NotNil(t, tel)
	assert.Equal(t, 1500, tel.InboundReceived)
	assert.Equal(t, 1200, tel.InboundAnswered)
	assert.Equal(t, 300, tel.MissedFromQueue)
	assert.Nil(t, tel.MissedExcludingRepeats)
	// (60*900 + 120*300) / 1200
	assert.InDelta(t, 75, tel.AvgWaitSeconds, 1e-9)
}

func TestAggregate_NoAppointments(t *testing.T) {
	res := aggregator.Aggregate(aggregator.Input{
		DNA: []models.SlotCountRow{{StaffName: "Dr Smith", Count: 3}},
	}, models.Config{}, nil)
	assert.Empty(t, res.Months)
	assert.Equal(t, 1, res.Dropped)
}

func TestAgeBand(t *testing.T) {
	tests := map[string]struct {
		age      int
		expected string
	}{
		"Unknown":   {-1, aggregator.AgeBandUnknown},
		"Newborn":   {0, aggregator.AgeBandChild},
		"Edge17":    {17, aggregator.AgeBandChild},
		"Edge18":    {18, aggregator.AgeBandYoung},
		"Edge40":    {40, aggregator.AgeBandMiddle},
		"Edge64":    {64, aggregator.AgeBandMiddle},
		"Edge65":    {65, aggregator.AgeBandOlder},
		"Centurion": {101, aggregator.AgeBandOlder},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, aggregator.AgeBand(tt.age))
		})
	}
}
