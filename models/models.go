package models

import (
	"strings"
	"time"
)

// Row is a single CSV data row keyed by its header. Uploaded files only
// reveal their schema at runtime (pivot exports carry one column per staff
// member), so rows stay as string maps until an adapter reads them.
type Row map[string]string

// Get returns the trimmed value stored under key, or "" when absent.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// First returns the first non-empty value among keys.
func (r Row) First(keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// AppointmentRow is one staff member's appointment count for one day.
type AppointmentRow struct {
	Date      time.Time
	DayOfWeek string
	StaffName string
	SlotType  string
	Count     int
}

// SlotCountRow carries a DNA or unused-slot count. Exports without a date
// column leave Dated false and the count is spread across months by the
// allocator.
type SlotCountRow struct {
	Date      time.Time
	Dated     bool
	StaffName string
	SlotType  string
	Count     int
}

// OnlineRequest is one online consultation submission. Age is -1 when the
// export did not carry a usable age.
type OnlineRequest struct {
	Submitted    time.Time
	Type         string
	Outcome      string
	AccessMethod string
	Sex          string
	Age          int
}

// IsMedical reports whether the request was a clinical (medical) one as
// opposed to an admin request.
func (o OnlineRequest) IsMedical() bool {
	t := strings.ToLower(o.Type)
	return strings.Contains(t, "medical") || strings.Contains(t, "clinical")
}

var noAppointmentOutcomes = []string{
	"without appointment",
	"no appointment",
	"no appt",
	"self-care",
	"self care",
	"advice given",
	"prescription issued",
}

// ResolvedWithoutAppointment reports whether a medical request was closed
// digitally, without booking an appointment.
func (o OnlineRequest) ResolvedWithoutAppointment() bool {
	if !o.IsMedical() {
		return false
	}
	outcome := strings.ToLower(o.Outcome)
	for _, phrase := range noAppointmentOutcomes {
		if strings.Contains(outcome, phrase) {
			return true
		}
	}
	return false
}

// TelephonyStats holds the figures extracted from one telephony report.
// MissedExcludingRepeats is nil when the report has no unique-caller line.
type TelephonyStats struct {
	PeriodStart            time.Time `json:"periodStart"`
	InboundReceived        int       `json:"inboundReceived"`
	InboundAnswered        int       `json:"inboundAnswered"`
	MissedFromQueue        int       `json:"missedFromQueue"`
	MissedExcludingRepeats *int      `json:"missedExcludingRepeats"`
	AvgWaitSeconds         float64   `json:"avgWaitSeconds"`
	AvgTalkSeconds         float64   `json:"avgTalkSeconds"`
	CallbacksRequested     int       `json:"callbacksRequested"`
}

// MonthBucket accumulates practice-wide totals for one calendar month.
type MonthBucket struct {
	MonthKey             string           `json:"month"`
	Date                 time.Time        `json:"date"`
	TotalAppts           int              `json:"totalAppts"`
	WorkingDays          int              `json:"workingDays"`
	OnlineTotal          int              `json:"onlineTotal"`
	OnlineMedical        int              `json:"onlineMedical"`
	OnlineClinicalNoAppt int              `json:"onlineClinicalNoAppt"`
	Online               *OnlineBreakdown `json:"online,omitempty"`
	Telephony            *TelephonyStats  `json:"telephony,omitempty"`
}

// OnlineBreakdown splits a month's online requests by demographics and
// channel.
type OnlineBreakdown struct {
	ByAccessMethod map[string]int `json:"byAccessMethod"`
	BySex          map[string]int `json:"bySex"`
	ByAgeBand      map[string]int `json:"byAgeBand"`
	Admin          int            `json:"admin"`
}

// StaffMonthRecord holds one staff member's totals for one month.
type StaffMonthRecord struct {
	Month       string  `json:"month"`
	StaffName   string  `json:"staffName"`
	IsGP        bool    `json:"isGP"`
	TotalAppts  int     `json:"totalAppts"`
	DNACount    float64 `json:"dnaCount"`
	UnusedSlots float64 `json:"unusedSlots"`
}

// SlotMonthRecord holds one slot type's totals for one month.
type SlotMonthRecord struct {
	Month         string  `json:"month"`
	SlotType      string  `json:"slotType"`
	HasGPActivity bool    `json:"hasGPActivity"`
	TotalAppts    int     `json:"totalAppts"`
	DNACount      float64 `json:"dnaCount"`
	UnusedSlots   float64 `json:"unusedSlots"`
}

// CombinedMonthRecord holds totals for a (month, staff, slot type) triple.
type CombinedMonthRecord struct {
	Month       string  `json:"month"`
	StaffName   string  `json:"staffName"`
	SlotType    string  `json:"slotType"`
	IsGP        bool    `json:"isGP"`
	TotalAppts  int     `json:"totalAppts"`
	DNACount    float64 `json:"dnaCount"`
	UnusedSlots float64 `json:"unusedSlots"`
}

type StaffKey struct {
	Month string
	Staff string
}

type SlotKey struct {
	Month    string
	SlotType string
}

type CombinedKey struct {
	Month    string
	Staff    string
	SlotType string
}

// EnrichedMonth is the full KPI set for one month. Pointer fields are nil
// when their denominator is zero or unknown; renderers show them as "N/A".
type EnrichedMonth struct {
	Month       string    `json:"month"`
	Date        time.Time `json:"date"`
	WorkingDays int       `json:"workingDays"`

	TotalAppts  int     `json:"totalAppts"`
	GPAppts     int     `json:"gpAppts"`
	NonGPAppts  int     `json:"nonGpAppts"`
	EstDNA      float64 `json:"estDNA"`
	EstGPDNA    float64 `json:"estGPDNA"`
	EstUnused   float64 `json:"estUnused"`
	EstGPUnused float64 `json:"estGPUnused"`

	DNAPct                    *float64 `json:"dnaPct"`
	GPDNAPct                  *float64 `json:"gpDnaPct"`
	Utilization               *float64 `json:"utilization"`
	GPUtilization             *float64 `json:"gpUtilization"`
	GPApptPerDayPct           *float64 `json:"gpApptPerDayPct"`
	GPTriageCapacityPerDayPct *float64 `json:"gpTriageCapacityPerDayPct"`
	ApptsPerWorkingDay        *float64 `json:"apptsPerWorkingDay"`
	GPApptsPerWorkingDay      *float64 `json:"gpApptsPerWorkingDay"`
	ApptsPer1000              *float64 `json:"apptsPer1000"`
	GPApptsPer1000            *float64 `json:"gpApptsPer1000"`
	DNAPer1000                *float64 `json:"dnaPer1000"`
	UnusedPer1000             *float64 `json:"unusedPer1000"`

	OnlineTotal          int      `json:"onlineTotal"`
	OnlineMedical        int      `json:"onlineMedical"`
	OnlineClinicalNoAppt int      `json:"onlineClinicalNoAppt"`
	OnlinePer1000        *float64 `json:"onlinePer1000"`
	OnlineResolvedPct    *float64 `json:"onlineResolvedPct"`

	InboundCalls           *float64 `json:"inboundCalls"`
	AnsweredCalls          *float64 `json:"answeredCalls"`
	MissedCalls            *float64 `json:"missedCalls"`
	MissedExcludingRepeats *float64 `json:"missedExcludingRepeats"`
	CallAnswerRatePct      *float64 `json:"callAnswerRatePct"`
	MissedCallRatePct      *float64 `json:"missedCallRatePct"`
	InboundPer1000         *float64 `json:"inboundPer1000"`
	AvgWaitSeconds         *float64 `json:"avgWaitSeconds"`
	AvgTalkSeconds         *float64 `json:"avgTalkSeconds"`
	CallbacksRequested     *float64 `json:"callbacksRequested"`
	CallbackRatePct        *float64 `json:"callbackRatePct"`
	ConversionRatio        *float64 `json:"conversionRatio"`
	DemandConversionRatio  *float64 `json:"demandConversionRatio"`
	GPBookingRatio         *float64 `json:"gpBookingRatio"`
	ExtraSlotsPerDay       *float64 `json:"extraSlotsPerDay"`
}

// ForecastSeries is a chart-ready actual vs projected series. HasData is
// false, with only Count set, when fewer than three months are available.
type ForecastSeries struct {
	Metric    string     `json:"metric"`
	HasData   bool       `json:"hasData"`
	Count     int        `json:"count"`
	Labels    []string   `json:"labels,omitempty"`
	Actual    []*float64 `json:"actual,omitempty"`
	Projected []float64  `json:"projected,omitempty"`
	Slope     float64    `json:"slope"`
	R2        float64    `json:"r2"`
	Trend     string     `json:"trend"`
}

// FollowUpAppointment is one (clinician, date, patient) tuple.
type FollowUpAppointment struct {
	Clinician string    `json:"clinician"`
	Date      time.Time `json:"date"`
	PatientID string    `json:"patientId"`
}
