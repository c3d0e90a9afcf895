package calculator

import (
	"practice-insights/models"
)

type staffTotals struct {
	gpAppts  int
	dna      float64
	gpDNA    float64
	unused   float64
	gpUnused float64
}

// EnrichMonths derives the KPI set of every month bucket. Staff records
// supply the GP split and the allocated DNA and unused estimates. Online
// and telephony figures are only reported when enabled in cfg.
func EnrichMonths(buckets []models.MonthBucket, staff []models.StaffMonthRecord, cfg models.Config) []models.EnrichedMonth {
	byMonth := make(map[string]*staffTotals, len(buckets))
	for _, r := range staff {
		t, ok := byMonth[r.Month]
		if !ok {
			t = &staffTotals{}
			byMonth[r.Month] = t
		}
		t.dna += r.DNACount
		t.unused += r.UnusedSlots
		if r.IsGP {
			t.gpAppts += r.TotalAppts
			t.gpDNA += r.DNACount
			t.gpUnused += r.UnusedSlots
		}
	}

	out := make([]models.EnrichedMonth, 0, len(buckets))
	for _, b := range buckets {
		t := byMonth[b.MonthKey]
		if t == nil {
			t = &staffTotals{}
		}
		out = append(out, enrich(b, *t, cfg))
	}
	return out
}

// enrich derives the KPIs of one month.
func enrich(b models.MonthBucket, t staffTotals, cfg models.Config) models.EnrichedMonth {
	pop := cfg.Population
	wd := b.WorkingDays
	total := float64(b.TotalAppts)
	gp := float64(t.gpAppts)

	m := models.EnrichedMonth{
		Month:       b.MonthKey,
		Date:        b.Date,
		WorkingDays: wd,
		TotalAppts:  b.TotalAppts,
		GPAppts:     t.gpAppts,
		NonGPAppts:  b.TotalAppts - t.gpAppts,
		EstDNA:      t.dna,
		EstGPDNA:    t.gpDNA,
		EstUnused:   t.unused,
		EstGPUnused: t.gpUnused,

		DNAPct:               CalculateDNARate(t.dna, total),
		GPDNAPct:             CalculateDNARate(t.gpDNA, gp),
		Utilization:          Utilization(total, t.unused),
		GPUtilization:        Utilization(gp, t.gpUnused),
		GPApptPerDayPct:      GPApptPerDayPct(gp, pop, wd),
		ApptsPerWorkingDay:   PerWorkingDay(total, wd),
		GPApptsPerWorkingDay: PerWorkingDay(gp, wd),
		ApptsPer1000:         Per1000(total, pop),
		GPApptsPer1000:       Per1000(gp, pop),
		DNAPer1000:           Per1000(t.dna, pop),
		UnusedPer1000:        Per1000(t.unused, pop),
	}

	onlineResolved := 0.0
	if cfg.UseOnline {
		m.OnlineTotal = b.OnlineTotal
		m.OnlineMedical = b.OnlineMedical
		m.OnlineClinicalNoAppt = b.OnlineClinicalNoAppt
		m.OnlinePer1000 = Per1000(float64(b.OnlineTotal), pop)
		m.OnlineResolvedPct = Percentage(float64(b.OnlineClinicalNoAppt), float64(b.OnlineMedical))
		onlineResolved = float64(b.OnlineClinicalNoAppt)
	}
	m.GPTriageCapacityPerDayPct = GPTriageCapacityPerDayPct(gp, onlineResolved, pop, wd)

	if cfg.UseTelephony && b.Telephony != nil {
		enrichTelephony(&m, *b.Telephony, cfg, onlineMedical(b, cfg))
	}
	return m
}

func enrichTelephony(m *models.EnrichedMonth, tel models.TelephonyStats, cfg models.Config, medicalOnline float64) {
	inbound := float64(tel.InboundReceived)
	answered := float64(tel.InboundAnswered)
	missed := float64(tel.MissedFromQueue)

	m.InboundCalls = ptr(inbound)
	m.AnsweredCalls = ptr(answered)
	m.MissedCalls = ptr(missed)
	m.MissedExcludingRepeats = UniqueMissedCallers(tel, cfg.MissedCallRepeatFactor)
	m.CallAnswerRatePct = Percentage(answered, inbound)
	m.MissedCallRatePct = Percentage(missed, inbound)
	m.InboundPer1000 = Per1000(inbound, cfg.Population)
	if tel.AvgWaitSeconds > 0 {
		m.AvgWaitSeconds = ptr(tel.AvgWaitSeconds)
	}
	if tel.AvgTalkSeconds > 0 {
		m.AvgTalkSeconds = ptr(tel.AvgTalkSeconds)
	}
	callbacks := float64(tel.CallbacksRequested)
	m.CallbacksRequested = ptr(callbacks)
	m.CallbackRatePct = Percentage(callbacks, inbound)

	m.ConversionRatio = ConversionRatio(float64(m.TotalAppts), answered)
	m.DemandConversionRatio = DemandConversionRatio(float64(m.TotalAppts), inbound, medicalOnline)
	m.GPBookingRatio = GPBookingRatio(float64(m.GPAppts), answered)
	m.ExtraSlotsPerDay = ExtraSlotsPerDay(m.GPBookingRatio, m.MissedExcludingRepeats, m.EstGPUnused, m.EstGPDNA, m.WorkingDays)
}

func onlineMedical(b models.MonthBucket, cfg models.Config) float64 {
	if !cfg.UseOnline {
		return 0
	}
	return float64(b.OnlineMedical)
}
