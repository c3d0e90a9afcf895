package aggregator

import "practice-insights/models"

// Age bands of online request breakdowns.
const (
	AgeBandChild   = "0-17"
	AgeBandYoung   = "18-39"
	AgeBandMiddle  = "40-64"
	AgeBandOlder   = "65+"
	AgeBandUnknown = "unknown"
)

// AgeBand maps an age in years to its breakdown band. Negative ages are
// unknown.
func AgeBand(age int) string {
	switch {
	case age < 0:
		return AgeBandUnknown
	case age < 18:
		return AgeBandChild
	case age < 40:
		return AgeBandYoung
	case age < 65:
		return AgeBandMiddle
	default:
		return AgeBandOlder
	}
}

// MergeTelephony combines two reports attributed to the same month. Counts
// add up; average times are weighted by answered calls. The unique missed
// caller figure survives only when both reports carry it.
func MergeTelephony(a, b models.TelephonyStats) models.TelephonyStats {
	out := models.TelephonyStats{
		PeriodStart:        a.PeriodStart,
		InboundReceived:    a.InboundReceived + b.InboundReceived,
		InboundAnswered:    a.InboundAnswered + b.InboundAnswered,
		MissedFromQueue:    a.MissedFromQueue + b.MissedFromQueue,
		CallbacksRequested: a.CallbacksRequested + b.CallbacksRequested,
	}
	if b.PeriodStart.Before(a.PeriodStart) {
		out.PeriodStart = b.PeriodStart
	}
	if a.MissedExcludingRepeats != nil && b.MissedExcludingRepeats != nil {
		n := *a.MissedExcludingRepeats + *b.MissedExcludingRepeats
		out.MissedExcludingRepeats = &n
	}

	wa, wb := float64(a.InboundAnswered), float64(b.InboundAnswered)
	if wa+wb == 0 {
		wa, wb = 1, 1
	}
	out.AvgWaitSeconds = (a.AvgWaitSeconds*wa + b.AvgWaitSeconds*wb) / (wa + wb)
	out.AvgTalkSeconds = (a.AvgTalkSeconds*wa + b.AvgTalkSeconds*wb) / (wa + wb)
	return out
}
