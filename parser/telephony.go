package parser

import (
	"fmt"
	"regexp"
	"strings"

	"practice-insights/errors"
	"practice-insights/models"
)

// Coercion converts a matched telephony value into a number.
type Coercion int

const (
	// CoerceInt reads an integer with optional thousands separators.
	CoerceInt Coercion = iota
	// CoerceDuration reads "mm:ss" or "hh:mm:ss" as seconds.
	CoerceDuration
)

// TelephonyField binds one report label to a TelephonyStats field. The
// label set is the contract with the PDF text extractor.
type TelephonyField struct {
	Label   string
	Pattern *regexp.Regexp
	Coerce  Coercion
	Set     func(s *models.TelephonyStats, v float64)
}

// TelephonyFields is the declarative label table for telephony reports.
var TelephonyFields = []TelephonyField{
	{
		Label:   "Inbound Received",
		Pattern: regexp.MustCompile(`Inbound Received\s+([\d,]+)`),
		Coerce:  CoerceInt,
		Set:     func(s *models.TelephonyStats, v float64) { s.InboundReceived = int(v) },
	},
	{
		Label:   "Inbound Answered",
		Pattern: regexp.MustCompile(`Inbound Answered\s+([\d,]+)`),
		Coerce:  CoerceInt,
		Set:     func(s *models.TelephonyStats, v float64) { s.InboundAnswered = int(v) },
	},
	{
		Label:   "Missed From Queue",
		Pattern: regexp.MustCompile(`Missed From Queue\s+([\d,]+)`),
		Coerce:  CoerceInt,
		Set:     func(s *models.TelephonyStats, v float64) { s.MissedFromQueue = int(v) },
	},
	{
		Label:   "Missed From Queue Excluding Repeat Callers",
		Pattern: regexp.MustCompile(`Missed From Queue Excluding Repeat(?:s| Callers)\s+([\d,]+)`),
		Coerce:  CoerceInt,
		Set: func(s *models.TelephonyStats, v float64) {
			n := int(v)
			s.MissedExcludingRepeats = &n
		},
	},
	{
		Label:   "Average Wait Time",
		Pattern: regexp.MustCompile(`Average Wait Time\s+(\d{1,2}:\d{2}(?::\d{2})?)`),
		Coerce:  CoerceDuration,
		Set:     func(s *models.TelephonyStats, v float64) { s.AvgWaitSeconds = v },
	},
	{
		Label:   "Average Talk Time",
		Pattern: regexp.MustCompile(`Average Talk Time\s+(\d{1,2}:\d{2}(?::\d{2})?)`),
		Coerce:  CoerceDuration,
		Set:     func(s *models.TelephonyStats, v float64) { s.AvgTalkSeconds = v },
	},
	{
		Label:   "Callback Requested",
		Pattern: regexp.MustCompile(`Callbacks? Requested\s+([\d,]+)`),
		Coerce:  CoerceInt,
		Set:     func(s *models.TelephonyStats, v float64) { s.CallbacksRequested = int(v) },
	},
}

var reportPeriod = regexp.MustCompile(`\b(\d{1,2}\s+[A-Z][a-z]{2,8}\s+\d{4})\b`)

// ParseTelephony extracts telephony figures from the text of one report.
// The report month is the first "DD Mon YYYY" date in the text.
func ParseTelephony(text string) (models.TelephonyStats, error) {
	var stats models.TelephonyStats

	m := reportPeriod.FindStringSubmatch(text)
	if m == nil {
		return stats, fmt.Errorf("%w: no report period in telephony text", errors.ErrInvalidDate)
	}
	start, err := ParseDate(m[1])
	if err != nil {
		return stats, err
	}
	stats.PeriodStart = start

	found := 0
	for _, f := range TelephonyFields {
		match := f.Pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		var v float64
		switch f.Coerce {
		case CoerceDuration:
			v, err = parseClock(match[1])
			if err != nil {
				continue
			}
		default:
			v = float64(ParseCount(strings.TrimSpace(match[1])))
		}
		f.Set(&stats, v)
		found++
	}
	if found == 0 {
		return stats, errors.ErrNoTelephonyData
	}
	return stats, nil
}
