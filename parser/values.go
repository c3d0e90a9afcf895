package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"practice-insights/errors"
)

// dateLayouts are tried in order. Exports use day-first dates, optionally
// with a time, or a spelled-out month as in telephony report headers.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// ParseDate parses an export date and returns midnight UTC of that day.
func ParseDate(value string) (time.Time, error) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", errors.ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errors.ErrInvalidDate, value)
}

// ParseCount reads the leading integer of a cell, ignoring thousands
// separators. Anything without leading digits counts as zero.
func ParseCount(value string) int {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	end := 0
	if end < len(value) && (value[end] == '-' || value[end] == '+') {
		end++
	}
	digits := end
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseDecimal reads a numeric cell such as an FTE figure. The second
// result is false for an empty or non-numeric cell.
func ParseDecimal(value string) (float64, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseClock converts "mm:ss" or "hh:mm:ss" into seconds.
func parseClock(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		total = total*60 + n
	}
	return float64(total), nil
}
