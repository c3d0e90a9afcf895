package models

import (
	"sort"
	"time"
)

// monthKeyLayout renders e.g. "Aug-25".
const monthKeyLayout = "Jan-06"

// MonthKey returns the compact month key for t.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// FirstOfMonth truncates t to midnight UTC on the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonthKey turns a month key back into the first of that month.
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return time.Time{}, err
	}
	return FirstOfMonth(t), nil
}

// NextMonthKeys returns the n month keys following the month of t.
func NextMonthKeys(t time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	keys := make([]string, 0, n)
	first := FirstOfMonth(t)
	for i := 1; i <= n; i++ {
		keys = append(keys, MonthKey(first.AddDate(0, i, 0)))
	}
	return keys
}

// SortBuckets orders buckets chronologically by their underlying date.
// Month keys never sort lexically across years ("Dec-24" > "Feb-25").
func SortBuckets(buckets []MonthBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})
}
