// Package timeutil provides the calendar helpers used by the attendance
// ledger and reports: month keys ("YYYY-MM"), day keys ("1".."31"),
// month lengths and the month selector list.
package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// FormatMonthKey is the layout of a month key (YYYY-MM).
	FormatMonthKey = "2006-01"
	// FormatMonthLabel is the human-readable month label (January 2006).
	FormatMonthLabel = "January 2006"
)

// Clock returns the current instant. Domain types take a Clock so tests
// can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// MonthKey formats a year and a 1-based month as "YYYY-MM". Years are
// zero-padded to four digits so every key parses with FormatMonthKey.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthKeyOf returns the month key of t in its own location.
func MonthKeyOf(t time.Time) string {
	return MonthKey(t.Year(), int(t.Month()))
}

// DayKey formats a 1-based day of month without padding.
func DayKey(day int) string {
	return strconv.Itoa(day)
}

// DaysInMonth returns the number of days in the given 1-based month,
// or 0 when month is out of range.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseMonthKey splits a "YYYY-MM" key into year and month.
func ParseMonthKey(key string) (year, month int, err error) {
	t, err := time.Parse(FormatMonthKey, key)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return t.Year(), int(t.Month()), nil
}

// Today returns the month and day keys of now, read in loc.
func Today(now time.Time, loc *time.Location) (monthKey, dayKey string) {
	if loc != nil {
		now = now.In(loc)
	}
	return MonthKeyOf(now), DayKey(now.Day())
}

// Month is one entry of a month selector.
type Month struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Days  int    `json:"days"`
}

// RecentMonths returns the month of now followed by the n-1 months before
// it, newest first.
func RecentMonths(now time.Time, n int) []Month {
	if n <= 0 {
		return nil
	}
	// Stepping back from the 1st never skips a short month.
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	months := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		m := start.AddDate(0, -i, 0)
		months = append(months, Month{
			Key:   MonthKeyOf(m),
			Label: m.Format(FormatMonthLabel),
			Year:  m.Year(),
			Month: int(m.Month()),
			Days:  DaysInMonth(m.Year(), int(m.Month())),
		})
	}
	return months
}
