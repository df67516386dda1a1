package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, 2))
	assert.Equal(t, 28, DaysInMonth(2023, 2))
	assert.Equal(t, 31, DaysInMonth(2024, 1))
	assert.Equal(t, 30, DaysInMonth(2024, 4))
	assert.Equal(t, 31, DaysInMonth(2024, 12))
	assert.Equal(t, 29, DaysInMonth(2000, 2))
	assert.Equal(t, 28, DaysInMonth(1900, 2))
	assert.Equal(t, 0, DaysInMonth(2024, 0))
	assert.Equal(t, 0, DaysInMonth(2024, 13))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2024-03", MonthKey(2024, 3))
	assert.Equal(t, "2024-11", MonthKey(2024, 11))
	assert.Equal(t, "0999-01", MonthKey(999, 1))
	assert.Equal(t, "3", DayKey(3))
	assert.Equal(t, "2024-02", MonthKeyOf(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)))
}

func TestParseMonthKey(t *testing.T) {
	year, month, err := ParseMonthKey("2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 3, month)

	year, month, err = ParseMonthKey(MonthKey(999, 1))
	require.NoError(t, err, "short years round-trip")
	assert.Equal(t, 999, year)
	assert.Equal(t, 1, month)

	for _, bad := range []string{"", "2024-3", "2024-13", "03-2024", "2024/03"} {
		_, _, err := ParseMonthKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestToday_UsesLocation(t *testing.T) {
	// 22:30 UTC on Jan 31 is already Feb 1 in UTC+5.
	now := time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)
	month, day := Today(now, time.FixedZone("UTC+5", 5*60*60))
	assert.Equal(t, "2024-02", month)
	assert.Equal(t, "1", day)

	month, day = Today(now, nil)
	assert.Equal(t, "2024-01", month)
	assert.Equal(t, "31", day)
}

func TestRecentMonths(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	months := RecentMonths(now, 12)
	require.Len(t, months, 12)

	assert.Equal(t, "2024-03", months[0].Key)
	assert.Equal(t, "March 2024", months[0].Label)
	assert.Equal(t, 31, months[0].Days)
	// AddDate from the 1st avoids skipping February.
	assert.Equal(t, "2024-02", months[1].Key)
	assert.Equal(t, 29, months[1].Days)
	assert.Equal(t, "2023-04", months[11].Key)
	assert.Equal(t, "April 2023", months[11].Label)

	assert.Nil(t, RecentMonths(now, 0))
}
