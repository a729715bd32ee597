package session

import (
	"fmt"
	"time"
)

// dayLayout renders day keys as "YYYY-MM-DD".
const dayLayout = "2006-01-02"

// DayOf returns the calendar day key of t in t's own location.
// Streak semantics are defined over the user's local calendar, so the
// caller controls the location via the timestamps it produces.
func DayOf(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseDay parses a day key produced by DayOf.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t, nil
}

// NextDay returns the day key immediately after day.
func NextDay(day string) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, 1).Format(dayLayout), nil
}

// DaysBetween returns the signed number of calendar days from a to b
// (positive when b is later). Both arguments must be day keys.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDay(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDay(b)
	if err != nil {
		return 0, err
	}
	// Day keys parse to midnight UTC, so the difference is exact.
	return int(tb.Sub(ta).Hours() / 24), nil
}
