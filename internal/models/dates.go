package models

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// CalendarDate drops the clock part of t, keeping the year, month and day as
// seen in t's own location. The result is midnight UTC so dates compare and
// serialize the same way regardless of where they came from.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a calendar date for storage.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// WeekdayOnOrBefore returns the latest day on or before date that falls on wd.
func WeekdayOnOrBefore(date time.Time, wd time.Weekday) time.Time {
	back := (int(date.Weekday()) - int(wd) + 7) % 7
	return date.AddDate(0, 0, -back)
}

// WeekdayOnOrAfter returns the earliest day on or after date that falls on wd.
func WeekdayOnOrAfter(date time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(date.Weekday()) + 7) % 7
	return date.AddDate(0, 0, ahead)
}
