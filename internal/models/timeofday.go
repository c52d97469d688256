package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a zero-padded 24-hour "HH:MM" clock time. Values built through
// ParseTimeOfDay always compare correctly as strings.
type TimeOfDay string

// ParseTimeOfDay validates s and returns it zero-padded. "9:05" becomes "09:05";
// anything that is not an hour 0-23 and minute 0-59 is rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return "", fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 || strings.ContainsAny(hh, "+-") {
		return "", fmt.Errorf("invalid time %q: hour out of range", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || strings.ContainsAny(mm, "+-") {
		return "", fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d", hour, minute)), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants and tests.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	hour, _ := strconv.Atoi(string(t[:2]))
	minute, _ := strconv.Atoi(string(t[3:]))
	return hour*60 + minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }

// HoursUntil returns the length of [t, end) in hours.
func (t TimeOfDay) HoursUntil(end TimeOfDay) float64 {
	return float64(end.Minutes()-t.Minutes()) / 60
}

// On returns the instant t on the calendar day of date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	m := t.Minutes()
	return time.Date(date.Year(), date.Month(), date.Day(), m/60, m%60, 0, 0, loc)
}

func (t TimeOfDay) String() string { return string(t) }

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *TimeOfDay) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
