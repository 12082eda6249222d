package domain

import "time"

// DayFormat is the layout for local calendar day strings.
const DayFormat = "2006-01-02"

// LocalTime is the wall-clock view of a UTC instant in a user's timezone,
// obtained by adding the user's stored millisecond offset and reading UTC
// calendar fields. The offset fully determines the local fields; no timezone
// database is consulted.
type LocalTime struct {
	Year    int
	Month   time.Month
	Day     int
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// LocalTimeAt converts a UTC instant to the local wall-clock view for the
// given millisecond offset.
func LocalTimeAt(t time.Time, offsetMs int64) LocalTime {
	shifted := t.UTC().Add(time.Duration(offsetMs) * time.Millisecond)
	return LocalTime{
		Year:    shifted.Year(),
		Month:   shifted.Month(),
		Day:     shifted.Day(),
		Weekday: shifted.Weekday(),
		Hour:    shifted.Hour(),
		Minute:  shifted.Minute(),
	}
}

// MinutesSinceMidnight returns the local time of day in whole minutes.
func (lt LocalTime) MinutesSinceMidnight() int {
	return lt.Hour*60 + lt.Minute
}

// LocalDay returns the local calendar day of t under the given offset.
func LocalDay(t time.Time, offsetMs int64) string {
	return t.UTC().Add(time.Duration(offsetMs) * time.Millisecond).Format(DayFormat)
}

// SameLocalDay reports whether two instants fall on the same local calendar
// day under the given offset.
func SameLocalDay(a, b time.Time, offsetMs int64) bool {
	return LocalDay(a, offsetMs) == LocalDay(b, offsetMs)
}

// CeilMinutes returns the absolute distance between two instants rounded up
// to whole minutes.
func CeilMinutes(from, to time.Time) int {
	ms := to.Sub(from).Milliseconds()
	if ms < 0 {
		ms = -ms
	}
	return int((ms + 60_000 - 1) / 60_000)
}
