package domain_test

import (
	"testing"
	"time"

	"fastrack/internal/domain"
)

const hourMs = int64(60 * 60 * 1000)

func TestLocalTimeAt(t *testing.T) {
	tests := []struct {
		name     string
		utc      time.Time
		offsetMs int64
		wantDay  int
		wantHour int
		wantMin  int
	}{
		{
			name:     "zero offset",
			utc:      time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC),
			offsetMs: 0,
			wantDay:  10, wantHour: 14, wantMin: 30,
		},
		{
			name:     "positive offset crosses midnight forward",
			utc:      time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC),
			offsetMs: 2 * hourMs,
			wantDay:  11, wantHour: 1, wantMin: 30,
		},
		{
			name:     "negative offset crosses midnight backward",
			utc:      time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC),
			offsetMs: -5 * hourMs,
			wantDay:  9, wantHour: 20, wantMin: 0,
		},
		{
			name:     "half hour offset",
			utc:      time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			offsetMs: 5*hourMs + 30*60*1000,
			wantDay:  10, wantHour: 17, wantMin: 30,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lt := domain.LocalTimeAt(tc.utc, tc.offsetMs)
			if lt.Day != tc.wantDay || lt.Hour != tc.wantHour || lt.Minute != tc.wantMin {
				t.Fatalf("got day=%d %02d:%02d, want day=%d %02d:%02d",
					lt.Day, lt.Hour, lt.Minute, tc.wantDay, tc.wantHour, tc.wantMin)
			}
		})
	}
}

func TestLocalTimeWeekday(t *testing.T) {
	// 2024-03-10 is a Sunday; two hours east it is already Monday 01:00.
	utc := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	lt := domain.LocalTimeAt(utc, 2*hourMs)
	if lt.Weekday != time.Monday {
		t.Fatalf("weekday = %v, want Monday", lt.Weekday)
	}
}

func TestSameLocalDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	b := time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC)

	if domain.SameLocalDay(a, b, 0) {
		t.Fatal("different UTC days with zero offset should differ")
	}
	// One hour east both fall on the 11th.
	if !domain.SameLocalDay(a, b, hourMs) {
		t.Fatal("one hour east both instants are on the 11th")
	}
}

func TestCeilMinutes(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"exact minutes", base.Add(90 * time.Minute), 90},
		{"one second over rounds up", base.Add(90*time.Minute + time.Second), 91},
		{"sub-minute rounds up to one", base.Add(10 * time.Second), 1},
		{"zero", base, 0},
		{"reversed operands use absolute distance", base.Add(-30 * time.Minute), 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.CeilMinutes(base, tc.to); got != tc.want {
				t.Fatalf("CeilMinutes = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMinutesSinceMidnight(t *testing.T) {
	lt := domain.LocalTimeAt(time.Date(2024, 3, 10, 18, 45, 0, 0, time.UTC), 0)
	if got := lt.MinutesSinceMidnight(); got != 18*60+45 {
		t.Fatalf("MinutesSinceMidnight = %d, want %d", got, 18*60+45)
	}
}
