package domain

import "time"

// ComputeStreak derives the consecutive-day streak and the lifetime
// goal-reached count from a user's goal-reached ledger entries, sorted by
// start instant descending.
//
// The most recent entry contributes 1. Each subsequent entry extends the
// streak only when its recorded local day is exactly one calendar day before
// the previous entry's; the walk stops at the first gap. The total counts all
// goal-reached entries regardless of gaps. The result depends only on the
// ledger, so recomputing is idempotent.
func ComputeStreak(entries []FastEntry) (streak, total int) {
	total = len(entries)
	if total == 0 {
		return 0, 0
	}

	prev, err := time.Parse(DayFormat, entries[0].LocalDay)
	if err != nil {
		return 0, total
	}
	streak = 1
	for _, e := range entries[1:] {
		day, err := time.Parse(DayFormat, e.LocalDay)
		if err != nil {
			break
		}
		if !day.Equal(prev.AddDate(0, 0, -1)) {
			break
		}
		streak++
		prev = day
	}
	return streak, total
}
