package domain

import (
	"context"
	"time"
)

// FastEntry is one completed fasting session in a user's append-only ledger.
// Entries are written only by the session transition engine (stop, or weekly
// pass consumption) and never mutated afterwards. LocalDay records the local
// calendar day of Start under the timezone offset in effect at append time,
// so later offset changes never reinterpret history.
type FastEntry struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId"`
	Start            time.Time `json:"fastStartDate"`
	End              time.Time `json:"fastEndDate"`
	DurationMinutes  int       `json:"fastDurationInMinutes"`
	ObjectiveMinutes int       `json:"fastObjectiveInMinutes"`
	UsedWeeklyPass   bool      `json:"usedWeeklyPass"`
	ReachedGoal      bool      `json:"reachedGoal"`
	LocalDay         string    `json:"localDay"`
}

// MonthSlot is the per-day projection of the ledger for a calendar month.
type MonthSlot struct {
	DurationMinutes  int  `json:"fastDurationInMinutes"`
	ObjectiveMinutes int  `json:"fastObjectiveInMinutes"`
	UsedWeeklyPass   bool `json:"usedWeeklyPass"`
}

// FastEntryRepository is the read port over the fast ledger. Appends happen
// exclusively through UserRepository.ApplyFastingChange so that state flip
// and ledger write commit together.
type FastEntryRepository interface {
	// ListGoalReached returns a user's goal-reached entries sorted by start
	// instant descending.
	ListGoalReached(ctx context.Context, userID int64) ([]FastEntry, error)
	// ListForMonth returns entries whose recorded local day falls in the
	// given month, sorted by local day ascending.
	ListForMonth(ctx context.Context, userID int64, year int, month time.Month) ([]FastEntry, error)
}
