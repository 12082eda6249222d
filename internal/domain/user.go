// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStaleState indicates a conditional fasting-state update lost a race:
// the stored state version no longer matches the one the caller read.
var ErrStaleState = errors.New("user state changed concurrently")

// User represents an account together with its fasting state. The fasting
// fields form a per-user state machine mutated only through conditional
// updates guarded by StateVersion.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time

	IsFasting               bool
	LastFastStart           time.Time
	LastFastEnd             time.Time
	FastDesiredStartMinutes int
	FastObjectiveMinutes    int
	HasWeeklyPass           bool
	FastingStreak           int
	TotalGoalReached        int
	TimezoneOffsetMs        int64

	HeightCm          float64
	WeightKg          float64
	WeightObjectiveKg float64
	StartingWeightKg  float64
	LastWeightEntry   time.Time

	// StateVersion increments on every fasting-state write and guards
	// conditional updates.
	StateVersion int64
}

// FastingChange is a sparse update to a user's fasting state. Nil fields are
// left untouched.
type FastingChange struct {
	IsFasting               *bool
	LastFastStart           *time.Time
	LastFastEnd             *time.Time
	HasWeeklyPass           *bool
	FastingStreak           *int
	TotalGoalReached        *int
	TimezoneOffsetMs        *int64
	FastDesiredStartMinutes *int
	FastObjectiveMinutes    *int
}

// Empty reports whether the change would not modify any field.
func (c FastingChange) Empty() bool {
	return c.IsFasting == nil && c.LastFastStart == nil && c.LastFastEnd == nil &&
		c.HasWeeklyPass == nil && c.FastingStreak == nil && c.TotalGoalReached == nil &&
		c.TimezoneOffsetMs == nil && c.FastDesiredStartMinutes == nil && c.FastObjectiveMinutes == nil
}

// BodyChange is a sparse update to a user's body measurements.
type BodyChange struct {
	HeightCm          *float64
	WeightKg          *float64
	WeightObjectiveKg *float64
	StartingWeightKg  *float64
	LastWeightEntry   *time.Time
}

// UserRepository defines the port for user persistence operations.
//
// ApplyFastingChange is the single mutation path for fasting state: it applies
// the change, appends entry to the fast ledger when non-nil, and commits both
// in one atomic step iff the stored state version still equals expectVersion.
// It fails with ErrStaleState otherwise.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u User) (*User, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdateUsername(ctx context.Context, id int64, username string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateBody(ctx context.Context, id int64, change BodyChange) (*User, error)
	Delete(ctx context.Context, id int64) error
	AllUsers(ctx context.Context) ([]User, error)
	ApplyFastingChange(ctx context.Context, userID, expectVersion int64, change FastingChange, entry *FastEntry) (*User, error)
}
