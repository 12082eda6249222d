package app

import (
	"context"
	"errors"
	"time"

	"fastrack/internal/domain"
)

var (
	// ErrAlreadyFasting indicates a start was attempted mid-session.
	ErrAlreadyFasting = errors.New("already fasting")
	// ErrAlreadyFastedToday indicates the user already started a fast on the
	// same local calendar day.
	ErrAlreadyFastedToday = errors.New("already fasted today")
	// ErrNotFasting indicates a stop was attempted with no session running.
	ErrNotFasting = errors.New("not fasting")
	// ErrFastEndsBeforeStart indicates the stop instant does not come after
	// the session start.
	ErrFastEndsBeforeStart = errors.New("fast ends before it starts")
	// ErrWeeklyPassUsed indicates the weekly pass was already consumed.
	ErrWeeklyPassUsed = errors.New("weekly pass already used")
	// ErrMinutesOutOfRange indicates a time-of-day or duration setting
	// outside [0, 1439].
	ErrMinutesOutOfRange = errors.New("minutes must be between 0 and 1439")
)

// casRetries bounds how often an operation re-reads and retries after losing
// a conditional-update race with the sweep or another request.
const casRetries = 3

// FastService is the session transition engine: it validates and applies the
// start/stop/weekly-pass transitions of the per-user fasting state machine.
type FastService struct {
	users   domain.UserRepository
	entries domain.FastEntryRepository
}

// NewFastService creates a FastService backed by the given repositories.
func NewFastService(users domain.UserRepository, entries domain.FastEntryRepository) *FastService {
	return &FastService{users: users, entries: entries}
}

// State returns the user's current fasting state.
func (s *FastService) State(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// StartFasting opens a fasting session at the given instant. It rejects a
// second concurrent session and a second session on the same local calendar
// day, judged under the offset of this call.
func (s *FastService) StartFasting(ctx context.Context, userID int64, at time.Time, tzOffsetMs int64) (*domain.User, error) {
	for attempt := 0; ; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if user.IsFasting {
			return nil, ErrAlreadyFasting
		}
		if !user.LastFastStart.IsZero() && domain.SameLocalDay(at, user.LastFastStart, tzOffsetMs) {
			return nil, ErrAlreadyFastedToday
		}

		start := at.UTC()
		change := domain.FastingChange{
			IsFasting:        ptr(true),
			LastFastStart:    &start,
			TimezoneOffsetMs: &tzOffsetMs,
		}
		updated, err := s.users.ApplyFastingChange(ctx, userID, user.StateVersion, change, nil)
		if errors.Is(err, domain.ErrStaleState) && attempt < casRetries {
			continue
		}
		return updated, err
	}
}

// StopFasting closes the running session at the given instant, appends the
// ledger entry and recomputes streak and total from the ledger. State flip
// and ledger append commit atomically.
func (s *FastService) StopFasting(ctx context.Context, userID int64, at time.Time, tzOffsetMs int64) (*domain.User, error) {
	for attempt := 0; ; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if !user.IsFasting {
			return nil, ErrNotFasting
		}
		end := at.UTC()
		if !end.After(user.LastFastStart) {
			return nil, ErrFastEndsBeforeStart
		}

		duration := domain.CeilMinutes(user.LastFastStart, end)
		entry := &domain.FastEntry{
			UserID:           userID,
			Start:            user.LastFastStart,
			End:              end,
			DurationMinutes:  duration,
			ObjectiveMinutes: user.FastObjectiveMinutes,
			UsedWeeklyPass:   false,
			ReachedGoal:      duration >= user.FastObjectiveMinutes,
			LocalDay:         domain.LocalDay(user.LastFastStart, tzOffsetMs),
		}

		streak, total, err := s.recompute(ctx, userID, entry)
		if err != nil {
			return nil, err
		}
		change := domain.FastingChange{
			IsFasting:        ptr(false),
			LastFastEnd:      &end,
			FastingStreak:    &streak,
			TotalGoalReached: &total,
			TimezoneOffsetMs: &tzOffsetMs,
		}
		updated, err := s.users.ApplyFastingChange(ctx, userID, user.StateVersion, change, entry)
		if errors.Is(err, domain.ErrStaleState) && attempt < casRetries {
			continue
		}
		return updated, err
	}
}

// UseWeeklyPass consumes the weekly pass. While fasting it forgives the
// running session with a zero-duration goal-reached entry; while idle it
// books today as a goal-reached day, unless a fast already started today.
func (s *FastService) UseWeeklyPass(ctx context.Context, userID int64, at time.Time, tzOffsetMs int64) (*domain.User, error) {
	for attempt := 0; ; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if !user.HasWeeklyPass {
			return nil, ErrWeeklyPassUsed
		}

		var entry *domain.FastEntry
		change := domain.FastingChange{
			HasWeeklyPass:    ptr(false),
			TimezoneOffsetMs: &tzOffsetMs,
		}
		if user.IsFasting {
			entry = &domain.FastEntry{
				UserID:           userID,
				Start:            user.LastFastStart,
				End:              user.LastFastStart,
				ObjectiveMinutes: user.FastObjectiveMinutes,
				UsedWeeklyPass:   true,
				ReachedGoal:      true,
				LocalDay:         domain.LocalDay(user.LastFastStart, tzOffsetMs),
			}
			change.IsFasting = ptr(false)
		} else {
			if !user.LastFastStart.IsZero() && domain.SameLocalDay(at, user.LastFastStart, tzOffsetMs) {
				return nil, ErrAlreadyFastedToday
			}
			start := at.UTC()
			entry = &domain.FastEntry{
				UserID:           userID,
				Start:            start,
				End:              start,
				ObjectiveMinutes: user.FastObjectiveMinutes,
				UsedWeeklyPass:   true,
				ReachedGoal:      true,
				LocalDay:         domain.LocalDay(start, tzOffsetMs),
			}
			change.LastFastStart = &start
		}

		streak, total, err := s.recompute(ctx, userID, entry)
		if err != nil {
			return nil, err
		}
		change.FastingStreak = &streak
		change.TotalGoalReached = &total

		updated, err := s.users.ApplyFastingChange(ctx, userID, user.StateVersion, change, entry)
		if errors.Is(err, domain.ErrStaleState) && attempt < casRetries {
			continue
		}
		return updated, err
	}
}

// SetDesiredStartTime updates the local time of day, in minutes since
// midnight, after which the start reminder becomes due.
func (s *FastService) SetDesiredStartTime(ctx context.Context, userID int64, minutes int) (*domain.User, error) {
	if minutes < 0 || minutes > 23*60+59 {
		return nil, ErrMinutesOutOfRange
	}
	return s.applySetting(ctx, userID, domain.FastingChange{FastDesiredStartMinutes: &minutes})
}

// SetObjective updates the target fast duration in minutes.
func (s *FastService) SetObjective(ctx context.Context, userID int64, minutes int) (*domain.User, error) {
	if minutes < 0 || minutes > 23*60+59 {
		return nil, ErrMinutesOutOfRange
	}
	return s.applySetting(ctx, userID, domain.FastingChange{FastObjectiveMinutes: &minutes})
}

// MonthEntries projects the ledger onto a calendar month: one slot per day,
// nil when no session was recorded for that local day.
func (s *FastService) MonthEntries(ctx context.Context, userID int64, year int, month time.Month) ([]*domain.MonthSlot, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	entries, err := s.entries.ListForMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	slots := make([]*domain.MonthSlot, daysInMonth)
	for _, e := range entries {
		day, err := time.Parse(domain.DayFormat, e.LocalDay)
		if err != nil {
			continue
		}
		d := day.Day()
		if d < 1 || d > daysInMonth {
			continue
		}
		slots[d-1] = &domain.MonthSlot{
			DurationMinutes:  e.DurationMinutes,
			ObjectiveMinutes: e.ObjectiveMinutes,
			UsedWeeklyPass:   e.UsedWeeklyPass,
		}
	}
	return slots, nil
}

// recompute derives streak and total from the goal-reached ledger, with
// pending (not yet committed) prepended when it reaches the goal.
func (s *FastService) recompute(ctx context.Context, userID int64, pending *domain.FastEntry) (streak, total int, err error) {
	existing, err := s.entries.ListGoalReached(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	all := existing
	if pending != nil && pending.ReachedGoal {
		all = append([]domain.FastEntry{*pending}, existing...)
	}
	streak, total = domain.ComputeStreak(all)
	return streak, total, nil
}

func (s *FastService) applySetting(ctx context.Context, userID int64, change domain.FastingChange) (*domain.User, error) {
	for attempt := 0; ; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		updated, err := s.users.ApplyFastingChange(ctx, userID, user.StateVersion, change, nil)
		if errors.Is(err, domain.ErrStaleState) && attempt < casRetries {
			continue
		}
		return updated, err
	}
}

func ptr[T any](v T) *T { return &v }
