package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fastrack/internal/adapter/memory"
	"fastrack/internal/app"
	"fastrack/internal/domain"
)

const hourMs = int64(60 * 60 * 1000)

func newFastFixture(t *testing.T) (*app.FastService, *memory.DB, *domain.User) {
	t.Helper()
	db := memory.New()
	user, err := db.Create(context.Background(), domain.User{
		Email:                   "fast@example.com",
		Username:                "faster",
		FastObjectiveMinutes:    16 * 60,
		FastDesiredStartMinutes: 18 * 60,
		HasWeeklyPass:           true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return app.NewFastService(db, db), db, user
}

func TestStartFasting(t *testing.T) {
	svc, _, user := newFastFixture(t)
	at := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	updated, err := svc.StartFasting(context.Background(), user.ID, at, hourMs)
	if err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	if !updated.IsFasting {
		t.Fatal("user should be fasting")
	}
	if !updated.LastFastStart.Equal(at) {
		t.Fatalf("LastFastStart = %v, want %v", updated.LastFastStart, at)
	}
	if updated.TimezoneOffsetMs != hourMs {
		t.Fatalf("TimezoneOffsetMs = %d, want %d", updated.TimezoneOffsetMs, hourMs)
	}

	_, err = svc.StartFasting(context.Background(), user.ID, at.Add(time.Minute), hourMs)
	if !errors.Is(err, app.ErrAlreadyFasting) {
		t.Fatalf("second start: got %v, want ErrAlreadyFasting", err)
	}
}

func TestStartFastingSameLocalDay(t *testing.T) {
	svc, _, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	if _, err := svc.StopFasting(context.Background(), user.ID, start.Add(2*time.Hour), 0); err != nil {
		t.Fatalf("StopFasting: %v", err)
	}

	_, err := svc.StartFasting(context.Background(), user.ID, start.Add(4*time.Hour), 0)
	if !errors.Is(err, app.ErrAlreadyFastedToday) {
		t.Fatalf("restart same day: got %v, want ErrAlreadyFastedToday", err)
	}

	// Under an offset that pushes the new instant past local midnight the
	// previous start falls on an earlier day and the start is allowed.
	_, err = svc.StartFasting(context.Background(), user.ID, start.Add(15*time.Hour), 2*hourMs)
	if err != nil {
		t.Fatalf("start on next local day: %v", err)
	}
}

func TestStopFasting(t *testing.T) {
	svc, db, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC)
	end := start.Add(16*time.Hour + 30*time.Second)

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	updated, err := svc.StopFasting(context.Background(), user.ID, end, 0)
	if err != nil {
		t.Fatalf("StopFasting: %v", err)
	}

	if updated.IsFasting {
		t.Fatal("user should not be fasting")
	}
	if updated.FastingStreak != 1 || updated.TotalGoalReached != 1 {
		t.Fatalf("streak/total = %d/%d, want 1/1", updated.FastingStreak, updated.TotalGoalReached)
	}

	entries, err := db.ListGoalReached(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListGoalReached: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	// 16h and 30s rounds up to 961 minutes.
	if entries[0].DurationMinutes != 16*60+1 {
		t.Fatalf("duration = %d, want %d", entries[0].DurationMinutes, 16*60+1)
	}
	if !entries[0].ReachedGoal {
		t.Fatal("16h fast against a 16h objective reaches the goal")
	}
	if entries[0].LocalDay != "2024-03-10" {
		t.Fatalf("local day = %q, want 2024-03-10", entries[0].LocalDay)
	}
}

func TestStopFastingValidation(t *testing.T) {
	svc, _, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	_, err := svc.StopFasting(context.Background(), user.ID, start, 0)
	if !errors.Is(err, app.ErrNotFasting) {
		t.Fatalf("stop while idle: got %v, want ErrNotFasting", err)
	}

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	_, err = svc.StopFasting(context.Background(), user.ID, start.Add(-time.Minute), 0)
	if !errors.Is(err, app.ErrFastEndsBeforeStart) {
		t.Fatalf("stop before start: got %v, want ErrFastEndsBeforeStart", err)
	}
	_, err = svc.StopFasting(context.Background(), user.ID, start, 0)
	if !errors.Is(err, app.ErrFastEndsBeforeStart) {
		t.Fatalf("stop at start instant: got %v, want ErrFastEndsBeforeStart", err)
	}
}

func TestStopFastingShortFastKeepsTotal(t *testing.T) {
	svc, _, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	updated, err := svc.StopFasting(context.Background(), user.ID, start.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("StopFasting: %v", err)
	}
	if updated.FastingStreak != 0 || updated.TotalGoalReached != 0 {
		t.Fatalf("failed fast should not count, got streak=%d total=%d",
			updated.FastingStreak, updated.TotalGoalReached)
	}
}

func TestUseWeeklyPassWhileFasting(t *testing.T) {
	svc, db, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	updated, err := svc.UseWeeklyPass(context.Background(), user.ID, start.Add(2*time.Hour), 0)
	if err != nil {
		t.Fatalf("UseWeeklyPass: %v", err)
	}

	if updated.IsFasting {
		t.Fatal("pass should close the running session")
	}
	if updated.HasWeeklyPass {
		t.Fatal("pass should be consumed")
	}
	if updated.FastingStreak != 1 || updated.TotalGoalReached != 1 {
		t.Fatalf("streak/total = %d/%d, want 1/1", updated.FastingStreak, updated.TotalGoalReached)
	}

	entries, _ := db.ListGoalReached(context.Background(), user.ID)
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if !e.UsedWeeklyPass || !e.ReachedGoal || e.DurationMinutes != 0 {
		t.Fatalf("pass entry = %+v, want zero-duration goal-reached pass entry", e)
	}
	if !e.Start.Equal(start) || !e.End.Equal(start) {
		t.Fatalf("pass entry should sit at the session start, got %v..%v", e.Start, e.End)
	}

	_, err = svc.UseWeeklyPass(context.Background(), user.ID, start.Add(3*time.Hour), 0)
	if !errors.Is(err, app.ErrWeeklyPassUsed) {
		t.Fatalf("second pass: got %v, want ErrWeeklyPassUsed", err)
	}
}

func TestUseWeeklyPassWhileIdle(t *testing.T) {
	svc, _, user := newFastFixture(t)
	at := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	updated, err := svc.UseWeeklyPass(context.Background(), user.ID, at, 0)
	if err != nil {
		t.Fatalf("UseWeeklyPass: %v", err)
	}
	if updated.HasWeeklyPass {
		t.Fatal("pass should be consumed")
	}
	if !updated.LastFastStart.Equal(at) {
		t.Fatalf("LastFastStart = %v, want %v", updated.LastFastStart, at)
	}

	// The booked day blocks a real session the same local day.
	_, err = svc.StartFasting(context.Background(), user.ID, at.Add(2*time.Hour), 0)
	if !errors.Is(err, app.ErrAlreadyFastedToday) {
		t.Fatalf("start after pass: got %v, want ErrAlreadyFastedToday", err)
	}
}

func TestUseWeeklyPassIdleSameDayRejected(t *testing.T) {
	svc, _, user := newFastFixture(t)
	start := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	if _, err := svc.StopFasting(context.Background(), user.ID, start.Add(time.Hour), 0); err != nil {
		t.Fatalf("StopFasting: %v", err)
	}

	_, err := svc.UseWeeklyPass(context.Background(), user.ID, start.Add(5*time.Hour), 0)
	if !errors.Is(err, app.ErrAlreadyFastedToday) {
		t.Fatalf("idle pass same day: got %v, want ErrAlreadyFastedToday", err)
	}
}

func TestStreakAcrossDays(t *testing.T) {
	svc, _, user := newFastFixture(t)

	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 2, 0, 0, 0, time.UTC)
	}
	var updated *domain.User
	var err error
	for _, d := range []int{10, 11, 12} {
		if _, err = svc.StartFasting(context.Background(), user.ID, day(d), 0); err != nil {
			t.Fatalf("start day %d: %v", d, err)
		}
		if updated, err = svc.StopFasting(context.Background(), user.ID, day(d).Add(17*time.Hour), 0); err != nil {
			t.Fatalf("stop day %d: %v", d, err)
		}
	}
	if updated.FastingStreak != 3 || updated.TotalGoalReached != 3 {
		t.Fatalf("streak/total = %d/%d, want 3/3", updated.FastingStreak, updated.TotalGoalReached)
	}

	// Skip the 13th, fast on the 14th: streak restarts, total keeps growing.
	if _, err = svc.StartFasting(context.Background(), user.ID, day(14), 0); err != nil {
		t.Fatalf("start day 14: %v", err)
	}
	if updated, err = svc.StopFasting(context.Background(), user.ID, day(14).Add(17*time.Hour), 0); err != nil {
		t.Fatalf("stop day 14: %v", err)
	}
	if updated.FastingStreak != 1 || updated.TotalGoalReached != 4 {
		t.Fatalf("streak/total = %d/%d, want 1/4", updated.FastingStreak, updated.TotalGoalReached)
	}
}

func TestSetObjectiveValidation(t *testing.T) {
	svc, _, user := newFastFixture(t)

	for _, minutes := range []int{-1, 1440, 100000} {
		if _, err := svc.SetObjective(context.Background(), user.ID, minutes); !errors.Is(err, app.ErrMinutesOutOfRange) {
			t.Fatalf("SetObjective(%d): got %v, want ErrMinutesOutOfRange", minutes, err)
		}
		if _, err := svc.SetDesiredStartTime(context.Background(), user.ID, minutes); !errors.Is(err, app.ErrMinutesOutOfRange) {
			t.Fatalf("SetDesiredStartTime(%d): got %v, want ErrMinutesOutOfRange", minutes, err)
		}
	}

	updated, err := svc.SetObjective(context.Background(), user.ID, 18*60)
	if err != nil {
		t.Fatalf("SetObjective: %v", err)
	}
	if updated.FastObjectiveMinutes != 18*60 {
		t.Fatalf("objective = %d, want %d", updated.FastObjectiveMinutes, 18*60)
	}
}

func TestMonthEntries(t *testing.T) {
	svc, _, user := newFastFixture(t)

	start := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)
	if _, err := svc.StartFasting(context.Background(), user.ID, start, 0); err != nil {
		t.Fatalf("StartFasting: %v", err)
	}
	if _, err := svc.StopFasting(context.Background(), user.ID, start.Add(17*time.Hour), 0); err != nil {
		t.Fatalf("StopFasting: %v", err)
	}

	slots, err := svc.MonthEntries(context.Background(), user.ID, 2024, time.March)
	if err != nil {
		t.Fatalf("MonthEntries: %v", err)
	}
	if len(slots) != 31 {
		t.Fatalf("March has %d slots, want 31", len(slots))
	}
	if slots[4] == nil {
		t.Fatal("slot for the 5th should be filled")
	}
	if slots[4].DurationMinutes != 17*60 {
		t.Fatalf("slot duration = %d, want %d", slots[4].DurationMinutes, 17*60)
	}
	for i, s := range slots {
		if i != 4 && s != nil {
			t.Fatalf("slot %d should be empty", i+1)
		}
	}

	empty, err := svc.MonthEntries(context.Background(), user.ID, 2024, time.April)
	if err != nil {
		t.Fatalf("MonthEntries empty month: %v", err)
	}
	if len(empty) != 30 {
		t.Fatalf("April has %d slots, want 30", len(empty))
	}
}

func TestUnknownUser(t *testing.T) {
	svc, _, _ := newFastFixture(t)
	_, err := svc.StartFasting(context.Background(), 999, time.Now(), 0)
	if !errors.Is(err, app.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

// flakyUserRepo fails ApplyFastingChange with ErrStaleState a number of times
// before delegating, simulating lost conditional-update races.
type flakyUserRepo struct {
	domain.UserRepository
	db       *memory.DB
	failures int
}

func (r *flakyUserRepo) ApplyFastingChange(ctx context.Context, userID, expectVersion int64, change domain.FastingChange, entry *domain.FastEntry) (*domain.User, error) {
	if r.failures > 0 {
		r.failures--
		// Bump the real version so the caller's re-read observes progress.
		sweep := domain.FastingChange{TimezoneOffsetMs: ptrInt64(0)}
		if _, err := r.db.ApplyFastingChange(ctx, userID, expectVersion, sweep, nil); err != nil {
			return nil, err
		}
		return nil, domain.ErrStaleState
	}
	return r.db.ApplyFastingChange(ctx, userID, expectVersion, change, entry)
}

func ptrInt64(v int64) *int64 { return &v }

func TestStartFastingRetriesOnStaleState(t *testing.T) {
	db := memory.New()
	user, err := db.Create(context.Background(), domain.User{
		Email:                "retry@example.com",
		Username:             "retry",
		FastObjectiveMinutes: 16 * 60,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	repo := &flakyUserRepo{UserRepository: db, db: db, failures: 2}
	svc := app.NewFastService(repo, db)

	updated, err := svc.StartFasting(context.Background(), user.ID, time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("StartFasting should converge after retries: %v", err)
	}
	if !updated.IsFasting {
		t.Fatal("user should be fasting after convergence")
	}
}

func TestStartFastingGivesUpAfterRetryBudget(t *testing.T) {
	db := memory.New()
	user, err := db.Create(context.Background(), domain.User{
		Email:    "stuck@example.com",
		Username: "stuck",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	repo := &flakyUserRepo{UserRepository: db, db: db, failures: 100}
	svc := app.NewFastService(repo, db)

	_, err = svc.StartFasting(context.Background(), user.ID, time.Now().UTC(), 0)
	if !errors.Is(err, domain.ErrStaleState) {
		t.Fatalf("got %v, want ErrStaleState after exhausting retries", err)
	}
}
