package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fastrack/internal/adapter/memory"
	"fastrack/internal/domain"
)

type recordingPusher struct {
	sent []domain.EventKind
	err  error
}

func (p *recordingPusher) Send(_ context.Context, _ domain.PushSubscription, kind domain.EventKind, _ *domain.User) error {
	p.sent = append(p.sent, kind)
	return p.err
}

func newSweepFixture(t *testing.T, pusher domain.Pusher) (*Sweeper, *memory.DB) {
	t.Helper()
	db := memory.New()
	return New(db, db, db, pusher, zap.NewNop(), 30*time.Minute), db
}

func seedUser(t *testing.T, db *memory.DB, u domain.User) *domain.User {
	t.Helper()
	created, err := db.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func TestPassCancelsStaleSession(t *testing.T) {
	pusher := &recordingPusher{}
	s, db := newSweepFixture(t, pusher)

	start := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	user := seedUser(t, db, domain.User{
		Email: "stale@example.com", Username: "stale",
		IsFasting: true, LastFastStart: start, FastingStreak: 5,
	})

	now := start.Add(24 * time.Hour)
	s.now = func() time.Time { return now }
	s.Pass(context.Background())

	got, err := db.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, got.IsFasting)
	require.Zero(t, got.FastingStreak)

	// No ledger entry for an abandoned session.
	entries, err := db.ListGoalReached(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPassRestoresWeeklyPassOnMonday(t *testing.T) {
	s, db := newSweepFixture(t, &recordingPusher{})

	user := seedUser(t, db, domain.User{
		Email: "pass@example.com", Username: "pass",
		HasWeeklyPass: false,
	})

	// 2024-03-11 is a Monday; 00:10 local.
	s.now = func() time.Time { return time.Date(2024, 3, 11, 0, 10, 0, 0, time.UTC) }
	s.Pass(context.Background())

	got, err := db.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.HasWeeklyPass)
}

func TestPassDeduplicatesAcrossPasses(t *testing.T) {
	pusher := &recordingPusher{}
	s, db := newSweepFixture(t, pusher)

	user := seedUser(t, db, domain.User{
		Email: "remind@example.com", Username: "remind",
		FastDesiredStartMinutes: 18 * 60,
	})
	_, err := db.Upsert(context.Background(), domain.PushSubscription{
		UserID: user.ID, Endpoint: "https://push/1", P256dhKey: "p", AuthKey: "a",
	})
	require.NoError(t, err)

	now := time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.Pass(context.Background())
	require.Equal(t, []domain.EventKind{domain.EventStartFasting}, pusher.sent)

	// Half an hour later the flag suppresses a second send.
	now = now.Add(30 * time.Minute)
	s.Pass(context.Background())
	require.Len(t, pusher.sent, 1)

	// After local midnight the window rearms and the reminder fires again the
	// next evening.
	now = time.Date(2024, 3, 11, 0, 10, 0, 0, time.UTC)
	s.Pass(context.Background())
	require.Len(t, pusher.sent, 1)

	now = time.Date(2024, 3, 11, 19, 0, 0, 0, time.UTC)
	s.Pass(context.Background())
	require.Equal(t, []domain.EventKind{domain.EventStartFasting, domain.EventStartFasting}, pusher.sent)
}

func TestPassMarksFlagEvenWhenDeliveryFails(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("endpoint unreachable")}
	s, db := newSweepFixture(t, pusher)

	user := seedUser(t, db, domain.User{
		Email: "flaky@example.com", Username: "flaky",
		FastDesiredStartMinutes: 18 * 60,
	})
	sub, err := db.Upsert(context.Background(), domain.PushSubscription{
		UserID: user.ID, Endpoint: "https://push/1", P256dhKey: "p", AuthKey: "a",
	})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC) }
	s.Pass(context.Background())

	require.Len(t, pusher.sent, 1)
	subs, err := db.ListSubscriptions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, sub.ID, subs[0].ID)
	require.True(t, subs[0].StartFastingSentToday, "flag must be set even though delivery failed")
}

func TestPassDeletesOrphanSubscriptions(t *testing.T) {
	pusher := &recordingPusher{}
	s, db := newSweepFixture(t, pusher)

	_, err := db.Upsert(context.Background(), domain.PushSubscription{
		UserID: 42, Endpoint: "https://push/orphan", P256dhKey: "p", AuthKey: "a",
	})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC) }
	s.Pass(context.Background())

	subs, err := db.AllSubscriptions(context.Background())
	require.NoError(t, err)
	require.Empty(t, subs)
	require.Empty(t, pusher.sent)
}

func TestPassSkipsUserChangedMidPass(t *testing.T) {
	s, db := newSweepFixture(t, &recordingPusher{})

	start := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	user := seedUser(t, db, domain.User{
		Email: "racy@example.com", Username: "racy",
		IsFasting: true, LastFastStart: start, FastingStreak: 2,
	})

	// Another writer bumps the version between the sweep's read and write.
	racer := &versionBumpRepo{DB: db, userID: user.ID}
	s.users = racer

	s.now = func() time.Time { return start.Add(24 * time.Hour) }
	s.Pass(context.Background())

	// The sweep lost the race and skipped; state is whatever the racer wrote.
	got, err := db.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.IsFasting, "losing sweep must not apply its change")
}

// versionBumpRepo advances the user's state version right before every
// conditional update, so the caller always loses.
type versionBumpRepo struct {
	*memory.DB
	userID int64
}

func (r *versionBumpRepo) ApplyFastingChange(ctx context.Context, userID, expectVersion int64, change domain.FastingChange, entry *domain.FastEntry) (*domain.User, error) {
	if userID == r.userID {
		offset := int64(0)
		if _, err := r.DB.ApplyFastingChange(ctx, userID, expectVersion, domain.FastingChange{TimezoneOffsetMs: &offset}, nil); err != nil {
			return nil, err
		}
	}
	return r.DB.ApplyFastingChange(ctx, userID, expectVersion, change, entry)
}
