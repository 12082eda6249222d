// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fastrack/internal/domain"
)

// DB implements all domain repositories on in-memory storage guarded by a
// single mutex, so every fasting-state mutation is naturally atomic.
type DB struct {
	mu       sync.Mutex
	users    map[int64]*domain.User
	entries  []domain.FastEntry
	health   []domain.HealthEntry
	subs     map[string]*domain.PushSubscription
	sessions map[string]*domain.Session

	userIDCounter   int64
	entryIDCounter  int64
	healthIDCounter int64
	subIDCounter    int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		users:    make(map[int64]*domain.User),
		subs:     make(map[string]*domain.PushSubscription),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.FastEntryRepository = (*DB)(nil)
var _ domain.HealthRepository = (*DB)(nil)
var _ domain.PushRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- UserRepository ---

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Email == u.Email {
			return nil, fmt.Errorf("email %q already exists", u.Email)
		}
	}

	db.userIDCounter++
	u.ID = db.userIDCounter
	u.CreatedAt = time.Now().UTC()
	u.StateVersion = 1
	db.users[u.ID] = &u

	cp := u
	return &cp, nil
}

// UpdateEmail updates a user's email.
func (db *DB) UpdateEmail(ctx context.Context, id int64, email string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		u.Email = email
	}
	return nil
}

// UpdateUsername updates a user's username.
func (db *DB) UpdateUsername(ctx context.Context, id int64, username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		u.Username = username
	}
	return nil
}

// UpdatePassword updates a user's password hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

// UpdateBody applies a sparse body-measurement update.
func (db *DB) UpdateBody(ctx context.Context, id int64, change domain.BodyChange) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, nil
	}
	if change.HeightCm != nil {
		u.HeightCm = *change.HeightCm
	}
	if change.WeightKg != nil {
		u.WeightKg = *change.WeightKg
	}
	if change.WeightObjectiveKg != nil {
		u.WeightObjectiveKg = *change.WeightObjectiveKg
	}
	if change.StartingWeightKg != nil {
		u.StartingWeightKg = *change.StartingWeightKg
	}
	if change.LastWeightEntry != nil {
		u.LastWeightEntry = *change.LastWeightEntry
	}
	cp := *u
	return &cp, nil
}

// Delete removes a user and cascades to everything it owns.
func (db *DB) Delete(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.users, id)

	entries := db.entries[:0]
	for _, e := range db.entries {
		if e.UserID != id {
			entries = append(entries, e)
		}
	}
	db.entries = entries

	health := db.health[:0]
	for _, e := range db.health {
		if e.UserID != id {
			health = append(health, e)
		}
	}
	db.health = health

	for endpoint, sub := range db.subs {
		if sub.UserID == id {
			delete(db.subs, endpoint)
		}
	}
	for token, s := range db.sessions {
		if s.UserID == id {
			delete(db.sessions, token)
		}
	}
	return nil
}

// AllUsers returns every user sorted by ID.
func (db *DB) AllUsers(ctx context.Context) ([]domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.User, 0, len(db.users))
	for _, u := range db.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ApplyFastingChange applies a conditional fasting-state update and appends
// entry to the ledger in the same step. Fails with ErrStaleState when the
// stored version no longer matches.
func (db *DB) ApplyFastingChange(ctx context.Context, userID, expectVersion int64, change domain.FastingChange, entry *domain.FastEntry) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok || u.StateVersion != expectVersion {
		return nil, domain.ErrStaleState
	}

	if change.IsFasting != nil {
		u.IsFasting = *change.IsFasting
	}
	if change.LastFastStart != nil {
		u.LastFastStart = *change.LastFastStart
	}
	if change.LastFastEnd != nil {
		u.LastFastEnd = *change.LastFastEnd
	}
	if change.HasWeeklyPass != nil {
		u.HasWeeklyPass = *change.HasWeeklyPass
	}
	if change.FastingStreak != nil {
		u.FastingStreak = *change.FastingStreak
	}
	if change.TotalGoalReached != nil {
		u.TotalGoalReached = *change.TotalGoalReached
	}
	if change.TimezoneOffsetMs != nil {
		u.TimezoneOffsetMs = *change.TimezoneOffsetMs
	}
	if change.FastDesiredStartMinutes != nil {
		u.FastDesiredStartMinutes = *change.FastDesiredStartMinutes
	}
	if change.FastObjectiveMinutes != nil {
		u.FastObjectiveMinutes = *change.FastObjectiveMinutes
	}
	u.StateVersion++

	if entry != nil {
		db.entryIDCounter++
		e := *entry
		e.ID = db.entryIDCounter
		e.UserID = userID
		db.entries = append(db.entries, e)
	}

	cp := *u
	return &cp, nil
}

// --- FastEntryRepository ---

// ListGoalReached returns goal-reached entries sorted by start descending.
func (db *DB) ListGoalReached(ctx context.Context, userID int64) ([]domain.FastEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.FastEntry
	for _, e := range db.entries {
		if e.UserID == userID && e.ReachedGoal {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// ListForMonth returns entries recorded in the given local month, sorted by
// local day ascending.
func (db *DB) ListForMonth(ctx context.Context, userID int64, year int, month time.Month) ([]domain.FastEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	var out []domain.FastEntry
	for _, e := range db.entries {
		if e.UserID == userID && len(e.LocalDay) >= len(prefix) && e.LocalDay[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalDay < out[j].LocalDay })
	return out, nil
}

// --- HealthRepository ---

// Add stores a health entry.
func (db *DB) Add(ctx context.Context, e domain.HealthEntry) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.healthIDCounter++
	e.ID = db.healthIDCounter
	db.health = append(db.health, e)
	return e.ID, nil
}

// Newest returns the most recent health entry for a user, or nil.
func (db *DB) Newest(ctx context.Context, userID int64) (*domain.HealthEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var newest *domain.HealthEntry
	for i := range db.health {
		e := &db.health[i]
		if e.UserID != userID {
			continue
		}
		if newest == nil || e.CreatedAt.After(newest.CreatedAt) {
			newest = e
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

// ExistsForLocalDay reports whether the user already has an entry for the day.
func (db *DB) ExistsForLocalDay(ctx context.Context, userID int64, localDay string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.health {
		if e.UserID == userID && e.LocalDay == localDay {
			return true, nil
		}
	}
	return false, nil
}

// ListForUser returns a user's health entries sorted by creation ascending.
func (db *DB) ListForUser(ctx context.Context, userID int64) ([]domain.HealthEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.HealthEntry
	for _, e := range db.health {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- PushRepository ---

// Upsert inserts a subscription or reassigns an existing endpoint.
func (db *DB) Upsert(ctx context.Context, sub domain.PushSubscription) (*domain.PushSubscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if existing, ok := db.subs[sub.Endpoint]; ok {
		existing.UserID = sub.UserID
		existing.P256dhKey = sub.P256dhKey
		existing.AuthKey = sub.AuthKey
		existing.StartFastingSentToday = false
		existing.StopFastingSentToday = false
		existing.WeightReminderSentToday = false
		cp := *existing
		return &cp, nil
	}

	db.subIDCounter++
	sub.ID = db.subIDCounter
	sub.CreatedAt = time.Now().UTC()
	db.subs[sub.Endpoint] = &sub

	cp := sub
	return &cp, nil
}

// DeleteByEndpoint removes a subscription by endpoint.
func (db *DB) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.subs, endpoint)
	return nil
}

// ListSubscriptions returns a user's subscriptions sorted by ID.
func (db *DB) ListSubscriptions(ctx context.Context, userID int64) ([]domain.PushSubscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.PushSubscription
	for _, sub := range db.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AllSubscriptions returns every subscription sorted by ID.
func (db *DB) AllSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.PushSubscription, 0, len(db.subs))
	for _, sub := range db.subs {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetSentFlags persists the per-day sent flags for a subscription.
func (db *DB) SetSentFlags(ctx context.Context, id int64, flags domain.SentFlags) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, sub := range db.subs {
		if sub.ID == id {
			sub.StartFastingSentToday = flags.StartFasting
			sub.StopFastingSentToday = flags.StopFasting
			sub.WeightReminderSentToday = flags.WeightReminder
			return nil
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
