package app

import (
	"context"
	"errors"
	"time"

	"fastrack/internal/domain"
)

var (
	// ErrWeightAlreadyToday indicates a second weight entry on the same local day.
	ErrWeightAlreadyToday = errors.New("weight already registered today")
	// ErrObjectiveAlreadyReached indicates a weight objective at or above the
	// current weight.
	ErrObjectiveAlreadyReached = errors.New("objective already reached")
	// ErrInvalidMeasurement indicates a non-positive weight or height.
	ErrInvalidMeasurement = errors.New("measurement must be > 0")
)

// HealthService encapsulates weight and height tracking.
type HealthService struct {
	users   domain.UserRepository
	entries domain.HealthRepository
}

// NewHealthService creates a HealthService backed by the given repositories.
func NewHealthService(users domain.UserRepository, entries domain.HealthRepository) *HealthService {
	return &HealthService{users: users, entries: entries}
}

// SetWeight records a weight measurement, at most one per local calendar day,
// and updates the user's current weight snapshot.
func (s *HealthService) SetWeight(ctx context.Context, userID int64, weightKg float64, at time.Time, tzOffsetMs int64) (*domain.User, error) {
	if weightKg <= 0 {
		return nil, ErrInvalidMeasurement
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	localDay := domain.LocalDay(at, tzOffsetMs)
	exists, err := s.entries.ExistsForLocalDay(ctx, userID, localDay)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrWeightAlreadyToday
	}

	entry := domain.HealthEntry{
		UserID:    userID,
		HeightCm:  user.HeightCm,
		WeightKg:  weightKg,
		CreatedAt: at.UTC(),
		LocalDay:  localDay,
	}
	if _, err := s.entries.Add(ctx, entry); err != nil {
		return nil, err
	}

	change := domain.BodyChange{
		WeightKg:        &weightKg,
		LastWeightEntry: ptr(at.UTC()),
	}
	// The starting weight anchors progress charts; it only moves up when the
	// user regresses past it.
	if weightKg > user.StartingWeightKg && user.StartingWeightKg >= 0 {
		change.StartingWeightKg = &weightKg
	}
	return s.users.UpdateBody(ctx, userID, change)
}

// SetHeight updates the user's height.
func (s *HealthService) SetHeight(ctx context.Context, userID int64, heightCm float64) (*domain.User, error) {
	if heightCm <= 0 {
		return nil, ErrInvalidMeasurement
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.users.UpdateBody(ctx, userID, domain.BodyChange{HeightCm: &heightCm})
}

// SetWeightObjective sets a target weight below the current one and re-anchors
// the starting weight.
func (s *HealthService) SetWeightObjective(ctx context.Context, userID int64, objectiveKg float64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if objectiveKg > user.WeightKg {
		return nil, ErrObjectiveAlreadyReached
	}
	return s.users.UpdateBody(ctx, userID, domain.BodyChange{
		WeightObjectiveKg: &objectiveKg,
		StartingWeightKg:  &user.WeightKg,
	})
}

// WeightHistory returns all of the user's health entries, oldest first.
func (s *HealthService) WeightHistory(ctx context.Context, userID int64) ([]domain.HealthEntry, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.entries.ListForUser(ctx, userID)
}
