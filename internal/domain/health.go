package domain

import (
	"context"
	"time"
)

// HealthEntry is a single weight/height measurement.
type HealthEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	HeightCm  float64   `json:"heightInCm"`
	WeightKg  float64   `json:"weightInKg"`
	CreatedAt time.Time `json:"date"`
	LocalDay  string    `json:"localDay"`
}

// HealthRepository is the port for health entry persistence.
type HealthRepository interface {
	Add(ctx context.Context, e HealthEntry) (int64, error)
	// Newest returns the most recent entry for a user, or nil if none exists.
	Newest(ctx context.Context, userID int64) (*HealthEntry, error)
	ExistsForLocalDay(ctx context.Context, userID int64, localDay string) (bool, error)
	// ListForUser returns all entries for a user sorted by creation ascending.
	ListForUser(ctx context.Context, userID int64) ([]HealthEntry, error)
}
