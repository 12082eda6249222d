package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fastrack/internal/domain"
)

// Add stores a health entry.
func (d *DB) Add(ctx context.Context, e domain.HealthEntry) (int64, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		`INSERT INTO health_entries (user_id, height_cm, weight_kg, created_at, local_day)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.UserID, e.HeightCm, e.WeightKg, e.CreatedAt.UTC(), e.LocalDay,
	).Scan(&id)
	return id, err
}

// Newest returns the most recent health entry for a user, or nil.
func (d *DB) Newest(ctx context.Context, userID int64) (*domain.HealthEntry, error) {
	var e domain.HealthEntry
	err := d.sql.QueryRowContext(ctx,
		`SELECT id, user_id, height_cm, weight_kg, created_at, local_day
		FROM health_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&e.ID, &e.UserID, &e.HeightCm, &e.WeightKg, &e.CreatedAt, &e.LocalDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// ExistsForLocalDay reports whether the user already has an entry for the day.
func (d *DB) ExistsForLocalDay(ctx context.Context, userID int64, localDay string) (bool, error) {
	var exists bool
	err := d.sql.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM health_entries WHERE user_id = $1 AND local_day = $2)",
		userID, localDay,
	).Scan(&exists)
	return exists, err
}

// ListForUser returns a user's health entries sorted by creation ascending.
func (d *DB) ListForUser(ctx context.Context, userID int64) ([]domain.HealthEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, height_cm, weight_kg, created_at, local_day
		FROM health_entries WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HealthEntry
	for rows.Next() {
		var e domain.HealthEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.HeightCm, &e.WeightKg, &e.CreatedAt, &e.LocalDay); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
