// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			is_fasting BOOLEAN NOT NULL DEFAULT FALSE,
			last_fast_start TIMESTAMPTZ,
			last_fast_end TIMESTAMPTZ,
			fast_desired_start_minutes INT NOT NULL DEFAULT 1080,
			fast_objective_minutes INT NOT NULL DEFAULT 840,
			has_weekly_pass BOOLEAN NOT NULL DEFAULT TRUE,
			fasting_streak INT NOT NULL DEFAULT 0,
			total_goal_reached INT NOT NULL DEFAULT 0,
			timezone_offset_ms BIGINT NOT NULL DEFAULT 0,
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_objective_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			starting_weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_weight_entry TIMESTAMPTZ,
			state_version BIGINT NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS fast_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			fast_start TIMESTAMPTZ NOT NULL,
			fast_end TIMESTAMPTZ NOT NULL,
			duration_minutes INT NOT NULL,
			objective_minutes INT NOT NULL,
			used_weekly_pass BOOLEAN NOT NULL,
			reached_goal BOOLEAN NOT NULL,
			local_day TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_fast_entries_goal ON fast_entries(user_id, reached_goal, fast_start DESC);",
		"CREATE INDEX IF NOT EXISTS idx_fast_entries_local_day ON fast_entries(user_id, local_day);",
		`CREATE TABLE IF NOT EXISTS health_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			height_cm DOUBLE PRECISION NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			local_day TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_health_entries_user ON health_entries(user_id, created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_health_entries_local_day ON health_entries(user_id, local_day);",
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			endpoint TEXT UNIQUE NOT NULL,
			p256dh_key TEXT NOT NULL,
			auth_key TEXT NOT NULL,
			start_fasting_sent BOOLEAN NOT NULL DEFAULT FALSE,
			stop_fasting_sent BOOLEAN NOT NULL DEFAULT FALSE,
			weight_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user ON push_subscriptions(user_id);",
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
