package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fastrack/internal/domain"
)

const userColumns = `id, email, username, password_hash, created_at,
	is_fasting, last_fast_start, last_fast_end,
	fast_desired_start_minutes, fast_objective_minutes, has_weekly_pass,
	fasting_streak, total_goal_reached, timezone_offset_ms,
	height_cm, weight_kg, weight_objective_kg, starting_weight_kg, last_weight_entry,
	state_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var lastStart, lastEnd, lastWeight sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt,
		&u.IsFasting, &lastStart, &lastEnd,
		&u.FastDesiredStartMinutes, &u.FastObjectiveMinutes, &u.HasWeeklyPass,
		&u.FastingStreak, &u.TotalGoalReached, &u.TimezoneOffsetMs,
		&u.HeightCm, &u.WeightKg, &u.WeightObjectiveKg, &u.StartingWeightKg, &lastWeight,
		&u.StateVersion,
	)
	if err != nil {
		return nil, err
	}
	if lastStart.Valid {
		u.LastFastStart = lastStart.Time.UTC()
	}
	if lastEnd.Valid {
		u.LastFastEnd = lastEnd.Time.UTC()
	}
	if lastWeight.Valid {
		u.LastWeightEntry = lastWeight.Time.UTC()
	}
	return &u, nil
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetByEmail retrieves a user by email.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		`INSERT INTO users (email, username, password_hash, created_at,
			fast_desired_start_minutes, fast_objective_minutes, has_weekly_pass, timezone_offset_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, time.Now().UTC(),
		u.FastDesiredStartMinutes, u.FastObjectiveMinutes, u.HasWeeklyPass, u.TimezoneOffsetMs,
	))
}

// UpdateEmail updates a user's email.
func (d *DB) UpdateEmail(ctx context.Context, id int64, email string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE users SET email = $1 WHERE id = $2", email, id)
	return err
}

// UpdateUsername updates a user's username.
func (d *DB) UpdateUsername(ctx context.Context, id int64, username string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE users SET username = $1 WHERE id = $2", username, id)
	return err
}

// UpdatePassword updates a user's password hash.
func (d *DB) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, id)
	return err
}

// UpdateBody applies a sparse body-measurement update.
func (d *DB) UpdateBody(ctx context.Context, id int64, change domain.BodyChange) (*domain.User, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if change.HeightCm != nil {
		add("height_cm", *change.HeightCm)
	}
	if change.WeightKg != nil {
		add("weight_kg", *change.WeightKg)
	}
	if change.WeightObjectiveKg != nil {
		add("weight_objective_kg", *change.WeightObjectiveKg)
	}
	if change.StartingWeightKg != nil {
		add("starting_weight_kg", *change.StartingWeightKg)
	}
	if change.LastWeightEntry != nil {
		add("last_weight_entry", change.LastWeightEntry.UTC())
	}
	if len(sets) == 0 {
		return d.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(d.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Delete removes a user; fast entries, health entries, subscriptions and
// sessions cascade via foreign keys.
func (d *DB) Delete(ctx context.Context, id int64) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}

// AllUsers returns every user sorted by ID.
func (d *DB) AllUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ApplyFastingChange applies a sparse fasting-state update guarded by the
// state version, appending entry to the ledger in the same transaction when
// non-nil. Fails with domain.ErrStaleState when no row matches the expected
// version, leaving no visible change.
func (d *DB) ApplyFastingChange(ctx context.Context, userID, expectVersion int64, change domain.FastingChange, entry *domain.FastEntry) (*domain.User, error) {
	sets := []string{"state_version = state_version + 1"}
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if change.IsFasting != nil {
		add("is_fasting", *change.IsFasting)
	}
	if change.LastFastStart != nil {
		add("last_fast_start", change.LastFastStart.UTC())
	}
	if change.LastFastEnd != nil {
		add("last_fast_end", change.LastFastEnd.UTC())
	}
	if change.HasWeeklyPass != nil {
		add("has_weekly_pass", *change.HasWeeklyPass)
	}
	if change.FastingStreak != nil {
		add("fasting_streak", *change.FastingStreak)
	}
	if change.TotalGoalReached != nil {
		add("total_goal_reached", *change.TotalGoalReached)
	}
	if change.TimezoneOffsetMs != nil {
		add("timezone_offset_ms", *change.TimezoneOffsetMs)
	}
	if change.FastDesiredStartMinutes != nil {
		add("fast_desired_start_minutes", *change.FastDesiredStartMinutes)
	}
	if change.FastObjectiveMinutes != nil {
		add("fast_objective_minutes", *change.FastObjectiveMinutes)
	}

	args = append(args, userID, expectVersion)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d AND state_version = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args)-1, len(args), userColumns)

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStaleState
	}
	if err != nil {
		return nil, err
	}

	if entry != nil {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO fast_entries (user_id, fast_start, fast_end, duration_minutes,
				objective_minutes, used_weekly_pass, reached_goal, local_day)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			userID, entry.Start.UTC(), entry.End.UTC(), entry.DurationMinutes,
			entry.ObjectiveMinutes, entry.UsedWeeklyPass, entry.ReachedGoal, entry.LocalDay,
		).Scan(&entry.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}
