package postgres

import (
	"context"
	"fmt"
	"time"

	"fastrack/internal/domain"
)

const fastEntryColumns = "id, user_id, fast_start, fast_end, duration_minutes, objective_minutes, used_weekly_pass, reached_goal, local_day"

// ListGoalReached returns a user's goal-reached entries sorted by start
// instant descending.
func (d *DB) ListGoalReached(ctx context.Context, userID int64) ([]domain.FastEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+fastEntryColumns+" FROM fast_entries WHERE user_id = $1 AND reached_goal ORDER BY fast_start DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FastEntry
	for rows.Next() {
		var e domain.FastEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Start, &e.End, &e.DurationMinutes,
			&e.ObjectiveMinutes, &e.UsedWeeklyPass, &e.ReachedGoal, &e.LocalDay); err != nil {
			return nil, err
		}
		e.Start = e.Start.UTC()
		e.End = e.End.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListForMonth returns entries recorded in the given local month, sorted by
// local day ascending.
func (d *DB) ListForMonth(ctx context.Context, userID int64, year int, month time.Month) ([]domain.FastEntry, error) {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+fastEntryColumns+" FROM fast_entries WHERE user_id = $1 AND local_day LIKE $2 ORDER BY local_day",
		userID, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FastEntry
	for rows.Next() {
		var e domain.FastEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Start, &e.End, &e.DurationMinutes,
			&e.ObjectiveMinutes, &e.UsedWeeklyPass, &e.ReachedGoal, &e.LocalDay); err != nil {
			return nil, err
		}
		e.Start = e.Start.UTC()
		e.End = e.End.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
