package postgres

import (
	"context"
	"time"

	"fastrack/internal/domain"
)

const pushColumns = `id, user_id, endpoint, p256dh_key, auth_key,
	start_fasting_sent, stop_fasting_sent, weight_reminder_sent, created_at`

func scanSubscription(row rowScanner) (*domain.PushSubscription, error) {
	var s domain.PushSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey,
		&s.StartFastingSentToday, &s.StopFastingSentToday, &s.WeightReminderSentToday,
		&s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// Upsert inserts a subscription. An endpoint registered by another user is
// reassigned and its sent flags cleared, so a browser handed to a new account
// does not carry over the old account's dedup state.
func (d *DB) Upsert(ctx context.Context, sub domain.PushSubscription) (*domain.PushSubscription, error) {
	row := d.sql.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			p256dh_key = EXCLUDED.p256dh_key,
			auth_key = EXCLUDED.auth_key,
			start_fasting_sent = FALSE,
			stop_fasting_sent = FALSE,
			weight_reminder_sent = FALSE
		RETURNING `+pushColumns,
		sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, time.Now().UTC())
	return scanSubscription(row)
}

func (d *DB) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := d.sql.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE endpoint = $1", endpoint)
	return err
}

func (d *DB) ListSubscriptions(ctx context.Context, userID int64) ([]domain.PushSubscription, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+pushColumns+" FROM push_subscriptions WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AllSubscriptions returns every subscription, used by the periodic sweep.
func (d *DB) AllSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+pushColumns+" FROM push_subscriptions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (d *DB) SetSentFlags(ctx context.Context, id int64, flags domain.SentFlags) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE push_subscriptions SET
			start_fasting_sent = $2,
			stop_fasting_sent = $3,
			weight_reminder_sent = $4
		WHERE id = $1`,
		id, flags.StartFasting, flags.StopFasting, flags.WeightReminder)
	return err
}
