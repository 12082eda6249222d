package domain

import (
	"context"
	"time"
)

// EventKind identifies a reminder notification type.
type EventKind string

// The three reminder kinds, each sent at most once per local day per
// subscription.
const (
	EventStartFasting   EventKind = "startFasting"
	EventStopFasting    EventKind = "stopFasting"
	EventWeightReminder EventKind = "weightReminder"
)

// PushSubscription is a web-push endpoint registered by one of a user's
// devices, together with the per-day sent flags that deduplicate reminders.
type PushSubscription struct {
	ID        int64
	UserID    int64
	Endpoint  string
	P256dhKey string
	AuthKey   string

	StartFastingSentToday   bool
	StopFastingSentToday    bool
	WeightReminderSentToday bool

	CreatedAt time.Time
}

// SentFlags is the per-day sent state of the three reminder kinds.
type SentFlags struct {
	StartFasting   bool
	StopFasting    bool
	WeightReminder bool
}

// Flags returns the subscription's current sent state.
func (s *PushSubscription) Flags() SentFlags {
	return SentFlags{
		StartFasting:   s.StartFastingSentToday,
		StopFasting:    s.StopFastingSentToday,
		WeightReminder: s.WeightReminderSentToday,
	}
}

// PushRepository is the port for push subscription persistence.
type PushRepository interface {
	// Upsert inserts the subscription or, when the endpoint is already
	// registered, reassigns it and clears its sent flags.
	Upsert(ctx context.Context, sub PushSubscription) (*PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, userID int64) ([]PushSubscription, error)
	AllSubscriptions(ctx context.Context) ([]PushSubscription, error)
	SetSentFlags(ctx context.Context, id int64, flags SentFlags) error
}

// Pusher delivers a reminder to a subscription endpoint. Delivery is
// best-effort; failures are reported but never block state updates.
type Pusher interface {
	Send(ctx context.Context, sub PushSubscription, kind EventKind, user *User) error
}
