package app

import (
	"context"
	"errors"

	"fastrack/internal/domain"
)

// ErrInvalidSubscription indicates a subscription without endpoint or keys.
var ErrInvalidSubscription = errors.New("subscription endpoint and keys are required")

// PushService manages web-push subscriptions.
type PushService struct {
	users domain.UserRepository
	subs  domain.PushRepository
}

// NewPushService creates a PushService backed by the given repositories.
func NewPushService(users domain.UserRepository, subs domain.PushRepository) *PushService {
	return &PushService{users: users, subs: subs}
}

// Subscribe registers a device endpoint for reminder notifications. An
// endpoint already registered (possibly by another account) is reassigned.
func (s *PushService) Subscribe(ctx context.Context, userID int64, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, ErrInvalidSubscription
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.subs.Upsert(ctx, domain.PushSubscription{
		UserID:    userID,
		Endpoint:  endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
	})
}

// Unsubscribe removes a device endpoint.
func (s *PushService) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return ErrInvalidSubscription
	}
	return s.subs.DeleteByEndpoint(ctx, endpoint)
}

// Subscriptions lists the user's registered endpoints.
func (s *PushService) Subscriptions(ctx context.Context, userID int64) ([]domain.PushSubscription, error) {
	return s.subs.ListSubscriptions(ctx, userID)
}
