// Package webpush delivers reminder notifications over the Web Push protocol.
package webpush

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"fastrack/internal/domain"
)

const messageTTL = 12 * 60 * 60 // seconds

// Sender pushes reminders to browser endpoints using VAPID keys.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
}

// New creates a Sender. The subscriber is the contact address reported to
// push services, usually a mailto: URL.
func New(publicKey, privateKey, subscriber string) *Sender {
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
}

type payload struct {
	ID   string        `json:"id"`
	User *userSnapshot `json:"user,omitempty"`
}

// userSnapshot is the slice of account state the client needs to render a
// reminder. Credentials never go over the push channel.
type userSnapshot struct {
	Username                string `json:"username"`
	IsFasting               bool   `json:"isFasting"`
	FastDesiredStartMinutes int    `json:"fastDesiredStartTimeInMinutes"`
	FastObjectiveMinutes    int    `json:"fastObjectiveInMinutes"`
	FastingStreak           int    `json:"fastingStreak"`
}

// Send pushes a single reminder to one subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub domain.PushSubscription, kind domain.EventKind, user *domain.User) error {
	p := payload{ID: string(kind)}
	if user != nil {
		p.User = &userSnapshot{
			Username:                user.Username,
			IsFasting:               user.IsFasting,
			FastDesiredStartMinutes: user.FastDesiredStartMinutes,
			FastObjectiveMinutes:    user.FastObjectiveMinutes,
			FastingStreak:           user.FastingStreak,
		}
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             messageTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
