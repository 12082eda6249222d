// Package sweep implements the periodic all-user reconciliation pass: it
// applies time-driven fasting-state corrections and dispatches reminder
// notifications, independent of client requests.
package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fastrack/internal/domain"
)

// Sweeper iterates all users on a fixed interval and re-evaluates their
// fasting state machines against the current time.
type Sweeper struct {
	users  domain.UserRepository
	health domain.HealthRepository
	subs   domain.PushRepository
	pusher domain.Pusher
	log    *zap.Logger

	interval time.Duration
	now      func() time.Time
	running  atomic.Bool
}

// New creates a Sweeper. The interval is the reconciliation period; the
// design target is 30 minutes, matching the midnight reset windows.
func New(users domain.UserRepository, health domain.HealthRepository, subs domain.PushRepository, pusher domain.Pusher, log *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		users:    users,
		health:   health,
		subs:     subs,
		pusher:   pusher,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run executes passes on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Pass(ctx)
		}
	}
}

// Pass runs one reconciliation pass over all users and subscriptions. A pass
// still in flight when the next tick fires is not doubled up; concurrent
// passes would be safe (every write is conditional) but redundant.
func (s *Sweeper) Pass(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sweep pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	log := s.log.With(zap.String("pass", uuid.NewString()))
	started := s.now()

	s.reconcileUsers(ctx, log)
	s.dispatchNotifications(ctx, log)

	log.Info("sweep pass done", zap.Duration("took", s.now().Sub(started)))
}

// reconcileUsers applies weekly-pass reset, stale-session cancel and
// stale-streak reset per user. One user's failure never aborts the pass.
func (s *Sweeper) reconcileUsers(ctx context.Context, log *zap.Logger) {
	users, err := s.users.AllUsers(ctx)
	if err != nil {
		log.Error("list users failed", zap.Error(err))
		return
	}

	for i := range users {
		u := &users[i]
		change := reconcileUser(u, s.now())
		if change.Empty() {
			continue
		}
		_, err := s.users.ApplyFastingChange(ctx, u.ID, u.StateVersion, change, nil)
		switch {
		case errors.Is(err, domain.ErrStaleState):
			// A client call won the race; the next pass re-evaluates.
			log.Debug("user changed mid-pass, skipping", zap.Int64("userID", u.ID))
		case err != nil:
			log.Error("reconcile user failed", zap.Error(err), zap.Int64("userID", u.ID))
		}
	}
}

// dispatchNotifications evaluates every subscription, sends due reminders and
// persists the updated sent flags. Delivery failures are swallowed: the flag
// update that was already decided still happens, so a kind fires at most once
// per local day even when the transport drops it.
func (s *Sweeper) dispatchNotifications(ctx context.Context, log *zap.Logger) {
	subs, err := s.subs.AllSubscriptions(ctx)
	if err != nil {
		log.Error("list subscriptions failed", zap.Error(err))
		return
	}

	for i := range subs {
		sub := &subs[i]

		user, err := s.users.GetByID(ctx, sub.UserID)
		if err != nil {
			log.Error("load subscription owner failed", zap.Error(err), zap.Int64("userID", sub.UserID))
			continue
		}
		if user == nil {
			// Self-healing: the owner is gone, drop the subscription.
			if err := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				log.Error("delete orphan subscription failed", zap.Error(err))
			}
			continue
		}

		newest, err := s.health.Newest(ctx, user.ID)
		if err != nil {
			log.Error("load newest health entry failed", zap.Error(err), zap.Int64("userID", user.ID))
			continue
		}

		d := decideNotifications(user, sub, newest, s.now())
		for _, kind := range d.send {
			if err := s.pusher.Send(ctx, *sub, kind, user); err != nil {
				log.Warn("push delivery failed",
					zap.Error(err),
					zap.String("kind", string(kind)),
					zap.Int64("userID", user.ID))
			}
		}
		if d.changed(sub) {
			if err := s.subs.SetSentFlags(ctx, sub.ID, d.flags); err != nil {
				log.Error("update sent flags failed", zap.Error(err), zap.Int64("subID", sub.ID))
			}
		}
	}
}
