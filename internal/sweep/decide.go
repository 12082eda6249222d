package sweep

import (
	"time"

	"fastrack/internal/domain"
)

const (
	staleSessionMinutes = 23 * 60
	healthEntryMaxAge   = 7 * 24 * time.Hour
	// resetWindowMinutes bounds the local-midnight windows in which the
	// weekly pass returns and the sent flags rearm. It matches the sweep
	// period so each window is hit exactly once per day.
	resetWindowMinutes = 30
)

// reconcileUser computes the time-driven corrections for one user at the
// given instant. The returned change is empty when nothing needs to move.
// Pure function; the caller applies it conditionally.
func reconcileUser(u *domain.User, now time.Time) domain.FastingChange {
	var change domain.FastingChange
	lt := domain.LocalTimeAt(now, u.TimezoneOffsetMs)

	// The weekly pass returns in the first half hour of local Monday.
	if !u.HasWeeklyPass && lt.Weekday == time.Monday && lt.Hour == 0 && lt.Minute < resetWindowMinutes {
		granted := true
		change.HasWeeklyPass = &granted
	}

	// A session older than 23 hours is discarded, not recorded: the user
	// abandoned it. Strictly more than 23h, so a fast stopped exactly at the
	// boundary still counts.
	cancel := u.IsFasting && domain.CeilMinutes(u.LastFastStart, now) > staleSessionMinutes
	if cancel {
		stopped := false
		zero := 0
		change.IsFasting = &stopped
		change.FastingStreak = &zero
	}

	// Two local calendar days without a new session breaks the streak.
	if !cancel && u.FastingStreak > 0 && !u.LastFastStart.IsZero() &&
		domain.SameLocalDay(u.LastFastStart.AddDate(0, 0, 2), now, u.TimezoneOffsetMs) {
		zero := 0
		change.FastingStreak = &zero
	}

	return change
}

// notifyDecision is the outcome of evaluating one subscription: which kinds
// to send now and the flag values to persist afterwards.
type notifyDecision struct {
	send  []domain.EventKind
	flags domain.SentFlags
}

// changed reports whether the flags differ from the subscription's current state.
func (d notifyDecision) changed(sub *domain.PushSubscription) bool {
	return d.flags != sub.Flags()
}

// decideNotifications evaluates the reminder rules for one subscription.
// newestHealth may be nil when the user never recorded a measurement. Pure
// function of its inputs.
func decideNotifications(u *domain.User, sub *domain.PushSubscription, newestHealth *domain.HealthEntry, now time.Time) notifyDecision {
	lt := domain.LocalTimeAt(now, u.TimezoneOffsetMs)

	var d notifyDecision
	var startSent, stopSent, weightSent bool

	if u.IsFasting && !sub.StopFastingSentToday {
		if domain.CeilMinutes(u.LastFastStart, now) >= u.FastObjectiveMinutes {
			stopSent = true
			d.send = append(d.send, domain.EventStopFasting)
		}
	} else if !u.IsFasting && !sub.StartFastingSentToday {
		if lt.MinutesSinceMidnight() > u.FastDesiredStartMinutes {
			startSent = true
			d.send = append(d.send, domain.EventStartFasting)
		}
	}

	healthStale := newestHealth == nil || now.Sub(newestHealth.CreatedAt) > healthEntryMaxAge
	if healthStale && !sub.WeightReminderSentToday && lt.Hour == 12 && lt.Minute < resetWindowMinutes {
		weightSent = true
		d.send = append(d.send, domain.EventWeightReminder)
	}

	// Flags rearm in the first half hour of the local day. A kind sent in
	// this pass stays set: set wins over the stale value.
	resetWindow := lt.Hour == 0 && lt.Minute < resetWindowMinutes &&
		(sub.StartFastingSentToday || sub.StopFastingSentToday || sub.WeightReminderSentToday)

	d.flags = domain.SentFlags{
		StartFasting:   nextFlag(startSent, resetWindow, sub.StartFastingSentToday),
		StopFasting:    nextFlag(stopSent, resetWindow, sub.StopFastingSentToday),
		WeightReminder: nextFlag(weightSent, resetWindow, sub.WeightReminderSentToday),
	}
	return d
}

func nextFlag(sentNow, resetWindow, prev bool) bool {
	if sentNow {
		return true
	}
	if resetWindow {
		return false
	}
	return prev
}
