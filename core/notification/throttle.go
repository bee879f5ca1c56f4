package notification

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Throttle spaces emails to a single recipient address. It combines
// three rules:
//   - a cooldown after the last successful send to the address,
//   - inheritance of an active backoff held by another unsent email
//     to the same address,
//   - a minimum gap between consecutive sends within one queue run.
type Throttle struct {
	repo     Repository
	cooldown time.Duration
	minGap   time.Duration

	mu       sync.Mutex
	lastSend map[string]time.Time
}

func NewThrottle(repo Repository, cooldown, minGap time.Duration) *Throttle {
	return &Throttle{
		repo:     repo,
		cooldown: cooldown,
		minGap:   minGap,
		lastSend: make(map[string]time.Time),
	}
}

// NextEligibleAt lifts base to the earliest instant an email to the
// address may be attempted, honouring the post-success cooldown and
// any backoff already scheduled for the address.
func (t *Throttle) NextEligibleAt(ctx context.Context, email string, base time.Time) (time.Time, error) {
	eligible := base

	last, err := t.repo.LatestSuccessByEmail(ctx, email)
	switch {
	case err == nil:
		if last.LastAttemptAt.Valid {
			if until := last.LastAttemptAt.Time.Add(t.cooldown); until.After(eligible) {
				eligible = until
			}
		}
	case !errors.Is(err, ErrNotFound):
		return time.Time{}, errors.Wrap(err, "looking up last successful send")
	}

	pending, err := t.repo.LatestFutureUnsentByEmail(ctx, email, base)
	switch {
	case err == nil:
		if pending.NextAttemptAt.Valid && pending.NextAttemptAt.Time.After(eligible) {
			eligible = pending.NextAttemptAt.Time
		}
	case !errors.Is(err, ErrNotFound):
		return time.Time{}, errors.Wrap(err, "looking up pending sends")
	}

	return eligible, nil
}

// GapWait returns how long the caller must wait before sending to the
// address again within the current run, and records now as the send
// instant. The first send to an address in a run waits nothing.
func (t *Throttle) GapWait(email string, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	var wait time.Duration
	if last, ok := t.lastSend[email]; ok {
		if gap := now.Sub(last); gap < t.minGap {
			wait = t.minGap - gap
		}
	}
	t.lastSend[email] = now.Add(wait)
	return wait
}

// Reset clears per-run send tracking. Called at the start of a queue run.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSend = make(map[string]time.Time)
}
