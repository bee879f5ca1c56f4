package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

// throttleRepoStub serves only the two lookups the throttle performs.
type throttleRepoStub struct {
	Repository
	lastSuccess    EmailLog
	lastSuccessErr error
	pending        EmailLog
	pendingErr     error
}

func (s *throttleRepoStub) LatestSuccessByEmail(_ context.Context, _ string) (EmailLog, error) {
	return s.lastSuccess, s.lastSuccessErr
}

func (s *throttleRepoStub) LatestFutureUnsentByEmail(_ context.Context, _ string, _ time.Time) (EmailLog, error) {
	return s.pending, s.pendingErr
}

func TestThrottleNextEligibleAt(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	cooldown := 30 * time.Minute

	tests := []struct {
		name     string
		repo     *throttleRepoStub
		expected time.Time
	}{
		{
			"no history keeps base",
			&throttleRepoStub{lastSuccessErr: ErrNotFound, pendingErr: ErrNotFound},
			base,
		},
		{
			"recent success pushes past the cooldown",
			&throttleRepoStub{
				lastSuccess: EmailLog{Success: true, LastAttemptAt: null.TimeFrom(base.Add(-10 * time.Minute))},
				pendingErr:  ErrNotFound,
			},
			base.Add(20 * time.Minute),
		},
		{
			"stale success keeps base",
			&throttleRepoStub{
				lastSuccess: EmailLog{Success: true, LastAttemptAt: null.TimeFrom(base.Add(-2 * time.Hour))},
				pendingErr:  ErrNotFound,
			},
			base,
		},
		{
			"pending backoff is inherited",
			&throttleRepoStub{
				lastSuccessErr: ErrNotFound,
				pending:        EmailLog{NextAttemptAt: null.TimeFrom(base.Add(45 * time.Minute))},
			},
			base.Add(45 * time.Minute),
		},
		{
			"latest constraint wins",
			&throttleRepoStub{
				lastSuccess: EmailLog{Success: true, LastAttemptAt: null.TimeFrom(base.Add(-5 * time.Minute))},
				pending:     EmailLog{NextAttemptAt: null.TimeFrom(base.Add(time.Hour))},
			},
			base.Add(time.Hour),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			throttle := NewThrottle(tt.repo, cooldown, 5*time.Second)
			at, err := throttle.NextEligibleAt(ctx, "ada@test.cd", base)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, at)
		})
	}
}

func TestThrottleGapWait(t *testing.T) {
	throttle := NewThrottle(&throttleRepoStub{}, 30*time.Minute, 5*time.Second)
	now := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

	// first send in a run waits nothing
	assert.Equal(t, time.Duration(0), throttle.GapWait("ada@test.cd", now))

	// immediate resend to the same address waits the full gap
	assert.Equal(t, 5*time.Second, throttle.GapWait("ada@test.cd", now))

	// a third queued row stacks behind the second
	assert.Equal(t, 10*time.Second, throttle.GapWait("ada@test.cd", now))

	// other addresses are unaffected
	assert.Equal(t, time.Duration(0), throttle.GapWait("bob@test.cd", now))

	// enough elapsed time clears the gap
	assert.Equal(t, time.Duration(0), throttle.GapWait("ada@test.cd", now.Add(time.Minute)))

	throttle.Reset()
	assert.Equal(t, time.Duration(0), throttle.GapWait("ada@test.cd", now))
}
