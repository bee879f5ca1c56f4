package contest_test

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	logsvc "github.com/skillforge/skillforge/services/logger"
	dummydb "github.com/skillforge/skillforge/storage/database/dummy"
)

type notifierSpy struct {
	mu       sync.Mutex
	contests []int
}

func (n *notifierSpy) EnqueueContestResults(_ context.Context, c contest.Contest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contests = append(n.contests, c.ID)
	return nil
}

func (n *notifierSpy) enqueued() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, len(n.contests))
	copy(out, n.contests)
	return out
}

type broadcasterSpy struct {
	mu        sync.Mutex
	userIDs   []int
	lastBatch interface{}
}

func (b *broadcasterSpy) Broadcast(userID int, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userIDs = append(b.userIDs, userID)
	b.lastBatch = payload
}

func (b *broadcasterSpy) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.userIDs)
}

type contestFixture struct {
	db          *dummydb.DB
	repo        contest.Repository
	notifier    *notifierSpy
	broadcaster *broadcasterSpy
	svc         *contest.Service
}

func newContestFixture(t *testing.T) *contestFixture {
	db, err := dummydb.Open()
	require.NoError(t, err)

	f := &contestFixture{
		db:          db,
		repo:        dummydb.NewContestRepository(db),
		notifier:    &notifierSpy{},
		broadcaster: &broadcasterSpy{},
	}
	var logger core.Logger = logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	f.svc = contest.NewService(f.repo, f.notifier, f.broadcaster, nil, logger)
	return f
}

func (f *contestFixture) createContest(t *testing.T, name string, start, end time.Time) contest.Contest {
	t.Helper()
	c, err := f.svc.Create(context.Background(), contest.Contest{
		Name:             name,
		MaxPoints:        100,
		TotalQuestions:   2,
		StartTime:        null.TimeFrom(start),
		EndTime:          null.TimeFrom(end),
		AutoEmailResults: true,
	})
	require.NoError(t, err)
	return c
}

func (f *contestFixture) ongoingContest(t *testing.T, name string) contest.Contest {
	now := time.Now().UTC()
	return f.createContest(t, name, now.Add(-time.Hour), now.Add(time.Hour))
}

func TestService_Create(t *testing.T) {
	f := newContestFixture(t)
	now := time.Now().UTC()

	c := f.createContest(t, "Algebra I", now.Add(time.Hour), now.Add(2*time.Hour))
	assert.Equal(t, contest.StatusScheduled, c.Status)
	assert.Equal(t, contest.SummaryPending, c.AISummaryStatus)

	c = f.createContest(t, "Algebra II", now.Add(-time.Hour), now.Add(time.Hour))
	assert.Equal(t, contest.StatusOngoing, c.Status)
}

func TestService_Join(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ongoing := f.ongoingContest(t, "Algebra I")
	scheduled := f.createContest(t, "Algebra II", now.Add(time.Hour), now.Add(2*time.Hour))
	finished := f.createContest(t, "Algebra III", now.Add(-2*time.Hour), now.Add(-time.Hour))

	p, err := f.svc.Join(ctx, ongoing.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, ongoing.ID, p.ContestID)
	assert.Equal(t, 1, p.UserID)

	_, err = f.svc.Join(ctx, ongoing.ID, 1)
	assert.Equal(t, contest.ErrAlreadyJoined, err)

	_, err = f.svc.Join(ctx, scheduled.ID, 1)
	assert.Equal(t, contest.ErrNotOngoing, err)

	_, err = f.svc.Join(ctx, finished.ID, 1)
	assert.Equal(t, contest.ErrNotOngoing, err)

	_, err = f.svc.Join(ctx, 999, 1)
	assert.Equal(t, contest.ErrNotFound, err)
}

func TestService_SubmitAnswer(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()

	c := f.ongoingContest(t, "Algebra I")
	other := f.ongoingContest(t, "Algebra II")

	q1 := f.db.SeedQuestion(contest.Question{ContestID: c.ID, Text: "2+2?"})
	q2 := f.db.SeedQuestion(contest.Question{ContestID: c.ID, Text: "3*3?"})
	foreign := f.db.SeedQuestion(contest.Question{ContestID: other.ID, Text: "1+1?"})

	right := f.db.SeedOption(contest.Option{QuestionID: q1.ID, Text: "4", IsCorrect: true})
	wrong := f.db.SeedOption(contest.Option{QuestionID: q2.ID, Text: "6"})
	foreignOpt := f.db.SeedOption(contest.Option{QuestionID: foreign.ID, Text: "2", IsCorrect: true})

	p, err := f.svc.Join(ctx, c.ID, 1)
	require.NoError(t, err)

	t.Run("correct answer scores a question share", func(t *testing.T) {
		sub, err := f.svc.SubmitAnswer(ctx, p.ID, q1.ID, right.ID)
		require.NoError(t, err)
		assert.True(t, sub.IsCorrect)

		refreshed, err := f.repo.GetParticipant(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, refreshed.Score) // 100 points over 2 questions
	})

	t.Run("one submission per question", func(t *testing.T) {
		_, err := f.svc.SubmitAnswer(ctx, p.ID, q1.ID, right.ID)
		assert.Equal(t, contest.ErrAlreadySubmitted, err)
	})

	t.Run("wrong answer scores nothing", func(t *testing.T) {
		sub, err := f.svc.SubmitAnswer(ctx, p.ID, q2.ID, wrong.ID)
		require.NoError(t, err)
		assert.False(t, sub.IsCorrect)

		refreshed, err := f.repo.GetParticipant(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, refreshed.Score)
	})

	t.Run("question must belong to the contest", func(t *testing.T) {
		_, err := f.svc.SubmitAnswer(ctx, p.ID, foreign.ID, foreignOpt.ID)
		assert.Equal(t, contest.ErrNotFound, err)
	})

	t.Run("option must belong to the question", func(t *testing.T) {
		p2, err := f.svc.Join(ctx, c.ID, 2)
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, p2.ID, q1.ID, wrong.ID)
		assert.Equal(t, contest.ErrNotFound, err)
	})

	t.Run("time limit is enforced", func(t *testing.T) {
		limited := f.ongoingContest(t, "Sprint")
		limited.TimeLimit = time.Minute
		limited, err := f.repo.UpdateContest(ctx, limited)
		require.NoError(t, err)
		lq := f.db.SeedQuestion(contest.Question{ContestID: limited.ID, Text: "?"})
		lo := f.db.SeedOption(contest.Option{QuestionID: lq.ID, Text: "!", IsCorrect: true})

		late, err := f.repo.CreateParticipant(ctx, contest.Participant{
			ContestID: limited.ID, UserID: 3, CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
		})
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, late.ID, lq.ID, lo.ID)
		assert.Equal(t, contest.ErrTimeLimitExceeded, err)
	})

	t.Run("completed participants are locked out", func(t *testing.T) {
		done, err := f.svc.Join(ctx, c.ID, 4)
		require.NoError(t, err)
		done.CompletedAt = null.TimeFrom(time.Now().UTC())
		done, err = f.repo.UpdateParticipant(ctx, done)
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, done.ID, q1.ID, right.ID)
		assert.Equal(t, contest.ErrNotOngoing, err)
	})
}

func TestService_CompleteParticipation(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()

	c := f.ongoingContest(t, "Algebra I")
	p1, err := f.svc.Join(ctx, c.ID, 1)
	require.NoError(t, err)
	p2, err := f.svc.Join(ctx, c.ID, 2)
	require.NoError(t, err)
	p3, err := f.svc.Join(ctx, c.ID, 3)
	require.NoError(t, err)

	for _, upd := range []struct {
		p     contest.Participant
		score int
	}{{p1, 80}, {p2, 80}, {p3, 50}} {
		upd.p.Score = upd.score
		_, err = f.repo.UpdateParticipant(ctx, upd.p)
		require.NoError(t, err)
	}

	done, err := f.svc.CompleteParticipation(ctx, p1.ID)
	require.NoError(t, err)
	assert.True(t, done.CompletedAt.Valid)
	assert.True(t, done.TimeTaken > 0)

	entries, err := f.svc.Leaderboard(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 3, entries[2].UserID)

	// one push per ranked participant
	assert.Equal(t, 3, f.broadcaster.count())

	// completing again is a no-op
	again, err := f.svc.CompleteParticipation(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, done.CompletedAt.Time, again.CompletedAt.Time)
	assert.Equal(t, 3, f.broadcaster.count())
}

func TestService_Roster(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()

	c := f.ongoingContest(t, "Algebra I")
	_, err := f.svc.Join(ctx, c.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, c.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.svc.Enroll(ctx, c.ID, 2))
	require.NoError(t, f.svc.Enroll(ctx, c.ID, 3))

	roster, err := f.svc.Roster(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, roster)
}

func TestService_SyncStatuses(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	starting := f.createContest(t, "Starting", now.Add(-time.Minute), now.Add(time.Hour))
	starting.Status = contest.StatusScheduled
	_, err := f.repo.UpdateContest(ctx, starting)
	require.NoError(t, err)

	ending := f.createContest(t, "Ending", now.Add(-2*time.Hour), now.Add(-time.Minute))
	ending.Status = contest.StatusOngoing
	_, err = f.repo.UpdateContest(ctx, ending)
	require.NoError(t, err)

	f.createContest(t, "Future", now.Add(time.Hour), now.Add(2*time.Hour))

	changed, err := f.svc.SyncStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.Equal(t, []int{ending.ID}, f.notifier.enqueued())

	c, err := f.svc.Get(ctx, ending.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusFinished, c.Status)

	// notifications fire only on the finishing edge
	changed, err = f.svc.SyncStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Equal(t, []int{ending.ID}, f.notifier.enqueued())
}

func TestService_FinishEndedContests(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ended := f.createContest(t, "Ended", now.Add(-2*time.Hour), now.Add(-time.Hour))
	ended.Status = contest.StatusOngoing
	_, err := f.repo.UpdateContest(ctx, ended)
	require.NoError(t, err)

	running := f.ongoingContest(t, "Running")

	t.Run("dry run reports without changing anything", func(t *testing.T) {
		would, err := f.svc.FinishEndedContests(ctx, 0, true)
		require.NoError(t, err)
		require.Len(t, would, 1)
		assert.Equal(t, ended.ID, would[0].ID)

		c, err := f.svc.Get(ctx, ended.ID)
		require.NoError(t, err)
		assert.Equal(t, contest.StatusOngoing, c.Status)
		assert.Empty(t, f.notifier.enqueued())
	})

	t.Run("real run finishes and notifies", func(t *testing.T) {
		finished, err := f.svc.FinishEndedContests(ctx, 0, false)
		require.NoError(t, err)
		require.Len(t, finished, 1)
		assert.Equal(t, contest.StatusFinished, finished[0].Status)
		assert.Equal(t, []int{ended.ID}, f.notifier.enqueued())

		c, err := f.svc.Get(ctx, running.ID)
		require.NoError(t, err)
		assert.NotEqual(t, contest.StatusFinished, c.Status)
	})
}

func TestService_GlobalLeaderboardAndQueryFinished(t *testing.T) {
	f := newContestFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	done := f.createContest(t, "Done", now.Add(-2*time.Hour), now.Add(-time.Hour))
	f.ongoingContest(t, "Running")

	finished, err := f.svc.QueryFinished(ctx)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, done.ID, finished[0].ID)
}
