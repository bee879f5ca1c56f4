package summary_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/summary"
	logsvc "github.com/skillforge/skillforge/services/logger"
	dummydb "github.com/skillforge/skillforge/storage/database/dummy"
)

type stubGenerator struct {
	name  string
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Name() string { return g.name }

func (g *stubGenerator) Summarize(_ context.Context, _ string, _ []string) (string, error) {
	g.calls++
	return g.text, g.err
}

type summaryFixture struct {
	db       *dummydb.DB
	repo     summary.Repository
	contests contest.Repository
}

func newSummaryFixture(t *testing.T) *summaryFixture {
	db, err := dummydb.Open()
	require.NoError(t, err)
	return &summaryFixture{
		db:       db,
		repo:     dummydb.NewKeyNoteRepository(db),
		contests: dummydb.NewContestRepository(db),
	}
}

func (f *summaryFixture) newService(t *testing.T, generators ...summary.TextGenerator) *summary.Service {
	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	return summary.NewService(f.repo, f.contests, logger, generators...)
}

func (f *summaryFixture) seedContest(t *testing.T, description string) contest.Contest {
	t.Helper()
	c, err := f.contests.CreateContest(context.Background(), contest.Contest{
		Name:            "Algebra I",
		Description:     description,
		Status:          contest.StatusFinished,
		MaxPoints:       100,
		AISummaryStatus: contest.SummaryPending,
	})
	require.NoError(t, err)
	return c
}

func (f *summaryFixture) seedQuestion(c contest.Contest, text string, correct ...string) contest.Question {
	q := f.db.SeedQuestion(contest.Question{ContestID: c.ID, Text: text})
	for _, opt := range correct {
		f.db.SeedOption(contest.Option{QuestionID: q.ID, Text: opt, IsCorrect: true})
	}
	return q
}

func TestService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("stores one note per question and marks the contest ready", func(t *testing.T) {
		f := newSummaryFixture(t)
		gen := &stubGenerator{name: "gemini", text: "Answer: adds numbers."}
		svc := f.newService(t, gen)
		c := f.seedContest(t, "")
		q1 := f.seedQuestion(c, "What is 2+2?")
		q2 := f.seedQuestion(c, "What is 3+3?")

		notes, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, q1.ID, notes[0].QuestionID)
		assert.Equal(t, q2.ID, notes[1].QuestionID)
		for _, note := range notes {
			assert.Equal(t, "gemini", note.Provider)
			assert.Equal(t, c.ID, note.ContestID)
			assert.Equal(t, "Answer: adds numbers.", note.Text)
			assert.False(t, note.GeneratedBy.Valid)
		}
		assert.Equal(t, 2, gen.calls)

		refreshed, err := f.contests.GetContest(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, contest.SummaryReady, refreshed.AISummaryStatus)
	})

	t.Run("falls through failing providers in order", func(t *testing.T) {
		f := newSummaryFixture(t)
		broken := &stubGenerator{name: "gemini", err: errors.New("quota exceeded")}
		working := &stubGenerator{name: "openai", text: "Answer: from openai."}
		svc := f.newService(t, broken, working)
		c := f.seedContest(t, "")
		f.seedQuestion(c, "What is 2+2?")

		notes, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "openai", notes[0].Provider)
		assert.Equal(t, 1, broken.calls)
		assert.Equal(t, 1, working.calls)
	})

	t.Run("heuristic answers from correct options when providers fail", func(t *testing.T) {
		f := newSummaryFixture(t)
		broken := &stubGenerator{name: "gemini", err: errors.New("down")}
		svc := f.newService(t, broken)
		c := f.seedContest(t, "")
		f.seedQuestion(c, "What is 2+2?", "4", "four")

		notes, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "heuristic", notes[0].Provider)
		assert.Equal(t, "Answer: 4 / four. Explanation: Based on provided correct options.", notes[0].Text)
	})

	t.Run("heuristic extracts the closest tutor-note sentence", func(t *testing.T) {
		f := newSummaryFixture(t)
		svc := f.newService(t)
		c := f.seedContest(t, "Gravity pulls objects toward each other. Algebra studies symbols.")
		f.seedQuestion(c, "What does gravity do to objects?")

		notes, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "heuristic", notes[0].Provider)
		assert.Equal(t, "Answer: Gravity pulls objects toward each other. Explanation: Extracted from tutor notes.", notes[0].Text)
	})

	t.Run("last resort note when nothing else is available", func(t *testing.T) {
		f := newSummaryFixture(t)
		svc := f.newService(t)
		c := f.seedContest(t, "")
		f.seedQuestion(c, "Explain entropy.")

		notes, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "fallback", notes[0].Provider)
		assert.Contains(t, notes[0].Text, "Explain entropy.")
		assert.Contains(t, notes[0].Text, "fallback summary")
	})

	t.Run("rerun overwrites the question's note instead of duplicating it", func(t *testing.T) {
		f := newSummaryFixture(t)
		gen := &stubGenerator{name: "gemini", text: "Answer: first run."}
		svc := f.newService(t, gen)
		c := f.seedContest(t, "")
		q := f.seedQuestion(c, "What is 2+2?")

		_, err := svc.Generate(ctx, c.ID)
		require.NoError(t, err)

		gen.text = "Answer: second run."
		_, err = svc.Generate(ctx, c.ID)
		require.NoError(t, err)

		stored, err := svc.Query(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, q.ID, stored[0].QuestionID)
		assert.Equal(t, "Answer: second run.", stored[0].Text)
	})

	t.Run("unknown contest", func(t *testing.T) {
		f := newSummaryFixture(t)
		svc := f.newService(t)
		_, err := svc.Generate(ctx, 999)
		assert.Equal(t, contest.ErrNotFound, err)
	})
}

func TestService_GenerateForContest(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	gen := &stubGenerator{name: "gemini", text: "Answer: recorded."}
	svc := f.newService(t, gen)
	c := f.seedContest(t, "")
	f.seedQuestion(c, "What is 2+2?")

	require.NoError(t, svc.GenerateForContest(ctx, c.ID, 42))

	stored, err := svc.Query(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].GeneratedBy.Valid)
	assert.Equal(t, 42, stored[0].GeneratedBy.Int)
}

func TestService_Regenerate(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	gen := &stubGenerator{name: "gemini", text: "Answer: first run."}
	svc := f.newService(t, gen)
	c := f.seedContest(t, "")
	f.seedQuestion(c, "What is 2+2?")
	f.seedQuestion(c, "What is 3+3?")

	_, err := svc.Generate(ctx, c.ID)
	require.NoError(t, err)

	gen.text = "Answer: second run."
	notes, err := svc.Regenerate(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	stored, err := svc.Query(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Answer: second run.", stored[0].Text)
}
