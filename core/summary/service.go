package summary

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
)

// mockable
var nowFunc func() time.Time = time.Now

const (
	providerHeuristic = "heuristic"
	providerFallback  = "fallback"

	fallbackQuestionMax = 150
)

// Service generates one key note per contest question by walking a
// chain of text generators. External providers come first; a local
// heuristic and a last-resort summary close the chain so every
// question ends up with a note.
type Service struct {
	repo       Repository
	contests   contest.Repository
	generators []TextGenerator
	logger     core.Logger
}

func NewService(repo Repository, contests contest.Repository, logger core.Logger, generators ...TextGenerator) *Service {
	return &Service{
		repo:       repo,
		contests:   contests,
		generators: generators,
		logger:     logger,
	}
}

// Generate produces and stores a key note for every question of the
// contest, overwriting any previous note per question. The contest's
// summary status tracks the run.
func (svc *Service) Generate(ctx context.Context, contestID int) ([]KeyNote, error) {
	return svc.run(ctx, contestID, null.Int{})
}

// GenerateForContest is Generate with the requesting user recorded on
// each note.
func (svc *Service) GenerateForContest(ctx context.Context, contestID, generatedBy int) error {
	_, err := svc.run(ctx, contestID, null.IntFrom(generatedBy))
	return err
}

// Regenerate discards existing key notes before generating fresh ones.
func (svc *Service) Regenerate(ctx context.Context, contestID int) ([]KeyNote, error) {
	if err := svc.repo.DeleteKeyNotesByContest(ctx, contestID); err != nil {
		return nil, errors.Wrap(err, "deleting key notes")
	}
	return svc.run(ctx, contestID, null.Int{})
}

func (svc *Service) Query(ctx context.Context, contestID int) ([]KeyNote, error) {
	return svc.repo.QueryKeyNotesByContest(ctx, contestID)
}

func (svc *Service) run(ctx context.Context, contestID int, generatedBy null.Int) ([]KeyNote, error) {
	c, err := svc.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	c.AISummaryStatus = contest.SummaryGenerating
	if c, err = svc.contests.UpdateContest(ctx, c); err != nil {
		return nil, errors.Wrap(err, "marking summary generating")
	}

	notes, err := svc.generate(ctx, c, generatedBy)
	status := contest.SummaryReady
	if err != nil {
		status = contest.SummaryFailed
	}
	c.AISummaryStatus = status
	if _, uerr := svc.contests.UpdateContest(ctx, c); uerr != nil {
		svc.logger.Error("updating summary status", "contest", c.ID, "err", uerr)
	}
	return notes, err
}

func (svc *Service) generate(ctx context.Context, c contest.Contest, generatedBy null.Int) ([]KeyNote, error) {
	questions, err := svc.contests.QueryQuestions(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	tutorNotes := splitNotes(c.Description)
	now := nowFunc().UTC()
	out := make([]KeyNote, 0, len(questions))
	for _, q := range questions {
		opts, err := svc.contests.QueryOptions(ctx, q.ID)
		if err != nil {
			svc.logger.Warn("querying options", "question", q.ID, "err", err)
		}
		text, provider := svc.summarize(ctx, q, opts, tutorNotes)
		note, err := svc.store(ctx, KeyNote{
			ContestID:   c.ID,
			QuestionID:  q.ID,
			Text:        text,
			Provider:    provider,
			GeneratedBy: generatedBy,
			CreatedAt:   now,
		})
		if err != nil {
			return out, errors.Wrap(err, "storing key note")
		}
		out = append(out, note)
	}
	return out, nil
}

// store overwrites the question's existing note when one exists so a
// rerun never accumulates duplicates.
func (svc *Service) store(ctx context.Context, n KeyNote) (KeyNote, error) {
	existing, err := svc.repo.GetKeyNoteByQuestion(ctx, n.ContestID, n.QuestionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return svc.repo.CreateKeyNote(ctx, n)
		}
		return KeyNote{}, err
	}
	existing.Text = n.Text
	existing.Provider = n.Provider
	existing.GeneratedBy = n.GeneratedBy
	existing.CreatedAt = n.CreatedAt
	return svc.repo.UpdateKeyNote(ctx, existing)
}

func (svc *Service) summarize(ctx context.Context, q contest.Question, opts []contest.Option, notes []string) (string, string) {
	for _, gen := range svc.generators {
		text, err := gen.Summarize(ctx, q.Text, notes)
		if err != nil {
			svc.logger.Warn("summary provider failed", "provider", gen.Name(), "question", q.ID, "err", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, gen.Name()
		}
	}
	if text, ok := heuristicSummary(q.Text, opts, notes); ok {
		return text, providerHeuristic
	}
	return fallbackSummary(q.Text), providerFallback
}

// heuristicSummary answers from the question's correct options when it
// has any, otherwise from the tutor-note sentence sharing the most
// words with the question.
func heuristicSummary(questionText string, opts []contest.Option, notes []string) (string, bool) {
	var correct []string
	for _, o := range opts {
		if o.IsCorrect {
			correct = append(correct, o.Text)
		}
	}
	if len(correct) > 0 {
		return fmt.Sprintf("Answer: %s. Explanation: Based on provided correct options.", strings.Join(correct, " / ")), true
	}

	if s := bestMatchingSentence(questionText, strings.Join(notes, "\n")); s != "" {
		return fmt.Sprintf("Answer: %s. Explanation: Extracted from tutor notes.", s), true
	}
	return "", false
}

func fallbackSummary(questionText string) string {
	if len(questionText) > fallbackQuestionMax {
		questionText = questionText[:fallbackQuestionMax] + "..."
	}
	return fmt.Sprintf("Answer: %s. Explanation: No AI response or notes available, fallback summary.", questionText)
}

var (
	sentenceRegexp = regexp.MustCompile(`[^.!?]+[.!?]?`)
	wordRegexp     = regexp.MustCompile(`\w+`)
)

func bestMatchingSentence(questionText, notes string) string {
	qWords := wordSet(questionText)
	var best string
	bestOverlap := -1
	for _, s := range sentenceRegexp.FindAllString(notes, -1) {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		overlap := 0
		for w := range wordSet(s) {
			if qWords[w] {
				overlap++
			}
		}
		if overlap > bestOverlap {
			best, bestOverlap = s, overlap
		}
	}
	return best
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordRegexp.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
	}
	return set
}

// splitNotes breaks the tutor's contest description into note lines.
func splitNotes(description string) []string {
	var notes []string
	for _, line := range strings.Split(description, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			notes = append(notes, line)
		}
	}
	return notes
}
