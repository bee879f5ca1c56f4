package contest

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
)

// mockable
var nowFunc func() time.Time = time.Now

// SideEffect is an intent returned by ApplyStatus. The caller decides
// how and when to execute it; ApplyStatus itself never performs IO.
type SideEffect int

const (
	// EffectEnqueueNotifications fires exactly once, on the edge of a
	// contest entering the finished state.
	EffectEnqueueNotifications SideEffect = iota + 1
)

// ApplyStatus computes the status a contest should hold at the given
// instant together with the side effects owed by the transition. It is
// idempotent: re-applying to an already finished contest yields no
// effects, so a crash between persisting the status and executing the
// effects cannot replay them on the next sweep.
func ApplyStatus(c Contest, now time.Time) (string, []SideEffect) {
	if c.Status == StatusFinished {
		return StatusFinished, nil
	}

	next := c.Status
	switch {
	case c.EndTime.Valid && now.After(c.EndTime.Time):
		next = StatusFinished
	case c.StartTime.Valid && !now.Before(c.StartTime.Time):
		next = StatusOngoing
	default:
		next = StatusScheduled
	}

	var effects []SideEffect
	if next == StatusFinished {
		effects = append(effects, EffectEnqueueNotifications)
	}
	return next, effects
}

type (
	// Notifier enqueues performance-summary emails for a finished
	// contest. Implementations must be idempotent per (student, contest).
	Notifier interface {
		EnqueueContestResults(ctx context.Context, c Contest) error
	}

	// Broadcaster pushes a real-time payload to a student's open
	// sockets. Delivery is best effort.
	Broadcaster interface {
		Broadcast(userID int, payload interface{})
	}

	// Summarizer produces AI key notes for a completed participation.
	Summarizer interface {
		GenerateForContest(ctx context.Context, contestID, generatedBy int) error
	}

	Service struct {
		repo        Repository
		notifier    Notifier
		broadcaster Broadcaster
		summarizer  Summarizer
		logger      core.Logger
	}
)

func NewService(repo Repository, notifier Notifier, broadcaster Broadcaster, summarizer Summarizer, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		notifier:    notifier,
		broadcaster: broadcaster,
		summarizer:  summarizer,
		logger:      logger,
	}
}

func (svc *Service) Create(ctx context.Context, c Contest) (Contest, error) {
	now := nowFunc().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status, _ = ApplyStatus(Contest{StartTime: c.StartTime, EndTime: c.EndTime, Status: StatusScheduled}, now)
	}
	if c.AISummaryStatus == "" {
		c.AISummaryStatus = SummaryPending
	}
	return svc.repo.CreateContest(ctx, c)
}

func (svc *Service) Get(ctx context.Context, id int) (Contest, error) {
	return svc.repo.GetContest(ctx, id)
}

func (svc *Service) GetParticipant(ctx context.Context, id int) (Participant, error) {
	return svc.repo.GetParticipant(ctx, id)
}

func (svc *Service) QueryFinished(ctx context.Context) ([]Contest, error) {
	return svc.repo.QueryFinishedContests(ctx)
}

// Join registers a student as a participant of an ongoing contest.
func (svc *Service) Join(ctx context.Context, contestID, userID int) (Participant, error) {
	c, err := svc.repo.GetContest(ctx, contestID)
	if err != nil {
		return Participant{}, err
	}
	if status, _ := ApplyStatus(c, nowFunc().UTC()); status != StatusOngoing {
		return Participant{}, ErrNotOngoing
	}
	if _, err = svc.repo.FindParticipant(ctx, contestID, userID); err == nil {
		return Participant{}, ErrAlreadyJoined
	} else if !errors.Is(err, ErrNotFound) {
		return Participant{}, err
	}
	return svc.repo.CreateParticipant(ctx, Participant{
		ContestID: contestID,
		UserID:    userID,
		CreatedAt: nowFunc().UTC(),
	})
}

// SubmitAnswer records a single answer for a participant. Each question
// accepts one submission; a correct answer is worth an equal share of
// the contest's maximum points.
func (svc *Service) SubmitAnswer(ctx context.Context, participantID, questionID, optionID int) (Submission, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Submission{}, err
	}
	if p.CompletedAt.Valid {
		return Submission{}, ErrNotOngoing
	}
	c, err := svc.repo.GetContest(ctx, p.ContestID)
	if err != nil {
		return Submission{}, err
	}
	now := nowFunc().UTC()
	if status, _ := ApplyStatus(c, now); status != StatusOngoing {
		return Submission{}, ErrNotOngoing
	}
	if c.TimeLimit > 0 && now.Sub(p.CreatedAt) > c.TimeLimit {
		return Submission{}, ErrTimeLimitExceeded
	}

	q, err := svc.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return Submission{}, err
	}
	if q.ContestID != c.ID {
		return Submission{}, ErrNotFound
	}
	if exists, err := svc.repo.SubmissionExists(ctx, participantID, questionID); err != nil {
		return Submission{}, err
	} else if exists {
		return Submission{}, ErrAlreadySubmitted
	}
	opt, err := svc.repo.GetOption(ctx, optionID)
	if err != nil {
		return Submission{}, err
	}
	if opt.QuestionID != questionID {
		return Submission{}, ErrNotFound
	}

	sub, err := svc.repo.CreateSubmission(ctx, Submission{
		ParticipantID:    participantID,
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		IsCorrect:        opt.IsCorrect,
		CreatedAt:        now,
	})
	if err != nil {
		return Submission{}, err
	}

	if opt.IsCorrect && c.TotalQuestions > 0 {
		p.Score += c.MaxPoints / c.TotalQuestions
		if _, err = svc.repo.UpdateParticipant(ctx, p); err != nil {
			return Submission{}, errors.Wrap(err, "updating participant score")
		}
	}
	return sub, nil
}

// CompleteParticipation closes a participant's run, rebuilds the
// contest leaderboard and pushes the fresh standings to participants.
// Summary generation is kicked off in the background.
func (svc *Service) CompleteParticipation(ctx context.Context, participantID int) (Participant, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Participant{}, err
	}
	if p.CompletedAt.Valid {
		return p, nil
	}
	now := nowFunc().UTC()
	p.CompletedAt = null.TimeFrom(now)
	p.TimeTaken = now.Sub(p.CreatedAt)
	if p, err = svc.repo.UpdateParticipant(ctx, p); err != nil {
		return Participant{}, errors.Wrap(err, "completing participation")
	}

	entries, err := svc.RebuildLeaderboard(ctx, p.ContestID)
	if err != nil {
		return Participant{}, err
	}
	if svc.broadcaster != nil {
		for _, e := range entries {
			svc.broadcaster.Broadcast(e.UserID, map[string]interface{}{
				"type":       "leaderboard_update",
				"contest_id": p.ContestID,
				"entries":    entries,
			})
		}
	}

	if svc.summarizer != nil {
		contestID, userID := p.ContestID, p.UserID
		go func() {
			if err := svc.summarizer.GenerateForContest(context.Background(), contestID, userID); err != nil {
				svc.logger.Error("generating summary", "contest", contestID, "err", err)
			}
		}()
	}
	return p, nil
}

// RebuildLeaderboard recomputes tie-aware ranks from current scores and
// upserts one entry per participant.
func (svc *Service) RebuildLeaderboard(ctx context.Context, contestID int) ([]LeaderboardEntry, error) {
	participants, err := svc.repo.QueryParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	scores := make(map[int]int, len(participants))
	for _, p := range participants {
		scores[p.UserID] = p.Score
	}
	ranks := RankMap(scores)

	entries := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		e, err := svc.repo.UpsertLeaderboardEntry(ctx, LeaderboardEntry{
			ContestID: contestID,
			UserID:    p.UserID,
			Score:     p.Score,
			Rank:      ranks[p.UserID],
		})
		if err != nil {
			return nil, errors.Wrap(err, "upserting leaderboard entry")
		}
		entries = append(entries, e)
	}
	sortLeaderboard(entries)
	return entries, nil
}

func (svc *Service) Leaderboard(ctx context.Context, contestID int) ([]LeaderboardEntry, error) {
	entries, err := svc.repo.QueryLeaderboard(ctx, contestID)
	if err != nil {
		return nil, err
	}
	sortLeaderboard(entries)
	return entries, nil
}

func (svc *Service) GlobalLeaderboard(ctx context.Context, limit int) ([]GlobalRank, error) {
	return svc.repo.GlobalLeaderboard(ctx, limit)
}

func (svc *Service) Enroll(ctx context.Context, contestID, userID int) error {
	return svc.repo.EnrollUser(ctx, contestID, userID)
}

// Roster returns the deduplicated union of participant user IDs and
// enrolled user IDs for a contest.
func (svc *Service) Roster(ctx context.Context, contestID int) ([]int, error) {
	participants, err := svc.repo.QueryParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	enrolled, err := svc.repo.QueryEnrolledUserIDs(ctx, contestID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(participants)+len(enrolled))
	roster := make([]int, 0, len(participants)+len(enrolled))
	for _, p := range participants {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			roster = append(roster, p.UserID)
		}
	}
	for _, id := range enrolled {
		if !seen[id] {
			seen[id] = true
			roster = append(roster, id)
		}
	}
	return roster, nil
}

// SyncStatuses sweeps every unfinished contest, persists any status
// change and executes the owed side effects. It returns the number of
// contests that transitioned.
func (svc *Service) SyncStatuses(ctx context.Context) (int, error) {
	contests, err := svc.repo.QueryUnfinishedContests(ctx)
	if err != nil {
		return 0, err
	}
	now := nowFunc().UTC()

	var changed int
	for _, c := range contests {
		next, effects := ApplyStatus(c, now)
		if next == c.Status {
			continue
		}
		c.Status = next
		c.UpdatedAt = now
		if c, err = svc.repo.UpdateContest(ctx, c); err != nil {
			return changed, errors.Wrapf(err, "updating contest %d status", c.ID)
		}
		changed++
		svc.runEffects(ctx, c, effects)
	}
	return changed, nil
}

// FinishEndedContests marks contests whose end time has passed as
// finished, up to limit (0 means no limit). With dryRun set it only
// reports what would transition.
func (svc *Service) FinishEndedContests(ctx context.Context, limit int, dryRun bool) ([]Contest, error) {
	now := nowFunc().UTC()
	ended, err := svc.repo.QueryEndedUnfinished(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return ended, nil
	}
	for i, c := range ended {
		next, effects := ApplyStatus(c, now)
		if next != StatusFinished {
			continue
		}
		c.Status = StatusFinished
		c.UpdatedAt = now
		if c, err = svc.repo.UpdateContest(ctx, c); err != nil {
			return ended[:i], errors.Wrapf(err, "finishing contest %d", c.ID)
		}
		ended[i] = c
		svc.runEffects(ctx, c, effects)
	}
	return ended, nil
}

func (svc *Service) runEffects(ctx context.Context, c Contest, effects []SideEffect) {
	for _, effect := range effects {
		switch effect {
		case EffectEnqueueNotifications:
			if svc.notifier == nil {
				continue
			}
			if err := svc.notifier.EnqueueContestResults(ctx, c); err != nil {
				svc.logger.Error("enqueueing contest result notifications", "contest", c.ID, "err", err)
			}
		}
	}
}

func sortLeaderboard(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].UserID < entries[j].UserID
	})
}
