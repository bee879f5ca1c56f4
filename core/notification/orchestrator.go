package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/user"
)

// mockables
var (
	nowFunc   func() time.Time      = time.Now
	sleepFunc func(d time.Duration) = time.Sleep
)

// RosterFunc resolves the user IDs owed a report for a contest, the
// union of participants and enrolled students.
type RosterFunc func(ctx context.Context, contestID int) ([]int, error)

// RosterFromRepo builds a RosterFunc straight from a contest repository.
func RosterFromRepo(repo contest.Repository) RosterFunc {
	return func(ctx context.Context, contestID int) ([]int, error) {
		participants, err := repo.QueryParticipants(ctx, contestID)
		if err != nil {
			return nil, err
		}
		enrolled, err := repo.QueryEnrolledUserIDs(ctx, contestID)
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
}

// Stats summarizes one ProcessQueue run.
type Stats struct {
	Processed  int // due rows picked up
	Sent       int // delivered and marked successful
	Retried    int // failed with another attempt scheduled
	Failed     int // failed permanently (attempt budget exhausted)
	Skipped    int // dropped before sending (stale, raced or suppressed)
	Suppressed int // rows pushed back by an address-wide rate block
}

// Orchestrator drives the email queue: it enqueues contest reports,
// works due rows with throttling and backoff, and requeues failures.
type Orchestrator struct {
	repo       Repository
	contests   contest.Repository
	users      user.Repository
	roster     RosterFunc
	throttle   *Throttle
	dispatcher *Dispatcher
	conf       *core.Config
	logger     core.Logger
}

func NewOrchestrator(
	repo Repository,
	contests contest.Repository,
	users user.Repository,
	roster RosterFunc,
	throttle *Throttle,
	dispatcher *Dispatcher,
	conf *core.Config,
	logger core.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		contests:   contests,
		users:      users,
		roster:     roster,
		throttle:   throttle,
		dispatcher: dispatcher,
		conf:       conf,
		logger:     logger,
	}
}

// EnqueueContestResults queues one performance report per rostered
// student of a finished contest. It is idempotent: a student already
// holding an unsent row for this contest and subject keeps that row,
// with its content refreshed. Contests with result emails disabled
// queue nothing.
func (o *Orchestrator) EnqueueContestResults(ctx context.Context, c contest.Contest) error {
	if !c.AutoEmailResults {
		return nil
	}

	userIDs, err := o.roster(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "resolving contest roster")
	}

	participants, err := o.contests.QueryParticipants(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "querying participants")
	}
	byUser := make(map[int]contest.Participant, len(participants))
	scores := make(map[int]int, len(participants))
	for _, p := range participants {
		byUser[p.UserID] = p
		scores[p.UserID] = p.Score
	}
	ranks := contest.RankMap(scores)

	var tutor user.Tutor
	if c.TutorID.Valid {
		if tutor, err = o.users.GetTutor(ctx, c.TutorID.Int); err != nil && !errors.Is(err, user.ErrNotFound) {
			return errors.Wrap(err, "looking up tutor")
		}
	}

	stats := ComputeScoreStats(scores)
	subject := ReportSubject(c.Name)
	now := nowFunc().UTC()

	// One member's failure never blocks the rest of the roster.
	for _, uid := range userIDs {
		if err := o.enqueueMember(ctx, c, uid, byUser, ranks, stats, tutor, subject, now); err != nil {
			o.logger.Error("enqueueing contest report", "contest", c.ID, "student", uid, "err", err)
		}
	}
	return nil
}

func (o *Orchestrator) enqueueMember(
	ctx context.Context,
	c contest.Contest,
	uid int,
	byUser map[int]contest.Participant,
	ranks map[int]int,
	stats ScoreStats,
	tutor user.Tutor,
	subject string,
	now time.Time,
) error {
	student, err := o.users.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "looking up student")
	}
	if !student.IsActive || student.Email == "" {
		return nil
	}

	p, participated := byUser[uid]
	hasActivity := false
	if participated {
		if hasActivity, err = o.contests.HasSubmissions(ctx, p.ID); err != nil {
			return errors.Wrap(err, "checking submissions")
		}
	}
	rc := BuildReportContext(
		student, tutor, c, p, participated, hasActivity,
		ranks[uid], len(ranks), stats, o.conf.FrontendBaseURL,
	)

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      subject,
		TemplateName: "contest_report",
		TemplateData: rc,
	}
	if err = msg.Render(); err != nil {
		return errors.Wrap(err, "rendering contest report")
	}
	return o.enqueue(ctx, student, c.ID, subject, msg, now)
}

func (o *Orchestrator) enqueue(ctx context.Context, student user.User, contestID int, subject string, msg *core.EmailMessage, now time.Time) error {
	target := now.Add(o.conf.Email.InitialQueueDelay)

	existing, err := o.repo.GetUnsentEmailLog(ctx, student.ID, contestID, subject)
	switch {
	case err == nil:
		existing.BodyText = msg.TextContent
		existing.BodyHTML = msg.HTMLContent
		// Revive terminal rows and pull failure-imposed delays forward.
		// A row already scheduled sooner than the target keeps its slot.
		if !existing.NextAttemptAt.Valid || target.Before(existing.NextAttemptAt.Time) {
			existing.NextAttemptAt = null.TimeFrom(target)
		}
		existing.UpdatedAt = now
		_, err = o.repo.UpdateEmailLog(ctx, existing)
		return errors.Wrap(err, "refreshing queued email")
	case !errors.Is(err, ErrNotFound):
		return errors.Wrap(err, "checking queued email")
	}

	at, err := o.throttle.NextEligibleAt(ctx, student.Email, target)
	if err != nil {
		return err
	}
	_, err = o.repo.CreateEmailLog(ctx, EmailLog{
		StudentID:      null.IntFrom(student.ID),
		ContestID:      null.IntFrom(contestID),
		RecipientEmail: student.Email,
		RecipientName:  student.Name,
		Subject:        subject,
		BodyText:       msg.TextContent,
		BodyHTML:       msg.HTMLContent,
		MaxAttempts:    o.attemptBudget(),
		NextAttemptAt:  null.TimeFrom(at),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return errors.Wrap(err, "queueing email")
}

func (o *Orchestrator) attemptBudget() int {
	if o.conf.Email.MaxAttempts > 0 {
		return o.conf.Email.MaxAttempts
	}
	return 5
}

// ProcessQueue works every due email row once, up to limit (0 means no
// limit). Addresses hit by a provider rate block are skipped for the
// rest of the run and their queued rows pushed past the block window.
func (o *Orchestrator) ProcessQueue(ctx context.Context, limit int) (Stats, error) {
	var stats Stats
	o.throttle.Reset()
	suppressed := make(map[string]bool)

	due, err := o.repo.QueryDueEmailLogs(ctx, nowFunc().UTC(), limit)
	if err != nil {
		return stats, errors.Wrap(err, "querying due emails")
	}
	stats.Processed = len(due)

	for _, l := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if suppressed[l.RecipientEmail] {
			stats.Skipped++
			continue
		}
		if wait := o.throttle.GapWait(l.RecipientEmail, nowFunc().UTC()); wait > 0 {
			sleepFunc(wait)
		}

		// Another worker may have handled this row since the query.
		fresh, err := o.repo.GetEmailLog(ctx, l.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				stats.Skipped++
				continue
			}
			return stats, errors.Wrapf(err, "refetching email log %d", l.ID)
		}
		now := nowFunc().UTC()
		if fresh.Success || !fresh.NextAttemptAt.Valid || fresh.NextAttemptAt.Time.After(now) {
			stats.Skipped++
			continue
		}

		o.attempt(ctx, fresh, &stats, suppressed)

		if o.conf.Email.SendDelay > 0 {
			sleepFunc(o.conf.Email.SendDelay)
		}
	}
	return stats, nil
}

func (o *Orchestrator) attempt(ctx context.Context, l EmailLog, stats *Stats, suppressed map[string]bool) {
	// A malformed address can never deliver; fail it without burning
	// through the retry budget.
	if _, aerr := mail.ParseAddress(l.RecipientEmail); aerr != nil {
		now := nowFunc().UTC()
		l.Attempts++
		l.LastAttemptAt = null.TimeFrom(now)
		l.NextAttemptAt = null.Time{}
		l.ErrorText = null.StringFrom("invalid recipient address: " + aerr.Error())
		l.UpdatedAt = now
		if _, err := o.repo.ApplyAttempt(ctx, l); err != nil {
			o.logger.Error("recording invalid recipient", "log", l.ID, "err", err)
			return
		}
		stats.Failed++
		o.logger.Warn("dropping email with invalid recipient", "log", l.ID, "recipient", l.RecipientEmail)
		return
	}

	msg := &core.EmailMessage{
		To:          []mail.Address{{Name: l.RecipientName, Address: l.RecipientEmail}},
		Subject:     l.Subject,
		TextContent: l.BodyText,
		HTMLContent: l.BodyHTML,
	}

	sendErr := o.dispatcher.Send(ctx, msg)
	now := nowFunc().UTC()
	l.Attempts++
	l.LastAttemptAt = null.TimeFrom(now)

	if sendErr == nil {
		l.Success = true
		l.NextAttemptAt = null.Time{}
		l.ErrorText = null.String{}
		l.UpdatedAt = now
		applied, err := o.repo.ApplyAttempt(ctx, l)
		if err != nil {
			o.logger.Error("recording successful send", "log", l.ID, "err", err)
			return
		}
		if !applied {
			// Raced with a concurrent send; the message went out twice but
			// the row keeps a single success.
			o.logger.Warn("email log already marked sent", "log", l.ID)
			stats.Skipped++
			return
		}
		stats.Sent++
		return
	}

	code := smtpCode(sendErr)
	l.ErrorText = null.StringFrom(sendErr.Error())
	budget := l.MaxAttempts
	if budget <= 0 {
		budget = o.attemptBudget()
	}
	if l.Attempts >= budget {
		l.NextAttemptAt = null.Time{}
		stats.Failed++
	} else {
		l.NextAttemptAt = null.TimeFrom(now.Add(backoffDelay(l.Attempts, code)))
		stats.Retried++
	}
	l.UpdatedAt = now
	if _, err := o.repo.ApplyAttempt(ctx, l); err != nil {
		o.logger.Error("recording failed send", "log", l.ID, "err", err)
	}
	o.logger.Warn("email send failed", "log", l.ID, "recipient", l.RecipientEmail, "attempts", l.Attempts, "err", sendErr)

	if isReceivingRate(code, sendErr.Error()) {
		until := now.Add(o.conf.Email.ReceivingRateBlock)
		marker := fmt.Sprintf("ReceivingRate suppression until %s", until.Format(time.RFC3339))
		n, err := o.repo.SuppressUnsentByEmail(ctx, l.RecipientEmail, until, marker)
		if err != nil {
			o.logger.Error("suppressing rate-limited recipient", "recipient", l.RecipientEmail, "err", err)
			return
		}
		suppressed[l.RecipientEmail] = true
		stats.Suppressed += n
		o.logger.Warn("recipient rate-limited by provider, queue paused for address",
			"recipient", l.RecipientEmail, "until", until, "rows", n)
	}
}

// ResendFailed requeues every permanently failed email of a contest
// for a fresh attempt cycle. Returns the number requeued.
func (o *Orchestrator) ResendFailed(ctx context.Context, contestID int) (int, error) {
	failed, err := o.repo.QueryFailedByContest(ctx, contestID)
	if err != nil {
		return 0, errors.Wrap(err, "querying failed emails")
	}
	now := nowFunc().UTC()

	var requeued int
	for _, l := range failed {
		if !l.Failed() {
			continue
		}
		l.Attempts = 0
		l.ErrorText = null.String{}
		l.NextAttemptAt = null.TimeFrom(now)
		l.UpdatedAt = now
		if _, err = o.repo.UpdateEmailLog(ctx, l); err != nil {
			return requeued, errors.Wrapf(err, "requeueing email log %d", l.ID)
		}
		requeued++
	}
	return requeued, nil
}
