package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/contest"
)

type contestRow struct {
	ID               int       `db:"id"`
	Slug             string    `db:"slug"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	TutorID          null.Int  `db:"tutor_id"`
	CategoryID       null.Int  `db:"category_id"`
	TotalQuestions   int       `db:"total_questions"`
	MaxPoints        int       `db:"max_points"`
	StartTime        null.Time `db:"start_time"`
	EndTime          null.Time `db:"end_time"`
	TimeLimitNS      int64     `db:"time_limit_ns"`
	Status           string    `db:"status"`
	AutoEmailResults bool      `db:"auto_email_results"`
	AISummaryStatus  string    `db:"ai_summary_status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r contestRow) toContest() contest.Contest {
	return contest.Contest{
		ID:               r.ID,
		Slug:             r.Slug,
		Name:             r.Name,
		Description:      r.Description,
		TutorID:          r.TutorID,
		CategoryID:       r.CategoryID,
		TotalQuestions:   r.TotalQuestions,
		MaxPoints:        r.MaxPoints,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		TimeLimit:        time.Duration(r.TimeLimitNS),
		Status:           r.Status,
		AutoEmailResults: r.AutoEmailResults,
		AISummaryStatus:  r.AISummaryStatus,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type participantRow struct {
	ID          int       `db:"id"`
	ContestID   int       `db:"contest_id"`
	UserID      int       `db:"user_id"`
	Score       int       `db:"score"`
	TimeTakenNS int64     `db:"time_taken_ns"`
	CompletedAt null.Time `db:"completed_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r participantRow) toParticipant() contest.Participant {
	return contest.Participant{
		ID:          r.ID,
		ContestID:   r.ContestID,
		UserID:      r.UserID,
		Score:       r.Score,
		TimeTaken:   time.Duration(r.TimeTakenNS),
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
	}
}

type contestRepository struct {
	db *sqlx.DB
}

var _ contest.Repository = (*contestRepository)(nil)

func NewContestRepository(db *sqlx.DB) *contestRepository {
	return &contestRepository{db: db}
}

func (repo *contestRepository) CreateContest(ctx context.Context, c contest.Contest) (contest.Contest, error) {
	const q = `
	INSERT INTO contest (slug, name, description, tutor_id, category_id, total_questions, max_points,
	                     start_time, end_time, time_limit_ns, status, auto_email_results, ai_summary_status,
	                     created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		c.Slug, c.Name, c.Description, c.TutorID, c.CategoryID, c.TotalQuestions, c.MaxPoints,
		c.StartTime, c.EndTime, int64(c.TimeLimit), c.Status, c.AutoEmailResults, c.AISummaryStatus,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return contest.Contest{}, errors.Wrap(err, "inserting contest")
	}
	return c, nil
}

func (repo *contestRepository) GetContest(ctx context.Context, id int) (contest.Contest, error) {
	var row contestRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM contest WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return contest.Contest{}, contest.ErrNotFound
	case err != nil:
		return contest.Contest{}, errors.Wrap(err, "querying contest")
	}
	return row.toContest(), nil
}

func (repo *contestRepository) QueryUnfinishedContests(ctx context.Context) ([]contest.Contest, error) {
	var rows []contestRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM contest WHERE status <> $1 ORDER BY id`, contest.StatusFinished)
	if err != nil {
		return nil, errors.Wrap(err, "querying unfinished contests")
	}
	return toContests(rows), nil
}

func (repo *contestRepository) QueryFinishedContests(ctx context.Context) ([]contest.Contest, error) {
	var rows []contestRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM contest WHERE status = $1 ORDER BY id`, contest.StatusFinished)
	if err != nil {
		return nil, errors.Wrap(err, "querying finished contests")
	}
	return toContests(rows), nil
}

func (repo *contestRepository) QueryEndedUnfinished(ctx context.Context, now time.Time, limit int) ([]contest.Contest, error) {
	q := `SELECT * FROM contest WHERE status <> $1 AND end_time IS NOT NULL AND end_time < $2 ORDER BY end_time`
	args := []interface{}{contest.StatusFinished, now}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	var rows []contestRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying ended contests")
	}
	return toContests(rows), nil
}

func (repo *contestRepository) UpdateContest(ctx context.Context, c contest.Contest) (contest.Contest, error) {
	const q = `
	UPDATE contest
	SET slug = $2, name = $3, description = $4, tutor_id = $5, category_id = $6, total_questions = $7,
	    max_points = $8, start_time = $9, end_time = $10, time_limit_ns = $11, status = $12,
	    auto_email_results = $13, ai_summary_status = $14, updated_at = $15
	WHERE id = $1`

	if _, err := repo.db.ExecContext(ctx, q,
		c.ID, c.Slug, c.Name, c.Description, c.TutorID, c.CategoryID, c.TotalQuestions,
		c.MaxPoints, c.StartTime, c.EndTime, int64(c.TimeLimit), c.Status,
		c.AutoEmailResults, c.AISummaryStatus, c.UpdatedAt,
	); err != nil {
		return contest.Contest{}, errors.Wrap(err, "updating contest")
	}
	return c, nil
}

func (repo *contestRepository) CreateParticipant(ctx context.Context, p contest.Participant) (contest.Participant, error) {
	const q = `
	INSERT INTO participant (contest_id, user_id, score, time_taken_ns, completed_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		p.ContestID, p.UserID, p.Score, int64(p.TimeTaken), p.CompletedAt, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return contest.Participant{}, errors.Wrap(err, "inserting participant")
	}
	return p, nil
}

func (repo *contestRepository) GetParticipant(ctx context.Context, id int) (contest.Participant, error) {
	var row participantRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM participant WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return contest.Participant{}, contest.ErrNotFound
	case err != nil:
		return contest.Participant{}, errors.Wrap(err, "querying participant")
	}
	return row.toParticipant(), nil
}

func (repo *contestRepository) FindParticipant(ctx context.Context, contestID, userID int) (contest.Participant, error) {
	var row participantRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM participant WHERE contest_id = $1 AND user_id = $2`, contestID, userID)
	switch {
	case err == sql.ErrNoRows:
		return contest.Participant{}, contest.ErrNotFound
	case err != nil:
		return contest.Participant{}, errors.Wrap(err, "querying participant")
	}
	return row.toParticipant(), nil
}

func (repo *contestRepository) QueryParticipants(ctx context.Context, contestID int) ([]contest.Participant, error) {
	var rows []participantRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM participant WHERE contest_id = $1 ORDER BY id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	participants := make([]contest.Participant, len(rows))
	for i, r := range rows {
		participants[i] = r.toParticipant()
	}
	return participants, nil
}

func (repo *contestRepository) UpdateParticipant(ctx context.Context, p contest.Participant) (contest.Participant, error) {
	const q = `
	UPDATE participant
	SET score = $2, time_taken_ns = $3, completed_at = $4
	WHERE id = $1`

	if _, err := repo.db.ExecContext(ctx, q, p.ID, p.Score, int64(p.TimeTaken), p.CompletedAt); err != nil {
		return contest.Participant{}, errors.Wrap(err, "updating participant")
	}
	return p, nil
}

func (repo *contestRepository) GetQuestion(ctx context.Context, id int) (contest.Question, error) {
	var q contest.Question
	err := repo.db.GetContext(ctx, &q, `SELECT id, contest_id AS contestid, text FROM question WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return contest.Question{}, contest.ErrNotFound
	case err != nil:
		return contest.Question{}, errors.Wrap(err, "querying question")
	}
	return q, nil
}

func (repo *contestRepository) QueryQuestions(ctx context.Context, contestID int) ([]contest.Question, error) {
	var qs []contest.Question
	err := repo.db.SelectContext(ctx, &qs, `SELECT id, contest_id AS contestid, text FROM question WHERE contest_id = $1 ORDER BY id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return qs, nil
}

func (repo *contestRepository) GetOption(ctx context.Context, id int) (contest.Option, error) {
	var opt contest.Option
	err := repo.db.GetContext(ctx, &opt, `SELECT id, question_id AS questionid, text, is_correct AS iscorrect FROM question_option WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return contest.Option{}, contest.ErrNotFound
	case err != nil:
		return contest.Option{}, errors.Wrap(err, "querying option")
	}
	return opt, nil
}

func (repo *contestRepository) QueryOptions(ctx context.Context, questionID int) ([]contest.Option, error) {
	var opts []contest.Option
	err := repo.db.SelectContext(ctx, &opts, `SELECT id, question_id AS questionid, text, is_correct AS iscorrect FROM question_option WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying options")
	}
	return opts, nil
}

func (repo *contestRepository) CreateSubmission(ctx context.Context, s contest.Submission) (contest.Submission, error) {
	const q = `
	INSERT INTO submission (participant_id, question_id, selected_option_id, is_correct, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		s.ParticipantID, s.QuestionID, s.SelectedOptionID, s.IsCorrect, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return contest.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo *contestRepository) SubmissionExists(ctx context.Context, participantID, questionID int) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM submission WHERE participant_id = $1 AND question_id = $2)`,
		participantID, questionID)
	if err != nil {
		return false, errors.Wrap(err, "checking submission")
	}
	return exists, nil
}

func (repo *contestRepository) HasSubmissions(ctx context.Context, participantID int) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM submission WHERE participant_id = $1)`, participantID)
	if err != nil {
		return false, errors.Wrap(err, "checking submissions")
	}
	return exists, nil
}

func (repo *contestRepository) UpsertLeaderboardEntry(ctx context.Context, e contest.LeaderboardEntry) (contest.LeaderboardEntry, error) {
	const q = `
	INSERT INTO leaderboard_entry (contest_id, user_id, score, rank)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (contest_id, user_id) DO UPDATE SET score = EXCLUDED.score, rank = EXCLUDED.rank
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q, e.ContestID, e.UserID, e.Score, e.Rank).Scan(&e.ID)
	if err != nil {
		return contest.LeaderboardEntry{}, errors.Wrap(err, "upserting leaderboard entry")
	}
	return e, nil
}

func (repo *contestRepository) QueryLeaderboard(ctx context.Context, contestID int) ([]contest.LeaderboardEntry, error) {
	var entries []contest.LeaderboardEntry
	err := repo.db.SelectContext(ctx, &entries,
		`SELECT id, contest_id AS contestid, user_id AS userid, score, rank
		 FROM leaderboard_entry WHERE contest_id = $1 ORDER BY rank, user_id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	return entries, nil
}

func (repo *contestRepository) GlobalLeaderboard(ctx context.Context, limit int) ([]contest.GlobalRank, error) {
	q := `
	SELECT u.id AS userid, u.username, COALESCE(SUM(p.score), 0) AS totalscore
	FROM "user" u
	JOIN participant p ON p.user_id = u.id
	GROUP BY u.id, u.username
	ORDER BY totalscore DESC, u.id`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	var ranks []contest.GlobalRank
	if err := repo.db.SelectContext(ctx, &ranks, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying global leaderboard")
	}
	return ranks, nil
}

func (repo *contestRepository) EnrollUser(ctx context.Context, contestID, userID int) error {
	const q = `
	INSERT INTO enrollment (contest_id, user_id)
	VALUES ($1, $2)
	ON CONFLICT (contest_id, user_id) DO NOTHING`

	if _, err := repo.db.ExecContext(ctx, q, contestID, userID); err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	return nil
}

func (repo *contestRepository) QueryEnrolledUserIDs(ctx context.Context, contestID int) ([]int, error) {
	var ids []int
	err := repo.db.SelectContext(ctx, &ids, `SELECT user_id FROM enrollment WHERE contest_id = $1 ORDER BY user_id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollment")
	}
	return ids, nil
}

func toContests(rows []contestRow) []contest.Contest {
	contests := make([]contest.Contest, len(rows))
	for i, r := range rows {
		contests[i] = r.toContest()
	}
	return contests
}
