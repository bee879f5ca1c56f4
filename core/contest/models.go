package contest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Contest statuses. Transitions are monotonic in time:
// scheduled -> ongoing -> finished.
const (
	StatusScheduled = "scheduled"
	StatusOngoing   = "ongoing"
	StatusFinished  = "finished"
)

// AI summary generation states.
const (
	SummaryPending    = "pending"
	SummaryGenerating = "generating"
	SummaryReady      = "ready"
	SummaryFailed     = "failed"
)

var (
	// errors
	ErrNotFound          = errors.New("contest not found")
	ErrNotOngoing        = errors.New("contest is not active for participation")
	ErrAlreadyJoined     = errors.New("already participating in this contest")
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	ErrAlreadySubmitted  = errors.New("question already submitted")
)

type (
	Contest struct {
		ID               int           `json:"id"`
		Slug             string        `json:"slug"`
		Name             string        `json:"name"`
		Description      string        `json:"description"`
		TutorID          null.Int      `json:"tutor_id"`
		CategoryID       null.Int      `json:"category_id"`
		TotalQuestions   int           `json:"total_questions"`
		MaxPoints        int           `json:"max_points"`
		StartTime        null.Time     `json:"start_time"`
		EndTime          null.Time     `json:"end_time"`
		TimeLimit        time.Duration `json:"time_limit"` // 0 means no limit
		Status           string        `json:"status"`
		AutoEmailResults bool          `json:"auto_email_results"`
		AISummaryStatus  string        `json:"ai_summary_status"`
		CreatedAt        time.Time     `json:"created_at"` // UTC
		UpdatedAt        time.Time     `json:"updated_at"` // UTC
	}

	Question struct {
		ID        int    `json:"id"`
		ContestID int    `json:"contest_id"`
		Text      string `json:"text"`
	}

	Option struct {
		ID         int    `json:"id"`
		QuestionID int    `json:"question_id"`
		Text       string `json:"text"`
		IsCorrect  bool   `json:"is_correct"`
	}

	Participant struct {
		ID          int           `json:"id"`
		ContestID   int           `json:"contest_id"`
		UserID      int           `json:"user_id"`
		Score       int           `json:"score"`
		TimeTaken   time.Duration `json:"time_taken"` // 0 until completion
		CompletedAt null.Time     `json:"completed_at"`
		CreatedAt   time.Time     `json:"created_at"` // UTC
	}

	Submission struct {
		ID               int       `json:"id"`
		ParticipantID    int       `json:"participant_id"`
		QuestionID       int       `json:"question_id"`
		SelectedOptionID int       `json:"selected_option_id"`
		IsCorrect        bool      `json:"is_correct"`
		CreatedAt        time.Time `json:"created_at"` // UTC
	}

	LeaderboardEntry struct {
		ID        int `json:"id"`
		ContestID int `json:"contest_id"`
		UserID    int `json:"user_id"`
		Score     int `json:"score"`
		Rank      int `json:"rank"`
	}

	GlobalRank struct {
		UserID     int    `json:"user_id"`
		Username   string `json:"username"`
		TotalScore int    `json:"total_score"`
	}

	Repository interface {
		CreateContest(ctx context.Context, c Contest) (Contest, error)
		GetContest(ctx context.Context, id int) (Contest, error)
		QueryUnfinishedContests(ctx context.Context) ([]Contest, error)
		QueryFinishedContests(ctx context.Context) ([]Contest, error)
		QueryEndedUnfinished(ctx context.Context, now time.Time, limit int) ([]Contest, error)
		UpdateContest(ctx context.Context, c Contest) (Contest, error)

		CreateParticipant(ctx context.Context, p Participant) (Participant, error)
		GetParticipant(ctx context.Context, id int) (Participant, error)
		FindParticipant(ctx context.Context, contestID, userID int) (Participant, error)
		QueryParticipants(ctx context.Context, contestID int) ([]Participant, error)
		UpdateParticipant(ctx context.Context, p Participant) (Participant, error)

		GetQuestion(ctx context.Context, id int) (Question, error)
		QueryQuestions(ctx context.Context, contestID int) ([]Question, error)
		GetOption(ctx context.Context, id int) (Option, error)
		QueryOptions(ctx context.Context, questionID int) ([]Option, error)

		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		SubmissionExists(ctx context.Context, participantID, questionID int) (bool, error)
		HasSubmissions(ctx context.Context, participantID int) (bool, error)

		UpsertLeaderboardEntry(ctx context.Context, e LeaderboardEntry) (LeaderboardEntry, error)
		QueryLeaderboard(ctx context.Context, contestID int) ([]LeaderboardEntry, error)
		GlobalLeaderboard(ctx context.Context, limit int) ([]GlobalRank, error)

		EnrollUser(ctx context.Context, contestID, userID int) error
		QueryEnrolledUserIDs(ctx context.Context, contestID int) ([]int, error)
	}
)
