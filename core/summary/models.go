package summary

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("key note not found")

type (
	// KeyNote is the AI-generated takeaway for one question of a
	// contest. At most one note exists per (contest, question); a
	// regeneration overwrites it in place.
	KeyNote struct {
		ID          int       `json:"id"`
		ContestID   int       `json:"contest_id"`
		QuestionID  int       `json:"question_id"`
		Text        string    `json:"text"`
		Provider    string    `json:"provider"`
		GeneratedBy null.Int  `json:"generated_by"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	Repository interface {
		CreateKeyNote(ctx context.Context, n KeyNote) (KeyNote, error)
		GetKeyNoteByQuestion(ctx context.Context, contestID, questionID int) (KeyNote, error)
		UpdateKeyNote(ctx context.Context, n KeyNote) (KeyNote, error)
		QueryKeyNotesByContest(ctx context.Context, contestID int) ([]KeyNote, error)
		DeleteKeyNotesByContest(ctx context.Context, contestID int) error
	}

	// TextGenerator summarizes one question against the tutor's notes.
	// Implementations are tried in order until one returns text.
	TextGenerator interface {
		Name() string
		Summarize(ctx context.Context, questionText string, notes []string) (string, error)
	}
)
