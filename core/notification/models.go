package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("email log not found")

// ReportSubject renders the queue key subject for a contest's
// performance summary emails.
func ReportSubject(contestName string) string {
	return fmt.Sprintf("📊 %s – Performance Summary", contestName)
}

type (
	// EmailLog is one queued outbound email. A row stays reusable while
	// Success is false; the (StudentID, ContestID, Subject) triple keys
	// deduplication on enqueue. NextAttemptAt going null while Success
	// is still false marks the row permanently failed.
	EmailLog struct {
		ID             int         `json:"id"`
		StudentID      null.Int    `json:"student_id"`
		ContestID      null.Int    `json:"contest_id"`
		RecipientEmail string      `json:"recipient_email"`
		RecipientName  string      `json:"recipient_name"`
		Subject        string      `json:"subject"`
		BodyText       string      `json:"body_text"`
		BodyHTML       string      `json:"body_html"`
		Success        bool        `json:"success"`
		Attempts       int         `json:"attempts"`
		MaxAttempts    int         `json:"max_attempts"`
		NextAttemptAt  null.Time   `json:"next_attempt_at"`
		LastAttemptAt  null.Time   `json:"last_attempt_at"`
		ErrorText      null.String `json:"error_text"`
		CreatedAt      time.Time   `json:"created_at"` // UTC
		UpdatedAt      time.Time   `json:"updated_at"` // UTC
	}

	Repository interface {
		CreateEmailLog(ctx context.Context, l EmailLog) (EmailLog, error)
		GetEmailLog(ctx context.Context, id int) (EmailLog, error)
		GetUnsentEmailLog(ctx context.Context, studentID, contestID int, subject string) (EmailLog, error)
		LatestSuccessByEmail(ctx context.Context, email string) (EmailLog, error)
		LatestFutureUnsentByEmail(ctx context.Context, email string, now time.Time) (EmailLog, error)
		QueryDueEmailLogs(ctx context.Context, now time.Time, limit int) ([]EmailLog, error)
		UpdateEmailLog(ctx context.Context, l EmailLog) (EmailLog, error)

		// ApplyAttempt persists an attempt outcome only if the stored row
		// still has Success false. It reports whether the write applied.
		ApplyAttempt(ctx context.Context, l EmailLog) (bool, error)

		// SuppressUnsentByEmail pushes NextAttemptAt to until for every
		// unsent row addressed to email, stamping marker as the error
		// text and returning the count touched.
		SuppressUnsentByEmail(ctx context.Context, email string, until time.Time, marker string) (int, error)

		QueryFailedByContest(ctx context.Context, contestID int) ([]EmailLog, error)
	}
)

// Failed reports whether the log gave up before succeeding.
func (l EmailLog) Failed() bool {
	return !l.Success && l.Attempts > 0 && !l.NextAttemptAt.Valid
}

// Pending reports whether the log is still waiting for an attempt.
func (l EmailLog) Pending() bool {
	return !l.Success && l.NextAttemptAt.Valid
}
