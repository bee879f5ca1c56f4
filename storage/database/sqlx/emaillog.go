package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/notification"
)

type emailLogRow struct {
	ID             int         `db:"id"`
	StudentID      null.Int    `db:"student_id"`
	ContestID      null.Int    `db:"contest_id"`
	RecipientEmail string      `db:"recipient_email"`
	RecipientName  string      `db:"recipient_name"`
	Subject        string      `db:"subject"`
	BodyText       string      `db:"body_text"`
	BodyHTML       string      `db:"body_html"`
	Success        bool        `db:"success"`
	Attempts       int         `db:"attempts"`
	MaxAttempts    int         `db:"max_attempts"`
	NextAttemptAt  null.Time   `db:"next_attempt_at"`
	LastAttemptAt  null.Time   `db:"last_attempt_at"`
	ErrorText      null.String `db:"error_text"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r emailLogRow) toEmailLog() notification.EmailLog {
	return notification.EmailLog{
		ID:             r.ID,
		StudentID:      r.StudentID,
		ContestID:      r.ContestID,
		RecipientEmail: r.RecipientEmail,
		RecipientName:  r.RecipientName,
		Subject:        r.Subject,
		BodyText:       r.BodyText,
		BodyHTML:       r.BodyHTML,
		Success:        r.Success,
		Attempts:       r.Attempts,
		MaxAttempts:    r.MaxAttempts,
		NextAttemptAt:  r.NextAttemptAt,
		LastAttemptAt:  r.LastAttemptAt,
		ErrorText:      r.ErrorText,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type emailLogRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*emailLogRepository)(nil)

func NewEmailLogRepository(db *sqlx.DB) *emailLogRepository {
	return &emailLogRepository{db: db}
}

func (repo *emailLogRepository) CreateEmailLog(ctx context.Context, l notification.EmailLog) (notification.EmailLog, error) {
	const q = `
	INSERT INTO email_log (student_id, contest_id, recipient_email, recipient_name, subject, body_text, body_html,
	                       success, attempts, max_attempts, next_attempt_at, last_attempt_at, error_text, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		l.StudentID, l.ContestID, l.RecipientEmail, l.RecipientName, l.Subject, l.BodyText, l.BodyHTML,
		l.Success, l.Attempts, l.MaxAttempts, l.NextAttemptAt, l.LastAttemptAt, l.ErrorText, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		return notification.EmailLog{}, errors.Wrap(err, "inserting email log")
	}
	return l, nil
}

func (repo *emailLogRepository) getEmailLog(ctx context.Context, q string, args ...interface{}) (notification.EmailLog, error) {
	var row emailLogRow
	err := repo.db.GetContext(ctx, &row, q, args...)
	switch {
	case err == sql.ErrNoRows:
		return notification.EmailLog{}, notification.ErrNotFound
	case err != nil:
		return notification.EmailLog{}, errors.Wrap(err, "querying email log")
	}
	return row.toEmailLog(), nil
}

func (repo *emailLogRepository) GetEmailLog(ctx context.Context, id int) (notification.EmailLog, error) {
	return repo.getEmailLog(ctx, `SELECT * FROM email_log WHERE id = $1`, id)
}

func (repo *emailLogRepository) GetUnsentEmailLog(ctx context.Context, studentID, contestID int, subject string) (notification.EmailLog, error) {
	return repo.getEmailLog(ctx,
		`SELECT * FROM email_log
		 WHERE student_id = $1 AND contest_id = $2 AND subject = $3 AND success = FALSE
		 ORDER BY id LIMIT 1`,
		studentID, contestID, subject)
}

func (repo *emailLogRepository) LatestSuccessByEmail(ctx context.Context, email string) (notification.EmailLog, error) {
	return repo.getEmailLog(ctx,
		`SELECT * FROM email_log
		 WHERE recipient_email = $1 AND success = TRUE AND last_attempt_at IS NOT NULL
		 ORDER BY last_attempt_at DESC LIMIT 1`,
		email)
}

func (repo *emailLogRepository) LatestFutureUnsentByEmail(ctx context.Context, email string, now time.Time) (notification.EmailLog, error) {
	return repo.getEmailLog(ctx,
		`SELECT * FROM email_log
		 WHERE recipient_email = $1 AND success = FALSE AND next_attempt_at IS NOT NULL AND next_attempt_at > $2
		 ORDER BY next_attempt_at DESC LIMIT 1`,
		email, now)
}

func (repo *emailLogRepository) QueryDueEmailLogs(ctx context.Context, now time.Time, limit int) ([]notification.EmailLog, error) {
	q := `
	SELECT * FROM email_log
	WHERE success = FALSE AND next_attempt_at IS NOT NULL AND next_attempt_at <= $1
	ORDER BY next_attempt_at`
	args := []interface{}{now}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []emailLogRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying due email logs")
	}
	logs := make([]notification.EmailLog, len(rows))
	for i, r := range rows {
		logs[i] = r.toEmailLog()
	}
	return logs, nil
}

func (repo *emailLogRepository) UpdateEmailLog(ctx context.Context, l notification.EmailLog) (notification.EmailLog, error) {
	const q = `
	UPDATE email_log
	SET body_text = $2, body_html = $3, success = $4, attempts = $5,
	    next_attempt_at = $6, last_attempt_at = $7, error_text = $8, updated_at = $9
	WHERE id = $1`

	if _, err := repo.db.ExecContext(ctx, q,
		l.ID, l.BodyText, l.BodyHTML, l.Success, l.Attempts,
		l.NextAttemptAt, l.LastAttemptAt, l.ErrorText, l.UpdatedAt,
	); err != nil {
		return notification.EmailLog{}, errors.Wrap(err, "updating email log")
	}
	return l, nil
}

func (repo *emailLogRepository) ApplyAttempt(ctx context.Context, l notification.EmailLog) (bool, error) {
	const q = `
	UPDATE email_log
	SET success = $2, attempts = $3, next_attempt_at = $4, last_attempt_at = $5, error_text = $6, updated_at = $7
	WHERE id = $1 AND success = FALSE`

	res, err := repo.db.ExecContext(ctx, q,
		l.ID, l.Success, l.Attempts, l.NextAttemptAt, l.LastAttemptAt, l.ErrorText, l.UpdatedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "applying attempt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "applying attempt")
	}
	return n > 0, nil
}

func (repo *emailLogRepository) SuppressUnsentByEmail(ctx context.Context, email string, until time.Time, marker string) (int, error) {
	const q = `
	UPDATE email_log
	SET next_attempt_at = $2, error_text = $3, updated_at = $2
	WHERE recipient_email = $1 AND success = FALSE AND next_attempt_at IS NOT NULL AND next_attempt_at < $2`

	res, err := repo.db.ExecContext(ctx, q, email, until, marker)
	if err != nil {
		return 0, errors.Wrap(err, "suppressing recipient")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "suppressing recipient")
	}
	return int(n), nil
}

func (repo *emailLogRepository) QueryFailedByContest(ctx context.Context, contestID int) ([]notification.EmailLog, error) {
	var rows []emailLogRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM email_log
		 WHERE contest_id = $1 AND success = FALSE AND attempts > 0 AND next_attempt_at IS NULL
		 ORDER BY id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying failed email logs")
	}
	logs := make([]notification.EmailLog, len(rows))
	for i, r := range rows {
		logs[i] = r.toEmailLog()
	}
	return logs, nil
}
