package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/summary"
)

type keyNoteRepository struct {
	db *sqlx.DB
}

var _ summary.Repository = (*keyNoteRepository)(nil)

func NewKeyNoteRepository(db *sqlx.DB) *keyNoteRepository {
	return &keyNoteRepository{db: db}
}

type keyNoteRow struct {
	ID          int       `db:"id"`
	ContestID   int       `db:"contest_id"`
	QuestionID  int       `db:"question_id"`
	Text        string    `db:"text"`
	Provider    string    `db:"provider"`
	GeneratedBy null.Int  `db:"generated_by"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row keyNoteRow) toKeyNote() summary.KeyNote {
	return summary.KeyNote{
		ID:          row.ID,
		ContestID:   row.ContestID,
		QuestionID:  row.QuestionID,
		Text:        row.Text,
		Provider:    row.Provider,
		GeneratedBy: row.GeneratedBy,
		CreatedAt:   row.CreatedAt,
	}
}

func (repo *keyNoteRepository) CreateKeyNote(ctx context.Context, n summary.KeyNote) (summary.KeyNote, error) {
	const q = `
	INSERT INTO key_note (contest_id, question_id, text, provider, generated_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q,
		n.ContestID, n.QuestionID, n.Text, n.Provider, n.GeneratedBy, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return summary.KeyNote{}, errors.Wrap(err, "inserting key note")
	}
	return n, nil
}

func (repo *keyNoteRepository) GetKeyNoteByQuestion(ctx context.Context, contestID, questionID int) (summary.KeyNote, error) {
	var row keyNoteRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM key_note WHERE contest_id = $1 AND question_id = $2`, contestID, questionID)
	switch {
	case err == sql.ErrNoRows:
		return summary.KeyNote{}, summary.ErrNotFound
	case err != nil:
		return summary.KeyNote{}, errors.Wrap(err, "querying key note")
	}
	return row.toKeyNote(), nil
}

func (repo *keyNoteRepository) UpdateKeyNote(ctx context.Context, n summary.KeyNote) (summary.KeyNote, error) {
	const q = `
	UPDATE key_note
	SET text = $1, provider = $2, generated_by = $3, created_at = $4
	WHERE id = $5`

	if _, err := repo.db.ExecContext(ctx, q, n.Text, n.Provider, n.GeneratedBy, n.CreatedAt, n.ID); err != nil {
		return summary.KeyNote{}, errors.Wrap(err, "updating key note")
	}
	return n, nil
}

func (repo *keyNoteRepository) QueryKeyNotesByContest(ctx context.Context, contestID int) ([]summary.KeyNote, error) {
	var rows []keyNoteRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM key_note WHERE contest_id = $1 ORDER BY question_id`, contestID)
	if err != nil {
		return nil, errors.Wrap(err, "querying key notes")
	}
	notes := make([]summary.KeyNote, len(rows))
	for i, row := range rows {
		notes[i] = row.toKeyNote()
	}
	return notes, nil
}

func (repo *keyNoteRepository) DeleteKeyNotesByContest(ctx context.Context, contestID int) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM key_note WHERE contest_id = $1`, contestID); err != nil {
		return errors.Wrap(err, "deleting key notes")
	}
	return nil
}
