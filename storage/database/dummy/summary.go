package dummydb

import (
	"context"
	"sort"

	"github.com/skillforge/skillforge/core/summary"
)

var keyNotePKCount int

type keyNoteRepository struct {
	db *keyNoteTable
}

var _ summary.Repository = (*keyNoteRepository)(nil)

func NewKeyNoteRepository(db *DB) summary.Repository {
	return &keyNoteRepository{db: db.keyNote}
}

func (repo *keyNoteRepository) CreateKeyNote(_ context.Context, n summary.KeyNote) (summary.KeyNote, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	keyNotePKCount++
	n.ID = keyNotePKCount
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *keyNoteRepository) GetKeyNoteByQuestion(_ context.Context, contestID, questionID int) (summary.KeyNote, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, n := range repo.db.table {
		if n.ContestID == contestID && n.QuestionID == questionID {
			return *n, nil
		}
	}
	return summary.KeyNote{}, summary.ErrNotFound
}

func (repo *keyNoteRepository) UpdateKeyNote(_ context.Context, n summary.KeyNote) (summary.KeyNote, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[n.ID]; !ok {
		return summary.KeyNote{}, summary.ErrNotFound
	}
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *keyNoteRepository) QueryKeyNotesByContest(_ context.Context, contestID int) ([]summary.KeyNote, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notes []summary.KeyNote
	for _, n := range repo.db.table {
		if n.ContestID == contestID {
			notes = append(notes, *n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].QuestionID < notes[j].QuestionID })
	return notes, nil
}

func (repo *keyNoteRepository) DeleteKeyNotesByContest(_ context.Context, contestID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, n := range repo.db.table {
		if n.ContestID == contestID {
			delete(repo.db.table, id)
		}
	}
	return nil
}
