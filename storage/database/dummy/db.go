package dummydb

import (
	"sync"

	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
	"github.com/skillforge/skillforge/core/user"
)

type (
	DB struct {
		user     *userTable
		contest  *contestTable
		emailLog *emailLogTable
		keyNote  *keyNoteTable
	}

	userTable struct {
		sync.RWMutex
		users  map[int]*user.User
		tutors map[int]*user.Tutor
	}

	contestTable struct {
		sync.RWMutex
		contests     map[int]*contest.Contest
		questions    map[int]*contest.Question
		options      map[int]*contest.Option
		participants map[int]*contest.Participant
		submissions  map[int]*contest.Submission
		leaderboard  map[int]*contest.LeaderboardEntry
		enrollments  map[int]map[int]bool // contestID -> userIDs
	}

	emailLogTable struct {
		sync.RWMutex
		table map[int]*notification.EmailLog
	}

	keyNoteTable struct {
		sync.RWMutex
		table map[int]*summary.KeyNote
	}
)

// SeedQuestion inserts a question directly, for test fixtures.
func (db *DB) SeedQuestion(q contest.Question) contest.Question {
	db.contest.Lock()
	defer db.contest.Unlock()

	contestPKCount++
	q.ID = contestPKCount
	db.contest.questions[q.ID] = &q
	return q
}

// SeedOption inserts a question option directly, for test fixtures.
func (db *DB) SeedOption(opt contest.Option) contest.Option {
	db.contest.Lock()
	defer db.contest.Unlock()

	contestPKCount++
	opt.ID = contestPKCount
	db.contest.options[opt.ID] = &opt
	return opt
}

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			users:  make(map[int]*user.User),
			tutors: make(map[int]*user.Tutor),
		},
		contest: &contestTable{
			contests:     make(map[int]*contest.Contest),
			questions:    make(map[int]*contest.Question),
			options:      make(map[int]*contest.Option),
			participants: make(map[int]*contest.Participant),
			submissions:  make(map[int]*contest.Submission),
			leaderboard:  make(map[int]*contest.LeaderboardEntry),
			enrollments:  make(map[int]map[int]bool),
		},
		emailLog: &emailLogTable{table: make(map[int]*notification.EmailLog)},
		keyNote:  &keyNoteTable{table: make(map[int]*summary.KeyNote)},
	}
	return db, nil
}
