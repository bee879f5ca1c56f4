package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/notification"
)

var emailLogPKCount int

type emailLogRepository struct {
	db *emailLogTable
}

var _ notification.Repository = (*emailLogRepository)(nil)

func NewEmailLogRepository(db *DB) notification.Repository {
	return &emailLogRepository{db: db.emailLog}
}

func (repo *emailLogRepository) CreateEmailLog(_ context.Context, l notification.EmailLog) (notification.EmailLog, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	emailLogPKCount++
	l.ID = emailLogPKCount
	repo.db.table[l.ID] = &l
	return l, nil
}

func (repo *emailLogRepository) GetEmailLog(_ context.Context, id int) (notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.table[id]; ok {
		return *l, nil
	}
	return notification.EmailLog{}, notification.ErrNotFound
}

func (repo *emailLogRepository) GetUnsentEmailLog(_ context.Context, studentID, contestID int, subject string) (notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, l := range repo.sorted() {
		if !l.Success &&
			l.StudentID.Valid && l.StudentID.Int == studentID &&
			l.ContestID.Valid && l.ContestID.Int == contestID &&
			l.Subject == subject {
			return l, nil
		}
	}
	return notification.EmailLog{}, notification.ErrNotFound
}

func (repo *emailLogRepository) LatestSuccessByEmail(_ context.Context, email string) (notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest notification.EmailLog
	var found bool
	for _, l := range repo.db.table {
		if l.Success && l.RecipientEmail == email && l.LastAttemptAt.Valid {
			if !found || l.LastAttemptAt.Time.After(latest.LastAttemptAt.Time) {
				latest = *l
				found = true
			}
		}
	}
	if !found {
		return notification.EmailLog{}, notification.ErrNotFound
	}
	return latest, nil
}

func (repo *emailLogRepository) LatestFutureUnsentByEmail(_ context.Context, email string, now time.Time) (notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest notification.EmailLog
	var found bool
	for _, l := range repo.db.table {
		if !l.Success && l.RecipientEmail == email && l.NextAttemptAt.Valid && l.NextAttemptAt.Time.After(now) {
			if !found || l.NextAttemptAt.Time.After(latest.NextAttemptAt.Time) {
				latest = *l
				found = true
			}
		}
	}
	if !found {
		return notification.EmailLog{}, notification.ErrNotFound
	}
	return latest, nil
}

func (repo *emailLogRepository) QueryDueEmailLogs(_ context.Context, now time.Time, limit int) ([]notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var due []notification.EmailLog
	for _, l := range repo.sorted() {
		if !l.Success && l.NextAttemptAt.Valid && !l.NextAttemptAt.Time.After(now) {
			due = append(due, l)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Time.Before(due[j].NextAttemptAt.Time) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (repo *emailLogRepository) UpdateEmailLog(_ context.Context, l notification.EmailLog) (notification.EmailLog, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[l.ID]; !ok {
		return notification.EmailLog{}, notification.ErrNotFound
	}
	repo.db.table[l.ID] = &l
	return l, nil
}

func (repo *emailLogRepository) ApplyAttempt(_ context.Context, l notification.EmailLog) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[l.ID]
	if !ok {
		return false, notification.ErrNotFound
	}
	if existing.Success {
		return false, nil
	}
	repo.db.table[l.ID] = &l
	return true, nil
}

func (repo *emailLogRepository) SuppressUnsentByEmail(_ context.Context, email string, until time.Time, marker string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, l := range repo.db.table {
		if !l.Success && l.RecipientEmail == email && l.NextAttemptAt.Valid && l.NextAttemptAt.Time.Before(until) {
			l.NextAttemptAt.Time = until
			l.ErrorText = null.StringFrom(marker)
			l.UpdatedAt = until
			count++
		}
	}
	return count, nil
}

func (repo *emailLogRepository) QueryFailedByContest(_ context.Context, contestID int) ([]notification.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var failed []notification.EmailLog
	for _, l := range repo.sorted() {
		if l.ContestID.Valid && l.ContestID.Int == contestID && l.Failed() {
			failed = append(failed, l)
		}
	}
	return failed, nil
}

func (repo *emailLogRepository) sorted() []notification.EmailLog {
	logs := make([]notification.EmailLog, 0, len(repo.db.table))
	for _, l := range repo.db.table {
		logs = append(logs, *l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })
	return logs
}
