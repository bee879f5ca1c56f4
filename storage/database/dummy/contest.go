package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/skillforge/skillforge/core/contest"
)

var contestPKCount int

type contestRepository struct {
	db    *contestTable
	users *userTable
}

var _ contest.Repository = (*contestRepository)(nil)

func NewContestRepository(db *DB) contest.Repository {
	return &contestRepository{db: db.contest, users: db.user}
}

func (repo *contestRepository) nextPK() int {
	contestPKCount++
	return contestPKCount
}

func (repo *contestRepository) CreateContest(_ context.Context, c contest.Contest) (contest.Contest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = repo.nextPK()
	repo.db.contests[c.ID] = &c
	return c, nil
}

func (repo *contestRepository) GetContest(_ context.Context, id int) (contest.Contest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.contests[id]; ok {
		return *c, nil
	}
	return contest.Contest{}, contest.ErrNotFound
}

func (repo *contestRepository) QueryUnfinishedContests(_ context.Context) ([]contest.Contest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contests []contest.Contest
	for _, c := range repo.db.contests {
		if c.Status != contest.StatusFinished {
			contests = append(contests, *c)
		}
	}
	sort.Slice(contests, func(i, j int) bool { return contests[i].ID < contests[j].ID })
	return contests, nil
}

func (repo *contestRepository) QueryFinishedContests(_ context.Context) ([]contest.Contest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contests []contest.Contest
	for _, c := range repo.db.contests {
		if c.Status == contest.StatusFinished {
			contests = append(contests, *c)
		}
	}
	sort.Slice(contests, func(i, j int) bool { return contests[i].ID < contests[j].ID })
	return contests, nil
}

func (repo *contestRepository) QueryEndedUnfinished(_ context.Context, now time.Time, limit int) ([]contest.Contest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contests []contest.Contest
	for _, c := range repo.db.contests {
		if c.Status != contest.StatusFinished && c.EndTime.Valid && c.EndTime.Time.Before(now) {
			contests = append(contests, *c)
		}
	}
	sort.Slice(contests, func(i, j int) bool { return contests[i].EndTime.Time.Before(contests[j].EndTime.Time) })
	if limit > 0 && len(contests) > limit {
		contests = contests[:limit]
	}
	return contests, nil
}

func (repo *contestRepository) UpdateContest(_ context.Context, c contest.Contest) (contest.Contest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.contests[c.ID]; !ok {
		return contest.Contest{}, contest.ErrNotFound
	}
	repo.db.contests[c.ID] = &c
	return c, nil
}

func (repo *contestRepository) CreateParticipant(_ context.Context, p contest.Participant) (contest.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = repo.nextPK()
	repo.db.participants[p.ID] = &p
	return p, nil
}

func (repo *contestRepository) GetParticipant(_ context.Context, id int) (contest.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.participants[id]; ok {
		return *p, nil
	}
	return contest.Participant{}, contest.ErrNotFound
}

func (repo *contestRepository) FindParticipant(_ context.Context, contestID, userID int) (contest.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.participants {
		if p.ContestID == contestID && p.UserID == userID {
			return *p, nil
		}
	}
	return contest.Participant{}, contest.ErrNotFound
}

func (repo *contestRepository) QueryParticipants(_ context.Context, contestID int) ([]contest.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var participants []contest.Participant
	for _, p := range repo.db.participants {
		if p.ContestID == contestID {
			participants = append(participants, *p)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })
	return participants, nil
}

func (repo *contestRepository) UpdateParticipant(_ context.Context, p contest.Participant) (contest.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.participants[p.ID]; !ok {
		return contest.Participant{}, contest.ErrNotFound
	}
	repo.db.participants[p.ID] = &p
	return p, nil
}

func (repo *contestRepository) GetQuestion(_ context.Context, id int) (contest.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return *q, nil
	}
	return contest.Question{}, contest.ErrNotFound
}

func (repo *contestRepository) QueryQuestions(_ context.Context, contestID int) ([]contest.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var questions []contest.Question
	for _, q := range repo.db.questions {
		if q.ContestID == contestID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (repo *contestRepository) GetOption(_ context.Context, id int) (contest.Option, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if opt, ok := repo.db.options[id]; ok {
		return *opt, nil
	}
	return contest.Option{}, contest.ErrNotFound
}

func (repo *contestRepository) QueryOptions(_ context.Context, questionID int) ([]contest.Option, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var options []contest.Option
	for _, opt := range repo.db.options {
		if opt.QuestionID == questionID {
			options = append(options, *opt)
		}
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options, nil
}

func (repo *contestRepository) CreateSubmission(_ context.Context, s contest.Submission) (contest.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s.ID = repo.nextPK()
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *contestRepository) SubmissionExists(_ context.Context, participantID, questionID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.ParticipantID == participantID && s.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *contestRepository) HasSubmissions(_ context.Context, participantID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.ParticipantID == participantID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *contestRepository) UpsertLeaderboardEntry(_ context.Context, e contest.LeaderboardEntry) (contest.LeaderboardEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.leaderboard {
		if existing.ContestID == e.ContestID && existing.UserID == e.UserID {
			existing.Score = e.Score
			existing.Rank = e.Rank
			return *existing, nil
		}
	}
	e.ID = repo.nextPK()
	repo.db.leaderboard[e.ID] = &e
	return e, nil
}

func (repo *contestRepository) QueryLeaderboard(_ context.Context, contestID int) ([]contest.LeaderboardEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []contest.LeaderboardEntry
	for _, e := range repo.db.leaderboard {
		if e.ContestID == contestID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

func (repo *contestRepository) GlobalLeaderboard(_ context.Context, limit int) ([]contest.GlobalRank, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[int]int)
	for _, p := range repo.db.participants {
		totals[p.UserID] += p.Score
	}
	repo.users.RLock()
	ranks := make([]contest.GlobalRank, 0, len(totals))
	for userID, total := range totals {
		rank := contest.GlobalRank{UserID: userID, TotalScore: total}
		if usr, ok := repo.users.users[userID]; ok {
			rank.Username = usr.Username
		}
		ranks = append(ranks, rank)
	}
	repo.users.RUnlock()
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].TotalScore != ranks[j].TotalScore {
			return ranks[i].TotalScore > ranks[j].TotalScore
		}
		return ranks[i].UserID < ranks[j].UserID
	})
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func (repo *contestRepository) EnrollUser(_ context.Context, contestID, userID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.enrollments[contestID] == nil {
		repo.db.enrollments[contestID] = make(map[int]bool)
	}
	repo.db.enrollments[contestID][userID] = true
	return nil
}

func (repo *contestRepository) QueryEnrolledUserIDs(_ context.Context, contestID int) ([]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]int, 0, len(repo.db.enrollments[contestID]))
	for id := range repo.db.enrollments[contestID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
