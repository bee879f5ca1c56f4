package notification

import (
	"math"

	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/user"
)

// Attendance values rendered in the performance summary.
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
)

// Narrative bands keyed on progress percent, plus the fixed message
// for students who never attempted the contest.
const (
	narrativeExcellent = "Outstanding performance! You have mastered this material."
	narrativeGood      = "Good work! You have a solid grasp of the material with room to grow."
	narrativeFair      = "A fair effort. Reviewing the topics you missed would pay off."
	narrativePoor      = "This contest was a challenge. Revisiting the fundamentals is a good next step."
	narrativeAbsent    = "You did not attempt this contest. We encourage you to participate next time."
)

// ScoreStats are cohort aggregates rendered alongside a student's own
// result.
type ScoreStats struct {
	Avg float64 // mean participant score, rounded to 2 decimals
	Max int     // best participant score
}

// ComputeScoreStats aggregates all participant scores of a contest.
// Zero values for an empty cohort.
func ComputeScoreStats(scores map[int]int) ScoreStats {
	var stats ScoreStats
	if len(scores) == 0 {
		return stats
	}
	var total int
	for _, s := range scores {
		total += s
		if s > stats.Max {
			stats.Max = s
		}
	}
	stats.Avg = round2(float64(total) / float64(len(scores)))
	return stats
}

// ReportContext carries everything the performance summary templates
// render for one student.
type ReportContext struct {
	StudentName     string
	ContestName     string
	TutorName       string
	Score           int
	MaxPoints       int
	ProgressPercent float64
	AvgScore        float64
	MaxScored       int
	Rank            int
	TotalRanked     int
	Attendance      string
	Narrative       string
	FrontendURL     string
}

// BuildReportContext assembles the template context for one student's
// contest report. A student counts as present only with concrete
// activity in the contest: a completed run, time on the clock, or at
// least one submitted answer. Enrollment alone is absence.
func BuildReportContext(
	student user.User,
	tutor user.Tutor,
	c contest.Contest,
	p contest.Participant,
	participated bool,
	hasActivity bool,
	rank, totalRanked int,
	stats ScoreStats,
	frontendURL string,
) ReportContext {
	rc := ReportContext{
		StudentName: student.Name,
		ContestName: c.Name,
		MaxPoints:   c.MaxPoints,
		AvgScore:    stats.Avg,
		MaxScored:   stats.Max,
		TotalRanked: totalRanked,
		Attendance:  AttendanceAbsent,
		Narrative:   narrativeAbsent,
		FrontendURL: frontendURL,
	}
	if name := tutor.PublicName(); name.Valid {
		rc.TutorName = name.String
	}
	if participated && (hasActivity || p.CompletedAt.Valid || p.TimeTaken > 0) {
		rc.Attendance = AttendancePresent
		rc.Score = p.Score
		rc.Rank = rank
		// Zero max points would divide by zero.
		if c.MaxPoints > 0 {
			rc.ProgressPercent = round2(float64(rc.Score) * 100 / float64(c.MaxPoints))
		}
		rc.Narrative = narrativeFor(rc.ProgressPercent)
	}
	return rc
}

func narrativeFor(percent float64) string {
	switch {
	case percent >= 85:
		return narrativeExcellent
	case percent >= 60:
		return narrativeGood
	case percent >= 40:
		return narrativeFair
	default:
		return narrativePoor
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
