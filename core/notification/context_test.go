package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/user"
)

func TestComputeScoreStats(t *testing.T) {
	t.Run("empty cohort", func(t *testing.T) {
		stats := ComputeScoreStats(nil)
		assert.Equal(t, 0.0, stats.Avg)
		assert.Equal(t, 0, stats.Max)
	})

	t.Run("mean is rounded to 2 decimals", func(t *testing.T) {
		stats := ComputeScoreStats(map[int]int{1: 50, 2: 60, 3: 90})
		assert.Equal(t, 66.67, stats.Avg)
		assert.Equal(t, 90, stats.Max)
	})
}

func TestBuildReportContext(t *testing.T) {
	student := user.User{ID: 1, Name: "Ada", Email: "ada@test.cd"}
	tutor := user.Tutor{UserID: 9, DisplayName: null.StringFrom("Mr. K")}
	c := contest.Contest{ID: 3, Name: "Algebra I", MaxPoints: 100}
	stats := ScoreStats{Avg: 66.67, Max: 90}

	t.Run("enrolled but never joined is absent", func(t *testing.T) {
		rc := BuildReportContext(student, tutor, c, contest.Participant{}, false, false, 0, 4, stats, "http://front")
		assert.Equal(t, AttendanceAbsent, rc.Attendance)
		assert.Equal(t, narrativeAbsent, rc.Narrative)
		assert.Equal(t, 0, rc.Score)
		assert.Equal(t, 0, rc.Rank)
		assert.Equal(t, 0.0, rc.ProgressPercent)
		assert.Equal(t, 4, rc.TotalRanked)
		assert.Equal(t, 66.67, rc.AvgScore)
		assert.Equal(t, 90, rc.MaxScored)
		assert.Equal(t, "Mr. K", rc.TutorName)
		assert.Equal(t, "http://front", rc.FrontendURL)
	})

	t.Run("joined without any activity is absent", func(t *testing.T) {
		p := contest.Participant{ID: 7, Score: 0}
		rc := BuildReportContext(student, tutor, c, p, true, false, 2, 4, stats, "")
		assert.Equal(t, AttendanceAbsent, rc.Attendance)
		assert.Equal(t, narrativeAbsent, rc.Narrative)
		assert.Equal(t, 0, rc.Rank)
	})

	t.Run("a single submission counts as present", func(t *testing.T) {
		p := contest.Participant{ID: 7, Score: 20}
		rc := BuildReportContext(student, tutor, c, p, true, true, 3, 4, stats, "")
		assert.Equal(t, AttendancePresent, rc.Attendance)
		assert.Equal(t, 20, rc.Score)
		assert.Equal(t, 3, rc.Rank)
		assert.Equal(t, 20.0, rc.ProgressPercent)
		assert.Equal(t, narrativePoor, rc.Narrative)
	})

	t.Run("a completed run counts as present", func(t *testing.T) {
		p := contest.Participant{ID: 7, Score: 90, CompletedAt: null.TimeFrom(time.Now())}
		rc := BuildReportContext(student, tutor, c, p, true, false, 1, 4, stats, "")
		assert.Equal(t, AttendancePresent, rc.Attendance)
		assert.Equal(t, 90.0, rc.ProgressPercent)
	})

	t.Run("time on the clock counts as present", func(t *testing.T) {
		p := contest.Participant{ID: 7, Score: 0, TimeTaken: 3 * time.Minute}
		rc := BuildReportContext(student, tutor, c, p, true, false, 4, 4, stats, "")
		assert.Equal(t, AttendancePresent, rc.Attendance)
		assert.Equal(t, narrativePoor, rc.Narrative)
	})

	t.Run("progress keeps 2 decimals", func(t *testing.T) {
		odd := contest.Contest{ID: 4, Name: "Thirds", MaxPoints: 99}
		p := contest.Participant{ID: 7, Score: 33, CompletedAt: null.TimeFrom(time.Now())}
		rc := BuildReportContext(student, tutor, odd, p, true, true, 1, 1, stats, "")
		assert.Equal(t, 33.33, rc.ProgressPercent)
	})

	t.Run("zero max points yields zero progress", func(t *testing.T) {
		free := contest.Contest{ID: 4, Name: "Warmup", MaxPoints: 0}
		p := contest.Participant{ID: 7, Score: 5, CompletedAt: null.TimeFrom(time.Now())}
		rc := BuildReportContext(student, tutor, free, p, true, true, 1, 1, stats, "")
		assert.Equal(t, AttendancePresent, rc.Attendance)
		assert.Equal(t, 0.0, rc.ProgressPercent)
	})

	t.Run("tutor name falls back through the profile fields", func(t *testing.T) {
		rc := BuildReportContext(student, user.Tutor{FullName: null.StringFrom("Karim N.")}, c, contest.Participant{}, false, false, 0, 0, stats, "")
		assert.Equal(t, "Karim N.", rc.TutorName)

		rc = BuildReportContext(student, user.Tutor{Name: null.StringFrom("K")}, c, contest.Participant{}, false, false, 0, 0, stats, "")
		assert.Equal(t, "K", rc.TutorName)

		rc = BuildReportContext(student, user.Tutor{DisplayName: null.StringFrom("")}, c, contest.Participant{}, false, false, 0, 0, stats, "")
		assert.Equal(t, "", rc.TutorName)
	})
}

func TestNarrativeFor(t *testing.T) {
	tests := []struct {
		percent  float64
		expected string
	}{
		{100, narrativeExcellent},
		{85, narrativeExcellent},
		{84.99, narrativeGood},
		{60, narrativeGood},
		{59.99, narrativeFair},
		{40, narrativeFair},
		{39.99, narrativePoor},
		{0, narrativePoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, narrativeFor(tt.percent), "percent %v", tt.percent)
	}
}

func TestReportSubject(t *testing.T) {
	assert.Equal(t, "📊 Algebra I – Performance Summary", ReportSubject("Algebra I"))
}
