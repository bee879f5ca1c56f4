package contest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestRankMap(t *testing.T) {
	tests := []struct {
		name     string
		scores   map[int]int
		expected map[int]int
	}{
		{"empty", map[int]int{}, map[int]int{}},
		{"single", map[int]int{7: 42}, map[int]int{7: 1}},
		{
			"distinct scores",
			map[int]int{1: 30, 2: 20, 3: 10},
			map[int]int{1: 1, 2: 2, 3: 3},
		},
		{
			"two way tie skips a position",
			map[int]int{1: 50, 2: 50, 3: 40},
			map[int]int{1: 1, 2: 1, 3: 3},
		},
		{
			"three way tie at the top",
			map[int]int{1: 50, 2: 50, 3: 50, 4: 10},
			map[int]int{1: 1, 2: 1, 3: 1, 4: 4},
		},
		{
			"tie in the middle",
			map[int]int{1: 90, 2: 60, 3: 60, 4: 60, 5: 30},
			map[int]int{1: 1, 2: 2, 3: 2, 4: 2, 5: 5},
		},
		{
			"all zero scores share first",
			map[int]int{1: 0, 2: 0, 3: 0},
			map[int]int{1: 1, 2: 1, 3: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RankMap(tt.scores))
		})
	}
}

func TestApplyStatus(t *testing.T) {
	now := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	window := func(start, end time.Time) Contest {
		return Contest{
			Status:    StatusScheduled,
			StartTime: null.TimeFrom(start),
			EndTime:   null.TimeFrom(end),
		}
	}

	t.Run("before start stays scheduled", func(t *testing.T) {
		c := window(now.Add(time.Hour), now.Add(2*time.Hour))
		status, effects := ApplyStatus(c, now)
		assert.Equal(t, StatusScheduled, status)
		assert.Empty(t, effects)
	})

	t.Run("inside window becomes ongoing", func(t *testing.T) {
		c := window(now.Add(-time.Hour), now.Add(time.Hour))
		status, effects := ApplyStatus(c, now)
		assert.Equal(t, StatusOngoing, status)
		assert.Empty(t, effects)
	})

	t.Run("at exact start becomes ongoing", func(t *testing.T) {
		c := window(now, now.Add(time.Hour))
		status, _ := ApplyStatus(c, now)
		assert.Equal(t, StatusOngoing, status)
	})

	t.Run("past end finishes and owes notifications", func(t *testing.T) {
		c := window(now.Add(-2*time.Hour), now.Add(-time.Hour))
		c.Status = StatusOngoing
		status, effects := ApplyStatus(c, now)
		assert.Equal(t, StatusFinished, status)
		assert.Equal(t, []SideEffect{EffectEnqueueNotifications}, effects)
	})

	t.Run("skips straight from scheduled to finished", func(t *testing.T) {
		c := window(now.Add(-2*time.Hour), now.Add(-time.Hour))
		status, effects := ApplyStatus(c, now)
		assert.Equal(t, StatusFinished, status)
		assert.Equal(t, []SideEffect{EffectEnqueueNotifications}, effects)
	})

	t.Run("already finished yields no effects", func(t *testing.T) {
		c := window(now.Add(-2*time.Hour), now.Add(-time.Hour))
		c.Status = StatusFinished
		status, effects := ApplyStatus(c, now)
		assert.Equal(t, StatusFinished, status)
		assert.Empty(t, effects)
	})

	t.Run("no window stays scheduled", func(t *testing.T) {
		status, effects := ApplyStatus(Contest{Status: StatusScheduled}, now)
		assert.Equal(t, StatusScheduled, status)
		assert.Empty(t, effects)
	})
}
