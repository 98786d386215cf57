package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestCompute_UrgentScenario(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	allotted := ptr(86400)

	timer := Compute(t0, allotted, t0.Add(18*time.Hour))
	require.True(t, timer.Active())
	assert.Equal(t, int64(64800), timer.ElapsedSeconds)
	assert.Equal(t, int64(21600), *timer.RemainingSeconds)
	assert.Equal(t, 25, *timer.Percentage)
	assert.False(t, timer.Overdue())

	late := Compute(t0, allotted, t0.Add(90000*time.Second))
	assert.Equal(t, int64(-3600), *late.RemainingSeconds)
	assert.Equal(t, 0, *late.Percentage)
	assert.True(t, late.Overdue())
}

func TestCompute_NoAllotment(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for _, allotted := range []*int64{nil, ptr(0)} {
		timer := Compute(t0, allotted, t0.Add(time.Hour))
		assert.False(t, timer.Active())
		assert.Nil(t, timer.RemainingSeconds)
		assert.Nil(t, timer.Percentage)
		assert.Equal(t, int64(3600), timer.ElapsedSeconds)
	}
}

func TestCompute_ArrivalInFuture(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	timer := Compute(t0.Add(time.Minute), ptr(600), t0)
	assert.Equal(t, int64(0), timer.ElapsedSeconds)
	assert.Equal(t, int64(600), *timer.RemainingSeconds)
	assert.Equal(t, 100, *timer.Percentage)
}

func TestCompute_PercentageBoundsAndZeroIffOverdue(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	allotments := []int64{1, 7, 600, 14400, 86400, 604800}

	for _, allotted := range allotments {
		offsets := []int64{0, 1, allotted / 200, allotted / 2, allotted - 1, allotted, allotted + 1, allotted * 3}
		for _, off := range offsets {
			timer := Compute(t0, ptr(allotted), t0.Add(time.Duration(off)*time.Second))
			pct := *timer.Percentage
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
			assert.Equal(t, off >= allotted, pct == 0, "allotted=%d offset=%d pct=%d", allotted, off, pct)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := t0.Add(5 * time.Hour)
	assert.Equal(t, Compute(t0, ptr(86400), now), Compute(t0, ptr(86400), now))
}

func TestFrozen(t *testing.T) {
	timer := Frozen(ptr(86400), ptr(43200))
	require.True(t, timer.Active())
	assert.Equal(t, int64(43200), *timer.RemainingSeconds)
	assert.Equal(t, 50, *timer.Percentage)
	assert.Equal(t, int64(43200), timer.ElapsedSeconds)

	assert.False(t, Frozen(nil, ptr(10)).Active())
	assert.False(t, Frozen(ptr(10), nil).Active())
}
