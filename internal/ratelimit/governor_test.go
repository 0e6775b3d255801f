package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWindowRecordAndCheck(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow("minute", time.Minute, 2)

	n, err := w.RecordAndCheck(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, clock.Now().Add(time.Minute), w.ExpiresAt())

	n, err = w.RecordAndCheck(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.RecordAndCheck(clock.Now())
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Equal(t, 3, n, "rejected request still counts")
}

func TestWindowResetsAtExpiry(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow("minute", time.Minute, 60)

	for i := 0; i < 5; i++ {
		_, err := w.RecordAndCheck(clock.Now())
		require.NoError(t, err)
	}

	// Just before expiry the count carries over
	clock.Advance(time.Minute - time.Nanosecond)
	n, err := w.RecordAndCheck(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// Exactly at expiry the window resets
	clock.Advance(time.Nanosecond)
	n, err = w.RecordAndCheck(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGovernorMinuteCeiling(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(Limits{PerMinute: 3, PerWeek: 100}, WithClock(clock.Now))

	for i := 1; i <= 3; i++ {
		counts, err := g.CheckAndRecord()
		require.NoError(t, err)
		assert.Equal(t, Counts{Minute: i, Week: i}, counts)
	}

	counts, err := g.CheckAndRecord()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "minute", limitErr.Window)
	assert.Equal(t, 3, limitErr.Ceiling)
	assert.Equal(t, Counts{Minute: 4, Week: 4}, counts)
	assert.Equal(t, clock.Now().Add(time.Minute), limitErr.ResetAt)
}

func TestGovernorFreshMinuteAfterIdle(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(Limits{PerMinute: 3, PerWeek: 100}, WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		_, _ = g.CheckAndRecord()
	}

	clock.Advance(time.Minute)
	counts, err := g.CheckAndRecord()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Minute)
	assert.Equal(t, 5, counts.Week, "week window keeps counting across minutes")
}

func TestGovernorWeekCeiling(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(Limits{PerMinute: 2, PerWeek: 5}, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		_, err := g.CheckAndRecord()
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	_, err := g.CheckAndRecord()
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "week", limitErr.Window)

	clock.Advance(Week)
	counts, err := g.CheckAndRecord()
	require.NoError(t, err)
	assert.Equal(t, Counts{Minute: 1, Week: 1}, counts)
}

func TestGovernorNeverPassesOverCeiling(t *testing.T) {
	clock := newFakeClock()
	limits := Limits{PerMinute: 7, PerWeek: 20}
	g := NewGovernor(limits, WithClock(clock.Now))

	for i := 0; i < 200; i++ {
		counts, err := g.CheckAndRecord()
		if err == nil {
			assert.LessOrEqual(t, counts.Minute, limits.PerMinute)
			assert.LessOrEqual(t, counts.Week, limits.PerWeek)
		} else {
			assert.True(t, counts.Minute > limits.PerMinute || counts.Week > limits.PerWeek)
		}
		clock.Advance(7 * time.Second)
	}
}

func TestGovernorConcurrentCallers(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(Limits{PerMinute: 50, PerWeek: 1000}, WithClock(clock.Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.CheckAndRecord(); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	assert.Equal(t, Counts{Minute: 200, Week: 200}, g.Counts())
}

func TestNewGovernorDefaults(t *testing.T) {
	g := NewGovernor(Limits{})
	assert.Equal(t, DefaultLimits(), g.Limits())
	assert.Equal(t, Counts{}, g.Counts())
}
