package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultPerMinute = 60   // Portal default quota per rolling minute
	DefaultPerWeek   = 1000 // Portal default quota per rolling week

	Minute = time.Minute
	Week   = 7 * 24 * time.Hour
)

// ErrRateLimitExceeded is returned when a request would exceed a quota window
var ErrRateLimitExceeded = errors.New("portal API rate limit exceeded")

// Window is a fixed-length counting interval that resets entirely once it expires
type Window struct {
	Name    string
	Length  time.Duration
	Ceiling int

	count     int
	expiresAt time.Time // zero until the first request opens a window
}

// NewWindow creates an inactive window
func NewWindow(name string, length time.Duration, ceiling int) *Window {
	return &Window{Name: name, Length: length, Ceiling: ceiling}
}

// RecordAndCheck counts one request made at now and reports whether the
// window is still within its ceiling. A rejected request still counts.
func (w *Window) RecordAndCheck(now time.Time) (int, error) {
	if w.expiresAt.IsZero() || !now.Before(w.expiresAt) {
		w.count = 0
		w.expiresAt = now.Add(w.Length)
	}

	w.count++

	if w.count > w.Ceiling {
		return w.count, ErrRateLimitExceeded
	}
	return w.count, nil
}

// Count returns the current request count (as of the last recorded request)
func (w *Window) Count() int {
	return w.count
}

// ExpiresAt returns when the active window ends (zero if none is active)
func (w *Window) ExpiresAt() time.Time {
	return w.expiresAt
}

// Limits holds the quota ceilings for each window
type Limits struct {
	PerMinute int
	PerWeek   int
}

// DefaultLimits returns the portal's documented default quotas
func DefaultLimits() Limits {
	return Limits{PerMinute: DefaultPerMinute, PerWeek: DefaultPerWeek}
}

// Counts is a snapshot of both window counters after a request was recorded
type Counts struct {
	Minute int
	Week   int
}

// LimitError describes which window rejected a request
type LimitError struct {
	Window  string
	Ceiling int
	Counts  Counts
	ResetAt time.Time
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s window ceiling %d reached (minute=%d, week=%d), resets at %s",
		ErrRateLimitExceeded, e.Window, e.Ceiling, e.Counts.Minute, e.Counts.Week, e.ResetAt.Format(time.RFC3339))
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// Governor enforces the per-minute and per-week quotas for one client.
// Safe for concurrent use.
type Governor struct {
	mu     sync.Mutex
	minute *Window
	week   *Window
	now    func() time.Time
}

// Option configures a Governor
type Option func(*Governor)

// WithClock overrides the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// NewGovernor creates a governor with the given ceilings. Non-positive
// ceilings fall back to the portal defaults.
func NewGovernor(limits Limits, opts ...Option) *Governor {
	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultPerMinute
	}
	if limits.PerWeek <= 0 {
		limits.PerWeek = DefaultPerWeek
	}

	g := &Governor{
		minute: NewWindow("minute", Minute, limits.PerMinute),
		week:   NewWindow("week", Week, limits.PerWeek),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndRecord must be called immediately before issuing an outbound
// request. Both windows always record the attempt; if either one is now
// over its ceiling the request must not be sent.
func (g *Governor) CheckAndRecord() (Counts, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	minuteCount, minuteErr := g.minute.RecordAndCheck(now)
	weekCount, weekErr := g.week.RecordAndCheck(now)
	counts := Counts{Minute: minuteCount, Week: weekCount}

	switch {
	case minuteErr != nil:
		return counts, &LimitError{Window: g.minute.Name, Ceiling: g.minute.Ceiling, Counts: counts, ResetAt: g.minute.expiresAt}
	case weekErr != nil:
		return counts, &LimitError{Window: g.week.Name, Ceiling: g.week.Ceiling, Counts: counts, ResetAt: g.week.expiresAt}
	}
	return counts, nil
}

// Counts returns the current counters without recording a request
func (g *Governor) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Counts{Minute: g.minute.Count(), Week: g.week.Count()}
}

// Limits returns the configured ceilings
func (g *Governor) Limits() Limits {
	return Limits{PerMinute: g.minute.Ceiling, PerWeek: g.week.Ceiling}
}
