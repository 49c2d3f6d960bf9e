// Package quietgate tracks a process-wide "do not disturb" deadline.
// Bus-touching code extends the window before a transaction; everything
// that could add timing jitter (heavy parsing, config application) checks
// it first and defers while it is active.
package quietgate

import (
	"sync"
	"time"
)

// Gate is a monotonically extending quiet-window deadline.
// The zero value is not usable; call New.
type Gate struct {
	mu       sync.Mutex
	deadline time.Time
	now      func() time.Time
}

// New creates a Gate with no active window. now may be nil, in which case
// time.Now is used; tests inject their own clock.
func New(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// RequestQuiet extends the deadline to now+d if that is later than the
// current deadline. The deadline never moves backwards, so overlapping
// requests from different callers compose to the strictest one.
func (g *Gate) RequestQuiet(d time.Duration) {
	until := g.now().Add(d)

	g.mu.Lock()
	if until.After(g.deadline) {
		g.deadline = until
	}
	g.mu.Unlock()
}

// IsActive reports whether the quiet window is still open.
func (g *Gate) IsActive() bool {
	g.mu.Lock()
	deadline := g.deadline
	g.mu.Unlock()

	return g.now().Before(deadline)
}

// Remaining returns how long the window has left, or zero when inactive.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	deadline := g.deadline
	g.mu.Unlock()

	if r := deadline.Sub(g.now()); r > 0 {
		return r
	}
	return 0
}
