// Package presence tracks an external device's exclusive claim on the
// bus, announced by periodic UDP beacons. While a claim is fresh the
// poller performs no bus I/O at all and blanks its bars.
package presence

import (
	"sync"
	"time"
)

// DefaultTTL is how long a single beacon keeps the claim alive.
const DefaultTTL = 15 * time.Second

// Guard remembers when the claiming device was last heard. The listener
// goroutine refreshes it while the run loop reads it.
type Guard struct {
	mu       sync.Mutex
	lastSeen time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewGuard creates a Guard. now may be nil to use time.Now.
func NewGuard(ttl time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{ttl: ttl, now: now}
}

// NoteBeacon records a fresh claim.
func (g *Guard) NoteBeacon() {
	g.mu.Lock()
	g.lastSeen = g.now()
	g.mu.Unlock()
}

// IsPresent reports whether the claim is still fresh. A guard that has
// never heard a beacon reports absent.
func (g *Guard) IsPresent() bool {
	g.mu.Lock()
	last := g.lastSeen
	g.mu.Unlock()

	if last.IsZero() {
		return false
	}
	return g.now().Sub(last) < g.ttl
}

// LastSeen returns when the most recent beacon arrived (zero if never).
func (g *Guard) LastSeen() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}
