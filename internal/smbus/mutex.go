package smbus

import (
	"sync"
	"time"
)

// Locker is the bus ownership capability. The default is BinaryLock, but a
// wider arbiter shared with other bus users can be injected at composition
// time without touching any call site. LastActivity covers transactions
// performed by *any* holder, which is what the minimum-spacing rule keys on.
type Locker interface {
	// Acquire claims the bus, waiting at most timeout. Returns false if
	// the claim could not be made in time.
	Acquire(timeout time.Duration) bool

	// Release gives the bus back. Releasing an unheld lock is a no-op.
	Release()

	// LastActivity returns when the bus last completed a transaction.
	// The zero time means no activity has been observed.
	LastActivity() time.Time

	// NoteActivity records a completed transaction.
	NoteActivity(now time.Time)
}

// BinaryLock is a single-owner lock with bounded acquire.
type BinaryLock struct {
	sem chan struct{}

	mu   sync.Mutex
	last time.Time
}

// NewBinaryLock returns an unheld lock.
func NewBinaryLock() *BinaryLock {
	return &BinaryLock{sem: make(chan struct{}, 1)}
}

// Acquire claims the lock, waiting at most timeout.
func (l *BinaryLock) Acquire(timeout time.Duration) bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.sem <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Release gives the lock back.
func (l *BinaryLock) Release() {
	select {
	case <-l.sem:
	default:
	}
}

// LastActivity returns the recorded completion time of the most recent
// transaction.
func (l *BinaryLock) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// NoteActivity records a completed transaction.
func (l *BinaryLock) NoteActivity(now time.Time) {
	l.mu.Lock()
	l.last = now
	l.mu.Unlock()
}

// SpacingOK reports whether enough time has passed since the last bus
// activity for a new transaction to start. No recorded activity counts as
// spaced.
func SpacingOK(l Locker, now time.Time, min time.Duration) bool {
	last := l.LastActivity()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= min
}
