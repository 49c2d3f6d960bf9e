package smbus

import (
	"testing"
	"time"
)

func TestBinaryLockAcquireRelease(t *testing.T) {
	l := NewBinaryLock()

	if !l.Acquire(0) {
		t.Fatal("fresh lock should acquire immediately")
	}
	if l.Acquire(time.Millisecond) {
		t.Fatal("held lock should refuse a second acquire")
	}

	l.Release()
	if !l.Acquire(0) {
		t.Fatal("released lock should acquire again")
	}
}

func TestBinaryLockBoundedWait(t *testing.T) {
	l := NewBinaryLock()
	l.Acquire(0)

	done := make(chan bool, 1)
	go func() {
		done <- l.Acquire(200 * time.Millisecond)
	}()

	time.Sleep(5 * time.Millisecond)
	l.Release()

	if !<-done {
		t.Error("waiter should obtain the lock once released")
	}
}

func TestBinaryLockReleaseUnheld(t *testing.T) {
	l := NewBinaryLock()
	l.Release() // must not wedge the lock
	if !l.Acquire(0) {
		t.Error("lock unusable after releasing while unheld")
	}
}

func TestLastActivity(t *testing.T) {
	l := NewBinaryLock()

	if !l.LastActivity().IsZero() {
		t.Error("fresh lock should report zero activity")
	}

	stamp := time.Unix(5000, 0)
	l.NoteActivity(stamp)
	if !l.LastActivity().Equal(stamp) {
		t.Errorf("LastActivity = %v, want %v", l.LastActivity(), stamp)
	}
}

func TestSpacingOK(t *testing.T) {
	l := NewBinaryLock()
	now := time.Unix(5000, 0)

	// No recorded activity counts as spaced.
	if !SpacingOK(l, now, 6*time.Millisecond) {
		t.Error("zero activity should pass the spacing check")
	}

	l.NoteActivity(now)
	if SpacingOK(l, now.Add(3*time.Millisecond), 6*time.Millisecond) {
		t.Error("3ms after activity should fail a 6ms spacing check")
	}
	if !SpacingOK(l, now.Add(6*time.Millisecond), 6*time.Millisecond) {
		t.Error("exactly the minimum gap should pass")
	}
}
