package smbus

import "time"

// Monitor watches the bus lines for idleness and escalates to peripheral
// recovery when the bus never looks idle across consecutive polls. It is
// driven from the run loop only and needs no locking.
type Monitor struct {
	lines     LineReader
	reinit    func() error
	interval  time.Duration
	threshold int

	stuck int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewMonitor creates a Monitor. interval is the line sampling period,
// threshold the number of recorded failures that triggers recovery, and
// reinit the peripheral recovery hook (normally Transactor.Reinit).
func NewMonitor(lines LineReader, reinit func() error, interval time.Duration, threshold int) *Monitor {
	return &Monitor{
		lines:     lines,
		reinit:    reinit,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// WaitIdle polls the lines until stableNeeded consecutive samples read
// both high, or timeout passes. A single low sample restarts the count:
// the bus must be quiet, not merely momentarily high. Success clears the
// stuck counter.
func (m *Monitor) WaitIdle(timeout time.Duration, stableNeeded int) bool {
	start := m.now()
	stable := 0
	for m.now().Sub(start) < timeout {
		sda, scl, err := m.lines.Read()
		if err == nil && sda && scl {
			stable++
			if stable >= stableNeeded {
				m.stuck = 0
				return true
			}
		} else {
			stable = 0
		}
		m.sleep(m.interval)
	}
	return false
}

// RecordFailureAndMaybeRecover counts a failed idle wait. At the threshold
// it reinitializes the peripheral, clears the counter, and reports that a
// recovery fired. The reinit error, if any, is returned for logging; the
// counter clears either way so recovery cannot retrigger every tick.
func (m *Monitor) RecordFailureAndMaybeRecover() (recovered bool, err error) {
	m.stuck++
	if m.stuck < m.threshold {
		return false, nil
	}
	m.stuck = 0
	if m.reinit != nil {
		err = m.reinit()
	}
	return true, err
}

// StuckCount returns the current consecutive-failure count.
func (m *Monitor) StuckCount() int {
	return m.stuck
}
