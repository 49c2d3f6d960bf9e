// Package pending coalesces heavy deferred operations into one slot per
// category. Enqueues are latest-wins: a newer operation silently replaces
// an unconsumed older one in the same slot. The frame loop drains at most
// one category per call so network-triggered work can never stall a frame
// for longer than a single operation.
package pending

import (
	"net/netip"
	"sync"
	"time"
)

// Category identifies which slot a drained operation came from.
type Category int

const (
	OpNone Category = iota
	OpRawPacket
	OpReset
	OpCounts
	OpConfig
)

// String returns the category name for logs and status output.
func (c Category) String() string {
	switch c {
	case OpRawPacket:
		return "raw-packet"
	case OpReset:
		return "reset"
	case OpCounts:
		return "counts"
	case OpConfig:
		return "config"
	default:
		return "none"
	}
}

// ConfigApply is a pending configuration payload.
type ConfigApply struct {
	Payload []byte
	Save    bool
}

// Packet is an inbound control datagram whose parsing was deferred.
type Packet struct {
	Data []byte
	Addr netip.AddrPort
}

// Handlers receives drained operations. A nil handler drops its category's
// operation when drained.
type Handlers struct {
	ApplyConfig func(payload []byte, save bool)
	ApplyCounts func(counts [4]int)
	Reset       func()
	RawPacket   func(pkt Packet)
}

// QuietChecker reports whether the bus quiet window is active.
// *quietgate.Gate satisfies it.
type QuietChecker interface {
	IsActive() bool
}

// Stats are cumulative drain counters.
type Stats struct {
	DrainedRaw    uint64
	DrainedReset  uint64
	DrainedCounts uint64
	DrainedConfig uint64
	Overruns      uint64
}

// Queue holds the four latest-wins slots.
type Queue struct {
	mu     sync.Mutex
	config *ConfigApply
	counts *[4]int
	reset  bool
	raw    *Packet
	stats  Stats

	quiet    QuietChecker
	handlers Handlers
	now      func() time.Time
}

// New creates an empty queue. quiet gates raw-packet draining; now may be
// nil to use time.Now.
func New(quiet QuietChecker, handlers Handlers, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{quiet: quiet, handlers: handlers, now: now}
}

// EnqueueConfig replaces any pending config payload. The payload is copied.
func (q *Queue) EnqueueConfig(payload []byte, save bool) {
	cp := append([]byte(nil), payload...)
	q.mu.Lock()
	q.config = &ConfigApply{Payload: cp, Save: save}
	q.mu.Unlock()
}

// EnqueueCounts replaces any pending per-channel count change.
func (q *Queue) EnqueueCounts(counts [4]int) {
	q.mu.Lock()
	q.counts = &counts
	q.mu.Unlock()
}

// EnqueueReset marks a factory reset as pending.
func (q *Queue) EnqueueReset() {
	q.mu.Lock()
	q.reset = true
	q.mu.Unlock()
}

// EnqueueRawPacket replaces any pending undecoded datagram. The data is
// copied so the caller may reuse its buffer.
func (q *Queue) EnqueueRawPacket(data []byte, addr netip.AddrPort) {
	cp := append([]byte(nil), data...)
	q.mu.Lock()
	q.raw = &Packet{Data: cp, Addr: addr}
	q.mu.Unlock()
}

// Empty reports whether all slots are vacant.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.raw == nil && !q.reset && q.counts == nil && q.config == nil
}

// Stats returns a copy of the cumulative drain counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Drain processes at most one pending category and returns which one ran
// (OpNone if nothing was pending). Priority: raw packet (skipped while the
// quiet window is active), reset, counts, config. The handler runs outside
// the queue lock, so it may enqueue further work. budget is not a
// preemption limit: the one category always completes, and the elapsed
// time is only compared against budget afterwards to count overruns.
func (q *Queue) Drain(budget time.Duration) Category {
	start := q.now()

	q.mu.Lock()
	ran := OpNone
	var run func()
	switch {
	case q.raw != nil && !q.quiet.IsActive():
		pkt := *q.raw
		q.raw = nil
		q.stats.DrainedRaw++
		ran = OpRawPacket
		if h := q.handlers.RawPacket; h != nil {
			run = func() { h(pkt) }
		}
	case q.reset:
		q.reset = false
		q.stats.DrainedReset++
		ran = OpReset
		if h := q.handlers.Reset; h != nil {
			run = h
		}
	case q.counts != nil:
		counts := *q.counts
		q.counts = nil
		q.stats.DrainedCounts++
		ran = OpCounts
		if h := q.handlers.ApplyCounts; h != nil {
			run = func() { h(counts) }
		}
	case q.config != nil:
		op := *q.config
		q.config = nil
		q.stats.DrainedConfig++
		ran = OpConfig
		if h := q.handlers.ApplyConfig; h != nil {
			run = func() { h(op.Payload, op.Save) }
		}
	}
	q.mu.Unlock()

	if run != nil {
		run()
	}

	if ran != OpNone && q.now().Sub(start) > budget {
		q.mu.Lock()
		q.stats.Overruns++
		q.mu.Unlock()
	}
	return ran
}
