// Package status provides a thread-safe status tracker for the daemon.
// It is read by the HTTP handlers and serialized into MQTT status events.
package status

import (
	"sync"
	"time"

	"github.com/mwheeler/xglow/internal/config"
	"github.com/mwheeler/xglow/internal/pending"
	"github.com/mwheeler/xglow/internal/telemetry"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	I2CDevice   string
	Broker      string
	HTTPAddr    string
	ControlPort int
	BeaconPort  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	StartTime time.Time
	Now       time.Time

	// Variant is the detected host board family ("unknown" until the
	// lazy probe has run).
	Variant string

	// Present is true while the claiming device's beacon is fresh.
	Present bool

	// StuckCount is the bus monitor's consecutive-failure count.
	StuckCount int

	CPU  telemetry.ChannelState
	Fan  telemetry.ChannelState
	Poll telemetry.Stats

	Queue pending.Stats

	MQTTConnected bool
	Settings      config.Settings
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Variant:   "unknown",
			Config:    cfg,
		},
	}
}

// UpdatePoll records the outcome of one poll tick. Called from the run
// loop after every telemetry.Tick.
func (t *Tracker) UpdatePoll(cpu, fan telemetry.ChannelState, stats telemetry.Stats, variant string, stuck int) {
	t.mu.Lock()
	t.snap.CPU = cpu
	t.snap.Fan = fan
	t.snap.Poll = stats
	t.snap.Variant = variant
	t.snap.StuckCount = stuck
	t.mu.Unlock()
}

// SetPresence records a presence transition.
func (t *Tracker) SetPresence(present bool) {
	t.mu.Lock()
	t.snap.Present = present
	t.mu.Unlock()
}

// SetQueueStats records the deferred-work drain counters.
func (t *Tracker) SetQueueStats(stats pending.Stats) {
	t.mu.Lock()
	t.snap.Queue = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetSettings records the applied settings document.
func (t *Tracker) SetSettings(s config.Settings) {
	t.mu.Lock()
	t.snap.Settings = s
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
