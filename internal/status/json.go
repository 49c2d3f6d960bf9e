package status

import (
	"encoding/json"
	"time"

	"github.com/mwheeler/xglow/internal/config"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Variant       string          `json:"variant"`
	Present       bool            `json:"present"`
	StuckCount    int             `json:"stuck_count"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	CPU           ChannelJSON     `json:"cpu"`
	Fan           ChannelJSON     `json:"fan"`
	Poll          PollJSON        `json:"poll"`
	Queue         QueueJSON       `json:"queue"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Settings      config.Settings `json:"settings"`
	Config        ConfigJSON      `json:"config"`
}

// ChannelJSON is one telemetry channel's view.
type ChannelJSON struct {
	Enabled bool    `json:"enabled"`
	Raw     uint8   `json:"raw"`
	Value   float64 `json:"value"`
	Sampled bool    `json:"sampled"`
}

// PollJSON carries the cumulative poll counters.
type PollJSON struct {
	Ticks        uint64 `json:"ticks"`
	Reads        uint64 `json:"reads"`
	ReadFailures uint64 `json:"read_failures"`
	BusBusy      uint64 `json:"bus_busy"`
	Guarded      uint64 `json:"guarded"`
	Recoveries   uint64 `json:"recoveries"`
}

// QueueJSON carries the deferred-work drain counters.
type QueueJSON struct {
	DrainedRaw    uint64 `json:"drained_raw"`
	DrainedReset  uint64 `json:"drained_reset"`
	DrainedCounts uint64 `json:"drained_counts"`
	DrainedConfig uint64 `json:"drained_config"`
	Overruns      uint64 `json:"overruns"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	I2CDevice   string `json:"i2c_device"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	ControlPort int    `json:"control_port"`
	BeaconPort  int    `json:"beacon_port"`
}

func buildInner(snap Snapshot) StatusInner {
	// The key authorizes control writes; it must not leave over HTTP or
	// the event topic.
	settings := snap.Settings
	settings.PSK = ""

	return StatusInner{
		Variant:       snap.Variant,
		Present:       snap.Present,
		StuckCount:    snap.StuckCount,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		CPU: ChannelJSON{
			Enabled: snap.CPU.Enabled,
			Raw:     snap.CPU.Raw,
			Value:   snap.CPU.Value,
			Sampled: snap.CPU.Sampled,
		},
		Fan: ChannelJSON{
			Enabled: snap.Fan.Enabled,
			Raw:     snap.Fan.Raw,
			Value:   snap.Fan.Value,
			Sampled: snap.Fan.Sampled,
		},
		Poll: PollJSON{
			Ticks:        snap.Poll.Ticks,
			Reads:        snap.Poll.Reads,
			ReadFailures: snap.Poll.ReadFailures,
			BusBusy:      snap.Poll.BusBusy,
			Guarded:      snap.Poll.Guarded,
			Recoveries:   snap.Poll.Recoveries,
		},
		Queue: QueueJSON{
			DrainedRaw:    snap.Queue.DrainedRaw,
			DrainedReset:  snap.Queue.DrainedReset,
			DrainedCounts: snap.Queue.DrainedCounts,
			DrainedConfig: snap.Queue.DrainedConfig,
			Overruns:      snap.Queue.Overruns,
		},
		MQTT:     MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Settings: settings,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			I2CDevice:   snap.Config.I2CDevice,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			ControlPort: snap.Config.ControlPort,
			BeaconPort:  snap.Config.BeaconPort,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT event payload.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
