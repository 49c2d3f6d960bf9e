// Package profile holds the bus timing knobs. The defaults are the values
// the daemon ships with; a YAML file can override any of them for boards
// with unusual bus behavior. Fields carry their unit in the name because
// that is how they are written in the file.
package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mwheeler/xglow/internal/smbus"
)

// Profile is the tuning document. Zero values are invalid; start from
// Default and overlay.
type Profile struct {
	// Poll cadence.
	PollMs          int `yaml:"poll_ms"`
	PollJitterMaxMs int `yaml:"poll_jitter_max_ms"`

	// Idle-line detection.
	IdleTimeoutMs  int `yaml:"idle_timeout_ms"`
	IdleStable     int `yaml:"idle_stable"`
	IdleIntervalUs int `yaml:"idle_interval_us"`

	// Arbitration.
	MinSpacingMs     int `yaml:"min_spacing_ms"`
	TickQuietUs      int `yaml:"tick_quiet_us"`
	AttemptQuietUs   int `yaml:"attempt_quiet_us"`
	ProbeQuietUs     int `yaml:"probe_quiet_us"`
	AcquireTimeoutMs int `yaml:"acquire_timeout_ms"`
	InterSampleUs    int `yaml:"inter_sample_us"`
	StuckThreshold   int `yaml:"stuck_threshold"`

	// Presence guard.
	BeaconTTLMs int `yaml:"beacon_ttl_ms"`

	// Deferred-work drain budget per frame.
	DrainBudgetUs int `yaml:"drain_budget_us"`

	// Sampling.
	Attempts           int     `yaml:"attempts"`
	EMAAlpha           float64 `yaml:"ema_alpha"`
	AllowRepeatedStart bool    `yaml:"allow_repeated_start"`

	// Monitored device. Register values are opaque bytes to this daemon.
	SMCAddr    int `yaml:"smc_addr"`
	CPUTempReg int `yaml:"cpu_temp_reg"`
	FanReg     int `yaml:"fan_speed_reg"`
}

// Default returns the shipped tuning.
func Default() Profile {
	return Profile{
		PollMs:             4000,
		PollJitterMaxMs:    250,
		IdleTimeoutMs:      15,
		IdleStable:         6,
		IdleIntervalUs:     140,
		MinSpacingMs:       6,
		TickQuietUs:        4800,
		AttemptQuietUs:     3200,
		ProbeQuietUs:       2000,
		AcquireTimeoutMs:   5,
		InterSampleUs:      180,
		StuckThreshold:     3,
		BeaconTTLMs:        15000,
		DrainBudgetUs:      1500,
		Attempts:           3,
		EMAAlpha:           0.35,
		AllowRepeatedStart: false,
		SMCAddr:            0x10,
		CPUTempReg:         0x09,
		FanReg:             0x10,
	}
}

// Load overlays the YAML file at path onto the defaults and validates the
// result. An empty path returns the defaults unchanged.
func Load(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Validate rejects values the scheduler cannot work with.
func (p Profile) Validate() error {
	switch {
	case p.PollMs < 100:
		return fmt.Errorf("poll_ms %d: below 100", p.PollMs)
	case p.PollJitterMaxMs < 0:
		return fmt.Errorf("poll_jitter_max_ms %d: negative", p.PollJitterMaxMs)
	case p.IdleTimeoutMs < 1:
		return fmt.Errorf("idle_timeout_ms %d: below 1", p.IdleTimeoutMs)
	case p.IdleStable < 1:
		return fmt.Errorf("idle_stable %d: below 1", p.IdleStable)
	case p.IdleIntervalUs < 1:
		return fmt.Errorf("idle_interval_us %d: below 1", p.IdleIntervalUs)
	case p.MinSpacingMs < 0:
		return fmt.Errorf("min_spacing_ms %d: negative", p.MinSpacingMs)
	case p.TickQuietUs < 0 || p.AttemptQuietUs < 0 || p.ProbeQuietUs < 0:
		return fmt.Errorf("quiet windows must not be negative")
	case p.AcquireTimeoutMs < 0:
		return fmt.Errorf("acquire_timeout_ms %d: negative", p.AcquireTimeoutMs)
	case p.InterSampleUs < 0:
		return fmt.Errorf("inter_sample_us %d: negative", p.InterSampleUs)
	case p.StuckThreshold < 1:
		return fmt.Errorf("stuck_threshold %d: below 1", p.StuckThreshold)
	case p.BeaconTTLMs < 1:
		return fmt.Errorf("beacon_ttl_ms %d: below 1", p.BeaconTTLMs)
	case p.DrainBudgetUs < 1:
		return fmt.Errorf("drain_budget_us %d: below 1", p.DrainBudgetUs)
	case p.Attempts < 1:
		return fmt.Errorf("attempts %d: below 1", p.Attempts)
	case p.EMAAlpha <= 0 || p.EMAAlpha > 1:
		return fmt.Errorf("ema_alpha %g: outside (0, 1]", p.EMAAlpha)
	case p.SMCAddr < 0 || p.SMCAddr > 0x7F:
		return fmt.Errorf("smc_addr 0x%02x: not a 7-bit address", p.SMCAddr)
	case p.CPUTempReg < 0 || p.CPUTempReg > 0xFF:
		return fmt.Errorf("cpu_temp_reg 0x%02x: not a byte", p.CPUTempReg)
	case p.FanReg < 0 || p.FanReg > 0xFF:
		return fmt.Errorf("fan_speed_reg 0x%02x: not a byte", p.FanReg)
	}
	return nil
}

// PollInterval is the base cadence between telemetry ticks.
func (p Profile) PollInterval() time.Duration {
	return time.Duration(p.PollMs) * time.Millisecond
}

// PollJitterMax is the upper bound on the per-tick cadence jitter.
func (p Profile) PollJitterMax() time.Duration {
	return time.Duration(p.PollJitterMaxMs) * time.Millisecond
}

// IdleInterval is the line sampling period inside WaitIdle.
func (p Profile) IdleInterval() time.Duration {
	return time.Duration(p.IdleIntervalUs) * time.Microsecond
}

// IdleTimeout bounds a single WaitIdle call.
func (p Profile) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMs) * time.Millisecond
}

// MinSpacing is the required gap since the last bus activity.
func (p Profile) MinSpacing() time.Duration {
	return time.Duration(p.MinSpacingMs) * time.Millisecond
}

// TickQuiet is the quiet window requested for a whole poll step.
func (p Profile) TickQuiet() time.Duration {
	return time.Duration(p.TickQuietUs) * time.Microsecond
}

// ProbeQuiet is the quiet window requested before the board-variant probe.
func (p Profile) ProbeQuiet() time.Duration {
	return time.Duration(p.ProbeQuietUs) * time.Microsecond
}

// BeaconTTL is how long one presence beacon keeps the guard asserted.
func (p Profile) BeaconTTL() time.Duration {
	return time.Duration(p.BeaconTTLMs) * time.Millisecond
}

// DrainBudget is the per-frame deferred-work budget.
func (p Profile) DrainBudget() time.Duration {
	return time.Duration(p.DrainBudgetUs) * time.Microsecond
}

// ReaderConfig assembles the smbus retry/arbitration tuning. The
// repeated-start style is appended to the strategy list only when allowed;
// the safer stop-style read always goes first.
func (p Profile) ReaderConfig() smbus.ReaderConfig {
	strategies := []smbus.Style{smbus.StyleStop}
	if p.AllowRepeatedStart {
		strategies = append(strategies, smbus.StyleRestart)
	}
	return smbus.ReaderConfig{
		Attempts:       p.Attempts,
		AttemptQuiet:   time.Duration(p.AttemptQuietUs) * time.Microsecond,
		IdleTimeout:    p.IdleTimeout(),
		IdleStable:     p.IdleStable,
		MinSpacing:     p.MinSpacing(),
		AcquireTimeout: time.Duration(p.AcquireTimeoutMs) * time.Millisecond,
		InterSample:    time.Duration(p.InterSampleUs) * time.Microsecond,
		Strategies:     strategies,
	}
}
