// Package telemetry polls the host's management controller for CPU
// temperature and fan speed and renders them as LED bars. It reads at
// most one register per tick, round-robin with idle slots, so the guest
// never bursts on the host's bus.
package telemetry

import (
	"errors"
	"time"

	"github.com/mwheeler/xglow/internal/led"
)

// Channel names carried in results, status and published samples.
const (
	ChannelCPU = "cpu"
	ChannelFan = "fan"
)

var (
	// ErrGuarded means the presence guard is asserted; the bus was not
	// touched and the bars were blanked.
	ErrGuarded = errors.New("telemetry: suppressed by presence guard")

	// ErrDisabled means both channels are switched off.
	ErrDisabled = errors.New("telemetry: channels disabled")

	// ErrImplausible means the register answered but the value cannot
	// be real. Treated like a failed read.
	ErrImplausible = errors.New("telemetry: implausible sample")
)

// Result reports what one tick did.
type Result struct {
	// Step is the round-robin slot this tick ran, 0..3.
	Step int

	// Channel is the channel read this tick, empty on idle slots and
	// on ticks that never reached the bus.
	Channel string

	// Raw is the register byte, valid when Channel is set and Err is
	// nil or ErrImplausible.
	Raw uint8

	// Value is the smoothed channel value after this sample folded in.
	Value float64

	Err error

	// Recovered is set when this tick's failure tripped a peripheral
	// reinitialization; RecoverErr carries its outcome.
	Recovered  bool
	RecoverErr error
}

// Stats are cumulative tick counters.
type Stats struct {
	Ticks        uint64
	Reads        uint64
	ReadFailures uint64
	BusBusy      uint64
	Guarded      uint64
	Recoveries   uint64
}

// ChannelState is a channel's current view for status reporting.
type ChannelState struct {
	Name    string
	Enabled bool
	Raw     uint8
	Value   float64
	Sampled bool
}

// cpuCelsius validates a raw CPU temperature byte. The controller
// reports degrees directly; anything above 100 is a glitch, not a
// temperature the hardware would survive.
func cpuCelsius(raw uint8) (float64, error) {
	if raw > 100 {
		return 0, ErrImplausible
	}
	return float64(raw), nil
}

// fanPercent converts the raw fan byte. Some host firmware revisions
// report 0..50 instead of 0..100; values in that range are doubled.
func fanPercent(raw uint8) (float64, error) {
	v := float64(raw)
	if raw <= 50 {
		v *= 2
	}
	if v > 100 {
		v = 100
	}
	return v, nil
}

// CPURamp is the temperature gradient: green when cool, blending to
// yellow by 25°C, to red by 45°C. The bar fills toward 65°C.
func CPURamp() led.Ramp {
	return led.Ramp{
		LowMax: 25, MidMax: 45, Max: 65,
		Low: led.RGB(0x00FF00), Mid: led.RGB(0xFFFF00), High: led.RGB(0xFF0000),
	}
}

// FanRamp is the fan-speed gradient: blue when slow, yellow mid-range,
// orange at full tilt.
func FanRamp() led.Ramp {
	return led.Ramp{
		LowMax: 33, MidMax: 66, Max: 100,
		Low: led.RGB(0x0066FF), Mid: led.RGB(0xFFFF00), High: led.RGB(0xFF7A00),
	}
}

// PollDelay computes the next tick delay: the base interval plus a
// clock-derived jitter so the guest never phase-locks with a periodic
// host task.
func PollDelay(now time.Time, base, jitterMax time.Duration) time.Duration {
	maxMs := int64(jitterMax / time.Millisecond)
	if maxMs <= 0 {
		return base
	}
	j := (uint64(now.UnixMilli()) ^ 0xA5A5) % uint64(maxMs+1)
	return base + time.Duration(j)*time.Millisecond
}
