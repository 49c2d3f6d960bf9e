package telemetry

import (
	"log"
	"time"

	"github.com/mwheeler/xglow/internal/led"
	"github.com/mwheeler/xglow/internal/smbus"
)

// Config holds the poller's bus and filter tuning.
type Config struct {
	// SMCAddr is the management controller's bus address; CPUTempReg
	// and FanSpeedReg the registers polled on it.
	SMCAddr     uint16
	CPUTempReg  uint8
	FanSpeedReg uint8

	// TickQuiet is the quiet window requested for a whole tick,
	// ProbeQuiet the one requested before the board-variant probe.
	TickQuiet  time.Duration
	ProbeQuiet time.Duration

	// IdleTimeout, IdleStable and MinSpacing parameterize the tick-level
	// bus checks; the per-attempt checks inside the reader carry their
	// own copies.
	IdleTimeout time.Duration
	IdleStable  int
	MinSpacing  time.Duration

	// Alpha is the EMA smoothing factor.
	Alpha float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		SMCAddr:     0x10,
		CPUTempReg:  0x09,
		FanSpeedReg: 0x10,
		TickQuiet:   4800 * time.Microsecond,
		ProbeQuiet:  2000 * time.Microsecond,
		IdleTimeout: 15 * time.Millisecond,
		IdleStable:  6,
		MinSpacing:  6 * time.Millisecond,
		Alpha:       0.35,
	}
}

// FlagSource reports which channels the user has switched on.
// *config.Store satisfies it.
type FlagSource interface {
	CPUEnabled() bool
	FanEnabled() bool
}

// PresenceSource reports whether a device owning the bus is attached.
// *presence.Guard satisfies it.
type PresenceSource interface {
	IsPresent() bool
}

// RegisterReader is the guarded read path. *smbus.Reader satisfies it.
type RegisterReader interface {
	ReadRegister(addr uint16, reg uint8) (uint8, error)
	Probe(addr uint16) bool
	SetVariant(smbus.Variant)
	Variant() smbus.Variant
}

// Deps are the collaborators a Poller drives. Logger may be nil;
// everything else is required.
type Deps struct {
	Flags   FlagSource
	Guard   PresenceSource
	Gate    smbus.QuietRequester
	Monitor *smbus.Monitor
	Lock    smbus.Locker
	Reader  RegisterReader
	CPUBar  *led.Bar
	FanBar  *led.Bar
	Logger  *log.Logger
}

// channel is one monitored quantity and its bar.
type channel struct {
	name    string
	reg     uint8
	enabled bool
	bar     *led.Bar
	ramp    led.Ramp
	convert func(uint8) (float64, error)

	smoothed float64
	raw      uint8
	sampled  bool
}

func (ch *channel) state() ChannelState {
	return ChannelState{
		Name:    ch.name,
		Enabled: ch.enabled,
		Raw:     ch.raw,
		Value:   ch.smoothed,
		Sampled: ch.sampled,
	}
}

// Poller owns the round-robin schedule and the per-channel smoothing
// state. It runs on the run-loop goroutine only.
type Poller struct {
	cfg     Config
	flags   FlagSource
	guard   PresenceSource
	gate    smbus.QuietRequester
	monitor *smbus.Monitor
	lock    smbus.Locker
	reader  RegisterReader
	logger  *log.Logger

	cpu      channel
	fan      channel
	step     int
	detected bool
	stats    Stats

	now func() time.Time
}

// New wires a Poller.
func New(cfg Config, d Deps) *Poller {
	p := &Poller{
		cfg:     cfg,
		flags:   d.Flags,
		guard:   d.Guard,
		gate:    d.Gate,
		monitor: d.Monitor,
		lock:    d.Lock,
		reader:  d.Reader,
		logger:  d.Logger,
		now:     time.Now,
	}
	p.cpu = channel{
		name:    ChannelCPU,
		reg:     cfg.CPUTempReg,
		enabled: d.Flags.CPUEnabled(),
		bar:     d.CPUBar,
		ramp:    CPURamp(),
		convert: cpuCelsius,
	}
	p.fan = channel{
		name:    ChannelFan,
		reg:     cfg.FanSpeedReg,
		enabled: d.Flags.FanEnabled(),
		bar:     d.FanBar,
		ramp:    FanRamp(),
		convert: fanPercent,
	}
	return p
}

// Tick runs one scheduling slot: at most one register read, at most one
// render per affected bar. The rotation only advances on ticks that get
// as far as the bus checks, so a long guarded stretch does not skew the
// channel interleave.
func (p *Poller) Tick() Result {
	p.stats.Ticks++

	p.mirrorFlags()

	if p.guard.IsPresent() {
		p.stats.Guarded++
		p.blankBoth()
		return Result{Step: p.step, Err: ErrGuarded}
	}

	if !p.cpu.enabled && !p.fan.enabled {
		p.blankBoth()
		return Result{Step: p.step, Err: ErrDisabled}
	}

	p.detectBoard()

	p.gate.RequestQuiet(p.cfg.TickQuiet)

	if !p.monitor.WaitIdle(p.cfg.IdleTimeout, p.cfg.IdleStable) ||
		!smbus.SpacingOK(p.lock, p.now(), p.cfg.MinSpacing) {
		tickErr := smbus.ErrBusBusy
		recovered, rerr := p.monitor.RecordFailureAndMaybeRecover()
		if recovered {
			tickErr = smbus.ErrBusStuck
			p.stats.Recoveries++
			p.logf("smbus: reinitialized after repeated busy polls (err=%v)", rerr)
		}
		p.stats.BusBusy++
		p.blankBoth()
		return Result{Step: p.step, Err: tickErr, Recovered: recovered, RecoverErr: rerr}
	}

	step := p.step
	p.step = (p.step + 1) & 3

	var ch *channel
	switch {
	case step == 0 && p.cpu.enabled:
		ch = &p.cpu
	case step == 1 && p.fan.enabled:
		ch = &p.fan
	default:
		// Idle slot: the bus gets a breather.
		return Result{Step: step}
	}

	raw, err := p.reader.ReadRegister(p.cfg.SMCAddr, ch.reg)
	if err != nil {
		p.stats.ReadFailures++
		p.markFailed()
		return Result{Step: step, Channel: ch.name, Err: err}
	}

	val, err := ch.convert(raw)
	if err != nil {
		p.stats.ReadFailures++
		p.markFailed()
		return Result{Step: step, Channel: ch.name, Raw: raw, Err: err}
	}

	ch.smoothed = p.cfg.Alpha*val + (1-p.cfg.Alpha)*ch.smoothed
	ch.raw = raw
	ch.sampled = true
	p.stats.Reads++

	lit := led.BarLen(ch.smoothed, ch.ramp.Max, ch.bar.Len())
	if err := ch.bar.Draw(lit, ch.ramp.At(ch.smoothed)); err != nil {
		p.logf("led: %s bar: %v", ch.name, err)
	}
	return Result{Step: step, Channel: ch.name, Raw: raw, Value: ch.smoothed}
}

// Stats returns the cumulative counters.
func (p *Poller) Stats() Stats { return p.stats }

// CPUState returns the CPU channel's current view.
func (p *Poller) CPUState() ChannelState { return p.cpu.state() }

// FanState returns the fan channel's current view.
func (p *Poller) FanState() ChannelState { return p.fan.state() }

// mirrorFlags pulls the user switches, blanking a bar once on its
// transition to disabled.
func (p *Poller) mirrorFlags() {
	if want := p.flags.CPUEnabled(); want != p.cpu.enabled {
		if !want {
			p.blank(&p.cpu)
		}
		p.cpu.enabled = want
	}
	if want := p.flags.FanEnabled(); want != p.fan.enabled {
		if !want {
			p.blank(&p.fan)
		}
		p.fan.enabled = want
	}
}

// detectBoard probes for the Xcalibur video encoder once, on the first
// tick that can do so safely. Until then reads run with the conservative
// defaults, so a never-idle bus costs nothing but the retry.
func (p *Poller) detectBoard() {
	if p.detected {
		return
	}
	p.gate.RequestQuiet(p.cfg.ProbeQuiet)
	if !p.monitor.WaitIdle(p.cfg.IdleTimeout, p.cfg.IdleStable) {
		return
	}
	if !smbus.SpacingOK(p.lock, p.now(), p.cfg.MinSpacing) {
		return
	}

	variant := smbus.VariantStandard
	if p.reader.Probe(smbus.XcaliburProbeAddr) {
		variant = smbus.VariantXcalibur
	}
	p.reader.SetVariant(variant)
	p.detected = true
	p.logf("smbus: board variant %s", variant)
}

// markFailed paints the failure marker on the enabled bars, leaving the
// last good frame visible behind it.
func (p *Poller) markFailed() {
	if p.cpu.enabled {
		if err := p.cpu.bar.MarkFail(); err != nil {
			p.logf("led: cpu bar: %v", err)
		}
	}
	if p.fan.enabled {
		if err := p.fan.bar.MarkFail(); err != nil {
			p.logf("led: fan bar: %v", err)
		}
	}
}

func (p *Poller) blankBoth() {
	p.blank(&p.cpu)
	p.blank(&p.fan)
}

func (p *Poller) blank(ch *channel) {
	if err := ch.bar.Blank(); err != nil {
		p.logf("led: %s bar: %v", ch.name, err)
	}
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
