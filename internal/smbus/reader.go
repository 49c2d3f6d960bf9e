package smbus

import "time"

// ReaderConfig holds the arbitration and retry knobs.
type ReaderConfig struct {
	// Attempts per poll; successful samples feed the median filter.
	Attempts int

	// AttemptQuiet is the quiet window requested before each attempt.
	AttemptQuiet time.Duration

	// IdleTimeout and IdleStable parameterize the idle-line check.
	IdleTimeout time.Duration
	IdleStable  int

	// MinSpacing is the required gap since the last bus activity,
	// whoever caused it.
	MinSpacing time.Duration

	// AcquireTimeout bounds the bus lock wait.
	AcquireTimeout time.Duration

	// InterSample is the pause after each successful sample.
	InterSample time.Duration

	// Strategies is the ordered list of wire patterns tried per sample.
	// Restart is skipped on Xcalibur regardless of what is listed here.
	Strategies []Style
}

// DefaultReaderConfig returns the production tuning.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Attempts:       3,
		AttemptQuiet:   3200 * time.Microsecond,
		IdleTimeout:    15 * time.Millisecond,
		IdleStable:     6,
		MinSpacing:     6 * time.Millisecond,
		AcquireTimeout: 5 * time.Millisecond,
		InterSample:    180 * time.Microsecond,
		Strategies:     []Style{StyleStop},
	}
}

// Reader layers the quiet-window, idle, spacing and ownership checks
// around raw transactions and filters glitches with a median window.
type Reader struct {
	bus     Transactor
	lock    Locker
	monitor *Monitor
	gate    QuietRequester
	cfg     ReaderConfig
	variant Variant

	now   func() time.Time
	sleep func(time.Duration)
}

// NewReader wires a Reader. Zero-valued config fields are normalized to
// usable minimums rather than rejected.
func NewReader(bus Transactor, lock Locker, monitor *Monitor, gate QuietRequester, cfg ReaderConfig) *Reader {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []Style{StyleStop}
	}
	return &Reader{
		bus:     bus,
		lock:    lock,
		monitor: monitor,
		gate:    gate,
		cfg:     cfg,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SetVariant records the detected board family.
func (r *Reader) SetVariant(v Variant) { r.variant = v }

// Variant returns the recorded board family.
func (r *Reader) Variant() Variant { return r.variant }

// ReadRegister samples one register. Up to Attempts samples are collected
// (exactly one on Xcalibur, whose controller dislikes bursts) and combined
// through the median filter. Returns ErrReadFailed when no attempt
// produced a byte.
func (r *Reader) ReadRegister(addr uint16, reg uint8) (uint8, error) {
	attempts := r.cfg.Attempts
	if r.variant == VariantXcalibur {
		attempts = 1
	}

	var samples []uint8
	for i := 0; i < attempts; i++ {
		if v, ok := r.readOnce(addr, reg); ok {
			samples = append(samples, v)
			r.sleep(r.cfg.InterSample)
		}
	}
	return median(samples)
}

// Probe performs one gated stop-style read of register 0 and reports
// whether a device ACKed at addr. Used for board-variant detection.
func (r *Reader) Probe(addr uint16) bool {
	_, ok := r.attempt(StyleStop, addr, 0x00)
	return ok
}

func (r *Reader) readOnce(addr uint16, reg uint8) (uint8, bool) {
	for _, style := range r.cfg.Strategies {
		if style == StyleRestart && r.variant == VariantXcalibur {
			continue
		}
		if v, ok := r.attempt(style, addr, reg); ok {
			return v, true
		}
	}
	return 0, false
}

// attempt runs the full guard stack for a single transaction: extend the
// quiet window, confirm the lines idle, confirm spacing since the last
// activity, claim the lock, and only then touch the bus.
func (r *Reader) attempt(style Style, addr uint16, reg uint8) (uint8, bool) {
	r.gate.RequestQuiet(r.cfg.AttemptQuiet)

	if !r.monitor.WaitIdle(r.cfg.IdleTimeout, r.cfg.IdleStable) {
		return 0, false
	}
	if !SpacingOK(r.lock, r.now(), r.cfg.MinSpacing) {
		return 0, false
	}
	if !r.lock.Acquire(r.cfg.AcquireTimeout) {
		return 0, false
	}
	defer r.lock.Release()

	var v uint8
	var err error
	switch style {
	case StyleRestart:
		v, err = r.bus.RestartRead(addr, reg)
	default:
		v, err = r.bus.StopRead(addr, reg)
	}
	if err != nil {
		return 0, false
	}

	r.lock.NoteActivity(r.now())
	return v, true
}

// median combines up to three samples: none fails the read, one passes
// through, two average, three clamp the last between the first two.
func median(s []uint8) (uint8, error) {
	switch len(s) {
	case 0:
		return 0, ErrReadFailed
	case 1:
		return s[0], nil
	case 2:
		return uint8((uint16(s[0]) + uint16(s[1])) / 2), nil
	default:
		lo, hi := s[0], s[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		v := s[2]
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		return v, nil
	}
}
