// Package smbus arbitrates single-byte register reads on the host's
// management bus. The host firmware owns the bus; this side is a guest
// that must never collide with it. Three stacked checks protect every
// transaction: the lines must scan idle, a minimum spacing since the last
// transaction must have elapsed, and the bus lock must be held. Reads are
// retried and median-filtered because the cheap line taps cannot rule out
// a transaction starting mid-read.
package smbus

import "time"

// Transactor performs raw register reads. Implementations are not safe for
// concurrent use; the run loop is the only caller.
type Transactor interface {
	// StopRead writes the register pointer, ends the transaction with a
	// stop condition, then reads one byte in a separate transaction.
	// The safest pattern for fussy host controllers.
	StopRead(addr uint16, reg uint8) (uint8, error)

	// RestartRead writes the register pointer and reads one byte within a
	// single transaction via a repeated start.
	RestartRead(addr uint16, reg uint8) (uint8, error)

	// Reinit tears down and reopens the bus peripheral. Used as the
	// stuck-bus recovery of last resort.
	Reinit() error

	// Close releases the bus handle.
	Close() error
}

// LineReader reports the instantaneous SDA/SCL levels. gpio.Reader
// satisfies it.
type LineReader interface {
	Read() (sda, scl bool, err error)
}

// QuietRequester extends the process-wide quiet window.
// *quietgate.Gate satisfies it.
type QuietRequester interface {
	RequestQuiet(d time.Duration)
}

// Style selects how a register read is performed on the wire.
type Style int

const (
	// StyleStop is the write-pointer, stop, separate-read pattern.
	StyleStop Style = iota
	// StyleRestart is the repeated-start pattern. Some host boards NAK or
	// wedge on it, so it is opt-in.
	StyleRestart
)

func (s Style) String() string {
	switch s {
	case StyleStop:
		return "stop"
	case StyleRestart:
		return "restart"
	default:
		return "unknown"
	}
}
