// Package gpio reads the SMBus line levels with hardware abstraction.
// The real implementation uses the Linux GPIO character device on two
// sense taps wired in parallel with the bus.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the instantaneous SDA/SCL line levels.
type Reader interface {
	// Read returns the line levels of SDA and SCL.
	// true = line high. An idle bus reads (true, true).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default sense tap pins (BCM numbering). These are free GPIOs wired to
// the bus pads, not the Pi's own I2C pins: the I2C peripheral owns those.
const (
	PinSDA = 17
	PinSCL = 27
)
