//go:build !linux

package smbus

import "errors"

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// OpenReal returns an error on non-Linux platforms.
func OpenReal(path string) (*RealBus, error) {
	return nil, errors.New("smbus: not supported on this platform (requires Linux i2c-dev)")
}

// StopRead is not implemented on non-Linux platforms.
func (b *RealBus) StopRead(addr uint16, reg uint8) (uint8, error) {
	return 0, errors.New("smbus: not supported")
}

// RestartRead is not implemented on non-Linux platforms.
func (b *RealBus) RestartRead(addr uint16, reg uint8) (uint8, error) {
	return 0, errors.New("smbus: not supported")
}

// Reinit is not implemented on non-Linux platforms.
func (b *RealBus) Reinit() error {
	return errors.New("smbus: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
