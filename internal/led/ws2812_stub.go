//go:build !linux

package led

import "errors"

// SPIStrip is not available on non-Linux platforms.
type SPIStrip struct{}

// OpenWS2812 returns an error on non-Linux platforms.
func OpenWS2812(path string, n int) (*SPIStrip, error) {
	return nil, errors.New("led: not supported on this platform (requires Linux spidev)")
}

// Len is not implemented on non-Linux platforms.
func (s *SPIStrip) Len() int { return 0 }

// SetPixel is not implemented on non-Linux platforms.
func (s *SPIStrip) SetPixel(i int, c Color) {}

// Fill is not implemented on non-Linux platforms.
func (s *SPIStrip) Fill(c Color) {}

// SetBrightness is not implemented on non-Linux platforms.
func (s *SPIStrip) SetBrightness(v uint8) {}

// Show is not implemented on non-Linux platforms.
func (s *SPIStrip) Show() error {
	return errors.New("led: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *SPIStrip) Close() error { return nil }
