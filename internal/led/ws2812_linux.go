//go:build linux

package led

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl requests (linux/spi/spidev.h).
const (
	spiWrMode        = 0x40016b01
	spiWrBitsPerWord = 0x40016b03
	spiWrMaxSpeedHz  = 0x40046b04
)

// ws2812Hz makes each SPI bit a third of a ws2812 bit.
const ws2812Hz = 2_400_000

// SPIStrip renders ws2812 pixels through a spidev node. Only MOSI is
// wired to the chain; clock and chip-select go nowhere.
type SPIStrip struct {
	file       *os.File
	path       string
	pixels     []Color
	brightness uint8
	frame      []byte
}

// OpenWS2812 opens a spidev node such as /dev/spidev0.0 driving n pixels.
func OpenWS2812(path string, n int) (*SPIStrip, error) {
	if n < 1 {
		return nil, fmt.Errorf("open %s: pixel count %d", path, n)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &SPIStrip{
		file:       f,
		path:       path,
		pixels:     make([]Color, n),
		brightness: 0xFF,
		frame:      make([]byte, 0, 1+n*bytesPerPixel+latchBytes),
	}
	if err := s.configure(); err != nil {
		f.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	return s, nil
}

func (s *SPIStrip) configure() error {
	if err := s.ioctlU8(spiWrMode, 0); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := s.ioctlU8(spiWrBitsPerWord, 8); err != nil {
		return fmt.Errorf("set bits per word: %w", err)
	}
	if err := s.ioctlU32(spiWrMaxSpeedHz, ws2812Hz); err != nil {
		return fmt.Errorf("set speed: %w", err)
	}
	return nil
}

func (s *SPIStrip) ioctlU8(req uintptr, val uint8) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.file.Fd(), req, uintptr(unsafe.Pointer(&val)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *SPIStrip) ioctlU32(req uintptr, val uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.file.Fd(), req, uintptr(unsafe.Pointer(&val)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Len is the pixel count of the chain.
func (s *SPIStrip) Len() int { return len(s.pixels) }

// SetPixel stages pixel i. Out-of-range indexes are ignored.
func (s *SPIStrip) SetPixel(i int, c Color) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = c
}

// Fill stages every pixel.
func (s *SPIStrip) Fill(c Color) {
	for i := range s.pixels {
		s.pixels[i] = c
	}
}

// SetBrightness scales staged colors at render time.
func (s *SPIStrip) SetBrightness(v uint8) { s.brightness = v }

// Show encodes the buffer and pushes it out in a single write. One write
// keeps the symbol stream gapless, which the pixels require.
func (s *SPIStrip) Show() error {
	s.frame = encodeFrame(s.frame[:0], s.pixels, s.brightness)
	if _, err := s.file.Write(s.frame); err != nil {
		return fmt.Errorf("show %s: %w", s.path, err)
	}
	return nil
}

// Close releases the device node.
func (s *SPIStrip) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
