//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader samples the bus sense taps through the Linux GPIO character device.
type RealReader struct {
	chip    *gpiocdev.Chip
	sdaLine *gpiocdev.Line
	sclLine *gpiocdev.Line
}

// NewRealReader requests the two sense tap lines on the named chip.
func NewRealReader(chipName string, pinSDA, pinSCL int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Plain inputs, no bias: the host bus carries its own pull-ups and
	// must never be loaded by ours.
	sdaLine, err := chip.RequestLine(pinSDA, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request SDA pin %d: %w", pinSDA, err)
	}

	sclLine, err := chip.RequestLine(pinSCL, gpiocdev.AsInput)
	if err != nil {
		sdaLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request SCL pin %d: %w", pinSCL, err)
	}

	return &RealReader{
		chip:    chip,
		sdaLine: sdaLine,
		sclLine: sclLine,
	}, nil
}

// Read returns the line levels of SDA and SCL. true = high.
func (r *RealReader) Read() (bool, bool, error) {
	sdaRaw, err := r.sdaLine.Value()
	if err != nil {
		return false, false, fmt.Errorf("read SDA pin: %w", err)
	}

	sclRaw, err := r.sclLine.Value()
	if err != nil {
		return false, false, fmt.Errorf("read SCL pin: %w", err)
	}

	return sdaRaw != 0, sclRaw != 0, nil
}

// Close releases GPIO resources. The lines are already plain inputs, so no
// reconfiguration is needed; releasing them leaves the bus untouched.
func (r *RealReader) Close() error {
	var errs []error

	if r.sdaLine != nil {
		if err := r.sdaLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close SDA pin: %w", err))
		}
	}
	if r.sclLine != nil {
		if err := r.sclLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close SCL pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
