// Package config holds the user-adjustable lighting settings and their
// persistence. Control packets patch settings partially; every patch is
// validated against a scratch copy before anything is committed.
package config

import (
	"encoding/json"
	"fmt"
)

// MaxPixels caps the per-channel pixel count a patch may request.
const MaxPixels = 50

// Settings is the full user-facing configuration. JSON field names are
// part of the control protocol and must not change.
type Settings struct {
	Counts     [4]int  `json:"count"`
	Brightness uint8   `json:"brightness"`
	BaseColor  uint32  `json:"colorA"`
	Reverse    [4]bool `json:"reverse"`
	MasterOff  bool    `json:"masterOff"`
	EnableCPU  bool    `json:"enableCpu"`
	EnableFan  bool    `json:"enableFan"`
	PSK        string  `json:"psk,omitempty"`
}

// Defaults returns the factory configuration.
func Defaults() Settings {
	return Settings{
		Counts:     [4]int{50, 50, 50, 50},
		Brightness: 160,
		BaseColor:  0xFF0000,
		Reverse:    [4]bool{true, false, false, true},
		EnableCPU:  true,
		EnableFan:  true,
	}
}

// clamp forces loaded or patched values back into range.
func (s *Settings) clamp() {
	for i, c := range s.Counts {
		if c < 0 {
			s.Counts[i] = 0
		}
		if c > MaxPixels {
			s.Counts[i] = MaxPixels
		}
	}
	s.BaseColor &= 0xFFFFFF
}

// patch is the partial-update form. Every field is optional; array
// entries may be null to leave that index alone. Unknown keys are
// ignored so older clients keep working.
type patch struct {
	Counts     []*int  `json:"count"`
	Brightness *int    `json:"brightness"`
	BaseColor  *uint32 `json:"colorA"`
	Reverse    []*bool `json:"reverse"`
	MasterOff  *bool   `json:"masterOff"`
	EnableCPU  *bool   `json:"enableCpu"`
	EnableFan  *bool   `json:"enableFan"`
	PSK        *string `json:"psk"`
}

// ValidatePatch checks that data is a well-formed settings patch without
// applying it. A patch that mentions no known field is still valid.
func ValidatePatch(data []byte) error {
	var p patch
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("settings patch: %w", err)
	}
	return nil
}

// applyPatch overlays data onto s. The caller validates first; a decode
// error here leaves s unchanged.
func applyPatch(s *Settings, data []byte) error {
	var p patch
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("settings patch: %w", err)
	}

	for i := 0; i < len(s.Counts) && i < len(p.Counts); i++ {
		if p.Counts[i] != nil {
			s.Counts[i] = *p.Counts[i]
		}
	}
	if p.Brightness != nil {
		b := *p.Brightness
		if b < 0 {
			b = 0
		}
		if b > 255 {
			b = 255
		}
		s.Brightness = uint8(b)
	}
	if p.BaseColor != nil {
		s.BaseColor = *p.BaseColor
	}
	for i := 0; i < len(s.Reverse) && i < len(p.Reverse); i++ {
		if p.Reverse[i] != nil {
			s.Reverse[i] = *p.Reverse[i]
		}
	}
	if p.MasterOff != nil {
		s.MasterOff = *p.MasterOff
	}
	if p.EnableCPU != nil {
		s.EnableCPU = *p.EnableCPU
	}
	if p.EnableFan != nil {
		s.EnableFan = *p.EnableFan
	}
	if p.PSK != nil {
		s.PSK = *p.PSK
	}

	s.clamp()
	return nil
}
