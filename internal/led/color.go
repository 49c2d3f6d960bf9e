// Package led drives the addressable LED channels. Strips are abstracted
// behind an interface so the poller and renderer work identically against
// real SPI hardware and test fakes.
package led

// Color is a 24-bit RGB value.
type Color struct {
	R, G, B uint8
}

// RGB unpacks a 0xRRGGBB value.
func RGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Packed returns the 0xRRGGBB form.
func (c Color) Packed() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Scale dims the color by a 0..255 brightness factor.
func (c Color) Scale(brightness uint8) Color {
	f := uint32(brightness) + 1
	return Color{
		R: uint8(uint32(c.R) * f >> 8),
		G: uint8(uint32(c.G) * f >> 8),
		B: uint8(uint32(c.B) * f >> 8),
	}
}

// Lerp interpolates between a and b; t is clamped to [0, 1].
func Lerp(a, b Color, t float64) Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
	}
}

// Ramp maps a value onto a three-color gradient split at two thresholds:
// Low..Mid over [0, LowMax], Mid..High over (LowMax, MidMax], solid High
// above. Values are clamped to [0, Max].
type Ramp struct {
	LowMax, MidMax, Max float64
	Low, Mid, High      Color
}

// At returns the ramp color for v.
func (r Ramp) At(v float64) Color {
	if v < 0 {
		v = 0
	}
	if v > r.Max {
		v = r.Max
	}
	switch {
	case v <= r.LowMax:
		t := 0.0
		if r.LowMax > 0 {
			t = v / r.LowMax
		}
		return Lerp(r.Low, r.Mid, t)
	case v <= r.MidMax:
		t := 1.0
		if span := r.MidMax - r.LowMax; span > 0 {
			t = (v - r.LowMax) / span
		}
		return Lerp(r.Mid, r.High, t)
	default:
		return r.High
	}
}

// BarLen converts a value into a lit-pixel count over n pixels, rounding
// to nearest.
func BarLen(val, max float64, n int) int {
	if max <= 0 || n <= 0 {
		return 0
	}
	f := val / max
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	lit := int(f*float64(n) + 0.5)
	if lit > n {
		lit = n
	}
	return lit
}
