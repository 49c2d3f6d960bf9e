package led

import "testing"

func TestRGBRoundTrip(t *testing.T) {
	c := RGB(0xFF7A00)
	if c.R != 0xFF || c.G != 0x7A || c.B != 0x00 {
		t.Errorf("RGB(0xFF7A00) = %+v", c)
	}
	if got := c.Packed(); got != 0xFF7A00 {
		t.Errorf("Packed = %#06x, want 0xFF7A00", got)
	}
}

func TestScale(t *testing.T) {
	c := RGB(0xFF8000)
	if got := c.Scale(255); got != c {
		t.Errorf("Scale(255) = %+v, want unchanged", got)
	}
	if got := c.Scale(127); got.R != 127 || got.G != 64 {
		t.Errorf("Scale(127) = %+v, want R=127 G=64", got)
	}
	if got := c.Scale(0); got.R != 0 && got.G != 0 {
		t.Errorf("Scale(0) = %+v, want near black", got)
	}
}

func TestLerpEndpointsAndClamp(t *testing.T) {
	a, b := RGB(0x00FF00), RGB(0xFF0000)
	if got := Lerp(a, b, 0); got != a {
		t.Errorf("Lerp(t=0) = %+v, want %+v", got, a)
	}
	if got := Lerp(a, b, 1); got != b {
		t.Errorf("Lerp(t=1) = %+v, want %+v", got, b)
	}
	if got := Lerp(a, b, -3); got != a {
		t.Errorf("Lerp(t=-3) = %+v, want clamp to %+v", got, a)
	}
	if got := Lerp(a, b, 9); got != b {
		t.Errorf("Lerp(t=9) = %+v, want clamp to %+v", got, b)
	}
	mid := Lerp(a, b, 0.5)
	if mid.R != 127 || mid.G != 127 {
		t.Errorf("Lerp(t=0.5) = %+v, want R=127 G=127", mid)
	}
}

func TestRampRegions(t *testing.T) {
	// The CPU temperature ramp: green to yellow to red.
	r := Ramp{
		LowMax: 45, MidMax: 65, Max: 100,
		Low: RGB(0x00FF00), Mid: RGB(0xFFFF00), High: RGB(0xFF0000),
	}

	if got := r.At(0); got != r.Low {
		t.Errorf("At(0) = %+v, want low color", got)
	}
	if got := r.At(45); got != r.Mid {
		t.Errorf("At(LowMax) = %+v, want mid color", got)
	}
	if got := r.At(65); got != r.High {
		t.Errorf("At(MidMax) = %+v, want high color", got)
	}
	if got := r.At(99); got != r.High {
		t.Errorf("At(99) = %+v, want high color", got)
	}
	if got := r.At(-5); got != r.Low {
		t.Errorf("At(-5) = %+v, want clamp to low", got)
	}
	if got := r.At(1e9); got != r.High {
		t.Errorf("At(huge) = %+v, want clamp to high", got)
	}

	// Midpoint of the first region blends half way.
	half := r.At(22.5)
	if half.R != 127 || half.G != 255 {
		t.Errorf("At(22.5) = %+v, want R=127 G=255", half)
	}
}

func TestBarLen(t *testing.T) {
	cases := []struct {
		val, max float64
		n, want  int
	}{
		{0, 100, 10, 0},
		{100, 100, 10, 10},
		{50, 100, 10, 5},
		{54, 100, 10, 5},
		{55, 100, 10, 6}, // rounds to nearest
		{-12, 100, 10, 0},
		{250, 100, 10, 10},
		{40, 0, 10, 0},
		{40, 100, 0, 0},
	}
	for _, tc := range cases {
		if got := BarLen(tc.val, tc.max, tc.n); got != tc.want {
			t.Errorf("BarLen(%g, %g, %d) = %d, want %d", tc.val, tc.max, tc.n, got, tc.want)
		}
	}
}
