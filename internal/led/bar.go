package led

// FailColor marks a failed read: dim red on the head pixel, the rest of
// the bar left showing its previous frame.
var FailColor = RGB(0x400000)

// Bar paints a value as a run of lit pixels from the head of a strip.
type Bar struct {
	strip Strip
}

// NewBar wraps strip, rendering at the given brightness.
func NewBar(strip Strip, brightness uint8) *Bar {
	strip.SetBrightness(brightness)
	return &Bar{strip: strip}
}

// Len is the pixel count of the underlying strip.
func (b *Bar) Len() int { return b.strip.Len() }

// SetBrightness changes the render brightness from the next Show on.
func (b *Bar) SetBrightness(v uint8) { b.strip.SetBrightness(v) }

// Draw lights pixels [0, lit) in c, clears the rest, and shows the frame.
func (b *Bar) Draw(lit int, c Color) error {
	n := b.strip.Len()
	if lit > n {
		lit = n
	}
	for i := 0; i < n; i++ {
		if i < lit {
			b.strip.SetPixel(i, c)
		} else {
			b.strip.SetPixel(i, Color{})
		}
	}
	return b.strip.Show()
}

// DrawTail is Draw with the lit run anchored at the tail of the strip,
// for chains wired to enter from the far end.
func (b *Bar) DrawTail(lit int, c Color) error {
	n := b.strip.Len()
	if lit > n {
		lit = n
	}
	for i := 0; i < n; i++ {
		if i >= n-lit {
			b.strip.SetPixel(i, c)
		} else {
			b.strip.SetPixel(i, Color{})
		}
	}
	return b.strip.Show()
}

// Blank clears every pixel.
func (b *Bar) Blank() error { return b.Draw(0, Color{}) }

// MarkFail paints the head pixel in FailColor without touching the rest,
// so the last good reading stays visible behind the marker.
func (b *Bar) MarkFail() error {
	b.strip.SetPixel(0, FailColor)
	return b.strip.Show()
}
