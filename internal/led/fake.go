package led

// FakeStrip records staged pixels and Show calls for tests.
type FakeStrip struct {
	Pixels     []Color
	Brightness uint8
	Shows      int
	ShowErr    error
	Closed     bool
}

// NewFakeStrip returns a fake chain of n pixels at full brightness.
func NewFakeStrip(n int) *FakeStrip {
	return &FakeStrip{Pixels: make([]Color, n), Brightness: 0xFF}
}

// Len is the pixel count.
func (f *FakeStrip) Len() int { return len(f.Pixels) }

// SetPixel stages pixel i. Out-of-range indexes are ignored.
func (f *FakeStrip) SetPixel(i int, c Color) {
	if i < 0 || i >= len(f.Pixels) {
		return
	}
	f.Pixels[i] = c
}

// Fill stages every pixel.
func (f *FakeStrip) Fill(c Color) {
	for i := range f.Pixels {
		f.Pixels[i] = c
	}
}

// SetBrightness records the requested brightness.
func (f *FakeStrip) SetBrightness(v uint8) { f.Brightness = v }

// Show counts the call, or returns the scripted error.
func (f *FakeStrip) Show() error {
	if f.ShowErr != nil {
		return f.ShowErr
	}
	f.Shows++
	return nil
}

// Close marks the strip closed.
func (f *FakeStrip) Close() error {
	f.Closed = true
	return nil
}
