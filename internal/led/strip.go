package led

// Strip drives one chain of addressable pixels. Implementations keep a
// pixel buffer; nothing reaches the wire until Show.
type Strip interface {
	// Len is the number of pixels on the chain.
	Len() int

	// SetPixel stages pixel i. Out-of-range indexes are ignored.
	SetPixel(i int, c Color)

	// Fill stages every pixel.
	Fill(c Color)

	// SetBrightness scales all staged colors at render time.
	// 255 means full scale.
	SetBrightness(v uint8)

	// Show pushes the staged buffer to the chain.
	Show() error

	// Close releases the underlying device.
	Close() error
}
