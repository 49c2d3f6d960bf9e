package led

// ws2812 pixels are driven over SPI MOSI by stretching each data bit to
// three SPI bits at 2.4MHz: a zero becomes 100, a one becomes 110. The
// high and low dwell times land inside the datasheet windows, so a color
// byte takes three wire bytes and a pixel nine (GRB order).

const (
	bytesPerPixel = 9

	// latchBytes of trailing zeros hold the line low long enough
	// (>280µs) to latch every chip revision.
	latchBytes = 100
)

// encodeFrame appends the wire form of pixels to dst and returns the
// extended slice. One zero byte leads the frame so the line settles low
// before the first symbol.
func encodeFrame(dst []byte, pixels []Color, brightness uint8) []byte {
	dst = append(dst, 0x00)
	for _, p := range pixels {
		s := p.Scale(brightness)
		for _, ch := range [3]uint8{s.G, s.R, s.B} {
			var sym uint32
			for bit := 7; bit >= 0; bit-- {
				sym <<= 3
				if ch&(1<<uint(bit)) != 0 {
					sym |= 0b110
				} else {
					sym |= 0b100
				}
			}
			dst = append(dst, byte(sym>>16), byte(sym>>8), byte(sym))
		}
	}
	for i := 0; i < latchBytes; i++ {
		dst = append(dst, 0x00)
	}
	return dst
}
