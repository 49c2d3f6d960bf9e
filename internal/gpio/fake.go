package gpio

import "errors"

// FakeReader is a test double that returns scripted line levels.
type FakeReader struct {
	// Samples contains scripted (SDA, SCL) levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// calls counts every Read, including repeats of the last sample
	calls int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single line-level reading. true = high.
type Sample struct {
	SDA bool
	SCL bool
}

// Idle is the sample an undisturbed bus produces.
var Idle = Sample{SDA: true, SCL: true}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	f.calls++

	return sample.SDA, sample.SCL, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.calls = 0
	f.Closed = false
}

// Reads reports how many times Read has been called.
func (f *FakeReader) Reads() int {
	return f.calls
}
