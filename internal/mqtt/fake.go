package mqtt

// FakePublisher records published samples and events for test assertions.
type FakePublisher struct {
	// Samples contains all telemetry samples that were published.
	Samples []Sample

	// SamplePayloads contains the rendered telemetry JSON.
	SamplePayloads [][]byte

	// Events contains all lifecycle events that were published.
	Events []Event

	// EventPayloads contains the rendered event JSON.
	EventPayloads [][]byte

	// SampleError, if set, is returned by PublishSample.
	SampleError error

	// EventError, if set, is returned by PublishEvent.
	EventError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSample records the sample.
func (f *FakePublisher) PublishSample(s Sample) error {
	if f.SampleError != nil {
		return f.SampleError
	}

	f.Samples = append(f.Samples, s)

	payload, err := FormatSample(s)
	if err != nil {
		return err
	}
	f.SamplePayloads = append(f.SamplePayloads, payload)

	return nil
}

// PublishEvent records the event.
func (f *FakePublisher) PublishEvent(e Event) error {
	if f.EventError != nil {
		return f.EventError
	}

	f.Events = append(f.Events, e)

	payload, err := FormatEvent(e)
	if err != nil {
		return err
	}
	f.EventPayloads = append(f.EventPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded traffic.
func (f *FakePublisher) Reset() {
	f.Samples = nil
	f.SamplePayloads = nil
	f.Events = nil
	f.EventPayloads = nil
	f.Closed = false
	f.SampleError = nil
	f.EventError = nil
	f.Connected = false
}
