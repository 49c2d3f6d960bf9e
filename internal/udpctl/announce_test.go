package udpctl

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeBroadcaster struct {
	payloads []string
	ports    []uint16
	err      error
}

func (b *fakeBroadcaster) Broadcast(port uint16, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.payloads = append(b.payloads, string(payload))
	b.ports = append(b.ports, port)
	return nil
}

// announces counts bare (unprefixed) documents, one per announcement.
func (b *fakeBroadcaster) announces() int {
	n := 0
	for _, p := range b.payloads {
		if !strings.HasPrefix(p, "RGBDISC! ") {
			n++
		}
	}
	return n
}

type announceFixture struct {
	bcast *fakeBroadcaster
	ann   *Announcer
	clock time.Time
	ip    string
}

func newAnnounceFixture() *announceFixture {
	f := &announceFixture{
		bcast: &fakeBroadcaster{},
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ip:    "10.0.0.5",
	}
	f.ann = NewAnnouncer(AnnouncerConfig{
		Send:     f.bcast,
		Port:     7777,
		Document: func() []byte { return []byte(`{"name":"glow"}`) },
		Prefix:   "RGBDISC! ",
		LocalIP:  func() string { return f.ip },
	})
	f.ann.now = func() time.Time { return f.clock }
	return f
}

func (f *announceFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
	f.ann.tick()
}

func TestAnnounceSendsBothForms(t *testing.T) {
	f := newAnnounceFixture()
	f.ann.start()

	if len(f.bcast.payloads) != 2 {
		t.Fatalf("payloads = %v, want bare + prefixed", f.bcast.payloads)
	}
	if f.bcast.payloads[0] != `{"name":"glow"}` {
		t.Errorf("bare form = %q", f.bcast.payloads[0])
	}
	if f.bcast.payloads[1] != `RGBDISC! {"name":"glow"}` {
		t.Errorf("prefixed form = %q", f.bcast.payloads[1])
	}
	for _, port := range f.bcast.ports {
		if port != 7777 {
			t.Errorf("port = %d, want 7777", port)
		}
	}
}

func TestAnnounceCadence(t *testing.T) {
	f := newAnnounceFixture()
	f.ann.start()
	if got := f.bcast.announces(); got != 1 {
		t.Fatalf("boot announces = %d, want 1", got)
	}

	// Too early for the first fast repeat.
	f.advance(time.Second)
	if got := f.bcast.announces(); got != 1 {
		t.Fatalf("announces after 1s = %d, want 1", got)
	}

	// Three fast repeats at 3s spacing.
	for i := 0; i < 3; i++ {
		f.advance(2 * time.Second)
		f.advance(time.Second)
	}
	if got := f.bcast.announces(); got != 4 {
		t.Fatalf("announces after fast burst = %d, want 4", got)
	}

	// Now on the slow cadence: the last fast beat fired at +9s, so the
	// next is due at +24s.
	for i := 0; i < 13; i++ {
		f.advance(time.Second)
	}
	if got := f.bcast.announces(); got != 4 {
		t.Fatalf("announces before slow beat = %d, want 4", got)
	}
	f.advance(time.Second)
	if got := f.bcast.announces(); got != 5 {
		t.Fatalf("announces at slow beat = %d, want 5", got)
	}
}

func TestAnnounceIPChangeRestartsFastBurst(t *testing.T) {
	f := newAnnounceFixture()
	f.ann.start()

	// Exhaust the fast burst.
	for i := 0; i < 9; i++ {
		f.advance(time.Second)
	}
	base := f.bcast.announces()

	f.ip = "10.0.0.99"
	f.advance(time.Second)
	if got := f.bcast.announces(); got != base+1 {
		t.Fatalf("announces after ip change = %d, want %d", got, base+1)
	}

	// The burst restarted, so the next repeat is 3s out, not 15s.
	f.advance(3 * time.Second)
	if got := f.bcast.announces(); got != base+2 {
		t.Errorf("announces 3s after ip change = %d, want %d", got, base+2)
	}
}

func TestAnnounceWithoutPrefixSendsOnce(t *testing.T) {
	f := newAnnounceFixture()
	f.ann.cfg.Prefix = ""
	f.ann.start()

	if len(f.bcast.payloads) != 1 {
		t.Errorf("payloads = %v, want bare form only", f.bcast.payloads)
	}
}

func TestAnnounceSendFailureTolerated(t *testing.T) {
	f := newAnnounceFixture()
	f.bcast.err = errors.New("network is down")
	f.ann.start()

	// Next beat still fires once the error clears.
	f.bcast.err = nil
	for i := 0; i < 3; i++ {
		f.advance(time.Second)
	}
	if got := f.bcast.announces(); got != 1 {
		t.Errorf("announces after recovery = %d, want 1", got)
	}
}
