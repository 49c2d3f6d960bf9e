package udpctl

import (
	"log"
	"time"
)

// Advertisement cadence: a burst of fast announcements right after boot
// (and again after an IP change), then a slow steady beat.
const (
	advertFast   = 3 * time.Second
	advertSlow   = 15 * time.Second
	advertBursts = 3

	// ipCheckEvery bounds how stale the IP-change detection may get; a
	// DHCP renew triggers a re-announce within this interval rather than
	// waiting out the slow cadence.
	ipCheckEvery = time.Second
)

// Broadcaster sends one payload to the broadcast address. *Server
// satisfies it.
type Broadcaster interface {
	Broadcast(port uint16, payload []byte) error
}

// AnnouncerConfig wires the announcer's collaborators.
type AnnouncerConfig struct {
	Send Broadcaster
	Port uint16

	// Document returns the current discovery JSON; it is re-rendered per
	// announcement so the address inside tracks interface changes.
	Document func() []byte

	// Prefix is prepended to a second copy of each announcement for
	// clients that match on a text marker instead of parsing JSON.
	Prefix string

	// LocalIP feeds the change detector. Nil disables re-announce on
	// address change.
	LocalIP func() string

	Logger *log.Logger
}

// Announcer periodically broadcasts the discovery document so controller
// apps find the device without probing the subnet.
type Announcer struct {
	cfg AnnouncerConfig

	lastIP     string
	burstsLeft int
	next       time.Time
	now        func() time.Time
}

// NewAnnouncer returns an announcer that has not yet sent anything.
func NewAnnouncer(cfg AnnouncerConfig) *Announcer {
	return &Announcer{cfg: cfg, burstsLeft: advertBursts, now: time.Now}
}

// Run announces immediately, then keeps the cadence until stop closes.
func (a *Announcer) Run(stop <-chan struct{}) {
	a.start()
	t := time.NewTicker(ipCheckEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			a.tick()
		}
	}
}

// start sends the boot announcement and arms the cadence.
func (a *Announcer) start() {
	a.lastIP = a.localIP()
	a.announce()
	a.next = a.now().Add(a.interval())
}

// tick runs one cadence check. Split from Run so tests can drive it with
// a fake clock.
func (a *Announcer) tick() {
	if ip := a.localIP(); ip != a.lastIP {
		a.lastIP = ip
		a.burstsLeft = advertBursts
		a.logf("control: address now %q, re-announcing", ip)
		a.announce()
		a.next = a.now().Add(a.interval())
		return
	}
	if a.now().Before(a.next) {
		return
	}
	if a.burstsLeft > 0 {
		a.burstsLeft--
	}
	a.announce()
	a.next = a.now().Add(a.interval())
}

func (a *Announcer) interval() time.Duration {
	if a.burstsLeft > 0 {
		return advertFast
	}
	return advertSlow
}

func (a *Announcer) localIP() string {
	if a.cfg.LocalIP == nil {
		return ""
	}
	return a.cfg.LocalIP()
}

// announce broadcasts the document bare and, when a prefix is configured,
// once more with the prefix. Send failures are logged and otherwise
// ignored; the next beat retries anyway.
func (a *Announcer) announce() {
	doc := a.cfg.Document()
	if err := a.cfg.Send.Broadcast(a.cfg.Port, doc); err != nil {
		a.logf("control: announce: %v", err)
		return
	}
	if a.cfg.Prefix != "" {
		payload := append([]byte(a.cfg.Prefix), doc...)
		if err := a.cfg.Send.Broadcast(a.cfg.Port, payload); err != nil {
			a.logf("control: announce: %v", err)
		}
	}
}

func (a *Announcer) logf(format string, args ...any) {
	if a.cfg.Logger != nil {
		a.cfg.Logger.Printf(format, args...)
	}
}
