// Command xglowd drives addressable LED strips from telemetry it reads
// off the host's management bus, without disturbing the host: every bus
// touch waits for idle lines, honors the hardware arbitration lock, and
// backs off entirely while a quiet window or a presence beacon says the
// bus belongs to someone else. A UDP control protocol adjusts the strips
// at runtime and an HTTP page mirrors the daemon's state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mwheeler/xglow/internal/config"
	"github.com/mwheeler/xglow/internal/gpio"
	"github.com/mwheeler/xglow/internal/ingest"
	"github.com/mwheeler/xglow/internal/led"
	"github.com/mwheeler/xglow/internal/mqtt"
	"github.com/mwheeler/xglow/internal/pending"
	"github.com/mwheeler/xglow/internal/presence"
	"github.com/mwheeler/xglow/internal/profile"
	"github.com/mwheeler/xglow/internal/quietgate"
	"github.com/mwheeler/xglow/internal/smbus"
	"github.com/mwheeler/xglow/internal/status"
	"github.com/mwheeler/xglow/internal/telemetry"
	"github.com/mwheeler/xglow/internal/udpctl"
	"github.com/mwheeler/xglow/internal/web"
)

// version is reported in discovery documents and on the status page.
const version = "1.1.0"

// barBrightness is the fixed brightness of the two telemetry bars. The
// ambient channels follow the user settings instead.
const barBrightness = 160

// options carries the parsed command line.
type options struct {
	i2cDev     string
	gpioChip   string
	pinSDA     int
	pinSCL     int
	spiCPU     string
	spiFan     string
	spiAmbient [4]string
	cpuLeds    int
	fanLeds    int
	broker     string
	httpAddr   string
	ctlPort    int
	beaconPort int
	statePath  string
	profile    string
	frame      time.Duration
	printState bool
}

func main() {
	var opts options
	flag.StringVar(&opts.i2cDev, "i2c", "/dev/i2c-1", "I2C device on the monitored bus")
	flag.StringVar(&opts.gpioChip, "gpiochip", "gpiochip0", "GPIO chip with the bus sense lines")
	flag.IntVar(&opts.pinSDA, "pin-sda", gpio.PinSDA, "BCM pin sensing SDA")
	flag.IntVar(&opts.pinSCL, "pin-scl", gpio.PinSCL, "BCM pin sensing SCL")
	flag.StringVar(&opts.spiCPU, "spi-cpu", "/dev/spidev0.0", "SPI device for the CPU temperature bar")
	flag.StringVar(&opts.spiFan, "spi-fan", "/dev/spidev0.1", "SPI device for the fan speed bar")
	flag.StringVar(&opts.spiAmbient[0], "spi-ch1", "", "SPI device for ambient channel 1 (empty disables)")
	flag.StringVar(&opts.spiAmbient[1], "spi-ch2", "", "SPI device for ambient channel 2 (empty disables)")
	flag.StringVar(&opts.spiAmbient[2], "spi-ch3", "", "SPI device for ambient channel 3 (empty disables)")
	flag.StringVar(&opts.spiAmbient[3], "spi-ch4", "", "SPI device for ambient channel 4 (empty disables)")
	flag.IntVar(&opts.cpuLeds, "cpu-leds", 5, "pixel count of the CPU bar (1-10)")
	flag.IntVar(&opts.fanLeds, "fan-leds", 5, "pixel count of the fan bar (1-10)")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&opts.httpAddr, "http", ":8080", "HTTP status address (empty disables)")
	flag.IntVar(&opts.ctlPort, "ctl-port", udpctl.DefaultPort, "UDP control port")
	flag.IntVar(&opts.beaconPort, "beacon-port", presence.DefaultPort, "UDP presence beacon port")
	flag.StringVar(&opts.statePath, "state", "/var/lib/xglow/settings.json", "settings persistence path")
	flag.StringVar(&opts.profile, "profile", "", "YAML tuning profile (empty uses built-in defaults)")
	flag.DurationVar(&opts.frame, "frame", 20*time.Millisecond, "frame interval for deferred work and repaints")
	flag.BoolVar(&opts.printState, "print-state", false, "read the bus sense lines once, print them and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	prof, err := profile.Load(opts.profile)
	if err != nil {
		return err
	}

	lines, err := gpio.NewRealReader(opts.gpioChip, opts.pinSDA, opts.pinSCL)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	if opts.printState {
		sda, scl, err := lines.Read()
		if err != nil {
			return fmt.Errorf("read sense lines: %w", err)
		}
		state := "busy"
		if sda && scl {
			state = "idle"
		}
		fmt.Printf("SDA=%s SCL=%s (%s)\n", level(sda), level(scl), state)
		return nil
	}

	bus, err := smbus.OpenReal(opts.i2cDev)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	lock := smbus.NewBinaryLock()
	monitor := smbus.NewMonitor(lines, bus.Reinit, prof.IdleInterval(), prof.StuckThreshold)
	gate := quietgate.New(nil)
	reader := smbus.NewReader(bus, lock, monitor, gate, prof.ReaderConfig())

	store := config.NewStore(config.NewFileStore(opts.statePath), log.Default())

	cpuStrip, err := led.OpenWS2812(opts.spiCPU, clampBarLen(opts.cpuLeds))
	if err != nil {
		return fmt.Errorf("open cpu strip: %w", err)
	}
	defer cpuStrip.Close()
	fanStrip, err := led.OpenWS2812(opts.spiFan, clampBarLen(opts.fanLeds))
	if err != nil {
		return fmt.Errorf("open fan strip: %w", err)
	}
	defer fanStrip.Close()
	cpuBar := led.NewBar(cpuStrip, barBrightness)
	fanBar := led.NewBar(fanStrip, barBrightness)

	settings := store.Snapshot()
	var ambient []ambientChannel
	for i, dev := range opts.spiAmbient {
		if dev == "" {
			continue
		}
		strip, err := led.OpenWS2812(dev, config.MaxPixels)
		if err != nil {
			return fmt.Errorf("open ambient channel %d: %w", i+1, err)
		}
		defer strip.Close()
		ambient = append(ambient, ambientChannel{index: i, bar: led.NewBar(strip, settings.Brightness)})
	}
	repaintAmbient(ambient, settings)

	guard := presence.NewGuard(prof.BeaconTTL(), nil)
	beacons, err := presence.Listen(fmt.Sprintf(":%d", opts.beaconPort), guard, log.Default())
	if err != nil {
		return fmt.Errorf("listen for beacons: %w", err)
	}
	defer beacons.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      int64(prof.PollMs),
		I2CDevice:   opts.i2cDev,
		Broker:      opts.broker,
		HTTPAddr:    opts.httpAddr,
		ControlPort: opts.ctlPort,
		BeaconPort:  opts.beaconPort,
	})
	tracker.SetSettings(settings)

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("status page on %s", opts.httpAddr)
	}

	// A fresh client ID per boot keeps a restarted daemon from fighting
	// its own half-dead broker session.
	instanceID := uuid.NewString()
	publisher := mqtt.NewRealPublisher(opts.broker, "xglow-"+instanceID[:8], log.Default())
	defer publisher.Close()

	ctl, err := udpctl.Listen(fmt.Sprintf(":%d", opts.ctlPort), log.Default())
	if err != nil {
		return fmt.Errorf("listen for control: %w", err)
	}
	defer ctl.Close()

	app := &appliers{store: store, publisher: publisher, now: time.Now}
	var ing *ingest.Handler
	queue := pending.New(gate, pending.Handlers{
		ApplyConfig: app.applyConfig,
		ApplyCounts: app.applyCounts,
		Reset:       app.reset,
		RawPacket: func(pkt pending.Packet) {
			if ing != nil {
				ing.Redeliver(pkt)
			}
		},
	}, nil)

	ident := ingest.Identity{
		Name:    "xglow",
		Version: version,
		Port:    opts.ctlPort,
		IP:      udpctl.LocalIP,
		MAC: func() string {
			_, mac := udpctl.LocalIdentity()
			return mac
		},
	}
	ing = ingest.New(gate, queue, store, ident, func(to netip.AddrPort, payload []byte) {
		if err := ctl.Send(to, payload); err != nil {
			log.Printf("control reply to %s: %v", to, err)
		}
	}, log.Default())

	stopAnnounce := make(chan struct{})
	defer close(stopAnnounce)
	announcer := udpctl.NewAnnouncer(udpctl.AnnouncerConfig{
		Send:     ctl,
		Port:     uint16(opts.ctlPort),
		Document: ing.DiscoverJSON,
		Prefix:   ingest.DiscoverPrefix,
		LocalIP:  udpctl.LocalIP,
		Logger:   log.Default(),
	})
	go announcer.Run(stopAnnounce)

	poller := telemetry.New(telemetry.Config{
		SMCAddr:     uint16(prof.SMCAddr),
		CPUTempReg:  uint8(prof.CPUTempReg),
		FanSpeedReg: uint8(prof.FanReg),
		TickQuiet:   prof.TickQuiet(),
		ProbeQuiet:  prof.ProbeQuiet(),
		IdleTimeout: prof.IdleTimeout(),
		IdleStable:  prof.IdleStable,
		MinSpacing:  prof.MinSpacing(),
		Alpha:       prof.EMAAlpha,
	}, telemetry.Deps{
		Flags:   store,
		Guard:   guard,
		Gate:    gate,
		Monitor: monitor,
		Lock:    lock,
		Reader:  reader,
		CPUBar:  cpuBar,
		FanBar:  fanBar,
		Logger:  log.Default(),
	})

	log.Printf("started: instance=%s bus=%s poll=%dms control=:%d beacons=:%d broker=%s",
		instanceID, opts.i2cDev, prof.PollMs, opts.ctlPort, opts.beaconPort, opts.broker)

	snap := tracker.Snapshot()
	startup := mqtt.Event{
		Timestamp:  snap.Now,
		Name:       mqtt.EventStartup,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishEvent(startup); err != nil {
		log.Printf("publish startup event: %v", err)
	}

	frameTicker := time.NewTicker(opts.frame)
	defer frameTicker.Stop()
	pollTimer := time.NewTimer(telemetry.PollDelay(time.Now(), prof.PollInterval(), prof.PollJitterMax()))
	defer pollTimer.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		poller:      poller,
		queue:       queue,
		store:       store,
		guard:       guard,
		monitor:     monitor,
		reader:      reader,
		publisher:   publisher,
		mqttConn:    publisher,
		tracker:     tracker,
		ingest:      ing,
		ambient:     ambient,
		packets:     ctl.Packets(),
		frame:       frameTicker.C,
		pollC:       pollTimer.C,
		drainBudget: prof.DrainBudget(),
		sig:         sigCh,
		now:         time.Now,
		lastGen:     store.Generation(),
		resetPoll: func() {
			pollTimer.Reset(telemetry.PollDelay(time.Now(), prof.PollInterval(), prof.PollJitterMax()))
		},
	}
	return l.run()
}

// ambientChannel is one settings-driven strip. index selects its count and
// direction in the settings arrays.
type ambientChannel struct {
	index int
	bar   *led.Bar
}

// appliers receives drained control operations. Settings mutations happen
// here, on the run-loop goroutine; the LED repaint rides the store's
// generation counter on the next frame.
type appliers struct {
	store     *config.Store
	publisher mqtt.Publisher
	now       func() time.Time
}

func (a *appliers) applyConfig(payload []byte, save bool) {
	if err := a.store.Apply(payload, save); err != nil {
		log.Printf("config apply: %v", err)
		return
	}
	publishEvent(a.publisher, mqtt.Event{Timestamp: a.now(), Name: mqtt.EventConfigApplied})
}

func (a *appliers) applyCounts(counts [4]int) {
	if err := a.store.SetCounts(counts); err != nil {
		log.Printf("counts apply: %v", err)
		return
	}
	publishEvent(a.publisher, mqtt.Event{Timestamp: a.now(), Name: mqtt.EventConfigApplied, Reason: "counts"})
}

func (a *appliers) reset() {
	if err := a.store.Reset(); err != nil {
		log.Printf("reset: %v", err)
		return
	}
	publishEvent(a.publisher, mqtt.Event{Timestamp: a.now(), Name: mqtt.EventConfigApplied, Reason: "factory reset"})
}

// loop bundles the run loop's collaborators so tests can assemble it from
// fakes. All bus and LED state is owned by the goroutine running run.
type loop struct {
	poller      *telemetry.Poller
	queue       *pending.Queue
	store       *config.Store
	guard       *presence.Guard
	monitor     *smbus.Monitor
	reader      telemetry.RegisterReader
	publisher   mqtt.Publisher
	mqttConn    mqtt.ConnectionStatus // nil when the broker link has no status
	tracker     *status.Tracker
	ingest      *ingest.Handler
	ambient     []ambientChannel
	packets     <-chan udpctl.Packet
	frame       <-chan time.Time
	pollC       <-chan time.Time
	drainBudget time.Duration
	sig         <-chan os.Signal
	now         func() time.Time
	resetPoll   func() // re-arms the poll timer with fresh jitter; may be nil

	lastGen     uint64
	lastPresent bool
}

func (l *loop) run() error {
	for {
		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(signalName(s))
			return nil

		case <-l.frame:
			l.frameTick()

		case <-l.pollC:
			l.pollTick()
			if l.resetPoll != nil {
				l.resetPoll()
			}

		case pkt, ok := <-l.packets:
			if !ok {
				// Listener gone; the bus side keeps running.
				l.packets = nil
				continue
			}
			l.ingest.HandlePacket(pkt.Data, pkt.Addr)
		}
	}
}

// frameTick drains deferred work and repaints the ambient channels when
// the settings changed underneath them. It also edges presence events.
func (l *loop) frameTick() {
	if cat := l.queue.Drain(l.drainBudget); cat != pending.OpNone {
		l.tracker.SetQueueStats(l.queue.Stats())
	}

	if gen := l.store.Generation(); gen != l.lastGen {
		l.lastGen = gen
		s := l.store.Snapshot()
		repaintAmbient(l.ambient, s)
		l.tracker.SetSettings(s)
	}

	if present := l.guard.IsPresent(); present != l.lastPresent {
		l.lastPresent = present
		l.tracker.SetPresence(present)
		name := mqtt.EventPresenceOff
		if present {
			name = mqtt.EventPresenceOn
		}
		publishEvent(l.publisher, mqtt.Event{Timestamp: l.now(), Name: name})
	}
}

// pollTick runs one telemetry step and mirrors the outcome to MQTT and
// the status tracker.
func (l *loop) pollTick() {
	res := l.poller.Tick()

	if res.Recovered {
		reason := "stuck threshold reached"
		if res.RecoverErr != nil {
			reason = res.RecoverErr.Error()
		}
		publishEvent(l.publisher, mqtt.Event{Timestamp: l.now(), Name: mqtt.EventBusRecovery, Reason: reason})
	}

	if res.Err == nil && res.Channel != "" {
		sample := mqtt.Sample{
			Timestamp: l.now(),
			Channel:   res.Channel,
			Raw:       res.Raw,
			Value:     res.Value,
			Step:      res.Step,
		}
		if err := l.publisher.PublishSample(sample); err != nil {
			log.Printf("publish sample: %v", err)
		}
	}

	if l.mqttConn != nil {
		l.tracker.SetMQTTConnected(l.mqttConn.IsConnected())
	}
	l.tracker.UpdatePoll(l.poller.CPUState(), l.poller.FanState(), l.poller.Stats(),
		l.reader.Variant().String(), l.monitor.StuckCount())
}

func (l *loop) shutdown(reason string) {
	if l.mqttConn != nil {
		l.tracker.SetMQTTConnected(l.mqttConn.IsConnected())
	}
	snap := l.tracker.Snapshot()
	event := mqtt.Event{
		Timestamp:  l.now(),
		Name:       mqtt.EventShutdown,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, reason),
	}
	if err := l.publisher.PublishEvent(event); err != nil {
		log.Printf("publish shutdown event: %v", err)
	}
}

// repaintAmbient renders the settings-driven channels. The telemetry bars
// are painted by the poller instead.
func repaintAmbient(chs []ambientChannel, s config.Settings) {
	for _, ch := range chs {
		var err error
		if s.MasterOff {
			err = ch.bar.Blank()
		} else {
			ch.bar.SetBrightness(s.Brightness)
			color := led.RGB(s.BaseColor)
			if s.Reverse[ch.index] {
				err = ch.bar.DrawTail(s.Counts[ch.index], color)
			} else {
				err = ch.bar.Draw(s.Counts[ch.index], color)
			}
		}
		if err != nil {
			log.Printf("ambient channel %d: %v", ch.index+1, err)
		}
	}
}

func publishEvent(p mqtt.Publisher, e mqtt.Event) {
	if err := p.PublishEvent(e); err != nil {
		log.Printf("publish %s event: %v", e.Name, err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return s.String()
	}
}

func clampBarLen(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func level(high bool) string {
	if high {
		return "1"
	}
	return "0"
}
