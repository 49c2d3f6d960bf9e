package presence

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"sync"
)

// BeaconMarker is the payload substring that identifies the claiming
// device's beacon. Anything else on the port is ignored.
const BeaconMarker = "TYPE_D_ID:6"

// DefaultPort is the UDP port beacons arrive on.
const DefaultPort = 50502

// Listener receives beacons and refreshes the guard.
type Listener struct {
	conn   *net.UDPConn
	guard  *Guard
	logger *log.Logger
	wg     sync.WaitGroup
}

// Listen binds addr (e.g. ":50502") and starts the receive goroutine.
func Listen(addr string, guard *Guard, logger *log.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve beacon addr %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen beacons on %q: %w", addr, err)
	}

	l := &Listener{conn: conn, guard: guard, logger: logger}
	l.wg.Add(1)
	go l.serve()
	return l, nil
}

func (l *Listener) serve() {
	defer l.wg.Done()
	buf := make([]byte, 512)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return // conn closed
		}
		if !bytes.Contains(buf[:n], []byte(BeaconMarker)) {
			continue
		}
		heard := l.guard.IsPresent()
		l.guard.NoteBeacon()
		if !heard && l.logger != nil {
			l.logger.Printf("presence beacon heard, suspending bus access")
		}
	}
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close stops the listener and waits for the receive goroutine to exit.
func (l *Listener) Close() error {
	err := l.conn.Close()
	l.wg.Wait()
	return err
}
