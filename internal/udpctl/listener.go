// Package udpctl is the control-plane transport: one UDP socket carries
// inbound control datagrams, their replies, and the periodic discovery
// announcements. The socket is opened with SO_BROADCAST so announcements
// can target 255.255.255.255 without a second socket.
package udpctl

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"
)

// DefaultPort is the control protocol port.
const DefaultPort = 7777

// packetBacklog bounds how many datagrams may queue between the receive
// goroutine and the run loop.
const packetBacklog = 16

// Packet is one inbound control datagram.
type Packet struct {
	Data []byte
	Addr netip.AddrPort
}

// Server owns the control socket. Inbound datagrams are handed to the run
// loop over a buffered channel; when the loop falls behind, the oldest
// queued datagram is discarded in favor of the newest.
type Server struct {
	conn    *net.UDPConn
	packets chan Packet
	logger  *log.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
}

// Listen binds addr (e.g. ":7777") and starts the receive goroutine.
func Listen(addr string, logger *log.Logger) (*Server, error) {
	lc := net.ListenConfig{Control: broadcastControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen control on %q: %w", addr, err)
	}
	s := &Server{
		conn:    pc.(*net.UDPConn),
		packets: make(chan Packet, packetBacklog),
		logger:  logger,
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	defer close(s.packets)
	buf := make([]byte, 2048)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return // conn closed
		}
		pkt := Packet{Data: append([]byte(nil), buf[:n]...), Addr: from}
		select {
		case s.packets <- pkt:
		default:
			// Backlog full. serve is the only sender, so evicting one
			// entry guarantees room for the newest.
			select {
			case <-s.packets:
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
			default:
			}
			s.packets <- pkt
		}
	}
}

// Packets returns the inbound datagram channel. It is closed when the
// server shuts down.
func (s *Server) Packets() <-chan Packet {
	return s.packets
}

// Dropped returns how many datagrams were evicted from a full backlog.
func (s *Server) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Send writes payload to a single peer. Safe from any goroutine.
func (s *Server) Send(to netip.AddrPort, payload []byte) error {
	_, err := s.conn.WriteToUDPAddrPort(payload, to)
	return err
}

// Broadcast writes payload to the IPv4 broadcast address on port.
func (s *Server) Broadcast(port uint16, payload []byte) error {
	to := netip.AddrPortFrom(netip.AddrFrom4([4]byte{255, 255, 255, 255}), port)
	_, err := s.conn.WriteToUDPAddrPort(payload, to)
	return err
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the listener and waits for the receive goroutine to exit.
func (s *Server) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
