// Package ingest decodes and answers control datagrams. Light requests
// (discover, get) are answered on the spot. Heavy requests (preview,
// save, reset, setCounts) are never applied while the bus quiet window is
// active: the raw datagram is parked in the pending queue and answered
// when the run loop drains it.
package ingest

import (
	"bytes"
	"encoding/json"
	"log"
	"net/netip"

	"github.com/mwheeler/xglow/internal/config"
	"github.com/mwheeler/xglow/internal/pending"
)

// Plain-text discovery handshake. The prefix also leads broadcast
// announcements so trivial listeners can match on text alone.
const (
	DiscoverQuery  = "RGBDISC?"
	DiscoverPrefix = "RGBDISC! "
)

// Responder sends a reply datagram.
type Responder func(to netip.AddrPort, payload []byte)

// QuietChecker reports whether the bus quiet window is active.
// *quietgate.Gate satisfies it.
type QuietChecker interface {
	IsActive() bool
}

// Identity describes this device in discovery documents. IP and MAC are
// resolved per reply; addresses change under DHCP.
type Identity struct {
	Name    string
	Version string
	Port    int
	IP      func() string
	MAC     func() string
}

// Handler owns the control protocol. It runs on the run-loop goroutine.
type Handler struct {
	gate    QuietChecker
	queue   *pending.Queue
	store   *config.Store
	ident   Identity
	respond Responder
	logger  *log.Logger
}

// New wires a Handler. respond must not block for long; replies go out on
// the caller's goroutine.
func New(gate QuietChecker, queue *pending.Queue, store *config.Store, ident Identity, respond Responder, logger *log.Logger) *Handler {
	return &Handler{
		gate:    gate,
		queue:   queue,
		store:   store,
		ident:   ident,
		respond: respond,
		logger:  logger,
	}
}

// envelope is the decoded request. Cfg stays raw: it is the settings
// patch, validated and applied elsewhere.
type envelope struct {
	Op  string          `json:"op"`
	Key string          `json:"key"`
	Cfg json.RawMessage `json:"cfg"`
	C   []int           `json:"c"`
}

type reply struct {
	OK  bool            `json:"ok"`
	Op  string          `json:"op"`
	Cfg json.RawMessage `json:"cfg,omitempty"`
	Err string          `json:"err,omitempty"`
}

type discoverDoc struct {
	OK   bool   `json:"ok"`
	Op   string `json:"op"`
	Name string `json:"name"`
	Ver  string `json:"ver"`
	Port int    `json:"port"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
}

// HandlePacket processes one inbound datagram.
func (h *Handler) HandlePacket(data []byte, from netip.AddrPort) {
	body := bytes.TrimSpace(data)
	if len(body) == 0 {
		return
	}
	if body[0] != '{' {
		h.handleText(body, from)
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.replyErr(from, "parse", "bad json")
		return
	}
	if !h.keyOK(env.Key) {
		h.replyErr(from, "auth", "bad key")
		return
	}

	switch env.Op {
	case "":
		h.replyErr(from, "op", "missing op")
	case "discover":
		h.respond(from, h.DiscoverJSON())
	case "get":
		h.replyGet(from)
	case "preview", "save", "reset", "setCounts":
		if h.gate.IsActive() {
			h.logf("control: deferring %s during quiet window", env.Op)
			h.queue.EnqueueRawPacket(body, from)
			return
		}
		h.dispatchHeavy(&env, body, from)
	default:
		h.replyErr(from, "op", "unknown op")
	}
}

// Redeliver re-enters a datagram whose processing was deferred. Wired as
// the pending queue's raw-packet handler; the queue only drains the slot
// once the quiet window has lapsed.
func (h *Handler) Redeliver(pkt pending.Packet) {
	h.HandlePacket(pkt.Data, pkt.Addr)
}

// dispatchHeavy validates a state-changing request, parks the work in its
// queue slot and acknowledges. The actual application happens when the
// run loop drains the queue.
func (h *Handler) dispatchHeavy(env *envelope, body []byte, from netip.AddrPort) {
	switch env.Op {
	case "preview", "save":
		payload := []byte(env.Cfg)
		if len(payload) == 0 {
			// Fields inline: the whole request doubles as the patch.
			payload = body
		}
		if err := config.ValidatePatch(payload); err != nil {
			h.replyErr(from, env.Op, "bad cfg")
			return
		}
		h.queue.EnqueueConfig(payload, env.Op == "save")
		h.replyOk(from, env.Op)
	case "reset":
		h.queue.EnqueueReset()
		h.replyOk(from, "reset")
	case "setCounts":
		if len(env.C) < 4 {
			h.replyErr(from, "setCounts", "need 4 ints")
			return
		}
		h.queue.EnqueueCounts([4]int{env.C[0], env.C[1], env.C[2], env.C[3]})
		h.replyOk(from, "setCounts")
	}
}

func (h *Handler) handleText(body []byte, from netip.AddrPort) {
	if string(body) == DiscoverQuery {
		h.respond(from, append([]byte(DiscoverPrefix), h.DiscoverJSON()...))
		return
	}
	h.replyErr(from, "raw", "unknown text")
}

// keyOK accepts everything until a key is configured.
func (h *Handler) keyOK(key string) bool {
	want := h.store.Key()
	return want == "" || key == want
}

// DiscoverJSON renders the identity document sent in discovery replies
// and broadcast announcements.
func (h *Handler) DiscoverJSON() []byte {
	doc := discoverDoc{
		OK:   true,
		Op:   "discover",
		Name: h.ident.Name,
		Ver:  h.ident.Version,
		Port: h.ident.Port,
	}
	if h.ident.IP != nil {
		doc.IP = h.ident.IP()
	}
	if h.ident.MAC != nil {
		doc.MAC = h.ident.MAC()
	}
	data, _ := json.Marshal(doc)
	return data
}

func (h *Handler) replyGet(from netip.AddrPort) {
	cfg, err := h.store.JSON()
	if err != nil {
		h.replyErr(from, "get", "encode")
		return
	}
	h.send(from, reply{OK: true, Op: "get", Cfg: cfg})
}

func (h *Handler) replyOk(from netip.AddrPort, op string) {
	h.send(from, reply{OK: true, Op: op})
}

func (h *Handler) replyErr(from netip.AddrPort, op, msg string) {
	h.send(from, reply{OK: false, Op: op, Err: msg})
}

func (h *Handler) send(to netip.AddrPort, r reply) {
	data, _ := json.Marshal(r)
	h.respond(to, data)
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
