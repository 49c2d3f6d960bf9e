package ingest

import (
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/mwheeler/xglow/internal/config"
	"github.com/mwheeler/xglow/internal/pending"
)

type stubGate struct{ active bool }

func (g *stubGate) IsActive() bool { return g.active }

type sentReply struct {
	to      netip.AddrPort
	payload []byte
}

type fixture struct {
	gate    *stubGate
	queue   *pending.Queue
	store   *config.Store
	handler *Handler
	replies []sentReply

	appliedPayloads [][]byte
	appliedSaves    []bool
	appliedCounts   [][4]int
	resets          int
}

var testPeer = netip.MustParseAddrPort("192.168.1.50:40000")

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{gate: &stubGate{}}
	f.store = config.NewStore(nil, nil)
	f.queue = pending.New(f.gate, pending.Handlers{
		ApplyConfig: func(payload []byte, save bool) {
			f.appliedPayloads = append(f.appliedPayloads, payload)
			f.appliedSaves = append(f.appliedSaves, save)
		},
		ApplyCounts: func(c [4]int) { f.appliedCounts = append(f.appliedCounts, c) },
		Reset:       func() { f.resets++ },
		RawPacket:   func(pkt pending.Packet) { f.handler.Redeliver(pkt) },
	}, nil)

	ident := Identity{
		Name:    "xglow",
		Version: "1.1.0",
		Port:    7777,
		IP:      func() string { return "192.168.1.77" },
		MAC:     func() string { return "AA:BB:CC:DD:EE:FF" },
	}
	f.handler = New(f.gate, f.queue, f.store, ident, func(to netip.AddrPort, payload []byte) {
		f.replies = append(f.replies, sentReply{to: to, payload: payload})
	}, nil)
	return f
}

func (f *fixture) handle(t *testing.T, req string) {
	t.Helper()
	f.handler.HandlePacket([]byte(req), testPeer)
}

// lastReply decodes the most recent reply as a generic JSON object.
func (f *fixture) lastReply(t *testing.T) map[string]any {
	t.Helper()
	if len(f.replies) == 0 {
		t.Fatal("no reply sent")
	}
	var m map[string]any
	if err := json.Unmarshal(f.replies[len(f.replies)-1].payload, &m); err != nil {
		t.Fatalf("reply not JSON: %v", err)
	}
	return m
}

func (f *fixture) wantReply(t *testing.T, ok bool, op string) map[string]any {
	t.Helper()
	m := f.lastReply(t)
	if m["ok"] != ok || m["op"] != op {
		t.Fatalf("reply = %v, want ok=%v op=%q", m, ok, op)
	}
	return m
}

func TestTextDiscovery(t *testing.T) {
	f := newFixture(t)
	f.handle(t, "RGBDISC?")

	if len(f.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(f.replies))
	}
	payload := string(f.replies[0].payload)
	if !strings.HasPrefix(payload, DiscoverPrefix) {
		t.Fatalf("reply %q missing prefix", payload)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, DiscoverPrefix)), &doc); err != nil {
		t.Fatalf("discover body not JSON: %v", err)
	}
	if doc["name"] != "xglow" || doc["ip"] != "192.168.1.77" || doc["mac"] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("discover doc = %v", doc)
	}
	if doc["port"] != float64(7777) {
		t.Errorf("port = %v, want 7777", doc["port"])
	}
}

func TestTextDiscoveryWithNewline(t *testing.T) {
	f := newFixture(t)
	f.handle(t, "RGBDISC?\n")
	if len(f.replies) != 1 || !strings.HasPrefix(string(f.replies[0].payload), DiscoverPrefix) {
		t.Error("newline-terminated query not answered")
	}
}

func TestUnknownText(t *testing.T) {
	f := newFixture(t)
	f.handle(t, "hello there")
	m := f.wantReply(t, false, "raw")
	if m["err"] != "unknown text" {
		t.Errorf("err = %v", m["err"])
	}
}

func TestEmptyDatagramIgnored(t *testing.T) {
	f := newFixture(t)
	f.handle(t, "  \n")
	if len(f.replies) != 0 {
		t.Errorf("empty datagram answered: %v", f.replies)
	}
}

func TestBadJSON(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "get"`)
	m := f.wantReply(t, false, "parse")
	if m["err"] != "bad json" {
		t.Errorf("err = %v", m["err"])
	}
}

func TestMissingOp(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"key": "x"}`)
	f.wantReply(t, false, "op")
}

func TestUnknownOp(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "reboot"}`)
	m := f.wantReply(t, false, "op")
	if m["err"] != "unknown op" {
		t.Errorf("err = %v", m["err"])
	}
}

func TestKeyEnforcement(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Apply([]byte(`{"psk": "hunter2"}`), false); err != nil {
		t.Fatal(err)
	}

	f.handle(t, `{"op": "get"}`)
	f.wantReply(t, false, "auth")

	f.handle(t, `{"op": "get", "key": "wrong"}`)
	f.wantReply(t, false, "auth")

	f.handle(t, `{"op": "get", "key": "hunter2"}`)
	f.wantReply(t, true, "get")
}

func TestGetReturnsSettings(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "get"}`)

	m := f.wantReply(t, true, "get")
	cfg, ok := m["cfg"].(map[string]any)
	if !ok {
		t.Fatalf("cfg = %T, want object", m["cfg"])
	}
	if cfg["brightness"] != float64(160) {
		t.Errorf("cfg brightness = %v, want 160", cfg["brightness"])
	}
}

func TestDiscoverOp(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "discover"}`)

	m := f.lastReply(t)
	if m["op"] != "discover" || m["ok"] != true || m["name"] != "xglow" {
		t.Errorf("discover reply = %v", m)
	}
}

func TestPreviewEnqueuesWithoutSave(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "preview", "cfg": {"brightness": 42}}`)
	f.wantReply(t, true, "preview")

	if f.queue.Empty() {
		t.Fatal("nothing enqueued")
	}
	if cat := f.queue.Drain(time.Second); cat != pending.OpConfig {
		t.Fatalf("drained %v, want config", cat)
	}
	if len(f.appliedPayloads) != 1 || f.appliedSaves[0] {
		t.Fatalf("applied %d payloads, saves %v; want 1 unsaved", len(f.appliedPayloads), f.appliedSaves)
	}
	if !strings.Contains(string(f.appliedPayloads[0]), `"brightness": 42`) {
		t.Errorf("payload = %s", f.appliedPayloads[0])
	}
}

func TestSaveEnqueuesWithSave(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "save", "cfg": {"masterOff": true}}`)
	f.wantReply(t, true, "save")

	f.queue.Drain(time.Second)
	if len(f.appliedSaves) != 1 || !f.appliedSaves[0] {
		t.Fatalf("saves = %v, want [true]", f.appliedSaves)
	}
}

func TestInlineFieldsActAsPatch(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "preview", "brightness": 9}`)
	f.wantReply(t, true, "preview")

	f.queue.Drain(time.Second)
	if len(f.appliedPayloads) != 1 {
		t.Fatal("patch not applied")
	}
	if !strings.Contains(string(f.appliedPayloads[0]), `"brightness": 9`) {
		t.Errorf("payload = %s", f.appliedPayloads[0])
	}
}

func TestPreviewBadCfgRejected(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "preview", "cfg": {"brightness": "dim"}}`)

	m := f.wantReply(t, false, "preview")
	if m["err"] != "bad cfg" {
		t.Errorf("err = %v", m["err"])
	}
	if !f.queue.Empty() {
		t.Error("invalid patch reached the queue")
	}
}

func TestSetCounts(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "setCounts", "c": [1, 2, 3, 4]}`)
	f.wantReply(t, true, "setCounts")

	if cat := f.queue.Drain(time.Second); cat != pending.OpCounts {
		t.Fatalf("drained %v, want counts", cat)
	}
	if len(f.appliedCounts) != 1 || f.appliedCounts[0] != [4]int{1, 2, 3, 4} {
		t.Errorf("counts = %v", f.appliedCounts)
	}
}

func TestSetCountsNeedsFour(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "setCounts", "c": [1, 2]}`)
	m := f.wantReply(t, false, "setCounts")
	if m["err"] != "need 4 ints" {
		t.Errorf("err = %v", m["err"])
	}
}

func TestResetEnqueues(t *testing.T) {
	f := newFixture(t)
	f.handle(t, `{"op": "reset"}`)
	f.wantReply(t, true, "reset")

	if cat := f.queue.Drain(time.Second); cat != pending.OpReset {
		t.Fatalf("drained %v, want reset", cat)
	}
	if f.resets != 1 {
		t.Errorf("resets = %d, want 1", f.resets)
	}
}

// A heavy request arriving during the quiet window is parked whole and
// answered only after the window lapses and the queue re-delivers it.
func TestQuietWindowDefersHeavyOps(t *testing.T) {
	f := newFixture(t)
	f.gate.active = true

	f.handle(t, `{"op": "save", "cfg": {"brightness": 5}}`)
	if len(f.replies) != 0 {
		t.Fatalf("deferred request answered early: %v", f.replies)
	}
	if f.queue.Empty() {
		t.Fatal("datagram not parked")
	}

	// Still quiet: the raw slot is held back.
	if cat := f.queue.Drain(time.Second); cat != pending.OpNone {
		t.Fatalf("drained %v during quiet window", cat)
	}

	f.gate.active = false
	if cat := f.queue.Drain(time.Second); cat != pending.OpRawPacket {
		t.Fatalf("drained %v, want raw packet", cat)
	}
	f.wantReply(t, true, "save")

	// The re-delivered request parked its patch; one more drain applies it.
	if cat := f.queue.Drain(time.Second); cat != pending.OpConfig {
		t.Fatalf("drained %v, want config", cat)
	}
	if len(f.appliedPayloads) != 1 || !f.appliedSaves[0] {
		t.Errorf("applied = %v saves = %v", f.appliedPayloads, f.appliedSaves)
	}
}

func TestQuietWindowStillAnswersLightOps(t *testing.T) {
	f := newFixture(t)
	f.gate.active = true

	f.handle(t, `{"op": "get"}`)
	f.wantReply(t, true, "get")

	f.handle(t, `{"op": "discover"}`)
	if m := f.lastReply(t); m["op"] != "discover" {
		t.Errorf("discover not answered during quiet window: %v", m)
	}

	f.handle(t, "RGBDISC?")
	if !strings.HasPrefix(string(f.replies[len(f.replies)-1].payload), DiscoverPrefix) {
		t.Error("text discovery not answered during quiet window")
	}

	if !f.queue.Empty() {
		t.Error("light ops were parked")
	}
}

func TestLatestWinsAcrossDeferrals(t *testing.T) {
	f := newFixture(t)
	f.gate.active = true

	f.handle(t, `{"op": "save", "cfg": {"brightness": 1}}`)
	f.handle(t, `{"op": "save", "cfg": {"brightness": 2}}`)

	f.gate.active = false
	f.queue.Drain(time.Second) // raw → re-deliver, parks config
	f.queue.Drain(time.Second) // config → apply

	if len(f.appliedPayloads) != 1 {
		t.Fatalf("applied %d payloads, want 1 (latest wins)", len(f.appliedPayloads))
	}
	if !strings.Contains(string(f.appliedPayloads[0]), `"brightness": 2`) {
		t.Errorf("payload = %s, want the newer patch", f.appliedPayloads[0])
	}
}
