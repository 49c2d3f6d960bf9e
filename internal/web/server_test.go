package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwheeler/xglow/internal/status"
	"github.com/mwheeler/xglow/internal/telemetry"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      4000,
		I2CDevice:   "/dev/i2c-1",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
		ControlPort: 7777,
		BeaconPort:  50502,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.UpdatePoll(
		telemetry.ChannelState{Name: "cpu", Enabled: true, Raw: 47, Value: 45.3, Sampled: true},
		telemetry.ChannelState{Name: "fan", Enabled: true, Raw: 30, Value: 60, Sampled: true},
		telemetry.Stats{Ticks: 12, Reads: 6},
		"xcalibur", 0,
	)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Variant != "xcalibur" {
		t.Errorf("Variant: got %q, want xcalibur", sj.Status.Variant)
	}
	if sj.Status.CPU.Raw != 47 || !sj.Status.CPU.Sampled {
		t.Errorf("CPU: got %+v", sj.Status.CPU)
	}
	if sj.Status.Fan.Value != 60 {
		t.Errorf("Fan: got %+v", sj.Status.Fan)
	}
	if sj.Status.Poll.Ticks != 12 {
		t.Errorf("Poll.Ticks: got %d, want 12", sj.Status.Poll.Ticks)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.PollMs != 4000 {
		t.Errorf("Config.PollMs: got %d, want 4000", sj.Status.Config.PollMs)
	}
	if sj.Status.Config.ControlPort != 7777 {
		t.Errorf("Config.ControlPort: got %d, want 7777", sj.Status.Config.ControlPort)
	}
}

func TestJSONVariantUnknownBeforeProbe(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Variant != "unknown" {
		t.Errorf("Variant before probe: got %q, want unknown", sj.Status.Variant)
	}
	if sj.Status.CPU.Sampled {
		t.Error("expected CPU.Sampled=false before first read")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.UpdatePoll(
		telemetry.ChannelState{Name: "cpu", Enabled: true, Raw: 40, Value: 40, Sampled: true},
		telemetry.ChannelState{Name: "fan", Enabled: true},
		telemetry.Stats{},
		"standard", 0,
	)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	if !strings.Contains(html, "40.0&deg;C") {
		t.Errorf("CPU value missing from page:\n%s", html)
	}
	if !strings.Contains(html, "waiting") {
		t.Error("fan should render as waiting before its first sample")
	}
	if !strings.Contains(html, "standard") {
		t.Error("variant missing from page")
	}
}

func TestHTMLShowsSettings(t *testing.T) {
	ts, tr := newTestServer(t)
	s := tr.Snapshot().Settings
	s.Brightness = 160
	s.BaseColor = 0xFF0000
	s.Counts = [4]int{50, 50, 50, 50}
	tr.SetSettings(s)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	if !strings.Contains(html, "#FF0000") {
		t.Error("base color missing from page")
	}
	if !strings.Contains(html, "50 / 50 / 50 / 50") {
		t.Error("pixel counts missing from page")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestWritesRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/status.json"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, resp.StatusCode)
		}
		if allow := resp.Header.Get("Allow"); allow != "GET, HEAD" {
			t.Errorf("POST %s: Allow = %q, want %q", path, allow, "GET, HEAD")
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	resp1, _ := http.Get(ts.URL + "/status.json")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.Present {
		t.Error("expected Present=false initially")
	}

	tr.SetPresence(true)
	tr.SetMQTTConnected(true)

	resp2, _ := http.Get(ts.URL + "/status.json")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.Present {
		t.Error("expected Present=true after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
