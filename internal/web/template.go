package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/mwheeler/xglow/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"hexColor": func(c uint32) string {
		return fmt.Sprintf("#%06X", c&0xFFFFFF)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>xglow</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.warn { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 12px; height: 12px; border: 1px solid #999; vertical-align: middle; margin-right: 6px; }
</style>
</head>
<body>
<h1>xglow</h1>

<h2>Telemetry</h2>
<table>
<tr><th>CPU</th><td id="cpu">{{if .CPU.Sampled}}{{printf "%.1f" .CPU.Value}}&deg;C (raw {{.CPU.Raw}}){{else if .CPU.Enabled}}waiting{{else}}disabled{{end}}</td></tr>
<tr><th>Fan</th><td id="fan">{{if .Fan.Sampled}}{{printf "%.0f" .Fan.Value}}% (raw {{.Fan.Raw}}){{else if .Fan.Enabled}}waiting{{else}}disabled{{end}}</td></tr>
<tr><th>Board</th><td>{{.Variant}}</td></tr>
</table>

<h2>Bus</h2>
<table>
<tr><th>Host device</th><td id="present" class="{{if .Present}}warn{{else}}on{{end}}">{{if .Present}}present (bus ceded){{else}}absent{{end}}</td></tr>
<tr><th>Stuck count</th><td id="stuck">{{.StuckCount}}</td></tr>
<tr><th>Ticks</th><td>{{.Poll.Ticks}}</td></tr>
<tr><th>Reads</th><td>{{.Poll.Reads}}</td></tr>
<tr><th>Read failures</th><td>{{.Poll.ReadFailures}}</td></tr>
<tr><th>Bus busy</th><td>{{.Poll.BusBusy}}</td></tr>
<tr><th>Guarded ticks</th><td>{{.Poll.Guarded}}</td></tr>
<tr><th>Recoveries</th><td>{{.Poll.Recoveries}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td id="mqtt" class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Control port</th><td>udp/{{.Config.ControlPort}}</td></tr>
<tr><th>Beacon port</th><td>udp/{{.Config.BeaconPort}}</td></tr>
</table>

<h2>Settings</h2>
<table>
<tr><th>Master</th><td class="{{if .Settings.MasterOff}}off{{else}}on{{end}}">{{if .Settings.MasterOff}}off{{else}}on{{end}}</td></tr>
<tr><th>Brightness</th><td>{{.Settings.Brightness}}</td></tr>
<tr><th>Base color</th><td><span class="swatch" style="background: {{hexColor .Settings.BaseColor}}"></span>{{hexColor .Settings.BaseColor}}</td></tr>
<tr><th>Pixel counts</th><td>{{range $i, $c := .Settings.Counts}}{{if $i}} / {{end}}{{$c}}{{end}}</td></tr>
<tr><th>Direction</th><td>{{range $i, $r := .Settings.Reverse}}{{if $i}} / {{end}}{{if $r}}tail{{else}}head{{end}}{{end}}</td></tr>
<tr><th>CPU bar</th><td>{{if .Settings.EnableCPU}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Fan bar</th><td>{{if .Settings.EnableFan}}enabled{{else}}disabled{{end}}</td></tr>
</table>

<h2>Deferred work</h2>
<table>
<tr><th>Raw packets</th><td>{{.Queue.DrainedRaw}}</td></tr>
<tr><th>Config applies</th><td>{{.Queue.DrainedConfig}}</td></tr>
<tr><th>Count changes</th><td>{{.Queue.DrainedCounts}}</td></tr>
<tr><th>Resets</th><td>{{.Queue.DrainedReset}}</td></tr>
<tr><th>Budget overruns</th><td>{{.Queue.Overruns}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>I2C device</th><td>{{.Config.I2CDevice}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/status.json">JSON</a></p>
<script>
(function() {
  function setText(id, text) {
    var el = document.getElementById(id);
    if (el) el.textContent = text;
  }

  function channel(c) {
    if (!c.enabled) return "disabled";
    if (!c.sampled) return "waiting";
    return c.value.toFixed(1) + " (raw " + c.raw + ")";
  }

  function refresh() {
    fetch("/status.json").then(function(r) { return r.json(); }).then(function(doc) {
      var s = doc.status;
      setText("cpu", channel(s.cpu));
      setText("fan", channel(s.fan));
      setText("stuck", s.stuck_count);
      var present = document.getElementById("present");
      present.textContent = s.present ? "present (bus ceded)" : "absent";
      present.className = s.present ? "warn" : "on";
      var mqtt = document.getElementById("mqtt");
      mqtt.textContent = s.mqtt.connected ? "connected" : "disconnected";
      mqtt.className = s.mqtt.connected ? "connected" : "disconnected";
    }).catch(function() {});
  }

  setInterval(refresh, 5000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
