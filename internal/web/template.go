package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/droid-core/internal/status"
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
	"modeOrUnknown": func(s status.Snapshot) string {
		if !s.Mode.Valid() {
			return "UNKNOWN"
		}
		return s.Mode.String()
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05.000")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Droid Core</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.kill { color: red; font-weight: bold; }
.ok { color: green; }
.stale { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Droid Core<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Control</h2>
<table>
<tr><th>Mode</th><td id="mode">{{modeOrUnknown .Snapshot}}</td></tr>
<tr><th>Combo</th><td id="combo">{{if .Combo}}{{.Combo}}{{else}}idle{{end}}</td></tr>
<tr><th>Kill</th><td id="kill" class="{{if .Kill}}kill{{else}}ok{{end}}">{{if .Kill}}HELD{{else}}released{{end}}</td></tr>
<tr><th>Audio</th><td id="audio">{{if .Suppressed}}suppressed{{else}}enabled{{end}}</td></tr>
<tr><th>Drive / Turn / Dome</th><td id="output">{{.Drive}} / {{.Turn}} / {{.Dome}}</td></tr>
<tr><th>Dome sequence</th><td id="phase">{{if .Phase}}{{.Phase}}{{else}}IDLE{{end}} ({{printf "%.1f" .DomeOffset}}&deg;)</td></tr>
<tr><th>Invalid pulses</th><td id="invalid">{{.InvalidPulses}}</td></tr>
</table>

{{if .Channels}}<h2>Receiver</h2>
<table id="channels">
{{range .Channels}}<tr><th>{{.Name}}</th><td class="{{if .Fresh}}ok{{else}}stale{{end}}">{{if .Fresh}}{{.Width}}&micro;s{{else}}stale{{end}}</td></tr>
{{end}}</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Mode changes</th><td>{{.Counts.ModeChanges}}</td></tr>
<tr><th>Combos</th><td>{{.Counts.Combos}}</td></tr>
<tr><th>Rejected</th><td>{{.Counts.Rejected}}</td></tr>
<tr><th>Kill edges</th><td>{{.Counts.KillEdges}}</td></tr>
<tr><th>Dome moves</th><td>{{.Counts.DomeMoves}}</td></tr>
<tr><th>Audio triggers</th><td>{{.Counts.AudioTriggers}}</td></tr>
</table>

{{if .Recent}}<h2>Recent Events</h2>
<table>
{{range .Recent}}<tr><th>{{clock .Timestamp}}</th><td>{{.Type}}{{if .Combo}} #{{.Combo}}{{end}}{{if .Label}} {{.Label}}{{end}}{{if .Track}} track {{.Track}}{{end}}</td></tr>
{{end}}</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Actuator</th><td>{{if .Config.ActuatorPort}}{{.Config.ActuatorPort}}{{else}}none{{end}}</td></tr>
<tr><th>Audio device</th><td>{{.Config.AudioDevice}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var s = JSON.parse(e.data).status;
        set("mode", s.mode);
        set("combo", s.combo ? s.combo : "idle");
        set("kill", s.kill ? "HELD" : "released");
        document.getElementById("kill").className = s.kill ? "kill" : "ok";
        set("audio", s.audio_suppressed ? "suppressed" : "enabled");
        set("output", s.output.drive + " / " + s.output.turn + " / " + s.output.dome);
        set("phase", s.automation.phase + " (" + s.automation.offset.toFixed(1) + "°)");
        set("invalid", s.invalid_pulses);
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template reads Uptime as a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
