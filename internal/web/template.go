package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/button-dispatch/internal/status"
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
	"timeout": func(ms int64) string {
		if ms < 0 {
			return "forever"
		}
		return fmt.Sprintf("%dms", ms)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Button Dispatch</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.warn { color: orange; font-weight: bold; }
</style>
</head>
<body>
<h1>Button Dispatch</h1>

<h2>Queue</h2>
<table>
<tr><th>Waiting</th><td>{{.Queue.Depth}} / {{.Queue.Capacity}}</td></tr>
<tr><th>High water</th><td>{{.Queue.HighWater}}</td></tr>
<tr><th>Dropped</th><td{{if .Queue.Drops}} class="warn"{{end}}>{{.Queue.Drops}}</td></tr>
</table>

<h2>Sources</h2>
<table>
<tr><th>Source</th><th>Pin</th><th>Action</th><th>Dispatched</th><th>Debounced</th></tr>
{{range .Sources}}<tr><td>{{.ID}} {{.Name}}</td><td>{{.Pin}}</td><td>{{.Action}}</td><td>{{.Dispatched}}</td><td>{{.Debounced}}</td></tr>
{{else}}<tr><td colspan="5">none</td></tr>
{{end}}</table>

<h2>Dispatcher</h2>
<table>
<tr><th>Received</th><td>{{.Dispatch.Received}}</td></tr>
<tr><th>Dispatched</th><td>{{.Dispatch.Dispatched}}</td></tr>
<tr><th>Debounced</th><td>{{.Dispatch.Debounced}}</td></tr>
<tr><th>Unknown source</th><td>{{.Dispatch.Unknown}}</td></tr>
<tr><th>Handler errors</th><td>{{.Dispatch.Failed}}</td></tr>
<tr><th>Idle timeouts</th><td>{{.Dispatch.Timeouts}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>MQTT buffered</th><td{{if .MQTTBuffered}} class="warn"{{end}}>{{.MQTTBuffered}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Instance</th><td>{{.InstanceID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Wait timeout</th><td>{{timeout .Config.TimeoutMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
