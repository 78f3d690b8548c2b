package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	RunID         string         `json:"run_id"`
	Mode          string         `json:"mode"`
	Combo         int            `json:"combo"`
	Suppressed    bool           `json:"audio_suppressed"`
	Kill          bool           `json:"kill"`
	Output        OutputJSON     `json:"output"`
	Automation    AutomationJSON `json:"automation"`
	Channels      []ChannelJSON  `json:"channels,omitempty"`
	InvalidPulses uint64         `json:"invalid_pulses"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Recent        []EventJSON    `json:"recent_events,omitempty"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// OutputJSON is the command last sent to the motors.
type OutputJSON struct {
	Drive int `json:"drive"`
	Turn  int `json:"turn"`
	Dome  int `json:"dome"`
}

// AutomationJSON is the dome sequence state.
type AutomationJSON struct {
	Phase  string  `json:"phase"`
	Offset float64 `json:"offset"`
}

// ChannelJSON is one receiver channel.
type ChannelJSON struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	Fresh bool   `json:"fresh"`
}

// EventJSON is one recent control event.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Combo     int    `json:"combo,omitempty"`
	Label     string `json:"label,omitempty"`
	Track     int    `json:"track,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	ModeChanges   int `json:"mode_changes"`
	Combos        int `json:"combos"`
	Rejected      int `json:"rejected"`
	KillEdges     int `json:"kill_edges"`
	DomeMoves     int `json:"dome_moves"`
	AudioTriggers int `json:"audio_triggers"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs       int64  `json:"tick_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	ActuatorPort string `json:"actuator_port"`
	AudioDevice  string `json:"audio_device"`
}

func modeOrUnknown(m logic.Mode) string {
	if !m.Valid() {
		return "UNKNOWN"
	}
	return m.String()
}

func buildInner(snap Snapshot) StatusInner {
	phase := snap.Phase
	if phase == "" {
		phase = "IDLE"
	}

	inner := StatusInner{
		RunID:         snap.RunID,
		Mode:          modeOrUnknown(snap.Mode),
		Combo:         int(snap.Combo),
		Suppressed:    snap.Suppressed,
		Kill:          snap.Kill,
		Output:        OutputJSON{Drive: snap.Drive, Turn: snap.Turn, Dome: snap.Dome},
		Automation:    AutomationJSON{Phase: phase, Offset: snap.DomeOffset},
		InvalidPulses: snap.InvalidPulses,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ModeChanges:   snap.Counts.ModeChanges,
			Combos:        snap.Counts.Combos,
			Rejected:      snap.Counts.Rejected,
			KillEdges:     snap.Counts.KillEdges,
			DomeMoves:     snap.Counts.DomeMoves,
			AudioTriggers: snap.Counts.AudioTriggers,
		},
		Config: ConfigJSON{
			TickMs:       snap.Config.TickMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			ActuatorPort: snap.Config.ActuatorPort,
			AudioDevice:  snap.Config.AudioDevice,
		},
	}
	for _, c := range snap.Channels {
		inner.Channels = append(inner.Channels, ChannelJSON{Name: c.Name, Width: c.Width, Fresh: c.Fresh})
	}
	for _, e := range snap.Recent {
		inner.Recent = append(inner.Recent, EventJSON{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     string(e.Type),
			Combo:     int(e.Combo),
			Label:     e.Label,
			Track:     e.Track,
		})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Recent events and channel widths are left out to keep the message small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	snap.Recent = nil
	snap.Channels = nil
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
