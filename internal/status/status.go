// Package status provides a thread-safe status tracker for the droid-core daemon.
// It is written by the control loop and read by HTTP handlers and heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// RecentEvents is how many control events a snapshot keeps.
const RecentEvents = 20

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	ActuatorPort string
	AudioDevice  string
}

// Channel is one receiver channel as seen by the last tick.
type Channel struct {
	Name  string
	Width int
	Fresh bool
}

// Control is the per-tick control state.
type Control struct {
	Mode          logic.Mode
	Combo         logic.ComboID
	Suppressed    bool
	Kill          bool
	Drive         int
	Turn          int
	Dome          int
	Phase         string
	DomeOffset    float64
	Channels      []Channel
	InvalidPulses uint64
	Counts        logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Control
	Recent        []logic.Event
	RunID         string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	recent []logic.Event
}

// NewTracker creates a Tracker with the given start time, run id and config.
func NewTracker(startTime time.Time, runID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the control state. Called from the control loop on every tick.
func (t *Tracker) Update(c Control) {
	c.Channels = append([]Channel(nil), c.Channels...)
	t.mu.Lock()
	t.snap.Control = c
	t.mu.Unlock()
}

// AddEvents appends control events, keeping the most recent RecentEvents.
func (t *Tracker) AddEvents(events []logic.Event) {
	if len(events) == 0 {
		return
	}
	t.mu.Lock()
	t.recent = append(t.recent, events...)
	if n := len(t.recent) - RecentEvents; n > 0 {
		t.recent = append(t.recent[:0:0], t.recent[n:]...)
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]Channel(nil), t.snap.Channels...)
	s.Recent = append([]logic.Event(nil), t.recent...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
