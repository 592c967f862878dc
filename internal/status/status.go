// Package status provides a thread-safe status tracker for the gpio-monitor
// daemon. It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// StateUnknown is reported for a line that has not produced a callback yet.
const StateUnknown = "UNKNOWN"

// Config contains daemon configuration for display.
type Config struct {
	ConfigFile  string
	Broker      string
	TopicPrefix string
	HTTPAddr    string
}

// LineInfo describes how a line is being watched.
type LineInfo struct {
	Name   string
	Mode   string // "edge" or "pulse"
	Flags  string
	Action string
}

// Counts holds per-type event totals. Init reports are not counted.
type Counts struct {
	Asserted   int
	Deasserted int
	PulseStart int
	PulseStop  int
}

// LineState is the tracked state of one line.
type LineState struct {
	LineInfo
	State      string
	Asserted   bool
	Monitoring bool
	LastChange time.Time
	Counts     Counts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Lines         []LineState
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Line returns the state of the named line.
func (s Snapshot) Line(name string) (LineState, bool) {
	for _, l := range s.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return LineState{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	lines     []LineState
	index     map[string]int
	startTime time.Time
	connected bool
	cfg       Config

	now func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		index:     make(map[string]int),
		startTime: startTime,
		cfg:       cfg,
		now:       time.Now,
	}
}

// AddLine registers a line. Lines are reported in registration order.
func (t *Tracker) AddLine(info LineInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[info.Name]; ok {
		t.lines[i].LineInfo = info
		return
	}
	t.index[info.Name] = len(t.lines)
	t.lines = append(t.lines, LineState{LineInfo: info, State: StateUnknown})
}

// Record stores a monitor callback for the named line.
func (t *Tracker) Record(name string, e monitor.EventType, init bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.line(name)
	l.State = e.String()
	l.Asserted = e.IsAsserted()
	l.LastChange = t.now()
	if init {
		l.Monitoring = true
		return
	}
	switch e {
	case monitor.EventAsserted:
		l.Counts.Asserted++
	case monitor.EventDeasserted:
		l.Counts.Deasserted++
	case monitor.EventPulseStart:
		l.Counts.PulseStart++
	case monitor.EventPulseStop:
		l.Counts.PulseStop++
	}
}

// SetMonitoring marks whether the named line is being watched.
func (t *Tracker) SetMonitoring(name string, on bool) {
	t.mu.Lock()
	t.line(name).Monitoring = on
	t.mu.Unlock()
}

// line returns the entry for name, adding it if needed. Caller holds mu.
func (t *Tracker) line(name string) *LineState {
	i, ok := t.index[name]
	if !ok {
		i = len(t.lines)
		t.index[name] = i
		t.lines = append(t.lines, LineState{LineInfo: LineInfo{Name: name}, State: StateUnknown})
	}
	return &t.lines[i]
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lines := make([]LineState, len(t.lines))
	copy(lines, t.lines)
	return Snapshot{
		Lines:         lines,
		StartTime:     t.startTime,
		Now:           t.now(),
		MQTTConnected: t.connected,
		Config:        t.cfg,
	}
}
