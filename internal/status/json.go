package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Lines         []LineJSON `json:"lines"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// LineJSON is the JSON representation of one line.
type LineJSON struct {
	Name       string     `json:"name"`
	Mode       string     `json:"mode"`
	Flags      string     `json:"flags,omitempty"`
	Action     string     `json:"action,omitempty"`
	State      string     `json:"state"`
	Asserted   bool       `json:"asserted"`
	Monitoring bool       `json:"monitoring"`
	LastChange string     `json:"last_change,omitempty"`
	Counts     CountsJSON `json:"event_counts"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Asserted   int `json:"asserted"`
	Deasserted int `json:"deasserted"`
	PulseStart int `json:"pulse_start"`
	PulseStop  int `json:"pulse_stop"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ConfigFile  string `json:"config_file"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	HTTPAddr    string `json:"http_addr"`
}

func lineJSON(l LineState) LineJSON {
	lj := LineJSON{
		Name:       l.Name,
		Mode:       l.Mode,
		Flags:      l.Flags,
		Action:     l.Action,
		State:      l.State,
		Asserted:   l.Asserted,
		Monitoring: l.Monitoring,
		Counts: CountsJSON{
			Asserted:   l.Counts.Asserted,
			Deasserted: l.Counts.Deasserted,
			PulseStart: l.Counts.PulseStart,
			PulseStop:  l.Counts.PulseStop,
		},
	}
	if lj.State == "" {
		lj.State = StateUnknown
	}
	if !l.LastChange.IsZero() {
		lj.LastChange = l.LastChange.UTC().Format(time.RFC3339)
	}
	return lj
}

func buildInner(snap Snapshot) StatusInner {
	lines := make([]LineJSON, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, lineJSON(l))
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Lines:         lines,
		Config: ConfigJSON{
			ConfigFile:  snap.Config.ConfigFile,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatLineJSON returns the JSON for a single line.
func FormatLineJSON(l LineState) []byte {
	data, _ := json.MarshalIndent(lineJSON(l), "", "  ")
	return data
}
