// Package monitor watches GPIO lines and dispatches actions when a line
// changes state or starts and stops pulsing.
//
// Monitors are driven by a reactor.Reactor: every callback for a given
// monitor runs on the reactor loop, one at a time, in arrival order.
package monitor

import "github.com/sweeney/gpio-monitor/internal/gpio"

// EventType is the state reported to an Action.
type EventType int

const (
	EventAsserted EventType = iota + 1
	EventDeasserted
	EventPulseStart
	EventPulseStop
)

func (e EventType) String() string {
	switch e {
	case EventAsserted:
		return "Asserted"
	case EventDeasserted:
		return "Deasserted"
	case EventPulseStart:
		return "PulseStart"
	case EventPulseStop:
		return "PulseStop"
	default:
		return "Unknown"
	}
}

// IsAsserted reports whether e is the active half of its pair.
// A line that starts pulsing counts as asserted.
func (e EventType) IsAsserted() bool {
	return e == EventAsserted || e == EventPulseStart
}

// Callback receives an event. Callbacks are fire-and-forget.
type Callback func(EventType)

func noop(EventType) {}

// Action is the pair of callbacks a Monitor drives: one with the state
// observed when monitoring starts, one for each subsequent event.
type Action interface {
	InitAction(EventType)
	EventAction(EventType)
}

// Classify maps an edge record's polarity to an event.
func Classify(edge gpio.Edge) EventType {
	if edge == gpio.RisingEdge {
		return EventAsserted
	}
	return EventDeasserted
}

// levelEvent maps an instantaneous level to the event it corresponds to.
func levelEvent(level int) EventType {
	if level == 1 {
		return EventAsserted
	}
	return EventDeasserted
}
