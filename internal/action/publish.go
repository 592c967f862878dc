package action

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gpio-monitor/internal/monitor"
	"github.com/sweeney/gpio-monitor/internal/mqtt"
	"github.com/sweeney/gpio-monitor/internal/status"
)

// PublishAction mirrors a line's callbacks to MQTT.
type PublishAction struct {
	pub  mqtt.Publisher
	line string
	now  func() time.Time
}

// Publish returns an Action that publishes every callback for line,
// including the initial state.
func Publish(pub mqtt.Publisher, line string) *PublishAction {
	return &PublishAction{pub: pub, line: line, now: time.Now}
}

// InitAction publishes the initial state.
func (a *PublishAction) InitAction(e monitor.EventType) {
	a.publish(e, true)
}

// EventAction publishes the event.
func (a *PublishAction) EventAction(e monitor.EventType) {
	a.publish(e, false)
}

func (a *PublishAction) publish(e monitor.EventType, init bool) {
	err := a.pub.Publish(mqtt.LineEvent{
		Timestamp: a.now(),
		Line:      a.line,
		Event:     e.String(),
		Asserted:  e.IsAsserted(),
		Init:      init,
	})
	if err != nil {
		log.WithError(err).WithField("gpio", a.line).Warn("mqtt: publish failed")
	}
}

// TrackAction records a line's callbacks in the status tracker.
type TrackAction struct {
	tracker *status.Tracker
	line    string
}

// Track returns an Action that records every callback for line.
func Track(tracker *status.Tracker, line string) *TrackAction {
	return &TrackAction{tracker: tracker, line: line}
}

// InitAction records the initial state and marks the line as monitored.
func (a *TrackAction) InitAction(e monitor.EventType) {
	a.tracker.Record(a.line, e, true)
}

// EventAction records the event.
func (a *TrackAction) EventAction(e monitor.EventType) {
	a.tracker.Record(a.line, e, false)
}
