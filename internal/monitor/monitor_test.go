package monitor

import (
	"time"

	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/reactor"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// call is one recorded callback invocation.
type call struct {
	init  bool
	event EventType
}

// recorder is an Action that records every callback in order.
type recorder struct {
	calls []call

	// onEvent, if set, runs after an event is recorded.
	onEvent func(EventType)
}

func (r *recorder) InitAction(e EventType) {
	r.calls = append(r.calls, call{init: true, event: e})
}

func (r *recorder) EventAction(e EventType) {
	r.calls = append(r.calls, call{event: e})
	if r.onEvent != nil {
		r.onEvent(e)
	}
}

func (r *recorder) inits() []EventType {
	var out []EventType
	for _, c := range r.calls {
		if c.init {
			out = append(out, c.event)
		}
	}
	return out
}

func (r *recorder) events() []EventType {
	var out []EventType
	for _, c := range r.calls {
		if !c.init {
			out = append(out, c.event)
		}
	}
	return out
}

func bind(m Monitor, rec *recorder) {
	m.SetInitAction(rec.InitAction)
	m.SetEventAction(rec.EventAction)
}

func newTestReactor() (*reactor.Reactor, *reactor.ManualClock) {
	clock := reactor.NewManualClock(testStart)
	return reactor.New(reactor.WithClock(clock)), clock
}

func testLine() gpio.LineConfig {
	return gpio.LineConfig{Name: "PS_PWROK", Edge: gpio.EdgeBoth, Bias: gpio.BiasPullUp}
}

func equalEvents(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
