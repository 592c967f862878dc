// Package action provides the Actions a monitor can drive: starting
// systemd units, updating inventory presence, reporting health, mirroring
// events to MQTT and recording them for the status page.
package action

import (
	"context"
	"time"

	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// callTimeout bounds every outbound D-Bus call made from a callback.
const callTimeout = 5 * time.Second

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

// Funcs adapts two plain callbacks to monitor.Action. A nil slot is a no-op.
type Funcs struct {
	Init  monitor.Callback
	Event monitor.Callback
}

// InitAction calls f.Init if set.
func (f Funcs) InitAction(e monitor.EventType) {
	if f.Init != nil {
		f.Init(e)
	}
}

// EventAction calls f.Event if set.
func (f Funcs) EventAction(e monitor.EventType) {
	if f.Event != nil {
		f.Event(e)
	}
}

// Noop returns an Action that ignores every callback.
func Noop() monitor.Action {
	return Funcs{}
}

type chain []monitor.Action

// Chain fans each callback out to actions in order.
func Chain(actions ...monitor.Action) monitor.Action {
	switch len(actions) {
	case 0:
		return Noop()
	case 1:
		return actions[0]
	}
	return chain(actions)
}

func (c chain) InitAction(e monitor.EventType) {
	for _, a := range c {
		a.InitAction(e)
	}
}

func (c chain) EventAction(e monitor.EventType) {
	for _, a := range c {
		a.EventAction(e)
	}
}
