package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gpio-monitor/internal/action"
	"github.com/sweeney/gpio-monitor/internal/config"
	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/monitor"
	"github.com/sweeney/gpio-monitor/internal/mqtt"
	"github.com/sweeney/gpio-monitor/internal/reactor"
	"github.com/sweeney/gpio-monitor/internal/status"
)

var errNoHandlers = errors.New("no line could be monitored")

// deps holds the external services the daemon talks to. A nil field
// means the service is unavailable; lines that need it are skipped.
type deps struct {
	backend    gpio.Backend
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	starter    action.UnitStarter
	inventory  action.InventoryNotifier
	health     action.HealthSetter
}

type daemon struct {
	deps
	reactor   *reactor.Reactor
	tracker   *status.Tracker
	heartbeat time.Duration

	handlers []running
	hbTimer  *reactor.Timer
}

type running struct {
	handler *monitor.Handler
	name    string
}

func newDaemon(r *reactor.Reactor, tracker *status.Tracker, d deps, heartbeat time.Duration) *daemon {
	return &daemon{deps: d, reactor: r, tracker: tracker, heartbeat: heartbeat}
}

// statusName is the name a line is published and tracked under.
func statusName(l config.Line) string {
	return l.GPIO.Label()
}

func buildMonitor(r *reactor.Reactor, backend gpio.Backend, l config.Line) monitor.Monitor {
	if l.Pulse != nil {
		return monitor.NewPulseMonitor(r, backend, l.GPIO, l.Label, l.Continue, l.Pulse.Timeout, l.Pulse.Kind)
	}
	return monitor.NewEdgeMonitor(r, backend, l.GPIO, l.Label, l.Continue)
}

func (d *daemon) buildAction(l config.Line) (monitor.Action, error) {
	var primary monitor.Action
	switch l.Action {
	case config.ActionInventory:
		if d.inventory == nil {
			return nil, errors.New("inventory manager unavailable")
		}
		primary = action.InventoryUpdate(d.inventory, l.Inventory, l.ExtraInterfaces, l.PrettyName)
	case config.ActionHealth:
		if d.health == nil {
			return nil, errors.New("health monitor unavailable")
		}
		primary = action.HealthNotify(d.health, l.HealthPath, l.HealthyOnRising)
	default:
		if d.starter == nil && (l.Target != "" || len(l.Targets) > 0) {
			return nil, errors.New("systemd unavailable")
		}
		primary = action.ServiceStart(d.starter, l.Target, l.Targets)
	}

	actions := []monitor.Action{primary, action.Track(d.tracker, statusName(l))}
	if l.Publish && d.publisher != nil {
		actions = append(actions, action.Publish(d.publisher, statusName(l)))
	}
	return action.Chain(actions...), nil
}

// startHandlers starts one handler per line. Lines that fail are logged
// and left out. It returns the number of handlers running.
func (d *daemon) startHandlers(lines []config.Line) int {
	for _, l := range lines {
		entry := log.WithField("gpio", l.Label)
		d.tracker.AddLine(status.LineInfo{
			Name:   statusName(l),
			Mode:   l.Mode(),
			Flags:  l.GPIO.Flags(),
			Action: l.Action.String(),
		})

		a, err := d.buildAction(l)
		if err != nil {
			entry.WithError(err).Error("skipping line")
			continue
		}
		h, err := monitor.NewHandler(buildMonitor(d.reactor, d.backend, l), a)
		if err != nil {
			entry.WithError(err).Error("skipping line")
			continue
		}
		d.handlers = append(d.handlers, running{handler: h, name: statusName(l)})
	}
	return len(d.handlers)
}

func (d *daemon) closeHandlers() {
	for _, h := range d.handlers {
		h.handler.Close()
		d.tracker.SetMonitoring(h.name, false)
	}
	d.handlers = nil
	// Deliver the aborts queued by the cancelled waits and timers.
	d.reactor.Poll()
}

func (d *daemon) refreshMQTT() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	d.refreshMQTT()
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.WithError(err).Warnf("failed to publish %s event", event)
		return
	}
	log.Debugf("published %s event", event)
}

// scheduleHeartbeat arms the next heartbeat on the reactor.
func (d *daemon) scheduleHeartbeat() {
	if d.heartbeat <= 0 || d.publisher == nil {
		return
	}
	d.hbTimer = d.reactor.After(d.heartbeat, func(err error) {
		if err != nil {
			return
		}
		d.publishSystem("HEARTBEAT", "", false)
		d.scheduleHeartbeat()
	})
}

// serve runs the reactor until ctx is done or a signal arrives, then
// publishes SHUTDOWN and stops every handler.
func (d *daemon) serve(ctx context.Context, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.publishSystem("STARTUP", "", true)
	d.scheduleHeartbeat()

	done := make(chan error, 1)
	go func() { done <- d.reactor.Run(ctx) }()

	reason := "CANCELLED"
	select {
	case s := <-sig:
		reason = signalName(s)
		log.Infof("received %v, shutting down", s)
	case <-ctx.Done():
	}
	cancel()
	err := <-done

	if d.hbTimer != nil {
		d.hbTimer.Cancel()
	}
	d.closeHandlers()
	d.publishSystem("SHUTDOWN", reason, true)
	return err
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printState writes each line's current level and releases it again.
func printState(w io.Writer, backend gpio.Backend, lines []config.Line) error {
	var failed int
	for _, l := range lines {
		line, err := backend.RequestLine(l.GPIO)
		if err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", l.Label, err)
			failed++
			continue
		}
		v, err := line.Value()
		line.Close()
		if err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", l.Label, err)
			failed++
			continue
		}
		state := "DEASSERTED"
		if v == 1 {
			state = "ASSERTED"
		}
		fmt.Fprintf(w, "%s: %d (%s)\n", l.Label, v, state)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lines could not be read", failed, len(lines))
	}
	return nil
}
