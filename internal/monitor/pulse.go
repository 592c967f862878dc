package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/reactor"
)

// PulseKind selects which pulse transitions are reported.
type PulseKind int

const (
	PulseStart PulseKind = iota + 1
	PulseStop
	PulseBoth
)

func (k PulseKind) String() string {
	switch k {
	case PulseStart:
		return "START"
	case PulseStop:
		return "STOP"
	case PulseBoth:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

func (k PulseKind) reportsStart() bool { return k == PulseStart || k == PulseBoth }
func (k PulseKind) reportsStop() bool  { return k == PulseStop || k == PulseBoth }

// minEdgesToPulse is the number of edges that must arrive without the
// timeout elapsing between them before a line counts as pulsing.
// A single edge is just a level change.
const minEdgesToPulse = 2

// PulseMonitor reports when a line starts toggling and when it settles.
// It drives an inner EdgeMonitor and keeps a timer that is restarted on
// every edge.
type PulseMonitor struct {
	base

	reactor *reactor.Reactor
	inner   *EdgeMonitor
	timeout time.Duration
	kind    PulseKind

	mu      sync.Mutex
	timer   *reactor.Timer
	started bool
	stopped bool

	// Edge count, clamped at minEdgesToPulse. Only touched on the reactor loop.
	edges int
}

// NewPulseMonitor creates a pulse monitor for cfg. The line is pulsing
// once two edges arrive less than timeout apart, and stops pulsing after
// timeout without an edge.
func NewPulseMonitor(r *reactor.Reactor, backend gpio.Backend, cfg gpio.LineConfig, name string, continueRun bool, timeout time.Duration, kind PulseKind) *PulseMonitor {
	p := &PulseMonitor{
		reactor: r,
		timeout: timeout,
		kind:    kind,
	}
	p.base.init(name, continueRun)
	p.inner = NewEdgeMonitor(r, backend, cfg, name, true, Quiet())
	p.inner.SetEventAction(p.handleEdge)
	return p
}

// StartMonitoring reports "not pulsing" through the init action and
// starts the inner edge monitor.
func (p *PulseMonitor) StartMonitoring() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.started {
		p.mu.Unlock()
		p.log.Error("line was already initialized for pulse monitoring")
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	p.initAction(EventPulseStop)
	if err := p.inner.StartMonitoring(); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return err
	}
	return nil
}

// StopMonitoring cancels the timer before stopping the inner monitor so
// no timeout can fire against a released line.
func (p *PulseMonitor) StopMonitoring() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	t := p.timer
	p.timer = nil
	p.mu.Unlock()

	if t != nil {
		t.Cancel()
	}
	p.inner.StopMonitoring()
	p.halt()
}

func (p *PulseMonitor) handleEdge(EventType) {
	p.resetTimer()

	if p.edges == minEdgesToPulse {
		// Already pulsing.
		return
	}
	p.edges++
	if p.edges != minEdgesToPulse || !p.kind.reportsStart() {
		return
	}

	p.log.Info("pulse detected")
	p.eventAction(EventPulseStart)
	if !p.continues() {
		p.StopMonitoring()
	}
}

func (p *PulseMonitor) resetTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.timer != nil {
		p.timer.Cancel()
	}
	p.log.Debugf("reset timer to %v", p.timeout)
	p.timer = p.reactor.After(p.timeout, p.handleTimeout)
}

func (p *PulseMonitor) handleTimeout(err error) {
	if errors.Is(err, reactor.ErrAborted) {
		return
	}

	if p.edges == minEdgesToPulse && p.kind.reportsStop() {
		p.log.Info("pulse ceased")
		p.eventAction(EventPulseStop)
		if !p.continues() {
			p.StopMonitoring()
		}
	}
	p.edges = 0
}
