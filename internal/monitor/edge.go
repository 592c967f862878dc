package monitor

import (
	"errors"
	"sync"

	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/reactor"
)

// maxReadFailures is how many consecutive failed edge reads an
// EdgeMonitor tolerates before it stops and releases the line.
const maxReadFailures = 5

// EdgeMonitor reports every edge on a line as Asserted or Deasserted.
type EdgeMonitor struct {
	base

	reactor *reactor.Reactor
	backend gpio.Backend
	cfg     gpio.LineConfig
	verbose bool

	mu      sync.Mutex
	line    gpio.Line
	started bool
	stopped bool

	// Only touched on the reactor loop.
	readFailures int
}

// EdgeOption configures an EdgeMonitor.
type EdgeOption func(*EdgeMonitor)

// Quiet suppresses the per-edge Asserted/Deasserted log lines.
func Quiet() EdgeOption {
	return func(m *EdgeMonitor) {
		m.verbose = false
	}
}

// NewEdgeMonitor creates a monitor for cfg. With continueRun false the
// monitor delivers a single event and then goes quiet.
func NewEdgeMonitor(r *reactor.Reactor, backend gpio.Backend, cfg gpio.LineConfig, name string, continueRun bool, opts ...EdgeOption) *EdgeMonitor {
	m := &EdgeMonitor{
		reactor: r,
		backend: backend,
		cfg:     cfg,
		verbose: true,
	}
	m.base.init(name, continueRun)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartMonitoring requests the line, passes its current level to the
// init action and arms the first readiness wait.
func (m *EdgeMonitor) StartMonitoring() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		m.log.Error("line was already initialized for monitoring")
		return ErrAlreadyStarted
	}
	line, err := m.backend.RequestLine(m.cfg)
	if err != nil {
		m.mu.Unlock()
		m.log.WithError(err).Error("failed to request line")
		return &SetupError{Line: m.name, Err: err}
	}
	m.line = line
	m.started = true
	m.mu.Unlock()

	m.log.WithField("flags", m.cfg.Flags()).Info("monitoring started")

	level, err := line.Value()
	if err != nil {
		m.log.WithError(err).Error("failed to read initial level, assuming deasserted")
		level = 0
	}
	m.initAction(levelEvent(level))

	if err := m.arm(); err != nil {
		m.log.WithError(err).Error("failed to register event handler")
		return &SetupError{Line: m.name, Err: err}
	}
	return nil
}

// StopMonitoring cancels the pending wait and releases the line.
func (m *EdgeMonitor) StopMonitoring() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	line := m.line
	m.mu.Unlock()

	m.halt()
	if line == nil {
		return
	}
	m.reactor.CancelReadable(line)
	if err := line.Close(); err != nil {
		m.log.WithError(err).Warn("failed to release line")
	}
}

func (m *EdgeMonitor) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *EdgeMonitor) arm() error {
	if m.isStopped() {
		return nil
	}
	return m.reactor.OnReadable(m.line, m.handleReadable)
}

func (m *EdgeMonitor) handleReadable(err error) {
	if err != nil {
		// Cancellation comes from StopMonitoring and is expected.
		if !errors.Is(err, reactor.ErrAborted) {
			m.log.WithError(err).Error("event handler error")
		}
		return
	}

	ev, err := m.line.ReadEvent()
	if err != nil {
		if m.isStopped() {
			return
		}
		m.readFailures++
		if m.readFailures >= maxReadFailures {
			m.log.WithError(err).Errorf("failed to read edge event %d times, giving up", m.readFailures)
			m.StopMonitoring()
			return
		}
		m.log.WithError(err).Error("failed to read edge event")
		if err := m.arm(); err != nil {
			m.log.WithError(err).Error("failed to re-register event handler")
		}
		return
	}
	m.readFailures = 0

	event := Classify(ev.Edge)
	if m.verbose {
		m.log.Info(event.String())
	}
	m.eventAction(event)

	if !m.continues() {
		return
	}
	if err := m.arm(); err != nil {
		m.log.WithError(err).Error("failed to re-register event handler")
	}
}
