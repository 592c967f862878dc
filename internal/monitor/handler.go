package monitor

import (
	"fmt"
	"sync"
)

// Handler pairs one Monitor with one Action for their shared lifetime.
type Handler struct {
	monitor Monitor
	action  Action
	once    sync.Once
}

// NewHandler binds the action's callbacks to the monitor and starts it.
// Neither the monitor nor the action may be shared with another Handler.
func NewHandler(m Monitor, a Action) (*Handler, error) {
	m.SetInitAction(a.InitAction)
	m.SetEventAction(a.EventAction)

	if err := m.StartMonitoring(); err != nil {
		m.StopMonitoring()
		return nil, fmt.Errorf("start %s: %w", m.Name(), err)
	}
	return &Handler{monitor: m, action: a}, nil
}

// Name returns the monitored line's label.
func (h *Handler) Name() string {
	return h.monitor.Name()
}

// Close stops the monitor, cancelling any pending wait or timer and
// releasing the line.
func (h *Handler) Close() error {
	h.once.Do(h.monitor.StopMonitoring)
	return nil
}
