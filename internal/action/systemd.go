package action

import (
	"context"
	"fmt"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// Keys of the per-event unit lists.
const (
	AssertedKeyword   = "ASSERTED"
	DeassertedKeyword = "DEASSERTED"
)

// startMode is the systemd job mode used for every StartUnit call.
const startMode = "replace"

// UnitStarter starts systemd units.
type UnitStarter interface {
	StartUnit(ctx context.Context, name, mode string) error
}

// ServiceStartAction starts systemd units when an event arrives.
type ServiceStartAction struct {
	starter UnitStarter
	target  string
	targets map[string][]string
}

// ServiceStart returns an Action that starts target (if set) on every
// event, followed by targets[AssertedKeyword] or targets[DeassertedKeyword]
// depending on the event. The init callback does nothing.
func ServiceStart(starter UnitStarter, target string, targets map[string][]string) *ServiceStartAction {
	return &ServiceStartAction{starter: starter, target: target, targets: targets}
}

// InitAction does nothing.
func (a *ServiceStartAction) InitAction(monitor.EventType) {}

// EventAction starts the units selected by e. Failures are logged and do
// not stop the remaining units.
func (a *ServiceStartAction) EventAction(e monitor.EventType) {
	for _, unit := range a.units(e) {
		ctx, cancel := callContext()
		err := a.starter.StartUnit(ctx, unit, startMode)
		cancel()
		if err != nil {
			log.WithError(err).WithField("unit", unit).Error("failed to start unit")
			continue
		}
		log.WithField("unit", unit).Info("started unit")
	}
}

func (a *ServiceStartAction) units(e monitor.EventType) []string {
	var units []string
	if a.target != "" {
		units = append(units, a.target)
	}
	key := DeassertedKeyword
	if e.IsAsserted() {
		key = AssertedKeyword
	}
	return append(units, a.targets[key]...)
}

// SystemdStarter starts units through the systemd manager on the system bus.
type SystemdStarter struct {
	conn *sddbus.Conn
}

// NewSystemdStarter connects to systemd.
func NewSystemdStarter(ctx context.Context) (*SystemdStarter, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &SystemdStarter{conn: conn}, nil
}

// StartUnit queues a start job for name without waiting for it to finish.
func (s *SystemdStarter) StartUnit(ctx context.Context, name, mode string) error {
	if _, err := s.conn.StartUnitContext(ctx, name, mode, nil); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

// Close closes the systemd connection.
func (s *SystemdStarter) Close() {
	s.conn.Close()
}
