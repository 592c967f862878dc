package action

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// HealthSetter toggles the health state of a health monitor object.
type HealthSetter interface {
	SetHealthy(ctx context.Context, objectPath string) error
}

// HealthAction reports a line's health to the health monitor. The remote
// side keeps a toggle, so set_healthy is only called when the health
// derived from the line flips.
type HealthAction struct {
	setter          HealthSetter
	objectPath      string
	healthyOnRising bool

	healthy bool
}

// HealthNotify returns an Action for the health object at objectPath.
// With healthyOnRising the line is healthy while asserted, otherwise while
// deasserted. The initial state is taken from the init callback without a
// remote call.
func HealthNotify(setter HealthSetter, objectPath string, healthyOnRising bool) *HealthAction {
	return &HealthAction{
		setter:          setter,
		objectPath:      objectPath,
		healthyOnRising: healthyOnRising,
	}
}

func (a *HealthAction) derive(e monitor.EventType) bool {
	return e.IsAsserted() == a.healthyOnRising
}

// InitAction records the starting health.
func (a *HealthAction) InitAction(e monitor.EventType) {
	a.healthy = a.derive(e)
}

// EventAction toggles the remote health if the line's health changed.
func (a *HealthAction) EventAction(e monitor.EventType) {
	healthy := a.derive(e)
	if healthy == a.healthy {
		return
	}

	ctx, cancel := callContext()
	defer cancel()
	entry := log.WithFields(log.Fields{"path": a.objectPath, "healthy": healthy})
	if err := a.setter.SetHealthy(ctx, a.objectPath); err != nil {
		entry.WithError(err).Error("failed to update health")
	} else {
		entry.Info("health changed")
	}
	a.healthy = healthy
}

// Healthy reports the health last derived from the line.
func (a *HealthAction) Healthy() bool {
	return a.healthy
}
