package action

import (
	"context"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// ItemInterface carries the Present and PrettyName properties.
const ItemInterface = "xyz.openbmc_project.Inventory.Item"

// PropertyMap, InterfaceMap and ObjectMap are the argument shape of the
// inventory manager's Notify method: a{oa{sa{sv}}}.
type (
	PropertyMap  map[string]dbus.Variant
	InterfaceMap map[string]PropertyMap
	ObjectMap    map[dbus.ObjectPath]InterfaceMap
)

// InventoryNotifier pushes object updates to the inventory manager.
type InventoryNotifier interface {
	Notify(ctx context.Context, objects ObjectMap) error
}

// InventoryAction keeps an inventory item's Present property in step with
// the line.
type InventoryAction struct {
	notifier   InventoryNotifier
	path       dbus.ObjectPath
	interfaces []string
	prettyName string
}

// InventoryUpdate returns an Action that sets Present on the item at path
// (relative to the inventory root) for both the initial state and every
// event. Each extra interface is attached with no properties.
func InventoryUpdate(notifier InventoryNotifier, path string, interfaces []string, prettyName string) *InventoryAction {
	return &InventoryAction{
		notifier:   notifier,
		path:       dbus.ObjectPath(path),
		interfaces: interfaces,
		prettyName: prettyName,
	}
}

// InitAction publishes the initial presence.
func (a *InventoryAction) InitAction(e monitor.EventType) {
	a.update(e.IsAsserted())
}

// EventAction publishes the new presence.
func (a *InventoryAction) EventAction(e monitor.EventType) {
	a.update(e.IsAsserted())
}

func (a *InventoryAction) objects(present bool) ObjectMap {
	ifaces := InterfaceMap{
		ItemInterface: PropertyMap{
			"Present":    dbus.MakeVariant(present),
			"PrettyName": dbus.MakeVariant(a.prettyName),
		},
	}
	for _, iface := range a.interfaces {
		ifaces[iface] = PropertyMap{}
	}
	return ObjectMap{a.path: ifaces}
}

func (a *InventoryAction) update(present bool) {
	entry := log.WithFields(log.Fields{"path": a.path, "present": present})
	entry.Info("updating inventory present property")

	ctx, cancel := callContext()
	defer cancel()
	if err := a.notifier.Notify(ctx, a.objects(present)); err != nil {
		entry.WithError(err).Error("failed to update inventory")
	}
}
