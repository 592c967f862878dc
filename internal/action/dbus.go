package action

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

const (
	inventoryRoot          = dbus.ObjectPath("/xyz/openbmc_project/inventory")
	inventoryManagerIface  = "xyz.openbmc_project.Inventory.Manager"
	mapperBusName          = "xyz.openbmc_project.ObjectMapper"
	mapperPath             = dbus.ObjectPath("/xyz/openbmc_project/object_mapper")
	mapperGetObject        = "xyz.openbmc_project.ObjectMapper.GetObject"
	healthService          = "xyz.openbmc_project.HealthMonitor"
	healthSetHealthyMethod = "xyz.openbmc_project.HealthMonitor.GetStatus.set_healthy"
)

// ErrNoService is returned when the mapper knows no owner for an interface.
var ErrNoService = errors.New("dbus: no service implements interface")

// objectFunc resolves a bus object; *dbus.Conn.Object in production.
type objectFunc func(dest string, path dbus.ObjectPath) dbus.BusObject

// DBusInventory sends presence updates to the inventory manager, found
// through the object mapper.
type DBusInventory struct {
	object objectFunc
}

// NewDBusInventory uses the shared system bus connection.
func NewDBusInventory() (*DBusInventory, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return &DBusInventory{object: conn.Object}, nil
}

// Notify looks up the inventory manager and calls its Notify method.
func (d *DBusInventory) Notify(ctx context.Context, objects ObjectMap) error {
	service, err := d.service(ctx)
	if err != nil {
		return err
	}
	call := d.object(service, inventoryRoot).CallWithContext(ctx, inventoryManagerIface+".Notify", 0, objects)
	if call.Err != nil {
		return fmt.Errorf("inventory notify: %w", call.Err)
	}
	return nil
}

func (d *DBusInventory) service(ctx context.Context) (string, error) {
	var owners map[string][]string
	err := d.object(mapperBusName, mapperPath).
		CallWithContext(ctx, mapperGetObject, 0, inventoryRoot, []string{inventoryManagerIface}).
		Store(&owners)
	if err != nil {
		return "", fmt.Errorf("mapper GetObject %s: %w", inventoryRoot, err)
	}
	if len(owners) == 0 {
		return "", fmt.Errorf("%w %s", ErrNoService, inventoryManagerIface)
	}
	names := make([]string, 0, len(owners))
	for name := range owners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], nil
}

// DBusHealth calls set_healthy on health monitor objects.
type DBusHealth struct {
	object objectFunc
}

// NewDBusHealth uses the shared system bus connection.
func NewDBusHealth() (*DBusHealth, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return &DBusHealth{object: conn.Object}, nil
}

// SetHealthy toggles the health of the object at objectPath.
func (h *DBusHealth) SetHealthy(ctx context.Context, objectPath string) error {
	path := dbus.ObjectPath(objectPath)
	if !path.IsValid() {
		return fmt.Errorf("set_healthy: invalid object path %q", objectPath)
	}
	call := h.object(healthService, path).CallWithContext(ctx, healthSetHealthyMethod, 0)
	if call.Err != nil {
		return fmt.Errorf("set_healthy %s: %w", objectPath, call.Err)
	}
	return nil
}
