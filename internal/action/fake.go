package action

import (
	"context"
	"sync"
)

// FakeStarter records StartUnit calls.
type FakeStarter struct {
	mu sync.Mutex

	// Units contains every unit name passed to StartUnit, in order.
	Units []string

	// Modes contains the job mode of each call.
	Modes []string

	// Errors maps a unit name to the error StartUnit returns for it.
	Errors map[string]error
}

// StartUnit records the call.
func (f *FakeStarter) StartUnit(_ context.Context, name, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Units = append(f.Units, name)
	f.Modes = append(f.Modes, mode)
	return f.Errors[name]
}

// FakeInventory records Notify calls.
type FakeInventory struct {
	mu sync.Mutex

	// Updates contains the objects of every Notify call.
	Updates []ObjectMap

	// NotifyError, if set, will be returned by Notify.
	NotifyError error
}

// Notify records the update.
func (f *FakeInventory) Notify(_ context.Context, objects ObjectMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = append(f.Updates, objects)
	return f.NotifyError
}

// FakeHealth records SetHealthy calls.
type FakeHealth struct {
	mu sync.Mutex

	// Calls contains the object path of every SetHealthy call.
	Calls []string

	// SetError, if set, will be returned by SetHealthy.
	SetError error
}

// SetHealthy records the call.
func (f *FakeHealth) SetHealthy(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, objectPath)
	return f.SetError
}
