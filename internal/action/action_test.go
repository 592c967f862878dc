package action

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/sweeney/gpio-monitor/internal/monitor"
	"github.com/sweeney/gpio-monitor/internal/mqtt"
	"github.com/sweeney/gpio-monitor/internal/status"
)

func TestFuncsNilSlotsAreNoops(t *testing.T) {
	var f Funcs
	f.InitAction(monitor.EventAsserted)
	f.EventAction(monitor.EventDeasserted)

	Noop().InitAction(monitor.EventPulseStart)
	Noop().EventAction(monitor.EventPulseStop)
}

func TestFuncsCallsSlots(t *testing.T) {
	var inits, events []monitor.EventType
	f := Funcs{
		Init:  func(e monitor.EventType) { inits = append(inits, e) },
		Event: func(e monitor.EventType) { events = append(events, e) },
	}
	f.InitAction(monitor.EventDeasserted)
	f.EventAction(monitor.EventAsserted)

	if len(inits) != 1 || inits[0] != monitor.EventDeasserted {
		t.Errorf("inits: got %v", inits)
	}
	if len(events) != 1 || events[0] != monitor.EventAsserted {
		t.Errorf("events: got %v", events)
	}
}

func TestChainOrder(t *testing.T) {
	var got []string
	mk := func(name string) monitor.Action {
		return Funcs{
			Init:  func(monitor.EventType) { got = append(got, name+":init") },
			Event: func(monitor.EventType) { got = append(got, name+":event") },
		}
	}
	c := Chain(mk("a"), mk("b"), mk("c"))
	c.InitAction(monitor.EventAsserted)
	c.EventAction(monitor.EventAsserted)

	want := []string{"a:init", "b:init", "c:init", "a:event", "b:event", "c:event"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChainSingleAndEmpty(t *testing.T) {
	a := &TrackAction{}
	if Chain(a) != monitor.Action(a) {
		t.Error("expected a single action to be returned as is")
	}
	Chain().EventAction(monitor.EventAsserted)
}

func TestServiceStartTargets(t *testing.T) {
	starter := &FakeStarter{}
	a := ServiceStart(starter, "obmc-host-start@0.target", map[string][]string{
		AssertedKeyword:   {"power-on.service", "fan-boost.service"},
		DeassertedKeyword: {"power-off.service"},
	})

	a.InitAction(monitor.EventAsserted)
	if len(starter.Units) != 0 {
		t.Fatalf("expected init to start nothing, got %v", starter.Units)
	}

	a.EventAction(monitor.EventAsserted)
	a.EventAction(monitor.EventDeasserted)

	want := []string{
		"obmc-host-start@0.target", "power-on.service", "fan-boost.service",
		"obmc-host-start@0.target", "power-off.service",
	}
	if !reflect.DeepEqual(starter.Units, want) {
		t.Errorf("units: got %v, want %v", starter.Units, want)
	}
	for _, m := range starter.Modes {
		if m != "replace" {
			t.Errorf("mode: got %q, want replace", m)
		}
	}
}

func TestServiceStartPulseEventsMapToKeywords(t *testing.T) {
	starter := &FakeStarter{}
	a := ServiceStart(starter, "", map[string][]string{
		AssertedKeyword:   {"pulsing.service"},
		DeassertedKeyword: {"settled.service"},
	})
	a.EventAction(monitor.EventPulseStart)
	a.EventAction(monitor.EventPulseStop)

	want := []string{"pulsing.service", "settled.service"}
	if !reflect.DeepEqual(starter.Units, want) {
		t.Errorf("units: got %v, want %v", starter.Units, want)
	}
}

func TestServiceStartFailureContinues(t *testing.T) {
	starter := &FakeStarter{Errors: map[string]error{"a.service": errors.New("no such unit")}}
	a := ServiceStart(starter, "", map[string][]string{AssertedKeyword: {"a.service", "b.service"}})

	a.EventAction(monitor.EventAsserted)
	if !reflect.DeepEqual(starter.Units, []string{"a.service", "b.service"}) {
		t.Errorf("units: got %v", starter.Units)
	}
}

func TestServiceStartNoTargets(t *testing.T) {
	starter := &FakeStarter{}
	ServiceStart(starter, "", nil).EventAction(monitor.EventDeasserted)
	if len(starter.Units) != 0 {
		t.Errorf("expected no units, got %v", starter.Units)
	}
}

func presentOf(t *testing.T, objs ObjectMap, path dbus.ObjectPath) bool {
	t.Helper()
	props, ok := objs[path][ItemInterface]
	if !ok {
		t.Fatalf("missing %s on %s", ItemInterface, path)
	}
	present, ok := props["Present"].Value().(bool)
	if !ok {
		t.Fatalf("Present is not a bool: %v", props["Present"])
	}
	return present
}

func TestInventoryUpdate(t *testing.T) {
	inv := &FakeInventory{}
	a := InventoryUpdate(inv, "/system/chassis/fan0", []string{"xyz.openbmc_project.Inventory.Item.Fan"}, "Fan 0")

	a.InitAction(monitor.EventDeasserted)
	a.EventAction(monitor.EventAsserted)

	if len(inv.Updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(inv.Updates))
	}
	path := dbus.ObjectPath("/system/chassis/fan0")
	if presentOf(t, inv.Updates[0], path) {
		t.Error("expected Present=false from init")
	}
	if !presentOf(t, inv.Updates[1], path) {
		t.Error("expected Present=true after assert")
	}

	ifaces := inv.Updates[1][path]
	if name := ifaces[ItemInterface]["PrettyName"].Value(); name != "Fan 0" {
		t.Errorf("PrettyName: got %v", name)
	}
	extra, ok := ifaces["xyz.openbmc_project.Inventory.Item.Fan"]
	if !ok || len(extra) != 0 {
		t.Errorf("expected empty extra interface, got %v (present=%v)", extra, ok)
	}
}

func TestInventoryUpdateErrorAbsorbed(t *testing.T) {
	inv := &FakeInventory{NotifyError: errors.New("no inventory manager")}
	a := InventoryUpdate(inv, "/system/fan0", nil, "Fan 0")
	a.EventAction(monitor.EventAsserted)
	if len(inv.Updates) != 1 {
		t.Errorf("expected the call to be attempted, got %d", len(inv.Updates))
	}
}

func TestHealthNotifyOnlyOnFlip(t *testing.T) {
	h := &FakeHealth{}
	a := HealthNotify(h, "/xyz/openbmc_project/HealthMonitor/psu0", true)

	a.InitAction(monitor.EventAsserted)
	if !a.Healthy() {
		t.Fatal("expected healthy after asserted init")
	}

	a.EventAction(monitor.EventAsserted)
	if len(h.Calls) != 0 {
		t.Fatalf("expected no call while health is unchanged, got %d", len(h.Calls))
	}

	a.EventAction(monitor.EventDeasserted)
	a.EventAction(monitor.EventDeasserted)
	a.EventAction(monitor.EventAsserted)

	if len(h.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(h.Calls))
	}
	if h.Calls[0] != "/xyz/openbmc_project/HealthMonitor/psu0" {
		t.Errorf("path: got %q", h.Calls[0])
	}
	if !a.Healthy() {
		t.Error("expected healthy at the end")
	}
}

func TestHealthNotifyFallingPolarity(t *testing.T) {
	h := &FakeHealth{}
	a := HealthNotify(h, "/xyz/openbmc_project/HealthMonitor/psu0", false)

	a.InitAction(monitor.EventAsserted)
	if a.Healthy() {
		t.Fatal("expected unhealthy while asserted with falling polarity")
	}
	a.EventAction(monitor.EventDeasserted)
	if !a.Healthy() || len(h.Calls) != 1 {
		t.Errorf("expected one call and healthy, got %d calls healthy=%v", len(h.Calls), a.Healthy())
	}
}

func TestHealthNotifyErrorStillTracksLine(t *testing.T) {
	h := &FakeHealth{SetError: errors.New("no health monitor")}
	a := HealthNotify(h, "/xyz/openbmc_project/HealthMonitor/psu0", true)
	a.InitAction(monitor.EventAsserted)
	a.EventAction(monitor.EventDeasserted)
	if a.Healthy() {
		t.Error("expected health to follow the line")
	}
}

func TestPublish(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	a := Publish(pub, "PS_PWROK")
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	a.InitAction(monitor.EventDeasserted)
	a.EventAction(monitor.EventAsserted)

	want := []mqtt.LineEvent{
		{Timestamp: at, Line: "PS_PWROK", Event: "Deasserted", Init: true},
		{Timestamp: at, Line: "PS_PWROK", Event: "Asserted", Asserted: true},
	}
	if !reflect.DeepEqual(pub.Events, want) {
		t.Errorf("events:\ngot  %+v\nwant %+v", pub.Events, want)
	}
}

func TestPublishErrorAbsorbed(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	Publish(pub, "PS_PWROK").EventAction(monitor.EventAsserted)
}

func TestTrack(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	a := Track(tr, "FAN0")

	a.InitAction(monitor.EventPulseStop)
	a.EventAction(monitor.EventPulseStart)

	l, ok := tr.Snapshot().Line("FAN0")
	if !ok {
		t.Fatal("line not tracked")
	}
	if !l.Monitoring || l.State != "PulseStart" || l.Counts.PulseStart != 1 {
		t.Errorf("unexpected state: %+v", l)
	}
}
