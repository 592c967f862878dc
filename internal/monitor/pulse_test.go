package monitor

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/reactor"
)

const pulseTimeout = 100 * time.Millisecond

type pulseHarness struct {
	t       *testing.T
	r       *reactor.Reactor
	clock   *reactor.ManualClock
	backend *gpio.FakeBackend
	monitor *PulseMonitor
	rec     *recorder
}

func newPulseHarness(t *testing.T, continueRun bool, kind PulseKind) *pulseHarness {
	t.Helper()
	r, clock := newTestReactor()
	b := gpio.NewFakeBackend()
	p := NewPulseMonitor(r, b, testLine(), "PS_PWROK", continueRun, pulseTimeout, kind)
	rec := &recorder{}
	bind(p, rec)
	if err := p.StartMonitoring(); err != nil {
		t.Fatalf("StartMonitoring: %v", err)
	}
	r.Poll()
	return &pulseHarness{t: t, r: r, clock: clock, backend: b, monitor: p, rec: rec}
}

func (h *pulseHarness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.r.Poll()
}

func (h *pulseHarness) edge() {
	h.backend.Line("PS_PWROK").Emit(gpio.RisingEdge)
	h.r.Poll()
}

func (h *pulseHarness) expect(want ...EventType) {
	h.t.Helper()
	if !equalEvents(h.rec.events(), want) {
		h.t.Errorf("events: got %v, want %v", h.rec.events(), want)
	}
}

func TestPulseMonitorInitReportsNotPulsing(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)
	if !equalEvents(h.rec.inits(), []EventType{EventPulseStop}) {
		t.Errorf("inits: got %v", h.rec.inits())
	}
	h.expect()
}

// Edges at 0ms and 30ms start a pulse; it stops 100ms after the last edge.
func TestPulseMonitorTwoEdgesThenTimeout(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	h.edge()
	h.expect()
	h.advance(30 * time.Millisecond)
	h.edge()
	h.expect(EventPulseStart)

	h.advance(99 * time.Millisecond)
	h.expect(EventPulseStart)

	h.advance(1 * time.Millisecond)
	h.expect(EventPulseStart, EventPulseStop)
	if h.monitor.edges != 0 {
		t.Errorf("expected edge count reset, got %d", h.monitor.edges)
	}
}

func TestPulseMonitorSingleEdgeIsNotAPulse(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	h.edge()
	h.advance(pulseTimeout)
	h.expect()
	if h.monitor.edges != 0 {
		t.Errorf("expected edge count reset, got %d", h.monitor.edges)
	}

	// A lone edge long after the first one is still not a pulse.
	h.advance(time.Second)
	h.edge()
	h.advance(pulseTimeout)
	h.expect()
}

// Edges every 30ms produce one start; the stop comes 100ms after the last.
func TestPulseMonitorSustainedPulsing(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	h.edge()
	for i := 0; i < 3; i++ {
		h.advance(30 * time.Millisecond)
		h.edge()
	}
	h.expect(EventPulseStart)
	if h.monitor.edges != minEdgesToPulse {
		t.Errorf("expected edge count clamped at %d, got %d", minEdgesToPulse, h.monitor.edges)
	}

	h.advance(99 * time.Millisecond)
	h.expect(EventPulseStart)
	h.advance(1 * time.Millisecond)
	h.expect(EventPulseStart, EventPulseStop)
}

func TestPulseMonitorStopCancelsTimer(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	h.edge()
	h.advance(30 * time.Millisecond)
	h.edge()
	h.advance(20 * time.Millisecond)

	fl := h.backend.Line("PS_PWROK")
	h.monitor.StopMonitoring()
	h.r.Poll()
	if h.clock.Pending() != 0 {
		t.Errorf("expected no armed timers, got %d", h.clock.Pending())
	}

	h.advance(time.Second)
	h.expect(EventPulseStart)
	if !fl.Closed {
		t.Error("expected line to be released")
	}

	h.monitor.StopMonitoring()
	if fl.CloseCount != 1 {
		t.Errorf("expected line released once, got %d", fl.CloseCount)
	}
}

func TestPulseMonitorRepeatedPulses(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	for i := 0; i < 3; i++ {
		h.edge()
		h.advance(10 * time.Millisecond)
		h.edge()
		h.advance(pulseTimeout)
	}
	h.expect(
		EventPulseStart, EventPulseStop,
		EventPulseStart, EventPulseStop,
		EventPulseStart, EventPulseStop,
	)
}

func TestPulseMonitorKindFilter(t *testing.T) {
	tests := []struct {
		kind PulseKind
		want []EventType
	}{
		{PulseStart, []EventType{EventPulseStart}},
		{PulseStop, []EventType{EventPulseStop}},
		{PulseBoth, []EventType{EventPulseStart, EventPulseStop}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newPulseHarness(t, true, tt.kind)
			h.edge()
			h.advance(10 * time.Millisecond)
			h.edge()
			h.advance(pulseTimeout)
			h.expect(tt.want...)
			if h.monitor.edges != 0 {
				t.Errorf("expected edge count reset, got %d", h.monitor.edges)
			}
		})
	}
}

func TestPulseMonitorOneShotStopsAfterStart(t *testing.T) {
	h := newPulseHarness(t, false, PulseBoth)
	fl := h.backend.Line("PS_PWROK")

	h.edge()
	h.advance(10 * time.Millisecond)
	h.edge()
	h.expect(EventPulseStart)
	if !fl.Closed {
		t.Error("expected one-shot monitor to release the line")
	}

	h.advance(pulseTimeout)
	fl.Emit(gpio.RisingEdge)
	h.r.Poll()
	h.advance(pulseTimeout)
	h.expect(EventPulseStart)
}

func TestPulseMonitorOneShotStopKind(t *testing.T) {
	h := newPulseHarness(t, false, PulseStop)
	fl := h.backend.Line("PS_PWROK")

	h.edge()
	h.advance(10 * time.Millisecond)
	h.edge()
	h.expect()
	h.advance(pulseTimeout)
	h.expect(EventPulseStop)
	if !fl.Closed {
		t.Error("expected one-shot monitor to release the line")
	}
}

func TestPulseMonitorStartTwice(t *testing.T) {
	h := newPulseHarness(t, true, PulseBoth)

	if err := h.monitor.StartMonitoring(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if len(h.rec.inits()) != 1 {
		t.Errorf("expected one init call, got %d", len(h.rec.inits()))
	}
	if len(h.backend.Requests) != 1 {
		t.Errorf("expected one line request, got %d", len(h.backend.Requests))
	}
}

func TestPulseMonitorSetupFailure(t *testing.T) {
	r, _ := newTestReactor()
	b := gpio.NewFakeBackend()
	b.RequestError = gpio.ErrLineBusy
	p := NewPulseMonitor(r, b, testLine(), "PS_PWROK", true, pulseTimeout, PulseBoth)

	err := p.StartMonitoring()
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("expected SetupError, got %v", err)
	}
	if !errors.Is(err, gpio.ErrLineBusy) {
		t.Errorf("expected wrapped ErrLineBusy, got %v", err)
	}
}

// For any edge timing, starts and stops match the number of runs of two or
// more edges with gaps shorter than the timeout.
func TestPulseMonitorRandomTimings(t *testing.T) {
	gaps := []time.Duration{
		5 * time.Millisecond,
		50 * time.Millisecond,
		99 * time.Millisecond,
		pulseTimeout,
		250 * time.Millisecond,
	}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		h := newPulseHarness(t, true, PulseBoth)

		n := 1 + rng.Intn(20)
		runLen, pulses := 0, 0
		for i := 0; i < n; i++ {
			gap := gaps[rng.Intn(len(gaps))]
			if i > 0 {
				h.advance(gap)
			}
			if i == 0 || gap >= pulseTimeout {
				if runLen >= minEdgesToPulse {
					pulses++
				}
				runLen = 0
			}
			runLen++
			h.edge()
		}
		h.advance(pulseTimeout)
		if runLen >= minEdgesToPulse {
			pulses++
		}

		var starts, stops int
		for _, e := range h.rec.events() {
			switch e {
			case EventPulseStart:
				starts++
			case EventPulseStop:
				stops++
			}
		}
		if starts != pulses || stops != pulses {
			t.Fatalf("round %d: got %d starts and %d stops, want %d of each", round, starts, stops, pulses)
		}
		if h.monitor.edges != 0 {
			t.Fatalf("round %d: expected edge count reset, got %d", round, h.monitor.edges)
		}
	}
}

func TestPulseKindString(t *testing.T) {
	tests := map[PulseKind]string{
		PulseStart:   "START",
		PulseStop:    "STOP",
		PulseBoth:    "BOTH",
		PulseKind(0): "UNKNOWN",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String(): got %q, want %q", int(k), got, want)
		}
	}
}
