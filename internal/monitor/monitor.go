package monitor

import (
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyStarted is returned by a second StartMonitoring call.
	ErrAlreadyStarted = errors.New("monitor: already started")

	// ErrStopped is returned by StartMonitoring after StopMonitoring.
	ErrStopped = errors.New("monitor: stopped")
)

// SetupError reports that a line could not be requested or registered.
// The monitor is left unmonitored; other monitors are unaffected.
type SetupError struct {
	Line string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Line, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Monitor watches one line.
type Monitor interface {
	// Name returns the label used in logs.
	Name() string

	// StartMonitoring requests the line, reports its current state through
	// the init action and starts delivering events. It succeeds at most once.
	StartMonitoring() error

	// StopMonitoring cancels any pending wait and releases the line.
	// It is idempotent and safe to call from inside a callback.
	StopMonitoring()

	// SetInitAction and SetEventAction bind the callbacks. They must be
	// called before StartMonitoring; nil binds a no-op.
	SetInitAction(cb Callback)
	SetEventAction(cb Callback)
}

// base holds the state common to every Monitor.
type base struct {
	name               string
	continueAfterEvent atomic.Bool
	initAction         Callback
	eventAction        Callback
	log                *log.Entry
}

func (b *base) init(name string, continueRun bool) {
	b.name = name
	b.initAction = noop
	b.eventAction = noop
	b.log = log.WithField("gpio", name)
	b.continueAfterEvent.Store(continueRun)
}

func (b *base) Name() string { return b.name }

func (b *base) SetInitAction(cb Callback) {
	if cb == nil {
		cb = noop
	}
	b.initAction = cb
}

func (b *base) SetEventAction(cb Callback) {
	if cb == nil {
		cb = noop
	}
	b.eventAction = cb
}

func (b *base) continues() bool {
	return b.continueAfterEvent.Load()
}

func (b *base) halt() {
	b.continueAfterEvent.Store(false)
}
