// Package reactor provides a single-threaded event loop that delivers
// readiness and timer notifications.
//
// Every handler runs on the goroutine that calls Run (or Poll), one at a
// time and in the order it was queued. Registration and cancellation are
// safe to call from any goroutine.
package reactor

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"
	log "github.com/sirupsen/logrus"
)

// ErrAborted is delivered to a readiness or timer callback whose wait was
// cancelled. It is not a failure.
var ErrAborted = errors.New("reactor: operation aborted")

// ErrBusy is returned by OnReadable when the descriptor already has a
// pending wait.
var ErrBusy = errors.New("reactor: descriptor already has a pending wait")

// Descriptor is a source of readiness notifications.
type Descriptor interface {
	// Pending reports whether a record can be read without blocking.
	Pending() bool

	// Notify installs fn to be called, from any goroutine, whenever a new
	// record arrives. A nil fn removes the notification.
	Notify(fn func())
}

// Reactor is a single-threaded readiness and timer loop.
type Reactor struct {
	mu    sync.Mutex
	run   *queue.Queue // of func()
	waits map[Descriptor]func(error)
	wake  chan struct{}
	clock Clock
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithClock replaces the wall clock used for timers.
func WithClock(c Clock) Option {
	return func(r *Reactor) {
		r.clock = c
	}
}

// New creates an idle Reactor.
func New(opts ...Option) *Reactor {
	r := &Reactor{
		run:   queue.New(),
		waits: make(map[Descriptor]func(error)),
		wake:  make(chan struct{}, 1),
		clock: wallClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Post queues fn to run on the loop goroutine.
func (r *Reactor) Post(fn func()) {
	r.mu.Lock()
	r.run.Add(fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Poll runs queued handlers until the queue is empty and returns how many
// ran. Handlers queued by other handlers are run in the same call.
func (r *Reactor) Poll() int {
	n := 0
	for {
		r.mu.Lock()
		if r.run.Length() == 0 {
			r.mu.Unlock()
			return n
		}
		fn := r.run.Remove().(func())
		r.mu.Unlock()

		r.invoke(fn)
		n++
	}
}

// Run drives the loop until ctx is done.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		r.Poll()
		select {
		case <-ctx.Done():
			return nil
		case <-r.wake:
		}
	}
}

// invoke runs a handler, containing any panic so one misbehaving callback
// cannot stop the loop for every other line.
func (r *Reactor) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Errorf("reactor: handler panicked\n%s", debug.Stack())
		}
	}()
	fn()
}

// OnReadable registers a one-shot wait for d to become readable. The
// callback receives nil when a record is available, or ErrAborted if the
// wait is cancelled first. If d already has a record the callback is
// queued immediately.
func (r *Reactor) OnReadable(d Descriptor, cb func(error)) error {
	r.mu.Lock()
	if _, ok := r.waits[d]; ok {
		r.mu.Unlock()
		return ErrBusy
	}
	r.waits[d] = cb
	r.mu.Unlock()

	d.Notify(func() {
		r.Post(func() { r.ready(d) })
	})
	if d.Pending() {
		r.Post(func() { r.ready(d) })
	}
	return nil
}

// CancelReadable removes the pending wait on d, if any. Its callback is
// queued with ErrAborted.
func (r *Reactor) CancelReadable(d Descriptor) {
	r.mu.Lock()
	cb, ok := r.waits[d]
	delete(r.waits, d)
	r.mu.Unlock()

	if ok {
		r.Post(func() { cb(ErrAborted) })
	}
}

func (r *Reactor) ready(d Descriptor) {
	r.mu.Lock()
	cb, ok := r.waits[d]
	if !ok || !d.Pending() {
		r.mu.Unlock()
		return
	}
	delete(r.waits, d)
	r.mu.Unlock()

	cb(nil)
}
