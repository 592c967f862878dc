package gpio

import (
	"sync"

	"github.com/eapache/queue"
	log "github.com/sirupsen/logrus"
)

// maxBufferedEvents bounds the records held for a line between reads.
const maxBufferedEvents = 256

// edgeBuffer is the FIFO of edge records between the event source and the
// reader. Safe for concurrent use.
type edgeBuffer struct {
	mu       sync.Mutex
	events   *queue.Queue // of EdgeEvent
	notify   func()
	closed   bool
	overflow bool
}

func newEdgeBuffer() *edgeBuffer {
	return &edgeBuffer{events: queue.New()}
}

func (b *edgeBuffer) push(ev EdgeEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.events.Length() == maxBufferedEvents {
		if !b.overflow {
			log.Warnf("gpio: event buffer full (%d records), dropping oldest", maxBufferedEvents)
			b.overflow = true
		}
		b.events.Remove()
	}
	b.events.Add(ev)
	fn := b.notify
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (b *edgeBuffer) pop() (EdgeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return EdgeEvent{}, ErrClosed
	}
	if b.events.Length() == 0 {
		return EdgeEvent{}, ErrNoEvent
	}
	ev := b.events.Remove().(EdgeEvent)
	if b.events.Length() == 0 {
		b.overflow = false
	}
	return ev, nil
}

func (b *edgeBuffer) pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.events.Length() > 0
}

func (b *edgeBuffer) setNotify(fn func()) {
	b.mu.Lock()
	b.notify = fn
	b.mu.Unlock()
}

// close drops buffered records and the notification.
func (b *edgeBuffer) close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	b.notify = nil
	for b.events.Length() > 0 {
		b.events.Remove()
	}
	return true
}
