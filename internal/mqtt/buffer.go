package mqtt

import (
	"github.com/eapache/queue"
	log "github.com/sirupsen/logrus"
)

// offlineBufferSize is how many messages are kept while disconnected.
const offlineBufferSize = 100

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a bounded FIFO that keeps the newest messages while
// disconnected. Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	q        *queue.Queue
	capacity int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{q: queue.New(), capacity: capacity}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.q.Length() == r.capacity {
		if !r.overflow {
			log.WithField("capacity", r.capacity).Warn("mqtt: offline buffer full, dropping oldest")
			r.overflow = true
		}
		r.q.Remove()
	}
	r.q.Add(msg)
}

// drainAll empties the buffer, oldest first.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.q.Length() == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.q.Length())
	for r.q.Length() > 0 {
		out = append(out, r.q.Remove().(bufferedMsg))
	}
	r.overflow = false
	return out
}

func (r *ringBuffer) len() int {
	return r.q.Length()
}
