package gpio

import (
	"fmt"
	"sync"
)

// FakeBackend is a test double that hands out FakeLines keyed by label.
type FakeBackend struct {
	mu    sync.Mutex
	lines map[string]*FakeLine

	// Requests records every successful RequestLine config, in order.
	Requests []LineConfig

	// RequestError, if set, will be returned by RequestLine.
	RequestError error
}

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{lines: make(map[string]*FakeLine)}
}

// SetLevel presets the level a line will report, creating it if needed.
func (b *FakeBackend) SetLevel(label string, level int) *FakeLine {
	l := b.Line(label)
	l.mu.Lock()
	l.Level = level
	l.mu.Unlock()
	return l
}

// Line returns the fake for label, creating an unrequested one if needed.
func (b *FakeBackend) Line(label string) *FakeLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.lines[label]
	if !ok {
		l = &FakeLine{buf: newEdgeBuffer()}
		b.lines[label] = l
	}
	return l
}

// RequestLine returns the fake for cfg.Label(). A line can only be held
// by one requester at a time.
func (b *FakeBackend) RequestLine(cfg LineConfig) (Line, error) {
	if b.RequestError != nil {
		return nil, b.RequestError
	}
	l := b.Line(cfg.Label())

	b.mu.Lock()
	defer b.mu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Requested && !l.Closed {
		return nil, fmt.Errorf("request %s: %w", cfg.Label(), ErrLineBusy)
	}
	if l.Closed {
		l.buf = newEdgeBuffer()
		l.Closed = false
	}
	l.Requested = true
	l.Config = cfg
	b.Requests = append(b.Requests, cfg)
	return l, nil
}

// FakeLine is a scripted line. Emit queues edge records as the kernel would.
type FakeLine struct {
	mu  sync.Mutex
	buf *edgeBuffer

	// Config is the configuration the line was requested with.
	Config LineConfig

	// Level is returned by Value.
	Level int

	// ReadError, if set, is returned by ReadEvent and the record stays queued.
	ReadError error

	// ValueError, if set, is returned by Value.
	ValueError error

	// Requested tracks whether RequestLine handed out this line.
	Requested bool

	// Closed tracks if Close was called; CloseCount counts the calls.
	Closed     bool
	CloseCount int
}

// Emit queues an edge record and updates Level to match it.
func (l *FakeLine) Emit(edge Edge) {
	l.mu.Lock()
	if edge == RisingEdge {
		l.Level = 1
	} else {
		l.Level = 0
	}
	buf := l.buf
	l.mu.Unlock()
	buf.push(EdgeEvent{Edge: edge})
}

// Pending reports whether a record is queued.
func (l *FakeLine) Pending() bool {
	return l.buffer().pending()
}

// Notify installs the arrival notification.
func (l *FakeLine) Notify(fn func()) {
	l.buffer().setNotify(fn)
}

// ReadEvent returns the oldest queued record.
func (l *FakeLine) ReadEvent() (EdgeEvent, error) {
	l.mu.Lock()
	err := l.ReadError
	l.mu.Unlock()
	if err != nil {
		return EdgeEvent{}, err
	}
	return l.buffer().pop()
}

// Value returns the scripted level.
func (l *FakeLine) Value() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ValueError != nil {
		return 0, l.ValueError
	}
	return l.Level, nil
}

// Close marks the line as released.
func (l *FakeLine) Close() error {
	l.mu.Lock()
	l.Closed = true
	l.CloseCount++
	buf := l.buf
	l.mu.Unlock()
	buf.close()
	return nil
}

// SetReadError sets or clears ReadError.
func (l *FakeLine) SetReadError(err error) {
	l.mu.Lock()
	l.ReadError = err
	l.mu.Unlock()
}

func (l *FakeLine) buffer() *edgeBuffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf
}
