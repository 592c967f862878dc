//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// DefaultConsumer is the consumer label reported to the kernel.
const DefaultConsumer = "gpio-monitor"

// RealBackend requests lines from the Linux GPIO character device.
type RealBackend struct {
	consumer string
}

// NewRealBackend creates a backend that labels its requests with consumer.
func NewRealBackend(consumer string) *RealBackend {
	if consumer == "" {
		consumer = DefaultConsumer
	}
	return &RealBackend{consumer: consumer}
}

// RealLine is a line requested with edge detection. Edge records are
// delivered by gpiocdev on its own goroutine and buffered until read.
type RealLine struct {
	line *gpiocdev.Line
	buf  *edgeBuffer
}

// RequestLine requests cfg as an input with edge detection.
// A named line is resolved to its chip and offset first.
func (b *RealBackend) RequestLine(cfg LineConfig) (Line, error) {
	chip, offset := cfg.Chip, cfg.Offset
	if cfg.Name != "" {
		c, o, err := findLine(cfg.Name)
		if err != nil {
			return nil, err
		}
		chip, offset = c, o
	}

	l := &RealLine{buf: newEdgeBuffer()}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(b.consumer),
		gpiocdev.WithEventHandler(l.handleEvent),
	}
	switch cfg.Edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	default:
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	switch cfg.Bias {
	case BiasDisable:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s:%d: %w", chip, offset, classify(err))
	}
	l.line = line
	return l, nil
}

// findLine searches every chip for a line with the given name and
// returns the first match.
func findLine(name string) (string, int, error) {
	for _, chip := range gpiocdev.Chips() {
		c, err := gpiocdev.NewChip(chip)
		if err != nil {
			continue
		}
		offset := -1
		for o := 0; o < c.Lines(); o++ {
			info, err := c.LineInfo(o)
			if err == nil && info.Name == name {
				offset = o
				break
			}
		}
		c.Close()
		if offset >= 0 {
			return chip, offset, nil
		}
	}
	return "", 0, fmt.Errorf("find line %q: %w", name, ErrLineNotFound)
}

// classify maps kernel errnos onto the package's sentinel errors.
func classify(err error) error {
	switch {
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %w", ErrLineBusy, err)
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV):
		return fmt.Errorf("%w: %w", ErrLineNotFound, err)
	default:
		return err
	}
}

func (l *RealLine) handleEvent(evt gpiocdev.LineEvent) {
	edge := FallingEdge
	if evt.Type == gpiocdev.LineEventRisingEdge {
		edge = RisingEdge
	}
	l.buf.push(EdgeEvent{
		Edge:      edge,
		Timestamp: evt.Timestamp,
		Seqno:     evt.LineSeqno,
	})
}

// Pending reports whether an edge record is buffered.
func (l *RealLine) Pending() bool { return l.buf.pending() }

// Notify installs the arrival notification.
func (l *RealLine) Notify(fn func()) { l.buf.setNotify(fn) }

// ReadEvent returns the oldest buffered edge record.
func (l *RealLine) ReadEvent() (EdgeEvent, error) { return l.buf.pop() }

// Value returns the current logical level of the line.
func (l *RealLine) Value() (int, error) {
	v, err := l.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read value: %w", err)
	}
	return v, nil
}

// Close releases the line. Closing waits for any running event handler
// to return, so it must not be called from the gpiocdev handler itself.
func (l *RealLine) Close() error {
	if !l.buf.close() {
		return nil
	}
	if err := l.line.Close(); err != nil {
		return fmt.Errorf("close line: %w", err)
	}
	return nil
}
