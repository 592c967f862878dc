// Package gpio provides GPIO line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoEvent is returned by ReadEvent when no edge record is buffered.
	ErrNoEvent = errors.New("gpio: no edge event available")

	// ErrClosed is returned by operations on a released line.
	ErrClosed = errors.New("gpio: line closed")

	// ErrLineBusy is returned when the line is already requested.
	ErrLineBusy = errors.New("gpio: line busy")

	// ErrLineNotFound is returned when the chip or named line does not exist.
	ErrLineNotFound = errors.New("gpio: line not found")
)

// EdgeDirection selects which edges are reported for a line.
type EdgeDirection int

const (
	EdgeBoth EdgeDirection = iota
	EdgeRising
	EdgeFalling
)

func (e EdgeDirection) String() string {
	switch e {
	case EdgeRising:
		return "RISING"
	case EdgeFalling:
		return "FALLING"
	default:
		return "BOTH"
	}
}

// Bias is the pull resistor configuration applied when requesting a line.
type Bias int

const (
	BiasAsIs Bias = iota
	BiasDisable
	BiasPullUp
	BiasPullDown
)

func (b Bias) String() string {
	switch b {
	case BiasDisable:
		return "DISABLE"
	case BiasPullUp:
		return "PULL_UP"
	case BiasPullDown:
		return "PULL_DOWN"
	default:
		return "AS_IS"
	}
}

// Edge is the polarity of a single edge record.
type Edge int

const (
	RisingEdge Edge = iota + 1
	FallingEdge
)

func (e Edge) String() string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	default:
		return "unknown"
	}
}

// EdgeEvent is one edge record read from a line.
// Active-low inversion has already been applied by the kernel.
type EdgeEvent struct {
	Edge      Edge
	Timestamp time.Duration
	Seqno     uint32
}

// LineConfig identifies a line and how to request it.
// A line is identified either by Name or by Chip and Offset.
type LineConfig struct {
	Name      string
	Chip      string
	Offset    int
	Edge      EdgeDirection
	Bias      Bias
	ActiveLow bool
}

// Label returns a short identifier for the line.
func (c LineConfig) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s:%d", c.Chip, c.Offset)
}

// Flags renders the request flags for logging, e.g. "[ Bias PULL_UP ActiveLow]".
// Returns "" when no flags are set.
func (c LineConfig) Flags() string {
	var b strings.Builder
	if c.Bias != BiasAsIs {
		b.WriteString(" Bias ")
		b.WriteString(c.Bias.String())
	}
	if c.ActiveLow {
		b.WriteString(" ActiveLow")
	}
	if b.Len() == 0 {
		return ""
	}
	return "[" + b.String() + "]"
}

// Backend requests lines from a GPIO provider.
type Backend interface {
	RequestLine(cfg LineConfig) (Line, error)
}

// Line is a requested input line with edge detection enabled.
// It is readable, in the reactor sense, while edge records are buffered.
type Line interface {
	// Pending reports whether ReadEvent would return a record.
	Pending() bool

	// Notify installs fn to be called whenever a record is buffered.
	Notify(fn func())

	// ReadEvent removes and returns the oldest buffered edge record.
	ReadEvent() (EdgeEvent, error)

	// Value returns the current logical level (0 or 1).
	Value() (int, error)

	// Close releases the line.
	Close() error
}
