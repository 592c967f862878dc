//go:build !linux

package gpio

import "errors"

// DefaultConsumer is the consumer label reported to the kernel.
const DefaultConsumer = "gpio-monitor"

// RealBackend is not available on non-Linux platforms.
type RealBackend struct{}

// NewRealBackend returns a backend whose requests always fail.
func NewRealBackend(consumer string) *RealBackend {
	return &RealBackend{}
}

// RequestLine returns an error on non-Linux platforms.
func (b *RealBackend) RequestLine(cfg LineConfig) (Line, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
