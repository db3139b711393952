// Package serialmux abstracts the byte streams that carry controller traffic:
// real serial ports opened through go.bug.st/serial, an in-process test port,
// port discovery and a traffic tap exposing live wire activity on the debug
// routes.
package serialmux

import (
	"fmt"
	"io"
	"time"
)

// ErrWriteFailed reports a write that transmitted fewer bytes than requested.
var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities. A read
// that times out returns (0, nil), as go.bug.st/serial does.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the port at path. Open is the production implementation;
// tests substitute a MockOpener.
type Opener func(path string, opts PortOptions) (TimeoutSerialPorter, error)
