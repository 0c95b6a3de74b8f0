package probe

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-oriented channel the probe drives.
// This abstraction allows for testing with mock implementations.
type Transport interface {
	io.ReadWriteCloser

	// SetMode applies framing and baud rate.
	SetMode(mode *serial.Mode) error

	// SetReadTimeout bounds a single Read call.
	SetReadTimeout(timeout time.Duration) error

	// SetWriteTimeout bounds a single Write call.
	SetWriteTimeout(timeout time.Duration) error

	// ResetInputBuffer discards any buffered input data.
	ResetInputBuffer() error

	// ResetOutputBuffer discards any data not yet transmitted.
	ResetOutputBuffer() error
}

// Opener opens the endpoint and hands back exclusive ownership of it.
type Opener func(endpoint string) (Transport, error)
