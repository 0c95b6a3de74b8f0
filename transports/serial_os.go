package transports

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrWriteTimeout is returned when a write does not complete within the
// configured write timeout.
var ErrWriteTimeout = errors.New("write timeout")

// SerialTransport implements probe.Transport using a hardware serial port.
type SerialTransport struct {
	port     serial.Port
	portName string

	mu           sync.Mutex
	writeTimeout time.Duration
	inFlight     chan struct{} // closed when the last write returns
	closed       bool
}

// initialMode is replaced by the caller's SetMode right after the open.
var initialMode = serial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// OpenSerial opens a serial port for exclusive read/write access.
func OpenSerial(name string) (*SerialTransport, error) {
	if name == "" {
		return nil, errors.New("serial port path is required")
	}

	mode := initialMode
	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return newSerialTransport(port, name), nil
}

func newSerialTransport(port serial.Port, name string) *SerialTransport {
	return &SerialTransport{
		port:     port,
		portName: name,
	}
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

// Write writes p, giving up with ErrWriteTimeout once the write timeout
// elapses. go.bug.st/serial has no native write timeout: a timed-out
// write keeps running until the driver returns, its queued output is
// discarded, and further writes fail with ErrWriteTimeout until it ends.
func (t *SerialTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	if t.inFlight != nil {
		select {
		case <-t.inFlight:
		default:
			t.mu.Unlock()
			return 0, fmt.Errorf("%w: previous write still pending", ErrWriteTimeout)
		}
	}
	finished := make(chan struct{})
	t.inFlight = finished
	timeout := t.writeTimeout
	t.mu.Unlock()

	type writeResult struct {
		n   int
		err error
	}
	done := make(chan writeResult, 1)
	go func() {
		defer close(finished)
		n, err := t.port.Write(p)
		done <- writeResult{n, err}
	}()

	// A nil channel never fires, so a zero timeout waits for the driver.
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		return r.n, r.err
	case <-expired:
		t.port.ResetOutputBuffer()
		return 0, fmt.Errorf("%w after %s", ErrWriteTimeout, timeout)
	}
}

// Close closes the port. Subsequent calls return nil.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}

func (t *SerialTransport) SetMode(mode *serial.Mode) error {
	return t.port.SetMode(mode)
}

func (t *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	return t.port.SetReadTimeout(timeout)
}

// SetWriteTimeout sets the per-write timeout. Zero disables it.
func (t *SerialTransport) SetWriteTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("invalid write timeout %s", timeout)
	}
	t.mu.Lock()
	t.writeTimeout = timeout
	t.mu.Unlock()
	return nil
}

func (t *SerialTransport) ResetInputBuffer() error {
	return t.port.ResetInputBuffer()
}

func (t *SerialTransport) ResetOutputBuffer() error {
	return t.port.ResetOutputBuffer()
}

// PortName returns the serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}
