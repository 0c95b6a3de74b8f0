package transports

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort overrides the serial.Port methods SerialTransport uses.
type fakePort struct {
	serial.Port

	mu           sync.Mutex
	writeDelay   time.Duration
	written      []byte
	inFlight     int
	maxInFlight  int
	outputResets int

	closeCount  int
	inputResets int
	mode        *serial.Mode
	readTimeout time.Duration
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	delay := f.writeDelay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakePort) ResetOutputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputResets++
	return nil
}

func (f *fakePort) setWriteDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeDelay = d
}

func (f *fakePort) snapshot() (written string, maxInFlight, outputResets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.written), f.maxInFlight, f.outputResets
}

func (f *fakePort) Close() error {
	f.closeCount++
	return nil
}

func (f *fakePort) ResetInputBuffer() error {
	f.inputResets++
	return nil
}

func (f *fakePort) SetMode(mode *serial.Mode) error {
	f.mode = mode
	return nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.readTimeout = t
	return nil
}

func TestOpenSerial_EmptyName(t *testing.T) {
	if _, err := OpenSerial(""); err == nil {
		t.Fatal("expected error for empty port name")
	}
}

func TestSerialTransport_WriteWithinTimeout(t *testing.T) {
	port := &fakePort{}
	tr := newSerialTransport(port, "/dev/ttyFAKE")
	if err := tr.SetWriteTimeout(50 * time.Millisecond); err != nil {
		t.Fatalf("SetWriteTimeout failed: %v", err)
	}

	n, err := tr.Write([]byte("m127*"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("written: got %d, want 5", n)
	}
	if written, _, _ := port.snapshot(); written != "m127*" {
		t.Errorf("port data: got %q, want %q", written, "m127*")
	}
}

func TestSerialTransport_WriteTimeout(t *testing.T) {
	port := &fakePort{writeDelay: 100 * time.Millisecond}
	tr := newSerialTransport(port, "/dev/ttyFAKE")
	tr.SetWriteTimeout(10 * time.Millisecond)

	start := time.Now()
	n, err := tr.Write([]byte("m127*"))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("expected ErrWriteTimeout, got %v", err)
	}
	if n != 0 {
		t.Errorf("written: got %d, want 0", n)
	}
	if elapsed >= 100*time.Millisecond {
		t.Errorf("Write blocked for %v, expected to give up after ~10ms", elapsed)
	}
}

func TestSerialTransport_NoOverlappingWrites(t *testing.T) {
	port := &fakePort{writeDelay: 40 * time.Millisecond}
	tr := newSerialTransport(port, "/dev/ttyFAKE")
	tr.SetWriteTimeout(10 * time.Millisecond)

	if _, err := tr.Write([]byte("m127*")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("first write: expected ErrWriteTimeout, got %v", err)
	}

	start := time.Now()
	_, err := tr.Write([]byte("m127*"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("second write: expected ErrWriteTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 10*time.Millisecond {
		t.Errorf("second write waited %v, expected to fail fast while the first is pending", elapsed)
	}

	// Let the stuck write finish; the port accepts writes again afterwards.
	time.Sleep(60 * time.Millisecond)
	port.setWriteDelay(0)
	if _, err := tr.Write([]byte("m127*")); err != nil {
		t.Fatalf("write after pending write finished: %v", err)
	}

	written, maxInFlight, outputResets := port.snapshot()
	if maxInFlight != 1 {
		t.Errorf("concurrent writes on port: got %d, want 1", maxInFlight)
	}
	if written != "m127*m127*" {
		t.Errorf("port data: got %q, want two commands", written)
	}
	if outputResets != 1 {
		t.Errorf("output resets: got %d, want 1", outputResets)
	}
}

func TestSerialTransport_NegativeWriteTimeout(t *testing.T) {
	tr := newSerialTransport(&fakePort{}, "/dev/ttyFAKE")
	if err := tr.SetWriteTimeout(-time.Second); err == nil {
		t.Fatal("expected error for negative write timeout")
	}
}

func TestSerialTransport_CloseIdempotent(t *testing.T) {
	port := &fakePort{}
	tr := newSerialTransport(port, "/dev/ttyFAKE")

	for i := 0; i < 3; i++ {
		if err := tr.Close(); err != nil {
			t.Fatalf("Close #%d failed: %v", i+1, err)
		}
	}
	if port.closeCount != 1 {
		t.Errorf("port closed %d times, want 1", port.closeCount)
	}
}

func TestSerialTransport_Delegates(t *testing.T) {
	port := &fakePort{}
	tr := newSerialTransport(port, "/dev/ttyFAKE")

	mode := &serial.Mode{BaudRate: 1500000, DataBits: 8}
	tr.SetMode(mode)
	tr.SetReadTimeout(63 * time.Millisecond)
	tr.ResetInputBuffer()

	if port.mode != mode {
		t.Error("SetMode not forwarded to port")
	}
	if port.readTimeout != 63*time.Millisecond {
		t.Errorf("read timeout: got %v, want 63ms", port.readTimeout)
	}
	if port.inputResets != 1 {
		t.Errorf("input resets: got %d, want 1", port.inputResets)
	}
	if tr.PortName() != "/dev/ttyFAKE" {
		t.Errorf("PortName: got %q", tr.PortName())
	}
}
