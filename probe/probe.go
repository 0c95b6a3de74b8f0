package probe

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/hipsterbrown/acquisition-probe/transports"
)

// Wire format and timing of the m127 acquisition exchange.
const (
	Command      = "m127*"
	AckSize      = 9
	PayloadSize  = 99
	ResponseSize = AckSize + PayloadSize
	Marker       = "m=  127"

	ReadTimeout  = 63 * time.Millisecond
	WriteTimeout = 10 * time.Millisecond

	DefaultBaudRate = 1500000
)

// Probe times one acquisition command/response exchange per Trial.
// A Probe owns its transport exclusively and is meant to be driven by a
// single caller.
type Probe struct {
	transport Transport
	endpoint  string
	baudRate  int
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Config holds configuration for creating a new Probe.
type Config struct {
	// Endpoint is the serial port name (e.g., "/dev/ttyUSB0", "COM10").
	Endpoint string

	// BaudRate is the communication speed. Default is 1500000.
	BaudRate int

	// Opener opens the endpoint. Default opens a hardware serial port.
	Opener Opener

	// Logger receives trial failures at debug level. Default discards.
	Logger *slog.Logger
}

// New opens and configures the endpoint. Any failure after the open
// closes the transport before the error is returned.
func New(cfg Config) (*Probe, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Opener == nil {
		cfg.Opener = openSerial
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Endpoint == "" {
		return nil, &ChannelOpenError{Err: ErrNoEndpoint}
	}
	if cfg.BaudRate < 0 {
		return nil, &ConfigurationError{Op: "set mode", Err: fmt.Errorf("invalid baud rate %d", cfg.BaudRate)}
	}

	transport, err := cfg.Opener(cfg.Endpoint)
	if err != nil {
		return nil, &ChannelOpenError{Endpoint: cfg.Endpoint, Err: err}
	}
	if transport == nil {
		return nil, &ChannelOpenError{Endpoint: cfg.Endpoint, Err: fmt.Errorf("opener returned no transport")}
	}

	if err := configure(transport, cfg.BaudRate); err != nil {
		transport.Close()
		return nil, err
	}

	cfg.Logger.Debug("probe ready", "endpoint", cfg.Endpoint, "baud", cfg.BaudRate)

	return &Probe{
		transport: transport,
		endpoint:  cfg.Endpoint,
		baudRate:  cfg.BaudRate,
		logger:    cfg.Logger,
	}, nil
}

func configure(t Transport, baud int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := t.SetMode(mode); err != nil {
		return &ConfigurationError{Op: "set mode", Err: err}
	}
	if err := t.SetReadTimeout(ReadTimeout); err != nil {
		return &ConfigurationError{Op: "set read timeout", Err: err}
	}
	if err := t.SetWriteTimeout(WriteTimeout); err != nil {
		return &ConfigurationError{Op: "set write timeout", Err: err}
	}
	if err := t.ResetInputBuffer(); err != nil {
		return &ConfigurationError{Op: "purge", Err: err}
	}
	if err := t.ResetOutputBuffer(); err != nil {
		return &ConfigurationError{Op: "purge", Err: err}
	}
	return nil
}

func openSerial(endpoint string) (Transport, error) {
	t, err := transports.OpenSerial(endpoint)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Endpoint returns the endpoint the probe was opened on.
func (p *Probe) Endpoint() string {
	return p.endpoint
}

// BaudRate returns the configured baud rate.
func (p *Probe) BaudRate() int {
	return p.baudRate
}

// Trial runs one acquisition exchange. It never panics and never
// retries: every failure is reported through the returned Result.
func (p *Probe) Trial() (res Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = Result{Elapsed: time.Since(start), Err: fmt.Errorf("trial fault: %v", r)}
		}
		if !res.Success {
			p.logger.Debug("trial failed", "endpoint", p.endpoint, "elapsed_ms", res.Millis(), "err", res.Err)
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Result{Elapsed: time.Since(start), Err: ErrProbeClosed}
	}

	err := p.exchangeLocked()
	return Result{Success: err == nil, Elapsed: time.Since(start), Err: err}
}

func (p *Probe) exchangeLocked() error {
	// Stale input from a previous timed-out trial would shift the segments.
	if err := p.transport.ResetInputBuffer(); err != nil {
		p.logger.Debug("input purge failed", "err", err)
	}

	n, err := p.transport.Write([]byte(Command))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if n != len(Command) {
		return fmt.Errorf("%w: incomplete write: %d of %d bytes", ErrWriteFailed, n, len(Command))
	}

	ack, err := p.readSegmentLocked(AckSize)
	if err != nil {
		return err
	}
	if len(ack) != AckSize {
		return fmt.Errorf("%w: ack %d of %d bytes", ErrShortRead, len(ack), AckSize)
	}

	payload, err := p.readSegmentLocked(PayloadSize)
	if err != nil {
		return err
	}

	return Validate(ack, payload)
}

// readSegmentLocked reads up to size bytes within ReadTimeout. A timeout
// is not an error: the caller sees a short segment.
func (p *Probe) readSegmentLocked(size int) ([]byte, error) {
	buffer := make([]byte, size)
	totalRead := 0
	deadline := time.Now().Add(ReadTimeout)

	for totalRead < size {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := p.transport.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		n, err := p.transport.Read(buffer[totalRead:])
		totalRead += n
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
	}

	return buffer[:totalRead], nil
}

// Close releases the transport. Calling Close more than once is a no-op.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.transport.Close()
}
