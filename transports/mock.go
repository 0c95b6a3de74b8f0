package transports

import (
	"sync"
	"time"

	"go.bug.st/serial"
)

// MockTransport implements probe.Transport for testing.
//
// Each Write queues the next entry of Responses as pending input, which
// emulates a device answering a command. A Read with no pending input
// behaves like a serial read timing out: it sleeps for ReadTimeout and
// returns (0, nil).
type MockTransport struct {
	mu sync.Mutex

	ReadData  []byte
	ReadErr   error
	Responses [][]byte

	WriteData []byte
	WriteErr  error
	// WriteShort, when > 0, caps the byte count each Write reports.
	WriteShort int

	Mode         *serial.Mode
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	SetModeErr         error
	SetReadTimeoutErr  error
	SetWriteTimeoutErr error
	ResetInputErr      error
	ResetOutputErr     error

	Closed       bool
	CloseCount   int
	WriteCount   int
	ReadCount    int
	InputResets  int
	OutputResets int

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	m.ReadCount++
	if m.ReadFunc != nil {
		fn := m.ReadFunc
		m.mu.Unlock()
		return fn(p)
	}
	if m.ReadErr != nil {
		err := m.ReadErr
		m.mu.Unlock()
		return 0, err
	}
	if len(m.ReadData) == 0 {
		timeout := m.ReadTimeout
		m.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	m.mu.Unlock()
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCount++
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	n := len(p)
	if m.WriteShort > 0 && m.WriteShort < n {
		n = m.WriteShort
	}
	m.WriteData = append(m.WriteData, p[:n]...)
	if len(m.Responses) > 0 {
		m.ReadData = append(m.ReadData, m.Responses[0]...)
		m.Responses = m.Responses[1:]
	}
	return n, nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	m.CloseCount++
	return nil
}

func (m *MockTransport) SetMode(mode *serial.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetModeErr != nil {
		return m.SetModeErr
	}
	m.Mode = mode
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadTimeoutErr != nil {
		return m.SetReadTimeoutErr
	}
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) SetWriteTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetWriteTimeoutErr != nil {
		return m.SetWriteTimeoutErr
	}
	m.WriteTimeout = timeout
	return nil
}

func (m *MockTransport) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InputResets++
	if m.ResetInputErr != nil {
		return m.ResetInputErr
	}
	m.ReadData = nil
	return nil
}

func (m *MockTransport) ResetOutputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutputResets++
	return m.ResetOutputErr
}
