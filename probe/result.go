package probe

import (
	"bytes"
	"fmt"
	"time"
)

// Result is the outcome of a single trial.
type Result struct {
	Success bool
	Elapsed time.Duration

	// Err is the failure cause, nil on success.
	Err error
}

// Millis returns the elapsed time in fractional milliseconds.
func (r Result) Millis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("ok %.3fms", r.Millis())
	}
	return fmt.Sprintf("failed %.3fms: %v", r.Millis(), r.Err)
}

// Validate checks a received response: both segments at their fixed
// length and the marker anywhere in their concatenation.
func Validate(ack, payload []byte) error {
	if len(ack) != AckSize {
		return fmt.Errorf("%w: ack %d of %d bytes", ErrShortRead, len(ack), AckSize)
	}
	if len(payload) != PayloadSize {
		return fmt.Errorf("%w: payload %d of %d bytes", ErrShortRead, len(payload), PayloadSize)
	}
	full := make([]byte, 0, ResponseSize)
	full = append(full, ack...)
	full = append(full, payload...)
	if !bytes.Contains(full, []byte(Marker)) {
		return ErrMarkerMissing
	}
	return nil
}
