package probe

import (
	"errors"
	"fmt"
)

// Sentinel errors for trial failure causes.
var (
	ErrNoEndpoint    = errors.New("endpoint is required")
	ErrProbeClosed   = errors.New("probe is closed")
	ErrWriteFailed   = errors.New("command write failed")
	ErrShortRead     = errors.New("short read")
	ErrMarkerMissing = errors.New("response marker missing")
)

// ChannelOpenError is returned by New when the endpoint cannot be opened.
type ChannelOpenError struct {
	Endpoint string
	Err      error
}

func (e *ChannelOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Endpoint, e.Err)
}

func (e *ChannelOpenError) Unwrap() error {
	return e.Err
}

// ConfigurationError is returned by New when channel parameters,
// timeouts or the initial purge cannot be applied.
type ConfigurationError struct {
	Op  string // "set mode", "set read timeout", "set write timeout", "purge"
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error during %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsChannelOpen returns true if the error chain holds a ChannelOpenError.
func IsChannelOpen(err error) bool {
	var openErr *ChannelOpenError
	return errors.As(err, &openErr)
}

// IsConfiguration returns true if the error chain holds a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// GetConfigurationError extracts a ConfigurationError from an error chain, if present.
func GetConfigurationError(err error) (*ConfigurationError, bool) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}
