package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrUnauthorized indicates authentication failure against the defect server
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates a stream or snapshot was not found
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse indicates a server response was missing required fields
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnknownColumn indicates a requested column name has no resolver
	ErrUnknownColumn = errors.New("unknown column")
)

// ConfigError marks a malformed or inconsistent directive option set.
// It is fatal to the single directive that declared the options and is
// reported at the directive's source location; the build continues.
type ConfigError struct {
	Location string // "file:line" of the directive, empty when not tied to one
	Cause    error
}

func (e *ConfigError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: invalid directive options: %v", e.Location, e.Cause)
	}
	return fmt.Sprintf("invalid directive options: %v", e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfig wraps an error as a ConfigError
func NewConfig(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Cause: err}
}

// NewConfigf creates a new ConfigError with formatting
func NewConfigf(format string, args ...interface{}) error {
	return &ConfigError{Cause: fmt.Errorf(format, args...)}
}

// AtLocation attaches a directive source location to a ConfigError.
// Errors of any other kind are returned unchanged.
func AtLocation(err error, location string) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Location == "" {
		cfgErr.Location = location
	}
	return err
}

// RetrievalError marks a remote call failure or a malformed server response.
// It is fatal to every directive sharing the same (stream, snapshot) key for
// the remainder of the build and is reported once, not once per directive.
type RetrievalError struct {
	Stream   string
	Snapshot string
	Cause    error
}

func (e *RetrievalError) Error() string {
	if e.Snapshot != "" {
		return fmt.Sprintf("defect retrieval failed for stream %q snapshot %q: %v", e.Stream, e.Snapshot, e.Cause)
	}
	return fmt.Sprintf("defect retrieval failed for stream %q: %v", e.Stream, e.Cause)
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// NewRetrieval wraps an error as a RetrievalError for the given cache key
func NewRetrieval(stream, snapshot string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalError{Stream: stream, Snapshot: snapshot, Cause: err}
}

// NewRetrievalf creates a new RetrievalError with formatting
func NewRetrievalf(stream, snapshot, format string, args ...interface{}) error {
	return &RetrievalError{Stream: stream, Snapshot: snapshot, Cause: fmt.Errorf(format, args...)}
}

// IsConfig checks if an error is a ConfigError using errors.As
func IsConfig(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// IsRetrieval checks if an error is a RetrievalError using errors.As
func IsRetrieval(err error) bool {
	if err == nil {
		return false
	}
	var retErr *RetrievalError
	return errors.As(err, &retErr)
}
