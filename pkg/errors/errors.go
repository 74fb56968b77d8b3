// Package errors defines the error taxonomy shared by the listener and
// janitor daemons. Every failure that crosses a component boundary is
// classified into one of the kinds below so workers can decide between
// retry, skip and fatal without inspecting driver-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds
var (
	// ErrTransientStore marks recoverable store failures: connect errors,
	// timeouts, deadlocks. The current operation is rolled back and the
	// worker retries on its next event or cycle.
	ErrTransientStore = errors.New("transient store error")

	// ErrPermanentStore marks store failures that will not resolve on
	// retry: schema mismatch, auth failure.
	ErrPermanentStore = errors.New("permanent store error")

	// ErrDeviceTransport marks terminal-side failures: disconnects,
	// protocol violations, read timeouts.
	ErrDeviceTransport = errors.New("device transport error")

	// ErrMalformedPunch marks events that cannot be normalized into a
	// punch: blank employee id, unparseable instant with no fallback.
	ErrMalformedPunch = errors.New("malformed punch")

	// ErrConfig marks startup configuration failures. Fatal.
	ErrConfig = errors.New("configuration error")
)

// AppError wraps an underlying error with a kind and a message.
type AppError struct {
	Err     error
	Kind    error
	Message string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying error to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Common constructors

func TransientStore(err error, message string) *AppError {
	return &AppError{Err: err, Kind: ErrTransientStore, Message: message}
}

func PermanentStore(err error, message string) *AppError {
	return &AppError{Err: err, Kind: ErrPermanentStore, Message: message}
}

func DeviceTransport(err error, message string) *AppError {
	return &AppError{Err: err, Kind: ErrDeviceTransport, Message: message}
}

func MalformedPunch(message string) *AppError {
	return &AppError{Kind: ErrMalformedPunch, Message: message}
}

func Config(err error, message string) *AppError {
	return &AppError{Err: err, Kind: ErrConfig, Message: message}
}

// IsTransientStore reports whether err is a recoverable store failure.
func IsTransientStore(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// IsPermanentStore reports whether err is an unrecoverable store failure.
func IsPermanentStore(err error) bool {
	return errors.Is(err, ErrPermanentStore)
}

// IsDeviceTransport reports whether err is a terminal-side failure.
func IsDeviceTransport(err error) bool {
	return errors.Is(err, ErrDeviceTransport)
}

// IsMalformedPunch reports whether err marks a skippable bad event.
func IsMalformedPunch(err error) bool {
	return errors.Is(err, ErrMalformedPunch)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
