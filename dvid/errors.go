package dvid

import (
	"errors"
	"fmt"
)

// Storage errors are classified into a small taxonomy.  Only ErrNotFound allows a
// layered store to fall back to the next layer; every other error is propagated.
var (
	// ErrNotFound is returned when a cutout or a block it requires is absent.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported is returned when a store does not implement an operation,
	// e.g., a put on a read-only mirror.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidRequest is returned for malformed coordinate frames or payloads
	// whose shape doesn't match the requested extent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIOFailure is returned when the underlying medium failed for any reason
	// other than absence of data.
	ErrIOFailure = errors.New("i/o failure")
)

// NotFoundf returns an error that matches ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// NotSupportedf returns an error that matches ErrNotSupported.
func NotSupportedf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotSupported)
}

// InvalidRequestf returns an error that matches ErrInvalidRequest.
func InvalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidRequest)
}

// IOFailure returns an error that matches both ErrIOFailure and the passed cause.
// If the cause is already classified, it is returned with added context but
// without being reclassified.
func IOFailure(cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%s: %w", msg, ErrIOFailure)
	}
	if Classified(cause) {
		return fmt.Errorf("%s: %w", msg, cause)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrIOFailure, cause)
}

func IsNotFound(err error) bool       { return errors.Is(err, ErrNotFound) }
func IsNotSupported(err error) bool   { return errors.Is(err, ErrNotSupported) }
func IsInvalidRequest(err error) bool { return errors.Is(err, ErrInvalidRequest) }
func IsIOFailure(err error) bool      { return errors.Is(err, ErrIOFailure) }

// Classified returns true if the error already matches one of the taxonomy errors.
func Classified(err error) bool {
	return IsNotFound(err) || IsNotSupported(err) || IsInvalidRequest(err) || IsIOFailure(err)
}
