package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so errors built with
// Wrap still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Wrap returns a copy of e with a more specific message and cause.
func (e *DomainError) Wrap(message string, err error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Err:     err,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Transfer errors. All of them are worth retrying from the consumer's point
// of view; the broker requeues the job.
var (
	ErrMissingPayload = &DomainError{
		Code:    "MISSING_PAYLOAD",
		Message: "embedded page has no payload",
	}

	ErrMalformedPayload = &DomainError{
		Code:    "MALFORMED_PAYLOAD",
		Message: "embedded page is not valid base64",
	}

	ErrMissingSourceURI = &DomainError{
		Code:    "MISSING_SOURCE_URI",
		Message: "page has no source uri",
	}

	ErrUnsafeFileName = &DomainError{
		Code:    "UNSAFE_FILE_NAME",
		Message: "file name escapes the destination folder",
	}

	ErrUnexpectedStatus = &DomainError{
		Code:    "UNEXPECTED_STATUS",
		Message: "page fetch returned a non-success status",
	}

	ErrNotificationRejected = &DomainError{
		Code:    "NOTIFICATION_REJECTED",
		Message: "notification endpoint returned a non-success status",
	}
)
