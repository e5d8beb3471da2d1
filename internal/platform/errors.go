package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported marks an operation the platform cannot perform.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrEmptyID is returned when a platform accepts a post but names no id.
	ErrEmptyID = errors.New("platform returned no post id")
)

// Error is a call rejected by a platform.
type Error struct {
	Platform   Platform
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// unsupportedError carries a user-facing message and matches ErrUnsupported.
type unsupportedError struct {
	msg string
}

func (e *unsupportedError) Error() string { return e.msg }

func (e *unsupportedError) Is(target error) bool { return target == ErrUnsupported }

func unsupported(msg string) error {
	return &unsupportedError{msg: msg}
}

func rejected(p Platform, status int, message, op string) *Error {
	if message == "" {
		message = fmt.Sprintf("%s failed (status %d)", op, status)
	}
	return &Error{Platform: p, StatusCode: status, Message: message}
}
