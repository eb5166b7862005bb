package client

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("signaling connection closed")
	ErrRoomFull         = errors.New("room is full")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrTimeout          = errors.New("timeout")
	ErrInvalidURL       = errors.New("invalid server URL")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

// Error annotates a failure with the operation that hit it.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
