package store

import (
	"errors"
	"fmt"
)

// ErrChannelNotFound reports that no GLOBAL channel has been provisioned.
var ErrChannelNotFound = errors.New("global channel not found")

// Error wraps any persistence or connectivity failure with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
