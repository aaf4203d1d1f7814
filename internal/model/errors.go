package model

import (
	"errors"
	"fmt"
)

// TransportError wraps a failed chain or notification call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DataError reports a decoded value that violates an expected invariant.
type DataError struct {
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewTransportError wraps err unless it is nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// NewDataError builds a DataError with a formatted reason.
func NewDataError(field string, format string, args ...interface{}) error {
	return &DataError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsData(err error) bool {
	var target *DataError
	return errors.As(err, &target)
}
