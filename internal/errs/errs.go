// Package errs defines the typed failures surfaced by the toolkit.
package errs

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks values that cannot be decoded without external type information.
var ErrUnsupported = errors.New("unsupported value type")

// ConnectionError is a transport failure reported by the ledger RPC collaborator.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection error: %s", e.Op)
	}
	return fmt.Sprintf("connection error: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports a missing named key, schema entry or dictionary item.
type NotFoundError struct {
	What string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("not found: %s", e.What)
	}
	return fmt.Sprintf("not found: %s: %v", e.What, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// SerializationError reports a value that could not be re-encoded.
type SerializationError struct {
	Context string
	Err     error
}

func (e *SerializationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("serialization error: %s", e.Context)
	}
	return fmt.Sprintf("serialization error: %s: %v", e.Context, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError reports bytes that do not match the expected shape.
// Context names the innermost descriptor kind that failed.
type DeserializationError struct {
	Context string
	Err     error
}

func (e *DeserializationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("deserialization error: %s", e.Context)
	}
	return fmt.Sprintf("deserialization error: %s: %v", e.Context, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// UnexpectedError covers malformed collaborator responses.
type UnexpectedError struct {
	Context string
	Err     error
}

func (e *UnexpectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unexpected error: %s", e.Context)
	}
	return fmt.Sprintf("unexpected error: %s: %v", e.Context, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Deserialization builds a DeserializationError.
func Deserialization(context string, err error) error {
	return &DeserializationError{Context: context, Err: err}
}

// Unexpected builds an UnexpectedError with a formatted context.
func Unexpected(format string, args ...interface{}) error {
	return &UnexpectedError{Context: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConnection reports whether err carries a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Kind names the category of err and its context, for failure records and metric labels.
func Kind(err error) (kind, context string) {
	var (
		ce *ConnectionError
		nf *NotFoundError
		se *SerializationError
		de *DeserializationError
		ue *UnexpectedError
	)
	switch {
	case err == nil:
		return "", ""
	case errors.As(err, &de):
		return "deserialization", de.Context
	case errors.As(err, &nf):
		return "not_found", nf.What
	case errors.As(err, &ce):
		return "connection", ce.Op
	case errors.As(err, &se):
		return "serialization", se.Context
	case errors.As(err, &ue):
		return "unexpected", ue.Context
	default:
		return "other", ""
	}
}
