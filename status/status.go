// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package status defines the error codes reported by the
// renderer.
// Every error returned by the core packages is a *Error
// carrying one of the Codes below, so callers can test
// for a class of failure with errors.Is:
//
//	if errors.Is(err, status.OutOfResources) {
//		// Release something and retry.
//	}
package status

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code int

// Error codes.
const (
	// An argument is out of range or inconsistent.
	InvalidValue Code = iota + 1
	// An enumerant is not recognized.
	InvalidEnum
	// A handle does not refer to a live object.
	InvalidObject
	// The operation is not allowed in the current state.
	InvalidOperation
	// The native layer failed.
	SubsystemFailed
	// A fixed-size table or memory pool is exhausted.
	OutOfResources
	// The feature is not implemented.
	Unimplemented
)

func (c Code) String() string {
	switch c {
	case InvalidValue:
		return "invalid value"
	case InvalidEnum:
		return "invalid enum"
	case InvalidObject:
		return "invalid object"
	case InvalidOperation:
		return "invalid operation"
	case SubsystemFailed:
		return "subsystem failed"
	case OutOfResources:
		return "out of resources"
	case Unimplemented:
		return "unimplemented"
	}
	return fmt.Sprintf("status code %d", int(c))
}

// Error makes Code usable as an error target, so that
// errors.Is(err, InvalidValue) works.
func (c Code) Error() string { return c.String() }

// Error is the error type of the core packages.
type Error struct {
	// Op is the operation that failed.
	Op   string
	Code Code
	// Msg describes the failure, if Code alone
	// is not enough.
	Msg string
	// Err is the native cause, if any.
	Err error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Code.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the native cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is e's Code or an *Error
// with the same Code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Code:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// New creates a new *Error.
func New(op string, code Code, format string, args ...any) *Error {
	e := &Error{Op: op, Code: code}
	if format != "" {
		e.Msg = fmt.Sprintf(format, args...)
	}
	return e
}

// Wrap creates a new *Error whose cause is err.
// If err is already an *Error, it is returned unchanged.
func Wrap(op string, code Code, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Code: code, Err: err}
}

// CodeOf returns the Code of err, or zero if err is not
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
