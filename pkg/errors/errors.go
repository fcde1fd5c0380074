// Package errors provides the coded errors returned by flowcore.
//
// Every error the engine returns synchronously carries a [Code]. The debug
// API maps codes to HTTP statuses and the CLI prints [UserMessage].
//
// # Error Codes
//
//   - INVALID_*: Input validation failures (bad ids, bad config, bad payloads)
//   - NOT_FOUND: Missing entity, savepoint or middleware
//   - INTEGRITY_ERROR: The stored model contradicts its own invariants
//   - TRANSACTION_ERROR: Transaction protocol misuse
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeTransaction, "no active transaction")
//	if errors.Is(err, errors.ErrCodeTransaction) {
//	    // Handle protocol misuse
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidConfig, origErr, "load %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidID      Code = "INVALID_ID"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidCommand Code = "INVALID_COMMAND"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Model errors
	ErrCodeIntegrity Code = "INTEGRITY_ERROR"

	// Pipeline errors
	ErrCodeTransaction         Code = "TRANSACTION_ERROR"
	ErrCodeDuplicateMiddleware Code = "DUPLICATE_MIDDLEWARE"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coded is implemented by typed errors that carry a code without being an
// *Error, such as [IntegrityError].
type coded interface {
	error
	Code() Code
}

// Is reports whether the first coded error in err's chain has code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode returns the code of the first coded error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	for ; err != nil; err = errors.Unwrap(err) {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coded:
			return e.Code()
		}
	}
	return ""
}

// UserMessage returns the message of the outermost *Error without its code
// prefix, or err.Error() for uncoded errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IntegrityError describes a node whose parent reference is broken.
// It is logged rather than returned by hierarchy queries.
type IntegrityError struct {
	NodeID   string // Node whose GroupID is invalid
	ParentID string // The referenced parent
	Reason   string // "missing", "not a group" or "cycle"
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("node %q references parent %q: %s", e.NodeID, e.ParentID, e.Reason)
}

func (e *IntegrityError) Code() Code { return ErrCodeIntegrity }
