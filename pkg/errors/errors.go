// Package errors defines the typed errors shared by the fetch pipeline and
// the classification that drives the product lookup retry loop.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeEmpty       ErrorType = "empty"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInput       ErrorType = "input"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given type
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap creates an Error of the given type around cause
func Wrap(t ErrorType, code int, message string, cause error) *Error {
	return &Error{Type: t, Code: code, Message: message, Err: cause}
}

// ErrNoProducts is returned when a lookup succeeded but listed no products
var ErrNoProducts = New(ErrorTypeEmpty, 200, "response contained no products")

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried by the transport
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient server failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 500, 502, 503, 504, 522:
		return true
	default:
		return false
	}
}

// Outcome is what the product lookup loop does after an attempt
type Outcome int

const (
	// OutcomeSuccess means the attempt produced data
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable means wait and try the same endpoint again
	OutcomeRetryable
	// OutcomeAbandonEndpoint means stop using this endpoint and move to the next one
	OutcomeAbandonEndpoint
	// OutcomeFatal means stop the lookup entirely
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeAbandonEndpoint:
		return "abandon_endpoint"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps the result of one lookup attempt to an Outcome.
//
// An empty product list is the only retryable result at this level; 5xx and
// connection failures have already been retried by the transport, so any
// other error abandons the endpoint. Cancellation of the run is fatal.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if stderrors.Is(err, context.Canceled) {
		return OutcomeFatal
	}
	if TypeOf(err) == ErrorTypeEmpty {
		return OutcomeRetryable
	}
	return OutcomeAbandonEndpoint
}
