// Package errors classifies failures as transient, invalid or fatal so
// callers can decide whether to retry, reject the input or give up.
//
// Wrap helpers produce messages of the form
// "Component.Method: action failed: cause" and keep the cause reachable
// through errors.Is and errors.As.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient marks errors worth retrying
	ErrorTransient ErrorClass = iota
	// ErrorInvalid marks errors caused by the caller's input or configuration
	ErrorInvalid
	// ErrorFatal marks errors that must stop the operation
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors
var (
	ErrAlreadyStarted = errors.New("component already started")

	ErrNoConnection   = errors.New("no connection available")
	ErrConnectionLost = errors.New("connection lost")

	ErrInvalidData   = errors.New("invalid data format")
	ErrDataCorrupted = errors.New("data corrupted")

	ErrKeyNotFound  = errors.New("key not found")
	ErrStreamClosed = errors.New("stream already closed")

	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	ErrUnknownTemplate = errors.New("unknown template identifier")
	ErrUnknownOutput   = errors.New("unknown output")
	ErrNoDescription   = errors.New("sensor description not set")
)

// Unclassified errors are matched against these, in order.
var (
	transientSentinels = []error{ErrNoConnection, ErrConnectionLost, context.DeadlineExceeded, context.Canceled}
	fatalSentinels     = []error{ErrInvalidConfig, ErrMissingConfig, ErrDataCorrupted}
	invalidSentinels   = []error{ErrInvalidData, ErrUnknownTemplate, ErrUnknownOutput, ErrNoDescription}

	transientPatterns = []string{"timeout", "connection", "network", "temporary", "unavailable"}
	fatalPatterns     = []string{"fatal", "panic", "corrupted", "disk full"}
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// classOf returns the class of the outermost ClassifiedError in err's chain.
func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func matches(err error, sentinels []error, patterns []string) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	if len(patterns) == 0 {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorTransient
	}
	return matches(err, transientSentinels, transientPatterns)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorFatal
	}
	return matches(err, fatalSentinels, fatalPatterns)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorInvalid
	}
	return matches(err, invalidSentinels, nil)
}

// Classify returns the error class for an error. Unknown errors are
// transient.
func Classify(err error) ErrorClass {
	switch {
	case err == nil, IsTransient(err):
		return ErrorTransient
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// Wrap adds context in the form "component.method: action failed: err".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, err, component, method, action)
}
