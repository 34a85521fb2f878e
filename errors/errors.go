// Package errors provides standardized error handling patterns for twinbridge
// connections. It includes error classification and helper functions for
// consistent error wrapping and classification across the per-connection
// runtime.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Class represents the classification of errors for handling purposes.
type Class int

const (
	// Transient represents temporary errors that may be retried.
	Transient Class = iota
	// Invalid represents errors due to invalid input or configuration.
	Invalid
	// Fatal represents unrecoverable errors that should stop the generation.
	Fatal
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Invalid:
		return "invalid"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard sentinel errors for conditions named in spec.md §7.
var (
	// ErrConnectionConfigurationInvalid is returned by validators when a
	// connection, source, target, enforcement or mapping definition fails
	// structural or protocol-specific checks.
	ErrConnectionConfigurationInvalid = errors.New("connection configuration invalid")

	// ErrMessageMappingFailed is returned when a mapper's output exceeds the
	// configured per-mapping limits, or a built-in mapper rejects its input.
	ErrMessageMappingFailed = errors.New("message mapping failed")

	// ErrUnresolvedPlaceholder is returned in strict placeholder resolution
	// mode when a template names a namespace:field pair with no value.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrConnectionSignalIDEnforcementFailed is returned when none of a
	// source's resolved enforcement filters match the resolved input.
	ErrConnectionSignalIDEnforcementFailed = errors.New("connection signal id enforcement failed")

	// ErrAlreadyStarted / ErrNotStarted guard client state machine and
	// worker lifecycle transitions.
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")

	// ErrConnectionLost / ErrConnectionTimeout classify transport failures.
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
)

// ClassifiedError wraps an error with its classification and the
// component/operation that produced it.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient reports whether err is transient and may be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == Transient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err should stop the connection generation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == Fatal
	}
	return errors.Is(err, ErrConnectionConfigurationInvalid)
}

// IsInvalid reports whether err stems from invalid input or configuration.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == Invalid
	}
	return errors.Is(err, ErrConnectionConfigurationInvalid) ||
		errors.Is(err, ErrUnresolvedPlaceholder) ||
		errors.Is(err, ErrMessageMappingFailed)
}

// Classify returns the best-guess Class for an arbitrary error.
func Classify(err error) Class {
	if err == nil {
		return Transient
	}
	if IsFatal(err) {
		return Fatal
	}
	if IsInvalid(err) {
		return Invalid
	}
	return Transient
}

func newClassified(class Class, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern
// "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(Transient, wrapped, component, method, wrapped.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(Fatal, wrapped, component, method, wrapped.Error())
}

// WrapInvalid wraps an error as invalid with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(Invalid, wrapped, component, method, wrapped.Error())
}
