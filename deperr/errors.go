// Package deperr defines the errors a dependency resolution can end with.
package deperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType defines the category of the error.
type ErrorType string

const (
	TypeNoSolution ErrorType = "NoSolution"
	TypeProvider   ErrorType = "ProviderError"
	TypeCancelled  ErrorType = "Cancelled"
	TypeMulti      ErrorType = "MultiError"
)

// ResolutionError is the interface for all resolution errors.
type ResolutionError interface {
	error
	Type() ErrorType
}

// BaseError provides common fields for resolution errors.
type BaseError struct {
	Msg     string
	ErrType ErrorType
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

func (e *BaseError) Type() ErrorType {
	return e.ErrType
}

// NoSolutionError means the constraints are unsatisfiable.
// Explanation holds the rendered derivation of the conflict.
type NoSolutionError struct {
	BaseError
	Explanation string
}

func (e *NoSolutionError) Error() string {
	return fmt.Sprintf("[%s] %s\n%s", e.ErrType, e.Msg, e.Explanation)
}

// ProviderError means package metadata could not be retrieved.
// Version is empty when the failure happened while listing versions.
type ProviderError struct {
	BaseError
	Package string
	Version string
	Cause   error
}

func (e *ProviderError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("[%s] %s %s: %v", e.ErrType, e.Msg, e.Package, e.Cause)
	}
	return fmt.Sprintf("[%s] %s %s %s: %v", e.ErrType, e.Msg, e.Package, e.Version, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CancelledError means the resolution was stopped before it finished.
type CancelledError struct {
	BaseError
	Cause error
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// MultiError collects the errors of several resolution attempts, in order.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) occurred:\n", len(m.Errors)))
	for _, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("- %v\n", err))
	}
	return sb.String()
}

// Type returns the type of the last attempt.
func (m *MultiError) Type() ErrorType {
	if len(m.Errors) > 0 {
		if re, ok := m.Errors[len(m.Errors)-1].(ResolutionError); ok {
			return re.Type()
		}
	}
	return TypeMulti
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// NewNoSolutionError creates a new NoSolutionError.
func NewNoSolutionError(explanation string) *NoSolutionError {
	return &NoSolutionError{
		BaseError: BaseError{
			Msg:     "no solution",
			ErrType: TypeNoSolution,
		},
		Explanation: explanation,
	}
}

// NewProviderError creates a ProviderError for a package, or a package version when version is set.
func NewProviderError(pkg, version string, cause error) *ProviderError {
	msg := "failed to list versions of"
	if version != "" {
		msg = "failed to get dependencies of"
	}
	return &ProviderError{
		BaseError: BaseError{
			Msg:     msg,
			ErrType: TypeProvider,
		},
		Package: pkg,
		Version: version,
		Cause:   cause,
	}
}

// NewCancelledError creates a new CancelledError.
func NewCancelledError(cause error) *CancelledError {
	msg := "resolution cancelled"
	if cause != nil {
		msg = fmt.Sprintf("resolution cancelled: %v", cause)
	}
	return &CancelledError{
		BaseError: BaseError{
			Msg:     msg,
			ErrType: TypeCancelled,
		},
		Cause: cause,
	}
}

// TypeOf returns the ErrorType of the first ResolutionError in err's chain,
// or the empty type when there is none.
func TypeOf(err error) ErrorType {
	var re ResolutionError
	if errors.As(err, &re) {
		return re.Type()
	}
	return ""
}
