package deperr_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"martianoff/elmdeps/deperr"
)

func TestNoSolutionError(t *testing.T) {
	err := deperr.NewNoSolutionError("Because a 1.0.0 depends on b 2.0.0, a 1.0.0 is forbidden.")
	assert.Equal(t, deperr.TypeNoSolution, err.Type())
	assert.Equal(t, "[NoSolution] no solution\nBecause a 1.0.0 depends on b 2.0.0, a 1.0.0 is forbidden.", err.Error())
}

func TestProviderError(t *testing.T) {
	err := deperr.NewProviderError("elm/json", "", io.EOF)
	assert.Equal(t, deperr.TypeProvider, err.Type())
	assert.Equal(t, "[ProviderError] failed to list versions of elm/json: EOF", err.Error())
	assert.True(t, errors.Is(err, io.EOF))

	err = deperr.NewProviderError("elm/json", "1.1.3", io.EOF)
	assert.Equal(t, "[ProviderError] failed to get dependencies of elm/json 1.1.3: EOF", err.Error())
}

func TestCancelledError(t *testing.T) {
	err := deperr.NewCancelledError(context.Canceled)
	assert.Equal(t, deperr.TypeCancelled, err.Type())
	assert.Equal(t, "[Cancelled] resolution cancelled: context canceled", err.Error())
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, "[Cancelled] resolution cancelled", deperr.NewCancelledError(nil).Error())
}

func TestMultiError(t *testing.T) {
	offline := deperr.NewProviderError("elm/json", "", io.EOF)
	online := deperr.NewNoSolutionError("conflict")
	err := &deperr.MultiError{Errors: []error{offline, online}}

	assert.Equal(t, deperr.TypeNoSolution, err.Type())
	assert.Contains(t, err.Error(), "2 error(s) occurred:")
	assert.Contains(t, err.Error(), "- [ProviderError]")

	var pe *deperr.ProviderError
	assert.True(t, errors.As(err, &pe))
	var ns *deperr.NoSolutionError
	assert.True(t, errors.As(err, &ns))

	assert.Equal(t, deperr.TypeMulti, (&deperr.MultiError{}).Type())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, deperr.TypeCancelled, deperr.TypeOf(deperr.NewCancelledError(nil)))
	assert.Equal(t, deperr.ErrorType(""), deperr.TypeOf(io.EOF))
	assert.Equal(t, deperr.TypeNoSolution, deperr.TypeOf(fmt.Errorf("checking: %w", deperr.NewNoSolutionError("x"))))
}
