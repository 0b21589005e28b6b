package engerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineError(t *testing.T) {
	baseErr := errors.New("base error")
	engErr := NewEngineError(baseErr)

	assert.NotNil(t, engErr)
	assert.Contains(t, engErr.Error(), "base error")
	assert.Equal(t, "Unknown Error", engErr.Title())
	assert.False(t, engErr.ShouldPrintUsage())
}

func TestEngineError_Implementation(t *testing.T) {
	err := &engineError{
		err: errors.New("test error"),
	}

	assert.Equal(t, "test error", err.Error())
	assert.Equal(t, "Unknown Error", err.Title())
	assert.False(t, err.ShouldPrintUsage())
}

func TestEngineError_WrappedError(t *testing.T) {
	innerErr := errors.New("inner error")
	wrappedErr := fmt.Errorf("wrapped: %w", innerErr)
	engErr := NewEngineError(wrappedErr)

	assert.Contains(t, engErr.Error(), "wrapped")
	assert.Contains(t, engErr.Error(), "inner error")
	assert.Equal(t, "Unknown Error", engErr.Title())
}

func TestEngineError_NilHandling(t *testing.T) {
	engErr := NewEngineError(nil)

	assert.Nil(t, engErr)
}

func TestEngineError_AvoidDoubleWrapping(t *testing.T) {
	baseErr := errors.New("base error")
	firstWrap := NewEngineError(baseErr)

	secondWrap := NewEngineError(firstWrap)

	assert.Equal(t, firstWrap, secondWrap)
}

func TestParseContextError(t *testing.T) {
	assert.Equal(t, "Interrupted", ParseContextError(context.Canceled).Title())
	assert.Equal(t, "Timeout", ParseContextError(context.DeadlineExceeded).Title())
}

func TestPartialError(t *testing.T) {
	base := NewEngineError(errors.New("boom"))
	partial := ToPartialError(base)
	assert.Contains(t, partial.Error(), "boom")
	assert.Contains(t, partial.Error(), "partial results")
	assert.Contains(t, partial.Title(), "partial results")
}
