package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

type blankError struct{}

func (blankError) Error() string { return "   " }

func TestNormalize(t *testing.T) {
	t.Run("AppError passes through unchanged", func(t *testing.T) {
		orig := NotFound("post not found")
		got := Normalize(orig)
		assert.Same(t, orig, got)
	})

	t.Run("Wrapped AppError is found in the chain", func(t *testing.T) {
		orig := Unauthorized("Token expired")
		got := Normalize(fmt.Errorf("auth: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("Plain error defaults to 500 and keeps message", func(t *testing.T) {
		got := Normalize(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
		assert.Equal(t, "boom", got.Message)
		assert.False(t, got.Operational)
		assert.NotEmpty(t, got.Stack)
	})

	t.Run("Status reported by the error is kept", func(t *testing.T) {
		got := Normalize(teapotError{})
		assert.Equal(t, http.StatusTeapot, got.StatusCode)
		assert.False(t, got.Operational)
	})

	t.Run("Empty message falls back to the default", func(t *testing.T) {
		got := Normalize(blankError{})
		assert.Equal(t, DefaultMessage, got.Message)
	})

	t.Run("Nil error still yields a usable value", func(t *testing.T) {
		got := Normalize(nil)
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
		assert.Equal(t, DefaultMessage, got.Message)
	})
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err  *AppError
		code int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{New(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.StatusCode)
		assert.True(t, tc.err.Operational)
		assert.NotEmpty(t, tc.err.Message)
	}

	internal := Internal(errors.New("db down"), "")
	assert.False(t, internal.Operational)
	assert.Equal(t, DefaultMessage, internal.Message)
	require.Error(t, internal.Unwrap())
}

func TestFromPanic(t *testing.T) {
	got := FromPanic("nil map write")
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	assert.Contains(t, got.Message, "nil map write")
	assert.False(t, got.Operational)
}
