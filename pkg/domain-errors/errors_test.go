package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "registration not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "registration store unavailable")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "registration store unavailable", err.Error())
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}

func TestIsComparesCodeAndMessage(t *testing.T) {
	err := Wrap(errors.New("x"), CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
}

func TestNewValidation(t *testing.T) {
	err := NewValidation(map[string]string{
		"email":      "must be a valid email",
		"first_name": "is required",
	})
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "invalid fields: email, first_name", err.Message)
	assert.Len(t, err.Fields, 2)
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusUnprocessableEntity,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeBadRequest:   http.StatusBadRequest,
		Code("mystery"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
	assert.True(t, Retryable(CodeUnavailable))
	assert.False(t, Retryable(CodeValidation))
}
