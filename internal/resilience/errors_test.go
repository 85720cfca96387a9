package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid api key"), false},
		{"explicit", NewTransientError(errors.New("x"), 429), true},
		{"wrapped", fmt.Errorf("places: %w", NewTransientError(errors.New("x"), 502)), true},
		{"conn reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{"io timeout string", errors.New("read tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("registry", 503, "maintenance")
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "registry: status 503: maintenance")

	err = StatusError("registry", 404, "")
	assert.False(t, IsTransient(err))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestDeadLetter(t *testing.T) {
	d := &DeadLetter{ErrorType: ClassifyError(NewTransientError(errors.New("x"), 500)), MaxRetries: 2}
	assert.True(t, d.CanRetry())
	d.RetryCount = 2
	assert.False(t, d.CanRetry())

	d = &DeadLetter{ErrorType: ClassifyError(errors.New("bad input")), MaxRetries: 3}
	assert.Equal(t, ErrorPermanent, d.ErrorType)
	assert.False(t, d.CanRetry())
}
