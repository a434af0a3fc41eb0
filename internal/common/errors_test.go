package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewUserError("could not save conversation", inner)

	assert.Equal(t, "could not save conversation: disk full", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := NewUserError("invalid phone number", nil)
	assert.Equal(t, "invalid phone number", bare.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "send failure", err: fmt.Errorf("gateway: %w", ErrSendFailed), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "retryable marker", err: &RetryableError{Err: errors.New("503"), Retryable: true}, want: true},
		{name: "non-retryable marker", err: &RetryableError{Err: errors.New("400"), Retryable: false}, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
