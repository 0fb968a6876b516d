package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, STATUS_OK},
		{"plain", ErrInvalidParameter, STATUS_INVALID_PARAMETER},
		{"wrapped", fmt.Errorf("render volume: %w", ErrInvalidParameter), STATUS_INVALID_PARAMETER},
		{"double wrapped", fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrAPIError)), STATUS_API_ERROR},
		{"uninitialized", ErrUninitialized, STATUS_UNINITIALIZED},
		{"version", ErrInvalidVersion, STATUS_INVALID_VERSION},
		{"device", ErrUnsupportedDevice, STATUS_UNSUPPORTED_DEVICE},
		{"resource", ErrResourceFailure, STATUS_RESOURCE_FAILURE},
		{"foreign", errors.New("boom"), STATUS_UNKNOWN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestStatusErrRoundTrip(t *testing.T) {
	for s := STATUS_UNINITIALIZED; s <= STATUS_API_ERROR; s++ {
		assert.Equal(t, s, StatusOf(s.Err()), s.String())
	}
	assert.NoError(t, STATUS_OK.Err())
	assert.Equal(t, "INVALID_PARAMETER", STATUS_INVALID_PARAMETER.String())
}
