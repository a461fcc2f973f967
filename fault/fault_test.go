package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"input", fmt.Errorf("load 7: %w", ErrInvalidInput), "invalid_input"},
		{"argument", fmt.Errorf("rasterize: %w", ErrInvalidArgument), "invalid_argument"},
		{"protocol", fmt.Errorf("decode: %w", ErrProtocol), "protocol"},
		{"state", fmt.Errorf("tick: %w", ErrSchedulerState), "scheduler_state"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
