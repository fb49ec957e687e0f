package loyalty

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrClientNotFound), "CLIENT_NOT_FOUND"},
		{"not active", ErrCampaignNotActive, "CAMPAIGN_NOT_ACTIVE"},
		{"claimed", fmt.Errorf("%w: ABCDE", ErrWinnerCodeAlreadyClaimed), "WINNER_CODE_ALREADY_CLAIMED"},
		{"validation", ValidationError{Field: "dni", Message: "required"}, "VALIDATION_ERROR"},
		{"unknown", errors.New("boom"), "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrQRTokenNotFound)))
	assert.False(t, IsNotFound(ErrWinnerCodeAlreadyClaimed))
}
