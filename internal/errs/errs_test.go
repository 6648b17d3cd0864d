package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("generate: %w", ContentPolicy("ERROR: refused"))
	assert.Equal(t, KindContentPolicy, KindOf(err))
	assert.True(t, Is(err, KindContentPolicy))
	assert.False(t, Is(nil, KindContentPolicy))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config verbatim", Config("OpenRouter.ai API key not configured."), "OpenRouter.ai API key not configured."},
		{"policy verbatim", ContentPolicy("ERROR: topic not allowed"), "ERROR: topic not allowed"},
		{"validation field message", Validation("topic", "Topic is required."), "Topic is required."},
		{"transport generic", Transport("dial", errors.New("connection refused")), retryMessage},
		{"api generic", API("bad key", nil), retryMessage},
		{"malformed generic", Malformed("no content"), retryMessage},
		{"storage generic", Storage("insert", errors.New("disk full")), "Something went wrong. Please try again."},
		{"plain error", errors.New("boom"), "Something went wrong. Please try again."},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Transport("request failed", errors.New("timeout"))
	assert.Equal(t, "transport: request failed: timeout", err.Error())
	assert.Equal(t, "validation: Topic is required.", Validation("topic", "Topic is required.").Error())
	assert.ErrorIs(t, err, err.Err)
}
