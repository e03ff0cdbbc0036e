package api_response

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/stretchr/testify/assert"
)

func TestNew_RequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), constants.APIFieldRequestID, "req-1")
	assert.Equal(t, "req-1", New[any](ctx).RequestID)

	generated := New[any](context.Background()).RequestID
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestPopulate(t *testing.T) {
	resp := New[[]string](context.Background()).
		Populate("0", "ok", []string{"a", "b"}, map[string]any{"source": "cache"}, 2)

	assert.Equal(t, "0", resp.Code)
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "cache", resp.Meta["source"])
	assert.NotZero(t, resp.ServerTime)
}

func TestPopulate_NonMapMetaAndCount(t *testing.T) {
	resp := New[any](context.Background()).Populate("1", "x", nil, 42, "three")

	assert.Equal(t, 42, resp.Meta["meta"])
	assert.Zero(t, resp.Count)
}
