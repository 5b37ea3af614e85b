package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithAgent(ctx, "analytics")
	ctx = WithUserID(ctx, "user-1")

	tc := FromContext(ctx)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Equal(t, "req-1", tc.RequestID)
	assert.Equal(t, "sess-1", tc.SessionID)
	assert.Equal(t, "analytics", tc.Agent)
	assert.Equal(t, "user-1", tc.UserID)
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSessionID(ctx))
	assert.Empty(t, GetAgent(ctx))
}

func TestNewRequestContext(t *testing.T) {
	t.Run("generates trace and request ids", func(t *testing.T) {
		ctx := NewRequestContext(context.Background())
		assert.NotEmpty(t, GetTraceID(ctx))
		assert.NotEmpty(t, GetRequestID(ctx))
	})

	t.Run("keeps an existing trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "upstream")
		ctx = NewRequestContext(ctx)
		assert.Equal(t, "upstream", GetTraceID(ctx))
	})
}
