package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAgent_Query(t *testing.T) {
	a := NewLocalAgent("root", func(ctx context.Context, message string, qc map[string]interface{}) (string, map[string]interface{}, error) {
		return "echo: " + message, map[string]interface{}{"model": "test"}, nil
	}, WithCapabilities("general"))

	resp := a.Query(context.Background(), "hello", nil)
	require.True(t, resp.Success)
	assert.Equal(t, "echo: hello", resp.Content)
	assert.Equal(t, "root", resp.AgentName)
	assert.Equal(t, "test", resp.Metadata["model"])
	assert.True(t, a.IsAvailable(context.Background()))
	assert.Equal(t, []string{"general"}, a.Capabilities(context.Background()))
}

func TestLocalAgent_HandlerError(t *testing.T) {
	a := NewLocalAgent("root", func(context.Context, string, map[string]interface{}) (string, map[string]interface{}, error) {
		return "", nil, errors.New("provider down")
	})

	resp := a.Query(context.Background(), "hello", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "provider down")
	assert.Equal(t, 1, resp.Metadata["attempts"])
}

func TestLocalAgent_Panic(t *testing.T) {
	a := NewLocalAgent("root", func(context.Context, string, map[string]interface{}) (string, map[string]interface{}, error) {
		panic("boom")
	})

	resp := a.Query(context.Background(), "hello", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
}

func TestLocalAgent_NoCapabilities(t *testing.T) {
	a := NewLocalAgent("root", nil)
	assert.Equal(t, []string{}, a.Capabilities(context.Background()))
	assert.False(t, a.Query(context.Background(), "hi", nil).Success)
}
