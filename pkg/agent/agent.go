package agent

import (
	"context"
)

// Agent is a named, specialized handler.
type Agent interface {
	Name() string
	// Query never returns an error; failures are reported in the Response.
	Query(ctx context.Context, message string, queryContext map[string]interface{}) Response
	// IsAvailable reports health without ever failing.
	IsAvailable(ctx context.Context) bool
	// Capabilities returns an empty list when they cannot be retrieved.
	Capabilities(ctx context.Context) []string
}

// Response is the outcome of one Query.
type Response struct {
	Content   string                 `json:"content"`
	AgentName string                 `json:"agent_name"`
	Metadata  map[string]interface{} `json:"metadata"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
}

// Failure builds an unsuccessful response.
func Failure(agentName, errMsg string, metadata map[string]interface{}) Response {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return Response{
		AgentName: agentName,
		Metadata:  metadata,
		Success:   false,
		Error:     errMsg,
	}
}
