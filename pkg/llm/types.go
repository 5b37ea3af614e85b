package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var (
	ErrNoMessages         = errors.New("at least one message is required")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrNoProviders        = errors.New("no providers configured")
)

// Validate rejects empty conversations, empty content and unknown roles.
func Validate(messages []Message) error {
	if len(messages) == 0 {
		return ErrNoMessages
	}
	for i, m := range messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d: content cannot be empty", i)
		}
	}
	return nil
}

// Request contains the parameters for one completion call.
type Request struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Completion is a provider's reply.
type Completion struct {
	Content string
	Usage   Usage
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1028
)
