package llm

import (
	"context"
	"fmt"
)

// Provider is a single model endpoint.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ProviderConfig identifies a credentialed provider.
type ProviderConfig struct {
	ID       string
	Provider string // anthropic, openai
	APIKey   string
	Model    string
	BaseURL  string
	Priority int
}

// NewProvider builds the SDK-backed provider for cfg.Provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
