package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pramodthe/enterprise-ai-platform/internal/config"
	"github.com/pramodthe/enterprise-ai-platform/pkg/agent"
	"github.com/pramodthe/enterprise-ai-platform/pkg/llm"
)

// BuildAgent creates the agent described by cfg. Local agents answer with
// generator under their own system prompt.
func BuildAgent(cfg config.AgentConfig, generator llm.Generator, logger zerolog.Logger) (agent.Agent, error) {
	switch cfg.Type {
	case "", "remote":
		return agent.NewRemoteClient(agent.RemoteConfig{
			Name:    cfg.Name,
			URL:     cfg.URL,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			Retry: agent.RetryPolicy{
				MaxRetries:    cfg.MaxRetries,
				BackoffFactor: cfg.BackoffFactor,
			},
			Logger: &logger,
		})
	case "local":
		return agent.NewLocalAgent(cfg.Name, localHandler(generator, cfg.SystemPrompt),
			agent.WithCapabilities(cfg.Capabilities...),
			agent.WithLocalLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("agent %q: unknown type %q", cfg.Name, cfg.Type)
	}
}

// localHandler answers with one generation call. The rendered conversation
// from the query context is included ahead of the question.
func localHandler(generator llm.Generator, systemPrompt string) agent.HandlerFunc {
	return func(ctx context.Context, message string, queryContext map[string]interface{}) (string, map[string]interface{}, error) {
		if generator == nil {
			return "", nil, llm.ErrNoProviders
		}

		prompt := message
		if history, _ := queryContext["conversation_history"].(string); strings.TrimSpace(history) != "" {
			prompt = fmt.Sprintf("Conversation so far:\n%s\n\nCurrent question: %s", history, message)
		}

		text, err := generator.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, systemPrompt)
		if err != nil {
			return "", nil, fmt.Errorf("failed to generate: %w", err)
		}
		return text, map[string]interface{}{"local": true}, nil
	}
}
