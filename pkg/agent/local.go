package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
)

// HandlerFunc answers a query in-process.
type HandlerFunc func(ctx context.Context, message string, queryContext map[string]interface{}) (string, map[string]interface{}, error)

// LocalAgent runs a HandlerFunc in the same process. It is always available.
type LocalAgent struct {
	name         string
	handler      HandlerFunc
	capabilities []string
	logger       zerolog.Logger
}

// LocalOption configures a LocalAgent.
type LocalOption func(*LocalAgent)

func WithCapabilities(caps ...string) LocalOption {
	return func(a *LocalAgent) {
		a.capabilities = append([]string(nil), caps...)
	}
}

func WithLocalLogger(logger zerolog.Logger) LocalOption {
	return func(a *LocalAgent) {
		a.logger = logger
	}
}

func NewLocalAgent(name string, handler HandlerFunc, opts ...LocalOption) *LocalAgent {
	a := &LocalAgent{
		name:         name,
		handler:      handler,
		capabilities: []string{},
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("agent", name).Logger()
	return a
}

func (a *LocalAgent) Name() string { return a.name }

func (a *LocalAgent) Query(ctx context.Context, message string, queryContext map[string]interface{}) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("Local agent panicked")
			resp = Failure(a.name, fmt.Sprintf("Unexpected error: %v", r), map[string]interface{}{"attempts": 1})
		}
		observability.RecordAgentRequest(a.name, time.Since(start), resp.Success, 1)
	}()

	if a.handler == nil {
		return Failure(a.name, "Unexpected error: no handler configured", map[string]interface{}{"attempts": 1})
	}

	content, metadata, err := a.handler(ctx, message, queryContext)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Local agent failed")
		return Failure(a.name, fmt.Sprintf("Unexpected error: %v", err), map[string]interface{}{"attempts": 1})
	}

	md := map[string]interface{}{"attempt": 1}
	for k, v := range metadata {
		md[k] = v
	}
	return Response{Content: content, AgentName: a.name, Metadata: md, Success: true}
}

func (a *LocalAgent) IsAvailable(context.Context) bool { return true }

func (a *LocalAgent) Capabilities(context.Context) []string {
	out := make([]string, len(a.capabilities))
	copy(out, a.capabilities)
	return out
}
