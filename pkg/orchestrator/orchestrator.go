package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
	"github.com/pramodthe/enterprise-ai-platform/pkg/guardrail"
	"github.com/pramodthe/enterprise-ai-platform/pkg/llm"
	"github.com/pramodthe/enterprise-ai-platform/pkg/routing"
	"github.com/pramodthe/enterprise-ai-platform/pkg/session"
)

const tracerName = "eap.orchestrator"

// Orchestrator processes chat requests end to end.
type Orchestrator struct {
	sessions  *session.Manager
	guardrail *guardrail.Guardrail
	router    *routing.Router
	generator llm.Generator
	logger    zerolog.Logger

	systemPrompt     string
	maxContextTokens int
	historyLimit     int
	serialize        bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithGuardrail sets the safety gate; without one every message passes.
func WithGuardrail(g *guardrail.Guardrail) Option {
	return func(o *Orchestrator) { o.guardrail = g }
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		if prompt != "" {
			o.systemPrompt = prompt
		}
	}
}

// WithMaxContextTokens sets the context window budget handed to the router,
// to agents and to local generation.
func WithMaxContextTokens(tokens int) Option {
	return func(o *Orchestrator) {
		if tokens > 0 {
			o.maxContextTokens = tokens
		}
	}
}

// WithHistoryLimit caps the messages sent to local generation within the
// context window.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithSerializedSessions holds the session lock for the whole request. The
// session manager must be built with locking enabled for this to have effect.
func WithSerializedSessions(enabled bool) Option {
	return func(o *Orchestrator) { o.serialize = enabled }
}

// New creates an orchestrator.
func New(sessions *session.Manager, router *routing.Router, generator llm.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:         sessions,
		router:           router,
		generator:        generator,
		logger:           log.Logger,
		systemPrompt:     DefaultSystemPrompt,
		maxContextTokens: DefaultMaxContextTokens,
		historyLimit:     DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "orchestrator").Logger()
	return o
}

// Process handles one message. It never fails: guardrail blocks, agent
// outages, generation errors, store errors and panics all produce a Response.
func (o *Orchestrator) Process(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	if tracing.GetRequestID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	if req.SessionID != "" {
		ctx = tracing.WithSessionID(ctx, req.SessionID)
	}
	if req.UserID != "" {
		ctx = tracing.WithUserID(ctx, req.UserID)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "orchestrator.process",
		attribute.Int("message_length", len(req.Message)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Recovered panic while processing message")
			tracing.FailSpan(span, fmt.Errorf("panic: %v", r), "panic")
			resp = o.apology(req.SessionID, "internal_error")
		}
		observability.RecordOrchestratorRequest(resp.AgentUsed, time.Since(start))
	}()

	logger.Info().Int("message_length", len(req.Message)).Msg("Processing message")

	if blocked, ok := o.checkGuardrail(ctx, req); ok {
		return blocked
	}

	if o.serialize && req.SessionID != "" {
		unlock := o.sessions.Lock(req.SessionID)
		defer unlock()
	}

	s, err := o.resolveSession(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve session")
		tracing.FailSpan(span, err, "session unavailable")
		return o.apology(req.SessionID, "session_unavailable")
	}
	ctx = tracing.WithSessionID(ctx, s.ID)
	logger = tracing.LoggerFromContext(ctx, o.logger)

	if _, err := o.sessions.Append(ctx, s, session.RoleUser, req.Message, nil); err != nil {
		logger.Error().Err(err).Msg("Failed to record user message")
		tracing.FailSpan(span, err, "append failed")
		return o.apology(s.ID, "session_unavailable")
	}

	conversation := o.sessions.BuildContextTokens(s, o.maxContextTokens)

	var decision routing.Decision
	if isFastPath(req.Message) {
		// No routing happened, so no routing confidence is claimed.
		decision = routing.Decision{
			AgentName:      routing.RootAgent,
			Confidence:     0,
			Reasoning:      fastPathReasoning,
			FallbackAgents: []string{},
		}
	} else {
		decision = o.router.Route(req.Message, conversation, o.sessions.LastAgentUsed(s))
	}
	span.SetAttributes(
		attribute.String("routing.agent", decision.AgentName),
		attribute.Float64("routing.confidence", decision.Confidence),
	)
	logger.Info().
		Str("agent", decision.AgentName).
		Float64("confidence", decision.Confidence).
		Msg("Routing decision")

	text, agentUsed, attempted := o.dispatch(ctx, s, req.Message, conversation, decision)

	if _, err := o.sessions.Append(ctx, s, session.RoleAssistant, text, map[string]interface{}{
		session.MetadataAgentUsed: agentUsed,
		"confidence":              decision.Confidence,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to record assistant message")
		tracing.FailSpan(span, err, "append failed")
		return o.apology(s.ID, "session_unavailable")
	}

	logger.Info().Str("agent_used", agentUsed).Msg("Completed processing message")
	return Response{
		Text:       text,
		SessionID:  s.ID,
		AgentUsed:  agentUsed,
		Confidence: decision.Confidence,
		Metadata: map[string]interface{}{
			"routing_reasoning":   decision.Reasoning,
			"fallback_agents":     decision.FallbackAgents,
			"conversation_length": s.Len(),
			"attempted_agents":    attempted,
		},
	}
}

func (o *Orchestrator) checkGuardrail(ctx context.Context, req Request) (Response, bool) {
	if o.guardrail == nil {
		return Response{}, false
	}

	actor := req.UserID
	if actor == "" {
		actor = "anonymous"
	}
	result := o.guardrail.CheckContext(ctx, actor, req.Message, "")
	if result.IsSafe {
		return Response{}, false
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = GuardrailBlockedSessionID
	}
	return Response{
		Text:       result.InterventionMessage,
		SessionID:  sessionID,
		AgentUsed:  GuardrailAgent,
		Confidence: 1.0,
		Metadata: map[string]interface{}{
			"guardrail_blocked": true,
			"violation_type":    string(result.ViolationType),
			"reason":            result.Reason,
		},
	}, true
}

// resolveSession loads the requested session, creating a new one when it is
// missing or was not given.
func (o *Orchestrator) resolveSession(ctx context.Context, req Request) (*session.Session, error) {
	if req.SessionID != "" {
		s, err := o.sessions.Get(ctx, req.SessionID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, session.ErrInvalidSessionID) {
			return nil, err
		}
		logger := tracing.LoggerFromContext(ctx, o.logger)
		logger.Warn().
			Str("requested_session_id", req.SessionID).
			Msg("Session not found, creating new session")
	}
	return o.sessions.Create(ctx, req.UserID)
}

// dispatch produces the reply text and names the agent that produced it.
func (o *Orchestrator) dispatch(ctx context.Context, s *session.Session, message, conversation string, decision routing.Decision) (string, string, []string) {
	attempted := []string{}
	if decision.IsRoot() {
		return o.generate(ctx, s), routing.RootAgent, attempted
	}

	logger := tracing.LoggerFromContext(ctx, o.logger)
	queryContext := map[string]interface{}{
		"conversation_history": conversation,
		"routing_confidence":   decision.Confidence,
	}

	candidates := append([]string{decision.AgentName}, decision.FallbackAgents...)
	for i, name := range candidates {
		handle, ok := o.router.Agent(name)
		if !ok {
			logger.Warn().Str("agent", name).Msg("Agent not registered, skipping")
			continue
		}
		attempted = append(attempted, name)

		resp := handle.Query(ctx, message, queryContext)
		if resp.Success {
			if i > 0 {
				o.router.Statistics().RecordFallback(name)
				logger.Info().Str("agent", name).Msg("Fallback agent succeeded")
			}
			return resp.Content, name, attempted
		}
		logger.Warn().
			Str("agent", name).
			Str("error", resp.Error).
			Msg("Agent failed, trying next candidate")
	}

	logger.Warn().
		Str("agent", decision.AgentName).
		Strs("attempted", attempted).
		Msg("All agents failed, answering locally")
	return o.generate(ctx, s) + disclaimer(decision.AgentName), routing.RootAgent, attempted
}

// generate answers from the context window with the local generator,
// returning the apology text when generation fails.
func (o *Orchestrator) generate(ctx context.Context, s *session.Session) string {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	if o.generator == nil {
		logger.Error().Msg("No generator configured")
		return ApologyMessage
	}

	window := o.sessions.WindowTokens(s, o.maxContextTokens)
	if len(window) > o.historyLimit {
		window = window[len(window)-o.historyLimit:]
	}
	messages := toLLMMessages(window)
	text, err := o.generator.Generate(ctx, messages, o.systemPrompt)
	if err != nil {
		logger.Error().Err(err).Msg("Local generation failed")
		return ApologyMessage
	}
	return text
}

// toLLMMessages keeps user and assistant turns and drops leading assistant
// turns so the conversation starts with the user.
func toLLMMessages(history []session.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		var role llm.Role
		switch m.Role {
		case session.RoleUser:
			role = llm.RoleUser
		case session.RoleAssistant:
			if len(out) == 0 {
				continue
			}
			role = llm.RoleAssistant
		default:
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

func (o *Orchestrator) apology(sessionID, reason string) Response {
	return Response{
		Text:       ApologyMessage,
		SessionID:  sessionID,
		AgentUsed:  routing.RootAgent,
		Confidence: 0,
		Metadata:   map[string]interface{}{"error": reason},
	}
}
