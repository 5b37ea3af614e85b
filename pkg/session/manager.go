package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
)

const tracerName = "eap.session"

// Manager owns session lifecycle: creation, message appends, context
// windows and expiry. All mutations go through it.
type Manager struct {
	store     Store
	logger    zerolog.Logger
	estimator TokenEstimator
	overhead  int
	now       func() time.Time
	locks     *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEstimator replaces the default CharEstimator used by BuildContextTokens.
func WithEstimator(est TokenEstimator) Option {
	return func(m *Manager) {
		if est != nil {
			m.estimator = est
		}
	}
}

// WithMessageOverhead sets the per-message cost in characters.
func WithMessageOverhead(chars int) Option {
	return func(m *Manager) {
		if chars >= 0 {
			m.overhead = chars
		}
	}
}

// WithSessionLocking enables Lock. Without it Lock is a no-op and concurrent
// requests on one session are last-writer-wins.
func WithSessionLocking(enabled bool) Option {
	return func(m *Manager) {
		if enabled {
			m.locks = newKeyedMutex()
		} else {
			m.locks = nil
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		logger:    log.Logger,
		estimator: CharEstimator{CharsPerToken: DefaultCharsPerToken},
		overhead:  DefaultMessageOverhead,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "session").Logger()
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Create starts an empty session with a fresh UUID and persists it.
func (m *Manager) Create(ctx context.Context, userID string) (*Session, error) {
	id := uuid.New().String()
	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.create",
		attribute.String("session_id", id),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, m.logger)

	now := m.now()
	s := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		History:   []Message{},
		Metadata:  map[string]interface{}{},
	}

	if err := m.store.Save(ctx, s); err != nil {
		tracing.FailSpan(span, err, "save failed")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info().Str("user_id", userID).Msg("Session created")
	return s, nil
}

// Get loads a session. Unknown ids return ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.get",
		attribute.String("session_id", id),
	)
	defer span.End()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			tracing.FailSpan(span, err, "load failed")
		}
		return nil, err
	}
	return s, nil
}

// Append adds a message to s and persists the whole record. A string
// metadata["agent_used"] is copied onto the message's AgentUsed. On a
// persistence failure s is left unchanged.
func (m *Manager) Append(ctx context.Context, s *Session, role Role, content string, metadata map[string]interface{}) (Message, error) {
	ctx = tracing.WithSessionID(ctx, s.ID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.append",
		attribute.String("session_id", s.ID),
		attribute.String("role", string(role)),
	)
	defer span.End()

	if !role.Valid() {
		err := fmt.Errorf("invalid message role %q", role)
		tracing.FailSpan(span, err, "invalid role")
		return Message{}, err
	}

	now := m.now()
	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Metadata:  cloneMap(metadata),
	}
	if agent, ok := metadata[MetadataAgentUsed].(string); ok {
		msg.AgentUsed = agent
	}

	prevUpdated := s.UpdatedAt
	prevLen := len(s.History)

	s.History = append(s.History, msg)
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}

	if err := m.store.Save(ctx, s); err != nil {
		s.History = s.History[:prevLen]
		s.UpdatedAt = prevUpdated
		tracing.FailSpan(span, err, "save failed")
		return Message{}, fmt.Errorf("failed to append message: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, m.logger)
	logger.Debug().
		Str("role", string(role)).
		Int("history_len", len(s.History)).
		Msg("Message appended")
	return msg, nil
}

// BuildContext renders the newest messages that fit in maxChars, counting
// each message as its character length plus the configured overhead.
func (m *Manager) BuildContext(s *Session, maxChars int) string {
	return renderContext(slidingWindow(s.History, float64(maxChars), charCost(m.overhead)))
}

// BuildContextTokens is BuildContext with the budget in estimated tokens.
func (m *Manager) BuildContextTokens(s *Session, maxTokens int) string {
	return renderContext(slidingWindow(s.History, float64(maxTokens), tokenCost(m.estimator, m.overhead)))
}

// WindowTokens returns a copy of the messages BuildContextTokens would render
// for the same budget, oldest first.
func (m *Manager) WindowTokens(s *Session, maxTokens int) []Message {
	window := slidingWindow(s.History, float64(maxTokens), tokenCost(m.estimator, m.overhead))
	out := make([]Message, len(window))
	copy(out, window)
	return out
}

// History returns a copy of the last max messages, or all when max <= 0.
func (m *Manager) History(s *Session, max int) []Message {
	msgs := s.History
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// LastAgentUsed returns the agent recorded on the most recent assistant
// message, or "".
func (m *Manager) LastAgentUsed(s *Session) string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleAssistant {
			return s.History[i].AgentUsed
		}
	}
	return ""
}

// ExpireStale flags sessions idle for longer than maxAgeHours and returns how
// many changed. Sessions are never deleted here.
func (m *Manager) ExpireStale(ctx context.Context, maxAgeHours int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.expire_stale",
		attribute.Int("max_age_hours", maxAgeHours),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, m.logger)

	ids, err := m.store.List(ctx, ByExpired(false))
	if err != nil {
		tracing.FailSpan(span, err, "list failed")
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	cutoff := m.now().Add(-time.Duration(maxAgeHours) * time.Hour)
	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		s, err := m.store.Load(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("Failed to load session for expiry")
			continue
		}
		if s.IsExpired || !s.UpdatedAt.Before(cutoff) {
			continue
		}

		s.IsExpired = true
		if err := m.store.Save(ctx, s); err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("Failed to mark session expired")
			continue
		}
		observability.RecordSessionAudit(ctx, "expire", id, map[string]interface{}{
			"idle_since": s.UpdatedAt,
		})
		expired++
	}

	observability.RecordSessionsExpired(expired)
	observability.SetActiveSessions(len(ids) - expired)
	logger.Info().
		Int("checked", len(ids)).
		Int("expired", expired).
		Msg("Stale sessions expired")
	return expired, nil
}

// Delete removes a session record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	observability.RecordSessionAudit(ctx, "delete", id, nil)
	m.logger.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

// List returns session ids matching f.
func (m *Manager) List(ctx context.Context, f Filter) ([]string, error) {
	return m.store.List(ctx, f)
}

// Lock serializes work on one session when locking is enabled. The returned
// func releases it and is safe to call more than once.
func (m *Manager) Lock(id string) func() {
	if m.locks == nil {
		return func() {}
	}
	return m.locks.lock(id)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
