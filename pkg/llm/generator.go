package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
)

// Generator produces a reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message, systemPrompt string) (string, error)
}

// Profile is a provider with its failover priority (lower runs first).
type Profile struct {
	ID       string
	Provider Provider
	Priority int
}

type profileState struct {
	Profile
	failures      int
	cooldownUntil time.Time
}

// FailoverGenerator tries profiles in priority order. Each profile gets
// MaxRetries+1 attempts for retryable errors; a profile that keeps failing is
// put in cooldown and skipped until it expires.
type FailoverGenerator struct {
	logger       zerolog.Logger
	maxRetries   int
	initialDelay time.Duration
	cooldown     time.Duration
	temperature  float64
	maxTokens    int
	now          func() time.Time

	mu       sync.Mutex
	profiles []*profileState
}

// GeneratorConfig configures NewFailoverGenerator.
type GeneratorConfig struct {
	Profiles     []Profile
	MaxRetries   int
	InitialDelay time.Duration
	Cooldown     time.Duration
	Temperature  float64
	MaxTokens    int
	Logger       *zerolog.Logger
}

// NewFailoverGenerator validates cfg and fills defaults.
func NewFailoverGenerator(cfg GeneratorConfig) (*FailoverGenerator, error) {
	if len(cfg.Profiles) == 0 {
		return nil, ErrNoProviders
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	profiles := make([]*profileState, 0, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		if p.Provider == nil {
			return nil, fmt.Errorf("profile %d has no provider", i)
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%s-%d", p.Provider.Name(), i)
		}
		profiles = append(profiles, &profileState{Profile: p})
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	observability.EnsureRegistered()
	return &FailoverGenerator{
		logger:       logger.With().Str("component", "llm").Logger(),
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		cooldown:     cfg.Cooldown,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		now:          time.Now,
		profiles:     profiles,
	}, nil
}

// Generate returns the first successful completion across profiles.
func (g *FailoverGenerator) Generate(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "eap.llm", "llm.generate",
		attribute.Int("messages", len(messages)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, g.logger)

	if err := Validate(messages); err != nil {
		tracing.FailSpan(span, err, "invalid messages")
		return "", err
	}

	req := Request{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
	}

	var lastErr error
	for _, profile := range g.snapshot() {
		name := profile.Provider.Name()
		if g.inCooldown(profile.ID) {
			observability.SetProviderCooldown(name, true)
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}
		observability.SetProviderCooldown(name, false)

		start := time.Now()
		completion, err := g.completeWithRetry(ctx, profile.Provider, req)
		if err == nil {
			g.markSuccess(profile.ID)
			observability.RecordGeneration(name, time.Since(start), true)
			return completion.Content, nil
		}

		lastErr = err
		observability.RecordGeneration(name, time.Since(start), false)
		logger.Warn().Err(err).Str("profile_id", profile.ID).Msg("Provider profile failed")

		if ctx.Err() != nil {
			break
		}
		g.markFailure(profile.ID)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("every profile is cooling down")
	}
	err := fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	tracing.FailSpan(span, err, "generation failed")
	return "", err
}

// completeWithRetry retries retryable errors with exponential backoff,
// doubling the delay again for rate limits.
func (g *FailoverGenerator) completeWithRetry(ctx context.Context, provider Provider, req Request) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		completion, err := provider.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == g.maxRetries {
			break
		}

		delay := g.initialDelay * time.Duration(1<<attempt)
		if IsRateLimited(err) {
			delay *= 2
		}
		g.logger.Info().
			Str("provider", provider.Name()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (g *FailoverGenerator) snapshot() []Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Profile, len(g.profiles))
	for i, p := range g.profiles {
		out[i] = p.Profile
	}
	return out
}

func (g *FailoverGenerator) find(id string) *profileState {
	for _, p := range g.profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *FailoverGenerator) inCooldown(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.find(id)
	return p != nil && g.now().Before(p.cooldownUntil)
}

func (g *FailoverGenerator) markSuccess(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.find(id); p != nil {
		p.failures = 0
		p.cooldownUntil = time.Time{}
	}
}

// markFailure puts a profile in cooldown; repeated failures lengthen it.
func (g *FailoverGenerator) markFailure(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.find(id); p != nil {
		p.failures++
		p.cooldownUntil = g.now().Add(g.cooldown * time.Duration(p.failures))
		observability.SetProviderCooldown(p.Provider.Name(), true)
	}
}

// StaticGenerator always returns Reply, or Err when set.
type StaticGenerator struct {
	Reply string
	Err   error
}

func (s StaticGenerator) Generate(_ context.Context, messages []Message, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if err := Validate(messages); err != nil {
		return "", err
	}
	return s.Reply, nil
}
