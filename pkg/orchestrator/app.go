package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pramodthe/enterprise-ai-platform/internal/config"
	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/pkg/guardrail"
	"github.com/pramodthe/enterprise-ai-platform/pkg/llm"
	"github.com/pramodthe/enterprise-ai-platform/pkg/routing"
	"github.com/pramodthe/enterprise-ai-platform/pkg/session"
)

// App is the fully wired platform: sessions, guardrail, router, agents,
// generator and the orchestrator over them. It is built once at startup and
// shared by every request handler.
type App struct {
	Config       *config.Config
	Sessions     *session.Manager
	Guardrail    *guardrail.Guardrail
	Router       *routing.Router
	Generator    llm.Generator
	Orchestrator *Orchestrator

	sweeper *session.Sweeper
	watcher *guardrail.Watcher
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
}

// AppOption overrides parts of the wiring, mostly for tests and the CLI.
type AppOption func(*appOptions)

type appOptions struct {
	store     session.Store
	generator llm.Generator
	logger    *zerolog.Logger
}

// WithStore uses store instead of the configured backend.
func WithStore(store session.Store) AppOption {
	return func(o *appOptions) { o.store = store }
}

// WithGenerator uses generator instead of the configured providers.
func WithGenerator(generator llm.Generator) AppOption {
	return func(o *appOptions) { o.generator = generator }
}

func WithAppLogger(logger zerolog.Logger) AppOption {
	return func(o *appOptions) { o.logger = &logger }
}

// NewApp builds every component from cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	observability.EnsureRegistered()

	store := o.store
	if store == nil {
		var err error
		store, err = session.NewStore(ctx, storeOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
	}

	estimator, err := newEstimator(cfg.Session)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{Config: cfg, logger: logger.With().Str("component", "app").Logger()}

	app.Sessions = session.NewManager(store,
		session.WithLogger(logger),
		session.WithEstimator(estimator),
		session.WithMessageOverhead(cfg.Session.MessageOverhead),
		session.WithSessionLocking(cfg.Session.Serialize),
	)
	app.sweeper = session.NewSweeper(app.Sessions, cfg.Session.SweepSchedule, cfg.Session.MaxAgeHours)

	// Close releases the store and any rule watcher built so far.
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	if err := app.buildGuardrail(logger); err != nil {
		return fail(err)
	}

	app.Generator = o.generator
	if app.Generator == nil {
		app.Generator, err = newGenerator(cfg.LLM, logger)
		if err != nil {
			return fail(err)
		}
	}

	if err := app.buildRouter(logger); err != nil {
		return fail(err)
	}

	app.Orchestrator = New(app.Sessions, app.Router, app.Generator,
		WithLogger(logger),
		WithGuardrail(app.Guardrail),
		WithSystemPrompt(cfg.LLM.SystemPrompt),
		WithMaxContextTokens(cfg.Session.MaxContextTokens),
		WithHistoryLimit(cfg.LLM.HistoryLimit),
		WithSerializedSessions(cfg.Session.Serialize),
	)

	app.logger.Info().
		Str("session_store", cfg.Session.Store).
		Strs("agents", app.Router.Agents()).
		Msg("Application initialized")
	return app, nil
}

func storeOptions(cfg *config.Config) session.StoreOptions {
	dir := cfg.Session.Dir
	if dir == "" && cfg.DataDir != "" {
		dir = cfg.DataDir + "/sessions"
	}
	return session.StoreOptions{
		Backend:       cfg.Session.Store,
		Dir:           dir,
		SQLitePath:    cfg.Session.SQLitePath,
		PostgresDSN:   cfg.Session.PostgresDSN,
		RedisAddr:     cfg.Session.RedisAddr,
		RedisPassword: cfg.Session.RedisPassword,
		RedisDB:       cfg.Session.RedisDB,
		TTL:           time.Duration(cfg.Session.TTLHours) * time.Hour,
	}
}

func newEstimator(cfg config.SessionConfig) (session.TokenEstimator, error) {
	switch cfg.Estimator {
	case "", "chars":
		cpt := cfg.CharsPerToken
		if cpt <= 0 {
			cpt = session.DefaultCharsPerToken
		}
		return session.CharEstimator{CharsPerToken: cpt}, nil
	case "tiktoken":
		est, err := session.NewTiktokenEstimator("")
		if err != nil {
			return nil, fmt.Errorf("failed to create tiktoken estimator: %w", err)
		}
		return est, nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", cfg.Estimator)
	}
}

func (a *App) buildGuardrail(logger zerolog.Logger) error {
	gc := a.Config.Guardrail
	opts := []guardrail.Option{
		guardrail.WithLogger(logger),
		guardrail.WithEnabled(gc.Enabled),
		guardrail.WithRules(guardrail.Rules{
			Financial:        gc.Financial,
			NegativeEmployee: gc.NegativeEmployee,
			OutOfScope:       gc.OutOfScope,
		}),
	}
	if gc.RulesFile != "" && !gc.Watch {
		rs, err := guardrail.LoadRuleSet(gc.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load guardrail rules: %w", err)
		}
		opts = append(opts, guardrail.WithRuleSet(rs))
	}
	a.Guardrail = guardrail.New(opts...)

	if gc.RulesFile != "" && gc.Watch {
		w, err := guardrail.NewWatcher(a.Guardrail, guardrail.WatcherConfig{
			Path: gc.RulesFile,
			OnReload: func(_ *guardrail.RuleSet, err error) {
				if err != nil {
					a.logger.Warn().Err(err).Msg("Guardrail rule reload failed, keeping previous rules")
					return
				}
				observability.RecordConfigAudit(context.Background(), "guardrail_rules_reloaded", "watcher",
					map[string]interface{}{"path": gc.RulesFile})
			},
		})
		if err != nil {
			return fmt.Errorf("failed to watch guardrail rules: %w", err)
		}
		a.watcher = w
	}
	return nil
}

func newGenerator(cfg config.LLMConfig, logger zerolog.Logger) (llm.Generator, error) {
	profiles := make([]llm.Profile, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		key := pc.ResolvedAPIKey()
		if key == "" {
			logger.Warn().Str("provider", pc.ID).Msg("Provider has no API key, skipping")
			continue
		}
		p, err := llm.NewProvider(llm.ProviderConfig{
			ID:       pc.ID,
			Provider: pc.Provider,
			APIKey:   key,
			Model:    pc.Model,
			BaseURL:  pc.BaseURL,
			Priority: pc.Priority,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %q: %w", pc.ID, err)
		}
		profiles = append(profiles, llm.Profile{ID: pc.ID, Provider: p, Priority: pc.Priority})
	}

	if len(profiles) == 0 {
		logger.Warn().Msg("No LLM providers configured; local answers will fall back to the apology message")
		return llm.StaticGenerator{Err: llm.ErrNoProviders}, nil
	}

	return llm.NewFailoverGenerator(llm.GeneratorConfig{
		Profiles:     profiles,
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		Cooldown:     time.Duration(cfg.CooldownSeconds) * time.Second,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Logger:       &logger,
	})
}

func (a *App) buildRouter(logger zerolog.Logger) error {
	a.Router = routing.New(
		routing.WithLogger(logger),
		routing.WithConfidenceThreshold(a.Config.Routing.ConfidenceThreshold),
		routing.WithConfidenceScale(a.Config.Routing.ConfidenceScale),
	)

	for _, ac := range a.Config.Agents {
		handle, err := BuildAgent(ac, a.Generator, logger)
		if err != nil {
			return fmt.Errorf("failed to build agent %q: %w", ac.Name, err)
		}
		if err := a.Router.Register(ac.Name, handle, ac.Keywords); err != nil {
			return fmt.Errorf("failed to register agent %q: %w", ac.Name, err)
		}
	}

	if path := a.Config.Routing.KeywordsFile; path != "" {
		kf, err := routing.LoadKeywordFile(path)
		if err != nil {
			return err
		}
		a.Router.ApplyKeywordFile(kf)
	}
	return nil
}

// Start launches the background jobs: the expiry sweeper and, when
// configured, the guardrail rule watcher.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("app already started")
	}

	if err := a.sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			_ = a.sweeper.Stop()
			return fmt.Errorf("failed to start guardrail watcher: %w", err)
		}
	}
	a.started = true
	return nil
}

// Close stops background jobs and closes the session store.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.started {
		if err := a.sweeper.Stop(); err != nil {
			errs = append(errs, err)
		}
		a.started = false
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		a.watcher = nil
	}
	if err := a.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
	}
	return errors.Join(errs...)
}

// AppHolder builds an App on first use. Concurrent first callers share one
// construction; a failed build is cached and returned to every caller.
type AppHolder struct {
	build func(context.Context) (*App, error)
	once  sync.Once
	app   *App
	err   error
}

func NewAppHolder(build func(context.Context) (*App, error)) *AppHolder {
	return &AppHolder{build: build}
}

func (h *AppHolder) Get(ctx context.Context) (*App, error) {
	h.once.Do(func() {
		h.app, h.err = h.build(ctx)
	})
	return h.app, h.err
}
