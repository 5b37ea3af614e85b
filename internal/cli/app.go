package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pramodthe/enterprise-ai-platform/internal/config"
	"github.com/pramodthe/enterprise-ai-platform/internal/logger"
	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
)

// newApp builds the in-process platform. Tests replace it to inject a fake
// generator.
var newApp = func(ctx context.Context, cfg *config.Config) (*orchestrator.App, error) {
	return orchestrator.NewApp(ctx, cfg, orchestrator.WithAppLogger(log.Logger))
}

// loadConfig loads --config, applies --log-level when given and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if f := cmd.Flags().Lookup("log-level"); (f != nil && f.Changed) || cfg.Logging.Level == "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// withApp loads config, sets up logging and runs fn against a fresh app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *orchestrator.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close app")
		}
	}()

	return fn(ctx, app)
}
