package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator performs semantic checks that go beyond Config.Validate:
// credential shapes, URLs and schedules.
type Validator struct {
	cronParser cron.Parser
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateAgentURL checks that a remote agent base URL is absolute http(s).
func (v *Validator) ValidateAgentURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid agent url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid agent url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid agent url %q: host is required", raw)
	}
	return nil
}

// ValidateSchedule accepts five-field cron expressions and descriptors such
// as "@hourly" or "@every 30m".
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := v.cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateBackoff validates retry settings of a remote agent
func (v *Validator) ValidateBackoff(maxRetries int, factor float64) error {
	if maxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", maxRetries)
	}
	if factor < 0 {
		return fmt.Errorf("backoff_factor must be >= 0, got %v", factor)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	for i, p := range cfg.LLM.Providers {
		if err := v.ValidateAPIKey(p.ResolvedAPIKey(), p.Provider); err != nil {
			errs = append(errs, fmt.Errorf("llm provider %d (%s): %w", i, p.ID, err))
		}
	}

	for _, agent := range cfg.Agents {
		if agent.Type == "remote" {
			if err := v.ValidateAgentURL(agent.URL); err != nil {
				errs = append(errs, fmt.Errorf("agent %s: %w", agent.Name, err))
			}
		}
		if err := v.ValidateBackoff(agent.MaxRetries, agent.BackoffFactor); err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", agent.Name, err))
		}
	}

	if err := v.ValidateSchedule(cfg.Session.SweepSchedule); err != nil {
		errs = append(errs, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
