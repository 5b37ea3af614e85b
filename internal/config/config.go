package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config represents the main platform configuration
type Config struct {
	// Data directory for file and SQLite session stores, logs and audit trail
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Session   SessionConfig   `json:"session" mapstructure:"session"`
	Guardrail GuardrailConfig `json:"guardrail" mapstructure:"guardrail"`
	Routing   RoutingConfig   `json:"routing" mapstructure:"routing"`
	Agents    []AgentConfig   `json:"agents" mapstructure:"agents"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`
	Tracing   TracingConfig   `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds the HTTP/WebSocket API settings
type ServerConfig struct {
	Host                string  `json:"host" mapstructure:"host"`
	Port                int     `json:"port" mapstructure:"port"`
	ReadTimeoutSeconds  int     `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	RateLimitRPS        float64 `json:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst      int     `json:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	// SharedSecret, when set, must be sent in the X-EAP-Secret header.
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// SessionConfig selects the session backend and the context window budget
type SessionConfig struct {
	Store         string `json:"store" mapstructure:"store"` // memory, file, sqlite, postgres, redis
	Dir           string `json:"dir" mapstructure:"dir"`
	SQLitePath    string `json:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN   string `json:"postgres_dsn" mapstructure:"postgres_dsn"`
	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" mapstructure:"redis_db"`
	TTLHours      int    `json:"ttl_hours" mapstructure:"ttl_hours"`

	MaxContextTokens int    `json:"max_context_tokens" mapstructure:"max_context_tokens"`
	MessageOverhead  int    `json:"message_overhead" mapstructure:"message_overhead"`
	Estimator        string `json:"estimator" mapstructure:"estimator"` // chars, tiktoken
	CharsPerToken    int    `json:"chars_per_token" mapstructure:"chars_per_token"`

	MaxAgeHours   int    `json:"max_age_hours" mapstructure:"max_age_hours"`
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	// Serialize holds a per-session lock for the whole request.
	Serialize bool `json:"serialize" mapstructure:"serialize"`
}

// GuardrailConfig toggles the safety rules
type GuardrailConfig struct {
	Enabled          bool   `json:"enabled" mapstructure:"enabled"`
	Financial        bool   `json:"financial" mapstructure:"financial"`
	NegativeEmployee bool   `json:"negative_employee" mapstructure:"negative_employee"`
	OutOfScope       bool   `json:"out_of_scope" mapstructure:"out_of_scope"`
	RulesFile        string `json:"rules_file" mapstructure:"rules_file"`
	Watch            bool   `json:"watch" mapstructure:"watch"`
}

// RoutingConfig tunes the keyword router
type RoutingConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	ConfidenceScale     float64 `json:"confidence_scale" mapstructure:"confidence_scale"`
	KeywordsFile        string  `json:"keywords_file" mapstructure:"keywords_file"`
}

// AgentConfig describes one specialized agent
type AgentConfig struct {
	Name           string   `json:"name" mapstructure:"name"`
	Type           string   `json:"type" mapstructure:"type"` // remote, local
	URL            string   `json:"url" mapstructure:"url"`
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries     int      `json:"max_retries" mapstructure:"max_retries"`
	BackoffFactor  float64  `json:"backoff_factor" mapstructure:"backoff_factor"`
	Keywords       []string `json:"keywords" mapstructure:"keywords"`
	SystemPrompt   string   `json:"system_prompt" mapstructure:"system_prompt"`
	Capabilities   []string `json:"capabilities" mapstructure:"capabilities"`
}

// LLMConfig configures local text generation
type LLMConfig struct {
	Providers       []ProviderConfig `json:"providers" mapstructure:"providers"`
	MaxRetries      int              `json:"max_retries" mapstructure:"max_retries"`
	InitialDelayMs  int              `json:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	CooldownSeconds int              `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`
	Temperature     float64          `json:"temperature" mapstructure:"temperature"`
	MaxTokens       int              `json:"max_tokens" mapstructure:"max_tokens"`
	HistoryLimit    int              `json:"history_limit" mapstructure:"history_limit"`
	// SystemPrompt overrides the root assistant's prompt when set.
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
}

// ProviderConfig is one credentialed model endpoint
type ProviderConfig struct {
	ID        string `json:"id" mapstructure:"id"`
	Provider  string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	APIKeyEnv string `json:"api_key_env" mapstructure:"api_key_env"`
	Model     string `json:"model" mapstructure:"model"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	Priority  int    `json:"priority" mapstructure:"priority"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"`
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`
	Compress  bool   `json:"compress" mapstructure:"compress"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `json:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	Insecure     bool    `json:"insecure" mapstructure:"insecure"`
	SampleRatio  float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// ResolvedAPIKey returns the configured key, falling back to APIKeyEnv and
// then to the provider's conventional environment variable.
func (p ProviderConfig) ResolvedAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	switch p.Provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
			RateLimitRPS:        5,
			RateLimitBurst:      10,
		},
		Session: SessionConfig{
			Store:            "memory",
			TTLHours:         24 * 30,
			MaxContextTokens: 4000,
			MessageOverhead:  20,
			Estimator:        "chars",
			CharsPerToken:    4,
			MaxAgeHours:      24,
			SweepSchedule:    "@every 1h",
		},
		Guardrail: GuardrailConfig{
			Enabled:          true,
			Financial:        true,
			NegativeEmployee: true,
			OutOfScope:       true,
		},
		Routing: RoutingConfig{
			ConfidenceThreshold: 0.5,
			ConfidenceScale:     10,
		},
		Agents: []AgentConfig{
			{Name: "hr", Type: "local", SystemPrompt: "You are the HR Assistant. Answer questions about employees, organizational structure, skills and HR processes."},
			{Name: "analytics", Type: "local", SystemPrompt: "You are the Analytics Assistant. Perform calculations, analyze data and summarize metrics. Show your working."},
			{Name: "document", Type: "local", SystemPrompt: "You are the Document Assistant. Answer questions about company policies, procedures and guidelines."},
		},
		LLM: LLMConfig{
			Providers:       []ProviderConfig{},
			MaxRetries:      3,
			InitialDelayMs:  1000,
			CooldownSeconds: 60,
			Temperature:     0.3,
			MaxTokens:       1028,
			HistoryLimit:    20,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			ServiceName: "enterprise-ai-platform",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks structural validity. Every problem is reported, joined
// with errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Session.Store {
	case "memory":
	case "file":
		if c.Session.Dir == "" && c.DataDir == "" {
			errs = append(errs, errors.New("session.dir (or data_dir) is required for the file store"))
		}
	case "sqlite":
		if c.Session.SQLitePath == "" && c.DataDir == "" {
			errs = append(errs, errors.New("session.sqlite_path (or data_dir) is required for the sqlite store"))
		}
	case "postgres":
		if c.Session.PostgresDSN == "" {
			errs = append(errs, errors.New("session.postgres_dsn is required for the postgres store"))
		}
	case "redis":
		if c.Session.RedisAddr == "" {
			errs = append(errs, errors.New("session.redis_addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid session.store %q (must be: memory, file, sqlite, postgres, redis)", c.Session.Store))
	}

	if c.Session.MaxContextTokens <= 0 {
		errs = append(errs, errors.New("session.max_context_tokens must be positive"))
	}
	if c.Session.Estimator != "chars" && c.Session.Estimator != "tiktoken" {
		errs = append(errs, fmt.Errorf("invalid session.estimator %q (must be: chars, tiktoken)", c.Session.Estimator))
	}

	if c.Routing.ConfidenceThreshold < 0 || c.Routing.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("routing.confidence_threshold must be within [0,1], got %v", c.Routing.ConfidenceThreshold))
	}
	if c.Routing.ConfidenceScale <= 0 {
		errs = append(errs, errors.New("routing.confidence_scale must be positive"))
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, agent := range c.Agents {
		name := strings.TrimSpace(agent.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("agent %d: name is required", i))
			continue
		}
		if name == "root" || name == "guardrail" {
			errs = append(errs, fmt.Errorf("agent %d: name %q is reserved", i, name))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("agent %s: duplicate name", name))
		}
		seen[name] = true

		switch agent.Type {
		case "remote":
			if agent.URL == "" {
				errs = append(errs, fmt.Errorf("agent %s: url is required for remote agents", name))
			}
		case "local":
		default:
			errs = append(errs, fmt.Errorf("agent %s: invalid type %q (must be: remote, local)", name, agent.Type))
		}
	}

	for i, p := range c.LLM.Providers {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("llm provider %d: id is required", i))
		}
		if p.Provider != "anthropic" && p.Provider != "openai" {
			errs = append(errs, fmt.Errorf("llm provider %s: invalid provider %q (must be: anthropic, openai)", p.ID, p.Provider))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
