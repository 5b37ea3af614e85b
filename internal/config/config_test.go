package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 4000, cfg.Session.MaxContextTokens)
	assert.Equal(t, 20, cfg.Session.MessageOverhead)
	assert.Equal(t, 0.5, cfg.Routing.ConfidenceThreshold)
	assert.Equal(t, 10.0, cfg.Routing.ConfidenceScale)
	assert.True(t, cfg.Guardrail.Enabled)
	assert.Len(t, cfg.Agents, 3)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 1028, cfg.LLM.MaxTokens)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Session.Store = "mongo" },
			wantErr: "invalid session.store",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Session.Store = "postgres" },
			wantErr: "postgres_dsn",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Routing.ConfidenceThreshold = 1.5 },
			wantErr: "confidence_threshold",
		},
		{
			name: "remote agent without url",
			mutate: func(c *Config) {
				c.Agents = append(c.Agents, AgentConfig{Name: "payroll", Type: "remote"})
			},
			wantErr: "url is required",
		},
		{
			name: "reserved agent name",
			mutate: func(c *Config) {
				c.Agents = append(c.Agents, AgentConfig{Name: "root", Type: "local"})
			},
			wantErr: "reserved",
		},
		{
			name: "duplicate agent",
			mutate: func(c *Config) {
				c.Agents = append(c.Agents, AgentConfig{Name: "hr", Type: "local"})
			},
			wantErr: "duplicate",
		},
		{
			name: "bad provider",
			mutate: func(c *Config) {
				c.LLM.Providers = []ProviderConfig{{ID: "p1", Provider: "gemini"}}
			},
			wantErr: "invalid provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Session.Estimator = "bytes"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 2, len(strings.Split(err.Error(), "\n")))
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("CUSTOM_KEY", "sk-custom")

	assert.Equal(t, "sk-inline", ProviderConfig{Provider: "openai", APIKey: "sk-inline"}.ResolvedAPIKey())
	assert.Equal(t, "sk-custom", ProviderConfig{Provider: "openai", APIKeyEnv: "CUSTOM_KEY"}.ResolvedAPIKey())
	assert.Equal(t, "sk-ant-from-env", ProviderConfig{Provider: "anthropic"}.ResolvedAPIKey())
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"confidence_threshold": 0.5`)
}
