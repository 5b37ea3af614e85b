package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("sk-abc", "anthropic"))
	assert.NoError(t, v.ValidateAPIKey("sk-abc", "openai"))
	assert.Error(t, v.ValidateAPIKey("", "openai"))
}

func TestValidateAgentURL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAgentURL("http://localhost:8001"))
	assert.NoError(t, v.ValidateAgentURL("https://hr.internal"))
	assert.Error(t, v.ValidateAgentURL("localhost:8001"))
	assert.Error(t, v.ValidateAgentURL("ftp://files"))
	assert.Error(t, v.ValidateAgentURL("http://"))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("@every 1h"))
	assert.NoError(t, v.ValidateSchedule("0 3 * * *"))
	assert.NoError(t, v.ValidateSchedule(""))
	assert.Error(t, v.ValidateSchedule("every hour"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	assert.Empty(t, v.ValidateConfig(cfg))

	cfg.Agents = append(cfg.Agents, AgentConfig{Name: "payroll", Type: "remote", URL: "payroll", MaxRetries: -1})
	cfg.Logging.Level = "trace"
	errs := v.ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}
