package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file does not exist", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := NewLoader(filepath.Join(dir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Session.Store)
		assert.Len(t, cfg.Agents, 3)
		assert.NotEmpty(t, cfg.DataDir)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		data := `{
			"data_dir": "` + dir + `",
			"server": {"port": 9090},
			"session": {"store": "sqlite", "max_context_tokens": 2000},
			"routing": {"confidence_threshold": 0.4},
			"agents": [
				{"name": "analytics", "type": "remote", "url": "http://localhost:8002", "keywords": ["calculate", "average"]}
			]
		}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "sqlite", cfg.Session.Store)
		assert.Equal(t, 2000, cfg.Session.MaxContextTokens)
		assert.Equal(t, 20, cfg.Session.MessageOverhead)
		assert.Equal(t, 0.4, cfg.Routing.ConfidenceThreshold)
		require.Len(t, cfg.Agents, 1)
		assert.Equal(t, "analytics", cfg.Agents[0].Name)
		assert.Equal(t, []string{"calculate", "average"}, cfg.Agents[0].Keywords)
		assert.Empty(t, cfg.Agents[0].SystemPrompt)
		assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.Session.SQLitePath)
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("EAP_SERVER_PORT", "7000")
		t.Setenv("EAP_SESSION_POSTGRES_DSN", "postgres://eap@localhost/eap")
		t.Setenv("EAP_DATA_DIR", dir)

		cfg, err := NewLoader(filepath.Join(dir, "missing.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "postgres://eap@localhost/eap", cfg.Session.PostgresDSN)
		assert.Equal(t, dir, cfg.DataDir)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Server.Port = 9191
	cfg.Agents = []AgentConfig{{Name: "hr", Type: "remote", URL: "http://hr:8001", MaxRetries: 2}}

	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, loaded.Server.Port)
	require.Len(t, loaded.Agents, 1)
	assert.Equal(t, "http://hr:8001", loaded.Agents[0].URL)
	assert.Equal(t, 2, loaded.Agents[0].MaxRetries)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "/tmp/x.json", NewLoader("/tmp/x.json").GetConfigPath())
	assert.Contains(t, NewLoader("").GetConfigPath(), filepath.Join(".eap", "config.json"))
}
