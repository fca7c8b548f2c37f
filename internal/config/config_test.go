package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
log:
  level: debug
  format: json
flows:
  source: sqlite
  sqlite_dsn: "file:flows.db"
  cache_ttl: 1m
sessions:
  backend: redis
redis:
  addr: "redis:6379"
  ttl: 24h
handoff:
  max_bot_turns: 12
  message: "Ya te atiende un asesor."
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, config.SourceSQLite, cfg.Flows.Source)
	assert.Equal(t, time.Minute, cfg.Flows.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 12, cfg.Handoff.MaxBotTurns)
	assert.Equal(t, "Ya te atiende un asesor.", cfg.Handoff.Message)
	// Untouched sections keep their defaults.
	assert.Equal(t, ".ramal/sessions", cfg.Sessions.Dir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	t.Setenv("RAMAL_LOG_LEVEL", "warn")
	t.Setenv("RAMAL_SESSIONS_BACKEND", "file")
	t.Setenv("RAMAL_ENGINE_MAX_STEPS", "40")
	t.Setenv("RAMAL_NATS_URL", "nats://localhost:4222")
	t.Setenv("RAMAL_SERVER_CHAT_RATE_LIMIT", "0.5")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, config.BackendFile, cfg.Sessions.Backend)
	assert.Equal(t, 40, cfg.Engine.MaxSteps)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 0.5, cfg.Server.ChatRateLimit)
}

func TestLoad_EnvPath(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":7070\"\n")
	t.Setenv(config.EnvConfigPath, path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"bad yaml", "server: [", nil},
		{"unknown source", "flows:\n  source: loam\n", nil},
		{"sqlite without dsn", "flows:\n  source: sqlite\n", nil},
		{"unknown backend", "sessions:\n  backend: etcd\n", nil},
		{"bad int env", "", map[string]string{"RAMAL_REDIS_DB": "zero"}},
		{"bad duration env", "", map[string]string{"RAMAL_REDIS_TTL": "forever"}},
		{"bad float env", "", map[string]string{"RAMAL_SERVER_CHAT_RATE_LIMIT": "fast"}},
		{"negative rate", "server:\n  chat_rate_limit: -1\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, 30*time.Second, cfg.Flows.CacheTTL, "compiled flows expire by default")
}
