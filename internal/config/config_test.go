package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"CONFIG_FILE", "PORT", "FRONTEND_URL", "DB_PATH", "STATIC_DIR", "BCRYPT_COST",
	"SESSION_TTL", "SESSION_BACKEND", "SESSION_CLEANUP_INTERVAL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"BOOTSTRAP_ADMIN_USERNAME", "BOOTSTRAP_ADMIN_PASSWORD",
	"AI_REQUEST_TIMEOUT", "AI_PLAN_MAX_TOKENS", "AI_CHAT_MAX_TOKENS", "AI_TEMPERATURE",
	"AI_DEFAULT_MODEL", "AI_DEFAULT_ENDPOINT", "AI_RATE_LIMIT", "AI_RATE_WINDOW",
	"CONVERSATION_LOG_ENABLED", "CONVERSATION_LOG_DIR", "CONVERSATION_LOG_QUEUE_SIZE",
}

// clearEnv unsets every key the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/studyplan.db", cfg.DBPath)
	assert.Equal(t, 168*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, time.Hour, cfg.Session.CleanupInterval)
	assert.Equal(t, 60*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 1000, cfg.AI.PlanMaxTokens)
	assert.Equal(t, 2000, cfg.AI.ChatMaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 10, cfg.AI.RateLimit)
	assert.Equal(t, time.Minute, cfg.AI.RateWindow)
	assert.True(t, cfg.ConversationLog.Enabled)
	assert.Equal(t, 1000, cfg.ConversationLog.QueueSize)
	assert.True(t, cfg.IsDevelopment())
	assert.Nil(t, cfg.OriginPatterns())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://plan.example.com")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("AI_TEMPERATURE", "1.2")
	t.Setenv("AI_RATE_LIMIT", "3")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.InDelta(t, 1.2, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.AI.RateLimit)
	assert.False(t, cfg.ConversationLog.Enabled)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"plan.example.com"}, cfg.OriginPatterns())
}

func TestLoadUnparsableEnvKeepsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TTL", "a week")
	t.Setenv("AI_PLAN_MAX_TOKENS", "lots")
	t.Setenv("AI_TEMPERATURE", "warm")
	t.Setenv("CONVERSATION_LOG_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 168*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 1000, cfg.AI.PlanMaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
	assert.True(t, cfg.ConversationLog.Enabled)
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_ADMIN_PASSWORD", "s3cret-pass")
	path := writeYAML(t, `
port: "7000"
db_path: /var/lib/studyplan/app.db
session:
  ttl: 12h
  backend: memory
bootstrap_admin:
  username: root
  password: ${TEST_ADMIN_PASSWORD}
ai:
  chat_max_tokens: 500
  rate_window: 30s
`)
	t.Setenv("PORT", "7001")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Port, "environment wins over the file")
	assert.Equal(t, "/var/lib/studyplan/app.db", cfg.DBPath)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, time.Hour, cfg.Session.CleanupInterval, "unset keys keep defaults")
	assert.Equal(t, "root", cfg.BootstrapAdmin.Username)
	assert.Equal(t, "s3cret-pass", cfg.BootstrapAdmin.Password)
	assert.Equal(t, 500, cfg.AI.ChatMaxTokens)
	assert.Equal(t, 1000, cfg.AI.PlanMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.AI.RateWindow)
}

func TestLoadFromConfigFileEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", writeYAML(t, "port: \"6000\"\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.Port)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")

	_, err = LoadFile(writeYAML(t, "session: [not, a, map]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")

	_, err = LoadFile(writeYAML(t, "session:\n  backend: etcd\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "DB_PATH"},
		{"bcrypt too low", func(c *Config) { c.BcryptCost = 3 }, "BCRYPT_COST"},
		{"bcrypt too high", func(c *Config) { c.BcryptCost = 32 }, "BCRYPT_COST"},
		{"bcrypt in range", func(c *Config) { c.BcryptCost = 10 }, ""},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, "SESSION_TTL"},
		{"zero cleanup", func(c *Config) { c.Session.CleanupInterval = 0 }, "SESSION_CLEANUP_INTERVAL"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }, "SESSION_BACKEND"},
		{"redis without addr", func(c *Config) {
			c.Session.Backend = "redis"
			c.Redis.Addr = ""
		}, "REDIS_ADDR"},
		{"memory backend", func(c *Config) { c.Session.Backend = "memory" }, ""},
		{"half bootstrap admin", func(c *Config) { c.BootstrapAdmin.Username = "root" }, "BOOTSTRAP_ADMIN"},
		{"zero ai timeout", func(c *Config) { c.AI.RequestTimeout = 0 }, "AI_REQUEST_TIMEOUT"},
		{"zero plan tokens", func(c *Config) { c.AI.PlanMaxTokens = 0 }, "MAX_TOKENS"},
		{"zero temperature", func(c *Config) { c.AI.Temperature = 0 }, "AI_TEMPERATURE"},
		{"temperature too high", func(c *Config) { c.AI.Temperature = 2.5 }, "AI_TEMPERATURE"},
		{"zero rate limit", func(c *Config) { c.AI.RateLimit = 0 }, "AI_RATE_LIMIT"},
		{"log without dir", func(c *Config) { c.ConversationLog.Dir = "" }, "CONVERSATION_LOG_DIR"},
		{"disabled log without dir", func(c *Config) {
			c.ConversationLog.Enabled = false
			c.ConversationLog.Dir = ""
		}, ""},
		{"zero queue", func(c *Config) { c.ConversationLog.QueueSize = 0 }, "CONVERSATION_LOG_QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STUDYPLAN_TEST_VAR", "value")
	assert.Equal(t, "a: value", expandEnvVars("a: ${STUDYPLAN_TEST_VAR}"))
	assert.Equal(t, "a: ", expandEnvVars("a: ${STUDYPLAN_TEST_UNSET_VAR}"))
	assert.Equal(t, "a: $PLAIN", expandEnvVars("a: $PLAIN"))
}
