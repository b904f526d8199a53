// Package config provides application configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port            string                `yaml:"port"`
	FrontendURL     string                `yaml:"frontend_url"`
	DBPath          string                `yaml:"db_path"`
	StaticDir       string                `yaml:"static_dir"`
	BcryptCost      int                   `yaml:"bcrypt_cost"`
	Session         SessionConfig         `yaml:"session"`
	Redis           RedisConfig           `yaml:"redis"`
	BootstrapAdmin  BootstrapAdminConfig  `yaml:"bootstrap_admin"`
	AI              AIConfig              `yaml:"ai"`
	ConversationLog ConversationLogConfig `yaml:"conversation_log"`
}

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	Backend         string        `yaml:"backend"` // sqlite, memory or redis
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig is used when Session.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BootstrapAdminConfig names the admin created on first start.
type BootstrapAdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AIConfig tunes calls to the text-generation service. Empty model and
// endpoint leave the built-in defaults in place.
type AIConfig struct {
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PlanMaxTokens   int           `yaml:"plan_max_tokens"`
	ChatMaxTokens   int           `yaml:"chat_max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	DefaultModel    string        `yaml:"default_model"`
	DefaultEndpoint string        `yaml:"default_endpoint"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
}

// ConversationLogConfig controls NDJSON chat logging.
type ConversationLogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	QueueSize int    `yaml:"queue_size"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "./data/studyplan.db",
		Session: SessionConfig{
			TTL:             7 * 24 * time.Hour,
			Backend:         "sqlite",
			CleanupInterval: time.Hour,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		AI: AIConfig{
			RequestTimeout: 60 * time.Second,
			PlanMaxTokens:  1000,
			ChatMaxTokens:  2000,
			Temperature:    0.7,
			RateLimit:      10,
			RateWindow:     time.Minute,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   true,
			Dir:       "./data/logs/conversations",
			QueueSize: 1000,
		},
	}
}

// Load reads the YAML file named by CONFIG_FILE, if any, and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		// #nosec G304 -- path is operator supplied
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.BcryptCost = getEnvInt("BCRYPT_COST", c.BcryptCost)

	c.Session.TTL = getEnvDuration("SESSION_TTL", c.Session.TTL)
	c.Session.Backend = getEnv("SESSION_BACKEND", c.Session.Backend)
	c.Session.CleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", c.Session.CleanupInterval)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.BootstrapAdmin.Username = getEnv("BOOTSTRAP_ADMIN_USERNAME", c.BootstrapAdmin.Username)
	c.BootstrapAdmin.Password = getEnv("BOOTSTRAP_ADMIN_PASSWORD", c.BootstrapAdmin.Password)

	c.AI.RequestTimeout = getEnvDuration("AI_REQUEST_TIMEOUT", c.AI.RequestTimeout)
	c.AI.PlanMaxTokens = getEnvInt("AI_PLAN_MAX_TOKENS", c.AI.PlanMaxTokens)
	c.AI.ChatMaxTokens = getEnvInt("AI_CHAT_MAX_TOKENS", c.AI.ChatMaxTokens)
	c.AI.Temperature = getEnvFloat("AI_TEMPERATURE", c.AI.Temperature)
	c.AI.DefaultModel = getEnv("AI_DEFAULT_MODEL", c.AI.DefaultModel)
	c.AI.DefaultEndpoint = getEnv("AI_DEFAULT_ENDPOINT", c.AI.DefaultEndpoint)
	c.AI.RateLimit = getEnvInt("AI_RATE_LIMIT", c.AI.RateLimit)
	c.AI.RateWindow = getEnvDuration("AI_RATE_WINDOW", c.AI.RateWindow)

	c.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", c.ConversationLog.Enabled)
	c.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", c.ConversationLog.Dir)
	c.ConversationLog.QueueSize = getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", c.ConversationLog.QueueSize)
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_INTERVAL must be > 0")
	}
	switch c.Session.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be sqlite, memory or redis, got %q", c.Session.Backend)
	}
	if (c.BootstrapAdmin.Username == "") != (c.BootstrapAdmin.Password == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT must be > 0")
	}
	if c.AI.PlanMaxTokens <= 0 || c.AI.ChatMaxTokens <= 0 {
		return fmt.Errorf("AI_PLAN_MAX_TOKENS and AI_CHAT_MAX_TOKENS must be > 0")
	}
	if c.AI.Temperature <= 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be in (0, 2]")
	}
	if c.AI.RateLimit <= 0 || c.AI.RateWindow <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT and AI_RATE_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// OriginPatterns returns the hosts allowed to open browser sockets. It is
// empty, meaning same-origin only, when no frontend URL is configured.
func (c *Config) OriginPatterns() []string {
	if c.FrontendURL == "" {
		return nil
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
