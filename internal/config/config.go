// Package config loads the runtime configuration of the ramal binary from
// an optional YAML file with RAMAL_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath points to the config file when --config is not given.
const EnvConfigPath = "RAMAL_CONFIG"

// DefaultPath is read when present and nothing else is configured.
const DefaultPath = "ramal.yaml"

// Flow sources.
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the root runtime configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Flows      FlowsConfig      `yaml:"flows"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Redis      RedisConfig      `yaml:"redis"`
	Engine     EngineConfig     `yaml:"engine"`
	Handoff    HandoffConfig    `yaml:"handoff"`
	Encryption EncryptionConfig `yaml:"encryption"`
	NATS       NATSConfig       `yaml:"nats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// ChatRateLimit caps inbound messages per chat per second. Zero disables it.
	ChatRateLimit float64 `yaml:"chat_rate_limit"`
	ChatBurst     int     `yaml:"chat_burst"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FlowsConfig selects where flows are read from.
type FlowsConfig struct {
	Source    string        `yaml:"source"`
	Dir       string        `yaml:"dir"`
	SQLiteDSN string        `yaml:"sqlite_dsn"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// SessionsConfig selects where sessions live.
type SessionsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// RedisConfig configures the Redis session store and chat locks.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// EngineConfig tunes the flow engine.
type EngineConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// HandoffConfig tunes the handoff policy.
type HandoffConfig struct {
	MaxBotTurns int    `yaml:"max_bot_turns"`
	Message     string `yaml:"message"`
}

// EncryptionConfig enables at-rest encryption of sessions.
type EncryptionConfig struct {
	// Key is a base64 AES-256 key. Empty disables encryption.
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

// NATSConfig enables the NATS transport.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Queue         string `yaml:"queue"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Flows:    FlowsConfig{Source: SourceFile, Dir: "flows", CacheTTL: 30 * time.Second},
		Sessions: SessionsConfig{Backend: BackendMemory, Dir: ".ramal/sessions"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Handoff:  HandoffConfig{MaxBotTurns: 30},
	}
}

// Load reads path (or $RAMAL_CONFIG, or ./ramal.yaml when it exists) over
// the defaults, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides injects RAMAL_* settings on top of the file config.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	float := func(key string, dst *float64) error {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("RAMAL_SERVER_ADDR", &cfg.Server.Addr)
	str("RAMAL_LOG_LEVEL", &cfg.Log.Level)
	str("RAMAL_LOG_FORMAT", &cfg.Log.Format)
	str("RAMAL_FLOWS_SOURCE", &cfg.Flows.Source)
	str("RAMAL_FLOWS_DIR", &cfg.Flows.Dir)
	str("RAMAL_FLOWS_SQLITE_DSN", &cfg.Flows.SQLiteDSN)
	str("RAMAL_SESSIONS_BACKEND", &cfg.Sessions.Backend)
	str("RAMAL_SESSIONS_DIR", &cfg.Sessions.Dir)
	str("RAMAL_REDIS_ADDR", &cfg.Redis.Addr)
	str("RAMAL_REDIS_PASSWORD", &cfg.Redis.Password)
	str("RAMAL_REDIS_PREFIX", &cfg.Redis.Prefix)
	str("RAMAL_HANDOFF_MESSAGE", &cfg.Handoff.Message)
	str("RAMAL_ENCRYPTION_KEY", &cfg.Encryption.Key)
	str("RAMAL_NATS_URL", &cfg.NATS.URL)
	str("RAMAL_NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)
	str("RAMAL_NATS_QUEUE", &cfg.NATS.Queue)

	return errors.Join(
		float("RAMAL_SERVER_CHAT_RATE_LIMIT", &cfg.Server.ChatRateLimit),
		integer("RAMAL_SERVER_CHAT_BURST", &cfg.Server.ChatBurst),
		integer("RAMAL_REDIS_DB", &cfg.Redis.DB),
		integer("RAMAL_ENGINE_MAX_STEPS", &cfg.Engine.MaxSteps),
		integer("RAMAL_HANDOFF_MAX_BOT_TURNS", &cfg.Handoff.MaxBotTurns),
		duration("RAMAL_REDIS_TTL", &cfg.Redis.TTL),
		duration("RAMAL_FLOWS_CACHE_TTL", &cfg.Flows.CacheTTL),
	)
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	var errs []error
	switch c.Flows.Source {
	case SourceFile:
		if c.Flows.Dir == "" {
			errs = append(errs, errors.New("flows.dir is required for the file source"))
		}
	case SourceSQLite:
		if c.Flows.SQLiteDSN == "" {
			errs = append(errs, errors.New("flows.sqlite_dsn is required for the sqlite source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown flows.source %q", c.Flows.Source))
	}

	switch c.Sessions.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sessions.backend %q", c.Sessions.Backend))
	}

	if c.Server.ChatRateLimit < 0 {
		errs = append(errs, errors.New("server.chat_rate_limit must not be negative"))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps must not be negative"))
	}
	return errors.Join(errs...)
}
