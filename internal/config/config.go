package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
)

type Config struct {
	Server         ServerConfig   `json:"server" toml:"server"`
	Redis          RedisConfig    `json:"redis" toml:"redis"`
	Database       DatabaseConfig `json:"database" toml:"database"`
	Upstream       UpstreamConfig `json:"upstream" toml:"upstream"`
	NATS           NATSConfig     `json:"nats" toml:"nats"`
	Auth           AuthConfig     `json:"auth" toml:"auth"`
	Log            LogConfig      `json:"log" toml:"log"`
	Limits         LimitsConfig   `json:"limits" toml:"limits"`
	RateLimitTiers []TierConfig   `json:"rate_limit_tiers" toml:"rate_limit_tiers"`
}

type ServerConfig struct {
	Port         string   `json:"port" toml:"port"`                   // RINGHUB_PORT
	Environment  string   `json:"environment" toml:"environment"`     // "production" switches to JSON logs
	ReadTimeout  Duration `json:"read_timeout" toml:"read_timeout"`   // default 10s
	WriteTimeout Duration `json:"write_timeout" toml:"write_timeout"` // default 30s
}

type RedisConfig struct {
	Addr     string `json:"addr" toml:"addr"` // RINGHUB_REDIS_ADDR, wins over host/port
	Host     string `json:"host" toml:"host"`
	Port     int    `json:"port" toml:"port"`
	Password string `json:"password" toml:"password"` // RINGHUB_REDIS_PASSWORD
	DB       int    `json:"db" toml:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	if r.Addr != "" {
		return r.Addr
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type DatabaseConfig struct {
	DSN string `json:"dsn" toml:"dsn"` // RINGHUB_DATABASE_DSN
}

type UpstreamConfig struct {
	Target      string   `json:"target" toml:"target"`             // RINGHUB_UPSTREAM
	MaxFailures int      `json:"max_failures" toml:"max_failures"` // default 5
	Timeout     Duration `json:"timeout" toml:"timeout"`           // breaker open period, default 30s
}

type NATSConfig struct {
	URL string `json:"url" toml:"url"` // RINGHUB_NATS_URL (empty = no events)
}

type AuthConfig struct {
	JWTSecret      string `json:"jwt_secret" toml:"jwt_secret"` // RINGHUB_JWT_SECRET
	JWTExpiryHours int    `json:"jwt_expiry_hours" toml:"jwt_expiry_hours"`
}

type LogConfig struct {
	Level string `json:"level" toml:"level"` // RINGHUB_LOG_LEVEL
}

type LimitsConfig struct {
	CounterBackend string   `json:"counter_backend" toml:"counter_backend"` // redis, postgres or memory
	Retention      Duration `json:"retention" toml:"retention"`
	SweepInterval  Duration `json:"sweep_interval" toml:"sweep_interval"`
	StoreTimeout   Duration `json:"store_timeout" toml:"store_timeout"`
	ActorCacheSize int      `json:"actor_cache_size" toml:"actor_cache_size"`
	ActorCacheTTL  Duration `json:"actor_cache_ttl" toml:"actor_cache_ttl"`
}

// TierConfig overrides the fork caps of one tier.
type TierConfig struct {
	Name   string `json:"name" toml:"name"`
	Hourly int    `json:"hourly" toml:"hourly"`
	Daily  int    `json:"daily" toml:"daily"`
	Weekly int    `json:"weekly" toml:"weekly"`
}

// Duration reads "90s", "1h30m" and the like from JSON strings and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration that runs locally against default ports.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Environment:  "development",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Upstream: UpstreamConfig{
			MaxFailures: 5,
			Timeout:     Duration(30 * time.Second),
		},
		Auth: AuthConfig{
			JWTExpiryHours: 24,
		},
		Log: LogConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			CounterBackend: ratelimit.BackendRedis,
			Retention:      Duration(7 * 24 * time.Hour),
			SweepInterval:  Duration(time.Hour),
			StoreTimeout:   Duration(2 * time.Second),
			ActorCacheSize: 10000,
			ActorCacheTTL:  Duration(time.Minute),
		},
	}
}

// Load reads path (JSON, or TOML by extension) over the defaults, then
// applies environment overrides. An empty path uses defaults and env only.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(string(file), config); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(file, config); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envOrDefault("RINGHUB_PORT", c.Server.Port)
	c.Database.DSN = envOrDefault("RINGHUB_DATABASE_DSN", c.Database.DSN)
	c.Redis.Addr = envOrDefault("RINGHUB_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOrDefault("RINGHUB_REDIS_PASSWORD", c.Redis.Password)
	c.NATS.URL = envOrDefault("RINGHUB_NATS_URL", c.NATS.URL)
	c.Auth.JWTSecret = envOrDefault("RINGHUB_JWT_SECRET", c.Auth.JWTSecret)
	c.Log.Level = envOrDefault("RINGHUB_LOG_LEVEL", c.Log.Level)
	c.Upstream.Target = envOrDefault("RINGHUB_UPSTREAM", c.Upstream.Target)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks the settings every entry point depends on.
func (c *Config) Validate() error {
	switch c.Limits.CounterBackend {
	case ratelimit.BackendRedis, ratelimit.BackendPostgres, ratelimit.BackendMemory:
	default:
		return fmt.Errorf("limits.counter_backend: unknown backend %q", c.Limits.CounterBackend)
	}
	if c.Limits.Retention.Std() < ratelimit.WeekWindow {
		return fmt.Errorf("limits.retention must cover the weekly window, got %s", c.Limits.Retention.Std())
	}
	if c.Limits.SweepInterval <= 0 {
		return errors.New("limits.sweep_interval must be positive")
	}
	if c.Limits.StoreTimeout < 0 {
		return errors.New("limits.store_timeout must not be negative")
	}
	if c.Limits.ActorCacheSize < 0 {
		return errors.New("limits.actor_cache_size must not be negative")
	}
	if c.Upstream.MaxFailures <= 0 {
		return errors.New("upstream.max_failures must be positive")
	}

	if _, err := c.ForkLimits(); err != nil {
		return fmt.Errorf("rate_limit_tiers: %w", err)
	}

	return nil
}

// ValidateServe checks the settings only the gateway server needs.
func (c *Config) ValidateServe() error {
	if c.Upstream.Target == "" {
		return errors.New("upstream.target is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	return nil
}

// ForkLimits overlays the configured tiers onto the default fork caps.
// Hourly caps above the global maximum are clamped.
func (c *Config) ForkLimits() (ratelimit.TierLimits, error) {
	limits := ratelimit.DefaultForkLimits()

	for _, tc := range c.RateLimitTiers {
		tier, ok := models.ParseTier(tc.Name)
		if !ok || !tier.IsStored() {
			return nil, fmt.Errorf("unknown tier %q", tc.Name)
		}
		limits[tier] = ratelimit.WindowCaps{
			Hourly: tc.Hourly,
			Daily:  tc.Daily,
			Weekly: tc.Weekly,
		}
	}

	return limits.Normalize()
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
