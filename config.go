package uniq

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends selectable from the config file.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents the top-level YAML configuration file.
type Config struct {
	Redis    RedisYAML     `yaml:"redis"`
	Postgres PostgresYAML  `yaml:"postgres"`
	App      AppConfig     `yaml:"app"`
	Workers  WorkersYAML   `yaml:"workers"`
	JobTypes []JobTypeYAML `yaml:"job_types"`
}

// RedisYAML holds Redis connection settings from YAML.
type RedisYAML struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresYAML holds PostgreSQL connection settings from YAML.
type PostgresYAML struct {
	DSN string `yaml:"dsn"`
}

// AppConfig holds application-level settings from YAML.
type AppConfig struct {
	Backend     string `yaml:"backend"` // redis (default) or postgres
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// WorkersYAML holds worker registry settings from YAML.
type WorkersYAML struct {
	HeartbeatInterval int `yaml:"heartbeat_interval"` // seconds
	StaleAfter        int `yaml:"stale_after"`        // seconds
	ReapInterval      int `yaml:"reap_interval"`      // seconds, 0 = one-shot
}

// JobTypeYAML declares a job type and its lock TTL.
type JobTypeYAML struct {
	Name string `yaml:"name"`
	// LockTTL is in seconds. Absent means DefaultLockTTL, 0 disables expiry.
	LockTTL *int `yaml:"lock_ttl"`
}

// LoadConfig parses YAML bytes and validates the resulting configuration.
func LoadConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML file and returns a validated Config.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfig(data)
}

// validate performs structural validation of the configuration.
func (c *Config) validate() error {
	// Redis
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}

	// App
	switch c.App.Backend {
	case "", BackendRedis:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when app.backend is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("app.backend: must be %s or %s; got %q", BackendRedis, BackendPostgres, c.App.Backend)
	}
	if c.App.LogLevel != "" {
		switch strings.ToLower(c.App.LogLevel) {
		case "debug", "info", "warn", "error":
			// ok
		default:
			return fmt.Errorf("app.log_level: must be one of debug, info, warn, error; got %q", c.App.LogLevel)
		}
	}

	// Workers
	if c.Workers.HeartbeatInterval < 0 {
		return fmt.Errorf("workers.heartbeat_interval must be >= 0")
	}
	if c.Workers.StaleAfter < 0 {
		return fmt.Errorf("workers.stale_after must be >= 0")
	}
	if c.Workers.ReapInterval < 0 {
		return fmt.Errorf("workers.reap_interval must be >= 0")
	}
	if hb, sa := c.HeartbeatInterval(), c.StaleAfter(); sa <= hb {
		return fmt.Errorf("workers.stale_after (%s) must be greater than workers.heartbeat_interval (%s)", sa, hb)
	}

	// Job types
	seen := make(map[string]bool, len(c.JobTypes))
	for i, jt := range c.JobTypes {
		if jt.Name == "" {
			return fmt.Errorf("job_types[%d].name must not be empty", i)
		}
		if seen[jt.Name] {
			return fmt.Errorf("job_types[%d].name %q: duplicate job type", i, jt.Name)
		}
		seen[jt.Name] = true
		if jt.LockTTL != nil && *jt.LockTTL < 0 {
			return fmt.Errorf("job_types[%d] %q: lock_ttl must be >= 0", i, jt.Name)
		}
	}

	return nil
}

// HeartbeatInterval returns the configured heartbeat interval or the default.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.Workers.HeartbeatInterval > 0 {
		return time.Duration(c.Workers.HeartbeatInterval) * time.Second
	}
	return defaultHeartbeatInterval
}

// StaleAfter returns the configured worker liveness window or the default.
func (c *Config) StaleAfter() time.Duration {
	if c.Workers.StaleAfter > 0 {
		return time.Duration(c.Workers.StaleAfter) * time.Second
	}
	return defaultWorkerStaleAfter
}

// ReapInterval returns the reaper interval; zero means sweep once.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Workers.ReapInterval) * time.Second
}

// Registry builds a job type registry from job_types.
func (c *Config) Registry() (*Registry, error) {
	reg := NewRegistry()
	for _, jt := range c.JobTypes {
		var opts []TypeOption
		if jt.LockTTL != nil {
			opts = append(opts, WithLockTTL(time.Duration(*jt.LockTTL)*time.Second))
		}
		if _, err := reg.Register(jt.Name, opts...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// RedisOptions converts the redis section into RedisStore options.
func (c *Config) RedisOptions() []RedisOption {
	var opts []RedisOption
	if c.Redis.Addr != "" {
		opts = append(opts, WithRedisAddr(c.Redis.Addr))
	}
	if c.Redis.Password != "" {
		opts = append(opts, WithRedisPassword(c.Redis.Password))
	}
	if c.Redis.DB != 0 {
		opts = append(opts, WithRedisDB(c.Redis.DB))
	}
	if c.Redis.Prefix != "" {
		opts = append(opts, WithPrefix(c.Redis.Prefix))
	}
	return opts
}

// Logger returns a logger for app.log_level.
func (c *Config) Logger() *slog.Logger {
	return NewLoggerFromLevel(c.App.LogLevel)
}
