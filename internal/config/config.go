package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the data access core configuration
type Config struct {
	Primary   BackendConfig   `mapstructure:"primary"`
	Replicas  []BackendConfig `mapstructure:"replicas"`
	Shards    []ShardConfig   `mapstructure:"shards"`
	Analytics BackendConfig   `mapstructure:"analytics"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retention RetentionConfig `mapstructure:"retention"`
	Health    HealthConfig    `mapstructure:"health"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BackendConfig represents connection parameters for one relational
// backend instance. Immutable once loaded.
type BackendConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	MaxConnections int           `mapstructure:"max_connections"`
	MinConnections int           `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// ShardConfig represents one horizontal shard: its backend parameters and
// the key range it owns within [0, KeyspaceSize).
type ShardConfig struct {
	ID      int           `mapstructure:"id"`
	MinKey  uint32        `mapstructure:"min_key"`
	MaxKey  uint32        `mapstructure:"max_key"`
	Backend BackendConfig `mapstructure:"backend"`
}

// CacheConfig represents the key-value cache (Redis) configuration
type CacheConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	EntityTTL      time.Duration `mapstructure:"entity_ttl"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// RetentionConfig represents the background retention sweep. Entities
// older than MaxAge are purged every Interval, unless held back by an
// active legal hold.
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

// HealthConfig represents the health endpoint configuration
type HealthConfig struct {
	Port         int           `mapstructure:"port"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration. Range coverage of the shard set is
// checked by the shard router at construction; only per-backend basics are
// checked here.
func (c *Config) Validate() error {
	if err := c.Primary.validate("primary"); err != nil {
		return err
	}
	for i := range c.Replicas {
		if err := c.Replicas[i].validate(fmt.Sprintf("replicas[%d]", i)); err != nil {
			return err
		}
	}
	if len(c.Shards) == 0 {
		return errors.New("at least one shard is required")
	}
	for i := range c.Shards {
		if err := c.Shards[i].Backend.validate(fmt.Sprintf("shards[%d].backend", i)); err != nil {
			return err
		}
	}
	if err := c.Analytics.validate("analytics"); err != nil {
		return err
	}
	if c.Cache.Host == "" {
		return errors.New("cache.host is required")
	}
	if c.Cache.EntityTTL <= 0 {
		c.Cache.EntityTTL = 5 * time.Minute
	}
	if c.Retention.Enabled {
		if c.Retention.MaxAge <= 0 {
			return errors.New("retention.max_age must be positive when retention is enabled")
		}
		if c.Retention.Interval <= 0 {
			c.Retention.Interval = 24 * time.Hour
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

func (b *BackendConfig) validate(name string) error {
	if b.Host == "" {
		return fmt.Errorf("%s.host is required", name)
	}
	if b.Port <= 0 || b.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535", name)
	}
	if b.Database == "" {
		return fmt.Errorf("%s.database is required", name)
	}
	if b.User == "" {
		return fmt.Errorf("%s.user is required", name)
	}
	if b.MaxConnections <= 0 {
		b.MaxConnections = 10
	}
	if b.MinConnections < 0 {
		b.MinConnections = 0
	}
	if b.IdleTimeout <= 0 {
		b.IdleTimeout = 30 * time.Minute
	}
	if b.ConnectTimeout <= 0 {
		b.ConnectTimeout = 5 * time.Second
	}
	if b.QueryTimeout <= 0 {
		b.QueryTimeout = 10 * time.Second
	}
	return nil
}

// DefaultConfig returns default configuration values. Primary pools are
// sized larger than shard pools, reflecting differing load.
func DefaultConfig() *Config {
	return &Config{
		Primary: BackendConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "nexus",
			User:           "nexus",
			MaxConnections: 50,
			MinConnections: 10,
			ConnectTimeout: 5 * time.Second,
			QueryTimeout:   10 * time.Second,
		},
		Analytics: BackendConfig{
			Host:           "localhost",
			Port:           9440,
			Database:       "nexus_analytics",
			User:           "nexus",
			MaxConnections: 10,
			MinConnections: 2,
			ConnectTimeout: 5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			Host:           "localhost",
			Port:           6379,
			DB:             0,
			PoolSize:       100,
			MinIdleConns:   10,
			DialTimeout:    5 * time.Second,
			EntityTTL:      5 * time.Minute,
			CommandTimeout: 2 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			MaxAge:   90 * 24 * time.Hour,
			Interval: 24 * time.Hour,
		},
		Health: HealthConfig{
			Port:         8080,
			ProbeTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
