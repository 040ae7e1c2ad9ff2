package config

import (
	"fmt"
	"os"
	"time"

	"MarketBrief/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
	BackendMemory     = "memory"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"marketbrief.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Curation struct {
		DefaultLimit           int           `yaml:"default_limit" default:"25"`
		MaxLimit               int           `yaml:"max_limit" default:"100"`
		FreshnessWindowMinutes int           `yaml:"freshness_window_minutes" default:"120"`
		Timeout                time.Duration `yaml:"timeout" default:"10s"`
		CacheTTL               time.Duration `yaml:"cache_ttl" default:"60s"`
	} `yaml:"curation"`
	Store struct {
		Backend string `yaml:"backend" default:"sqlite"`
		Table   string `yaml:"table" default:"assets"`
		SQLite  struct {
			Path string `yaml:"path" default:"data/assets.db"`
		} `yaml:"sqlite"`
		Postgres struct {
			DSN      string `yaml:"dsn"`
			MaxConns int32  `yaml:"max_conns" default:"10"`
		} `yaml:"postgres"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketbrief"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		PoolSize  int           `yaml:"pool_size" default:"10"`
		Prefix    string        `yaml:"prefix" default:"marketbrief"`
		Layered   bool          `yaml:"layered" default:"true"`
		MemoryTTL time.Duration `yaml:"memory_ttl" default:"15s"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"4"`
		QueueSize  int           `yaml:"queue_size" default:"100"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		SnapshotTopic string   `yaml:"snapshot_topic" default:"marketbrief.snapshots"`
		RefreshTopic  string   `yaml:"refresh_topic" default:"marketbrief.assets.refreshed"`
		RequiredAcks  int      `yaml:"required_acks" default:"1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"marketbrief"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Scheduler struct {
		Enabled     bool          `yaml:"enabled"`
		Spec        string        `yaml:"spec" default:"0 */5 * * * *"`
		MinInterval time.Duration `yaml:"min_interval" default:"1m"`
		Targets     []Target      `yaml:"targets"`
	} `yaml:"scheduler"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     int     `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
	} `yaml:"rate_limit"`
}

// Target is one scheduled (style, preference) snapshot.
type Target struct {
	Style      string `yaml:"style"`
	Preference string `yaml:"preference" default:"both"`
	Limit      int    `yaml:"limit"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range c.Scheduler.Targets {
		if err := defaults.Set(&c.Scheduler.Targets[i]); err != nil {
			return nil, fmt.Errorf("apply target defaults: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.IntOr(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Store.Postgres.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = util.IntOr(v, c.Redis.Port)
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_SNAPSHOT_TOPIC"); v != "" {
		c.Kafka.SnapshotTopic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Store.Backend {
	case BackendClickHouse, BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("store.backend must be one of clickhouse, postgres, sqlite, memory, got '%s'", c.Store.Backend)
	}
	if c.Store.Table == "" {
		return fmt.Errorf("store.table is required")
	}
	if c.Store.Backend == BackendPostgres && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLite.Path == "" {
		return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
	}
	if c.Curation.DefaultLimit < 1 {
		return fmt.Errorf("curation.default_limit must be positive")
	}
	if c.Curation.MaxLimit > 0 && c.Curation.DefaultLimit > c.Curation.MaxLimit {
		return fmt.Errorf("curation.default_limit %d exceeds curation.max_limit %d", c.Curation.DefaultLimit, c.Curation.MaxLimit)
	}
	if c.Curation.FreshnessWindowMinutes < 1 {
		return fmt.Errorf("curation.freshness_window_minutes must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	if c.Log.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.collector requires kafka.enabled")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.Spec == "" {
			return fmt.Errorf("scheduler.spec is required")
		}
		if len(c.Scheduler.Targets) == 0 {
			return fmt.Errorf("scheduler.targets cannot be empty")
		}
		for i, t := range c.Scheduler.Targets {
			if t.Style == "" {
				return fmt.Errorf("scheduler.targets[%d].style is required", i)
			}
			if t.Limit < 0 {
				return fmt.Errorf("scheduler.targets[%d].limit cannot be negative", i)
			}
		}
	}
	return nil
}
