// Package config loads the searchd configuration: defaults, then an
// optional YAML file, then FS_* environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Store kinds accepted by IndexerConfig.Store.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Schema   SchemaConfig   `yaml:"schema"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of requests one client may make per second;
	// zero disables limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Ingestion over Kafka is
// off unless Enabled is set.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	// MaxRetries is how many times one message is handled before the
	// consumer gives up and stops.
	MaxRetries int         `yaml:"maxRetries"`
	Topics     KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where committed segments live and when the
// ingestion pipeline commits.
type IndexerConfig struct {
	DataDir         string        `yaml:"dataDir"`
	Store           string        `yaml:"store"`
	CommitInterval  time.Duration `yaml:"commitInterval"`
	MaxPendingDocs  int           `yaml:"maxPendingDocs"`
	MaxPendingBytes int64         `yaml:"maxPendingBytes"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	MaxResults   int           `yaml:"maxResults"`
	DefaultLimit int           `yaml:"defaultLimit"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SchemaConfig points at the YAML field list the index is built from.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "facetsearch",
			User:            "facetsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "facetsearch-indexer",
			MaxRetries:    10,
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:         "./data",
			Store:           StoreFile,
			CommitInterval:  5 * time.Second,
			MaxPendingDocs:  10000,
			MaxPendingBytes: 64 << 20,
		},
		Search: SearchConfig{
			MaxResults:   1000,
			DefaultLimit: 10,
			Timeout:      5 * time.Second,
		},
		Schema: SchemaConfig{
			Path: "configs/schema.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Indexer.Store {
	case StoreMemory, StorePostgres:
	case StoreFile, StoreBolt:
		if c.Indexer.DataDir == "" {
			result = multierror.Append(result, fmt.Errorf("indexer.dataDir is required for the %s store", c.Indexer.Store))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("indexer.store %q is not one of memory, file, bolt, postgres", c.Indexer.Store))
	}
	if c.Server.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("server.rateLimit must not be negative"))
	}
	if c.Indexer.CommitInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("indexer.commitInterval must not be negative"))
	}
	if c.Indexer.MaxPendingDocs < 0 {
		result = multierror.Append(result, fmt.Errorf("indexer.maxPendingDocs must not be negative"))
	}
	if c.Schema.Path == "" {
		result = multierror.Append(result, fmt.Errorf("schema.path is required"))
	}
	if c.Search.DefaultLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("search.defaultLimit must be positive"))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		result = multierror.Append(result, fmt.Errorf("search.maxResults %d is below defaultLimit %d", c.Search.MaxResults, c.Search.DefaultLimit))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		result = multierror.Append(result, fmt.Errorf("kafka.brokers is required when kafka is enabled"))
	}
	if c.Kafka.Enabled && c.Kafka.MaxRetries < 1 {
		result = multierror.Append(result, fmt.Errorf("kafka.maxRetries must be at least 1"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("redis.addr is required when redis is enabled"))
	}
	return result.ErrorOrNil()
}

// envPrefix is prepended to every override variable.
const envPrefix = "FS_"

// envOverride binds one FS_* variable to a config field.
type envOverride struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

func list(field func(*Config) *[]string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*field(cfg) = out
		return nil
	}
}

var envOverrides = []envOverride{
	{"SERVER_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"SERVER_RATE_LIMIT", integer(func(c *Config) *int { return &c.Server.RateLimit })},
	{"SERVER_CORS_ORIGINS", list(func(c *Config) *[]string { return &c.Server.CORSOrigins })},
	{"POSTGRES_HOST", str(func(c *Config) *string { return &c.Postgres.Host })},
	{"POSTGRES_PORT", integer(func(c *Config) *int { return &c.Postgres.Port })},
	{"POSTGRES_DATABASE", str(func(c *Config) *string { return &c.Postgres.Database })},
	{"POSTGRES_USER", str(func(c *Config) *string { return &c.Postgres.User })},
	{"POSTGRES_PASSWORD", str(func(c *Config) *string { return &c.Postgres.Password })},
	{"POSTGRES_SSLMODE", str(func(c *Config) *string { return &c.Postgres.SSLMode })},
	{"KAFKA_ENABLED", boolean(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"KAFKA_BROKERS", list(func(c *Config) *[]string { return &c.Kafka.Brokers })},
	{"KAFKA_MAX_RETRIES", integer(func(c *Config) *int { return &c.Kafka.MaxRetries })},
	{"REDIS_ENABLED", boolean(func(c *Config) *bool { return &c.Redis.Enabled })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"REDIS_CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.Redis.CacheTTL })},
	{"INDEXER_DATA_DIR", str(func(c *Config) *string { return &c.Indexer.DataDir })},
	{"INDEXER_STORE", str(func(c *Config) *string { return &c.Indexer.Store })},
	{"INDEXER_COMMIT_INTERVAL", duration(func(c *Config) *time.Duration { return &c.Indexer.CommitInterval })},
	{"INDEXER_MAX_PENDING_DOCS", integer(func(c *Config) *int { return &c.Indexer.MaxPendingDocs })},
	{"SEARCH_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Search.Timeout })},
	{"SCHEMA_PATH", str(func(c *Config) *string { return &c.Schema.Path })},
	{"LOGGING_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOGGING_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"METRICS_ENABLED", boolean(func(c *Config) *bool { return &c.Metrics.Enabled })},
}

// applyEnvOverrides applies every set FS_* variable and reports the ones
// that could not be parsed.
func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(envPrefix + o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.set(cfg, v); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s%s=%q: %w", envPrefix, o.name, v, err))
		}
	}
	return result.ErrorOrNil()
}
