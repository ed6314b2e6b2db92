// Package config provides configuration loading and validation for the simulator.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration constants.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "2M"

	DefaultMongoDBTimeout     = 10 * time.Second
	DefaultMongoDBMaxPoolSize = 100

	DefaultRedisPoolSize = 10

	DefaultDatasetPath     = "users.json"
	DefaultRedisKey        = "dwidmapper:users"
	DefaultMongoCollection = "users"
	DefaultMetricsPath     = "/metrics"
)

// Dataset sources.
const (
	SourceFile    = "file"
	SourceMongoDB = "mongodb"
	SourceRedis   = "redis"
)

// Config holds the complete application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	Redis     RedisConfig     `yaml:"redis"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	// Name is the application name used in logs.
	Name string `yaml:"name" env:"APP_NAME"`
}

// ServerConfig holds HTTP server configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	BodyLimit       string        `yaml:"body_limit" env:"SERVER_BODY_LIMIT"`
}

// Address returns the full server address (host:port).
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DatasetConfig selects where the user directory is loaded from and how
// unknown usernames are mapped onto it.
//
//nolint:golines // Struct tags require longer lines for readability
type DatasetConfig struct {
	Source          string `yaml:"source" env:"DATASET_SOURCE"` // file | mongodb | redis
	Path            string `yaml:"path" env:"DATASET_PATH"`
	KeyOrder        string `yaml:"key_order" env:"DATASET_KEY_ORDER"`         // document | ecmascript
	FallbackMode    string `yaml:"fallback_mode" env:"DATASET_FALLBACK_MODE"` // exact | legacy
	RedisKey        string `yaml:"redis_key" env:"DATASET_REDIS_KEY"`
	MongoCollection string `yaml:"mongo_collection" env:"DATASET_MONGO_COLLECTION"`
}

// MongoDBConfig holds MongoDB connection configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type MongoDBConfig struct {
	URI         string        `yaml:"uri" env:"MONGODB_URI"`
	Database    string        `yaml:"database" env:"MONGODB_DATABASE"`
	Timeout     time.Duration `yaml:"timeout" env:"MONGODB_TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MONGODB_MAX_POOL_SIZE"`
}

// RedisConfig holds Redis connection configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

// SimulatorConfig holds request simulator configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type SimulatorConfig struct {
	// TemplatesDir overrides the embedded templates when set.
	TemplatesDir string `yaml:"templates_dir" env:"SIMULATOR_TEMPLATES_DIR"`

	// RoutePrefix is prepended to every simulated route.
	RoutePrefix string `yaml:"route_prefix" env:"SIMULATOR_ROUTE_PREFIX"`
}

// LogConfig holds logging configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json | text
}

// MetricsConfig holds Prometheus endpoint configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// Configuration errors.
var (
	ErrConfigNotFound        = errors.New("configuration file not found")
	ErrConfigInvalid         = errors.New("invalid configuration")
	ErrInvalidDuration       = errors.New("invalid duration format")
	ErrInvalidLogLevel       = errors.New("invalid log level: must be debug, info, warn, or error")
	ErrInvalidLogFormat      = errors.New("invalid log format: must be json or text")
	ErrInvalidDatasetSource  = errors.New("invalid dataset source: must be file, mongodb, or redis")
	ErrInvalidKeyOrder       = errors.New("invalid dataset key order: must be document or ecmascript")
	ErrInvalidFallbackMode   = errors.New("invalid fallback mode: must be exact or legacy")
	ErrInvalidRoutePrefix    = errors.New("invalid route prefix: must be empty or start with /")
	ErrInvalidMetricsPath    = errors.New("invalid metrics path: must start with /")
	ErrUnsupportedFieldKind  = errors.New("unsupported field type")
	ErrInvalidEnvironmentVal = errors.New("invalid environment value")
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "dwidmapper",
		},
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			BodyLimit:       DefaultBodyLimit,
		},
		Dataset: DatasetConfig{
			Source:          SourceFile,
			Path:            DefaultDatasetPath,
			KeyOrder:        "document",
			FallbackMode:    "exact",
			RedisKey:        DefaultRedisKey,
			MongoCollection: DefaultMongoCollection,
		},
		MongoDB: MongoDBConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "dwidmapper",
			Timeout:     DefaultMongoDBTimeout,
			MaxPoolSize: DefaultMongoDBMaxPoolSize,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: DefaultRedisPoolSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []error

	errs = c.validateServer(errs)
	errs = c.validateDataset(errs)
	errs = c.validateSimulator(errs)
	errs = c.validateLog(errs)
	errs = c.validateMetrics(errs)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}

	return nil
}

func (c *Config) validateServer(errs []error) []error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	return errs
}

// validateDataset checks the dataset section and the connection section of
// the selected backend. Unused backends are not validated.
func (c *Config) validateDataset(errs []error) []error {
	switch strings.ToLower(c.Dataset.Source) {
	case SourceFile:
		if c.Dataset.Path == "" {
			errs = append(errs, errors.New("dataset.path is required for the file source"))
		}
	case SourceMongoDB:
		errs = c.validateMongoDB(errs)
		if c.Dataset.MongoCollection == "" {
			errs = append(errs, errors.New("dataset.mongo_collection is required for the mongodb source"))
		}
	case SourceRedis:
		errs = c.validateRedis(errs)
		if c.Dataset.RedisKey == "" {
			errs = append(errs, errors.New("dataset.redis_key is required for the redis source"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidDatasetSource, c.Dataset.Source))
	}

	validKeyOrders := map[string]bool{"": true, "document": true, "ecmascript": true}
	if !validKeyOrders[strings.ToLower(c.Dataset.KeyOrder)] {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidKeyOrder, c.Dataset.KeyOrder))
	}
	validModes := map[string]bool{"": true, "exact": true, "legacy": true}
	if !validModes[strings.ToLower(c.Dataset.FallbackMode)] {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidFallbackMode, c.Dataset.FallbackMode))
	}
	return errs
}

func (c *Config) validateMongoDB(errs []error) []error {
	if c.MongoDB.URI == "" {
		errs = append(errs, errors.New("mongodb.uri is required"))
	}
	if c.MongoDB.Database == "" {
		errs = append(errs, errors.New("mongodb.database is required"))
	}
	return errs
}

func (c *Config) validateRedis(errs []error) []error {
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	return errs
}

func (c *Config) validateSimulator(errs []error) []error {
	if p := c.Simulator.RoutePrefix; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidRoutePrefix, p))
	}
	return errs
}

func (c *Config) validateLog(errs []error) []error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ErrInvalidLogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ErrInvalidLogFormat)
	}
	return errs
}

func (c *Config) validateMetrics(errs []error) []error {
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidMetricsPath, c.Metrics.Path))
	}
	return errs
}

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFromPath("")
}

// LoadFromPath loads configuration from a specific file path.
// If path is empty, it tries to find the config file in standard locations.
func LoadFromPath(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Loader handles configuration loading from files and environment variables.
type Loader struct {
	configPaths []string
	lookupEnv   func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		configPaths: []string{
			"configs/config.yaml",
			"config.yaml",
			"/etc/dwidmapper/config.yaml",
		},
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPaths sets custom config paths to search.
func (l *Loader) WithConfigPaths(paths []string) *Loader {
	l.configPaths = paths
	return l
}

// WithLookupEnv replaces the environment lookup, mainly for tests.
func (l *Loader) WithLookupEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load resolves the configuration: defaults, then the YAML file, then
// environment variables, then validation.
//
// An explicit path or CONFIG_PATH must exist; files found by searching the
// standard locations are optional.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if envPath, ok := l.lookupEnv("CONFIG_PATH"); ok && envPath != "" {
			path = envPath
			explicit = true
		}
	}
	if !explicit {
		for _, p := range l.configPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if err := l.loadFromFile(cfg, path); err != nil && explicit {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := l.loadEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
		return fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	return nil
}

// loadEnvToStruct walks nested structs and applies every set env tag.
func (l *Loader) loadEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.loadEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := l.lookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

//nolint:exhaustive // Config only uses these kinds
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeFor[time.Duration]() {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidDuration, value)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: integer %q", ErrInvalidEnvironmentVal, value)
		}
		field.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: unsigned integer %q", ErrInvalidEnvironmentVal, value)
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: boolean %q", ErrInvalidEnvironmentVal, value)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFieldKind, field.Kind())
	}

	return nil
}

// IsDevelopment returns true if the log level indicates a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Log.Level) == "debug"
}
