// Package config loads runtime configuration from the environment with an
// optional .env file for local overrides.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultDatabasePath         = "vendorlane.db"
	defaultCurrency             = "EUR"
	defaultQuoteValidDays       = 14
	defaultNotifyMaxRetries     = 3
	defaultRedeliverInterval    = time.Minute
	defaultRedeliverBatchSize   = 50
	defaultNotificationTopicEnv = ""
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Commerce      CommerceConfig
	Notifications NotificationConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig stores SQLite parameters.
type DatabaseConfig struct {
	Path string
}

// CommerceConfig controls pricing and quoting behaviour.
type CommerceConfig struct {
	DefaultCurrency string
	QuoteValidDays  int
}

// NotificationConfig controls the dispatcher and its redelivery loop. The
// realtime channel stays disabled unless both ProjectID and TopicID are set.
type NotificationConfig struct {
	ProjectID          string
	TopicID            string
	MaxRetries         int
	RedeliverInterval  time.Duration
	RedeliverBatchSize int
}

// ValidationError reports invalid configuration fields.
type ValidationError struct {
	Invalid []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid fields: %s", strings.Join(e.Invalid, ", "))
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration with precedence: explicit env map, then system
// environment, then the .env file, then defaults.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			Path: stringWithDefault(lookup, "API_DATABASE_PATH", defaultDatabasePath),
		},
		Commerce: CommerceConfig{
			DefaultCurrency: strings.ToUpper(stringWithDefault(lookup, "API_COMMERCE_CURRENCY", defaultCurrency)),
			QuoteValidDays:  intWithDefault(lookup, "API_COMMERCE_QUOTE_VALID_DAYS", defaultQuoteValidDays),
		},
		Notifications: NotificationConfig{
			ProjectID:          stringWithDefault(lookup, "API_NOTIFY_PROJECT_ID", defaultNotificationTopicEnv),
			TopicID:            stringWithDefault(lookup, "API_NOTIFY_TOPIC_ID", defaultNotificationTopicEnv),
			MaxRetries:         intWithDefault(lookup, "API_NOTIFY_MAX_RETRIES", defaultNotifyMaxRetries),
			RedeliverInterval:  durationWithDefault(lookup, "API_NOTIFY_REDELIVER_INTERVAL", defaultRedeliverInterval),
			RedeliverBatchSize: intWithDefault(lookup, "API_NOTIFY_REDELIVER_BATCH", defaultRedeliverBatchSize),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "server.port")
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		invalid = append(invalid, "database.path")
	}
	if len(cfg.Commerce.DefaultCurrency) != 3 {
		invalid = append(invalid, "commerce.default_currency")
	}
	if cfg.Commerce.QuoteValidDays <= 0 {
		invalid = append(invalid, "commerce.quote_valid_days")
	}
	if cfg.Notifications.MaxRetries <= 0 {
		invalid = append(invalid, "notifications.max_retries")
	}
	if cfg.Notifications.RedeliverInterval <= 0 {
		invalid = append(invalid, "notifications.redeliver_interval")
	}
	if cfg.Notifications.RedeliverBatchSize <= 0 {
		invalid = append(invalid, "notifications.redeliver_batch")
	}
	if len(invalid) > 0 {
		return &ValidationError{Invalid: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
