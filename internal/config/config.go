package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	OBS             OBSConfig         `yaml:"obs"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Webhook         WebhookConfig     `yaml:"webhook"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Script          string            `yaml:"script"`   // Optional Lua script declaring triggers
	Triggers        []TriggerConfig   `yaml:"triggers"` // Triggers declared inline
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"`
}

// OBSConfig contains obs-websocket connection settings
type OBSConfig struct {
	Address      string `yaml:"address"`
	AddressFile  string `yaml:"address_file"` // Read address from a plain-text file
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // Read password from a plain-text file

	RequestTimeout Duration `yaml:"request_timeout"`

	// Reconnect settings
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between reconnects (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between reconnects (default: 2m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxReconnects   int      `yaml:"max_reconnects"`    // Max reconnect attempts, 0 = infinite (default: 0)

	KeepAlive Duration `yaml:"keepalive"` // Liveness probe interval (default: 5s)
}

// TriggerConfig declares one trigger line and the action lines it runs
type TriggerConfig struct {
	On      string   `yaml:"on"`
	Actions []string `yaml:"actions"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// WebhookConfig contains the manual trigger HTTP endpoint settings
type WebhookConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // Requests per second, 0 = unlimited
	Burst     int     `yaml:"burst"`      // Burst size (default: 5)
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 1)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Relative paths are resolved against the config file's directory
	dir := filepath.Dir(path)
	cfg.OBS.AddressFile = resolve(dir, cfg.OBS.AddressFile)
	cfg.OBS.PasswordFile = resolve(dir, cfg.OBS.PasswordFile)
	cfg.Script = resolve(dir, cfg.Script)

	if err := cfg.OBS.readSettingsFiles(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse parses configuration data and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./obstrigger.sqlite"
	}

	// OBS defaults
	cfg.OBS.Address = strings.TrimSpace(cfg.OBS.Address)
	cfg.OBS.Password = strings.TrimSpace(cfg.OBS.Password)
	if cfg.OBS.Address == "" && cfg.OBS.AddressFile == "" {
		cfg.OBS.Address = "localhost:4455"
	}
	if cfg.OBS.RequestTimeout == 0 {
		cfg.OBS.RequestTimeout = Duration(10 * time.Second)
	}
	if cfg.OBS.MinRetryBackoff == 0 {
		cfg.OBS.MinRetryBackoff = Duration(1 * time.Second)
	}
	if cfg.OBS.MaxRetryBackoff == 0 {
		cfg.OBS.MaxRetryBackoff = Duration(2 * time.Minute)
	}
	if cfg.OBS.RetryMultiplier == 0 {
		cfg.OBS.RetryMultiplier = 2.0
	}
	// MaxReconnects defaults to 0 (infinite), no need to set
	if cfg.OBS.KeepAlive == 0 {
		cfg.OBS.KeepAlive = Duration(5 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// Webhook defaults
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8080
	}
	if cfg.Webhook.Host == "" {
		cfg.Webhook.Host = "127.0.0.1"
	}
	if cfg.Webhook.Burst == 0 {
		cfg.Webhook.Burst = 5
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values that would stall or crash services.
// Zero values are replaced by defaults in Parse, so only explicit values fail here.
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value Duration
	}{
		{"obs.request_timeout", c.OBS.RequestTimeout},
		{"obs.min_retry_backoff", c.OBS.MinRetryBackoff},
		{"obs.max_retry_backoff", c.OBS.MaxRetryBackoff},
		{"obs.keepalive", c.OBS.KeepAlive},
		{"ledger.cleanup_interval", c.Ledger.CleanupInterval},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value.Duration())
		}
	}

	if c.OBS.MaxRetryBackoff < c.OBS.MinRetryBackoff {
		return fmt.Errorf("obs.max_retry_backoff (%s) is below obs.min_retry_backoff (%s)",
			c.OBS.MaxRetryBackoff.Duration(), c.OBS.MinRetryBackoff.Duration())
	}
	if c.OBS.RetryMultiplier < 1 {
		return fmt.Errorf("obs.retry_multiplier must be at least 1, got %g", c.OBS.RetryMultiplier)
	}
	if c.OBS.MaxReconnects < 0 {
		return fmt.Errorf("obs.max_reconnects must not be negative, got %d", c.OBS.MaxReconnects)
	}
	if c.Ledger.RetentionDays < 0 {
		return fmt.Errorf("ledger.retention_days must not be negative, got %d", c.Ledger.RetentionDays)
	}
	if c.Webhook.RateLimit < 0 {
		return fmt.Errorf("webhook.rate_limit must not be negative, got %g", c.Webhook.RateLimit)
	}
	return nil
}

// readSettingsFiles fills address and password from their plain-text files.
// File values override inline values and are whitespace-trimmed.
func (c *OBSConfig) readSettingsFiles() error {
	if c.AddressFile != "" {
		data, err := os.ReadFile(c.AddressFile)
		if err != nil {
			return fmt.Errorf("read obs address file: %w", err)
		}
		c.Address = strings.TrimSpace(string(data))
	}
	if c.PasswordFile != "" {
		data, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return fmt.Errorf("read obs password file: %w", err)
		}
		c.Password = strings.TrimSpace(string(data))
	}
	return nil
}

// GetShutdownTimeout returns the shutdown timeout as time.Duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
