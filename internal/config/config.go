package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 18920
	DefaultStore           = "json"
	DefaultCommandPrefix   = "!"
	DefaultThreshold       = 3
	DefaultMetricsInterval = time.Minute
	DefaultLineAPIBaseURL  = "https://api.line.me"
)

var stores = []string{"json", "bolt", "sqlite"}

// Config is the process configuration. Values come from defaults, then the optional YAML
// file, then environment variables.
type Config struct {
	Port      int    `yaml:"port" env:"PORT"`
	Store     string `yaml:"store" env:"GROUPGUARD_STORE"`
	DataDir   string `yaml:"data_dir" env:"GROUPGUARD_DATA_DIR"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Line LineConfig `yaml:"line"`

	// AdminIDs are global super-admins allowed to run restricted commands in any group
	AdminIDs         []string `yaml:"admin_ids" env:"ADMIN_IDS" envSeparator:","`
	WarningThreshold int      `yaml:"warning_threshold" env:"WARNING_THRESHOLD"`
	CommandPrefix    string   `yaml:"command_prefix" env:"COMMAND_PREFIX"`

	// TrustProxy honours forwarding headers for client addresses; enable only behind a proxy
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY"`

	Tracing         TracingConfig `yaml:"tracing"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"METRICS_INTERVAL"`
}

// LineConfig holds the messaging platform credentials
type LineConfig struct {
	ChannelSecret      string `yaml:"channel_secret" env:"LINE_CHANNEL_SECRET"`
	ChannelAccessToken string `yaml:"channel_access_token" env:"LINE_CHANNEL_ACCESS_TOKEN"`
	APIBaseURL         string `yaml:"api_base_url" env:"LINE_API_BASE_URL"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED"`
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:             DefaultPort,
		Store:            DefaultStore,
		DataDir:          defaultDataDir(),
		LogLevel:         "info",
		Line:             LineConfig{APIBaseURL: DefaultLineAPIBaseURL},
		WarningThreshold: DefaultThreshold,
		CommandPrefix:    DefaultCommandPrefix,
		MetricsInterval:  DefaultMetricsInterval,
	}
}

// defaultDataDir uses the XDG data directory, falling back to the home directory. This avoids
// writing next to the binary when running from read-only locations.
func defaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "groupguard")
}

// Load builds the configuration from the YAML file at path (skipped when empty) and the
// environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AdminIDs = cleanIDs(cfg.AdminIDs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Port)}
	}
	if !slices.Contains(stores, c.Store) {
		return &ConfigError{Field: "store", Message: fmt.Sprintf("unknown backend %q (want one of %s)", c.Store, strings.Join(stores, ", "))}
	}
	if c.DataDir == "" {
		return &ConfigError{Field: "data_dir", Message: "must not be empty"}
	}
	if c.Line.ChannelSecret == "" {
		return &ConfigError{Field: "line.channel_secret", Message: "is required"}
	}
	if c.Line.ChannelAccessToken == "" {
		return &ConfigError{Field: "line.channel_access_token", Message: "is required"}
	}
	if c.WarningThreshold < 1 {
		return &ConfigError{Field: "warning_threshold", Message: fmt.Sprintf("must be at least 1, got %d", c.WarningThreshold)}
	}
	if utf8.RuneCountInString(c.CommandPrefix) != 1 {
		return &ConfigError{Field: "command_prefix", Message: "must be a single character"}
	}
	if r, _ := utf8.DecodeRuneInString(c.CommandPrefix); unicode.IsSpace(r) {
		return &ConfigError{Field: "command_prefix", Message: "must not be whitespace"}
	}
	if c.MetricsInterval <= 0 {
		return &ConfigError{Field: "metrics_interval", Message: "must be positive"}
	}
	return nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in " + e.Field + ": " + e.Message
}

func cleanIDs(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
