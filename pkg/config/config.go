package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSettingsPath is where the settings file is looked up when no path is given
	DefaultSettingsPath = "settings.json"

	// ExampleSettingsPath is the template users copy to create their settings file
	ExampleSettingsPath = "settings.example.json"

	// TokenPlaceholder is the value shipped in the template instead of a real token
	TokenPlaceholder = "<ACCESS_TOKEN>"

	// SettingsPathEnv overrides DefaultSettingsPath
	SettingsPathEnv = "FAMLYSYNC_SETTINGS"
)

// ErrSettingsNotFound is returned by Load when the settings file does not exist
var ErrSettingsNotFound = errors.New("settings file not found")

// Config holds the run configuration. It is loaded once and treated as read-only afterwards.
type Config struct {
	// Required keys
	AccessToken     string `yaml:"access_token" json:"access_token"`
	ItemsPerRequest int    `yaml:"items_per_request" json:"items_per_request"`
	MetadataPath    string `yaml:"metadata_path" json:"metadata_path"`

	// Optional keys
	APIBaseURL         string `yaml:"api_base_url" json:"api_base_url,omitempty"`
	OutputDir          string `yaml:"output_dir" json:"output_dir,omitempty"`
	CatalogPath        string `yaml:"catalog_path" json:"catalog_path,omitempty"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout" json:"http_timeout,omitempty"`
	RequestsPerMinute  int    `yaml:"requests_per_minute" json:"requests_per_minute,omitempty"`
	RetryAttempts      int    `yaml:"retry_attempts" json:"retry_attempts,omitempty"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Path the settings were read from
	Source string `yaml:"-" json:"-"`

	// required keys absent from the settings file and not supplied by env
	missing []string
}

// requiredKeys must appear in the settings file
var requiredKeys = []string{"items_per_request", "metadata_path"}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file,omitempty"`
	MaxSize    int    `yaml:"max_size" json:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age" json:"max_age,omitempty"`
	Compress   bool   `yaml:"compress" json:"compress,omitempty"`
}

// envOverrides mirrors the keys that may be overridden from the environment
type envOverrides struct {
	AccessToken     string `env:"ACCESS_TOKEN"`
	ItemsPerRequest int    `env:"ITEMS_PER_REQUEST"`
	MetadataPath    string `env:"METADATA_PATH"`
	OutputDir       string `env:"OUTPUT_DIR"`
	APIBaseURL      string `env:"API_BASE_URL"`
	CatalogPath     string `env:"CATALOG_PATH"`
	LogLevel        string `env:"LOG_LEVEL"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ItemsPerRequest:    2000,
		MetadataPath:       "metadata.json",
		APIBaseURL:         "https://app.famly.co",
		OutputDir:          filepath.Join("out", "images"),
		CatalogPath:        filepath.Join("out", "catalog.db"),
		HTTPTimeoutSeconds: 60,
		RequestsPerMinute:  0,
		RetryAttempts:      1,
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// HTTPTimeout returns the per-request timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// HasToken reports whether a usable access token is configured
func (c *Config) HasToken() bool {
	token := strings.TrimSpace(c.AccessToken)
	return token != "" && token != TokenPlaceholder
}

// LoadFromFile loads configuration from a JSON or YAML settings file
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (copy %s to %s and fill in your access token)",
				ErrSettingsNotFound, path, ExampleSettingsPath, path)
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	// yaml.v3 rejects tab indentation, which is common in hand written JSON
	unmarshal := yaml.Unmarshal
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		unmarshal = json.Unmarshal
	}

	if err := unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	var keys map[string]interface{}
	if err := unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	c.missing = nil
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			c.missing = append(c.missing, key)
		}
	}

	c.Source = path
	return nil
}

func (c *Config) supplied(key string) {
	for i, k := range c.missing {
		if k == key {
			c.missing = append(c.missing[:i], c.missing[i+1:]...)
			return
		}
	}
}

// LoadFromEnv overrides values from FAMLYSYNC_* environment variables
func (c *Config) LoadFromEnv() error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: "FAMLYSYNC_"}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.AccessToken != "" {
		c.AccessToken = o.AccessToken
	}
	if o.ItemsPerRequest > 0 {
		c.ItemsPerRequest = o.ItemsPerRequest
		c.supplied("items_per_request")
	}
	if o.MetadataPath != "" {
		c.MetadataPath = o.MetadataPath
		c.supplied("metadata_path")
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.APIBaseURL != "" {
		c.APIBaseURL = o.APIBaseURL
	}
	if o.CatalogPath != "" {
		c.CatalogPath = o.CatalogPath
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	for _, key := range c.missing {
		errs = append(errs, fmt.Errorf("%s is required in %s", key, c.Source))
	}
	if c.ItemsPerRequest <= 0 {
		errs = append(errs, errors.New("items_per_request must be positive"))
	}
	if strings.TrimSpace(c.MetadataPath) == "" {
		errs = append(errs, errors.New("metadata_path is required"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		errs = append(errs, errors.New("api_base_url must be an http(s) URL"))
	}
	if c.HTTPTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http_timeout must be positive"))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests_per_minute cannot be negative"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry_attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ResolvePath picks the settings path: explicit argument, then FAMLYSYNC_SETTINGS, then the default
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if fromEnv := os.Getenv(SettingsPathEnv); fromEnv != "" {
		return fromEnv
	}
	return DefaultSettingsPath
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: environment variables (including .env) > settings file > defaults.
// The settings file itself is mandatory.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	path = ResolvePath(path)

	config := DefaultConfig()

	if err := config.LoadFromFile(path); err != nil {
		return nil, err
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// WriteTemplate writes a settings template with the required keys to path.
// It refuses to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	defaults := DefaultConfig()
	template := map[string]interface{}{
		"access_token":      TokenPlaceholder,
		"items_per_request": defaults.ItemsPerRequest,
		"metadata_path":     defaults.MetadataPath,
	}

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write settings template: %w", err)
	}

	return nil
}
