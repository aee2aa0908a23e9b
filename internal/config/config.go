// ABOUTME: Configuration loading and parsing for aria-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oncolink/aria-gateway/internal/aria"
)

// Config represents the complete aria-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	ARIA     ARIAConfig     `yaml:"aria"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// ARIAConfig holds the upstream ARIA connection settings.
type ARIAConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`

	TokenTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// AuthConfig holds authentication configuration for inbound MCP clients.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	RequireAuth bool          `yaml:"require_auth"`
	Tokens      []StaticToken `yaml:"tokens"`
}

// StaticToken is a pre-shared bearer token bound to a principal and an
// optional capability list. An empty capability list means unrestricted.
type StaticToken struct {
	Token        string   `yaml:"token"`
	Principal    string   `yaml:"principal"`
	Capabilities []string `yaml:"capabilities"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	// The authenticate tool can replace credentials at runtime, but the
	// gateway always starts against a configured ARIA endpoint.
	if c.ARIA.BaseURL == "" {
		return fmt.Errorf("aria.base_url is required")
	}
	if c.ARIA.ClientID == "" || c.ARIA.ClientSecret == "" {
		return fmt.Errorf("aria.client_id and aria.client_secret are required")
	}
	if c.ARIA.Username == "" || c.ARIA.Password == "" {
		return fmt.Errorf("aria.username and aria.password are required")
	}

	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth.jwt_secret or auth.tokens is required when auth.require_auth is set")
	}

	for i, tok := range c.Auth.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("auth.tokens[%d].token is required", i)
		}
		if tok.Principal == "" {
			return fmt.Errorf("auth.tokens[%d].principal is required", i)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path is required when metrics is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.ARIA.TokenTTLRaw != "" {
		cfg.ARIA.TokenTTL, err = time.ParseDuration(cfg.ARIA.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.ARIA.TokenTTLRaw, err)
		}
		if cfg.ARIA.TokenTTL <= 0 {
			return fmt.Errorf("token_ttl must be positive, got %q", cfg.ARIA.TokenTTLRaw)
		}
	} else {
		cfg.ARIA.TokenTTL = aria.DefaultTokenTTL
	}

	return nil
}

// Credentials converts the ARIA section into the session credential set.
func (c *ARIAConfig) Credentials() aria.Credentials {
	return aria.Credentials{
		BaseURL:      c.BaseURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Username:     c.Username,
		Password:     c.Password,
	}
}
