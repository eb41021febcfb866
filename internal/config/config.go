// Package config provides configuration types for querybridge.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for querybridge.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Database configures the upstream SQL database and its token-based
	// authentication.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Auth configures the inbound access guard.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// RateLimit configures optional request-rate accounting.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Tracing configures optional trace export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// ServerConfig configures the HTTP server.
// Only plain HTTP is supported (use a reverse proxy for TLS).
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// AllowedOrigins is a comma-separated list of origins accepted for
	// cross-origin requests. Empty means no cross-origin access.
	AllowedOrigins string `yaml:"allowed_origins" mapstructure:"allowed_origins" validate:"omitempty,origin_list"`
}

// OriginList splits AllowedOrigins into individual origins.
func (s ServerConfig) OriginList() []string {
	if s.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(s.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// DatabaseConfig configures the upstream SQL Server connection.
// Authentication uses Azure AD access tokens; no password field exists.
type DatabaseConfig struct {
	// Server is the database host (e.g., "myserver.database.windows.net").
	Server string `yaml:"server" mapstructure:"server" validate:"required"`

	// Name is the database name.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// ConnectTimeout is the dial timeout (e.g., "30s", "1m").
	// Defaults to "30s" if not specified.
	ConnectTimeout string `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"omitempty"`

	// TrustServerCertificate disables certificate verification.
	// Leave false outside of local development.
	TrustServerCertificate bool `yaml:"trust_server_certificate" mapstructure:"trust_server_certificate"`

	// TokenScope is the OAuth scope requested for database access tokens.
	// Defaults to the Azure SQL scope.
	TokenScope string `yaml:"token_scope" mapstructure:"token_scope"`

	// MaxRows caps the number of rows returned by read queries.
	// Defaults to 10000.
	MaxRows int `yaml:"max_rows" mapstructure:"max_rows" validate:"omitempty,min=1"`

	// AllowedSchemas is a comma-separated list of schemas exposed by the
	// table listing operation. Empty means all schemas.
	AllowedSchemas string `yaml:"allowed_schemas" mapstructure:"allowed_schemas"`
}

// SchemaList splits AllowedSchemas into individual schema names.
func (d DatabaseConfig) SchemaList() []string {
	if d.AllowedSchemas == "" {
		return nil
	}
	parts := strings.Split(d.AllowedSchemas, ",")
	schemas := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			schemas = append(schemas, trimmed)
		}
	}
	return schemas
}

// ConnectTimeoutDuration parses ConnectTimeout. Defaults are applied by
// SetDefaults so the value always parses after loading.
func (d DatabaseConfig) ConnectTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(d.ConnectTimeout)
}

// AuthConfig configures the inbound access guard.
type AuthConfig struct {
	// APIKey is the expected credential. Accepts a plaintext value,
	// "sha256:<hex>" or an argon2id hash ("$argon2id$...").
	// Generate hashes with: querybridge hash-key <key>
	// Empty disables the guard entirely (insecure mode, warned at startup).
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// RateLimitConfig configures fixed-window request-rate accounting.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// MaxRequests is the maximum requests allowed per window per credential.
	// Defaults to 100 if rate limiting is enabled.
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests" validate:"omitempty,min=1"`

	// Window is the accounting window length (e.g., "60s", "1m").
	// Defaults to "60s" if not specified.
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty"`
}

// WindowDuration parses Window. Defaults are applied by SetDefaults so the
// value always parses after loading.
func (r RateLimitConfig) WindowDuration() (time.Duration, error) {
	return time.ParseDuration(r.Window)
}

// TracingConfig configures trace export.
type TracingConfig struct {
	// Enabled turns span export on or off. Spans go to stdout.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults. Bind to localhost only; users who need network
	// access must explicitly set http_addr.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	// Database defaults
	if c.Database.ConnectTimeout == "" {
		c.Database.ConnectTimeout = "30s"
	}
	if c.Database.TokenScope == "" {
		c.Database.TokenScope = "https://database.windows.net/.default"
	}
	if c.Database.MaxRows == 0 {
		c.Database.MaxRows = 10000
	}

	// Rate limit defaults. Enabled by default; viper.IsSet distinguishes
	// "not set" from "explicitly false".
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "60s"
	}
}
