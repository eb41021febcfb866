package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// writeConfigFile marshals the given document to a temp YAML file.
// Viper keeps global state, so loader tests must not run in parallel.
func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "querybridge.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, map[string]any{
		"server": map[string]any{
			"http_addr":       "0.0.0.0:9090",
			"log_level":       "debug",
			"allowed_origins": "https://app.example.com, https://other.example.com",
		},
		"database": map[string]any{
			"server":          "db.example.net",
			"name":            "sales",
			"allowed_schemas": "Sales,dbo",
		},
		"auth": map[string]any{
			"api_key": "sha256:abc123",
		},
		"rate_limit": map[string]any{
			"enabled":      true,
			"max_requests": 50,
			"window":       "30s",
		},
	})

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("HTTPAddr = %q, want 0.0.0.0:9090", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	origins := cfg.Server.OriginList()
	if len(origins) != 2 || origins[0] != "https://app.example.com" {
		t.Errorf("OriginList() = %v, want two trimmed origins", origins)
	}
	if cfg.Database.Server != "db.example.net" {
		t.Errorf("Database.Server = %q, want db.example.net", cfg.Database.Server)
	}
	schemas := cfg.Database.SchemaList()
	if len(schemas) != 2 || schemas[0] != "Sales" || schemas[1] != "dbo" {
		t.Errorf("SchemaList() = %v, want [Sales dbo]", schemas)
	}
	if cfg.RateLimit.MaxRequests != 50 {
		t.Errorf("MaxRequests = %d, want 50", cfg.RateLimit.MaxRequests)
	}
	window, err := cfg.RateLimit.WindowDuration()
	if err != nil || window.Seconds() != 30 {
		t.Errorf("WindowDuration() = %v, %v, want 30s", window, err)
	}

	// Defaults fill the unspecified fields.
	if cfg.Database.ConnectTimeout != "30s" {
		t.Errorf("ConnectTimeout = %q, want default 30s", cfg.Database.ConnectTimeout)
	}
	if cfg.Database.MaxRows != 10000 {
		t.Errorf("MaxRows = %d, want default 10000", cfg.Database.MaxRows)
	}
	if cfg.Database.TokenScope != "https://database.windows.net/.default" {
		t.Errorf("TokenScope = %q, want the Azure SQL default", cfg.Database.TokenScope)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, map[string]any{
		"database": map[string]any{
			"server": "from-file.example.net",
			"name":   "sales",
		},
	})

	t.Setenv("QUERYBRIDGE_DATABASE_SERVER", "from-env.example.net")
	t.Setenv("QUERYBRIDGE_SERVER_HTTP_ADDR", "127.0.0.1:7000")

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Database.Server != "from-env.example.net" {
		t.Errorf("Database.Server = %q, want the env override", cfg.Database.Server)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("HTTPAddr = %q, want the env override", cfg.Server.HTTPAddr)
	}
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// No config file anywhere; env vars alone must suffice.
	t.Setenv("QUERYBRIDGE_DATABASE_SERVER", "env.example.net")
	t.Setenv("QUERYBRIDGE_DATABASE_NAME", "sales")
	t.Chdir(t.TempDir())

	InitViper("")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() env-only error: %v", err)
	}
	if cfg.Database.Server != "env.example.net" {
		t.Errorf("Database.Server = %q, want env.example.net", cfg.Database.Server)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, map[string]any{
		"server": map[string]any{"http_addr": "127.0.0.1:8080"},
	})

	InitViper(path)
	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() without database config succeeded, want validation error")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %v, want a required-field message", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		c := &Config{}
		c.Database.Server = "db.example.net"
		c.Database.Name = "sales"
		c.SetDefaults()
		return c
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		if err := base().Validate(); err != nil {
			t.Errorf("Validate() error: %v", err)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Parallel()
		c := base()
		c.Server.LogLevel = "verbose"
		if err := c.Validate(); err == nil {
			t.Error("Validate() with bad log level succeeded")
		}
	})

	t.Run("bad addr", func(t *testing.T) {
		t.Parallel()
		c := base()
		c.Server.HTTPAddr = "not-an-addr"
		if err := c.Validate(); err == nil {
			t.Error("Validate() with bad addr succeeded")
		}
	})

	t.Run("bad origin", func(t *testing.T) {
		t.Parallel()
		c := base()
		c.Server.AllowedOrigins = "not a url"
		if err := c.Validate(); err == nil {
			t.Error("Validate() with bad origin succeeded")
		}
	})

	t.Run("bad window duration", func(t *testing.T) {
		t.Parallel()
		c := base()
		c.RateLimit.Enabled = true
		c.RateLimit.Window = "sixty seconds"
		if err := c.Validate(); err == nil {
			t.Error("Validate() with bad window succeeded")
		}
	})

	t.Run("bad connect timeout", func(t *testing.T) {
		t.Parallel()
		c := base()
		c.Database.ConnectTimeout = "soon"
		if err := c.Validate(); err == nil {
			t.Error("Validate() with bad connect timeout succeeded")
		}
	})
}

func TestOriginList_Empty(t *testing.T) {
	t.Parallel()

	var s ServerConfig
	if got := s.OriginList(); got != nil {
		t.Errorf("OriginList() = %v, want nil", got)
	}
}
