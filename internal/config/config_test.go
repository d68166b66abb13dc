// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, overrides, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a file named name in a temp dir and returns its path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const minimalYAML = `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "./test.db"
`

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  driver: "sqlite3"
  path: "./test.db"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  token_ttl: "12h"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"

exports:
  require_perm: true
  global_enabled: false

models:
  - app_label: "shop"
    name: "Order"
    pk: "order_id"
    fields: ["order_id", "customer", "total"]
    ordering: ["-order_id"]
    csv_export: true
    csv_fields: ["customer", "total"]
    csv_filename: "orders"
    description: "All **orders**"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want %v", cfg.Auth.TokenTTL, 12*time.Hour)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if !cfg.Exports.RequirePerm {
		t.Error("Exports.RequirePerm = false, want true")
	}
	if cfg.Exports.GlobalEnabled {
		t.Error("Exports.GlobalEnabled = true, want false")
	}

	if len(cfg.Models) != 1 {
		t.Fatalf("len(Models) = %d, want 1", len(cfg.Models))
	}
	m := cfg.Models[0]
	if !m.CSVExport {
		t.Error("Models[0].CSVExport = false, want true")
	}
	if len(m.CSVFields) != 2 || m.CSVFields[0] != "customer" {
		t.Errorf("Models[0].CSVFields = %v, want [customer total]", m.CSVFields)
	}
	if m.CSVFilename != "orders" {
		t.Errorf("Models[0].CSVFilename = %q, want %q", m.CSVFilename, "orders")
	}

	meta := m.Meta()
	if meta.Label() != "shop.order" {
		t.Errorf("Meta().Label() = %q, want %q", meta.Label(), "shop.order")
	}
	if meta.Table != "shop_order" {
		t.Errorf("Meta().Table = %q, want %q", meta.Table, "shop_order")
	}
	if meta.PrimaryKey() != "order_id" {
		t.Errorf("Meta().PrimaryKey() = %q, want %q", meta.PrimaryKey(), "order_id")
	}
	if len(meta.Fields) != 3 {
		t.Errorf("len(Meta().Fields) = %d, want 3", len(meta.Fields))
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != DefaultDriver {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DefaultDriver)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.Auth.TokenTTL != DefaultTokenTTL {
		t.Errorf("Auth.TokenTTL = %v, want %v", cfg.Auth.TokenTTL, DefaultTokenTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Exports.RequirePerm || cfg.Exports.GlobalEnabled {
		t.Errorf("Exports = %+v, want both off", cfg.Exports)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
path = "./test.db"

[exports]
global_enabled = true

[[models]]
app_label = "app"
name = "Foo"
fields = ["id", "name"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if !cfg.Exports.GlobalEnabled {
		t.Error("Exports.GlobalEnabled = false, want true")
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Meta().Label() != "app.foo" {
		t.Errorf("Models = %+v, want one app.foo", cfg.Models)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "secret-from-env-secret-from-env-xx")
	t.Setenv("TEST_DB_PATH", "/var/lib/csvexport/admin.db")
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	cfg, err := Load(writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "${TEST_DB_PATH}"

auth:
  jwt_secret: "${TEST_JWT_SECRET}"

webadmin:
  base_url: "${UNSET_VAR_FOR_TEST}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "secret-from-env-secret-from-env-xx" {
		t.Errorf("Auth.JWTSecret = %q, want value from env", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/var/lib/csvexport/admin.db" {
		t.Errorf("Database.Path = %q, want value from env", cfg.Database.Path)
	}
	// Unset env vars should expand to empty string
	if cfg.WebAdmin.BaseURL != "" {
		t.Errorf("WebAdmin.BaseURL = %q, want empty string for unset env var", cfg.WebAdmin.BaseURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRequirePerm, "true")
	t.Setenv(EnvGlobalEnabled, "1")

	cfg, err := Load(writeConfig(t, "config.yaml", minimalYAML+`
exports:
  require_perm: false
  global_enabled: false
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Exports.RequirePerm {
		t.Error("Exports.RequirePerm = false, want true from env")
	}
	if !cfg.Exports.GlobalEnabled {
		t.Error("Exports.GlobalEnabled = false, want true from env")
	}
}

func TestLoad_LegacyEnvOverrides(t *testing.T) {
	t.Setenv(EnvRequirePermLegacy, "true")
	t.Setenv(EnvGlobalEnabledLegacy, "true")
	t.Setenv(EnvGlobalEnabled, "false")

	cfg, err := Load(writeConfig(t, "config.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Exports.RequirePerm {
		t.Errorf("Exports.RequirePerm = false, want true from %s", EnvRequirePermLegacy)
	}
	if cfg.Exports.GlobalEnabled {
		t.Errorf("Exports.GlobalEnabled = true, want %s to win over %s", EnvGlobalEnabled, EnvGlobalEnabledLegacy)
	}
}

func TestLoad_EnvOverrideInvalid(t *testing.T) {
	t.Setenv(EnvRequirePerm, "sometimes")

	_, err := Load(writeConfig(t, "config.yaml", minimalYAML))
	if err == nil {
		t.Fatal("Load() expected error for invalid boolean override")
	}
	if !strings.Contains(err.Error(), EnvRequirePerm) {
		t.Errorf("error = %v, want mention of %s", err, EnvRequirePerm)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", minimalYAML+`
auth:
  token_ttl: "forever"
`))
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "token_ttl") {
		t.Errorf("error = %v, want mention of token_ttl", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", "server: [unclosed"))
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{HTTPAddr: "127.0.0.1:8080"},
			Database: DatabaseConfig{Driver: "sqlite", Path: "./test.db"},
			Models:   []ModelConfig{{AppLabel: "app", Name: "Foo"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale replaces http addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "exports"}
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"relative metrics path", func(c *Config) { c.Metrics = MetricsConfig{Enabled: true, Path: "metrics"} }, "metrics.path"},
		{"model without name", func(c *Config) { c.Models[0].Name = "" }, "app_label and name"},
		{"unsafe table", func(c *Config) { c.Models[0].Table = "foo; DROP" }, "invalid identifier"},
		{"duplicate model", func(c *Config) {
			c.Models = append(c.Models, ModelConfig{AppLabel: "app", Name: "foo"})
		}, "declared twice"},
		{"blank csv field", func(c *Config) { c.Models[0].CSVFields = []string{"id", " "} }, "csv_fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/csvexport.yaml")
	if got := DefaultPath(); got != "/etc/csvexport.yaml" {
		t.Errorf("DefaultPath() = %q, want %q", got, "/etc/csvexport.yaml")
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	want := filepath.Join("/tmp/xdg", "csvexport", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
