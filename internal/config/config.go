// ABOUTME: Configuration loading and parsing for the csvexport admin server
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/csvexport/internal/model"
)

// Environment variables that override the exports section.
const (
	EnvRequirePerm   = "EXPORTS_REQUIRE_PERM"
	EnvGlobalEnabled = "CSV_GLOBAL_EXPORTS_ENABLED"
	EnvConfigPath    = "CSVEXPORT_CONFIG"

	// Django-era names, still honored. The unprefixed names win when both are set.
	EnvRequirePermLegacy   = "DJANGO_EXPORTS_REQUIRE_PERM"
	EnvGlobalEnabledLegacy = "DJANGO_CSV_GLOBAL_EXPORTS_ENABLED"
)

// Default values applied when a setting is omitted.
const (
	DefaultDriver      = "sqlite"
	DefaultMetricsPath = "/metrics"
	DefaultTokenTTL    = 24 * time.Hour
)

// Config represents the complete csvexport configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Exports   ExportsConfig   `yaml:"exports" toml:"exports"`
	WebAdmin  WebAdminConfig  `yaml:"webadmin" toml:"webadmin"`
	Models    []ModelConfig   `yaml:"models" toml:"models"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // serve :443 with tailnet certificates
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	Path   string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// ExportsConfig holds the CSV export switches
type ExportsConfig struct {
	// RequirePerm restricts exports to users holding <app_label>.csv_<model_name>
	RequirePerm bool `yaml:"require_perm" toml:"require_perm"`
	// GlobalEnabled offers the export action on every registered model
	GlobalEnabled bool `yaml:"global_enabled" toml:"global_enabled"`
}

// WebAdminConfig holds web admin UI configuration
type WebAdminConfig struct {
	// BaseURL is the external URL for the admin UI.
	// If not set, it's derived from server.http_addr or the tailscale hostname
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// ModelConfig declares a table to expose in the admin
type ModelConfig struct {
	AppLabel    string   `yaml:"app_label" toml:"app_label"`
	Name        string   `yaml:"name" toml:"name"`
	Table       string   `yaml:"table" toml:"table"` // defaults to <app_label>_<name>
	PK          string   `yaml:"pk" toml:"pk"`
	Fields      []string `yaml:"fields" toml:"fields"` // empty means read from the table
	Ordering    []string `yaml:"ordering" toml:"ordering"`
	CSVExport   bool     `yaml:"csv_export" toml:"csv_export"` // attach the export action to this model
	CSVFields   []string `yaml:"csv_fields" toml:"csv_fields"`
	CSVFilename string   `yaml:"csv_filename" toml:"csv_filename"`
	Description string   `yaml:"description" toml:"description"` // markdown
}

// Meta builds the model metadata for this declaration.
func (m ModelConfig) Meta() *model.Meta {
	table := m.Table
	if table == "" {
		table = m.AppLabel + "_" + strings.ToLower(m.Name)
	}

	fields := make([]model.Field, len(m.Fields))
	for i, name := range m.Fields {
		fields[i] = model.Field{Name: name}
	}

	return &model.Meta{
		AppLabel:    m.AppLabel,
		ObjectName:  m.Name,
		Table:       table,
		PK:          m.PK,
		Fields:      fields,
		Ordering:    m.Ordering,
		Description: m.Description,
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config file location: $CSVEXPORT_CONFIG if set,
// otherwise $XDG_CONFIG_HOME/csvexport/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "csvexport", "config.yaml")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets the environment flip the export switches without
// editing the file. Unset variables leave the file value alone.
func applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		name  string
		field *bool
	}{
		{EnvRequirePermLegacy, &cfg.Exports.RequirePerm},
		{EnvGlobalEnabledLegacy, &cfg.Exports.GlobalEnabled},
		{EnvRequirePerm, &cfg.Exports.RequirePerm},
		{EnvGlobalEnabled, &cfg.Exports.GlobalEnabled},
	}

	for _, o := range overrides {
		raw, ok := os.LookupEnv(o.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s=%q: %w", o.name, raw, err)
		}
		*o.field = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDriver
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or sqlite3)", c.Database.Driver)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.AppLabel == "" || m.Name == "" {
			return fmt.Errorf("models[%d]: app_label and name are required", i)
		}
		meta := m.Meta()
		if err := meta.Validate(); err != nil {
			return fmt.Errorf("models[%d] %s: %w", i, meta.Label(), err)
		}
		if seen[meta.Label()] {
			return fmt.Errorf("models[%d]: %s declared twice", i, meta.Label())
		}
		seen[meta.Label()] = true

		for _, f := range m.CSVFields {
			if strings.TrimSpace(f) == "" {
				return fmt.Errorf("models[%d] %s: csv_fields entries must not be empty", i, meta.Label())
			}
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
		if cfg.Auth.TokenTTL <= 0 {
			return fmt.Errorf("token_ttl must be positive, got %s", cfg.Auth.TokenTTLRaw)
		}
	}

	return nil
}
