// ABOUTME: Configuration loading and parsing for hubspot-gateway
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config file location.
const EnvConfigPath = "HUBSPOT_GATEWAY_CONFIG"

// CRM providers.
const (
	ProviderHubSpot = "hubspot"
	ProviderSandbox = "sandbox"
)

// Dedupe modes.
const (
	DedupeBestEffort = "best_effort"
	DedupeSerialized = "serialized"
)

// Config represents the complete hubspot-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	CRM      CRMConfig      `yaml:"crm"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Debug    DebugConfig    `yaml:"debug"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReadTimeoutRaw     string `yaml:"read_timeout"`
	WriteTimeoutRaw    string `yaml:"write_timeout"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// CRMConfig selects and tunes the CRM provider
type CRMConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"-"`
	TimeoutRaw        string        `yaml:"timeout"`
	PageSize          int           `yaml:"page_size"`
	MaxPages          int           `yaml:"max_pages"` // 0 follows every cursor
	MaxConcurrency    int           `yaml:"max_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// DedupeConfig controls create deduplication
type DedupeConfig struct {
	Mode   string        `yaml:"mode"`
	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
	Size   int           `yaml:"size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig toggles the action audit log
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
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

// DebugConfig holds diagnostic endpoint toggles
type DebugConfig struct {
	Echo bool `yaml:"echo"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		CRM: CRMConfig{
			Provider:          ProviderHubSpot,
			BaseURL:           "https://api.hubapi.com",
			Timeout:           30 * time.Second,
			PageSize:          100,
			MaxConcurrency:    4,
			RequestsPerSecond: 9,
		},
		Dedupe: DedupeConfig{
			Mode: DedupeBestEffort,
			TTL:  10 * time.Minute,
			Size: 1024,
		},
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// DefaultPath returns the config file location used when no flag is given:
// $HUBSPOT_GATEWAY_CONFIG, else $XDG_CONFIG_HOME/hubspot-gateway/gateway.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(xdgConfigHome(), "hubspot-gateway", "gateway.yaml")
}

// Resolve loads the config for a command. An explicit path must exist; the
// default path falls back to Default() when the file is absent.
func Resolve(flagPath string) (*Config, string, error) {
	if flagPath != "" {
		cfg, err := Load(flagPath)
		return cfg, flagPath, err
	}

	path := DefaultPath()
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) && os.Getenv(EnvConfigPath) == "" {
		cfg = Default()
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("validating config: %w", err)
		}
		return cfg, "", nil
	}
	return cfg, path, err
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Unset fields keep their Default() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config content on top of Default().
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.CRM.Provider {
	case ProviderHubSpot:
		u, err := url.Parse(c.CRM.BaseURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("crm.base_url must be an absolute URL, got %q", c.CRM.BaseURL)
		}
	case ProviderSandbox:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sandbox provider")
		}
	default:
		return fmt.Errorf("crm.provider must be %q or %q, got %q", ProviderHubSpot, ProviderSandbox, c.CRM.Provider)
	}

	if c.CRM.Timeout <= 0 {
		return fmt.Errorf("crm.timeout must be positive")
	}
	if c.CRM.PageSize < 1 || c.CRM.PageSize > 100 {
		return fmt.Errorf("crm.page_size must be between 1 and 100")
	}
	if c.CRM.MaxPages < 0 {
		return fmt.Errorf("crm.max_pages must not be negative")
	}
	if c.CRM.MaxConcurrency < 1 {
		return fmt.Errorf("crm.max_concurrency must be at least 1")
	}
	if c.CRM.RequestsPerSecond <= 0 {
		return fmt.Errorf("crm.requests_per_second must be positive")
	}

	switch c.Dedupe.Mode {
	case DedupeBestEffort:
	case DedupeSerialized:
		if c.Dedupe.TTL <= 0 || c.Dedupe.Size < 1 {
			return fmt.Errorf("dedupe.ttl and dedupe.size must be positive in serialized mode")
		}
	default:
		return fmt.Errorf("dedupe.mode must be %q or %q, got %q", DedupeBestEffort, DedupeSerialized, c.Dedupe.Mode)
	}

	if c.Audit.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when audit is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// NeedsStore reports whether the configuration requires the SQLite store.
func (c *Config) NeedsStore() bool {
	return c.CRM.Provider == ProviderSandbox || c.Audit.Enabled
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeoutRaw, &cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"crm.timeout", cfg.CRM.TimeoutRaw, &cfg.CRM.Timeout},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

func xdgConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

func defaultDatabasePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "hubspot-gateway", "gateway.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "hubspot-gateway.db"
	}
	return filepath.Join(home, ".local", "share", "hubspot-gateway", "gateway.db")
}
