// Package platform loads the server configuration and assembles the stores,
// services and handlers behind the source API.
package platform

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/logging"
	"github.com/txn2/source-wizard/pkg/warehouse"
)

// CurrentConfigVersion is the only supported config apiVersion.
const CurrentConfigVersion = "v1"

// Config holds the complete server configuration.
type Config struct {
	APIVersion string               `yaml:"apiVersion"`
	Server     ServerConfig         `yaml:"server"`
	Database   DatabaseConfig       `yaml:"database"`
	Auth       AuthConfig           `yaml:"auth"`
	Secrets    SecretsConfig        `yaml:"secrets"`
	Warehouses []warehouse.Database `yaml:"warehouses"`
	Features   FeaturesConfig       `yaml:"features"`
	Telemetry  TelemetryConfig      `yaml:"telemetry"`
	Logging    logging.Config       `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Name            string        `yaml:"name"`
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig configures the application database.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	SkipMigrations bool   `yaml:"skip_migrations"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	APIKeys        []auth.APIKey `yaml:"api_keys"`
	JWT            JWTConfig     `yaml:"jwt"`
	AllowAnonymous bool          `yaml:"allow_anonymous"` // default: false
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Issuer     string        `yaml:"issuer"`
	SigningKey string        `yaml:"signing_key"`
	TTL        time.Duration `yaml:"ttl"`
}

// SecretsConfig configures credential encryption at rest.
type SecretsConfig struct {
	Passphrase string `yaml:"passphrase"`
}

// FeaturesConfig holds feature flags. They are reloaded when the config file
// changes.
type FeaturesConfig struct {
	EnableAirbyteSources bool `yaml:"enable_airbyte_sources"`
}

// TelemetryConfig configures event storage.
type TelemetryConfig struct {
	Store           bool          `yaml:"store"`
	RetentionDays   int           `yaml:"retention_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoadConfig loads configuration from a file.
// The path comes from the command line and is controlled by the operator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	if v := PeekVersion(data); v != CurrentConfigVersion {
		return nil, fmt.Errorf("unsupported config apiVersion %q; supported versions: %s", v, CurrentConfigVersion)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// PeekVersion extracts the apiVersion from raw YAML bytes. A missing field
// means the current version.
func PeekVersion(data []byte) string {
	var envelope struct {
		APIVersion string `yaml:"apiVersion"`
	}
	if err := yaml.Unmarshal(data, &envelope); err != nil || envelope.APIVersion == "" {
		return CurrentConfigVersion
	}
	return envelope.APIVersion
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	if cfg.Server.Name == "" {
		cfg.Server.Name = "source-server"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8088"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Telemetry.RetentionDays == 0 {
		cfg.Telemetry.RetentionDays = 180
	}
	if cfg.Telemetry.CleanupInterval == 0 {
		cfg.Telemetry.CleanupInterval = 24 * time.Hour
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}
	if len(c.Auth.APIKeys) == 0 && c.Auth.JWT.SigningKey == "" && !c.Auth.AllowAnonymous {
		errs = append(errs, "auth: configure api_keys or jwt.signing_key, or set allow_anonymous")
	}
	for i, k := range c.Auth.APIKeys {
		if k.Name == "" {
			errs = append(errs, fmt.Sprintf("auth.api_keys[%d].name is required", i))
		}
		if k.Key == "" && k.Hash == "" {
			errs = append(errs, fmt.Sprintf("auth.api_keys[%d] needs key or hash", i))
		}
	}
	if c.Features.EnableAirbyteSources && c.Secrets.Passphrase == "" {
		errs = append(errs, "secrets.passphrase is required when enable_airbyte_sources is on")
	}
	seen := make(map[int64]bool, len(c.Warehouses))
	for i, w := range c.Warehouses {
		if w.ID <= 0 {
			errs = append(errs, fmt.Sprintf("warehouses[%d].id must be positive", i))
		}
		if w.DSN == "" {
			errs = append(errs, fmt.Sprintf("warehouses[%d].dsn is required", i))
		}
		if seen[w.ID] {
			errs = append(errs, fmt.Sprintf("warehouses[%d].id %d is duplicated", i, w.ID))
		}
		seen[w.ID] = true
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}

	if len(errs) > 0 {
		return errors.New("config validation errors: " + strings.Join(errs, "; "))
	}
	return nil
}
