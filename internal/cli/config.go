// Package cli holds the source-wizard command line configuration.
package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/source-wizard/pkg/client"
)

// Environment variables that override the config file.
const (
	EnvServer = "SOURCE_WIZARD_SERVER"
	EnvAPIKey = "SOURCE_WIZARD_API_KEY"
	EnvToken  = "SOURCE_WIZARD_TOKEN"
)

// Config is the wizard's local configuration.
type Config struct {
	Server    string        `yaml:"server"`
	APIKey    string        `yaml:"api_key"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	StatePath string        `yaml:"state_path"`
}

// DefaultConfigPath returns ~/.config/source-wizard/config.yaml, or the
// platform equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "source-wizard.yaml"
	}
	return filepath.Join(dir, "source-wizard", "config.yaml")
}

// LoadConfig reads path, applies environment overrides and defaults. A
// missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	// #nosec G304 -- path is chosen by the user running the CLI
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if v := os.Getenv(EnvServer); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if cfg.Server == "" {
		cfg.Server = "http://localhost:8088"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(filepath.Dir(DefaultConfigPath()), "state.db")
	}
	return cfg, nil
}

// Client builds an API client from the config.
func (c *Config) Client() (*client.Client, error) {
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: c.Timeout})}
	if c.APIKey != "" {
		opts = append(opts, client.WithAPIKey(c.APIKey))
	}
	if c.Token != "" {
		opts = append(opts, client.WithToken(c.Token))
	}
	return client.New(c.Server, opts...)
}
