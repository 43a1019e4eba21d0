// Package config reads and writes the terminal client's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the terminal client's configuration file.
type Config struct {
	ProxyURL string        `yaml:"proxy_url"`
	Timeout  time.Duration `yaml:"timeout,omitempty"` // Tighter bound than the client defaults; zero keeps them
	Color    *bool         `yaml:"color,omitempty"`
	Debug    bool          `yaml:"debug,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		ProxyURL: "http://localhost:8787",
	}
}

// ColorEnabled reports whether output should be styled. It defaults to true.
func (c *Config) ColorEnabled() bool {
	return c.Color == nil || *c.Color
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reprompt"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the file at path. A missing file yields DefaultConfig; an empty
// path means the default location.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %s in %s", cfg.Timeout, path)
	}

	return cfg, nil
}

// Save writes c to path, creating its directory. An empty path means the
// default location.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
