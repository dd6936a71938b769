// Package config handles configuration loading and validation for kvstore.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/kvstore/pkg/kvstore"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Store is the document location, resolved by kvstore.ResolvePath.
	// Empty selects ~/kvstore/store.json.
	Store           string `yaml:"store"`
	MaxValueSize    int    `yaml:"max_value_size"`
	MaxDocumentSize int64  `yaml:"max_document_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxValueSize:    kvstore.DefaultMaxValueSize,
		MaxDocumentSize: kvstore.DefaultMaxDocumentSize,
	}
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "kvstore", "config.yaml")
}

// Load reads configuration from the given path. If configPath is empty or
// doesn't exist, defaults are returned.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxValueSize == 0 {
		c.MaxValueSize = defaults.MaxValueSize
	}
	if c.MaxDocumentSize == 0 {
		c.MaxDocumentSize = defaults.MaxDocumentSize
	}
}

// StoreConfig converts c into the store's Config, filling the working and
// home directories from the process.
func (c *Config) StoreConfig() kvstore.Config {
	sc := kvstore.DefaultConfig()
	sc.Location = c.Store
	sc.MaxValueSize = c.MaxValueSize
	sc.MaxDocumentSize = c.MaxDocumentSize
	return sc
}
