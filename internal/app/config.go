package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	LogPath string // executor log holding source and trace
	Entry   string // entry procedure suffix; empty means infer

	// ConfigPath is an optional HCL or YAML policy file.
	ConfigPath string
	ShowMemory bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogPath == "" {
		return nil, errors.New("LogPath is a required configuration field and cannot be empty")
	}
	if cfg.ConfigPath != "" {
		switch ext := strings.ToLower(filepath.Ext(cfg.ConfigPath)); ext {
		case ".hcl", ".yaml", ".yml":
		default:
			return nil, fmt.Errorf("unsupported policy file extension %q: use .hcl, .yaml or .yml", ext)
		}
	}
	return &cfg, nil
}

// IsYAML reports whether the policy file should be read as YAML.
func (c *Config) IsYAML() bool {
	ext := strings.ToLower(filepath.Ext(c.ConfigPath))
	return ext == ".yaml" || ext == ".yml"
}
