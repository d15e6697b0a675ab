// Package config handles configuration for checkbox-runner.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Scenario selection
	Scenarios   []string `yaml:"scenarios"`   // Glob patterns for scenario files
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	Env          map[string]string `yaml:"env"`          // Variables for ${...} expansion
	Timeout      int               `yaml:"timeout"`      // Wait budget in ms
	PollInterval int               `yaml:"pollInterval"` // Poll interval in ms
	Parallel     int               `yaml:"parallel"`     // Concurrent sessions

	// Session settings
	Driver       string                 `yaml:"driver"`       // webdriver, cdp, playwright, mock
	Browser      string                 `yaml:"browser"`      // Browser name
	Capabilities map[string]interface{} `yaml:"capabilities"` // Extra W3C capabilities
}

// WaitTimeout returns the configured wait budget, zero when unset.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// WaitInterval returns the configured poll interval, zero when unset.
func (c *Config) WaitInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{}, nil
}
