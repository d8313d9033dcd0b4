package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# nfswire configuration
#
# Sources, in order of precedence:
#   1. Environment variables (NFSWIRE_*)
#   2. This file
#   3. Built-in defaults
#
# Sizes accept human-readable suffixes ("1Mi", "512Ki"); durations accept
# Go syntax ("30s", "5m").

`

// WriteSample renders the default configuration as a commented YAML file
// at path. Existing files are preserved unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	rendered, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("render sample config: %w", err)
	}

	content := append([]byte(sampleHeader), rendered...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
