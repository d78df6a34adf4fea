// Package config provides configuration loading and management for rqm.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/rqm/scanner"
)

// Config represents the complete rqm configuration.
type Config struct {
	// DocsDir is the root of the requirement-document corpus.
	DocsDir string `yaml:"docs_dir"`

	// SourceDir is the root of the implementation source tree scanned
	// for identifier references.
	SourceDir string `yaml:"source_dir"`

	// RegistryFile is the registry file name, relative to DocsDir.
	RegistryFile string `yaml:"registry_file"`

	// SourceExtensions lists the file extensions treated as
	// implementation source (each with a leading dot).
	SourceExtensions []string `yaml:"source_extensions"`

	// APISection is the depth-2 heading title whose bullets are API
	// item entities.
	APISection string `yaml:"api_section"`

	// ScenarioLang is the fence language treated as executable
	// scenario syntax.
	ScenarioLang string `yaml:"scenario_lang"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DocsDir:          "requirements",
		SourceDir:        "src",
		RegistryFile:     "registry.json",
		SourceExtensions: []string{".rs", ".go"},
		APISection:       "API",
		ScenarioLang:     "gherkin",
	}
}

// RegistryPath returns the full path of the persisted registry.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DocsDir, c.RegistryFile)
}

// ScanOptions returns the document scanner options for this config.
func (c *Config) ScanOptions() scanner.Options {
	return scanner.Options{
		APISection:   c.APISection,
		ScenarioLang: c.ScenarioLang,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DocsDir == "" {
		return fmt.Errorf("docs_dir is required")
	}
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.RegistryFile == "" {
		return fmt.Errorf("registry_file is required")
	}
	if len(c.SourceExtensions) == 0 {
		return fmt.Errorf("source_extensions must not be empty")
	}
	for _, ext := range c.SourceExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("source extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Merge merges another config into this one; other takes precedence
// for non-zero values.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.DocsDir != "" {
		c.DocsDir = other.DocsDir
	}
	if other.SourceDir != "" {
		c.SourceDir = other.SourceDir
	}
	if other.RegistryFile != "" {
		c.RegistryFile = other.RegistryFile
	}
	if len(other.SourceExtensions) > 0 {
		c.SourceExtensions = other.SourceExtensions
	}
	if other.APISection != "" {
		c.APISection = other.APISection
	}
	if other.ScenarioLang != "" {
		c.ScenarioLang = other.ScenarioLang
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}
