package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "rqm.yaml"

	// EnvDocsDir overrides the requirement-documents root.
	EnvDocsDir = "RQM_DOCS_DIR"
	// EnvSourceDir overrides the implementation-source root.
	EnvSourceDir = "RQM_SRC_DIR"
	// EnvSourceExts overrides the source extension list
	// (comma-separated, e.g. ".rs,.go,.py").
	EnvSourceExts = "RQM_SRC_EXTS"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Project config (rqm.yaml in the current or a parent directory)
// 3. Environment variables
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if path := l.findProjectConfig(); path != "" {
		if projectConfig, err := LoadFromFile(path); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", path))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFile loads an explicit config file over the defaults, then
// applies environment overrides.
func (l *Loader) LoadFile(path string) (*Config, error) {
	config := DefaultConfig()

	fileConfig, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	config.Merge(fileConfig)

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// findProjectConfig searches for rqm.yaml in the current and parent
// directories.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// applyEnv applies environment-variable overrides.
func applyEnv(config *Config) {
	if v := os.Getenv(EnvDocsDir); v != "" {
		config.DocsDir = v
	}
	if v := os.Getenv(EnvSourceDir); v != "" {
		config.SourceDir = v
	}
	if v := os.Getenv(EnvSourceExts); v != "" {
		var exts []string
		for _, ext := range strings.Split(v, ",") {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			exts = append(exts, ext)
		}
		if len(exts) > 0 {
			config.SourceExtensions = exts
		}
	}
}
