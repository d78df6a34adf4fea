// Package main provides the rqm binary entry point.
// Rqm assigns stable identifiers to requirement-document entities,
// stamps them inline, and maintains the registry that
// cross-references every file mentioning each identifier.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/c360studio/rqm/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rqm"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags shared by every subcommand.
type globalFlags struct {
	configPath string
	docsDir    string
	sourceDir  string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Requirements traceability identifier tool",
		Long: `Rqm manages the opaque rq-XXXXXXXX identifiers that tie requirement
documents to the implementation source.

It provides:
- stamp: insert missing identifiers into documents in place
- index: rebuild the identifier registry from the live corpus
- check: cross-check live references against the registry
- clean: prune registry entries that no longer exist
- watch: stamp and index automatically on document changes`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.docsDir, "docs", "", "Requirement-documents root (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.sourceDir, "src", "", "Implementation-source root (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		stampCmd(flags),
		indexCmd(flags),
		checkCmd(flags),
		cleanCmd(flags),
		watchCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup configures logging and loads the layered configuration with
// flag overrides applied last.
func setup(flags *globalFlags) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(flags.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger = logger.With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	loader := config.NewLoader(logger)
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = loader.LoadFile(flags.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if flags.docsDir != "" {
		cfg.DocsDir = flags.docsDir
	}
	if flags.sourceDir != "" {
		cfg.SourceDir = flags.sourceDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger, nil
}
