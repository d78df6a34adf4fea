// Package audit cross-checks the persisted registry against the live
// corpus: the checker finds stale references, the cleaner prunes
// entries and references that no longer correspond to anything.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/corpus"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/registry"
	"github.com/c360studio/rqm/scanner"
)

// StaleRef is an identifier token found in the live corpus but
// absent from the registry.
type StaleRef struct {
	File string
	ID   ident.ID
}

// CheckResult reports a consistency check. Stale references fail the
// run; unreferenced entries are informational.
type CheckResult struct {
	Stale        []StaleRef
	Unreferenced []ident.ID
}

// Check re-scans every implementation source and document file for
// identifier tokens and cross-checks them against the persisted
// registry. A missing registry is fatal.
func Check(cfg *config.Config, logger *slog.Logger) (*CheckResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		return nil, err
	}

	targets, err := corpusFiles(cfg)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{}
	reported := make(map[StaleRef]bool)

	for _, target := range targets {
		content, err := os.ReadFile(target.readPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", target.readPath, err)
		}
		for _, id := range scanner.ScanRefs(string(content)) {
			if _, known := reg.Entries[id]; known {
				continue
			}
			ref := StaleRef{File: target.refPath, ID: id}
			if !reported[ref] {
				reported[ref] = true
				result.Stale = append(result.Stale, ref)
			}
		}
	}

	sort.Slice(result.Stale, func(i, j int) bool {
		if result.Stale[i].File != result.Stale[j].File {
			return result.Stale[i].File < result.Stale[j].File
		}
		return result.Stale[i].ID < result.Stale[j].ID
	})

	for _, id := range reg.IDs() {
		if len(reg.Entries[id].Refs) == 0 {
			result.Unreferenced = append(result.Unreferenced, id)
		}
	}

	logger.Info("Consistency check complete",
		"files", len(targets),
		"stale", len(result.Stale),
		"unreferenced", len(result.Unreferenced))

	return result, nil
}

// target pairs a filesystem path with its reported path.
type target struct {
	readPath string
	refPath  string
}

// corpusFiles enumerates every file the reference scan covers:
// implementation sources first, then documents.
func corpusFiles(cfg *config.Config) ([]target, error) {
	sources, err := corpus.Sources(cfg.SourceDir, cfg.SourceExtensions)
	if err != nil {
		return nil, err
	}
	docs, err := corpus.Documents(cfg.DocsDir)
	if err != nil {
		return nil, err
	}

	var targets []target
	for _, src := range sources {
		targets = append(targets, target{
			readPath: filepath.Join(cfg.SourceDir, filepath.FromSlash(src)),
			refPath:  path.Join(filepath.ToSlash(cfg.SourceDir), src),
		})
	}
	for _, doc := range docs {
		targets = append(targets, target{
			readPath: filepath.Join(cfg.DocsDir, filepath.FromSlash(doc)),
			refPath:  path.Join(filepath.ToSlash(cfg.DocsDir), doc),
		})
	}
	return targets, nil
}
