package audit

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/registry"
	"github.com/c360studio/rqm/scanner"
)

// Removal records one pruned entry or reference.
type Removal struct {
	ID ident.ID

	// File is the referencing file for a reference removal; empty
	// when the whole entry was dropped.
	File string

	Reason string
}

// CleanResult reports a cleanup run.
type CleanResult struct {
	Removed []Removal
	Changed bool
}

// Clean prunes the persisted registry of entries whose documents or
// identifier annotations are gone and of references whose files no
// longer mention the identifier. The filtered registry is persisted
// only when something changed.
func Clean(cfg *config.Config, logger *slog.Logger) (*CleanResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		return nil, err
	}

	result := &CleanResult{}

	for _, id := range reg.IDs() {
		entry := reg.Entries[id]
		docPath := filepath.Join(cfg.DocsDir, filepath.FromSlash(entry.Doc)+".md")

		present, err := fileContains(docPath, id)
		if err != nil {
			return nil, err
		}

		switch {
		case present == fileMissing:
			delete(reg.Entries, id)
			result.Removed = append(result.Removed, Removal{
				ID:     id,
				Reason: "document " + docPath + " no longer exists",
			})
			continue
		case present == tokenAbsent:
			delete(reg.Entries, id)
			result.Removed = append(result.Removed, Removal{
				ID:     id,
				Reason: "identifier no longer declared in " + docPath,
			})
			continue
		}

		kept := entry.Refs[:0]
		for _, ref := range entry.Refs {
			refPresent, err := fileContains(filepath.FromSlash(ref.File), id)
			if err != nil {
				return nil, err
			}
			switch refPresent {
			case fileMissing:
				result.Removed = append(result.Removed, Removal{
					ID:     id,
					File:   ref.File,
					Reason: "referencing file no longer exists",
				})
			case tokenAbsent:
				result.Removed = append(result.Removed, Removal{
					ID:     id,
					File:   ref.File,
					Reason: "file no longer mentions the identifier",
				})
			default:
				kept = append(kept, ref)
			}
		}
		entry.Refs = kept
	}

	result.Changed = len(result.Removed) > 0
	if result.Changed {
		if err := reg.Save(cfg.RegistryPath()); err != nil {
			return nil, err
		}
	}

	logger.Info("Cleanup complete",
		"removed", len(result.Removed),
		"changed", result.Changed)

	return result, nil
}

// presence classifies a token lookup in a file.
type presence int

const (
	tokenPresent presence = iota
	tokenAbsent
	fileMissing
)

// fileContains reports whether path exists and contains the
// identifier token.
func fileContains(path string, id ident.ID) (presence, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileMissing, nil
	}
	if err != nil {
		return fileMissing, err
	}

	for _, found := range scanner.ScanRefs(string(content)) {
		if found == id {
			return tokenPresent, nil
		}
	}
	return tokenAbsent, nil
}
