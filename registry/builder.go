package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/corpus"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/scanner"
)

// Occurrence is one declaration of an identifier in the live corpus.
type Occurrence struct {
	// File is the document path relative to the docs root.
	File string
	// Line is 1-based.
	Line int
	// Decl is the declaration line with the annotation stripped.
	Decl string
}

// Conflict reports an identifier declared by more than one entity.
type Conflict struct {
	ID          ident.ID
	Occurrences []Occurrence

	// Original indexes the occurrence whose declaration matches the
	// prior registry; -1 when the conflict is unresolvable by
	// inspection.
	Original int
}

// Builder rebuilds the registry from scratch by rescanning the
// document corpus and the implementation source tree.
type Builder struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewBuilder creates a registry builder for the given configuration.
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build rescans the corpus and returns the rebuilt registry. When
// duplicate identifiers exist it returns the full conflict list and
// a nil registry; the on-disk registry is left untouched in that
// case, and the caller decides when to persist otherwise.
func (b *Builder) Build() (*Registry, []Conflict, error) {
	docs, err := corpus.Documents(b.cfg.DocsDir)
	if err != nil {
		return nil, nil, err
	}

	reg := New()
	declaring := make(map[ident.ID]string)      // id -> declaring doc (docs-root-relative)
	occurrences := make(map[ident.ID][]Occurrence)
	var order []ident.ID // first-seen order for stable conflict reporting

	for _, doc := range docs {
		content, err := os.ReadFile(filepath.Join(b.cfg.DocsDir, filepath.FromSlash(doc)))
		if err != nil {
			return nil, nil, fmt.Errorf("read document %s: %w", doc, err)
		}

		lines := strings.Split(string(content), "\n")
		for _, e := range scanner.Scan(lines, b.cfg.ScanOptions()) {
			if e.ID == "" {
				// Unstamped entities do not exist in the registry yet.
				continue
			}

			if _, dup := occurrences[e.ID]; !dup {
				order = append(order, e.ID)
			}
			occurrences[e.ID] = append(occurrences[e.ID], Occurrence{
				File: doc,
				Line: e.Line + 1,
				Decl: e.Decl(),
			})

			entry := &Entry{
				Kind:  e.Kind,
				Doc:   strings.TrimSuffix(doc, path.Ext(doc)),
				Title: e.Title,
				Decl:  e.Decl(),
			}
			if e.Kind == scanner.KindSection {
				entry.Depth = e.Depth
			}
			reg.Entries[e.ID] = entry
			declaring[e.ID] = doc
		}
	}

	conflicts := b.findConflicts(order, occurrences)
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	if err := b.mergeReferences(reg, docs, declaring); err != nil {
		return nil, nil, err
	}

	b.logger.Info("Registry built",
		"documents", len(docs),
		"entities", len(reg.Entries))

	return reg, nil, nil
}

// findConflicts enumerates every duplicated identifier, marking the
// likely original via the prior on-disk registry's declarations.
func (b *Builder) findConflicts(order []ident.ID, occurrences map[ident.ID][]Occurrence) []Conflict {
	var conflicts []Conflict
	var prior *Registry

	for _, id := range order {
		occs := occurrences[id]
		if len(occs) < 2 {
			continue
		}

		if prior == nil {
			// Loaded lazily: most runs have no conflicts.
			if loaded, err := Load(b.cfg.RegistryPath()); err == nil {
				prior = loaded
			} else {
				prior = New()
			}
		}

		original := -1
		if decl, ok := prior.Decl(id); ok {
			matches := 0
			for i, occ := range occs {
				if occ.Decl == decl {
					matches++
					original = i
				}
			}
			if matches != 1 {
				original = -1
			}
		}

		conflicts = append(conflicts, Conflict{ID: id, Occurrences: occs, Original: original})
	}

	return conflicts
}

// mergeReferences scans every implementation source file and every
// document for identifier tokens and records one deduplicated
// reference per (identifier, file) pair, excluding each identifier's
// own declaring document.
func (b *Builder) mergeReferences(reg *Registry, docs []string, declaring map[ident.ID]string) error {
	sources, err := corpus.Sources(b.cfg.SourceDir, b.cfg.SourceExtensions)
	if err != nil {
		return err
	}

	type scanTarget struct {
		readPath string // filesystem path
		refPath  string // path recorded in the registry
		doc      string // docs-root-relative path, empty for source files
	}

	var targets []scanTarget
	for _, src := range sources {
		targets = append(targets, scanTarget{
			readPath: filepath.Join(b.cfg.SourceDir, filepath.FromSlash(src)),
			refPath:  path.Join(filepath.ToSlash(b.cfg.SourceDir), src),
		})
	}
	for _, doc := range docs {
		targets = append(targets, scanTarget{
			readPath: filepath.Join(b.cfg.DocsDir, filepath.FromSlash(doc)),
			refPath:  path.Join(filepath.ToSlash(b.cfg.DocsDir), doc),
			doc:      doc,
		})
	}

	for _, target := range targets {
		content, err := os.ReadFile(target.readPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", target.readPath, err)
		}

		for _, id := range scanner.ScanRefs(string(content)) {
			entry, known := reg.Entries[id]
			if !known {
				continue
			}
			if target.doc != "" && declaring[id] == target.doc {
				// A document's declaration of its own identifier is
				// not a reference to itself.
				continue
			}
			entry.AddRef(target.refPath)
		}
	}

	return nil
}
