// Package stamp inserts missing identifiers into requirement
// documents and repairs duplicated identifiers.
package stamp

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/corpus"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/scanner"
)

// Result summarizes one stamping run.
type Result struct {
	// Stamped counts the identifiers inserted.
	Stamped int

	// Files lists the documents rewritten.
	Files []string
}

// Stamper stamps identifiers into documents.
type Stamper struct {
	cfg    *config.Config
	gen    *ident.Generator
	logger *slog.Logger
}

// New creates a Stamper. A nil generator uses crypto/rand.
func New(cfg *config.Config, gen *ident.Generator, logger *slog.Logger) *Stamper {
	if gen == nil {
		gen = ident.NewGenerator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stamper{cfg: cfg, gen: gen, logger: logger}
}

// document is a target file loaded into memory.
type document struct {
	path    string
	content string
}

// resolve expands the file arguments to concrete document paths and
// loads their contents. With no arguments every requirement document
// under the docs root is targeted.
func (s *Stamper) resolve(files []string) ([]document, error) {
	if len(files) == 0 {
		docs, err := corpus.Documents(s.cfg.DocsDir)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			files = append(files, filepath.Join(s.cfg.DocsDir, filepath.FromSlash(doc)))
		}
	}

	loaded := make([]document, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}
		loaded = append(loaded, document{path: path, content: string(content)})
	}
	return loaded, nil
}

// preload seeds the seen set with every identifier token already
// present across the whole target set, so fresh identifiers are
// unique across the batch, not just per file.
func preload(docs []document) map[ident.ID]bool {
	seen := make(map[ident.ID]bool)
	for _, doc := range docs {
		for _, id := range scanner.ScanRefs(doc.content) {
			seen[id] = true
		}
	}
	return seen
}

// Run stamps every entity lacking a valid identifier in the given
// documents (filesystem paths; empty means the whole docs root).
// Entities that already carry an identifier are left byte-for-byte
// unchanged, so a second run over a stamped corpus is a no-op.
func (s *Stamper) Run(files []string) (*Result, error) {
	docs, err := s.resolve(files)
	if err != nil {
		return nil, err
	}

	seen := preload(docs)
	result := &Result{}

	for _, doc := range docs {
		stamped, changed, err := s.stampDocument(doc, seen)
		if err != nil {
			return nil, err
		}
		result.Stamped += stamped
		if changed {
			result.Files = append(result.Files, doc.path)
		}
	}

	s.logger.Info("Stamp run complete",
		"documents", len(docs),
		"stamped", result.Stamped,
		"rewritten", len(result.Files))

	return result, nil
}

// stampDocument stamps one document and writes it back when at least
// one entity changed.
func (s *Stamper) stampDocument(doc document, seen map[ident.ID]bool) (int, bool, error) {
	lines := strings.Split(doc.content, "\n")
	entities := scanner.Scan(lines, s.cfg.ScanOptions())

	replaces := make(map[int]string)
	inserts := make(map[int]string)

	for _, e := range entities {
		if e.ID != "" {
			continue
		}

		id, err := s.gen.Fresh(seen)
		if err != nil {
			return 0, false, fmt.Errorf("stamp %s: %w", doc.path, err)
		}

		switch e.Kind {
		case scanner.KindScenario:
			// The tag line goes immediately before the scenario line,
			// at the scenario's indentation.
			inserts[e.Line] = e.Indent + "@" + id.String()
		default:
			replaces[e.Line] = e.Raw + " <!-- " + id.String() + " -->"
		}
	}

	if len(replaces) == 0 && len(inserts) == 0 {
		return 0, false, nil
	}

	out := make([]string, 0, len(lines)+len(inserts))
	for i, line := range lines {
		if tag, ok := inserts[i]; ok {
			out = append(out, tag)
		}
		if rep, ok := replaces[i]; ok {
			line = rep
		}
		out = append(out, line)
	}

	if err := os.WriteFile(doc.path, []byte(strings.Join(out, "\n")), 0o644); err != nil {
		return 0, false, fmt.Errorf("write document %s: %w", doc.path, err)
	}

	return len(replaces) + len(inserts), true, nil
}
