package stamp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/registry"
	"github.com/c360studio/rqm/scanner"
)

// Fix records one repaired duplicate: the occurrence that did not
// match the stored declaration was reassigned a fresh identifier.
type Fix struct {
	ID    ident.ID
	NewID ident.ID
	File  string
	Line  int // 1-based
}

// Unresolved reports a duplicated identifier that could not be
// repaired by declaration comparison. Both occurrences are left
// unchanged.
type Unresolved struct {
	ID          ident.ID
	Occurrences []registry.Occurrence
	Reason      string
}

// FixResult aggregates a duplicate-fix run. The run succeeds only
// when Unresolved is empty.
type FixResult struct {
	Fixes      []Fix
	Unresolved []Unresolved
}

// dupOccurrence ties a declaration back to its document and entity.
type dupOccurrence struct {
	docIndex int
	entity   scanner.Entity
}

// FixDuplicates repairs identifiers that are duplicated across the
// given documents. For an identifier occurring exactly twice, the
// occurrence whose declaration matches the registry's stored decl is
// the original; the other is reassigned a fresh identifier. Anything
// else is unresolvable and reported without changes.
func (s *Stamper) FixDuplicates(files []string) (*FixResult, error) {
	docs, err := s.resolve(files)
	if err != nil {
		return nil, err
	}

	// The stored registry, if any, anchors duplicate disambiguation.
	// A missing registry just means no declaration can match.
	reg, err := registry.Load(s.cfg.RegistryPath())
	if err != nil {
		reg = registry.New()
	}

	docLines := make([][]string, len(docs))
	occurrences := make(map[ident.ID][]dupOccurrence)
	for i, doc := range docs {
		docLines[i] = strings.Split(doc.content, "\n")
		for _, e := range scanner.Scan(docLines[i], s.cfg.ScanOptions()) {
			if e.ID != "" {
				occurrences[e.ID] = append(occurrences[e.ID], dupOccurrence{docIndex: i, entity: e})
			}
		}
	}

	var dups []ident.ID
	for id, occs := range occurrences {
		if len(occs) > 1 {
			dups = append(dups, id)
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i] < dups[j] })

	seen := preload(docs)
	result := &FixResult{}
	changed := make(map[int]bool)

	for _, id := range dups {
		occs := occurrences[id]

		if len(occs) > 2 {
			result.Unresolved = append(result.Unresolved, Unresolved{
				ID:          id,
				Occurrences: s.report(docs, occs),
				Reason:      fmt.Sprintf("declared %d times; only two-way conflicts can be resolved", len(occs)),
			})
			continue
		}

		decl, stored := reg.Decl(id)
		original := -1
		matches := 0
		if stored {
			for i, occ := range occs {
				if occ.entity.Decl() == decl {
					matches++
					original = i
				}
			}
		}

		if matches != 1 {
			reason := "no stored declaration to compare against"
			if stored {
				reason = fmt.Sprintf("%d occurrences match the stored declaration", matches)
			}
			result.Unresolved = append(result.Unresolved, Unresolved{
				ID:          id,
				Occurrences: s.report(docs, occs),
				Reason:      reason,
			})
			continue
		}

		copyIdx := 1 - original
		occ := occs[copyIdx]
		newID, err := s.gen.Fresh(seen)
		if err != nil {
			return nil, fmt.Errorf("fix %s in %s: %w", id, docs[occ.docIndex].path, err)
		}

		lines := docLines[occ.docIndex]
		target := occ.entity.Line
		if occ.entity.Kind == scanner.KindScenario {
			target = occ.entity.TagLine
		}
		lines[target] = strings.Replace(lines[target], id.String(), newID.String(), 1)
		changed[occ.docIndex] = true

		result.Fixes = append(result.Fixes, Fix{
			ID:    id,
			NewID: newID,
			File:  docs[occ.docIndex].path,
			Line:  occ.entity.Line + 1,
		})
	}

	for i := range docs {
		if !changed[i] {
			continue
		}
		if err := os.WriteFile(docs[i].path, []byte(strings.Join(docLines[i], "\n")), 0o644); err != nil {
			return nil, fmt.Errorf("write document %s: %w", docs[i].path, err)
		}
	}

	s.logger.Info("Duplicate-fix run complete",
		"documents", len(docs),
		"fixed", len(result.Fixes),
		"unresolved", len(result.Unresolved))

	return result, nil
}

// report converts internal occurrences to the reporting form.
func (s *Stamper) report(docs []document, occs []dupOccurrence) []registry.Occurrence {
	out := make([]registry.Occurrence, 0, len(occs))
	for _, occ := range occs {
		out = append(out, registry.Occurrence{
			File: docs[occ.docIndex].path,
			Line: occ.entity.Line + 1,
			Decl: occ.entity.Decl(),
		})
	}
	return out
}
