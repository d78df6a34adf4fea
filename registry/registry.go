// Package registry defines the persisted identifier registry and the
// builder that reconstructs it from the live corpus.
package registry

import (
	"sort"

	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/scanner"
)

// RefKindCode is the only reference kind currently recorded.
const RefKindCode = "code"

// Reference records that a file other than an entity's own document
// contains its identifier token. References are deduplicated per
// (identifier, file) pair.
type Reference struct {
	Kind string `json:"kind"`
	File string `json:"file"`
}

// Entry is the registry record for one stamped entity.
type Entry struct {
	// Kind is the entity kind.
	Kind scanner.Kind `json:"kind"`

	// Doc is the owning document path relative to the docs root,
	// extension stripped.
	Doc string `json:"doc"`

	// Title is the entity's human-readable title.
	Title string `json:"title"`

	// Decl is the declaration line as of the last successful rebuild,
	// annotation stripped. It anchors duplicate disambiguation.
	Decl string `json:"decl"`

	// Depth is the heading depth, recorded for sections only.
	Depth int `json:"depth,omitempty"`

	// Refs lists the files referencing this identifier, sorted by file.
	Refs []Reference `json:"refs"`
}

// AddRef records a reference if the (identifier, file) pair is new.
func (e *Entry) AddRef(file string) {
	for _, r := range e.Refs {
		if r.File == file {
			return
		}
	}
	e.Refs = append(e.Refs, Reference{Kind: RefKindCode, File: file})
}

// Registry maps identifiers to their entries.
type Registry struct {
	Entries map[ident.ID]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{Entries: make(map[ident.ID]*Entry)}
}

// IDs returns the registry's identifiers in sorted order.
func (r *Registry) IDs() []ident.ID {
	ids := make([]ident.ID, 0, len(r.Entries))
	for id := range r.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Decl returns the stored declaration for id, if any.
func (r *Registry) Decl(id ident.ID) (string, bool) {
	if r == nil {
		return "", false
	}
	entry, ok := r.Entries[id]
	if !ok {
		return "", false
	}
	return entry.Decl, true
}

// normalize sorts reference sets and replaces nil slices so the
// serialized form is deterministic.
func (r *Registry) normalize() {
	for _, entry := range r.Entries {
		if entry.Refs == nil {
			entry.Refs = []Reference{}
		}
		sort.Slice(entry.Refs, func(i, j int) bool {
			return entry.Refs[i].File < entry.Refs[j].File
		})
	}
}
