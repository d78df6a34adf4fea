package scanner

import "github.com/c360studio/rqm/ident"

// Kind classifies a structural entity inside a requirement document.
type Kind string

// The four entity kinds eligible for an identifier.
const (
	KindFile     Kind = "file"
	KindSection  Kind = "section"
	KindAPIItem  Kind = "api-item"
	KindScenario Kind = "scenario"
)

// Entity is one structural unit discovered by the document scanner.
type Entity struct {
	// Kind is the entity classification.
	Kind Kind

	// Line is the 0-based index of the entity's line in the scanned
	// document. Reports print it 1-based.
	Line int

	// Raw is the source line, identifier annotation included.
	Raw string

	// ID is the identifier already carried by the entity, empty when
	// the entity is unstamped.
	ID ident.ID

	// Depth is the heading depth (1-3). Zero for non-headings.
	Depth int

	// Title is the human-readable title with any annotation stripped.
	Title string

	// Indent is the leading whitespace of a scenario line. New tag
	// lines reproduce it.
	Indent string

	// TagLine is the 0-based index of an existing scenario tag line,
	// -1 when absent or not applicable.
	TagLine int
}

// Decl returns the entity's declaration line with the identifier
// annotation stripped. Scenario declarations carry their annotation
// on a separate line, so the raw line is already clean.
func (e Entity) Decl() string {
	if e.Kind == KindScenario {
		return e.Raw
	}
	return trailingTag.ReplaceAllString(e.Raw, "")
}
