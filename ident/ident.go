// Package ident defines the opaque requirement identifier and the
// collision-checked generator that produces fresh ones.
package ident

import "regexp"

// ID is an opaque requirement identifier: "rq-" followed by exactly
// eight lowercase hexadecimal digits. An ID is never derived from
// content and never reused for a different entity once assigned.
type ID string

// Pattern matches an identifier token embedded in arbitrary text.
// Word boundaries keep longer hex runs from matching partially.
var Pattern = regexp.MustCompile(`\brq-[0-9a-f]{8}\b`)

var exact = regexp.MustCompile(`^rq-[0-9a-f]{8}$`)

// Valid reports whether s is a well-formed identifier token.
func Valid(s string) bool {
	return exact.MatchString(s)
}

func (id ID) String() string {
	return string(id)
}
