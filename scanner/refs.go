package scanner

import "github.com/c360studio/rqm/ident"

// ScanRefs returns every identifier token in content in order of
// appearance. The scan is literal and structure-independent: it
// works the same on requirement documents and implementation source.
func ScanRefs(content string) []ident.ID {
	var ids []ident.ID
	for _, m := range ident.Pattern.FindAllString(content, -1) {
		ids = append(ids, ident.ID(m))
	}
	return ids
}
