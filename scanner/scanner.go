// Package scanner implements the line-oriented finite-state scanner
// shared by the stamper and the registry builder, plus the literal
// reference scanner used for cross-file identifier lookups.
package scanner

import (
	"regexp"
	"strings"

	"github.com/c360studio/rqm/ident"
)

// Options tune document structure recognition.
type Options struct {
	// APISection is the depth-2 heading title whose body holds API
	// item bullets.
	APISection string

	// ScenarioLang is the fence language treated as executable
	// scenario syntax.
	ScenarioLang string
}

// DefaultOptions returns the conventional recognition settings.
func DefaultOptions() Options {
	return Options{
		APISection:   "API",
		ScenarioLang: "gherkin",
	}
}

// state enumerates the scanner's fence context.
type state int

const (
	stateNormal state = iota
	stateScenarioFence
	stateOtherFence
)

var (
	headingPattern  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	bulletPattern   = regexp.MustCompile(`^[-*]\s+(.*)$`)
	quotedIdent     = regexp.MustCompile("`[^`]+`")
	scenarioPattern = regexp.MustCompile(`^(\s*)Scenario:\s*(.*)$`)
	fenceOpen       = regexp.MustCompile("^```([A-Za-z0-9_+-]*)\\s*$")
	trailingTag     = regexp.MustCompile(`\s*<!--\s*(rq-[0-9a-f]{8})\s*-->\s*$`)
	scenarioTag     = regexp.MustCompile(`^\s*@(rq-[0-9a-f]{8})\s*$`)
)

// Scan classifies every line of a document into structural entities
// in a single pass. Lines inside fenced blocks other than the
// scenario syntax are passed through unclassified.
func Scan(lines []string, opts Options) []Entity {
	if opts.APISection == "" {
		opts.APISection = "API"
	}
	if opts.ScenarioLang == "" {
		opts.ScenarioLang = "gherkin"
	}

	var entities []Entity
	st := stateNormal
	inAPI := false

	for i, line := range lines {
		switch st {
		case stateScenarioFence:
			if isFenceClose(line) {
				st = stateNormal
				continue
			}
			if m := scenarioPattern.FindStringSubmatch(line); m != nil {
				e := Entity{
					Kind:    KindScenario,
					Line:    i,
					Raw:     line,
					Indent:  m[1],
					Title:   strings.TrimSpace(m[2]),
					TagLine: -1,
				}
				// An existing tag immediately above means the
				// scenario is already stamped.
				if i > 0 {
					if tm := scenarioTag.FindStringSubmatch(lines[i-1]); tm != nil {
						e.ID = ident.ID(tm[1])
						e.TagLine = i - 1
					}
				}
				entities = append(entities, e)
			}

		case stateOtherFence:
			if isFenceClose(line) {
				st = stateNormal
			}

		case stateNormal:
			if m := fenceOpen.FindStringSubmatch(line); m != nil {
				if m[1] == opts.ScenarioLang {
					st = stateScenarioFence
				} else {
					st = stateOtherFence
				}
				continue
			}
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				depth := len(m[1])
				title, id := stripTag(m[2])
				kind := KindSection
				switch depth {
				case 1:
					kind = KindFile
					inAPI = false
				case 2:
					inAPI = title == opts.APISection
				}
				entities = append(entities, Entity{
					Kind:    kind,
					Line:    i,
					Raw:     line,
					ID:      id,
					Depth:   depth,
					Title:   title,
					TagLine: -1,
				})
				continue
			}
			if inAPI {
				// Only top-level bullets count; indented sub-bullets
				// fail the column-0 anchor.
				if m := bulletPattern.FindStringSubmatch(line); m != nil {
					text, id := stripTag(m[1])
					if quotedIdent.MatchString(text) {
						entities = append(entities, Entity{
							Kind:    KindAPIItem,
							Line:    i,
							Raw:     line,
							ID:      id,
							Title:   text,
							TagLine: -1,
						})
					}
				}
			}
		}
	}

	return entities
}

// isFenceClose reports whether line is a bare closing fence.
func isFenceClose(line string) bool {
	return strings.TrimRight(line, " \t") == "```"
}

// stripTag splits a trailing identifier annotation off a line
// fragment, returning the stripped text and the identifier, if any.
func stripTag(s string) (string, ident.ID) {
	if m := trailingTag.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(strings.TrimSuffix(s, m[0])), ident.ID(m[1])
	}
	return strings.TrimSpace(s), ""
}
