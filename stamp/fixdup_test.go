package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/registry"
	"github.com/c360studio/rqm/scanner"
)

func storeDecl(t *testing.T, cfg *config.Config, id ident.ID, decl string) {
	t.Helper()
	reg := registry.New()
	reg.Entries[id] = &registry.Entry{
		Kind:  scanner.KindSection,
		Doc:   "a",
		Title: "Feature API",
		Decl:  decl,
		Depth: 2,
	}
	require.NoError(t, reg.Save(cfg.RegistryPath()))
}

func TestFixDuplicates_Resolvable(t *testing.T) {
	cfg := testConfig(t)
	a := writeDoc(t, cfg, "a.md", "## Feature API <!-- rq-deadbeef -->\n")
	b := writeDoc(t, cfg, "b.md", "## New Section <!-- rq-deadbeef -->\n")
	storeDecl(t, cfg, "rq-deadbeef", "## Feature API")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Empty(t, result.Unresolved)
	require.Len(t, result.Fixes, 1)

	fix := result.Fixes[0]
	assert.Equal(t, ident.ID("rq-deadbeef"), fix.ID)
	assert.Equal(t, ident.ID("rq-00000001"), fix.NewID)
	assert.Equal(t, b, fix.File)
	assert.Equal(t, 1, fix.Line)

	// The matching occurrence is untouched; the copy got a fresh identifier.
	assert.Equal(t, "## Feature API <!-- rq-deadbeef -->\n", readDoc(t, a))
	assert.Equal(t, "## New Section <!-- rq-00000001 -->\n", readDoc(t, b))
}

func TestFixDuplicates_NoMatchIsUnresolvable(t *testing.T) {
	cfg := testConfig(t)
	a := writeDoc(t, cfg, "a.md", "## Renamed One <!-- rq-deadbeef -->\n")
	b := writeDoc(t, cfg, "b.md", "## Renamed Two <!-- rq-deadbeef -->\n")
	storeDecl(t, cfg, "rq-deadbeef", "## Feature API")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Empty(t, result.Fixes)
	require.Len(t, result.Unresolved, 1)

	u := result.Unresolved[0]
	assert.Equal(t, ident.ID("rq-deadbeef"), u.ID)
	require.Len(t, u.Occurrences, 2)
	assert.Contains(t, u.Reason, "0 occurrences match")

	// Both occurrences stay unchanged.
	assert.Equal(t, "## Renamed One <!-- rq-deadbeef -->\n", readDoc(t, a))
	assert.Equal(t, "## Renamed Two <!-- rq-deadbeef -->\n", readDoc(t, b))
}

func TestFixDuplicates_IdenticalDeclarationsAreUnresolvable(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.md", "## Feature API <!-- rq-deadbeef -->\n")
	writeDoc(t, cfg, "b.md", "## Feature API <!-- rq-deadbeef -->\n")
	storeDecl(t, cfg, "rq-deadbeef", "## Feature API")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Len(t, result.Unresolved, 1)
	assert.Contains(t, result.Unresolved[0].Reason, "2 occurrences match")
}

func TestFixDuplicates_MissingRegistryIsUnresolvable(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.md", "## One <!-- rq-deadbeef -->\n")
	writeDoc(t, cfg, "b.md", "## Two <!-- rq-deadbeef -->\n")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Len(t, result.Unresolved, 1)
	assert.Contains(t, result.Unresolved[0].Reason, "no stored declaration")
}

func TestFixDuplicates_ThreeOccurrencesAreUnresolvable(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.md", "## One <!-- rq-deadbeef -->\n")
	writeDoc(t, cfg, "b.md", "## Two <!-- rq-deadbeef -->\n")
	writeDoc(t, cfg, "c.md", "## Three <!-- rq-deadbeef -->\n")
	storeDecl(t, cfg, "rq-deadbeef", "## One")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Len(t, result.Unresolved, 1)
	assert.Contains(t, result.Unresolved[0].Reason, "declared 3 times")
	assert.Len(t, result.Unresolved[0].Occurrences, 3)
}

func TestFixDuplicates_UniqueIdentifiersUntouched(t *testing.T) {
	cfg := testConfig(t)
	a := writeDoc(t, cfg, "a.md", "## One <!-- rq-00000001 -->\n## Two <!-- rq-00000002 -->\n")

	s := New(cfg, ident.NewGenerator(&countingSource{next: 9}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Fixes)
	assert.Empty(t, result.Unresolved)
	assert.Equal(t, "## One <!-- rq-00000001 -->\n## Two <!-- rq-00000002 -->\n", readDoc(t, a))
}

func TestFixDuplicates_ScenarioTagLineRewritten(t *testing.T) {
	cfg := testConfig(t)
	a := writeDoc(t, cfg, "a.md", "```gherkin\n  @rq-deadbeef\n  Scenario: original\n```\n")
	b := writeDoc(t, cfg, "b.md", "```gherkin\n  @rq-deadbeef\n  Scenario: copied\n```\n")

	reg := registry.New()
	reg.Entries["rq-deadbeef"] = &registry.Entry{
		Kind: scanner.KindScenario, Doc: "a", Title: "original",
		Decl: "  Scenario: original",
	}
	require.NoError(t, reg.Save(cfg.RegistryPath()))

	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Len(t, result.Fixes, 1)

	assert.Contains(t, readDoc(t, a), "@rq-deadbeef")
	got := readDoc(t, b)
	assert.Contains(t, got, "  @rq-00000001\n  Scenario: copied")
	assert.NotContains(t, got, "rq-deadbeef")
}

func TestFixDuplicates_NewIdentifierAvoidsBatchTokens(t *testing.T) {
	cfg := testConfig(t)
	writeDoc(t, cfg, "a.md", "## Feature API <!-- rq-deadbeef -->\n\nMentions rq-00000001 in passing.\n")
	b := writeDoc(t, cfg, "b.md", "## New Section <!-- rq-deadbeef -->\n")
	storeDecl(t, cfg, "rq-deadbeef", "## Feature API")

	// rq-00000001 is present as a reference token, so the fresh
	// identifier must skip past it.
	s := New(cfg, ident.NewGenerator(&countingSource{next: 1}), nil)
	result, err := s.FixDuplicates(nil)
	require.NoError(t, err)
	require.Len(t, result.Fixes, 1)
	assert.Equal(t, ident.ID("rq-00000002"), result.Fixes[0].NewID)
	assert.Contains(t, readDoc(t, b), "rq-00000002")
}
