package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/rqm/config"
	"github.com/c360studio/rqm/ident"
	"github.com/c360studio/rqm/scanner"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DocsDir = filepath.Join(root, "requirements")
	cfg.SourceDir = filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(cfg.DocsDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	return cfg
}

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuilder_Build(t *testing.T) {
	cfg := testConfig(t)

	write(t, cfg.DocsDir, "input.md", `# Molecular Input <!-- rq-00000001 -->

## Parsing <!-- rq-00000002 -->

## API <!-- rq-00000003 -->

- `+"`parse_input`"+` reads the file <!-- rq-00000004 -->
`)
	write(t, cfg.SourceDir, "input.rs", "// rq-00000002\nfn parse() {}\n// rq-00000002 again, same file\n")

	reg, conflicts, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Len(t, reg.Entries, 4)

	file := reg.Entries["rq-00000001"]
	require.NotNil(t, file)
	assert.Equal(t, scanner.KindFile, file.Kind)
	assert.Equal(t, "input", file.Doc)
	assert.Equal(t, "Molecular Input", file.Title)
	assert.Equal(t, "# Molecular Input", file.Decl)
	assert.Zero(t, file.Depth)

	section := reg.Entries["rq-00000002"]
	require.NotNil(t, section)
	assert.Equal(t, 2, section.Depth)
	// Two token occurrences in one source file collapse to one reference.
	require.Len(t, section.Refs, 1)
	assert.Equal(t, RefKindCode, section.Refs[0].Kind)
	assert.Equal(t, filepath.ToSlash(cfg.SourceDir)+"/input.rs", section.Refs[0].File)

	item := reg.Entries["rq-00000004"]
	require.NotNil(t, item)
	assert.Equal(t, scanner.KindAPIItem, item.Kind)
	assert.Equal(t, "`parse_input` reads the file", item.Title)
}

func TestBuilder_SkipsUnstampedEntities(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.DocsDir, "input.md", "# Unstamped Title\n\n## Unstamped Section\n")

	reg, conflicts, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.Empty(t, conflicts)
	assert.Empty(t, reg.Entries)
}

func TestBuilder_OwnDeclarationIsNotAReference(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.DocsDir, "input.md", "# Input <!-- rq-00000001 -->\n")
	write(t, cfg.DocsDir, "basis.md", "# Basis <!-- rq-00000002 -->\n\nSee also rq-00000001.\n")

	reg, conflicts, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.Empty(t, conflicts)

	// input.md declares rq-00000001; only basis.md references it.
	refs := reg.Entries["rq-00000001"].Refs
	require.Len(t, refs, 1)
	assert.Equal(t, filepath.ToSlash(cfg.DocsDir)+"/basis.md", refs[0].File)

	assert.Empty(t, reg.Entries["rq-00000002"].Refs)
}

func TestBuilder_DuplicateConflict(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.DocsDir, "a.md", "## Feature API <!-- rq-deadbeef -->\n")
	write(t, cfg.DocsDir, "b.md", "## New Section <!-- rq-deadbeef -->\n")

	// Prior registry anchors the original declaration.
	prior := New()
	prior.Entries["rq-deadbeef"] = &Entry{
		Kind: scanner.KindSection, Doc: "a", Title: "Feature API",
		Decl: "## Feature API", Depth: 2,
	}
	require.NoError(t, prior.Save(cfg.RegistryPath()))
	before, err := os.ReadFile(cfg.RegistryPath())
	require.NoError(t, err)

	reg, conflicts, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	assert.Nil(t, reg)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, ident.ID("rq-deadbeef"), c.ID)
	require.Len(t, c.Occurrences, 2)
	assert.Equal(t, "a.md", c.Occurrences[0].File)
	assert.Equal(t, "## Feature API", c.Occurrences[0].Decl)
	assert.Equal(t, "b.md", c.Occurrences[1].File)
	assert.Equal(t, 0, c.Original, "declaration matching the stored decl is the likely original")

	// The previous registry file must be untouched.
	after, err := os.ReadFile(cfg.RegistryPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestBuilder_DuplicateConflictWithoutPriorRegistry(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.DocsDir, "a.md", "## Same <!-- rq-deadbeef -->\n")
	write(t, cfg.DocsDir, "b.md", "## Same <!-- rq-deadbeef -->\n")

	_, conflicts, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, -1, conflicts[0].Original, "no prior registry means unresolvable by inspection")
}

func TestBuilder_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.DocsDir, "input.md", "# Input <!-- rq-00000001 -->\n\n## Parsing <!-- rq-00000002 -->\n")
	write(t, cfg.SourceDir, "input.rs", "// rq-00000002\n")

	reg, _, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.NoError(t, reg.Save(cfg.RegistryPath()))
	first, err := os.ReadFile(cfg.RegistryPath())
	require.NoError(t, err)

	reg2, _, err := NewBuilder(cfg, nil).Build()
	require.NoError(t, err)
	require.NoError(t, reg2.Save(cfg.RegistryPath()))
	second, err := os.ReadFile(cfg.RegistryPath())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "rebuilding an unchanged corpus must be byte-identical")
}
