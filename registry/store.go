package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/c360studio/rqm/ident"
)

// ErrNoRegistry is returned when the registry file does not exist.
var ErrNoRegistry = errors.New(`registry not found; run "rqm index" first`)

// Load reads the registry at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRegistry
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	entries := make(map[ident.ID]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	return &Registry{Entries: entries}, nil
}

// Save writes the registry to path atomically: a temp file in the
// target directory followed by a rename, so a crash mid-write cannot
// corrupt the previous registry. Map keys serialize in sorted order,
// making an unchanged registry round-trip byte-identical.
func (r *Registry) Save(path string) error {
	r.normalize()

	data, err := json.MarshalIndent(r.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp registry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry: %w", err)
	}

	return nil
}
