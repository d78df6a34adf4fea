// Package corpus discovers the requirement documents and the
// implementation source files the tool operates on.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Documents returns every markdown document under root, sorted, as
// slash-separated paths relative to root. A missing root yields an
// empty corpus, not an error.
func Documents(root string) ([]string, error) {
	if !dirExists(root) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.md")
	if err != nil {
		return nil, fmt.Errorf("glob documents under %s: %w", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Sources returns every implementation source file under root with
// one of the given extensions, sorted and deduplicated, as
// slash-separated paths relative to root.
func Sources(root string, extensions []string) ([]string, error) {
	if !dirExists(root) {
		return nil, nil
	}

	seen := make(map[string]bool)
	var files []string
	for _, ext := range extensions {
		matches, err := doublestar.Glob(os.DirFS(root), "**/*"+ext)
		if err != nil {
			return nil, fmt.Errorf("glob sources under %s: %w", root, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && info.IsDir()
}
