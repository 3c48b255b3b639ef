package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// skippedDirs are never descended into during discovery
var skippedDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
}

// DefaultPredicate selects Python sources that are not test files
func DefaultPredicate(relPath string) bool {
	name := path.Base(relPath)
	return strings.HasSuffix(name, ".py") && !strings.HasPrefix(name, "test_")
}

// ExtensionPredicate selects files with one of the given extensions, skipping
// files whose base name starts with any of excludePrefixes.
func ExtensionPredicate(extensions []string, excludePrefixes []string) Predicate {
	return func(relPath string) bool {
		name := path.Base(relPath)
		for _, prefix := range excludePrefixes {
			if prefix != "" && strings.HasPrefix(name, prefix) {
				return false
			}
		}
		ext := path.Ext(name)
		for _, want := range extensions {
			if !strings.HasPrefix(want, ".") {
				want = "." + want
			}
			if strings.EqualFold(ext, want) {
				return true
			}
		}
		return false
	}
}

// Discover walks root in lexical order and returns the absolute paths of
// eligible files. Hidden directories and common dependency folders are skipped.
// A nil predicate means DefaultPredicate.
func Discover(root string, pred Predicate) ([]string, error) {
	if pred == nil {
		pred = DefaultPredicate
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("target directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != abs && (strings.HasPrefix(d.Name(), ".") || skippedDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		if pred(filepath.ToSlash(rel)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}
