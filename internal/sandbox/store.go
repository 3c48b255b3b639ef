package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore is a FileStore backed by the local filesystem
type LocalStore struct {
	root string
}

// Compile-time check that LocalStore implements FileStore
var _ FileStore = (*LocalStore)(nil)

// NewLocalStore creates a store confined to root. The root must exist and be a directory.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root %s: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", root)
	}
	return &LocalStore{root: resolved}, nil
}

// Root returns the absolute, symlink-resolved sandbox root
func (s *LocalStore) Root() string {
	return s.root
}

// Read returns the content of path
func (s *LocalStore) Read(path string) (string, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(resolved)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Write replaces the content of path, creating parent directories as needed
func (s *LocalStore) Write(path, content string) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("write %s: failed to create directory: %w", path, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(resolved); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(resolved, []byte(content), mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Resolve maps path to an absolute location and checks it is inside the root.
// Relative paths are taken relative to the root. Symlinks in the existing
// part of the path are resolved so a link cannot escape the sandbox.
func (s *LocalStore) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", ErrAccessDenied)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, abs)
	}
	abs = filepath.Clean(abs)

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", err
	}
	if !s.contains(resolved) {
		return "", ErrAccessDenied
	}
	return resolved, nil
}

// Contains reports whether path resolves inside the sandbox root
func (s *LocalStore) Contains(path string) bool {
	_, err := s.Resolve(path)
	return err == nil
}

func (s *LocalStore) contains(abs string) bool {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting resolves symlinks on the longest existing prefix of abs
// and re-appends the non-existent remainder.
func resolveExisting(abs string) (string, error) {
	existing := abs
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", abs, err)
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}
