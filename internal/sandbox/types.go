package sandbox

import "errors"

// FileStore reads and writes text content confined to a sandbox root.
// Any path resolving outside the root fails with ErrAccessDenied before
// the filesystem is touched.
type FileStore interface {
	// Read returns the content at path. Fails with ErrNotFound or ErrAccessDenied.
	Read(path string) (string, error)

	// Write replaces the content at path, creating parent directories.
	// Fails with ErrAccessDenied if path falls outside the root.
	Write(path, content string) error

	// Root returns the absolute sandbox root
	Root() string
}

var (
	// ErrAccessDenied is returned for reads or writes outside the sandbox root
	ErrAccessDenied = errors.New("access denied: path outside sandbox root")

	// ErrNotFound is returned when reading a file that does not exist
	ErrNotFound = errors.New("file not found")
)

// Predicate decides whether a discovered file is eligible for processing.
// relPath is relative to the discovery root and uses forward slashes.
type Predicate func(relPath string) bool
