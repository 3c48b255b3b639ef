package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	return store, store.Root()
}

func TestNewLocalStore_Errors(t *testing.T) {
	_, err := NewLocalStore("")
	assert.Error(t, err)

	_, err = NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = NewLocalStore(file)
	assert.Error(t, err)
}

func TestLocalStore_ReadWriteRoundTrip(t *testing.T) {
	store, root := newTestStore(t)

	path := filepath.Join(root, "pkg", "mod.py")
	require.NoError(t, store.Write(path, "x = 1\n"))

	content, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", content)

	// Relative paths resolve against the root
	content, err = store.Read("pkg/mod.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", content)
}

func TestLocalStore_ReadNotFound(t *testing.T) {
	store, root := newTestStore(t)

	_, err := store.Read(filepath.Join(root, "nope.py"))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	// Directories are not readable files
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))
	_, err = store.Read(filepath.Join(root, "dir"))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestLocalStore_DeniesEscapes(t *testing.T) {
	store, root := newTestStore(t)
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0644))

	paths := []string{
		outsideFile,
		"../../../etc/passwd",
		filepath.Join(root, "..", filepath.Base(outside), "secret.txt"),
		root + "-sibling/file.py",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			_, err := store.Read(p)
			assert.True(t, errors.Is(err, ErrAccessDenied), "read %s: got %v", p, err)

			err = store.Write(p, "pwned")
			assert.True(t, errors.Is(err, ErrAccessDenied), "write %s: got %v", p, err)
		})
	}

	// Nothing was written outside the root
	data, err := os.ReadFile(outsideFile)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))
	_, err = os.Stat(root + "-sibling")
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_DeniesSymlinkEscape(t *testing.T) {
	store, root := newTestStore(t)
	outside := t.TempDir()

	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	err := store.Write(filepath.Join(link, "x.py"), "pwned")
	assert.True(t, errors.Is(err, ErrAccessDenied), "got %v", err)
	_, err = os.Stat(filepath.Join(outside, "x.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_WritePreservesMode(t *testing.T) {
	store, root := newTestStore(t)
	path := filepath.Join(root, "run.py")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0600))

	require.NoError(t, store.Write(path, "b"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLocalStore_Contains(t *testing.T) {
	store, root := newTestStore(t)
	assert.True(t, store.Contains(root))
	assert.True(t, store.Contains(filepath.Join(root, "a", "b.py")))
	assert.False(t, store.Contains(filepath.Dir(root)))
	assert.False(t, store.Contains(""))
}
