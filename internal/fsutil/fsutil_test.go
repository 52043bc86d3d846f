package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
}

func TestCopyDir(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seed(t, fsys, map[string]string{
		"/src/a.txt":         "a",
		"/src/nested/b.txt":  "bb",
		"/src/nested/c/d.cs": "ddd",
	})

	require.NoError(t, CopyDir(fsys, "/src", "/dst"))

	for rel, want := range map[string]string{"a.txt": "a", "nested/b.txt": "bb", "nested/c/d.cs": "ddd"} {
		got, err := afero.ReadFile(fsys, filepath.Join("/dst", rel))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestCopyDirMissingSource(t *testing.T) {
	fsys := afero.NewMemMapFs()
	assert.Error(t, CopyDir(fsys, "/nope", "/dst"))
}

func TestReplaceDirRemovesStaleFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seed(t, fsys, map[string]string{
		"/src/new.txt":   "new",
		"/dst/stale.txt": "old",
	})

	require.NoError(t, ReplaceDir(fsys, "/src", "/dst"))

	ok, err := Exists(fsys, "/dst/stale.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, IsFile(fsys, "/dst/new.txt"))
}

func TestDirSize(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seed(t, fsys, map[string]string{
		"/root/a":     "12345",
		"/root/b/c":   "123",
		"/root/b/d/e": "12",
	})

	size, err := DirSize(fsys, "/root")
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
	assert.True(t, IsDir(fsys, "/root/b"))
	assert.False(t, IsDir(fsys, "/root/a"))
}
