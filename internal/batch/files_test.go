package batch

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImages(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"cover.png", "Backdrop.kra", "albedo.webp", "readme.md", "sketch.ora"} {
		require.NoError(t, util.WriteFile(fs, "/work/"+name, []byte("x"), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/work/nested", 0o755))

	names, err := ListImages(fs, "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"albedo.webp", "Backdrop.kra", "cover.png", "sketch.ora"}, names)

	_, err = ListImages(fs, "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read directory /missing")
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.kra"))
	assert.True(t, IsImage("b.jpeg"))
	assert.False(t, IsImage("c.txt"))
	assert.False(t, IsImage("noext"))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "c", Stem("/a/b/c.kra"))
	assert.Equal(t, "x.y", Stem("x.y.png"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestRenameImage(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/work/old.kra", []byte("doc"), 0o644))

	dst, err := RenameImage(fs, "/work", "old.kra", "new")
	require.NoError(t, err)
	assert.Equal(t, "/work/new.kra", dst)
	data, err := util.ReadFile(fs, dst)
	require.NoError(t, err)
	assert.Equal(t, "doc", string(data))

	// Typing the extension is fine too.
	_, err = RenameImage(fs, "/work", "new.kra", "newer.kra")
	require.NoError(t, err)
	_, err = fs.Stat("/work/newer.kra")
	require.NoError(t, err)
}

func TestRenameImageTargetExists(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/work/a.kra", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/work/b.kra", []byte("b"), 0o644))

	_, err := RenameImage(fs, "/work", "a.kra", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetExists))

	// Nothing moved.
	data, err := util.ReadFile(fs, "/work/b.kra")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestDeleteImages(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/work/a.kra", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/work/b.kra", []byte("b"), 0o644))

	err := DeleteImages(fs, []string{"/work/a.kra", "/work/missing.kra", "/work/b.kra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not delete /work/missing.kra")

	// Best-effort: the files that could be removed are gone.
	_, statErr := fs.Stat("/work/a.kra")
	assert.Error(t, statErr)
	_, statErr = fs.Stat("/work/b.kra")
	assert.Error(t, statErr)
}
