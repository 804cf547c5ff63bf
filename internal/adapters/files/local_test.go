package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/podcall/internal/core"
)

func TestLocal_AssertWithin(t *testing.T) {
	base := t.TempDir()
	var l Local

	assert.NoError(t, l.AssertWithin(base, filepath.Join(base, "a.wav")))
	assert.NoError(t, l.AssertWithin(base, filepath.Join(base, "p", "e", "a.wav")))

	for _, bad := range []string{
		base,
		filepath.Join(base, ".."),
		filepath.Join(base, "..", "etc", "passwd"),
		filepath.Join(base, "sub", "..", "..", "x"),
		"/etc/passwd",
	} {
		assert.ErrorIs(t, l.AssertWithin(base, bad), core.ErrPathOutsideBase, bad)
	}
}

func TestLocal_AssertWithinSymlinks(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "recordings")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o644))
	inside := filepath.Join(base, "real.wav")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	require.NoError(t, os.Symlink(secret, filepath.Join(base, "seg.wav")))
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "dir")))
	require.NoError(t, os.Symlink(inside, filepath.Join(base, "alias.wav")))

	var l Local
	assert.ErrorIs(t, l.AssertWithin(base, filepath.Join(base, "seg.wav")), core.ErrPathOutsideBase)
	assert.ErrorIs(t, l.AssertWithin(base, filepath.Join(base, "dir", "secret.txt")), core.ErrPathOutsideBase)
	assert.ErrorIs(t, l.AssertWithin(base, filepath.Join(base, "dir", "new.wav")), core.ErrPathOutsideBase)
	assert.NoError(t, l.AssertWithin(base, filepath.Join(base, "alias.wav")))

	// A symlinked base still contains its own entries, existing or not.
	linkedBase := filepath.Join(root, "linked")
	require.NoError(t, os.Symlink(base, linkedBase))
	assert.NoError(t, l.AssertWithin(linkedBase, filepath.Join(linkedBase, "real.wav")))
	assert.NoError(t, l.AssertWithin(linkedBase, filepath.Join(linkedBase, "p", "e", "new.wav")))
}

func TestLocal_CopyAndRemove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFFdata"), 0o644))

	var l Local
	dst := filepath.Join(dir, "out", "nested", "seg.wav")
	n, err := l.Copy(src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(got))

	require.NoError(t, l.Remove(src))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	_, err = l.Copy(filepath.Join(dir, "missing.wav"), dst)
	assert.Error(t, err)
}
