package provider

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/store"
	"github.com/roach88/keyringdb/internal/testutil"
)

func openTestdata(t *testing.T, name string) io.Reader {
	t.Helper()

	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestOpenBlob(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "export.gpg"), []byte("blob bytes"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o700))

	outside := filepath.Join(t.TempDir(), "outside")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	s := testutil.OpenStore(t, store.DriverSQLite3)
	p, _ := newProvider(t, s, WithBlobRoot(root))
	ctx := context.Background()

	f, err := p.OpenBlob(ctx, "data/export.gpg")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "blob bytes", string(data))

	for _, addr := range []string{
		"data/missing",
		"data/..",
		"data/.",
		"data/subdir",
		"data/escape",
		"keyrings/public",
		"data",
	} {
		_, err := p.OpenBlob(ctx, addr)
		assert.ErrorIs(t, err, ErrNotFound, addr)
		assert.ErrorIs(t, err, fs.ErrNotExist, addr)
	}
}

func TestOpenBlob_NoRoot(t *testing.T) {
	s := testutil.OpenStore(t, store.DriverSQLite3)
	p, _ := newProvider(t, s)

	_, err := p.OpenBlob(context.Background(), "data/export.gpg")
	assert.ErrorIs(t, err, ErrNotFound)
}
