package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type brokenTier struct{ err error }

func (b brokenTier) LoadBytes(context.Context) ([]byte, error) { return nil, b.err }
func (b brokenTier) SaveBytes(context.Context, []byte) error   { return b.err }

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "nested", "arkark.db")}

	data, err := fs.LoadBytes(ctx)
	require.NoError(t, err)
	require.Nil(t, data)

	require.NoError(t, fs.SaveBytes(ctx, []byte("image-1")))
	require.NoError(t, fs.SaveBytes(ctx, []byte("image-2")))
	data, err = fs.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("image-2"), data)

	_, err = os.Stat(fs.Path + ".tmp")
	require.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestKVStoreKeepsKeysApart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "arkark.kv")
	a := &KVStore{Path: path, Key: "a"}
	b := &KVStore{Path: path, Key: "b"}

	require.NoError(t, a.SaveBytes(ctx, []byte("alpha")))
	require.NoError(t, b.SaveBytes(ctx, []byte("beta")))

	got, err := a.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), got)
	got, err = b.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), got)

	_, ok, err := a.SavedAt()
	require.NoError(t, err)
	require.True(t, ok)

	missing := &KVStore{Path: path, Key: "missing"}
	got, err = missing.LoadBytes(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTieredFallsBackOnSaveAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := &KVStore{Path: filepath.Join(t.TempDir(), "arkark.kv")}
	g := &Tiered{Primary: brokenTier{err: errors.New("quota exceeded")}, Fallback: kv, Log: zerolog.Nop()}

	require.NoError(t, g.SaveBytes(ctx, []byte("image")))
	got, err := g.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("image"), got)
}

func TestTieredPrefersPrimary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	g := NewTiered(filepath.Join(dir, "arkark.db"), filepath.Join(dir, "arkark.kv"), zerolog.Nop())

	require.NoError(t, g.SaveBytes(ctx, []byte("image")))
	fallback, err := g.Fallback.LoadBytes(ctx)
	require.NoError(t, err)
	require.Nil(t, fallback, "fallback must stay untouched while primary works")

	got, err := g.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("image"), got)
}

func TestTieredEmptyPrimaryReadsFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	kv := &KVStore{Path: filepath.Join(dir, "arkark.kv")}
	require.NoError(t, kv.SaveBytes(ctx, []byte("older image")))
	g := &Tiered{Primary: &FileStore{Path: filepath.Join(dir, "arkark.db")}, Fallback: kv, Log: zerolog.Nop()}

	got, err := g.LoadBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("older image"), got)
}

func TestTieredSurfacesTotalFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	perr := errors.New("primary down")
	ferr := errors.New("fallback down")
	g := &Tiered{Primary: brokenTier{err: perr}, Fallback: brokenTier{err: ferr}, Log: zerolog.Nop()}

	err := g.SaveBytes(ctx, []byte("x"))
	require.ErrorIs(t, err, perr)
	require.ErrorIs(t, err, ferr)

	_, err = g.LoadBytes(ctx)
	require.ErrorIs(t, err, perr)
	require.ErrorIs(t, err, ferr)
}
