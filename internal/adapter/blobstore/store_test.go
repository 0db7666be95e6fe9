package blobstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data []byte
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestStore_SaveAndExists(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Exists(ctx, "GEDI02_A_2020001.h5")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Save(ctx, "GEDI02_A_2020001.h5", strings.NewReader("\x89HDF\r\n\x1a\n payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)

	ok, err = s.Exists(ctx, "GEDI02_A_2020001.h5")
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := s.Size(ctx, "GEDI02_A_2020001.h5")
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)
	assert.Equal(t, "mem://", s.URL())
}

func TestStore_SaveFailureLeavesNoObject(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(ctx, "partial.h5", &failingReader{data: []byte("abc")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	ok, err := s.Exists(ctx, "partial.h5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_FileBucket(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "gedi_data")

	s, err := Open(ctx, "file://"+filepath.ToSlash(dir)+"?create_dir=true")
	require.NoError(t, err)

	_, err = s.Save(ctx, "granule.h5", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, "granule.h5"))
}

func TestOpen_UnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "bogus://bucket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open bucket")
}

