package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*DiskStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "public", "uploads")
	s, err := NewDiskStore(dir, "/uploads")
	require.NoError(t, err)
	s.newToken = func() string { return "0b5d3c1e" }
	return s, dir
}

func TestDiskStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("writes file and returns reference", func(t *testing.T) {
		s, dir := newTestStore(t)

		ref, err := s.Save(ctx, "box.png", strings.NewReader("png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, "/uploads/0b5d3c1e-box.png", ref)

		data, err := os.ReadFile(filepath.Join(dir, "0b5d3c1e-box.png"))
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("strips client directories", func(t *testing.T) {
		s, dir := newTestStore(t)

		ref, err := s.Save(ctx, `..\..\etc/passwd`, strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "/uploads/0b5d3c1e-passwd", ref)
		assert.FileExists(t, filepath.Join(dir, "0b5d3c1e-passwd"))
	})

	t.Run("never overwrites an existing upload", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Save(ctx, "a.jpg", strings.NewReader("first"))
		require.NoError(t, err)
		_, err = s.Save(ctx, "a.jpg", strings.NewReader("second"))
		assert.Error(t, err)
	})

	t.Run("unique tokens by default", func(t *testing.T) {
		s, err := NewDiskStore(t.TempDir(), "uploads/")
		require.NoError(t, err)

		first, err := s.Save(ctx, "a.jpg", strings.NewReader("1"))
		require.NoError(t, err)
		second, err := s.Save(ctx, "a.jpg", strings.NewReader("2"))
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.True(t, strings.HasPrefix(first, "/uploads/"))
		assert.True(t, strings.HasSuffix(first, "-a.jpg"))
	})

	t.Run("failed copy removes partial file", func(t *testing.T) {
		s, dir := newTestStore(t)

		_, err := s.Save(ctx, "broken.png", failingReader{})
		require.Error(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s, _ := newTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Save(cctx, "a.png", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDiskStore_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes saved upload", func(t *testing.T) {
		s, dir := newTestStore(t)

		ref, err := s.Save(ctx, "box.png", strings.NewReader("png"))
		require.NoError(t, err)
		require.NoError(t, s.Remove(ctx, ref))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("already gone", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.NoError(t, s.Remove(ctx, "/uploads/0b5d3c1e-missing.png"))
	})

	t.Run("refuses references outside the upload directory", func(t *testing.T) {
		s, _ := newTestStore(t)
		for _, ref := range []string{"/elsewhere/a.png", "/uploads/../packages.json", "/uploads/"} {
			assert.ErrorIs(t, s.Remove(ctx, ref), ErrUnknownReference, ref)
		}
	})
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "photo.jpg", sanitizeName("photo.jpg"))
	assert.Equal(t, "photo.jpg", sanitizeName("C:\\Users\\me\\photo.jpg"))
	assert.Equal(t, "upload", sanitizeName(""))
	assert.Equal(t, "upload", sanitizeName(".."))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
