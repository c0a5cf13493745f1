package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func samplePackages() []Package {
	return []Package{
		{
			ID:            "af23b8c1-5d13-46c9-8f89-146abcde6721",
			PackageName:   "Box1",
			Description:   "books",
			SenderName:    "A",
			RecipientName: "B",
			PackageStatus: "Pending",
		},
		{
			ID:                    "bd45c2e7-8f31-4c69-a124-567def890123",
			PackageName:           "Crate",
			Description:           "dishes",
			SenderName:            "Alice",
			SenderCountry:         "Norway",
			RecipientName:         "Bob",
			RecipientEmail:        "bob@example.com",
			Quantity:              "2",
			PackageCurrentCountry: "Sweden",
			Image:                 strPtr("/uploads/4b6c-crate.png"),
		},
	}
}

func TestFileStorage_LoadAll(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file yields empty collection", func(t *testing.T) {
		fs := NewFileStorage(filepath.Join(t.TempDir(), "packages.json"))

		pkgs, err := fs.LoadAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, pkgs)
		assert.Empty(t, pkgs)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := NewFileStorage(path).LoadAll(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStorageRead))
	})

	t.Run("empty file is malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := NewFileStorage(path).LoadAll(ctx)
		assert.ErrorIs(t, err, ErrStorageRead)
	})

	t.Run("unreadable path", func(t *testing.T) {
		// a directory can't be read as a file
		_, err := NewFileStorage(t.TempDir()).LoadAll(ctx)
		assert.ErrorIs(t, err, ErrStorageRead)
	})

	t.Run("null image and missing optional fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		raw := `[{"id":"1","packageName":"Box1","description":"books","senderName":"A","recipientName":"B","image":null}]`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

		pkgs, err := NewFileStorage(path).LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, pkgs, 1)
		assert.Equal(t, "Box1", pkgs[0].PackageName)
		assert.Nil(t, pkgs[0].Image)
		assert.Empty(t, pkgs[0].PackageStatus)
	})

	t.Run("numeric and boolean fields load as text", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		raw := `[{"id":"1","packageName":"Box1","quantity":3,"packageCondition":"","description":"books",` +
			`"senderName":"A","senderCountryCode":47,"recipientName":"B","deliveryDate":2.50,"packageStatus":true,"image":null}]`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

		pkgs, err := NewFileStorage(path).LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, pkgs, 1)
		assert.Equal(t, "3", pkgs[0].Quantity)
		assert.Equal(t, "47", pkgs[0].SenderCountryCode)
		assert.Equal(t, "2.50", pkgs[0].DeliveryDate)
		assert.Equal(t, "true", pkgs[0].PackageStatus)
		assert.Empty(t, pkgs[0].PackageCondition)
	})

	t.Run("object in a text field", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		raw := `[{"id":"1","packageName":{"x":1},"description":"books","senderName":"A","recipientName":"B"}]`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

		_, err := NewFileStorage(path).LoadAll(ctx)
		assert.ErrorIs(t, err, ErrStorageRead)
	})
}

func TestFileStorage_SaveAll(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip keeps order and fields", func(t *testing.T) {
		fs := NewFileStorage(filepath.Join(t.TempDir(), "packages.json"))
		want := samplePackages()

		require.NoError(t, fs.SaveAll(ctx, want))

		got, err := fs.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("saving what was loaded is a no-op", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		fs := NewFileStorage(path)
		require.NoError(t, fs.SaveAll(ctx, samplePackages()))
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		loaded, err := fs.LoadAll(ctx)
		require.NoError(t, err)
		require.NoError(t, fs.SaveAll(ctx, loaded))

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("overwrites previous content", func(t *testing.T) {
		fs := NewFileStorage(filepath.Join(t.TempDir(), "packages.json"))
		require.NoError(t, fs.SaveAll(ctx, samplePackages()))
		require.NoError(t, fs.SaveAll(ctx, samplePackages()[:1]))

		got, err := fs.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("human readable array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		fs := NewFileStorage(path)
		require.NoError(t, fs.SaveAll(ctx, samplePackages()[:1]))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "[\n  {\n    \"id\": ")
		assert.Contains(t, string(raw), `"image": null`)
		assert.NotContains(t, string(raw), "senderEmail")
	})

	t.Run("nil collection is stored as empty array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "packages.json")
		require.NoError(t, NewFileStorage(path).SaveAll(ctx, nil))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(raw))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		fs := NewFileStorage(filepath.Join(dir, "packages.json"))
		require.NoError(t, fs.SaveAll(ctx, samplePackages()))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing directory", func(t *testing.T) {
		fs := NewFileStorage(filepath.Join(t.TempDir(), "nope", "packages.json"))

		err := fs.SaveAll(ctx, samplePackages())
		assert.ErrorIs(t, err, ErrStorageWrite)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := NewFileStorage(filepath.Join(t.TempDir(), "packages.json")).SaveAll(cctx, samplePackages())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("starts with seed", func(t *testing.T) {
		m := NewMemoryStorage(samplePackages()...)

		got, err := m.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, samplePackages(), got)
	})

	t.Run("empty by default", func(t *testing.T) {
		got, err := NewMemoryStorage().LoadAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("does not alias caller slices", func(t *testing.T) {
		m := NewMemoryStorage()
		pkgs := samplePackages()
		require.NoError(t, m.SaveAll(ctx, pkgs))

		pkgs[0].PackageName = "changed"
		*pkgs[1].Image = "/uploads/other.png"

		got, err := m.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Box1", got[0].PackageName)
		assert.Equal(t, "/uploads/4b6c-crate.png", *got[1].Image)
	})
}
