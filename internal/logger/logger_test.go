package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("defaults to info", func(t *testing.T) {
		l, err := New(Config{})
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zap.DebugLevel))
		assert.True(t, l.Core().Enabled(zap.InfoLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "chatty"})
		assert.Error(t, err)
	})

	t.Run("writes to rotated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "parceltrack.log")
		l, err := New(Config{Level: "debug", File: path})
		require.NoError(t, err)

		l.Info("package created", zap.String("id", "pkg-1"))
		_ = l.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"package created"`)
		assert.Contains(t, string(data), `"id":"pkg-1"`)
	})
}
