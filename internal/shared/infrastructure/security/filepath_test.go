package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := ValidateFilePath("")
		assert.ErrorContains(t, err, "cannot be empty")
	})

	t.Run("rejects dangerous shell characters", func(t *testing.T) {
		for _, char := range dangerousChars {
			_, err := ValidateFilePath("/tmp/studiobook" + char + ".db")
			assert.ErrorContains(t, err, "forbidden character", "character %q", char)
		}
	})

	t.Run("keeps a database file that does not exist yet", func(t *testing.T) {
		dir := t.TempDir()
		path, err := ValidateFilePath(filepath.Join(dir, "sub", "..", "studiobook.db"))
		require.NoError(t, err)
		assert.Equal(t, "studiobook.db", filepath.Base(path))
		assert.True(t, filepath.IsAbs(path))
	})

	t.Run("resolves symlinks", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "real.db")
		require.NoError(t, os.WriteFile(target, nil, 0o600))
		link := filepath.Join(dir, "link.db")
		require.NoError(t, os.Symlink(target, link))

		resolved, err := ValidateFilePath(link)
		require.NoError(t, err)
		expected, err := filepath.EvalSymlinks(target)
		require.NoError(t, err)
		assert.Equal(t, expected, resolved)
	})

	t.Run("relative paths become absolute", func(t *testing.T) {
		path, err := ValidateFilePath("data/studiobook.db")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(path))
	})
}
