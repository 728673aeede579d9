package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	t.Chdir(t.TempDir())

	// Nothing anywhere: default stays as is
	assert.Equal(t, DefaultPath, Locate(DefaultPath))

	// XDG fallback
	xdgPath := filepath.Join(home, AppDirName, DefaultPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(xdgPath), 0o755))
	require.NoError(t, os.WriteFile(xdgPath, []byte("{}"), 0o644))
	assert.Equal(t, xdgPath, Locate(DefaultPath))

	// Working directory wins
	require.NoError(t, os.WriteFile(DefaultPath, []byte("{}"), 0o644))
	assert.Equal(t, DefaultPath, Locate(DefaultPath))

	// Explicit paths are never rewritten
	assert.Equal(t, "custom.yaml", Locate("custom.yaml"))
}
