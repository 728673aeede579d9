package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// DefaultPath is the config path used when none is given.
	DefaultPath = "config.yaml"

	// AppDirName is the directory name under the XDG config home.
	AppDirName = "obstrigger"
)

// Locate returns the config file to load. An explicit path is returned as is.
// The default path falls back to $XDG_CONFIG_HOME/obstrigger/config.yaml when
// it does not exist in the working directory.
func Locate(path string) string {
	if path != DefaultPath || exists(path) {
		return path
	}

	candidate := filepath.Join(xdg.ConfigHome, AppDirName, DefaultPath)
	if exists(candidate) {
		return candidate
	}
	return path
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
