package config

import (
	"os"
	"path/filepath"
)

// GetRuntimePath resolves RELAY_RUNTIME_PATH against the home directory when relative.
func GetRuntimePath() string {
	path := os.Getenv("RELAY_RUNTIME_PATH")
	if path == "" {
		path = ".tuskrelay"
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}
