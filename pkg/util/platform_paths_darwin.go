//go:build darwin

package util

import (
	"os"
	"path/filepath"
	"strings"
)

// macOS layout:
//   - Config: ~/Library/Preferences/<AppName>
//   - Cache:  ~/Library/Caches/<AppName>
//   - Logs:   ~/Library/Logs/<AppName>
func platformDirs(appName string) baseDirs {
	home := darwinHomeDir()
	name := sanitizeAppNameForPath(appName)
	return baseDirs{
		Config: filepath.Join(home, "Library", "Preferences", name),
		Cache:  filepath.Join(home, "Library", "Caches", name),
		Log:    filepath.Join(home, "Library", "Logs", name),
	}
}

func darwinHomeDir() string {
	if h, err := os.UserHomeDir(); err == nil && strings.TrimSpace(h) != "" {
		return h
	}
	if h := strings.TrimSpace(os.Getenv("HOME")); h != "" {
		return h
	}
	return "."
}

func sanitizeAppNameForPath(name string) string {
	n := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "").Replace(strings.TrimSpace(name))
	if n = strings.TrimSpace(n); n == "" {
		return defaultAppName
	}
	return n
}
