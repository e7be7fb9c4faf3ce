//go:build !windows && !darwin

package util

import (
	"os"
	"path/filepath"
	"strings"
)

// Unix/Linux layout:
//   - Config: $XDG_CONFIG_HOME/<AppName> (default ~/.config/<AppName>)
//   - Cache:  $XDG_CACHE_HOME/<AppName>  (default ~/.cache/<AppName>)
//   - Logs:   ~/.log/<AppName>
func platformDirs(appName string) baseDirs {
	home := unixHomeDir()
	name := sanitizeAppNameForPath(appName)

	configRoot := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configRoot == "" {
		configRoot = filepath.Join(home, ".config")
	}
	cacheRoot := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME"))
	if cacheRoot == "" {
		cacheRoot = filepath.Join(home, ".cache")
	}
	return baseDirs{
		Config: filepath.Join(configRoot, name),
		Cache:  filepath.Join(cacheRoot, name),
		Log:    filepath.Join(home, ".log", name),
	}
}

func unixHomeDir() string {
	if h := strings.TrimSpace(os.Getenv("HOME")); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil && strings.TrimSpace(h) != "" {
		return h
	}
	return "."
}

func sanitizeAppNameForPath(name string) string {
	n := strings.NewReplacer("/", "-", "\\", "-", "\x00", "").Replace(strings.TrimSpace(name))
	if n = strings.TrimSpace(n); n == "" {
		return defaultAppName
	}
	return n
}
