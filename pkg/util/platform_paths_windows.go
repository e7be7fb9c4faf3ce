//go:build windows

package util

import (
	"os"
	"path/filepath"
	"strings"
)

// Windows layout:
//   - Config: %APPDATA%/<AppName>
//   - Cache:  %LOCALAPPDATA%/<AppName>/Cache (falls back to the config base)
//   - Logs:   %APPDATA%/<AppName>/Logs
func platformDirs(appName string) baseDirs {
	name := sanitizeAppNameForPath(appName)
	config := filepath.Join(windowsAppDataBase("APPDATA", "Roaming"), name)
	cache := filepath.Join(config, "Cache")
	if local := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); local != "" {
		cache = filepath.Join(local, name, "Cache")
	}
	return baseDirs{
		Config: config,
		Cache:  cache,
		Log:    filepath.Join(config, "Logs"),
	}
}

func windowsAppDataBase(envName, roamingDir string) string {
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, "AppData", roamingDir)
	}
	return "."
}

// sanitizeAppNameForPath replaces characters Windows rejects in directory names
// (<>:"/\|?*) and trims trailing dots and spaces.
func sanitizeAppNameForPath(name string) string {
	n := strings.NewReplacer(
		"/", "-", "\\", "-", "<", "-", ">", "-", ":", "-",
		"\"", "-", "|", "-", "?", "-", "*", "-",
	).Replace(strings.TrimSpace(name))
	n = strings.TrimRight(n, " .")
	if strings.TrimSpace(n) == "" {
		return defaultAppName
	}
	return n
}
