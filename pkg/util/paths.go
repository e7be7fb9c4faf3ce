package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultAppName = "discorddeck"

type baseDirs struct {
	Config string
	Cache  string
	Log    string
}

var (
	pathsMu sync.RWMutex
	appName = defaultAppName
)

// SetAppName sets the application name used for config, cache and log directories.
// Empty names are ignored.
func SetAppName(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	pathsMu.Lock()
	appName = strings.TrimSpace(name)
	pathsMu.Unlock()
}

// AppName returns the configured application name.
func AppName() string {
	pathsMu.RLock()
	defer pathsMu.RUnlock()
	return appName
}

// GetApplicationSupportPath returns the base directory for configuration files.
func GetApplicationSupportPath() string {
	return platformDirs(AppName()).Config
}

// GetApplicationCachesPath returns the base directory for cache files.
func GetApplicationCachesPath() string {
	return platformDirs(AppName()).Cache
}

// GetLogDir returns the directory for the rotating log files.
func GetLogDir() string {
	return platformDirs(AppName()).Log
}

// GetStorePath returns the default on-disk location for a key-value store backend.
// Layout: <CachesBase>/store/cache.db for sqlite, <CachesBase>/store/badger for badger.
func GetStorePath(backend string) string {
	base := filepath.Join(GetApplicationCachesPath(), "store")
	if backend == "badger" {
		return filepath.Join(base, "badger")
	}
	return filepath.Join(base, "cache.db")
}

// EnsureCacheDirs creates the cache base directories. Safe to call multiple times.
func EnsureCacheDirs() error {
	dir := filepath.Join(GetApplicationCachesPath(), "store")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return nil
}
