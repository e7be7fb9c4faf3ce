package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadLocalBinEnv loads $HOME/.local/bin/.env without overriding variables that are
// already set. It returns the path it tried, or "" when the home directory is unknown.
func LoadLocalBinEnv() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	envPath := filepath.Join(home, ".local", "bin", ".env")
	if info, statErr := os.Stat(envPath); statErr == nil && !info.IsDir() {
		// godotenv.Load will NOT override variables that are already set.
		_ = godotenv.Load(envPath)
	}
	return envPath
}

// LoadEnvWithLocalBinFallback ensures the specified environment variable is present.
// It loads the $HOME/.local/bin/.env fallback (non-overriding) and then reads the variable.
// Returns a descriptive error when the variable is still unset.
func LoadEnvWithLocalBinFallback(name string) (string, error) {
	envPath := LoadLocalBinEnv()
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if envPath == "" {
		return "", fmt.Errorf("environment variable %q not set and home directory unresolved", name)
	}
	return "", fmt.Errorf("environment variable %q not set; attempted to load fallback file %s", name, envPath)
}
