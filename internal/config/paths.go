package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for Converse data.
type Paths struct {
	Data   string // ~/.local/share/converse
	Config string // ~/.config/converse
	Cache  string // ~/.cache/converse
	State  string // ~/.local/state/converse
}

// GetPaths returns the standard paths for Converse data.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "converse"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "converse"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "converse"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "converse"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func home() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}

func defaultDataHome() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home(), "Library", "Application Support")
	}
	return filepath.Join(home(), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home(), "Library", "Preferences")
	}
	return filepath.Join(home(), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home(), "Library", "Caches")
	}
	return filepath.Join(home(), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(home(), "Library", "Application Support")
	}
	return filepath.Join(home(), ".local", "state")
}
