package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvPath names the environment variable that overrides config discovery.
const EnvPath = "CINEDEX_CONFIG"

// ErrNoConfig is returned by Discover when no candidate file exists.
var ErrNoConfig = errors.New("no config file found")

// DefaultPath is where `cinedex init` writes: $XDG_CONFIG_HOME/cinedex/config.toml,
// falling back to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "cinedex", "config.toml")
}

// SearchPaths lists config candidates in priority order: the working directory,
// DefaultPath, then the system-wide file.
func SearchPaths() []string {
	return []string{
		"config.toml",
		DefaultPath(),
		filepath.Join("/etc", "cinedex", "config.toml"),
	}
}

// Discover returns the config file to load. A set CINEDEX_CONFIG must name an
// existing file; otherwise the first existing SearchPaths entry wins.
func Discover() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s: %w", EnvPath, err)
		}
		return p, nil
	}

	candidates := SearchPaths()
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoConfig, strings.Join(candidates, ", "))
}
