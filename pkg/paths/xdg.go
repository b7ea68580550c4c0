// Package paths resolves XDG-style locations for viewsync.
//
// Resolution order:
// 1. VIEWSYNC_HOME (portable root) → $VIEWSYNC_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/viewsync
// 3. Platform defaults → ~/.config/viewsync, ~/.local/state/viewsync
package paths

import (
	"os"
	"path/filepath"
)

const appName = "viewsync"

// baseDir resolves one XDG base directory.
func baseDir(homeSub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("VIEWSYNC_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		parts := append([]string{homeDir}, fallback...)
		return filepath.Join(append(parts, appName)...)
	}
	return ""
}

// ConfigDir returns the viewsync configuration directory.
// Used as the last place a viewsync.yml/viewsync.toml is looked up.
func ConfigDir() string {
	return baseDir("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the viewsync state directory.
// Used for the sqlite store file and the server PID file.
func StateDir() string {
	return baseDir("state", "XDG_STATE_HOME", ".local", "state")
}

// PidFilePath returns the default path of the server PID file.
func PidFilePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "viewsync.pid")
}

// SQLitePath returns the default location of the sqlite store.
func SQLitePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "state.db")
}
