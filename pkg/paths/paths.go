// Package paths resolves where tabtree keeps its files.
//
// Layout (XDG-style):
//
//	Config: $XDG_CONFIG_HOME/tabtree/config.yaml   (override: TABTREE_CONFIG_DIR)
//	State:  $XDG_STATE_HOME/tabtree/               (override: TABTREE_STATE_DIR)
//	        cache.db, tabtree.log
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const appName = "tabtree"

type dir struct {
	once   sync.Once
	cached string
}

var (
	configDir dir
	stateDir  dir
)

// resolve picks the first of: envKey, $xdgKey/tabtree, ~/<fallback...>/tabtree.
func (d *dir) resolve(envKey, xdgKey string, fallback ...string) string {
	d.once.Do(func() {
		if env := os.Getenv(envKey); env != "" {
			d.cached = env
			return
		}
		if xdg := os.Getenv(xdgKey); xdg != "" {
			d.cached = filepath.Join(xdg, appName)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			d.cached = "."
			return
		}
		d.cached = filepath.Join(append(append([]string{home}, fallback...), appName)...)
	})
	return d.cached
}

// ConfigDir resolves the config directory.
// Priority: TABTREE_CONFIG_DIR > $XDG_CONFIG_HOME/tabtree > ~/.config/tabtree
func ConfigDir() string {
	return configDir.resolve("TABTREE_CONFIG_DIR", "XDG_CONFIG_HOME", ".config")
}

// StateDir resolves the state directory.
// Priority: TABTREE_STATE_DIR > $XDG_STATE_HOME/tabtree > ~/.local/state/tabtree
func StateDir() string {
	return stateDir.resolve("TABTREE_STATE_DIR", "XDG_STATE_HOME", ".local", "state")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvPath is the optional .env file read by the commands.
func EnvPath() string {
	return filepath.Join(ConfigDir(), ".env")
}

// CachePath is the default bbolt file holding cached window renders.
func CachePath() string {
	return filepath.Join(StateDir(), "cache.db")
}

// LogPath is the default log file.
func LogPath() string {
	return filepath.Join(StateDir(), appName+".log")
}

// EnsureStateDir creates the state directory if it doesn't exist and returns its path.
func EnsureStateDir() (string, error) {
	d := StateDir()
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", d, err)
	}
	return d, nil
}

// ResetForTest clears cached values so tests can re-run resolution logic.
func ResetForTest() {
	configDir = dir{}
	stateDir = dir{}
}
