package utils

import (
	"os"
	"path/filepath"
)

const appDir = "netpulse"

func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// DataPath returns ~/.local/share/netpulse/<name>, or name alone when the
// home directory is unknown.
func DataPath(name string) string {
	home := HomeDir()
	if home == "" {
		return name
	}
	return filepath.Join(home, ".local", "share", appDir, name)
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
