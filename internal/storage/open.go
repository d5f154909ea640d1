package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// MemoryPath selects the in-memory provider.
const MemoryPath = ":memory:"

// New picks a provider from the path: ":memory:", a *.json file, or SQLite.
// A leading "~/" is expanded to the user's home directory.
func New(path string) Provider {
	switch {
	case path == MemoryPath:
		return NewMemoryStore()
	case strings.EqualFold(filepath.Ext(path), ".json"):
		return NewJSONStore(ExpandHome(path))
	default:
		return NewSQLiteStore(ExpandHome(path))
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
