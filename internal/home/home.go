// Package home resolves the Engine's repository root directory.
//
// The repository root owns all persistent state: the config store, the
// chunk and sequence Stores, published version manifests, and the
// Temporal Index. See spec.md §6 for the full on-disk layout under it.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a repository root directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/talaria
//   - macOS:   ~/Library/Application Support/talaria
//   - Windows: %APPDATA%/talaria
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "talaria")}, nil
}

// Root returns the repository root path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the config store file for the given
// store type. "memory" has no on-disk path and returns "".
func (d Dir) ConfigPath(storeType string) string {
	if storeType == "memory" {
		return ""
	}
	return filepath.Join(d.root, "config.db")
}

// EnsureExists creates the repository root (and parents) if it doesn't
// exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create repository root %s: %w", d.root, err)
	}
	return nil
}
