// Package project locates the root a file belongs to when no root is given.
package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/agentlint/internal/config"
)

// rootMarkers are the entries that make a directory a project root.
var rootMarkers = []string{".git", ".claude", ".cursor", "package.json", "go.mod"}

// FindRoot climbs from startPath to the nearest directory that looks like a
// project root. When none is found the absolute startPath is returned.
func FindRoot(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}

	currentDir := absPath
	for {
		if IsRoot(currentDir) {
			return currentDir, nil
		}
		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			break
		}
		currentDir = parent
	}
	return absPath, nil
}

// IsRoot reports whether dir holds a root marker or an agentlint config file.
func IsRoot(dir string) bool {
	for _, name := range rootMarkers {
		if exists(filepath.Join(dir, name)) {
			return true
		}
	}
	for _, name := range config.ConfigFiles {
		if exists(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

// Contains reports whether path is root itself or lies below it. Both must
// be absolute and clean.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
