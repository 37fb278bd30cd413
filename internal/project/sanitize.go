package project

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmorand/pyforge/internal/errors"
)

// unsafeChars matches any run of characters not allowed in a project
// directory name.
var unsafeChars = regexp.MustCompile(`[^\w.\-]+`)

// SanitizeName converts a user-provided project name into a safe directory
// name: path components are stripped, disallowed characters collapse to a
// single underscore, and leading/trailing underscores are removed.
func SanitizeName(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	safe := unsafeChars.ReplaceAllString(base, "_")
	safe = strings.Trim(safe, "_")

	if safe == "" || safe == "." || safe == ".." {
		return "", errors.NewInvalidRequest("invalid project name: " + name)
	}
	return safe, nil
}

// ContainedIn reports whether path resolves to a location strictly inside
// root. Symlinks are resolved first; used as a guard before recursive delete.
func ContainedIn(root, path string) bool {
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	pathReal, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootReal, pathReal)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
