package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project resolves paths against a single root directory.
// Every identifier handed to the store is a root-relative, slash separated path.
type Project struct {
	root string
}

// New creates a project rooted at root, which must be an existing directory.
func New(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", abs)
	}

	return &Project{root: abs}, nil
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Rel returns the slash separated path of path relative to the root.
// Relative inputs are taken as already relative to the root.
// Paths outside the root are rejected.
func (p *Project) Rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.root, path)
	}
	rel, err := filepath.Rel(p.root, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside project root %s", path, p.root)
	}
	return filepath.ToSlash(rel), nil
}

// Abs returns the absolute path for a root-relative path.
func (p *Project) Abs(relPath string) string {
	return filepath.Join(p.root, filepath.FromSlash(relPath))
}

// Folder returns the parent directory of a relative path, "." for root-level files.
func Folder(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	if dir == "" {
		return "."
	}
	return dir
}
