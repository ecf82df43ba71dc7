package project

import (
	"context"
	"io/fs"
	"path/filepath"
)

// ScannedFile represents a regular file found while walking the project.
type ScannedFile struct {
	RelPath string // Relative path from project root (e.g., "cmd/app/main.go")
	Folder  string // Parent folder of RelPath, "." for root-level files
	AbsPath string
}

// Walk streams every regular file under the root to fn, one at a time.
// Directories for which skipDir returns true are pruned before descending.
// Unreadable entries are skipped. Walk stops at the first error returned by fn
// or when ctx is cancelled.
func (p *Project) Walk(ctx context.Context, skipDir func(name string) bool, fn func(ScannedFile) error) error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != p.root && skipDir != nil && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := p.Rel(path)
		if err != nil {
			return nil
		}

		return fn(ScannedFile{
			RelPath: relPath,
			Folder:  Folder(relPath),
			AbsPath: path,
		})
	})
}

// WalkDirs calls fn for the root and every directory below it that is not pruned by skipDir.
func (p *Project) WalkDirs(skipDir func(name string) bool, fn func(absDir string) error) error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			if err != nil && d != nil && d.IsDir() && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}
		if path != p.root && skipDir != nil && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fn(path)
	})
}
