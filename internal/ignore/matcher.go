// Package ignore decides which project files are indexable.
//
// Rules are evaluated in a fixed order: the extension allow-list first, then
// excluded directory names, excluded file globs, the hidden-file rule and
// finally .gitignore files scoped to the directory that holds them.
package ignore

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"coderag/internal/contextutil"
	"coderag/internal/project"
)

// IgnoreFileName is the name of per-directory ignore files.
const IgnoreFileName = ".gitignore"

// Options configures the static rule families.
type Options struct {
	Extensions   []string
	ExcludeDirs  []string
	ExcludeFiles []string
	IgnoreHidden bool
}

// Matcher gates paths for indexing. It is safe for concurrent use; Reload
// replaces the .gitignore rule set atomically.
type Matcher struct {
	project      *project.Project
	extensions   map[string]struct{}
	excludeDirs  map[string]struct{}
	excludeFiles []string
	ignoreHidden bool
	rules        atomic.Pointer[ruleSet]
}

// New creates a matcher with an empty .gitignore rule set. Call Reload to load ignore files.
func New(p *project.Project, opts Options) *Matcher {
	m := &Matcher{
		project:      p,
		extensions:   make(map[string]struct{}, len(opts.Extensions)),
		excludeDirs:  make(map[string]struct{}, len(opts.ExcludeDirs)),
		excludeFiles: append([]string(nil), opts.ExcludeFiles...),
		ignoreHidden: opts.IgnoreHidden,
	}
	for _, ext := range opts.Extensions {
		m.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.ExcludeDirs {
		m.excludeDirs[strings.Trim(dir, "/")] = struct{}{}
	}
	m.rules.Store(&ruleSet{})
	return m
}

// IsAllowedExtension reports whether path is a regular file (or a path that no
// longer exists) whose extension is in the allow-list. Directories are never allowed.
func (m *Matcher) IsAllowedExtension(p string) bool {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = m.project.Abs(p)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return false
	}

	ext := strings.ToLower(filepath.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := m.extensions[ext]
	return ok
}

// ShouldIndex reports whether no exclusion rule matches path.
// Paths outside the project root are never indexable.
func (m *Matcher) ShouldIndex(p string) bool {
	_, excluded := m.Explain(p)
	return !excluded
}

// Explain returns the rule family that excludes path, if any.
func (m *Matcher) Explain(p string) (Reason, bool) {
	rel, err := m.project.Rel(p)
	if err != nil || rel == "." {
		return ReasonOutsideRoot, true
	}

	if m.excludedByDir(rel) {
		return ReasonExcludedDir, true
	}
	if m.excludedByGlob(rel) {
		return ReasonExcludedFile, true
	}
	if m.ignoreHidden && strings.HasPrefix(path.Base(rel), ".") {
		return ReasonHidden, true
	}
	if m.rules.Load().matches(rel) {
		return ReasonIgnoreFile, true
	}
	return ReasonNone, false
}

// IsIgnoreFile reports whether path names a .gitignore file.
func (m *Matcher) IsIgnoreFile(p string) bool {
	return filepath.Base(p) == IgnoreFileName
}

// SkipDir reports whether a directory with the given name is pruned from walks.
func (m *Matcher) SkipDir(name string) bool {
	_, ok := m.excludeDirs[name]
	return ok
}

// Reload walks the project, compiles every .gitignore it finds and swaps the
// result in as one snapshot. Malformed ignore files are logged and skipped.
func (m *Matcher) Reload(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	rs, err := loadRuleSet(ctx, m.project, m.SkipDir)
	if err != nil {
		return err
	}
	m.rules.Store(rs)

	logger.DebugContext(ctx, "reloaded ignore rules", "files", len(rs.scopes))
	return nil
}

// RuleFiles returns the relative directories that currently contribute .gitignore rules.
func (m *Matcher) RuleFiles() []string {
	rs := m.rules.Load()
	dirs := make([]string, len(rs.scopes))
	for i, s := range rs.scopes {
		dirs[i] = s.dir
	}
	return dirs
}

func (m *Matcher) excludedByDir(rel string) bool {
	wrapped := "/" + rel + "/"
	for dir := range m.excludeDirs {
		if strings.Contains(wrapped, "/"+dir+"/") {
			return true
		}
	}
	return false
}

func (m *Matcher) excludedByGlob(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range m.excludeFiles {
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Reason names the rule family that excluded a path.
type Reason string

// Exclusion reasons, in evaluation order.
const (
	ReasonNone         Reason = ""
	ReasonOutsideRoot  Reason = "outside_root"
	ReasonExcludedDir  Reason = "excluded_dir"
	ReasonExcludedFile Reason = "excluded_file"
	ReasonHidden       Reason = "hidden"
	ReasonIgnoreFile   Reason = "gitignore"
)
