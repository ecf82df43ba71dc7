package ignore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	gitignore "github.com/sabhiram/go-gitignore"

	"coderag/internal/contextutil"
	"coderag/internal/project"
)

// ruleSet is an immutable snapshot of every compiled .gitignore in the project.
type ruleSet struct {
	scopes []scope
}

// scope holds the rules of one .gitignore, applying to its directory and descendants.
type scope struct {
	dir   string // slash separated, relative to the root; "" for the root itself
	rules *gitignore.GitIgnore
}

// matches reports whether any applicable ignore file excludes rel.
// Negation is resolved inside each file (last matching pattern wins); a path
// excluded by one file is not re-included by another.
func (rs *ruleSet) matches(rel string) bool {
	for _, s := range rs.scopes {
		sub, ok := s.relative(rel)
		if !ok {
			continue
		}
		if s.rules.MatchesPath(sub) {
			return true
		}
	}
	return false
}

func (s scope) relative(rel string) (string, bool) {
	if s.dir == "" {
		return rel, true
	}
	prefix := s.dir + "/"
	if !strings.HasPrefix(rel, prefix) {
		return "", false
	}
	return strings.TrimPrefix(rel, prefix), true
}

func loadRuleSet(ctx context.Context, p *project.Project, skipDir func(string) bool) (*ruleSet, error) {
	logger := contextutil.LoggerFromContext(ctx)
	rs := &ruleSet{}

	err := p.WalkDirs(skipDir, func(absDir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		file := filepath.Join(absDir, IgnoreFileName)
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			return nil
		}

		rel, err := p.Rel(absDir)
		if err != nil {
			return nil
		}
		if rel == "." {
			rel = ""
		}

		rules, err := compileIgnoreFile(file)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed ignore file", "path", file, "error", err)
			return nil
		}

		rs.scopes = append(rs.scopes, scope{dir: rel, rules: rules})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore files: %w", err)
	}

	// Root first, then deeper scopes; keeps evaluation order stable across reloads.
	sort.SliceStable(rs.scopes, func(i, j int) bool {
		di, dj := depth(rs.scopes[i].dir), depth(rs.scopes[j].dir)
		if di != dj {
			return di < dj
		}
		return rs.scopes[i].dir < rs.scopes[j].dir
	})

	return rs, nil
}

// compileIgnoreFile parses one ignore file. Binary or non UTF-8 content is rejected.
func compileIgnoreFile(file string) (gi *gitignore.GitIgnore, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("ignore file is not valid text")
	}

	defer func() {
		if r := recover(); r != nil {
			gi, err = nil, fmt.Errorf("failed to compile ignore file: %v", r)
		}
	}()

	lines := strings.Split(string(data), "\n")
	return gitignore.CompileIgnoreLines(lines...), nil
}

func depth(dir string) int {
	if dir == "" {
		return 0
	}
	return strings.Count(path.Clean(dir), "/") + 1
}
