package ignore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"coderag/internal/project"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
	return full
}

func newMatcher(t *testing.T, root string, opts Options) *Matcher {
	t.Helper()
	p, err := project.New(root)
	if err != nil {
		t.Fatalf("project.New() error = %v", err)
	}
	m := New(p, opts)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return m
}

func defaultOptions() Options {
	return Options{
		Extensions:   []string{".go", ".md", ".key", ".exe", ".log", ".txt"},
		ExcludeDirs:  []string{"dist", "node_modules", ".git"},
		ExcludeFiles: []string{"*.log", "secret_*.txt"},
		IgnoreHidden: true,
	}
}

func TestMatcher_IsAllowedExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg.go/main.go", "package main")
	m := newMatcher(t, root, defaultOptions())

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "allowed extension", path: filepath.Join(root, "main.go"), want: true},
		{name: "case insensitive", path: filepath.Join(root, "README.MD"), want: true},
		{name: "relative path", path: "docs/guide.md", want: true},
		{name: "unknown extension", path: filepath.Join(root, "image.png"), want: false},
		{name: "no extension", path: filepath.Join(root, "Makefile"), want: false},
		{name: "directory with allowed suffix", path: filepath.Join(root, "pkg.go"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsAllowedExtension(tt.path); got != tt.want {
				t.Errorf("IsAllowedExtension(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestMatcher_ShouldIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.key\n!important.key\ngenerated/\n")
	writeFile(t, root, "sub/.gitignore", "local.go\n")
	m := newMatcher(t, root, defaultOptions())

	tests := []struct {
		name       string
		rel        string
		want       bool
		wantReason Reason
	}{
		{name: "plain source file", rel: "main.go", want: true},
		{name: "excluded dir at root", rel: "dist/output.exe", want: false, wantReason: ReasonExcludedDir},
		{name: "excluded dir nested", rel: "web/node_modules/pkg/index.go", want: false, wantReason: ReasonExcludedDir},
		{name: "dir name as prefix only", rel: "distribution/main.go", want: true},
		{name: "glob on basename", rel: "logs/app.log", want: false, wantReason: ReasonExcludedFile},
		{name: "glob with prefix", rel: "secret_keys.txt", want: false, wantReason: ReasonExcludedFile},
		{name: "hidden file", rel: ".env.go", want: false, wantReason: ReasonHidden},
		{name: "ignore file excludes", rel: "other.key", want: false, wantReason: ReasonIgnoreFile},
		{name: "negation re-includes", rel: "important.key", want: true},
		{name: "root rule applies to descendants", rel: "deep/nested/other.key", want: false, wantReason: ReasonIgnoreFile},
		{name: "directory pattern", rel: "generated/types.go", want: false, wantReason: ReasonIgnoreFile},
		{name: "scoped rule in its directory", rel: "sub/local.go", want: false, wantReason: ReasonIgnoreFile},
		{name: "scoped rule outside its directory", rel: "local.go", want: true},
		{name: "outside root", rel: "../escape.go", want: false, wantReason: ReasonOutsideRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs := filepath.Join(root, filepath.FromSlash(tt.rel))
			if got := m.ShouldIndex(abs); got != tt.want {
				t.Errorf("ShouldIndex(%q) = %v, want %v", tt.rel, got, tt.want)
			}
			if reason, _ := m.Explain(abs); reason != tt.wantReason {
				t.Errorf("Explain(%q) = %q, want %q", tt.rel, reason, tt.wantReason)
			}
		})
	}
}

func TestMatcher_PrecedenceOverAllowList(t *testing.T) {
	root := t.TempDir()
	m := newMatcher(t, root, defaultOptions())

	path := filepath.Join(root, "dist", "main.go")
	if !m.IsAllowedExtension(path) {
		t.Fatalf("IsAllowedExtension(%q) = false, want true", path)
	}
	if m.ShouldIndex(path) {
		t.Errorf("ShouldIndex(%q) = true, want false", path)
	}
}

func TestMatcher_HiddenDisabled(t *testing.T) {
	root := t.TempDir()
	opts := defaultOptions()
	opts.IgnoreHidden = false
	m := newMatcher(t, root, opts)

	if !m.ShouldIndex(filepath.Join(root, ".config.go")) {
		t.Error("ShouldIndex() = false for hidden file with IgnoreHidden disabled")
	}
}

func TestMatcher_AncestorExclusionNotUndoneByChild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.key\n")
	writeFile(t, root, "keys/.gitignore", "!public.key\n")
	m := newMatcher(t, root, defaultOptions())

	if m.ShouldIndex(filepath.Join(root, "keys", "public.key")) {
		t.Error("ShouldIndex() = true, want ancestor exclusion to hold")
	}
}

func TestMatcher_Reload(t *testing.T) {
	root := t.TempDir()
	m := newMatcher(t, root, defaultOptions())
	target := filepath.Join(root, "notes.md")

	if !m.ShouldIndex(target) {
		t.Fatal("ShouldIndex() = false before any ignore file exists")
	}

	writeFile(t, root, ".gitignore", "notes.md\n")
	if !m.ShouldIndex(target) {
		t.Error("ShouldIndex() changed before Reload()")
	}

	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if m.ShouldIndex(target) {
		t.Error("ShouldIndex() = true after Reload() picked up new rule")
	}

	// Idempotent
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := m.RuleFiles(); len(got) != 1 || got[0] != "" {
		t.Errorf("RuleFiles() = %v, want [\"\"]", got)
	}
}

func TestMatcher_MalformedIgnoreFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log.go\n")
	writeFile(t, root, "bad/.gitignore", "main.go\x00\xff\xfe")
	m := newMatcher(t, root, defaultOptions())

	if got := m.RuleFiles(); len(got) != 1 {
		t.Errorf("RuleFiles() = %v, want only the root file", got)
	}
	if !m.ShouldIndex(filepath.Join(root, "bad", "main.go")) {
		t.Error("ShouldIndex() = false, malformed ignore file should have been skipped")
	}
	if m.ShouldIndex(filepath.Join(root, "bad", "x.log.go")) {
		t.Error("ShouldIndex() = true, root rules should still apply")
	}
}

func TestMatcher_ReloadPrunesExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/.gitignore", "*\n")
	m := newMatcher(t, root, defaultOptions())

	if got := m.RuleFiles(); len(got) != 0 {
		t.Errorf("RuleFiles() = %v, want none from pruned directories", got)
	}
}

func TestMatcher_ConcurrentReload(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.key\n")
	m := newMatcher(t, root, defaultOptions())
	path := filepath.Join(root, "secret.key")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = m.Reload(context.Background())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if m.ShouldIndex(path) {
					t.Error("ShouldIndex() observed an incomplete rule set")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMatcher_SkipDirAndIgnoreFile(t *testing.T) {
	m := newMatcher(t, t.TempDir(), defaultOptions())

	if !m.SkipDir("node_modules") || m.SkipDir("src") {
		t.Error("SkipDir() did not follow ExcludeDirs")
	}
	if !m.IsIgnoreFile("/a/b/.gitignore") || m.IsIgnoreFile("/a/b/main.go") {
		t.Error("IsIgnoreFile() mismatch")
	}
}
