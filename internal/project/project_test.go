package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	tests := []struct {
		name    string
		root    string
		wantErr bool
	}{
		{name: "existing directory", root: tmpDir},
		{name: "missing directory", root: filepath.Join(tmpDir, "missing"), wantErr: true},
		{name: "regular file", root: file, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.root)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !filepath.IsAbs(p.Root()) {
				t.Errorf("New() Root = %v, want absolute", p.Root())
			}
		})
	}
}

func TestProject_Rel(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "absolute nested", path: filepath.Join(p.Root(), "src", "main.go"), want: "src/main.go"},
		{name: "relative input", path: "docs/readme.md", want: "docs/readme.md"},
		{name: "unclean path", path: filepath.Join(p.Root(), "a", "..", "b.go"), want: "b.go"},
		{name: "outside root", path: filepath.Join(filepath.Dir(p.Root()), "other.go"), wantErr: true},
		{name: "escaping relative", path: "../escape.go", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Rel(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Rel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Rel() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := p.Abs("src/main.go"); got != filepath.Join(p.Root(), "src", "main.go") {
		t.Errorf("Abs() = %v", got)
	}
}

func TestFolder(t *testing.T) {
	tests := []struct {
		relPath string
		want    string
	}{
		{"main.go", "."},
		{"cmd/app/main.go", "cmd/app"},
		{"docs/readme.md", "docs"},
	}
	for _, tt := range tests {
		if got := Folder(tt.relPath); got != tt.want {
			t.Errorf("Folder(%q) = %q, want %q", tt.relPath, got, tt.want)
		}
	}
}

func TestProject_Walk(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"main.go",
		"internal/app/app.go",
		"node_modules/pkg/index.js",
		"docs/readme.md",
	}
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(full, []byte("content"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	skip := func(name string) bool { return name == "node_modules" }

	var got []string
	err = p.Walk(context.Background(), skip, func(f ScannedFile) error {
		got = append(got, f.RelPath)
		if f.AbsPath != p.Abs(f.RelPath) {
			t.Errorf("AbsPath = %v, want %v", f.AbsPath, p.Abs(f.RelPath))
		}
		if f.Folder != Folder(f.RelPath) {
			t.Errorf("Folder = %v, want %v", f.Folder, Folder(f.RelPath))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	sort.Strings(got)
	want := []string{"docs/readme.md", "internal/app/app.go", "main.go"}
	if len(got) != len(want) {
		t.Fatalf("Walk() files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk() files[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	var dirs []string
	if err := p.WalkDirs(skip, func(dir string) error {
		dirs = append(dirs, dir)
		return nil
	}); err != nil {
		t.Fatalf("WalkDirs() error = %v", err)
	}
	for _, d := range dirs {
		if filepath.Base(d) == "node_modules" || filepath.Base(d) == "pkg" {
			t.Errorf("WalkDirs() visited pruned directory %s", d)
		}
	}
}

func TestProject_WalkStops(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := errors.New("stop")
	calls := 0
	err = p.Walk(context.Background(), nil, func(ScannedFile) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Walk() error = %v after %d calls, want stop after 1", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Walk(ctx, nil, func(ScannedFile) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() with cancelled context error = %v, want context.Canceled", err)
	}
}
