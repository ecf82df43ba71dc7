package indexer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"coderag/internal/ignore"
	"coderag/internal/indexer"
	"coderag/internal/indexer/mocks"
	"coderag/internal/project"

	"go.uber.org/mock/gomock"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// memStore is an in-memory DocumentStore keyed by chunk id.
type memStore struct {
	mu     sync.Mutex
	chunks map[string]map[string]any
	adds   []int
}

func newMemStore() *memStore {
	return &memStore{chunks: make(map[string]map[string]any)}
}

func (m *memStore) Add(_ context.Context, documents []string, metadatas []map[string]any, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.chunks[id] = metadatas[i]
	}
	m.adds = append(m.adds, len(documents))
	return nil
}

func (m *memStore) DeleteBySource(_ context.Context, source string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for id, meta := range m.chunks {
		if meta[indexer.MetaSource] == source {
			removed = append(removed, id)
			delete(m.chunks, id)
		}
	}
	return removed, nil
}

func (m *memStore) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type syncFixture struct {
	root string
	sync *indexer.Sync
}

func newSyncFixture(t *testing.T, store indexer.DocumentStore, batchSize int) syncFixture {
	t.Helper()
	root := t.TempDir()
	p, err := project.New(root)
	if err != nil {
		t.Fatalf("project.New() error = %v", err)
	}
	matcher := ignore.New(p, ignore.Options{
		Extensions:   []string{".go", ".md", ".txt"},
		ExcludeDirs:  []string{"node_modules"},
		ExcludeFiles: []string{"*.log"},
		IgnoreHidden: true,
	})
	s := indexer.NewSync(p, matcher, store, indexer.SyncOptions{
		ChunkSize:    100,
		ChunkOverlap: 20,
		BatchSize:    batchSize,
	})
	return syncFixture{root: root, sync: s}
}

func (f syncFixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSync_IndexFile_Idempotent(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 10)
	path := f.write(t, "pkg/a.go", strings.Repeat("a", 250))

	ctx := context.Background()
	first := f.sync.IndexFile(ctx, path)
	if first != (indexer.Result{Indexed: 3}) {
		t.Fatalf("IndexFile() = %+v, want 3 indexed", first)
	}
	idsAfterFirst := store.ids()

	second := f.sync.IndexFile(ctx, path)
	if second != first {
		t.Errorf("second IndexFile() = %+v, want %+v", second, first)
	}

	want := []string{"pkg/a.go_0", "pkg/a.go_1", "pkg/a.go_2"}
	if got := store.ids(); !equalStrings(got, want) || !equalStrings(idsAfterFirst, want) {
		t.Errorf("stored ids = %v, want %v", got, want)
	}
}

func TestSync_IndexFile_ShrinkRemovesStaleChunks(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 10)
	path := f.write(t, "a.go", strings.Repeat("a", 250))

	ctx := context.Background()
	f.sync.IndexFile(ctx, path)

	f.write(t, "a.go", strings.Repeat("b", 90))
	result := f.sync.IndexFile(ctx, path)
	if result.Indexed != 1 {
		t.Fatalf("IndexFile() indexed = %d, want 1", result.Indexed)
	}
	if got := store.ids(); !equalStrings(got, []string{"a.go_0"}) {
		t.Errorf("stored ids = %v, want [a.go_0]", got)
	}
}

func TestSync_IndexFile_Skipped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f syncFixture) string
	}{
		{
			name: "extension not allowed",
			setup: func(t *testing.T, f syncFixture) string {
				return f.write(t, "image.png", strings.Repeat("a", 200))
			},
		},
		{
			name: "excluded directory",
			setup: func(t *testing.T, f syncFixture) string {
				return f.write(t, "node_modules/lib/a.go", strings.Repeat("a", 200))
			},
		},
		{
			name: "hidden file",
			setup: func(t *testing.T, f syncFixture) string {
				return f.write(t, ".secret.txt", strings.Repeat("a", 200))
			},
		},
		{
			name: "binary content",
			setup: func(t *testing.T, f syncFixture) string {
				return f.write(t, "blob.txt", "abc\x00def")
			},
		},
		{
			name: "invalid utf-8",
			setup: func(t *testing.T, f syncFixture) string {
				return f.write(t, "latin1.txt", "caf\xe9")
			},
		},
		{
			name: "missing file",
			setup: func(t *testing.T, f syncFixture) string {
				return filepath.Join(f.root, "gone.go")
			},
		},
		{
			name: "outside project",
			setup: func(t *testing.T, f syncFixture) string {
				return filepath.Join(filepath.Dir(f.root), "elsewhere.go")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No store calls are expected for skipped files.
			store := mocks.NewMockDocumentStore(ctrl)
			f := newSyncFixture(t, store, 10)
			path := tt.setup(t, f)

			if got := f.sync.IndexFile(context.Background(), path); got != (indexer.Result{Skipped: 1}) {
				t.Errorf("IndexFile() = %+v, want skipped", got)
			}
			if got := f.sync.Stats(); got.Skipped != 1 {
				t.Errorf("Stats().Skipped = %d, want 1", got.Skipped)
			}
		})
	}
}

func TestSync_IndexFile_EmptyFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockDocumentStore(ctrl)
	f := newSyncFixture(t, store, 10)
	path := f.write(t, "empty.go", "  \n\t\n")

	if got := f.sync.IndexFile(context.Background(), path); got != (indexer.Result{}) {
		t.Errorf("IndexFile() = %+v, want empty result", got)
	}
}

func TestSync_IndexFile_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockDocumentStore(ctrl)
	f := newSyncFixture(t, store, 2)
	// 420 runes without newlines produce five 100-rune chunks.
	path := f.write(t, "big.go", strings.Repeat("z", 420))

	var sizes []int
	gomock.InOrder(
		store.EXPECT().DeleteBySource(gomock.Any(), "big.go").Return([]string{"big.go_0"}, nil),
		store.EXPECT().Add(gomock.Any(), gomock.Len(2), gomock.Len(2), []string{"big.go_0", "big.go_1"}).
			DoAndReturn(func(_ context.Context, docs []string, _ []map[string]any, _ []string) error {
				sizes = append(sizes, len(docs))
				return nil
			}),
		store.EXPECT().Add(gomock.Any(), gomock.Len(2), gomock.Len(2), []string{"big.go_2", "big.go_3"}).
			DoAndReturn(func(_ context.Context, docs []string, _ []map[string]any, _ []string) error {
				sizes = append(sizes, len(docs))
				return nil
			}),
		store.EXPECT().Add(gomock.Any(), gomock.Len(1), gomock.Len(1), []string{"big.go_4"}).
			DoAndReturn(func(_ context.Context, docs []string, _ []map[string]any, _ []string) error {
				sizes = append(sizes, len(docs))
				return nil
			}),
	)

	got := f.sync.IndexFile(context.Background(), path)
	if got != (indexer.Result{Indexed: 5}) {
		t.Errorf("IndexFile() = %+v, want 5 indexed", got)
	}
	if len(sizes) != 3 {
		t.Errorf("Add called %d times, want 3", len(sizes))
	}
}

func TestSync_IndexFile_StoreErrors(t *testing.T) {
	errStore := errors.New("store unavailable")

	tests := []struct {
		name      string
		mockSetup func(store *mocks.MockDocumentStore)
		want      indexer.Result
	}{
		{
			name: "delete fails",
			mockSetup: func(store *mocks.MockDocumentStore) {
				store.EXPECT().DeleteBySource(gomock.Any(), "a.go").Return(nil, errStore)
			},
			want: indexer.Result{Errors: 1},
		},
		{
			name: "second batch fails",
			mockSetup: func(store *mocks.MockDocumentStore) {
				gomock.InOrder(
					store.EXPECT().DeleteBySource(gomock.Any(), "a.go").Return(nil, nil),
					store.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
					store.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errStore),
				)
			},
			want: indexer.Result{Indexed: 2, Errors: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockDocumentStore(ctrl)
			tt.mockSetup(store)

			f := newSyncFixture(t, store, 2)
			path := f.write(t, "a.go", strings.Repeat("a", 420))

			if got := f.sync.IndexFile(context.Background(), path); got != tt.want {
				t.Errorf("IndexFile() = %+v, want %+v", got, tt.want)
			}
			if got := f.sync.Stats(); got.Errors != 1 || got.Indexed != 0 {
				t.Errorf("Stats() = %+v, want one error and nothing indexed", got)
			}
		})
	}
}

func TestSync_IndexFile_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockDocumentStore(ctrl)
	store.EXPECT().DeleteBySource(gomock.Any(), "a.go").Return(nil, nil)

	f := newSyncFixture(t, store, 2)
	path := f.write(t, "a.go", strings.Repeat("a", 250))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := f.sync.IndexFile(ctx, path); got != (indexer.Result{Errors: 1}) {
		t.Errorf("IndexFile() = %+v, want one error", got)
	}
}

func TestSync_RemoveFile(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 10)
	ctx := context.Background()

	keep := f.write(t, "keep.go", strings.Repeat("k", 250))
	drop := f.write(t, "drop.go", strings.Repeat("d", 250))
	f.sync.IndexFile(ctx, keep)
	f.sync.IndexFile(ctx, drop)

	if err := os.Remove(drop); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	if got := f.sync.RemoveFile(ctx, drop); got != (indexer.Result{Deleted: 3}) {
		t.Errorf("RemoveFile() = %+v, want 3 deleted", got)
	}
	if got := f.sync.RemoveFile(ctx, drop); got != (indexer.Result{}) {
		t.Errorf("second RemoveFile() = %+v, want empty result", got)
	}

	want := []string{"keep.go_0", "keep.go_1", "keep.go_2"}
	if got := store.ids(); !equalStrings(got, want) {
		t.Errorf("stored ids = %v, want %v", got, want)
	}

	stats := f.sync.Stats()
	if stats.Indexed != 2 || stats.Deleted != 1 || stats.ChunksStored != 6 || stats.ChunksRemoved != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestSync_RemoveFile_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockDocumentStore(ctrl)
	store.EXPECT().DeleteBySource(gomock.Any(), "a.go").Return(nil, errors.New("boom"))

	f := newSyncFixture(t, store, 10)
	if got := f.sync.RemoveFile(context.Background(), filepath.Join(f.root, "a.go")); got != (indexer.Result{Errors: 1}) {
		t.Errorf("RemoveFile() = %+v, want one error", got)
	}
}

func TestSync_Rename(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 10)
	ctx := context.Background()

	oldPath := f.write(t, "old/name.go", strings.Repeat("r", 250))
	f.sync.IndexFile(ctx, oldPath)

	newPath := filepath.Join(f.root, "new", "name.go")
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	f.sync.RemoveFile(ctx, oldPath)
	f.sync.IndexFile(ctx, newPath)

	want := []string{"new/name.go_0", "new/name.go_1", "new/name.go_2"}
	if got := store.ids(); !equalStrings(got, want) {
		t.Errorf("stored ids = %v, want %v", got, want)
	}
}

func TestSync_ConcurrentIndexSameFile(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 1)
	path := f.write(t, "a.go", strings.Repeat("c", 250))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.sync.IndexFile(context.Background(), path)
		}()
	}
	wg.Wait()

	want := []string{"a.go_0", "a.go_1", "a.go_2"}
	if got := store.ids(); !equalStrings(got, want) {
		t.Errorf("stored ids = %v, want %v", got, want)
	}
}

func TestNewSync_ClampsBatchSize(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 500)
	// Produces about 60 chunks.
	path := f.write(t, "long.txt", strings.Repeat(strings.Repeat("l", 59)+"\n", 60))

	f.sync.IndexFile(context.Background(), path)
	for _, n := range store.adds {
		if n > 50 {
			t.Errorf("Add received %d chunks, want at most 50", n)
		}
	}
}

func TestSync_IndexAndRemoveRace(t *testing.T) {
	store := newMemStore()
	f := newSyncFixture(t, store, 10)
	content := strings.Repeat(strings.Repeat("r", 79)+"\n", 2000)

	for i := range 50 {
		path := f.write(t, "race.go", content)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.sync.IndexFile(context.Background(), path)
		}()
		go func() {
			defer wg.Done()
			if err := os.Remove(path); err != nil {
				t.Errorf("failed to remove file: %v", err)
			}
			f.sync.RemoveFile(context.Background(), path)
		}()
		wg.Wait()

		if got := store.ids(); len(got) != 0 {
			t.Fatalf("iteration %d: deleted file still has %d chunks", i, len(got))
		}
	}
}
