package indexer

import "testing"

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   ChunkTokenStats
	}{
		{name: "empty", counts: nil, want: ChunkTokenStats{}},
		{name: "single", counts: []int{7}, want: ChunkTokenStats{Min: 7, Max: 7, Mean: 7, P95: 7}},
		{
			name:   "unsorted input",
			counts: []int{30, 10, 20},
			want:   ChunkTokenStats{Min: 10, Max: 30, Mean: 20, P95: 30},
		},
		{
			name:   "mean is rounded",
			counts: []int{1, 2, 2},
			want:   ChunkTokenStats{Min: 1, Max: 2, Mean: 1.67, P95: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeTokenStats(tt.counts); got != tt.want {
				t.Errorf("computeTokenStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTokenStats(t *testing.T) {
	records := []Record{
		{Document: "abcd"},                 // 1 token
		{Document: "abcdefghijklmnopqrst"}, // 5 tokens
		{Document: "a"},                    // rounds to 0, floored at 1
	}
	got := tokenStats(records)
	if got.Min != 1 || got.Max != 5 {
		t.Errorf("tokenStats() = %+v, want min 1 max 5", got)
	}
}

func TestStats_Record(t *testing.T) {
	var s Stats

	s.record(Result{Indexed: 3}, false)
	s.record(Result{Indexed: 2}, false)
	s.record(Result{Skipped: 1}, false)
	s.record(Result{Errors: 1}, false)
	s.record(Result{}, false)
	s.record(Result{Deleted: 4}, true)
	s.record(Result{}, true)
	s.record(Result{Errors: 1, Indexed: 1}, false)

	want := StatsSnapshot{
		Indexed:       2,
		Errors:        2,
		Deleted:       1,
		Skipped:       1,
		ChunksStored:  6,
		ChunksRemoved: 4,
	}
	if got := s.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}
