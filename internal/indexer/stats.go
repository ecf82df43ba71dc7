package indexer

import (
	"math"
	"sort"
	"sync/atomic"
	"unicode/utf8"
)

// TokensPerRune is an approximation for token counting (4 chars per token).
const TokensPerRune = 4.0

// Stats holds cumulative counters for a Sync. File counters follow the
// outcome of each IndexFile/RemoveFile call; chunk counters sum their results.
type Stats struct {
	indexed       atomic.Int64
	errors        atomic.Int64
	deleted       atomic.Int64
	skipped       atomic.Int64
	chunksStored  atomic.Int64
	chunksRemoved atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	// Indexed is the number of files whose chunks were stored.
	Indexed int64 `json:"indexed"`
	// Errors is the number of failed IndexFile/RemoveFile calls.
	Errors int64 `json:"errors"`
	// Deleted is the number of files whose chunks were removed.
	Deleted int64 `json:"deleted"`
	// Skipped is the number of files rejected by the gate or unreadable as text.
	Skipped int64 `json:"skipped"`
	// ChunksStored is the total number of chunks written.
	ChunksStored int64 `json:"chunks_stored"`
	// ChunksRemoved is the total number of chunks deleted.
	ChunksRemoved int64 `json:"chunks_removed"`
}

func (s *Stats) record(r Result, removal bool) {
	switch {
	case r.Errors > 0:
		s.errors.Add(int64(r.Errors))
	case r.Skipped > 0:
		s.skipped.Add(int64(r.Skipped))
	case removal && r.Deleted > 0:
		s.deleted.Add(1)
	case !removal && r.Indexed > 0:
		s.indexed.Add(1)
	}
	s.chunksStored.Add(int64(r.Indexed))
	s.chunksRemoved.Add(int64(r.Deleted))
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Indexed:       s.indexed.Load(),
		Errors:        s.errors.Load(),
		Deleted:       s.deleted.Load(),
		Skipped:       s.skipped.Load(),
		ChunksStored:  s.chunksStored.Load(),
		ChunksRemoved: s.chunksRemoved.Load(),
	}
}

// ChunkTokenStats contains statistics about estimated token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// tokenStats estimates token counts for records and summarizes them.
func tokenStats(records []Record) ChunkTokenStats {
	counts := make([]int, 0, len(records))
	for _, r := range records {
		tokens := int(math.Round(float64(utf8.RuneCountInString(r.Document)) / TokensPerRune))
		if tokens < 1 {
			tokens = 1
		}
		counts = append(counts, tokens)
	}
	return computeTokenStats(counts)
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
