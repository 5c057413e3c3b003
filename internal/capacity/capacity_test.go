package capacity

import (
	"testing"
	"time"
)

func TestUsableMemoryAppliesSafetyMargin(t *testing.T) {
	e := DefaultEstimator()
	got := e.UsableMemory(1_000_000_000)
	want := int64(700_000_000)
	if got != want {
		t.Fatalf("UsableMemory() = %d, want %d", got, want)
	}
}

func TestCanAdmitRejectsOversizedBatch(t *testing.T) {
	e := DefaultEstimator()
	available := int64(10_000_000) // 10MB total, 7MB usable after margin

	if !e.CanAdmit(available, 10, 1024) {
		t.Fatal("expected a small batch of short sequences to be admitted")
	}
	if e.CanAdmit(available, 1_000_000, 1_000_000) {
		t.Fatal("expected a batch far exceeding usable memory to be rejected")
	}
}

func TestSuggestBatchSizeCapsAtMaxBatchSize(t *testing.T) {
	e := DefaultEstimator()
	got := e.SuggestBatchSize(1<<40, 10) // effectively unlimited memory, tiny sequences
	if got != e.MaxBatchSize {
		t.Fatalf("SuggestBatchSize() = %d, want the configured cap %d", got, e.MaxBatchSize)
	}
}

func TestSuggestBatchSizeShrinksWithLargerPayloads(t *testing.T) {
	e := DefaultEstimator()
	available := int64(1_000_000_000)
	small := e.SuggestBatchSize(available, 1024)
	large := e.SuggestBatchSize(available, 1_000_000)
	if large >= small {
		t.Fatalf("expected larger average payloads to suggest a smaller batch, got small=%d large=%d", small, large)
	}
}

func TestTrackerFallsBackBeforeThreeSamples(t *testing.T) {
	tr := NewTracker()
	tr.Record(Sample{BatchSize: 100, Duration: time.Second, MemoryUsed: 1024})
	tr.Record(Sample{BatchSize: 200, Duration: time.Second, MemoryUsed: 2048})
	if got := tr.Suggest(50); got != 50 {
		t.Fatalf("Suggest() = %d, want fallback 50 with only 2 samples", got)
	}
}

func TestTrackerSuggestsHighestThroughputSample(t *testing.T) {
	tr := NewTracker()
	tr.Record(Sample{BatchSize: 100, Duration: time.Second, MemoryUsed: 1024})     // 100/s
	tr.Record(Sample{BatchSize: 400, Duration: time.Second, MemoryUsed: 4096})     // 400/s, best
	tr.Record(Sample{BatchSize: 300, Duration: 2 * time.Second, MemoryUsed: 3072}) // 150/s
	if got := tr.Suggest(50); got != 400 {
		t.Fatalf("Suggest() = %d, want 400 (the best observed throughput)", got)
	}
}

func TestTrackerRetainsOnlyRecentSamples(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 40; i++ {
		tr.Record(Sample{BatchSize: i + 1, Duration: time.Second, MemoryUsed: int64(i)})
	}
	tr.mu.Lock()
	n := len(tr.samples)
	first := tr.samples[0].BatchSize
	tr.mu.Unlock()
	if n != 32 {
		t.Fatalf("expected history capped at 32 samples, got %d", n)
	}
	if first != 9 {
		t.Fatalf("expected oldest retained sample to be batch size 9 (the 9th recorded), got %d", first)
	}
}
