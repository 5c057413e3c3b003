// Package capacity estimates whether an ingest batch fits in available
// memory before the Chunker ever touches it, and tracks observed
// batch/duration/memory samples to suggest a better batch size for the
// next call. It is grounded on the same syscall-level probing style as
// the orchestrator's process-metrics package, extended to read total
// system memory rather than only the current process's footprint.
package capacity

import (
	"runtime"
	"sync"
	"syscall"
	"time"
)

// Estimator sizes an ingest batch against available system memory.
// Fields are used exactly as set; a zero field is not replaced by a
// default. DefaultEstimator supplies the standard values, which
// assume a FASTA sequence kept in memory costs roughly its payload size
// plus per-sequence bookkeeping (id, taxon, chunk membership), and that
// alignment-index construction over that same sequence set costs a
// multiple of its raw size again.
type Estimator struct {
	// SafetyMargin is the fraction of system memory held back as
	// headroom for the runtime, GC, and other processes. A batch is
	// only admitted against the remaining (1 - SafetyMargin) share.
	SafetyMargin float64

	// BytesPerSequence is the fixed per-sequence bookkeeping overhead,
	// independent of payload length.
	BytesPerSequence int64

	// BytesPerIndexEntry is the fixed per-sequence cost of a k-mer
	// index entry built over it during reference selection.
	BytesPerIndexEntry int64

	// AlignmentOverhead multiplies a sequence's payload size to
	// account for alignment/index structures built on top of it.
	AlignmentOverhead float64

	// MaxBatchSize caps SuggestBatchSize regardless of how much
	// memory is available, so a single ingest call never tries to
	// hold an unreasonably large batch in memory at once.
	MaxBatchSize int
}

// DefaultEstimator mirrors the constants used by the original reference
// implementation's memory estimator: a 30% safety margin, 1KiB of
// bookkeeping per sequence, 256 bytes per index entry, and a 2.5x
// alignment overhead multiplier.
func DefaultEstimator() Estimator {
	return Estimator{
		SafetyMargin:       0.3,
		BytesPerSequence:   1024,
		BytesPerIndexEntry: 256,
		AlignmentOverhead:  2.5,
		MaxBatchSize:       50000,
	}
}

// UsableMemory returns the share of availableMemory this Estimator will
// admit batches against.
func (e Estimator) UsableMemory(availableMemory int64) int64 {
	return int64(float64(availableMemory) * (1 - e.SafetyMargin))
}

// EstimateBatchMemory returns the projected memory cost of holding n
// sequences of averagePayload bytes each in memory, including their
// k-mer index entries and alignment overhead.
func (e Estimator) EstimateBatchMemory(n int, averagePayload int64) int64 {
	if n <= 0 {
		return 0
	}
	perSequence := e.BytesPerSequence + e.BytesPerIndexEntry + int64(float64(averagePayload)*e.AlignmentOverhead)
	return int64(n) * perSequence
}

// CanAdmit reports whether a batch of n sequences averaging
// averagePayload bytes fits within usable memory.
func (e Estimator) CanAdmit(availableMemory int64, n int, averagePayload int64) bool {
	return e.EstimateBatchMemory(n, averagePayload) <= e.UsableMemory(availableMemory)
}

// SuggestBatchSize returns the largest sequence count, capped at
// MaxBatchSize, that EstimateBatchMemory projects will fit within
// usable memory at the given average payload size.
func (e Estimator) SuggestBatchSize(availableMemory int64, averagePayload int64) int {
	perSequence := e.BytesPerSequence + e.BytesPerIndexEntry + int64(float64(averagePayload)*e.AlignmentOverhead)
	if perSequence <= 0 {
		return e.MaxBatchSize
	}
	suggested := int(e.UsableMemory(availableMemory) / perSequence)
	if suggested > e.MaxBatchSize {
		suggested = e.MaxBatchSize
	}
	if suggested < 1 {
		suggested = 1
	}
	return suggested
}

// AvailableMemory reads total and free system RAM via the kernel's
// sysinfo syscall, matching the orchestrator's process-metrics package's
// style of reading resource usage straight from syscall structs rather
// than parsing /proc by hand.
func AvailableMemory() (total, free int64, err error) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, 0, err
	}
	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return int64(info.Totalram) * unit, int64(info.Freeram) * unit, nil
}

// ProcessMemoryInUse returns the memory actively in use by the Go
// runtime, in bytes: live heap spans plus goroutine stacks, excluding
// virtual address space reserved but not committed.
func ProcessMemoryInUse() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapInuse + m.StackInuse)
}

// Sample records one observed batch's processing cost: how many
// sequences it held, how long it took, and how much process memory was
// in use immediately after.
type Sample struct {
	BatchSize  int
	Duration   time.Duration
	MemoryUsed int64
}

// Tracker accumulates Samples from successive ingest calls and
// recomputes an adaptive batch-size suggestion once enough history
// exists to compare throughput across differently sized batches. This
// is the Go analogue of the original implementation's adaptive memory
// manager: rather than recomputing a suggestion from a static formula
// on every call, it prefers whichever observed batch size delivered the
// best sequences-per-second throughput.
type Tracker struct {
	mu      sync.Mutex
	samples []Sample
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends s to the Tracker's history. Only the most recent 32
// samples are retained, so a long-running process's suggestion tracks
// recent behavior rather than its entire lifetime.
func (t *Tracker) Record(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, s)
	if len(t.samples) > 32 {
		t.samples = t.samples[len(t.samples)-32:]
	}
}

// Suggest returns the batch size with the best observed throughput, or
// fallback if fewer than 3 samples have been recorded yet.
func (t *Tracker) Suggest(fallback int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < 3 {
		return fallback
	}
	best := t.samples[0]
	bestThroughput := throughput(best)
	for _, s := range t.samples[1:] {
		if th := throughput(s); th > bestThroughput {
			best = s
			bestThroughput = th
		}
	}
	if best.BatchSize <= 0 {
		return fallback
	}
	return best.BatchSize
}

func throughput(s Sample) float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.BatchSize) / s.Duration.Seconds()
}
