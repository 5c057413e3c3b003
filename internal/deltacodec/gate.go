package deltacodec

// Gate holds the Reducer's per-delta efficiency thresholds (spec.md §4.5).
type Gate struct {
	// CompressionThreshold: if SerializedSize() exceeds this fraction of
	// |child|, the child should be emitted as a fresh sequence instead.
	CompressionThreshold float64
	// MaxDeltaOps: if OpCount() exceeds this, the child should be emitted
	// as a fresh sequence instead.
	MaxDeltaOps int
}

// DefaultGate matches the typical values implied by spec.md §4.5.
var DefaultGate = Gate{CompressionThreshold: 0.5, MaxDeltaOps: 64}

// Passes reports whether rec is efficient enough to keep as a delta,
// given the child's payload length.
func (g Gate) Passes(rec Record, childLen int) bool {
	if g.MaxDeltaOps > 0 && rec.OpCount() > g.MaxDeltaOps {
		return false
	}
	if g.CompressionThreshold > 0 && float64(rec.SerializedSize()) > g.CompressionThreshold*float64(childLen) {
		return false
	}
	return true
}
