// Package reducer picks, per taxon, a small set of reference sequences
// and re-expresses the remaining sequences as delta chains against them
// (spec.md §4.6).
package reducer

import "gastrolog/internal/deltacodec"

// Params configures the Reducer's reference-admission policy.
type Params struct {
	// SimilarityThreshold is the threshold s: a candidate is admitted as
	// a fresh reference only if its similarity to every existing
	// reference in its group falls below s.
	SimilarityThreshold float64

	// TargetRatio is the retention ratio r in (0, 1]. Each taxon group
	// stops admitting new references once its reference count reaches
	// ceil(|group| * TargetRatio); later candidates in that group must
	// attach to the most similar admitted reference as a delta even if
	// their similarity is at or above SimilarityThreshold. A ratio of 1
	// never binds: every group may admit as many references as
	// SimilarityThreshold allows.
	TargetRatio float64

	// MaxChainDepth bounds how many delta hops separate a sequence from
	// its chain's full-chunk root. Typical value: 3.
	MaxChainDepth int

	// Gate is the efficiency gate applied to every candidate delta
	// encoding; failing it falls back to full-reference admission.
	Gate deltacodec.Gate
}

// DefaultParams matches the typical values implied by spec.md §4.6.
func DefaultParams() Params {
	return Params{
		SimilarityThreshold: 0.9,
		TargetRatio:         1.0,
		MaxChainDepth:       3,
		Gate:                deltacodec.DefaultGate,
	}
}
