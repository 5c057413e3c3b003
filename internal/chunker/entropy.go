package chunker

import "math"

// kmerSize is the k-mer length used for the complexity estimate in the
// partition cost function (spec.md §4.4).
const kmerSize = 4

// shannonEntropy estimates sequence complexity as the Shannon entropy of
// the k-mer frequency distribution, normalized to [0, 1] by log2 of the
// total k-mer count (the entropy reached when every k-mer is distinct).
// Low-complexity runs
// (homopolymers, short tandem repeats) score near 0; high-complexity
// sequences score near 1.
func shannonEntropy(payload []byte) float64 {
	if len(payload) < kmerSize {
		return 0
	}

	counts := make(map[string]int)
	total := 0
	for i := 0; i+kmerSize <= len(payload); i++ {
		counts[string(payload[i:i+kmerSize])]++
		total++
	}
	if total == 0 || len(counts) <= 1 {
		return 0
	}

	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}

	maxH := math.Log2(float64(total))
	if maxH == 0 {
		return 0
	}
	return h / maxH
}

// averageComplexity returns the mean normalized k-mer entropy across a
// group of sequences, used as the est_compression proxy in the cost
// function: low-complexity groups compress well, so (1 - complexity)
// approximates compression headroom.
func averageComplexity(sequences []sequenceRef) float64 {
	if len(sequences) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sequences {
		sum += shannonEntropy(s.seq.Payload)
	}
	return sum / float64(len(sequences))
}
