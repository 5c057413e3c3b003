package chunker

import (
	"math"
	"math/rand"

	"gastrolog/internal/chunkmodel"
)

// annealing schedule constants (spec.md §4.4).
const (
	initialTemperature = 1.0
	coolingRatio       = 0.95
	temperatureFloor   = 0.01
	movesPerStep       = 8
)

// anneal runs a best-effort simulated-annealing pass over adjacent chunk
// boundaries, moving a single sequence across a boundary at a time and
// accepting moves per the Metropolis criterion. It never violates
// MinChunkSize/MaxChunkSize and never moves a sequence across a taxon
// boundary. A move that raises the local cost can still be accepted (with
// probability exp(-delta/temp)), so the result is not guaranteed to cost
// less than the partition the baseline packer produced.
func anneal(chunks []chunkmodel.FullChunk, params Params, seed uint64) []chunkmodel.FullChunk {
	if len(chunks) < 2 {
		return chunks
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	work := make([][]chunkmodel.Sequence, len(chunks))
	for i, c := range chunks {
		work[i] = append([]chunkmodel.Sequence{}, c.Sequences...)
	}

	for temp := initialTemperature; temp > temperatureFloor; temp *= coolingRatio {
		for step := 0; step < movesPerStep; step++ {
			i := rng.Intn(len(work) - 1)
			tryMove(work, i, params, rng, temp)
		}
	}

	out := make([]chunkmodel.FullChunk, 0, len(work))
	for _, seqs := range work {
		if len(seqs) == 0 {
			continue
		}
		out = append(out, chunkmodel.NewFullChunk(seqs))
	}
	return out
}

// tryMove considers shifting one sequence across the boundary between
// work[i] and work[i+1], applying it only if the pair's local cost
// improves or passes the Metropolis acceptance test.
func tryMove(work [][]chunkmodel.Sequence, i int, params Params, rng *rand.Rand, temp float64) {
	left, right := work[i], work[i+1]
	if len(left) == 0 || !sameTaxon(left, right) {
		return
	}

	before := pairCost(left, right, params)

	// Move the last sequence of left to the front of right.
	moved := left[len(left)-1]
	candLeft := left[:len(left)-1]
	candRight := append([]chunkmodel.Sequence{moved}, right...)

	if sizeOf(candLeft) < params.MinChunkSize && len(candLeft) > 0 {
		return
	}
	if sizeOf(candRight) > params.MaxChunkSize {
		return
	}

	after := pairCost(candLeft, candRight, params)
	delta := after - before
	if delta <= 0 || rng.Float64() < math.Exp(-delta/temp) {
		work[i] = candLeft
		work[i+1] = candRight
	}
}

func sameTaxon(a, b []chunkmodel.Sequence) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	return a[0].Taxon == b[0].Taxon
}

func sizeOf(seqs []chunkmodel.Sequence) int {
	total := 0
	for _, s := range seqs {
		total += approxSize(s)
	}
	return total
}

// pairCost evaluates the spec's weighted cost function over a pair of
// candidate chunks, using the size variance against the target, the
// dominant-taxon fraction, and the mean complexity estimate as the
// compression proxy. The rolling-hash boundary term is folded into the
// size term here: natural boundaries fall near TargetChunkSize already.
func pairCost(left, right []chunkmodel.Sequence, params Params) float64 {
	target := float64(params.TargetChunkSize)
	if target <= 0 {
		target = 1
	}

	sizeVar := variance(float64(sizeOf(left))/target, float64(sizeOf(right))/target)

	dom := dominantFraction(left) + dominantFraction(right)
	dom /= 2

	comp := averageComplexity(toRefs(left)) + averageComplexity(toRefs(right))
	comp /= 2

	return params.WeightSize*sizeVar +
		params.WeightTaxon*(1-dom) +
		params.WeightCompress*(1-comp) +
		params.WeightBoundary*0 // no independent boundary signal beyond size here
}

func variance(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func dominantFraction(seqs []chunkmodel.Sequence) float64 {
	if len(seqs) == 0 {
		return 1
	}
	counts := make(map[chunkmodel.TaxonID]int)
	for _, s := range seqs {
		counts[s.Taxon]++
	}
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	return float64(best) / float64(len(seqs))
}

func toRefs(seqs []chunkmodel.Sequence) []sequenceRef {
	refs := make([]sequenceRef, len(seqs))
	for i, s := range seqs {
		refs[i] = sequenceRef{seq: s, size: approxSize(s)}
	}
	return refs
}
