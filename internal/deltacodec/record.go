package deltacodec

import (
	"bytes"
	"errors"
	"fmt"

	"gastrolog/internal/chunkmodel"
)

// ErrCorrupt is returned when reconstruction encounters an invalid range.
var ErrCorrupt = errors.New("deltacodec: corrupt delta record")

// Record is the output of Encode: the child sequence expressed as a list
// of ranged substitutions against a named reference (spec.md §4.5).
type Record struct {
	ChildID     string
	ReferenceID string
	Taxon       chunkmodel.TaxonID
	Ranges      []Range
}

// OpCount returns the number of edit operations this record represents,
// used against the Reducer's max_delta_ops efficiency gate.
func (r Record) OpCount() int {
	return len(r.Ranges)
}

// SerializedSize estimates the on-disk size of the record, used against
// the Reducer's compression_threshold efficiency gate.
func (r Record) SerializedSize() int {
	size := len(r.ChildID) + len(r.ReferenceID) + 4
	for _, rg := range r.Ranges {
		size += 16 + len(rg.Substitution)
	}
	return size
}

// Encode aligns reference against child and builds a list of ranged
// substitutions by run-length-merging adjacent edited positions
// (spec.md §4.5).
func Encode(reference, child chunkmodel.Sequence) (Record, error) {
	rec := Record{
		ChildID:     child.ID,
		ReferenceID: reference.ID,
		Taxon:       child.Taxon,
	}
	if child.Taxon == chunkmodel.NoTaxon {
		rec.Taxon = reference.Taxon
	}

	if len(reference.Payload) == len(child.Payload) {
		rec.Ranges = rangesFromEqualLength(reference.Payload, child.Payload)
		return rec, nil
	}

	ax, bx := alignGlobal(reference.Payload, child.Payload)
	ranges, err := rangesFromAlignment(ax, bx, len(reference.Payload))
	if err != nil {
		return Record{}, err
	}
	rec.Ranges = ranges
	return rec, nil
}

// rangesFromEqualLength handles the common case (spec.md S2): reference
// and child have identical length, so differences are pure
// position-for-position substitutions. Adjacent differing positions are
// merged into a single range.
func rangesFromEqualLength(reference, child []byte) []Range {
	var ranges []Range
	i := 0
	for i < len(reference) {
		if reference[i] == child[i] {
			i++
			continue
		}
		start := i
		for i < len(reference) && reference[i] != child[i] {
			i++
		}
		end := i - 1
		sub := make([]byte, end-start+1)
		copy(sub, child[start:end+1])
		ranges = append(ranges, Range{Start: start, End: end, Substitution: sub})
	}
	return ranges
}

// rangesFromAlignment converts a padded global alignment into ranges
// anchored in reference coordinates. Runs of insertion-only columns (no
// reference base consumed) are anchored to the nearest consumed reference
// position so every range satisfies 0 <= start <= end < refLen.
func rangesFromAlignment(ax, bx []byte, refLen int) ([]Range, error) {
	if refLen == 0 {
		if bytes.Count(ax, []byte{gapByte}) != len(ax) {
			return nil, fmt.Errorf("%w: non-empty reference consumption against empty reference", ErrCorrupt)
		}
		if len(bx) == 0 {
			return nil, nil
		}
		return []Range{{Start: 0, End: 0, Substitution: bx}}, nil
	}

	var ranges []Range
	refPos := -1 // last reference position consumed so far (-1 = none yet)
	col := 0
	for col < len(ax) {
		if ax[col] == bx[col] && ax[col] != gapByte {
			refPos++
			col++
			continue
		}
		// Start of a diff run: accumulate columns until a stable match.
		runStart := col
		runRefStart := -1
		runRefEnd := -1
		var sub []byte
		for col < len(ax) && !(ax[col] == bx[col] && ax[col] != gapByte) {
			if ax[col] != gapByte {
				refPos++
				if runRefStart == -1 {
					runRefStart = refPos
				}
				runRefEnd = refPos
			}
			if bx[col] != gapByte {
				sub = append(sub, bx[col])
			}
			col++
		}
		_ = runStart

		start, end := runRefStart, runRefEnd
		if start == -1 {
			// Pure insertion run: anchor to the previous consumed
			// reference position, or to position 0 if the run occurs
			// before any reference base has been consumed.
			anchor := refPos
			leading := anchor < 0
			if leading {
				anchor = 0
			}
			if anchor >= refLen {
				anchor = refLen - 1
			}
			start, end = anchor, anchor
			// The anchored reference base must still appear verbatim, since
			// it was not part of this run: in front of the inserted content,
			// or after it when the run precedes every reference base.
			if leading {
				sub = append(sub, refByteAt(ax, bx, anchor))
			} else {
				sub = append([]byte{refByteAt(ax, bx, anchor)}, sub...)
			}
		}
		ranges = append(ranges, Range{Start: start, End: end, Substitution: sub})
	}
	return ranges, nil
}

// refByteAt looks up the reference byte at the given reference-coordinate
// position by re-walking the alignment. Used only for the rare
// pure-insertion-run anchoring case.
func refByteAt(ax, bx []byte, pos int) byte {
	refPos := -1
	for col := range ax {
		if ax[col] != gapByte {
			refPos++
			if refPos == pos {
				return ax[col]
			}
		}
	}
	_ = bx
	return 0
}

// Reconstruct copies the reference payload and applies ranges in order,
// returning the decoded child sequence (spec.md §4.5). A failing range
// validity check is a Corrupt error.
func Reconstruct(reference chunkmodel.Sequence, rec Record) (chunkmodel.Sequence, error) {
	refLen := len(reference.Payload)
	var out bytes.Buffer
	cursor := 0
	for _, r := range rec.Ranges {
		if err := r.Validate(refLen); err != nil {
			return chunkmodel.Sequence{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if r.Start < cursor {
			return chunkmodel.Sequence{}, fmt.Errorf("%w: overlapping or out-of-order ranges", ErrCorrupt)
		}
		out.Write(reference.Payload[cursor:r.Start])
		out.Write(r.Substitution)
		cursor = r.End + 1
	}
	out.Write(reference.Payload[cursor:])

	taxon := rec.Taxon
	return chunkmodel.Sequence{
		ID:      rec.ChildID,
		Payload: out.Bytes(),
		Taxon:   taxon,
	}, nil
}
