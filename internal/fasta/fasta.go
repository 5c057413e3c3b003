// Package fasta is a thin data-contract adapter between FASTA records on
// disk and chunkmodel.Sequence: the FASTA format itself, CLI plumbing, and
// HTTP retrieval are external collaborators, but something has to turn
// ">id description\nACGT...\n" bytes into the Sequence values Ingest
// accepts, and emit them back out for Reconstruct/diagnostics. Grounded on
// the teacher's line-oriented ingester adapters (internal/ingester/syslog),
// which scan a byte stream and extract structured fields from free-text
// headers the same way a taxon token is pulled out of a FASTA description.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gastrolog/internal/chunkmodel"
)

// taxonTokens are the recognized taxon-id markers a FASTA description may
// carry, tried in order. The first one present wins.
var taxonTokens = []string{"OX=", "TaxID=", "taxon:", "tax_id="}

// extractTaxon scans description for a recognized taxon token and returns
// the digits immediately following it. Absence of any token, or digits
// that don't parse, both report ok=false: an unresolvable taxon token is
// not a parse error, it just leaves Sequence.Taxon at NoTaxon.
func extractTaxon(description string) (chunkmodel.TaxonID, bool) {
	for _, token := range taxonTokens {
		pos := strings.Index(description, token)
		if pos < 0 {
			continue
		}
		rest := description[pos+len(token):]
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}
		n, err := strconv.ParseUint(rest[:end], 10, 32)
		if err != nil {
			continue
		}
		return chunkmodel.TaxonID(n), true
	}
	return chunkmodel.NoTaxon, false
}

// Parse reads a FASTA stream and returns its records as sequences, upper-
// casing payloads per chunkmodel.Sequence's normalization invariant. A
// description carrying a recognized taxon token populates Taxon; an
// id-only or description-less header leaves it at chunkmodel.NoTaxon.
func Parse(r io.Reader) ([]chunkmodel.Sequence, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		sequences []chunkmodel.Sequence
		current   *chunkmodel.Sequence
		payload   strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Payload = []byte(strings.ToUpper(payload.String()))
		sequences = append(sequences, *current)
		current = nil
		payload.Reset()
	}

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		if text[0] == '>' {
			flush()
			id, description := splitHeader(text[1:])
			seq := chunkmodel.Sequence{ID: id, Description: description}
			if taxon, ok := extractTaxon(description); ok {
				seq.Taxon = taxon
			}
			current = &seq
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("fasta: line %d: sequence data before any header", line)
		}
		payload.WriteString(strings.TrimSpace(text))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fasta: scan: %w", err)
	}
	flush()

	for i := range sequences {
		if sequences[i].ID == "" {
			return nil, fmt.Errorf("fasta: record %d has an empty id", i+1)
		}
	}
	return sequences, nil
}

// splitHeader splits a header line's id (everything up to the first space
// or tab) from its free-text description.
func splitHeader(header string) (id, description string) {
	idx := strings.IndexAny(header, " \t")
	if idx < 0 {
		return header, ""
	}
	return header[:idx], strings.TrimSpace(header[idx+1:])
}

// lineWidth is the column at which Write wraps payload bytes, the
// conventional FASTA line length.
const lineWidth = 80

// Write serializes sequences back to FASTA, appending a TaxID= token to
// any description that doesn't already carry a recognized taxon token when
// the sequence's taxon is known, per the token round-trip rule: known taxa
// are always discoverable from the written file even if the source never
// carried one.
func Write(w io.Writer, sequences []chunkmodel.Sequence) error {
	bw := bufio.NewWriter(w)
	for _, seq := range sequences {
		description := seq.Description
		if seq.Taxon != chunkmodel.NoTaxon {
			if _, ok := extractTaxon(description); !ok {
				if description != "" {
					description += " "
				}
				description += fmt.Sprintf("TaxID=%d", seq.Taxon)
			}
		}

		if description != "" {
			if _, err := fmt.Fprintf(bw, ">%s %s\n", seq.ID, description); err != nil {
				return fmt.Errorf("fasta: write header: %w", err)
			}
		} else {
			if _, err := fmt.Fprintf(bw, ">%s\n", seq.ID); err != nil {
				return fmt.Errorf("fasta: write header: %w", err)
			}
		}

		payload := seq.Payload
		for len(payload) > 0 {
			n := lineWidth
			if n > len(payload) {
				n = len(payload)
			}
			if _, err := bw.Write(payload[:n]); err != nil {
				return fmt.Errorf("fasta: write payload: %w", err)
			}
			if err := bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("fasta: write payload: %w", err)
			}
			payload = payload[n:]
		}
	}
	return bw.Flush()
}
