package deltacodec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gastrolog/internal/engineerrors"
)

// ErrMissingReferenceID is returned by ParseLegacyLine for the two-field
// form (reference id elided). spec.md §9 flags the semantics of
// reconstruction in that case as an open question; this implementation
// resolves it as a hard UserError at parse time rather than guessing a
// reference (see SPEC_FULL.md §12 and DESIGN.md).
var ErrMissingReferenceID = engineerrors.New(engineerrors.KindUser,
	"legacy delta line elides the reference id; supply one explicitly")

// ParseLegacyLine parses one line of the legacy tab-separated delta
// format: child_id<TAB>reference_id<TAB>range... or, for older files,
// child_id<TAB>range... (reference id elided). The two-field form always
// fails with ErrMissingReferenceID: reconstruction would otherwise have to
// guess the reference, which this implementation refuses to do.
func ParseLegacyLine(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return Record{}, engineerrors.New(engineerrors.KindUser, "legacy delta line has too few fields: %q", line)
	}

	childID := fields[0]
	rest := fields[1:]

	// Detect the two-field elided form: the second field matches the
	// delta grammar (a range), not an identifier.
	if looksLikeRange(rest[0]) {
		return Record{}, ErrMissingReferenceID
	}

	referenceID := rest[0]
	ranges := make([]Range, 0, len(rest)-1)
	for _, f := range rest[1:] {
		r, err := parseRangeField(f)
		if err != nil {
			return Record{}, err
		}
		ranges = append(ranges, r)
	}

	return Record{ChildID: childID, ReferenceID: referenceID, Ranges: ranges}, nil
}

// looksLikeRange reports whether f matches the delta grammar for a range
// field (pos,substitution or start>end,substitution) rather than an
// identifier.
func looksLikeRange(f string) bool {
	comma := strings.IndexByte(f, ',')
	if comma < 0 {
		return false
	}
	left := f[:comma]
	if strings.Contains(left, ">") {
		parts := strings.SplitN(left, ">", 2)
		_, err1 := strconv.Atoi(parts[0])
		_, err2 := strconv.Atoi(parts[1])
		return err1 == nil && err2 == nil
	}
	_, err := strconv.Atoi(left)
	return err == nil
}

func parseRangeField(f string) (Range, error) {
	comma := strings.IndexByte(f, ',')
	if comma < 0 {
		return Range{}, engineerrors.New(engineerrors.KindUser, "malformed range field: %q", f)
	}
	left, sub := f[:comma], f[comma+1:]

	if strings.Contains(left, ">") {
		parts := strings.SplitN(left, ">", 2)
		if len(parts) != 2 {
			return Range{}, engineerrors.New(engineerrors.KindUser, "malformed range bounds: %q", left)
		}
		start, err1 := strconv.Atoi(parts[0])
		end, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return Range{}, engineerrors.New(engineerrors.KindUser, "malformed range bounds: %q", left)
		}
		return Range{Start: start, End: end, Substitution: []byte(sub)}, nil
	}

	pos, err := strconv.Atoi(left)
	if err != nil {
		return Range{}, engineerrors.New(engineerrors.KindUser, "malformed range position: %q", left)
	}
	return Range{Start: pos, End: pos, Substitution: []byte(sub)}, nil
}

// FormatLegacyLine renders rec in the legacy tab-separated form, always
// using the full three-field form (child_id, reference_id, ranges...)
// since this implementation never writes the ambiguous two-field form.
func FormatLegacyLine(rec Record) string {
	var sb strings.Builder
	sb.WriteString(rec.ChildID)
	sb.WriteByte('\t')
	sb.WriteString(rec.ReferenceID)
	for _, r := range rec.Ranges {
		sb.WriteByte('\t')
		if r.Start == r.End {
			fmt.Fprintf(&sb, "%d,%s", r.Start, r.Substitution)
		} else {
			fmt.Fprintf(&sb, "%d>%d,%s", r.Start, r.End, r.Substitution)
		}
	}
	return sb.String()
}

// ParseLegacyFile reads a legacy delta text file, one record per line.
func ParseLegacyFile(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	var records []Record
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLegacyLine(line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("deltacodec: scan legacy file: %w", err)
	}
	return records, nil
}
