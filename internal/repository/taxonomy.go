package repository

import (
	"fmt"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/temporal"
)

// PutTaxonomyVersion records a taxonomy snapshot (spec.md §4.8's
// taxonomy axis, independent of sequence content).
func (r *Repository) PutTaxonomyVersion(taxonomyVersionID string, assignments []temporal.TaxonomyAssignment) error {
	return r.temporal.PutTaxonomyVersion(taxonomyVersionID, assignments)
}

// ApplyTaxonomy reports the reclassifications between two taxonomy
// snapshots, the retroactive-reclassification path QueryAt's
// ApproximateTaxonomy flag points a caller toward.
func (r *Repository) ApplyTaxonomy(oldTaxonomyVersionID, newTaxonomyVersionID string) ([]temporal.ReclassificationEntry, error) {
	return r.temporal.ApplyTaxonomy(oldTaxonomyVersionID, newTaxonomyVersionID)
}

// taxonomyDiscrepancies compares each sequence's carried taxon against
// the assignments recorded for taxonomyVersionID, the taxonomy version
// that will become the enclosing manifest's TaxonomyManifestHash. A
// sequence unknown to that taxonomy version, or assigned a different
// taxon than it carries, is a discrepancy: recorded on the manifest as a
// soft failure, not an ingest error (spec.md §3).
func (r *Repository) taxonomyDiscrepancies(taxonomyVersionID string, sequences []chunkmodel.Sequence) ([]string, error) {
	if taxonomyVersionID == "" {
		return nil, nil
	}
	assignments, err := r.temporal.TaxonomyAssignments(taxonomyVersionID)
	if err != nil {
		return nil, err
	}
	var discrepancies []string
	for _, s := range sequences {
		taxon, ok := assignments[s.ID]
		switch {
		case !ok:
			discrepancies = append(discrepancies, fmt.Sprintf("%s: not present in taxonomy version %s", s.ID, taxonomyVersionID))
		case taxon != s.Taxon:
			discrepancies = append(discrepancies, fmt.Sprintf("%s: carries taxon %d, taxonomy version %s assigns %d", s.ID, s.Taxon, taxonomyVersionID, taxon))
		}
	}
	return discrepancies, nil
}
