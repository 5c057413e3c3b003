// Package temporal implements the bi-temporal version index: an
// embedded key-value store (go.etcd.io/bbolt) tracking published
// manifests, alias resolution, per-sequence observation history, and
// taxonomy snapshots (spec.md §4.8).
package temporal

import "time"

// Coord is a bi-temporal coordinate: a point in sequence-data time and
// a point in taxonomy-classification time. The two axes move
// independently: a sequence version can be reclassified against a newer
// taxonomy without re-ingesting any sequence data.
type Coord struct {
	SequenceTime time.Time
	TaxonomyTime time.Time
}
