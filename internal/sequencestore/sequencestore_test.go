package sequencestore

import (
	"testing"

	"gastrolog/internal/chunkmodel"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	blobs, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(blobs)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seq := chunkmodel.Sequence{ID: "seq1", Payload: []byte("ACGTACGT")}
	h, err := s.Put(seq)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != seq.ID || string(got.Payload) != string(seq.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetByID(t *testing.T) {
	s := newTestStore(t)
	seq := chunkmodel.Sequence{ID: "seq1", Payload: []byte("ACGT")}
	if _, err := s.Put(seq); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.GetByID("seq1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(got.Payload) != "ACGT" {
		t.Fatalf("unexpected payload: %q", got.Payload)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByID("missing")
	if engineerrors.KindOf(err) != engineerrors.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestIdenticalSequencesDedupToSameHash(t *testing.T) {
	s := newTestStore(t)
	a := chunkmodel.Sequence{ID: "x", Payload: []byte("ACGT"), Taxon: 1}
	b := chunkmodel.Sequence{ID: "x", Payload: []byte("ACGT"), Taxon: 2}
	ha, err := s.Put(a)
	if err != nil {
		t.Fatalf("Put a: %v", err)
	}
	hb, err := s.Put(b)
	if err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if ha != hb {
		t.Fatal("expected same id+payload to dedup regardless of taxon annotation")
	}
}

func TestHashOfMatchesPut(t *testing.T) {
	s := newTestStore(t)
	seq := chunkmodel.Sequence{ID: "x", Payload: []byte("ACGT")}
	want := HashOf(seq)
	got, err := s.Put(seq)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got != want {
		t.Fatal("HashOf should predict Put's hash")
	}
}
