package temporal

import "testing"

func TestSetResolveAlias(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlias("current", "v1"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	got, err := s.ResolveAlias("current")
	if err != nil {
		t.Fatalf("ResolveAlias: %v", err)
	}
	if got != "v1" {
		t.Fatalf("expected v1, got %s", got)
	}
}

func TestSetAliasIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlias("current", "v1"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if err := s.SetAlias("current", "v1"); err != nil {
		t.Fatalf("SetAlias (repeat): %v", err)
	}
	got, err := s.ResolveAlias("current")
	if err != nil {
		t.Fatalf("ResolveAlias: %v", err)
	}
	if got != "v1" {
		t.Fatalf("expected v1, got %s", got)
	}
}

func TestDeleteProtectedAliasFails(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlias(AliasCurrent, "v1"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if err := s.DeleteAlias(AliasCurrent); err != ErrProtectedAlias {
		t.Fatalf("expected ErrProtectedAlias, got %v", err)
	}
	if err := s.DeleteAlias(AliasLatest); err != ErrProtectedAlias {
		t.Fatalf("expected ErrProtectedAlias, got %v", err)
	}
}

func TestDeleteCustomAlias(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlias("staging", "v1"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if err := s.DeleteAlias("staging"); err != nil {
		t.Fatalf("DeleteAlias: %v", err)
	}
	if _, err := s.ResolveAlias("staging"); err != ErrAliasNotFound {
		t.Fatalf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestResolveUnsetAliasFails(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ResolveAlias("nope"); err != ErrAliasNotFound {
		t.Fatalf("expected ErrAliasNotFound, got %v", err)
	}
}

func TestAuditLogRecordsMutations(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlias("current", "v1"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if err := s.SetAlias("staging", "v2"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if err := s.DeleteAlias("staging"); err != nil {
		t.Fatalf("DeleteAlias: %v", err)
	}

	entries, err := s.AuditLog()
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}
	if entries[0].Action != "set" || entries[0].Alias != "current" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[2].Action != "delete" || entries[2].Alias != "staging" {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}
}

func TestAuditRingEvictsOldestBeyondCap(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < auditRingCap+10; i++ {
		if err := s.SetAlias("staging", "v1"); err != nil {
			t.Fatalf("SetAlias: %v", err)
		}
	}
	entries, err := s.AuditLog()
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(entries) != auditRingCap {
		t.Fatalf("expected ring capped at %d, got %d", auditRingCap, len(entries))
	}
}
