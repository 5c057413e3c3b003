package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"gastrolog/internal/engineerrors"
)

func TestNewCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(ws.Root())
	if err != nil {
		t.Fatalf("stat workspace root: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected workspace root to be a directory")
	}
	if filepath.Dir(ws.Root()) != filepath.Join(root, dirName) {
		t.Fatalf("workspace root %s not nested under %s", ws.Root(), dirName)
	}
}

func TestReleaseRemovesDirectoryOnSuccess(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, true, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Fatal("expected workspace directory to be removed after a successful release")
	}
}

func TestReleaseRemovesDirectoryAfterUserErrorRegardlessOfFlag(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, true, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws.MarkFailed(engineerrors.New(engineerrors.KindUser, "bad reference"))
	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Fatal("expected workspace directory to be removed after a mere user error")
	}
}

func TestReleasePreservesDirectoryAfterHardFailureWhenRequested(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, true, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws.MarkFailed(engineerrors.New(engineerrors.KindCorrupt, "hash mismatch"))
	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Root()); err != nil {
		t.Fatalf("expected workspace directory to survive a preserved hard failure, stat error: %v", err)
	}
}

func TestReleaseRemovesDirectoryAfterHardFailureWhenNotRequested(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws.MarkFailed(engineerrors.New(engineerrors.KindTimeout, "aligner deadline exceeded"))
	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Fatal("expected workspace directory to be removed when preserveOnFailure was not requested")
	}
}

func TestPathJoinsUnderWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := ws.Path("staging", "chunk.bin")
	want := filepath.Join(ws.Root(), "staging", "chunk.bin")
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestOpIDsAreUniqueAndOrderedByCreation(t *testing.T) {
	root := t.TempDir()
	a, err := New(root, false, nil)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(root, false, nil)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	if a.OpID() == b.OpID() {
		t.Fatal("expected distinct operation ids")
	}
	if a.OpID() >= b.OpID() {
		t.Fatalf("expected UUIDv7 ids to sort by creation order: %s then %s", a.OpID(), b.OpID())
	}
}
