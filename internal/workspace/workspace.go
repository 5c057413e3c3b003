// Package workspace manages scoped per-operation working directories
// under the repository root, in the layout-management idiom of the
// teacher's internal/home package: a directory is carved out for one
// operation, available for staging files inside it (see Path), and
// released when the operation ends. The Repository's Ingest and Reduce
// each hold one for the whole operation but write chunks straight to the
// Store, not into the workspace.
package workspace

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/logging"
)

// dirName is the subdirectory, under the repository root, that holds
// every operation's scoped workspace.
const dirName = "workspace"

// Workspace is one operation's scoped staging directory:
// <root>/workspace/<op-id>/.
type Workspace struct {
	root   string
	opID   string
	path   string
	logger *slog.Logger

	preserveOnFailure bool
	failed            bool
}

// New creates a fresh workspace under root, named with a UUIDv7 (so
// workspace directories sort lexicographically by creation order, the
// same property the teacher's ChunkID relies on).
//
// preserveOnFailure controls Release's behavior after MarkFailed: per
// the decided scope of this flag, it applies only once a hard error
// (Unrecoverable, Corrupt, or Timeout) has been recorded — a successful
// or merely-user-erred operation always cleans up regardless.
func New(root string, preserveOnFailure bool, logger *slog.Logger) (*Workspace, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "mint workspace operation id")
	}
	opID := id.String()
	path := filepath.Join(root, dirName, opID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, engineerrors.Wrap(engineerrors.KindResource, err, "create workspace %s", path)
	}
	return &Workspace{
		root:              root,
		opID:              opID,
		path:              path,
		logger:            logging.Default(logger).With("component", "workspace", "op_id", opID),
		preserveOnFailure: preserveOnFailure,
	}, nil
}

// OpID returns the operation id this workspace is scoped to.
func (w *Workspace) OpID() string {
	return w.opID
}

// Root returns the workspace's directory path.
func (w *Workspace) Root() string {
	return w.path
}

// Path joins parts onto the workspace root, for staging a named file or
// subdirectory inside it.
func (w *Workspace) Path(parts ...string) string {
	return filepath.Join(append([]string{w.path}, parts...)...)
}

// shouldPreserveKind reports whether kind is a hard error class the
// preserve-on-failure flag is scoped to. KindUser and KindConflict are
// ordinary, retryable caller mistakes: a workspace is always cleaned up
// after those, flag or no flag.
func shouldPreserveKind(kind engineerrors.Kind) bool {
	switch kind {
	case engineerrors.KindUnrecoverable, engineerrors.KindCorrupt, engineerrors.KindTimeout:
		return true
	default:
		return false
	}
}

// MarkFailed records that the operation ended in err. If err is one of
// the hard-error kinds and preserveOnFailure was requested at
// construction, Release will leave the workspace on disk for operator
// inspection instead of removing it.
func (w *Workspace) MarkFailed(err error) {
	if err == nil {
		return
	}
	if shouldPreserveKind(engineerrors.KindOf(err)) {
		w.failed = true
	}
}

// Release removes the workspace directory, unless MarkFailed recorded a
// hard error and preserveOnFailure was requested. Callers defer Release
// immediately after New succeeds.
func (w *Workspace) Release() error {
	if w.failed && w.preserveOnFailure {
		w.logger.Warn("preserving workspace after hard failure", "path", w.path)
		return nil
	}
	if err := os.RemoveAll(w.path); err != nil {
		return engineerrors.Wrap(engineerrors.KindResource, err, "remove workspace %s", w.path)
	}
	return nil
}
