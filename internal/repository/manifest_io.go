package repository

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gastrolog/internal/engineerrors"
	"gastrolog/internal/hashcodec"
	"gastrolog/internal/manifest"
)

const (
	manifestFileName = "manifest.tal"
	sidecarFileName  = "manifest.json"
)

// newVersionID mints a UUIDv7 version id, so version directories and
// Temporal Index keys sort by creation order (spec.md §6's
// versions/<provider>/<dataset>/<ts>/ naming is a timestamp in spirit;
// a UUIDv7 gives the same ordering property without a wall-clock read
// at decode time).
func newVersionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "mint version id")
	}
	return id.String(), nil
}

// qualifiedVersionID scopes a version id by database, since a single
// Temporal Index instance backs every database a Repository serves.
func qualifiedVersionID(databaseID, versionID string) string {
	return databaseID + "@" + versionID
}

// writeManifest serializes m to its canonical binary form plus a JSON
// diagnostic sidecar, under the version's on-disk directory, and returns
// the content hash of the canonical binary form (the hash stored in the
// Temporal Index's VersionRecord).
func (r *Repository) writeManifest(databaseID, versionID string, m manifest.Manifest) (hashcodec.Hash, error) {
	dir := r.versionDir(databaseID, versionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "create version directory %s", dir)
	}

	encoded, err := m.Encode()
	if err != nil {
		return hashcodec.Hash{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFileName), encoded, 0o644); err != nil {
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "write manifest binary")
	}

	sidecar, err := m.EncodeJSONSidecar()
	if err != nil {
		return hashcodec.Hash{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, sidecarFileName), sidecar, 0o644); err != nil {
		return hashcodec.Hash{}, engineerrors.Wrap(engineerrors.KindResource, err, "write manifest sidecar")
	}

	return hashcodec.Sum(encoded), nil
}

// loadManifest reads and decodes the manifest for a published version.
func (r *Repository) loadManifest(databaseID, versionID string) (manifest.Manifest, error) {
	path := filepath.Join(r.versionDir(databaseID, versionID), manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest.Manifest{}, engineerrors.Wrap(engineerrors.KindNotFound, err, "manifest for version %s/%s", databaseID, versionID)
		}
		return manifest.Manifest{}, engineerrors.Wrap(engineerrors.KindResource, err, "read manifest for version %s/%s", databaseID, versionID)
	}
	return manifest.Decode(data)
}
