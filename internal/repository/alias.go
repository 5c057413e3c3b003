package repository

import (
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/temporal"
)

// qualifiedAlias scopes an alias name by database, for the same reason
// qualifiedVersionID does: one Temporal Index instance serves every
// database.
func qualifiedAlias(databaseID, alias string) string {
	return databaseID + "@" + alias
}

func isProtectedAlias(alias string) bool {
	return alias == temporal.AliasCurrent || alias == temporal.AliasLatest
}

// SetAlias points alias at versionID within databaseID's namespace.
func (r *Repository) SetAlias(databaseID, alias, versionID string) error {
	return r.temporal.SetAlias(qualifiedAlias(databaseID, alias), qualifiedVersionID(databaseID, versionID))
}

// DeleteAlias removes a custom alias. "current" and "latest" are
// protected and cannot be deleted, enforced here since the qualified
// alias name temporal.Store sees no longer matches its own protected
// names literally.
func (r *Repository) DeleteAlias(databaseID, alias string) error {
	if isProtectedAlias(alias) {
		return engineerrors.New(engineerrors.KindConflict, "alias %q is protected and cannot be deleted", alias)
	}
	return r.temporal.DeleteAlias(qualifiedAlias(databaseID, alias))
}

// ResolveAlias returns the version id alias currently points to within
// databaseID's namespace.
func (r *Repository) ResolveAlias(databaseID, alias string) (string, error) {
	qualified, err := r.temporal.ResolveAlias(qualifiedAlias(databaseID, alias))
	if err != nil {
		return "", err
	}
	return unqualifyVersionID(databaseID, qualified), nil
}

// unqualifyVersionID strips a database's "<databaseID>@" prefix back off
// a qualified version id for display back to the caller.
func unqualifyVersionID(databaseID, qualified string) string {
	prefix := databaseID + "@"
	if len(qualified) > len(prefix) && qualified[:len(prefix)] == prefix {
		return qualified[len(prefix):]
	}
	return qualified
}
