package temporal

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"gastrolog/internal/engineerrors"
)

// Protected alias names. These always resolve to the most recently
// published version and cannot be deleted (spec.md §4.8).
const (
	AliasCurrent = "current"
	AliasLatest  = "latest"
)

// ErrProtectedAlias is returned when a caller tries to delete a
// protected alias.
var ErrProtectedAlias = engineerrors.New(engineerrors.KindConflict, "alias is protected and cannot be deleted")

// ErrAliasNotFound is returned when resolving an alias that was never set.
var ErrAliasNotFound = engineerrors.New(engineerrors.KindNotFound, "alias not found")

// AuditEntry is one record in the bounded audit ring: a log of every
// alias mutation and resolution, for after-the-fact review of what
// "current" pointed to at a given moment.
type AuditEntry struct {
	At        time.Time
	Action    string // "set", "delete", "resolve"
	Alias     string
	VersionID string
}

func isProtectedAlias(name string) bool {
	return name == AliasCurrent || name == AliasLatest
}

// SetAlias points name at versionID. Idempotent: setting the same
// alias to the same version twice is a no-op beyond the audit entry.
func (s *Store) SetAlias(name, versionID string) error {
	err := s.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketAliases).Put([]byte(name), []byte(versionID)); err != nil {
			return err
		}
		return appendAudit(tx, AuditEntry{Action: "set", Alias: name, VersionID: versionID})
	})
	if err != nil {
		return err
	}
	s.logger.Info("alias set", "alias", name, "version", versionID)
	return nil
}

// DeleteAlias removes name. Protected aliases (current, latest) cannot
// be deleted.
func (s *Store) DeleteAlias(name string) error {
	if isProtectedAlias(name) {
		return ErrProtectedAlias
	}
	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketAliases).Delete([]byte(name)); err != nil {
			return err
		}
		return appendAudit(tx, AuditEntry{Action: "delete", Alias: name})
	})
}

// ResolveAlias returns the version id that name currently points to and
// records the resolution in the audit ring.
func (s *Store) ResolveAlias(name string) (string, error) {
	var versionID string
	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketAliases).Get([]byte(name))
		if v == nil {
			return ErrAliasNotFound
		}
		versionID = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := s.update(func(tx *bbolt.Tx) error {
		return appendAudit(tx, AuditEntry{Action: "resolve", Alias: name, VersionID: versionID})
	}); err != nil {
		return "", err
	}
	return versionID, nil
}

// appendAudit pushes an entry onto the bounded audit ring, evicting the
// oldest entry once the ring exceeds auditRingCap (spec.md §4.8: "a
// small audit ring"). Called from within an existing write transaction.
func appendAudit(tx *bbolt.Tx, entry AuditEntry) error {
	b := tx.Bucket(bucketAudit)
	entry.At = time.Now().UTC()

	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUnrecoverable, err, "encode audit entry")
	}
	var key [8]byte
	putUint64(key[:], seq)
	if err := b.Put(key[:], data); err != nil {
		return err
	}

	if n := b.Stats().KeyN; n > auditRingCap {
		c := b.Cursor()
		for excess := n - auditRingCap; excess > 0; excess-- {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := b.Delete(k); err != nil {
				return err
			}
			c = b.Cursor()
		}
	}
	return nil
}

// AuditLog returns the audit ring's entries, oldest first.
func (s *Store) AuditLog() ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e AuditEntry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
