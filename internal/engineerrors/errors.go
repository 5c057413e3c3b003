// Package engineerrors defines the Engine's closed error taxonomy (spec.md
// §7) as a single typed error so the Repository can translate failures into
// exit codes and remediation text without string matching.
package engineerrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the Engine's error taxonomy. The set is closed: new
// failure categories are not expected to be added by adapters.
type Kind int

const (
	// KindUser is a bad argument, missing file, or malformed reference.
	// Recoverable by the caller.
	KindUser Kind = iota
	// KindNotFound is a failed content-addressed lookup. Recoverable by
	// retrying after ingest.
	KindNotFound
	// KindCorrupt is a hash mismatch, bad envelope, broken Merkle path, or
	// out-of-range delta. Fatal for the current query; the offending blob
	// is quarantined, not deleted.
	KindCorrupt
	// KindConflict is an alias already set without --force, or a version
	// id collision. Recoverable.
	KindConflict
	// KindTimeout is an external tool exceeding its deadline. Recoverable
	// with a reduced batch size.
	KindTimeout
	// KindResource is out of memory, disk, or file descriptors.
	// Recoverable with back-off.
	KindResource
	// KindUnrecoverable is a programmer invariant violation. The process
	// exits non-zero after flushing logs; no partial manifest is
	// published.
	KindUnrecoverable
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindNotFound:
		return "not_found"
	case KindCorrupt:
		return "corrupt"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	case KindResource:
		return "resource"
	case KindUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind to the CLI exit code described in spec.md §6.
func (k Kind) ExitCode() int {
	switch k {
	case KindUser, KindConflict:
		return 1
	case KindCorrupt:
		return 2
	case KindUnrecoverable, KindResource:
		return 3
	case KindTimeout:
		return 4
	default:
		return 1
	}
}

// Error is a typed Engine error carrying a Kind, a message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err if it is, or wraps, an *Error.
// Unrecognized errors are treated as KindUnrecoverable, the conservative
// default for a programmer invariant the caller didn't anticipate.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnrecoverable
}

// Is reports whether err is an Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
