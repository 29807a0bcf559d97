package trie

import "github.com/cockroachdb/errors"

// Sentinel errors callers can match against with errors.Is. Every error the
// package returns either is one of these or wraps one of these, following
// cockroachdb/errors' Wrap/Mark conventions rather than defining a bespoke
// error type hierarchy.
var (
	// ErrKeyNotFound names a missing key for callers that want an error
	// value for absence. No function in this package returns it: a plain
	// Get against an absent key returns (zero, false, nil), and Entry
	// reports absence as a vacant entry.
	ErrKeyNotFound = errors.New("trie: key not found")

	// ErrMalformedSnapshot is returned when a Snapshot fails the
	// structural checks Snapshot.Validate performs: vector sizes that form
	// no valid root, an empty root carrying nodes, a branch child that is
	// a branch at an index not below its parent's (which covers cycles),
	// or a child index past the last slot.
	ErrMalformedSnapshot = errors.New("trie: malformed snapshot")

	// ErrRootHashMismatch is returned when a Transaction built from a
	// Snapshot is asked to verify against a root hash the snapshot does
	// not actually produce.
	ErrRootHashMismatch = errors.New("trie: root hash mismatch")

	// ErrStoreUnreachable is returned when a Store cannot resolve a
	// StoredRef's Idx: for a SnapshotBuilder this means the arena index is
	// out of range or the backing database reported the node missing
	// (other database errors are passed through wrapped, without this
	// sentinel); for a Snapshot it means the index is out of the
	// snapshot's bounds or names an unvisited hash-only slot.
	ErrStoreUnreachable = errors.New("trie: stored node unreachable")

	// ErrSnapshotBuilderFrozen is returned when a SnapshotBuilder is
	// mutated after build_initial_snapshot-equivalent extraction, since
	// the arena it was tracking has already been handed off.
	ErrSnapshotBuilderFrozen = errors.New("trie: snapshot builder already finalized")
)

// wrapf is a small local helper around errors.Wrapf kept so call sites read
// the same whether the underlying error came from a Store, a codec, or a
// structural check.
func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
