package trie

// Store is the interface Transaction uses to resolve a StoredRef's Idx into
// actual node content while descending the trie. SnapshotBuilder (prover,
// backed by a full Database) and Snapshot (verifier, backed by nothing but
// the bytes it was handed) both implement it, which is the crux of running
// the same Transaction logic on both sides: neither prover nor verifier
// code ever has to ask which one it is.
type Store[V PortableHash] interface {
	// GetNode resolves idx to its stored content. Implementations must
	// treat repeated calls with the same idx as cheap — Transaction does
	// not cache resolutions itself. Returns an error if idx names a node
	// whose content was never recorded (a Snapshot's unvisited region);
	// callers that only need the subtree's hash, not its content, should
	// use CalcSubtreeHash instead.
	GetNode(idx Idx) (StoredNode[V], error)

	// CalcSubtreeHash returns the Merkle hash of the subtree rooted at
	// idx, recursing through the store's own representation. Unlike
	// GetNode, this never fails on an unvisited node: a Snapshot records
	// exactly the hash such a node needs without its content, and the root
	// hash fold (Transaction.hashRef) must be able to use that hash
	// without materializing anything the prover never visited — a
	// SnapshotBuilder has the hash of every arena entry recorded the
	// moment the entry is allocated, so it can return it directly without
	// loading or recursing at all.
	CalcSubtreeHash(hasher PortableHasher32, idx Idx) (NodeHash, error)

	// CurrentRoot returns the store's current root: for a Snapshot, the
	// root it was built for; for a SnapshotBuilder, the root it was opened
	// at until a Commit replaces it with the newly committed root.
	CurrentRoot() TrieRoot[NodeHash]

	// RootIdx returns the store-local index of the root node, if the trie
	// is non-empty. A SnapshotBuilder's arena places the root wherever its
	// last Commit resolved it to (not necessarily 0); a Snapshot's dense
	// layout places the root last among its branches (or at index 0 for a
	// single leaf/unvisited-hash trie) — so Transaction asks the Store
	// rather than assuming either convention.
	RootIdx() (Idx, bool)
}

// Database is the prover-side content-addressed backing store: every node
// that has ever existed across the trie's whole history, keyed by its own
// hash. A SnapshotBuilder is a thin, transaction-scoped lazy view over one
// of these; the Database itself outlives any single transaction.
type Database[V PortableHash] interface {
	// GetNode looks up the node stored under hash. Implementations return
	// ErrStoreUnreachable (wrapped) when hash is unknown.
	GetNode(hash NodeHash) (DBNode[V], error)
	// SetNode persists node under hash. Writes are expected to be
	// idempotent: storing the same (hash, node) pair twice must succeed
	// and must not be observable as two different nodes.
	SetNode(hash NodeHash, node DBNode[V]) error
}
