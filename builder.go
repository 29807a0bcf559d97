package trie

import (
	"github.com/cockroachdb/errors"
)

// builderEntry is one slot of a SnapshotBuilder's arena. A slot starts out
// knowing only the hash of the subtree it names; the first GetNode call
// against it fetches and translates the corresponding DBNode, after which
// the slot holds the fully resolved StoredBranch/StoredLeaf and loaded
// becomes true.
type builderEntry[V PortableHash] struct {
	hash   NodeHash
	loaded bool
	node   StoredNode[V]
}

// SnapshotBuilder is the prover-side Store: a lazy, transaction-scoped
// arena layered over a full Database. Only nodes actually touched during a
// transaction end up resolved in the arena, which is exactly the set of
// nodes BuildInitialSnapshot needs to hand the verifier — untouched
// siblings are carried along as bare hashes, never as content.
//
// This plays the role the teacher's ResolvableTrie plays over its
// NodeDatabase: both resolve hash-named children lazily and memoize the
// result so a second descent through the same child is free.
type SnapshotBuilder[V PortableHash] struct {
	db   Database[V]
	root TrieRoot[NodeHash]
	// initialRoot is the root the builder was opened at; when non-empty it
	// always lives at arena slot 0.
	initialRoot TrieRoot[NodeHash]
	rootIdx     Idx
	arena       []builderEntry[V]
	byHash      map[NodeHash]Idx
	frozen      bool
}

// NewSnapshotBuilder opens a SnapshotBuilder against db at the given root.
// An Empty root starts a brand new trie; a non-empty root must already be
// reachable through db (lazily — nothing is fetched until first use).
func NewSnapshotBuilder[V PortableHash](db Database[V], root TrieRoot[NodeHash]) *SnapshotBuilder[V] {
	b := &SnapshotBuilder[V]{
		db:          db,
		root:        root,
		initialRoot: root,
		byHash:      make(map[NodeHash]Idx),
	}
	if hash, ok := root.Unwrap(); ok {
		b.arena = append(b.arena, builderEntry[V]{hash: hash})
		b.byHash[hash] = 0
		b.rootIdx = 0
	}
	return b
}

func (b *SnapshotBuilder[V]) CurrentRoot() TrieRoot[NodeHash] {
	return b.root
}

// RootIdx returns the arena index the root node currently lives at, if the
// trie is non-empty. This is whatever index commitNodeRef last resolved the
// root to — not necessarily 0, since a root committed after the builder's
// very first node (slot 0) lands wherever getOrCreateSlot placed it, and
// slot 0 may already be occupied by an unrelated node (e.g. a leaf that was
// the first thing faulted into the arena).
func (b *SnapshotBuilder[V]) RootIdx() (Idx, bool) {
	if b.root.IsEmpty() {
		return 0, false
	}
	return b.rootIdx, true
}

// GetNode resolves idx, fetching and translating from the backing Database
// on first access.
func (b *SnapshotBuilder[V]) GetNode(idx Idx) (StoredNode[V], error) {
	if int(idx) >= len(b.arena) {
		return nil, errors.Wrapf(ErrStoreUnreachable, "snapshot builder arena index %d out of range", idx)
	}
	entry := &b.arena[idx]
	if b.frozen && !entry.loaded {
		return nil, errors.Wrapf(ErrSnapshotBuilderFrozen, "snapshot builder arena index %d requested after BuildInitialSnapshot", idx)
	}
	if entry.loaded {
		return entry.node, nil
	}
	dbNode, err := b.db.GetNode(entry.hash)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving node %s", entry.hash)
	}
	switch n := dbNode.(type) {
	case DBBranch[V]:
		left := b.getOrCreateSlot(n.Left)
		right := b.getOrCreateSlot(n.Right)
		entry.node = StoredBranch[V]{Left: left, Right: right, Mask: n.Mask, PriorWord: n.PriorWord, Prefix: n.Prefix}
	case DBLeaf[V]:
		entry.node = StoredLeaf[V]{Leaf: n.Leaf}
	default:
		return nil, errors.Newf("trie: unknown DBNode type %T", dbNode)
	}
	entry.loaded = true
	return entry.node, nil
}

// CalcSubtreeHash returns idx's subtree hash directly from the arena
// without loading or faulting anything in — every arena slot already knows
// its own hash the moment it is allocated (see getOrCreateSlot), whether
// or not its content has ever been resolved. This matches spec.md §4.6's
// description of the builder-side calc_subtree_hash exactly: "return the
// entry's hash directly, without loading."
func (b *SnapshotBuilder[V]) CalcSubtreeHash(_ PortableHasher32, idx Idx) (NodeHash, error) {
	if int(idx) >= len(b.arena) {
		return NodeHash{}, errors.Wrapf(ErrStoreUnreachable, "snapshot builder arena index %d out of range", idx)
	}
	return b.arena[idx].hash, nil
}

// getOrCreateSlot returns the arena index naming hash, allocating a new
// unloaded slot the first time hash is seen.
func (b *SnapshotBuilder[V]) getOrCreateSlot(hash NodeHash) Idx {
	if idx, ok := b.byHash[hash]; ok {
		return idx
	}
	idx := Idx(len(b.arena))
	b.arena = append(b.arena, builderEntry[V]{hash: hash})
	b.byHash[hash] = idx
	return idx
}

// Commit persists every modified node reachable from newRoot, computing each
// node's hash bottom-up. It mirrors the teacher's CommitTrie/commitNode
// recursion: hash children first, then hash and store the parent. StoredRef
// subtrees are already in the database and are not written again; every
// modified node is written with SetNode, whether or not the database
// already holds that hash.
func (b *SnapshotBuilder[V]) Commit(hasher PortableHasher32, newRoot NodeRef[V]) (NodeHash, error) {
	hash, idx, err := b.commitNodeRef(hasher, newRoot)
	if err != nil {
		return NodeHash{}, err
	}
	b.root = NodeTrieRoot(hash)
	// The freshly committed root lives wherever commitNodeRef resolved it
	// to (getOrCreateSlot may have reused an existing slot, or appended a
	// new one) — record that index directly rather than forcing the root
	// to slot 0, which would silently overwrite whatever other node
	// already lived there and break every reference into it.
	b.rootIdx = idx
	return hash, nil
}

// commitNodeRef returns the hash of ref's subtree and the arena index it
// now lives at, recursively committing modified descendants first.
func (b *SnapshotBuilder[V]) commitNodeRef(hasher PortableHasher32, ref NodeRef[V]) (NodeHash, Idx, error) {
	switch n := ref.(type) {
	case StoredRef[V]:
		if int(n.Idx) >= len(b.arena) {
			return NodeHash{}, 0, errors.Wrapf(ErrStoreUnreachable, "snapshot builder arena index %d out of range", n.Idx)
		}
		return b.arena[n.Idx].hash, n.Idx, nil
	case ModLeafRef[V]:
		hash := n.Leaf.HashLeaf(hasher)
		if err := b.db.SetNode(hash, DBLeaf[V]{Leaf: *n.Leaf}); err != nil {
			return NodeHash{}, 0, err
		}
		idx := b.getOrCreateSlot(hash)
		b.arena[idx].loaded = true
		b.arena[idx].node = StoredLeaf[V]{Leaf: *n.Leaf}
		return hash, idx, nil
	case ModBranchRef[V]:
		leftHash, _, err := b.commitNodeRef(hasher, n.Branch.Left)
		if err != nil {
			return NodeHash{}, 0, err
		}
		rightHash, _, err := b.commitNodeRef(hasher, n.Branch.Right)
		if err != nil {
			return NodeHash{}, 0, err
		}
		hash := n.Branch.HashBranch(hasher, leftHash, rightHash)
		leftIdx := b.getOrCreateSlot(leftHash)
		rightIdx := b.getOrCreateSlot(rightHash)
		dbBranch := DBBranch[V]{
			Left: leftHash, Right: rightHash,
			Mask: n.Branch.Mask, PriorWord: n.Branch.PriorWord, Prefix: n.Branch.Prefix,
		}
		if err := b.db.SetNode(hash, dbBranch); err != nil {
			return NodeHash{}, 0, err
		}
		idx := b.getOrCreateSlot(hash)
		b.arena[idx].loaded = true
		b.arena[idx].node = StoredBranch[V]{Left: leftIdx, Right: rightIdx, Mask: n.Branch.Mask, PriorWord: n.Branch.PriorWord, Prefix: n.Branch.Prefix}
		return hash, idx, nil
	default:
		return NodeHash{}, 0, errors.Newf("trie: unknown NodeRef type %T", ref)
	}
}

// snapshotRefKind tags which of a materialized Snapshot's three vectors a
// provisional child reference lands in, before the final vector lengths
// (and therefore the absolute dense index) are known.
type snapshotRefKind int

const (
	snapshotRefBranch snapshotRefKind = iota
	snapshotRefLeaf
	snapshotRefUnvisited
)

// snapshotRef is a child reference mid-materialization: local is the
// position within whichever of the three vectors kind names, not yet
// offset into the final dense address space.
type snapshotRef struct {
	kind  snapshotRefKind
	local Idx
}

// pendingBranch mirrors StoredBranch but with its children still expressed
// as local, not-yet-offset snapshotRefs.
type pendingBranch[V PortableHash] struct {
	left, right snapshotRef
	mask        BranchMask
	priorWord   uint32
	prefix      []uint32
}

// BuildInitialSnapshot freezes the arena resolved so far into a Snapshot: a
// compact, self-contained record a verifier can replay the same operations
// against without ever touching the original Database.
//
// The Snapshot describes the trie the builder was opened at (initialRoot),
// not the root a later Commit produced: it holds the nodes of that starting
// trie which were resolved so far, with every unresolved child carried as a
// bare hash, so its own root hash is the starting root hash. A builder
// opened at an Empty root yields an empty Snapshot.
//
// A materialized Snapshot must satisfy the dense layout Snapshot describes —
// branches in reverse-topological order (children before parents, root
// last), leaves and unvisited hashes following — which is not generally
// the order nodes were first faulted into this builder's arena (the
// starting root sits at slot 0 and children get larger indices as they are
// resolved). This walks the arena in post-order starting from slot 0, so
// every branch is appended to the branches vector only after
// both of its children (and everything beneath them) have already been
// appended, then rewrites every child reference from its provisional
// (kind, local-position) form into the final absolute index once the
// vector lengths are fixed. The fold only visits each arena slot once
// (memoized by its original index), so a shared subtree referenced from
// two parents is not duplicated in the output.
func (b *SnapshotBuilder[V]) BuildInitialSnapshot() *Snapshot[V] {
	b.frozen = true
	if b.initialRoot.IsEmpty() {
		return &Snapshot[V]{root: b.initialRoot}
	}

	var pendingBranches []pendingBranch[V]
	var leaves []StoredLeaf[V]
	var unvisited []NodeHash
	visited := make(map[Idx]snapshotRef, len(b.arena))

	var visit func(old Idx) snapshotRef
	visit = func(old Idx) snapshotRef {
		if ref, ok := visited[old]; ok {
			return ref
		}
		entry := &b.arena[old]
		if !entry.loaded {
			ref := snapshotRef{kind: snapshotRefUnvisited, local: Idx(len(unvisited))}
			unvisited = append(unvisited, entry.hash)
			visited[old] = ref
			return ref
		}
		switch n := entry.node.(type) {
		case StoredLeaf[V]:
			ref := snapshotRef{kind: snapshotRefLeaf, local: Idx(len(leaves))}
			leaves = append(leaves, n)
			visited[old] = ref
			return ref
		case StoredBranch[V]:
			left := visit(n.Left)
			right := visit(n.Right)
			ref := snapshotRef{kind: snapshotRefBranch, local: Idx(len(pendingBranches))}
			pendingBranches = append(pendingBranches, pendingBranch[V]{
				left: left, right: right,
				mask: n.Mask, priorWord: n.PriorWord, prefix: n.Prefix,
			})
			visited[old] = ref
			return ref
		default:
			panic(errors.Newf("trie: unknown stored node type %T", entry.node))
		}
	}
	// The root's own snapshotRef is always either the last-appended branch,
	// the sole leaf, or the sole unvisited hash — exactly what
	// Snapshot.RootIdx() derives from the finished vectors — so the result
	// does not need to be threaded into the Snapshot separately. The starting
	// root always lives at arena slot 0.
	visit(0)

	nb, nl := Idx(len(pendingBranches)), Idx(len(leaves))
	absolute := func(ref snapshotRef) Idx {
		switch ref.kind {
		case snapshotRefBranch:
			return ref.local
		case snapshotRefLeaf:
			return nb + ref.local
		default:
			return nb + nl + ref.local
		}
	}

	branches := make([]StoredBranch[V], len(pendingBranches))
	for i, pb := range pendingBranches {
		branches[i] = StoredBranch[V]{
			Left: absolute(pb.left), Right: absolute(pb.right),
			Mask: pb.mask, PriorWord: pb.priorWord, Prefix: pb.prefix,
		}
	}

	return &Snapshot[V]{root: b.initialRoot, branches: branches, leaves: leaves, unvisited: unvisited}
}
