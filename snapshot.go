package trie

import "github.com/cockroachdb/errors"

// Snapshot is the verifier-side Store: a frozen, self-contained record of
// exactly the nodes a prover's transaction touched, dense-addressed with
// branches first, then leaves, then bare hashes for subtrees nobody
// visited — so that a Transaction opened
// from a Snapshot retraces the prover's descent step for step without ever
// touching the original Database.
//
// Branches occupy indices [0, len(branches)); leaves occupy
// [len(branches), len(branches)+len(leaves)); unvisited hashes occupy the
// remainder. Every branch child that is itself a branch has an index
// strictly less than its parent's own index (by construction — see
// SnapshotBuilder.BuildInitialSnapshot — and re-checked by Validate), so a
// Snapshot's branches already appear in reverse-topological order:
// children before parents, root last. Leaf and unvisited children always
// have indices past the last branch.
type Snapshot[V PortableHash] struct {
	root      TrieRoot[NodeHash]
	branches  []StoredBranch[V]
	leaves    []StoredLeaf[V]
	unvisited []NodeHash
}

// NewSnapshot wraps pre-built branch/leaf/unvisited vectors in the
// dense layout. Most callers get a Snapshot from
// SnapshotBuilder.BuildInitialSnapshot or from decoding the wire format in
// codec.go instead of calling this directly.
func NewSnapshot[V PortableHash](root TrieRoot[NodeHash], branches []StoredBranch[V], leaves []StoredLeaf[V], unvisited []NodeHash) *Snapshot[V] {
	return &Snapshot[V]{root: root, branches: branches, leaves: leaves, unvisited: unvisited}
}

func (s *Snapshot[V]) CurrentRoot() TrieRoot[NodeHash] {
	return s.root
}

// RootIdx returns the dense index of the root node, following the
// decision table: the last branch if any branch exists, otherwise the sole
// leaf or sole unvisited hash, otherwise (an empty trie) false.
func (s *Snapshot[V]) RootIdx() (Idx, bool) {
	nb, nl, nu := len(s.branches), len(s.leaves), len(s.unvisited)
	switch {
	case nb > 0:
		return Idx(nb - 1), true
	case nl == 1 && nu == 0:
		return 0, true
	case nl == 0 && nu == 1:
		return 0, true
	default:
		return 0, false
	}
}

// leafRange reports the half-open [start, end) of absolute indices the
// leaves vector occupies.
func (s *Snapshot[V]) leafRange() (Idx, Idx) {
	start := Idx(len(s.branches))
	return start, start + Idx(len(s.leaves))
}

func (s *Snapshot[V]) GetNode(idx Idx) (StoredNode[V], error) {
	nb := Idx(len(s.branches))
	leafStart, leafEnd := s.leafRange()
	switch {
	case idx < nb:
		return s.branches[idx], nil
	case idx >= leafStart && idx < leafEnd:
		return s.leaves[idx-leafStart], nil
	case idx >= leafEnd && idx < leafEnd+Idx(len(s.unvisited)):
		return nil, errors.Wrapf(ErrStoreUnreachable, "snapshot index %d names an unvisited placeholder, never materialized by the prover", idx)
	default:
		return nil, errors.Wrapf(ErrStoreUnreachable, "snapshot index %d out of range (have %d nodes)", idx, leafEnd+Idx(len(s.unvisited)))
	}
}

// Len reports how many dense-addressed slots the snapshot carries
// (branches, leaves, and unvisited hashes together), mainly for size
// accounting and tests.
func (s *Snapshot[V]) Len() int {
	return len(s.branches) + len(s.leaves) + len(s.unvisited)
}

// CalcRootHash recomputes the snapshot's own root hash by walking its
// frozen node array, without needing a Transaction at all. This is the
// sanity check run-against-snapshot-style harnesses use to confirm a
// submitted snapshot actually matches the root hash the caller claims it
// does before trusting it.
func (s *Snapshot[V]) CalcRootHash(hasher PortableHasher32) (TrieRoot[NodeHash], error) {
	idx, ok := s.RootIdx()
	if !ok {
		return EmptyTrieRoot[NodeHash](), nil
	}
	hash, err := s.CalcSubtreeHash(hasher, idx)
	if err != nil {
		return TrieRoot[NodeHash]{}, err
	}
	return NodeTrieRoot(hash), nil
}

// CalcSubtreeHash returns the Merkle hash of the subtree rooted at idx,
// recursing through branches, hashing leaves directly, and returning the
// recorded hash outright for an unvisited node — the Store-interface
// counterpart spec.md §4.5 calls calc_subtree_hash, the one operation that
// must succeed even where GetNode cannot, since a Snapshot never holds the
// content of a subtree the prover's transaction never visited.
func (s *Snapshot[V]) CalcSubtreeHash(hasher PortableHasher32, idx Idx) (NodeHash, error) {
	nb := Idx(len(s.branches))
	leafStart, leafEnd := s.leafRange()
	switch {
	case idx < nb:
		branch := s.branches[idx]
		left, err := s.CalcSubtreeHash(hasher, branch.Left)
		if err != nil {
			return NodeHash{}, err
		}
		right, err := s.CalcSubtreeHash(hasher, branch.Right)
		if err != nil {
			return NodeHash{}, err
		}
		return branch.ToBranch().HashBranch(hasher, left, right), nil
	case idx >= leafStart && idx < leafEnd:
		leaf := s.leaves[idx-leafStart].Leaf
		return leaf.HashLeaf(hasher), nil
	case idx >= leafEnd && idx < leafEnd+Idx(len(s.unvisited)):
		return s.unvisited[idx-leafEnd], nil
	default:
		return NodeHash{}, errors.Wrapf(ErrStoreUnreachable, "snapshot index %d out of range", idx)
	}
}

// Validate checks the structural invariants a Snapshot must hold before a
// verifier trusts it: the (branches, leaves, unvisited) triple must
// form one of the shapes the decision table allows, every branch child that
// falls in the branch range must have an index strictly less than its
// parent's own index (which also rules out cycles), and no branch child
// index may fall past the last slot. Reachability from the root is not
// checked.
func (s *Snapshot[V]) Validate() error {
	nb, nl, nu := len(s.branches), len(s.leaves), len(s.unvisited)
	_, shapeOK := s.RootIdx()
	if s.root.IsEmpty() {
		if nb != 0 || nl != 0 || nu != 0 {
			return errors.Wrapf(ErrMalformedSnapshot, "empty-root snapshot carries %d branches, %d leaves, %d unvisited hashes", nb, nl, nu)
		}
		return nil
	}
	if !shapeOK {
		return errors.Wrapf(ErrMalformedSnapshot, "snapshot shape (branches=%d, leaves=%d, unvisited=%d) matches no valid root", nb, nl, nu)
	}
	total := Idx(nb + nl + nu)
	for i, branch := range s.branches {
		bi := Idx(i)
		if (branch.Left < Idx(nb) && branch.Left >= bi) || (branch.Right < Idx(nb) && branch.Right >= bi) {
			return errors.Wrapf(ErrMalformedSnapshot, "branch %d has a branch child index (%d, %d) not strictly less than its own", bi, branch.Left, branch.Right)
		}
		if branch.Left >= total || branch.Right >= total {
			return errors.Wrapf(ErrMalformedSnapshot, "branch %d references out-of-range index (%d, %d)", bi, branch.Left, branch.Right)
		}
	}
	return nil
}
