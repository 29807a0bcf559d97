package trie

import "github.com/cockroachdb/errors"

// CommittableStore is implemented by Store implementations that can also
// persist freshly modified nodes — in practice, SnapshotBuilder. A Snapshot
// deliberately does not implement it: a verifier can recompute a root hash
// (Transaction.CalcRootHash) but has nowhere to write a node even if it
// wanted to.
type CommittableStore[V PortableHash] interface {
	Store[V]
	Commit(hasher PortableHasher32, newRoot NodeRef[V]) (NodeHash, error)
}

// Transaction is the single engine both prover and verifier run: a batch of
// reads and writes against a trie rooted at some TrieRoot, backed by
// whichever Store S happens to be — a SnapshotBuilder with a full Database
// behind it on the prover side, a frozen Snapshot on the verifier side.
//
// Every write, and every Entry call, first upgrades (faults) the StoredRef
// nodes along its path into ModBranch/ModLeaf nodes held directly in the
// transaction; Get reads through StoredRef nodes without upgrading them. A
// transaction never mutates the
// underlying Store in place, only the in-memory tree it builds on top of
// it, so a failed or abandoned transaction never corrupts the store.
type Transaction[S Store[V], V PortableHash] struct {
	store       S
	currentRoot TrieRoot[NodeRef[V]]
}

// NewTransaction opens a transaction against store, starting from whatever
// root store currently reports.
func NewTransaction[S Store[V], V PortableHash](store S) *Transaction[S, V] {
	var current TrieRoot[NodeRef[V]]
	if _, ok := store.CurrentRoot().Unwrap(); ok {
		idx, ok := store.RootIdx()
		if !ok {
			panic("trie: store reports a non-empty root but no RootIdx")
		}
		current = NodeTrieRoot[NodeRef[V]](NodeRef[V](StoredRef[V]{Idx: idx}))
	}
	return &Transaction[S, V]{store: store, currentRoot: current}
}

// NewTransactionFromSnapshot opens a transaction against snapshot, first
// checking that the snapshot's own recomputed root hash matches
// expectedRoot. This is the verifier-side entry point: a
// verifier must never trust a snapshot's claimed root without recomputing
// it, since the snapshot is attacker-controlled input.
func NewTransactionFromSnapshot[V PortableHash](snapshot *Snapshot[V], hasher PortableHasher32, expectedRoot TrieRoot[NodeHash]) (*Transaction[*Snapshot[V], V], error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	actual, err := snapshot.CalcRootHash(hasher)
	if err != nil {
		return nil, err
	}
	if !trieRootHashEqual(actual, expectedRoot) {
		return nil, errors.Wrapf(ErrRootHashMismatch, "snapshot root %v does not match expected root %v", actual, expectedRoot)
	}
	return NewTransaction[*Snapshot[V], V](snapshot), nil
}

func trieRootHashEqual(a, b TrieRoot[NodeHash]) bool {
	av, aok := a.Unwrap()
	bv, bok := b.Unwrap()
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return av == bv
}

// Get looks up keyHash, returning (value, true, nil) if present, (zero,
// false, nil) if absent, and a non-nil error only when the underlying Store
// itself fails (e.g. a Snapshot missing a node the path needed).
func (t *Transaction[S, V]) Get(keyHash KeyHash) (V, bool, error) {
	var zero V
	root, ok := t.currentRoot.Unwrap()
	if !ok {
		return zero, false, nil
	}
	v, err := t.getValue(root, keyHash)
	if err != nil {
		return zero, false, err
	}
	if v == nil {
		return zero, false, nil
	}
	return *v, true, nil
}

func (t *Transaction[S, V]) getValue(ref NodeRef[V], keyHash KeyHash) (*V, error) {
	for {
		switch n := ref.(type) {
		case ModLeafRef[V]:
			if n.Leaf.KeyHash == keyHash {
				v := n.Leaf.Value
				return &v, nil
			}
			return nil, nil
		case ModBranchRef[V]:
			pos := n.Branch.Descend(keyHash)
			switch pos.Kind {
			case KeyPositionLeft:
				ref = n.Branch.Left
			case KeyPositionRight:
				ref = n.Branch.Right
			default:
				return nil, nil
			}
		case StoredRef[V]:
			stored, err := t.store.GetNode(n.Idx)
			if err != nil {
				return nil, err
			}
			switch sn := stored.(type) {
			case StoredLeaf[V]:
				if sn.Leaf.KeyHash == keyHash {
					v := sn.Leaf.Value
					return &v, nil
				}
				return nil, nil
			case StoredBranch[V]:
				pos := sn.ToBranch().Descend(keyHash)
				switch pos.Kind {
				case KeyPositionLeft:
					ref = StoredRef[V]{Idx: sn.Left}
				case KeyPositionRight:
					ref = StoredRef[V]{Idx: sn.Right}
				default:
					return nil, nil
				}
			default:
				return nil, errors.Newf("trie: cannot descend into a hash-only node")
			}
		default:
			return nil, errors.Newf("trie: unknown NodeRef type %T", n)
		}
	}
}

// Insert sets keyHash to value, returning the previous value if the key was
// already present.
func (t *Transaction[S, V]) Insert(keyHash KeyHash, value V) (V, bool, error) {
	var zero V
	if t.currentRoot.IsEmpty() {
		t.currentRoot = NodeTrieRoot[NodeRef[V]](ModLeafRef[V]{Leaf: &Leaf[V]{KeyHash: keyHash, Value: value}})
		return zero, false, nil
	}
	slot := t.currentRoot.NodePtr()
	return t.insertNode(slot, keyHash, value, 0)
}

// insertNode inserts (keyHash, value) below slot, where prefixStartIdx is
// the first key word not already guaranteed to match by an ancestor
// branch. It upgrades any StoredRef it walks through into the equivalent
// ModBranch/ModLeaf form before mutating, so the underlying Store is never
// touched.
func (t *Transaction[S, V]) insertNode(slot *NodeRef[V], keyHash KeyHash, value V, prefixStartIdx uint32) (V, bool, error) {
	var zero V
	switch n := (*slot).(type) {
	case ModLeafRef[V]:
		if n.Leaf.KeyHash == keyHash {
			old := n.Leaf.Value
			n.Leaf.Value = value
			return old, true, nil
		}
		newLeaf := &Leaf[V]{KeyHash: keyHash, Value: value}
		branch, _ := NewBranchFromLeafs[V](prefixStartIdx, n.Leaf, newLeaf)
		*slot = ModBranchRef[V]{Branch: branch}
		return zero, false, nil

	case ModBranchRef[V]:
		pos := n.Branch.Descend(keyHash)
		switch pos.Kind {
		case KeyPositionLeft:
			return t.insertNode(&n.Branch.Left, keyHash, value, n.Branch.Mask.WordIdx())
		case KeyPositionRight:
			return t.insertNode(&n.Branch.Right, keyHash, value, n.Branch.Mask.WordIdx())
		default:
			t.spliceAboveBranch(slot, n.Branch, pos, keyHash, value, prefixStartIdx)
			return zero, false, nil
		}

	case StoredRef[V]:
		stored, err := t.store.GetNode(n.Idx)
		if err != nil {
			return zero, false, err
		}
		switch sn := stored.(type) {
		case StoredLeaf[V]:
			leafCopy := sn.Leaf
			*slot = ModLeafRef[V]{Leaf: &leafCopy}
		case StoredBranch[V]:
			*slot = ModBranchRef[V]{Branch: &Branch[NodeRef[V]]{
				Left:      StoredRef[V]{Idx: sn.Left},
				Right:     StoredRef[V]{Idx: sn.Right},
				Mask:      sn.Mask,
				PriorWord: sn.PriorWord,
				Prefix:    sn.Prefix,
			}}
		default:
			return zero, false, errors.Newf("trie: cannot insert below a hash-only node")
		}
		return t.insertNode(slot, keyHash, value, prefixStartIdx)

	default:
		return zero, false, errors.Newf("trie: unknown NodeRef type %T", n)
	}
}

// spliceAboveBranch handles the case where the new key diverges from
// oldBranch's own shared prefix before ever reaching oldBranch's
// discriminant bit: a new branch is built at the point of divergence, with
// the new leaf on one side and the whole of the old branch's subtree,
// unchanged, on the other.
func (t *Transaction[S, V]) spliceAboveBranch(slot *NodeRef[V], oldBranch *Branch[NodeRef[V]], pos KeyPosition, keyHash KeyHash, value V, prefixStartIdx uint32) {
	mask := NewBranchMask(pos.WordIdx, pos.BranchWord, pos.KeyWord)

	var priorWord uint32
	if pos.WordIdx > 0 {
		priorWord = keyHash.Words[pos.WordIdx-1]
	}
	var prefix []uint32
	if pos.WordIdx > prefixStartIdx+1 {
		n := pos.WordIdx - 1 - prefixStartIdx
		prefix = make([]uint32, n)
		copy(prefix, keyHash.Words[prefixStartIdx:pos.WordIdx-1])
	}

	newLeafRef := NodeRef[V](ModLeafRef[V]{Leaf: &Leaf[V]{KeyHash: keyHash, Value: value}})
	oldRef := NodeRef[V](ModBranchRef[V]{Branch: oldBranch})

	newBranch := &Branch[NodeRef[V]]{Mask: mask, PriorWord: priorWord, Prefix: prefix}
	if mask.IsLeftDescendant(pos.KeyWord) {
		newBranch.Left = newLeafRef
		newBranch.Right = oldRef
	} else {
		newBranch.Left = oldRef
		newBranch.Right = newLeafRef
	}
	*slot = ModBranchRef[V]{Branch: newBranch}
}

// faultPath walks from slot toward keyHash, upgrading every StoredRef it
// passes through into its modified equivalent, and stops as soon as it
// either reaches the leaf keyHash names (Occupied) or the point where
// keyHash diverges from the trie built so far (Vacant). It never creates
// new branches or leaves itself — that is left to insertNode, which the
// Vacant entry's Insert delegates to.
func (t *Transaction[S, V]) faultPath(slot *NodeRef[V], keyHash KeyHash, prefixStartIdx uint32) (leaf *Leaf[V], vacantSlot *NodeRef[V], vacantPrefixStartIdx uint32, err error) {
	for {
		switch n := (*slot).(type) {
		case ModLeafRef[V]:
			if n.Leaf.KeyHash == keyHash {
				return n.Leaf, nil, 0, nil
			}
			return nil, slot, prefixStartIdx, nil

		case ModBranchRef[V]:
			pos := n.Branch.Descend(keyHash)
			switch pos.Kind {
			case KeyPositionLeft:
				slot = &n.Branch.Left
				prefixStartIdx = n.Branch.Mask.WordIdx()
				continue
			case KeyPositionRight:
				slot = &n.Branch.Right
				prefixStartIdx = n.Branch.Mask.WordIdx()
				continue
			default:
				return nil, slot, prefixStartIdx, nil
			}

		case StoredRef[V]:
			stored, err := t.store.GetNode(n.Idx)
			if err != nil {
				return nil, nil, 0, err
			}
			switch sn := stored.(type) {
			case StoredLeaf[V]:
				leafCopy := sn.Leaf
				*slot = ModLeafRef[V]{Leaf: &leafCopy}
			case StoredBranch[V]:
				*slot = ModBranchRef[V]{Branch: &Branch[NodeRef[V]]{
					Left:      StoredRef[V]{Idx: sn.Left},
					Right:     StoredRef[V]{Idx: sn.Right},
					Mask:      sn.Mask,
					PriorWord: sn.PriorWord,
					Prefix:    sn.Prefix,
				}}
			default:
				return nil, nil, 0, errors.Newf("trie: cannot descend into a hash-only node")
			}
			continue

		default:
			return nil, nil, 0, errors.Newf("trie: unknown NodeRef type %T", n)
		}
	}
}

// CalcRootHash computes the current root hash without persisting anything,
// valid for any Store including a read-only Snapshot. This is the
// verifier-side counterpart to Commit.
func (t *Transaction[S, V]) CalcRootHash(hasher PortableHasher32) (TrieRoot[NodeHash], error) {
	root, ok := t.currentRoot.Unwrap()
	if !ok {
		return EmptyTrieRoot[NodeHash](), nil
	}
	hash, err := t.hashRef(hasher, root)
	if err != nil {
		return TrieRoot[NodeHash]{}, err
	}
	return NodeTrieRoot(hash), nil
}

func (t *Transaction[S, V]) hashRef(hasher PortableHasher32, ref NodeRef[V]) (NodeHash, error) {
	switch n := ref.(type) {
	case ModLeafRef[V]:
		return n.Leaf.HashLeaf(hasher), nil
	case ModBranchRef[V]:
		left, err := t.hashRef(hasher, n.Branch.Left)
		if err != nil {
			return NodeHash{}, err
		}
		right, err := t.hashRef(hasher, n.Branch.Right)
		if err != nil {
			return NodeHash{}, err
		}
		return n.Branch.HashBranch(hasher, left, right), nil
	case StoredRef[V]:
		// Delegate to the Store's own CalcSubtreeHash rather than GetNode:
		// per spec.md §4.4/§4.5, a stored reference's subtree hash must be
		// obtainable even when the store never recorded that subtree's
		// content — the ordinary case for an untouched sibling in a
		// Snapshot, which knows only its hash. GetNode would fail there;
		// CalcSubtreeHash is exactly the capability built to succeed.
		return t.store.CalcSubtreeHash(hasher, n.Idx)
	default:
		return NodeHash{}, errors.Newf("trie: unknown NodeRef type %T", ref)
	}
}

// Commit hashes and persists every modified node to the backing store,
// returning the new root hash. It requires S to be backed by a
// CommittableStore (in practice, a *SnapshotBuilder); calling Commit on a
// Transaction opened From a Snapshot returns an error, since a verifier has
// nowhere to persist to and should be calling CalcRootHash instead.
func (t *Transaction[S, V]) Commit(hasher PortableHasher32) (TrieRoot[NodeHash], error) {
	cs, ok := any(t.store).(CommittableStore[V])
	if !ok {
		return TrieRoot[NodeHash]{}, errors.Wrapf(ErrStoreUnreachable, "store %T cannot commit (read-only Store)", t.store)
	}
	root, ok := t.currentRoot.Unwrap()
	if !ok {
		return EmptyTrieRoot[NodeHash](), nil
	}
	hash, err := cs.Commit(hasher, root)
	if err != nil {
		return TrieRoot[NodeHash]{}, err
	}
	idx, ok := cs.RootIdx()
	if !ok {
		panic("trie: CommittableStore reports no RootIdx immediately after a successful Commit")
	}
	t.currentRoot = NodeTrieRoot[NodeRef[V]](StoredRef[V]{Idx: idx})
	return NodeTrieRoot(hash), nil
}

// BuildInitialSnapshot delegates to the backing SnapshotBuilder to freeze a
// Snapshot covering exactly the nodes this transaction (and any prior
// transaction sharing the same builder) has touched. Only meaningful
// prover-side: the store must be a *SnapshotBuilder, otherwise an error is
// returned.
func (t *Transaction[S, V]) BuildInitialSnapshot() (*Snapshot[V], error) {
	sb, ok := any(t.store).(*SnapshotBuilder[V])
	if !ok {
		return nil, errors.Wrapf(ErrStoreUnreachable, "store %T is not a SnapshotBuilder", t.store)
	}
	return sb.BuildInitialSnapshot(), nil
}
