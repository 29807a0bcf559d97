package trie

// Idx addresses a node within a Store's arena: for a SnapshotBuilder this is
// an offset into its growable in-memory arena; for a Snapshot it is an index
// into the dense array the snapshot was built from. Either way it is a
// value, not a pointer, so that NodeRef below stays a small, copyable tag.
type Idx = uint32

// SentinelIdx is the index carried by the placeholder NodeRef that
// TempNullStored returns: it is never a valid arena index and must never be
// read back. The structural edits in transaction.go build replacement
// branches directly and do not use the placeholder.
const SentinelIdx Idx = ^uint32(0)

// NodeRef is a trie edge as seen from the modified side of a transaction: it
// either points at a freshly created (unhashed, unstored) branch or leaf, or
// at a node that still lives untouched in the store.
//
// This mirrors the three-armed NodeRef sum type of the reference design.
// Go has no enum with payload, so the three arms are three distinct types
// sharing a marker method; a type switch at the few sites that need to tell
// them apart (Transaction.getValue, Transaction.insertNode, commit) stands in
// for Rust's match.
type NodeRef[V PortableHash] interface {
	isNodeRef()
}

// ModBranchRef is a branch created or reached during this transaction that
// has not yet been hashed or written back to the store.
type ModBranchRef[V PortableHash] struct {
	Branch *Branch[NodeRef[V]]
}

func (ModBranchRef[V]) isNodeRef() {}

// ModLeafRef is a leaf created or reached during this transaction that has
// not yet been hashed or written back to the store.
type ModLeafRef[V PortableHash] struct {
	Leaf *Leaf[V]
}

func (ModLeafRef[V]) isNodeRef() {}

// StoredRef points at a node that is unchanged in this transaction and
// still resides at Idx in the underlying Store.
type StoredRef[V PortableHash] struct {
	Idx Idx
}

func (StoredRef[V]) isNodeRef() {}

// TempNullStored returns the sentinel NodeRef used to momentarily vacate a
// slot during a structural edit, the same way Rust code here uses
// mem::replace against a placeholder. Every call site that produces one
// overwrites it before returning.
func TempNullStored[V PortableHash]() NodeRef[V] {
	return StoredRef[V]{Idx: SentinelIdx}
}

// IsTempNullStored reports whether ref is the moved-from sentinel.
func IsTempNullStored[V PortableHash](ref NodeRef[V]) bool {
	sr, ok := ref.(StoredRef[V])
	return ok && sr.Idx == SentinelIdx
}

// Branch is an interior trie node: a single bit-level decision (Mask) plus
// the key-word context above it (PriorWord, Prefix) needed to reject keys
// that share the branch's discriminant bit value but diverge earlier. NR is
// the representation of a child edge: NodeRef[V] for a branch still being
// edited, Idx for a branch already committed into a store's arena.
type Branch[NR any] struct {
	Left, Right NR
	Mask        BranchMask
	// PriorWord is the full key word immediately preceding the
	// discriminant word, held separately from Prefix so the overwhelmingly
	// common case (branches whose parent is only one word back) never
	// touches a slice.
	PriorWord uint32
	// Prefix holds the key words before PriorWord, starting at the first
	// word not already covered by the parent branch (the parent's
	// discriminant word; word 0 at the root), that every descendant of
	// this branch is required to share, in ascending word-index order.
	Prefix []uint32
}

// KeyPositionKind classifies where a key sits relative to a branch.
type KeyPositionKind int

const (
	// KeyPositionLeft means the key descends into the branch's left child.
	KeyPositionLeft KeyPositionKind = iota
	// KeyPositionRight means the key descends into the branch's right child.
	KeyPositionRight
	// KeyPositionPriorWord means the key diverges from this branch's
	// required PriorWord.
	KeyPositionPriorWord
	// KeyPositionPrefixWord means the key diverges from the branch's
	// LeftPrefix within the discriminant word itself, above the
	// discriminant bit.
	KeyPositionPrefixWord
	// KeyPositionPrefixVec means the key diverges from one of the
	// branch's compressed Prefix words.
	KeyPositionPrefixVec
)

// KeyPosition is the result of comparing a key against a Branch: either it
// is consistent with descending into one child, or it diverges from the
// branch's shared prefix at WordIdx, where BranchWord is what the branch
// requires and KeyWord is what the key actually holds.
type KeyPosition struct {
	Kind       KeyPositionKind
	WordIdx    uint32
	BranchWord uint32
	KeyWord    uint32
}

// Descend classifies keyHash against b. Divergence is checked in the order
// the key would be compared while walking from the trie root toward this
// branch — oldest shared words (Prefix) first, then PriorWord, then the
// discriminant word itself — so the first mismatch reported is always the
// earliest point at which keyHash split off from this branch's subtree.
func (b *Branch[NR]) Descend(keyHash KeyHash) KeyPosition {
	wordIdx := b.Mask.WordIdx()

	prefixStart := wordIdx - uint32(len(b.Prefix))
	if len(b.Prefix) > 0 {
		prefixStart--
	}
	for i, branchWord := range b.Prefix {
		idx := prefixStart + uint32(i)
		keyWord := keyHash.Words[idx]
		if keyWord != branchWord {
			return KeyPosition{Kind: KeyPositionPrefixVec, WordIdx: idx, BranchWord: branchWord, KeyWord: keyWord}
		}
	}

	if wordIdx > 0 {
		priorWordIdx := wordIdx - 1
		keyWord := keyHash.Words[priorWordIdx]
		if keyWord != b.PriorWord {
			return KeyPosition{Kind: KeyPositionPriorWord, WordIdx: priorWordIdx, BranchWord: b.PriorWord, KeyWord: keyWord}
		}
	}

	discWord := keyHash.Words[wordIdx]
	if b.Mask.IsLeftDescendant(discWord) {
		return KeyPosition{Kind: KeyPositionLeft}
	}
	if b.Mask.IsRightDescendant(discWord) {
		return KeyPosition{Kind: KeyPositionRight}
	}
	return KeyPosition{Kind: KeyPositionPrefixWord, WordIdx: wordIdx, BranchWord: b.Mask.LeftPrefix, KeyWord: discWord}
}

// HashBranch computes this branch's node hash given its children's
// already-computed hashes. Field order (left, right, bit_idx, left_prefix,
// prior_word, prefix words) is fixed and must never change without also
// changing every previously committed root hash.
func (b *Branch[NR]) HashBranch(hasher PortableHasher32, leftHash, rightHash NodeHash) NodeHash {
	hasher.PortableUpdate(leftHash[:])
	hasher.PortableUpdate(rightHash[:])
	PortableHashUint32(hasher, b.Mask.BitIdx)
	PortableHashUint32(hasher, b.Mask.LeftPrefix)
	PortableHashUint32(hasher, b.PriorWord)
	PortableHashUint32Slice(hasher, b.Prefix)
	return NewNodeHash(hasher.FinalizeReset())
}

// NewBranchFromLeafs builds the branch separating two leaves whose keys are
// known to agree on every word before prefixStartIdx. It panics if the keys
// are equal, since a branch cannot separate a key from itself. newIsRight
// reports whether newLeaf landed in the right child, which callers use to
// know which side of the freshly built branch still needs visiting.
func NewBranchFromLeafs[V PortableHash](prefixStartIdx uint32, oldLeaf, newLeaf *Leaf[V]) (branch *Branch[NodeRef[V]], newIsRight bool) {
	oldKey := oldLeaf.KeyHash
	newKey := newLeaf.KeyHash

	wordIdx := uint32(8)
	for i := prefixStartIdx; i < 8; i++ {
		if oldKey.Words[i] != newKey.Words[i] {
			wordIdx = i
			break
		}
	}
	if wordIdx == 8 {
		panic("trie: NewBranchFromLeafs called with equal keys")
	}

	mask := NewBranchMask(wordIdx, oldKey.Words[wordIdx], newKey.Words[wordIdx])

	var priorWord uint32
	if wordIdx > 0 {
		priorWord = oldKey.Words[wordIdx-1]
	}
	var prefix []uint32
	if wordIdx > prefixStartIdx+1 {
		n := wordIdx - 1 - prefixStartIdx
		prefix = make([]uint32, n)
		copy(prefix, oldKey.Words[prefixStartIdx:wordIdx-1])
	}

	b := &Branch[NodeRef[V]]{Mask: mask, PriorWord: priorWord, Prefix: prefix}

	if mask.IsLeftDescendant(oldKey.Words[wordIdx]) {
		b.Left = ModLeafRef[V]{Leaf: oldLeaf}
		b.Right = ModLeafRef[V]{Leaf: newLeaf}
		newIsRight = true
	} else {
		b.Left = ModLeafRef[V]{Leaf: newLeaf}
		b.Right = ModLeafRef[V]{Leaf: oldLeaf}
		newIsRight = false
	}
	return b, newIsRight
}

// Leaf is a trie value at its key: the terminal node of every root-to-leaf
// path.
type Leaf[V PortableHash] struct {
	KeyHash KeyHash
	Value   V
}

// HashLeaf computes this leaf's node hash: the key hash followed by the
// value's own portable hash.
func (l *Leaf[V]) HashLeaf(hasher PortableHasher32) NodeHash {
	l.KeyHash.PortableHash(hasher)
	l.Value.PortableHash(hasher)
	return NewNodeHash(hasher.FinalizeReset())
}

// StoredNode is the representation a Store persists: a branch whose
// children are resolved as Idx (no live pointers into another transaction's
// arena) or a leaf. It is the payload type parameter DatabaseGet/DatabaseSet
// read and write.
type StoredNode[V PortableHash] interface {
	isStoredNode()
}

// StoredBranch is a committed branch; its children are looked up through
// the owning Store by index rather than held as pointers.
type StoredBranch[V PortableHash] struct {
	Left, Right Idx
	Mask        BranchMask
	PriorWord   uint32
	Prefix      []uint32
}

func (StoredBranch[V]) isStoredNode() {}

// ToBranch adapts a StoredBranch into the generic Branch[Idx] shape that
// Descend and HashBranch operate on.
func (sb *StoredBranch[V]) ToBranch() *Branch[Idx] {
	return &Branch[Idx]{
		Left: sb.Left, Right: sb.Right,
		Mask: sb.Mask, PriorWord: sb.PriorWord, Prefix: sb.Prefix,
	}
}

// StoredLeaf is a committed leaf.
type StoredLeaf[V PortableHash] struct {
	Leaf Leaf[V]
}

func (StoredLeaf[V]) isStoredNode() {}

// StoredHash is an arena slot whose subtree hash is known but whose content
// was never read: a transaction that never descends into a sibling subtree
// still needs that subtree's hash to recompute its parent's hash, but has
// no reason to pay for the content. This is the Go analogue of
// go-ethereum's hashNode: an opaque placeholder that can stand in anywhere
// a StoredNode is expected.
//
// Neither Store in this package returns one: a SnapshotBuilder marks an
// unresolved arena slot with its loaded flag, and a Snapshot keeps
// unvisited subtrees as bare NodeHash values whose GetNode fails. The
// Transaction code reports an error if GetNode ever yields a StoredHash.
type StoredHash[V PortableHash] struct {
	Hash NodeHash
}

func (StoredHash[V]) isStoredNode() {}

// DBNode is the content-addressed representation a Database persists:
// branch children are named by the hash of the subtree they root, since a
// hash is the only address that survives being flushed out of any one
// transaction's arena.
type DBNode[V PortableHash] interface {
	isDBNode()
}

// DBBranch is a branch as stored in a Database.
type DBBranch[V PortableHash] struct {
	Left, Right NodeHash
	Mask        BranchMask
	PriorWord   uint32
	Prefix      []uint32
}

func (DBBranch[V]) isDBNode() {}

// DBLeaf is a leaf as stored in a Database.
type DBLeaf[V PortableHash] struct {
	Leaf Leaf[V]
}

func (DBLeaf[V]) isDBNode() {}
