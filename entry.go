package trie

import "github.com/cockroachdb/errors"

// Entry is a handle into a single key's slot in the trie, obtained from
// Transaction.Entry, that lets a caller inspect and conditionally update a
// value with at most one descent — mirroring the Entry API of Go's own
// standard map idiom (check-then-act) the way Rust's std::collections
// HashMap Entry does, adapted to a language without Rust's match-on-enum
// ergonomics: callers either type-switch on the returned Entry themselves
// or use the AndModify/OrInsert family of Transaction methods below, which
// do the type-switching for them.
//
// Three variants exist: OccupiedEntry (the key is already present),
// VacantEntry (the key is absent from a non-empty trie, so a path already
// exists to splice onto), and VacantEntryEmptyTrie (the trie has no root
// at all yet). The split matters because inserting into an empty trie just
// creates a root, while inserting into a vacant slot of a populated trie
// needs the prefix bookkeeping insertNode already knows how to do.
type Entry[V PortableHash] interface {
	isEntry()
	// Key returns the key this entry was obtained for.
	Key() KeyHash
}

// OccupiedEntry is an Entry whose key already maps to a value.
type OccupiedEntry[V PortableHash] struct {
	leaf *Leaf[V]
}

func (OccupiedEntry[V]) isEntry() {}

// Key returns the occupied entry's key.
func (e OccupiedEntry[V]) Key() KeyHash { return e.leaf.KeyHash }

// Get returns the entry's current value.
func (e OccupiedEntry[V]) Get() V { return e.leaf.Value }

// GetMut returns a pointer to the entry's value for in-place mutation.
func (e OccupiedEntry[V]) GetMut() *V { return &e.leaf.Value }

// Insert replaces the entry's value, returning the old one.
func (e OccupiedEntry[V]) Insert(value V) V {
	old := e.leaf.Value
	e.leaf.Value = value
	return old
}

// VacantEntry is an Entry whose key is absent from a non-empty trie.
type VacantEntry[S Store[V], V PortableHash] struct {
	txn            *Transaction[S, V]
	slot           *NodeRef[V]
	prefixStartIdx uint32
	key            KeyHash
}

func (VacantEntry[S, V]) isEntry() {}

// Key returns the vacant entry's key.
func (e VacantEntry[S, V]) Key() KeyHash { return e.key }

// Insert places value at this entry's key, returning it back for chaining
// the same way the or_insert family does.
func (e VacantEntry[S, V]) Insert(value V) (V, error) {
	_, _, err := e.txn.insertNode(e.slot, e.key, value, e.prefixStartIdx)
	if err != nil {
		var zero V
		return zero, err
	}
	return value, nil
}

// VacantEntryEmptyTrie is an Entry obtained against a trie with no root at
// all; inserting into it creates the trie's first leaf directly rather than
// going through insertNode's splice logic, which assumes at least one
// existing node to splice against.
type VacantEntryEmptyTrie[S Store[V], V PortableHash] struct {
	txn *Transaction[S, V]
	key KeyHash
}

func (VacantEntryEmptyTrie[S, V]) isEntry() {}

// Key returns the vacant entry's key.
func (e VacantEntryEmptyTrie[S, V]) Key() KeyHash { return e.key }

// Insert makes value the trie's first entry.
func (e VacantEntryEmptyTrie[S, V]) Insert(value V) V {
	e.txn.currentRoot = NodeTrieRoot[NodeRef[V]](ModLeafRef[V]{Leaf: &Leaf[V]{KeyHash: e.key, Value: value}})
	return value
}

// Entry returns a handle to keyHash's slot in the trie without yet
// inserting anything, faulting every StoredRef along the way into its
// modified form so the handle stays valid across calls to the Transaction
// methods below.
func (t *Transaction[S, V]) Entry(keyHash KeyHash) (Entry[V], error) {
	if t.currentRoot.IsEmpty() {
		return VacantEntryEmptyTrie[S, V]{txn: t, key: keyHash}, nil
	}
	slot := t.currentRoot.NodePtr()
	leaf, vacantSlot, prefixStartIdx, err := t.faultPath(slot, keyHash, 0)
	if err != nil {
		return nil, err
	}
	if leaf != nil {
		return OccupiedEntry[V]{leaf: leaf}, nil
	}
	return VacantEntry[S, V]{txn: t, slot: vacantSlot, prefixStartIdx: prefixStartIdx, key: keyHash}, nil
}

// AndModify calls f against the entry's value if it is occupied, and
// returns the entry unchanged (occupied or not) so the result can be
// chained into OrInsert, OrInsertWith, or OrInsertWithKey — the same
// and_modify().or_insert() idiom the reference design offers, expressed as
// two Transaction method calls instead of one fluent chain.
func (t *Transaction[S, V]) AndModify(e Entry[V], f func(v *V)) Entry[V] {
	if oe, ok := e.(OccupiedEntry[V]); ok {
		f(oe.GetMut())
	}
	return e
}

// OrInsert returns the entry's existing value if occupied, or inserts and
// returns value otherwise.
func (t *Transaction[S, V]) OrInsert(e Entry[V], value V) (V, error) {
	switch et := e.(type) {
	case OccupiedEntry[V]:
		return et.Get(), nil
	case VacantEntry[S, V]:
		return et.Insert(value)
	case VacantEntryEmptyTrie[S, V]:
		return et.Insert(value), nil
	default:
		var zero V
		return zero, errors.Newf("trie: entry %T was not produced by this transaction", e)
	}
}

// OrInsertWith is OrInsert with the value computed lazily, only when the
// entry turns out to be vacant.
func (t *Transaction[S, V]) OrInsertWith(e Entry[V], f func() V) (V, error) {
	if oe, ok := e.(OccupiedEntry[V]); ok {
		return oe.Get(), nil
	}
	return t.OrInsert(e, f())
}

// OrInsertWithKey is OrInsertWith where the lazy default may depend on the
// entry's own key.
func (t *Transaction[S, V]) OrInsertWithKey(e Entry[V], f func(KeyHash) V) (V, error) {
	if oe, ok := e.(OccupiedEntry[V]); ok {
		return oe.Get(), nil
	}
	return t.OrInsert(e, f(e.Key()))
}

// OrDefault is OrInsert with the zero value of V.
func (t *Transaction[S, V]) OrDefault(e Entry[V]) (V, error) {
	var zero V
	return t.OrInsert(e, zero)
}
