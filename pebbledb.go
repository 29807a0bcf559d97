package trie

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// PebbleDb is a Database backed by a cockroachdb/pebble LSM tree: the
// long-lived, on-disk counterpart to MemoryDb, for a prover that needs its
// node history to survive a restart. Keys are the raw 32-byte NodeHash;
// values are the same content-addressed wire format CachedDb uses (see
// EncodeDBNode), so a PebbleDb and a CachedDb in front of it agree on one
// encoding end to end.
type PebbleDb[V marshalableValue] struct {
	db     *pebble.DB
	decode func([]byte) (DBNode[V], error)
}

// OpenPebbleDb opens (creating if necessary) a pebble store at dir.
func OpenPebbleDb[V marshalableValue](dir string, decode func([]byte) (DBNode[V], error)) (*PebbleDb[V], error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble database at %s", dir)
	}
	return &PebbleDb[V]{db: db, decode: decode}, nil
}

// Close releases the underlying pebble handle.
func (p *PebbleDb[V]) Close() error {
	return p.db.Close()
}

func (p *PebbleDb[V]) GetNode(hash NodeHash) (DBNode[V], error) {
	raw, closer, err := p.db.Get(hash[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrStoreUnreachable, "node %s not present in pebble database", hash)
		}
		return nil, err
	}
	defer closer.Close()
	node, err := p.decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding node %s", hash)
	}
	return node, nil
}

func (p *PebbleDb[V]) SetNode(hash NodeHash, node DBNode[V]) error {
	encoded, err := EncodeDBNode[V](node)
	if err != nil {
		return errors.Wrapf(err, "encoding node %s", hash)
	}
	return p.db.Set(hash[:], encoded, pebble.Sync)
}

// Flush issues an explicit pebble flush, useful before a process exits so
// every committed node is durable rather than sitting in pebble's memtable.
func (p *PebbleDb[V]) Flush() error {
	return p.db.Flush()
}
