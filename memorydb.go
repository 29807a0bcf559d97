package trie

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// MemoryDb is the simplest Database: an in-memory, mutex-guarded map from
// NodeHash to DBNode. It is the default backing store for tests and for
// short-lived command-line runs; long-lived services should wire in
// CachedDb or PebbleDb instead (see cacheddb.go, pebbledb.go).
//
// The locking strategy — a single RWMutex guarding a plain map — mirrors
// the teacher's NodeDatabase, which protects its dirty-node map the same
// way rather than sharding by key.
type MemoryDb[V PortableHash] struct {
	mu    sync.RWMutex
	nodes map[NodeHash]DBNode[V]
}

// NewMemoryDb returns an empty MemoryDb.
func NewMemoryDb[V PortableHash]() *MemoryDb[V] {
	return &MemoryDb[V]{nodes: make(map[NodeHash]DBNode[V])}
}

func (m *MemoryDb[V]) GetNode(hash NodeHash) (DBNode[V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[hash]
	if !ok {
		return nil, errors.Wrapf(ErrStoreUnreachable, "node %s not present in memory database", hash)
	}
	return n, nil
}

func (m *MemoryDb[V]) SetNode(hash NodeHash, node DBNode[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[hash] = node
	return nil
}

// Len reports how many nodes the database currently holds, mainly useful
// in tests asserting on commit behavior.
func (m *MemoryDb[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
