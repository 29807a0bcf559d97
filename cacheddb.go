package trie

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics are the prometheus counters CachedDb exposes. They are
// created per CachedDb instance (in NewCachedDb) rather than via promauto's global
// registry, so that opening more than one CachedDb (e.g. in tests) never
// panics on a duplicate registration.
type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

func newCacheMetrics(namespace string) *cacheMetrics {
	return &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trie_cache",
			Name:      "hits_total",
			Help:      "Number of node lookups served from the in-memory node cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trie_cache",
			Name:      "misses_total",
			Help:      "Number of node lookups that missed the in-memory node cache and went to the backing database.",
		}),
	}
}

// Collectors returns the counters so a caller can register them with
// whatever prometheus.Registry their process already runs.
func (m *cacheMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.hits, m.misses}
}

// Tag bytes distinguishing the two DBNode kinds in EncodeDBNode's wire
// format. Unrelated to codec.go's Snapshot encoding, which needs no
// per-node tag since a dense index's position alone says which of the
// three vectors it belongs to.
const (
	tagStoredBranch byte = iota
	tagStoredLeaf
)

// CachedDb wraps a Database with a fastcache-backed byte-slice cache in
// front of it, the same shape as the fastcache.New(...) read-through
// caches used in front of go-ethereum's on-disk state snapshots. Nodes are
// encoded with EncodeDBNode (the format PebbleDb also stores, distinct from
// codec.go's Snapshot format) so a single node's cache entry is just its
// encoded bytes.
type CachedDb[V marshalableValue] struct {
	backing Database[V]
	cache   *fastcache.Cache
	metrics *cacheMetrics

	decode func([]byte) (DBNode[V], error)
}

// NewCachedDb wraps backing with an in-memory cache of maxBytes capacity.
// decode must be able to reconstruct a DBNode[V] from the bytes
// EncodeDBNode produces; callers typically pass DefaultDecodeDBNode
// instantiated for their own value type.
func NewCachedDb[V marshalableValue](backing Database[V], maxBytes int, namespace string, decode func([]byte) (DBNode[V], error)) *CachedDb[V] {
	return &CachedDb[V]{
		backing: backing,
		cache:   fastcache.New(maxBytes),
		metrics: newCacheMetrics(namespace),
		decode:  decode,
	}
}

// Metrics exposes the prometheus collectors so callers can register them.
func (c *CachedDb[V]) Metrics() []prometheus.Collector {
	return c.metrics.Collectors()
}

func (c *CachedDb[V]) GetNode(hash NodeHash) (DBNode[V], error) {
	if raw, ok := c.cache.HasGet(nil, hash[:]); ok {
		c.metrics.hits.Inc()
		return c.decode(raw)
	}
	c.metrics.misses.Inc()
	node, err := c.backing.GetNode(hash)
	if err != nil {
		return nil, err
	}
	encoded, err := c.encode(hash, node)
	if err != nil {
		return nil, errors.Wrap(err, "encoding node for cache")
	}
	c.cache.Set(hash[:], encoded)
	return node, nil
}

func (c *CachedDb[V]) SetNode(hash NodeHash, node DBNode[V]) error {
	if err := c.backing.SetNode(hash, node); err != nil {
		return err
	}
	encoded, err := c.encode(hash, node)
	if err != nil {
		return errors.Wrap(err, "encoding node for cache")
	}
	c.cache.Set(hash[:], encoded)
	return nil
}

// encode serializes node for the fastcache entry, delegating to the
// package-level EncodeDBNode so CachedDb and PebbleDb share one wire
// format for content-addressed (hash-keyed-children) nodes.
func (c *CachedDb[V]) encode(_ NodeHash, node DBNode[V]) ([]byte, error) {
	return EncodeDBNode[V](node)
}

// EncodeDBNode serializes a single content-addressed DBNode to bytes,
// using hashes (not arena indices) for branch children since a Database's
// nodes must remain meaningful outside any one transaction's arena —
// contrast codec.go's StoredBranch encoding, which is Idx-relative and
// only meaningful within one Snapshot.
func EncodeDBNode[V marshalableValue](node DBNode[V]) ([]byte, error) {
	var buf []byte
	switch n := node.(type) {
	case DBBranch[V]:
		buf = append(buf, tagStoredBranch)
		buf = append(buf, n.Left[:]...)
		buf = append(buf, n.Right[:]...)
		buf = appendUvarintBytes(buf, uint64(n.Mask.BitIdx))
		buf = appendUvarintBytes(buf, uint64(n.Mask.LeftPrefix))
		buf = appendUvarintBytes(buf, uint64(n.PriorWord))
		buf = appendUvarintBytes(buf, uint64(len(n.Prefix)))
		for _, w := range n.Prefix {
			buf = appendUvarintBytes(buf, uint64(w))
		}
		return buf, nil
	case DBLeaf[V]:
		valueBytes, err := n.Leaf.Value.MarshalBinary()
		if err != nil {
			return nil, err
		}
		kb := n.Leaf.KeyHash.ToBytes()
		buf = append(buf, tagStoredLeaf)
		buf = append(buf, kb[:]...)
		buf = appendUvarintBytes(buf, uint64(len(valueBytes)))
		buf = append(buf, valueBytes...)
		return buf, nil
	default:
		return nil, errors.Newf("trie: unknown DBNode type %T", node)
	}
}

func appendUvarintBytes(buf []byte, v uint64) []byte {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return append(buf, tmp[:n]...)
}

// DefaultDecodeDBNode is the decode function matching CachedDb's own
// encode: most callers can pass this straight to NewCachedDb unless they
// have a reason to use a different wire representation.
func DefaultDecodeDBNode[V any, PV unmarshalableValue[V]](raw []byte) (DBNode[V], error) {
	if len(raw) == 0 {
		return nil, errors.New("trie: empty cached node payload")
	}
	r := bytesReader(raw[1:])
	switch raw[0] {
	case tagStoredBranch:
		var left, right NodeHash
		if err := r.readExact(left[:]); err != nil {
			return nil, err
		}
		if err := r.readExact(right[:]); err != nil {
			return nil, err
		}
		bitIdx, err := r.readUvarint()
		if err != nil {
			return nil, err
		}
		leftPrefix, err := r.readUvarint()
		if err != nil {
			return nil, err
		}
		priorWord, err := r.readUvarint()
		if err != nil {
			return nil, err
		}
		prefixLen, err := r.readUvarint()
		if err != nil {
			return nil, err
		}
		prefix := make([]uint32, prefixLen)
		for i := range prefix {
			w, err := r.readUvarint()
			if err != nil {
				return nil, err
			}
			prefix[i] = uint32(w)
		}
		return DBBranch[V]{
			Left: left, Right: right,
			Mask:      BranchMask{BitIdx: uint32(bitIdx), LeftPrefix: uint32(leftPrefix)},
			PriorWord: uint32(priorWord),
			Prefix:    prefix,
		}, nil
	case tagStoredLeaf:
		var kb [32]byte
		if err := r.readExact(kb[:]); err != nil {
			return nil, err
		}
		valueLen, err := r.readUvarint()
		if err != nil {
			return nil, err
		}
		valueBytes, err := r.readN(int(valueLen))
		if err != nil {
			return nil, err
		}
		var value V
		if err := PV(&value).UnmarshalBinary(valueBytes); err != nil {
			return nil, err
		}
		return DBLeaf[V]{Leaf: Leaf[V]{KeyHash: KeyHashFromBytes(&kb), Value: value}}, nil
	default:
		return nil, errors.Newf("trie: unknown cached node tag %d", raw[0])
	}
}

// bytesReader is a tiny cursor over a byte slice used only by
// DefaultDecodeDBNode, kept separate from bytes.Reader so this file has no
// import-time dependency on codec.go's helpers.
type bytesReader []byte

func (r *bytesReader) readExact(dst []byte) error {
	if len(*r) < len(dst) {
		return errors.New("trie: truncated cached node payload")
	}
	copy(dst, (*r)[:len(dst)])
	*r = (*r)[len(dst):]
	return nil
}

func (r *bytesReader) readN(n int) ([]byte, error) {
	if len(*r) < n {
		return nil, errors.New("trie: truncated cached node payload")
	}
	out := (*r)[:n]
	*r = (*r)[n:]
	return out, nil
}

func (r *bytesReader) readUvarint() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		if len(*r) == 0 {
			return 0, errors.New("trie: truncated uvarint in cached node payload")
		}
		b := (*r)[0]
		*r = (*r)[1:]
		if b < 0x80 {
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}
