package trie

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// PortableUpdate is the write side of a hasher: bytes in, no output yet.
// It exists as its own capability (rather than folding it into
// PortableHasher32) so that PortableHash implementations can be written
// once and reused by both a finalizing hasher and anything else that only
// needs to consume bytes (e.g. a running checksum).
type PortableUpdate interface {
	PortableUpdate(data []byte)
}

// PortableHasher32 is the hashing capability the trie is built against: it
// can absorb bytes and, on demand, emit a 32-byte digest while atomically
// resetting itself to the initial state. The reset-on-finalize contract
// means callers never need a second hasher instance or an explicit Reset
// call between node hashes.
//
// The upstream design parameterizes this over an arbitrary output length
// (`PortableHasher<const LEN: usize>`); the trie never uses anything other
// than 32-byte digests, so the Go port fixes the length instead of carrying
// an unused type parameter.
type PortableHasher32 interface {
	PortableUpdate
	// FinalizeReset returns the current digest and resets the hasher to
	// its initial state in the same call.
	FinalizeReset() [32]byte
}

// PortableHash is implemented by any value that can feed itself into a
// PortableUpdate in an endianness-fixed, platform-independent way. Leaf
// values must implement this so that the leaf hash is reproducible
// across prover and verifier regardless of host architecture.
//
// Go cannot add methods to built-in numeric types, so the primitive
// encodings the specification describes (integers as little-endian bytes,
// bool as a single 0/1 byte, etc.) are exposed as the free functions below
// instead of methods on int/uint64/bool. Application value types call
// these helpers from their own PortableHash method.
type PortableHash interface {
	PortableHash(hasher PortableUpdate)
}

// DigestHasher adapts any stdlib hash.Hash with a fixed 32-byte output into
// a PortableHasher32. It is the concrete hasher used throughout the trie's
// tests and examples; callers picking a different 32-byte hash function
// (blake2b, etc.) get trie instances that are equally valid but not
// interchangeable with a SHA-256-backed one.
type DigestHasher struct {
	h hash.Hash
}

// NewDigestHasher wraps an arbitrary hash.Hash. The wrapped hash must
// produce a 32-byte digest; FinalizeReset panics otherwise, since that
// indicates a programmer error (wrong hash function wired in), not a
// runtime condition callers should recover from.
func NewDigestHasher(h hash.Hash) *DigestHasher {
	return &DigestHasher{h: h}
}

// NewSHA256Hasher returns the reference hasher: SHA-256 via crypto/sha256.
func NewSHA256Hasher() *DigestHasher {
	return NewDigestHasher(sha256.New())
}

// NewBlake2bHasher returns an alternate 32-byte hasher. Tries built with
// this hasher are internally consistent but produce different root hashes
// than SHA-256-backed tries over the same operations.
func NewBlake2bHasher() *DigestHasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors when a MAC key is supplied.
		panic(err)
	}
	return NewDigestHasher(h)
}

func (d *DigestHasher) PortableUpdate(data []byte) {
	d.h.Write(data)
}

func (d *DigestHasher) FinalizeReset() [32]byte {
	var out [32]byte
	sum := d.h.Sum(nil)
	if len(sum) != 32 {
		panic("trie: hasher wired into DigestHasher does not produce a 32-byte digest")
	}
	copy(out[:], sum)
	d.h.Reset()
	return out
}

// PortableHashBool writes bool as a single byte, 0 or 1.
func PortableHashBool(hasher PortableUpdate, v bool) {
	if v {
		hasher.PortableUpdate([]byte{1})
	} else {
		hasher.PortableUpdate([]byte{0})
	}
}

// PortableHashByte writes a single byte verbatim.
func PortableHashByte(hasher PortableUpdate, v byte) {
	hasher.PortableUpdate([]byte{v})
}

// PortableHashBytes writes a byte slice verbatim; it is the primitive all
// of the fixed-width integer helpers below build on.
func PortableHashBytes(hasher PortableUpdate, v []byte) {
	hasher.PortableUpdate(v)
}

// PortableHashString writes a string's UTF-8 bytes verbatim.
func PortableHashString(hasher PortableUpdate, v string) {
	hasher.PortableUpdate([]byte(v))
}

// PortableHashRune writes a rune as its 32-bit scalar value, little-endian,
// matching the specification's treatment of `char`.
func PortableHashRune(hasher PortableUpdate, v rune) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	hasher.PortableUpdate(b[:])
}

// PortableHashUint16 writes v as two little-endian bytes.
func PortableHashUint16(hasher PortableUpdate, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	hasher.PortableUpdate(b[:])
}

// PortableHashUint32 writes v as four little-endian bytes.
func PortableHashUint32(hasher PortableUpdate, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	hasher.PortableUpdate(b[:])
}

// PortableHashUint64 writes v as eight little-endian bytes.
func PortableHashUint64(hasher PortableUpdate, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	hasher.PortableUpdate(b[:])
}

// PortableHashInt32 writes v as four little-endian bytes (two's complement).
func PortableHashInt32(hasher PortableUpdate, v int32) {
	PortableHashUint32(hasher, uint32(v))
}

// PortableHashInt64 writes v as eight little-endian bytes (two's complement).
func PortableHashInt64(hasher PortableUpdate, v int64) {
	PortableHashUint64(hasher, uint64(v))
}

// PortableHashSlice writes the portable hash of every element of items, in
// order. This is the composite-sequence rule: the hash of a
// sequence is the concatenation of its elements' hashes.
func PortableHashSlice[T PortableHash](hasher PortableUpdate, items []T) {
	for _, item := range items {
		item.PortableHash(hasher)
	}
}

// PortableHashUint32Slice is the specialization PortableHashSlice would need
// a wrapper type to express for []uint32, used directly by Branch.prefix
// hashing since a bare uint32 cannot implement PortableHash in Go.
func PortableHashUint32Slice(hasher PortableUpdate, words []uint32) {
	for _, w := range words {
		PortableHashUint32(hasher, w)
	}
}
