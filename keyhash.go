package trie

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// KeyHash is the 256-bit identifier under which a value is stored in the
// trie. It is always the output of a cryptographic hash function applied to
// the application's original key; the original key is never retained.
//
// The hash is held as eight 32-bit little-endian words rather than as a flat
// byte array because every branch decision operates on a single word, and
// word-wise comparison lets the descent and split routines in node.go avoid
// re-deriving byte offsets on every step.
type KeyHash struct {
	Words [8]uint32
}

// KeyHashFromBytes builds a KeyHash from a 32-byte digest, interpreting word
// i as the little-endian value of bytes[4*i : 4*i+4].
func KeyHashFromBytes(b *[32]byte) KeyHash {
	var kh KeyHash
	for i := range kh.Words {
		kh.Words[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return kh
}

// ToBytes renders the KeyHash back to its 32-byte digest form. It is the
// exact inverse of KeyHashFromBytes.
func (k KeyHash) ToBytes() [32]byte {
	var b [32]byte
	for i, w := range k.Words {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], w)
	}
	return b
}

// PortableHash feeds the KeyHash's byte representation into hasher, matching
// the little-endian convention used everywhere else in the hashing layer.
func (k KeyHash) PortableHash(hasher PortableUpdate) {
	b := k.ToBytes()
	hasher.PortableUpdate(b[:])
}

// Uint256 views the KeyHash as a 256-bit unsigned integer (most significant
// word first in value, i.e. Words[7] is the high word). This is a
// convenience for tests and tooling that want to generate or display keys
// numerically; the trie itself never compares keys as integers.
func (k KeyHash) Uint256() *uint256.Int {
	var b [32]byte
	// uint256.SetBytes32 expects big-endian bytes.
	kb := k.ToBytes()
	for i := 0; i < 32; i++ {
		b[i] = kb[31-i]
	}
	return new(uint256.Int).SetBytes32(b[:])
}

// KeyHashFromUint256 is the inverse of KeyHash.Uint256.
func KeyHashFromUint256(i *uint256.Int) KeyHash {
	be := i.Bytes32()
	var le [32]byte
	for idx := 0; idx < 32; idx++ {
		le[idx] = be[31-idx]
	}
	return KeyHashFromBytes(&le)
}

func (k KeyHash) String() string {
	b := k.ToBytes()
	return fmt.Sprintf("%x", b)
}

// NodeHash is an opaque 32-byte cryptographic digest identifying a trie
// node. Byte equality is the only relation NodeHash exposes; unlike KeyHash
// it is never decomposed into words because nothing ever branches on it.
type NodeHash [32]byte

// NewNodeHash wraps a raw 32-byte digest as a NodeHash.
func NewNodeHash(b [32]byte) NodeHash {
	return NodeHash(b)
}

func (h NodeHash) String() string {
	return fmt.Sprintf("%x", [32]byte(h))
}

// PortableHash feeds the raw bytes of the hash into hasher.
func (h NodeHash) PortableHash(hasher PortableUpdate) {
	hasher.PortableUpdate(h[:])
}
