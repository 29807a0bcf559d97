package trie

import "encoding/binary"

// testValue is the value type used across this package's tests: an 8-byte
// little-endian counter, matching the reference test suite's `[u8; 8]`
// value convention.
type testValue uint64

func (v testValue) PortableHash(hasher PortableUpdate) {
	PortableHashUint64(hasher, uint64(v))
}

func (v testValue) MarshalBinary() ([]byte, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:], nil
}

func (v *testValue) UnmarshalBinary(data []byte) error {
	*v = testValue(binary.LittleEndian.Uint64(data))
	return nil
}

// keyHashFromWords builds a KeyHash directly from its eight words, useful
// for tests that want precise control over where two keys diverge.
func keyHashFromWords(words [8]uint32) KeyHash {
	return KeyHash{Words: words}
}

func keyHashFromUint64(seed uint64) KeyHash {
	var words [8]uint32
	words[0] = uint32(seed)
	words[1] = uint32(seed >> 32)
	words[7] = uint32(seed * 2654435761)
	return KeyHash{Words: words}
}
