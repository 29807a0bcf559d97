package trie

import "testing"

func TestDigestHasherFinalizeResets(t *testing.T) {
	h := NewSHA256Hasher()
	h.PortableUpdate([]byte("hello"))
	first := h.FinalizeReset()

	h.PortableUpdate([]byte("hello"))
	second := h.FinalizeReset()

	if first != second {
		t.Fatalf("hasher did not reset between calls: %x != %x", first, second)
	}

	h.PortableUpdate([]byte("hello"))
	h.PortableUpdate([]byte("hello"))
	combined := h.FinalizeReset()
	if combined == first {
		t.Fatalf("hashing twice as much input produced the same digest")
	}
}

func TestPortableHashUint64LittleEndian(t *testing.T) {
	h := NewSHA256Hasher()
	PortableHashUint64(h, 1)
	a := h.FinalizeReset()

	h2 := NewSHA256Hasher()
	h2.PortableUpdate([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	b := h2.FinalizeReset()

	if a != b {
		t.Fatalf("PortableHashUint64 is not little-endian: %x != %x", a, b)
	}
}

func TestPortableHashBoolTrueEqualsByteOne(t *testing.T) {
	hTrue := NewSHA256Hasher()
	PortableHashBool(hTrue, true)
	got := hTrue.FinalizeReset()

	hByte := NewSHA256Hasher()
	PortableHashByte(hByte, 1)
	want := hByte.FinalizeReset()

	if got != want {
		t.Fatalf("PortableHashBool(true) should equal hashing byte 1: %x != %x", got, want)
	}
}

func TestBlake2bHasherDiffersFromSHA256(t *testing.T) {
	sha := NewSHA256Hasher()
	sha.PortableUpdate([]byte("trie"))
	shaOut := sha.FinalizeReset()

	b2 := NewBlake2bHasher()
	b2.PortableUpdate([]byte("trie"))
	b2Out := b2.FinalizeReset()

	if shaOut == b2Out {
		t.Fatalf("expected different hash functions to disagree on the same input")
	}
}
