package trie

import "math/bits"

// BranchMask encodes exactly where, along a 256-bit key, two keys diverge.
// It names a single bit position (bitIdx, counted from the start of the key)
// together with the bits every key on the left side of the branch is
// required to share up to that point (leftPrefix).
//
// The representation is split into a word index and a bit offset within
// that word because every key is stored as eight uint32 words (see
// KeyHash); branch descent always compares one whole word at a time before
// it ever looks at individual bits, so the word/bit split lets that
// comparison avoid any further arithmetic.
type BranchMask struct {
	// BitIdx is the absolute bit position of the discriminant bit: the word
	// index times 32 plus the position of the lowest bit at which the two
	// diverging words differ (see NewBranchMask).
	BitIdx uint32
	// LeftPrefix holds, in its low RelativeBitIdx() bits, the prefix that
	// every key descending left at this branch shares within the
	// discriminant word. Bits above the prefix are zero.
	LeftPrefix uint32
}

// NewBranchMask derives the BranchMask separating two keys that are known to
// differ within word index wordIdx, where a and b are the two keys' values
// at that word.
func NewBranchMask(wordIdx uint32, a, b uint32) BranchMask {
	diff := a ^ b
	if diff == 0 {
		panic("trie: NewBranchMask called with identical words")
	}
	// The discriminant bit is the least significant differing bit: every
	// bit below it is identical between a and b and therefore belongs to
	// the shared prefix, not to the branch decision.
	relativeBitIdx := uint32(bits.TrailingZeros32(diff))
	bitIdx := wordIdx*32 + relativeBitIdx
	prefixMask := (uint32(1) << relativeBitIdx) - 1
	return BranchMask{
		BitIdx:     bitIdx,
		LeftPrefix: a & prefixMask,
	}
}

// WordIdx returns which of the key's eight words contains the discriminant
// bit.
func (m BranchMask) WordIdx() uint32 {
	return m.BitIdx / 32
}

// RelativeBitIdx returns the discriminant bit's position within its word,
// counting from 0 at the word's least significant bit.
func (m BranchMask) RelativeBitIdx() uint32 {
	return m.BitIdx % 32
}

// DiscriminantBitMask returns a word with only the discriminant bit set.
func (m BranchMask) DiscriminantBitMask() uint32 {
	return uint32(1) << m.RelativeBitIdx()
}

// PrefixDiscriminantMask returns a word with the discriminant bit and every
// bit below it set — i.e. the bits a branch word must match on to even
// reach this branch's decision. The relative-bit-idx == 31 case returns
// every bit set directly instead of computing 1<<32, which is 0 in uint32
// arithmetic.
func (m BranchMask) PrefixDiscriminantMask() uint32 {
	rel := m.RelativeBitIdx()
	if rel == 31 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << (rel + 1)) - 1
}

// TrailingBitsMask returns a word with every bit above the discriminant bit
// set, i.e. the complement of PrefixDiscriminantMask.
func (m BranchMask) TrailingBitsMask() uint32 {
	return ^m.PrefixDiscriminantMask()
}

// RightPrefix returns the prefix every key descending right at this branch
// shares within the discriminant word: identical to LeftPrefix except that
// the discriminant bit itself is set.
func (m BranchMask) RightPrefix() uint32 {
	return m.LeftPrefix | m.DiscriminantBitMask()
}

// IsLeftDescendant reports whether word (the value of keyHash at
// m.WordIdx()) is consistent with descending left at this branch: every bit
// at or below the discriminant must match LeftPrefix exactly, which in
// particular requires the discriminant bit itself to be clear (LeftPrefix
// always holds a 0 there).
func (m BranchMask) IsLeftDescendant(word uint32) bool {
	return word&m.PrefixDiscriminantMask() == m.LeftPrefix
}

// IsRightDescendant reports whether word is consistent with descending
// right at this branch.
func (m BranchMask) IsRightDescendant(word uint32) bool {
	return word&m.PrefixDiscriminantMask() == m.RightPrefix()
}

// PortableHash feeds the mask's fields into hasher in the fixed order
// bitIdx, leftPrefix, matching the order node hashing consumes them in.
func (m BranchMask) PortableHash(hasher PortableUpdate) {
	PortableHashUint32(hasher, m.BitIdx)
	PortableHashUint32(hasher, m.LeftPrefix)
}
