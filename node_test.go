package trie

import "testing"

func TestBranchDescendLeftRight(t *testing.T) {
	oldLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 0, 0b00}), Value: 1}
	newLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 0, 0b10}), Value: 2}

	branch, newIsRight := NewBranchFromLeafs[testValue](0, &oldLeaf, &newLeaf)

	oldPos := branch.Descend(oldLeaf.KeyHash)
	newPos := branch.Descend(newLeaf.KeyHash)

	if oldPos.Kind == newPos.Kind {
		t.Fatalf("expected the two leaves to land on opposite sides, got %v and %v", oldPos.Kind, newPos.Kind)
	}
	if newIsRight && newPos.Kind != KeyPositionRight {
		t.Fatalf("newIsRight=true but Descend(newLeaf) reported %v", newPos.Kind)
	}
	if !newIsRight && newPos.Kind != KeyPositionLeft {
		t.Fatalf("newIsRight=false but Descend(newLeaf) reported %v", newPos.Kind)
	}
}

func TestBranchDescendDivergesOnPriorWord(t *testing.T) {
	oldLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 1, 0}), Value: 1}
	newLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 1, 2}), Value: 2}
	branch, _ := NewBranchFromLeafs[testValue](0, &oldLeaf, &newLeaf)

	other := keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 99, 0})
	pos := branch.Descend(other)
	if pos.Kind != KeyPositionPriorWord {
		t.Fatalf("expected divergence on PriorWord, got %v", pos.Kind)
	}
}

func TestBranchDescendDivergesOnPrefixVec(t *testing.T) {
	oldLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{1, 2, 3, 0, 0, 0, 0, 1}), Value: 1}
	newLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{1, 2, 3, 0, 0, 0, 0, 3}), Value: 2}
	branch, _ := NewBranchFromLeafs[testValue](0, &oldLeaf, &newLeaf)

	if len(branch.Prefix) == 0 {
		t.Fatalf("expected a non-empty compressed prefix for keys differing only at word 7")
	}

	other := keyHashFromWords([8]uint32{1, 2, 99, 0, 0, 0, 0, 1})
	pos := branch.Descend(other)
	if pos.Kind != KeyPositionPrefixVec {
		t.Fatalf("expected divergence on PrefixVec, got %v", pos.Kind)
	}
}

func TestNewBranchFromLeafsPanicsOnEqualKeys(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for equal keys")
		}
	}()
	leaf := Leaf[testValue]{KeyHash: keyHashFromUint64(7), Value: 1}
	other := leaf
	NewBranchFromLeafs[testValue](0, &leaf, &other)
}

func TestHashLeafDeterministic(t *testing.T) {
	leaf := Leaf[testValue]{KeyHash: keyHashFromUint64(42), Value: 99}
	hasher := NewSHA256Hasher()
	a := leaf.HashLeaf(hasher)
	b := leaf.HashLeaf(hasher)
	if a != b {
		t.Fatalf("hashing the same leaf twice produced different hashes: %v != %v", a, b)
	}
}

func TestHashBranchChangesWithChildren(t *testing.T) {
	oldLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 0, 0}), Value: 1}
	newLeaf := Leaf[testValue]{KeyHash: keyHashFromWords([8]uint32{0, 0, 0, 0, 0, 0, 0, 1}), Value: 2}
	branch, _ := NewBranchFromLeafs[testValue](0, &oldLeaf, &newLeaf)

	hasher := NewSHA256Hasher()
	h1 := branch.HashBranch(hasher, NewNodeHash([32]byte{1}), NewNodeHash([32]byte{2}))
	h2 := branch.HashBranch(hasher, NewNodeHash([32]byte{1}), NewNodeHash([32]byte{3}))
	if h1 == h2 {
		t.Fatal("expected HashBranch to depend on child hashes")
	}
}

func TestStoredBranchToBranchPreservesFields(t *testing.T) {
	sb := StoredBranch[testValue]{Left: 3, Right: 4, Mask: NewBranchMask(1, 5, 6), PriorWord: 77, Prefix: []uint32{1, 2}}
	b := sb.ToBranch()
	if b.Left != 3 || b.Right != 4 || b.PriorWord != 77 || len(b.Prefix) != 2 {
		t.Fatalf("ToBranch did not preserve fields: %+v", b)
	}
}
