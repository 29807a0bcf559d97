package trie

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	db := NewMemoryDb[testValue]()
	hasher := NewSHA256Hasher()
	builder := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	txn := NewTransaction[*SnapshotBuilder[testValue], testValue](builder)

	for i := uint64(0); i < 20; i++ {
		if _, _, err := txn.Insert(keyHashFromUint64(i*2654435761+1), testValue(i)); err != nil {
			t.Fatal(err)
		}
	}
	root, err := txn.Commit(hasher)
	if err != nil {
		t.Fatal(err)
	}

	// Read half the keys back through a builder opened at the committed
	// root, so the snapshot carries branches, leaves and unvisited hashes.
	readBuilder := NewSnapshotBuilder[testValue](db, root)
	readTxn := NewTransaction[*SnapshotBuilder[testValue], testValue](readBuilder)
	for i := uint64(0); i < 20; i += 2 {
		if _, _, err := readTxn.Get(keyHashFromUint64(i*2654435761 + 1)); err != nil {
			t.Fatal(err)
		}
	}
	snapshot, err := readTxn.BuildInitialSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := EncodeSnapshot[testValue](&buf, snapshot); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeSnapshot[testValue, *testValue](&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Len() != snapshot.Len() {
		t.Fatalf("node count mismatch: got %d want %d", decoded.Len(), snapshot.Len())
	}

	origRoot, _ := snapshot.CurrentRoot().Unwrap()
	gotRoot, ok := decoded.CurrentRoot().Unwrap()
	if !ok || gotRoot != origRoot {
		t.Fatalf("root mismatch after round trip: got %v want %v", gotRoot, origRoot)
	}

	recomputed, err := decoded.CalcRootHash(hasher)
	if err != nil {
		t.Fatalf("recompute root: %v", err)
	}
	recomputedHash, _ := recomputed.Unwrap()
	if recomputedHash != origRoot {
		t.Fatalf("decoded snapshot does not reproduce the original root hash: got %v want %v", recomputedHash, origRoot)
	}
}

func TestEncodeDecodeEmptySnapshot(t *testing.T) {
	snapshot := NewSnapshot[testValue](EmptyTrieRoot[NodeHash](), nil, nil, nil)
	var buf bytes.Buffer
	if err := EncodeSnapshot[testValue](&buf, snapshot); err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSnapshot[testValue, *testValue](&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.CurrentRoot().IsEmpty() {
		t.Fatal("expected empty root")
	}
}
