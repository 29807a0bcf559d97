package trie

import (
	"math/rand"
	"testing"
)

func newEmptyProverTxn(db *MemoryDb[testValue]) (*SnapshotBuilder[testValue], *Transaction[*SnapshotBuilder[testValue], testValue]) {
	builder := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	txn := NewTransaction[*SnapshotBuilder[testValue], testValue](builder)
	return builder, txn
}

func TestInsertAndGetSingleKey(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(1)
	if _, had, err := txn.Insert(key, testValue(42)); err != nil || had {
		t.Fatalf("unexpected insert result: had=%v err=%v", had, err)
	}

	v, ok, err := txn.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%v, %v)", v, ok)
	}
}

func TestInsertOverwriteReturnsOldValue(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(7)
	if _, _, err := txn.Insert(key, testValue(1)); err != nil {
		t.Fatal(err)
	}
	old, had, err := txn.Insert(key, testValue(2))
	if err != nil {
		t.Fatal(err)
	}
	if !had || old != 1 {
		t.Fatalf("expected (1, true), got (%v, %v)", old, had)
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	if _, _, err := txn.Insert(keyHashFromUint64(1), testValue(1)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := txn.Get(keyHashFromUint64(2))
	if err != nil {
		t.Fatal(err)
	}
	if ok || v != 0 {
		t.Fatalf("expected (0, false), got (%v, %v)", v, ok)
	}
}

func TestManyKeysRoundTrip(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	reference := make(map[KeyHash]testValue)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		key := keyHashFromUint64(rng.Uint64())
		value := testValue(rng.Uint64())
		reference[key] = value
		if _, _, err := txn.Insert(key, value); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	for key, want := range reference {
		got, ok, err := txn.Get(key)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !ok || got != want {
			t.Fatalf("key %v: want (%v, true), got (%v, %v)", key, want, got, ok)
		}
	}
}

// TestProverVerifierRoundTrip mirrors the reference design's
// prove-and-verify example: a prover batch committed against a full
// database must produce a snapshot a verifier can replay, with no access
// to that database, to the identical root hash.
func TestProverVerifierRoundTrip(t *testing.T) {
	db := NewMemoryDb[testValue]()
	hasher := NewSHA256Hasher()

	builder := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	proverTxn := NewTransaction[*SnapshotBuilder[testValue], testValue](builder)

	keys := []KeyHash{keyHashFromUint64(1), keyHashFromUint64(2), keyHashFromUint64(3)}
	for i, k := range keys {
		if _, _, err := proverTxn.Insert(k, testValue(i+1)); err != nil {
			t.Fatal(err)
		}
	}

	newRoot, err := proverTxn.Commit(hasher)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	snapshot, err := proverTxn.BuildInitialSnapshot()
	if err != nil {
		t.Fatalf("build snapshot failed: %v", err)
	}

	verifierTxn, err := NewTransactionFromSnapshot(snapshot, hasher, EmptyTrieRoot[NodeHash]())
	if err != nil {
		t.Fatalf("opening verifier transaction failed: %v", err)
	}
	for i, k := range keys {
		if _, _, err := verifierTxn.Insert(k, testValue(i+1)); err != nil {
			t.Fatal(err)
		}
	}
	verifierRoot, err := verifierTxn.CalcRootHash(hasher)
	if err != nil {
		t.Fatalf("verifier root hash failed: %v", err)
	}
	if !trieRootHashEqual(newRoot, verifierRoot) {
		t.Fatalf("root mismatch: prover %v verifier %v", newRoot, verifierRoot)
	}
}

// TestProverVerifierChainedBatches checks that a second batch, replayed by
// the verifier from a snapshot rooted at the first batch's result, still
// reproduces the same root the prover computed.
func TestProverVerifierChainedBatches(t *testing.T) {
	db := NewMemoryDb[testValue]()
	hasher := NewSHA256Hasher()

	builder1 := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	txn1 := NewTransaction[*SnapshotBuilder[testValue], testValue](builder1)
	keyA := keyHashFromUint64(100)
	if _, _, err := txn1.Insert(keyA, testValue(1)); err != nil {
		t.Fatal(err)
	}
	root1, err := txn1.Commit(hasher)
	if err != nil {
		t.Fatal(err)
	}

	builder2 := NewSnapshotBuilder[testValue](db, root1)
	txn2 := NewTransaction[*SnapshotBuilder[testValue], testValue](builder2)
	keyB := keyHashFromUint64(200)
	if _, _, err := txn2.Insert(keyB, testValue(2)); err != nil {
		t.Fatal(err)
	}
	root2, err := txn2.Commit(hasher)
	if err != nil {
		t.Fatal(err)
	}
	snapshot2, err := txn2.BuildInitialSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	verifierTxn, err := NewTransactionFromSnapshot(snapshot2, hasher, root1)
	if err != nil {
		t.Fatalf("verifier open failed: %v", err)
	}
	if _, _, err := verifierTxn.Insert(keyB, testValue(2)); err != nil {
		t.Fatal(err)
	}
	verifierRoot, err := verifierTxn.CalcRootHash(hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !trieRootHashEqual(root2, verifierRoot) {
		t.Fatalf("root mismatch across batches: prover %v verifier %v", root2, verifierRoot)
	}
}

// TestProverVerifierPartialUpdateHashesUnvisitedSibling builds a multi-leaf
// trie, then commits a second batch that only touches one of those leaves.
// The resulting snapshot must carry unvisited entries for every sibling
// subtree the second batch never descended into, and the verifier has to
// fold those straight into the root hash without ever seeing their content
// — exactly the calc_subtree_hash path a transaction that faults only the
// modified path never exercises.
func TestProverVerifierPartialUpdateHashesUnvisitedSibling(t *testing.T) {
	db := NewMemoryDb[testValue]()
	hasher := NewSHA256Hasher()

	builder1 := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	txn1 := NewTransaction[*SnapshotBuilder[testValue], testValue](builder1)
	keys := []KeyHash{
		keyHashFromUint64(10),
		keyHashFromUint64(20),
		keyHashFromUint64(30),
		keyHashFromUint64(40),
		keyHashFromUint64(50),
	}
	for i, k := range keys {
		if _, _, err := txn1.Insert(k, testValue(i+1)); err != nil {
			t.Fatal(err)
		}
	}
	root1, err := txn1.Commit(hasher)
	if err != nil {
		t.Fatalf("initial commit failed: %v", err)
	}

	builder2 := NewSnapshotBuilder[testValue](db, root1)
	txn2 := NewTransaction[*SnapshotBuilder[testValue], testValue](builder2)
	touchedKey := keys[0]
	if _, had, err := txn2.Insert(touchedKey, testValue(999)); err != nil || !had {
		t.Fatalf("update of existing key failed: had=%v err=%v", had, err)
	}
	root2, err := txn2.Commit(hasher)
	if err != nil {
		t.Fatalf("partial update commit failed: %v", err)
	}
	snapshot, err := txn2.BuildInitialSnapshot()
	if err != nil {
		t.Fatalf("build snapshot failed: %v", err)
	}
	if len(snapshot.unvisited) == 0 {
		t.Fatalf("expected snapshot to carry unvisited sibling hashes, got none")
	}

	verifierTxn, err := NewTransactionFromSnapshot(snapshot, hasher, root1)
	if err != nil {
		t.Fatalf("verifier open failed: %v", err)
	}
	if _, had, err := verifierTxn.Insert(touchedKey, testValue(999)); err != nil || !had {
		t.Fatalf("verifier update failed: had=%v err=%v", had, err)
	}
	verifierRoot, err := verifierTxn.CalcRootHash(hasher)
	if err != nil {
		t.Fatalf("verifier root hash failed (likely calc_subtree_hash on an unvisited sibling): %v", err)
	}
	if !trieRootHashEqual(root2, verifierRoot) {
		t.Fatalf("root mismatch: prover %v verifier %v", root2, verifierRoot)
	}
}

func TestVerifierRejectsWrongRoot(t *testing.T) {
	db := NewMemoryDb[testValue]()
	hasher := NewSHA256Hasher()

	builder := NewSnapshotBuilder[testValue](db, EmptyTrieRoot[NodeHash]())
	txn := NewTransaction[*SnapshotBuilder[testValue], testValue](builder)
	if _, _, err := txn.Insert(keyHashFromUint64(1), testValue(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := txn.Commit(hasher); err != nil {
		t.Fatal(err)
	}
	snapshot, err := txn.BuildInitialSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	wrongRoot := NodeTrieRoot(NewNodeHash([32]byte{1, 2, 3}))
	if _, err := NewTransactionFromSnapshot(snapshot, hasher, wrongRoot); err == nil {
		t.Fatal("expected root hash mismatch error, got nil")
	}
}
