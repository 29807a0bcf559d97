package trie

import "testing"

func TestEntryVacantEmptyTrieInsert(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(1)
	e, err := txn.Entry(key)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(VacantEntryEmptyTrie[*SnapshotBuilder[testValue], testValue]); !ok {
		t.Fatalf("expected VacantEntryEmptyTrie, got %T", e)
	}

	got, err := txn.OrInsert(e, testValue(5))
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}

	v, ok, err := txn.Get(key)
	if err != nil || !ok || v != 5 {
		t.Fatalf("get after entry insert: v=%v ok=%v err=%v", v, ok, err)
	}
}

func TestEntryVacantNonEmptyTrieInsert(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	existing := keyHashFromUint64(1)
	if _, _, err := txn.Insert(existing, testValue(1)); err != nil {
		t.Fatal(err)
	}

	newKey := keyHashFromUint64(2)
	e, err := txn.Entry(newKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(VacantEntry[*SnapshotBuilder[testValue], testValue]); !ok {
		t.Fatalf("expected VacantEntry, got %T", e)
	}

	got, err := txn.OrInsert(e, testValue(9))
	if err != nil {
		t.Fatal(err)
	}
	if got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}

	v, ok, err := txn.Get(newKey)
	if err != nil || !ok || v != 9 {
		t.Fatalf("get after entry insert: v=%v ok=%v err=%v", v, ok, err)
	}
	// original key must still resolve correctly.
	v2, ok2, err := txn.Get(existing)
	if err != nil || !ok2 || v2 != 1 {
		t.Fatalf("existing key disturbed: v=%v ok=%v err=%v", v2, ok2, err)
	}
}

func TestEntryOccupiedAndModify(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(1)
	if _, _, err := txn.Insert(key, testValue(1)); err != nil {
		t.Fatal(err)
	}

	e, err := txn.Entry(key)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(OccupiedEntry[testValue]); !ok {
		t.Fatalf("expected OccupiedEntry, got %T", e)
	}

	e = txn.AndModify(e, func(v *testValue) { *v = *v + 100 })
	got, err := txn.OrInsert(e, testValue(0))
	if err != nil {
		t.Fatal(err)
	}
	if got != 101 {
		t.Fatalf("expected 101, got %v", got)
	}
}

func TestEntryAndModifyOrInsertOnVacant(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(1)
	e, err := txn.Entry(key)
	if err != nil {
		t.Fatal(err)
	}
	e = txn.AndModify(e, func(v *testValue) { *v = *v + 100 })
	got, err := txn.OrInsert(e, testValue(7))
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("expected 7 (and_modify must not run on a vacant entry), got %v", got)
	}
}

func TestEntryOrDefault(t *testing.T) {
	db := NewMemoryDb[testValue]()
	_, txn := newEmptyProverTxn(db)

	key := keyHashFromUint64(1)
	e, err := txn.Entry(key)
	if err != nil {
		t.Fatal(err)
	}
	got, err := txn.OrDefault(e)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("expected zero value, got %v", got)
	}
}
