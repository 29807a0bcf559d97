// Command kairos-trie runs a small end-to-end demonstration of a prover
// batch followed by a verifier replay, in the same shape as the reference
// design's prove-and-verify example: a prover holding the full database
// builds and commits a batch of operations, hands a compact snapshot to a
// verifier, and the verifier recomputes the same root hash from nothing
// but that snapshot and the operation list.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	trie "github.com/cspr-rad/kairos-trie"
)

var (
	version = "dev"
	commit  = "none"
)

// counter is the demo's value type: an 8-byte little-endian counter,
// standing in for the reference example's `[u8; 8]` value.
type counter uint64

func (c counter) PortableHash(hasher trie.PortableUpdate) {
	trie.PortableHashUint64(hasher, uint64(c))
}

func (c counter) MarshalBinary() ([]byte, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(c))
	return b[:], nil
}

func (c *counter) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("kairos-trie: counter value must be 8 bytes, got %d", len(data))
	}
	*c = counter(binary.LittleEndian.Uint64(data))
	return nil
}

func keyOf(name string) trie.KeyHash {
	sum := sha256.Sum256([]byte(name))
	return trie.KeyHashFromBytes(&sum)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kairos-trie", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Printf("kairos-trie %s (%s)\n", version, commit)
		return 0
	}

	db := trie.NewMemoryDb[counter]()
	hasher := trie.NewSHA256Hasher()

	proverRoot, snapshot, err := proverBatch(db, hasher, trie.EmptyTrieRoot[trie.NodeHash](),
		[]string{"alice", "bob"}, []uint64{10, 20})
	if err != nil {
		log.Printf("prover batch failed: %v", err)
		return 1
	}
	log.Printf("prover committed batch 1, root = %v, snapshot nodes = %d", proverRoot, snapshot.Len())

	verifierRoot, err := verifierBatch(hasher, snapshot, trie.EmptyTrieRoot[trie.NodeHash](), proverRoot,
		[]string{"alice", "bob"}, []uint64{10, 20})
	if err != nil {
		log.Printf("verifier batch failed: %v", err)
		return 1
	}
	if !rootsEqual(proverRoot, verifierRoot) {
		log.Printf("root mismatch: prover %v != verifier %v", proverRoot, verifierRoot)
		return 1
	}
	log.Printf("verifier reproduced root %v", verifierRoot)

	// Second batch, chained from the first, matching the reference
	// example's two-round structure.
	proverRoot2, snapshot2, err := proverBatch(db, hasher, proverRoot, []string{"alice"}, []uint64{99})
	if err != nil {
		log.Printf("prover batch 2 failed: %v", err)
		return 1
	}
	log.Printf("prover committed batch 2, root = %v, snapshot nodes = %d", proverRoot2, snapshot2.Len())

	verifierRoot2, err := verifierBatch(hasher, snapshot2, proverRoot, proverRoot2, []string{"alice"}, []uint64{99})
	if err != nil {
		log.Printf("verifier batch 2 failed: %v", err)
		return 1
	}
	if !rootsEqual(proverRoot2, verifierRoot2) {
		log.Printf("root mismatch on batch 2: prover %v != verifier %v", proverRoot2, verifierRoot2)
		return 1
	}
	log.Printf("verifier reproduced root %v", verifierRoot2)
	return 0
}

// proverBatch runs with the full database: it builds a SnapshotBuilder at
// oldRoot, applies one Insert per (name, value) pair, commits, and returns
// both the new root and the compact snapshot a verifier would need.
func proverBatch(db *trie.MemoryDb[counter], hasher trie.PortableHasher32, oldRoot trie.TrieRoot[trie.NodeHash], names []string, values []uint64) (trie.TrieRoot[trie.NodeHash], *trie.Snapshot[counter], error) {
	builder := trie.NewSnapshotBuilder[counter](db, oldRoot)
	txn := trie.NewTransaction[*trie.SnapshotBuilder[counter], counter](builder)

	for i, name := range names {
		if _, _, err := txn.Insert(keyOf(name), counter(values[i])); err != nil {
			return trie.TrieRoot[trie.NodeHash]{}, nil, err
		}
	}

	newRoot, err := txn.Commit(hasher)
	if err != nil {
		return trie.TrieRoot[trie.NodeHash]{}, nil, err
	}
	snapshot, err := txn.BuildInitialSnapshot()
	if err != nil {
		return trie.TrieRoot[trie.NodeHash]{}, nil, err
	}
	return newRoot, snapshot, nil
}

// verifierBatch runs with nothing but the snapshot: this is the code path
// that would execute inside a zkVM, replaying the same operations and
// checking the claimed old and new root hashes without ever touching the
// prover's database.
func verifierBatch(hasher trie.PortableHasher32, snapshot *trie.Snapshot[counter], oldRoot, newRoot trie.TrieRoot[trie.NodeHash], names []string, values []uint64) (trie.TrieRoot[trie.NodeHash], error) {
	txn, err := trie.NewTransactionFromSnapshot(snapshot, hasher, oldRoot)
	if err != nil {
		return trie.TrieRoot[trie.NodeHash]{}, err
	}

	for i, name := range names {
		if _, _, err := txn.Insert(keyOf(name), counter(values[i])); err != nil {
			return trie.TrieRoot[trie.NodeHash]{}, err
		}
	}

	computedRoot, err := txn.CalcRootHash(hasher)
	if err != nil {
		return trie.TrieRoot[trie.NodeHash]{}, err
	}
	if !rootsEqual(computedRoot, newRoot) {
		return computedRoot, fmt.Errorf("kairos-trie: verifier root %v does not match claimed root %v", computedRoot, newRoot)
	}
	return computedRoot, nil
}

func rootsEqual(a, b trie.TrieRoot[trie.NodeHash]) bool {
	av, aok := a.Unwrap()
	bv, bok := b.Unwrap()
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return av == bv
}
