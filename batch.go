package trie

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch describes one independent unit of work for RunBatchesConcurrently:
// a root to start from and the operations to apply against it.
type Batch[V PortableHash] struct {
	OldRoot TrieRoot[NodeHash]
	Apply   func(txn *Transaction[*SnapshotBuilder[V], V]) error
}

// BatchResult is what RunBatchesConcurrently returns for one Batch, in the
// same slot it was submitted in.
type BatchResult[V PortableHash] struct {
	NewRoot  TrieRoot[NodeHash]
	Snapshot *Snapshot[V]
}

// RunBatchesConcurrently commits many independent batches against one
// shared Database at once. This is sound as long
// as the database's own Get/Set are safe for concurrent use — MemoryDb,
// CachedDb, and PebbleDb all are — since each batch opens its own
// SnapshotBuilder and Transaction and no state is shared across batches
// other than the database itself.
//
// If any batch's Apply or Commit fails, the first error is returned and the
// other batches' goroutines are allowed to run to completion (their results
// are simply discarded); RunBatchesConcurrently never partially commits a
// batch whose Apply returned an error, since Commit is only ever called
// after Apply succeeds for that batch.
func RunBatchesConcurrently[V PortableHash](ctx context.Context, db Database[V], hasher PortableHasher32, batches []Batch[V]) ([]BatchResult[V], error) {
	results := make([]BatchResult[V], len(batches))

	g, _ := errgroup.WithContext(ctx)
	for i := range batches {
		i := i
		b := batches[i]
		g.Go(func() error {
			builder := NewSnapshotBuilder[V](db, b.OldRoot)
			txn := NewTransaction[*SnapshotBuilder[V], V](builder)

			if err := b.Apply(txn); err != nil {
				return err
			}
			newRoot, err := txn.Commit(hasher)
			if err != nil {
				return err
			}
			snapshot, err := txn.BuildInitialSnapshot()
			if err != nil {
				return err
			}
			results[i] = BatchResult[V]{NewRoot: newRoot, Snapshot: snapshot}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
