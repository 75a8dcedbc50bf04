package store

import (
	"cmp"
	"slices"
	"sync"
)

// BatchedStore buffers snapshots produced by parallel workers so they can
// be committed in a single transaction.
//
// Thread safety: the mutex protects the buffer and fake ID allocation.
type BatchedStore struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	// Paths of files that were checked but need no rewrite.
	unchanged []string

	nextFakeID int64 // starts at -1, decrements
}

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

// FakeScopeID allocates a placeholder scope ID, unique within the batch.
func (b *BatchedStore) FakeScopeID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// Add buffers snap for the next commit.
func (b *BatchedStore) Add(snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, snap)
}

// Keep records that path is still present and unchanged, so a prune leaves
// it alone.
func (b *BatchedStore) Keep(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unchanged = append(b.unchanged, path)
}

// Len returns the number of buffered snapshots.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots)
}

// Snapshots returns the buffered snapshots ordered by path.
func (b *BatchedStore) Snapshots() []*Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.snapshots)
	slices.SortFunc(out, func(x, y *Snapshot) int { return cmp.Compare(x.File.Path, y.File.Path) })
	return out
}

// Paths returns every path added or kept, sorted.
func (b *BatchedStore) Paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.unchanged)
	for _, s := range b.snapshots {
		out = append(out, s.File.Path)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
