package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDsAreUniqueAndNegative(t *testing.T) {
	t.Parallel()
	b := NewBatchedStore()

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				id := b.FakeScopeID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 400)
	for id := range seen {
		assert.Negative(t, id)
	}
}

func TestBatchedStore_CommitBatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatchedStore()

	// Workers add snapshots concurrently, each with its own fake IDs.
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := testSnapshot(fmt.Sprintf("pkg/m%d.py", i), "h")
			mod, fn := b.FakeScopeID(), b.FakeScopeID()
			snap.Scopes[0].ID, snap.Scopes[1].ID = mod, fn
			snap.Scopes[1].ParentScopeID = &mod
			snap.Bindings[0].ScopeID, snap.Bindings[1].ScopeID = mod, fn
			snap.Uses[0].ScopeID, snap.Uses[1].ScopeID = fn, fn
			b.Add(snap)
		}()
	}
	wg.Wait()
	b.Keep("pkg/unchanged.py")
	require.Equal(t, 4, b.Len())

	require.NoError(t, s.CommitBatch(b))

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "pkg/m0.py", files[0].Path)

	for _, f := range files {
		scopes, err := s.ScopesByFile(f.ID)
		require.NoError(t, err)
		require.Len(t, scopes, 2)
		assert.Equal(t, scopes[0].ID, *scopes[1].ParentScopeID)
	}

	assert.Equal(t, []string{"pkg/m0.py", "pkg/m1.py", "pkg/m2.py", "pkg/m3.py", "pkg/unchanged.py"}, b.Paths())
}
