package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// testSnapshot builds a snapshot of a two-scope file: a module scope and a
// function scope nested in it.
func testSnapshot(path, hash string) *Snapshot {
	return &Snapshot{
		File: File{Path: path, Module: "app.main", Hash: hash, LastIndexed: time.Now().Truncate(time.Second)},
		Scopes: []Scope{
			{ID: -1, Kind: "module", StartLine: 1, EndLine: 5},
			{ID: -2, Kind: "function", Name: "f", StartLine: 2, EndLine: 4, ParentScopeID: ptr[int64](-1)},
		},
		Bindings: []Binding{
			{ScopeID: -1, Name: "f", Kind: "function", Line: 2, Col: 4},
			{ScopeID: -2, Name: "x", Kind: "assignment", Line: 3, Col: 4, Conditional: true},
		},
		Uses: []Use{
			{ScopeID: -2, Name: "x", Line: 4, Col: 11, Reaching: 1},
			{ScopeID: -2, Name: "y", Line: 4, Col: 15},
		},
		Diagnostics: []Diagnostic{
			{Kind: "unbound-name", Name: "y", Message: "name \"y\" is not bound", Line: 4, Col: 15},
		},
	}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "scopes", "bindings", "uses", "diagnostics"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	snap := testSnapshot("app/main.py", "h1")
	require.NoError(t, s.SaveSnapshot(snap))

	f, err := s.FileByPath("app/main.py")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Positive(t, f.ID)
	assert.Equal(t, "app.main", f.Module)
	assert.Equal(t, "h1", f.Hash)
	assert.True(t, snap.File.LastIndexed.Equal(f.LastIndexed))

	scopes, err := s.ScopesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Equal(t, "module", scopes[0].Kind)
	assert.Nil(t, scopes[0].ParentScopeID)
	assert.Equal(t, "f", scopes[1].Name)
	require.NotNil(t, scopes[1].ParentScopeID)
	assert.Equal(t, scopes[0].ID, *scopes[1].ParentScopeID, "fake parent ID remapped")

	bindings, err := s.BindingsByScope(scopes[1].ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "x", bindings[0].Name)
	assert.True(t, bindings[0].Conditional)

	uses, err := s.UsesByScope(scopes[1].ID)
	require.NoError(t, err)
	require.Len(t, uses, 2)
	assert.Equal(t, 1, uses[0].Reaching)
	assert.Equal(t, 0, uses[1].Reaching)

	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "y", diags[0].Name)
	assert.Equal(t, 4, diags[0].Line)
}

func TestSaveSnapshot_ReplacesPreviousRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot("app/main.py", "h1")))
	first, err := s.FileByPath("app/main.py")
	require.NoError(t, err)

	next := testSnapshot("app/main.py", "h2")
	next.Diagnostics = nil
	require.NoError(t, s.SaveSnapshot(next))

	f, err := s.FileByPath("app/main.py")
	require.NoError(t, err)
	assert.Equal(t, first.ID, f.ID, "file row is updated in place")
	assert.Equal(t, "h2", f.Hash)

	scopes, err := s.ScopesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, scopes, 2)
	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, diags)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM bindings").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSaveSnapshot_UnknownScopeFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	snap := testSnapshot("app/main.py", "h1")
	snap.Uses = append(snap.Uses, Use{ScopeID: -9, Name: "z"})

	err := s.SaveSnapshot(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app/main.py")

	f, err := s.FileByPath("app/main.py")
	require.NoError(t, err)
	assert.Nil(t, f, "failed commit leaves nothing behind")
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f, err := s.FileByPath("missing.py")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBindingsByName_AcrossFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot("a.py", "h")))
	require.NoError(t, s.SaveSnapshot(testSnapshot("b.py", "h")))

	bs, err := s.BindingsByName("x")
	require.NoError(t, err)
	assert.Len(t, bs, 2)
}

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot("app/main.py", "h1")))
	f, err := s.FileByPath("app/main.py")
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileData(f.ID))

	got, err := s.FileByPath("app/main.py")
	require.NoError(t, err)
	assert.Nil(t, got)
	for _, table := range []string{"scopes", "bindings", "uses", "diagnostics"} {
		var n int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestPruneFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	for _, p := range []string{"a.py", "b.py", "c.py"} {
		require.NoError(t, s.SaveSnapshot(testSnapshot(p, "h")))
	}

	n, err := s.PruneFiles([]string{"b.py"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.py", files[0].Path)
}

// =============================================================================
// Fingerprint
// =============================================================================

func TestFingerprint(t *testing.T) {
	t.Parallel()
	a := Fingerprint([]byte("x = 1\n"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint([]byte("x = 1\n")))
	assert.NotEqual(t, a, Fingerprint([]byte("x = 2\n")))
}
