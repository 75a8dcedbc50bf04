package arbor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return &QueryBuilder{store: s}, s
}

// nestedSnapshot is a module spanning lines 1-20 holding a class on 3-12
// whose method spans 5-10.
func nestedSnapshot(path string) *store.Snapshot {
	mod, cls, fn := int64(-1), int64(-2), int64(-3)
	return &store.Snapshot{
		File: store.File{Path: path, Module: "test", Hash: "h", LastIndexed: time.Now()},
		Scopes: []store.Scope{
			{ID: mod, Kind: "module", StartLine: 1, StartCol: 0, EndLine: 20, EndCol: 0},
			{ID: cls, Kind: "class", Name: "Worker", StartLine: 3, StartCol: 0, EndLine: 12, EndCol: 20, ParentScopeID: &mod},
			{ID: fn, Kind: "function", Name: "run", StartLine: 5, StartCol: 4, EndLine: 10, EndCol: 19, ParentScopeID: &cls},
		},
		Bindings: []store.Binding{
			{ScopeID: mod, Name: "Worker", Kind: "class", Line: 3, Col: 6},
			{ScopeID: cls, Name: "run", Kind: "function", Line: 5, Col: 8},
			{ScopeID: fn, Name: "job", Kind: "assignment", Line: 6, Col: 8, Conditional: true},
		},
		Uses: []store.Use{
			{ScopeID: fn, Name: "job", Line: 7, Col: 15, Reaching: 1},
			{ScopeID: mod, Name: "Worker", Line: 14, Col: 0, Reaching: 1},
		},
		Diagnostics: []store.Diagnostic{
			{Kind: KindUnboundName, Name: "jobz", Message: `name "jobz" is not defined`, Line: 8, Col: 8},
		},
	}
}

func TestScopeAt_ReturnsNarrowestScope(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("pkg/worker.py")))

	sc, err := q.ScopeAt("pkg/worker.py", 7, 9)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "function", sc.Kind)
	assert.Equal(t, "run", sc.Name)
	assert.Equal(t, Location{File: "pkg/worker.py", Line: 5, Col: 5}, sc.Start)

	sc, err = q.ScopeAt("pkg/worker.py", 11, 1)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "Worker", sc.Name)

	sc, err = q.ScopeAt("pkg/worker.py", 15, 1)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "module", sc.Kind)
}

func TestScopeAt_OutsideEveryScope(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("pkg/worker.py")))

	sc, err := q.ScopeAt("pkg/worker.py", 50, 1)
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestScopeAt_NoFile(t *testing.T) {
	t.Parallel()
	q, _ := newTestQueryBuilder(t)

	sc, err := q.ScopeAt("nonexistent.py", 1, 1)
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestDefinitionsOf(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("b.py")))
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("a.py")))

	defs, err := q.DefinitionsOf("job")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, Definition{
		Location:    Location{File: "a.py", Line: 6, Col: 9},
		Name:        "job",
		Kind:        "assignment",
		Scope:       "function",
		Conditional: true,
	}, defs[0])
	assert.Equal(t, "b.py", defs[1].File)

	defs, err = q.DefinitionsOf("nothing")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestReferencesTo(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("a.py")))

	refs, err := q.ReferencesTo("Worker")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, Reference{Location: Location{File: "a.py", Line: 14, Col: 1}, Name: "Worker", Reaching: 1}, refs[0])
}

func TestDiagnostics(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("a.py")))

	diags, err := q.Diagnostics("a.py")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, Diagnostic{File: "a.py", Line: 8, Col: 9, Kind: KindUnboundName, Name: "jobz", Message: `name "jobz" is not defined`}, diags[0])

	diags, err = q.Diagnostics("missing.py")
	require.NoError(t, err)
	assert.Nil(t, diags)
}

func TestFiles_AfterReplace(t *testing.T) {
	t.Parallel()
	q, s := newTestQueryBuilder(t)
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("a.py")))
	// Saving the same path again replaces its rows.
	require.NoError(t, s.SaveSnapshot(nestedSnapshot("a.py")))

	files, err := q.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, files)

	defs, err := q.DefinitionsOf("run")
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}
