package arbor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/types"
)

// startWatch runs Watch in the background and returns a channel of its
// rounds. The watch stops when the test ends.
func startWatch(t *testing.T, e *Engine, root string) <-chan *WatchResult {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rounds := make(chan *WatchResult, 8)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, root, 20*time.Millisecond, func(ctx context.Context, res *WatchResult) error {
			select {
			case rounds <- res:
			case <-ctx.Done():
			}
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		err := <-done
		assert.True(t, err == nil || errors.Is(err, context.Canceled), "watch: %v", err)
	})
	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)
	return rounds
}

// waitRound returns the first round satisfying ok. A single write can be
// seen as more than one round, so earlier ones are skipped.
func waitRound(t *testing.T, rounds <-chan *WatchResult, ok func(*WatchResult) bool) *WatchResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-rounds:
			if ok(res) {
				return res
			}
		case <-deadline:
			t.Fatal("no matching watch round within 5s")
			return nil
		}
	}
}

func TestWatch_EditRechecks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "lib.py", "def helper(): ...\n")
	writeFile(t, root, "main.py", "from lib import *\nhelper()\nother()\n")

	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.LoadDirectory(ctx, root))
	diags, err := e.Check(ctx)
	require.NoError(t, err)
	require.Len(t, diags, 1)

	rounds := startWatch(t, e, root)
	writeFile(t, root, "lib.py", "def helper(): ...\ndef other(): ...\n")

	res := waitRound(t, rounds, func(res *WatchResult) bool { return len(res.Diagnostics) == 0 })
	assert.Equal(t, []File{"lib.py"}, res.Changed)
}

func TestWatch_FailingFileKeepsOtherDiagnostics(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "bad.py", "x = 1\ny = x\n")
	writeFile(t, root, "main.py", "z = missing\n")

	e := newTestEngine(t, WithInferrer(inferrerFunc(func(_ context.Context, req *Request) (Type, error) {
		if req.File == "bad.py" {
			return nil, errors.New("inference failed")
		}
		return types.Unknown{}, nil
	})))
	ctx := context.Background()
	require.NoError(t, e.LoadDirectory(ctx, root))

	res, err := e.applyEdits(ctx, root, map[string]bool{"main.py": true})
	require.NoError(t, err)
	assert.Equal(t, []File{"main.py"}, res.Changed)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, File("main.py"), res.Diagnostics[0].File)
	assert.Equal(t, KindUnboundName, res.Diagnostics[0].Kind)
}

func TestWatch_RemovedFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "y = 2\n")

	e := newTestEngine(t)
	require.NoError(t, e.LoadDirectory(context.Background(), root))

	rounds := startWatch(t, e, root)
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))

	res := waitRound(t, rounds, func(res *WatchResult) bool { return len(res.Removed) > 0 })
	assert.Equal(t, []File{"b.py"}, res.Removed)
	assert.Equal(t, []File{"a.py"}, e.Files())
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithExclude("gen_*.py"))
	root := t.TempDir()

	for _, tt := range []struct {
		name string
		ok   bool
	}{
		{filepath.Join(root, "app", "main.py"), true},
		{filepath.Join(root, "notes.txt"), false},
		{filepath.Join(root, ".venv", "lib.py"), false},
		{filepath.Join(root, "__pycache__", "m.py"), false},
		{filepath.Join(root, "gen_api.py"), false},
		{filepath.Join(filepath.Dir(root), "outside.py"), false},
	} {
		_, ok := e.watchedFile(root, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	err := e.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), 0, func(context.Context, *WatchResult) error {
		return nil
	})
	require.Error(t, err)
}
