package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI in process and returns its output streams.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// createFixture writes files under a fresh workspace root marked by an
// empty arbor.yaml.
func createFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "arbor.yaml"), nil, 0o644))
	for rel, src := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	}
	return root
}

var fixtureFiles = map[string]string{
	"lib.py":  "def helper() -> int: ...\n",
	"main.py": "from lib import helper\nnope()\nn = helper()\n",
}

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_ConfigFile(t *testing.T) {
	t.Parallel()
	root := createFixture(t, nil)
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestParsePosition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		arg     string
		want    CLILocation
		wantErr bool
	}{
		{"main.py:3:7", CLILocation{File: "main.py", Line: 3, Col: 7}, false},
		{`C:\src\main.py:1:1`, CLILocation{File: `C:\src\main.py`, Line: 1, Col: 1}, false},
		{"main.py:3", CLILocation{}, true},
		{"main.py:x:1", CLILocation{}, true},
		{"main.py:0:1", CLILocation{}, true},
		{":1:1", CLILocation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parsePosition(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

// --- check tests ---

func TestCheck_Text(t *testing.T) {
	t.Parallel()
	root := createFixture(t, fixtureFiles)

	stdout, _, err := run(t, "check", root)
	require.ErrorIs(t, err, errReported, "diagnostics make the command fail")
	assert.Equal(t, "main.py:2:1: name \"nope\" is not defined [unbound-name]\n1 problem\n", stdout)
}

func TestCheck_JSON(t *testing.T) {
	t.Parallel()
	root := createFixture(t, fixtureFiles)

	stdout, _, err := run(t, "check", root, "--format", "json")
	require.ErrorIs(t, err, errReported)

	var result struct {
		Command string          `json:"command"`
		Results []CLIDiagnostic `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "check", result.Command)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "nope", result.Results[0].Name)
	assert.Equal(t, "unbound-name", result.Results[0].Kind)
}

func TestCheck_Clean(t *testing.T) {
	t.Parallel()
	root := createFixture(t, map[string]string{"main.py": "x = 1\nprint(x)\n"})

	stdout, _, err := run(t, "check", root)
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestCheck_InvalidFormat(t *testing.T) {
	t.Parallel()
	_, _, err := run(t, "check", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// --- type tests ---

func TestType(t *testing.T) {
	t.Parallel()
	root := createFixture(t, fixtureFiles)

	stdout, _, err := run(t, "type", filepath.Join(root, "main.py")+":3:1")
	require.NoError(t, err)
	assert.Equal(t, "int\n", stdout)
}

func TestType_UnboundName(t *testing.T) {
	t.Parallel()
	root := createFixture(t, fixtureFiles)

	_, stderr, err := run(t, "type", filepath.Join(root, "main.py")+":2:1")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "nope")
}

// --- index and query tests ---

// These change the working directory, so they do not run in parallel.

func TestIndexThenQuery(t *testing.T) {
	root := createFixture(t, fixtureFiles)
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	_, stderr, err := run(t, "index", root, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "written: 2")

	t.Chdir(root)

	stdout, _, err := run(t, "query", "definitions", "helper", "--db", dbPath, "--format", "json")
	require.NoError(t, err)
	var defs struct {
		Results []CLIDefinition `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &defs))
	require.Len(t, defs.Results, 2)
	assert.Equal(t, CLILocation{File: "lib.py", Line: 1, Col: 5}, defs.Results[0].CLILocation)
	assert.Equal(t, "function", defs.Results[0].Kind)
	assert.Equal(t, "import-from", defs.Results[1].Kind)

	stdout, _, err = run(t, "query", "diagnostics", "main.py", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "main.py:2:1: name \"nope\" is not defined [unbound-name]\n1 problem\n", stdout)

	stdout, _, err = run(t, "query", "files", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "lib.py\nmain.py\n", stdout)

	stdout, _, err = run(t, "query", "scope", "main.py:3:1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "module")

	// A second run finds nothing to rewrite.
	_, stderr, err = run(t, "index", root, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "unchanged: 2")
}

func TestQuery_MissingDatabase(t *testing.T) {
	root := createFixture(t, nil)
	t.Chdir(root)

	_, stderr, err := run(t, "query", "files")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "run 'arbor index' first")
}

func TestWatch_MissingRoot(t *testing.T) {
	t.Parallel()
	_, _, err := run(t, "watch", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory not found")
}
