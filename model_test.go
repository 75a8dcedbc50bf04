package arbor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/types"
)

const modelSource = `class User:
    def name(self) -> str: ...

u = User()
n = u.name()
`

func TestSemanticModel_TypeAtPosition(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.SetSource("app/models.py", []byte(modelSource))
	m := e.Model("app/models.py")
	ctx := context.Background()

	user := types.Class{Module: "app.models", Name: "User"}
	tests := []struct {
		line, col int
		want      types.Type
	}{
		{4, 1, types.Instance{Class: user}},
		{4, 5, user},
		{5, 1, types.Builtin("str")},
	}
	for _, tt := range tests {
		got, err := m.TypeAtPosition(ctx, tt.line, tt.col)
		require.NoError(t, err, "%d:%d", tt.line, tt.col)
		assert.True(t, tt.want.Equal(got), "%d:%d: want %s, got %s", tt.line, tt.col, tt.want, got)
	}

	_, err := m.TypeAtPosition(ctx, 40, 1)
	assert.Error(t, err)
}

func TestSemanticModel_HasType(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.SetSource("main.py", []byte("x = 1.5\n"))
	m := e.Model("main.py")
	ctx := context.Background()

	x, err := m.ExprAt(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", x.Node.Text)

	var h HasType = x
	got, err := m.TypeOf(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, types.Builtin("float"), got)

	_, err = e.Model("other.py").TypeOf(ctx, x)
	assert.Error(t, err, "handles belong to one file")
}

func TestSemanticModel_HandleSurvivesUnrelatedEdit(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()
	e.SetSource("main.py", []byte("x = 1\ny = 2\n"))
	m := e.Model("main.py")

	x, err := m.ExprAt(ctx, 0)
	require.NoError(t, err)

	// The edit leaves x's span alone.
	e.SetSource("main.py", []byte("x = 1\ny = 'two'\n"))
	got, err := m.TypeOf(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, types.Builtin("int"), got)

	// This one moves it.
	e.SetSource("main.py", []byte("\nx = 1\n"))
	_, err = m.TypeOf(ctx, x)
	var stale *StaleReferenceError
	assert.ErrorAs(t, err, &stale)
}

func TestSemanticModel_UnboundName(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.SetSource("main.py", []byte("v = ghost\n"))

	_, err := e.Model("main.py").TypeAt(context.Background(), 4)
	var unbound *UnboundNameError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "ghost", string(unbound.Name))
}

func TestSemanticModel_Index(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.SetSource("main.py", []byte(modelSource))

	ix, err := e.Model("main.py").Index(context.Background())
	require.NoError(t, err)
	require.Len(t, ix.Scopes, 3)
	assert.Equal(t, "module", ix.Module().Kind.String())
	assert.Len(t, ix.Module().Bindings, 3)
}
