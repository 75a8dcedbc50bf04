package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/source"
)

const file source.File = "pkg/mod.py"

// =============================================================================
// Helpers
// =============================================================================

func build(t *testing.T, text string) (*Index, *ast.Module) {
	t.Helper()
	m, err := ast.Parse(context.Background(), []byte(text))
	require.NoError(t, err)
	require.False(t, m.HasErrors, "fixture has syntax errors")
	return Build(file, m), m
}

func scopeNamed(t *testing.T, ix *Index, kind ScopeKind, name Name) *Scope {
	t.Helper()
	for _, s := range ix.Scopes {
		if s.Kind == kind && s.Name == name {
			return s
		}
	}
	t.Fatalf("no %s scope named %q", kind, name)
	return nil
}

func symbolNames(s *Scope) []Name {
	out := make([]Name, len(s.Symbols))
	for i, sym := range s.Symbols {
		out[i] = sym.Name
	}
	return out
}

func bindingNames(s *Scope) []Name {
	out := make([]Name, len(s.Bindings))
	for i, b := range s.Bindings {
		out[i] = b.Name
	}
	return out
}

func usesOf(s *Scope, name Name) []Use {
	var out []Use
	for _, u := range s.Uses {
		if u.Name == name {
			out = append(out, u)
		}
	}
	return out
}

// lines maps the bindings reaching a use to their 1-based source lines.
func lines(t *testing.T, ix *Index, m *ast.Module, u Use) []int {
	t.Helper()
	out := []int{}
	for _, ref := range u.Bindings {
		sc, ok := ix.Scope(ref.Scope)
		require.True(t, ok, "scope %s", ref.Scope)
		_, ok = sc.BindingAt(ref.Node)
		require.True(t, ok, "binding %s", ref)
		start, _, ok := identity.Span(ref.Node, m)
		require.True(t, ok, "span of %s", ref.Node)
		line, _ := m.Position(start)
		out = append(out, line)
	}
	return out
}

// =============================================================================
// Scope tree and tables
// =============================================================================

const layout = `import os
from typing import List as L

x = 1

def f(a, b=2, *args, c: int = 3, **kw):
    y = a + x
    return y

class C(Base):
    attr = 1
    def m(self):
        return attr

z = [i for i in range(3)]
`

func TestBuild_ScopeTreePreOrder(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, layout)

	var kinds []ScopeKind
	for _, s := range ix.Scopes {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []ScopeKind{ModuleScope, FunctionScope, ClassScope, FunctionScope, ComprehensionScope}, kinds)

	mod := ix.Module()
	assert.Equal(t, ModuleRef(file), mod.Ref)
	assert.True(t, mod.Parent.IsZero())
	assert.Len(t, mod.Children, 3)

	m := scopeNamed(t, ix, FunctionScope, "m")
	c := scopeNamed(t, ix, ClassScope, "C")
	assert.Equal(t, c.Ref, m.Parent)
	assert.Equal(t, []ScopeRef{m.Ref}, c.Children)
}

func TestBuild_SymbolsInSourceOrder(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, layout)

	assert.Equal(t, []Name{"os", "L", "x", "f", "int", "C", "Base", "z", "range"}, symbolNames(ix.Module()))
	assert.Equal(t, []Name{"os", "L", "x", "f", "C", "z"}, bindingNames(ix.Module()))

	f := scopeNamed(t, ix, FunctionScope, "f")
	assert.Equal(t, []Name{"a", "b", "args", "c", "kw", "y"}, bindingNames(f))

	var kinds []BindingKind
	for _, b := range f.Bindings {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []BindingKind{Parameter, Parameter, StarParameter, Parameter, DoubleStarParameter, Assignment}, kinds)

	c, ok := f.Symbol("c")
	require.True(t, ok)
	assert.True(t, c.Has(FlagBound))
	assert.False(t, c.Has(FlagUsed))
	cb := f.Bindings[c.Bindings[0]]
	assert.False(t, cb.Annotation.IsZero())
	assert.False(t, cb.Value.IsZero())
}

func TestBuild_UsesInSourceOrder(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, "obj = make()\nobj.attr = value\na = b = 1\n")
	mod := ix.Module()

	var names []Name
	for i, u := range mod.Uses {
		names = append(names, u.Name)
		if i > 0 {
			assert.Less(t, mod.Uses[i-1].Node.Start, u.Node.Start)
		}
	}
	assert.Equal(t, []Name{"make", "obj", "value"}, names)
	assert.Equal(t, []Name{"obj", "a", "b"}, bindingNames(mod))
	for i, b := range mod.Bindings {
		got, ok := mod.BindingAt(b.Node)
		require.True(t, ok)
		assert.Equal(t, b, got, "binding %d", i)
	}

	sym, ok := mod.Symbol("obj")
	require.True(t, ok)
	assert.True(t, sym.Has(FlagBound|FlagUsed))
	assert.Equal(t, []int{0}, sym.Bindings)
	assert.Equal(t, []int{1}, sym.Uses)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	a, _ := build(t, layout)
	b, _ := build(t, layout)
	assert.Equal(t, a, b)
}

func TestBuild_ChainedAndUnpackedValues(t *testing.T) {
	t.Parallel()
	ix, m := build(t, "a = b = 1\np, q = 1, \"s\"\nr, s = val\n")
	mod := ix.Module()

	kindOf := func(name Name) string {
		bs := mod.BindingsOf(name)
		require.Len(t, bs, 1)
		if bs[0].Value.IsZero() {
			return ""
		}
		return bs[0].Value.Kind
	}
	assert.Equal(t, ast.KindInteger, kindOf("a"))
	assert.Equal(t, ast.KindInteger, kindOf("b"))
	assert.Equal(t, ast.KindInteger, kindOf("p"))
	assert.Equal(t, ast.KindString, kindOf("q"))
	assert.Equal(t, "", kindOf("r"))

	def := mod.BindingsOf("p")[0].Definition
	n, err := identity.Resolve(identity.AstNodeRef{File: file, Key: def}, m)
	require.NoError(t, err)
	assert.Equal(t, ast.KindAssignment, n.Kind)
}

func TestBuild_BindingSources(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `p, q = q, p
for i in items:
    pass
with open(path) as fh:
    pass
total += 1
`)
	mod := ix.Module()

	text := func(name Name) string {
		bs := mod.BindingsOf(name)
		require.NotEmpty(t, bs)
		k := bs[0].Source
		if k.IsZero() {
			return ""
		}
		start, end, ok := identity.Span(k, m)
		require.True(t, ok)
		return string(m.Source[start:end])
	}
	assert.Equal(t, "q, p", text("p"), "the whole right-hand side, not the paired element")
	assert.Equal(t, "q, p", text("q"))
	assert.Equal(t, "items", text("i"))
	assert.Equal(t, "open(path)", text("fh"))
	assert.Equal(t, "1", text("total"))
}

func TestBuild_MemberTypeAnnotationLoadsOnlyTheBase(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, "import conf
x: conf.Settings = load()
")
	mod := ix.Module()

	assert.Len(t, usesOf(mod, "conf"), 1)
	assert.Empty(t, usesOf(mod, "Settings"))
}

// =============================================================================
// Binding forms
// =============================================================================

func TestBuild_Imports(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, `import os.path
import numpy as np
from . import sibling
from ..pkg.mod import thing as t
from os import *
`)
	mod := ix.Module()
	assert.Equal(t, []Name{"os", "np", "sibling", "t"}, bindingNames(mod))

	os := mod.BindingsOf("os")[0]
	assert.Equal(t, Import, os.Kind)
	require.NotNil(t, os.Import)
	assert.Equal(t, ImportEdge{Module: "os.path", Alias: "os", Object: "os"}, *os.Import)

	np := mod.BindingsOf("np")[0]
	assert.Equal(t, ImportEdge{Module: "numpy", Alias: "np", Object: "numpy"}, *np.Import)

	sib := mod.BindingsOf("sibling")[0]
	assert.Equal(t, ImportFrom, sib.Kind)
	assert.Equal(t, ImportEdge{Level: 1, Member: "sibling", Alias: "sibling"}, *sib.Import)

	tb := mod.BindingsOf("t")[0]
	assert.Equal(t, ImportEdge{Module: "pkg.mod", Level: 2, Member: "thing", Alias: "t"}, *tb.Import)

	assert.Len(t, ix.Imports(), 5)
	assert.Equal(t, []ImportEdge{{Module: "os", Member: "*"}}, mod.WildcardImports())
}

func TestBuild_HandlersWithAndLambda(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `try:
    pass
except ValueError as err:
    print(err)
with open("f") as fh:
    data = fh.read()
fn = lambda q: q + 1
`)
	mod := ix.Module()
	assert.Equal(t, []Name{"err", "fh", "data", "fn"}, bindingNames(mod))

	err := mod.BindingsOf("err")[0]
	assert.Equal(t, ExceptHandler, err.Kind)
	assert.True(t, err.Conditional)
	assert.Equal(t, ast.KindIdentifier, err.Value.Kind)

	fh := mod.BindingsOf("fh")[0]
	assert.Equal(t, WithTarget, fh.Kind)
	assert.False(t, fh.Conditional)

	uses := usesOf(mod, "err")
	require.Len(t, uses, 1)
	assert.Equal(t, []int{3}, lines(t, ix, m, uses[0]))

	lam := ix.Scopes[1]
	assert.Equal(t, LambdaScope, lam.Kind)
	assert.Equal(t, []Name{"q"}, bindingNames(lam))
	q := usesOf(lam, "q")
	require.Len(t, q, 1)
	assert.Len(t, q[0].Bindings, 1)
	assert.Equal(t, lam.Ref, q[0].Bindings[0].Scope)
}

func TestBuild_ComprehensionScope(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `data = [1, 2]
total = [(last := v) for v in data]
print(last)
`)
	mod := ix.Module()
	assert.Equal(t, []Name{"data", "total", "last"}, bindingNames(mod))
	assert.Equal(t, NamedExpression, mod.BindingsOf("last")[0].Kind)

	// The first iterable is evaluated outside the comprehension.
	data := usesOf(mod, "data")
	require.Len(t, data, 1)
	assert.Equal(t, []int{1}, lines(t, ix, m, data[0]))

	last := usesOf(mod, "last")
	require.Len(t, last, 1)
	assert.Equal(t, []int{2}, lines(t, ix, m, last[0]))

	comp := ix.Scopes[1]
	assert.Equal(t, ComprehensionScope, comp.Kind)
	assert.Equal(t, []Name{"v"}, bindingNames(comp))
	assert.Equal(t, ComprehensionTarget, comp.Bindings[0].Kind)
	v := usesOf(comp, "v")
	require.Len(t, v, 1)
	assert.Equal(t, comp.Ref, v[0].Bindings[0].Scope)
}

// =============================================================================
// Reaching bindings
// =============================================================================

const flow = `def g(flag):
    v = 1
    v = 2
    use1 = v
    if flag:
        v = 3
    use2 = v
    for i in range(3):
        use3 = w
        w = i
    return v
`

func TestBuild_SequentialAndConditional(t *testing.T) {
	t.Parallel()
	ix, m := build(t, flow)
	g := scopeNamed(t, ix, FunctionScope, "g")

	v := usesOf(g, "v")
	require.Len(t, v, 3)
	assert.Equal(t, []int{3}, lines(t, ix, m, v[0]))
	assert.Equal(t, []int{3, 6}, lines(t, ix, m, v[1]))
	assert.Equal(t, []int{3, 6}, lines(t, ix, m, v[2]))

	bs := g.BindingsOf("v")
	require.Len(t, bs, 3)
	assert.False(t, bs[1].Conditional)
	assert.True(t, bs[2].Conditional)
}

func TestBuild_LoopSeesLaterBindings(t *testing.T) {
	t.Parallel()
	ix, m := build(t, flow)
	g := scopeNamed(t, ix, FunctionScope, "g")

	w := usesOf(g, "w")
	require.Len(t, w, 1)
	assert.Equal(t, []int{10}, lines(t, ix, m, w[0]))

	i := usesOf(g, "i")
	require.Len(t, i, 1)
	assert.Equal(t, []int{8}, lines(t, ix, m, i[0]))
	assert.Equal(t, ForTarget, g.BindingsOf("i")[0].Kind)
}

func TestBuild_UseBeforeBindingOverApproximates(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `print(later)
later = 1
def h():
    print(local)
    local = 2
    local = 3
`)
	later := usesOf(ix.Module(), "later")
	require.Len(t, later, 1)
	assert.Equal(t, []int{2}, lines(t, ix, m, later[0]))

	h := scopeNamed(t, ix, FunctionScope, "h")
	local := usesOf(h, "local")
	require.Len(t, local, 1)
	assert.Equal(t, []int{5, 6}, lines(t, ix, m, local[0]))
}

func TestBuild_ClassScopeNotVisibleFromMethods(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `x = 1
class K:
    y = x
    x = 2
    def m(self):
        return x
`)
	k := scopeNamed(t, ix, ClassScope, "K")
	inClass := usesOf(k, "x")
	require.Len(t, inClass, 1)
	assert.Equal(t, []int{1}, lines(t, ix, m, inClass[0]))

	meth := scopeNamed(t, ix, FunctionScope, "m")
	inMethod := usesOf(meth, "x")
	require.Len(t, inMethod, 1)
	assert.Equal(t, []int{1}, lines(t, ix, m, inMethod[0]))
}

func TestBuild_UnboundUseHasNoBindings(t *testing.T) {
	t.Parallel()
	ix, _ := build(t, layout)
	meth := scopeNamed(t, ix, FunctionScope, "m")
	attr := usesOf(meth, "attr")
	require.Len(t, attr, 1)
	assert.Empty(t, attr[0].Bindings)
}

func TestBuild_GlobalAndNonlocal(t *testing.T) {
	t.Parallel()
	ix, m := build(t, `counter = 0

def inc():
    global counter
    counter = counter + 1

def outer():
    n = 0
    def inner():
        nonlocal n
        n += 1
    return inner
`)
	mod := ix.Module()
	require.Len(t, mod.BindingsOf("counter"), 2)

	inc := scopeNamed(t, ix, FunctionScope, "inc")
	assert.Empty(t, inc.Bindings)
	sym, ok := inc.Symbol("counter")
	require.True(t, ok)
	assert.True(t, sym.Has(FlagGlobal))
	assert.Equal(t, mod.Ref, sym.Target)
	use := usesOf(inc, "counter")
	require.Len(t, use, 1)
	assert.Equal(t, []int{1, 5}, lines(t, ix, m, use[0]))

	outer := scopeNamed(t, ix, FunctionScope, "outer")
	assert.Equal(t, []Name{"n", "inner", "n"}, bindingNames(outer))
	assert.Equal(t, AugmentedAssignment, outer.BindingsOf("n")[1].Kind)

	inner := scopeNamed(t, ix, FunctionScope, "inner")
	n := usesOf(inner, "n")
	require.Len(t, n, 1)
	assert.Equal(t, []int{8, 11}, lines(t, ix, m, n[0]))
	nsym, _ := inner.Symbol("n")
	assert.True(t, nsym.Has(FlagNonlocal))
	assert.Equal(t, outer.Ref, nsym.Target)

	ret := usesOf(outer, "inner")
	require.Len(t, ret, 1)
	assert.Equal(t, []int{9}, lines(t, ix, m, ret[0]))
}

func TestBuild_ScopeOfNodes(t *testing.T) {
	t.Parallel()
	ix, m := build(t, layout)
	f := scopeNamed(t, ix, FunctionScope, "f")

	fn := m.Root.ChildOfKind(ast.KindFunctionDef)
	require.NotNil(t, fn)
	sr, ok := ix.ScopeOf(identity.KeyOf(fn))
	require.True(t, ok)
	assert.Equal(t, ix.Module().Ref, sr, "a def is evaluated in its parent scope")

	ret := fn.Child("body").ChildOfKind("return_statement")
	require.NotNil(t, ret)
	sr, ok = ix.ScopeOf(identity.KeyOf(ret))
	require.True(t, ok)
	assert.Equal(t, f.Ref, sr)
}
