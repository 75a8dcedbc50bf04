package semantic

import (
	"context"

	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/source"
)

// JarName is the name of the semantic jar in the database.
const JarName = "semantic"

// Jar mounts the semantic index and the narrower views derived from it.
// The views return values that stay equal across edits that do not touch
// them, which is what lets type queries skip re-running.
type Jar struct {
	// Index builds the whole index of a file.
	Index *query.Query[source.File, *Index]
	// NodeScope returns the scope a node is evaluated in.
	NodeScope *query.Query[identity.AstNodeRef, ScopeRef]
	// Table returns one scope's symbol table.
	Table *query.Query[ScopeRef, *Scope]
	// Binding returns one binding.
	Binding *query.Query[BindingRef, Binding]

	src *source.Jar
}

// NewJar mounts the semantic jar in db.
func NewJar(db *query.Database, src *source.Jar) *Jar {
	jar := db.Jar(JarName)
	j := &Jar{src: src}
	j.Index = query.New(jar, "semantic_index", j.index)
	j.NodeScope = query.New(jar, "node_scope", j.nodeScope)
	j.Table = query.New(jar, "scope_table", j.table)
	j.Binding = query.New(jar, "binding", j.binding)
	return j
}

func (j *Jar) index(ctx context.Context, f source.File) (*Index, error) {
	m, err := j.src.Parsed.Get(ctx, f)
	if err != nil {
		return nil, err
	}
	return Build(f, m), nil
}

func (j *Jar) nodeScope(ctx context.Context, ref identity.AstNodeRef) (ScopeRef, error) {
	ix, err := j.Index.Get(ctx, ref.File)
	if err != nil {
		return ScopeRef{}, err
	}
	if sr, ok := ix.ScopeOf(ref.Key); ok {
		return sr, nil
	}

	// Not visited by the builder: use the nearest visited ancestor.
	m, err := j.src.Parsed.Get(ctx, ref.File)
	if err != nil {
		return ScopeRef{}, err
	}
	n, err := identity.Resolve(ref, m)
	if err != nil {
		return ScopeRef{}, err
	}
	path := m.Path(n)
	for i := len(path) - 2; i >= 0; i-- {
		key := identity.KeyOf(path[i])
		// A scope node is recorded in its parent scope, but whatever hangs
		// below it belongs to the scope it introduces.
		if inner, ok := ix.Scope(ScopeRef{File: ref.File, Node: key}); ok {
			return inner.Ref, nil
		}
		if sr, ok := ix.ScopeOf(key); ok {
			return sr, nil
		}
	}
	return ModuleRef(ref.File), nil
}

func (j *Jar) table(ctx context.Context, ref ScopeRef) (*Scope, error) {
	ix, err := j.Index.Get(ctx, ref.File)
	if err != nil {
		return nil, err
	}
	sc, ok := ix.Scope(ref)
	if !ok {
		return nil, &identity.StaleReferenceError{Ref: ref.AstNodeRef()}
	}
	return sc, nil
}

func (j *Jar) binding(ctx context.Context, ref BindingRef) (Binding, error) {
	sc, err := j.Table.Get(ctx, ref.Scope)
	if err != nil {
		return Binding{}, err
	}
	b, ok := sc.BindingAt(ref.Node)
	if !ok {
		return Binding{}, &identity.StaleReferenceError{Ref: identity.AstNodeRef{File: ref.Scope.File, Key: ref.Node}}
	}
	return b, nil
}
