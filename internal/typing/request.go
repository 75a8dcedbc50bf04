package typing

import (
	"context"
	"errors"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/source"
	"github.com/jward/arbor/internal/types"
)

// Request is one question put to an Inferrer. For a binding, Node is its
// defining statement and Binding is set; for an expression, Node is the
// expression itself and Binding is nil.
//
// Everything an Inferrer needs beyond Node must be read through the
// methods below so the read is recorded as a dependency.
type Request struct {
	File    source.File
	Node    *ast.Node
	Binding *semantic.Binding
	// Scope is the scope holding the binding, or evaluating the expression.
	Scope semantic.ScopeRef

	jar *Jar
}

// TypeOf returns the type of n, a node of the request's file. A name with
// no binding evaluates to Unknown here; the use itself reports it.
func (r *Request) TypeOf(ctx context.Context, n *ast.Node) (types.Type, error) {
	if n == nil {
		return types.Unknown{}, nil
	}
	t, err := r.jar.TypeOf.Get(ctx, identity.NewRef(r.File, n))
	var unbound *UnboundNameError
	if errors.As(err, &unbound) {
		return types.Unknown{}, nil
	}
	return t, err
}

// Lookup returns the node of the request's file at key, or nil for the
// zero key.
func (r *Request) Lookup(ctx context.Context, key identity.NodeKey) (*ast.Node, error) {
	if key.IsZero() {
		return nil, nil
	}
	return r.jar.ids.Node.Get(ctx, identity.AstNodeRef{File: r.File, Key: key})
}

// Table returns the symbol table of ref.
func (r *Request) Table(ctx context.Context, ref semantic.ScopeRef) (*semantic.Scope, error) {
	return r.jar.sem.Table.Get(ctx, ref)
}

// Import returns the module object for an import of module at level, or
// Unknown when no workspace file or stub defines it.
func (r *Request) Import(ctx context.Context, module string, level int) (types.Type, error) {
	_, ok, err := r.jar.ResolveImport(ctx, r.File, module, level)
	if err != nil || !ok {
		return types.Unknown{}, err
	}
	return types.Module{Name: absolute(r.File, module, level)}, nil
}

// Member returns the type of name as seen from the module: its
// module-level bindings, or a submodule of that name. Unknown if neither
// exists.
func (r *Request) Member(ctx context.Context, module string, level int, name string) (types.Type, error) {
	abs := absolute(r.File, module, level)
	f, ok, err := r.jar.ResolveImport(ctx, r.File, module, level)
	if err != nil {
		return nil, err
	}
	if ok {
		t, found, err := r.jar.member(ctx, f, name)
		if err != nil || found {
			return t, err
		}
	}
	sub := name
	if abs != "" {
		sub = abs + "." + name
	}
	_, ok, err = r.jar.ResolveImport(ctx, r.File, sub, 0)
	if err != nil {
		return nil, err
	}
	if ok {
		return types.Module{Name: sub}, nil
	}
	return types.Unknown{}, nil
}

// ClassMember returns the type of name looked up on cls: its class body
// first, then its base classes. Unknown if neither defines it.
func (r *Request) ClassMember(ctx context.Context, cls types.Class, name string) (types.Type, error) {
	return r.jar.classMember(ctx, r.File, cls, name, 0)
}

// Prior returns the type the bound name had just before this binding. It
// is meaningful for augmented assignments, whose target is also read.
func (r *Request) Prior(ctx context.Context) (types.Type, error) {
	if r.Binding == nil {
		return types.Unknown{}, nil
	}
	ref := identity.AstNodeRef{File: r.File, Key: r.Binding.Node}
	sr, err := r.jar.sem.NodeScope.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	sc, err := r.jar.sem.Table.Get(ctx, sr)
	if err != nil {
		return nil, err
	}
	use, ok := sc.UseAt(ref.Key)
	if !ok {
		return types.Unknown{}, nil
	}
	t, err := r.jar.typeOfUse(ctx, ref, use)
	var unbound *UnboundNameError
	if errors.As(err, &unbound) {
		return types.Unknown{}, nil
	}
	return t, err
}
