// Package typing mounts the type queries. type_of answers for any node;
// infer_binding answers for one binding. Both delegate the actual rules to
// a pluggable Inferrer and combine candidate bindings with a join policy.
package typing

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/source"
	"github.com/jward/arbor/internal/stubs"
	"github.com/jward/arbor/internal/types"
)

// JarName is the name of the type jar in the database.
const JarName = "types"

// Inferrer computes the type of a binding or expression. Implementations
// must be deterministic in what they read through the Request; anything
// else they consult is invisible to invalidation.
type Inferrer interface {
	Infer(ctx context.Context, req *Request) (types.Type, error)
}

// InferrerFunc adapts a function to Inferrer.
type InferrerFunc func(ctx context.Context, req *Request) (types.Type, error)

func (f InferrerFunc) Infer(ctx context.Context, req *Request) (types.Type, error) {
	return f(ctx, req)
}

// Option configures a Jar.
type Option func(*Jar)

// WithJoin sets the policy combining the types of several reaching
// bindings. The default is types.UnionJoin.
func WithJoin(join types.JoinFunc) Option {
	return func(j *Jar) {
		if join != nil {
			j.join = join
		}
	}
}

// Jar mounts the type queries.
type Jar struct {
	TypeOf       *query.Query[identity.AstNodeRef, types.Type]
	InferBinding *query.Query[semantic.BindingRef, types.Type]

	src      *source.Jar
	ids      *identity.Jar
	sem      *semantic.Jar
	join     types.JoinFunc

	mu       sync.RWMutex
	inferrer Inferrer
	builtins source.File
}

// NewJar mounts the type jar in db on top of the lower jars.
func NewJar(db *query.Database, src *source.Jar, ids *identity.Jar, sem *semantic.Jar, inferrer Inferrer, opts ...Option) *Jar {
	jar := db.Jar(JarName)
	j := &Jar{
		src:      src,
		ids:      ids,
		sem:      sem,
		inferrer: inferrer,
		join:     types.UnionJoin,
		builtins: source.VendoredFile(stubs.BuiltinsPath),
	}
	for _, opt := range opts {
		opt(j)
	}
	eq := query.WithEqual(types.Equal)
	j.TypeOf = query.New(jar, "type_of", j.typeOf, eq)
	j.InferBinding = query.New(jar, "infer_binding", j.inferBinding, eq)
	return j
}

func (j *Jar) typeOf(ctx context.Context, ref identity.AstNodeRef) (types.Type, error) {
	n, err := j.ids.Node.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	sr, err := j.sem.NodeScope.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	sc, err := j.sem.Table.Get(ctx, sr)
	if err != nil {
		return nil, err
	}

	if b, ok := sc.BindingAt(ref.Key); ok {
		return j.InferBinding.Get(ctx, sc.RefOf(b))
	}
	if use, ok := sc.UseAt(ref.Key); ok {
		return j.typeOfUse(ctx, ref, use)
	}
	if n.Kind == ast.KindIdentifier {
		// The name of a global or nonlocal store is bound in another scope.
		if sym, ok := sc.Symbol(semantic.Name(n.Text)); ok && !sym.Target.IsZero() {
			target, err := j.sem.Table.Get(ctx, sym.Target)
			if err != nil {
				return nil, err
			}
			if b, ok := target.BindingAt(ref.Key); ok {
				return j.InferBinding.Get(ctx, target.RefOf(b))
			}
		}
	}
	return j.infer(ctx, &Request{File: ref.File, Node: n, Scope: sr, jar: j})
}

func (j *Jar) inferBinding(ctx context.Context, ref semantic.BindingRef) (types.Type, error) {
	b, err := j.sem.Binding.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	def, err := j.ids.Node.Get(ctx, identity.AstNodeRef{File: ref.Scope.File, Key: b.Definition})
	if err != nil {
		return nil, err
	}
	return j.infer(ctx, &Request{File: ref.Scope.File, Node: def, Binding: &b, Scope: ref.Scope, jar: j})
}

// SetInferrer replaces the inference rules and discards every memoized
// type. Lower jars keep their memos.
func (j *Jar) SetInferrer(inferrer Inferrer) query.Revision {
	j.mu.Lock()
	j.inferrer = inferrer
	j.mu.Unlock()
	return j.TypeOf.Jar().Reset()
}

func (j *Jar) infer(ctx context.Context, req *Request) (types.Type, error) {
	j.mu.RLock()
	inferrer := j.inferrer
	j.mu.RUnlock()
	t, err := inferrer.Infer(ctx, req)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return types.Unknown{}, nil
	}
	return t, nil
}

// typeOfUse joins the types of the bindings reaching use. A binding whose
// own value contains the use, as in "x = x + 1" inside a loop, is skipped:
// its value cannot be the one read. With nothing left the name is unbound.
func (j *Jar) typeOfUse(ctx context.Context, ref identity.AstNodeRef, use semantic.Use) (types.Type, error) {
	cands := make([]types.Type, 0, len(use.Bindings))
	for _, br := range use.Bindings {
		b, err := j.sem.Binding.Get(ctx, br)
		if err != nil {
			return nil, err
		}
		if selfReference(ref, br, b) {
			continue
		}
		t, err := j.InferBinding.Get(ctx, br)
		if err != nil {
			return nil, err
		}
		cands = append(cands, t)
	}
	if len(cands) == 0 {
		return j.unbound(ctx, ref, use.Name)
	}
	return j.join(cands), nil
}

// selfReference reports whether use lies in what b evaluates: its source
// expression, its annotation, or, for "x += 1", the load of x itself.
func selfReference(use identity.AstNodeRef, br semantic.BindingRef, b semantic.Binding) bool {
	if br.Scope.File != use.File {
		return false
	}
	if use.Key == b.Node {
		return true
	}
	for _, k := range []identity.NodeKey{b.Source, b.Annotation} {
		if !k.IsZero() && k.Contains(use.Key) {
			return true
		}
	}
	return false
}

// unbound looks a name up in the builtins and behind the module's wildcard
// imports, in that order.
func (j *Jar) unbound(ctx context.Context, ref identity.AstNodeRef, name semantic.Name) (types.Type, error) {
	if ref.File != j.builtins {
		t, ok, err := j.member(ctx, j.builtins, string(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}

	mod, err := j.sem.Table.Get(ctx, semantic.ModuleRef(ref.File))
	if err != nil {
		return nil, err
	}
	for _, e := range mod.WildcardImports() {
		f, ok, err := j.ResolveImport(ctx, ref.File, e.Module, e.Level)
		if err != nil {
			return nil, err
		}
		if !ok || f == ref.File {
			continue
		}
		t, ok, err := j.member(ctx, f, string(name))
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
	return nil, &UnboundNameError{Name: name, Ref: ref}
}

// member joins the types of the module-level bindings of name in f.
func (j *Jar) member(ctx context.Context, f source.File, name string) (types.Type, bool, error) {
	sc, err := j.sem.Table.Get(ctx, semantic.ModuleRef(f))
	if err != nil {
		return nil, false, err
	}
	return j.scopeMember(ctx, sc, name)
}

func (j *Jar) scopeMember(ctx context.Context, sc *semantic.Scope, name string) (types.Type, bool, error) {
	bs := sc.BindingsOf(semantic.Name(name))
	if len(bs) == 0 {
		return nil, false, nil
	}
	cands := make([]types.Type, 0, len(bs))
	for _, b := range bs {
		t, err := j.InferBinding.Get(ctx, sc.RefOf(b))
		if err != nil {
			return nil, false, err
		}
		cands = append(cands, t)
	}
	return j.join(cands), true, nil
}

// maxBaseDepth bounds the walk up a class hierarchy.
const maxBaseDepth = 16

// classMember looks name up in the body of cls, then in its bases in
// order. Only classes bound at module level are found.
func (j *Jar) classMember(ctx context.Context, from source.File, cls types.Class, name string, depth int) (types.Type, error) {
	if depth > maxBaseDepth {
		return types.Unknown{}, nil
	}
	f, ok := from, cls.Module == from.ModuleName()
	if !ok {
		var err error
		f, ok, err = j.ResolveImport(ctx, from, cls.Module, 0)
		if err != nil || !ok {
			return types.Unknown{}, err
		}
	}
	mod, err := j.sem.Table.Get(ctx, semantic.ModuleRef(f))
	if err != nil {
		return nil, err
	}
	for _, b := range mod.BindingsOf(semantic.Name(cls.Name)) {
		if b.Kind != semantic.ClassDef {
			continue
		}
		body, err := j.sem.Table.Get(ctx, semantic.ScopeRef{File: f, Node: b.Definition})
		if err != nil {
			return nil, err
		}
		t, found, err := j.scopeMember(ctx, body, name)
		if err != nil || found {
			return t, err
		}

		def, err := j.ids.Node.Get(ctx, identity.AstNodeRef{File: f, Key: b.Definition})
		if err != nil {
			return nil, err
		}
		supers := def.Child("superclasses")
		if supers == nil {
			continue
		}
		for _, base := range supers.Children {
			if base.Kind == ast.KindKeywordArg {
				continue
			}
			bt, err := j.TypeOf.Get(ctx, identity.NewRef(f, base))
			var unbound *UnboundNameError
			if errors.As(err, &unbound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			bc, ok := bt.(types.Class)
			if !ok {
				continue
			}
			t, err := j.classMember(ctx, f, bc, name, depth+1)
			if err != nil || !types.IsUnknown(t) {
				return t, err
			}
		}
	}
	return types.Unknown{}, nil
}

// ResolveImport maps an imported module, relative to from when level is
// positive, to the file defining it: a workspace module first, then a stub.
func (j *Jar) ResolveImport(ctx context.Context, from source.File, module string, level int) (source.File, bool, error) {
	name := absolute(from, module, level)
	if name == "" {
		return "", false, nil
	}
	f, err := j.src.Modules.Get(ctx, name)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, query.ErrNoInput) {
		return "", false, err
	}
	s, ok, err := j.src.Resolver().Resolve(name)
	if errors.Is(err, stubs.ErrInvalidModule) {
		return "", false, nil
	}
	if err != nil || !ok {
		return "", false, err
	}
	return source.VendoredFile(s.Path), true, nil
}

func absolute(from source.File, module string, level int) string {
	if level == 0 {
		return module
	}
	pkg := from.Package(level)
	switch {
	case pkg == "":
		return module
	case module == "":
		return pkg
	}
	return pkg + "." + module
}
