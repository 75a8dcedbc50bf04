// Package infer holds the default inference rules: literal types, the
// objects bound by def, class and import, declared annotations, and a small
// operator table. Anything the rules do not model is Unknown.
package infer

import (
	"context"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/types"
	"github.com/jward/arbor/internal/typing"
)

// Rules is the default typing.Inferrer.
type Rules struct{}

var _ typing.Inferrer = Rules{}

// Infer implements typing.Inferrer.
func (r Rules) Infer(ctx context.Context, req *typing.Request) (types.Type, error) {
	if req.Binding != nil {
		return r.binding(ctx, req, req.Binding)
	}
	return r.expression(ctx, req, req.Node)
}

func (r Rules) binding(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	switch b.Kind {
	case semantic.FunctionDef:
		ret, err := r.annotation(ctx, req, b)
		if err != nil {
			return nil, err
		}
		return types.Function{Module: req.File.ModuleName(), Name: string(b.Name), Returns: ret}, nil

	case semantic.ClassDef:
		return types.Class{Module: req.File.ModuleName(), Name: string(b.Name)}, nil

	case semantic.Import:
		return req.Import(ctx, b.Import.Object, 0)

	case semantic.ImportFrom:
		return req.Member(ctx, b.Import.Module, b.Import.Level, b.Import.Member)

	case semantic.AnnotatedAssignment, semantic.Annotation:
		return r.annotation(ctx, req, b)

	case semantic.Parameter:
		return r.parameter(ctx, req, b)

	case semantic.StarParameter:
		return types.Builtin("tuple"), nil

	case semantic.DoubleStarParameter:
		return types.Builtin("dict"), nil

	case semantic.AugmentedAssignment:
		prior, err := req.Prior(ctx)
		if err != nil {
			return nil, err
		}
		right, err := r.value(ctx, req, b)
		if err != nil {
			return nil, err
		}
		return binary(strings.TrimSuffix(req.Node.Operator, "="), prior, right), nil

	case semantic.ExceptHandler:
		v, err := req.Lookup(ctx, b.Value)
		if err != nil || v == nil {
			return types.Unknown{}, err
		}
		return r.evalAnnotation(ctx, req, v)

	case semantic.ForTarget, semantic.ComprehensionTarget:
		return r.iterationTarget(ctx, req, b)
	}
	// Assignment, walrus, and anything else with a known value.
	return r.value(ctx, req, b)
}

// value returns the type of the expression bound to b, or Unknown.
func (r Rules) value(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	v, err := req.Lookup(ctx, b.Value)
	if err != nil || v == nil {
		return types.Unknown{}, err
	}
	return req.TypeOf(ctx, v)
}

// annotation evaluates the declared type of b: the annotation of a
// variable or parameter, the return annotation of a function.
func (r Rules) annotation(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	n, err := req.Lookup(ctx, b.Annotation)
	if err != nil || n == nil {
		return types.Unknown{}, err
	}
	return r.evalAnnotation(ctx, req, n)
}

func (r Rules) parameter(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	if !b.Annotation.IsZero() {
		return r.annotation(ctx, req, b)
	}
	if !b.Value.IsZero() {
		return r.value(ctx, req, b)
	}
	return r.receiver(ctx, req, b)
}

// receiver types the first parameter of a method defined directly in a
// class body: an instance of the class, or the class itself for "cls".
func (r Rules) receiver(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	fn, err := req.Table(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	if fn.Kind != semantic.FunctionScope || fn.Parent.IsZero() {
		return types.Unknown{}, nil
	}
	cls, err := req.Table(ctx, fn.Parent)
	if err != nil {
		return nil, err
	}
	if cls.Kind != semantic.ClassScope || cls.Parent != semantic.ModuleRef(req.File) {
		return types.Unknown{}, nil
	}

	def, err := req.Lookup(ctx, req.Scope.Node)
	if err != nil {
		return nil, err
	}
	params := def.Child("parameters")
	if params == nil || len(params.Children) == 0 || identity.KeyOf(params.Children[0]).Start != b.Node.Start {
		return types.Unknown{}, nil
	}
	c := types.Class{Module: req.File.ModuleName(), Name: string(cls.Name)}
	if b.Name == "cls" {
		return c, nil
	}
	return types.Instance{Class: c}, nil
}

// iterationTarget types a plain loop variable from the iterable it walks.
func (r Rules) iterationTarget(ctx context.Context, req *typing.Request, b *semantic.Binding) (types.Type, error) {
	left := req.Node.Child("left")
	if left == nil || identity.KeyOf(left) != b.Node {
		return types.Unknown{}, nil
	}
	iter, err := req.TypeOf(ctx, req.Node.Child("right"))
	if err != nil {
		return nil, err
	}
	return element(iter), nil
}

// element is the type produced by iterating over t.
func element(t types.Type) types.Type {
	in, ok := t.(types.Instance)
	if !ok || in.Class.Module != "builtins" {
		return types.Unknown{}
	}
	switch in.Class.Name {
	case "range":
		return types.Builtin("int")
	case "str":
		return types.Builtin("str")
	case "bytes":
		return types.Builtin("int")
	}
	return types.Unknown{}
}

// instantiate turns class objects into instances, as an annotation or an
// except clause does.
func instantiate(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Class:
		return types.Instance{Class: t}
	case types.None:
		return t
	case types.Union:
		members := make([]types.Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = instantiate(m)
		}
		return types.NewUnion(members...)
	}
	return types.Unknown{}
}

// evalAnnotation reads a type expression.
func (r Rules) evalAnnotation(ctx context.Context, req *typing.Request, n *ast.Node) (types.Type, error) {
	switch n.Kind {
	case ast.KindType, ast.KindParenthesized:
		if len(n.Children) != 1 {
			return types.Unknown{}, nil
		}
		return r.evalAnnotation(ctx, req, n.Children[0])
	case ast.KindNone:
		return types.None{}, nil
	case ast.KindString:
		// Forward references are not followed.
		return types.Unknown{}, nil
	case ast.KindBinaryOperator:
		if n.Operator != "|" {
			return types.Unknown{}, nil
		}
		left, err := r.evalAnnotation(ctx, req, n.Child("left"))
		if err != nil {
			return nil, err
		}
		right, err := r.evalAnnotation(ctx, req, n.Child("right"))
		if err != nil {
			return nil, err
		}
		return types.NewUnion(left, right), nil
	case ast.KindSubscript:
		return r.appliedAnnotation(ctx, req, n.Child("value"), n.ChildrenByField("subscript"))
	case ast.KindGenericType:
		// "Optional[str]" in annotation position.
		var value *ast.Node
		if len(n.Children) > 0 {
			value = n.Children[0]
		}
		var args []*ast.Node
		if p := n.ChildOfKind(ast.KindTypeParameter); p != nil {
			args = p.Children
		}
		return r.appliedAnnotation(ctx, req, value, args)
	case ast.KindTuple, ast.KindUnionType:
		// As in "except (A, B) as e", or "int | None".
		members := make([]types.Type, 0, len(n.Children))
		for _, c := range n.Children {
			t, err := r.evalAnnotation(ctx, req, c)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		return types.NewUnion(members...), nil
	case ast.KindMemberType:
		return r.memberAnnotation(ctx, req, n)
	}
	t, err := req.TypeOf(ctx, n)
	if err != nil {
		return nil, err
	}
	return annotationOf(t), nil
}

func annotationOf(t types.Type) types.Type {
	if c, ok := t.(types.Class); ok && c.Module == "typing" {
		return typingAlias(c.Name, nil)
	}
	return instantiate(t)
}

// appliedAnnotation reads value[args].
func (r Rules) appliedAnnotation(ctx context.Context, req *typing.Request, value *ast.Node, args []*ast.Node) (types.Type, error) {
	if value == nil {
		return types.Unknown{}, nil
	}
	vt, err := req.TypeOf(ctx, value)
	if err != nil {
		return nil, err
	}
	c, ok := vt.(types.Class)
	if !ok {
		return types.Unknown{}, nil
	}
	if c.Module != "typing" {
		// list[int] is a list.
		return types.Instance{Class: c}, nil
	}
	targs := make([]types.Type, 0, len(args))
	for _, a := range args {
		t, err := r.evalAnnotation(ctx, req, a)
		if err != nil {
			return nil, err
		}
		targs = append(targs, t)
	}
	return typingAlias(c.Name, targs), nil
}

// memberAnnotation reads "mod.Name" in annotation position, where the
// grammar gives a member_type rather than an attribute.
func (r Rules) memberAnnotation(ctx context.Context, req *typing.Request, n *ast.Node) (types.Type, error) {
	if len(n.Children) != 2 {
		return types.Unknown{}, nil
	}
	base := n.Children[0]
	for base.Kind == ast.KindType && len(base.Children) == 1 {
		base = base.Children[0]
	}
	bt, err := req.TypeOf(ctx, base)
	if err != nil {
		return nil, err
	}
	mod, ok := bt.(types.Module)
	if !ok {
		return types.Unknown{}, nil
	}
	t, err := req.Member(ctx, mod.Name, 0, n.Children[1].Text)
	if err != nil {
		return nil, err
	}
	return annotationOf(t), nil
}

// typingAlias maps the special forms of the typing module.
func typingAlias(name string, args []types.Type) types.Type {
	switch name {
	case "Optional":
		if len(args) == 1 {
			return types.NewUnion(args[0], types.None{})
		}
	case "Union":
		return types.NewUnion(args...)
	case "List":
		return types.Builtin("list")
	case "Dict":
		return types.Builtin("dict")
	case "Tuple":
		return types.Builtin("tuple")
	}
	return types.Unknown{}
}
