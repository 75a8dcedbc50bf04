package infer

import (
	"context"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/types"
	"github.com/jward/arbor/internal/typing"
)

// literals maps literal and display kinds to the builtin class they make.
var literals = map[string]string{
	ast.KindInteger:                 "int",
	ast.KindFloat:                   "float",
	ast.KindConcatenatedString:      "str",
	ast.KindTrue:                    "bool",
	ast.KindFalse:                   "bool",
	ast.KindList:                    "list",
	ast.KindListComprehension:       "list",
	ast.KindDictionary:              "dict",
	ast.KindDictionaryComprehension: "dict",
	ast.KindSet:                     "set",
	ast.KindSetComprehension:        "set",
	ast.KindTuple:                   "tuple",
	ast.KindComparisonOperator:      "bool",
	ast.KindNotOperator:             "bool",
}

func (r Rules) expression(ctx context.Context, req *typing.Request, n *ast.Node) (types.Type, error) {
	if name, ok := literals[n.Kind]; ok {
		return types.Builtin(name), nil
	}
	switch n.Kind {
	case ast.KindString:
		return stringLiteral(n.Text), nil
	case ast.KindNone:
		return types.None{}, nil
	case ast.KindParenthesized:
		if len(n.Children) != 1 {
			return types.Unknown{}, nil
		}
		return req.TypeOf(ctx, n.Children[0])
	case ast.KindLambda:
		return types.Function{Module: req.File.ModuleName(), Name: "<lambda>", Returns: types.Unknown{}}, nil
	case ast.KindCall:
		fn, err := req.TypeOf(ctx, n.Child("function"))
		if err != nil {
			return nil, err
		}
		return call(fn), nil
	case ast.KindAttribute:
		return r.attribute(ctx, req, n)
	case ast.KindBinaryOperator:
		left, right, err := operands(ctx, req, n)
		if err != nil {
			return nil, err
		}
		return binary(n.Operator, left, right), nil
	case ast.KindUnaryOperator:
		t, err := req.TypeOf(ctx, n.Child("argument"))
		if err != nil {
			return nil, err
		}
		switch {
		case builtinNamed(t, "bool"):
			return types.Builtin("int"), nil
		case numeric(t):
			return t, nil
		}
		return types.Unknown{}, nil
	case ast.KindBooleanOperator:
		left, right, err := operands(ctx, req, n)
		if err != nil {
			return nil, err
		}
		return types.NewUnion(left, right), nil
	case ast.KindConditionalExpression:
		// Children are consequence, condition, alternative.
		if len(n.Children) != 3 {
			return types.Unknown{}, nil
		}
		then, err := req.TypeOf(ctx, n.Children[0])
		if err != nil {
			return nil, err
		}
		orElse, err := req.TypeOf(ctx, n.Children[2])
		if err != nil {
			return nil, err
		}
		return types.NewUnion(then, orElse), nil
	case ast.KindNamedExpression:
		return req.TypeOf(ctx, n.Child("value"))
	}
	return types.Unknown{}, nil
}

func stringLiteral(text string) types.Type {
	prefix := strings.ToLower(text[:strings.IndexAny(text+`"'`, `"'`)])
	if strings.Contains(prefix, "b") {
		return types.Builtin("bytes")
	}
	return types.Builtin("str")
}

func operands(ctx context.Context, req *typing.Request, n *ast.Node) (types.Type, types.Type, error) {
	left, err := req.TypeOf(ctx, n.Child("left"))
	if err != nil {
		return nil, nil, err
	}
	right, err := req.TypeOf(ctx, n.Child("right"))
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// call returns the result of calling a value of type fn.
func call(fn types.Type) types.Type {
	switch fn := fn.(type) {
	case types.Class:
		return types.Instance{Class: fn}
	case types.Function:
		if fn.Returns == nil {
			return types.Unknown{}
		}
		return fn.Returns
	case types.Union:
		results := make([]types.Type, len(fn.Members))
		for i, m := range fn.Members {
			results[i] = call(m)
		}
		return types.NewUnion(results...)
	}
	return types.Unknown{}
}

func (r Rules) attribute(ctx context.Context, req *typing.Request, n *ast.Node) (types.Type, error) {
	attr := n.Child("attribute")
	if attr == nil {
		return types.Unknown{}, nil
	}
	obj, err := req.TypeOf(ctx, n.Child("object"))
	if err != nil {
		return nil, err
	}
	return member(ctx, req, obj, attr.Text)
}

func member(ctx context.Context, req *typing.Request, obj types.Type, name string) (types.Type, error) {
	switch obj := obj.(type) {
	case types.Module:
		return req.Member(ctx, obj.Name, 0, name)
	case types.Class:
		return req.ClassMember(ctx, obj, name)
	case types.Instance:
		return req.ClassMember(ctx, obj.Class, name)
	case types.Union:
		members := make([]types.Type, 0, len(obj.Members))
		for _, m := range obj.Members {
			t, err := member(ctx, req, m, name)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		return types.NewUnion(members...), nil
	}
	return types.Unknown{}, nil
}

func builtinNamed(t types.Type, names ...string) bool {
	in, ok := t.(types.Instance)
	if !ok || in.Class.Module != "builtins" {
		return false
	}
	for _, n := range names {
		if in.Class.Name == n {
			return true
		}
	}
	return false
}

func numeric(t types.Type) bool {
	return builtinNamed(t, "int", "float", "bool")
}

// binary applies the operator table for op to builtin operands. bool
// operands behave as int.
func binary(op string, left, right types.Type) types.Type {
	switch {
	case numeric(left) && numeric(right):
		switch op {
		case "/":
			return types.Builtin("float")
		case "+", "-", "*", "//", "%", "**":
			if builtinNamed(left, "float") || builtinNamed(right, "float") {
				return types.Builtin("float")
			}
			return types.Builtin("int")
		case "&", "|", "^", "<<", ">>":
			if builtinNamed(left, "float") || builtinNamed(right, "float") {
				return types.Unknown{}
			}
			return types.Builtin("int")
		}
	case op == "+" && builtinNamed(left, "str", "bytes", "list", "tuple") && left.Equal(right):
		return left
	case op == "*" && builtinNamed(left, "str", "bytes", "list", "tuple") && builtinNamed(right, "int", "bool"):
		return left
	case op == "*" && builtinNamed(right, "str", "bytes", "list", "tuple") && builtinNamed(left, "int", "bool"):
		return right
	case op == "%" && builtinNamed(left, "str"):
		return left
	}
	return types.Unknown{}
}
