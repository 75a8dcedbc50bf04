package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/types"
	"github.com/jward/arbor/internal/typing"
)

// ScriptInferrer is a typing.Inferrer driven by a Risor script. The script
// runs once per request; its last expression is a type descriptor, and nil
// or "" defers to the fallback inferrer.
//
// Globals available to the script:
//
//	file                 module name of the file being typed
//	node_kind            kind of the node (the defining statement for a binding)
//	node_text            source text of a leaf node, else nil
//	binding_kind         kind of the binding, nil for an expression
//	binding_name         bound name, nil for an expression
//	value_kind           kind of the bound value expression, or nil
//	value_text           text of a leaf value expression, or nil
//	child_kind(field)    kind of the node's child under field, or nil
//	type_of(field)       descriptor of the child under field
//	type_of_value()      descriptor of the bound value
//	fallback()           descriptor the fallback inferrer gives
type ScriptInferrer struct {
	rt       *Runtime
	label    string
	source   string
	fallback typing.Inferrer
}

var _ typing.Inferrer = (*ScriptInferrer)(nil)

// NewScriptInferrer loads the script at path through rt. fallback answers
// when the script declines; it must not be nil.
func NewScriptInferrer(rt *Runtime, path string, fallback typing.Inferrer) (*ScriptInferrer, error) {
	src, err := rt.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return NewScriptInferrerFromSource(rt, path, src, fallback), nil
}

// NewScriptInferrerFromSource is NewScriptInferrer for an in-memory script.
func NewScriptInferrerFromSource(rt *Runtime, label, source string, fallback typing.Inferrer) *ScriptInferrer {
	return &ScriptInferrer{rt: rt, label: label, source: source, fallback: fallback}
}

// Infer implements typing.Inferrer.
func (s *ScriptInferrer) Infer(ctx context.Context, req *typing.Request) (types.Type, error) {
	h := &host{ctx: ctx, req: req, fallback: s.fallback}
	globals, err := h.globals()
	if err != nil {
		return nil, err
	}
	res, err := s.rt.eval(ctx, s.source, s.label, globals)
	// A failed query read is reported as itself, not as a script error, so
	// cycles and stale references keep their identity.
	if h.err != nil {
		return nil, h.err
	}
	if err != nil {
		return nil, err
	}

	switch res := res.(type) {
	case nil, *object.NilType:
		return s.fallback.Infer(ctx, req)
	case *object.String:
		if res.Value() == "" {
			return s.fallback.Infer(ctx, req)
		}
		return ParseDescriptor(res.Value())
	}
	return nil, fmt.Errorf("runtime: script %s: result must be a descriptor string, got %s", s.label, res.Type())
}

// host binds one request to the script's globals.
type host struct {
	ctx      context.Context
	req      *typing.Request
	fallback typing.Inferrer
	err      error
}

func (h *host) globals() (map[string]any, error) {
	n := h.req.Node
	g := map[string]any{
		"file":          object.NewString(h.req.File.ModuleName()),
		"node_kind":     object.NewString(n.Kind),
		"node_text":     stringOrNil(n.Text),
		"binding_kind":  object.Nil,
		"binding_name":  object.Nil,
		"value_kind":    object.Nil,
		"value_text":    object.Nil,
		"child_kind":    h.childKindFn(),
		"type_of":       h.typeOfFn(),
		"type_of_value": h.typeOfValueFn(),
		"fallback":      h.fallbackFn(),
	}
	if b := h.req.Binding; b != nil {
		g["binding_kind"] = object.NewString(b.Kind.String())
		g["binding_name"] = object.NewString(string(b.Name))
		v, err := h.req.Lookup(h.ctx, b.Value)
		if err != nil {
			return nil, err
		}
		if v != nil {
			g["value_kind"] = object.NewString(v.Kind)
			g["value_text"] = stringOrNil(v.Text)
		}
	}
	return g, nil
}

// fail records the first query error and aborts the script.
func (h *host) fail(err error) object.Object {
	if h.err == nil {
		h.err = err
	}
	return object.NewError(err)
}

func (h *host) describe(n *ast.Node) object.Object {
	t, err := h.req.TypeOf(h.ctx, n)
	if err != nil {
		return h.fail(err)
	}
	return object.NewString(FormatDescriptor(t))
}

func fieldArg(name string, args []object.Object) (string, object.Object) {
	if len(args) != 1 {
		return "", object.NewArgsError(name, 1, len(args))
	}
	s, ok := args[0].(*object.String)
	if !ok {
		return "", object.Errorf("%s: field must be a string, got %s", name, args[0].Type())
	}
	return s.Value(), nil
}

func (h *host) childKindFn() *object.Builtin {
	return object.NewBuiltin("child_kind", func(ctx context.Context, args ...object.Object) object.Object {
		field, errObj := fieldArg("child_kind", args)
		if errObj != nil {
			return errObj
		}
		c := h.req.Node.Child(field)
		if c == nil {
			return object.Nil
		}
		return object.NewString(c.Kind)
	})
}

func (h *host) typeOfFn() *object.Builtin {
	return object.NewBuiltin("type_of", func(ctx context.Context, args ...object.Object) object.Object {
		field, errObj := fieldArg("type_of", args)
		if errObj != nil {
			return errObj
		}
		return h.describe(h.req.Node.Child(field))
	})
}

func (h *host) typeOfValueFn() *object.Builtin {
	return object.NewBuiltin("type_of_value", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("type_of_value", 0, len(args))
		}
		if h.req.Binding == nil {
			return object.NewString("unknown")
		}
		v, err := h.req.Lookup(h.ctx, h.req.Binding.Value)
		if err != nil {
			return h.fail(err)
		}
		return h.describe(v)
	})
}

func (h *host) fallbackFn() *object.Builtin {
	return object.NewBuiltin("fallback", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("fallback", 0, len(args))
		}
		t, err := h.fallback.Infer(h.ctx, h.req)
		if err != nil {
			return h.fail(err)
		}
		return object.NewString(FormatDescriptor(t))
	})
}
