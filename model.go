package arbor

import (
	"context"
	"fmt"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
)

// HasType is implemented by handles that can be typed through a
// SemanticModel.
type HasType interface {
	// TypeIn returns the type of the handle as seen by model.
	TypeIn(ctx context.Context, model *SemanticModel) (Type, error)
}

// SemanticModel answers type questions about one file. It holds no state
// of its own: every answer comes from the Engine's queries at the current
// revision.
type SemanticModel struct {
	engine *Engine
	file   File
}

// File returns the file the model describes.
func (m *SemanticModel) File() File { return m.file }

// Index returns the semantic index of the file.
func (m *SemanticModel) Index(ctx context.Context) (*Index, error) {
	return m.engine.Index(ctx, m.file)
}

// TypeOf returns the type of h.
func (m *SemanticModel) TypeOf(ctx context.Context, h HasType) (Type, error) {
	return h.TypeIn(ctx, m)
}

// ExprAt returns the innermost node covering offset in the current parse.
func (m *SemanticModel) ExprAt(ctx context.Context, offset int) (Expr, error) {
	mod, err := m.engine.src.Parsed.Get(ctx, m.file)
	if err != nil {
		return Expr{}, err
	}
	if offset < 0 || offset > len(mod.Source) {
		return Expr{}, fmt.Errorf("arbor: offset %d outside %s", offset, m.file)
	}
	n := mod.NodeAt(offset)
	if n == nil {
		return Expr{}, fmt.Errorf("arbor: no node at %s:%d", m.file, offset)
	}
	return Expr{File: m.file, Node: n}, nil
}

// TypeAt returns the type of the innermost node covering offset.
func (m *SemanticModel) TypeAt(ctx context.Context, offset int) (Type, error) {
	x, err := m.ExprAt(ctx, offset)
	if err != nil {
		return nil, err
	}
	return m.TypeOf(ctx, x)
}

// TypeAtPosition is TypeAt for a 1-based line and column.
func (m *SemanticModel) TypeAtPosition(ctx context.Context, line, col int) (Type, error) {
	mod, err := m.engine.src.Parsed.Get(ctx, m.file)
	if err != nil {
		return nil, err
	}
	off, ok := mod.Offset(line, col)
	if !ok {
		return nil, fmt.Errorf("arbor: position %d:%d outside %s", line, col, m.file)
	}
	return m.TypeAt(ctx, off)
}

// Expr is a handle to a syntax node of one parse. Typing it re-resolves
// the node by identity, so a handle from an older parse still works while
// the node is unchanged and fails with a StaleReferenceError once an edit
// has moved it.
type Expr struct {
	File File
	Node *ast.Node
}

// Ref returns the revalidating reference for the handle.
func (x Expr) Ref() NodeRef {
	return identity.NewRef(x.File, x.Node)
}

// TypeIn implements HasType.
func (x Expr) TypeIn(ctx context.Context, model *SemanticModel) (Type, error) {
	if x.Node == nil {
		return nil, fmt.Errorf("arbor: empty expression handle")
	}
	if x.File != model.file {
		return nil, fmt.Errorf("arbor: expression of %s typed in model of %s", x.File, model.file)
	}
	return model.engine.TypeOf(ctx, x.Ref())
}

