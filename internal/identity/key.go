// Package identity gives syntax nodes keys that survive re-parsing, and
// handles that re-locate a node in whichever parse of its file is current.
package identity

import (
	"fmt"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/source"
)

// NodeKey identifies a node by kind, anchor, and byte span measured from
// the anchor's start. The anchor is the innermost enclosing function or
// class definition, so an edit outside it leaves the key unchanged; nodes
// at module level are measured from the start of the file and move with
// any edit above them. The module root is keyed by kind alone so it stays
// stable while the file length changes.
type NodeKey struct {
	Kind   string
	Anchor string
	Start  int
	End    int
}

// KeyOf returns the key of n. It is pure: structurally identical nodes from
// different parses of the same text produce equal keys.
func KeyOf(n *ast.Node) NodeKey {
	if n.Kind == ast.KindModule {
		return NodeKey{Kind: ast.KindModule}
	}
	return NodeKey{Kind: n.Kind, Anchor: n.Anchor, Start: n.Start - n.Base, End: n.End - n.Base}
}

// ModuleKey is the key of every file's root node.
func ModuleKey() NodeKey { return NodeKey{Kind: ast.KindModule} }

// IsZero reports whether k is the zero key.
func (k NodeKey) IsZero() bool { return k == NodeKey{} }

// IsModule reports whether k names a module root.
func (k NodeKey) IsModule() bool { return k.Kind == ast.KindModule }

// Contains reports whether k's span contains other's. Keys under different
// anchors are only related when k is the anchor of other or one of its
// enclosing anchors.
func (k NodeKey) Contains(other NodeKey) bool {
	switch {
	case k.IsModule():
		return true
	case other.IsModule():
		return false
	case k.Anchor == other.Anchor:
		return k.Start <= other.Start && other.End <= k.End
	}
	return k.Start == 0 && k.Anchor != "" && strings.HasPrefix(other.Anchor, k.Anchor+".")
}

func (k NodeKey) String() string {
	if k.IsModule() {
		return k.Kind
	}
	if k.Anchor != "" {
		return fmt.Sprintf("%s@%s+%d..%d", k.Kind, k.Anchor, k.Start, k.End)
	}
	return fmt.Sprintf("%s@%d..%d", k.Kind, k.Start, k.End)
}

// Span returns the byte span k covers in m.
func Span(k NodeKey, m *ast.Module) (start, end int, ok bool) {
	if k.IsModule() {
		if m == nil || m.Root == nil {
			return 0, 0, false
		}
		return m.Root.Start, m.Root.End, true
	}
	a, ok := m.Anchor(k.Anchor)
	if !ok {
		return 0, 0, false
	}
	return a.Start + k.Start, a.Start + k.End, true
}

// AstNodeRef is a revalidating handle to a node: a file plus a key. It
// never holds the node itself; use Resolve to find it in a given parse.
type AstNodeRef struct {
	File source.File
	Key  NodeKey
}

// NewRef returns the handle for n in file f.
func NewRef(f source.File, n *ast.Node) AstNodeRef {
	return AstNodeRef{File: f, Key: KeyOf(n)}
}

func (r AstNodeRef) String() string {
	return fmt.Sprintf("%s:%s", r.File, r.Key)
}

// StaleReferenceError reports that a handle no longer resolves in the
// current parse of its file.
type StaleReferenceError struct {
	Ref AstNodeRef
}

func (e *StaleReferenceError) Error() string {
	return "identity: stale reference " + e.Ref.String()
}

// Resolve finds the node named by ref in m: it locates the anchor, then
// descends only through nodes containing the recorded span.
func Resolve(ref AstNodeRef, m *ast.Module) (*ast.Node, error) {
	if m == nil || m.Root == nil {
		return nil, &StaleReferenceError{Ref: ref}
	}
	if ref.Key.IsModule() {
		return m.Root, nil
	}
	start, end, ok := Span(ref.Key, m)
	if !ok {
		return nil, &StaleReferenceError{Ref: ref}
	}
	n := m.Lookup(ref.Key.Kind, start, end)
	if n == nil || n.Anchor != ref.Key.Anchor {
		return nil, &StaleReferenceError{Ref: ref}
	}
	return n, nil
}
