package ast

import (
	"sort"
	"strconv"
)

// Module is a parsed source file. It is never mutated after Parse returns.
type Module struct {
	Source []byte
	Root   *Node

	// HasErrors is set when the parser recovered from syntax errors.
	HasErrors bool

	lines   []int
	anchors map[string]*Node
}

// Anchor returns the definition whose anchor path is path; "" names the
// root.
func (m *Module) Anchor(path string) (*Node, bool) {
	if m == nil || m.Root == nil {
		return nil, false
	}
	if path == "" {
		return m.Root, true
	}
	n, ok := m.anchors[path]
	return n, ok
}

// Lookup finds the node with exactly this kind and span by descending from
// the root through the children that contain the span.
func (m *Module) Lookup(kind string, start, end int) *Node {
	if m == nil || m.Root == nil {
		return nil
	}
	for cur := m.Root; cur != nil; cur = cur.childContaining(start, end) {
		// Wrapper nodes can share a span with their only child, so a span
		// match alone is not enough.
		if cur.Kind == kind && cur.Start == start && cur.End == end {
			return cur
		}
	}
	return nil
}

// Path returns the chain of nodes from the root down to target, or nil if
// target is not in this module.
func (m *Module) Path(target *Node) []*Node {
	if m == nil || m.Root == nil || target == nil {
		return nil
	}
	var path []*Node
	for cur := m.Root; cur != nil; cur = cur.childContaining(target.Start, target.End) {
		path = append(path, cur)
		if cur == target {
			return path
		}
	}
	return nil
}

// NodeAt returns the innermost node whose span contains offset.
func (m *Module) NodeAt(offset int) *Node {
	if m == nil || m.Root == nil || offset < m.Root.Start || offset >= m.Root.End {
		return nil
	}
	cur := m.Root
	for {
		next := cur.childContaining(offset, offset+1)
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Position converts a byte offset to a 1-based line and column.
func (m *Module) Position(offset int) (line, col int) {
	i := sort.Search(len(m.lines), func(i int) bool { return m.lines[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - m.lines[i] + 1
}

// Offset converts a 1-based line and column to a byte offset.
func (m *Module) Offset(line, col int) (int, bool) {
	if line < 1 || line > len(m.lines) || col < 1 {
		return 0, false
	}
	off := m.lines[line-1] + col - 1
	if off > len(m.Source) {
		return 0, false
	}
	return off, true
}

// ModuleEqual compares two parses structurally. Edits that only touch
// comments or whitespace inside a token-free region compare equal.
func ModuleEqual(a, b *Module) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.HasErrors == b.HasErrors && Equal(a.Root, b.Root)
}

// isAnchor reports whether nodes of kind introduce an anchor.
func isAnchor(kind string) bool {
	return kind == KindFunctionDef || kind == KindClassDef
}

// assignAnchors sets Anchor and Base below n. A definition's path is its
// enclosing path, a dot, and its name; the second and later definitions of
// the same path get "#1", "#2", and so on, in source order.
func (m *Module) assignAnchors(n *Node, anchor string, base int, seen map[string]int) {
	if isAnchor(n.Kind) {
		name := ""
		if id := n.Child("name"); id != nil {
			name = id.Text
		}
		if anchor != "" {
			name = anchor + "." + name
		}
		path := name
		if k := seen[name]; k > 0 {
			path = name + "#" + strconv.Itoa(k)
		}
		seen[name]++
		anchor, base = path, n.Start
		m.anchors[path] = n
	}
	n.Anchor, n.Base = anchor, base
	for _, c := range n.Children {
		m.assignAnchors(c, anchor, base, seen)
	}
}

func lineStarts(src []byte) []int {
	lines := []int{0}
	for i, c := range src {
		if c == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}
