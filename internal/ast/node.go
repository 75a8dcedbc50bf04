// Package ast is an immutable, positionally indexed view of a Python syntax
// tree. Nodes carry a kind tag, a byte span, the field name under which they
// hang from their parent, and their source text when they are leaves.
package ast

import (
	"sort"
	"strconv"
	"strings"
)

// Node is one named syntax node. Anonymous tokens and comments are dropped,
// except operator tokens, which are kept in Operator.
type Node struct {
	Kind  string
	Field string
	Start int
	End   int
	Text  string
	// Operator is the operator token of an operator expression or an
	// augmented assignment, e.g. "+", "not in", "+=".
	Operator string
	Children []*Node

	// Anchor is the path of the innermost function or class definition
	// enclosing the node, "" at module level; a definition is its own
	// anchor. Base is the start of that anchor. Spans measured from Base
	// survive edits made outside the anchor.
	Anchor string
	Base   int
}

// Contains reports whether [start, end) lies inside n's span.
func (n *Node) Contains(start, end int) bool {
	return n.Start <= start && end <= n.End
}

// Child returns the first child hung under field, or nil.
func (n *Node) Child(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns every child hung under field, in source order.
func (n *Node) ChildrenByField(field string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// ChildOfKind returns the first child whose kind is kind, or nil.
func (n *Node) ChildOfKind(kind string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

func (n *Node) String() string {
	var b strings.Builder
	n.format(&b, 0)
	return b.String()
}

func (n *Node) format(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if n.Field != "" {
		b.WriteString(n.Field)
		b.WriteString(": ")
	}
	b.WriteString(n.Kind)
	if n.Operator != "" {
		b.WriteString(" ")
		b.WriteString(n.Operator)
	}
	if n.Text != "" && len(n.Children) == 0 {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(n.Text))
	}
	b.WriteString("\n")
	for _, c := range n.Children {
		c.format(b, depth+1)
	}
}

// Walk visits n and its descendants in source order. Returning false from
// fn skips the children of the node just visited.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Equal reports whether a and b are structurally identical: same kinds,
// fields, anchors, spans from the anchor and leaf text all the way down. A
// definition moved as a whole by an edit above it compares equal.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Field != b.Field || a.Text != b.Text || a.Operator != b.Operator {
		return false
	}
	if a.Anchor != b.Anchor || a.Start-a.Base != b.Start-b.Base || a.End-a.Base != b.End-b.Base {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// childContaining returns the child of n whose span contains [start, end).
// Children are sorted and non-overlapping, so this is a binary search.
func (n *Node) childContaining(start, end int) *Node {
	cs := n.Children
	i := sort.Search(len(cs), func(i int) bool { return cs[i].End >= end })
	for ; i < len(cs) && cs[i].Start <= start; i++ {
		if cs[i].Contains(start, end) {
			return cs[i]
		}
	}
	return nil
}
