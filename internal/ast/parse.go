package ast

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrParseFailed is returned when tree-sitter produces no tree at all.
// Syntax errors do not fail a parse; see Module.HasErrors.
var ErrParseFailed = errors.New("ast: parse failed")

// textKinds keep their source text even though they have children.
var textKinds = map[string]bool{
	KindDottedName:     true,
	KindString:         true,
	KindRelativeImport: true,
	KindAttribute:      true,
}

// Parse parses Python source into an immutable Module.
func Parse(ctx context.Context, src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if tree == nil {
		return nil, ErrParseFailed
	}
	defer tree.Close()

	root := tree.RootNode()
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	m := &Module{
		Source:    src,
		Root:      convert(cursor, src),
		HasErrors: root.HasError(),
		lines:     lineStarts(src),
		anchors:   make(map[string]*Node),
	}
	m.assignAnchors(m.Root, "", 0, make(map[string]int))
	return m, nil
}

// convert copies the subtree under the cursor, keeping named nodes only.
func convert(c *sitter.TreeCursor, src []byte) *Node {
	sn := c.CurrentNode()
	n := &Node{
		Kind:  sn.Type(),
		Start: int(sn.StartByte()),
		End:   int(sn.EndByte()),
	}
	if c.GoToFirstChild() {
		for {
			child := c.CurrentNode()
			field := c.CurrentFieldName()
			switch {
			case child.IsNamed() && child.Type() != KindComment:
				cn := convert(c, src)
				cn.Field = field
				n.Children = append(n.Children, cn)
			case field == "operator" || field == "operators":
				// Chained comparisons carry one operator per link.
				if n.Operator != "" {
					n.Operator += " "
				}
				n.Operator += child.Type()
			}
			if !c.GoToNextSibling() {
				break
			}
		}
		c.GoToParent()
	}
	if len(n.Children) == 0 || textKinds[n.Kind] {
		n.Text = string(src[n.Start:n.End])
	}
	return n
}
