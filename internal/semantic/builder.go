package semantic

import (
	"slices"
	"sort"
	"strings"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/source"
)

// Build walks m once in source order and returns its semantic index.
func Build(file source.File, m *ast.Module) *Index {
	b := &builder{
		file: file,
		ix: &Index{
			File:      file,
			scopes:    make(map[identity.NodeKey]int),
			nodeScope: make(map[identity.NodeKey]int),
		},
		starts: make(map[identity.NodeKey]int),
	}
	mod := b.push(nil, m.Root, ModuleScope, "")
	for _, c := range m.Root.Children {
		b.visit(mod, c)
	}
	b.finish()
	return b.ix
}

type builder struct {
	file   source.File
	ix     *Index
	frames []*frame
	// starts maps binding and use keys to file offsets for ordering.
	starts map[identity.NodeKey]int
	// source is the expression bindings made right now evaluate.
	source *ast.Node
}

// frame is the build-time state of one scope.
type frame struct {
	scope  *Scope
	idx    int
	parent *frame

	// reaching holds, per name, the bindings visible at the current point
	// of a sequential walk.
	reaching map[Name][]int
	// own holds, per use, the reaching set captured when it was visited.
	own [][]int
	// cond is the nesting depth of conditional bodies.
	cond  int
	loops []*loop

	globals   map[Name]bool
	nonlocals map[Name]bool

	// first is the earliest source offset at which each name appears.
	first map[Name]int
}

// loop collects the uses and bindings of one loop body so uses can see
// bindings made later in the same loop.
type loop struct {
	uses     []int
	bindings []int
}

func (f *frame) functionLike() bool {
	switch f.scope.Kind {
	case FunctionScope, LambdaScope, ComprehensionScope:
		return true
	}
	return false
}

func (f *frame) symbol(name Name, pos int) *Symbol {
	if p, ok := f.first[name]; !ok || pos < p {
		f.first[name] = pos
	}
	i, ok := f.scope.symbols[name]
	if !ok {
		i = len(f.scope.Symbols)
		f.scope.Symbols = append(f.scope.Symbols, Symbol{Name: name})
		f.scope.symbols[name] = i
	}
	return &f.scope.Symbols[i]
}

func (b *builder) push(parent *frame, n *ast.Node, kind ScopeKind, name Name) *frame {
	ref := ScopeRef{File: b.file, Node: identity.KeyOf(n)}
	sc := &Scope{
		Ref:       ref,
		Kind:      kind,
		Name:      name,
		symbols:   make(map[Name]int),
		bindingAt: make(map[identity.NodeKey]int),
		useAt:     make(map[identity.NodeKey]int),
	}
	f := &frame{
		scope:     sc,
		idx:       len(b.ix.Scopes),
		parent:    parent,
		reaching:  make(map[Name][]int),
		globals:   make(map[Name]bool),
		nonlocals: make(map[Name]bool),
		first:     make(map[Name]int),
	}
	if parent != nil {
		sc.Parent = parent.scope.Ref
		parent.scope.Children = append(parent.scope.Children, ref)
	}
	b.ix.scopes[ref.Node] = f.idx
	b.ix.Scopes = append(b.ix.Scopes, sc)
	b.frames = append(b.frames, f)
	return f
}

func (b *builder) record(f *frame, n *ast.Node) {
	b.ix.nodeScope[identity.KeyOf(n)] = f.idx
}

func (b *builder) module() *frame { return b.frames[0] }

// =============================================================================
// Visiting
// =============================================================================

func (b *builder) visit(f *frame, n *ast.Node) {
	if n == nil {
		return
	}
	b.record(f, n)
	switch n.Kind {
	case ast.KindIdentifier:
		b.use(f, n)
	case ast.KindFunctionDef:
		b.function(f, n)
	case ast.KindClassDef:
		b.class(f, n)
	case ast.KindLambda:
		b.lambda(f, n)
	case ast.KindListComprehension, ast.KindSetComprehension,
		ast.KindDictionaryComprehension, ast.KindGeneratorExpression:
		b.comprehension(f, n)
	case ast.KindAssignment:
		b.assignment(f, n)
	case ast.KindAugmentedAssignment:
		b.augmented(f, n)
	case ast.KindNamedExpression:
		b.namedExpression(f, n)
	case ast.KindImport:
		b.importStatement(f, n)
	case ast.KindImportFrom:
		b.importFrom(f, n)
	case ast.KindFutureImport:
		// Compiler directive; binds nothing.
	case ast.KindGlobal, ast.KindNonlocal:
		b.declare(f, n)
	case ast.KindIf:
		b.visit(f, n.Child("condition"))
		b.conditional(f, func() {
			for _, c := range n.Children {
				if c.Field != "condition" {
					b.visit(f, c)
				}
			}
		})
	case ast.KindFor:
		b.forStatement(f, n)
	case ast.KindWhile:
		b.whileStatement(f, n)
	case ast.KindTry:
		b.tryStatement(f, n)
	case ast.KindExcept:
		b.exceptClause(f, n)
	case ast.KindWithItem:
		b.withItem(f, n)
	case ast.KindMatch:
		b.matchStatement(f, n)
	case ast.KindAttribute:
		// Only the object is a name load; the attribute is a member.
		b.visit(f, n.Child("object"))
	case ast.KindMemberType:
		// "mod.Name" in annotation position.
		if len(n.Children) > 0 {
			b.visit(f, n.Children[0])
		}
	case ast.KindKeywordArg:
		b.visit(f, n.Child("value"))
	default:
		for _, c := range n.Children {
			b.visit(f, c)
		}
	}
}

func (b *builder) conditional(f *frame, body func()) {
	f.cond++
	body()
	f.cond--
}

func (b *builder) inLoop(f *frame, body func()) {
	lp := &loop{}
	f.loops = append(f.loops, lp)
	body()
	f.loops = f.loops[:len(f.loops)-1]

	for _, u := range lp.uses {
		name := f.scope.Uses[u].Name
		if f.globals[name] || f.nonlocals[name] {
			continue
		}
		for _, bi := range lp.bindings {
			if f.scope.Bindings[bi].Name == name {
				f.own[u] = addIndex(f.own[u], bi)
			}
		}
	}
	if n := len(f.loops); n > 0 {
		outer := f.loops[n-1]
		outer.uses = append(outer.uses, lp.uses...)
		outer.bindings = append(outer.bindings, lp.bindings...)
	}
}

func (b *builder) use(f *frame, n *ast.Node) {
	name := Name(n.Text)
	idx := len(f.scope.Uses)
	key := identity.KeyOf(n)
	b.starts[key] = n.Start
	f.scope.Uses = append(f.scope.Uses, Use{Name: name, Node: key})
	f.scope.useAt[key] = idx
	sym := f.symbol(name, n.Start)
	sym.Flags |= FlagUsed
	sym.Uses = append(sym.Uses, idx)

	var own []int
	if !f.globals[name] && !f.nonlocals[name] {
		own = slices.Clone(f.reaching[name])
	}
	f.own = append(f.own, own)
	if n := len(f.loops); n > 0 {
		f.loops[n-1].uses = append(f.loops[n-1].uses, idx)
	}
}

// bind registers a binding of the identifier node in f, or in the module or
// enclosing function scope when the name was declared global or nonlocal.
func (b *builder) bind(f *frame, node *ast.Node, kind BindingKind, def *ast.Node, fill func(*Binding)) {
	name := Name(node.Text)
	b.record(f, node)

	target := f
	switch {
	case f.globals[name]:
		target = b.module()
	case f.nonlocals[name]:
		target = enclosingFunction(f)
	}

	bnd := Binding{
		Name:        name,
		Kind:        kind,
		Node:        identity.KeyOf(node),
		Definition:  identity.KeyOf(def),
		Conditional: f.cond > 0,
	}
	if b.source != nil {
		bnd.Source = identity.KeyOf(b.source)
	}
	if fill != nil {
		fill(&bnd)
	}
	if bnd.Source.IsZero() {
		bnd.Source = bnd.Value
	}

	sc := target.scope
	idx := len(sc.Bindings)
	sc.Bindings = append(sc.Bindings, bnd)
	sc.bindingAt[bnd.Node] = idx
	b.starts[bnd.Node] = node.Start
	sym := target.symbol(name, node.Start)
	sym.Flags |= FlagBound
	sym.Bindings = append(sym.Bindings, idx)

	if target != f {
		// Runs later; it does not change the sequential flow of target.
		return
	}
	if f.cond > 0 {
		f.reaching[name] = addIndex(f.reaching[name], idx)
	} else {
		f.reaching[name] = []int{idx}
	}
	if n := len(f.loops); n > 0 {
		f.loops[n-1].bindings = append(f.loops[n-1].bindings, idx)
	}
}

func enclosingFunction(f *frame) *frame {
	for p := f.parent; p != nil; p = p.parent {
		if p.functionLike() {
			return p
		}
	}
	return f
}

func (b *builder) declare(f *frame, n *ast.Node) {
	for _, c := range n.Children {
		if c.Kind != ast.KindIdentifier {
			continue
		}
		b.record(f, c)
		name := Name(c.Text)
		sym := f.symbol(name, c.Start)
		if n.Kind == ast.KindGlobal {
			if f.scope.Kind == ModuleScope {
				continue
			}
			f.globals[name] = true
			sym.Flags |= FlagGlobal
			sym.Target = b.module().scope.Ref
			continue
		}
		f.nonlocals[name] = true
		sym.Flags |= FlagNonlocal
		sym.Target = enclosingFunction(f).scope.Ref
	}
}

// =============================================================================
// Scopes
// =============================================================================

func (b *builder) function(f *frame, n *ast.Node) {
	params := n.Child("parameters")
	b.outerParameters(f, params)
	b.visit(f, n.Child("return_type"))

	nameNode := n.Child("name")
	var name Name
	if nameNode != nil {
		name = Name(nameNode.Text)
		b.bind(f, nameNode, FunctionDef, n, func(bd *Binding) {
			if rt := n.Child("return_type"); rt != nil {
				bd.Annotation = identity.KeyOf(rt)
			}
		})
	}

	inner := b.push(f, n, FunctionScope, name)
	b.innerParameters(inner, params)
	b.visit(inner, n.Child("body"))
}

func (b *builder) lambda(f *frame, n *ast.Node) {
	params := n.Child("parameters")
	b.outerParameters(f, params)
	inner := b.push(f, n, LambdaScope, "")
	b.innerParameters(inner, params)
	b.visit(inner, n.Child("body"))
}

// outerParameters visits defaults and annotations, which are evaluated in
// the enclosing scope.
func (b *builder) outerParameters(f *frame, params *ast.Node) {
	if params == nil {
		return
	}
	for _, p := range params.Children {
		b.visit(f, p.Child("type"))
		b.visit(f, p.Child("value"))
	}
}

func (b *builder) innerParameters(f *frame, params *ast.Node) {
	if params == nil {
		return
	}
	b.record(f, params)
	for _, p := range params.Children {
		b.parameter(f, p)
	}
}

func (b *builder) parameter(f *frame, p *ast.Node) {
	annotate := func(bd *Binding) {
		if t := p.Child("type"); t != nil {
			bd.Annotation = identity.KeyOf(t)
		}
		if v := p.Child("value"); v != nil {
			bd.Value = identity.KeyOf(v)
		}
	}
	switch p.Kind {
	case ast.KindIdentifier:
		b.bind(f, p, Parameter, p, nil)
	case ast.KindDefaultParameter, ast.KindTypedDefaultParameter:
		if name := p.Child("name"); name != nil {
			b.bind(f, name, Parameter, p, annotate)
		}
	case ast.KindTypedParameter:
		for _, c := range p.Children {
			if c.Field == "type" {
				continue
			}
			kind, name := splat(c)
			if name != nil {
				b.bind(f, name, kind, p, annotate)
			}
			break
		}
	case ast.KindListSplatPattern, ast.KindDictSplatPattern:
		if kind, name := splat(p); name != nil {
			b.bind(f, name, kind, p, nil)
		}
	}
	b.record(f, p)
}

// splat returns the parameter kind and name node of a possibly starred
// parameter name.
func splat(n *ast.Node) (BindingKind, *ast.Node) {
	switch n.Kind {
	case ast.KindIdentifier:
		return Parameter, n
	case ast.KindListSplatPattern:
		return StarParameter, n.ChildOfKind(ast.KindIdentifier)
	case ast.KindDictSplatPattern:
		return DoubleStarParameter, n.ChildOfKind(ast.KindIdentifier)
	}
	return Parameter, nil
}

func (b *builder) class(f *frame, n *ast.Node) {
	b.visit(f, n.Child("superclasses"))
	nameNode := n.Child("name")
	var name Name
	if nameNode != nil {
		name = Name(nameNode.Text)
	}
	inner := b.push(f, n, ClassScope, name)
	b.visit(inner, n.Child("body"))
	if nameNode != nil {
		b.bind(f, nameNode, ClassDef, n, nil)
	}
}

// comprehension visits clauses in source order. The first iterable is
// evaluated in the enclosing scope.
func (b *builder) comprehension(f *frame, n *ast.Node) {
	inner := b.push(f, n, ComprehensionScope, "")
	first := true
	for _, c := range n.Children {
		if c.Kind != ast.KindForInClause {
			b.visit(inner, c)
			continue
		}
		b.record(inner, c)
		at := inner
		if first {
			at = f
			first = false
		}
		for _, r := range c.ChildrenByField("right") {
			b.visit(at, r)
		}
		b.evaluating(c.Child("right"), func() {
			b.target(inner, c.Child("left"), ComprehensionTarget, c, nil, nil)
		})
	}
}

// =============================================================================
// Binding statements
// =============================================================================

func (b *builder) assignment(f *frame, n *ast.Node) {
	typ := n.Child("type")
	right := n.Child("right")
	b.visit(f, typ)
	b.visit(f, right)

	kind := Assignment
	if typ != nil {
		kind = AnnotatedAssignment
		if right == nil {
			kind = Annotation
		}
	}
	value := innermostValue(right)
	b.evaluating(value, func() {
		b.target(f, n.Child("left"), kind, n, value, typ)
	})
}

// evaluating runs fn with src recorded as the Source of the bindings it
// makes.
func (b *builder) evaluating(src *ast.Node, fn func()) {
	prev := b.source
	b.source = src
	fn()
	b.source = prev
}

// innermostValue returns the value of a chained assignment "a = b = v".
func innermostValue(n *ast.Node) *ast.Node {
	for n != nil && n.Kind == ast.KindAssignment {
		n = n.Child("right")
	}
	return n
}

// target binds every name of an assignment target. When the value is a
// literal sequence of matching length, elements are paired positionally.
func (b *builder) target(f *frame, t *ast.Node, kind BindingKind, def, value, typ *ast.Node) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ast.KindIdentifier:
		b.bind(f, t, kind, def, func(bd *Binding) {
			if value != nil {
				bd.Value = identity.KeyOf(value)
			}
			if typ != nil {
				bd.Annotation = identity.KeyOf(typ)
			}
		})
	case ast.KindPatternList, ast.KindTuplePattern, ast.KindListPattern,
		ast.KindTuple, ast.KindList, ast.KindExpressionList:
		b.record(f, t)
		values := unpack(value, len(t.Children))
		for i, e := range t.Children {
			var v *ast.Node
			if values != nil {
				v = values[i]
			}
			b.target(f, e, kind, def, v, nil)
		}
	case ast.KindListSplatPattern, ast.KindListSplat:
		b.record(f, t)
		for _, c := range t.Children {
			b.target(f, c, kind, def, nil, nil)
		}
	case ast.KindParenthesized:
		b.record(f, t)
		for _, c := range t.Children {
			b.target(f, c, kind, def, value, typ)
		}
	default:
		// Attribute and subscript targets store into an object; the names
		// they mention are loads.
		b.visit(f, t)
	}
}

func unpack(value *ast.Node, n int) []*ast.Node {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case ast.KindTuple, ast.KindList, ast.KindExpressionList:
	case ast.KindParenthesized:
		if len(value.Children) == 1 {
			return unpack(value.Children[0], n)
		}
		return nil
	default:
		return nil
	}
	if len(value.Children) != n {
		return nil
	}
	for _, c := range value.Children {
		if c.Kind == ast.KindListSplat {
			return nil
		}
	}
	return value.Children
}

func (b *builder) augmented(f *frame, n *ast.Node) {
	right := n.Child("right")
	b.visit(f, right)
	left := n.Child("left")
	if left == nil || left.Kind != ast.KindIdentifier {
		b.visit(f, left)
		return
	}
	b.use(f, left)
	b.bind(f, left, AugmentedAssignment, n, func(bd *Binding) {
		if right != nil {
			bd.Value = identity.KeyOf(right)
		}
	})
}

// namedExpression binds in the nearest enclosing scope that is not a
// comprehension.
func (b *builder) namedExpression(f *frame, n *ast.Node) {
	value := n.Child("value")
	b.visit(f, value)
	target := f
	for target.scope.Kind == ComprehensionScope && target.parent != nil {
		target = target.parent
	}
	if name := n.Child("name"); name != nil {
		b.bind(target, name, NamedExpression, n, func(bd *Binding) {
			bd.Source = identity.NodeKey{}
			if value != nil {
				bd.Value = identity.KeyOf(value)
			}
		})
	}
}

func (b *builder) importStatement(f *frame, n *ast.Node) {
	for _, c := range n.ChildrenByField("name") {
		switch c.Kind {
		case ast.KindDottedName:
			b.record(f, c)
			first, _, _ := strings.Cut(c.Text, ".")
			edge := ImportEdge{Module: c.Text, Alias: Name(first), Object: first}
			f.scope.Imports = append(f.scope.Imports, edge)
			b.bindName(f, c, Name(first), Import, n, edge)
		case ast.KindAliasedImport:
			b.record(f, c)
			mod, alias := c.Child("name"), c.Child("alias")
			if mod == nil || alias == nil {
				continue
			}
			edge := ImportEdge{Module: mod.Text, Alias: Name(alias.Text), Object: mod.Text}
			f.scope.Imports = append(f.scope.Imports, edge)
			b.bindName(f, alias, Name(alias.Text), Import, n, edge)
		}
	}
}

func (b *builder) importFrom(f *frame, n *ast.Node) {
	module, level := "", 0
	if mn := n.Child("module_name"); mn != nil {
		b.record(f, mn)
		module, level = moduleName(mn)
	}
	if n.ChildOfKind(ast.KindWildcardImport) != nil {
		f.scope.Imports = append(f.scope.Imports, ImportEdge{Module: module, Level: level, Member: "*"})
	}
	for _, c := range n.ChildrenByField("name") {
		b.record(f, c)
		var member, bound *ast.Node
		switch c.Kind {
		case ast.KindDottedName:
			member, bound = c, c
		case ast.KindAliasedImport:
			member, bound = c.Child("name"), c.Child("alias")
		}
		if member == nil || bound == nil {
			continue
		}
		edge := ImportEdge{Module: module, Level: level, Member: member.Text, Alias: Name(bound.Text)}
		f.scope.Imports = append(f.scope.Imports, edge)
		b.bindName(f, bound, Name(bound.Text), ImportFrom, n, edge)
	}
}

// bindName binds a name whose node text is not the bound name itself, as
// with "import a.b" binding "a" at the dotted_name node.
func (b *builder) bindName(f *frame, node *ast.Node, name Name, kind BindingKind, def *ast.Node, edge ImportEdge) {
	carrier := *node
	carrier.Text = string(name)
	b.bind(f, &carrier, kind, def, func(bd *Binding) {
		e := edge
		bd.Import = &e
	})
}

// moduleName splits a from-import module into its dotted name and level.
func moduleName(n *ast.Node) (string, int) {
	if n.Kind != ast.KindRelativeImport {
		return n.Text, 0
	}
	level := 0
	module := ""
	for _, c := range n.Children {
		switch c.Kind {
		case ast.KindImportPrefix:
			level = strings.Count(c.Text, ".")
		case ast.KindDottedName:
			module = c.Text
		}
	}
	return module, level
}

func (b *builder) forStatement(f *frame, n *ast.Node) {
	for _, r := range n.ChildrenByField("right") {
		b.visit(f, r)
	}
	b.conditional(f, func() {
		b.inLoop(f, func() {
			b.evaluating(n.Child("right"), func() {
				b.target(f, n.Child("left"), ForTarget, n, nil, nil)
			})
			b.visit(f, n.Child("body"))
		})
		b.visit(f, n.Child("alternative"))
	})
}

func (b *builder) whileStatement(f *frame, n *ast.Node) {
	b.inLoop(f, func() {
		b.visit(f, n.Child("condition"))
		b.conditional(f, func() {
			b.visit(f, n.Child("body"))
		})
	})
	b.conditional(f, func() {
		b.visit(f, n.Child("alternative"))
	})
}

func (b *builder) tryStatement(f *frame, n *ast.Node) {
	var final *ast.Node
	b.conditional(f, func() {
		for _, c := range n.Children {
			if c.Kind == ast.KindFinally {
				final = c
				continue
			}
			b.visit(f, c)
		}
	})
	b.visit(f, final)
}

// exceptClause handles both "except E as e" shapes of the grammar: an
// as_pattern child, or a type expression followed by the bound identifier.
func (b *builder) exceptClause(f *frame, n *ast.Node) {
	var exprs, blocks []*ast.Node
	for _, c := range n.Children {
		switch c.Kind {
		case ast.KindBlock:
			blocks = append(blocks, c)
		case ast.KindAsPattern:
			b.record(f, c)
			typ, alias := asPattern(c)
			b.visit(f, typ)
			b.target(f, alias, ExceptHandler, n, typ, nil)
		default:
			exprs = append(exprs, c)
		}
	}
	if len(exprs) == 2 && exprs[1].Kind == ast.KindIdentifier {
		b.visit(f, exprs[0])
		b.target(f, exprs[1], ExceptHandler, n, exprs[0], nil)
	} else {
		for _, e := range exprs {
			b.visit(f, e)
		}
	}
	for _, blk := range blocks {
		b.visit(f, blk)
	}
}

// asPattern returns the expression and the unwrapped target of "x as y".
func asPattern(n *ast.Node) (expr, target *ast.Node) {
	for _, c := range n.Children {
		if c.Field == "alias" {
			target = c
		} else if expr == nil {
			expr = c
		}
	}
	if target != nil && target.Kind == ast.KindAsTarget && len(target.Children) == 1 {
		target = target.Children[0]
	}
	return expr, target
}

func (b *builder) withItem(f *frame, n *ast.Node) {
	value := n.Child("value")
	if value == nil && len(n.Children) > 0 {
		value = n.Children[0]
	}
	if value == nil || value.Kind != ast.KindAsPattern {
		b.visit(f, value)
		return
	}
	b.record(f, value)
	expr, target := asPattern(value)
	b.visit(f, expr)
	b.evaluating(expr, func() {
		b.target(f, target, WithTarget, n, nil, nil)
	})
}

// matchStatement visits subjects, guards, and case bodies. Patterns are
// not indexed.
func (b *builder) matchStatement(f *frame, n *ast.Node) {
	for _, s := range n.ChildrenByField("subject") {
		b.visit(f, s)
	}
	b.conditional(f, func() {
		ast.Walk(n.Child("body"), func(c *ast.Node) bool {
			if c.Kind != ast.KindCase {
				return true
			}
			b.record(f, c)
			b.visit(f, c.Child("guard"))
			b.visit(f, c.Child("consequence"))
			return false
		})
	})
}

// =============================================================================
// Resolution
// =============================================================================

// finish puts every scope in source order and resolves every use once all
// bindings of the file are known.
func (b *builder) finish() {
	for _, f := range b.frames {
		b.normalize(f)
	}
	for _, f := range b.frames {
		for u := range f.scope.Uses {
			use := &f.scope.Uses[u]
			use.Bindings = b.resolve(f, use.Name, f.own[u])
		}
	}
}

// normalize sorts bindings, uses, and symbols by source position. The walk
// visits assignment values before targets, so visit order is not enough.
func (b *builder) normalize(f *frame) {
	sc := f.scope
	bOrder, bNew := sourceOrder(len(sc.Bindings), func(i int) int { return b.starts[sc.Bindings[i].Node] })
	uOrder, uNew := sourceOrder(len(sc.Uses), func(i int) int { return b.starts[sc.Uses[i].Node] })
	sc.Bindings = permute(sc.Bindings, bOrder)
	sc.Uses = permute(sc.Uses, uOrder)

	own := permute(f.own, uOrder)
	for i, set := range own {
		own[i] = remap(set, bNew)
	}
	f.own = own

	sOrder, _ := sourceOrder(len(sc.Symbols), func(i int) int { return f.first[sc.Symbols[i].Name] })
	sc.Symbols = permute(sc.Symbols, sOrder)
	clear(sc.symbols)
	for i := range sc.Symbols {
		sym := &sc.Symbols[i]
		sym.Bindings = remap(sym.Bindings, bNew)
		sym.Uses = remap(sym.Uses, uNew)
		sc.symbols[sym.Name] = i
	}

	clear(sc.bindingAt)
	for i, bnd := range sc.Bindings {
		sc.bindingAt[bnd.Node] = i
	}
	clear(sc.useAt)
	for i, u := range sc.Uses {
		sc.useAt[u.Node] = i
	}
}

// sourceOrder returns the stable order of n items by position, and for each
// old index its new index.
func sourceOrder(n int, pos func(int) int) (order, newIndex []int) {
	order = make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pos(order[a]) < pos(order[b]) })
	newIndex = make([]int, n)
	for ni, oi := range order {
		newIndex[oi] = ni
	}
	return order, newIndex
}

func permute[T any](s []T, order []int) []T {
	out := make([]T, len(s))
	for ni, oi := range order {
		out[ni] = s[oi]
	}
	return out
}

func remap(set, newIndex []int) []int {
	if len(set) == 0 {
		return set
	}
	out := make([]int, len(set))
	for i, v := range set {
		out[i] = newIndex[v]
	}
	slices.Sort(out)
	return out
}

func (b *builder) resolve(f *frame, name Name, own []int) []BindingRef {
	switch {
	case f.globals[name]:
		return allBindings(b.module(), name)
	case f.nonlocals[name]:
		target := enclosingFunction(f)
		if refs := allBindings(target, name); len(refs) > 0 {
			return refs
		}
		return b.outward(target.parent, name)
	case len(own) > 0:
		refs := make([]BindingRef, len(own))
		for i, bi := range own {
			refs[i] = f.scope.RefOf(f.scope.Bindings[bi])
		}
		return refs
	case f.scope.Kind != ClassScope:
		if refs := allBindings(f, name); len(refs) > 0 {
			return refs
		}
	}
	return b.outward(f.parent, name)
}

// outward takes every binding of name in the first enclosing scope that has
// one. Class scopes are not visible from nested scopes.
func (b *builder) outward(p *frame, name Name) []BindingRef {
	for ; p != nil; p = p.parent {
		if p.scope.Kind == ClassScope {
			continue
		}
		if refs := allBindings(p, name); len(refs) > 0 {
			return refs
		}
	}
	return nil
}

func allBindings(f *frame, name Name) []BindingRef {
	i, ok := f.scope.symbols[name]
	if !ok {
		return nil
	}
	sym := f.scope.Symbols[i]
	if len(sym.Bindings) == 0 {
		return nil
	}
	refs := make([]BindingRef, len(sym.Bindings))
	for j, bi := range sym.Bindings {
		refs[j] = f.scope.RefOf(f.scope.Bindings[bi])
	}
	return refs
}

// addIndex inserts i into the sorted set s.
func addIndex(s []int, i int) []int {
	pos, found := slices.BinarySearch(s, i)
	if found {
		return s
	}
	return slices.Insert(slices.Clone(s), pos, i)
}
