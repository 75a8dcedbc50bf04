// Package semantic builds the per-file semantic index: the scope tree, the
// symbol table of each scope, and the reaching bindings of every name use.
//
// Reaching bindings are computed syntactically. Within a scope, a simple
// sequential binding replaces the earlier ones, while bindings in
// conditional or loop bodies add to them. A use with no earlier binding in
// its own module or function scope reaches every binding of the name in
// that scope. Lookups that leave a scope take every binding of the name in
// the first enclosing scope that has one, skipping class scopes. Precise
// flow sensitivity belongs to inference, not to this index.
package semantic

import (
	"fmt"

	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/source"
)

// Name is a Python identifier.
type Name string

// ScopeKind classifies scopes.
type ScopeKind uint8

const (
	ModuleScope ScopeKind = iota
	ClassScope
	FunctionScope
	LambdaScope
	ComprehensionScope
)

func (k ScopeKind) String() string {
	switch k {
	case ModuleScope:
		return "module"
	case ClassScope:
		return "class"
	case FunctionScope:
		return "function"
	case LambdaScope:
		return "lambda"
	case ComprehensionScope:
		return "comprehension"
	default:
		return fmt.Sprintf("ScopeKind(%d)", k)
	}
}

// BindingKind is the syntactic form that introduced a binding.
type BindingKind uint8

const (
	Assignment BindingKind = iota + 1
	AugmentedAssignment
	AnnotatedAssignment
	Annotation
	Parameter
	StarParameter
	DoubleStarParameter
	Import
	ImportFrom
	FunctionDef
	ClassDef
	ForTarget
	WithTarget
	ExceptHandler
	ComprehensionTarget
	NamedExpression
)

var bindingKindNames = map[BindingKind]string{
	Assignment:          "assignment",
	AugmentedAssignment: "augmented-assignment",
	AnnotatedAssignment: "annotated-assignment",
	Annotation:          "annotation",
	Parameter:           "parameter",
	StarParameter:       "star-parameter",
	DoubleStarParameter: "double-star-parameter",
	Import:              "import",
	ImportFrom:          "import-from",
	FunctionDef:         "function",
	ClassDef:            "class",
	ForTarget:           "for-target",
	WithTarget:          "with-target",
	ExceptHandler:       "except-handler",
	ComprehensionTarget: "comprehension-target",
	NamedExpression:     "named-expression",
}

func (k BindingKind) String() string {
	if s, ok := bindingKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("BindingKind(%d)", k)
}

// ScopeRef identifies a scope by its file and the key of the node that
// introduces it.
type ScopeRef struct {
	File source.File
	Node identity.NodeKey
}

// ModuleRef returns the module scope of f.
func ModuleRef(f source.File) ScopeRef {
	return ScopeRef{File: f, Node: identity.ModuleKey()}
}

// IsZero reports whether r is the zero ref, used for "no parent".
func (r ScopeRef) IsZero() bool { return r == ScopeRef{} }

// AstNodeRef returns the handle of the scope's node.
func (r ScopeRef) AstNodeRef() identity.AstNodeRef {
	return identity.AstNodeRef{File: r.File, Key: r.Node}
}

func (r ScopeRef) String() string { return r.File.String() + ":" + r.Node.String() }

// BindingRef identifies a binding by its scope and its name node.
type BindingRef struct {
	Scope ScopeRef
	Node  identity.NodeKey
}

func (r BindingRef) String() string { return r.Scope.String() + "/" + r.Node.String() }

// ImportEdge is one module dependency introduced by an import statement.
type ImportEdge struct {
	// Module is the dotted module name as written, without leading dots.
	Module string
	// Level is the number of leading dots of a relative import.
	Level int
	// Member is the imported name of a from-import, "*" for a wildcard.
	Member string
	// Alias is the bound name; empty for wildcards.
	Alias Name
	// Object is the module object bound by a plain import: "a" for
	// "import a.b", "a.b" for "import a.b as c".
	Object string
}

// Binding is one definition site of a name.
type Binding struct {
	Name Name
	Kind BindingKind
	// Node is the name node that is bound.
	Node identity.NodeKey
	// Definition is the statement, parameter, or clause that binds it.
	Definition identity.NodeKey
	// Value is the expression assigned to Node when it is known
	// syntactically; for except handlers it is the exception type.
	Value identity.NodeKey
	// Source is the expression evaluated to make the binding: the whole
	// right-hand side of an assignment, the iterable of a for target, the
	// context manager of a with target. A use inside it reads an earlier
	// binding, never this one.
	Source identity.NodeKey
	// Annotation is the declared type expression, if any.
	Annotation identity.NodeKey
	Import     *ImportEdge
	// Conditional is set for bindings under if/for/while/try/match.
	Conditional bool
}

// Use is one load of a name, with the bindings that may reach it in source
// order.
type Use struct {
	Name     Name
	Node     identity.NodeKey
	Bindings []BindingRef
}

// SymbolFlags describe how a name is used within one scope.
type SymbolFlags uint8

const (
	FlagBound SymbolFlags = 1 << iota
	FlagUsed
	FlagGlobal
	FlagNonlocal
)

// Symbol is one name of a scope's symbol table.
type Symbol struct {
	Name  Name
	Flags SymbolFlags
	// Bindings and Uses index into the scope's Bindings and Uses.
	Bindings []int
	Uses     []int
	// Target is the scope holding the bindings of a global or nonlocal
	// name; zero otherwise.
	Target ScopeRef
}

// Has reports whether all of flags are set.
func (s Symbol) Has(flags SymbolFlags) bool { return s.Flags&flags == flags }

// Scope is one node of the scope tree. Symbols, bindings, and uses are in
// source order.
type Scope struct {
	Ref      ScopeRef
	Kind     ScopeKind
	Name     Name
	Parent   ScopeRef
	Children []ScopeRef
	Symbols  []Symbol
	Bindings []Binding
	Uses     []Use
	Imports  []ImportEdge

	symbols   map[Name]int
	bindingAt map[identity.NodeKey]int
	useAt     map[identity.NodeKey]int
}

// Symbol returns the symbol for name.
func (s *Scope) Symbol(name Name) (Symbol, bool) {
	i, ok := s.symbols[name]
	if !ok {
		return Symbol{}, false
	}
	return s.Symbols[i], true
}

// BindingsOf returns the bindings of name in source order.
func (s *Scope) BindingsOf(name Name) []Binding {
	sym, ok := s.Symbol(name)
	if !ok {
		return nil
	}
	out := make([]Binding, len(sym.Bindings))
	for i, b := range sym.Bindings {
		out[i] = s.Bindings[b]
	}
	return out
}

// BindingAt returns the binding whose name node is node.
func (s *Scope) BindingAt(node identity.NodeKey) (Binding, bool) {
	i, ok := s.bindingAt[node]
	if !ok {
		return Binding{}, false
	}
	return s.Bindings[i], true
}

// UseAt returns the use at node.
func (s *Scope) UseAt(node identity.NodeKey) (Use, bool) {
	i, ok := s.useAt[node]
	if !ok {
		return Use{}, false
	}
	return s.Uses[i], true
}

// RefOf returns the handle of b, which must belong to s.
func (s *Scope) RefOf(b Binding) BindingRef {
	return BindingRef{Scope: s.Ref, Node: b.Node}
}

// WildcardImports returns the "from m import *" edges of the scope.
func (s *Scope) WildcardImports() []ImportEdge {
	var out []ImportEdge
	for _, e := range s.Imports {
		if e.Member == "*" {
			out = append(out, e)
		}
	}
	return out
}

// Index is the semantic index of one file.
type Index struct {
	File source.File
	// Scopes lists every scope in pre-order; Scopes[0] is the module.
	Scopes []*Scope

	scopes    map[identity.NodeKey]int
	nodeScope map[identity.NodeKey]int
}

// Module returns the module scope.
func (ix *Index) Module() *Scope { return ix.Scopes[0] }

// Scope returns the scope introduced by ref.
func (ix *Index) Scope(ref ScopeRef) (*Scope, bool) {
	if ref.File != ix.File {
		return nil, false
	}
	i, ok := ix.scopes[ref.Node]
	if !ok {
		return nil, false
	}
	return ix.Scopes[i], true
}

// ScopeOf returns the scope a visited node was evaluated in. Nodes the
// builder never visited, such as block wrappers, are not recorded.
func (ix *Index) ScopeOf(node identity.NodeKey) (ScopeRef, bool) {
	i, ok := ix.nodeScope[node]
	if !ok {
		return ScopeRef{}, false
	}
	return ix.Scopes[i].Ref, true
}

// Imports returns every import edge of the file in source order of scopes.
func (ix *Index) Imports() []ImportEdge {
	var out []ImportEdge
	for _, s := range ix.Scopes {
		out = append(out, s.Imports...)
	}
	return out
}
