package store

import "time"

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Module      string
	Hash        string
	LastIndexed time.Time
}

// Scope is one node of a file's scope tree. Lines are 1-based and columns
// 0-based byte offsets.
type Scope struct {
	ID            int64
	FileID        int64
	Kind          string
	Name          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}

// Binding is one place a name is bound in a scope.
type Binding struct {
	ID          int64
	ScopeID     int64
	Name        string
	Kind        string
	Line        int
	Col         int
	Conditional bool
}

// Use is one read of a name, with the number of bindings reaching it.
type Use struct {
	ID       int64
	ScopeID  int64
	Name     string
	Line     int
	Col      int
	Reaching int
}

// Diagnostic is one problem reported for a file.
type Diagnostic struct {
	ID      int64
	FileID  int64
	Kind    string
	Name    string
	Message string
	Line    int
	Col     int
}

// Snapshot is everything stored for one file. Within a snapshot, scope IDs
// are caller-chosen negative placeholders: Scope.ParentScopeID,
// Binding.ScopeID and Use.ScopeID refer to them, and they are replaced by
// real IDs on commit.
type Snapshot struct {
	File        File
	Scopes      []Scope
	Bindings    []Binding
	Uses        []Use
	Diagnostics []Diagnostic
}
