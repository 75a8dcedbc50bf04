package arbor

import (
	"fmt"

	"github.com/jward/arbor/internal/store"
)

// QueryBuilder reads the facts last written by Sync. Its answers describe
// the workspace as of that Sync, not the Engine's current revision.
type QueryBuilder struct {
	store *store.Store
}

// Location is a source position. Line and Col are 1-based.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// Definition is one stored binding of a name.
type Definition struct {
	Location
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Scope       string `json:"scope"`
	Conditional bool   `json:"conditional,omitempty"`
}

// Reference is one stored use of a name.
type Reference struct {
	Location
	Name string `json:"name"`
	// Reaching is the number of bindings that may supply the value read.
	Reaching int `json:"reaching"`
}

// ScopeSpan is one stored scope with its extent.
type ScopeSpan struct {
	Kind  string   `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Start Location `json:"start"`
	End   Location `json:"end"`
}

// Query returns a QueryBuilder over the snapshot store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// DefinitionsOf returns every stored binding of name, ordered by file and
// position.
func (q *QueryBuilder) DefinitionsOf(name string) ([]Definition, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	rows, err := q.store.DB().Query(
		`SELECT f.path, b.line, b.col, b.name, b.kind, s.kind, b.conditional
		 FROM bindings b
		 JOIN scopes s ON s.id = b.scope_id
		 JOIN files f ON f.id = s.file_id
		 WHERE b.name = ?
		 ORDER BY f.path, b.line, b.col`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions of: %w", err)
	}
	defer rows.Close()

	var out []Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.File, &d.Line, &d.Col, &d.Name, &d.Kind, &d.Scope, &d.Conditional); err != nil {
			return nil, fmt.Errorf("definitions of: scan: %w", err)
		}
		d.Col++
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("definitions of: rows: %w", err)
	}
	return out, nil
}

// ReferencesTo returns every stored use of name, ordered by file and
// position.
func (q *QueryBuilder) ReferencesTo(name string) ([]Reference, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	rows, err := q.store.DB().Query(
		`SELECT f.path, u.line, u.col, u.name, u.reaching
		 FROM uses u
		 JOIN scopes s ON s.id = u.scope_id
		 JOIN files f ON f.id = s.file_id
		 WHERE u.name = ?
		 ORDER BY f.path, u.line, u.col`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.File, &r.Line, &r.Col, &r.Name, &r.Reaching); err != nil {
			return nil, fmt.Errorf("references to: scan: %w", err)
		}
		r.Col++
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("references to: rows: %w", err)
	}
	return out, nil
}

// Diagnostics returns the stored diagnostics of path, or nil if the file
// was never synced.
func (q *QueryBuilder) Diagnostics(path string) ([]Diagnostic, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	stored, err := q.store.DiagnosticsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	out := make([]Diagnostic, len(stored))
	for i, d := range stored {
		out[i] = Diagnostic{File: File(path), Line: d.Line, Col: d.Col + 1, Kind: d.Kind, Name: d.Name, Message: d.Message}
	}
	return out, nil
}

// ScopeAt returns the innermost stored scope of path containing the
// 1-based position, or nil if there is none.
func (q *QueryBuilder) ScopeAt(path string, line, col int) (*ScopeSpan, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("scope at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	scopes, err := q.store.ScopesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}

	col-- // stored columns are 0-based
	// Scopes are in pre-order, so the last one containing the position is
	// the innermost.
	var best *store.Scope
	for _, s := range scopes {
		if spanContains(s, line, col) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	return &ScopeSpan{
		Kind:  best.Kind,
		Name:  best.Name,
		Start: Location{File: path, Line: best.StartLine, Col: best.StartCol + 1},
		End:   Location{File: path, Line: best.EndLine, Col: best.EndCol + 1},
	}, nil
}

func spanContains(s *store.Scope, line, col int) bool {
	if line < s.StartLine || line > s.EndLine {
		return false
	}
	if line == s.StartLine && col < s.StartCol {
		return false
	}
	if line == s.EndLine && col > s.EndCol {
		return false
	}
	return true
}

// Files returns the paths of every synced file.
func (q *QueryBuilder) Files() ([]string, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out, nil
}
