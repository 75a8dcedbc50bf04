package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// FileByPath returns the stored file at path, or nil if there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, module, hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Module, &f.Hash, &f.LastIndexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every stored file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, module, hash, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Module, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ScopesByFile returns a file's scopes in pre-order.
func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, kind, name, start_line, start_col, end_line, end_col, parent_scope_id
		 FROM scopes WHERE file_id = ? ORDER BY id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()

	var out []*Scope
	for rows.Next() {
		sc := &Scope{}
		var parent sql.NullInt64
		var name sql.NullString
		if err := rows.Scan(&sc.ID, &sc.FileID, &sc.Kind, &name, &sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &parent); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		sc.Name = name.String
		if parent.Valid {
			sc.ParentScopeID = &parent.Int64
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// BindingsByScope returns a scope's bindings in source order.
func (s *Store) BindingsByScope(scopeID int64) ([]*Binding, error) {
	rows, err := s.db.Query(
		"SELECT id, scope_id, name, kind, line, col, conditional FROM bindings WHERE scope_id = ? ORDER BY id", scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("bindings by scope: %w", err)
	}
	defer rows.Close()

	var out []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.ScopeID, &b.Name, &b.Kind, &b.Line, &b.Col, &b.Conditional); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UsesByScope returns a scope's uses in source order.
func (s *Store) UsesByScope(scopeID int64) ([]*Use, error) {
	rows, err := s.db.Query(
		"SELECT id, scope_id, name, line, col, reaching FROM uses WHERE scope_id = ? ORDER BY id", scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("uses by scope: %w", err)
	}
	defer rows.Close()

	var out []*Use
	for rows.Next() {
		u := &Use{}
		if err := rows.Scan(&u.ID, &u.ScopeID, &u.Name, &u.Line, &u.Col, &u.Reaching); err != nil {
			return nil, fmt.Errorf("scan use: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// BindingsByName returns every stored binding of name across files.
func (s *Store) BindingsByName(name string) ([]*Binding, error) {
	rows, err := s.db.Query(
		"SELECT id, scope_id, name, kind, line, col, conditional FROM bindings WHERE name = ? ORDER BY id", name,
	)
	if err != nil {
		return nil, fmt.Errorf("bindings by name: %w", err)
	}
	defer rows.Close()

	var out []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.ScopeID, &b.Name, &b.Kind, &b.Line, &b.Col, &b.Conditional); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DiagnosticsByFile returns a file's diagnostics in position order.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, kind, name, message, line, col FROM diagnostics
		 WHERE file_id = ? ORDER BY line, col, id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()

	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		var name sql.NullString
		if err := rows.Scan(&d.ID, &d.FileID, &d.Kind, &name, &d.Message, &d.Line, &d.Col); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Name = name.String
		out = append(out, d)
	}
	return out, rows.Err()
}
