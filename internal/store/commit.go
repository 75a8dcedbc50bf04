package store

import (
	"database/sql"
	"fmt"
)

// SaveSnapshot replaces everything stored for snap's file in one
// transaction.
func (s *Store) SaveSnapshot(snap *Snapshot) error {
	b := NewBatchedStore()
	b.Add(snap)
	return s.CommitBatch(b)
}

// CommitBatch writes every buffered snapshot within a single transaction.
// Each file's previous rows are replaced. Fake (negative) scope IDs are
// remapped to real IDs, and all references to them within the snapshot
// are rewritten.
//
// Insert order respects FK dependencies:
//  1. File (upserted by path)
//  2. Scopes (parents before children, as listed)
//  3. Bindings and uses (depend on scope_id)
//  4. Diagnostics (depend on file_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range batch.Snapshots() {
		if err := commitSnapshotTx(tx, snap); err != nil {
			return fmt.Errorf("commit batch: %s: %w", snap.File.Path, err)
		}
	}
	return tx.Commit()
}

func commitSnapshotTx(tx *sql.Tx, snap *Snapshot) error {
	fileID, err := upsertFileTx(tx, &snap.File)
	if err != nil {
		return err
	}
	if err := deleteFileRowsTx(tx, fileID); err != nil {
		return err
	}

	fakeToReal := make(map[int64]int64, len(snap.Scopes))
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("scope id %d not in snapshot (have %d scopes)", id, len(snap.Scopes))
		}
		return realID, nil
	}

	for _, sc := range snap.Scopes {
		sc.FileID = fileID
		if sc.ParentScopeID != nil {
			p, err := remap(*sc.ParentScopeID)
			if err != nil {
				return err
			}
			sc.ParentScopeID = &p
		}
		realID, err := insertScopeTx(tx, &sc)
		if err != nil {
			return fmt.Errorf("scope %s: %w", sc.Kind, err)
		}
		fakeToReal[sc.ID] = realID
	}

	for _, b := range snap.Bindings {
		if b.ScopeID, err = remap(b.ScopeID); err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO bindings (scope_id, name, kind, line, col, conditional) VALUES (?, ?, ?, ?, ?, ?)",
			b.ScopeID, b.Name, b.Kind, b.Line, b.Col, b.Conditional,
		); err != nil {
			return fmt.Errorf("binding %q: %w", b.Name, err)
		}
	}

	for _, u := range snap.Uses {
		if u.ScopeID, err = remap(u.ScopeID); err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO uses (scope_id, name, line, col, reaching) VALUES (?, ?, ?, ?, ?)",
			u.ScopeID, u.Name, u.Line, u.Col, u.Reaching,
		); err != nil {
			return fmt.Errorf("use %q: %w", u.Name, err)
		}
	}

	for _, d := range snap.Diagnostics {
		if _, err := tx.Exec(
			"INSERT INTO diagnostics (file_id, kind, name, message, line, col) VALUES (?, ?, ?, ?, ?, ?)",
			fileID, d.Kind, d.Name, d.Message, d.Line, d.Col,
		); err != nil {
			return fmt.Errorf("diagnostic: %w", err)
		}
	}
	return nil
}

func upsertFileTx(tx *sql.Tx, f *File) (int64, error) {
	var id int64
	err := tx.QueryRow(
		`INSERT INTO files (path, module, hash, last_indexed) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET module = excluded.module, hash = excluded.hash, last_indexed = excluded.last_indexed
		 RETURNING id`,
		f.Path, f.Module, f.Hash, f.LastIndexed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert file: %w", err)
	}
	f.ID = id
	return id, nil
}

func insertScopeTx(tx *sql.Tx, sc *Scope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO scopes (file_id, kind, name, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.FileID, sc.Kind, sc.Name, sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol, sc.ParentScopeID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PruneFiles deletes every stored file whose path is not in keep.
func (s *Store) PruneFiles(keep []string) (int, error) {
	files, err := s.Files()
	if err != nil {
		return 0, err
	}
	kept := make(map[string]bool, len(keep))
	for _, p := range keep {
		kept[p] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("prune files: begin: %w", err)
	}
	defer tx.Rollback()

	n := 0
	for _, f := range files {
		if kept[f.Path] {
			continue
		}
		if err := deleteFileTx(tx, f.ID); err != nil {
			return 0, fmt.Errorf("prune files: %s: %w", f.Path, err)
		}
		n++
	}
	return n, tx.Commit()
}
