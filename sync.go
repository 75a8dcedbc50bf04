package arbor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/store"
)

// ErrNoStore is returned by operations that need a snapshot store when the
// Engine was created without WithStore.
var ErrNoStore = errors.New("arbor: no snapshot store configured")

// fingerprintVersion changes whenever what Sync stores for a file changes
// shape, so snapshots from older builds are rewritten.
const fingerprintVersion = "arbor-snapshot-v1"

// SyncResult summarises one Sync.
type SyncResult struct {
	// Diagnostics of every workspace file, stored or fresh, sorted.
	Diagnostics []Diagnostic
	// Written counts files whose snapshot was rewritten.
	Written int
	// Unchanged counts files whose stored snapshot was still current.
	Unchanged int
	// Pruned counts stored files no longer in the workspace.
	Pruned int
}

// Sync brings the snapshot store up to date with the workspace. A file
// whose fingerprint, covering its own text and the text of every workspace
// module it imports transitively, matches the stored one keeps its stored
// diagnostics without being checked. Other files are checked and their
// scopes, bindings, uses, and diagnostics rewritten in one transaction.
// Stored files gone from the workspace are deleted.
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	files := e.Files()
	batch := store.NewBatchedStore()
	results := make([][]Diagnostic, len(files))
	errs := make([]error, len(files))
	var unchanged atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount(len(files)))
	for i, f := range files {
		g.Go(func() error {
			diags, kept, err := e.syncFile(gctx, f, batch)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = fmt.Errorf("sync %s: %w", f, err)
				return nil
			}
			if kept {
				unchanged.Add(1)
			}
			results[i] = diags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.store.CommitBatch(batch); err != nil {
		return nil, fmt.Errorf("arbor: commit snapshots: %w", err)
	}
	pruned, err := e.store.PruneFiles(batch.Paths())
	if err != nil {
		return nil, fmt.Errorf("arbor: prune snapshots: %w", err)
	}

	res := &SyncResult{
		Written:   batch.Len(),
		Unchanged: int(unchanged.Load()),
		Pruned:    pruned,
	}
	for _, d := range results {
		res.Diagnostics = append(res.Diagnostics, d...)
	}
	sortDiagnostics(res.Diagnostics)

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	e.logger.Info("synced snapshot",
		"files", len(files), "written", res.Written,
		"unchanged", res.Unchanged, "pruned", res.Pruned)
	if len(failed) > 0 {
		return res, fmt.Errorf("sync had %d error(s): %w", len(failed), failed[0])
	}
	return res, nil
}

// syncFile reuses the stored snapshot of f when its fingerprint matches,
// and otherwise checks f and buffers a fresh snapshot in batch.
func (e *Engine) syncFile(ctx context.Context, f File, batch *store.BatchedStore) ([]Diagnostic, bool, error) {
	fp, err := e.fingerprint(ctx, f)
	if err != nil {
		return nil, false, err
	}
	existing, err := e.store.FileByPath(string(f))
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == fp {
		stored, err := e.store.DiagnosticsByFile(existing.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load diagnostics: %w", err)
		}
		diags := make([]Diagnostic, len(stored))
		for i, d := range stored {
			diags[i] = Diagnostic{File: f, Line: d.Line, Col: d.Col + 1, Kind: d.Kind, Name: d.Name, Message: d.Message}
		}
		batch.Keep(string(f))
		return diags, true, nil
	}

	diags, err := e.CheckFile(ctx, f)
	if err != nil {
		return nil, false, err
	}
	snap, err := e.snapshot(ctx, f, fp, diags, batch)
	if err != nil {
		return nil, false, err
	}
	batch.Add(snap)
	return diags, false, nil
}

// fingerprint hashes f's text together with the text of the workspace
// files it depends on.
func (e *Engine) fingerprint(ctx context.Context, f File) (string, error) {
	deps, err := e.dependencies(ctx, f)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteString(fingerprintVersion)
	for _, file := range append([]File{f}, deps...) {
		text, err := e.src.Text.Get(ctx, file)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "\x00%s\x00%d\x00", file, len(text))
		buf.Write(text)
	}
	return store.Fingerprint(buf.Bytes()), nil
}

// snapshot flattens the semantic index of f into store rows.
func (e *Engine) snapshot(ctx context.Context, f File, fp string, diags []Diagnostic, batch *store.BatchedStore) (*store.Snapshot, error) {
	m, err := e.src.Parsed.Get(ctx, f)
	if err != nil {
		return nil, err
	}
	ix, err := e.sem.Index.Get(ctx, f)
	if err != nil {
		return nil, err
	}

	snap := &store.Snapshot{
		File: store.File{Path: string(f), Module: f.ModuleName(), Hash: fp, LastIndexed: time.Now()},
	}
	// Positions are stored with 0-based columns.
	pos := func(off int) (int, int) {
		line, col := m.Position(off)
		return line, col - 1
	}

	ids := make(map[semantic.ScopeRef]int64, len(ix.Scopes))
	for _, sc := range ix.Scopes {
		ids[sc.Ref] = batch.FakeScopeID()
	}
	span := func(k identity.NodeKey) (int, int) {
		if k.IsModule() {
			return 0, len(m.Source)
		}
		start, end, _ := identity.Span(k, m)
		return start, end
	}
	for _, sc := range ix.Scopes {
		start, end := span(sc.Ref.Node)
		row := store.Scope{ID: ids[sc.Ref], Kind: sc.Kind.String(), Name: string(sc.Name)}
		row.StartLine, row.StartCol = pos(start)
		row.EndLine, row.EndCol = pos(end)
		if parent, ok := ids[sc.Parent]; ok && !sc.Parent.IsZero() {
			row.ParentScopeID = &parent
		}
		snap.Scopes = append(snap.Scopes, row)

		for _, b := range sc.Bindings {
			off, _ := span(b.Node)
			line, col := pos(off)
			snap.Bindings = append(snap.Bindings, store.Binding{
				ScopeID:     ids[sc.Ref],
				Name:        string(b.Name),
				Kind:        b.Kind.String(),
				Line:        line,
				Col:         col,
				Conditional: b.Conditional,
			})
		}
		for _, u := range sc.Uses {
			off, _ := span(u.Node)
			line, col := pos(off)
			snap.Uses = append(snap.Uses, store.Use{
				ScopeID:  ids[sc.Ref],
				Name:     string(u.Name),
				Line:     line,
				Col:      col,
				Reaching: len(u.Bindings),
			})
		}
	}
	for _, d := range diags {
		snap.Diagnostics = append(snap.Diagnostics, store.Diagnostic{
			Kind: d.Kind, Name: d.Name, Message: d.Message, Line: d.Line, Col: d.Col - 1,
		})
	}
	return snap, nil
}
