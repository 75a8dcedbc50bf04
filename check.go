package arbor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/typing"
)

// Diagnostic kinds.
const (
	KindUnboundName = "unbound-name"
	KindCycle       = "cycle"
	KindSyntax      = "syntax"
)

// Diagnostic is one problem found in a workspace file. Line and Col are
// 1-based.
type Diagnostic struct {
	File    File   `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s [%s]", d.File, d.Line, d.Col, d.Message, d.Kind)
}

func sortDiagnostics(diags []Diagnostic) {
	slices.SortFunc(diags, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Col, b.Col),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
}

// Check types every name use in every workspace file and reports the ones
// with no binding, plus syntax errors and inference cycles. Files are
// checked in parallel; a file whose check fails for any other reason is
// skipped and reported in the returned error, which leaves the diagnostics
// of the other files intact.
func (e *Engine) Check(ctx context.Context) ([]Diagnostic, error) {
	files := e.Files()
	results := make([][]Diagnostic, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount(len(files)))
	for i, f := range files {
		g.Go(func() error {
			diags, err := e.CheckFile(gctx, f)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = fmt.Errorf("check %s: %w", f, err)
				return nil
			}
			results[i] = diags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Diagnostic
	for _, d := range results {
		out = append(out, d...)
	}
	sortDiagnostics(out)

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	e.logger.Info("checked files", "files", len(files), "diagnostics", len(out), "errors", len(failed))
	if len(failed) > 0 {
		return out, fmt.Errorf("checking had %d error(s): %w", len(failed), failed[0])
	}
	return out, nil
}

// CheckFile is Check for a single file.
func (e *Engine) CheckFile(ctx context.Context, f File) ([]Diagnostic, error) {
	m, err := e.src.Parsed.Get(ctx, f)
	if err != nil {
		return nil, err
	}
	ix, err := e.sem.Index.Get(ctx, f)
	if err != nil {
		return nil, err
	}

	var diags []Diagnostic
	if m.HasErrors {
		line, col := m.Position(firstError(m.Root))
		diags = append(diags, Diagnostic{File: f, Line: line, Col: col, Kind: KindSyntax, Message: "syntax error"})
	}

	for _, sc := range ix.Scopes {
		for _, use := range sc.Uses {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ref := identity.AstNodeRef{File: f, Key: use.Node}
			_, err := e.typ.TypeOf.Get(ctx, ref)
			if err == nil {
				continue
			}
			off, _, _ := identity.Span(use.Node, m)
			line, col := m.Position(off)
			d := Diagnostic{File: f, Line: line, Col: col, Name: string(use.Name)}

			var unbound *typing.UnboundNameError
			var cycle *query.CyclicQueryError
			switch {
			case errors.As(err, &unbound):
				d.Kind = KindUnboundName
				d.Message = fmt.Sprintf("name %q is not defined", use.Name)
			case errors.As(err, &cycle):
				d.Kind = KindCycle
				d.Message = fmt.Sprintf("type of %q depends on itself", use.Name)
				e.logger.Warn("inference cycle", "file", f, "name", use.Name, "err", err)
			default:
				return nil, fmt.Errorf("type of %s: %w", ref, err)
			}
			diags = append(diags, d)
		}
	}
	sortDiagnostics(diags)
	return diags, nil
}

// firstError returns the offset of the first ERROR node under n, or 0.
func firstError(n *ast.Node) int {
	off := -1
	ast.Walk(n, func(c *ast.Node) bool {
		if off >= 0 {
			return false
		}
		if c.Kind == "ERROR" {
			off = c.Start
			return false
		}
		return true
	})
	return max(off, 0)
}

func (e *Engine) workerCount(items int) int {
	n := e.workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, items))
}
