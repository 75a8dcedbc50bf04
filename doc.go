// Package arbor is the incremental semantic-analysis core of a Python
// static analyzer. It builds per-file scope and symbol information and
// answers "what is the type of this expression" questions, recomputing
// only what an edit actually affects.
//
// # Queries
//
// Every fact is a memoized query in a demand-driven database. Inputs are
// the text of each workspace file and the module-name map; derived queries
// parse files, build semantic indexes, and infer types. Setting an input
// bumps the revision. The next request re-verifies the memos it depends
// on, and a query that recomputes an equal value leaves its dependents
// untouched.
//
// Nodes are addressed by [NodeRef], a file plus a key built from the
// node's kind and byte span. A reference from an older parse keeps working
// as long as the node it names is unchanged.
//
// # Usage
//
//	e, err := arbor.New(arbor.WithStore(".arbor/snapshot.db"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.LoadDirectory(ctx, "path/to/project")
//	diags, err := e.Check(ctx)
//
//	m := e.Model("app/main.py")
//	t, err := m.TypeAtPosition(ctx, 10, 5)
//
// Editors call [Engine.SetSource] for every change and ask again; only the
// queries downstream of the edit recompute.
//
// # Errors
//
// Type queries fail with [*UnboundNameError] when a name has no binding.
// That is an analysis result, and [Engine.Check] turns it into a
// diagnostic. [*StaleReferenceError] means a node reference no longer
// resolves in the current parse, and [*CyclicQueryError] means the
// inference rules asked for a value that depends on itself.
//
// # Inference rules
//
// The rules that type a binding are pluggable through [Inferrer]. The
// default rules live in internal/infer; internal/runtime runs rules written
// as Risor scripts. [Engine.SetInferrer] swaps them at run time and
// discards only the memoized types.
//
// # Snapshots
//
// [Engine.Sync] writes scopes, bindings, uses, and diagnostics to SQLite.
// Across runs, a file whose text and workspace imports are unchanged keeps
// its stored diagnostics without being checked again. [Engine.Query] reads
// the stored facts back.
package arbor
