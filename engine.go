package arbor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/viant/afs"

	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/infer"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/runtime"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/source"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/stubs"
	"github.com/jward/arbor/internal/types"
	"github.com/jward/arbor/internal/typing"
)

// Engine is one analysis session. It owns the query database, mounts the
// source, identity, semantic, and type jars on it, and tracks which files
// make up the workspace.
//
// All methods are safe for concurrent use, except that SetInferrer must
// not race with type queries.
type Engine struct {
	db  *query.Database
	src *source.Jar
	ids *identity.Jar
	sem *semantic.Jar
	typ *typing.Jar

	logger   *slog.Logger
	fs       afs.Service
	stubs    fs.FS
	inferrer typing.Inferrer
	join     types.JoinFunc
	workers  int
	exclude  []string
	hook     func(query.Event)

	// dbPath is where the snapshot store lives; empty disables Sync.
	dbPath string
	store  *store.Store

	mu    sync.RWMutex
	files map[source.File]string // workspace file -> module name
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Query events are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStubs layers fsys in front of the bundled standard-library stubs, so
// a project can add or override stub modules.
func WithStubs(fsys fs.FS) Option {
	return func(e *Engine) {
		e.stubs = fsys
	}
}

// WithInferrer replaces the default inference rules.
func WithInferrer(inf Inferrer) Option {
	return func(e *Engine) {
		if inf != nil {
			e.inferrer = inf
		}
	}
}

// WithJoin sets how the types of several reaching bindings combine.
func WithJoin(join types.JoinFunc) Option {
	return func(e *Engine) {
		e.join = join
	}
}

// WithWorkers bounds the goroutines Check and Sync use. Zero or less means
// one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExclude adds glob patterns that LoadDirectory skips. Patterns match
// both a path relative to the root and any single path element.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithEventHook receives every query event.
func WithEventHook(hook func(Event)) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// WithStore opens the snapshot store at dbPath, enabling Sync and Query.
func WithStore(dbPath string) Option {
	return func(e *Engine) {
		e.dbPath = dbPath
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:   slog.New(slog.DiscardHandler),
		fs:       afs.New(),
		inferrer: infer.Rules{},
		files:    make(map[source.File]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(e.dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("arbor: create store dir: %w", err)
		}
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("arbor: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("arbor: migrate: %w", err)
		}
		e.store = s
	}

	dbOpts := []query.Option{query.WithLogger(e.logger)}
	if e.hook != nil {
		dbOpts = append(dbOpts, query.WithEventHook(e.hook))
	}
	e.db = query.NewDatabase(dbOpts...)

	resolver := stubs.Default()
	if e.stubs != nil {
		resolver = stubs.NewResolver(stubs.Overlay(e.stubs, stubs.Bundled()))
	}
	e.src = source.NewJar(e.db, resolver)
	e.ids = identity.NewJar(e.db, e.src)
	e.sem = semantic.NewJar(e.db, e.src)
	e.typ = typing.NewJar(e.db, e.src, e.ids, e.sem, e.inferrer, typing.WithJoin(e.join))
	return e, nil
}

// OptionsFromConfig translates a project configuration into Engine options.
// Relative paths in cfg are taken relative to root.
func OptionsFromConfig(root string, cfg *config.Config, logger *slog.Logger) ([]Option, error) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	opts := []Option{
		WithLogger(logger),
		WithExclude(cfg.Exclude...),
		WithWorkers(cfg.WorkerCount()),
	}
	if cfg.DB != "" {
		opts = append(opts, WithStore(abs(cfg.DB)))
	}
	if cfg.StubsDir != "" {
		opts = append(opts, WithStubs(os.DirFS(abs(cfg.StubsDir))))
	}
	if cfg.InferenceScript != "" {
		script := abs(cfg.InferenceScript)
		rt := runtime.NewRuntime(filepath.Dir(script), runtime.WithRuntimeLogger(logger))
		inf, err := runtime.NewScriptInferrer(rt, filepath.Base(script), infer.Rules{})
		if err != nil {
			return nil, fmt.Errorf("arbor: inference script: %w", err)
		}
		opts = append(opts, WithInferrer(inf))
	}
	return opts, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	e.db.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the snapshot store, or nil if none was configured.
func (e *Engine) Store() *Store {
	return e.store
}

// Revision returns the current database revision.
func (e *Engine) Revision() Revision {
	return e.db.Revision()
}

// SetSource sets the text of a workspace file, adding the file if it is
// new, and returns the revision the edit established.
func (e *Engine) SetSource(f File, text []byte) Revision {
	name := f.ModuleName()
	e.mu.Lock()
	_, known := e.files[f]
	e.files[f] = name
	e.mu.Unlock()

	if !known && name != "" {
		e.src.Modules.Set(name, f)
	}
	return e.src.Text.Set(f, text)
}

// RemoveSource drops a workspace file. Queries that read it see it as
// absent from the next revision on.
func (e *Engine) RemoveSource(f File) Revision {
	e.mu.Lock()
	name, known := e.files[f]
	delete(e.files, f)
	e.mu.Unlock()

	if known && name != "" {
		if cur, err := e.src.Modules.Get(context.Background(), name); err == nil && cur == f {
			e.src.Modules.Remove(name)
		}
	}
	return e.src.Text.Remove(f)
}

// Files returns the workspace files, sorted.
func (e *Engine) Files() []File {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]File, 0, len(e.files))
	for f := range e.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// LoadFiles reads the given paths below root and sets them as workspace
// files named by their slash-separated path relative to root. Files that
// cannot be read are skipped and reported together.
func (e *Engine) LoadFiles(ctx context.Context, root string, paths []string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("arbor: resolve root: %w", err)
	}

	var errs []error
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, p)
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", p, err))
			continue
		}
		text, err := e.fs.DownloadWithURL(ctx, full)
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", p, err))
			continue
		}
		e.SetSource(File(filepath.ToSlash(rel)), text)
	}
	e.logger.Info("loaded files", "root", root, "files", len(paths)-len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("loading had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// LoadDirectory discovers the Python files under root and loads them.
func (e *Engine) LoadDirectory(ctx context.Context, root string) error {
	paths, err := e.Discover(root)
	if err != nil {
		return err
	}
	return e.LoadFiles(ctx, root, paths)
}

// SetInferrer swaps the inference rules. Every memoized type is dropped;
// scope and binding facts are kept.
func (e *Engine) SetInferrer(inf Inferrer) Revision {
	return e.typ.SetInferrer(inf)
}

// Index returns the semantic index of f.
func (e *Engine) Index(ctx context.Context, f File) (*Index, error) {
	return e.sem.Index.Get(ctx, f)
}

// TypeOf returns the type of the node ref names.
func (e *Engine) TypeOf(ctx context.Context, ref NodeRef) (Type, error) {
	return e.typ.TypeOf.Get(ctx, ref)
}

// Model returns the semantic model of f.
func (e *Engine) Model(f File) *SemanticModel {
	return &SemanticModel{engine: e, file: f}
}

// dependencies returns the workspace files f imports, directly or through
// other workspace files, sorted. Stub modules are not included.
func (e *Engine) dependencies(ctx context.Context, f File) ([]File, error) {
	seen := map[File]bool{f: true}
	queue := []File{f}
	var out []File
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		ix, err := e.sem.Index.Get(ctx, cur)
		if errors.Is(err, query.ErrNoInput) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, edge := range ix.Imports() {
			for _, mod := range importedModules(edge) {
				dep, ok, err := e.typ.ResolveImport(ctx, cur, mod, edge.Level)
				if err != nil {
					return nil, err
				}
				if !ok || dep.IsVendored() || seen[dep] {
					continue
				}
				seen[dep] = true
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// importedModules lists the modules an import edge may load: the module
// itself and, for a from-import, the member as a submodule.
func importedModules(edge semantic.ImportEdge) []string {
	mods := []string{edge.Module}
	if edge.Member != "" && edge.Member != "*" {
		if edge.Module == "" {
			mods = append(mods, edge.Member)
		} else {
			mods = append(mods, edge.Module+"."+edge.Member)
		}
	}
	return mods
}
