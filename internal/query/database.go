// Package query implements the incremental computation substrate: a
// database of memoized query results keyed by (jar, query, input), with
// automatic dependency recording and demand-driven red-green revalidation.
//
// # Model
//
// Inputs are set by the driver through [Input.Set]; each set bumps the
// process-wide [Revision]. Derived queries ([Query]) are pure functions of
// inputs and other queries. While a derived query runs, every nested Get it
// performs is recorded as a dependency edge. When a stale memo is requested
// again, its dependencies are re-verified first; if none of them changed
// since the memo was last verified, the memo is marked current without
// running its function. A recomputed value equal to the previous one keeps
// its old changed-at revision (backdating), so dependents stay green.
//
// # Concurrency
//
// Get may be called from many goroutines. Concurrent requests for the same
// key share one execution (single-flight). Independent keys never block each
// other. A top-level Get pins the revision for its whole duration: Set waits
// for in-flight top-level Gets to finish, so one computed value never mixes
// data from two revisions.
//
// Query functions must pass the context they receive to nested Gets; that
// context carries the active frame used for dependency recording and cycle
// detection. A query function must never call [Input.Set] or [Jar.Reset].
package query

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Revision is a monotonically increasing counter over the whole database.
type Revision uint64

// Database owns every memo, dependency edge, and input value. It is the sole
// writer of that state; all access goes through Get/Set.
type Database struct {
	// revMu is read-held by every top-level Get and write-held by mutations.
	revMu sync.RWMutex

	mu          sync.Mutex
	revision    Revision
	jars        map[string]*Jar
	ingredients map[string]ingredient
	waits       map[*runner]*runner

	runners atomic.Uint64
	hook    func(Event)
	logger  *slog.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithEventHook installs a callback invoked for every memo event. The hook
// runs synchronously on the querying goroutine and must not call back into
// the database.
func WithEventHook(hook func(Event)) Option {
	return func(db *Database) {
		db.hook = hook
	}
}

// WithLogger sets the logger used for debug tracing of executions.
func WithLogger(logger *slog.Logger) Option {
	return func(db *Database) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// NewDatabase creates an empty Database at revision 1.
func NewDatabase(opts ...Option) *Database {
	db := &Database{
		revision:    1,
		jars:        make(map[string]*Jar),
		ingredients: make(map[string]ingredient),
		waits:       make(map[*runner]*runner),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Revision returns the current revision.
func (db *Database) Revision() Revision {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.revision
}

// Jar returns the jar with the given name, creating it on first use.
func (db *Database) Jar(name string) *Jar {
	db.mu.Lock()
	defer db.mu.Unlock()
	if j, ok := db.jars[name]; ok {
		return j
	}
	j := &Jar{db: db, name: name, memos: make(map[key]*memo)}
	db.jars[name] = j
	return j
}

// Close drops every memo and input. The Database must not be used afterwards.
func (db *Database) Close() {
	db.revMu.Lock()
	defer db.revMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, j := range db.jars {
		j.memos = make(map[key]*memo)
	}
	db.revision++
}

// register adds an ingredient to the jar. Registration happens at wiring
// time; a duplicate name is a programming error.
func (db *Database) register(j *Jar, ing ingredient) {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := j.name + "." + ing.name()
	if _, dup := db.ingredients[id]; dup {
		panic(fmt.Sprintf("query: %s registered twice", id))
	}
	db.ingredients[id] = ing
	j.queries = append(j.queries, ing.name())
}

// ingredientFor looks up the ingredient that produced k. Caller holds db.mu.
func (db *Database) ingredientFor(k key) ingredient {
	return db.ingredients[k.jar+"."+k.query]
}

func (db *Database) emit(ev Event) {
	if db.hook != nil {
		db.hook(ev)
	}
}

// newRunner allocates an identity for a top-level Get call chain.
func (db *Database) newRunner() *runner {
	return &runner{id: db.runners.Add(1)}
}
