package query

import (
	"context"
	"reflect"
)

// Func computes a derived value. It must be a pure function of what it reads
// through ctx: other queries and inputs.
type Func[I comparable, V any] func(ctx context.Context, in I) (V, error)

// Query is a memoized derived function over inputs and other queries.
type Query[I comparable, V any] struct {
	jar  *Jar
	name string
	fn   Func[I, V]
	eq   func(a, b V) bool
}

// QueryOption configures a Query.
type QueryOption[V any] func(*queryConfig[V])

type queryConfig[V any] struct {
	eq func(a, b V) bool
}

// WithEqual sets the equality used for backdating. The default is
// reflect.DeepEqual.
func WithEqual[V any](eq func(a, b V) bool) QueryOption[V] {
	return func(c *queryConfig[V]) {
		c.eq = eq
	}
}

// New registers a derived query named name in jar.
func New[I comparable, V any](jar *Jar, name string, fn Func[I, V], opts ...QueryOption[V]) *Query[I, V] {
	cfg := queryConfig[V]{eq: func(a, b V) bool { return reflect.DeepEqual(a, b) }}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &Query[I, V]{jar: jar, name: name, fn: fn, eq: cfg.eq}
	jar.db.register(jar, derived[I, V]{q})
	return q
}

// Name returns the query's registered name.
func (q *Query[I, V]) Name() string { return q.name }

// Jar returns the jar the query is mounted in.
func (q *Query[I, V]) Jar() *Jar { return q.jar }

// Get returns the value for in at the current revision, computing or
// revalidating it as needed. Called from inside another query function, the
// read is recorded as a dependency of that query.
func (q *Query[I, V]) Get(ctx context.Context, in I) (V, error) {
	var zero V
	v, err := q.jar.db.get(ctx, q.jar, derived[I, V]{q}, in)
	if v == nil {
		return zero, err
	}
	tv, ok := v.(V)
	if !ok {
		return zero, typeMismatch(key{jar: q.jar.name, query: q.name, input: in}, v)
	}
	return tv, err
}

// derived adapts a Query to the type-erased ingredient interface.
type derived[I comparable, V any] struct {
	q *Query[I, V]
}

func (d derived[I, V]) name() string { return d.q.name }
func (derived[I, V]) isInput() bool  { return false }

func (d derived[I, V]) execute(ctx context.Context, input any) (any, error) {
	v, err := d.q.fn(ctx, input.(I))
	return v, err
}

func (d derived[I, V]) equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, aok := a.(V)
	bv, bok := b.(V)
	return aok && bok && d.q.eq(av, bv)
}
