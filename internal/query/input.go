package query

import (
	"context"
	"fmt"
)

// Input is an externally supplied value per key I, such as a file's text.
// Only the driver writes inputs; queries read them through Get, which
// records the read as a dependency.
type Input[I comparable, V any] struct {
	jar  *Jar
	name string
}

// NewInput registers an input named name in jar.
func NewInput[I comparable, V any](jar *Jar, name string) *Input[I, V] {
	in := &Input[I, V]{jar: jar, name: name}
	jar.db.register(jar, inputIngredient{id: name})
	return in
}

// Name returns the input's registered name.
func (in *Input[I, V]) Name() string { return in.name }

// Set stores value for id, bumps the revision, and returns it. Dependents
// are not touched; they re-verify the next time they are requested. Set
// blocks until in-flight top-level Gets finish.
func (in *Input[I, V]) Set(id I, value V) Revision {
	db := in.jar.db
	db.revMu.Lock()
	defer db.revMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	db.revision++
	k := in.key(id)
	m, ok := in.jar.memos[k]
	if !ok {
		m = &memo{input: true}
		in.jar.memos[k] = m
	}
	m.value = value
	m.err = nil
	m.hasValue = true
	m.changed = db.revision
	m.verified = db.revision
	db.emit(eventFor(EventSet, k, db.revision))
	return db.revision
}

// Remove drops the value for id and bumps the revision. Queries that read
// it fail with ErrNoInput on their next request.
func (in *Input[I, V]) Remove(id I) Revision {
	db := in.jar.db
	db.revMu.Lock()
	defer db.revMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	db.revision++
	k := in.key(id)
	in.jar.memos[k] = absent(k, db.revision)
	db.emit(eventFor(EventSet, k, db.revision))
	return db.revision
}

// absent is the memo of an input that has no value at rev.
func absent(k key, rev Revision) *memo {
	return &memo{
		input:    true,
		hasValue: true,
		err:      fmt.Errorf("%w: %s", ErrNoInput, k),
		changed:  rev,
		verified: rev,
	}
}

// Get returns the current value for id.
func (in *Input[I, V]) Get(ctx context.Context, id I) (V, error) {
	var zero V
	v, err := in.jar.db.get(ctx, in.jar, inputIngredient{id: in.name}, id)
	if err != nil || v == nil {
		return zero, err
	}
	tv, ok := v.(V)
	if !ok {
		return zero, typeMismatch(in.key(id), v)
	}
	return tv, nil
}

func (in *Input[I, V]) key(k I) key {
	return key{jar: in.jar.name, query: in.name, input: k}
}

type inputIngredient struct {
	id string
}

func (i inputIngredient) name() string { return i.id }
func (inputIngredient) isInput() bool  { return true }

func (i inputIngredient) execute(context.Context, any) (any, error) {
	return nil, fmt.Errorf("query: input %s cannot be executed", i.id)
}

func (inputIngredient) equal(a, b any) bool { return false }
