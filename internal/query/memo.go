package query

import (
	"context"
	"fmt"
)

// key identifies one memo: a query of a jar applied to one input value.
// Inputs must be comparable.
type key struct {
	jar   string
	query string
	input any
}

func (k key) String() string {
	return fmt.Sprintf("%s.%s(%v)", k.jar, k.query, k.input)
}

// ingredient is the type-erased side of Input and Query.
type ingredient interface {
	name() string
	isInput() bool
	execute(ctx context.Context, input any) (any, error)
	equal(a, b any) bool
}

// memo is the stored record for one key. All fields are guarded by db.mu.
type memo struct {
	value any
	err   error
	deps  []key

	// verified is the last revision at which value was known current.
	verified Revision
	// changed is the revision at which value last actually changed.
	changed Revision

	input    bool
	hasValue bool

	// running is non-nil while the memo is being computed or revalidated;
	// it is closed when the owner publishes a result.
	running chan struct{}
	owner   *runner
}

func (m *memo) start(r *runner) {
	m.running = make(chan struct{})
	m.owner = r
}

func (m *memo) finish() {
	close(m.running)
	m.running = nil
	m.owner = nil
}

// runner identifies one top-level Get call chain. Nested Gets inherit the
// runner of their caller.
type runner struct {
	id uint64
}

// result is a snapshot of a memo taken under db.mu.
type result struct {
	value   any
	err     error
	changed Revision
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Error() == b.Error()
}
