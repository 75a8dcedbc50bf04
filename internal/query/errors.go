package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoInput is returned when an input is read before it was ever set.
var ErrNoInput = errors.New("query: input not set")

// CyclicQueryError reports that a query re-entered itself, directly or
// through other queries, before returning. It indicates a bug in a query
// function, never a data problem, and is never memoized.
type CyclicQueryError struct {
	// Cycle lists the participating queries, outermost first; the last
	// entry is the re-entered query.
	Cycle []string
}

func (e *CyclicQueryError) Error() string {
	return "query: cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// IsCycle reports whether err is or wraps a CyclicQueryError.
func IsCycle(err error) bool {
	var ce *CyclicQueryError
	return errors.As(err, &ce)
}

func newCycleError(f *frame, k key) *CyclicQueryError {
	var names []string
	started := false
	for _, fk := range f.path() {
		if fk == k {
			started = true
		}
		if started {
			names = append(names, fk.String())
		}
	}
	if !started {
		// Cross-runner cycle: the re-entered key lives on another goroutine's
		// stack, so report our whole chain.
		for _, fk := range f.path() {
			names = append(names, fk.String())
		}
	}
	names = append(names, k.String())
	return &CyclicQueryError{Cycle: names}
}

func typeMismatch(k key, v any) error {
	return fmt.Errorf("query: %s: stored value has unexpected type %T", k, v)
}
