package typing

import (
	"fmt"

	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/semantic"
)

// UnboundNameError reports a use with no binding in its scope chain, in the
// builtins, or behind a wildcard import. It is an analysis result, not a
// failure: callers usually turn it into a diagnostic.
type UnboundNameError struct {
	Name semantic.Name
	Ref  identity.AstNodeRef
}

func (e *UnboundNameError) Error() string {
	return fmt.Sprintf("typing: unbound name %q at %s", e.Name, e.Ref)
}
