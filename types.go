package arbor

import (
	"github.com/jward/arbor/internal/identity"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/semantic"
	"github.com/jward/arbor/internal/source"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/types"
	"github.com/jward/arbor/internal/typing"
)

// Public type aliases for the internal types that appear in the Engine
// API. They are identical to the internal types; no conversion is needed.

type File = source.File
type NodeRef = identity.AstNodeRef
type Revision = query.Revision
type Event = query.Event
type Index = semantic.Index
type Scope = semantic.Scope
type Binding = semantic.Binding
type Type = types.Type
type Inferrer = typing.Inferrer
type Request = typing.Request
type Store = store.Store

// Error types surfaced by type queries, for use with errors.As.
type (
	StaleReferenceError = identity.StaleReferenceError
	CyclicQueryError    = query.CyclicQueryError
	UnboundNameError    = typing.UnboundNameError
)
