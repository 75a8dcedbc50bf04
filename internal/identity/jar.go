package identity

import (
	"context"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/source"
)

// JarName is the name of the identity jar in the database.
const JarName = "identity"

// Jar mounts the node resolution query.
type Jar struct {
	// Node resolves a handle to its subtree in the current parse. The
	// subtree is compared structurally, so edits elsewhere in the file
	// backdate it.
	Node *query.Query[AstNodeRef, *ast.Node]

	src *source.Jar
}

// NewJar mounts the identity jar in db.
func NewJar(db *query.Database, src *source.Jar) *Jar {
	j := &Jar{src: src}
	j.Node = query.New(db.Jar(JarName), "resolve_node", j.resolve, query.WithEqual(ast.Equal))
	return j
}

func (j *Jar) resolve(ctx context.Context, ref AstNodeRef) (*ast.Node, error) {
	m, err := j.src.Parsed.Get(ctx, ref.File)
	if err != nil {
		return nil, err
	}
	return Resolve(ref, m)
}
