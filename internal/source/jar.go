package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jward/arbor/internal/ast"
	"github.com/jward/arbor/internal/query"
	"github.com/jward/arbor/internal/stubs"
)

// JarName is the name of the source jar in the database.
const JarName = "source"

// Jar mounts the source inputs and the parse query.
type Jar struct {
	// Text is the workspace file contents, set by the driver.
	Text *query.Input[File, []byte]
	// Modules maps a dotted module name to the workspace file defining it.
	Modules *query.Input[string, File]

	// Contents is the text of any file, vendored files included.
	Contents *query.Query[File, []byte]
	// Parsed is the immutable syntax tree of a file.
	Parsed *query.Query[File, *ast.Module]

	resolver *stubs.Resolver
}

// NewJar mounts the source jar in db. Vendored files are read from resolver.
func NewJar(db *query.Database, resolver *stubs.Resolver) *Jar {
	j := db.Jar(JarName)
	s := &Jar{
		Text:     query.NewInput[File, []byte](j, "source_text"),
		Modules:  query.NewInput[string, File](j, "module_file"),
		resolver: resolver,
	}
	s.Contents = query.New(j, "contents", s.contents, query.WithEqual(bytes.Equal))
	s.Parsed = query.New(j, "parsed_module", s.parse, query.WithEqual(ast.ModuleEqual))
	return s
}

// Resolver returns the stub resolver backing vendored files.
func (s *Jar) Resolver() *stubs.Resolver { return s.resolver }

func (s *Jar) contents(ctx context.Context, f File) ([]byte, error) {
	if p, ok := f.VendoredPath(); ok {
		text, err := s.resolver.Read(p)
		if err != nil {
			return nil, fmt.Errorf("source: %s: %w", f, err)
		}
		return text, nil
	}
	return s.Text.Get(ctx, f)
}

func (s *Jar) parse(ctx context.Context, f File) (*ast.Module, error) {
	text, err := s.Contents.Get(ctx, f)
	if err != nil {
		return nil, err
	}
	m, err := ast.Parse(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", f, err)
	}
	return m, nil
}
