package stubs

import (
	"embed"
	"io/fs"
	"sync"
)

//go:embed all:typeshed/stdlib
var bundled embed.FS

// BuiltinsPath is the stub consulted for names with no binding in scope.
var BuiltinsPath = MustPath("builtins.pyi")

var (
	defaultResolver *Resolver
	defaultOnce     sync.Once
)

// Bundled returns the embedded standard-library stub tree.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "typeshed/stdlib")
	if err != nil {
		panic(err)
	}
	return sub
}

// Default returns the shared Resolver over the bundled stubs.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = NewResolver(Bundled())
	})
	return defaultResolver
}
