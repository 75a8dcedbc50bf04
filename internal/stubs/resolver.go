package stubs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrInvalidModule is returned for module names that cannot map to a path.
var ErrInvalidModule = errors.New("stubs: invalid module name")

// Source is one resolved stub module.
type Source struct {
	Module string
	Path   Path
	Text   []byte
}

// Resolver reads stub sources from an immutable filesystem. Reads are
// cached forever; concurrent reads of one path share a single load.
type Resolver struct {
	fsys fs.FS

	group singleflight.Group
	mu    sync.RWMutex
	cache map[Path]entry
}

type entry struct {
	text []byte
	err  error
}

// NewResolver returns a Resolver over fsys. fsys must not change while the
// Resolver is in use.
func NewResolver(fsys fs.FS) *Resolver {
	return &Resolver{fsys: fsys, cache: make(map[Path]entry)}
}

// Read returns the contents of p. Missing files wrap fs.ErrNotExist.
func (r *Resolver) Read(p Path) ([]byte, error) {
	r.mu.RLock()
	e, ok := r.cache[p]
	r.mu.RUnlock()
	if ok {
		return e.text, e.err
	}

	v, err, _ := r.group.Do(p.String(), func() (any, error) {
		r.mu.RLock()
		e, ok := r.cache[p]
		r.mu.RUnlock()
		if ok {
			return e.text, e.err
		}
		text, err := fs.ReadFile(r.fsys, p.String())
		if err != nil {
			err = fmt.Errorf("stubs: read %s: %w", p, err)
		}
		r.mu.Lock()
		r.cache[p] = entry{text: text, err: err}
		r.mu.Unlock()
		return text, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Exists reports whether p names a readable stub file.
func (r *Resolver) Exists(p Path) bool {
	_, err := r.Read(p)
	return err == nil
}

// ModulePaths returns the candidate stub paths for a dotted module name, in
// lookup order: "a/b.pyi" then "a/b/__init__.pyi".
func ModulePaths(module string) ([]Path, error) {
	if module == "" || strings.HasPrefix(module, ".") || strings.HasSuffix(module, ".") || strings.Contains(module, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}
	rel := strings.ReplaceAll(module, ".", "/")
	file, err := NewPath(rel + ".pyi")
	if err != nil {
		return nil, err
	}
	pkg, err := NewPath(rel + "/__init__.pyi")
	if err != nil {
		return nil, err
	}
	return []Path{file, pkg}, nil
}

// Resolve looks up the stub for module. It reports false when no stub
// exists; an error means the module name itself is malformed.
func (r *Resolver) Resolve(module string) (*Source, bool, error) {
	paths, err := ModulePaths(module)
	if err != nil {
		return nil, false, err
	}
	for _, p := range paths {
		text, err := r.Read(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return &Source{Module: module, Path: p, Text: text}, true, nil
	}
	return nil, false, nil
}
