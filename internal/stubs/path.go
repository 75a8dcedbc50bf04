// Package stubs resolves Python module names to bundled, read-only stub
// sources (.pyi files) through a normalized, slash-separated path space.
package stubs

import (
	"fmt"
	"strings"
)

// Path is a normalized stub path: relative, slash-separated, with no "."
// or ".." components. Compare Paths with ==.
type Path struct {
	p string
}

// UnsupportedPathComponentError reports a path component that has no
// meaning in the stub filesystem, such as a drive prefix, a backslash, or a
// home-directory escape.
type UnsupportedPathComponentError struct {
	Component string
	Path      string
}

func (e *UnsupportedPathComponentError) Error() string {
	return fmt.Sprintf("stubs: unsupported component %q in path %q", e.Component, e.Path)
}

// NewPath normalizes raw. A leading "/" is allowed and dropped, "." is
// skipped, and ".." removes the previous component. ".." at the root is a
// no-op, so a path can never escape the stub root.
func NewPath(raw string) (Path, error) {
	var parts []string
	for _, c := range strings.Split(raw, "/") {
		switch c {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
			continue
		}
		if unsupported(c) {
			return Path{}, &UnsupportedPathComponentError{Component: c, Path: raw}
		}
		parts = append(parts, c)
	}
	return Path{p: strings.Join(parts, "/")}, nil
}

// MustPath is NewPath for constants; it panics on error.
func MustPath(raw string) Path {
	p, err := NewPath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func unsupported(c string) bool {
	switch {
	case strings.HasPrefix(c, "~"):
		return true
	case strings.ContainsAny(c, "\\\x00"):
		return true
	case len(c) >= 2 && c[1] == ':':
		return true
	}
	return false
}

func (p Path) String() string { return p.p }

// IsRoot reports whether p is the empty root path.
func (p Path) IsRoot() bool { return p.p == "" }

// Parts returns the components of p.
func (p Path) Parts() []string {
	if p.p == "" {
		return nil
	}
	return strings.Split(p.p, "/")
}

// Join appends elem, which is normalized relative to p.
func (p Path) Join(elem string) (Path, error) {
	if strings.HasPrefix(elem, "/") {
		return NewPath(elem)
	}
	return NewPath(p.p + "/" + elem)
}

// Dir returns p without its last component.
func (p Path) Dir() Path {
	i := strings.LastIndexByte(p.p, '/')
	if i < 0 {
		return Path{}
	}
	return Path{p: p.p[:i]}
}

// Base returns the last component of p.
func (p Path) Base() string {
	return p.p[strings.LastIndexByte(p.p, '/')+1:]
}
