// Package source holds the per-file inputs of an analysis session: file
// identities, their text, and the parsed module derived from it.
package source

import (
	"path"
	"strings"

	"github.com/jward/arbor/internal/stubs"
)

// VendoredPrefix marks files served by the stub resolver rather than the
// workspace.
const VendoredPrefix = "vendored://"

// File identifies one source file: a workspace path or a vendored stub.
type File string

// VendoredFile returns the File naming a bundled stub.
func VendoredFile(p stubs.Path) File {
	return File(VendoredPrefix + p.String())
}

// IsVendored reports whether f names a bundled stub.
func (f File) IsVendored() bool {
	return strings.HasPrefix(string(f), VendoredPrefix)
}

// VendoredPath returns the stub path of a vendored file.
func (f File) VendoredPath() (stubs.Path, bool) {
	if !f.IsVendored() {
		return stubs.Path{}, false
	}
	p, err := stubs.NewPath(strings.TrimPrefix(string(f), VendoredPrefix))
	if err != nil {
		return stubs.Path{}, false
	}
	return p, true
}

// ModuleName returns the dotted module name of f: "pkg.mod" for
// "pkg/mod.py" or "vendored://pkg/mod.pyi", and "pkg" for a package's
// __init__ file.
func (f File) ModuleName() string {
	p := strings.TrimPrefix(string(f), VendoredPrefix)
	p = strings.TrimSuffix(strings.TrimSuffix(p, ".pyi"), ".py")
	if path.Base(p) == "__init__" {
		p = path.Dir(p)
	}
	if p == "." || p == "" {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

// Package returns the package that relative imports of f resolve against.
// level is the number of leading dots; 1 names the package containing f.
func (f File) Package(level int) string {
	mod := f.ModuleName()
	if base := path.Base(string(f)); base == "__init__.py" || base == "__init__.pyi" {
		// A package's __init__ is its own package.
		level--
	}
	parts := strings.Split(mod, ".")
	if mod == "" {
		parts = nil
	}
	if level > len(parts) {
		return ""
	}
	return strings.Join(parts[:len(parts)-level], ".")
}

func (f File) String() string { return string(f) }
