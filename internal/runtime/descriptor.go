package runtime

import (
	"fmt"
	"strings"

	"github.com/jward/arbor/internal/types"
)

// Scripts exchange types as descriptor strings:
//
//	unknown             types.Unknown
//	none                types.None
//	int                 an instance of a builtins class
//	instance:pkg.mod.C  an instance of pkg.mod.C
//	class:pkg.mod.C     the class object itself
//	function:pkg.mod.f  a function with an unknown return type
//	module:pkg.mod      a module object
//	int | none          a union of the above

// ParseDescriptor reads a type descriptor.
func ParseDescriptor(desc string) (types.Type, error) {
	parts := strings.Split(desc, "|")
	members := make([]types.Type, 0, len(parts))
	for _, p := range parts {
		t, err := parseOne(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("runtime: descriptor %q: %w", desc, err)
		}
		members = append(members, t)
	}
	return types.NewUnion(members...), nil
}

func parseOne(d string) (types.Type, error) {
	switch d {
	case "":
		return nil, fmt.Errorf("empty member")
	case "unknown":
		return types.Unknown{}, nil
	case "none":
		return types.None{}, nil
	}
	tag, rest, ok := strings.Cut(d, ":")
	if !ok {
		if !isIdent(d) {
			return nil, fmt.Errorf("invalid builtin %q", d)
		}
		return types.Builtin(d), nil
	}
	if rest == "" {
		return nil, fmt.Errorf("missing name after %q", tag)
	}
	switch tag {
	case "module":
		return types.Module{Name: rest}, nil
	case "class":
		return qualified(rest), nil
	case "instance":
		return types.Instance{Class: qualified(rest)}, nil
	case "function":
		c := qualified(rest)
		return types.Function{Module: c.Module, Name: c.Name, Returns: types.Unknown{}}, nil
	}
	return nil, fmt.Errorf("unknown tag %q", tag)
}

func qualified(q string) types.Class {
	i := strings.LastIndexByte(q, '.')
	if i < 0 {
		return types.Class{Module: "builtins", Name: q}
	}
	return types.Class{Module: q[:i], Name: q[i+1:]}
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

// FormatDescriptor writes t as a descriptor. Function return types are
// not carried.
func FormatDescriptor(t types.Type) string {
	switch t := t.(type) {
	case types.None:
		return "none"
	case types.Instance:
		if t.Class.Module == "builtins" {
			return t.Class.Name
		}
		return "instance:" + t.Class.Qualified()
	case types.Class:
		return "class:" + t.Module + "." + t.Name
	case types.Function:
		return "function:" + t.Module + "." + t.Name
	case types.Module:
		return "module:" + t.Name
	case types.Union:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = FormatDescriptor(m)
		}
		return strings.Join(parts, " | ")
	}
	return "unknown"
}
