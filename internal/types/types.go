// Package types defines the type values produced by inference. The query
// layer treats them as opaque: it only needs Equal for early cutoff.
package types

import (
	"strings"
)

// Type is an inferred type. Implementations are immutable values.
type Type interface {
	String() string
	Equal(other Type) bool
}

// Equal compares two possibly nil types.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Unknown is the type of anything inference cannot describe.
type Unknown struct{}

func (Unknown) String() string { return "Unknown" }

func (Unknown) Equal(o Type) bool {
	_, ok := o.(Unknown)
	return ok
}

// None is the type of the None singleton.
type None struct{}

func (None) String() string { return "None" }

func (None) Equal(o Type) bool {
	_, ok := o.(None)
	return ok
}

// Class is a class object, e.g. the value bound by a class statement.
type Class struct {
	Module string
	Name   string
}

func (c Class) String() string {
	return "type[" + c.Qualified() + "]"
}

// Qualified returns module.Name, or just Name for builtins.
func (c Class) Qualified() string {
	if c.Module == "" || c.Module == "builtins" {
		return c.Name
	}
	return c.Module + "." + c.Name
}

func (c Class) Equal(o Type) bool {
	oc, ok := o.(Class)
	return ok && oc == c
}

// Instance is an instance of a class.
type Instance struct {
	Class Class
}

func (i Instance) String() string { return i.Class.Qualified() }

func (i Instance) Equal(o Type) bool {
	oi, ok := o.(Instance)
	return ok && oi.Class == i.Class
}

// Function is a function object.
type Function struct {
	Module  string
	Name    string
	Returns Type
}

func (f Function) String() string {
	ret := "Unknown"
	if f.Returns != nil {
		ret = f.Returns.String()
	}
	name := f.Name
	if f.Module != "" && f.Module != "builtins" {
		name = f.Module + "." + f.Name
	}
	return "def " + name + "() -> " + ret
}

func (f Function) Equal(o Type) bool {
	of, ok := o.(Function)
	return ok && of.Module == f.Module && of.Name == f.Name && Equal(of.Returns, f.Returns)
}

// Module is an imported module object.
type Module struct {
	Name string
}

func (m Module) String() string { return "module[" + m.Name + "]" }

func (m Module) Equal(o Type) bool {
	om, ok := o.(Module)
	return ok && om == m
}

// Union is one of several types. Build unions with NewUnion so members are
// flattened and deduplicated.
type Union struct {
	Members []Type
}

func (u Union) String() string {
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// Equal treats unions as sets.
func (u Union) Equal(o Type) bool {
	ou, ok := o.(Union)
	if !ok || len(ou.Members) != len(u.Members) {
		return false
	}
	for _, m := range u.Members {
		if !contains(ou.Members, m) {
			return false
		}
	}
	return true
}

// NewUnion flattens nested unions and drops duplicates, keeping first-seen
// order. A single member is returned as is; no members yields Unknown.
func NewUnion(members ...Type) Type {
	var flat []Type
	for _, m := range members {
		if m == nil {
			continue
		}
		if u, ok := m.(Union); ok {
			for _, um := range u.Members {
				if !contains(flat, um) {
					flat = append(flat, um)
				}
			}
			continue
		}
		if !contains(flat, m) {
			flat = append(flat, m)
		}
	}
	switch len(flat) {
	case 0:
		return Unknown{}
	case 1:
		return flat[0]
	}
	return Union{Members: flat}
}

func contains(ts []Type, t Type) bool {
	for _, x := range ts {
		if x.Equal(t) {
			return true
		}
	}
	return false
}

// Builtin returns an instance of the named builtins class.
func Builtin(name string) Instance {
	return Instance{Class: Class{Module: "builtins", Name: name}}
}

// IsUnknown reports whether t is nil or Unknown.
func IsUnknown(t Type) bool {
	if t == nil {
		return true
	}
	_, ok := t.(Unknown)
	return ok
}
