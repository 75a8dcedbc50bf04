package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnion_FlattensAndDedupes(t *testing.T) {
	t.Parallel()
	i, s := Builtin("int"), Builtin("str")

	assert.Equal(t, Type(Unknown{}), NewUnion())
	assert.Equal(t, Type(i), NewUnion(i, i))

	u := NewUnion(i, NewUnion(s, i), None{})
	assert.Equal(t, "int | str | None", u.String())
	assert.True(t, u.Equal(NewUnion(None{}, s, i)), "unions compare as sets")
	assert.False(t, u.Equal(NewUnion(i, s)))
}

func TestEqual_ByKind(t *testing.T) {
	t.Parallel()
	c := Class{Module: "m", Name: "C"}
	assert.True(t, Equal(Instance{Class: c}, Instance{Class: c}))
	assert.False(t, Equal(Instance{Class: c}, c))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Unknown{}))
	assert.True(t, Equal(
		Function{Name: "f", Returns: Builtin("int")},
		Function{Name: "f", Returns: Builtin("int")},
	))
	assert.False(t, Equal(Function{Name: "f"}, Function{Name: "f", Returns: None{}}))
	assert.True(t, Module{Name: "os"}.Equal(Module{Name: "os"}))
}

func TestString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "int", Builtin("int").String())
	assert.Equal(t, "type[m.C]", Class{Module: "m", Name: "C"}.String())
	assert.Equal(t, "def os.getcwd() -> str", Function{Module: "os", Name: "getcwd", Returns: Builtin("str")}.String())
	assert.Equal(t, "def f() -> Unknown", Function{Name: "f"}.String())
	assert.Equal(t, "module[os.path]", Module{Name: "os.path"}.String())
}

func TestJoinPolicies(t *testing.T) {
	t.Parallel()
	cands := []Type{Builtin("int"), Unknown{}, Builtin("str")}
	assert.Equal(t, "int | Unknown | str", UnionJoin(cands).String())
	assert.Equal(t, "str", LastJoin(cands).String())
	assert.Equal(t, "int | str", KnownUnionJoin(cands).String())
	assert.Equal(t, Type(Unknown{}), KnownUnionJoin([]Type{Unknown{}}))
}
