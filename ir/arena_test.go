package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAppendAndLookup(t *testing.T) {
	var a Arena[Type, TypeHandle]

	h0 := a.Append(Type{Name: "f32", Inner: Scalar{Kind: ScalarFloat, Width: 4}})
	h1 := a.Append(Type{Name: "u32", Inner: Scalar{Kind: ScalarUint, Width: 4}})

	assert.Equal(t, TypeHandle(0), h0)
	assert.Equal(t, TypeHandle(1), h1)
	assert.Equal(t, 2, a.Len())

	assert.Equal(t, "f32", a.At(h0).Name)
	assert.Equal(t, "u32", a.Ptr(h1).Name)

	assert.True(t, a.Valid(h1))
	assert.False(t, a.Valid(TypeHandle(2)))
}

func TestArenaAllSharesBacking(t *testing.T) {
	var a Arena[Constant, ConstantHandle]
	h := a.Append(Constant{Name: "zero"})

	a.All()[h].Name = "renamed"
	assert.Equal(t, "renamed", a.At(h).Name)
}

func TestTypeRegistryDeduplicates(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)

	f32 := Scalar{Kind: ScalarFloat, Width: 4}
	a := r.Register("", f32)
	b := r.Register("", f32)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, m.Types.Len())

	v3 := Vector{Size: Vec3, Element: f32}
	va := r.Register("", v3)
	vb := r.Register("", v3)
	assert.Equal(t, va, vb)
	assert.NotEqual(t, a, va)
	assert.Equal(t, 2, m.Types.Len())

	// A different shape gets a fresh handle.
	v4 := r.Register("", Vector{Size: Vec4, Element: f32})
	assert.NotEqual(t, va, v4)
}

func TestTypeRegistryStructuralKeyCoversStructs(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})

	st := Struct{
		Members: []StructMember{{Name: "x", Type: f32, Offset: 0}},
		Span:    4,
	}
	a := r.Register("A", st)
	b := r.Register("A", st)
	assert.Equal(t, a, b)

	got, ok := r.Lookup(st)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestInternConstantDeduplicates(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	u32 := r.Register("", Scalar{Kind: ScalarUint, Width: 4})

	c := Constant{Type: u32, Value: ScalarConstant{Kind: ScalarUint, Bits: 7}}
	a := InternConstant(m, c)
	b := InternConstant(m, c)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, m.Constants.Len())

	other := InternConstant(m, Constant{Type: u32, Value: ScalarConstant{Kind: ScalarUint, Bits: 8}})
	assert.NotEqual(t, a, other)
}
