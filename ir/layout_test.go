package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testModuleTypes() (*Module, *TypeRegistry) {
	m := &Module{}
	return m, NewTypeRegistry(m)
}

func TestScalarAndVectorLayout(t *testing.T) {
	m, r := testModuleTypes()
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})

	assert.Equal(t, Layout{Align: 4, Size: 4}, LayoutOf(m, f32))

	v2 := r.Register("", Vector{Size: Vec2, Element: Scalar{Kind: ScalarFloat, Width: 4}})
	v3 := r.Register("", Vector{Size: Vec3, Element: Scalar{Kind: ScalarFloat, Width: 4}})
	v4 := r.Register("", Vector{Size: Vec4, Element: Scalar{Kind: ScalarFloat, Width: 4}})

	assert.Equal(t, Layout{Align: 8, Size: 8}, LayoutOf(m, v2))
	// vec3 packs three components but aligns like vec4.
	assert.Equal(t, Layout{Align: 16, Size: 12}, LayoutOf(m, v3))
	assert.Equal(t, uint32(16), LayoutOf(m, v3).Stride())
	assert.Equal(t, Layout{Align: 16, Size: 16}, LayoutOf(m, v4))
}

func TestMatrixLayout(t *testing.T) {
	m, r := testModuleTypes()
	mat4 := Matrix{Columns: Vec4, Rows: Vec4, Element: Scalar{Kind: ScalarFloat, Width: 4}}
	h := r.Register("", mat4)

	assert.Equal(t, Layout{Align: 16, Size: 64}, LayoutOf(m, h))
	assert.Equal(t, uint32(16), MatrixStride(mat4))

	// mat2x2 columns are vec2s: 8-byte stride.
	mat2 := Matrix{Columns: Vec2, Rows: Vec2, Element: Scalar{Kind: ScalarFloat, Width: 4}}
	assert.Equal(t, uint32(8), MatrixStride(mat2))
}

func TestArrayLayoutUsesStride(t *testing.T) {
	m, r := testModuleTypes()
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	fixed := r.Register("", Array{Element: f32, Size: FixedSize(8), Stride: 4})
	runtime := r.Register("", Array{Element: f32, Size: RuntimeSize(), Stride: 4})

	assert.Equal(t, Layout{Align: 4, Size: 32}, LayoutOf(m, fixed))
	// Runtime arrays report zero elements; alignment still holds.
	assert.Equal(t, Layout{Align: 4, Size: 0}, LayoutOf(m, runtime))
}

// The canonical storage-buffer shape: a 4x4 matrix followed by a
// runtime-sized float array. The matrix sits at offset 0 and the array
// starts right after its 64 bytes.
func TestStructLayoutBuilderMatrixThenRuntimeArray(t *testing.T) {
	m, r := testModuleTypes()
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	mat := r.Register("", Matrix{Columns: Vec4, Rows: Vec4, Element: Scalar{Kind: ScalarFloat, Width: 4}})
	arr := r.Register("", Array{Element: f32, Size: RuntimeSize(), Stride: 4})

	b := NewStructLayoutBuilder(m)
	assert.Equal(t, uint32(0), b.Add(mat))
	assert.Equal(t, uint32(64), b.Add(arr))
	assert.Equal(t, uint32(64), b.Span())
}

func TestStructLayoutBuilderPadsForAlignment(t *testing.T) {
	m, r := testModuleTypes()
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	v3 := r.Register("", Vector{Size: Vec3, Element: Scalar{Kind: ScalarFloat, Width: 4}})

	b := NewStructLayoutBuilder(m)
	assert.Equal(t, uint32(0), b.Add(f32))
	// vec3 needs 16-byte alignment, so it skips past the leading float.
	assert.Equal(t, uint32(16), b.Add(v3))
	assert.Equal(t, uint32(28), b.Add(f32))
	assert.Equal(t, uint32(32), b.Span())
}
