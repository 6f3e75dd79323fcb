package ir

// Layout is the byte alignment and size of a type under the host-shareable
// layout rules the front end and back end agree on.
type Layout struct {
	Align uint32
	Size  uint32
}

// Stride returns the array stride for elements of this layout.
func (l Layout) Stride() uint32 {
	return alignUp(l.Size, l.Align)
}

func alignUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// LayoutOf computes the layout of the type behind h. Runtime-sized arrays
// report the size of zero elements; their wrapping struct still aligns the
// member correctly.
func LayoutOf(m *Module, h TypeHandle) Layout {
	return layoutOfInner(m, m.Types.At(h).Inner)
}

func layoutOfInner(m *Module, inner TypeInner) Layout {
	switch t := inner.(type) {
	case Scalar:
		w := uint32(t.Width)
		return Layout{Align: w, Size: w}
	case Vector:
		elem := uint32(t.Element.Width)
		switch t.Size {
		case Vec2:
			return Layout{Align: 2 * elem, Size: 2 * elem}
		case Vec3:
			// vec3 aligns like vec4 but occupies three elements.
			return Layout{Align: 4 * elem, Size: 3 * elem}
		default:
			return Layout{Align: 4 * elem, Size: 4 * elem}
		}
	case Matrix:
		col := layoutOfInner(m, Vector{Size: t.Rows, Element: t.Element})
		stride := col.Stride()
		return Layout{Align: col.Align, Size: stride * uint32(t.Columns)}
	case Array:
		elem := LayoutOf(m, t.Element)
		stride := t.Stride
		if stride == 0 {
			stride = elem.Stride()
		}
		count := uint32(0)
		if !t.Size.IsRuntime() {
			count = *t.Size.Count
		}
		return Layout{Align: elem.Align, Size: stride * count}
	case Struct:
		var align uint32 = 1
		var end uint32
		for _, member := range t.Members {
			ml := LayoutOf(m, member.Type)
			if ml.Align > align {
				align = ml.Align
			}
			if e := member.Offset + ml.Size; e > end {
				end = e
			}
		}
		// Span carries @size/@align padding the members alone cannot show.
		if t.Span > end {
			end = t.Span
		}
		return Layout{Align: align, Size: alignUp(end, align)}
	case Pointer, Image, Sampler, FunctionSignature:
		// Not host-shareable; no layout.
		return Layout{Align: 1}
	}
	return Layout{Align: 1}
}

// MatrixStride returns the byte stride between columns of a matrix member.
func MatrixStride(t Matrix) uint32 {
	col := Vector{Size: t.Rows, Element: t.Element}
	l := layoutOfInner(nil, col)
	return l.Stride()
}

// StructLayoutBuilder assigns member offsets in declaration order following
// the layout rules, producing the struct's span.
type StructLayoutBuilder struct {
	module *Module
	offset uint32
	align  uint32
}

// NewStructLayoutBuilder creates a builder for m.
func NewStructLayoutBuilder(m *Module) *StructLayoutBuilder {
	return &StructLayoutBuilder{module: m, align: 1}
}

// Add places a member of the given type and returns its byte offset.
func (b *StructLayoutBuilder) Add(t TypeHandle) uint32 {
	return b.AddAnnotated(t, 0, 0)
}

// AddAnnotated places a member whose alignment or size is overridden by a
// layout attribute; zero keeps the natural value.
func (b *StructLayoutBuilder) AddAnnotated(t TypeHandle, align, size uint32) uint32 {
	l := LayoutOf(b.module, t)
	if align != 0 {
		l.Align = align
	}
	if size != 0 {
		l.Size = size
	}
	off := alignUp(b.offset, l.Align)
	b.offset = off + l.Size
	if l.Align > b.align {
		b.align = l.Align
	}
	return off
}

// Span returns the struct's total size, rounded to its alignment.
func (b *StructLayoutBuilder) Span() uint32 {
	return alignUp(b.offset, b.align)
}
