package ir

import "strconv"

// TypeRegistry interns types into a module's type arena. Registration is
// keyed on a canonical encoding of the shape, so two structurally identical
// types always share one handle. Nested types are encoded by handle, which
// is sound because they were interned first.
type TypeRegistry struct {
	arena *Arena[Type, TypeHandle]
	index map[string]TypeHandle
	buf   []byte // reused between registrations
}

// NewTypeRegistry creates a registry backed by the module's type arena. Any
// types already in the arena are indexed so later registrations dedup
// against them.
func NewTypeRegistry(m *Module) *TypeRegistry {
	r := &TypeRegistry{
		arena: &m.Types,
		index: make(map[string]TypeHandle),
	}
	for i, t := range m.Types.All() {
		r.index[string(r.key(t.Inner))] = TypeHandle(i)
	}
	return r
}

// Register returns the handle for inner, inserting it if no structurally
// identical type exists. A non-empty name is recorded only on first
// insertion; dedup ignores names.
func (r *TypeRegistry) Register(name string, inner TypeInner) TypeHandle {
	k := r.key(inner)
	if h, ok := r.index[string(k)]; ok {
		return h
	}
	h := r.arena.Append(Type{Name: name, Inner: inner})
	r.index[string(k)] = h
	return h
}

// Lookup returns the handle for inner without inserting.
func (r *TypeRegistry) Lookup(inner TypeInner) (TypeHandle, bool) {
	h, ok := r.index[string(r.key(inner))]
	return h, ok
}

func (r *TypeRegistry) key(inner TypeInner) []byte {
	r.buf = appendTypeKey(r.buf[:0], inner)
	return r.buf
}

func appendTypeKey(b []byte, inner TypeInner) []byte {
	switch t := inner.(type) {
	case Scalar:
		b = append(b, 's', byte('0'+t.Kind))
		b = strconv.AppendUint(b, uint64(t.Width), 10)
	case Vector:
		b = append(b, 'v', byte('0'+t.Size))
		b = appendTypeKey(b, t.Element)
	case Matrix:
		b = append(b, 'm', byte('0'+t.Columns), byte('0'+t.Rows))
		b = appendTypeKey(b, t.Element)
	case Array:
		b = append(b, 'a')
		b = strconv.AppendUint(b, uint64(t.Element), 10)
		b = append(b, ':')
		if t.Size.IsRuntime() {
			b = append(b, 'r')
		} else {
			b = strconv.AppendUint(b, uint64(*t.Size.Count), 10)
		}
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(t.Stride), 10)
	case Struct:
		// Struct identity includes member names and offsets: two structs
		// with the same field types but different layout are distinct.
		b = append(b, 't')
		for _, m := range t.Members {
			b = append(b, m.Name...)
			b = append(b, '@')
			b = strconv.AppendUint(b, uint64(m.Offset), 10)
			b = append(b, ':')
			b = strconv.AppendUint(b, uint64(m.Type), 10)
			b = append(b, ';')
		}
	case Pointer:
		b = append(b, 'p', byte('0'+t.Space))
		b = strconv.AppendUint(b, uint64(t.Base), 10)
	case Image:
		b = append(b, 'i', byte('0'+t.Dim), byte('0'+t.Class), byte('0'+t.SampledKind))
		if t.Arrayed {
			b = append(b, 'A')
		}
		if t.Multisampled {
			b = append(b, 'M')
		}
	case Sampler:
		b = append(b, 'S')
		if t.Comparison {
			b = append(b, 'c')
		}
	case FunctionSignature:
		b = append(b, 'f')
		if t.Result != nil {
			b = strconv.AppendUint(b, uint64(*t.Result), 10)
		}
		for _, p := range t.Params {
			b = append(b, ',')
			b = strconv.AppendUint(b, uint64(p), 10)
		}
	}
	return b
}

// InternConstant returns the handle of an existing constant with the same
// type and value, or inserts c. Composite components are compared by
// handle, which suffices because components were interned first.
func InternConstant(m *Module, c Constant) ConstantHandle {
	for i, existing := range m.Constants.All() {
		if existing.Type != c.Type {
			continue
		}
		if constantValueEqual(existing.Value, c.Value) {
			return ConstantHandle(i)
		}
	}
	return m.Constants.Append(c)
}

func constantValueEqual(a, b ConstantValue) bool {
	switch av := a.(type) {
	case ScalarConstant:
		bv, ok := b.(ScalarConstant)
		return ok && av == bv
	case CompositeConstant:
		bv, ok := b.(CompositeConstant)
		if !ok || len(av.Components) != len(bv.Components) {
			return false
		}
		for i := range av.Components {
			if av.Components[i] != bv.Components[i] {
				return false
			}
		}
		return true
	}
	return false
}
