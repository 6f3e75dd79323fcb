package ir

// Handle types index into the module's arenas. A handle is valid only for
// the arena it was appended to, and handles stored inside arena entries
// always point backward, so every arena is acyclic by construction.
type (
	// TypeHandle indexes Module.Types.
	TypeHandle uint32
	// ConstantHandle indexes Module.Constants.
	ConstantHandle uint32
	// GlobalHandle indexes Module.Globals.
	GlobalHandle uint32
	// FunctionHandle indexes Module.Functions.
	FunctionHandle uint32
	// ExpressionHandle indexes a Function's expression arena.
	ExpressionHandle uint32
	// LocalHandle indexes a Function's LocalVars slice.
	LocalHandle uint32
)

// Arena is an append-only store addressed by a dedicated handle type.
// Entries are never removed, so handles stay stable for the life of the
// module.
type Arena[T any, H ~uint32] struct {
	items []T
}

// Append adds v and returns its handle.
func (a *Arena[T, H]) Append(v T) H {
	a.items = append(a.items, v)
	return H(len(a.items) - 1)
}

// At returns a copy of the entry at h. The handle must be valid.
func (a *Arena[T, H]) At(h H) T {
	return a.items[h]
}

// Ptr returns a pointer to the entry at h for in-place mutation.
func (a *Arena[T, H]) Ptr(h H) *T {
	return &a.items[h]
}

// Valid reports whether h indexes an existing entry.
func (a *Arena[T, H]) Valid(h H) bool {
	return uint32(h) < uint32(len(a.items))
}

// Len is the number of entries.
func (a *Arena[T, H]) Len() int {
	return len(a.items)
}

// All exposes the backing slice for iteration; the index of each element is
// its handle value.
func (a *Arena[T, H]) All() []T {
	return a.items
}
