package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCause(t *testing.T, err error, cause ValidationCause) {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, cause, verr.Cause)
}

func emptyFunction(name string) Function {
	return Function{Name: name}
}

func TestValidateEmptyModule(t *testing.T) {
	assert.NoError(t, Validate(&Module{}))
}

func TestValidateComputeEntryPoint(t *testing.T) {
	m := &Module{}
	fh := m.Functions.Append(emptyFunction("main"))
	m.EntryPoints = []EntryPoint{{
		Name:          "main",
		Stage:         StageCompute,
		WorkGroupSize: [3]uint32{64, 1, 1},
		Function:      fh,
	}}
	assert.NoError(t, Validate(m))
}

func TestValidateRejectsZeroWorkgroupDimension(t *testing.T) {
	m := &Module{}
	fh := m.Functions.Append(emptyFunction("main"))
	m.EntryPoints = []EntryPoint{{
		Name:          "main",
		Stage:         StageCompute,
		WorkGroupSize: [3]uint32{64, 0, 1},
		Function:      fh,
	}}
	requireCause(t, Validate(m), CauseEntryPointInterface)
}

func TestValidateStorageGlobalNeedsAccessMode(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	m.Globals.Append(GlobalVariable{
		Name:    "buf",
		Space:   SpaceStorage,
		Type:    f32,
		Binding: &ResourceBinding{Group: 0, Binding: 0},
	})
	requireCause(t, Validate(m), CauseStorageAccess)
}

func TestValidateAccessModeOnlyInStorage(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	m.Globals.Append(GlobalVariable{
		Name:   "p",
		Space:  SpacePrivate,
		Type:   f32,
		Access: AccessRead,
	})
	requireCause(t, Validate(m), CauseStorageAccess)
}

func TestValidateResourceNeedsBinding(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	m.Globals.Append(GlobalVariable{Name: "u", Space: SpaceUniform, Type: f32})
	requireCause(t, Validate(m), CauseMissingBinding)
}

func TestValidateDuplicateBindingRejected(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	slot := ResourceBinding{Group: 0, Binding: 0}
	m.Globals.Append(GlobalVariable{
		Name: "a", Space: SpaceStorage, Type: f32, Access: AccessRead, Binding: &slot,
	})
	m.Globals.Append(GlobalVariable{
		Name: "b", Space: SpaceStorage, Type: f32, Access: AccessRead, Binding: &slot,
	})
	requireCause(t, Validate(m), CauseDuplicateBinding)
}

func TestValidateRuntimeArrayOnlyInStorage(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	f32 := r.Register("", Scalar{Kind: ScalarFloat, Width: 4})
	arr := r.Register("", Array{Element: f32, Size: RuntimeSize(), Stride: 4})
	m.Globals.Append(GlobalVariable{Name: "p", Space: SpacePrivate, Type: arr})
	requireCause(t, Validate(m), CauseStorageAccess)
}

func TestValidateBreakOutsideLoop(t *testing.T) {
	m := &Module{}
	fn := emptyFunction("f")
	fn.Body = Block{{Kind: StmtBreak{}}}
	m.Functions.Append(fn)
	requireCause(t, Validate(m), CauseTypeMismatch)
}

func TestValidateReturnValueFromVoidFunction(t *testing.T) {
	m := &Module{}
	fn := emptyFunction("f")
	h := fn.Expressions.Append(Expression{Kind: ExprLiteral{Value: LiteralF32(1)}})
	fn.Resolved = append(fn.Resolved, ValueRes(Scalar{Kind: ScalarFloat, Width: 4}))
	fn.Body = Block{
		{Kind: StmtEmit{Range: Range{Start: 0, End: 1}}},
		{Kind: StmtReturn{Value: &h}},
	}
	m.Functions.Append(fn)
	requireCause(t, Validate(m), CauseTypeMismatch)
}

func TestValidateExpressionsMustPointBackward(t *testing.T) {
	m := &Module{}
	fn := emptyFunction("f")
	// A load referencing itself.
	h := fn.Expressions.Append(Expression{Kind: ExprLoad{Pointer: 0}})
	_ = h
	fn.Resolved = append(fn.Resolved, ValueRes(Scalar{Kind: ScalarFloat, Width: 4}))
	m.Functions.Append(fn)
	requireCause(t, Validate(m), CauseBadHandle)
}

func TestValidateVertexEntryNeedsPosition(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	v4 := r.Register("", Vector{Size: Vec4, Element: Scalar{Kind: ScalarFloat, Width: 4}})

	fn := emptyFunction("vs")
	fn.Result = &FunctionResult{Type: v4, Binding: LocationBinding{Location: 0}}
	h := fn.Expressions.Append(Expression{Kind: ExprZeroValue{Type: v4}})
	fn.Resolved = append(fn.Resolved, HandleRes(v4))
	fn.Body = Block{
		{Kind: StmtEmit{Range: Range{Start: 0, End: 1}}},
		{Kind: StmtReturn{Value: &h}},
	}
	fh := m.Functions.Append(fn)
	m.EntryPoints = []EntryPoint{{Name: "vs", Stage: StageVertex, Function: fh}}

	requireCause(t, Validate(m), CauseEntryPointInterface)

	// The same module with a position builtin is accepted.
	m.Functions.Ptr(fh).Result.Binding = BuiltinBinding{Builtin: BuiltinPosition}
	assert.NoError(t, Validate(m))
}

func TestValidateEntryArgumentNeedsInterfaceBinding(t *testing.T) {
	m := &Module{}
	r := NewTypeRegistry(m)
	u32 := r.Register("", Scalar{Kind: ScalarUint, Width: 4})

	fn := emptyFunction("cs")
	fn.Arguments = []FunctionArgument{{Name: "idx", Type: u32}}
	fh := m.Functions.Append(fn)
	m.EntryPoints = []EntryPoint{{
		Name: "cs", Stage: StageCompute, WorkGroupSize: [3]uint32{1, 1, 1}, Function: fh,
	}}
	requireCause(t, Validate(m), CauseEntryPointInterface)
}
