package wgsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wgslc/ir"
)

func lower(t *testing.T, source string) *ir.Module {
	t.Helper()
	m, err := Lower(source)
	require.NoError(t, err)
	return m
}

func namedFunction(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	for i := range m.Functions.All() {
		fn := m.Functions.Ptr(ir.FunctionHandle(i))
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function named %q", name)
	return nil
}

func TestLowerGlobals(t *testing.T) {
	m := lower(t, `
struct Params {
	scale: f32,
	offset: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> data: array<f32>;
var<private> counter: u32;
`)

	require.Equal(t, 3, m.Globals.Len())

	params := m.Globals.At(0)
	assert.Equal(t, "params", params.Name)
	assert.Equal(t, ir.SpaceUniform, params.Space)
	require.NotNil(t, params.Binding)
	assert.Equal(t, uint32(0), params.Binding.Group)
	assert.Equal(t, uint32(0), params.Binding.Binding)
	_, isStruct := m.Types.At(params.Type).Inner.(ir.Struct)
	assert.True(t, isStruct)

	data := m.Globals.At(1)
	assert.Equal(t, ir.SpaceStorage, data.Space)
	assert.Equal(t, ir.AccessRead|ir.AccessWrite, data.Access)
	require.NotNil(t, data.Binding)
	assert.Equal(t, uint32(1), data.Binding.Binding)
	arr, ok := m.Types.At(data.Type).Inner.(ir.Array)
	require.True(t, ok)
	assert.True(t, arr.Size.IsRuntime())

	counter := m.Globals.At(2)
	assert.Equal(t, ir.SpacePrivate, counter.Space)
	assert.Nil(t, counter.Binding)
}

func TestLowerComputeEntryPoint(t *testing.T) {
	m := lower(t, `
@compute @workgroup_size(8, 4)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`)

	require.Len(t, m.EntryPoints, 1)
	ep := m.EntryPoints[0]
	assert.Equal(t, "main", ep.Name)
	assert.Equal(t, ir.StageCompute, ep.Stage)
	assert.Equal(t, [3]uint32{8, 4, 1}, ep.WorkGroupSize)

	fn := m.Functions.At(ep.Function)
	require.Len(t, fn.Arguments, 1)
	b, ok := fn.Arguments[0].Binding.(ir.BuiltinBinding)
	require.True(t, ok)
	assert.Equal(t, ir.BuiltinGlobalInvocationID, b.Builtin)
}

// A for loop becomes a structured loop whose body starts with the inverted
// condition guarding a break, and whose update lands in the continuing block.
func TestLowerForDesugarsToLoop(t *testing.T) {
	m := lower(t, `
fn count() -> i32 {
	var total: i32 = 0;
	for (var i = 0; i < 4; i++) {
		total += 1;
	}
	return total;
}
`)

	fn := namedFunction(t, m, "count")
	var loop *ir.StmtLoop
	for _, s := range fn.Body {
		if l, ok := s.Kind.(ir.StmtLoop); ok {
			loop = &l
			break
		}
	}
	require.NotNil(t, loop, "for should lower to a loop statement")
	require.NotEmpty(t, loop.Body)

	// The condition guard precedes the user body.
	var guard *ir.StmtIf
	for _, s := range loop.Body {
		if g, ok := s.Kind.(ir.StmtIf); ok {
			guard = &g
			break
		}
	}
	require.NotNil(t, guard)
	assert.Empty(t, guard.Accept)
	require.Len(t, guard.Reject, 1)
	_, isBreak := guard.Reject[0].Kind.(ir.StmtBreak)
	assert.True(t, isBreak)

	require.NotEmpty(t, loop.Continuing, "i++ should land in the continuing block")
	assert.Nil(t, loop.BreakIf)
}

func TestLowerLoopBreakIf(t *testing.T) {
	m := lower(t, `
fn spin() {
	var i: u32 = 0u;
	loop {
		i += 1u;
		continuing {
			break if i > 8u;
		}
	}
}
`)

	fn := namedFunction(t, m, "spin")
	var loop *ir.StmtLoop
	for _, s := range fn.Body {
		if l, ok := s.Kind.(ir.StmtLoop); ok {
			loop = &l
			break
		}
	}
	require.NotNil(t, loop)
	require.NotNil(t, loop.BreakIf)

	cond := fn.Expressions.At(*loop.BreakIf)
	bin, ok := cond.Kind.(ir.ExprBinary)
	require.True(t, ok)
	assert.Equal(t, ir.BinaryGreater, bin.Op)
}

// Compound assignment loads the target, applies the operator, and stores the
// result back through the same pointer.
func TestLowerCompoundAssign(t *testing.T) {
	m := lower(t, `
fn bump() {
	var x: f32 = 1.0;
	x *= 2.0;
}
`)

	fn := namedFunction(t, m, "bump")
	var store *ir.StmtStore
	for i := len(fn.Body) - 1; i >= 0; i-- {
		if s, ok := fn.Body[i].Kind.(ir.StmtStore); ok {
			store = &s
			break
		}
	}
	require.NotNil(t, store)

	bin, ok := fn.Expressions.At(store.Value).Kind.(ir.ExprBinary)
	require.True(t, ok)
	assert.Equal(t, ir.BinaryMultiply, bin.Op)

	load, ok := fn.Expressions.At(bin.Left).Kind.(ir.ExprLoad)
	require.True(t, ok)
	assert.Equal(t, store.Pointer, load.Pointer)
}

// Untyped literals concretize against the declared type of their context.
func TestLowerLiteralConcretization(t *testing.T) {
	m := lower(t, `
fn seed() {
	var a: f32 = 1;
	var b: u32 = 2;
}
`)

	fn := namedFunction(t, m, "seed")
	require.Len(t, fn.LocalVars, 2)

	var stores []ir.StmtStore
	for _, s := range fn.Body {
		if st, ok := s.Kind.(ir.StmtStore); ok {
			stores = append(stores, st)
		}
	}
	require.Len(t, stores, 2)

	litA, ok := fn.Expressions.At(stores[0].Value).Kind.(ir.ExprLiteral)
	require.True(t, ok)
	assert.Equal(t, ir.LiteralF32(1), litA.Value)

	litB, ok := fn.Expressions.At(stores[1].Value).Kind.(ir.ExprLiteral)
	require.True(t, ok)
	assert.Equal(t, ir.LiteralU32(2), litB.Value)
}

// operandHandles lists the expression handles an expression refers to.
func operandHandles(kind ir.ExpressionKind) []ir.ExpressionHandle {
	var hs []ir.ExpressionHandle
	opt := func(h *ir.ExpressionHandle) {
		if h != nil {
			hs = append(hs, *h)
		}
	}
	switch e := kind.(type) {
	case ir.ExprCompose:
		hs = append(hs, e.Components...)
	case ir.ExprAccess:
		hs = append(hs, e.Base, e.Index)
	case ir.ExprAccessIndex:
		hs = append(hs, e.Base)
	case ir.ExprSplat:
		hs = append(hs, e.Value)
	case ir.ExprSwizzle:
		hs = append(hs, e.Vector)
	case ir.ExprLoad:
		hs = append(hs, e.Pointer)
	case ir.ExprUnary:
		hs = append(hs, e.Expr)
	case ir.ExprBinary:
		hs = append(hs, e.Left, e.Right)
	case ir.ExprSelect:
		hs = append(hs, e.Condition, e.Accept, e.Reject)
	case ir.ExprMath:
		hs = append(hs, e.Arg)
		opt(e.Arg1)
		opt(e.Arg2)
		opt(e.Arg3)
	case ir.ExprAs:
		hs = append(hs, e.Expr)
	case ir.ExprArrayLength:
		hs = append(hs, e.Pointer)
	case ir.ExprImageSample:
		hs = append(hs, e.Image, e.Sampler, e.Coordinate)
		opt(e.ArrayIndex)
		opt(e.DepthRef)
	}
	return hs
}

// Every expression may only refer to expressions appended before it.
func TestLowerExpressionsPointBackward(t *testing.T) {
	m := lower(t, `
@group(0) @binding(0) var<storage, read> data: array<vec4<f32>>;

fn brighten(c: vec4<f32>, gain: f32) -> vec4<f32> {
	return vec4<f32>(clamp(c.rgb * gain, vec3<f32>(0.0), vec3<f32>(1.0)), c.a);
}

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	if id.x >= arrayLength(&data) {
		return;
	}
	var c = data[id.x];
	c = brighten(c, f32(id.x) * 0.5);
}
`)

	for fi := range m.Functions.All() {
		fn := m.Functions.At(ir.FunctionHandle(fi))
		for i, expr := range fn.Expressions.All() {
			for _, h := range operandHandles(expr.Kind) {
				assert.Less(t, uint32(h), uint32(i),
					"function %q expression %d refers forward to %d", fn.Name, i, h)
			}
		}
	}
}

func TestLowerErrors(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"unknown identifier", `fn f() -> f32 { return missing; }`},
		{"unknown type", `fn f(x: floof) {}`},
		{"forward call", `fn f() -> f32 { return g(); } fn g() -> f32 { return 1.0; }`},
		{"bad address space", `var<galactic> x: f32;`},
		{"storage access on private", `var<private, read_write> x: f32;`},
		{"f16 extension", "enable f16;\nfn f() {}"},
		{"f16 literal suffix", `fn f() { let x = 1.0h; }`},
		{"f16 type", `fn f(x: f16) {}`},
		{"size attribute below type size", `struct S { @size(2) a: f32, }`},
		{"align attribute not a power of two", `struct S { @align(3) a: f32, }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Lower(tc.source)
			require.Error(t, err)
			var src SourceError
			require.ErrorAs(t, err, &src)
			assert.NotZero(t, src.SourcePos().Line)
		})
	}
}

func TestLowerMatrixTypes(t *testing.T) {
	m := lower(t, `
struct Transforms {
	mvp: mat4x4<f32>,
	normal: mat3x3f,
}

@group(0) @binding(0) var<uniform> transforms: Transforms;
`)

	var st ir.Struct
	found := false
	for _, ty := range m.Types.All() {
		if s, ok := ty.Inner.(ir.Struct); ok {
			st, found = s, true
		}
	}
	require.True(t, found)
	require.Len(t, st.Members, 2)

	mvp, ok := m.Types.At(st.Members[0].Type).Inner.(ir.Matrix)
	require.True(t, ok)
	assert.Equal(t, ir.Vec4, mvp.Columns)
	assert.Equal(t, ir.Vec4, mvp.Rows)
	assert.Equal(t, ir.ScalarFloat, mvp.Element.Kind)

	normal, ok := m.Types.At(st.Members[1].Type).Inner.(ir.Matrix)
	require.True(t, ok)
	assert.Equal(t, ir.Vec3, normal.Columns)
	assert.Equal(t, ir.Vec3, normal.Rows)

	// Both spellings of the same shape share a handle.
	m2 := lower(t, `
@group(0) @binding(0) var<uniform> a: mat4x4<f32>;
@group(0) @binding(1) var<uniform> b: mat4x4f;
`)
	assert.Equal(t, m2.Globals.At(0).Type, m2.Globals.At(1).Type)
}

func TestLowerStructSizeAlign(t *testing.T) {
	m := lower(t, `
struct S {
	@size(16) a: f32,
	b: f32,
	@align(32) c: f32,
}
`)

	var st ir.Struct
	for _, ty := range m.Types.All() {
		if s, ok := ty.Inner.(ir.Struct); ok {
			st = s
		}
	}
	require.Len(t, st.Members, 3)
	assert.Equal(t, uint32(0), st.Members[0].Offset)
	assert.Equal(t, uint32(16), st.Members[1].Offset)
	assert.Equal(t, uint32(32), st.Members[2].Offset)
	assert.Equal(t, uint32(64), st.Span)
}

func TestLowerUnknownNamesAreSyntaxErrors(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"identifier", `fn f() -> f32 { return missing; }`},
		{"type", `fn f(x: floof) {}`},
		{"function", `fn f() { g(); }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Lower(tc.source)
			require.Error(t, err)
			var serr *SyntaxError
			assert.ErrorAs(t, err, &serr)
		})
	}
}
