package spirv

import (
	"testing"

	"github.com/gogpu/wgslc/ir"
	"github.com/gogpu/wgslc/wgsl"
)

// compileShader runs the whole pipeline and fails the test on any stage.
func compileShader(t *testing.T, source string) []uint32 {
	t.Helper()

	module, err := wgsl.Lower(source)
	if err != nil {
		t.Fatalf("front end failed: %v", err)
	}
	if err := ir.Validate(module); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	words, err := Compile(module, DefaultOptions())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(words) < 5 || words[0] != MagicNumber {
		t.Fatalf("output does not start with a SPIR-V header")
	}
	return words
}

type spirvInstruction struct {
	offset    int
	opcode    OpCode
	wordCount int
	words     []uint32
}

// decodeInstructions parses every instruction after the five-word header.
func decodeInstructions(words []uint32) []spirvInstruction {
	var instrs []spirvInstruction
	offset := 5
	for offset < len(words) {
		wc := int(words[offset] >> 16)
		op := OpCode(words[offset] & 0xFFFF)
		if wc == 0 || offset+wc > len(words) {
			break
		}
		instrs = append(instrs, spirvInstruction{
			offset:    offset,
			opcode:    op,
			wordCount: wc,
			words:     words[offset : offset+wc],
		})
		offset += wc
	}
	return instrs
}

func decodeString(words []uint32) string {
	var raw []byte
	for _, w := range words {
		for shift := uint(0); shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return string(raw)
			}
			raw = append(raw, b)
		}
	}
	return string(raw)
}

func collectNames(instrs []spirvInstruction) map[uint32]string {
	names := make(map[uint32]string)
	for _, inst := range instrs {
		if inst.opcode == OpName && inst.wordCount >= 3 {
			names[inst.words[1]] = decodeString(inst.words[2:])
		}
	}
	return names
}

func countOpcode(instrs []spirvInstruction, opcode OpCode) int {
	count := 0
	for _, inst := range instrs {
		if inst.opcode == opcode {
			count++
		}
	}
	return count
}

// findDecorations returns the decorations attached to id as a map from
// decoration to its literal operands.
func findDecorations(instrs []spirvInstruction, id uint32) map[Decoration][]uint32 {
	out := make(map[Decoration][]uint32)
	for _, inst := range instrs {
		if inst.opcode == OpDecorate && inst.wordCount >= 3 && inst.words[1] == id {
			out[Decoration(inst.words[2])] = inst.words[3:]
		}
	}
	return out
}

func findMemberDecorations(instrs []spirvInstruction, id, member uint32) map[Decoration][]uint32 {
	out := make(map[Decoration][]uint32)
	for _, inst := range instrs {
		if inst.opcode == OpMemberDecorate && inst.wordCount >= 4 &&
			inst.words[1] == id && inst.words[2] == member {
			out[Decoration(inst.words[3])] = inst.words[4:]
		}
	}
	return out
}

// findNamedID returns the ID carrying the given OpName, or 0.
func findNamedID(instrs []spirvInstruction, name string) uint32 {
	for id, n := range collectNames(instrs) {
		if n == name {
			return id
		}
	}
	return 0
}

const simpleCompute = `
@group(0) @binding(0) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x] = f32(id.x) * 2.0;
}
`

func TestCompileIsDeterministic(t *testing.T) {
	a := compileShader(t, simpleCompute)
	b := compileShader(t, simpleCompute)
	if len(a) != len(b) {
		t.Fatalf("two compilations differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("word %d differs: %#x vs %#x", i, a[i], b[i])
		}
	}
}

func TestScalarTypesDeclaredOnce(t *testing.T) {
	words := compileShader(t, `
fn mix_up(a: f32, b: f32, c: f32) -> f32 {
	var x: f32 = a + b;
	var y: f32 = b * c;
	if x > y {
		return x - y;
	}
	return y - x;
}

@compute @workgroup_size(1)
fn main() {
	var r = mix_up(1.0, 2.0, 3.0);
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpTypeFloat); n != 1 {
		t.Errorf("OpTypeFloat declared %d times, want 1", n)
	}
	if n := countOpcode(instrs, OpTypeBool); n != 1 {
		t.Errorf("OpTypeBool declared %d times, want 1", n)
	}
}

func TestStorageBufferDecorations(t *testing.T) {
	words := compileShader(t, `
struct Particles {
	transform: mat4x4<f32>,
	positions: array<f32>,
}

@group(1) @binding(2) var<storage, read> particles: Particles;

@compute @workgroup_size(1)
fn main() {
	var n = arrayLength(&particles.positions);
}
`)
	instrs := decodeInstructions(words)

	structID := findNamedID(instrs, "Particles")
	if structID == 0 {
		t.Fatal("struct type carries no debug name")
	}
	structDecs := findDecorations(instrs, structID)
	if _, ok := structDecs[DecorationBlock]; !ok {
		t.Error("storage buffer struct is missing the Block decoration")
	}

	m0 := findMemberDecorations(instrs, structID, 0)
	if off, ok := m0[DecorationOffset]; !ok || off[0] != 0 {
		t.Errorf("member 0 Offset = %v, want [0]", off)
	}
	if _, ok := m0[DecorationColMajor]; !ok {
		t.Error("matrix member is missing ColMajor")
	}
	if stride, ok := m0[DecorationMatrixStride]; !ok || stride[0] != 16 {
		t.Errorf("member 0 MatrixStride = %v, want [16]", stride)
	}
	m1 := findMemberDecorations(instrs, structID, 1)
	if off, ok := m1[DecorationOffset]; !ok || off[0] != 64 {
		t.Errorf("member 1 Offset = %v, want [64]", off)
	}

	// The runtime array carries its stride.
	strideFound := false
	for _, inst := range instrs {
		if inst.opcode == OpDecorate && inst.wordCount >= 4 &&
			Decoration(inst.words[2]) == DecorationArrayStride && inst.words[3] == 4 {
			strideFound = true
		}
	}
	if !strideFound {
		t.Error("no ArrayStride 4 decoration for array<f32>")
	}

	varID := findNamedID(instrs, "particles")
	if varID == 0 {
		t.Fatal("storage variable carries no debug name")
	}
	varDecs := findDecorations(instrs, varID)
	if set, ok := varDecs[DecorationDescriptorSet]; !ok || set[0] != 1 {
		t.Errorf("DescriptorSet = %v, want [1]", set)
	}
	if bnd, ok := varDecs[DecorationBinding]; !ok || bnd[0] != 2 {
		t.Errorf("Binding = %v, want [2]", bnd)
	}
	if _, ok := varDecs[DecorationNonWritable]; !ok {
		t.Error("read-only storage buffer is missing NonWritable")
	}

	if n := countOpcode(instrs, OpArrayLength); n != 1 {
		t.Errorf("OpArrayLength emitted %d times, want 1", n)
	}
}

func TestReadWriteStorageIsWritable(t *testing.T) {
	words := compileShader(t, simpleCompute)
	instrs := decodeInstructions(words)

	varID := findNamedID(instrs, "output")
	if varID == 0 {
		t.Fatal("storage variable carries no debug name")
	}
	if _, ok := findDecorations(instrs, varID)[DecorationNonWritable]; ok {
		t.Error("read_write storage buffer must not be NonWritable")
	}
}

// A storage buffer whose declared type is a bare runtime array gets wrapped
// in a block struct, so arrayLength queries member 0 of the wrapper.
func TestBareArrayBufferIsWrapped(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read> data: array<u32>;

@compute @workgroup_size(1)
fn main() {
	var n = arrayLength(&data);
}
`)
	instrs := decodeInstructions(words)

	varID := findNamedID(instrs, "data")
	if varID == 0 {
		t.Fatal("storage variable carries no debug name")
	}
	found := false
	for _, inst := range instrs {
		if inst.opcode == OpArrayLength && inst.wordCount >= 5 {
			if inst.words[3] != varID {
				t.Errorf("OpArrayLength queries %%%d, want the buffer variable %%%d", inst.words[3], varID)
			}
			if inst.words[4] != 0 {
				t.Errorf("OpArrayLength member = %d, want 0 for a wrapped buffer", inst.words[4])
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no OpArrayLength emitted")
	}

	// The wrapper struct must be a Block.
	blockCount := 0
	for _, inst := range instrs {
		if inst.opcode == OpDecorate && inst.wordCount >= 3 &&
			Decoration(inst.words[2]) == DecorationBlock {
			blockCount++
		}
	}
	if blockCount != 1 {
		t.Errorf("Block decorations = %d, want 1", blockCount)
	}
}

// Indexing with arrayLength(&x) - 1u keeps the length query and the
// subtraction as separate instructions feeding the access chain.
func TestArrayLengthArithmetic(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(1)
fn main() {
	if arrayLength(&data) > 0u {
		data[arrayLength(&data) - 1u] = 7u;
	}
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpArrayLength); n == 0 {
		t.Fatal("no OpArrayLength emitted")
	}
	if n := countOpcode(instrs, OpISub); n != 1 {
		t.Errorf("OpISub = %d, want 1", n)
	}
}

func TestIntegerVectorScalarProduct(t *testing.T) {
	words := compileShader(t, `
fn scale(v: vec2<u32>, s: u32) -> vec2<u32> {
	return v * s;
}

@compute @workgroup_size(1)
fn main() {
	var r = scale(vec2<u32>(1u, 2u), 3u);
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpVectorTimesScalar); n != 0 {
		t.Errorf("OpVectorTimesScalar used on integers %d times, want 0", n)
	}
	if n := countOpcode(instrs, OpIMul); n == 0 {
		t.Error("integer vector*scalar should splat and use OpIMul")
	}
}

func TestMatrixProducts(t *testing.T) {
	words := compileShader(t, `
struct Camera {
	view: mat4x4<f32>,
	proj: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;

fn project(p: vec4<f32>) -> vec4<f32> {
	return camera.proj * camera.view * p;
}

@vertex
fn vs_main(@location(0) pos: vec4<f32>) -> @builtin(position) vec4<f32> {
	return project(pos);
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpMatrixTimesMatrix); n != 1 {
		t.Errorf("OpMatrixTimesMatrix = %d, want 1", n)
	}
	if n := countOpcode(instrs, OpMatrixTimesVector); n != 1 {
		t.Errorf("OpMatrixTimesVector = %d, want 1", n)
	}
}

func TestSaturateUsesFClamp(t *testing.T) {
	words := compileShader(t, `
fn clip(x: f32) -> f32 {
	return saturate(x);
}

@compute @workgroup_size(1)
fn main() {
	var r = clip(2.5);
}
`)
	instrs := decodeInstructions(words)

	found := false
	for _, inst := range instrs {
		if inst.opcode == OpExtInst && inst.wordCount >= 6 &&
			GLSLStd450(inst.words[4]) == GLSLStd450FClamp {
			found = true
		}
	}
	if !found {
		t.Error("saturate should lower to GLSL.std.450 FClamp")
	}
}

func TestTextureSampleEmitsSampledImage(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	return textureSample(tex, samp, uv);
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpSampledImage); n != 1 {
		t.Errorf("OpSampledImage = %d, want 1", n)
	}
	if n := countOpcode(instrs, OpImageSampleImplicitLod); n != 1 {
		t.Errorf("OpImageSampleImplicitLod = %d, want 1", n)
	}
}

func TestBareMatrixBufferIsWrapped(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<uniform> mvp: mat4x4<f32>;

@vertex
fn vs_main(@location(0) pos: vec4<f32>) -> @builtin(position) vec4<f32> {
	return mvp * pos;
}
`)
	instrs := decodeInstructions(words)

	// Exactly one synthesized block wraps the bare matrix.
	var blockID uint32
	blockCount := 0
	for _, inst := range instrs {
		if inst.opcode == OpDecorate && inst.wordCount >= 3 &&
			Decoration(inst.words[2]) == DecorationBlock {
			blockID = inst.words[1]
			blockCount++
		}
	}
	if blockCount != 1 {
		t.Fatalf("Block decorations = %d, want 1", blockCount)
	}

	// A matrix inside a block needs its layout spelled out on the member.
	decos := findMemberDecorations(instrs, blockID, 0)
	if offset, ok := decos[DecorationOffset]; !ok || offset[0] != 0 {
		t.Errorf("member 0 Offset = %v, want [0]", offset)
	}
	if _, ok := decos[DecorationColMajor]; !ok {
		t.Error("member 0 is not decorated ColMajor")
	}
	if stride, ok := decos[DecorationMatrixStride]; !ok || stride[0] != 16 {
		t.Errorf("member 0 MatrixStride = %v, want [16]", stride)
	}
}
