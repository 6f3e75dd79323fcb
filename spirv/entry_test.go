package spirv

import "testing"

type entryPoint struct {
	model ExecutionModel
	fn    uint32
	name  string
	iface []uint32
}

func findEntryPoints(instrs []spirvInstruction) []entryPoint {
	var eps []entryPoint
	for _, inst := range instrs {
		if inst.opcode != OpEntryPoint || inst.wordCount < 4 {
			continue
		}
		name := decodeString(inst.words[3:])
		nameWords := len(name)/4 + 1
		eps = append(eps, entryPoint{
			model: ExecutionModel(inst.words[1]),
			fn:    inst.words[2],
			name:  name,
			iface: inst.words[3+nameWords:],
		})
	}
	return eps
}

func findExecutionModes(instrs []spirvInstruction, fn uint32) map[ExecutionMode][]uint32 {
	out := make(map[ExecutionMode][]uint32)
	for _, inst := range instrs {
		if inst.opcode == OpExecutionMode && inst.wordCount >= 3 && inst.words[1] == fn {
			out[ExecutionMode(inst.words[2])] = inst.words[3:]
		}
	}
	return out
}

// variableStorageClasses maps every module-scope OpVariable ID to its class.
func variableStorageClasses(instrs []spirvInstruction) map[uint32]StorageClass {
	out := make(map[uint32]StorageClass)
	inFunction := false
	for _, inst := range instrs {
		switch inst.opcode {
		case OpFunction:
			inFunction = true
		case OpFunctionEnd:
			inFunction = false
		case OpVariable:
			if !inFunction && inst.wordCount >= 4 {
				out[inst.words[2]] = StorageClass(inst.words[3])
			}
		}
	}
	return out
}

// The entry interface must list exactly the synthesized input and output
// variables: two location inputs and one location output here.
func TestFragmentEntryInterface(t *testing.T) {
	words := compileShader(t, `
@fragment
fn fs_main(@location(0) uv: vec2<f32>, @location(1) tint: vec4<f32>) -> @location(0) vec4<f32> {
	return tint * vec4<f32>(uv, 0.0, 1.0);
}
`)
	instrs := decodeInstructions(words)

	eps := findEntryPoints(instrs)
	if len(eps) != 1 {
		t.Fatalf("entry point count = %d, want 1", len(eps))
	}
	ep := eps[0]
	if ep.model != ExecutionModelFragment {
		t.Errorf("execution model = %d, want Fragment", ep.model)
	}
	if ep.name != "fs_main" {
		t.Errorf("entry name = %q, want fs_main", ep.name)
	}
	if len(ep.iface) != 3 {
		t.Fatalf("interface lists %d variables, want 3", len(ep.iface))
	}

	classes := variableStorageClasses(instrs)
	inputs, outputs := 0, 0
	for _, id := range ep.iface {
		switch classes[id] {
		case StorageClassInput:
			inputs++
		case StorageClassOutput:
			outputs++
		default:
			t.Errorf("interface variable %%%d is not Input or Output", id)
		}
	}
	if inputs != 2 || outputs != 1 {
		t.Errorf("interface has %d inputs and %d outputs, want 2 and 1", inputs, outputs)
	}

	modes := findExecutionModes(instrs, ep.fn)
	if _, ok := modes[ExecutionModeOriginUpperLeft]; !ok {
		t.Error("fragment entry is missing OriginUpperLeft")
	}
}

func TestComputeEntryLocalSize(t *testing.T) {
	words := compileShader(t, `
@compute @workgroup_size(8, 4)
fn main(@builtin(local_invocation_index) idx: u32) {
}
`)
	instrs := decodeInstructions(words)

	eps := findEntryPoints(instrs)
	if len(eps) != 1 {
		t.Fatalf("entry point count = %d, want 1", len(eps))
	}
	ep := eps[0]
	if ep.model != ExecutionModelGLCompute {
		t.Errorf("execution model = %d, want GLCompute", ep.model)
	}

	modes := findExecutionModes(instrs, ep.fn)
	size, ok := modes[ExecutionModeLocalSize]
	if !ok {
		t.Fatal("compute entry is missing LocalSize")
	}
	if len(size) != 3 || size[0] != 8 || size[1] != 4 || size[2] != 1 {
		t.Errorf("LocalSize = %v, want [8 4 1]", size)
	}
}

// A vertex entry returning an interface struct gets one output variable per
// member, split between the position builtin and location outputs.
func TestVertexEntryStructOutput(t *testing.T) {
	words := compileShader(t, `
struct VertexOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) color: vec3<f32>,
}

@vertex
fn vs_main(@location(0) in_pos: vec3<f32>, @location(1) in_color: vec3<f32>) -> VertexOut {
	var out: VertexOut;
	out.pos = vec4<f32>(in_pos, 1.0);
	out.color = in_color;
	return out;
}
`)
	instrs := decodeInstructions(words)

	eps := findEntryPoints(instrs)
	if len(eps) != 1 {
		t.Fatalf("entry point count = %d, want 1", len(eps))
	}
	ep := eps[0]
	if ep.model != ExecutionModelVertex {
		t.Errorf("execution model = %d, want Vertex", ep.model)
	}
	if len(ep.iface) != 4 {
		t.Fatalf("interface lists %d variables, want 4 (two inputs, two outputs)", len(ep.iface))
	}

	classes := variableStorageClasses(instrs)
	outputs := 0
	positionFound := false
	for _, id := range ep.iface {
		if classes[id] != StorageClassOutput {
			continue
		}
		outputs++
		decs := findDecorations(instrs, id)
		if b, ok := decs[DecorationBuiltIn]; ok && BuiltIn(b[0]) == BuiltInPosition {
			positionFound = true
		}
	}
	if outputs != 2 {
		t.Errorf("output variables = %d, want 2", outputs)
	}
	if !positionFound {
		t.Error("no output decorated as the position builtin")
	}

	// Vertex entries get no fragment-only execution modes.
	modes := findExecutionModes(instrs, ep.fn)
	if _, ok := modes[ExecutionModeOriginUpperLeft]; ok {
		t.Error("vertex entry must not carry OriginUpperLeft")
	}
}

func TestFragDepthSetsDepthReplacing(t *testing.T) {
	words := compileShader(t, `
@fragment
fn fs_main() -> @builtin(frag_depth) f32 {
	return 0.5;
}
`)
	instrs := decodeInstructions(words)

	eps := findEntryPoints(instrs)
	if len(eps) != 1 {
		t.Fatalf("entry point count = %d, want 1", len(eps))
	}
	modes := findExecutionModes(instrs, eps[0].fn)
	if _, ok := modes[ExecutionModeDepthReplacing]; !ok {
		t.Error("frag_depth output requires DepthReplacing")
	}
}
