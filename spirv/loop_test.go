package spirv

import "testing"

// loopShape describes one structured loop found in the instruction stream.
type loopShape struct {
	header     uint32
	merge      uint32
	continuing uint32
}

func findLoops(instrs []spirvInstruction) []loopShape {
	var loops []loopShape
	var current uint32
	for _, inst := range instrs {
		if inst.opcode == OpLabel && inst.wordCount >= 2 {
			current = inst.words[1]
		}
		if inst.opcode == OpLoopMerge && inst.wordCount >= 4 {
			loops = append(loops, loopShape{
				header:     current,
				merge:      inst.words[1],
				continuing: inst.words[2],
			})
		}
	}
	return loops
}

// branchesTo reports whether the block starting at label terminates with a
// branch to target.
func branchesTo(instrs []spirvInstruction, label, target uint32) bool {
	inBlock := false
	for _, inst := range instrs {
		if inst.opcode == OpLabel && inst.wordCount >= 2 {
			if inBlock {
				return false
			}
			inBlock = inst.words[1] == label
			continue
		}
		if !inBlock {
			continue
		}
		switch inst.opcode {
		case OpBranch:
			return inst.words[1] == target
		case OpBranchConditional:
			return inst.words[2] == target || inst.words[3] == target
		case OpReturn, OpReturnValue, OpKill, OpUnreachable:
			return false
		}
	}
	return false
}

// checkLoopShape verifies the invariants every structured loop must hold:
// merge and continue labels exist, the continuing block has the back-edge
// to the header, and something branches to the merge block.
func checkLoopShape(t *testing.T, instrs []spirvInstruction) []loopShape {
	t.Helper()

	labels := make(map[uint32]bool)
	for _, inst := range instrs {
		if inst.opcode == OpLabel && inst.wordCount >= 2 {
			labels[inst.words[1]] = true
		}
	}

	loops := findLoops(instrs)
	if len(loops) == 0 {
		t.Fatal("no OpLoopMerge in output, loop was not emitted")
	}
	for i, loop := range loops {
		if !labels[loop.merge] {
			t.Errorf("loop %d: merge %%%d is not a label", i, loop.merge)
		}
		if !labels[loop.continuing] {
			t.Errorf("loop %d: continue %%%d is not a label", i, loop.continuing)
		}
		if !branchesTo(instrs, loop.continuing, loop.header) {
			t.Errorf("loop %d: continuing block %%%d has no back-edge to header %%%d",
				i, loop.continuing, loop.header)
		}
		exitFound := false
		for _, inst := range instrs {
			switch inst.opcode {
			case OpBranch:
				exitFound = exitFound || inst.words[1] == loop.merge
			case OpBranchConditional:
				exitFound = exitFound || inst.words[2] == loop.merge || inst.words[3] == loop.merge
			}
		}
		if !exitFound {
			t.Errorf("loop %d: nothing branches to merge %%%d", i, loop.merge)
		}
	}
	return loops
}

func TestForLoopStructure(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	var sum: f32 = 0.0;
	for (var i: u32 = 0u; i < 4u; i++) {
		sum = sum + 1.0;
	}
	output[id.x] = sum;
}
`)
	checkLoopShape(t, decodeInstructions(words))
}

func TestNestedLoops(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	var sum: f32 = 0.0;
	for (var i: u32 = 0u; i < 3u; i++) {
		for (var j: u32 = 0u; j < 2u; j++) {
			sum = sum + 1.0;
		}
	}
	output[id.x] = sum;
}
`)
	instrs := decodeInstructions(words)
	loops := checkLoopShape(t, instrs)
	if len(loops) != 2 {
		t.Errorf("loop count = %d, want 2", len(loops))
	}
}

func TestLoopWithEarlyBreakAndContinue(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	var sum: f32 = 0.0;
	for (var i: u32 = 0u; i < 10u; i++) {
		if i == 3u {
			continue;
		}
		if i == 7u {
			break;
		}
		sum = sum + 1.0;
	}
	output[id.x] = sum;
}
`)
	checkLoopShape(t, decodeInstructions(words))
}

// break if lowers to a conditional at the end of the continuing block: the
// true edge leaves through the merge block, the false edge is the back-edge.
func TestLoopBreakIf(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<u32>;

@compute @workgroup_size(1)
fn main() {
	var i: u32 = 0u;
	loop {
		i = i + 1u;
		continuing {
			break if i >= 8u;
		}
	}
	output[0] = i;
}
`)
	instrs := decodeInstructions(words)
	loops := checkLoopShape(t, instrs)
	if len(loops) != 1 {
		t.Fatalf("loop count = %d, want 1", len(loops))
	}
	loop := loops[0]

	// The continuing block must end in OpBranchConditional(cond, merge, header).
	inBlock := false
	for _, inst := range instrs {
		if inst.opcode == OpLabel && inst.wordCount >= 2 {
			inBlock = inst.words[1] == loop.continuing
			continue
		}
		if inBlock && inst.opcode == OpBranchConditional {
			if inst.words[2] != loop.merge {
				t.Errorf("break if true edge goes to %%%d, want merge %%%d", inst.words[2], loop.merge)
			}
			if inst.words[3] != loop.header {
				t.Errorf("break if false edge goes to %%%d, want header %%%d", inst.words[3], loop.header)
			}
			return
		}
	}
	t.Error("continuing block has no OpBranchConditional")
}

func TestWhileLoop(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	var sum: f32 = 0.0;
	var i: u32 = 0u;
	while i < 4u {
		sum = sum + 1.0;
		i = i + 1u;
	}
	output[id.x] = sum;
}
`)
	checkLoopShape(t, decodeInstructions(words))
}

// A loop bounded by min(count, arrayLength) is the canonical safe-iteration
// pattern: the bound computes once before the loop and the uniform scalar
// loads through its block wrapper.
func TestLoopBoundedByBufferLength(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<uniform> count: u32;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(1)
fn main() {
	let n = min(count, arrayLength(&output));
	for (var i: u32 = 0u; i < n; i++) {
		output[i] = f32(i);
	}
}
`)
	instrs := decodeInstructions(words)
	checkLoopShape(t, instrs)

	if n := countOpcode(instrs, OpArrayLength); n != 1 {
		t.Errorf("OpArrayLength = %d, want 1", n)
	}
	// min(u32, u32) is GLSL.std.450 UMin.
	uminFound := false
	for _, inst := range instrs {
		if inst.opcode == OpExtInst && inst.wordCount >= 6 &&
			GLSLStd450(inst.words[4]) == GLSLStd450UMin {
			uminFound = true
		}
	}
	if !uminFound {
		t.Error("min on u32 should lower to GLSL.std.450 UMin")
	}
}

func TestSwitchStructure(t *testing.T) {
	words := compileShader(t, `
@group(0) @binding(0) var<storage, read_write> output: array<u32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	var r: u32 = 0u;
	switch id.x {
		case 0u: { r = 10u; }
		case 1u, 2u: { r = 20u; }
		default: { r = 30u; }
	}
	output[id.x] = r;
}
`)
	instrs := decodeInstructions(words)

	if n := countOpcode(instrs, OpSwitch); n != 1 {
		t.Fatalf("OpSwitch = %d, want 1", n)
	}
	for _, inst := range instrs {
		if inst.opcode != OpSwitch {
			continue
		}
		// words: selector, default, then (literal, label) pairs.
		pairs := (inst.wordCount - 3) / 2
		if pairs != 3 {
			t.Errorf("switch has %d case pairs, want 3", pairs)
		}
	}
	if n := countOpcode(instrs, OpSelectionMerge); n < 1 {
		t.Error("switch needs an OpSelectionMerge")
	}
}
