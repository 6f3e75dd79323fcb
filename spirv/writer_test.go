package spirv

import "testing"

func TestBuilderHeader(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})
	b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	words := b.Build()

	if len(words) < 5 {
		t.Fatalf("module shorter than its header: %d words", len(words))
	}
	if words[0] != MagicNumber {
		t.Errorf("magic = %#x, want %#x", words[0], MagicNumber)
	}
	if words[1] != 0x00010300 {
		t.Errorf("version word = %#x, want 0x00010300", words[1])
	}
	if words[2] != Generator {
		t.Errorf("generator = %#x, want %#x", words[2], Generator)
	}
	if words[3] != b.bound {
		t.Errorf("bound = %d, want %d", words[3], b.bound)
	}
	if words[4] != 0 {
		t.Errorf("schema = %d, want 0", words[4])
	}
}

func TestInstructionEncoding(t *testing.T) {
	ins := instr(OpMemoryModel, 0, 1)
	words := ins.encode(nil)
	if len(words) != 3 {
		t.Fatalf("encoded length = %d, want 3", len(words))
	}
	want := uint32(3)<<16 | uint32(OpMemoryModel)
	if words[0] != want {
		t.Errorf("head word = %#x, want %#x", words[0], want)
	}
	if words[1] != 0 || words[2] != 1 {
		t.Errorf("operands = %v, want [0 1]", words[1:])
	}
}

func TestEncodeStringTerminatesAndPads(t *testing.T) {
	cases := []struct {
		s     string
		words int
	}{
		{"", 1},
		{"abc", 1},  // three bytes plus NUL fill one word
		{"main", 2}, // four bytes force a second word for the NUL
		{"fs_main", 2},
	}
	for _, tc := range cases {
		got := encodeString(tc.s)
		if len(got) != tc.words {
			t.Errorf("encodeString(%q) = %d words, want %d", tc.s, len(got), tc.words)
			continue
		}
		// The byte after the string must be NUL.
		n := len(tc.s)
		if got[n/4]>>uint(8*(n%4))&0xFF != 0 {
			t.Errorf("encodeString(%q) is not NUL-terminated", tc.s)
		}
	}
}

func TestDeclareTypeDeduplicates(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})

	f32, fresh := b.DeclareType(OpTypeFloat, 32)
	if !fresh {
		t.Error("first float declaration should be fresh")
	}
	again, fresh := b.DeclareType(OpTypeFloat, 32)
	if fresh {
		t.Error("second float declaration should not be fresh")
	}
	if again != f32 {
		t.Errorf("duplicate declaration got id %d, want %d", again, f32)
	}

	u32, _ := b.DeclareType(OpTypeInt, 32, 0)
	i32, _ := b.DeclareType(OpTypeInt, 32, 1)
	if u32 == i32 {
		t.Error("signed and unsigned int must be distinct types")
	}
}

func TestDeclareStructTypeNeverDeduplicates(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})
	f32, _ := b.DeclareType(OpTypeFloat, 32)

	a := b.DeclareStructType([]uint32{f32, f32})
	c := b.DeclareStructType([]uint32{f32, f32})
	if a == c {
		t.Error("identical struct shapes must still get distinct ids")
	}
}

func TestDeclareConstantDeduplicates(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})
	u32, _ := b.DeclareType(OpTypeInt, 32, 0)

	zero := b.DeclareConstant(u32, 0)
	if again := b.DeclareConstant(u32, 0); again != zero {
		t.Errorf("duplicate constant got id %d, want %d", again, zero)
	}
	if one := b.DeclareConstant(u32, 1); one == zero {
		t.Error("distinct values must get distinct ids")
	}

	boolT, _ := b.DeclareType(OpTypeBool)
	tc := b.DeclareBoolConstant(boolT, true)
	fc := b.DeclareBoolConstant(boolT, false)
	if tc == fc {
		t.Error("true and false must be distinct constants")
	}
	if again := b.DeclareBoolConstant(boolT, true); again != tc {
		t.Error("repeated true constant should reuse the first id")
	}
}

func TestImportExtInstSetReusesID(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})
	a := b.ImportExtInstSet("GLSL.std.450")
	c := b.ImportExtInstSet("GLSL.std.450")
	if a != c {
		t.Errorf("second import got id %d, want %d", c, a)
	}
}

func TestBuildSectionOrder(t *testing.T) {
	b := NewBuilder(Version{Major: 1, Minor: 3})
	b.AddCapability(CapabilityShader)
	b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	f32, _ := b.DeclareType(OpTypeFloat, 32)
	b.AddName(f32, "f32")
	b.Decorate(f32, DecorationArrayStride, 4) // nonsense semantically, fine structurally

	words := b.Build()
	var order []OpCode
	for i := 5; i < len(words); {
		op := OpCode(words[i] & 0xFFFF)
		n := int(words[i] >> 16)
		order = append(order, op)
		i += n
	}

	want := []OpCode{OpCapability, OpMemoryModel, OpName, OpDecorate, OpTypeFloat}
	if len(order) != len(want) {
		t.Fatalf("instruction count = %d, want %d (%v)", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("instruction %d = opcode %d, want %d", i, order[i], want[i])
		}
	}
}
