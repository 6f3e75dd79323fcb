package spirv

import (
	"fmt"
	"strings"
)

// Instruction is a single SPIR-V instruction: an opcode and its operand
// words. The word count is derived at serialization time.
type Instruction struct {
	op    OpCode
	words []uint32
}

func instr(op OpCode, words ...uint32) Instruction {
	return Instruction{op: op, words: words}
}

func (i Instruction) encode(out []uint32) []uint32 {
	head := uint32(len(i.words)+1)<<16 | uint32(i.op)
	out = append(out, head)
	return append(out, i.words...)
}

// encodeString packs a NUL-terminated UTF-8 string into operand words.
func encodeString(s string) []uint32 {
	raw := []byte(s)
	words := make([]uint32, len(raw)/4+1)
	for n, b := range raw {
		words[n/4] |= uint32(b) << uint32(8*(n%4))
	}
	return words
}

// Builder accumulates instructions into the logical sections a valid
// SPIR-V module requires, and serializes them in order. Type and
// constant declarations are deduplicated: declaring the same operands
// twice yields the same result ID.
type Builder struct {
	version Version
	bound   uint32

	capabilities []Instruction
	extImports   []Instruction
	memoryModel  Instruction
	entryPoints  []Instruction
	execModes    []Instruction
	debug        []Instruction
	annotations  []Instruction
	declarations []Instruction
	functions    []Instruction

	capsSeen   map[Capability]bool
	extSets    map[string]uint32
	typeCache  map[string]uint32
	constCache map[string]uint32
}

// NewBuilder returns an empty module builder targeting version.
func NewBuilder(version Version) *Builder {
	return &Builder{
		version:    version,
		bound:      1,
		capsSeen:   make(map[Capability]bool),
		extSets:    make(map[string]uint32),
		typeCache:  make(map[string]uint32),
		constCache: make(map[string]uint32),
	}
}

// AllocID reserves a fresh result ID.
func (b *Builder) AllocID() uint32 {
	id := b.bound
	b.bound++
	return id
}

// AddCapability records a capability, once per distinct value.
func (b *Builder) AddCapability(c Capability) {
	if b.capsSeen[c] {
		return
	}
	b.capsSeen[c] = true
	b.capabilities = append(b.capabilities, instr(OpCapability, uint32(c)))
}

// ImportExtInstSet imports a named extended instruction set and returns
// its ID, reusing a prior import of the same set.
func (b *Builder) ImportExtInstSet(name string) uint32 {
	if id, ok := b.extSets[name]; ok {
		return id
	}
	id := b.AllocID()
	b.extSets[name] = id
	words := append([]uint32{id}, encodeString(name)...)
	b.extImports = append(b.extImports, instr(OpExtInstImport, words...))
	return id
}

// SetMemoryModel records the module-wide addressing and memory model.
func (b *Builder) SetMemoryModel(am AddressingModel, mm MemoryModel) {
	b.memoryModel = instr(OpMemoryModel, uint32(am), uint32(mm))
}

// AddEntryPoint declares an entry point and its interface variables.
func (b *Builder) AddEntryPoint(model ExecutionModel, fn uint32, name string, iface []uint32) {
	words := []uint32{uint32(model), fn}
	words = append(words, encodeString(name)...)
	words = append(words, iface...)
	b.entryPoints = append(b.entryPoints, instr(OpEntryPoint, words...))
}

// AddExecutionMode attaches an execution mode to an entry point.
func (b *Builder) AddExecutionMode(fn uint32, mode ExecutionMode, operands ...uint32) {
	words := append([]uint32{fn, uint32(mode)}, operands...)
	b.execModes = append(b.execModes, instr(OpExecutionMode, words...))
}

// AddName records a debug name for an ID.
func (b *Builder) AddName(target uint32, name string) {
	words := append([]uint32{target}, encodeString(name)...)
	b.debug = append(b.debug, instr(OpName, words...))
}

// AddMemberName records a debug name for a struct member.
func (b *Builder) AddMemberName(target, member uint32, name string) {
	words := append([]uint32{target, member}, encodeString(name)...)
	b.debug = append(b.debug, instr(OpMemberName, words...))
}

// Decorate annotates an ID.
func (b *Builder) Decorate(target uint32, d Decoration, operands ...uint32) {
	words := append([]uint32{target, uint32(d)}, operands...)
	b.annotations = append(b.annotations, instr(OpDecorate, words...))
}

// DecorateMember annotates a struct member.
func (b *Builder) DecorateMember(target, member uint32, d Decoration, operands ...uint32) {
	words := append([]uint32{target, member, uint32(d)}, operands...)
	b.annotations = append(b.annotations, instr(OpMemberDecorate, words...))
}

func cacheKey(op OpCode, words []uint32) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", op)
	for _, w := range words {
		fmt.Fprintf(&sb, ".%d", w)
	}
	return sb.String()
}

// DeclareType declares a type with the given operands, or returns the
// ID of an identical earlier declaration. fresh reports whether a new
// declaration was emitted, so callers can attach decorations exactly
// once.
func (b *Builder) DeclareType(op OpCode, operands ...uint32) (id uint32, fresh bool) {
	key := cacheKey(op, operands)
	if id, ok := b.typeCache[key]; ok {
		return id, false
	}
	id = b.AllocID()
	b.typeCache[key] = id
	words := append([]uint32{id}, operands...)
	b.declarations = append(b.declarations, instr(op, words...))
	return id, true
}

// DeclareStructType declares a struct type. Struct declarations are
// never deduplicated: two structs with the same members may carry
// different decorations.
func (b *Builder) DeclareStructType(members []uint32) uint32 {
	id := b.AllocID()
	words := append([]uint32{id}, members...)
	b.declarations = append(b.declarations, instr(OpTypeStruct, words...))
	return id
}

// DeclareConstant declares a scalar constant of the given type, reusing
// an identical earlier declaration.
func (b *Builder) DeclareConstant(typeID uint32, value ...uint32) uint32 {
	return b.declareConst(OpConstant, typeID, value)
}

// DeclareBoolConstant declares a boolean constant.
func (b *Builder) DeclareBoolConstant(typeID uint32, v bool) uint32 {
	op := OpConstantFalse
	if v {
		op = OpConstantTrue
	}
	return b.declareConst(op, typeID, nil)
}

// DeclareCompositeConstant declares a composite constant from
// previously declared constituent IDs.
func (b *Builder) DeclareCompositeConstant(typeID uint32, parts []uint32) uint32 {
	return b.declareConst(OpConstantComposite, typeID, parts)
}

// DeclareNullConstant declares the zero value of a type.
func (b *Builder) DeclareNullConstant(typeID uint32) uint32 {
	return b.declareConst(OpConstantNull, typeID, nil)
}

func (b *Builder) declareConst(op OpCode, typeID uint32, operands []uint32) uint32 {
	key := cacheKey(op, append([]uint32{typeID}, operands...))
	if id, ok := b.constCache[key]; ok {
		return id
	}
	id := b.AllocID()
	b.constCache[key] = id
	words := append([]uint32{typeID, id}, operands...)
	b.declarations = append(b.declarations, instr(op, words...))
	return id
}

// AddGlobalVariable declares a module-scope variable of the given
// pointer type, optionally with an initializer constant.
func (b *Builder) AddGlobalVariable(ptrType uint32, class StorageClass, init uint32) uint32 {
	id := b.AllocID()
	words := []uint32{ptrType, id, uint32(class)}
	if init != 0 {
		words = append(words, init)
	}
	b.declarations = append(b.declarations, instr(OpVariable, words...))
	return id
}

// FuncInstr appends an instruction to the function section verbatim.
// Result IDs are the caller's responsibility; this keeps branch targets
// and their labels under one allocation scheme.
func (b *Builder) FuncInstr(op OpCode, words ...uint32) {
	b.functions = append(b.functions, instr(op, words...))
}

// FuncResult appends a result-producing instruction of the form
// (op, resultType, resultID, operands...) and returns the fresh ID.
func (b *Builder) FuncResult(op OpCode, resultType uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	words := append([]uint32{resultType, id}, operands...)
	b.functions = append(b.functions, instr(op, words...))
	return id
}

// Build serializes the module: the five-word header followed by each
// section in the order the binary format requires.
func (b *Builder) Build() []uint32 {
	out := make([]uint32, 0, 5+4*len(b.declarations)+4*len(b.functions))
	out = append(out, MagicNumber, b.version.Word(), Generator, b.bound, 0)
	for _, sec := range [][]Instruction{
		b.capabilities,
		b.extImports,
		{b.memoryModel},
		b.entryPoints,
		b.execModes,
		b.debug,
		b.annotations,
		b.declarations,
		b.functions,
	} {
		for _, ins := range sec {
			if ins.op == OpNop {
				continue
			}
			out = ins.encode(out)
		}
	}
	return out
}
