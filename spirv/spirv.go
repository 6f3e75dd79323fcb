// Package spirv lowers a validated IR module into a SPIR-V binary.
//
// Emission is two-pass: declarations (capabilities, types, constants,
// global variables, entry-point interfaces) are gathered into ordered
// sections first, then function bodies are written. Types and constants
// are deduplicated at the binary level so structurally identical
// declarations share a single result ID.
package spirv

import "github.com/gogpu/wgslc/ir"

// MagicNumber identifies a SPIR-V binary module.
const MagicNumber uint32 = 0x07230203

// Generator is written into the module header. Zero is the reserved
// "unknown tool" generator ID.
const Generator uint32 = 0

// Version selects the SPIR-V version declared in the module header.
type Version struct {
	Major uint8
	Minor uint8
}

// Word encodes the version for the module header.
func (v Version) Word() uint32 {
	return uint32(v.Major)<<16 | uint32(v.Minor)<<8
}

// Options configures binary emission.
type Options struct {
	// Version declared in the module header. Defaults to 1.3, the
	// first version with the StorageBuffer storage class.
	Version Version
	// DebugNames emits OpName instructions for functions, globals
	// and struct types.
	DebugNames bool
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{
		Version:    Version{Major: 1, Minor: 3},
		DebugNames: true,
	}
}

// Compile lowers module to a SPIR-V binary using opts.
func Compile(module *ir.Module, opts Options) ([]uint32, error) {
	b := newBackend(module, opts)
	return b.compile()
}

// OpCode is a SPIR-V instruction opcode.
type OpCode uint16

const (
	OpNop              OpCode = 0
	OpName             OpCode = 5
	OpMemberName       OpCode = 6
	OpExtInstImport    OpCode = 11
	OpExtInst          OpCode = 12
	OpMemoryModel      OpCode = 14
	OpEntryPoint       OpCode = 15
	OpExecutionMode    OpCode = 16
	OpCapability       OpCode = 17
	OpTypeVoid         OpCode = 19
	OpTypeBool         OpCode = 20
	OpTypeInt          OpCode = 21
	OpTypeFloat        OpCode = 22
	OpTypeVector       OpCode = 23
	OpTypeMatrix       OpCode = 24
	OpTypeImage        OpCode = 25
	OpTypeSampler      OpCode = 26
	OpTypeSampledImage OpCode = 27
	OpTypeArray        OpCode = 28
	OpTypeRuntimeArray OpCode = 29
	OpTypeStruct       OpCode = 30
	OpTypePointer      OpCode = 32
	OpTypeFunction     OpCode = 33

	OpConstantTrue      OpCode = 41
	OpConstantFalse     OpCode = 42
	OpConstant          OpCode = 43
	OpConstantComposite OpCode = 44
	OpConstantNull      OpCode = 46

	OpFunction          OpCode = 54
	OpFunctionParameter OpCode = 55
	OpFunctionEnd       OpCode = 56
	OpFunctionCall      OpCode = 57

	OpVariable    OpCode = 59
	OpLoad        OpCode = 61
	OpStore       OpCode = 62
	OpAccessChain OpCode = 65
	OpArrayLength OpCode = 68

	OpDecorate       OpCode = 71
	OpMemberDecorate OpCode = 72

	OpVectorExtractDynamic OpCode = 77
	OpVectorShuffle        OpCode = 79
	OpCompositeConstruct   OpCode = 80
	OpCompositeExtract     OpCode = 81

	OpSampledImage OpCode = 86

	OpImageSampleImplicitLod     OpCode = 87
	OpImageSampleExplicitLod     OpCode = 88
	OpImageSampleDrefImplicitLod OpCode = 89
	OpImageSampleDrefExplicitLod OpCode = 90

	OpConvertFToU OpCode = 109
	OpConvertFToS OpCode = 110
	OpConvertSToF OpCode = 111
	OpConvertUToF OpCode = 112
	OpBitcast     OpCode = 124

	OpSNegate OpCode = 126
	OpFNegate OpCode = 127

	OpIAdd OpCode = 128
	OpFAdd OpCode = 129
	OpISub OpCode = 130
	OpFSub OpCode = 131
	OpIMul OpCode = 132
	OpFMul OpCode = 133
	OpUDiv OpCode = 134
	OpSDiv OpCode = 135
	OpFDiv OpCode = 136
	OpUMod OpCode = 137
	OpSRem OpCode = 138
	OpFRem OpCode = 140

	OpVectorTimesScalar OpCode = 142
	OpMatrixTimesScalar OpCode = 143
	OpVectorTimesMatrix OpCode = 144
	OpMatrixTimesVector OpCode = 145
	OpMatrixTimesMatrix OpCode = 146
	OpDot               OpCode = 148

	OpLogicalEqual    OpCode = 164
	OpLogicalNotEqual OpCode = 165

	OpLogicalOr  OpCode = 166
	OpLogicalAnd OpCode = 167
	OpLogicalNot OpCode = 168

	OpSelect OpCode = 169

	OpIEqual            OpCode = 170
	OpINotEqual         OpCode = 171
	OpUGreaterThan      OpCode = 172
	OpSGreaterThan      OpCode = 173
	OpUGreaterThanEqual OpCode = 174
	OpSGreaterThanEqual OpCode = 175
	OpULessThan         OpCode = 176
	OpSLessThan         OpCode = 177
	OpULessThanEqual    OpCode = 178
	OpSLessThanEqual    OpCode = 179

	OpFOrdEqual            OpCode = 180
	OpFOrdNotEqual         OpCode = 182
	OpFOrdLessThan         OpCode = 184
	OpFOrdGreaterThan      OpCode = 186
	OpFOrdLessThanEqual    OpCode = 188
	OpFOrdGreaterThanEqual OpCode = 190

	OpShiftRightLogical    OpCode = 194
	OpShiftRightArithmetic OpCode = 195
	OpShiftLeftLogical     OpCode = 196
	OpBitwiseOr            OpCode = 197
	OpBitwiseXor           OpCode = 198
	OpBitwiseAnd           OpCode = 199
	OpNot                  OpCode = 200

	OpLoopMerge         OpCode = 246
	OpSelectionMerge    OpCode = 247
	OpLabel             OpCode = 248
	OpBranch            OpCode = 249
	OpBranchConditional OpCode = 250
	OpSwitch            OpCode = 251
	OpKill              OpCode = 252
	OpReturn            OpCode = 253
	OpReturnValue       OpCode = 254
	OpUnreachable       OpCode = 255
)

// Capability declares a feature set the module depends on.
type Capability uint32

const (
	CapabilityShader Capability = 1
)

// ExecutionModel tags an entry point with its pipeline stage.
type ExecutionModel uint32

const (
	ExecutionModelVertex    ExecutionModel = 0
	ExecutionModelFragment  ExecutionModel = 4
	ExecutionModelGLCompute ExecutionModel = 5
)

// ExecutionMode refines entry-point behavior.
type ExecutionMode uint32

const (
	ExecutionModeOriginUpperLeft ExecutionMode = 7
	ExecutionModeDepthReplacing  ExecutionMode = 12
	ExecutionModeLocalSize       ExecutionMode = 17
)

// AddressingModel and MemoryModel select the module-wide memory semantics.
type AddressingModel uint32

const AddressingModelLogical AddressingModel = 0

type MemoryModel uint32

const MemoryModelGLSL450 MemoryModel = 1

// StorageClass places a pointer or variable in an address space.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassOutput          StorageClass = 3
	StorageClassWorkgroup       StorageClass = 4
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassPushConstant    StorageClass = 9
	StorageClassStorageBuffer   StorageClass = 12
)

// Decoration annotates an ID or struct member.
type Decoration uint32

const (
	DecorationBlock         Decoration = 2
	DecorationColMajor      Decoration = 5
	DecorationArrayStride   Decoration = 6
	DecorationMatrixStride  Decoration = 7
	DecorationBuiltIn       Decoration = 11
	DecorationFlat          Decoration = 14
	DecorationNonWritable   Decoration = 24
	DecorationLocation      Decoration = 30
	DecorationBinding       Decoration = 33
	DecorationDescriptorSet Decoration = 34
	DecorationOffset        Decoration = 35
)

// BuiltIn identifies a stage-interface value with fixed semantics.
type BuiltIn uint32

const (
	BuiltInPosition             BuiltIn = 0
	BuiltInFragCoord            BuiltIn = 15
	BuiltInFrontFacing          BuiltIn = 17
	BuiltInSampleID             BuiltIn = 18
	BuiltInSampleMask           BuiltIn = 20
	BuiltInFragDepth            BuiltIn = 22
	BuiltInNumWorkgroups        BuiltIn = 24
	BuiltInWorkgroupID          BuiltIn = 26
	BuiltInLocalInvocationID    BuiltIn = 27
	BuiltInGlobalInvocationID   BuiltIn = 28
	BuiltInLocalInvocationIndex BuiltIn = 29
	BuiltInVertexIndex          BuiltIn = 42
	BuiltInInstanceIndex        BuiltIn = 43
)

// FunctionControl, SelectionControl and LoopControl are mask operands;
// only the None value is emitted.
const (
	FunctionControlNone  uint32 = 0
	SelectionControlNone uint32 = 0
	LoopControlNone      uint32 = 0
)

// ImageOperands bits for sampling instructions.
const (
	ImageOperandsBias uint32 = 0x1
	ImageOperandsLod  uint32 = 0x2
	ImageOperandsGrad uint32 = 0x4
)

// Dim encodes an image dimensionality for OpTypeImage.
type Dim uint32

const (
	Dim1D   Dim = 0
	Dim2D   Dim = 1
	Dim3D   Dim = 2
	DimCube Dim = 3
)

// GLSLStd450 is an instruction number in the GLSL.std.450 extended set.
type GLSLStd450 uint32

const (
	GLSLStd450Round       GLSLStd450 = 1
	GLSLStd450Trunc       GLSLStd450 = 3
	GLSLStd450FAbs        GLSLStd450 = 4
	GLSLStd450SAbs        GLSLStd450 = 5
	GLSLStd450FSign       GLSLStd450 = 6
	GLSLStd450SSign       GLSLStd450 = 7
	GLSLStd450Floor       GLSLStd450 = 8
	GLSLStd450Ceil        GLSLStd450 = 9
	GLSLStd450Fract       GLSLStd450 = 10
	GLSLStd450Sin         GLSLStd450 = 13
	GLSLStd450Cos         GLSLStd450 = 14
	GLSLStd450Tan         GLSLStd450 = 15
	GLSLStd450Asin        GLSLStd450 = 16
	GLSLStd450Acos        GLSLStd450 = 17
	GLSLStd450Atan        GLSLStd450 = 18
	GLSLStd450Sinh        GLSLStd450 = 19
	GLSLStd450Cosh        GLSLStd450 = 20
	GLSLStd450Tanh        GLSLStd450 = 21
	GLSLStd450Atan2       GLSLStd450 = 25
	GLSLStd450Pow         GLSLStd450 = 26
	GLSLStd450Exp         GLSLStd450 = 27
	GLSLStd450Log         GLSLStd450 = 28
	GLSLStd450Exp2        GLSLStd450 = 29
	GLSLStd450Log2        GLSLStd450 = 30
	GLSLStd450Sqrt        GLSLStd450 = 31
	GLSLStd450InverseSqrt GLSLStd450 = 32
	GLSLStd450FMin        GLSLStd450 = 37
	GLSLStd450UMin        GLSLStd450 = 38
	GLSLStd450SMin        GLSLStd450 = 39
	GLSLStd450FMax        GLSLStd450 = 40
	GLSLStd450UMax        GLSLStd450 = 41
	GLSLStd450SMax        GLSLStd450 = 42
	GLSLStd450FClamp      GLSLStd450 = 43
	GLSLStd450UClamp      GLSLStd450 = 44
	GLSLStd450SClamp      GLSLStd450 = 45
	GLSLStd450FMix        GLSLStd450 = 46
	GLSLStd450Step        GLSLStd450 = 48
	GLSLStd450SmoothStep  GLSLStd450 = 49
	GLSLStd450Fma         GLSLStd450 = 50
	GLSLStd450Length      GLSLStd450 = 66
	GLSLStd450Distance    GLSLStd450 = 67
	GLSLStd450Cross       GLSLStd450 = 68
	GLSLStd450Normalize   GLSLStd450 = 69
	GLSLStd450Reflect     GLSLStd450 = 71
)
