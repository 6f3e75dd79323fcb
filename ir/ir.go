// Package ir defines the typed intermediate representation shared by the
// front end, the validator, and the SPIR-V back end.
//
// All cross-stage data lives in arenas: types, constants, and globals at
// module level, expressions per function. Handles are plain indices, so the
// IR forms a DAG by construction. Types and constants are structurally
// deduplicated at insertion time through TypeRegistry and the module's
// constant interning helpers.
package ir

// ShaderStage identifies a pipeline stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "unknown"
}

// AddressSpace is the memory space a variable lives in.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkGroup
	SpaceUniform
	SpaceStorage
	SpacePushConstant
	SpaceHandle // opaque resources: textures and samplers
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceFunction:
		return "function"
	case SpacePrivate:
		return "private"
	case SpaceWorkGroup:
		return "workgroup"
	case SpaceUniform:
		return "uniform"
	case SpaceStorage:
		return "storage"
	case SpacePushConstant:
		return "push_constant"
	case SpaceHandle:
		return "handle"
	}
	return "unknown"
}

// AccessMode is the permission on a storage-space resource. It is present
// exactly when the address space is SpaceStorage.
type AccessMode uint8

const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
)

// AccessReadWrite permits both loads and stores.
const AccessReadWrite = AccessRead | AccessWrite

// ResourceBinding is a descriptor-set slot.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// BuiltinValue names a stage-interface value with fixed hardware semantics.
type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinFrontFacing
	BuiltinFragDepth
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinGlobalInvocationID
	BuiltinWorkGroupID
	BuiltinNumWorkGroups
	BuiltinSampleIndex
	BuiltinSampleMask
)

// Binding tags an entry-point interface value with either a builtin or a
// user location. Exactly one of the two variants applies to any interface
// value; the validator enforces this.
type Binding interface {
	binding()
}

// BuiltinBinding marks a value as a hardware builtin.
type BuiltinBinding struct {
	Builtin BuiltinValue
}

// LocationBinding assigns a user interface slot.
type LocationBinding struct {
	Location uint32
}

func (BuiltinBinding) binding()  {}
func (LocationBinding) binding() {}

// ScalarKind discriminates the numeric interpretation of a scalar.
type ScalarKind uint8

const (
	ScalarFloat ScalarKind = iota
	ScalarSint
	ScalarUint
	ScalarBool
)

// VectorSize is the component count of a vector (2, 3, or 4).
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// Type is an arena entry: an optional name plus the structural shape.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner is the tagged variant of type shapes. Two types with identical
// shape share one handle per module (see TypeRegistry).
type TypeInner interface {
	typeInner()
}

// Scalar is a single numeric or boolean value. Width is in bytes.
type Scalar struct {
	Kind  ScalarKind
	Width uint8
}

// Vector is Size components of a scalar element.
type Vector struct {
	Size    VectorSize
	Element Scalar
}

// Matrix is Columns column vectors of Rows elements each.
type Matrix struct {
	Columns VectorSize
	Rows    VectorSize
	Element Scalar
}

// ArraySize is either a fixed element count or runtime-sized (Count nil).
type ArraySize struct {
	Count *uint32
}

// FixedSize returns an ArraySize with a known count.
func FixedSize(n uint32) ArraySize {
	return ArraySize{Count: &n}
}

// RuntimeSize returns the runtime-sized marker.
func RuntimeSize() ArraySize {
	return ArraySize{}
}

// IsRuntime reports whether the size is determined by the backing buffer.
func (s ArraySize) IsRuntime() bool {
	return s.Count == nil
}

// Array is a homogeneous sequence with a fixed byte stride.
type Array struct {
	Element TypeHandle
	Size    ArraySize
	Stride  uint32
}

// StructMember is one ordered field of a struct, with its byte offset and an
// optional interface binding when the struct describes stage I/O.
type StructMember struct {
	Name    string
	Type    TypeHandle
	Offset  uint32
	Binding Binding
}

// Struct is an ordered field list. Span is the total byte size, rounded up
// to the struct's alignment.
type Struct struct {
	Members []StructMember
	Span    uint32
}

// Pointer is a reference into an address space.
type Pointer struct {
	Base  TypeHandle
	Space AddressSpace
}

// ImageDimension is the shape of an image resource.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

// ImageClass discriminates sampled, depth, and storage images.
type ImageClass uint8

const (
	ImageSampled ImageClass = iota
	ImageDepth
	ImageStorage
)

// Image is a texture resource type.
type Image struct {
	Dim          ImageDimension
	Arrayed      bool
	Multisampled bool
	Class        ImageClass
	SampledKind  ScalarKind // element kind for sampled/storage images
}

// Sampler is a sampling-state resource, optionally a comparison sampler.
type Sampler struct {
	Comparison bool
}

// FunctionSignature is the shape of a callable: result (nil for void) and
// ordered parameter types. The back end uses it to deduplicate function
// types the same way value types are deduplicated.
type FunctionSignature struct {
	Result *TypeHandle
	Params []TypeHandle
}

func (Scalar) typeInner()            {}
func (Vector) typeInner()            {}
func (Matrix) typeInner()            {}
func (Array) typeInner()             {}
func (Struct) typeInner()            {}
func (Pointer) typeInner()           {}
func (Image) typeInner()             {}
func (Sampler) typeInner()           {}
func (FunctionSignature) typeInner() {}

// ConstantValue is the tagged variant of constant payloads.
type ConstantValue interface {
	constantValue()
}

// ScalarConstant is a literal with its bit pattern widened to 64 bits.
type ScalarConstant struct {
	Kind ScalarKind
	Bits uint64
}

// CompositeConstant is an ordered list of constant components.
type CompositeConstant struct {
	Components []ConstantHandle
}

func (ScalarConstant) constantValue()    {}
func (CompositeConstant) constantValue() {}

// Constant is an arena entry: a typed, optionally named constant value.
type Constant struct {
	Name  string
	Type  TypeHandle
	Value ConstantValue
}

// GlobalVariable is a module-scope variable.
type GlobalVariable struct {
	Name    string
	Space   AddressSpace
	Binding *ResourceBinding
	Access  AccessMode // meaningful only when Space == SpaceStorage
	Type    TypeHandle
	Init    *ConstantHandle
}

// FunctionArgument is a typed parameter with an optional interface binding.
type FunctionArgument struct {
	Name    string
	Type    TypeHandle
	Binding Binding
}

// FunctionResult is a function's return type with an optional interface
// binding, for entry points returning interface values directly.
type FunctionResult struct {
	Type    TypeHandle
	Binding Binding
}

// LocalVariable is a function-scope variable, optionally initialized from
// an expression in the same function.
type LocalVariable struct {
	Name string
	Type TypeHandle
	Init *ExpressionHandle
}

// Function is a callable: arguments, optional result, locals, an expression
// arena with a parallel type-resolution cache, and a root block.
type Function struct {
	Name        string
	Arguments   []FunctionArgument
	Result      *FunctionResult
	LocalVars   []LocalVariable
	Expressions Arena[Expression, ExpressionHandle]
	Resolved    []TypeResolution // parallel to Expressions
	Body        Block
}

// EntryPoint designates a function as a pipeline stage target.
type EntryPoint struct {
	Name          string
	Stage         ShaderStage
	WorkGroupSize [3]uint32 // compute only
	Function      FunctionHandle
}

// Module is the complete IR for one translation unit. It owns every arena
// and is discarded after the instruction stream is emitted.
type Module struct {
	Types       Arena[Type, TypeHandle]
	Constants   Arena[Constant, ConstantHandle]
	Globals     Arena[GlobalVariable, GlobalHandle]
	Functions   Arena[Function, FunctionHandle]
	EntryPoints []EntryPoint
}

// TypeResolution is the resolved type of an expression: either a handle into
// the module's type arena or an inline shape that never needed registration.
type TypeResolution struct {
	Handle *TypeHandle
	Value  TypeInner
}

// Inner returns the resolved shape, chasing the handle if present.
func (r TypeResolution) Inner(m *Module) TypeInner {
	if r.Handle != nil {
		return m.Types.At(*r.Handle).Inner
	}
	return r.Value
}

// HandleRes wraps a type handle as a TypeResolution.
func HandleRes(h TypeHandle) TypeResolution {
	return TypeResolution{Handle: &h}
}

// ValueRes wraps an inline shape as a TypeResolution.
func ValueRes(inner TypeInner) TypeResolution {
	return TypeResolution{Value: inner}
}
