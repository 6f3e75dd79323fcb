package spirv

import (
	"fmt"

	"github.com/gogpu/wgslc/ir"
)

// globalInfo records how a module-scope variable was emitted. Buffer
// globals whose declared type is not a struct are wrapped in a
// synthesized block struct; access chains through a wrapped global need
// a leading zero index.
type globalInfo struct {
	id      uint32
	class   StorageClass
	wrapped bool
}

type backend struct {
	m    *ir.Module
	opts Options
	b    *Builder

	glslExt uint32 // GLSL.std.450 import, allocated lazily

	typeIDs  map[ir.TypeHandle]uint32
	constIDs map[ir.ConstantHandle]uint32
	globals  []globalInfo
	funcIDs  []uint32

	blockStructs map[uint32]bool // struct type IDs already decorated Block
}

func newBackend(m *ir.Module, opts Options) *backend {
	if opts.Version == (Version{}) {
		opts.Version = DefaultOptions().Version
	}
	return &backend{
		m:            m,
		opts:         opts,
		b:            NewBuilder(opts.Version),
		typeIDs:      make(map[ir.TypeHandle]uint32),
		constIDs:     make(map[ir.ConstantHandle]uint32),
		globals:      make([]globalInfo, m.Globals.Len()),
		funcIDs:      make([]uint32, m.Functions.Len()),
		blockStructs: make(map[uint32]bool),
	}
}

func (e *backend) compile() ([]uint32, error) {
	e.b.AddCapability(CapabilityShader)
	e.b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// Arena order keeps ID assignment deterministic.
	for i := 0; i < e.m.Types.Len(); i++ {
		if _, err := e.typeID(ir.TypeHandle(i)); err != nil {
			return nil, err
		}
	}
	for i := 0; i < e.m.Globals.Len(); i++ {
		if err := e.emitGlobal(ir.GlobalHandle(i)); err != nil {
			return nil, err
		}
	}
	for i := 0; i < e.m.Functions.Len(); i++ {
		if err := e.emitFunction(ir.FunctionHandle(i)); err != nil {
			return nil, err
		}
	}
	for i := range e.m.EntryPoints {
		if err := e.emitEntryPoint(&e.m.EntryPoints[i]); err != nil {
			return nil, err
		}
	}
	return e.b.Build(), nil
}

func (e *backend) glsl() uint32 {
	if e.glslExt == 0 {
		e.glslExt = e.b.ImportExtInstSet("GLSL.std.450")
	}
	return e.glslExt
}

func storageClass(space ir.AddressSpace) StorageClass {
	switch space {
	case ir.SpacePrivate:
		return StorageClassPrivate
	case ir.SpaceWorkGroup:
		return StorageClassWorkgroup
	case ir.SpaceUniform:
		return StorageClassUniform
	case ir.SpaceStorage:
		return StorageClassStorageBuffer
	case ir.SpacePushConstant:
		return StorageClassPushConstant
	case ir.SpaceHandle:
		return StorageClassUniformConstant
	default:
		return StorageClassFunction
	}
}

// typeID emits the type behind h if needed and returns its ID.
func (e *backend) typeID(h ir.TypeHandle) (uint32, error) {
	if id, ok := e.typeIDs[h]; ok {
		return id, nil
	}
	t := e.m.Types.At(h)
	id, err := e.typeIDInner(t.Inner)
	if err != nil {
		return 0, err
	}
	e.typeIDs[h] = id
	if e.opts.DebugNames && t.Name != "" {
		e.b.AddName(id, t.Name)
	}
	return id, nil
}

func (e *backend) typeIDInner(inner ir.TypeInner) (uint32, error) {
	switch t := inner.(type) {
	case ir.Scalar:
		return e.scalarTypeID(t), nil
	case ir.Vector:
		elem := e.scalarTypeID(t.Element)
		id, _ := e.b.DeclareType(OpTypeVector, elem, uint32(t.Size))
		return id, nil
	case ir.Matrix:
		elem := e.scalarTypeID(t.Element)
		col, _ := e.b.DeclareType(OpTypeVector, elem, uint32(t.Rows))
		id, _ := e.b.DeclareType(OpTypeMatrix, col, uint32(t.Columns))
		return id, nil
	case ir.Array:
		elem, err := e.typeID(t.Element)
		if err != nil {
			return 0, err
		}
		if t.Size.IsRuntime() {
			id, fresh := e.b.DeclareType(OpTypeRuntimeArray, elem)
			if fresh {
				e.b.Decorate(id, DecorationArrayStride, t.Stride)
			}
			return id, nil
		}
		length := e.u32Constant(*t.Size.Count)
		id, fresh := e.b.DeclareType(OpTypeArray, elem, length)
		if fresh {
			e.b.Decorate(id, DecorationArrayStride, t.Stride)
		}
		return id, nil
	case ir.Struct:
		members := make([]uint32, len(t.Members))
		for i, mem := range t.Members {
			mid, err := e.typeID(mem.Type)
			if err != nil {
				return 0, err
			}
			members[i] = mid
		}
		id := e.b.DeclareStructType(members)
		for i, mem := range t.Members {
			e.b.DecorateMember(id, uint32(i), DecorationOffset, mem.Offset)
			if mat, ok := e.m.Types.At(mem.Type).Inner.(ir.Matrix); ok {
				e.b.DecorateMember(id, uint32(i), DecorationColMajor)
				e.b.DecorateMember(id, uint32(i), DecorationMatrixStride, ir.MatrixStride(mat))
			}
			if e.opts.DebugNames && mem.Name != "" {
				e.b.AddMemberName(id, uint32(i), mem.Name)
			}
		}
		return id, nil
	case ir.Pointer:
		base, err := e.typeID(t.Base)
		if err != nil {
			return 0, err
		}
		id, _ := e.b.DeclareType(OpTypePointer, uint32(storageClass(t.Space)), base)
		return id, nil
	case ir.Image:
		return e.imageTypeID(t), nil
	case ir.Sampler:
		id, _ := e.b.DeclareType(OpTypeSampler)
		return id, nil
	case ir.FunctionSignature:
		result := e.voidTypeID()
		if t.Result != nil {
			var err error
			result, err = e.typeID(*t.Result)
			if err != nil {
				return 0, err
			}
		}
		operands := []uint32{result}
		for _, p := range t.Params {
			pid, err := e.typeID(p)
			if err != nil {
				return 0, err
			}
			operands = append(operands, pid)
		}
		id, _ := e.b.DeclareType(OpTypeFunction, operands...)
		return id, nil
	default:
		return 0, fmt.Errorf("spirv: unsupported type %T", inner)
	}
}

func (e *backend) scalarTypeID(s ir.Scalar) uint32 {
	width := uint32(s.Width) * 8
	switch s.Kind {
	case ir.ScalarBool:
		id, _ := e.b.DeclareType(OpTypeBool)
		return id
	case ir.ScalarFloat:
		id, _ := e.b.DeclareType(OpTypeFloat, width)
		return id
	case ir.ScalarSint:
		id, _ := e.b.DeclareType(OpTypeInt, width, 1)
		return id
	default:
		id, _ := e.b.DeclareType(OpTypeInt, width, 0)
		return id
	}
}

func (e *backend) imageTypeID(img ir.Image) uint32 {
	var sampled ir.Scalar
	switch img.Class {
	case ir.ImageDepth:
		sampled = ir.Scalar{Kind: ir.ScalarFloat, Width: 4}
	default:
		sampled = ir.Scalar{Kind: img.SampledKind, Width: 4}
	}
	elem := e.scalarTypeID(sampled)
	var dim Dim
	switch img.Dim {
	case ir.Dim1D:
		dim = Dim1D
	case ir.Dim2D:
		dim = Dim2D
	case ir.Dim3D:
		dim = Dim3D
	case ir.DimCube:
		dim = DimCube
	}
	depth := uint32(0)
	if img.Class == ir.ImageDepth {
		depth = 1
	}
	arrayed := uint32(0)
	if img.Arrayed {
		arrayed = 1
	}
	ms := uint32(0)
	if img.Multisampled {
		ms = 1
	}
	// Sampled=1: compatible with a sampler. Format 0 is Unknown.
	id, _ := e.b.DeclareType(OpTypeImage, elem, uint32(dim), depth, arrayed, ms, 1, 0)
	return id
}

func (e *backend) voidTypeID() uint32 {
	id, _ := e.b.DeclareType(OpTypeVoid)
	return id
}

func (e *backend) u32TypeID() uint32 {
	return e.scalarTypeID(ir.Scalar{Kind: ir.ScalarUint, Width: 4})
}

func (e *backend) f32TypeID() uint32 {
	return e.scalarTypeID(ir.Scalar{Kind: ir.ScalarFloat, Width: 4})
}

func (e *backend) u32Constant(v uint32) uint32 {
	return e.b.DeclareConstant(e.u32TypeID(), v)
}

func (e *backend) i32Constant(v uint32) uint32 {
	t := e.scalarTypeID(ir.Scalar{Kind: ir.ScalarSint, Width: 4})
	return e.b.DeclareConstant(t, v)
}

func (e *backend) f32Constant(bits uint32) uint32 {
	return e.b.DeclareConstant(e.f32TypeID(), bits)
}

// constID emits the module constant behind h if needed.
func (e *backend) constID(h ir.ConstantHandle) (uint32, error) {
	if id, ok := e.constIDs[h]; ok {
		return id, nil
	}
	c := e.m.Constants.At(h)
	tid, err := e.typeID(c.Type)
	if err != nil {
		return 0, err
	}
	var id uint32
	switch v := c.Value.(type) {
	case ir.ScalarConstant:
		if v.Kind == ir.ScalarBool {
			id = e.b.DeclareBoolConstant(tid, v.Bits != 0)
		} else {
			id = e.b.DeclareConstant(tid, uint32(v.Bits))
		}
	case ir.CompositeConstant:
		parts := make([]uint32, len(v.Components))
		for i, comp := range v.Components {
			pid, err := e.constID(comp)
			if err != nil {
				return 0, err
			}
			parts[i] = pid
		}
		id = e.b.DeclareCompositeConstant(tid, parts)
	default:
		return 0, fmt.Errorf("spirv: unsupported constant value %T", c.Value)
	}
	e.constIDs[h] = id
	return id, nil
}

// emitGlobal declares a module-scope variable. Uniform, storage, and
// push-constant globals must be backed by a block-decorated struct;
// when the declared type is not a struct it is wrapped in a
// single-member one.
func (e *backend) emitGlobal(h ir.GlobalHandle) error {
	g := e.m.Globals.Ptr(h)
	class := storageClass(g.Space)
	inner, err := e.typeID(g.Type)
	if err != nil {
		return err
	}

	info := globalInfo{class: class}
	buffer := g.Space == ir.SpaceUniform || g.Space == ir.SpaceStorage || g.Space == ir.SpacePushConstant
	if buffer {
		if _, isStruct := e.m.Types.At(g.Type).Inner.(ir.Struct); isStruct {
			if !e.blockStructs[inner] {
				e.blockStructs[inner] = true
				e.b.Decorate(inner, DecorationBlock)
			}
		} else {
			wrapper := e.b.DeclareStructType([]uint32{inner})
			e.b.Decorate(wrapper, DecorationBlock)
			e.b.DecorateMember(wrapper, 0, DecorationOffset, 0)
			if mat, ok := e.m.Types.At(g.Type).Inner.(ir.Matrix); ok {
				e.b.DecorateMember(wrapper, 0, DecorationColMajor)
				e.b.DecorateMember(wrapper, 0, DecorationMatrixStride, ir.MatrixStride(mat))
			}
			inner = wrapper
			info.wrapped = true
		}
	}

	ptr, _ := e.b.DeclareType(OpTypePointer, uint32(class), inner)
	var init uint32
	if g.Init != nil {
		init, err = e.constID(*g.Init)
		if err != nil {
			return err
		}
	}
	info.id = e.b.AddGlobalVariable(ptr, class, init)

	if g.Binding != nil {
		e.b.Decorate(info.id, DecorationDescriptorSet, g.Binding.Group)
		e.b.Decorate(info.id, DecorationBinding, g.Binding.Binding)
	}
	if g.Space == ir.SpaceStorage && g.Access&ir.AccessWrite == 0 {
		e.b.Decorate(info.id, DecorationNonWritable)
	}
	if e.opts.DebugNames && g.Name != "" {
		e.b.AddName(info.id, g.Name)
	}
	e.globals[h] = info
	return nil
}
