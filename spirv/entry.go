package spirv

import (
	"fmt"

	"github.com/gogpu/wgslc/ir"
)

// ifaceVar is one synthesized Input or Output interface variable of an
// entry-point wrapper.
type ifaceVar struct {
	id   uint32
	typ  ir.TypeHandle
	name string
}

// emitEntryPoint wraps a stage function in a void() entry function
// that loads its inputs from Input variables, calls it, and scatters
// the result into Output variables. The interface declaration lists
// exactly the variables the wrapper touches.
func (e *backend) emitEntryPoint(ep *ir.EntryPoint) error {
	fn := e.m.Functions.Ptr(ep.Function)

	// One Input variable per argument, or per member for arguments
	// passed as a binding struct.
	var inputs []ifaceVar
	argInputs := make([][]int, len(fn.Arguments)) // indices into inputs; nil = single
	for i, arg := range fn.Arguments {
		if members, ok := e.bindingStruct(arg.Type, arg.Binding); ok {
			for _, mem := range members {
				v, err := e.interfaceVariable(ep.Stage, mem.Type, mem.Binding, true, mem.Name)
				if err != nil {
					return err
				}
				argInputs[i] = append(argInputs[i], len(inputs))
				inputs = append(inputs, v)
			}
			continue
		}
		if arg.Binding == nil {
			return fmt.Errorf("spirv: entry point %q argument %q has no interface binding", ep.Name, arg.Name)
		}
		v, err := e.interfaceVariable(ep.Stage, arg.Type, arg.Binding, true, arg.Name)
		if err != nil {
			return err
		}
		argInputs[i] = []int{len(inputs)}
		inputs = append(inputs, v)
	}

	var outputs []ifaceVar
	outputIsStruct := false
	depthReplacing := false
	if fn.Result != nil {
		if members, ok := e.bindingStruct(fn.Result.Type, fn.Result.Binding); ok {
			outputIsStruct = true
			for _, mem := range members {
				v, err := e.interfaceVariable(ep.Stage, mem.Type, mem.Binding, false, mem.Name)
				if err != nil {
					return err
				}
				outputs = append(outputs, v)
				depthReplacing = depthReplacing || isFragDepth(mem.Binding)
			}
		} else {
			if fn.Result.Binding == nil {
				return fmt.Errorf("spirv: entry point %q result has no interface binding", ep.Name)
			}
			v, err := e.interfaceVariable(ep.Stage, fn.Result.Type, fn.Result.Binding, false, "")
			if err != nil {
				return err
			}
			outputs = append(outputs, v)
			depthReplacing = isFragDepth(fn.Result.Binding)
		}
	}

	void := e.voidTypeID()
	fnType, _ := e.b.DeclareType(OpTypeFunction, void)
	wrapper := e.b.AllocID()
	if e.opts.DebugNames {
		e.b.AddName(wrapper, ep.Name)
	}
	e.b.FuncInstr(OpFunction, void, wrapper, FunctionControlNone, fnType)
	label := e.b.AllocID()
	e.b.FuncInstr(OpLabel, label)

	args := make([]uint32, 0, len(fn.Arguments))
	for i, arg := range fn.Arguments {
		loads := make([]uint32, len(argInputs[i]))
		for n, idx := range argInputs[i] {
			in := inputs[idx]
			tid, err := e.typeID(in.typ)
			if err != nil {
				return err
			}
			loads[n] = e.b.FuncResult(OpLoad, tid, in.id)
		}
		if e.isBindingStructArg(arg) {
			tid, err := e.typeID(arg.Type)
			if err != nil {
				return err
			}
			args = append(args, e.b.FuncResult(OpCompositeConstruct, tid, loads...))
		} else {
			args = append(args, loads[0])
		}
	}

	call, err := e.wrapperCall(ep.Function, args)
	if err != nil {
		return err
	}
	if fn.Result != nil {
		if outputIsStruct {
			for i, out := range outputs {
				tid, err := e.typeID(out.typ)
				if err != nil {
					return err
				}
				v := e.b.FuncResult(OpCompositeExtract, tid, call, uint32(i))
				e.b.FuncInstr(OpStore, out.id, v)
			}
		} else {
			e.b.FuncInstr(OpStore, outputs[0].id, call)
		}
	}
	e.b.FuncInstr(OpReturn)
	e.b.FuncInstr(OpFunctionEnd)

	iface := make([]uint32, 0, len(inputs)+len(outputs))
	for _, v := range inputs {
		iface = append(iface, v.id)
	}
	for _, v := range outputs {
		iface = append(iface, v.id)
	}

	switch ep.Stage {
	case ir.StageVertex:
		e.b.AddEntryPoint(ExecutionModelVertex, wrapper, ep.Name, iface)
	case ir.StageFragment:
		e.b.AddEntryPoint(ExecutionModelFragment, wrapper, ep.Name, iface)
		e.b.AddExecutionMode(wrapper, ExecutionModeOriginUpperLeft)
		if depthReplacing {
			e.b.AddExecutionMode(wrapper, ExecutionModeDepthReplacing)
		}
	case ir.StageCompute:
		e.b.AddEntryPoint(ExecutionModelGLCompute, wrapper, ep.Name, iface)
		e.b.AddExecutionMode(wrapper, ExecutionModeLocalSize,
			ep.WorkGroupSize[0], ep.WorkGroupSize[1], ep.WorkGroupSize[2])
	}
	return nil
}

func (e *backend) wrapperCall(fn ir.FunctionHandle, args []uint32) (uint32, error) {
	callee := e.m.Functions.Ptr(fn)
	resultType := e.voidTypeID()
	if callee.Result != nil {
		var err error
		resultType, err = e.typeID(callee.Result.Type)
		if err != nil {
			return 0, err
		}
	}
	operands := append([]uint32{e.funcIDs[fn]}, args...)
	return e.b.FuncResult(OpFunctionCall, resultType, operands...), nil
}

// bindingStruct reports whether a type is a struct carrying per-member
// interface bindings, which the wrapper flattens into one variable per
// member. A direct binding on the argument or result takes precedence.
func (e *backend) bindingStruct(t ir.TypeHandle, direct ir.Binding) ([]ir.StructMember, bool) {
	if direct != nil {
		return nil, false
	}
	st, ok := e.m.Types.At(t).Inner.(ir.Struct)
	if !ok {
		return nil, false
	}
	return st.Members, true
}

func (e *backend) isBindingStructArg(arg ir.FunctionArgument) bool {
	_, ok := e.bindingStruct(arg.Type, arg.Binding)
	return ok
}

// interfaceVariable declares one Input or Output variable with its
// location or builtin decoration.
func (e *backend) interfaceVariable(stage ir.ShaderStage, t ir.TypeHandle, binding ir.Binding, input bool, name string) (ifaceVar, error) {
	class := StorageClassOutput
	if input {
		class = StorageClassInput
	}
	tid, err := e.typeID(t)
	if err != nil {
		return ifaceVar{}, err
	}
	ptr, _ := e.b.DeclareType(OpTypePointer, uint32(class), tid)
	id := e.b.AddGlobalVariable(ptr, class, 0)
	if e.opts.DebugNames && name != "" {
		e.b.AddName(id, name)
	}

	switch bnd := binding.(type) {
	case ir.LocationBinding:
		e.b.Decorate(id, DecorationLocation, bnd.Location)
	case ir.BuiltinBinding:
		bi, err := builtinValue(bnd.Builtin, stage, input)
		if err != nil {
			return ifaceVar{}, err
		}
		e.b.Decorate(id, DecorationBuiltIn, uint32(bi))
	default:
		return ifaceVar{}, fmt.Errorf("spirv: interface value %q has no binding", name)
	}

	// Integer fragment inputs are not interpolatable.
	if input && stage == ir.StageFragment {
		if sc, ok := scalarOf(e.m.Types.At(t).Inner); ok {
			if sc.Kind == ir.ScalarSint || sc.Kind == ir.ScalarUint {
				e.b.Decorate(id, DecorationFlat)
			}
		}
	}
	return ifaceVar{id: id, typ: t, name: name}, nil
}

func isFragDepth(b ir.Binding) bool {
	bb, ok := b.(ir.BuiltinBinding)
	return ok && bb.Builtin == ir.BuiltinFragDepth
}

// builtinValue maps an interface builtin to its SPIR-V BuiltIn. The
// position builtin is FragCoord when read by the fragment stage.
func builtinValue(b ir.BuiltinValue, stage ir.ShaderStage, input bool) (BuiltIn, error) {
	switch b {
	case ir.BuiltinPosition:
		if stage == ir.StageFragment && input {
			return BuiltInFragCoord, nil
		}
		return BuiltInPosition, nil
	case ir.BuiltinVertexIndex:
		return BuiltInVertexIndex, nil
	case ir.BuiltinInstanceIndex:
		return BuiltInInstanceIndex, nil
	case ir.BuiltinFrontFacing:
		return BuiltInFrontFacing, nil
	case ir.BuiltinFragDepth:
		return BuiltInFragDepth, nil
	case ir.BuiltinLocalInvocationID:
		return BuiltInLocalInvocationID, nil
	case ir.BuiltinLocalInvocationIndex:
		return BuiltInLocalInvocationIndex, nil
	case ir.BuiltinGlobalInvocationID:
		return BuiltInGlobalInvocationID, nil
	case ir.BuiltinWorkGroupID:
		return BuiltInWorkgroupID, nil
	case ir.BuiltinNumWorkGroups:
		return BuiltInNumWorkgroups, nil
	case ir.BuiltinSampleIndex:
		return BuiltInSampleID, nil
	case ir.BuiltinSampleMask:
		return BuiltInSampleMask, nil
	}
	return 0, fmt.Errorf("spirv: unsupported builtin %d", b)
}
