package spirv

import (
	"fmt"

	"github.com/gogpu/wgslc/ir"
)

// funcEmitter writes one function body. Expression results are cached
// per handle, and structured control flow tracks its break and continue
// targets explicitly so branches land on real labels.
type funcEmitter struct {
	be *backend
	fn *ir.Function

	ids      []uint32 // expression handle -> result ID
	paramIDs []uint32
	localIDs []uint32

	breakTargets    []uint32 // innermost last: loop merge or switch merge
	continueTargets []uint32

	terminated bool
}

func (e *backend) emitFunction(h ir.FunctionHandle) error {
	fn := e.m.Functions.Ptr(h)

	var result *ir.TypeHandle
	resultType := e.voidTypeID()
	if fn.Result != nil {
		t := fn.Result.Type
		result = &t
		var err error
		resultType, err = e.typeID(t)
		if err != nil {
			return err
		}
	}
	params := make([]ir.TypeHandle, len(fn.Arguments))
	for i, arg := range fn.Arguments {
		params[i] = arg.Type
	}
	fnType, err := e.typeIDInner(ir.FunctionSignature{Result: result, Params: params})
	if err != nil {
		return err
	}

	id := e.b.AllocID()
	e.funcIDs[h] = id
	if e.opts.DebugNames && fn.Name != "" {
		e.b.AddName(id, fn.Name)
	}
	e.b.FuncInstr(OpFunction, resultType, id, FunctionControlNone, fnType)

	f := &funcEmitter{
		be:       e,
		fn:       fn,
		ids:      make([]uint32, fn.Expressions.Len()),
		paramIDs: make([]uint32, len(fn.Arguments)),
		localIDs: make([]uint32, len(fn.LocalVars)),
	}
	for i, arg := range fn.Arguments {
		tid, err := e.typeID(arg.Type)
		if err != nil {
			return err
		}
		f.paramIDs[i] = e.b.AllocID()
		e.b.FuncInstr(OpFunctionParameter, tid, f.paramIDs[i])
	}

	entry := e.b.AllocID()
	e.b.FuncInstr(OpLabel, entry)

	// Function-scope variables must sit at the top of the entry block.
	for i, local := range fn.LocalVars {
		tid, err := e.typeID(local.Type)
		if err != nil {
			return err
		}
		ptr, _ := e.b.DeclareType(OpTypePointer, uint32(StorageClassFunction), tid)
		f.localIDs[i] = e.b.AllocID()
		e.b.FuncInstr(OpVariable, ptr, f.localIDs[i], uint32(StorageClassFunction))
		if e.opts.DebugNames && local.Name != "" {
			e.b.AddName(f.localIDs[i], local.Name)
		}
	}

	if err := f.emitBlock(fn.Body); err != nil {
		return err
	}
	if !f.terminated {
		if fn.Result == nil {
			e.b.FuncInstr(OpReturn)
		} else {
			e.b.FuncInstr(OpUnreachable)
		}
	}
	e.b.FuncInstr(OpFunctionEnd)
	return nil
}

// emitBlock writes the statements of a block. Statements after a
// terminator are unreachable and dropped.
func (f *funcEmitter) emitBlock(block ir.Block) error {
	for i := range block {
		if f.terminated {
			return nil
		}
		if err := f.emitStatement(&block[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *funcEmitter) emitStatement(stmt *ir.Statement) error {
	b := f.be.b
	switch s := stmt.Kind.(type) {
	case ir.StmtEmit:
		for h := s.Range.Start; h < s.Range.End; h++ {
			if _, err := f.emitExpr(h); err != nil {
				return err
			}
		}
		return nil

	case ir.StmtBlock:
		return f.emitBlock(s.Body)

	case ir.StmtIf:
		return f.emitIf(s)

	case ir.StmtSwitch:
		return f.emitSwitch(s)

	case ir.StmtLoop:
		return f.emitLoop(s)

	case ir.StmtBreak:
		if len(f.breakTargets) == 0 {
			return fmt.Errorf("spirv: break outside loop or switch")
		}
		b.FuncInstr(OpBranch, f.breakTargets[len(f.breakTargets)-1])
		f.terminated = true
		return nil

	case ir.StmtContinue:
		if len(f.continueTargets) == 0 {
			return fmt.Errorf("spirv: continue outside loop")
		}
		b.FuncInstr(OpBranch, f.continueTargets[len(f.continueTargets)-1])
		f.terminated = true
		return nil

	case ir.StmtReturn:
		if s.Value != nil {
			v, err := f.emitExpr(*s.Value)
			if err != nil {
				return err
			}
			b.FuncInstr(OpReturnValue, v)
		} else {
			b.FuncInstr(OpReturn)
		}
		f.terminated = true
		return nil

	case ir.StmtKill:
		b.FuncInstr(OpKill)
		f.terminated = true
		return nil

	case ir.StmtStore:
		ptr, err := f.emitPointer(s.Pointer)
		if err != nil {
			return err
		}
		val, err := f.emitExpr(s.Value)
		if err != nil {
			return err
		}
		b.FuncInstr(OpStore, ptr, val)
		return nil

	case ir.StmtCall:
		return f.emitCall(s)

	default:
		return fmt.Errorf("spirv: unsupported statement %T", stmt.Kind)
	}
}

func (f *funcEmitter) emitIf(s ir.StmtIf) error {
	b := f.be.b
	cond, err := f.emitExpr(s.Condition)
	if err != nil {
		return err
	}
	accept := b.AllocID()
	merge := b.AllocID()
	reject := merge
	if len(s.Reject) > 0 {
		reject = b.AllocID()
	}

	b.FuncInstr(OpSelectionMerge, merge, SelectionControlNone)
	b.FuncInstr(OpBranchConditional, cond, accept, reject)

	b.FuncInstr(OpLabel, accept)
	if err := f.emitBlock(s.Accept); err != nil {
		return err
	}
	if !f.terminated {
		b.FuncInstr(OpBranch, merge)
	}
	f.terminated = false

	if len(s.Reject) > 0 {
		b.FuncInstr(OpLabel, reject)
		if err := f.emitBlock(s.Reject); err != nil {
			return err
		}
		if !f.terminated {
			b.FuncInstr(OpBranch, merge)
		}
		f.terminated = false
	}

	b.FuncInstr(OpLabel, merge)
	return nil
}

func (f *funcEmitter) emitSwitch(s ir.StmtSwitch) error {
	b := f.be.b
	sel, err := f.emitExpr(s.Selector)
	if err != nil {
		return err
	}
	merge := b.AllocID()
	labels := make([]uint32, len(s.Cases))
	for i := range s.Cases {
		labels[i] = b.AllocID()
	}

	defaultLabel := merge
	var pairs []uint32
	for i, c := range s.Cases {
		switch v := c.Value.(type) {
		case ir.SwitchCaseValue:
			pairs = append(pairs, uint32(v.Value), labels[i])
		case ir.SwitchDefault:
			defaultLabel = labels[i]
		}
	}

	b.FuncInstr(OpSelectionMerge, merge, SelectionControlNone)
	words := append([]uint32{sel, defaultLabel}, pairs...)
	b.FuncInstr(OpSwitch, words...)

	f.breakTargets = append(f.breakTargets, merge)
	for i, c := range s.Cases {
		b.FuncInstr(OpLabel, labels[i])
		if err := f.emitBlock(c.Body); err != nil {
			return err
		}
		if !f.terminated {
			if c.FallThrough && i+1 < len(s.Cases) {
				b.FuncInstr(OpBranch, labels[i+1])
			} else {
				b.FuncInstr(OpBranch, merge)
			}
		}
		f.terminated = false
	}
	f.breakTargets = f.breakTargets[:len(f.breakTargets)-1]

	b.FuncInstr(OpLabel, merge)
	return nil
}

// emitLoop writes the canonical structured loop: a header carrying the
// OpLoopMerge, a body block, a continuing block ending in the single
// back-edge, and a merge block. A break-if condition turns the
// back-edge into a conditional branch whose true path goes straight to
// the merge label.
func (f *funcEmitter) emitLoop(s ir.StmtLoop) error {
	b := f.be.b
	header := b.AllocID()
	body := b.AllocID()
	continuing := b.AllocID()
	merge := b.AllocID()

	b.FuncInstr(OpBranch, header)
	b.FuncInstr(OpLabel, header)
	b.FuncInstr(OpLoopMerge, merge, continuing, LoopControlNone)
	b.FuncInstr(OpBranch, body)

	b.FuncInstr(OpLabel, body)
	f.breakTargets = append(f.breakTargets, merge)
	f.continueTargets = append(f.continueTargets, continuing)
	if err := f.emitBlock(s.Body); err != nil {
		return err
	}
	if !f.terminated {
		b.FuncInstr(OpBranch, continuing)
	}
	f.terminated = false
	f.breakTargets = f.breakTargets[:len(f.breakTargets)-1]
	f.continueTargets = f.continueTargets[:len(f.continueTargets)-1]

	b.FuncInstr(OpLabel, continuing)
	if err := f.emitBlock(s.Continuing); err != nil {
		return err
	}
	if s.BreakIf != nil {
		cond, err := f.emitExpr(*s.BreakIf)
		if err != nil {
			return err
		}
		b.FuncInstr(OpBranchConditional, cond, merge, header)
	} else {
		b.FuncInstr(OpBranch, header)
	}
	f.terminated = false

	b.FuncInstr(OpLabel, merge)
	return nil
}

func (f *funcEmitter) emitCall(s ir.StmtCall) error {
	b := f.be.b
	callee := f.be.m.Functions.Ptr(s.Function)
	resultType := f.be.voidTypeID()
	if callee.Result != nil {
		var err error
		resultType, err = f.be.typeID(callee.Result.Type)
		if err != nil {
			return err
		}
	}
	args := make([]uint32, 0, len(s.Arguments)+1)
	args = append(args, f.be.funcIDs[s.Function])
	for _, a := range s.Arguments {
		id, err := f.emitExpr(a)
		if err != nil {
			return err
		}
		args = append(args, id)
	}
	id := b.FuncResult(OpFunctionCall, resultType, args...)
	if s.Result != nil {
		f.ids[*s.Result] = id
	}
	return nil
}
