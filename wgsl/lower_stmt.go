package wgsl

import (
	"github.com/gogpu/wgslc/ir"
)

// fnLowerer builds one function body. Expressions append to the function's
// arena and are swept into emit ranges before each statement that observes
// them, so evaluation order stays explicit in the block structure.
type fnLowerer struct {
	l      *Lowerer
	fn     *ir.Function
	scopes []map[string]ir.ExpressionHandle
	// block is the block statements are currently being appended to; call
	// expressions insert their call statement here.
	block *ir.Block
	// pending marks the start of expressions appended but not yet covered
	// by a StmtEmit.
	pending ir.ExpressionHandle
}

// add appends an expression and resolves its type into the parallel cache.
func (f *fnLowerer) add(kind ir.ExpressionKind, pos Pos) (ir.ExpressionHandle, error) {
	h := f.fn.Expressions.Append(ir.Expression{Kind: kind})
	res, err := ir.ResolveExpressionType(f.l.module, f.fn, h)
	if err != nil {
		return 0, &TypeInferenceError{Message: err.Error(), Pos: pos}
	}
	f.fn.Resolved = append(f.fn.Resolved, res)
	return h, nil
}

// flush covers any pending expressions with an emit statement in block.
func (f *fnLowerer) flush(block *ir.Block) {
	end := ir.ExpressionHandle(f.fn.Expressions.Len())
	if f.pending < end {
		*block = append(*block, ir.Statement{Kind: ir.StmtEmit{
			Range: ir.Range{Start: f.pending, End: end},
		}})
	}
	f.pending = end
}

// skipPending excludes expressions appended so far from emit ranges; used
// for call results, which the call statement itself defines.
func (f *fnLowerer) skipPending() {
	f.pending = ir.ExpressionHandle(f.fn.Expressions.Len())
}

func (f *fnLowerer) pushScope() {
	f.scopes = append(f.scopes, map[string]ir.ExpressionHandle{})
}

func (f *fnLowerer) popScope() {
	f.scopes = f.scopes[:len(f.scopes)-1]
}

func (f *fnLowerer) bind(name string, h ir.ExpressionHandle) {
	f.scopes[len(f.scopes)-1][name] = h
}

func (f *fnLowerer) lookup(name string) (ir.ExpressionHandle, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if h, ok := f.scopes[i][name]; ok {
			return h, true
		}
	}
	return 0, false
}

// typeOf returns the resolved shape of an already-added expression.
func (f *fnLowerer) typeOf(h ir.ExpressionHandle) ir.TypeInner {
	return f.fn.Resolved[h].Inner(f.l.module)
}

// materialize turns a type resolution into a registered handle.
func (f *fnLowerer) materialize(res ir.TypeResolution) ir.TypeHandle {
	if res.Handle != nil {
		return *res.Handle
	}
	return f.l.registry.Register("", res.Value)
}

func (f *fnLowerer) lowerStmts(block *ir.Block, stmts []Stmt) error {
	for _, s := range stmts {
		if err := f.lowerStmt(block, s); err != nil {
			return err
		}
	}
	return nil
}

func (f *fnLowerer) lowerStmt(block *ir.Block, s Stmt) error {
	f.block = block
	switch stmt := s.(type) {
	case *VarStmt:
		return f.varStmt(block, stmt)
	case *AssignStmt:
		return f.assign(block, stmt)
	case *IfStmt:
		return f.ifStmt(block, stmt)
	case *ForStmt:
		return f.forStmt(block, stmt)
	case *WhileStmt:
		return f.whileStmt(block, stmt)
	case *LoopStmt:
		return f.loopStmt(block, stmt)
	case *SwitchStmt:
		return f.switchStmt(block, stmt)
	case *ReturnStmt:
		return f.returnStmt(block, stmt)
	case *BreakStmt:
		f.flush(block)
		*block = append(*block, ir.Statement{Kind: ir.StmtBreak{}})
		return nil
	case *BreakIfStmt:
		return loweringErrorf(stmt.Pos, "break if is only allowed at the end of a continuing block")
	case *ContinueStmt:
		f.flush(block)
		*block = append(*block, ir.Statement{Kind: ir.StmtContinue{}})
		return nil
	case *DiscardStmt:
		f.flush(block)
		*block = append(*block, ir.Statement{Kind: ir.StmtKill{}})
		return nil
	case *BlockStmt:
		f.flush(block)
		f.pushScope()
		var body ir.Block
		err := f.lowerStmts(&body, stmt.Body)
		f.flush(&body)
		f.popScope()
		if err != nil {
			return err
		}
		*block = append(*block, ir.Statement{Kind: ir.StmtBlock{Body: body}})
		return nil
	case *ExprStmt:
		return f.exprStmt(block, stmt)
	}
	return loweringErrorf(s.StmtPos(), "unhandled statement")
}

func (f *fnLowerer) varStmt(block *ir.Block, stmt *VarStmt) error {
	var declared *ir.TypeHandle
	if stmt.Type != nil {
		th, err := f.l.lowerType(*stmt.Type)
		if err != nil {
			return err
		}
		declared = &th
	}
	var hint ir.TypeInner
	if declared != nil {
		hint = f.l.module.Types.At(*declared).Inner
	}

	if stmt.Keyword != TokVar {
		// let and function-scope const bind the value directly.
		value, err := f.value(stmt.Init, hint)
		if err != nil {
			return err
		}
		f.bind(stmt.Name, value)
		return nil
	}

	var init ir.ExpressionHandle
	hasInit := stmt.Init != nil
	if hasInit {
		value, err := f.value(stmt.Init, hint)
		if err != nil {
			return err
		}
		init = value
	} else if declared == nil {
		return loweringErrorf(stmt.Pos, "var %q needs a type or an initializer", stmt.Name)
	}

	th := ir.TypeHandle(0)
	if declared != nil {
		th = *declared
	} else {
		th = f.materialize(f.fn.Resolved[init])
	}

	local := ir.LocalHandle(len(f.fn.LocalVars))
	f.fn.LocalVars = append(f.fn.LocalVars, ir.LocalVariable{Name: stmt.Name, Type: th})
	ptr, err := f.add(ir.ExprLocalVariable{Variable: local}, stmt.Pos)
	if err != nil {
		return err
	}
	f.bind(stmt.Name, ptr)

	if hasInit {
		f.flush(block)
		*block = append(*block, ir.Statement{Kind: ir.StmtStore{Pointer: ptr, Value: init}})
	}
	return nil
}

func (f *fnLowerer) assign(block *ir.Block, stmt *AssignStmt) error {
	ptr, err := f.place(stmt.Target)
	if err != nil {
		return err
	}
	target, ok := f.typeOf(ptr).(ir.Pointer)
	if !ok {
		return loweringErrorf(stmt.Pos, "left side of assignment is not assignable")
	}
	hint := f.l.module.Types.At(target.Base).Inner

	var value ir.ExpressionHandle
	switch stmt.Op {
	case TokAssign:
		value, err = f.value(stmt.Value, hint)
		if err != nil {
			return err
		}
	case TokPlusPlus, TokMinusMinus:
		value, err = f.incDec(ptr, stmt.Op, hint, stmt.Pos)
		if err != nil {
			return err
		}
	default:
		op, ok := compoundOps[stmt.Op]
		if !ok {
			return loweringErrorf(stmt.Pos, "unsupported assignment operator")
		}
		loaded, err := f.add(ir.ExprLoad{Pointer: ptr}, stmt.Pos)
		if err != nil {
			return err
		}
		rhs, err := f.value(stmt.Value, hint)
		if err != nil {
			return err
		}
		value, err = f.binaryWithBroadcast(op, loaded, rhs, stmt.Pos)
		if err != nil {
			return err
		}
	}

	f.flush(block)
	*block = append(*block, ir.Statement{Kind: ir.StmtStore{Pointer: ptr, Value: value}})
	return nil
}

var compoundOps = map[TokenKind]ir.BinaryOp{
	TokPlusEq:    ir.BinaryAdd,
	TokMinusEq:   ir.BinarySubtract,
	TokStarEq:    ir.BinaryMultiply,
	TokSlashEq:   ir.BinaryDivide,
	TokPercentEq: ir.BinaryModulo,
	TokAmpEq:     ir.BinaryAnd,
	TokPipeEq:    ir.BinaryOr,
	TokCaretEq:   ir.BinaryXor,
}

// incDec lowers ++ and -- into load, add or subtract one, of the target's
// scalar kind.
func (f *fnLowerer) incDec(ptr ir.ExpressionHandle, op TokenKind, hint ir.TypeInner, pos Pos) (ir.ExpressionHandle, error) {
	scalar, ok := hint.(ir.Scalar)
	if !ok || scalar.Kind == ir.ScalarBool {
		return 0, loweringErrorf(pos, "increment target must be a numeric scalar")
	}
	loaded, err := f.add(ir.ExprLoad{Pointer: ptr}, pos)
	if err != nil {
		return 0, err
	}
	one, err := f.scalarOne(scalar.Kind, pos)
	if err != nil {
		return 0, err
	}
	binOp := ir.BinaryAdd
	if op == TokMinusMinus {
		binOp = ir.BinarySubtract
	}
	return f.add(ir.ExprBinary{Op: binOp, Left: loaded, Right: one}, pos)
}

func (f *fnLowerer) scalarOne(kind ir.ScalarKind, pos Pos) (ir.ExpressionHandle, error) {
	var lit ir.LiteralValue
	switch kind {
	case ir.ScalarFloat:
		lit = ir.LiteralF32(1)
	case ir.ScalarUint:
		lit = ir.LiteralU32(1)
	default:
		lit = ir.LiteralI32(1)
	}
	return f.add(ir.ExprLiteral{Value: lit}, pos)
}

func (f *fnLowerer) ifStmt(block *ir.Block, stmt *IfStmt) error {
	cond, err := f.value(stmt.Cond, ir.Scalar{Kind: ir.ScalarBool, Width: 1})
	if err != nil {
		return err
	}
	f.flush(block)

	f.pushScope()
	var accept ir.Block
	err = f.lowerStmts(&accept, stmt.Then)
	f.flush(&accept)
	f.popScope()
	if err != nil {
		return err
	}

	var reject ir.Block
	if stmt.Else != nil {
		f.pushScope()
		err = f.lowerStmts(&reject, stmt.Else)
		f.flush(&reject)
		f.popScope()
		if err != nil {
			return err
		}
	}

	*block = append(*block, ir.Statement{Kind: ir.StmtIf{
		Condition: cond,
		Accept:    accept,
		Reject:    reject,
	}})
	return nil
}

func (f *fnLowerer) forStmt(block *ir.Block, stmt *ForStmt) error {
	f.pushScope()
	defer f.popScope()

	if stmt.Init != nil {
		if err := f.lowerStmt(block, stmt.Init); err != nil {
			return err
		}
	}
	f.flush(block)

	var body ir.Block
	if stmt.Cond != nil {
		f.block = &body
		cond, err := f.value(stmt.Cond, ir.Scalar{Kind: ir.ScalarBool, Width: 1})
		if err != nil {
			return err
		}
		f.flush(&body)
		body = append(body, ir.Statement{Kind: ir.StmtIf{
			Condition: cond,
			Reject:    ir.Block{{Kind: ir.StmtBreak{}}},
		}})
	}
	if err := f.lowerStmts(&body, stmt.Body); err != nil {
		return err
	}
	f.flush(&body)

	var continuing ir.Block
	if stmt.Update != nil {
		if err := f.lowerStmt(&continuing, stmt.Update); err != nil {
			return err
		}
		f.flush(&continuing)
	}

	*block = append(*block, ir.Statement{Kind: ir.StmtLoop{
		Body:       body,
		Continuing: continuing,
	}})
	return nil
}

func (f *fnLowerer) whileStmt(block *ir.Block, stmt *WhileStmt) error {
	f.flush(block)
	f.pushScope()
	defer f.popScope()

	var body ir.Block
	f.block = &body
	cond, err := f.value(stmt.Cond, ir.Scalar{Kind: ir.ScalarBool, Width: 1})
	if err != nil {
		return err
	}
	f.flush(&body)
	body = append(body, ir.Statement{Kind: ir.StmtIf{
		Condition: cond,
		Reject:    ir.Block{{Kind: ir.StmtBreak{}}},
	}})
	if err := f.lowerStmts(&body, stmt.Body); err != nil {
		return err
	}
	f.flush(&body)

	*block = append(*block, ir.Statement{Kind: ir.StmtLoop{Body: body}})
	return nil
}

func (f *fnLowerer) loopStmt(block *ir.Block, stmt *LoopStmt) error {
	f.flush(block)
	f.pushScope()
	defer f.popScope()

	var body ir.Block
	if err := f.lowerStmts(&body, stmt.Body); err != nil {
		return err
	}
	f.flush(&body)

	loop := ir.StmtLoop{Body: body}
	var continuing ir.Block
	for i, s := range stmt.Continuing {
		if breakIf, ok := s.(*BreakIfStmt); ok {
			if i != len(stmt.Continuing)-1 {
				return loweringErrorf(breakIf.Pos, "break if must be the last statement of continuing")
			}
			f.block = &continuing
			cond, err := f.value(breakIf.Cond, ir.Scalar{Kind: ir.ScalarBool, Width: 1})
			if err != nil {
				return err
			}
			f.flush(&continuing)
			loop.BreakIf = &cond
			break
		}
		if err := f.lowerStmt(&continuing, s); err != nil {
			return err
		}
	}
	f.flush(&continuing)
	loop.Continuing = continuing

	*block = append(*block, ir.Statement{Kind: loop})
	return nil
}

func (f *fnLowerer) switchStmt(block *ir.Block, stmt *SwitchStmt) error {
	selector, err := f.value(stmt.Selector, nil)
	if err != nil {
		return err
	}
	f.flush(block)

	sw := ir.StmtSwitch{Selector: selector}
	for _, c := range stmt.Cases {
		f.pushScope()
		var body ir.Block
		err := f.lowerStmts(&body, c.Body)
		f.flush(&body)
		f.popScope()
		if err != nil {
			return err
		}

		if c.Values == nil {
			sw.Cases = append(sw.Cases, ir.SwitchCase{Value: ir.SwitchDefault{}, Body: body})
			continue
		}
		// Multi-value cases share one body; all but the last fall through.
		for i, v := range c.Values {
			n, err := f.l.evalConstInt(v)
			if err != nil {
				return err
			}
			arm := ir.SwitchCase{Value: ir.SwitchCaseValue{Value: n}}
			if i == len(c.Values)-1 {
				arm.Body = body
			} else {
				arm.FallThrough = true
			}
			sw.Cases = append(sw.Cases, arm)
		}
	}

	*block = append(*block, ir.Statement{Kind: sw})
	return nil
}

func (f *fnLowerer) returnStmt(block *ir.Block, stmt *ReturnStmt) error {
	var ret ir.StmtReturn
	if stmt.Value != nil {
		if f.fn.Result == nil {
			return loweringErrorf(stmt.Pos, "return with a value in a void function")
		}
		hint := f.l.module.Types.At(f.fn.Result.Type).Inner
		value, err := f.value(stmt.Value, hint)
		if err != nil {
			return err
		}
		ret.Value = &value
	} else if f.fn.Result != nil {
		return loweringErrorf(stmt.Pos, "missing return value")
	}
	f.flush(block)
	*block = append(*block, ir.Statement{Kind: ret})
	return nil
}

func (f *fnLowerer) exprStmt(block *ir.Block, stmt *ExprStmt) error {
	call, ok := stmt.X.(*CallExpr)
	if !ok {
		return loweringErrorf(stmt.Pos, "expression statements must be calls")
	}
	if handle, ok := f.l.fns[call.Target.Name]; ok {
		_, err := f.userCall(handle, call)
		return err
	}
	// Builtin call evaluated for effect; its value is dropped.
	if _, err := f.expr(call, nil); err != nil {
		return err
	}
	f.flush(block)
	return nil
}
