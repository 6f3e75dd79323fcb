package spirv

import (
	"fmt"
	"math"

	"github.com/gogpu/wgslc/ir"
)

func (f *funcEmitter) resolvedInner(h ir.ExpressionHandle) ir.TypeInner {
	return f.fn.Resolved[h].Inner(f.be.m)
}

// resultTypeID emits (if needed) the SPIR-V type of expression h.
func (f *funcEmitter) resultTypeID(h ir.ExpressionHandle) (uint32, error) {
	res := f.fn.Resolved[h]
	if res.Handle != nil {
		return f.be.typeID(*res.Handle)
	}
	return f.be.typeIDInner(res.Value)
}

func scalarOf(inner ir.TypeInner) (ir.Scalar, bool) {
	switch t := inner.(type) {
	case ir.Scalar:
		return t, true
	case ir.Vector:
		return t.Element, true
	case ir.Matrix:
		return t.Element, true
	}
	return ir.Scalar{}, false
}

// emitExpr writes the instructions for expression h, if any, and
// returns its result ID. Results are cached, so re-reaching a handle
// through later statements reuses the value computed at its emit point.
func (f *funcEmitter) emitExpr(h ir.ExpressionHandle) (uint32, error) {
	if f.ids[h] != 0 {
		return f.ids[h], nil
	}
	id, err := f.emitExprUncached(h)
	if err != nil {
		return 0, err
	}
	f.ids[h] = id
	return id, nil
}

func (f *funcEmitter) emitExprUncached(h ir.ExpressionHandle) (uint32, error) {
	b := f.be.b
	switch s := f.fn.Expressions.At(h).Kind.(type) {
	case ir.ExprLiteral:
		return f.emitLiteral(s)

	case ir.ExprConstant:
		return f.be.constID(s.Constant)

	case ir.ExprZeroValue:
		tid, err := f.be.typeID(s.Type)
		if err != nil {
			return 0, err
		}
		return b.DeclareNullConstant(tid), nil

	case ir.ExprCompose:
		tid, err := f.be.typeID(s.Type)
		if err != nil {
			return 0, err
		}
		operands := make([]uint32, len(s.Components))
		for i, c := range s.Components {
			cid, err := f.emitExpr(c)
			if err != nil {
				return 0, err
			}
			operands[i] = cid
		}
		return b.FuncResult(OpCompositeConstruct, tid, operands...), nil

	case ir.ExprAccess:
		idx, err := f.emitExpr(s.Index)
		if err != nil {
			return 0, err
		}
		if _, isPtr := f.resolvedInner(h).(ir.Pointer); isPtr {
			return f.emitAccessChain(h, s.Base, idx)
		}
		base, err := f.emitExpr(s.Base)
		if err != nil {
			return 0, err
		}
		if _, isVec := f.resolvedInner(s.Base).(ir.Vector); !isVec {
			return 0, fmt.Errorf("spirv: dynamic indexing of a non-vector value requires a variable")
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		return b.FuncResult(OpVectorExtractDynamic, tid, base, idx), nil

	case ir.ExprAccessIndex:
		if _, isPtr := f.resolvedInner(h).(ir.Pointer); isPtr {
			return f.emitAccessChain(h, s.Base, f.be.u32Constant(s.Index))
		}
		base, err := f.emitExpr(s.Base)
		if err != nil {
			return 0, err
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		return b.FuncResult(OpCompositeExtract, tid, base, s.Index), nil

	case ir.ExprSplat:
		v, err := f.emitExpr(s.Value)
		if err != nil {
			return 0, err
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		operands := make([]uint32, s.Size)
		for i := range operands {
			operands[i] = v
		}
		return b.FuncResult(OpCompositeConstruct, tid, operands...), nil

	case ir.ExprSwizzle:
		v, err := f.emitExpr(s.Vector)
		if err != nil {
			return 0, err
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		operands := []uint32{v, v}
		for i := 0; i < int(s.Size); i++ {
			operands = append(operands, uint32(s.Pattern[i]))
		}
		return b.FuncResult(OpVectorShuffle, tid, operands...), nil

	case ir.ExprFunctionArgument:
		return f.paramIDs[s.Index], nil

	case ir.ExprGlobalVariable:
		return f.be.globals[s.Variable].id, nil

	case ir.ExprLocalVariable:
		return f.localIDs[s.Variable], nil

	case ir.ExprLoad:
		ptr, err := f.emitPointer(s.Pointer)
		if err != nil {
			return 0, err
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		return b.FuncResult(OpLoad, tid, ptr), nil

	case ir.ExprUnary:
		return f.emitUnary(h, s)

	case ir.ExprBinary:
		return f.emitBinary(h, s)

	case ir.ExprSelect:
		cond, err := f.emitExpr(s.Condition)
		if err != nil {
			return 0, err
		}
		accept, err := f.emitExpr(s.Accept)
		if err != nil {
			return 0, err
		}
		reject, err := f.emitExpr(s.Reject)
		if err != nil {
			return 0, err
		}
		tid, err := f.resultTypeID(h)
		if err != nil {
			return 0, err
		}
		return b.FuncResult(OpSelect, tid, cond, accept, reject), nil

	case ir.ExprMath:
		return f.emitMath(h, s)

	case ir.ExprAs:
		return f.emitAs(h, s)

	case ir.ExprCallResult:
		return 0, fmt.Errorf("spirv: call result referenced before its call")

	case ir.ExprArrayLength:
		return f.emitArrayLength(s)

	case ir.ExprImageSample:
		return f.emitImageSample(h, s)

	default:
		return 0, fmt.Errorf("spirv: unsupported expression %T", f.fn.Expressions.At(h).Kind)
	}
}

func (f *funcEmitter) emitLiteral(s ir.ExprLiteral) (uint32, error) {
	be := f.be
	switch v := s.Value.(type) {
	case ir.LiteralF32:
		return be.f32Constant(math.Float32bits(float32(v))), nil
	case ir.LiteralI32:
		return be.i32Constant(uint32(int32(v))), nil
	case ir.LiteralU32:
		return be.u32Constant(uint32(v)), nil
	case ir.LiteralBool:
		tid, _ := be.b.DeclareType(OpTypeBool)
		return be.b.DeclareBoolConstant(tid, bool(v)), nil
	case ir.LiteralAbstractInt:
		return be.i32Constant(uint32(int32(v))), nil
	case ir.LiteralAbstractFloat:
		return be.f32Constant(math.Float32bits(float32(v))), nil
	default:
		return 0, fmt.Errorf("spirv: unsupported literal %T", s.Value)
	}
}

// emitPointer returns the pointer ID for expression h. A wrapped buffer
// global is not usable as a pointer to its declared type directly; the
// chain through member 0 of the block wrapper is emitted here.
func (f *funcEmitter) emitPointer(h ir.ExpressionHandle) (uint32, error) {
	if g, ok := f.fn.Expressions.At(h).Kind.(ir.ExprGlobalVariable); ok {
		info := f.be.globals[g.Variable]
		if info.wrapped {
			inner, err := f.be.typeID(f.be.m.Globals.At(g.Variable).Type)
			if err != nil {
				return 0, err
			}
			ptr, _ := f.be.b.DeclareType(OpTypePointer, uint32(info.class), inner)
			return f.be.b.FuncResult(OpAccessChain, ptr, info.id, f.be.u32Constant(0)), nil
		}
	}
	return f.emitExpr(h)
}

// emitAccessChain writes an OpAccessChain whose pointer storage class
// comes from the resolved pointer type. A chain rooted at a wrapped
// buffer global gets a leading zero index through the block struct.
func (f *funcEmitter) emitAccessChain(h, base ir.ExpressionHandle, index uint32) (uint32, error) {
	tid, err := f.resultTypeID(h)
	if err != nil {
		return 0, err
	}
	baseID, err := f.emitExpr(base)
	if err != nil {
		return 0, err
	}
	operands := []uint32{baseID}
	if g, ok := f.fn.Expressions.At(base).Kind.(ir.ExprGlobalVariable); ok {
		if f.be.globals[g.Variable].wrapped {
			operands = append(operands, f.be.u32Constant(0))
		}
	}
	operands = append(operands, index)
	return f.be.b.FuncResult(OpAccessChain, tid, operands...), nil
}

func (f *funcEmitter) emitUnary(h ir.ExpressionHandle, s ir.ExprUnary) (uint32, error) {
	v, err := f.emitExpr(s.Expr)
	if err != nil {
		return 0, err
	}
	tid, err := f.resultTypeID(h)
	if err != nil {
		return 0, err
	}
	var op OpCode
	switch s.Op {
	case ir.UnaryNegate:
		sc, _ := scalarOf(f.resolvedInner(s.Expr))
		if sc.Kind == ir.ScalarFloat {
			op = OpFNegate
		} else {
			op = OpSNegate
		}
	case ir.UnaryLogicalNot:
		op = OpLogicalNot
	case ir.UnaryBitwiseNot:
		op = OpNot
	}
	return f.be.b.FuncResult(op, tid, v), nil
}

func binaryOpcode(op ir.BinaryOp, kind ir.ScalarKind) (OpCode, error) {
	float := kind == ir.ScalarFloat
	signed := kind == ir.ScalarSint
	boolean := kind == ir.ScalarBool
	switch op {
	case ir.BinaryAdd:
		if float {
			return OpFAdd, nil
		}
		return OpIAdd, nil
	case ir.BinarySubtract:
		if float {
			return OpFSub, nil
		}
		return OpISub, nil
	case ir.BinaryMultiply:
		if float {
			return OpFMul, nil
		}
		return OpIMul, nil
	case ir.BinaryDivide:
		switch {
		case float:
			return OpFDiv, nil
		case signed:
			return OpSDiv, nil
		default:
			return OpUDiv, nil
		}
	case ir.BinaryModulo:
		switch {
		case float:
			return OpFRem, nil
		case signed:
			return OpSRem, nil
		default:
			return OpUMod, nil
		}
	case ir.BinaryEqual:
		switch {
		case float:
			return OpFOrdEqual, nil
		case boolean:
			return OpLogicalEqual, nil
		default:
			return OpIEqual, nil
		}
	case ir.BinaryNotEqual:
		switch {
		case float:
			return OpFOrdNotEqual, nil
		case boolean:
			return OpLogicalNotEqual, nil
		default:
			return OpINotEqual, nil
		}
	case ir.BinaryLess:
		switch {
		case float:
			return OpFOrdLessThan, nil
		case signed:
			return OpSLessThan, nil
		default:
			return OpULessThan, nil
		}
	case ir.BinaryLessEqual:
		switch {
		case float:
			return OpFOrdLessThanEqual, nil
		case signed:
			return OpSLessThanEqual, nil
		default:
			return OpULessThanEqual, nil
		}
	case ir.BinaryGreater:
		switch {
		case float:
			return OpFOrdGreaterThan, nil
		case signed:
			return OpSGreaterThan, nil
		default:
			return OpUGreaterThan, nil
		}
	case ir.BinaryGreaterEqual:
		switch {
		case float:
			return OpFOrdGreaterThanEqual, nil
		case signed:
			return OpSGreaterThanEqual, nil
		default:
			return OpUGreaterThanEqual, nil
		}
	case ir.BinaryAnd:
		if boolean {
			return OpLogicalAnd, nil
		}
		return OpBitwiseAnd, nil
	case ir.BinaryOr:
		if boolean {
			return OpLogicalOr, nil
		}
		return OpBitwiseOr, nil
	case ir.BinaryXor:
		return OpBitwiseXor, nil
	case ir.BinaryLogicalAnd:
		return OpLogicalAnd, nil
	case ir.BinaryLogicalOr:
		return OpLogicalOr, nil
	case ir.BinaryShiftLeft:
		return OpShiftLeftLogical, nil
	case ir.BinaryShiftRight:
		if signed {
			return OpShiftRightArithmetic, nil
		}
		return OpShiftRightLogical, nil
	}
	return 0, fmt.Errorf("spirv: unsupported binary operator %d", op)
}

func (f *funcEmitter) emitBinary(h ir.ExpressionHandle, s ir.ExprBinary) (uint32, error) {
	b := f.be.b
	left, err := f.emitExpr(s.Left)
	if err != nil {
		return 0, err
	}
	right, err := f.emitExpr(s.Right)
	if err != nil {
		return 0, err
	}
	tid, err := f.resultTypeID(h)
	if err != nil {
		return 0, err
	}
	lt := f.resolvedInner(s.Left)
	rt := f.resolvedInner(s.Right)

	if s.Op == ir.BinaryMultiply {
		if op, a, c, ok := productOpcode(lt, rt, left, right); ok {
			return b.FuncResult(op, tid, a, c), nil
		}
		// Integer vector * scalar has no dedicated instruction.
		if vec, ok := lt.(ir.Vector); ok {
			if _, scalarRHS := rt.(ir.Scalar); scalarRHS && vec.Element.Kind != ir.ScalarFloat {
				right = f.splat(tid, right, vec.Size)
			}
		} else if vec, ok := rt.(ir.Vector); ok {
			if _, scalarLHS := lt.(ir.Scalar); scalarLHS && vec.Element.Kind != ir.ScalarFloat {
				left = f.splat(tid, left, vec.Size)
			}
		}
	}

	sc, _ := scalarOf(lt)
	op, err := binaryOpcode(s.Op, sc.Kind)
	if err != nil {
		return 0, err
	}
	return b.FuncResult(op, tid, left, right), nil
}

// productOpcode matches the multiply shapes SPIR-V has dedicated
// instructions for. Operand order is normalized where the instruction
// fixes it (matrix then scalar, vector then scalar).
func productOpcode(lt, rt ir.TypeInner, left, right uint32) (OpCode, uint32, uint32, bool) {
	_, lm := lt.(ir.Matrix)
	_, rm := rt.(ir.Matrix)
	lv, lIsVec := lt.(ir.Vector)
	rv, rIsVec := rt.(ir.Vector)
	_, lIsScalar := lt.(ir.Scalar)
	_, rIsScalar := rt.(ir.Scalar)
	switch {
	case lm && rm:
		return OpMatrixTimesMatrix, left, right, true
	case lm && rIsVec:
		return OpMatrixTimesVector, left, right, true
	case lIsVec && rm:
		return OpVectorTimesMatrix, left, right, true
	case lm && rIsScalar:
		return OpMatrixTimesScalar, left, right, true
	case lIsScalar && rm:
		return OpMatrixTimesScalar, right, left, true
	case lIsVec && rIsScalar && lv.Element.Kind == ir.ScalarFloat:
		return OpVectorTimesScalar, left, right, true
	case lIsScalar && rIsVec && rv.Element.Kind == ir.ScalarFloat:
		return OpVectorTimesScalar, right, left, true
	}
	return 0, 0, 0, false
}

func (f *funcEmitter) splat(vecType, scalar uint32, size ir.VectorSize) uint32 {
	operands := make([]uint32, size)
	for i := range operands {
		operands[i] = scalar
	}
	return f.be.b.FuncResult(OpCompositeConstruct, vecType, operands...)
}

func (f *funcEmitter) emitAs(h ir.ExpressionHandle, s ir.ExprAs) (uint32, error) {
	b := f.be.b
	v, err := f.emitExpr(s.Expr)
	if err != nil {
		return 0, err
	}
	tid, err := f.resultTypeID(h)
	if err != nil {
		return 0, err
	}
	if s.Convert == nil {
		return b.FuncResult(OpBitcast, tid, v), nil
	}
	from, ok := scalarOf(f.resolvedInner(s.Expr))
	if !ok {
		return 0, fmt.Errorf("spirv: conversion of a non-numeric value")
	}
	switch {
	case from.Kind == s.Kind:
		return v, nil
	case from.Kind == ir.ScalarFloat && s.Kind == ir.ScalarSint:
		return b.FuncResult(OpConvertFToS, tid, v), nil
	case from.Kind == ir.ScalarFloat && s.Kind == ir.ScalarUint:
		return b.FuncResult(OpConvertFToU, tid, v), nil
	case from.Kind == ir.ScalarSint && s.Kind == ir.ScalarFloat:
		return b.FuncResult(OpConvertSToF, tid, v), nil
	case from.Kind == ir.ScalarUint && s.Kind == ir.ScalarFloat:
		return b.FuncResult(OpConvertUToF, tid, v), nil
	case from.Kind == ir.ScalarSint && s.Kind == ir.ScalarUint,
		from.Kind == ir.ScalarUint && s.Kind == ir.ScalarSint:
		return b.FuncResult(OpBitcast, tid, v), nil
	case from.Kind == ir.ScalarBool:
		one, zero := f.selectConstants(s.Kind)
		return b.FuncResult(OpSelect, tid, v, one, zero), nil
	case s.Kind == ir.ScalarBool:
		zero, err := f.zeroConstant(f.resolvedInner(s.Expr))
		if err != nil {
			return 0, err
		}
		op := OpINotEqual
		if from.Kind == ir.ScalarFloat {
			op = OpFOrdNotEqual
		}
		return b.FuncResult(op, tid, v, zero), nil
	}
	return 0, fmt.Errorf("spirv: unsupported conversion")
}

func (f *funcEmitter) selectConstants(kind ir.ScalarKind) (one, zero uint32) {
	switch kind {
	case ir.ScalarFloat:
		return f.be.f32Constant(math.Float32bits(1)), f.be.f32Constant(0)
	case ir.ScalarSint:
		return f.be.i32Constant(1), f.be.i32Constant(0)
	default:
		return f.be.u32Constant(1), f.be.u32Constant(0)
	}
}

// zeroConstant builds the zero value matching a scalar or vector shape.
func (f *funcEmitter) zeroConstant(inner ir.TypeInner) (uint32, error) {
	tid, err := f.be.typeIDInner(inner)
	if err != nil {
		return 0, err
	}
	return f.be.b.DeclareNullConstant(tid), nil
}

func (f *funcEmitter) emitArrayLength(s ir.ExprArrayLength) (uint32, error) {
	u32 := f.be.u32TypeID()
	switch p := f.fn.Expressions.At(s.Pointer).Kind.(type) {
	case ir.ExprGlobalVariable:
		info := f.be.globals[p.Variable]
		if !info.wrapped {
			return 0, fmt.Errorf("spirv: arrayLength target is not a runtime-sized buffer")
		}
		return f.be.b.FuncResult(OpArrayLength, u32, info.id, 0), nil
	case ir.ExprAccessIndex:
		g, ok := f.fn.Expressions.At(p.Base).Kind.(ir.ExprGlobalVariable)
		if !ok {
			return 0, fmt.Errorf("spirv: arrayLength target must be a buffer member")
		}
		return f.be.b.FuncResult(OpArrayLength, u32, f.be.globals[g.Variable].id, p.Index), nil
	}
	return 0, fmt.Errorf("spirv: arrayLength target must be a buffer member")
}
