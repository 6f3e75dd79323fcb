package ir

import "fmt"

// ResolveExpressionType resolves the type of one expression. The front end
// calls this as it appends expressions and stores the result in the
// function's Resolved cache; the validator and back end read that cache and
// fall back to this function for ad-hoc queries.
func ResolveExpressionType(m *Module, fn *Function, h ExpressionHandle) (TypeResolution, error) {
	if !fn.Expressions.Valid(h) {
		return TypeResolution{}, fmt.Errorf("expression handle %d out of range (arena has %d)", h, fn.Expressions.Len())
	}

	switch kind := fn.Expressions.At(h).Kind.(type) {
	case ExprLiteral:
		return resolveLiteral(kind)
	case ExprConstant:
		if !m.Constants.Valid(kind.Constant) {
			return TypeResolution{}, fmt.Errorf("constant handle %d out of range", kind.Constant)
		}
		return HandleRes(m.Constants.At(kind.Constant).Type), nil
	case ExprZeroValue:
		return HandleRes(kind.Type), nil
	case ExprCompose:
		return HandleRes(kind.Type), nil
	case ExprAccess:
		return resolveIndexed(m, fn, kind.Base, nil)
	case ExprAccessIndex:
		idx := kind.Index
		return resolveIndexed(m, fn, kind.Base, &idx)
	case ExprSplat:
		return resolveSplat(m, fn, kind)
	case ExprSwizzle:
		base, err := resolvedInner(m, fn, kind.Vector)
		if err != nil {
			return TypeResolution{}, err
		}
		vec, ok := base.(Vector)
		if !ok {
			return TypeResolution{}, fmt.Errorf("swizzle base is %T, want vector", base)
		}
		return ValueRes(Vector{Size: kind.Size, Element: vec.Element}), nil
	case ExprFunctionArgument:
		if int(kind.Index) >= len(fn.Arguments) {
			return TypeResolution{}, fmt.Errorf("argument index %d out of range", kind.Index)
		}
		return HandleRes(fn.Arguments[kind.Index].Type), nil
	case ExprGlobalVariable:
		if !m.Globals.Valid(kind.Variable) {
			return TypeResolution{}, fmt.Errorf("global handle %d out of range", kind.Variable)
		}
		g := m.Globals.At(kind.Variable)
		if g.Space == SpaceHandle {
			// Opaque resources are used directly, not through pointers.
			return HandleRes(g.Type), nil
		}
		return ValueRes(Pointer{Base: g.Type, Space: g.Space}), nil
	case ExprLocalVariable:
		if int(kind.Variable) >= len(fn.LocalVars) {
			return TypeResolution{}, fmt.Errorf("local handle %d out of range", kind.Variable)
		}
		return ValueRes(Pointer{Base: fn.LocalVars[kind.Variable].Type, Space: SpaceFunction}), nil
	case ExprLoad:
		inner, err := resolvedInner(m, fn, kind.Pointer)
		if err != nil {
			return TypeResolution{}, err
		}
		ptr, ok := inner.(Pointer)
		if !ok {
			return TypeResolution{}, fmt.Errorf("load of %T, want pointer", inner)
		}
		return HandleRes(ptr.Base), nil
	case ExprUnary:
		return ResolveExpressionType(m, fn, kind.Expr)
	case ExprBinary:
		return resolveBinary(m, fn, kind)
	case ExprSelect:
		return ResolveExpressionType(m, fn, kind.Accept)
	case ExprMath:
		return resolveMath(m, fn, kind)
	case ExprAs:
		return resolveAs(m, fn, kind)
	case ExprCallResult:
		if !m.Functions.Valid(kind.Function) {
			return TypeResolution{}, fmt.Errorf("function handle %d out of range", kind.Function)
		}
		result := m.Functions.At(kind.Function).Result
		if result == nil {
			return TypeResolution{}, fmt.Errorf("call result of void function %q", m.Functions.At(kind.Function).Name)
		}
		return HandleRes(result.Type), nil
	case ExprArrayLength:
		return ValueRes(Scalar{Kind: ScalarUint, Width: 4}), nil
	case ExprImageSample:
		return resolveImageSample(m, fn, kind)
	default:
		return TypeResolution{}, fmt.Errorf("unhandled expression kind %T", kind)
	}
}

func resolvedInner(m *Module, fn *Function, h ExpressionHandle) (TypeInner, error) {
	if int(h) < len(fn.Resolved) {
		res := fn.Resolved[h]
		if res.Handle != nil || res.Value != nil {
			return res.Inner(m), nil
		}
	}
	res, err := ResolveExpressionType(m, fn, h)
	if err != nil {
		return nil, err
	}
	return res.Inner(m), nil
}

func resolveLiteral(lit ExprLiteral) (TypeResolution, error) {
	switch lit.Value.(type) {
	case LiteralF32, LiteralAbstractFloat:
		return ValueRes(Scalar{Kind: ScalarFloat, Width: 4}), nil
	case LiteralI32, LiteralAbstractInt:
		return ValueRes(Scalar{Kind: ScalarSint, Width: 4}), nil
	case LiteralU32:
		return ValueRes(Scalar{Kind: ScalarUint, Width: 4}), nil
	case LiteralBool:
		return ValueRes(Scalar{Kind: ScalarBool, Width: 1}), nil
	}
	return TypeResolution{}, fmt.Errorf("unhandled literal %T", lit.Value)
}

// resolveIndexed handles both dynamic and constant indexing. Indexing a
// pointer yields a pointer to the element when the element has a registered
// handle; otherwise the element type itself (the back end derives
// pointer-ness from the base expression).
func resolveIndexed(m *Module, fn *Function, base ExpressionHandle, constIndex *uint32) (TypeResolution, error) {
	inner, err := resolvedInner(m, fn, base)
	if err != nil {
		return TypeResolution{}, err
	}

	space := AddressSpace(0)
	throughPointer := false
	if ptr, ok := inner.(Pointer); ok {
		throughPointer = true
		space = ptr.Space
		inner = m.Types.At(ptr.Base).Inner
	}

	switch t := inner.(type) {
	case Array:
		if throughPointer {
			return ValueRes(Pointer{Base: t.Element, Space: space}), nil
		}
		return HandleRes(t.Element), nil
	case Vector:
		return ValueRes(t.Element), nil
	case Matrix:
		return ValueRes(Vector{Size: t.Rows, Element: t.Element}), nil
	case Struct:
		if constIndex == nil {
			return TypeResolution{}, fmt.Errorf("struct indexed with runtime index")
		}
		if int(*constIndex) >= len(t.Members) {
			return TypeResolution{}, fmt.Errorf("struct member index %d out of range", *constIndex)
		}
		member := t.Members[*constIndex].Type
		if throughPointer {
			return ValueRes(Pointer{Base: member, Space: space}), nil
		}
		return HandleRes(member), nil
	default:
		return TypeResolution{}, fmt.Errorf("cannot index %T", t)
	}
}

func resolveSplat(m *Module, fn *Function, expr ExprSplat) (TypeResolution, error) {
	inner, err := resolvedInner(m, fn, expr.Value)
	if err != nil {
		return TypeResolution{}, err
	}
	s, ok := inner.(Scalar)
	if !ok {
		return TypeResolution{}, fmt.Errorf("splat of %T, want scalar", inner)
	}
	return ValueRes(Vector{Size: expr.Size, Element: s}), nil
}

func resolveBinary(m *Module, fn *Function, expr ExprBinary) (TypeResolution, error) {
	left, err := ResolveExpressionType(m, fn, expr.Left)
	if err != nil {
		return TypeResolution{}, err
	}

	switch expr.Op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual:
		if vec, ok := left.Inner(m).(Vector); ok {
			return ValueRes(Vector{Size: vec.Size, Element: Scalar{Kind: ScalarBool, Width: 1}}), nil
		}
		return ValueRes(Scalar{Kind: ScalarBool, Width: 1}), nil
	case BinaryLogicalAnd, BinaryLogicalOr:
		return ValueRes(Scalar{Kind: ScalarBool, Width: 1}), nil
	case BinaryMultiply:
		right, err := ResolveExpressionType(m, fn, expr.Right)
		if err != nil {
			return TypeResolution{}, err
		}
		return resolveProduct(m, left, right), nil
	default:
		// Arithmetic and bitwise: a scalar operand broadcasts against a
		// vector operand.
		right, err := ResolveExpressionType(m, fn, expr.Right)
		if err != nil {
			return TypeResolution{}, err
		}
		_, leftScalar := left.Inner(m).(Scalar)
		_, rightVec := right.Inner(m).(Vector)
		if leftScalar && rightVec {
			return right, nil
		}
		return left, nil
	}
}

// resolveProduct applies the multiplication shape rules: scalar*X → X,
// mat*vec → vec(rows), vec*mat → vec(cols), otherwise the left type.
func resolveProduct(m *Module, left, right TypeResolution) TypeResolution {
	li := left.Inner(m)
	ri := right.Inner(m)

	if _, ok := li.(Scalar); ok {
		return right
	}
	if _, ok := ri.(Scalar); ok {
		return left
	}
	if lm, ok := li.(Matrix); ok {
		if _, ok := ri.(Vector); ok {
			return ValueRes(Vector{Size: lm.Rows, Element: lm.Element})
		}
		return left
	}
	if rm, ok := ri.(Matrix); ok {
		if _, ok := li.(Vector); ok {
			return ValueRes(Vector{Size: rm.Columns, Element: rm.Element})
		}
	}
	return left
}

func resolveMath(m *Module, fn *Function, expr ExprMath) (TypeResolution, error) {
	arg, err := ResolveExpressionType(m, fn, expr.Arg)
	if err != nil {
		return TypeResolution{}, err
	}

	switch expr.Fun {
	case MathDot:
		if vec, ok := arg.Inner(m).(Vector); ok {
			return ValueRes(vec.Element), nil
		}
		return arg, nil
	case MathLength, MathDistance:
		return ValueRes(Scalar{Kind: ScalarFloat, Width: 4}), nil
	default:
		return arg, nil
	}
}

func resolveAs(m *Module, fn *Function, expr ExprAs) (TypeResolution, error) {
	src, err := ResolveExpressionType(m, fn, expr.Expr)
	if err != nil {
		return TypeResolution{}, err
	}
	width := uint8(4)
	if expr.Convert != nil {
		width = *expr.Convert
	}
	target := Scalar{Kind: expr.Kind, Width: width}
	if vec, ok := src.Inner(m).(Vector); ok {
		return ValueRes(Vector{Size: vec.Size, Element: target}), nil
	}
	return ValueRes(target), nil
}

func resolveImageSample(m *Module, fn *Function, expr ExprImageSample) (TypeResolution, error) {
	inner, err := resolvedInner(m, fn, expr.Image)
	if err != nil {
		return TypeResolution{}, err
	}
	img, ok := inner.(Image)
	if !ok {
		return TypeResolution{}, fmt.Errorf("sample of %T, want image", inner)
	}
	if img.Class == ImageDepth || expr.DepthRef != nil {
		return ValueRes(Scalar{Kind: ScalarFloat, Width: 4}), nil
	}
	return ValueRes(Vector{Size: Vec4, Element: Scalar{Kind: img.SampledKind, Width: 4}}), nil
}
