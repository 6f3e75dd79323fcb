package wgsl

import (
	"math"

	"github.com/gogpu/wgslc/ir"
)

// value lowers an expression and loads it if it resolved to a pointer, so
// callers always receive the stored value. The hint steers unsuffixed
// literal concretization; it is never a requirement.
func (f *fnLowerer) value(e Expr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	h, err := f.expr(e, hint)
	if err != nil {
		return 0, err
	}
	return f.loadIfPointer(h, e.ExprPos())
}

// place lowers an expression required to denote memory.
func (f *fnLowerer) place(e Expr) (ir.ExpressionHandle, error) {
	h, err := f.expr(e, nil)
	if err != nil {
		return 0, err
	}
	if _, ok := f.typeOf(h).(ir.Pointer); !ok {
		return 0, loweringErrorf(e.ExprPos(), "expression does not denote memory")
	}
	return h, nil
}

func (f *fnLowerer) loadIfPointer(h ir.ExpressionHandle, pos Pos) (ir.ExpressionHandle, error) {
	if _, ok := f.typeOf(h).(ir.Pointer); ok {
		return f.add(ir.ExprLoad{Pointer: h}, pos)
	}
	return h, nil
}

// expr lowers an expression without loading, so variable references stay
// pointers for assignment targets and address-of.
func (f *fnLowerer) expr(e Expr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	switch x := e.(type) {
	case *IdentExpr:
		if h, ok := f.lookup(x.Name); ok {
			return h, nil
		}
		if ch, ok := f.l.consts[x.Name]; ok {
			return f.add(ir.ExprConstant{Constant: ch}, x.Pos)
		}
		if gh, ok := f.l.globals[x.Name]; ok {
			return f.add(ir.ExprGlobalVariable{Variable: gh}, x.Pos)
		}
		return 0, syntaxErrorf(x.Pos, "unknown identifier %q", x.Name)

	case *IntLit:
		return f.intLiteral(x, hint)

	case *FloatLit:
		v, err := parseFloatLiteral(x.Text, x.Pos)
		if err != nil {
			return 0, err
		}
		return f.add(ir.ExprLiteral{Value: ir.LiteralF32(float32(v))}, x.Pos)

	case *BoolLit:
		return f.add(ir.ExprLiteral{Value: ir.LiteralBool(x.Value)}, x.Pos)

	case *UnaryExpr:
		return f.unary(x, hint)

	case *BinaryExpr:
		return f.binary(x, hint)

	case *CallExpr:
		return f.call(x, hint)

	case *IndexExpr:
		base, err := f.expr(x.Base, nil)
		if err != nil {
			return 0, err
		}
		if lit, ok := x.Index.(*IntLit); ok {
			n, suffix, err := parseIntLiteral(lit.Text, lit.Pos)
			if err != nil {
				return 0, err
			}
			if suffix == "" || suffix == "i" || suffix == "u" {
				return f.add(ir.ExprAccessIndex{Base: base, Index: uint32(n)}, x.Pos)
			}
		}
		index, err := f.value(x.Index, nil)
		if err != nil {
			return 0, err
		}
		return f.add(ir.ExprAccess{Base: base, Index: index}, x.Pos)

	case *MemberExpr:
		return f.member(x)

	case *BitcastExpr:
		return f.bitcast(x)
	}
	return 0, loweringErrorf(e.ExprPos(), "unhandled expression")
}

func (f *fnLowerer) intLiteral(x *IntLit, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	n, suffix, err := parseIntLiteral(x.Text, x.Pos)
	if err != nil {
		return 0, err
	}
	if suffix == "" {
		// Concretize by context.
		switch hintScalarKind(hint) {
		case ir.ScalarFloat:
			suffix = "f"
		case ir.ScalarUint:
			suffix = "u"
		default:
			suffix = "i"
		}
	}
	var lit ir.LiteralValue
	switch suffix {
	case "u":
		lit = ir.LiteralU32(uint32(n))
	case "f":
		lit = ir.LiteralF32(float32(n))
	default:
		if n > math.MaxInt32 {
			return 0, loweringErrorf(x.Pos, "integer literal %q overflows i32", x.Text)
		}
		lit = ir.LiteralI32(int32(n))
	}
	return f.add(ir.ExprLiteral{Value: lit}, x.Pos)
}

func hintScalarKind(hint ir.TypeInner) ir.ScalarKind {
	switch t := hint.(type) {
	case ir.Scalar:
		return t.Kind
	case ir.Vector:
		return t.Element.Kind
	case ir.Matrix:
		return t.Element.Kind
	}
	return ir.ScalarSint
}

func (f *fnLowerer) unary(x *UnaryExpr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	switch x.Op {
	case TokAmp:
		return f.place(x.X)
	case TokStar:
		// Pointers are transparent here; the load happens at value use.
		return f.place(x.X)
	}

	var op ir.UnaryOp
	switch x.Op {
	case TokMinus:
		op = ir.UnaryNegate
	case TokBang:
		op = ir.UnaryLogicalNot
	case TokTilde:
		op = ir.UnaryBitwiseNot
	default:
		return 0, loweringErrorf(x.Pos, "unsupported unary operator")
	}
	v, err := f.value(x.X, hint)
	if err != nil {
		return 0, err
	}
	return f.add(ir.ExprUnary{Op: op, Expr: v}, x.Pos)
}

var binaryOps = map[TokenKind]ir.BinaryOp{
	TokPlus:       ir.BinaryAdd,
	TokMinus:      ir.BinarySubtract,
	TokStar:       ir.BinaryMultiply,
	TokSlash:      ir.BinaryDivide,
	TokPercent:    ir.BinaryModulo,
	TokEq:         ir.BinaryEqual,
	TokNotEq:      ir.BinaryNotEqual,
	TokLess:       ir.BinaryLess,
	TokLessEq:     ir.BinaryLessEqual,
	TokGreater:    ir.BinaryGreater,
	TokGreaterEq:  ir.BinaryGreaterEqual,
	TokAmp:        ir.BinaryAnd,
	TokPipe:       ir.BinaryOr,
	TokCaret:      ir.BinaryXor,
	TokAndAnd:     ir.BinaryLogicalAnd,
	TokOrOr:       ir.BinaryLogicalOr,
	TokShiftLeft:  ir.BinaryShiftLeft,
	TokShiftRight: ir.BinaryShiftRight,
}

func (f *fnLowerer) binary(x *BinaryExpr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	op, ok := binaryOps[x.Op]
	if !ok {
		return 0, loweringErrorf(x.Pos, "unsupported binary operator")
	}

	// Lower the non-literal side first so an unsuffixed literal on the
	// other side concretizes to match it.
	var left, right ir.ExpressionHandle
	var err error
	if isBareLiteral(x.Left) && !isBareLiteral(x.Right) {
		right, err = f.value(x.Right, hint)
		if err != nil {
			return 0, err
		}
		left, err = f.value(x.Left, f.typeOf(right))
		if err != nil {
			return 0, err
		}
	} else {
		left, err = f.value(x.Left, hint)
		if err != nil {
			return 0, err
		}
		rightHint := ir.TypeInner(f.typeOf(left))
		if op == ir.BinaryShiftLeft || op == ir.BinaryShiftRight {
			rightHint = ir.Scalar{Kind: ir.ScalarUint, Width: 4}
		}
		right, err = f.value(x.Right, rightHint)
		if err != nil {
			return 0, err
		}
	}
	return f.binaryWithBroadcast(op, left, right, x.Pos)
}

func isBareLiteral(e Expr) bool {
	switch lit := e.(type) {
	case *IntLit:
		_, suffix := literalParts(lit.Text)
		return suffix == ""
	case *FloatLit:
		return true
	}
	return false
}

// binaryWithBroadcast splats a scalar operand to the other side's vector
// size for the componentwise operators. Multiplication keeps mixed shapes:
// vector-scalar and matrix products are native operations downstream.
func (f *fnLowerer) binaryWithBroadcast(op ir.BinaryOp, left, right ir.ExpressionHandle, pos Pos) (ir.ExpressionHandle, error) {
	switch op {
	case ir.BinaryAdd, ir.BinarySubtract, ir.BinaryDivide, ir.BinaryModulo,
		ir.BinaryAnd, ir.BinaryOr, ir.BinaryXor:
		lv, lIsVec := f.typeOf(left).(ir.Vector)
		rv, rIsVec := f.typeOf(right).(ir.Vector)
		var err error
		if lIsVec && !rIsVec {
			right, err = f.add(ir.ExprSplat{Size: lv.Size, Value: right}, pos)
		} else if rIsVec && !lIsVec {
			left, err = f.add(ir.ExprSplat{Size: rv.Size, Value: left}, pos)
		}
		if err != nil {
			return 0, err
		}
	}
	return f.add(ir.ExprBinary{Op: op, Left: left, Right: right}, pos)
}

var swizzleIndex = map[byte]uint8{
	'x': 0, 'y': 1, 'z': 2, 'w': 3,
	'r': 0, 'g': 1, 'b': 2, 'a': 3,
}

func (f *fnLowerer) member(x *MemberExpr) (ir.ExpressionHandle, error) {
	base, err := f.expr(x.Base, nil)
	if err != nil {
		return 0, err
	}
	inner := f.typeOf(base)
	if ptr, ok := inner.(ir.Pointer); ok {
		inner = f.l.module.Types.At(ptr.Base).Inner
	}

	switch t := inner.(type) {
	case ir.Struct:
		for i, m := range t.Members {
			if m.Name == x.Field {
				return f.add(ir.ExprAccessIndex{Base: base, Index: uint32(i)}, x.Pos)
			}
		}
		return 0, loweringErrorf(x.Pos, "no member %q in struct", x.Field)

	case ir.Vector:
		n := len(x.Field)
		if n < 1 || n > 4 {
			return 0, loweringErrorf(x.Pos, "invalid swizzle %q", x.Field)
		}
		var pattern [4]uint8
		for i := 0; i < n; i++ {
			idx, ok := swizzleIndex[x.Field[i]]
			if !ok || idx >= uint8(t.Size) {
				return 0, loweringErrorf(x.Pos, "invalid swizzle %q", x.Field)
			}
			pattern[i] = idx
		}
		if n == 1 {
			return f.add(ir.ExprAccessIndex{Base: base, Index: uint32(pattern[0])}, x.Pos)
		}
		vec, err := f.loadIfPointer(base, x.Pos)
		if err != nil {
			return 0, err
		}
		return f.add(ir.ExprSwizzle{
			Size:    ir.VectorSize(n),
			Vector:  vec,
			Pattern: pattern,
		}, x.Pos)
	}
	return 0, loweringErrorf(x.Pos, "cannot access member %q of this type", x.Field)
}

func (f *fnLowerer) bitcast(x *BitcastExpr) (ir.ExpressionHandle, error) {
	th, err := f.l.lowerType(x.To)
	if err != nil {
		return 0, err
	}
	var kind ir.ScalarKind
	switch t := f.l.module.Types.At(th).Inner.(type) {
	case ir.Scalar:
		kind = t.Kind
	case ir.Vector:
		kind = t.Element.Kind
	default:
		return 0, loweringErrorf(x.Pos, "bitcast target must be a scalar or vector")
	}
	v, err := f.value(x.X, nil)
	if err != nil {
		return 0, err
	}
	return f.add(ir.ExprAs{Expr: v, Kind: kind}, x.Pos)
}

var mathFunctions = map[string]struct {
	fun   ir.MathFunction
	arity int
}{
	"abs":         {ir.MathAbs, 1},
	"min":         {ir.MathMin, 2},
	"max":         {ir.MathMax, 2},
	"clamp":       {ir.MathClamp, 3},
	"saturate":    {ir.MathSaturate, 1},
	"dot":         {ir.MathDot, 2},
	"cross":       {ir.MathCross, 2},
	"length":      {ir.MathLength, 1},
	"distance":    {ir.MathDistance, 2},
	"normalize":   {ir.MathNormalize, 1},
	"reflect":     {ir.MathReflect, 2},
	"floor":       {ir.MathFloor, 1},
	"ceil":        {ir.MathCeil, 1},
	"fract":       {ir.MathFract, 1},
	"trunc":       {ir.MathTrunc, 1},
	"round":       {ir.MathRound, 1},
	"sqrt":        {ir.MathSqrt, 1},
	"inverseSqrt": {ir.MathInverseSqrt, 1},
	"pow":         {ir.MathPow, 2},
	"exp":         {ir.MathExp, 1},
	"exp2":        {ir.MathExp2, 1},
	"log":         {ir.MathLog, 1},
	"log2":        {ir.MathLog2, 1},
	"sin":         {ir.MathSin, 1},
	"cos":         {ir.MathCos, 1},
	"tan":         {ir.MathTan, 1},
	"asin":        {ir.MathAsin, 1},
	"acos":        {ir.MathAcos, 1},
	"atan":        {ir.MathAtan, 1},
	"atan2":       {ir.MathAtan2, 2},
	"mix":         {ir.MathMix, 3},
	"step":        {ir.MathStep, 2},
	"smoothstep":  {ir.MathSmoothStep, 3},
	"sign":        {ir.MathSign, 1},
	"fma":         {ir.MathFma, 3},
}

func (f *fnLowerer) call(x *CallExpr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	name := x.Target.Name

	if handle, ok := f.l.fns[name]; ok && len(x.Target.Args) == 0 && x.Target.Count == nil {
		return f.userCall(handle, x)
	}
	if m, ok := mathFunctions[name]; ok {
		return f.mathCall(m.fun, m.arity, x)
	}
	switch name {
	case "select":
		if len(x.Args) != 3 {
			return 0, loweringErrorf(x.Pos, "select takes three arguments")
		}
		reject, err := f.value(x.Args[0], hint)
		if err != nil {
			return 0, err
		}
		accept, err := f.value(x.Args[1], f.typeOf(reject))
		if err != nil {
			return 0, err
		}
		cond, err := f.value(x.Args[2], ir.Scalar{Kind: ir.ScalarBool, Width: 1})
		if err != nil {
			return 0, err
		}
		return f.add(ir.ExprSelect{Condition: cond, Accept: accept, Reject: reject}, x.Pos)

	case "arrayLength":
		if len(x.Args) != 1 {
			return 0, loweringErrorf(x.Pos, "arrayLength takes one argument")
		}
		ptr, err := f.expr(x.Args[0], nil)
		if err != nil {
			return 0, err
		}
		return f.add(ir.ExprArrayLength{Pointer: ptr}, x.Pos)

	case "textureSample", "textureSampleLevel", "textureSampleBias",
		"textureSampleGrad", "textureSampleCompare", "textureSampleCompareLevel":
		return f.imageSample(name, x)
	}

	return f.construct(x, hint)
}

func (f *fnLowerer) mathCall(fun ir.MathFunction, arity int, x *CallExpr) (ir.ExpressionHandle, error) {
	if len(x.Args) != arity {
		return 0, loweringErrorf(x.Pos, "%s takes %d arguments, got %d", x.Target.Name, arity, len(x.Args))
	}
	arg, err := f.value(x.Args[0], nil)
	if err != nil {
		return 0, err
	}
	expr := ir.ExprMath{Fun: fun, Arg: arg}
	slots := []**ir.ExpressionHandle{nil, &expr.Arg1, &expr.Arg2, &expr.Arg3}
	argHint := f.typeOf(arg)
	for i := 1; i < arity; i++ {
		h, err := f.value(x.Args[i], argHint)
		if err != nil {
			return 0, err
		}
		v := h
		*slots[i] = &v
	}
	return f.add(expr, x.Pos)
}

// userCall lowers a call to a declared function: a call statement in the
// current block plus, for non-void callees, the expression holding its
// result.
func (f *fnLowerer) userCall(handle ir.FunctionHandle, x *CallExpr) (ir.ExpressionHandle, error) {
	callee := f.l.module.Functions.Ptr(handle)
	if len(x.Args) != len(callee.Arguments) {
		return 0, loweringErrorf(x.Pos, "%q takes %d arguments, got %d",
			callee.Name, len(callee.Arguments), len(x.Args))
	}

	var args []ir.ExpressionHandle
	for i, arg := range x.Args {
		hint := f.l.module.Types.At(callee.Arguments[i].Type).Inner
		h, err := f.value(arg, hint)
		if err != nil {
			return 0, err
		}
		args = append(args, h)
	}
	f.flush(f.block)

	call := ir.StmtCall{Function: handle, Arguments: args}
	var result ir.ExpressionHandle
	if callee.Result != nil {
		h, err := f.add(ir.ExprCallResult{Function: handle}, x.Pos)
		if err != nil {
			return 0, err
		}
		result = h
		call.Result = &h
		f.skipPending()
	}
	*f.block = append(*f.block, ir.Statement{Kind: call})
	return result, nil
}

// construct lowers type constructor calls: conversions, splats, composites,
// and zero values.
func (f *fnLowerer) construct(x *CallExpr, hint ir.TypeInner) (ir.ExpressionHandle, error) {
	th, err := f.l.lowerType(x.Target)
	if err != nil {
		return 0, syntaxErrorf(x.Pos, "unknown function or type %q", x.Target.Name)
	}
	inner := f.l.module.Types.At(th).Inner

	if len(x.Args) == 0 {
		return f.add(ir.ExprZeroValue{Type: th}, x.Pos)
	}

	switch t := inner.(type) {
	case ir.Scalar:
		if len(x.Args) != 1 {
			return 0, loweringErrorf(x.Pos, "scalar conversion takes one argument")
		}
		v, err := f.value(x.Args[0], nil)
		if err != nil {
			return 0, err
		}
		width := t.Width
		return f.add(ir.ExprAs{Expr: v, Kind: t.Kind, Convert: &width}, x.Pos)

	case ir.Vector:
		elemHint := ir.TypeInner(t.Element)
		if len(x.Args) == 1 {
			v, err := f.value(x.Args[0], elemHint)
			if err != nil {
				return 0, err
			}
			if _, isScalar := f.typeOf(v).(ir.Scalar); isScalar {
				return f.add(ir.ExprSplat{Size: t.Size, Value: v}, x.Pos)
			}
			return f.add(ir.ExprCompose{Type: th, Components: []ir.ExpressionHandle{v}}, x.Pos)
		}
		return f.compose(th, x.Args, elemHint, x.Pos)

	case ir.Matrix:
		colHint := ir.Vector{Size: t.Rows, Element: t.Element}
		return f.compose(th, x.Args, colHint, x.Pos)

	case ir.Array:
		var elemHint ir.TypeInner
		if f.l.module.Types.Valid(t.Element) {
			elemHint = f.l.module.Types.At(t.Element).Inner
		}
		return f.compose(th, x.Args, elemHint, x.Pos)

	case ir.Struct:
		if len(x.Args) != len(t.Members) {
			return 0, loweringErrorf(x.Pos, "%q constructor takes %d arguments, got %d",
				x.Target.Name, len(t.Members), len(x.Args))
		}
		var components []ir.ExpressionHandle
		for i, arg := range x.Args {
			memberHint := f.l.module.Types.At(t.Members[i].Type).Inner
			h, err := f.value(arg, memberHint)
			if err != nil {
				return 0, err
			}
			components = append(components, h)
		}
		return f.add(ir.ExprCompose{Type: th, Components: components}, x.Pos)
	}
	return 0, loweringErrorf(x.Pos, "cannot construct values of type %q", x.Target.Name)
}

func (f *fnLowerer) compose(th ir.TypeHandle, args []Expr, elemHint ir.TypeInner, pos Pos) (ir.ExpressionHandle, error) {
	var components []ir.ExpressionHandle
	for _, arg := range args {
		h, err := f.value(arg, elemHint)
		if err != nil {
			return 0, err
		}
		components = append(components, h)
	}
	return f.add(ir.ExprCompose{Type: th, Components: components}, pos)
}

func coordinateComponents(dim ir.ImageDimension) int {
	switch dim {
	case ir.Dim1D:
		return 1
	case ir.Dim2D:
		return 2
	}
	return 3
}

func (f *fnLowerer) imageSample(name string, x *CallExpr) (ir.ExpressionHandle, error) {
	if len(x.Args) < 3 {
		return 0, loweringErrorf(x.Pos, "%s needs a texture, a sampler, and coordinates", name)
	}
	image, err := f.expr(x.Args[0], nil)
	if err != nil {
		return 0, err
	}
	img, ok := f.typeOf(image).(ir.Image)
	if !ok {
		return 0, loweringErrorf(x.Args[0].ExprPos(), "%s requires a texture", name)
	}
	sampler, err := f.expr(x.Args[1], nil)
	if err != nil {
		return 0, err
	}
	if _, ok := f.typeOf(sampler).(ir.Sampler); !ok {
		return 0, loweringErrorf(x.Args[1].ExprPos(), "%s requires a sampler", name)
	}

	f32 := ir.Scalar{Kind: ir.ScalarFloat, Width: 4}
	var coordHint ir.TypeInner = f32
	if n := coordinateComponents(img.Dim); n > 1 {
		coordHint = ir.Vector{Size: ir.VectorSize(n), Element: f32}
	}
	coord, err := f.value(x.Args[2], coordHint)
	if err != nil {
		return 0, err
	}

	sample := ir.ExprImageSample{
		Image:      image,
		Sampler:    sampler,
		Coordinate: coord,
		Level:      ir.SampleLevelAuto{},
	}

	rest := x.Args[3:]
	if img.Arrayed {
		if len(rest) == 0 {
			return 0, loweringErrorf(x.Pos, "%s on an arrayed texture needs an array index", name)
		}
		idx, err := f.value(rest[0], nil)
		if err != nil {
			return 0, err
		}
		sample.ArrayIndex = &idx
		rest = rest[1:]
	}

	wantExtra := 0
	switch name {
	case "textureSample":
	case "textureSampleLevel", "textureSampleBias", "textureSampleCompare", "textureSampleCompareLevel":
		wantExtra = 1
	case "textureSampleGrad":
		wantExtra = 2
	}
	if len(rest) != wantExtra {
		return 0, loweringErrorf(x.Pos, "wrong number of arguments to %s", name)
	}

	switch name {
	case "textureSampleLevel":
		level, err := f.value(rest[0], f32)
		if err != nil {
			return 0, err
		}
		sample.Level = ir.SampleLevelExact{Level: level}
	case "textureSampleBias":
		bias, err := f.value(rest[0], f32)
		if err != nil {
			return 0, err
		}
		sample.Level = ir.SampleLevelBias{Bias: bias}
	case "textureSampleGrad":
		gx, err := f.value(rest[0], coordHint)
		if err != nil {
			return 0, err
		}
		gy, err := f.value(rest[1], coordHint)
		if err != nil {
			return 0, err
		}
		sample.Level = ir.SampleLevelGradient{X: gx, Y: gy}
	case "textureSampleCompare", "textureSampleCompareLevel":
		if img.Class != ir.ImageDepth {
			return 0, loweringErrorf(x.Pos, "%s requires a depth texture", name)
		}
		ref, err := f.value(rest[0], f32)
		if err != nil {
			return 0, err
		}
		sample.DepthRef = &ref
		if name == "textureSampleCompareLevel" {
			sample.Level = ir.SampleLevelZero{}
		}
	}
	return f.add(sample, x.Pos)
}
