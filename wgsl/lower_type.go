package wgsl

import (
	"math"

	"github.com/gogpu/wgslc/ir"
)

var scalarNames = map[string]ir.Scalar{
	"f32":  {Kind: ir.ScalarFloat, Width: 4},
	"i32":  {Kind: ir.ScalarSint, Width: 4},
	"u32":  {Kind: ir.ScalarUint, Width: 4},
	"bool": {Kind: ir.ScalarBool, Width: 1},
}

// vector and matrix shorthand suffixes (vec3f, mat4x4f).
var shorthandScalars = map[byte]ir.Scalar{
	'f': {Kind: ir.ScalarFloat, Width: 4},
	'i': {Kind: ir.ScalarSint, Width: 4},
	'u': {Kind: ir.ScalarUint, Width: 4},
}

// lowerType resolves a type expression to a registered type handle.
// Registration deduplicates structurally, so repeated mentions of the same
// shape share one handle.
func (l *Lowerer) lowerType(te TypeExpr) (ir.TypeHandle, error) {
	if inner, ok, err := l.lowerTypeInner(te); err != nil {
		return 0, err
	} else if ok {
		return l.registry.Register("", inner), nil
	}
	if h, ok := l.structs[te.Name]; ok {
		return h, nil
	}
	if h, ok := l.aliases[te.Name]; ok {
		return h, nil
	}
	return 0, syntaxErrorf(te.Pos, "unknown type %q", te.Name)
}

// lowerTypeInner handles the predeclared types; the bool result is false
// when the name must instead resolve to a struct or alias.
func (l *Lowerer) lowerTypeInner(te TypeExpr) (ir.TypeInner, bool, error) {
	if s, ok := scalarNames[te.Name]; ok {
		if len(te.Args) != 0 {
			return nil, false, loweringErrorf(te.Pos, "%s takes no template arguments", te.Name)
		}
		return s, true, nil
	}

	switch te.Name {
	case "vec2", "vec3", "vec4":
		size := ir.VectorSize(te.Name[3] - '0')
		elem, err := l.templateScalar(te)
		if err != nil {
			return nil, false, err
		}
		return ir.Vector{Size: size, Element: elem}, true, nil

	case "array":
		if len(te.Args) != 1 {
			return nil, false, loweringErrorf(te.Pos, "array requires an element type")
		}
		elem, err := l.lowerType(te.Args[0])
		if err != nil {
			return nil, false, err
		}
		size := ir.RuntimeSize()
		if te.Count != nil {
			n, err := l.evalConstInt(te.Count)
			if err != nil {
				return nil, false, err
			}
			if n < 1 || n > math.MaxUint32 {
				return nil, false, loweringErrorf(te.Pos, "array size %d out of range", n)
			}
			size = ir.FixedSize(uint32(n))
		}
		return ir.Array{
			Element: elem,
			Size:    size,
			Stride:  ir.LayoutOf(l.module, elem).Stride(),
		}, true, nil

	case "ptr":
		if len(te.Args) != 2 {
			return nil, false, loweringErrorf(te.Pos, "ptr requires an address space and a base type")
		}
		space, ok := addressSpaces[te.Args[0].Name]
		if !ok {
			return nil, false, loweringErrorf(te.Args[0].Pos, "unknown address space %q", te.Args[0].Name)
		}
		base, err := l.lowerType(te.Args[1])
		if err != nil {
			return nil, false, err
		}
		return ir.Pointer{Base: base, Space: space}, true, nil

	case "sampler":
		return ir.Sampler{}, true, nil
	case "sampler_comparison":
		return ir.Sampler{Comparison: true}, true, nil

	case "atomic":
		return nil, false, loweringErrorf(te.Pos, "atomic types are not supported")
	}

	// Shorthand aliases: vec3f, vec2u, mat4x4f.
	if len(te.Name) == 5 && te.Name[:3] == "vec" {
		if s, ok := shorthandScalars[te.Name[4]]; ok && te.Name[3] >= '2' && te.Name[3] <= '4' {
			return ir.Vector{Size: ir.VectorSize(te.Name[3] - '0'), Element: s}, true, nil
		}
	}
	if cols, rows, ok := matrixShape(te.Name); ok {
		var elem ir.Scalar
		if len(te.Name) == 6 {
			s, err := l.templateScalar(te)
			if err != nil {
				return nil, false, err
			}
			elem = s
		} else {
			s, ok := shorthandScalars[te.Name[6]]
			if !ok {
				return nil, false, syntaxErrorf(te.Pos, "unknown type %q", te.Name)
			}
			elem = s
		}
		if elem.Kind != ir.ScalarFloat {
			return nil, false, loweringErrorf(te.Pos, "matrix elements must be floating point")
		}
		return ir.Matrix{Columns: cols, Rows: rows, Element: elem}, true, nil
	}
	if inner, ok, err := l.textureType(te); err != nil || ok {
		return inner, ok, err
	}
	return nil, false, nil
}

var addressSpaces = map[string]ir.AddressSpace{
	"function":  ir.SpaceFunction,
	"private":   ir.SpacePrivate,
	"workgroup": ir.SpaceWorkGroup,
	"uniform":   ir.SpaceUniform,
	"storage":   ir.SpaceStorage,
}

// matrixShape decodes matCxR and matCxRs names.
func matrixShape(name string) (cols, rows ir.VectorSize, ok bool) {
	if len(name) != 6 && len(name) != 7 {
		return 0, 0, false
	}
	if name[:3] != "mat" || name[4] != 'x' {
		return 0, 0, false
	}
	c, r := name[3], name[5]
	if c < '2' || c > '4' || r < '2' || r > '4' {
		return 0, 0, false
	}
	return ir.VectorSize(c - '0'), ir.VectorSize(r - '0'), true
}

// templateScalar resolves a single scalar template argument, defaulting to
// f32 when the template is omitted (vec3 alone means vec3<f32>).
func (l *Lowerer) templateScalar(te TypeExpr) (ir.Scalar, error) {
	switch len(te.Args) {
	case 0:
		return ir.Scalar{Kind: ir.ScalarFloat, Width: 4}, nil
	case 1:
		s, ok := scalarNames[te.Args[0].Name]
		if !ok {
			return ir.Scalar{}, loweringErrorf(te.Args[0].Pos, "%q is not a scalar type", te.Args[0].Name)
		}
		return s, nil
	}
	return ir.Scalar{}, loweringErrorf(te.Pos, "%s takes at most one template argument", te.Name)
}

var textureShapes = map[string]struct {
	dim     ir.ImageDimension
	arrayed bool
	ms      bool
	class   ir.ImageClass
}{
	"texture_1d":                    {ir.Dim1D, false, false, ir.ImageSampled},
	"texture_2d":                    {ir.Dim2D, false, false, ir.ImageSampled},
	"texture_2d_array":              {ir.Dim2D, true, false, ir.ImageSampled},
	"texture_3d":                    {ir.Dim3D, false, false, ir.ImageSampled},
	"texture_cube":                  {ir.DimCube, false, false, ir.ImageSampled},
	"texture_cube_array":            {ir.DimCube, true, false, ir.ImageSampled},
	"texture_multisampled_2d":       {ir.Dim2D, false, true, ir.ImageSampled},
	"texture_depth_2d":              {ir.Dim2D, false, false, ir.ImageDepth},
	"texture_depth_2d_array":        {ir.Dim2D, true, false, ir.ImageDepth},
	"texture_depth_cube":            {ir.DimCube, false, false, ir.ImageDepth},
	"texture_depth_cube_array":      {ir.DimCube, true, false, ir.ImageDepth},
	"texture_depth_multisampled_2d": {ir.Dim2D, false, true, ir.ImageDepth},
}

func (l *Lowerer) textureType(te TypeExpr) (ir.TypeInner, bool, error) {
	shape, ok := textureShapes[te.Name]
	if !ok {
		return nil, false, nil
	}
	img := ir.Image{
		Dim:          shape.dim,
		Arrayed:      shape.arrayed,
		Multisampled: shape.ms,
		Class:        shape.class,
		SampledKind:  ir.ScalarFloat,
	}
	if shape.class == ir.ImageDepth {
		if len(te.Args) != 0 {
			return nil, false, loweringErrorf(te.Pos, "%s takes no template arguments", te.Name)
		}
		return img, true, nil
	}
	elem, err := l.templateScalar(te)
	if err != nil {
		return nil, false, err
	}
	if elem.Kind == ir.ScalarBool {
		return nil, false, loweringErrorf(te.Pos, "textures cannot sample booleans")
	}
	img.SampledKind = elem.Kind
	return img, true, nil
}

// constScalar is a decoded scalar constant used during folding.
type constScalar struct {
	kind ir.ScalarKind
	i    int64
	u    uint64
	f    float64
	b    bool
}

func decodeScalar(c ir.ScalarConstant) constScalar {
	s := constScalar{kind: c.Kind}
	switch c.Kind {
	case ir.ScalarFloat:
		s.f = float64(math.Float32frombits(uint32(c.Bits)))
	case ir.ScalarSint:
		s.i = int64(int32(uint32(c.Bits)))
	case ir.ScalarUint:
		s.u = c.Bits
	case ir.ScalarBool:
		s.b = c.Bits != 0
	}
	return s
}

func (s constScalar) encode() ir.ScalarConstant {
	c := ir.ScalarConstant{Kind: s.kind}
	switch s.kind {
	case ir.ScalarFloat:
		c.Bits = uint64(math.Float32bits(float32(s.f)))
	case ir.ScalarSint:
		c.Bits = uint64(uint32(int32(s.i)))
	case ir.ScalarUint:
		c.Bits = s.u
	case ir.ScalarBool:
		if s.b {
			c.Bits = 1
		}
	}
	return c
}

func (l *Lowerer) scalarType(kind ir.ScalarKind) ir.TypeHandle {
	width := uint8(4)
	if kind == ir.ScalarBool {
		width = 1
	}
	return l.registry.Register("", ir.Scalar{Kind: kind, Width: width})
}

// evalConst folds a module-scope constant expression. Unsuffixed integer
// literals concretize to i32 here; coerceConst converts them when the
// declaration demands another kind.
func (l *Lowerer) evalConst(e Expr) (ir.TypeHandle, ir.ConstantValue, error) {
	switch x := e.(type) {
	case *IntLit:
		n, suffix, err := parseIntLiteral(x.Text, x.Pos)
		if err != nil {
			return 0, nil, err
		}
		switch suffix {
		case "u":
			return l.scalarType(ir.ScalarUint), ir.ScalarConstant{Kind: ir.ScalarUint, Bits: uint64(n)}, nil
		case "f":
			s := constScalar{kind: ir.ScalarFloat, f: float64(n)}
			return l.scalarType(ir.ScalarFloat), s.encode(), nil
		}
		if n > math.MaxInt32 {
			return 0, nil, loweringErrorf(x.Pos, "integer literal %q overflows i32", x.Text)
		}
		s := constScalar{kind: ir.ScalarSint, i: n}
		return l.scalarType(ir.ScalarSint), s.encode(), nil

	case *FloatLit:
		f, err := parseFloatLiteral(x.Text, x.Pos)
		if err != nil {
			return 0, nil, err
		}
		s := constScalar{kind: ir.ScalarFloat, f: f}
		return l.scalarType(ir.ScalarFloat), s.encode(), nil

	case *BoolLit:
		s := constScalar{kind: ir.ScalarBool, b: x.Value}
		return l.scalarType(ir.ScalarBool), s.encode(), nil

	case *IdentExpr:
		ch, ok := l.consts[x.Name]
		if !ok {
			return 0, nil, loweringErrorf(x.Pos, "%q is not a module-scope constant", x.Name)
		}
		c := l.module.Constants.At(ch)
		return c.Type, c.Value, nil

	case *UnaryExpr:
		th, value, err := l.evalConst(x.X)
		if err != nil {
			return 0, nil, err
		}
		sc, ok := value.(ir.ScalarConstant)
		if !ok {
			return 0, nil, loweringErrorf(x.Pos, "unary operator on non-scalar constant")
		}
		s := decodeScalar(sc)
		switch x.Op {
		case TokMinus:
			switch s.kind {
			case ir.ScalarFloat:
				s.f = -s.f
			case ir.ScalarSint:
				s.i = -s.i
			default:
				return 0, nil, loweringErrorf(x.Pos, "cannot negate this constant")
			}
		case TokBang:
			if s.kind != ir.ScalarBool {
				return 0, nil, loweringErrorf(x.Pos, "logical not of non-boolean constant")
			}
			s.b = !s.b
		default:
			return 0, nil, loweringErrorf(x.Pos, "operator not allowed in constant expressions")
		}
		return th, s.encode(), nil

	case *BinaryExpr:
		return l.evalConstBinary(x)

	case *CallExpr:
		return l.evalConstCall(x)
	}
	return 0, nil, loweringErrorf(e.ExprPos(), "expression is not a constant")
}

func (l *Lowerer) evalConstBinary(x *BinaryExpr) (ir.TypeHandle, ir.ConstantValue, error) {
	lt, lv, err := l.evalConst(x.Left)
	if err != nil {
		return 0, nil, err
	}
	_, rv, err := l.evalConst(x.Right)
	if err != nil {
		return 0, nil, err
	}
	lsc, lok := lv.(ir.ScalarConstant)
	rsc, rok := rv.(ir.ScalarConstant)
	if !lok || !rok || lsc.Kind != rsc.Kind {
		return 0, nil, loweringErrorf(x.Pos, "constant operands must be scalars of one kind")
	}
	a, b := decodeScalar(lsc), decodeScalar(rsc)
	s := constScalar{kind: a.kind}

	switch a.kind {
	case ir.ScalarFloat:
		switch x.Op {
		case TokPlus:
			s.f = a.f + b.f
		case TokMinus:
			s.f = a.f - b.f
		case TokStar:
			s.f = a.f * b.f
		case TokSlash:
			if b.f == 0 {
				return 0, nil, loweringErrorf(x.Pos, "division by zero in constant expression")
			}
			s.f = a.f / b.f
		default:
			return 0, nil, loweringErrorf(x.Pos, "operator not allowed in constant expressions")
		}
	case ir.ScalarSint:
		switch x.Op {
		case TokPlus:
			s.i = a.i + b.i
		case TokMinus:
			s.i = a.i - b.i
		case TokStar:
			s.i = a.i * b.i
		case TokSlash:
			if b.i == 0 {
				return 0, nil, loweringErrorf(x.Pos, "division by zero in constant expression")
			}
			s.i = a.i / b.i
		case TokPercent:
			if b.i == 0 {
				return 0, nil, loweringErrorf(x.Pos, "division by zero in constant expression")
			}
			s.i = a.i % b.i
		default:
			return 0, nil, loweringErrorf(x.Pos, "operator not allowed in constant expressions")
		}
	case ir.ScalarUint:
		switch x.Op {
		case TokPlus:
			s.u = a.u + b.u
		case TokMinus:
			s.u = a.u - b.u
		case TokStar:
			s.u = a.u * b.u
		case TokSlash:
			if b.u == 0 {
				return 0, nil, loweringErrorf(x.Pos, "division by zero in constant expression")
			}
			s.u = a.u / b.u
		case TokPercent:
			if b.u == 0 {
				return 0, nil, loweringErrorf(x.Pos, "division by zero in constant expression")
			}
			s.u = a.u % b.u
		case TokShiftLeft:
			s.u = a.u << (b.u & 31)
		case TokShiftRight:
			s.u = a.u >> (b.u & 31)
		default:
			return 0, nil, loweringErrorf(x.Pos, "operator not allowed in constant expressions")
		}
	default:
		return 0, nil, loweringErrorf(x.Pos, "constant arithmetic on booleans")
	}
	return lt, s.encode(), nil
}

// evalConstCall folds constructor calls: scalar conversions and composites
// of constant components.
func (l *Lowerer) evalConstCall(x *CallExpr) (ir.TypeHandle, ir.ConstantValue, error) {
	th, err := l.lowerType(x.Target)
	if err != nil {
		return 0, nil, loweringErrorf(x.Pos, "call %q is not a constant expression", x.Target.Name)
	}
	inner := l.module.Types.At(th).Inner

	if _, ok := inner.(ir.Scalar); ok {
		if len(x.Args) != 1 {
			return 0, nil, loweringErrorf(x.Pos, "scalar conversion takes exactly one argument")
		}
		at, av, err := l.evalConst(x.Args[0])
		if err != nil {
			return 0, nil, err
		}
		return l.coerceConst(th, at, av, x.Pos)
	}

	var memberTypes []ir.TypeHandle
	switch t := inner.(type) {
	case ir.Vector:
		et := l.registry.Register("", t.Element)
		for i := 0; i < int(t.Size); i++ {
			memberTypes = append(memberTypes, et)
		}
	case ir.Array:
		if t.Size.IsRuntime() {
			return 0, nil, loweringErrorf(x.Pos, "cannot construct a runtime-sized array")
		}
		for i := uint32(0); i < *t.Size.Count; i++ {
			memberTypes = append(memberTypes, t.Element)
		}
	case ir.Struct:
		for _, m := range t.Members {
			memberTypes = append(memberTypes, m.Type)
		}
	default:
		return 0, nil, loweringErrorf(x.Pos, "cannot construct %q in a constant expression", x.Target.Name)
	}

	if len(x.Args) != len(memberTypes) {
		return 0, nil, loweringErrorf(x.Pos, "%q constructor takes %d arguments, got %d",
			x.Target.Name, len(memberTypes), len(x.Args))
	}
	var components []ir.ConstantHandle
	for i, arg := range x.Args {
		at, av, err := l.evalConst(arg)
		if err != nil {
			return 0, nil, err
		}
		ct, cv, err := l.coerceConst(memberTypes[i], at, av, arg.ExprPos())
		if err != nil {
			return 0, nil, err
		}
		components = append(components, ir.InternConstant(l.module, ir.Constant{Type: ct, Value: cv}))
	}
	return th, ir.CompositeConstant{Components: components}, nil
}

// coerceConst converts a folded constant to the declared type, allowing the
// usual literal flexibility (an i32 literal initializing a u32 or f32).
func (l *Lowerer) coerceConst(want, got ir.TypeHandle, value ir.ConstantValue, pos Pos) (ir.TypeHandle, ir.ConstantValue, error) {
	if want == got {
		return got, value, nil
	}
	ws, wok := l.module.Types.At(want).Inner.(ir.Scalar)
	sc, sok := value.(ir.ScalarConstant)
	if !wok || !sok {
		return 0, nil, loweringErrorf(pos, "constant value does not match the declared type")
	}
	s := decodeScalar(sc)
	out := constScalar{kind: ws.Kind}
	switch {
	case ws.Kind == ir.ScalarFloat && s.kind == ir.ScalarSint:
		out.f = float64(s.i)
	case ws.Kind == ir.ScalarFloat && s.kind == ir.ScalarUint:
		out.f = float64(s.u)
	case ws.Kind == ir.ScalarUint && s.kind == ir.ScalarSint:
		if s.i < 0 {
			return 0, nil, loweringErrorf(pos, "negative constant %d cannot initialize u32", s.i)
		}
		out.u = uint64(s.i)
	case ws.Kind == ir.ScalarSint && s.kind == ir.ScalarUint:
		if s.u > math.MaxInt32 {
			return 0, nil, loweringErrorf(pos, "constant %d overflows i32", s.u)
		}
		out.i = int64(s.u)
	default:
		return 0, nil, loweringErrorf(pos, "constant value does not match the declared type")
	}
	return want, out.encode(), nil
}

// evalConstInt folds an expression expected to be an integer constant, for
// attribute arguments and array sizes.
func (l *Lowerer) evalConstInt(e Expr) (int64, error) {
	_, value, err := l.evalConst(e)
	if err != nil {
		return 0, err
	}
	sc, ok := value.(ir.ScalarConstant)
	if !ok {
		return 0, loweringErrorf(e.ExprPos(), "expected an integer constant")
	}
	s := decodeScalar(sc)
	switch s.kind {
	case ir.ScalarSint:
		return s.i, nil
	case ir.ScalarUint:
		if s.u > math.MaxInt64 {
			return 0, loweringErrorf(e.ExprPos(), "integer constant out of range")
		}
		return int64(s.u), nil
	}
	return 0, loweringErrorf(e.ExprPos(), "expected an integer constant")
}
