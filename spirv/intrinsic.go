package spirv

import (
	"fmt"
	"math"

	"github.com/gogpu/wgslc/ir"
)

// glslInstruction picks the GLSL.std.450 instruction for a math
// intrinsic, switching on the operand's scalar kind where the set has
// per-kind variants.
func glslInstruction(fun ir.MathFunction, kind ir.ScalarKind) (GLSLStd450, bool) {
	signed := kind == ir.ScalarSint
	unsigned := kind == ir.ScalarUint
	switch fun {
	case ir.MathAbs:
		if signed {
			return GLSLStd450SAbs, true
		}
		return GLSLStd450FAbs, true
	case ir.MathSign:
		if signed {
			return GLSLStd450SSign, true
		}
		return GLSLStd450FSign, true
	case ir.MathMin:
		switch {
		case signed:
			return GLSLStd450SMin, true
		case unsigned:
			return GLSLStd450UMin, true
		default:
			return GLSLStd450FMin, true
		}
	case ir.MathMax:
		switch {
		case signed:
			return GLSLStd450SMax, true
		case unsigned:
			return GLSLStd450UMax, true
		default:
			return GLSLStd450FMax, true
		}
	case ir.MathClamp:
		switch {
		case signed:
			return GLSLStd450SClamp, true
		case unsigned:
			return GLSLStd450UClamp, true
		default:
			return GLSLStd450FClamp, true
		}
	case ir.MathFloor:
		return GLSLStd450Floor, true
	case ir.MathCeil:
		return GLSLStd450Ceil, true
	case ir.MathFract:
		return GLSLStd450Fract, true
	case ir.MathTrunc:
		return GLSLStd450Trunc, true
	case ir.MathRound:
		return GLSLStd450Round, true
	case ir.MathSqrt:
		return GLSLStd450Sqrt, true
	case ir.MathInverseSqrt:
		return GLSLStd450InverseSqrt, true
	case ir.MathPow:
		return GLSLStd450Pow, true
	case ir.MathExp:
		return GLSLStd450Exp, true
	case ir.MathExp2:
		return GLSLStd450Exp2, true
	case ir.MathLog:
		return GLSLStd450Log, true
	case ir.MathLog2:
		return GLSLStd450Log2, true
	case ir.MathSin:
		return GLSLStd450Sin, true
	case ir.MathCos:
		return GLSLStd450Cos, true
	case ir.MathTan:
		return GLSLStd450Tan, true
	case ir.MathAsin:
		return GLSLStd450Asin, true
	case ir.MathAcos:
		return GLSLStd450Acos, true
	case ir.MathAtan:
		return GLSLStd450Atan, true
	case ir.MathAtan2:
		return GLSLStd450Atan2, true
	case ir.MathMix:
		return GLSLStd450FMix, true
	case ir.MathStep:
		return GLSLStd450Step, true
	case ir.MathSmoothStep:
		return GLSLStd450SmoothStep, true
	case ir.MathFma:
		return GLSLStd450Fma, true
	case ir.MathLength:
		return GLSLStd450Length, true
	case ir.MathDistance:
		return GLSLStd450Distance, true
	case ir.MathCross:
		return GLSLStd450Cross, true
	case ir.MathNormalize:
		return GLSLStd450Normalize, true
	case ir.MathReflect:
		return GLSLStd450Reflect, true
	}
	return 0, false
}

func (f *funcEmitter) emitMath(h ir.ExpressionHandle, s ir.ExprMath) (uint32, error) {
	b := f.be.b
	args := []uint32{}
	for _, ah := range mathArgs(s) {
		id, err := f.emitExpr(ah)
		if err != nil {
			return 0, err
		}
		args = append(args, id)
	}
	tid, err := f.resultTypeID(h)
	if err != nil {
		return 0, err
	}
	argInner := f.resolvedInner(s.Arg)
	kind := ir.ScalarFloat
	if sc, ok := scalarOf(argInner); ok {
		kind = sc.Kind
	}

	switch s.Fun {
	case ir.MathDot:
		return b.FuncResult(OpDot, tid, args...), nil
	case ir.MathSaturate:
		zero, one, err := f.saturateBounds(argInner)
		if err != nil {
			return 0, err
		}
		return b.FuncResult(OpExtInst, tid, f.be.glsl(), uint32(GLSLStd450FClamp), args[0], zero, one), nil
	}

	inst, ok := glslInstruction(s.Fun, kind)
	if !ok {
		return 0, fmt.Errorf("spirv: unsupported math function %d", s.Fun)
	}
	operands := append([]uint32{f.be.glsl(), uint32(inst)}, args...)
	return b.FuncResult(OpExtInst, tid, operands...), nil
}

func mathArgs(s ir.ExprMath) []ir.ExpressionHandle {
	args := []ir.ExpressionHandle{s.Arg}
	for _, extra := range []*ir.ExpressionHandle{s.Arg1, s.Arg2, s.Arg3} {
		if extra != nil {
			args = append(args, *extra)
		}
	}
	return args
}

// saturateBounds builds 0.0 and 1.0 constants matching the operand
// shape, splatting for vectors.
func (f *funcEmitter) saturateBounds(inner ir.TypeInner) (zero, one uint32, err error) {
	zeroScalar := f.be.f32Constant(0)
	oneScalar := f.be.f32Constant(math.Float32bits(1))
	vec, ok := inner.(ir.Vector)
	if !ok {
		return zeroScalar, oneScalar, nil
	}
	tid, err := f.be.typeIDInner(vec)
	if err != nil {
		return 0, 0, err
	}
	zeros := make([]uint32, vec.Size)
	ones := make([]uint32, vec.Size)
	for i := range zeros {
		zeros[i] = zeroScalar
		ones[i] = oneScalar
	}
	return f.be.b.DeclareCompositeConstant(tid, zeros), f.be.b.DeclareCompositeConstant(tid, ones), nil
}

// emitImageSample combines the image and sampler into an OpSampledImage
// and dispatches to the implicit- or explicit-LOD sampling form. Depth
// samples without a comparison reference come back as a four-component
// vector; the scalar result is extracted from component zero.
func (f *funcEmitter) emitImageSample(h ir.ExpressionHandle, s ir.ExprImageSample) (uint32, error) {
	b := f.be.b

	img, ok := f.resolvedInner(s.Image).(ir.Image)
	if !ok {
		return 0, fmt.Errorf("spirv: sampling a non-image value")
	}
	imgType := f.be.imageTypeID(img)
	imgPtr, err := f.emitExpr(s.Image)
	if err != nil {
		return 0, err
	}
	imgVal := b.FuncResult(OpLoad, imgType, imgPtr)

	sampType, _ := b.DeclareType(OpTypeSampler)
	sampPtr, err := f.emitExpr(s.Sampler)
	if err != nil {
		return 0, err
	}
	sampVal := b.FuncResult(OpLoad, sampType, sampPtr)

	sampledType, _ := b.DeclareType(OpTypeSampledImage, imgType)
	combined := b.FuncResult(OpSampledImage, sampledType, imgVal, sampVal)

	coord, err := f.emitExpr(s.Coordinate)
	if err != nil {
		return 0, err
	}
	if s.ArrayIndex != nil {
		coord, err = f.appendArrayLayer(s.Coordinate, coord, *s.ArrayIndex)
		if err != nil {
			return 0, err
		}
	}

	sampleKind := img.SampledKind
	if img.Class == ir.ImageDepth {
		sampleKind = ir.ScalarFloat
	}
	elem := f.be.scalarTypeID(ir.Scalar{Kind: sampleKind, Width: 4})
	vec4, _ := b.DeclareType(OpTypeVector, elem, 4)

	if s.DepthRef != nil {
		return f.emitDrefSample(combined, coord, s)
	}

	op := OpImageSampleImplicitLod
	var extra []uint32
	switch lv := s.Level.(type) {
	case ir.SampleLevelAuto:
	case ir.SampleLevelBias:
		bias, err := f.emitExpr(lv.Bias)
		if err != nil {
			return 0, err
		}
		extra = []uint32{ImageOperandsBias, bias}
	case ir.SampleLevelZero:
		op = OpImageSampleExplicitLod
		extra = []uint32{ImageOperandsLod, f.be.f32Constant(0)}
	case ir.SampleLevelExact:
		op = OpImageSampleExplicitLod
		level, err := f.emitExpr(lv.Level)
		if err != nil {
			return 0, err
		}
		extra = []uint32{ImageOperandsLod, level}
	case ir.SampleLevelGradient:
		op = OpImageSampleExplicitLod
		x, err := f.emitExpr(lv.X)
		if err != nil {
			return 0, err
		}
		y, err := f.emitExpr(lv.Y)
		if err != nil {
			return 0, err
		}
		extra = []uint32{ImageOperandsGrad, x, y}
	}

	operands := append([]uint32{combined, coord}, extra...)
	id := b.FuncResult(op, vec4, operands...)
	if img.Class == ir.ImageDepth {
		return b.FuncResult(OpCompositeExtract, elem, id, 0), nil
	}
	return id, nil
}

func (f *funcEmitter) emitDrefSample(combined, coord uint32, s ir.ExprImageSample) (uint32, error) {
	b := f.be.b
	dref, err := f.emitExpr(*s.DepthRef)
	if err != nil {
		return 0, err
	}
	f32 := f.be.f32TypeID()
	switch s.Level.(type) {
	case ir.SampleLevelAuto:
		return b.FuncResult(OpImageSampleDrefImplicitLod, f32, combined, coord, dref), nil
	case ir.SampleLevelZero:
		return b.FuncResult(OpImageSampleDrefExplicitLod, f32, combined, coord, dref,
			ImageOperandsLod, f.be.f32Constant(0)), nil
	}
	return 0, fmt.Errorf("spirv: comparison sampling supports only implicit and zero level")
}

// appendArrayLayer widens the coordinate with the array layer as a
// trailing float component.
func (f *funcEmitter) appendArrayLayer(coordExpr ir.ExpressionHandle, coord uint32, layerExpr ir.ExpressionHandle) (uint32, error) {
	b := f.be.b
	layer, err := f.emitExpr(layerExpr)
	if err != nil {
		return 0, err
	}
	f32 := f.be.f32TypeID()
	if sc, ok := scalarOf(f.resolvedInner(layerExpr)); ok && sc.Kind != ir.ScalarFloat {
		op := OpConvertSToF
		if sc.Kind == ir.ScalarUint {
			op = OpConvertUToF
		}
		layer = b.FuncResult(op, f32, layer)
	}
	size := uint32(2)
	if vec, ok := f.resolvedInner(coordExpr).(ir.Vector); ok {
		size = uint32(vec.Size) + 1
	}
	vecType, _ := b.DeclareType(OpTypeVector, f32, size)
	return b.FuncResult(OpCompositeConstruct, vecType, coord, layer), nil
}
