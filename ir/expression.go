package ir

// Expression is a node in a function's expression arena. Expressions are
// pure; effects happen through statements. A node may reference earlier
// nodes in the same arena only.
type Expression struct {
	Kind ExpressionKind
}

// ExpressionKind is the tagged variant of expression payloads.
type ExpressionKind interface {
	expressionKind()
}

// LiteralValue is the tagged variant of literal payloads.
type LiteralValue interface {
	literalValue()
}

type (
	// LiteralF32 is a 32-bit float literal.
	LiteralF32 float32
	// LiteralI32 is a 32-bit signed integer literal.
	LiteralI32 int32
	// LiteralU32 is a 32-bit unsigned integer literal.
	LiteralU32 uint32
	// LiteralBool is a boolean literal.
	LiteralBool bool
	// LiteralAbstractInt is an unsuffixed integer literal; it concretizes
	// to i32 unless context demands otherwise.
	LiteralAbstractInt int64
	// LiteralAbstractFloat is an unsuffixed float literal; it concretizes
	// to f32 unless context demands otherwise.
	LiteralAbstractFloat float64
)

func (LiteralF32) literalValue()           {}
func (LiteralI32) literalValue()           {}
func (LiteralU32) literalValue()           {}
func (LiteralBool) literalValue()          {}
func (LiteralAbstractInt) literalValue()   {}
func (LiteralAbstractFloat) literalValue() {}

// ExprLiteral is an immediate scalar value.
type ExprLiteral struct {
	Value LiteralValue
}

// ExprConstant references a module-level constant.
type ExprConstant struct {
	Constant ConstantHandle
}

// ExprZeroValue is the zero value of a type.
type ExprZeroValue struct {
	Type TypeHandle
}

// ExprCompose constructs a composite (vector, matrix, array, struct) from
// component expressions.
type ExprCompose struct {
	Type       TypeHandle
	Components []ExpressionHandle
}

// ExprAccess indexes a composite or pointer with a runtime index. The back
// end lowers this to an access chain when Base is memory-backed.
type ExprAccess struct {
	Base  ExpressionHandle
	Index ExpressionHandle
}

// ExprAccessIndex indexes with a compile-time-constant index, allowing the
// back end to use composite extraction for value types.
type ExprAccessIndex struct {
	Base  ExpressionHandle
	Index uint32
}

// ExprSplat broadcasts a scalar to a vector.
type ExprSplat struct {
	Size  VectorSize
	Value ExpressionHandle
}

// ExprSwizzle reorders vector components. Pattern holds component indices;
// Size is the result arity.
type ExprSwizzle struct {
	Size    VectorSize
	Vector  ExpressionHandle
	Pattern [4]uint8
}

// ExprFunctionArgument reads the function's Index-th parameter.
type ExprFunctionArgument struct {
	Index uint32
}

// ExprGlobalVariable is a pointer to a module-scope variable.
type ExprGlobalVariable struct {
	Variable GlobalHandle
}

// ExprLocalVariable is a pointer to a function-scope variable.
type ExprLocalVariable struct {
	Variable LocalHandle
}

// ExprLoad dereferences a pointer expression.
type ExprLoad struct {
	Pointer ExpressionHandle
}

// UnaryOp is a unary operator.
type UnaryOp uint8

const (
	UnaryNegate UnaryOp = iota
	UnaryLogicalNot
	UnaryBitwiseNot
)

// ExprUnary applies a unary operator.
type ExprUnary struct {
	Op   UnaryOp
	Expr ExpressionHandle
}

// BinaryOp is a binary operator.
type BinaryOp uint8

const (
	BinaryAdd BinaryOp = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryEqual
	BinaryNotEqual
	BinaryLess
	BinaryLessEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryAnd
	BinaryOr
	BinaryXor
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryShiftLeft
	BinaryShiftRight
)

// ExprBinary applies a binary operator.
type ExprBinary struct {
	Op    BinaryOp
	Left  ExpressionHandle
	Right ExpressionHandle
}

// ExprSelect chooses between two values by a boolean condition.
type ExprSelect struct {
	Condition ExpressionHandle
	Accept    ExpressionHandle
	Reject    ExpressionHandle
}

// MathFunction names a math intrinsic.
type MathFunction uint8

const (
	MathAbs MathFunction = iota
	MathMin
	MathMax
	MathClamp
	MathSaturate
	MathDot
	MathCross
	MathLength
	MathDistance
	MathNormalize
	MathReflect
	MathFloor
	MathCeil
	MathFract
	MathTrunc
	MathRound
	MathSqrt
	MathInverseSqrt
	MathPow
	MathExp
	MathExp2
	MathLog
	MathLog2
	MathSin
	MathCos
	MathTan
	MathAsin
	MathAcos
	MathAtan
	MathAtan2
	MathMix
	MathStep
	MathSmoothStep
	MathSign
	MathFma
)

// ExprMath is a math intrinsic call with up to four arguments.
type ExprMath struct {
	Fun  MathFunction
	Arg  ExpressionHandle
	Arg1 *ExpressionHandle
	Arg2 *ExpressionHandle
	Arg3 *ExpressionHandle
}

// ExprAs converts or bitcasts to a scalar kind. Convert holds the target
// width for a value conversion; nil means bit reinterpretation.
type ExprAs struct {
	Expr    ExpressionHandle
	Kind    ScalarKind
	Convert *uint8
}

// ExprCallResult is the value produced by a StmtCall to Function.
type ExprCallResult struct {
	Function FunctionHandle
}

// ExprArrayLength queries the element count of a runtime-sized array.
// Pointer must resolve to a pointer at the trailing runtime-array member of
// a storage-backed struct.
type ExprArrayLength struct {
	Pointer ExpressionHandle
}

// SampleLevel selects the level-of-detail strategy of an image sample.
type SampleLevel interface {
	sampleLevel()
}

type (
	// SampleLevelAuto uses implicit derivatives; fragment stage only.
	SampleLevelAuto struct{}
	// SampleLevelZero forces level zero.
	SampleLevelZero struct{}
	// SampleLevelExact samples an explicit level.
	SampleLevelExact struct {
		Level ExpressionHandle
	}
	// SampleLevelBias applies a bias to the implicit level.
	SampleLevelBias struct {
		Bias ExpressionHandle
	}
	// SampleLevelGradient supplies explicit derivatives.
	SampleLevelGradient struct {
		X ExpressionHandle
		Y ExpressionHandle
	}
)

func (SampleLevelAuto) sampleLevel()     {}
func (SampleLevelZero) sampleLevel()     {}
func (SampleLevelExact) sampleLevel()    {}
func (SampleLevelBias) sampleLevel()     {}
func (SampleLevelGradient) sampleLevel() {}

// ExprImageSample samples an image through a sampler. DepthRef, when set,
// makes this a depth-comparison sample against a comparison sampler.
type ExprImageSample struct {
	Image      ExpressionHandle
	Sampler    ExpressionHandle
	Coordinate ExpressionHandle
	ArrayIndex *ExpressionHandle
	Level      SampleLevel
	DepthRef   *ExpressionHandle
}

func (ExprLiteral) expressionKind()          {}
func (ExprConstant) expressionKind()         {}
func (ExprZeroValue) expressionKind()        {}
func (ExprCompose) expressionKind()          {}
func (ExprAccess) expressionKind()           {}
func (ExprAccessIndex) expressionKind()      {}
func (ExprSplat) expressionKind()            {}
func (ExprSwizzle) expressionKind()          {}
func (ExprFunctionArgument) expressionKind() {}
func (ExprGlobalVariable) expressionKind()   {}
func (ExprLocalVariable) expressionKind()    {}
func (ExprLoad) expressionKind()             {}
func (ExprUnary) expressionKind()            {}
func (ExprBinary) expressionKind()           {}
func (ExprSelect) expressionKind()           {}
func (ExprMath) expressionKind()             {}
func (ExprAs) expressionKind()               {}
func (ExprCallResult) expressionKind()       {}
func (ExprArrayLength) expressionKind()      {}
func (ExprImageSample) expressionKind()      {}
