package ir

import "fmt"

// ValidationCause classifies why a module was rejected.
type ValidationCause uint8

const (
	CauseBadHandle ValidationCause = iota
	CauseTypeMismatch
	CauseStorageAccess
	CauseMissingBinding
	CauseDuplicateBinding
	CauseEntryPointInterface
	CauseNonUniform
)

func (c ValidationCause) String() string {
	switch c {
	case CauseBadHandle:
		return "bad-handle"
	case CauseTypeMismatch:
		return "type-mismatch"
	case CauseStorageAccess:
		return "illegal-storage-access-combo"
	case CauseMissingBinding:
		return "missing-binding"
	case CauseDuplicateBinding:
		return "duplicate-binding"
	case CauseEntryPointInterface:
		return "malformed-entry-point-interface"
	case CauseNonUniform:
		return "non-uniform-control-flow"
	}
	return "unknown"
}

// ValidationError rejects a module with a cause tag and, where known, the
// function the fault was found in.
type ValidationError struct {
	Cause    ValidationCause
	Message  string
	Function string
}

func (e *ValidationError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("validation (%s) in %q: %s", e.Cause, e.Function, e.Message)
	}
	return fmt.Sprintf("validation (%s): %s", e.Cause, e.Message)
}

// Validate checks a parser-built module and returns nil if it is
// semantically sound. The first fault found is returned; no exhaustive
// list is attempted.
func Validate(m *Module) error {
	v := &validator{module: m}
	if err := v.types(); err != nil {
		return err
	}
	if err := v.constants(); err != nil {
		return err
	}
	if err := v.globals(); err != nil {
		return err
	}
	for i := range m.Functions.All() {
		fn := m.Functions.Ptr(FunctionHandle(i))
		if err := v.function(fn); err != nil {
			return err
		}
	}
	if err := v.entryPoints(); err != nil {
		return err
	}
	return v.uniformity()
}

type validator struct {
	module *Module
}

func (v *validator) fail(cause ValidationCause, format string, args ...any) error {
	return &ValidationError{Cause: cause, Message: fmt.Sprintf(format, args...)}
}

func (v *validator) failIn(fn *Function, cause ValidationCause, format string, args ...any) error {
	return &ValidationError{Cause: cause, Function: fn.Name, Message: fmt.Sprintf(format, args...)}
}

func (v *validator) types() error {
	m := v.module
	for i, t := range m.Types.All() {
		h := TypeHandle(i)
		switch inner := t.Inner.(type) {
		case Scalar:
			if inner.Kind == ScalarBool {
				if inner.Width != 1 {
					return v.fail(CauseTypeMismatch, "bool width must be 1, got %d", inner.Width)
				}
			} else if inner.Width != 4 {
				return v.fail(CauseTypeMismatch, "scalar width must be 4, got %d", inner.Width)
			}
		case Vector:
			if inner.Size < Vec2 || inner.Size > Vec4 {
				return v.fail(CauseTypeMismatch, "vector size must be 2..4, got %d", inner.Size)
			}
		case Matrix:
			if inner.Columns < Vec2 || inner.Columns > Vec4 || inner.Rows < Vec2 || inner.Rows > Vec4 {
				return v.fail(CauseTypeMismatch, "matrix dimensions must be 2..4")
			}
		case Array:
			if inner.Element >= h {
				return v.fail(CauseBadHandle, "array element type %d does not precede array type %d", inner.Element, h)
			}
			if elem, ok := m.Types.At(inner.Element).Inner.(Array); ok && elem.Size.IsRuntime() {
				return v.fail(CauseTypeMismatch, "array of runtime-sized arrays")
			}
		case Struct:
			for mi, member := range inner.Members {
				if !m.Types.Valid(member.Type) || member.Type >= h {
					return v.fail(CauseBadHandle, "struct member %q type handle %d invalid", member.Name, member.Type)
				}
				if arr, ok := m.Types.At(member.Type).Inner.(Array); ok && arr.Size.IsRuntime() {
					if mi != len(inner.Members)-1 {
						return v.fail(CauseTypeMismatch, "runtime-sized array member %q is not the last member", member.Name)
					}
				}
			}
		case Pointer:
			if !m.Types.Valid(inner.Base) || inner.Base >= h {
				return v.fail(CauseBadHandle, "pointer base type handle %d invalid", inner.Base)
			}
		}
	}
	return nil
}

func (v *validator) constants() error {
	m := v.module
	for i, c := range m.Constants.All() {
		if !m.Types.Valid(c.Type) {
			return v.fail(CauseBadHandle, "constant %d type handle %d out of range", i, c.Type)
		}
		if comp, ok := c.Value.(CompositeConstant); ok {
			for _, ch := range comp.Components {
				if ch >= ConstantHandle(i) {
					return v.fail(CauseBadHandle, "constant %d component %d does not precede it", i, ch)
				}
			}
		}
	}
	return nil
}

func (v *validator) globals() error {
	m := v.module
	seenBinding := make(map[ResourceBinding]string)
	for _, g := range m.Globals.All() {
		if !m.Types.Valid(g.Type) {
			return v.fail(CauseBadHandle, "global %q type handle %d out of range", g.Name, g.Type)
		}

		switch g.Space {
		case SpaceStorage:
			if g.Access == 0 {
				return v.fail(CauseStorageAccess, "storage global %q has no access mode", g.Name)
			}
		default:
			if g.Access != 0 {
				return v.fail(CauseStorageAccess, "%s global %q carries an access mode", g.Space, g.Name)
			}
		}

		needsBinding := g.Space == SpaceUniform || g.Space == SpaceStorage || g.Space == SpaceHandle
		switch {
		case needsBinding && g.Binding == nil:
			return v.fail(CauseMissingBinding, "%s global %q has no @group/@binding", g.Space, g.Name)
		case !needsBinding && g.Binding != nil:
			return v.fail(CauseMissingBinding, "%s global %q must not have a resource binding", g.Space, g.Name)
		}

		if g.Binding != nil {
			if prev, dup := seenBinding[*g.Binding]; dup {
				return v.fail(CauseDuplicateBinding, "globals %q and %q share group %d binding %d",
					prev, g.Name, g.Binding.Group, g.Binding.Binding)
			}
			seenBinding[*g.Binding] = g.Name
		}

		// Runtime-sized data must live in a storage buffer.
		if hasRuntimeArray(m, g.Type) && g.Space != SpaceStorage {
			return v.fail(CauseStorageAccess, "global %q holds a runtime-sized array outside storage space", g.Name)
		}
	}
	return nil
}

func hasRuntimeArray(m *Module, h TypeHandle) bool {
	switch inner := m.Types.At(h).Inner.(type) {
	case Array:
		return inner.Size.IsRuntime()
	case Struct:
		if len(inner.Members) == 0 {
			return false
		}
		return hasRuntimeArray(m, inner.Members[len(inner.Members)-1].Type)
	}
	return false
}

type stmtContext struct {
	loopDepth    int
	switchDepth  int
	inContinuing bool
}

func (v *validator) function(fn *Function) error {
	m := v.module
	for _, arg := range fn.Arguments {
		if !m.Types.Valid(arg.Type) {
			return v.failIn(fn, CauseBadHandle, "argument %q type handle out of range", arg.Name)
		}
	}
	if fn.Result != nil && !m.Types.Valid(fn.Result.Type) {
		return v.failIn(fn, CauseBadHandle, "result type handle out of range")
	}
	for _, lv := range fn.LocalVars {
		if !m.Types.Valid(lv.Type) {
			return v.failIn(fn, CauseBadHandle, "local %q type handle out of range", lv.Name)
		}
		if lv.Init != nil && !fn.Expressions.Valid(*lv.Init) {
			return v.failIn(fn, CauseBadHandle, "local %q initializer out of range", lv.Name)
		}
	}

	if err := v.expressions(fn); err != nil {
		return err
	}
	return v.block(fn, fn.Body, stmtContext{})
}

// expressions checks every handle stored by every expression points
// strictly backward in the arena.
func (v *validator) expressions(fn *Function) error {
	check := func(owner int, refs ...ExpressionHandle) error {
		for _, r := range refs {
			if int(r) >= owner {
				return v.failIn(fn, CauseBadHandle, "expression %d references %d, which does not precede it", owner, r)
			}
		}
		return nil
	}
	optional := func(h *ExpressionHandle) []ExpressionHandle {
		if h == nil {
			return nil
		}
		return []ExpressionHandle{*h}
	}

	for i, expr := range fn.Expressions.All() {
		var err error
		switch kind := expr.Kind.(type) {
		case ExprCompose:
			err = check(i, kind.Components...)
		case ExprAccess:
			err = check(i, kind.Base, kind.Index)
		case ExprAccessIndex:
			err = check(i, kind.Base)
		case ExprSplat:
			err = check(i, kind.Value)
		case ExprSwizzle:
			err = check(i, kind.Vector)
		case ExprLoad:
			err = check(i, kind.Pointer)
		case ExprUnary:
			err = check(i, kind.Expr)
		case ExprBinary:
			err = check(i, kind.Left, kind.Right)
		case ExprSelect:
			err = check(i, kind.Condition, kind.Accept, kind.Reject)
		case ExprMath:
			refs := []ExpressionHandle{kind.Arg}
			refs = append(refs, optional(kind.Arg1)...)
			refs = append(refs, optional(kind.Arg2)...)
			refs = append(refs, optional(kind.Arg3)...)
			err = check(i, refs...)
		case ExprAs:
			err = check(i, kind.Expr)
		case ExprArrayLength:
			err = check(i, kind.Pointer)
		case ExprImageSample:
			refs := []ExpressionHandle{kind.Image, kind.Sampler, kind.Coordinate}
			refs = append(refs, optional(kind.ArrayIndex)...)
			refs = append(refs, optional(kind.DepthRef)...)
			err = check(i, refs...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) block(fn *Function, block Block, ctx stmtContext) error {
	for _, stmt := range block {
		if err := v.statement(fn, stmt, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) statement(fn *Function, stmt Statement, ctx stmtContext) error {
	switch kind := stmt.Kind.(type) {
	case StmtEmit:
		if int(kind.Range.End) > fn.Expressions.Len() || kind.Range.Start > kind.Range.End {
			return v.failIn(fn, CauseBadHandle, "emit range [%d,%d) out of bounds", kind.Range.Start, kind.Range.End)
		}
	case StmtBlock:
		return v.block(fn, kind.Body, ctx)
	case StmtIf:
		if err := v.condition(fn, kind.Condition); err != nil {
			return err
		}
		if err := v.block(fn, kind.Accept, ctx); err != nil {
			return err
		}
		return v.block(fn, kind.Reject, ctx)
	case StmtSwitch:
		defaults := 0
		for _, c := range kind.Cases {
			if _, ok := c.Value.(SwitchDefault); ok {
				defaults++
			}
			inner := ctx
			inner.switchDepth++
			if err := v.block(fn, c.Body, inner); err != nil {
				return err
			}
		}
		if defaults != 1 {
			return v.failIn(fn, CauseTypeMismatch, "switch has %d default cases, want exactly 1", defaults)
		}
	case StmtLoop:
		body := ctx
		body.loopDepth++
		if err := v.block(fn, kind.Body, body); err != nil {
			return err
		}
		cont := ctx
		cont.loopDepth++
		cont.inContinuing = true
		if err := v.block(fn, kind.Continuing, cont); err != nil {
			return err
		}
		if kind.BreakIf != nil && !fn.Expressions.Valid(*kind.BreakIf) {
			return v.failIn(fn, CauseBadHandle, "loop break-if expression out of range")
		}
	case StmtBreak:
		if ctx.loopDepth == 0 && ctx.switchDepth == 0 {
			return v.failIn(fn, CauseTypeMismatch, "break outside loop or switch")
		}
		if ctx.inContinuing {
			return v.failIn(fn, CauseTypeMismatch, "break inside continuing block")
		}
	case StmtContinue:
		if ctx.loopDepth == 0 {
			return v.failIn(fn, CauseTypeMismatch, "continue outside loop")
		}
		if ctx.inContinuing {
			return v.failIn(fn, CauseTypeMismatch, "continue inside continuing block")
		}
	case StmtReturn:
		if ctx.inContinuing {
			return v.failIn(fn, CauseTypeMismatch, "return inside continuing block")
		}
		if kind.Value != nil && !fn.Expressions.Valid(*kind.Value) {
			return v.failIn(fn, CauseBadHandle, "return value out of range")
		}
		if kind.Value != nil && fn.Result == nil {
			return v.failIn(fn, CauseTypeMismatch, "value returned from void function")
		}
	case StmtKill:
		if ctx.inContinuing {
			return v.failIn(fn, CauseTypeMismatch, "discard inside continuing block")
		}
	case StmtStore:
		return v.store(fn, kind)
	case StmtCall:
		if !v.module.Functions.Valid(kind.Function) {
			return v.failIn(fn, CauseBadHandle, "call target out of range")
		}
		callee := v.module.Functions.At(kind.Function)
		if len(kind.Arguments) != len(callee.Arguments) {
			return v.failIn(fn, CauseTypeMismatch, "call to %q passes %d arguments, want %d",
				callee.Name, len(kind.Arguments), len(callee.Arguments))
		}
	}
	return nil
}

func (v *validator) condition(fn *Function, h ExpressionHandle) error {
	if !fn.Expressions.Valid(h) {
		return v.failIn(fn, CauseBadHandle, "condition expression out of range")
	}
	inner, err := resolvedInner(v.module, fn, h)
	if err != nil {
		return v.failIn(fn, CauseBadHandle, "condition: %v", err)
	}
	if s, ok := inner.(Scalar); !ok || s.Kind != ScalarBool {
		return v.failIn(fn, CauseTypeMismatch, "condition is %T, want bool", inner)
	}
	return nil
}

func (v *validator) store(fn *Function, stmt StmtStore) error {
	if !fn.Expressions.Valid(stmt.Pointer) || !fn.Expressions.Valid(stmt.Value) {
		return v.failIn(fn, CauseBadHandle, "store operand out of range")
	}
	inner, err := resolvedInner(v.module, fn, stmt.Pointer)
	if err != nil {
		return v.failIn(fn, CauseBadHandle, "store pointer: %v", err)
	}
	ptr, ok := inner.(Pointer)
	if !ok {
		return v.failIn(fn, CauseTypeMismatch, "store through %T, want pointer", inner)
	}
	if ptr.Space == SpaceStorage {
		// Writes require write access on the backing global.
		if g, found := v.storeTargetGlobal(fn, stmt.Pointer); found {
			gv := v.module.Globals.At(g)
			if gv.Space == SpaceStorage && gv.Access&AccessWrite == 0 {
				return v.failIn(fn, CauseStorageAccess, "store to read-only storage global %q", gv.Name)
			}
		}
	}
	if ptr.Space == SpaceUniform {
		return v.failIn(fn, CauseStorageAccess, "store to uniform space")
	}
	return nil
}

// storeTargetGlobal chases access chains back to the root global, if any.
func (v *validator) storeTargetGlobal(fn *Function, h ExpressionHandle) (GlobalHandle, bool) {
	for {
		switch kind := fn.Expressions.At(h).Kind.(type) {
		case ExprGlobalVariable:
			return kind.Variable, true
		case ExprAccess:
			h = kind.Base
		case ExprAccessIndex:
			h = kind.Base
		default:
			return 0, false
		}
	}
}

func (v *validator) entryPoints() error {
	m := v.module
	for _, ep := range m.EntryPoints {
		if !m.Functions.Valid(ep.Function) {
			return v.fail(CauseBadHandle, "entry point %q function handle out of range", ep.Name)
		}
		fn := m.Functions.Ptr(ep.Function)

		for _, arg := range fn.Arguments {
			if err := v.interfaceBinding(ep.Name, arg.Name, arg.Type, arg.Binding); err != nil {
				return err
			}
		}
		if fn.Result != nil {
			if err := v.interfaceBinding(ep.Name, "return value", fn.Result.Type, fn.Result.Binding); err != nil {
				return err
			}
		}

		switch ep.Stage {
		case StageVertex:
			if fn.Result == nil || !producesPosition(m, fn.Result) {
				return v.fail(CauseEntryPointInterface, "vertex entry point %q does not produce a position builtin", ep.Name)
			}
		case StageCompute:
			if ep.WorkGroupSize[0] == 0 || ep.WorkGroupSize[1] == 0 || ep.WorkGroupSize[2] == 0 {
				return v.fail(CauseEntryPointInterface, "compute entry point %q has a zero workgroup dimension", ep.Name)
			}
		}
	}
	return nil
}

// interfaceBinding enforces that an entry-point interface value carries
// exactly one of builtin or location, either directly or on every member of
// an interface struct.
func (v *validator) interfaceBinding(entry, what string, t TypeHandle, b Binding) error {
	if b != nil {
		return nil
	}
	if st, ok := v.module.Types.At(t).Inner.(Struct); ok {
		for _, member := range st.Members {
			if member.Binding == nil {
				return v.fail(CauseEntryPointInterface,
					"entry point %q: struct member %q of %s has neither builtin nor location", entry, member.Name, what)
			}
		}
		return nil
	}
	return v.fail(CauseEntryPointInterface,
		"entry point %q: %s has neither builtin nor location", entry, what)
}

func producesPosition(m *Module, result *FunctionResult) bool {
	if bb, ok := result.Binding.(BuiltinBinding); ok {
		return bb.Builtin == BuiltinPosition
	}
	if st, ok := m.Types.At(result.Type).Inner.(Struct); ok {
		for _, member := range st.Members {
			if bb, ok := member.Binding.(BuiltinBinding); ok && bb.Builtin == BuiltinPosition {
				return true
			}
		}
	}
	return false
}

// uniformity rejects implicit-derivative sampling under non-uniform control
// flow: a sample with automatic level inside an if/loop/switch whose
// condition depends on a per-invocation value.
func (v *validator) uniformity() error {
	// Callees precede callers in the arena, so one pass builds the
	// summary of which functions sample with an automatic level,
	// directly or through a call.
	samples := make([]bool, v.module.Functions.Len())
	for i := range samples {
		samples[i] = functionSamplesImplicitly(v.module.Functions.Ptr(FunctionHandle(i)), samples)
	}
	for _, ep := range v.module.EntryPoints {
		if ep.Stage != StageFragment {
			continue
		}
		fn := v.module.Functions.Ptr(ep.Function)
		u := &uniformityAnalysis{module: v.module, fn: fn, samples: samples}
		u.classify()
		if err := u.walk(fn.Body, false); err != nil {
			return err
		}
	}
	return nil
}

func functionSamplesImplicitly(fn *Function, summary []bool) bool {
	for _, expr := range fn.Expressions.All() {
		if s, ok := expr.Kind.(ExprImageSample); ok {
			if _, auto := s.Level.(SampleLevelAuto); auto {
				return true
			}
		}
	}
	return blockCallsSampler(fn.Body, summary)
}

func blockCallsSampler(block Block, summary []bool) bool {
	for _, stmt := range block {
		switch kind := stmt.Kind.(type) {
		case StmtCall:
			if summary[kind.Function] {
				return true
			}
		case StmtBlock:
			if blockCallsSampler(kind.Body, summary) {
				return true
			}
		case StmtIf:
			if blockCallsSampler(kind.Accept, summary) || blockCallsSampler(kind.Reject, summary) {
				return true
			}
		case StmtSwitch:
			for _, c := range kind.Cases {
				if blockCallsSampler(c.Body, summary) {
					return true
				}
			}
		case StmtLoop:
			if blockCallsSampler(kind.Body, summary) || blockCallsSampler(kind.Continuing, summary) {
				return true
			}
		}
	}
	return false
}

type uniformityAnalysis struct {
	module  *Module
	fn      *Function
	varying []bool // per expression handle
	samples []bool // per function handle, from functionSamplesImplicitly
}

// classify marks each expression as uniform or varying in one forward pass;
// handles only point backward, so one pass suffices.
func (u *uniformityAnalysis) classify() {
	n := u.fn.Expressions.Len()
	u.varying = make([]bool, n)
	for i, expr := range u.fn.Expressions.All() {
		u.varying[i] = u.exprVaries(expr.Kind)
	}
}

func (u *uniformityAnalysis) exprVaries(kind ExpressionKind) bool {
	switch k := kind.(type) {
	case ExprLiteral, ExprConstant, ExprZeroValue:
		return false
	case ExprGlobalVariable:
		// Buffer and resource contents are uniform across an invocation
		// group; private globals are not.
		space := u.module.Globals.At(k.Variable).Space
		return space == SpacePrivate
	case ExprFunctionArgument:
		// Entry-point inputs are per-invocation values.
		return true
	case ExprLocalVariable:
		// Locals can hold per-invocation data; treat loads as varying.
		return true
	case ExprCompose:
		for _, c := range k.Components {
			if u.varying[c] {
				return true
			}
		}
		return false
	case ExprAccess:
		return u.varying[k.Base] || u.varying[k.Index]
	case ExprAccessIndex:
		return u.varying[k.Base]
	case ExprSplat:
		return u.varying[k.Value]
	case ExprSwizzle:
		return u.varying[k.Vector]
	case ExprLoad:
		return u.varying[k.Pointer]
	case ExprUnary:
		return u.varying[k.Expr]
	case ExprBinary:
		return u.varying[k.Left] || u.varying[k.Right]
	case ExprSelect:
		return u.varying[k.Condition] || u.varying[k.Accept] || u.varying[k.Reject]
	case ExprMath:
		if u.varying[k.Arg] {
			return true
		}
		for _, a := range []*ExpressionHandle{k.Arg1, k.Arg2, k.Arg3} {
			if a != nil && u.varying[*a] {
				return true
			}
		}
		return false
	case ExprAs:
		return u.varying[k.Expr]
	case ExprImageSample, ExprCallResult:
		return true
	case ExprArrayLength:
		return false
	}
	return true
}

func (u *uniformityAnalysis) walk(block Block, nonUniform bool) error {
	for _, stmt := range block {
		switch kind := stmt.Kind.(type) {
		case StmtEmit:
			if !nonUniform {
				continue
			}
			for h := kind.Range.Start; h < kind.Range.End; h++ {
				sample, ok := u.fn.Expressions.At(h).Kind.(ExprImageSample)
				if !ok {
					continue
				}
				if _, auto := sample.Level.(SampleLevelAuto); auto {
					return &ValidationError{
						Cause:    CauseNonUniform,
						Function: u.fn.Name,
						Message:  "implicit-derivative sample under non-uniform control flow",
					}
				}
			}
		case StmtBlock:
			if err := u.walk(kind.Body, nonUniform); err != nil {
				return err
			}
		case StmtCall:
			if nonUniform && u.samples[kind.Function] {
				return &ValidationError{
					Cause:    CauseNonUniform,
					Function: u.fn.Name,
					Message:  "call samples with an implicit derivative under non-uniform control flow",
				}
			}
		case StmtIf:
			inner := nonUniform || u.varying[kind.Condition]
			if err := u.walk(kind.Accept, inner); err != nil {
				return err
			}
			if err := u.walk(kind.Reject, inner); err != nil {
				return err
			}
		case StmtSwitch:
			inner := nonUniform || u.varying[kind.Selector]
			for _, c := range kind.Cases {
				if err := u.walk(c.Body, inner); err != nil {
					return err
				}
			}
		case StmtLoop:
			// Loop trip counts can vary per invocation unless proven
			// otherwise; any break condition inside decides. Conservative:
			// the body is non-uniform if the loop breaks on varying data.
			inner := nonUniform || blockBreaksVarying(u, kind.Body) ||
				(kind.BreakIf != nil && u.varying[*kind.BreakIf])
			if err := u.walk(kind.Body, inner); err != nil {
				return err
			}
			if err := u.walk(kind.Continuing, inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func blockBreaksVarying(u *uniformityAnalysis, block Block) bool {
	for _, stmt := range block {
		if kind, ok := stmt.Kind.(StmtIf); ok {
			if u.varying[kind.Condition] && (blockHasBreak(kind.Accept) || blockHasBreak(kind.Reject)) {
				return true
			}
		}
	}
	return false
}

func blockHasBreak(block Block) bool {
	for _, stmt := range block {
		if _, ok := stmt.Kind.(StmtBreak); ok {
			return true
		}
	}
	return false
}
