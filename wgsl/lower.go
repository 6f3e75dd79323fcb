package wgsl

import (
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/wgslc/ir"
)

// Lower parses source and builds the typed module form. It is the whole
// front end in one call: tokenize, parse, lower.
func Lower(source string) (*ir.Module, error) {
	file, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return LowerFile(file)
}

// Parse tokenizes and parses source without lowering it.
func Parse(source string) (*File, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// LowerFile builds the typed module form from a parsed file. Declarations
// are processed in source order; a function may only call functions
// declared above it, which keeps every cross-reference pointing backward.
func LowerFile(file *File) (*ir.Module, error) {
	l := &Lowerer{
		module:  &ir.Module{},
		structs: map[string]ir.TypeHandle{},
		aliases: map[string]ir.TypeHandle{},
		globals: map[string]ir.GlobalHandle{},
		consts:  map[string]ir.ConstantHandle{},
		fns:     map[string]ir.FunctionHandle{},
	}
	l.registry = ir.NewTypeRegistry(l.module)

	// No extensions are supported; f16 in particular needs 16-bit literal
	// encoding and width conversions the pipeline does not carry.
	if len(file.Enables) > 0 {
		ext := file.Enables[0]
		return nil, loweringErrorf(ext.Pos, "extension %q is not supported", ext.Name)
	}

	for _, decl := range file.Decls {
		var err error
		switch d := decl.(type) {
		case *StructDecl:
			err = l.structDecl(d)
		case *AliasDecl:
			var th ir.TypeHandle
			th, err = l.lowerType(d.Type)
			if err == nil {
				l.aliases[d.Name] = th
			}
		case *ConstDecl:
			err = l.constDecl(d)
		case *GlobalVarDecl:
			err = l.globalVar(d)
		case *FnDecl:
			err = l.function(d)
		}
		if err != nil {
			return nil, err
		}
	}
	return l.module, nil
}

// Lowerer carries module-level state across declarations.
type Lowerer struct {
	module   *ir.Module
	registry *ir.TypeRegistry
	structs  map[string]ir.TypeHandle
	aliases  map[string]ir.TypeHandle
	globals  map[string]ir.GlobalHandle
	consts   map[string]ir.ConstantHandle
	fns      map[string]ir.FunctionHandle
}

func (l *Lowerer) structDecl(d *StructDecl) error {
	if _, dup := l.structs[d.Name]; dup {
		return loweringErrorf(d.Pos, "struct %q redeclared", d.Name)
	}

	var members []ir.StructMember
	builder := ir.NewStructLayoutBuilder(l.module)
	for _, m := range d.Members {
		th, err := l.lowerType(m.Type)
		if err != nil {
			return err
		}
		binding, err := l.interfaceBinding(m.Attributes)
		if err != nil {
			return err
		}
		align, hasAlign, err := l.attrUint(m.Attributes, "align")
		if err != nil {
			return err
		}
		size, hasSize, err := l.attrUint(m.Attributes, "size")
		if err != nil {
			return err
		}
		if hasAlign && (align == 0 || align&(align-1) != 0) {
			return loweringErrorf(m.Pos, "@align value %d is not a power of two", align)
		}
		if hasSize {
			if natural := ir.LayoutOf(l.module, th).Size; size < natural {
				return loweringErrorf(m.Pos, "@size value %d is smaller than %q's %d bytes", size, m.Name, natural)
			}
		}
		members = append(members, ir.StructMember{
			Name:    m.Name,
			Type:    th,
			Offset:  builder.AddAnnotated(th, align, size),
			Binding: binding,
		})
	}
	inner := ir.Struct{Members: members, Span: builder.Span()}
	l.structs[d.Name] = l.registry.Register(d.Name, inner)
	return nil
}

func (l *Lowerer) constDecl(d *ConstDecl) error {
	th, value, err := l.evalConst(d.Init)
	if err != nil {
		return err
	}
	if d.Type != nil {
		declared, err := l.lowerType(*d.Type)
		if err != nil {
			return err
		}
		th, value, err = l.coerceConst(declared, th, value, d.Pos)
		if err != nil {
			return err
		}
	}
	l.consts[d.Name] = ir.InternConstant(l.module, ir.Constant{
		Name:  d.Name,
		Type:  th,
		Value: value,
	})
	return nil
}

func (l *Lowerer) globalVar(d *GlobalVarDecl) error {
	if d.Type == nil {
		return loweringErrorf(d.Pos, "module-scope var %q requires an explicit type", d.Name)
	}
	th, err := l.lowerType(*d.Type)
	if err != nil {
		return err
	}

	g := ir.GlobalVariable{Name: d.Name, Type: th}

	switch d.Space {
	case "":
		switch l.module.Types.At(th).Inner.(type) {
		case ir.Image, ir.Sampler:
			g.Space = ir.SpaceHandle
		default:
			return loweringErrorf(d.Pos, "var %q requires an address space", d.Name)
		}
	case "private":
		g.Space = ir.SpacePrivate
	case "workgroup":
		g.Space = ir.SpaceWorkGroup
	case "uniform":
		g.Space = ir.SpaceUniform
	case "storage":
		g.Space = ir.SpaceStorage
	case "push_constant":
		g.Space = ir.SpacePushConstant
	default:
		return loweringErrorf(d.Pos, "unknown address space %q", d.Space)
	}

	switch d.Access {
	case "":
		if g.Space == ir.SpaceStorage {
			g.Access = ir.AccessRead
		}
	case "read":
		g.Access = ir.AccessRead
	case "read_write":
		g.Access = ir.AccessReadWrite
	case "write":
		g.Access = ir.AccessWrite
	default:
		return loweringErrorf(d.Pos, "unknown access mode %q", d.Access)
	}
	if d.Access != "" && g.Space != ir.SpaceStorage {
		return loweringErrorf(d.Pos, "access mode is only valid in the storage address space")
	}

	group, hasGroup, err := l.attrUint(d.Attributes, "group")
	if err != nil {
		return err
	}
	binding, hasBinding, err := l.attrUint(d.Attributes, "binding")
	if err != nil {
		return err
	}
	if hasGroup != hasBinding {
		return loweringErrorf(d.Pos, "var %q needs both @group and @binding", d.Name)
	}
	if hasGroup {
		g.Binding = &ir.ResourceBinding{Group: group, Binding: binding}
	}

	if d.Init != nil {
		if g.Space != ir.SpacePrivate {
			return loweringErrorf(d.Pos, "only private variables may have initializers")
		}
		ith, value, err := l.evalConst(d.Init)
		if err != nil {
			return err
		}
		ith, value, err = l.coerceConst(th, ith, value, d.Pos)
		if err != nil {
			return err
		}
		ch := ir.InternConstant(l.module, ir.Constant{Type: ith, Value: value})
		g.Init = &ch
	}

	l.globals[d.Name] = l.module.Globals.Append(g)
	return nil
}

func (l *Lowerer) function(d *FnDecl) error {
	fn := ir.Function{Name: d.Name}

	for _, p := range d.Params {
		th, err := l.lowerType(p.Type)
		if err != nil {
			return err
		}
		binding, err := l.interfaceBinding(p.Attributes)
		if err != nil {
			return err
		}
		fn.Arguments = append(fn.Arguments, ir.FunctionArgument{
			Name:    p.Name,
			Type:    th,
			Binding: binding,
		})
	}
	if d.ReturnType != nil {
		th, err := l.lowerType(*d.ReturnType)
		if err != nil {
			return err
		}
		binding, err := l.interfaceBinding(d.ReturnAttrs)
		if err != nil {
			return err
		}
		fn.Result = &ir.FunctionResult{Type: th, Binding: binding}
	}

	f := &fnLowerer{l: l, fn: &fn}
	f.pushScope()
	for i, arg := range fn.Arguments {
		h, err := f.add(ir.ExprFunctionArgument{Index: uint32(i)}, d.Params[i].Pos)
		if err != nil {
			return err
		}
		f.bind(arg.Name, h)
	}

	var body ir.Block
	if err := f.lowerStmts(&body, d.Body); err != nil {
		return err
	}
	f.flush(&body)
	f.popScope()
	fn.Body = body

	handle := l.module.Functions.Append(fn)
	l.fns[d.Name] = handle

	return l.maybeEntryPoint(d, handle)
}

func (l *Lowerer) maybeEntryPoint(d *FnDecl, handle ir.FunctionHandle) error {
	var stage ir.ShaderStage
	found := false
	for _, attr := range d.Attributes {
		switch attr.Name {
		case "vertex":
			stage, found = ir.StageVertex, true
		case "fragment":
			stage, found = ir.StageFragment, true
		case "compute":
			stage, found = ir.StageCompute, true
		}
	}
	if !found {
		return nil
	}

	ep := ir.EntryPoint{Name: d.Name, Stage: stage, Function: handle}
	if stage == ir.StageCompute {
		attr := findAttr(d.Attributes, "workgroup_size")
		if attr == nil {
			return loweringErrorf(d.Pos, "compute entry point %q requires @workgroup_size", d.Name)
		}
		if len(attr.Args) < 1 || len(attr.Args) > 3 {
			return loweringErrorf(attr.Pos, "@workgroup_size takes one to three arguments")
		}
		ep.WorkGroupSize = [3]uint32{1, 1, 1}
		for i, arg := range attr.Args {
			n, err := l.evalConstInt(arg)
			if err != nil {
				return err
			}
			if n < 1 || n > math.MaxUint32 {
				return loweringErrorf(attr.Pos, "workgroup size %d out of range", n)
			}
			ep.WorkGroupSize[i] = uint32(n)
		}
	} else if findAttr(d.Attributes, "workgroup_size") != nil {
		return loweringErrorf(d.Pos, "@workgroup_size is only valid on compute entry points")
	}

	l.module.EntryPoints = append(l.module.EntryPoints, ep)
	return nil
}

func findAttr(attrs []Attribute, name string) *Attribute {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}

func (l *Lowerer) attrUint(attrs []Attribute, name string) (uint32, bool, error) {
	attr := findAttr(attrs, name)
	if attr == nil {
		return 0, false, nil
	}
	if len(attr.Args) != 1 {
		return 0, false, loweringErrorf(attr.Pos, "@%s takes exactly one argument", name)
	}
	n, err := l.evalConstInt(attr.Args[0])
	if err != nil {
		return 0, false, err
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, false, loweringErrorf(attr.Pos, "@%s value %d out of range", name, n)
	}
	return uint32(n), true, nil
}

var builtinValues = map[string]ir.BuiltinValue{
	"position":               ir.BuiltinPosition,
	"vertex_index":           ir.BuiltinVertexIndex,
	"instance_index":         ir.BuiltinInstanceIndex,
	"front_facing":           ir.BuiltinFrontFacing,
	"frag_depth":             ir.BuiltinFragDepth,
	"local_invocation_id":    ir.BuiltinLocalInvocationID,
	"local_invocation_index": ir.BuiltinLocalInvocationIndex,
	"global_invocation_id":   ir.BuiltinGlobalInvocationID,
	"workgroup_id":           ir.BuiltinWorkGroupID,
	"num_workgroups":         ir.BuiltinNumWorkGroups,
	"sample_index":           ir.BuiltinSampleIndex,
	"sample_mask":            ir.BuiltinSampleMask,
}

// interfaceBinding extracts an @location or @builtin attribute, if present.
func (l *Lowerer) interfaceBinding(attrs []Attribute) (ir.Binding, error) {
	location, hasLocation, err := l.attrUint(attrs, "location")
	if err != nil {
		return nil, err
	}
	builtin := findAttr(attrs, "builtin")
	if hasLocation && builtin != nil {
		return nil, loweringErrorf(builtin.Pos, "@location and @builtin are mutually exclusive")
	}
	if hasLocation {
		return ir.LocationBinding{Location: location}, nil
	}
	if builtin != nil {
		if len(builtin.Args) != 1 {
			return nil, loweringErrorf(builtin.Pos, "@builtin takes exactly one argument")
		}
		name, ok := builtin.Args[0].(*IdentExpr)
		if !ok {
			return nil, loweringErrorf(builtin.Pos, "@builtin argument must be a name")
		}
		value, ok := builtinValues[name.Name]
		if !ok {
			return nil, loweringErrorf(name.Pos, "unknown builtin %q", name.Name)
		}
		return ir.BuiltinBinding{Builtin: value}, nil
	}
	return nil, nil
}

// literalParts splits a numeric literal into digits and suffix.
func literalParts(text string) (digits, suffix string) {
	if n := len(text); n > 0 {
		switch text[n-1] {
		case 'i', 'u', 'f', 'h':
			// Hex literals can end in letters that double as suffixes;
			// a hex digit run never takes one without a preceding digit,
			// so only split when the rest still parses as a number.
			if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
				return text[:n-1], text[n-1:]
			}
		}
	}
	return text, ""
}

func parseIntLiteral(text string, pos Pos) (value int64, suffix string, err error) {
	digits, suffix := literalParts(text)
	if suffix == "h" {
		return 0, "", loweringErrorf(pos, "literal %q requires the unsupported f16 extension", text)
	}
	n, perr := strconv.ParseUint(digits, 0, 64)
	if perr != nil || n > math.MaxUint32 {
		return 0, "", loweringErrorf(pos, "integer literal %q out of range", text)
	}
	return int64(n), suffix, nil
}

func parseFloatLiteral(text string, pos Pos) (float64, error) {
	digits, suffix := literalParts(text)
	if suffix == "h" {
		return 0, loweringErrorf(pos, "literal %q requires the unsupported f16 extension", text)
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, loweringErrorf(pos, "malformed float literal %q", text)
	}
	return f, nil
}
