package wgsl

// Parser is a recursive-descent parser over the token stream. It stops at
// the first syntax fault, per the pipeline contract.
type Parser struct {
	tokens []Token
	pos    int
	// splits records '>>' tokens rewritten in place while closing nested
	// templates, so speculative parses can be rewound cleanly.
	splits []tokenPatch
}

type tokenPatch struct {
	index int
	tok   Token
}

// NewParser creates a parser over tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the whole stream into a File.
func (p *Parser) Parse() (*File, error) {
	file := &File{}
	for p.peek().Kind == TokEnable {
		p.advance()
		name, err := p.expect(TokIdent, "extension name")
		if err != nil {
			return nil, err
		}
		file.Enables = append(file.Enables, Enable{Name: name.Text, Pos: name.Pos})
		if _, err := p.expect(TokSemicolon, "';' after enable"); err != nil {
			return nil, err
		}
	}
	for p.peek().Kind != TokEOF {
		decl, err := p.declaration()
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decl)
	}
	return file, nil
}

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAhead(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) match(kind TokenKind) bool {
	if p.peek().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return Token{}, syntaxErrorf(tok.Pos, "expected %s, found %q", what, tok.Text)
	}
	return p.advance(), nil
}

// expectTemplateClose consumes a '>' closing a template argument list,
// splitting a '>>' token when templates nest (vec4<vec4<f32>>).
func (p *Parser) expectTemplateClose() error {
	tok := p.peek()
	switch tok.Kind {
	case TokGreater:
		p.advance()
		return nil
	case TokShiftRight:
		p.splits = append(p.splits, tokenPatch{index: p.pos, tok: tok})
		half := tok
		half.Kind = TokGreater
		half.Text = ">"
		half.Pos.Column++
		half.Pos.Offset++
		p.tokens[p.pos] = half
		return nil
	}
	return syntaxErrorf(tok.Pos, "expected '>', found %q", tok.Text)
}

// attributeNames is the set the pipeline understands; anything else is a
// syntax fault rather than silently dropped metadata.
var attributeNames = map[string]bool{
	"align":          true,
	"binding":        true,
	"builtin":        true,
	"compute":        true,
	"fragment":       true,
	"group":          true,
	"location":       true,
	"size":           true,
	"vertex":         true,
	"workgroup_size": true,
}

func (p *Parser) attributes() ([]Attribute, error) {
	var attrs []Attribute
	for p.peek().Kind == TokAt {
		at := p.advance()
		name := p.peek()
		// Stage attribute names collide with no keyword, but attribute
		// arguments like builtin names are plain identifiers too.
		if name.Kind != TokIdent && name.Kind != TokConst {
			return nil, syntaxErrorf(name.Pos, "expected attribute name, found %q", name.Text)
		}
		if !attributeNames[name.Text] {
			return nil, syntaxErrorf(name.Pos, "unknown attribute %q", name.Text)
		}
		p.advance()
		attr := Attribute{Name: name.Text, Pos: at.Pos}
		if p.match(TokLParen) {
			for {
				arg, err := p.expression()
				if err != nil {
					return nil, err
				}
				attr.Args = append(attr.Args, arg)
				if !p.match(TokComma) {
					break
				}
				if p.peek().Kind == TokRParen {
					break
				}
			}
			if _, err := p.expect(TokRParen, "')' after attribute arguments"); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func (p *Parser) declaration() (Decl, error) {
	attrs, err := p.attributes()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch tok.Kind {
	case TokStruct:
		if len(attrs) > 0 {
			return nil, syntaxErrorf(tok.Pos, "attributes are not allowed on struct declarations")
		}
		return p.structDecl()
	case TokVar:
		return p.globalVarDecl(attrs)
	case TokConst:
		if len(attrs) > 0 {
			return nil, syntaxErrorf(tok.Pos, "attributes are not allowed on const declarations")
		}
		return p.constDecl()
	case TokAlias:
		return p.aliasDecl()
	case TokFn:
		return p.fnDecl(attrs)
	}
	return nil, syntaxErrorf(tok.Pos, "expected declaration, found %q", tok.Text)
}

func (p *Parser) structDecl() (*StructDecl, error) {
	kw := p.advance()
	name, err := p.expect(TokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "'{' after struct name"); err != nil {
		return nil, err
	}

	decl := &StructDecl{Name: name.Text, Pos: kw.Pos}
	for p.peek().Kind != TokRBrace {
		attrs, err := p.attributes()
		if err != nil {
			return nil, err
		}
		member, err := p.expect(TokIdent, "struct member name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':' after member name"); err != nil {
			return nil, err
		}
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.Members = append(decl.Members, StructMemberDecl{
			Name:       member.Text,
			Type:       ty,
			Attributes: attrs,
			Pos:        member.Pos,
		})
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace, "'}' after struct members"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) globalVarDecl(attrs []Attribute) (*GlobalVarDecl, error) {
	kw := p.advance()
	decl := &GlobalVarDecl{Attributes: attrs, Pos: kw.Pos}

	if p.match(TokLess) {
		space, err := p.expect(TokIdent, "address space")
		if err != nil {
			return nil, err
		}
		decl.Space = space.Text
		if p.match(TokComma) {
			access, err := p.expect(TokIdent, "access mode")
			if err != nil {
				return nil, err
			}
			decl.Access = access.Text
		}
		if err := p.expectTemplateClose(); err != nil {
			return nil, err
		}
	}

	name, err := p.expect(TokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	decl.Name = name.Text

	if p.match(TokColon) {
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.Type = &ty
	}
	if p.match(TokAssign) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	if _, err := p.expect(TokSemicolon, "';' after variable declaration"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) constDecl() (*ConstDecl, error) {
	kw := p.advance()
	name, err := p.expect(TokIdent, "constant name")
	if err != nil {
		return nil, err
	}
	decl := &ConstDecl{Name: name.Text, Pos: kw.Pos}
	if p.match(TokColon) {
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.Type = &ty
	}
	if _, err := p.expect(TokAssign, "'=' in const declaration"); err != nil {
		return nil, err
	}
	init, err := p.expression()
	if err != nil {
		return nil, err
	}
	decl.Init = init
	if _, err := p.expect(TokSemicolon, "';' after const declaration"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) aliasDecl() (*AliasDecl, error) {
	kw := p.advance()
	name, err := p.expect(TokIdent, "alias name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokAssign, "'=' in alias declaration"); err != nil {
		return nil, err
	}
	ty, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon, "';' after alias declaration"); err != nil {
		return nil, err
	}
	return &AliasDecl{Name: name.Text, Type: ty, Pos: kw.Pos}, nil
}

func (p *Parser) fnDecl(attrs []Attribute) (*FnDecl, error) {
	kw := p.advance()
	name, err := p.expect(TokIdent, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "'(' after function name"); err != nil {
		return nil, err
	}

	decl := &FnDecl{Name: name.Text, Attributes: attrs, Pos: kw.Pos}
	for p.peek().Kind != TokRParen {
		paramAttrs, err := p.attributes()
		if err != nil {
			return nil, err
		}
		pname, err := p.expect(TokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':' after parameter name"); err != nil {
			return nil, err
		}
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, ParamDecl{
			Name:       pname.Text,
			Type:       ty,
			Attributes: paramAttrs,
			Pos:        pname.Pos,
		})
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen, "')' after parameters"); err != nil {
		return nil, err
	}

	if p.match(TokArrow) {
		retAttrs, err := p.attributes()
		if err != nil {
			return nil, err
		}
		decl.ReturnAttrs = retAttrs
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		decl.ReturnType = &ty
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

// typeExpr parses a type reference: a name with optional template
// arguments. Inside templates, identifiers parse as nested types and
// anything else as the array element count.
func (p *Parser) typeExpr() (TypeExpr, error) {
	name, err := p.expect(TokIdent, "type name")
	if err != nil {
		return TypeExpr{}, err
	}
	te := TypeExpr{Name: name.Text, Pos: name.Pos}
	if !p.match(TokLess) {
		return te, nil
	}

	for {
		if p.peek().Kind == TokIdent {
			arg, err := p.typeExpr()
			if err != nil {
				return TypeExpr{}, err
			}
			te.Args = append(te.Args, arg)
		} else {
			// Element count: parse without comparison operators so the
			// closing '>' is not swallowed.
			count, err := p.unary()
			if err != nil {
				return TypeExpr{}, err
			}
			te.Count = count
		}
		if !p.match(TokComma) {
			break
		}
	}
	if err := p.expectTemplateClose(); err != nil {
		return TypeExpr{}, err
	}
	return te, nil
}

func (p *Parser) block() ([]Stmt, error) {
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for p.peek().Kind != TokRBrace {
		if p.peek().Kind == TokEOF {
			return nil, syntaxErrorf(p.peek().Pos, "unexpected end of input in block")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.advance()
	return stmts, nil
}

func (p *Parser) statement() (Stmt, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokVar, TokLet, TokConst:
		stmt, err := p.varStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemicolon, "';' after declaration"); err != nil {
			return nil, err
		}
		return stmt, nil
	case TokIf:
		return p.ifStmt()
	case TokFor:
		return p.forStmt()
	case TokWhile:
		return p.whileStmt()
	case TokLoop:
		return p.loopStmt()
	case TokSwitch:
		return p.switchStmt()
	case TokReturn:
		p.advance()
		stmt := &ReturnStmt{Pos: tok.Pos}
		if p.peek().Kind != TokSemicolon {
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			stmt.Value = value
		}
		if _, err := p.expect(TokSemicolon, "';' after return"); err != nil {
			return nil, err
		}
		return stmt, nil
	case TokBreak:
		p.advance()
		if p.match(TokIf) {
			cond, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokSemicolon, "';' after break if"); err != nil {
				return nil, err
			}
			return &BreakIfStmt{Cond: cond, Pos: tok.Pos}, nil
		}
		if _, err := p.expect(TokSemicolon, "';' after break"); err != nil {
			return nil, err
		}
		return &BreakStmt{Pos: tok.Pos}, nil
	case TokContinue:
		p.advance()
		if _, err := p.expect(TokSemicolon, "';' after continue"); err != nil {
			return nil, err
		}
		return &ContinueStmt{Pos: tok.Pos}, nil
	case TokDiscard:
		p.advance()
		if _, err := p.expect(TokSemicolon, "';' after discard"); err != nil {
			return nil, err
		}
		return &DiscardStmt{Pos: tok.Pos}, nil
	case TokLBrace:
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Body: body, Pos: tok.Pos}, nil
	}

	stmt, err := p.simpleStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon, "';' after statement"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// varStmt parses a var/let/const declaration without the trailing
// semicolon, so for-loop initializers can reuse it.
func (p *Parser) varStmt() (*VarStmt, error) {
	kw := p.advance()
	name, err := p.expect(TokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	stmt := &VarStmt{Keyword: kw.Kind, Name: name.Text, Pos: kw.Pos}
	if p.match(TokColon) {
		ty, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		stmt.Type = &ty
	}
	if p.match(TokAssign) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Init = init
	}
	if stmt.Keyword != TokVar && stmt.Init == nil {
		return nil, syntaxErrorf(kw.Pos, "'%s' declaration requires an initializer", kw.Text)
	}
	return stmt, nil
}

// simpleStmt parses an assignment, increment/decrement, or expression
// statement without the trailing semicolon.
func (p *Parser) simpleStmt() (Stmt, error) {
	start := p.peek().Pos
	target, err := p.expression()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch tok.Kind {
	case TokAssign, TokPlusEq, TokMinusEq, TokStarEq, TokSlashEq,
		TokPercentEq, TokAmpEq, TokPipeEq, TokCaretEq:
		p.advance()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: target, Op: tok.Kind, Value: value, Pos: start}, nil
	case TokPlusPlus, TokMinusMinus:
		p.advance()
		return &AssignStmt{Target: target, Op: tok.Kind, Pos: start}, nil
	}
	return &ExprStmt{X: target, Pos: start}, nil
}

func (p *Parser) ifStmt() (Stmt, error) {
	kw := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then, Pos: kw.Pos}
	if p.match(TokElse) {
		if p.peek().Kind == TokIf {
			elseIf, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = []Stmt{elseIf}
		} else {
			elseBlock, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBlock
		}
	}
	return stmt, nil
}

func (p *Parser) forStmt() (Stmt, error) {
	kw := p.advance()
	if _, err := p.expect(TokLParen, "'(' after for"); err != nil {
		return nil, err
	}

	stmt := &ForStmt{Pos: kw.Pos}
	if p.peek().Kind != TokSemicolon {
		var err error
		if k := p.peek().Kind; k == TokVar || k == TokLet || k == TokConst {
			stmt.Init, err = p.varStmt()
		} else {
			stmt.Init, err = p.simpleStmt()
		}
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokSemicolon, "';' after for initializer"); err != nil {
		return nil, err
	}

	if p.peek().Kind != TokSemicolon {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(TokSemicolon, "';' after for condition"); err != nil {
		return nil, err
	}

	if p.peek().Kind != TokRParen {
		update, err := p.simpleStmt()
		if err != nil {
			return nil, err
		}
		stmt.Update = update
	}
	if _, err := p.expect(TokRParen, "')' after for clauses"); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) whileStmt() (Stmt, error) {
	kw := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Pos: kw.Pos}, nil
}

func (p *Parser) loopStmt() (Stmt, error) {
	kw := p.advance()
	if _, err := p.expect(TokLBrace, "'{' after loop"); err != nil {
		return nil, err
	}

	stmt := &LoopStmt{Pos: kw.Pos}
	for p.peek().Kind != TokRBrace {
		if p.peek().Kind == TokContinuing {
			p.advance()
			continuing, err := p.block()
			if err != nil {
				return nil, err
			}
			stmt.Continuing = continuing
			break
		}
		inner, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmt.Body = append(stmt.Body, inner)
	}
	if _, err := p.expect(TokRBrace, "'}' after loop body"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) switchStmt() (Stmt, error) {
	kw := p.advance()
	selector, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "'{' after switch selector"); err != nil {
		return nil, err
	}

	stmt := &SwitchStmt{Selector: selector, Pos: kw.Pos}
	for p.peek().Kind != TokRBrace {
		tok := p.peek()
		var c SwitchCase
		c.Pos = tok.Pos
		switch tok.Kind {
		case TokCase:
			p.advance()
			for {
				value, err := p.expression()
				if err != nil {
					return nil, err
				}
				c.Values = append(c.Values, value)
				if !p.match(TokComma) {
					break
				}
			}
		case TokDefault:
			p.advance()
		default:
			return nil, syntaxErrorf(tok.Pos, "expected case or default, found %q", tok.Text)
		}
		p.match(TokColon) // optional in WGSL
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		c.Body = body
		stmt.Cases = append(stmt.Cases, c)
	}
	p.advance()
	return stmt, nil
}

// Expression precedence ladder, loosest first.
func (p *Parser) expression() (Expr, error) {
	return p.logicalOr()
}

func (p *Parser) binaryLevel(next func() (Expr, error), ops ...TokenKind) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		matched := false
		for _, op := range ops {
			if tok.Kind == op {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.Kind, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) logicalOr() (Expr, error) {
	return p.binaryLevel(p.logicalAnd, TokOrOr)
}

func (p *Parser) logicalAnd() (Expr, error) {
	return p.binaryLevel(p.bitOr, TokAndAnd)
}

func (p *Parser) bitOr() (Expr, error) {
	return p.binaryLevel(p.bitXor, TokPipe)
}

func (p *Parser) bitXor() (Expr, error) {
	return p.binaryLevel(p.bitAnd, TokCaret)
}

func (p *Parser) bitAnd() (Expr, error) {
	return p.binaryLevel(p.equality, TokAmp)
}

func (p *Parser) equality() (Expr, error) {
	return p.binaryLevel(p.relational, TokEq, TokNotEq)
}

func (p *Parser) relational() (Expr, error) {
	return p.binaryLevel(p.shift, TokLess, TokLessEq, TokGreater, TokGreaterEq)
}

func (p *Parser) shift() (Expr, error) {
	return p.binaryLevel(p.additive, TokShiftLeft, TokShiftRight)
}

func (p *Parser) additive() (Expr, error) {
	return p.binaryLevel(p.multiplicative, TokPlus, TokMinus)
}

func (p *Parser) multiplicative() (Expr, error) {
	return p.binaryLevel(p.unary, TokStar, TokSlash, TokPercent)
}

func (p *Parser) unary() (Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokMinus, TokBang, TokTilde, TokAmp, TokStar:
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Kind, X: x, Pos: tok.Pos}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case TokLBracket:
			p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket, "']' after index"); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Base: expr, Index: index, Pos: expr.ExprPos()}
		case TokDot:
			p.advance()
			field, err := p.expect(TokIdent, "member name")
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{Base: expr, Field: field.Text, Pos: field.Pos}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) primary() (Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokInt:
		p.advance()
		return &IntLit{Text: tok.Text, Pos: tok.Pos}, nil
	case TokFloat:
		p.advance()
		return &FloatLit{Text: tok.Text, Pos: tok.Pos}, nil
	case TokTrue:
		p.advance()
		return &BoolLit{Value: true, Pos: tok.Pos}, nil
	case TokFalse:
		p.advance()
		return &BoolLit{Value: false, Pos: tok.Pos}, nil
	case TokLParen:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')' after expression"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokIdent:
		return p.identExpr()
	}
	return nil, syntaxErrorf(tok.Pos, "expected expression, found %q", tok.Text)
}

// identExpr parses an identifier, a call, or a templated constructor call
// like vec3<f32>(...). A '<' after an identifier is treated as a template
// only when a template argument list followed by '(' actually parses;
// otherwise it is a comparison and the identifier stands alone.
func (p *Parser) identExpr() (Expr, error) {
	name := p.advance()

	if name.Text == "bitcast" && p.peek().Kind == TokLess {
		p.advance()
		to, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectTemplateClose(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokLParen, "'(' after bitcast type"); err != nil {
			return nil, err
		}
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')' after bitcast argument"); err != nil {
			return nil, err
		}
		return &BitcastExpr{To: to, X: arg, Pos: name.Pos}, nil
	}

	target := TypeExpr{Name: name.Text, Pos: name.Pos}
	if p.peek().Kind == TokLess {
		saved := p.pos
		savedSplits := len(p.splits)
		p.advance()
		ok := true
		for {
			if p.peek().Kind != TokIdent {
				if count, err := p.unary(); err != nil || count == nil {
					ok = false
					break
				} else {
					target.Count = count
				}
			} else {
				arg, err := p.typeExpr()
				if err != nil {
					ok = false
					break
				}
				target.Args = append(target.Args, arg)
			}
			if !p.match(TokComma) {
				break
			}
		}
		if ok {
			if err := p.expectTemplateClose(); err != nil || p.peek().Kind != TokLParen {
				ok = false
			}
		}
		if !ok {
			// Not a template: rewind and treat '<' as comparison.
			for i := len(p.splits) - 1; i >= savedSplits; i-- {
				p.tokens[p.splits[i].index] = p.splits[i].tok
			}
			p.splits = p.splits[:savedSplits]
			p.pos = saved
			target.Args = nil
			target.Count = nil
		}
	}

	if p.peek().Kind == TokLParen {
		p.advance()
		call := &CallExpr{Target: target, Pos: name.Pos}
		for p.peek().Kind != TokRParen {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.match(TokComma) {
				break
			}
		}
		if _, err := p.expect(TokRParen, "')' after call arguments"); err != nil {
			return nil, err
		}
		return call, nil
	}

	if len(target.Args) > 0 || target.Count != nil {
		return nil, syntaxErrorf(name.Pos, "templated name %q must be called", name.Text)
	}
	return &IdentExpr{Name: name.Text, Pos: name.Pos}, nil
}
