package wgsl

// The AST mirrors source structure only; attributes stay attached as
// metadata and all name/type resolution happens during lowering.

// File is one parsed source file.
type File struct {
	Enables []Enable
	Decls   []Decl
}

// Enable is a parsed `enable name;` directive.
type Enable struct {
	Name string
	Pos  Pos
}

// Attribute is a parsed @name(args) annotation.
type Attribute struct {
	Name string
	Args []Expr
	Pos  Pos
}

// Decl is a module-scope declaration.
type Decl interface {
	declNode()
	DeclPos() Pos
}

// TypeExpr is a syntactic type reference: a name with optional template
// arguments. Array element counts land in Count; everything else is a
// nested type or a bare word (address spaces, access modes).
type TypeExpr struct {
	Name  string
	Args  []TypeExpr
	Count Expr // array<T, N> element count; nil for runtime-sized
	Pos   Pos
}

// StructDecl declares a struct with attributed members.
type StructDecl struct {
	Name    string
	Members []StructMemberDecl
	Pos     Pos
}

// StructMemberDecl is one struct field.
type StructMemberDecl struct {
	Name       string
	Type       TypeExpr
	Attributes []Attribute
	Pos        Pos
}

// GlobalVarDecl is a module-scope var, with optional address-space and
// access-mode template words (var<storage, read_write>).
type GlobalVarDecl struct {
	Name       string
	Space      string
	Access     string
	Type       *TypeExpr
	Init       Expr
	Attributes []Attribute
	Pos        Pos
}

// ConstDecl is a module-scope const.
type ConstDecl struct {
	Name string
	Type *TypeExpr
	Init Expr
	Pos  Pos
}

// AliasDecl binds a name to a type.
type AliasDecl struct {
	Name string
	Type TypeExpr
	Pos  Pos
}

// ParamDecl is one function parameter.
type ParamDecl struct {
	Name       string
	Type       TypeExpr
	Attributes []Attribute
	Pos        Pos
}

// FnDecl is a function declaration. Stage attributes make it an entry
// point; ReturnAttrs carry the return value's interface binding.
type FnDecl struct {
	Name        string
	Params      []ParamDecl
	ReturnType  *TypeExpr
	ReturnAttrs []Attribute
	Attributes  []Attribute
	Body        []Stmt
	Pos         Pos
}

func (*StructDecl) declNode()    {}
func (*GlobalVarDecl) declNode() {}
func (*ConstDecl) declNode()     {}
func (*AliasDecl) declNode()     {}
func (*FnDecl) declNode()        {}

func (d *StructDecl) DeclPos() Pos    { return d.Pos }
func (d *GlobalVarDecl) DeclPos() Pos { return d.Pos }
func (d *ConstDecl) DeclPos() Pos     { return d.Pos }
func (d *AliasDecl) DeclPos() Pos     { return d.Pos }
func (d *FnDecl) DeclPos() Pos        { return d.Pos }

// Stmt is a statement.
type Stmt interface {
	stmtNode()
	StmtPos() Pos
}

// VarStmt declares a function-scope var, let, or const.
type VarStmt struct {
	Keyword TokenKind // TokVar, TokLet, or TokConst
	Name    string
	Type    *TypeExpr
	Init    Expr
	Pos     Pos
}

// AssignStmt is an assignment, possibly compound (+=, <<=, ...), or an
// increment/decrement (Op TokPlusPlus/TokMinusMinus with nil Value).
type AssignStmt struct {
	Target Expr
	Op     TokenKind
	Value  Expr
	Pos    Pos
}

// IfStmt is a conditional; ElseIf chains live in Else as a single IfStmt.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Pos  Pos
}

// ForStmt is the C-style loop; Init and Update may be nil.
type ForStmt struct {
	Init   Stmt
	Cond   Expr
	Update Stmt
	Body   []Stmt
	Pos    Pos
}

// WhileStmt loops while Cond holds.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Pos  Pos
}

// LoopStmt is the bare loop with an optional continuing block.
type LoopStmt struct {
	Body       []Stmt
	Continuing []Stmt
	Pos        Pos
}

// SwitchCase is one switch arm; nil Values marks the default case.
type SwitchCase struct {
	Values []Expr
	Body   []Stmt
	Pos    Pos
}

// SwitchStmt dispatches on an integer selector.
type SwitchStmt struct {
	Selector Expr
	Cases    []SwitchCase
	Pos      Pos
}

// ReturnStmt exits the function.
type ReturnStmt struct {
	Value Expr
	Pos   Pos
}

// BreakStmt exits the innermost loop or switch.
type BreakStmt struct{ Pos Pos }

// BreakIfStmt is the conditional break closing a continuing block.
type BreakIfStmt struct {
	Cond Expr
	Pos  Pos
}

// ContinueStmt jumps to the innermost loop's continuing block.
type ContinueStmt struct{ Pos Pos }

// DiscardStmt discards the current fragment.
type DiscardStmt struct{ Pos Pos }

// BlockStmt is a nested brace scope.
type BlockStmt struct {
	Body []Stmt
	Pos  Pos
}

// ExprStmt evaluates an expression for effect (function calls).
type ExprStmt struct {
	X   Expr
	Pos Pos
}

func (*VarStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*LoopStmt) stmtNode()     {}
func (*SwitchStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*BreakIfStmt) stmtNode()  {}
func (*ContinueStmt) stmtNode() {}
func (*DiscardStmt) stmtNode()  {}
func (*BlockStmt) stmtNode()    {}
func (*ExprStmt) stmtNode()     {}

func (s *VarStmt) StmtPos() Pos      { return s.Pos }
func (s *AssignStmt) StmtPos() Pos   { return s.Pos }
func (s *IfStmt) StmtPos() Pos       { return s.Pos }
func (s *ForStmt) StmtPos() Pos      { return s.Pos }
func (s *WhileStmt) StmtPos() Pos    { return s.Pos }
func (s *LoopStmt) StmtPos() Pos     { return s.Pos }
func (s *SwitchStmt) StmtPos() Pos   { return s.Pos }
func (s *ReturnStmt) StmtPos() Pos   { return s.Pos }
func (s *BreakStmt) StmtPos() Pos    { return s.Pos }
func (s *BreakIfStmt) StmtPos() Pos  { return s.Pos }
func (s *ContinueStmt) StmtPos() Pos { return s.Pos }
func (s *DiscardStmt) StmtPos() Pos  { return s.Pos }
func (s *BlockStmt) StmtPos() Pos    { return s.Pos }
func (s *ExprStmt) StmtPos() Pos     { return s.Pos }

// Expr is an expression.
type Expr interface {
	exprNode()
	ExprPos() Pos
}

// IdentExpr is a bare identifier reference.
type IdentExpr struct {
	Name string
	Pos  Pos
}

// IntLit is an integer literal with its suffix intact.
type IntLit struct {
	Text string
	Pos  Pos
}

// FloatLit is a float literal with its suffix intact.
type FloatLit struct {
	Text string
	Pos  Pos
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Pos   Pos
}

// UnaryExpr applies a prefix operator (-, !, ~, &, *).
type UnaryExpr struct {
	Op  TokenKind
	X   Expr
	Pos Pos
}

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op    TokenKind
	Left  Expr
	Right Expr
	Pos   Pos
}

// CallExpr is a function call, type constructor, or builtin call. Target
// carries template arguments for constructors like vec3<f32>(...).
type CallExpr struct {
	Target TypeExpr
	Args   []Expr
	Pos    Pos
}

// IndexExpr is base[index].
type IndexExpr struct {
	Base  Expr
	Index Expr
	Pos   Pos
}

// MemberExpr is base.field, covering struct members and swizzles.
type MemberExpr struct {
	Base  Expr
	Field string
	Pos   Pos
}

// BitcastExpr reinterprets bits as another type.
type BitcastExpr struct {
	To  TypeExpr
	X   Expr
	Pos Pos
}

func (*IdentExpr) exprNode()   {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*BoolLit) exprNode()     {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}
func (*IndexExpr) exprNode()   {}
func (*MemberExpr) exprNode()  {}
func (*BitcastExpr) exprNode() {}

func (e *IdentExpr) ExprPos() Pos   { return e.Pos }
func (e *IntLit) ExprPos() Pos      { return e.Pos }
func (e *FloatLit) ExprPos() Pos    { return e.Pos }
func (e *BoolLit) ExprPos() Pos     { return e.Pos }
func (e *UnaryExpr) ExprPos() Pos   { return e.Pos }
func (e *BinaryExpr) ExprPos() Pos  { return e.Pos }
func (e *CallExpr) ExprPos() Pos    { return e.Pos }
func (e *IndexExpr) ExprPos() Pos   { return e.Pos }
func (e *MemberExpr) ExprPos() Pos  { return e.Pos }
func (e *BitcastExpr) ExprPos() Pos { return e.Pos }
