// Package wgsl parses WGSL source text and lowers it to the shared IR.
package wgsl

import "fmt"

// TokenKind is the lexical class of a token.
type TokenKind uint8

const (
	TokEOF TokenKind = iota
	TokIdent
	TokInt
	TokFloat

	// Keywords. Predeclared type names (f32, vec3, texture_2d, ...) are
	// ordinary identifiers; the lowerer resolves them.
	TokBreak
	TokCase
	TokConst
	TokContinue
	TokContinuing
	TokDefault
	TokDiscard
	TokElse
	TokFalse
	TokFn
	TokFor
	TokIf
	TokLet
	TokLoop
	TokReturn
	TokStruct
	TokSwitch
	TokTrue
	TokVar
	TokWhile
	TokAlias
	TokEnable

	// Punctuation and operators.
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBracket
	TokRBracket
	TokComma
	TokDot
	TokColon
	TokSemicolon
	TokAt
	TokArrow
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokPercent
	TokAmp
	TokPipe
	TokCaret
	TokTilde
	TokBang
	TokAssign
	TokLess
	TokGreater
	TokEq
	TokNotEq
	TokLessEq
	TokGreaterEq
	TokAndAnd
	TokOrOr
	TokShiftLeft
	TokShiftRight
	TokPlusEq
	TokMinusEq
	TokStarEq
	TokSlashEq
	TokPercentEq
	TokAmpEq
	TokPipeEq
	TokCaretEq
	TokPlusPlus
	TokMinusMinus
)

var keywords = map[string]TokenKind{
	"break":      TokBreak,
	"case":       TokCase,
	"const":      TokConst,
	"continue":   TokContinue,
	"continuing": TokContinuing,
	"default":    TokDefault,
	"discard":    TokDiscard,
	"else":       TokElse,
	"false":      TokFalse,
	"fn":         TokFn,
	"for":        TokFor,
	"if":         TokIf,
	"let":        TokLet,
	"loop":       TokLoop,
	"return":     TokReturn,
	"struct":     TokStruct,
	"switch":     TokSwitch,
	"true":       TokTrue,
	"var":        TokVar,
	"while":      TokWhile,
	"alias":      TokAlias,
	"enable":     TokEnable,
}

// Pos is a location in source text. Line and Column are 1-based.
type Pos struct {
	Line   int
	Column int
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open source range.
type Span struct {
	Start Pos
	End   Pos
}

// Token is one lexical unit with its source text and location.
type Token struct {
	Kind TokenKind
	Text string
	Pos  Pos
}

func (t Token) span() Span {
	end := t.Pos
	end.Column += len(t.Text)
	end.Offset += len(t.Text)
	return Span{Start: t.Pos, End: end}
}
