package wgsl

import (
	"unicode"
	"unicode/utf8"
)

// Lexer turns source text into a token stream. It is a plain scanner: one
// pass, no lookahead beyond a rune, positions tracked as it goes.
type Lexer struct {
	src    string
	offset int
	line   int
	column int
}

// NewLexer creates a lexer over source.
func NewLexer(source string) *Lexer {
	return &Lexer{src: source, line: 1, column: 1}
}

// Tokenize scans the whole input. It stops at the first lexical fault.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) pos() Pos {
	return Pos{Line: l.line, Column: l.column, Offset: l.offset}
}

func (l *Lexer) peek() rune {
	if l.offset >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.offset:])
	return r
}

func (l *Lexer) peekAt(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) skipTrivia() error {
	for l.offset < len(l.src) {
		switch {
		case unicode.IsSpace(l.peek()):
			l.advance()
		case l.peek() == '/' && l.peekAt(1) == '/':
			for l.offset < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case l.peek() == '/' && l.peekAt(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			depth := 1
			for depth > 0 {
				if l.offset >= len(l.src) {
					return syntaxErrorf(start, "unterminated block comment")
				}
				switch {
				case l.peek() == '/' && l.peekAt(1) == '*':
					l.advance()
					l.advance()
					depth++
				case l.peek() == '*' && l.peekAt(1) == '/':
					l.advance()
					l.advance()
					depth--
				default:
					l.advance()
				}
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	start := l.pos()
	if l.offset >= len(l.src) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	r := l.peek()
	switch {
	case unicode.IsLetter(r) || r == '_':
		return l.identifier(start), nil
	case unicode.IsDigit(r):
		return l.number(start), nil
	}
	l.advance()

	tok := func(kind TokenKind) (Token, error) {
		return Token{Kind: kind, Text: l.src[start.Offset:l.offset], Pos: start}, nil
	}
	// eat consumes the next rune when it matches.
	eat := func(want rune) bool {
		if l.peek() == want {
			l.advance()
			return true
		}
		return false
	}

	switch r {
	case '(':
		return tok(TokLParen)
	case ')':
		return tok(TokRParen)
	case '{':
		return tok(TokLBrace)
	case '}':
		return tok(TokRBrace)
	case '[':
		return tok(TokLBracket)
	case ']':
		return tok(TokRBracket)
	case ',':
		return tok(TokComma)
	case '.':
		return tok(TokDot)
	case ':':
		return tok(TokColon)
	case ';':
		return tok(TokSemicolon)
	case '@':
		return tok(TokAt)
	case '~':
		return tok(TokTilde)
	case '+':
		if eat('=') {
			return tok(TokPlusEq)
		}
		if eat('+') {
			return tok(TokPlusPlus)
		}
		return tok(TokPlus)
	case '-':
		if eat('>') {
			return tok(TokArrow)
		}
		if eat('=') {
			return tok(TokMinusEq)
		}
		if eat('-') {
			return tok(TokMinusMinus)
		}
		return tok(TokMinus)
	case '*':
		if eat('=') {
			return tok(TokStarEq)
		}
		return tok(TokStar)
	case '/':
		if eat('=') {
			return tok(TokSlashEq)
		}
		return tok(TokSlash)
	case '%':
		if eat('=') {
			return tok(TokPercentEq)
		}
		return tok(TokPercent)
	case '&':
		if eat('&') {
			return tok(TokAndAnd)
		}
		if eat('=') {
			return tok(TokAmpEq)
		}
		return tok(TokAmp)
	case '|':
		if eat('|') {
			return tok(TokOrOr)
		}
		if eat('=') {
			return tok(TokPipeEq)
		}
		return tok(TokPipe)
	case '^':
		if eat('=') {
			return tok(TokCaretEq)
		}
		return tok(TokCaret)
	case '!':
		if eat('=') {
			return tok(TokNotEq)
		}
		return tok(TokBang)
	case '=':
		if eat('=') {
			return tok(TokEq)
		}
		return tok(TokAssign)
	case '<':
		if eat('=') {
			return tok(TokLessEq)
		}
		if eat('<') {
			return tok(TokShiftLeft)
		}
		return tok(TokLess)
	case '>':
		if eat('=') {
			return tok(TokGreaterEq)
		}
		if eat('>') {
			return tok(TokShiftRight)
		}
		return tok(TokGreater)
	}
	return Token{}, syntaxErrorf(start, "unexpected character %q", r)
}

func (l *Lexer) identifier(start Pos) Token {
	for l.offset < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	text := l.src[start.Offset:l.offset]
	if kind, ok := keywords[text]; ok {
		return Token{Kind: kind, Text: text, Pos: start}
	}
	return Token{Kind: TokIdent, Text: text, Pos: start}
}

func (l *Lexer) number(start Pos) Token {
	isFloat := false

	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	// Literal suffixes: f/h force float, i/u stay integer.
	switch l.peek() {
	case 'f', 'h':
		isFloat = true
		l.advance()
	case 'i', 'u':
		l.advance()
	}

	text := l.src[start.Offset:l.offset]
	kind := TokInt
	if isFloat {
		kind = TokFloat
	}
	return Token{Kind: kind, Text: text, Pos: start}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
