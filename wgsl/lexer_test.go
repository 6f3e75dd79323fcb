package wgsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, source string) []Token {
	t.Helper()
	tokens, err := NewLexer(source).Tokenize()
	require.NoError(t, err)
	return tokens
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestLexerBasicDeclaration(t *testing.T) {
	tokens := tokenize(t, "let x: f32 = 1.0;")
	assert.Equal(t, []TokenKind{
		TokLet, TokIdent, TokColon, TokIdent, TokAssign, TokFloat, TokSemicolon, TokEOF,
	}, kinds(tokens))
	assert.Equal(t, "x", tokens[1].Text)
	assert.Equal(t, "f32", tokens[3].Text)
	assert.Equal(t, "1.0", tokens[5].Text)
}

func TestLexerNumberForms(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
	}{
		{"42", TokInt},
		{"42u", TokInt},
		{"42i", TokInt},
		{"0x1F", TokInt},
		{"1.5", TokFloat},
		{"1.5f", TokFloat},
		{"2f", TokFloat},
		{"1e3", TokFloat},
		{"2.5e-2", TokFloat},
	}
	for _, tc := range cases {
		tokens := tokenize(t, tc.src)
		require.Len(t, tokens, 2, "source %q", tc.src)
		assert.Equal(t, tc.kind, tokens[0].Kind, "source %q", tc.src)
		assert.Equal(t, tc.src, tokens[0].Text, "source %q", tc.src)
	}
}

func TestLexerShiftIsOneToken(t *testing.T) {
	tokens := tokenize(t, "a >> b << c")
	assert.Equal(t, []TokenKind{
		TokIdent, TokShiftRight, TokIdent, TokShiftLeft, TokIdent, TokEOF,
	}, kinds(tokens))
}

func TestLexerCompoundOperators(t *testing.T) {
	tokens := tokenize(t, "a += 1; b -= 2; c++; d--; e &= f;")
	got := kinds(tokens)
	assert.Contains(t, got, TokPlusEq)
	assert.Contains(t, got, TokMinusEq)
	assert.Contains(t, got, TokPlusPlus)
	assert.Contains(t, got, TokMinusMinus)
	assert.Contains(t, got, TokAmpEq)
}

func TestLexerComments(t *testing.T) {
	tokens := tokenize(t, `
// line comment
let /* block
   spanning lines */ x = /* nested /* comment */ here */ 1;
`)
	assert.Equal(t, []TokenKind{
		TokLet, TokIdent, TokAssign, TokInt, TokSemicolon, TokEOF,
	}, kinds(tokens))
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	_, err := NewLexer("let x = 1; /* oops").Tokenize()
	require.Error(t, err)
	var serr *SyntaxError
	assert.ErrorAs(t, err, &serr)
}

func TestLexerTracksPositions(t *testing.T) {
	tokens := tokenize(t, "fn main() {\n    return;\n}")
	// "return" sits on line 2 column 5.
	var ret Token
	for _, tok := range tokens {
		if tok.Kind == TokReturn {
			ret = tok
		}
	}
	assert.Equal(t, 2, ret.Pos.Line)
	assert.Equal(t, 5, ret.Pos.Column)
}

func TestLexerKeywordsVersusIdentifiers(t *testing.T) {
	tokens := tokenize(t, "loop looper while whiled")
	assert.Equal(t, []TokenKind{
		TokLoop, TokIdent, TokWhile, TokIdent, TokEOF,
	}, kinds(tokens))
}
