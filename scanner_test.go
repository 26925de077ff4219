package wisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(source string) []Token {
	s := NewScanner(source)
	var tokens []Token
	for {
		tok := s.Next()
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF || tok.Kind == TokenError {
			break
		}
	}
	return tokens
}

func TestScanner_Punctuation(t *testing.T) {
	tokens := scanAll("( ) ' .")
	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokenKind{
		TokenLeftParen, TokenRightParen, TokenQuote, TokenDot, TokenEOF,
	}, kinds)
}

func TestScanner_KeywordReclassification(t *testing.T) {
	tests := []struct {
		source string
		kind   TokenKind
	}{
		{"define", TokenDefine},
		{"lambda", TokenLambda},
		{"quote", TokenQuoteWord},
		{"cons", TokenCons},
		{"car", TokenCar},
		{"cdr", TokenCdr},
		{"definex", TokenIdentifier},
		{"x", TokenIdentifier},
		{"+", TokenIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			s := NewScanner(tt.source)
			tok := s.Next()
			assert.Equal(t, tt.kind, tok.Kind)
			assert.Equal(t, tt.source, tok.Lexeme)
		})
	}
}

func TestScanner_Numbers(t *testing.T) {
	tests := []string{"42", "3.14", "0", "100.001"}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			s := NewScanner(src)
			tok := s.Next()
			require.Equal(t, TokenNumber, tok.Kind)
			assert.Equal(t, src, tok.Lexeme)
		})
	}
}

func TestScanner_SkipsCommentsAndTracksLines(t *testing.T) {
	source := "; a comment\n(define x 1) ; trailing\nx"
	tokens := scanAll(source)

	require.NotEmpty(t, tokens)
	assert.Equal(t, TokenLeftParen, tokens[0].Kind)
	assert.Equal(t, 2, tokens[0].Line)

	last := tokens[len(tokens)-2]
	assert.Equal(t, "x", last.Lexeme)
	assert.Equal(t, 3, last.Line)
}

func TestScanner_UnexpectedCharacterIsError(t *testing.T) {
	s := NewScanner("\x01")
	tok := s.Next()
	assert.Equal(t, TokenError, tok.Kind)
}
