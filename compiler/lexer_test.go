package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } ^ . ; := : |`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenCaret, "^"},
		{TokenPeriod, "."},
		{TokenSemicolon, ";"},
		{TokenAssign, ":="},
		{TokenColon, ":"},
		{TokenBar, "|"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"-123", TokenInteger, "-123"},
		{"16rFF", TokenInteger, "16rFF"},
		{"3.14", TokenFloat, "3.14"},
		{"1.5e10", TokenFloat, "1.5e10"},
		{"2e-3", TokenFloat, "2e-3"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerMinusAfterOperand(t *testing.T) {
	toks := Tokenize("x-1")
	want := []TokenType{TokenIdentifier, TokenBinarySelector, TokenInteger, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %v", toks)
	}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, toks[i], typ)
		}
	}
}

func TestLexerTypeAnnotation(t *testing.T) {
	toks := Tokenize("[:program <PersistentProgram>|")
	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenLBracket, "["},
		{TokenColon, ":"},
		{TokenIdentifier, "program"},
		{TokenBinarySelector, "<"},
		{TokenIdentifier, "PersistentProgram"},
		{TokenBinarySelector, ">"},
		{TokenBar, "|"},
		{TokenEOF, ""},
	}
	for i, exp := range want {
		if toks[i].Type != exp.typ || toks[i].Literal != exp.lit {
			t.Errorf("token[%d] = %v, want %v(%q)", i, toks[i], exp.typ, exp.lit)
		}
	}
}

func TestLexerStringsAndSymbols(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"'hello'", TokenString, "hello"},
		{"'it''s'", TokenString, "it's"},
		{"#foo", TokenSymbol, "foo"},
		{"#at:put:", TokenSymbol, "at:put:"},
		{"#'hello world'", TokenSymbol, "hello world"},
		{"#+", TokenSymbol, "+"},
		{"$a", TokenCharacter, "a"},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.want {
			t.Errorf("Lexer(%q) = %v, want %v(%q)", tc.input, tok, tc.typ, tc.want)
		}
	}
}

func TestLexerKeywordsAndReserved(t *testing.T) {
	toks := Tokenize("counter: nil true false x:=")
	want := []TokenType{TokenKeyword, TokenNil, TokenTrue, TokenFalse, TokenIdentifier, TokenAssign, TokenEOF}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, toks[i], typ)
		}
	}
}

func TestLexerSkipsComments(t *testing.T) {
	toks := Tokenize("\"a comment\" x # trailing comment\ny")
	if len(toks) != 3 || toks[0].Literal != "x" || toks[1].Literal != "y" {
		t.Errorf("got %v", toks)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("a\n  bc")
	if toks[0].Pos.Line != 1 || toks[0].Pos.Column != 1 {
		t.Errorf("a at %d:%d, want 1:1", toks[0].Pos.Line, toks[0].Pos.Column)
	}
	if toks[1].Pos.Line != 2 || toks[1].Pos.Column != 3 {
		t.Errorf("bc at %d:%d, want 2:3", toks[1].Pos.Line, toks[1].Pos.Column)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	toks := Tokenize("'open")
	last := toks[len(toks)-1]
	if last.Type != TokenError {
		t.Errorf("expected error token, got %v", last)
	}
}
