package compiler

import (
	"strings"
	"testing"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	expr := p.ParseExpression()
	if len(p.Problems()) > 0 {
		t.Fatalf("parse %q: %v", input, p.Errors())
	}
	return expr
}

func TestParsePrecedence(t *testing.T) {
	// unary binds tighter than binary, binary tighter than keyword
	expr := parseExpr(t, "a foo: b bar + 2")
	kw, ok := expr.(*KeywordMessage)
	if !ok {
		t.Fatalf("expected KeywordMessage, got %T", expr)
	}
	if kw.Selector != "foo:" {
		t.Errorf("selector = %q", kw.Selector)
	}
	bin, ok := kw.Arguments[0].(*BinaryMessage)
	if !ok || bin.Selector != "+" {
		t.Fatalf("argument = %T", kw.Arguments[0])
	}
	if un, ok := bin.Receiver.(*UnaryMessage); !ok || un.Selector != "bar" {
		t.Errorf("binary receiver = %T", bin.Receiver)
	}
}

func TestParseKeywordSelector(t *testing.T) {
	kw := parseExpr(t, "a at: 1 put: 2").(*KeywordMessage)
	if kw.Selector != "at:put:" || len(kw.Arguments) != 2 {
		t.Errorf("got %q with %d args", kw.Selector, len(kw.Arguments))
	}
}

func TestParseCascade(t *testing.T) {
	c, ok := parseExpr(t, "Transcript show: 'a'; cr; show: 'b'").(*Cascade)
	if !ok {
		t.Fatal("expected Cascade")
	}
	if len(c.Messages) != 3 {
		t.Fatalf("messages = %d", len(c.Messages))
	}
	if c.Messages[1].Selector != "cr" || c.Messages[2].Selector != "show:" {
		t.Errorf("selectors = %q %q", c.Messages[1].Selector, c.Messages[2].Selector)
	}
}

func TestParseBlockWithParamsAndTemps(t *testing.T) {
	b, ok := parseExpr(t, "[:x :y | | t | t := x + y. t]").(*Block)
	if !ok {
		t.Fatal("expected Block")
	}
	if strings.Join(b.Parameters, ",") != "x,y" {
		t.Errorf("params = %v", b.Parameters)
	}
	if strings.Join(b.Temps, ",") != "t" {
		t.Errorf("temps = %v", b.Temps)
	}
	if len(b.Statements) != 2 {
		t.Errorf("statements = %d", len(b.Statements))
	}
}

func TestParseBarAsBinarySelector(t *testing.T) {
	bin, ok := parseExpr(t, "a | b").(*BinaryMessage)
	if !ok || bin.Selector != "|" {
		t.Fatalf("got %T", bin)
	}
}

func TestParseArrays(t *testing.T) {
	lit := parseExpr(t, "#(1 foo 'x' #(2))").(*ArrayLiteral)
	if len(lit.Elements) != 4 {
		t.Fatalf("literal elements = %d", len(lit.Elements))
	}
	if sym, ok := lit.Elements[1].(*SymbolLiteral); !ok || sym.Value != "foo" {
		t.Errorf("bare identifier in literal array should be a symbol, got %T", lit.Elements[1])
	}
	dyn := parseExpr(t, "{1. 2 + 3. x}").(*DynamicArray)
	if len(dyn.Elements) != 3 {
		t.Errorf("dynamic elements = %d", len(dyn.Elements))
	}
}

func TestParseScript(t *testing.T) {
	src := `| count |
count := 10.
[:program <PersistentProgram> |
    | t |
    t := program counter.
    program counter: t + count ]`
	s, problems := ParseScript(src)
	if len(problems) > 0 {
		t.Fatalf("problems: %v", problems)
	}
	if strings.Join(s.UnitVars, ",") != "count" {
		t.Errorf("unit vars = %v", s.UnitVars)
	}
	if len(s.Setup) != 1 {
		t.Errorf("setup statements = %d", len(s.Setup))
	}
	if s.HostParam() != "program" {
		t.Errorf("host param = %q", s.HostParam())
	}
	if ref := s.HostType(); ref == nil || ref.Name != "PersistentProgram" {
		t.Errorf("host type = %v", ref)
	}
	if len(s.Entry.Temps) != 1 || len(s.Entry.Statements) != 2 {
		t.Errorf("entry temps=%v statements=%d", s.Entry.Temps, len(s.Entry.Statements))
	}
}

func TestParseScriptWithoutAnnotation(t *testing.T) {
	s, problems := ParseScript("[:p | p frame]")
	if len(problems) > 0 {
		t.Fatalf("problems: %v", problems)
	}
	if s.HostType() != nil {
		t.Errorf("expected no host type, got %v", s.HostType())
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing entry", "x := 3", "entry block"},
		{"two params", "[:a :b | a]", "exactly one parameter"},
		{"unclosed block", "[:p | p frame", "expected ]"},
		{"bad annotation", "[:p <Foo | p]", "expected >"},
		{"garbage after entry", "[:p | p] ]", "unexpected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, problems := ParseScript(tc.input)
			if len(problems) == 0 {
				t.Fatalf("expected problems for %q", tc.input)
			}
			if !strings.Contains(problems[0].Msg, tc.want) {
				t.Errorf("first problem = %q, want it to mention %q", problems[0].Msg, tc.want)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, problems := ParseScript("[:p |\n  p frame: ]")
	if len(problems) == 0 {
		t.Fatal("expected a problem")
	}
	if problems[0].Line != 2 {
		t.Errorf("line = %d, want 2", problems[0].Line)
	}
}
