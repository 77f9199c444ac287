package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/olive/host"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "Object new"
	pos := protocol.Position{Line: 0, Character: 10}
	prefix := extractPrefix(text, pos)
	if prefix != "new" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "new")
	}
}

func TestExtractPrefix_AtStart(t *testing.T) {
	text := "Obj"
	pos := protocol.Position{Line: 0, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "Obj" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Obj")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "first line\nsecond line\nObj"
	pos := protocol.Position{Line: 2, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "Obj" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Obj")
	}
}

func TestExtractPrefix_AfterSpace(t *testing.T) {
	text := "x := SmallInt"
	pos := protocol.Position{Line: 0, Character: 13}
	prefix := extractPrefix(text, pos)
	if prefix != "SmallInt" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "SmallInt")
	}
}

func TestExtractPrefix_WithKeywordColon(t *testing.T) {
	text := "obj at:put:"
	pos := protocol.Position{Line: 0, Character: 11}
	prefix := extractPrefix(text, pos)
	if prefix != "at:put:" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "at:put:")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

// ---------------------------------------------------------------------------
// extractWord
// ---------------------------------------------------------------------------

func TestExtractWord_SimpleWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_AtEnd(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_AtSpace(t *testing.T) {
	text := "hello world"
	// Position at the space between words
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	// Cursor at end of "hello" (char 5 is the space), so it should find "hello"
	// because start walks back from col=5, and line[4]='o' is a letter
	if word != "hello" {
		t.Errorf("extractWord at space = %q, want %q", word, "hello")
	}
}

func TestExtractWord_SecondWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 8}
	word := extractWord(text, pos)
	if word != "world" {
		t.Errorf("extractWord = %q, want %q", word, "world")
	}
}

func TestExtractWord_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord = %q, want empty string", word)
	}
}

func TestExtractWord_MultiLine(t *testing.T) {
	text := "first\nObject"
	pos := protocol.Position{Line: 1, Character: 3}
	word := extractWord(text, pos)
	if word != "Object" {
		t.Errorf("extractWord = %q, want %q", word, "Object")
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	text := "my_var"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "my_var" {
		t.Errorf("extractWord = %q, want %q", word, "my_var")
	}
}

func TestExtractWord_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord beyond doc = %q, want empty string", word)
	}
}

// ---------------------------------------------------------------------------
// boolPtr
// ---------------------------------------------------------------------------

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}

// ---------------------------------------------------------------------------
// Host-type backed logic (complete, hover, diagnostics)
// ---------------------------------------------------------------------------

func testHostType() *host.Type {
	return host.NewType("PersistentProgram", host.Program()).
		AddField(host.Field{Name: "counter", Default: int64(0), Persistent: true, Doc: "Frames seen so far."}).
		AddField(host.Field{Name: "camera", Persistent: true, ReadOnly: true}).
		AddField(host.Field{Name: "background", Default: "black"})
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestLSP_Complete(t *testing.T) {
	lsp := NewLSP(testHostType())

	got := labels(lsp.complete("cou"))
	if len(got) != 2 || got[0] != "counter" || got[1] != "counter:" {
		t.Errorf("complete(cou) = %v, want [counter counter:]", got)
	}

	// Read-only fields have no setter.
	for _, l := range labels(lsp.complete("cam")) {
		if l == "camera:" {
			t.Error("complete offered a setter for read-only camera")
		}
	}

	// Inherited methods and globals.
	if got := labels(lsp.complete("fr")); len(got) != 1 || got[0] != "frame" {
		t.Errorf("complete(fr) = %v, want [frame]", got)
	}
	if got := labels(lsp.complete("Trans")); len(got) != 1 || got[0] != "Transcript" {
		t.Errorf("complete(Trans) = %v, want [Transcript]", got)
	}
}

func TestLSP_Complete_Kinds(t *testing.T) {
	lsp := NewLSP(testHostType())
	for _, it := range lsp.complete("") {
		switch it.Label {
		case "seconds":
			if *it.Kind != protocol.CompletionItemKindMethod {
				t.Errorf("seconds kind = %v, want method", *it.Kind)
			}
		case "background":
			if *it.Kind != protocol.CompletionItemKindField {
				t.Errorf("background kind = %v, want field", *it.Kind)
			}
		case "Transcript":
			t.Error("empty prefix should list host selectors only")
		}
	}
}

func TestLSP_Hover_TypeName(t *testing.T) {
	lsp := NewLSP(testHostType())

	h := lsp.hover("PersistentProgram")
	if h == nil {
		t.Fatal("hover on host type returned nil")
	}
	value := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(value, "< Program") || !strings.Contains(value, "`counter` (persistent)") {
		t.Errorf("hover = %q", value)
	}

	if lsp.hover("Program") == nil {
		t.Error("hover on ancestor type returned nil")
	}
	if lsp.hover("Camera") != nil {
		t.Error("hover on unknown type should be nil")
	}
}

func TestLSP_Hover_Field(t *testing.T) {
	lsp := NewLSP(testHostType())

	h := lsp.hover("counter")
	if h == nil {
		t.Fatal("hover on field returned nil")
	}
	value := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(value, "persistent") || !strings.Contains(value, "Frames seen so far.") {
		t.Errorf("hover = %q", value)
	}

	if h := lsp.hover("camera"); h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "read-only") {
		t.Error("hover on camera should mention read-only")
	}
	if lsp.hover("unknownThing") != nil {
		t.Error("hover on unknown word should be nil")
	}
}

func TestLSP_Hover_NoHostType(t *testing.T) {
	lsp := NewLSP(nil)
	if lsp.hover("counter") != nil {
		t.Error("hover without host type should be nil")
	}
}

func TestLSP_Diagnose(t *testing.T) {
	lsp := NewLSP(testHostType())

	diags := lsp.diagnose("file:///tmp/main.st", "[:p <PersistentProgram> | p counter: p counter + 1]")
	if len(diags) != 0 {
		t.Errorf("valid script produced diagnostics: %v", diags)
	}

	diags = lsp.diagnose("file:///tmp/main.st", "[:p <PersistentProgram> |\n  p camera: 3]")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	d := diags[0]
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", *d.Severity)
	}
	if d.Range.Start.Line != 1 {
		t.Errorf("line = %d, want 1 (0-based)", d.Range.Start.Line)
	}
	if !strings.Contains(d.Message, "read-only") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestLSP_Diagnose_UTF16Columns(t *testing.T) {
	lsp := NewLSP(testHostType())

	// The emoji is one rune but two UTF-16 code units.
	diags := lsp.diagnose("file:///tmp/main.st", "[:p <PersistentProgram> |\n  p background: '😀'. p camera: 3]")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if got := diags[0].Range.Start.Character; got != 22 {
		t.Errorf("character = %d, want 22", got)
	}
}

func TestUTF16Column(t *testing.T) {
	tests := []struct {
		line  string
		runes int
		want  int
	}{
		{"abc", 2, 2},
		{"été", 2, 2},
		{"😀x", 1, 2},
		{"😀x", 2, 3},
		{"ab", 4, 4},
	}
	for _, tt := range tests {
		if got := utf16Column(tt.line, tt.runes); got != tt.want {
			t.Errorf("utf16Column(%q, %d) = %d, want %d", tt.line, tt.runes, got, tt.want)
		}
	}
}

func TestExtractWord_AfterSurrogatePair(t *testing.T) {
	text := "'😀' counter"
	// Character 5 is inside "counter" when the emoji counts as two units.
	word := extractWord(text, protocol.Position{Line: 0, Character: 5})
	if word != "counter" {
		t.Errorf("extractWord = %q, want %q", word, "counter")
	}
}

func TestURIPath(t *testing.T) {
	if got := uriPath("file:///home/me/main.st"); got != "/home/me/main.st" {
		t.Errorf("uriPath = %q", got)
	}
	if got := uriPath("untitled:1"); got != "untitled:1" {
		t.Errorf("uriPath = %q", got)
	}
}

func TestLSP_DocumentStore(t *testing.T) {
	lsp := NewLSP(testHostType())

	lsp.mu.Lock()
	lsp.docs["file:///test.st"] = "[:p | p frame]"
	lsp.mu.Unlock()

	items, err := lsp.textDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///test.st"},
			Position:     protocol.Position{Line: 0, Character: 11},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := labels(items.([]protocol.CompletionItem)); len(got) != 1 || got[0] != "frame" {
		t.Errorf("completion = %v, want [frame]", got)
	}

	items, _ = lsp.textDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///other.st"},
		},
	})
	if items != nil {
		t.Error("completion for unknown document should be nil")
	}
}
