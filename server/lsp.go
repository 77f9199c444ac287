package server

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/olive/compiler"
	"github.com/chazu/olive/host"
	"github.com/chazu/olive/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "olive-lsp"

// LspServer checks scripts against a host type while they are edited.
// It never touches a running host, so it needs no runtime.
type LspServer struct {
	hostType *host.Type

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server for scripts bound to ht.
func NewLSP(ht *host.Type) *LspServer {
	s := &LspServer{
		hostType: ht,
		docs:     make(map[string]string),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "olive LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{" "},
	}

	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.complete(extractPrefix(text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return s.hover(word), nil
}

// complete offers host selectors and globals matching prefix. An empty
// prefix lists every host selector.
func (s *LspServer) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	if s.hostType != nil {
		for _, sel := range s.hostType.Selectors() {
			if !strings.HasPrefix(strings.ToLower(sel), lowerPrefix) {
				continue
			}
			kind := protocol.CompletionItemKindMethod
			if _, isMethod := s.hostType.LookupMethod(sel); !isMethod {
				kind = protocol.CompletionItemKindField
			}
			detail := s.hostType.Name
			label := sel
			items = append(items, protocol.CompletionItem{
				Label:      label,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &label,
			})
		}
	}

	if prefix != "" {
		names := make([]string, 0, len(vm.Globals()))
		for name := range vm.Globals() {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
				continue
			}
			kind := protocol.CompletionItemKindVariable
			detail := "global"
			label := name
			items = append(items, protocol.CompletionItem{
				Label:      label,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &label,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(word string) *protocol.Hover {
	if s.hostType == nil {
		return nil
	}

	if len(word) > 0 && unicode.IsUpper(rune(word[0])) {
		t, ok := s.hostType.Ancestor(word)
		if !ok {
			return nil
		}
		return markdown(describeType(t))
	}

	// Try the unary/getter form first, then the setter.
	for _, sel := range []string{word, word + ":"} {
		if desc, ok := s.hostType.Describe(sel); ok {
			return markdown(desc)
		}
	}
	return nil
}

func describeType(t *host.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", t.Name)
	if t.Parent != nil {
		fmt.Fprintf(&b, " < %s", t.Parent.Name)
	}
	b.WriteString("\n\n")
	for _, f := range t.Fields() {
		kind := "transient"
		if f.Persistent {
			kind = "persistent"
		}
		fmt.Fprintf(&b, "- `%s` (%s)\n", f.Name, kind)
	}
	return b.String()
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := s.diagnose(uri, text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text the way a reload would, without invoking the entry
// block.
func (s *LspServer) diagnose(uri protocol.DocumentUri, text string) []protocol.Diagnostic {
	problems, warnings := compiler.Check(uriPath(uri), []byte(text), s.hostType)

	lines := strings.Split(text, "\n")
	diagnostics := []protocol.Diagnostic{}
	for _, p := range problems {
		diagnostics = append(diagnostics, diagnostic(lines, p, protocol.DiagnosticSeverityError))
	}
	for _, p := range warnings {
		diagnostics = append(diagnostics, diagnostic(lines, p, protocol.DiagnosticSeverityWarning))
	}
	return diagnostics
}

func diagnostic(lines []string, p compiler.Problem, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	source := lspName
	pos := protocol.Position{}
	if p.Line > 0 {
		pos.Line = protocol.UInteger(p.Line - 1)
	}
	if p.Column > 0 {
		line := ""
		if int(pos.Line) < len(lines) {
			line = lines[pos.Line]
		}
		pos.Character = protocol.UInteger(utf16Column(line, p.Column-1))
	}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: pos},
		Severity: &severity,
		Source:   &source,
		Message:  p.Msg,
	}
}

func uriPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return u.Path
}

// --- Text extraction helpers ---

// utf16Column converts a rune offset within line to the UTF-16 code unit
// offset LSP clients count in. Offsets past the end of line count one unit
// per rune.
func utf16Column(line string, runes int) int {
	units := 0
	for _, r := range line {
		if runes == 0 {
			return units
		}
		units += utf16.RuneLen(r)
		runes--
	}
	return units + runes
}

// byteOffset converts an LSP character offset to a byte index into line,
// clamped to its length.
func byteOffset(line string, character int) int {
	units := 0
	for i, r := range line {
		if units >= character {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(line)
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteOffset(line, int(pos.Character))

	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == ':' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteOffset(line, int(pos.Character))

	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
