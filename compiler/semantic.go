package compiler

import (
	"fmt"

	"github.com/chazu/olive/host"
	"github.com/chazu/olive/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: Pre-codegen semantic checks
// ---------------------------------------------------------------------------

// SemanticAnalyzer checks a parsed script before code generation: every
// variable must be declared, and every message sent straight to the host
// parameter must be part of the host type.
type SemanticAnalyzer struct {
	problems []Problem
	warnings []Problem

	// Known globals that are always defined
	knownGlobals map[string]bool

	// hostType is what sends to the host parameter are checked against.
	// nil disables the check.
	hostType *host.Type

	scopes []scopeFrame
}

// scopeFrame is one lexical scope: the unit, the entry block, or a nested
// block.
type scopeFrame struct {
	names map[string]bool
	host  string // name of the host parameter when this is the entry scope
}

// NewSemanticAnalyzer creates an analyzer checking host sends against ht.
func NewSemanticAnalyzer(ht *host.Type) *SemanticAnalyzer {
	return &SemanticAnalyzer{
		knownGlobals: defaultKnownGlobals(),
		hostType:     ht,
	}
}

// defaultKnownGlobals returns the set of always-defined global names.
func defaultKnownGlobals() map[string]bool {
	known := map[string]bool{
		"nil":   true,
		"true":  true,
		"false": true,
	}
	for name := range vm.Globals() {
		known[name] = true
	}
	return known
}

// Problems returns accumulated errors.
func (s *SemanticAnalyzer) Problems() []Problem {
	return s.problems
}

// Warnings returns problems that do not stop compilation.
func (s *SemanticAnalyzer) Warnings() []Problem {
	return s.warnings
}

// errorAt records an error with position information.
func (s *SemanticAnalyzer) errorAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	s.problems = append(s.problems, Problem{Line: pos.Line, Column: pos.Column, Msg: fmt.Sprintf(format, args...)})
}

// warnAt records a warning with position information.
func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	s.warnings = append(s.warnings, Problem{Line: pos.Line, Column: pos.Column, Msg: fmt.Sprintf(format, args...)})
}

// AnalyzeScript performs semantic analysis on a whole script.
func (s *SemanticAnalyzer) AnalyzeScript(script *Script) {
	s.scopes = nil
	s.pushScope(script, script.UnitVars, "")

	// Setup runs before any host exists, so the host parameter is not in
	// scope here.
	s.analyzeStatements(script.Setup)
	s.checkUnreachableCode(script.Setup)

	if script.Entry != nil {
		s.analyzeBlockWithHost(script.Entry, script.HostParam())
	}
	s.scopes = nil
}

func (s *SemanticAnalyzer) pushScope(node Node, names []string, hostName string) {
	frame := scopeFrame{names: make(map[string]bool), host: hostName}
	for _, n := range names {
		if frame.names[n] {
			s.errorAt(node, "duplicate variable name '%s'", n)
		}
		frame.names[n] = true
	}
	s.scopes = append(s.scopes, frame)
}

func (s *SemanticAnalyzer) popScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// resolve reports whether name is a local and whether it is the host
// parameter.
func (s *SemanticAnalyzer) resolve(name string) (found, isHost bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].names[name] {
			return true, s.scopes[i].host == name
		}
	}
	return false, false
}

// analyzeStatements analyzes a list of statements.
func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
}

// analyzeStmt analyzes a single statement.
func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *ExprStmt:
		s.analyzeExpr(st.Expr)
	case *Return:
		s.analyzeExpr(st.Value)
	}
}

// analyzeExpr analyzes an expression.
func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Variable:
		s.checkVariableDefined(e)
	case *Assignment:
		s.analyzeExpr(e.Value)
		s.checkAssignmentTarget(e)
	case *UnaryMessage:
		s.analyzeExpr(e.Receiver)
		s.checkHostSend(e, e.Receiver, e.Selector)
	case *BinaryMessage:
		s.analyzeExpr(e.Receiver)
		s.analyzeExpr(e.Argument)
		s.checkHostSend(e, e.Receiver, e.Selector)
	case *KeywordMessage:
		s.analyzeExpr(e.Receiver)
		for _, arg := range e.Arguments {
			s.analyzeExpr(arg)
		}
		s.checkHostSend(e, e.Receiver, e.Selector)
	case *Cascade:
		s.analyzeExpr(e.Receiver)
		for _, msg := range e.Messages {
			for _, arg := range msg.Arguments {
				s.analyzeExpr(arg)
			}
			s.checkHostSend(e, e.Receiver, msg.Selector)
		}
	case *Block:
		s.analyzeBlock(e)
	case *ArrayLiteral:
		for _, elem := range e.Elements {
			s.analyzeExpr(elem)
		}
	case *DynamicArray:
		for _, elem := range e.Elements {
			s.analyzeExpr(elem)
		}
	case *IntLiteral, *FloatLiteral, *StringLiteral, *SymbolLiteral, *CharLiteral:
	case *NilLiteral, *TrueLiteral, *FalseLiteral:
	}
}

// checkVariableDefined checks if a variable is defined.
func (s *SemanticAnalyzer) checkVariableDefined(v *Variable) {
	if found, _ := s.resolve(v.Name); found {
		return
	}
	if s.knownGlobals[v.Name] {
		return
	}
	s.errorAt(v, "undefined variable '%s'", v.Name)
}

// checkAssignmentTarget checks if an assignment target is valid.
func (s *SemanticAnalyzer) checkAssignmentTarget(a *Assignment) {
	found, isHost := s.resolve(a.Variable)
	switch {
	case isHost:
		s.errorAt(a, "cannot assign to the host parameter '%s'", a.Variable)
	case found:
	case s.knownGlobals[a.Variable]:
		s.errorAt(a, "cannot assign to global '%s'", a.Variable)
	default:
		s.errorAt(a, "assignment to undefined variable '%s'", a.Variable)
	}
}

// checkHostSend validates a message whose receiver is the host parameter.
func (s *SemanticAnalyzer) checkHostSend(node Node, recv Expr, selector string) {
	if s.hostType == nil {
		return
	}
	v, ok := recv.(*Variable)
	if !ok {
		return
	}
	if _, isHost := s.resolve(v.Name); !isHost {
		return
	}
	if s.hostType.Understands(selector) || vm.ObjectUnderstands(selector) {
		return
	}
	if name, ok := setterName(selector); ok {
		if f, ok := s.hostType.LookupField(name); ok && f.ReadOnly {
			s.errorAt(node, "%s field '%s' is read-only", s.hostType.Name, name)
			return
		}
	}
	s.errorAt(node, "%s does not understand #%s", s.hostType.Name, selector)
}

func setterName(selector string) (string, bool) {
	if len(selector) < 2 || selector[len(selector)-1] != ':' {
		return "", false
	}
	name := selector[:len(selector)-1]
	for _, r := range name {
		if r == ':' {
			return "", false
		}
	}
	return name, true
}

// analyzeBlock analyzes a nested block expression.
func (s *SemanticAnalyzer) analyzeBlock(block *Block) {
	for i, t := range block.ParamTypes {
		if t != nil {
			s.errorAt(t, "type annotation on '%s' is only allowed on the entry block's host parameter", block.Parameters[i])
		}
	}
	s.analyzeBlockWithHost(block, "")
}

func (s *SemanticAnalyzer) analyzeBlockWithHost(block *Block, hostName string) {
	names := append(append([]string(nil), block.Parameters...), block.Temps...)
	s.pushScope(block, names, hostName)
	s.analyzeStatements(block.Statements)
	s.checkUnreachableCode(block.Statements)
	s.popScope()
}

// checkUnreachableCode checks for code after a return statement.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		if _, isReturn := stmt.(*Return); isReturn {
			if i < len(stmts)-1 {
				s.warnAt(stmts[i+1], "unreachable code after return")
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Integration with Compile function
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on a script and returns errors and warnings.
func Analyze(script *Script, ht *host.Type) (problems, warnings []Problem) {
	analyzer := NewSemanticAnalyzer(ht)
	analyzer.AnalyzeScript(script)
	return analyzer.Problems(), analyzer.Warnings()
}
