package compiler

import (
	"fmt"

	"github.com/chazu/olive/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to closures
// ---------------------------------------------------------------------------

// Codegen turns an analyzed AST into vm.Code closures. Variables are
// resolved at compile time to (depth, index) pairs so the closures never
// look names up while running.
type Codegen struct {
	path    string
	globals map[string]any
	scope   *codeScope
	errors  []Problem
}

// codeScope maps the variables of one frame to slots.
type codeScope struct {
	slots map[string]int
	size  int
	outer *codeScope
}

func newScope(names []string, outer *codeScope) *codeScope {
	s := &codeScope{slots: make(map[string]int), outer: outer}
	for _, n := range names {
		if _, dup := s.slots[n]; !dup {
			s.slots[n] = s.size
		}
		s.size++
	}
	return s
}

// NewCodegen creates a code generator for the script at path.
func NewCodegen(path string) *Codegen {
	return &Codegen{path: path, globals: vm.Globals()}
}

// Problems returns accumulated code generation errors.
func (c *Codegen) Problems() []Problem {
	return c.errors
}

func (c *Codegen) errorAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	c.errors = append(c.errors, Problem{Line: pos.Line, Column: pos.Column, Msg: fmt.Sprintf(format, args...)})
}

// resolve finds name in the scope chain.
func (c *Codegen) resolve(name string) (depth, index int, ok bool) {
	for s := c.scope; s != nil; s = s.outer {
		if i, found := s.slots[name]; found {
			return depth, i, true
		}
		depth++
	}
	return 0, 0, false
}

func vmPos(p Position) vm.Pos {
	return vm.Pos{Line: p.Line, Column: p.Column}
}

// ---------------------------------------------------------------------------
// Script-level compilation
// ---------------------------------------------------------------------------

// CompileScript generates the setup code (run against a frame of
// len(UnitVars) slots) and the entry block template whose Outer and Home are
// left for the caller to fill in.
func (c *Codegen) CompileScript(script *Script) (setup vm.Code, entry *vm.Block) {
	c.scope = newScope(script.UnitVars, nil)
	setup = c.compileStatements(script.Setup)
	if script.Entry != nil {
		body, slots := c.compileBody(script.Entry)
		entry = &vm.Block{
			NumArgs:  len(script.Entry.Parameters),
			NumSlots: slots,
			Body:     body,
			Pos:      vmPos(script.Entry.Span().Start),
		}
	}
	c.scope = nil
	return setup, entry
}

// compileBody compiles a block's statements in a new scope and returns the
// body and its slot count.
func (c *Codegen) compileBody(block *Block) (vm.Code, int) {
	names := append(append([]string(nil), block.Parameters...), block.Temps...)
	c.scope = newScope(names, c.scope)
	body := c.compileStatements(block.Statements)
	size := c.scope.size
	c.scope = c.scope.outer
	return body, size
}

func (c *Codegen) compileStatements(stmts []Stmt) vm.Code {
	codes := make([]vm.Code, 0, len(stmts))
	for _, st := range stmts {
		codes = append(codes, c.compileStmt(st))
	}
	if len(codes) == 1 {
		return codes[0]
	}
	return vm.Sequence(codes)
}

func (c *Codegen) compileStmt(stmt Stmt) vm.Code {
	switch st := stmt.(type) {
	case *ExprStmt:
		return c.compileExpr(st.Expr)
	case *Return:
		value := c.compileExpr(st.Value)
		return func(f *vm.Frame) (any, error) {
			v, err := value(f)
			if err != nil {
				return nil, err
			}
			return nil, vm.Return(f, v)
		}
	}
	c.errorAt(stmt, "unsupported statement %T", stmt)
	return constant(nil)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func constant(v any) vm.Code {
	return func(*vm.Frame) (any, error) { return v, nil }
}

func (c *Codegen) compileExpr(expr Expr) vm.Code {
	switch e := expr.(type) {
	case *IntLiteral:
		return constant(e.Value)
	case *FloatLiteral:
		return constant(e.Value)
	case *StringLiteral:
		return constant(e.Value)
	case *SymbolLiteral:
		return constant(vm.Symbol(e.Value))
	case *CharLiteral:
		return constant(string(e.Value))
	case *NilLiteral:
		return constant(nil)
	case *TrueLiteral:
		return constant(true)
	case *FalseLiteral:
		return constant(false)
	case *ArrayLiteral:
		return c.compileArray(e.Elements)
	case *DynamicArray:
		return c.compileArray(e.Elements)
	case *Variable:
		return c.compileVariable(e)
	case *Assignment:
		return c.compileAssignment(e)
	case *UnaryMessage:
		return c.compileSend(e, c.compileExpr(e.Receiver), e.Selector, nil)
	case *BinaryMessage:
		return c.compileSend(e, c.compileExpr(e.Receiver), e.Selector, []Expr{e.Argument})
	case *KeywordMessage:
		return c.compileSend(e, c.compileExpr(e.Receiver), e.Selector, e.Arguments)
	case *Cascade:
		return c.compileCascade(e)
	case *Block:
		body, slots := c.compileBody(e)
		return vm.MakeBlock(len(e.Parameters), slots, body, vmPos(e.Span().Start))
	}
	c.errorAt(expr, "unsupported expression %T", expr)
	return constant(nil)
}

// compileArray builds a fresh array on every evaluation, since arrays are
// mutable.
func (c *Codegen) compileArray(elems []Expr) vm.Code {
	codes := make([]vm.Code, len(elems))
	for i, e := range elems {
		codes[i] = c.compileExpr(e)
	}
	return func(f *vm.Frame) (any, error) {
		out := make([]any, len(codes))
		for i, code := range codes {
			v, err := code(f)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return vm.NewArray(out...), nil
	}
}

func (c *Codegen) compileVariable(v *Variable) vm.Code {
	if depth, index, ok := c.resolve(v.Name); ok {
		return func(f *vm.Frame) (any, error) {
			return f.Load(depth, index), nil
		}
	}
	if g, ok := c.globals[v.Name]; ok {
		return constant(g)
	}
	c.errorAt(v, "undefined variable '%s'", v.Name)
	return constant(nil)
}

func (c *Codegen) compileAssignment(a *Assignment) vm.Code {
	value := c.compileExpr(a.Value)
	depth, index, ok := c.resolve(a.Variable)
	if !ok {
		c.errorAt(a, "assignment to undefined variable '%s'", a.Variable)
		return value
	}
	return func(f *vm.Frame) (any, error) {
		v, err := value(f)
		if err != nil {
			return nil, err
		}
		f.Store(depth, index, v)
		return v, nil
	}
}

func (c *Codegen) compileArgs(args []Expr) []vm.Code {
	codes := make([]vm.Code, len(args))
	for i, a := range args {
		codes[i] = c.compileExpr(a)
	}
	return codes
}

func evalArgs(f *vm.Frame, codes []vm.Code) ([]any, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := make([]any, len(codes))
	for i, code := range codes {
		v, err := code(f)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (c *Codegen) compileSend(node Node, recv vm.Code, selector string, argExprs []Expr) vm.Code {
	args := c.compileArgs(argExprs)
	pos := vmPos(node.Span().Start)
	path := c.path
	return func(f *vm.Frame) (any, error) {
		r, err := recv(f)
		if err != nil {
			return nil, err
		}
		vals, err := evalArgs(f, args)
		if err != nil {
			return nil, err
		}
		v, err := vm.Send(r, selector, vals)
		if err != nil {
			return nil, vm.At(path, pos, selector, err)
		}
		return v, nil
	}
}

// compileCascade evaluates the receiver once and sends every message to it,
// answering the last result.
func (c *Codegen) compileCascade(e *Cascade) vm.Code {
	recv := c.compileExpr(e.Receiver)
	type message struct {
		selector string
		args     []vm.Code
	}
	msgs := make([]message, len(e.Messages))
	for i, m := range e.Messages {
		msgs[i] = message{selector: m.Selector, args: c.compileArgs(m.Arguments)}
	}
	pos := vmPos(e.Span().Start)
	path := c.path
	return func(f *vm.Frame) (any, error) {
		r, err := recv(f)
		if err != nil {
			return nil, err
		}
		var last any
		for _, m := range msgs {
			vals, err := evalArgs(f, m.args)
			if err != nil {
				return nil, err
			}
			last, err = vm.Send(r, m.selector, vals)
			if err != nil {
				return nil, vm.At(path, pos, m.selector, err)
			}
		}
		return last, nil
	}
}
