package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/olive/host"
	"github.com/chazu/olive/vm"
)

// ---------------------------------------------------------------------------
// Compile: script file to executable unit
// ---------------------------------------------------------------------------

// Problem is one diagnostic with a 1-based source location. Line 0 means the
// problem concerns the file as a whole.
type Problem struct {
	Line   int
	Column int
	Msg    string
}

func (p Problem) String() string {
	if p.Line == 0 {
		return p.Msg
	}
	return fmt.Sprintf("%d:%d: %s", p.Line, p.Column, p.Msg)
}

// CompileError reports why a script could not be turned into a unit. The
// first problem is the primary location.
type CompileError struct {
	Path     string
	Problems []Problem
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(":")
	}
	if len(e.Problems) == 0 {
		sb.WriteString(" compile error")
		return sb.String()
	}
	p := e.Problems[0]
	if p.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d:", p.Line, p.Column)
	}
	sb.WriteString(" ")
	sb.WriteString(p.Msg)
	if n := len(e.Problems) - 1; n > 0 {
		fmt.Fprintf(&sb, " (and %d more)", n)
	}
	return sb.String()
}

// Line returns the primary problem's line.
func (e *CompileError) Line() int {
	if len(e.Problems) == 0 {
		return 0
	}
	return e.Problems[0].Line
}

// Column returns the primary problem's column.
func (e *CompileError) Column() int {
	if len(e.Problems) == 0 {
		return 0
	}
	return e.Problems[0].Column
}

// Message returns the primary problem's text.
func (e *CompileError) Message() string {
	if len(e.Problems) == 0 {
		return "compile error"
	}
	return e.Problems[0].Msg
}

// Digest returns the hex SHA-256 of src, the identity of a script version.
func Digest(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// Compile reads and compiles the script at path for a host of type ht.
func Compile(path string, ht *host.Type) (*vm.Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{Path: path, Problems: []Problem{{Msg: err.Error()}}}
	}
	return CompileSource(path, src, ht)
}

// CompileSource compiles script text for a host of type ht. ht is the type
// of the live host; a script annotated with <T> compiles only when ht is T
// or extends it, and its host sends are checked against T. Each call uses
// fresh parser, analyzer and generator state.
//
// Setup statements run here, against the new unit's own variables. The host
// is never touched.
func CompileSource(path string, src []byte, ht *host.Type) (*vm.Unit, error) {
	script, problems := ParseScript(string(src))
	if len(problems) > 0 {
		return nil, &CompileError{Path: path, Problems: problems}
	}

	declared, err := bindHostType(script, ht)
	if err != nil {
		return nil, &CompileError{Path: path, Problems: []Problem{*err}}
	}
	checkType := declared
	if checkType == nil {
		checkType = ht
	}

	if problems, _ := Analyze(script, checkType); len(problems) > 0 {
		return nil, &CompileError{Path: path, Problems: problems}
	}

	cg := NewCodegen(path)
	setup, entry := cg.CompileScript(script)
	if problems := cg.Problems(); len(problems) > 0 {
		return nil, &CompileError{Path: path, Problems: problems}
	}

	globals := vm.NewFrame(len(script.UnitVars), nil)
	if err := runSetup(globals, setup); err != nil {
		return nil, setupError(path, err)
	}
	entry.Outer = globals
	entry.Home = globals

	return vm.NewUnit(path, Digest(src), declared, globals, script.UnitVars, entry), nil
}

// Check compiles src and returns its problems, or nil when it compiles.
// Warnings are returned separately.
func Check(path string, src []byte, ht *host.Type) (problems, warnings []Problem) {
	if script, parseProblems := ParseScript(string(src)); len(parseProblems) == 0 {
		checkType := ht
		if ref := script.HostType(); ref != nil && ht != nil {
			if anc, ok := ht.Ancestor(ref.Name); ok {
				checkType = anc
			}
		}
		_, warnings = Analyze(script, checkType)
	}
	_, err := CompileSource(path, src, ht)
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Problems, warnings
	}
	return nil, warnings
}

// bindHostType resolves the entry block's <Type> annotation against the
// live host type. No annotation binds to any host.
func bindHostType(script *Script, ht *host.Type) (*host.Type, *Problem) {
	ref := script.HostType()
	if ref == nil {
		return nil, nil
	}
	pos := ref.Span().Start
	if ht == nil {
		return nil, &Problem{Line: pos.Line, Column: pos.Column,
			Msg: fmt.Sprintf("unknown host type %s", ref.Name)}
	}
	if ref.Name == ht.Name {
		return ht, nil
	}
	if anc, ok := ht.Ancestor(ref.Name); ok {
		return anc, nil
	}
	return nil, &Problem{Line: pos.Line, Column: pos.Column,
		Msg: fmt.Sprintf("script expects host type %s but the host is a %s", ref.Name, ht.Name)}
}

// runSetup evaluates setup statements, turning panics into errors.
func runSetup(globals *vm.Frame, setup vm.Code) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = vm.Activate(globals, setup)
	return err
}

func setupError(path string, err error) *CompileError {
	p := Problem{Msg: "setup failed: " + err.Error()}
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		p.Line, p.Column = re.Pos.Line, re.Pos.Column
		p.Msg = "setup failed: " + re.Err.Error()
	}
	return &CompileError{Path: path, Problems: []Problem{p}}
}
