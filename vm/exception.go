package vm

import (
	"errors"
	"fmt"
)

// ErrDoesNotUnderstand is wrapped by errors for unknown messages.
var ErrDoesNotUnderstand = errors.New("does not understand")

// ErrZeroDivide is wrapped by division by zero errors.
var ErrZeroDivide = errors.New("division by zero")

// RuntimeError is raised when a running script unit fails. It is caught at
// the invocation boundary and never escapes into the host loop as a panic.
type RuntimeError struct {
	Path     string
	Pos      Pos
	Selector string
	Err      error
}

func (e *RuntimeError) Error() string {
	loc := e.Path
	if e.Pos.Line > 0 {
		if loc != "" {
			loc += ":"
		}
		loc += e.Pos.String()
	}
	if loc == "" {
		return "runtime error: " + e.Err.Error()
	}
	return fmt.Sprintf("%s: runtime error: %v", loc, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// At attaches a source position to err unless it already carries one or is
// a non-local return in flight.
func At(path string, pos Pos, selector string, err error) error {
	if err == nil {
		return nil
	}
	var nlr *NonLocalReturn
	if errors.As(err, &nlr) {
		return err
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return &RuntimeError{Path: path, Pos: pos, Selector: selector, Err: err}
}

func notUnderstood(recv any, selector string) error {
	return fmt.Errorf("%s %w #%s", TypeName(recv), ErrDoesNotUnderstand, selector)
}

func wrongArg(selector string, want string, got any) error {
	return fmt.Errorf("#%s expects %s, got %s", selector, want, TypeName(got))
}
