package vm

import (
	"errors"

	"github.com/chazu/olive/host"
)

// ---------------------------------------------------------------------------
// Message dispatch
// ---------------------------------------------------------------------------

// primFn implements one primitive message for a receiver kind.
type primFn func(recv any, args []any) (any, error)

// primTable maps selectors to primitives for one receiver kind.
type primTable map[string]primFn

func (t primTable) def0(sel string, fn func(recv any) (any, error)) {
	t[sel] = func(recv any, _ []any) (any, error) { return fn(recv) }
}

func (t primTable) def1(sel string, fn func(recv, arg any) (any, error)) {
	t[sel] = func(recv any, args []any) (any, error) { return fn(recv, args[0]) }
}

func (t primTable) def2(sel string, fn func(recv, a, b any) (any, error)) {
	t[sel] = func(recv any, args []any) (any, error) { return fn(recv, args[0], args[1]) }
}

func (t primTable) def3(sel string, fn func(recv, a, b, c any) (any, error)) {
	t[sel] = func(recv any, args []any) (any, error) { return fn(recv, args[0], args[1], args[2]) }
}

var (
	objectPrims    = primTable{}
	nilPrims       = primTable{}
	booleanPrims   = primTable{}
	integerPrims   = primTable{}
	floatPrims     = primTable{}
	stringPrims    = primTable{}
	symbolPrims    = primTable{}
	arrayPrims     = primTable{}
	blockPrims     = primTable{}
	transcriptPrim = primTable{}
	classPrims     = primTable{}
)

func init() {
	registerObjectPrimitives()
	registerBooleanPrimitives()
	registerNumberPrimitives()
	registerStringPrimitives()
	registerArrayPrimitives()
	registerBlockPrimitives()
	registerTranscriptPrimitives()
	registerClassPrimitives()
}

// Send delivers selector with args to recv and returns the result.
func Send(recv any, selector string, args []any) (any, error) {
	switch r := recv.(type) {
	case *host.Host:
		v, err := r.Send(selector, args)
		if err != nil {
			if !errors.Is(err, host.ErrNotUnderstood) {
				return nil, err
			}
			if fn, ok := objectPrims[selector]; ok && len(args) == arityOf(selector) {
				return fn(recv, args)
			}
			return nil, err
		}
		return FromGo(v), nil
	case host.Responder:
		if fn, ok := objectPrims[selector]; ok && len(args) == arityOf(selector) {
			return fn(recv, args)
		}
		v, err := r.Respond(selector, args)
		if err != nil {
			return nil, err
		}
		return FromGo(v), nil
	}

	if table := tableFor(recv); table != nil {
		if fn, ok := table[selector]; ok && len(args) == arityOf(selector) {
			return fn(recv, args)
		}
	}
	if fn, ok := objectPrims[selector]; ok && len(args) == arityOf(selector) {
		return fn(recv, args)
	}
	return nil, notUnderstood(recv, selector)
}

func tableFor(recv any) primTable {
	switch recv.(type) {
	case nil:
		return nilPrims
	case bool:
		return booleanPrims
	case int64:
		return integerPrims
	case float64:
		return floatPrims
	case string:
		return stringPrims
	case Symbol:
		return symbolPrims
	case *Array:
		return arrayPrims
	case *Block:
		return blockPrims
	case *Transcript:
		return transcriptPrim
	case *classRef:
		return classPrims
	}
	return nil
}

func arityOf(selector string) int {
	return host.SelectorArity(selector)
}

// Understands reports whether a value of recv's kind has a primitive for
// selector.
func Understands(recv any, selector string) bool {
	if t := tableFor(recv); t != nil {
		if _, ok := t[selector]; ok {
			return true
		}
	}
	_, ok := objectPrims[selector]
	return ok
}

// ---------------------------------------------------------------------------
// Object primitives (every receiver)
// ---------------------------------------------------------------------------

func registerObjectPrimitives() {
	o := objectPrims
	o.def1("=", func(recv, arg any) (any, error) { return Equal(recv, arg), nil })
	o.def1("~=", func(recv, arg any) (any, error) { return !Equal(recv, arg), nil })
	o.def1("==", func(recv, arg any) (any, error) { return identical(recv, arg), nil })
	o.def1("~~", func(recv, arg any) (any, error) { return !identical(recv, arg), nil })
	o.def0("isNil", func(recv any) (any, error) { return recv == nil, nil })
	o.def0("notNil", func(recv any) (any, error) { return recv != nil, nil })
	o.def0("yourself", func(recv any) (any, error) { return recv, nil })
	o.def0("printString", func(recv any) (any, error) { return PrintString(recv), nil })
	o.def0("displayString", func(recv any) (any, error) { return DisplayString(recv), nil })
	o.def0("className", func(recv any) (any, error) { return TypeName(recv), nil })
	o.def1("ifNil:", func(recv, blk any) (any, error) {
		if recv == nil {
			return callBlock("ifNil:", blk)
		}
		return recv, nil
	})
	o.def1("ifNotNil:", func(recv, blk any) (any, error) {
		if recv != nil {
			return callBlock("ifNotNil:", blk, recv)
		}
		return nil, nil
	})
	o.def2("ifNil:ifNotNil:", func(recv, a, b any) (any, error) {
		if recv == nil {
			return callBlock("ifNil:ifNotNil:", a)
		}
		return callBlock("ifNil:ifNotNil:", b, recv)
	})
	o.def1("->", func(recv, arg any) (any, error) { return NewArray(recv, arg), nil })
}

// callBlock evaluates a block argument. Blocks taking one argument fewer than
// supplied are called with the leading arguments only.
func callBlock(selector string, blk any, args ...any) (any, error) {
	b, ok := blk.(*Block)
	if !ok {
		return nil, wrongArg(selector, "a Block", blk)
	}
	if b.NumArgs < len(args) {
		args = args[:b.NumArgs]
	}
	return b.Call(args)
}

// ObjectUnderstands reports whether every value, the host included, answers
// selector.
func ObjectUnderstands(selector string) bool {
	_, ok := objectPrims[selector]
	return ok
}
