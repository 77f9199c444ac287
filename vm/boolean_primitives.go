package vm

// ---------------------------------------------------------------------------
// Boolean and nil primitives
// ---------------------------------------------------------------------------

func registerBooleanPrimitives() {
	c := booleanPrims

	c.def0("not", func(recv any) (any, error) { return !recv.(bool), nil })

	c.def1("&", func(recv, arg any) (any, error) {
		b, ok := arg.(bool)
		if !ok {
			return nil, wrongArg("&", "a Boolean", arg)
		}
		return recv.(bool) && b, nil
	})
	c.def1("|", func(recv, arg any) (any, error) {
		b, ok := arg.(bool)
		if !ok {
			return nil, wrongArg("|", "a Boolean", arg)
		}
		return recv.(bool) || b, nil
	})

	c.def1("and:", func(recv, blk any) (any, error) {
		if !recv.(bool) {
			return false, nil
		}
		return evalCondition("and:", blk)
	})
	c.def1("or:", func(recv, blk any) (any, error) {
		if recv.(bool) {
			return true, nil
		}
		return evalCondition("or:", blk)
	})

	c.def1("ifTrue:", func(recv, blk any) (any, error) {
		if recv.(bool) {
			return callBlock("ifTrue:", blk)
		}
		return nil, nil
	})
	c.def1("ifFalse:", func(recv, blk any) (any, error) {
		if !recv.(bool) {
			return callBlock("ifFalse:", blk)
		}
		return nil, nil
	})
	c.def2("ifTrue:ifFalse:", func(recv, a, b any) (any, error) {
		if recv.(bool) {
			return callBlock("ifTrue:ifFalse:", a)
		}
		return callBlock("ifTrue:ifFalse:", b)
	})
	c.def2("ifFalse:ifTrue:", func(recv, a, b any) (any, error) {
		if !recv.(bool) {
			return callBlock("ifFalse:ifTrue:", a)
		}
		return callBlock("ifFalse:ifTrue:", b)
	})

	// nil answers the conditional messages with nil so optional fields can
	// be tested without a guard.
	n := nilPrims
	n.def1("ifTrue:", func(_, _ any) (any, error) { return nil, nil })
	n.def1("ifFalse:", func(_, _ any) (any, error) { return nil, nil })
}

// evalCondition evaluates the argument of and:/or:, which may be a block or
// a plain boolean.
func evalCondition(selector string, arg any) (any, error) {
	if b, ok := arg.(bool); ok {
		return b, nil
	}
	v, err := callBlock(selector, arg)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(bool); !ok {
		return nil, wrongArg(selector, "a block answering a Boolean", v)
	}
	return v, nil
}

// truthy converts a loop or condition result into a bool.
func truthy(selector string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, wrongArg(selector, "a Boolean", v)
	}
	return b, nil
}
