package vm

// ---------------------------------------------------------------------------
// Block primitives
// ---------------------------------------------------------------------------

func registerBlockPrimitives() {
	c := blockPrims

	c.def0("value", func(recv any) (any, error) {
		return recv.(*Block).Call(nil)
	})
	c.def1("value:", func(recv, a any) (any, error) {
		return recv.(*Block).Call([]any{a})
	})
	c.def2("value:value:", func(recv, a, b any) (any, error) {
		return recv.(*Block).Call([]any{a, b})
	})
	c.def3("value:value:value:", func(recv, a, b, d any) (any, error) {
		return recv.(*Block).Call([]any{a, b, d})
	})
	c.def1("valueWithArguments:", func(recv, args any) (any, error) {
		arr, ok := args.(*Array)
		if !ok {
			return nil, wrongArg("valueWithArguments:", "an Array", args)
		}
		return recv.(*Block).Call(append([]any(nil), arr.Elems...))
	})
	c.def0("numArgs", func(recv any) (any, error) {
		return int64(recv.(*Block).NumArgs), nil
	})

	c.def1("whileTrue:", func(recv, body any) (any, error) {
		return whileLoop("whileTrue:", recv.(*Block), true, body)
	})
	c.def1("whileFalse:", func(recv, body any) (any, error) {
		return whileLoop("whileFalse:", recv.(*Block), false, body)
	})
	c.def0("whileTrue", func(recv any) (any, error) {
		return whileLoop("whileTrue", recv.(*Block), true, nil)
	})
	c.def0("whileFalse", func(recv any) (any, error) {
		return whileLoop("whileFalse", recv.(*Block), false, nil)
	})
}

func whileLoop(sel string, cond *Block, want bool, body any) (any, error) {
	for {
		v, err := cond.Call(nil)
		if err != nil {
			return nil, err
		}
		b, err := truthy(sel, v)
		if err != nil {
			return nil, err
		}
		if b != want {
			return nil, nil
		}
		if body != nil {
			if _, err := callBlock(sel, body); err != nil {
				return nil, err
			}
		}
	}
}
