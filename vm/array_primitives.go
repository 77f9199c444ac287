package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Array primitives
// ---------------------------------------------------------------------------

func errIndex(i int64, size int) error {
	return fmt.Errorf("index %d out of bounds for size %d", i, size)
}

func registerArrayPrimitives() {
	c := arrayPrims

	c.def0("size", func(recv any) (any, error) { return int64(len(recv.(*Array).Elems)), nil })
	c.def0("isEmpty", func(recv any) (any, error) { return len(recv.(*Array).Elems) == 0, nil })
	c.def0("notEmpty", func(recv any) (any, error) { return len(recv.(*Array).Elems) > 0, nil })
	c.def0("first", func(recv any) (any, error) {
		a := recv.(*Array)
		if len(a.Elems) == 0 {
			return nil, fmt.Errorf("#first sent to an empty Array")
		}
		return a.Elems[0], nil
	})
	c.def0("last", func(recv any) (any, error) {
		a := recv.(*Array)
		if len(a.Elems) == 0 {
			return nil, fmt.Errorf("#last sent to an empty Array")
		}
		return a.Elems[len(a.Elems)-1], nil
	})
	c.def0("copy", func(recv any) (any, error) {
		return NewArray(append([]any(nil), recv.(*Array).Elems...)...), nil
	})
	c.def0("reversed", func(recv any) (any, error) {
		src := recv.(*Array).Elems
		out := make([]any, len(src))
		for i, e := range src {
			out[len(src)-1-i] = e
		}
		return NewArray(out...), nil
	})
	c.def0("removeFirst", func(recv any) (any, error) {
		a := recv.(*Array)
		if len(a.Elems) == 0 {
			return nil, fmt.Errorf("#removeFirst sent to an empty Array")
		}
		v := a.Elems[0]
		a.Elems = a.Elems[1:]
		return v, nil
	})
	c.def0("removeLast", func(recv any) (any, error) {
		a := recv.(*Array)
		if len(a.Elems) == 0 {
			return nil, fmt.Errorf("#removeLast sent to an empty Array")
		}
		v := a.Elems[len(a.Elems)-1]
		a.Elems = a.Elems[:len(a.Elems)-1]
		return v, nil
	})
	c.def0("sum", func(recv any) (any, error) {
		var acc any = int64(0)
		for _, e := range recv.(*Array).Elems {
			v, err := Send(acc, "+", []any{e})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	c.def0("asSortedArray", func(recv any) (any, error) {
		out := append([]any(nil), recv.(*Array).Elems...)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			v, err := Send(out[i], "<", []any{out[j]})
			if err != nil {
				sortErr = err
				return false
			}
			b, _ := v.(bool)
			return b
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return NewArray(out...), nil
	})

	c.def1("at:", func(recv, idx any) (any, error) {
		a := recv.(*Array)
		i, err := index("at:", idx, len(a.Elems))
		if err != nil {
			return nil, err
		}
		return a.Elems[i], nil
	})
	c.def2("at:put:", func(recv, idx, v any) (any, error) {
		a := recv.(*Array)
		i, err := index("at:put:", idx, len(a.Elems))
		if err != nil {
			return nil, err
		}
		a.Elems[i] = v
		return v, nil
	})
	c.def2("at:ifAbsent:", func(recv, idx, blk any) (any, error) {
		a := recv.(*Array)
		i, err := index("at:ifAbsent:", idx, len(a.Elems))
		if err != nil {
			return callBlock("at:ifAbsent:", blk)
		}
		return a.Elems[i], nil
	})
	c.def1("add:", func(recv, v any) (any, error) {
		a := recv.(*Array)
		a.Elems = append(a.Elems, v)
		return v, nil
	})
	c.def1(",", func(recv, arg any) (any, error) {
		other, ok := arg.(*Array)
		if !ok {
			return nil, wrongArg(",", "an Array", arg)
		}
		out := append(append([]any(nil), recv.(*Array).Elems...), other.Elems...)
		return NewArray(out...), nil
	})
	c.def1("includes:", func(recv, v any) (any, error) {
		for _, e := range recv.(*Array).Elems {
			if Equal(e, v) {
				return true, nil
			}
		}
		return false, nil
	})
	c.def1("indexOf:", func(recv, v any) (any, error) {
		for i, e := range recv.(*Array).Elems {
			if Equal(e, v) {
				return int64(i + 1), nil
			}
		}
		return int64(0), nil
	})

	c.def1("do:", func(recv, blk any) (any, error) {
		for _, e := range snapshot(recv) {
			if _, err := callBlock("do:", blk, e); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	c.def1("doWithIndex:", func(recv, blk any) (any, error) {
		for i, e := range snapshot(recv) {
			if _, err := callBlock("doWithIndex:", blk, e, int64(i+1)); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	c.def1("reverseDo:", func(recv, blk any) (any, error) {
		elems := snapshot(recv)
		for i := len(elems) - 1; i >= 0; i-- {
			if _, err := callBlock("reverseDo:", blk, elems[i]); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	c.def1("collect:", func(recv, blk any) (any, error) {
		elems := snapshot(recv)
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := callBlock("collect:", blk, e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return NewArray(out...), nil
	})
	filter := func(sel string, keep bool) {
		c.def1(sel, func(recv, blk any) (any, error) {
			var out []any
			for _, e := range snapshot(recv) {
				v, err := callBlock(sel, blk, e)
				if err != nil {
					return nil, err
				}
				b, err := truthy(sel, v)
				if err != nil {
					return nil, err
				}
				if b == keep {
					out = append(out, e)
				}
			}
			return NewArray(out...), nil
		})
	}
	filter("select:", true)
	filter("reject:", false)

	c.def2("detect:ifNone:", func(recv, blk, none any) (any, error) {
		for _, e := range snapshot(recv) {
			v, err := callBlock("detect:ifNone:", blk, e)
			if err != nil {
				return nil, err
			}
			b, err := truthy("detect:ifNone:", v)
			if err != nil {
				return nil, err
			}
			if b {
				return e, nil
			}
		}
		return callBlock("detect:ifNone:", none)
	})
	c.def2("inject:into:", func(recv, acc, blk any) (any, error) {
		for _, e := range snapshot(recv) {
			v, err := callBlock("inject:into:", blk, acc, e)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	c.def1("anySatisfy:", func(recv, blk any) (any, error) {
		for _, e := range snapshot(recv) {
			v, err := callBlock("anySatisfy:", blk, e)
			if err != nil {
				return nil, err
			}
			if b, err := truthy("anySatisfy:", v); err != nil || b {
				return b, err
			}
		}
		return false, nil
	})
}

// snapshot returns the elements to iterate so a block that mutates the
// array does not disturb the loop.
func snapshot(recv any) []any {
	return append([]any(nil), recv.(*Array).Elems...)
}
