package vm

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// String and Symbol primitives
// ---------------------------------------------------------------------------

func registerStringPrimitives() {
	c := stringPrims

	c.def0("size", func(recv any) (any, error) {
		return int64(utf8.RuneCountInString(recv.(string))), nil
	})
	c.def0("isEmpty", func(recv any) (any, error) { return recv.(string) == "", nil })
	c.def0("notEmpty", func(recv any) (any, error) { return recv.(string) != "", nil })
	c.def0("isString", func(recv any) (any, error) { return true, nil })
	c.def0("asString", func(recv any) (any, error) { return recv, nil })
	c.def0("asSymbol", func(recv any) (any, error) { return Symbol(recv.(string)), nil })
	c.def0("asUppercase", func(recv any) (any, error) { return strings.ToUpper(recv.(string)), nil })
	c.def0("asLowercase", func(recv any) (any, error) { return strings.ToLower(recv.(string)), nil })
	c.def0("trimSeparators", func(recv any) (any, error) { return strings.TrimSpace(recv.(string)), nil })
	c.def0("reversed", func(recv any) (any, error) {
		r := []rune(recv.(string))
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r), nil
	})
	c.def0("asNumber", func(recv any) (any, error) {
		s := strings.TrimSpace(recv.(string))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return nil, nil
	})
	c.def0("lines", func(recv any) (any, error) {
		return FromGo(strings.Split(recv.(string), "\n")), nil
	})
	c.def0("substrings", func(recv any) (any, error) {
		return FromGo(strings.Fields(recv.(string))), nil
	})

	c.def1(",", func(recv, arg any) (any, error) {
		return recv.(string) + DisplayString(arg), nil
	})
	c.def1("at:", func(recv, idx any) (any, error) {
		r := []rune(recv.(string))
		i, err := index("at:", idx, len(r))
		if err != nil {
			return nil, err
		}
		return string(r[i]), nil
	})
	c.def1("includesSubstring:", func(recv, arg any) (any, error) {
		s, ok := arg.(string)
		if !ok {
			return nil, wrongArg("includesSubstring:", "a String", arg)
		}
		return strings.Contains(recv.(string), s), nil
	})
	c.def1("startsWith:", func(recv, arg any) (any, error) {
		s, ok := arg.(string)
		if !ok {
			return nil, wrongArg("startsWith:", "a String", arg)
		}
		return strings.HasPrefix(recv.(string), s), nil
	})
	c.def1("endsWith:", func(recv, arg any) (any, error) {
		s, ok := arg.(string)
		if !ok {
			return nil, wrongArg("endsWith:", "a String", arg)
		}
		return strings.HasSuffix(recv.(string), s), nil
	})
	c.def2("copyReplaceAll:with:", func(recv, old, repl any) (any, error) {
		o, ok1 := old.(string)
		n, ok2 := repl.(string)
		if !ok1 || !ok2 {
			return nil, wrongArg("copyReplaceAll:with:", "Strings", old)
		}
		return strings.ReplaceAll(recv.(string), o, n), nil
	})
	c.def2("copyFrom:to:", func(recv, from, to any) (any, error) {
		r := []rune(recv.(string))
		start, err := index("copyFrom:to:", from, len(r))
		if err != nil {
			return nil, err
		}
		end, err := index("copyFrom:to:", to, len(r))
		if err != nil {
			return nil, err
		}
		if end < start {
			return "", nil
		}
		return string(r[start : end+1]), nil
	})
	cmpStr := func(sel string, op func(a, b string) bool) {
		c.def1(sel, func(recv, arg any) (any, error) {
			s, ok := arg.(string)
			if !ok {
				return nil, wrongArg(sel, "a String", arg)
			}
			return op(recv.(string), s), nil
		})
	}
	cmpStr("<", func(a, b string) bool { return a < b })
	cmpStr(">", func(a, b string) bool { return a > b })
	cmpStr("<=", func(a, b string) bool { return a <= b })
	cmpStr(">=", func(a, b string) bool { return a >= b })

	s := symbolPrims
	s.def0("asString", func(recv any) (any, error) { return string(recv.(Symbol)), nil })
	s.def0("asSymbol", func(recv any) (any, error) { return recv, nil })
	s.def0("size", func(recv any) (any, error) {
		return int64(utf8.RuneCountInString(string(recv.(Symbol)))), nil
	})
	s.def0("numArgs", func(recv any) (any, error) {
		return int64(arityOf(string(recv.(Symbol)))), nil
	})
	s.def1(",", func(recv, arg any) (any, error) {
		return string(recv.(Symbol)) + DisplayString(arg), nil
	})
	s.def1("value:", func(recv, arg any) (any, error) {
		return Send(arg, string(recv.(Symbol)), nil)
	})
}

// index converts a 1-based script index into a 0-based Go index.
func index(sel string, idx any, size int) (int, error) {
	i, ok := idx.(int64)
	if !ok {
		return 0, wrongArg(sel, "an Integer index", idx)
	}
	if i < 1 || int(i) > size {
		return 0, errIndex(i, size)
	}
	return int(i - 1), nil
}
