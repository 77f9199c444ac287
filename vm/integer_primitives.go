package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Number primitives (SmallInteger and Float share one arithmetic core)
// ---------------------------------------------------------------------------

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// arith applies a binary numeric operator, staying in integers when both
// operands are integers and intOp is given.
func arith(sel string, recv, arg any, intOp func(a, b int64) (any, error), floatOp func(a, b float64) (any, error)) (any, error) {
	if a, ok := recv.(int64); ok && intOp != nil {
		if b, ok := arg.(int64); ok {
			return intOp(a, b)
		}
	}
	a, ok := toFloat(recv)
	if !ok {
		return nil, wrongArg(sel, "a Number", recv)
	}
	b, ok := toFloat(arg)
	if !ok {
		return nil, wrongArg(sel, "a Number", arg)
	}
	return floatOp(a, b)
}

func registerNumberPrimitives() {
	for _, t := range []primTable{integerPrims, floatPrims} {
		registerArithmetic(t)
		registerComparison(t)
		registerMath(t)
	}
	registerIntegerOnly()
	registerFloatOnly()
}

func registerArithmetic(t primTable) {
	t.def1("+", func(recv, arg any) (any, error) {
		return arith("+", recv, arg,
			func(a, b int64) (any, error) { return a + b, nil },
			func(a, b float64) (any, error) { return a + b, nil })
	})
	t.def1("-", func(recv, arg any) (any, error) {
		return arith("-", recv, arg,
			func(a, b int64) (any, error) { return a - b, nil },
			func(a, b float64) (any, error) { return a - b, nil })
	})
	t.def1("*", func(recv, arg any) (any, error) {
		return arith("*", recv, arg,
			func(a, b int64) (any, error) { return a * b, nil },
			func(a, b float64) (any, error) { return a * b, nil })
	})
	// Integer division that is exact stays an integer; otherwise it yields a Float.
	t.def1("/", func(recv, arg any) (any, error) {
		return arith("/", recv, arg,
			func(a, b int64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				if a%b == 0 {
					return a / b, nil
				}
				return float64(a) / float64(b), nil
			},
			func(a, b float64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return a / b, nil
			})
	})
	t.def1("//", func(recv, arg any) (any, error) {
		return arith("//", recv, arg,
			func(a, b int64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return floorDiv(a, b), nil
			},
			func(a, b float64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return int64(math.Floor(a / b)), nil
			})
	})
	t.def1("\\\\", func(recv, arg any) (any, error) {
		return arith("\\\\", recv, arg,
			func(a, b int64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return a - floorDiv(a, b)*b, nil
			},
			func(a, b float64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return a - math.Floor(a/b)*b, nil
			})
	})
	t.def1("rem:", func(recv, arg any) (any, error) {
		return arith("rem:", recv, arg,
			func(a, b int64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return a % b, nil
			},
			func(a, b float64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return math.Mod(a, b), nil
			})
	})
	t.def1("raisedTo:", func(recv, arg any) (any, error) {
		return arith("raisedTo:", recv, arg,
			func(a, b int64) (any, error) {
				if b < 0 {
					return math.Pow(float64(a), float64(b)), nil
				}
				return ipow(a, b), nil
			},
			func(a, b float64) (any, error) { return math.Pow(a, b), nil })
	})
	t.def1("max:", func(recv, arg any) (any, error) {
		return arith("max:", recv, arg,
			func(a, b int64) (any, error) { return max(a, b), nil },
			func(a, b float64) (any, error) { return math.Max(a, b), nil })
	})
	t.def1("min:", func(recv, arg any) (any, error) {
		return arith("min:", recv, arg,
			func(a, b int64) (any, error) { return min(a, b), nil },
			func(a, b float64) (any, error) { return math.Min(a, b), nil })
	})
	t.def1("@", func(recv, arg any) (any, error) {
		if _, ok := toFloat(arg); !ok {
			return nil, wrongArg("@", "a Number", arg)
		}
		return NewArray(recv, arg), nil
	})
}

func registerComparison(t primTable) {
	cmp := func(sel string, intOp func(a, b int64) bool, floatOp func(a, b float64) bool) {
		t.def1(sel, func(recv, arg any) (any, error) {
			return arith(sel, recv, arg,
				func(a, b int64) (any, error) { return intOp(a, b), nil },
				func(a, b float64) (any, error) { return floatOp(a, b), nil })
		})
	}
	cmp("<", func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
	cmp(">", func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b })
	cmp("<=", func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b })
	cmp(">=", func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })

	t.def2("between:and:", func(recv, lo, hi any) (any, error) {
		x, ok1 := toFloat(recv)
		a, ok2 := toFloat(lo)
		b, ok3 := toFloat(hi)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("#between:and: expects numbers")
		}
		return x >= a && x <= b, nil
	})
}

func registerMath(t primTable) {
	unaryF := func(sel string, fn func(float64) float64) {
		t.def0(sel, func(recv any) (any, error) {
			x, _ := toFloat(recv)
			return fn(x), nil
		})
	}
	unaryF("sqrt", math.Sqrt)
	unaryF("sin", math.Sin)
	unaryF("cos", math.Cos)
	unaryF("tan", math.Tan)
	unaryF("arcTan", math.Atan)
	unaryF("exp", math.Exp)
	unaryF("ln", math.Log)
	unaryF("asFloat", func(x float64) float64 { return x })
	unaryF("degreesToRadians", func(x float64) float64 { return x * math.Pi / 180 })
	unaryF("radiansToDegrees", func(x float64) float64 { return x * 180 / math.Pi })

	t.def0("squared", func(recv any) (any, error) {
		return arith("squared", recv, recv,
			func(a, b int64) (any, error) { return a * b, nil },
			func(a, b float64) (any, error) { return a * b, nil })
	})
	t.def0("negated", func(recv any) (any, error) {
		if i, ok := recv.(int64); ok {
			return -i, nil
		}
		return -recv.(float64), nil
	})
	t.def0("abs", func(recv any) (any, error) {
		if i, ok := recv.(int64); ok {
			if i < 0 {
				return -i, nil
			}
			return i, nil
		}
		return math.Abs(recv.(float64)), nil
	})
	t.def0("sign", func(recv any) (any, error) {
		x, _ := toFloat(recv)
		switch {
		case x > 0:
			return int64(1), nil
		case x < 0:
			return int64(-1), nil
		}
		return int64(0), nil
	})
	t.def0("isZero", func(recv any) (any, error) {
		x, _ := toFloat(recv)
		return x == 0, nil
	})
	t.def0("isNumber", func(recv any) (any, error) { return true, nil })
	t.def0("asString", func(recv any) (any, error) { return PrintString(recv), nil })

	roundF := func(sel string, fn func(float64) float64) {
		t.def0(sel, func(recv any) (any, error) {
			if i, ok := recv.(int64); ok {
				return i, nil
			}
			return int64(fn(recv.(float64))), nil
		})
	}
	roundF("floor", math.Floor)
	roundF("ceiling", math.Ceil)
	roundF("rounded", math.Round)
	roundF("truncated", math.Trunc)
	roundF("asInteger", math.Trunc)

	t.def1("roundTo:", func(recv, arg any) (any, error) {
		return arith("roundTo:", recv, arg,
			func(a, b int64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return int64(math.Round(float64(a)/float64(b))) * b, nil
			},
			func(a, b float64) (any, error) {
				if b == 0 {
					return nil, ErrZeroDivide
				}
				return math.Round(a/b) * b, nil
			})
	})

	t.def2("to:do:", func(recv, stop, blk any) (any, error) {
		return loopTo("to:do:", recv, stop, int64(1), blk)
	})
	t.def3("to:by:do:", func(recv, stop, step, blk any) (any, error) {
		return loopTo("to:by:do:", recv, stop, step, blk)
	})
}

func registerIntegerOnly() {
	c := integerPrims
	c.def0("even", func(recv any) (any, error) { return recv.(int64)%2 == 0, nil })
	c.def0("odd", func(recv any) (any, error) { return recv.(int64)%2 != 0, nil })
	c.def0("isInteger", func(recv any) (any, error) { return true, nil })
	c.def1("timesRepeat:", func(recv, blk any) (any, error) {
		for i := int64(0); i < recv.(int64); i++ {
			if _, err := callBlock("timesRepeat:", blk); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	c.def1("bitAnd:", func(recv, arg any) (any, error) {
		b, ok := arg.(int64)
		if !ok {
			return nil, wrongArg("bitAnd:", "an Integer", arg)
		}
		return recv.(int64) & b, nil
	})
	c.def1("bitOr:", func(recv, arg any) (any, error) {
		b, ok := arg.(int64)
		if !ok {
			return nil, wrongArg("bitOr:", "an Integer", arg)
		}
		return recv.(int64) | b, nil
	})
	c.def1("printString:", func(recv, arg any) (any, error) {
		base, ok := arg.(int64)
		if !ok || base < 2 || base > 36 {
			return nil, fmt.Errorf("#printString: expects a radix between 2 and 36")
		}
		return strconv.FormatInt(recv.(int64), int(base)), nil
	})
}

func registerFloatOnly() {
	c := floatPrims
	c.def0("isInteger", func(recv any) (any, error) { return false, nil })
	c.def0("isNaN", func(recv any) (any, error) { return math.IsNaN(recv.(float64)), nil })
	c.def0("fractionPart", func(recv any) (any, error) {
		_, frac := math.Modf(recv.(float64))
		return frac, nil
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func loopTo(sel string, start, stop, step, blk any) (any, error) {
	if s, ok := step.(int64); ok && s == 0 {
		return nil, fmt.Errorf("#%s step must not be zero", sel)
	}
	if a, ok := start.(int64); ok {
		b, ok1 := stop.(int64)
		s, ok2 := step.(int64)
		if ok1 && ok2 {
			for i := a; (s > 0 && i <= b) || (s < 0 && i >= b); i += s {
				if _, err := callBlock(sel, blk, i); err != nil {
					return nil, err
				}
			}
			return start, nil
		}
	}
	a, ok1 := toFloat(start)
	b, ok2 := toFloat(stop)
	s, ok3 := toFloat(step)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("#%s expects numbers", sel)
	}
	if s == 0 {
		return nil, fmt.Errorf("#%s step must not be zero", sel)
	}
	for x := a; (s > 0 && x <= b) || (s < 0 && x >= b); x += s {
		if _, err := callBlock(sel, blk, x); err != nil {
			return nil, err
		}
	}
	return start, nil
}

// ipow computes a**b by squaring. Overflow wraps like the other integer
// operators.
func ipow(a, b int64) int64 {
	result := int64(1)
	for b > 0 {
		if b&1 == 1 {
			result *= a
		}
		a *= a
		b >>= 1
	}
	return result
}
