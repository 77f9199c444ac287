package vm

import "math"

// ---------------------------------------------------------------------------
// Float class-side constants
// ---------------------------------------------------------------------------

// classRef is a global naming a built-in class (Array, Float) so scripts
// can send it constructor and constant messages.
type classRef struct {
	name string
}

var (
	arrayClass = &classRef{name: "Array"}
	floatClass = &classRef{name: "Float"}
)

func registerClassPrimitives() {
	c := classPrims
	c.def0("pi", func(recv any) (any, error) {
		if recv != floatClass {
			return nil, notUnderstood(recv, "pi")
		}
		return math.Pi, nil
	})
	c.def0("e", func(recv any) (any, error) {
		if recv != floatClass {
			return nil, notUnderstood(recv, "e")
		}
		return math.E, nil
	})
	c.def0("infinity", func(recv any) (any, error) {
		if recv != floatClass {
			return nil, notUnderstood(recv, "infinity")
		}
		return math.Inf(1), nil
	})
	c.def0("new", func(recv any) (any, error) {
		if recv != arrayClass {
			return nil, notUnderstood(recv, "new")
		}
		return NewArray(), nil
	})
	c.def1("new:", func(recv, n any) (any, error) {
		if recv != arrayClass {
			return nil, notUnderstood(recv, "new:")
		}
		size, ok := n.(int64)
		if !ok || size < 0 {
			return nil, wrongArg("new:", "a non-negative Integer", n)
		}
		return &Array{Elems: make([]any, size)}, nil
	})
	c.def2("new:withAll:", func(recv, n, v any) (any, error) {
		if recv != arrayClass {
			return nil, notUnderstood(recv, "new:withAll:")
		}
		size, ok := n.(int64)
		if !ok || size < 0 {
			return nil, wrongArg("new:withAll:", "a non-negative Integer", n)
		}
		elems := make([]any, size)
		for i := range elems {
			elems[i] = v
		}
		return &Array{Elems: elems}, nil
	})
	c.def1("with:", func(recv, a any) (any, error) {
		if recv != arrayClass {
			return nil, notUnderstood(recv, "with:")
		}
		return NewArray(a), nil
	})
	c.def2("with:with:", func(recv, a, b any) (any, error) {
		if recv != arrayClass {
			return nil, notUnderstood(recv, "with:with:")
		}
		return NewArray(a, b), nil
	})
}

// Globals returns the built-in global names and their values.
func Globals() map[string]any {
	return map[string]any{
		"Transcript": DefaultTranscript,
		"Array":      arrayClass,
		"Float":      floatClass,
	}
}

func (c *classRef) String() string { return c.name }
