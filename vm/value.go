package vm

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/chazu/olive/host"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Script values are plain Go values:
//
//	nil, bool, int64, float64, string   literals
//	Symbol                              #foo
//	*Array                              {1. 2} and #(1 2)
//	*Block                              [:x | x + 1]
//	*host.Host                          the host parameter
//	anything else                       opaque resources from host fields

// Symbol is an interned-by-value selector or name literal.
type Symbol string

// Array is a mutable, growable sequence.
type Array struct {
	Elems []any
}

// NewArray wraps elems.
func NewArray(elems ...any) *Array {
	return &Array{Elems: elems}
}

// SnapshotValue lets the state registry store arrays held in persistent fields.
func (a *Array) SnapshotValue() any {
	return a.Elems
}

// Pos is a source location used in runtime errors.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// FromGo maps values returned by Go code (host methods, resources) onto
// script values.
func FromGo(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case []any:
		return &Array{Elems: x}
	case []string:
		elems := make([]any, len(x))
		for i, s := range x {
			elems[i] = s
		}
		return &Array{Elems: elems}
	}
	return v
}

// TypeName returns the script-level type name of v.
func TypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "UndefinedObject"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return "SmallInteger"
	case float64:
		return "Float"
	case string:
		return "String"
	case Symbol:
		return "Symbol"
	case *Array:
		return "Array"
	case *Block:
		return "Block"
	case *host.Host:
		return x.Type().Name
	case *Transcript:
		return "Transcript"
	case *classRef:
		return x.name + " class"
	}
	return fmt.Sprintf("%T", v)
}

// PrintString renders v the way printString does.
func PrintString(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case Symbol:
		return "#" + string(x)
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = PrintString(e)
		}
		return "{" + strings.Join(parts, ". ") + "}"
	case *Block:
		return "a Block"
	case *host.Host:
		return "a " + x.Type().Name
	case fmt.Stringer:
		return x.String()
	}
	return "a " + TypeName(v)
}

// DisplayString is PrintString without quotes around strings and symbols.
func DisplayString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case Symbol:
		return string(x)
	}
	return PrintString(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "Float infinity"
	}
	if math.IsInf(f, -1) {
		return "Float negativeInfinity"
	}
	if math.IsNaN(f) {
		return "Float nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// Equal implements = for script values.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	case *Array:
		y, ok := b.(*Array)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case nil, bool, string, Symbol:
		return a == b
	}
	return identical(a, b)
}

// identical implements ==.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
