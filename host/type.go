// Package host describes the long-lived object a live script acts on.
//
// A Type is the contract a script binds to at compile time: its fields
// (persistent or transient, writable or read-only) and its methods. A Host is
// the single instance of a Type owned by the runtime loop.
package host

import (
	"fmt"
	"sort"
	"strings"
)

// MethodFunc implements a host method. args holds exactly Arity values.
type MethodFunc func(h *Host, args []any) (any, error)

// Field declares a host field.
type Field struct {
	Name string
	// Default is the value a transient field is reset to on every reload,
	// and the initial value of a persistent field.
	Default any
	// Persistent fields live in the state registry and survive reloads.
	Persistent bool
	// ReadOnly fields cannot be assigned by scripts (Go code still can).
	ReadOnly bool
	Doc      string
}

// Method declares a host method callable from scripts.
type Method struct {
	Selector string
	Arity    int
	Fn       MethodFunc
	Doc      string
}

// Type is a named host contract, optionally extending a parent.
type Type struct {
	Name    string
	Parent  *Type
	fields  map[string]Field
	order   []string
	methods map[string]Method
}

// NewType creates a host type. parent may be nil.
func NewType(name string, parent *Type) *Type {
	return &Type{
		Name:    name,
		Parent:  parent,
		fields:  make(map[string]Field),
		methods: make(map[string]Method),
	}
}

// AddField declares a field on t. It panics on an invalid name, since types
// are declared once at program start.
func (t *Type) AddField(f Field) *Type {
	if f.Name == "" || strings.Contains(f.Name, ":") {
		panic(fmt.Sprintf("host: invalid field name %q", f.Name))
	}
	if _, ok := t.fields[f.Name]; !ok {
		t.order = append(t.order, f.Name)
	}
	t.fields[f.Name] = f
	return t
}

// AddMethod declares a method on t. The selector's keyword count must match
// arity (unary selectors take no arguments).
func (t *Type) AddMethod(selector string, arity int, fn MethodFunc, doc ...string) *Type {
	if SelectorArity(selector) != arity {
		panic(fmt.Sprintf("host: selector %q does not take %d arguments", selector, arity))
	}
	m := Method{Selector: selector, Arity: arity, Fn: fn}
	if len(doc) > 0 {
		m.Doc = doc[0]
	}
	t.methods[selector] = m
	return t
}

// Is reports whether t is other or extends it.
func (t *Type) Is(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Ancestor returns the type named name in t's chain.
func (t *Type) Ancestor(name string) (*Type, bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur.Name == name {
			return cur, true
		}
	}
	return nil, false
}

// LookupField finds a field declared on t or one of its parents.
func (t *Type) LookupField(name string) (Field, bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		if f, ok := cur.fields[name]; ok {
			return f, true
		}
	}
	return Field{}, false
}

// LookupMethod finds a method declared on t or one of its parents.
func (t *Type) LookupMethod(selector string) (Method, bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		if m, ok := cur.methods[selector]; ok {
			return m, true
		}
	}
	return Method{}, false
}

// Fields returns all fields visible on t, parents first.
func (t *Type) Fields() []Field {
	var chain []*Type
	for cur := t; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	var out []Field
	seen := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, name := range chain[i].order {
			if seen[name] {
				continue
			}
			seen[name] = true
			f, _ := t.LookupField(name)
			out = append(out, f)
		}
	}
	return out
}

// Understands reports whether a script may send selector to a host of type t.
// Field getters, setters of writable fields and methods are understood.
func (t *Type) Understands(selector string) bool {
	if _, ok := t.LookupMethod(selector); ok {
		return true
	}
	if _, ok := t.LookupField(selector); ok {
		return true
	}
	if name, ok := setterField(selector); ok {
		if f, ok := t.LookupField(name); ok && !f.ReadOnly {
			return true
		}
	}
	return false
}

// Describe returns a short human readable description of selector on t.
func (t *Type) Describe(selector string) (string, bool) {
	if m, ok := t.LookupMethod(selector); ok {
		if m.Doc != "" {
			return fmt.Sprintf("%s>>%s\n\n%s", t.Name, selector, m.Doc), true
		}
		return fmt.Sprintf("%s>>%s", t.Name, selector), true
	}
	name := selector
	if n, ok := setterField(selector); ok {
		name = n
	}
	f, ok := t.LookupField(name)
	if !ok {
		return "", false
	}
	var attrs []string
	if f.Persistent {
		attrs = append(attrs, "persistent")
	} else {
		attrs = append(attrs, "transient")
	}
	if f.ReadOnly {
		attrs = append(attrs, "read-only")
	}
	desc := fmt.Sprintf("%s.%s (%s)", t.Name, f.Name, strings.Join(attrs, ", "))
	if f.Doc != "" {
		desc += "\n\n" + f.Doc
	}
	return desc, true
}

// Selectors returns every selector a script may send to a host of type t,
// sorted.
func (t *Type) Selectors() []string {
	set := make(map[string]bool)
	for cur := t; cur != nil; cur = cur.Parent {
		for sel := range cur.methods {
			set[sel] = true
		}
		for name, f := range cur.fields {
			set[name] = true
			if !f.ReadOnly {
				set[name+":"] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for sel := range set {
		out = append(out, sel)
	}
	sort.Strings(out)
	return out
}

// SelectorArity returns the number of arguments a selector takes.
func SelectorArity(selector string) int {
	if selector == "" {
		return 0
	}
	if n := strings.Count(selector, ":"); n > 0 {
		return n
	}
	if isBinarySelector(selector) {
		return 1
	}
	return 0
}

func isBinarySelector(s string) bool {
	for _, r := range s {
		if strings.ContainsRune("+-*/\\~<>=@%|&?!,", r) {
			continue
		}
		return false
	}
	return true
}

// setterField returns "name" for a one-keyword selector "name:".
func setterField(selector string) (string, bool) {
	if strings.Count(selector, ":") != 1 || !strings.HasSuffix(selector, ":") {
		return "", false
	}
	return strings.TrimSuffix(selector, ":"), true
}
