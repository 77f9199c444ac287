package vm

import (
	"errors"
	"testing"

	"github.com/chazu/olive/host"
)

func counterType() *host.Type {
	return host.NewType("Counting", host.Program()).
		AddField(host.Field{Name: "counter", Default: int64(0), Persistent: true})
}

// incrementUnit builds the equivalent of [:program <Counting> | program counter: program counter + 1].
func incrementUnit(declared *host.Type) *Unit {
	body := func(f *Frame) (any, error) {
		h := f.Load(0, 0)
		c, err := Send(h, "counter", nil)
		if err != nil {
			return nil, err
		}
		next, err := Send(c, "+", []any{int64(1)})
		if err != nil {
			return nil, err
		}
		return Send(h, "counter:", []any{next})
	}
	globals := NewFrame(0, nil)
	entry := &Block{NumArgs: 1, NumSlots: 1, Body: body, Outer: globals, Home: globals, Pos: Pos{Line: 1, Column: 1}}
	return NewUnit("inc.st", "digest", declared, globals, nil, entry)
}

func TestUnitInvoke(t *testing.T) {
	h, err := host.New(counterType(), host.Options{})
	if err != nil {
		t.Fatal(err)
	}
	u := incrementUnit(counterType())
	for i := 0; i < 3; i++ {
		if err := u.Invoke(h); err != nil {
			t.Fatalf("invoke %d: %v", i, err)
		}
	}
	if v, _ := h.Get("counter"); v != int64(3) {
		t.Errorf("counter = %v, want 3", v)
	}
}

func TestUnitRejectsWrongHostType(t *testing.T) {
	other := host.NewType("Other", host.Program())
	h, err := host.New(other, host.Options{})
	if err != nil {
		t.Fatal(err)
	}
	err = incrementUnit(counterType()).Invoke(h)
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
}

func TestUnitRecoversPanics(t *testing.T) {
	h, _ := host.New(host.Program(), host.Options{})
	globals := NewFrame(0, nil)
	entry := &Block{NumArgs: 1, NumSlots: 1, Outer: globals, Home: globals,
		Body: func(*Frame) (any, error) { panic("boom") }}
	u := NewUnit("p.st", "d", nil, globals, nil, entry)

	err := u.Invoke(h)
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if re.Path != "p.st" {
		t.Errorf("path = %q", re.Path)
	}
}

func TestUnitMarkFailed(t *testing.T) {
	u := incrementUnit(nil)
	if !u.Valid() {
		t.Fatal("new unit should be valid")
	}
	cause := errors.New("bad")
	u.MarkFailed(cause)
	if u.Valid() || u.Status() != UnitFailed {
		t.Error("unit should be failed")
	}
	if u.Failure() != cause {
		t.Errorf("Failure() = %v", u.Failure())
	}
	h, _ := host.New(counterType(), host.Options{})
	if err := u.Invoke(h); err == nil {
		t.Error("failed unit must not run")
	}
}

func TestNonLocalReturnFromEntry(t *testing.T) {
	h, _ := host.New(host.Program(), host.Options{})
	globals := NewFrame(0, nil)
	reached := false
	body := func(f *Frame) (any, error) {
		if err := Return(f, int64(1)); err != nil {
			return nil, err
		}
		reached = true
		return nil, nil
	}
	entry := &Block{NumArgs: 1, NumSlots: 1, Outer: globals, Home: globals, Body: body}
	if err := NewUnit("r.st", "d", nil, globals, nil, entry).Invoke(h); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if reached {
		t.Error("statement after ^ should not run")
	}
}
