package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func persistentProgram() *Type {
	return NewType("PersistentProgram", Program()).
		AddField(Field{Name: "counter", Default: int64(0), Persistent: true}).
		AddField(Field{Name: "camera", Persistent: true, ReadOnly: true}).
		AddField(Field{Name: "background", Default: "black"}).
		AddMethod("add:to:", 2, func(h *Host, args []any) (any, error) {
			return args[0].(int64) + args[1].(int64), nil
		})
}

func TestType_Hierarchy(t *testing.T) {
	pp := persistentProgram()
	require.True(t, pp.Is(Program()))
	require.False(t, Program().Is(pp))

	anc, ok := pp.Ancestor("Program")
	require.True(t, ok)
	require.Same(t, Program(), anc)
	_, ok = pp.Ancestor("Other")
	require.False(t, ok)
}

func TestType_Understands(t *testing.T) {
	pp := persistentProgram()
	tests := []struct {
		selector string
		want     bool
	}{
		{"counter", true},
		{"counter:", true},
		{"camera", true},
		{"camera:", false},
		{"frame", true},
		{"add:to:", true},
		{"add:", false},
		{"missing", false},
	}
	for _, tc := range tests {
		if got := pp.Understands(tc.selector); got != tc.want {
			t.Errorf("Understands(%q) = %v, want %v", tc.selector, got, tc.want)
		}
	}
	require.Contains(t, pp.Selectors(), "background:")
	require.NotContains(t, pp.Selectors(), "camera:")
}

func TestSelectorArity(t *testing.T) {
	require.Equal(t, 0, SelectorArity("frame"))
	require.Equal(t, 1, SelectorArity("+"))
	require.Equal(t, 1, SelectorArity("counter:"))
	require.Equal(t, 2, SelectorArity("at:put:"))
}

func TestHost_SendAndReset(t *testing.T) {
	h, err := New(persistentProgram(), Options{Width: 640, Height: 480})
	require.NoError(t, err)
	require.True(t, h.State().Sealed())

	_, err = h.Send("counter:", []any{int64(3)})
	require.NoError(t, err)
	_, err = h.Send("background:", []any{"green"})
	require.NoError(t, err)

	v, err := h.Send("add:to:", []any{int64(2), int64(5)})
	require.NoError(t, err)
	require.Equal(t, int64(7), v)

	_, err = h.Send("camera:", []any{"x"})
	require.True(t, errors.Is(err, ErrReadOnly))
	_, err = h.Send("nope", nil)
	require.True(t, errors.Is(err, ErrNotUnderstood))

	h.ResetTransient()
	bg, _ := h.Get("background")
	require.Equal(t, "black", bg)
	counter, _ := h.Get("counter")
	require.Equal(t, int64(3), counter)

	w, err := h.Send("width", nil)
	require.NoError(t, err)
	require.Equal(t, int64(640), w)
}

func TestHost_GoCanSetReadOnlyResource(t *testing.T) {
	h, err := New(persistentProgram(), Options{})
	require.NoError(t, err)
	cam := &struct{ on bool }{on: true}
	require.NoError(t, h.Set("camera", cam))
	got, err := h.Get("camera")
	require.NoError(t, err)
	require.Same(t, cam, got)
	require.True(t, h.State().Has("camera"))
	require.False(t, h.State().Has("background"))
}
