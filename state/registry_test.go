package state

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type device struct{ frames int }

type wrapped struct{ elems []any }

func (w wrapped) SnapshotValue() any { return w.elems }

func TestRegistry_DeclareAndSeal(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("counter", int64(0)))
	require.Error(t, r.Declare("counter", int64(1)))
	require.False(t, r.Sealed())

	r.Seal()
	require.True(t, r.Sealed())
	err := r.Declare("late", nil)
	require.True(t, errors.Is(err, ErrSealed))

	require.NoError(t, r.Set("counter", int64(5)))
	v, ok := r.Get("counter")
	require.True(t, ok)
	require.Equal(t, int64(5), v)

	err = r.Set("missing", 1)
	require.True(t, errors.Is(err, ErrUndeclared))
	require.Equal(t, []string{"counter"}, r.Names())
}

func TestRegistry_SnapshotIsDeterministic(t *testing.T) {
	build := func() *Registry {
		r := NewRegistry()
		require.NoError(t, r.Declare("b", "hello"))
		require.NoError(t, r.Declare("a", int64(3)))
		require.NoError(t, r.Declare("camera", &device{frames: 7}))
		require.NoError(t, r.Declare("list", wrapped{elems: []any{int64(1), 2.5, true}}))
		r.Seal()
		return r
	}

	first, err := build().Snapshot()
	require.NoError(t, err)
	second, err := build().Snapshot()
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
}

func TestRegistry_SnapshotChangesWithValues(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("counter", int64(0)))
	r.Seal()

	before, err := r.Snapshot()
	require.NoError(t, err)
	require.NoError(t, r.Set("counter", int64(1)))
	after, err := r.Snapshot()
	require.NoError(t, err)
	require.False(t, bytes.Equal(before, after))
}

func TestRegistry_SaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")

	r := NewRegistry()
	require.NoError(t, r.Declare("counter", int64(0)))
	require.NoError(t, r.Declare("enabled", true))
	require.NoError(t, r.Declare("camera", &device{}))
	require.NoError(t, r.Declare("history", []any{int64(1), "two"}))
	r.Seal()
	require.NoError(t, r.Set("counter", int64(42)))
	require.NoError(t, r.Set("enabled", false))
	require.NoError(t, r.SaveFile(path))

	cam := &device{frames: 3}
	fresh := NewRegistry()
	require.NoError(t, fresh.Declare("counter", int64(0)))
	require.NoError(t, fresh.Declare("enabled", true))
	require.NoError(t, fresh.Declare("camera", cam))
	require.NoError(t, fresh.Declare("history", nil))
	fresh.Seal()

	restored, err := fresh.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"counter", "enabled", "history"}, restored)

	v, _ := fresh.Get("counter")
	require.Equal(t, int64(42), v)
	v, _ = fresh.Get("enabled")
	require.Equal(t, false, v)
	v, _ = fresh.Get("history")
	require.Equal(t, []any{int64(1), "two"}, v)
	v, _ = fresh.Get("camera")
	require.Same(t, cam, v)
}
