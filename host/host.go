package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/olive/state"
)

// ErrNotUnderstood is returned when a selector is not part of the host type.
var ErrNotUnderstood = errors.New("host: message not understood")

// ErrReadOnly is returned when a script assigns a read-only field.
var ErrReadOnly = errors.New("host: field is read-only")

// Responder is implemented by opaque resources stored in host fields (a
// camera, a device stream) so scripts can send them messages.
type Responder interface {
	Respond(selector string, args []any) (any, error)
}

// Options configures a new Host.
type Options struct {
	Width  int
	Height int
}

// Host is the single live instance of a Type.
//
// Persistent fields are stored in the state registry and are never touched by
// a reload. Transient fields are reset to their declared defaults each time a
// new script unit is swapped in. Only the runtime goroutine mutates a Host.
type Host struct {
	typ       *Type
	registry  *state.Registry
	transient map[string]any
	width     int
	height    int

	mu      sync.RWMutex
	frame   int64
	seconds float64
	delta   float64
}

// New creates a host of type t, declaring its persistent fields in a fresh
// registry and sealing it.
func New(t *Type, opts Options) (*Host, error) {
	if t == nil {
		return nil, fmt.Errorf("host: nil type")
	}
	h := &Host{
		typ:       t,
		registry:  state.NewRegistry(),
		transient: make(map[string]any),
		width:     opts.Width,
		height:    opts.Height,
	}
	for _, f := range t.Fields() {
		if f.Persistent {
			if err := h.registry.Declare(f.Name, f.Default); err != nil {
				return nil, fmt.Errorf("host %s: %w", t.Name, err)
			}
			continue
		}
		h.transient[f.Name] = f.Default
	}
	h.registry.Seal()
	return h, nil
}

// Type returns the host's type.
func (h *Host) Type() *Type { return h.typ }

// State returns the persistent field registry.
func (h *Host) State() *state.Registry { return h.registry }

// Size returns the configured width and height.
func (h *Host) Size() (int, int) { return h.width, h.height }

// Get reads a field.
func (h *Host) Get(name string) (any, error) {
	f, ok := h.typ.LookupField(name)
	if !ok {
		return nil, fmt.Errorf("%s>>%s: %w", h.typ.Name, name, ErrNotUnderstood)
	}
	if f.Persistent {
		v, _ := h.registry.Get(name)
		return v, nil
	}
	return h.transient[name], nil
}

// Set writes a field from Go code. Read-only fields are writable here; that
// is how the embedding program installs resources such as a camera.
func (h *Host) Set(name string, v any) error {
	f, ok := h.typ.LookupField(name)
	if !ok {
		return fmt.Errorf("%s>>%s: %w", h.typ.Name, name, ErrNotUnderstood)
	}
	if f.Persistent {
		return h.registry.Set(name, v)
	}
	h.transient[name] = v
	return nil
}

// Send dispatches a script message: methods first, then field getters and
// setters.
func (h *Host) Send(selector string, args []any) (any, error) {
	if m, ok := h.typ.LookupMethod(selector); ok {
		if len(args) != m.Arity {
			return nil, fmt.Errorf("%s>>%s expects %d arguments, got %d", h.typ.Name, selector, m.Arity, len(args))
		}
		return m.Fn(h, args)
	}
	if len(args) == 0 {
		return h.Get(selector)
	}
	if name, ok := setterField(selector); ok && len(args) == 1 {
		f, ok := h.typ.LookupField(name)
		if !ok {
			return nil, fmt.Errorf("%s>>%s: %w", h.typ.Name, selector, ErrNotUnderstood)
		}
		if f.ReadOnly {
			return nil, fmt.Errorf("%s>>%s: %w", h.typ.Name, name, ErrReadOnly)
		}
		if err := h.Set(name, args[0]); err != nil {
			return nil, err
		}
		return h, nil
	}
	return nil, fmt.Errorf("%s>>%s: %w", h.typ.Name, selector, ErrNotUnderstood)
}

// ResetTransient restores every transient field to its declared default.
func (h *Host) ResetTransient() {
	for _, f := range h.typ.Fields() {
		if !f.Persistent {
			h.transient[f.Name] = f.Default
		}
	}
}

// Advance records the clock for the frame about to run.
func (h *Host) Advance(frame int64, seconds, delta float64) {
	h.mu.Lock()
	h.frame, h.seconds, h.delta = frame, seconds, delta
	h.mu.Unlock()
}

// Clock returns the current frame number, elapsed seconds and frame delta.
func (h *Host) Clock() (frame int64, seconds, delta float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame, h.seconds, h.delta
}

// ---------------------------------------------------------------------------
// Program: the base host type every script can bind to
// ---------------------------------------------------------------------------

var (
	programOnce sync.Once
	programType *Type
)

// Program returns the base host type. Application host types extend it.
func Program() *Type {
	programOnce.Do(func() {
		programType = NewType("Program", nil).
			AddMethod("frame", 0, func(h *Host, _ []any) (any, error) {
				frame, _, _ := h.Clock()
				return frame, nil
			}, "Number of the frame being drawn, starting at 1.").
			AddMethod("seconds", 0, func(h *Host, _ []any) (any, error) {
				_, seconds, _ := h.Clock()
				return seconds, nil
			}, "Seconds since the program started.").
			AddMethod("deltaTime", 0, func(h *Host, _ []any) (any, error) {
				_, _, delta := h.Clock()
				return delta, nil
			}, "Seconds since the previous frame.").
			AddMethod("width", 0, func(h *Host, _ []any) (any, error) {
				return int64(h.width), nil
			}).
			AddMethod("height", 0, func(h *Host, _ []any) (any, error) {
				return int64(h.height), nil
			})
	})
	return programType
}

// Dump returns the current value of every field, for status reporting.
func (h *Host) Dump() map[string]any {
	out := make(map[string]any)
	for _, f := range h.typ.Fields() {
		v, _ := h.Get(f.Name)
		out[f.Name] = v
	}
	return out
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}
