package vm

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/olive/host"
)

// ---------------------------------------------------------------------------
// Compiled units
// ---------------------------------------------------------------------------

// UnitStatus tracks whether a unit may still be invoked.
type UnitStatus int32

const (
	UnitValid UnitStatus = iota
	UnitFailed
)

func (s UnitStatus) String() string {
	if s == UnitFailed {
		return "failed"
	}
	return "valid"
}

// Unit is the executable result of compiling one script file. It owns the
// unit-level variables initialized by the script's setup statements and the
// entry block the host loop invokes once per tick.
type Unit struct {
	ID         uuid.UUID
	Path       string
	Digest     string
	Declared   *host.Type // nil accepts any host
	CompiledAt time.Time

	globals     *Frame
	globalNames []string
	entry       *Block

	status atomic.Int32
	mu     sync.Mutex
	failed error
}

// NewUnit assembles a unit from compiled parts.
func NewUnit(path, digest string, declared *host.Type, globals *Frame, names []string, entry *Block) *Unit {
	return &Unit{
		ID:          uuid.New(),
		Path:        path,
		Digest:      digest,
		Declared:    declared,
		CompiledAt:  time.Now(),
		globals:     globals,
		globalNames: names,
		entry:       entry,
	}
}

// Status returns the current status.
func (u *Unit) Status() UnitStatus { return UnitStatus(u.status.Load()) }

// Valid reports whether the unit has not failed.
func (u *Unit) Valid() bool { return u.Status() == UnitValid }

// MarkFailed records err and stops the unit from being invoked again.
func (u *Unit) MarkFailed(err error) {
	u.mu.Lock()
	u.failed = err
	u.mu.Unlock()
	u.status.Store(int32(UnitFailed))
}

// Failure returns the error the unit failed with, if any.
func (u *Unit) Failure() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.failed
}

// Global reads a unit-level variable by name.
func (u *Unit) Global(name string) (any, bool) {
	for i, n := range u.globalNames {
		if n == name {
			return u.globals.slots[i], true
		}
	}
	return nil, false
}

// Invoke runs the entry block once against h. Every failure, including a Go
// panic inside a primitive or host method, comes back as a *RuntimeError.
func (u *Unit) Invoke(h *host.Host) (err error) {
	if !u.Valid() {
		return &RuntimeError{Path: u.Path, Err: fmt.Errorf("unit %s has failed", u.ID)}
	}
	if h == nil {
		return &RuntimeError{Path: u.Path, Err: errors.New("no host")}
	}
	if u.Declared != nil && !h.Type().Is(u.Declared) {
		return &RuntimeError{
			Path: u.Path,
			Pos:  u.entry.Pos,
			Err:  fmt.Errorf("host of type %s is not a %s", h.Type().Name, u.Declared.Name),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Path: u.Path, Pos: u.entry.Pos, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	f := NewFrame(u.entry.NumSlots, u.entry.Outer)
	if u.entry.NumArgs > 0 {
		f.slots[0] = h
	}
	_, err = Activate(f, u.entry.Body)
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Path == "" {
			re.Path = u.Path
		}
		return re
	}
	return &RuntimeError{Path: u.Path, Pos: u.entry.Pos, Err: err}
}
