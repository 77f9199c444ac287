// Package state holds host fields that survive a script reload.
package state

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrSealed is returned when a field is declared after host construction.
	ErrSealed = errors.New("state: registry is sealed")

	// ErrUndeclared is returned when reading or writing a field that was never declared.
	ErrUndeclared = errors.New("state: undeclared field")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("state: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshotter is implemented by values that can describe themselves as plain
// data for a snapshot (script arrays, for example).
type Snapshotter interface {
	SnapshotValue() any
}

// Registry maps persistent field names to their current values.
//
// Fields are declared while the host is being built and the registry is then
// sealed; from that point on only Set may change it. Nothing in the reload
// path ever reinitializes a declared field.
type Registry struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
	sealed bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[string]any)}
}

// Declare adds a field with its initial value.
func (r *Registry) Declare(name string, initial any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("declare %q: %w", name, ErrSealed)
	}
	if _, ok := r.values[name]; ok {
		return fmt.Errorf("declare %q: field already declared", name)
	}
	r.values[name] = initial
	r.order = append(r.order, name)
	return nil
}

// Seal ends the declaration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the declaration phase is over.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Has reports whether name was declared.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.values[name]
	return ok
}

// Get returns the current value of a declared field.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Set replaces the value of a declared field.
func (r *Registry) Set(name string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[name]; !ok {
		return fmt.Errorf("set %q: %w", name, ErrUndeclared)
	}
	r.values[name] = v
	return nil
}

// Names returns the declared field names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Entry kinds in a snapshot.
const (
	KindValue  = "value"
	KindOpaque = "opaque"
)

// Entry is the snapshot form of one field. Plain data is stored in Value;
// anything else (open devices, handles) is recorded by Go type only.
type Entry struct {
	Kind  string `cbor:"kind"`
	Type  string `cbor:"type,omitempty"`
	Value any    `cbor:"value"`
}

// Snapshot encodes every field as canonical CBOR. Two registries holding the
// same plain values and the same resource types produce identical bytes.
func (r *Registry) Snapshot() ([]byte, error) {
	r.mu.RLock()
	entries := make(map[string]Entry, len(r.values))
	for name, v := range r.values {
		entries[name] = toEntry(v)
	}
	r.mu.RUnlock()

	data, err := cborEncMode.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("state: encode snapshot: %w", err)
	}
	return data, nil
}

// SaveFile writes a snapshot to path.
func (r *Registry) SaveFile(path string) error {
	data, err := r.Snapshot()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("state: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("state: rename %s: %w", tmp, err)
	}
	return nil
}

// LoadFile restores plain values from a snapshot written by SaveFile.
// Opaque entries and names that are no longer declared are skipped; the
// names of restored fields are returned sorted.
func (r *Registry) LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	var entries map[string]Entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var restored []string
	for name, e := range entries {
		if e.Kind != KindValue {
			continue
		}
		if _, ok := r.values[name]; !ok {
			continue
		}
		r.values[name] = normalize(e.Value)
		restored = append(restored, name)
	}
	sort.Strings(restored)
	return restored, nil
}

func toEntry(v any) Entry {
	if s, ok := v.(Snapshotter); ok {
		v = s.SnapshotValue()
	}
	if plain, ok := plainValue(v); ok {
		return Entry{Kind: KindValue, Value: plain}
	}
	return Entry{Kind: KindOpaque, Type: fmt.Sprintf("%T", v)}
}

// plainValue reports whether v is made only of CBOR-friendly scalars and
// slices of them, converting nested snapshotters on the way.
func plainValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil, bool, string, int, int64, float64:
		return x, true
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			if s, ok := elem.(Snapshotter); ok {
				elem = s.SnapshotValue()
			}
			p, ok := plainValue(elem)
			if !ok {
				return nil, false
			}
			out[i] = p
		}
		return out, true
	}
	return nil, false
}

// normalize maps decoded CBOR numbers back onto int64/float64.
func normalize(v any) any {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = normalize(elem)
		}
		return out
	}
	return v
}
