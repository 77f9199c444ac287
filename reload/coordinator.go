// Package reload drives the detect, compile, swap cycle for a live host.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/olive/compiler"
	"github.com/chazu/olive/host"
	"github.com/chazu/olive/journal"
	"github.com/chazu/olive/vm"
	"github.com/chazu/olive/watch"
)

var log = commonlog.GetLogger("olive.reload")

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Source reports script changes. *watch.Watcher implements it.
type Source interface {
	PollErr() (watch.Event, bool, error)
	Commit(digest string)
	Reset()
	SetPath(path string) error
	Path() string
}

var (
	_ Source  = (*watch.Watcher)(nil)
	_ Journal = (*journal.Journal)(nil)
)

// CompileFunc turns script text into a unit for a host type.
type CompileFunc func(path string, src []byte, ht *host.Type) (*vm.Unit, error)

// Journal records reload history. *journal.Journal implements it.
type Journal interface {
	Record(e journal.Entry) error
}

// Options configures a Coordinator. Zero values select the script compiler
// and no journal.
type Options struct {
	Compile CompileFunc
	Journal Journal
}

// ---------------------------------------------------------------------------
// Coordinator
// ---------------------------------------------------------------------------

// Coordinator owns the active unit. Poll, SetScriptPath, ForceReload and
// MarkRuntimeFailure must be called from the tick goroutine; State, Active
// and LastError may be called from anywhere.
type Coordinator struct {
	src     Source
	host    *host.Host
	compile CompileFunc
	journal Journal

	mu    sync.RWMutex
	state State

	// digest whose compile error was last reported
	reported string
	// last watch error reported, to avoid repeating it every tick
	watchErr string

	subsMu sync.Mutex
	subs   map[int]func(Outcome)
	nextID int
}

// New creates a coordinator in the Idle state.
func New(src Source, h *host.Host, opts Options) *Coordinator {
	c := &Coordinator{
		src:     src,
		host:    h,
		compile: opts.Compile,
		journal: opts.Journal,
		subs:    make(map[int]func(Outcome)),
	}
	if c.compile == nil {
		c.compile = compiler.CompileSource
	}
	return c
}

// Poll runs one detect, compile, swap step.
func (c *Coordinator) Poll(ctx context.Context) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: OutcomeUnchanged}
	}

	ev, ok, err := c.src.PollErr()
	if err != nil {
		c.reportWatchError(err)
		return Outcome{Kind: OutcomeUnchanged, Err: err}
	}
	c.watchErr = ""
	if !ok {
		return Outcome{Kind: OutcomeUnchanged}
	}

	if err := c.transition(Compiling, nil, nil); err != nil {
		log.Errorf("%s", err)
		return Outcome{Kind: OutcomeUnchanged, Err: err}
	}

	unit, err := c.compile(ev.Path, ev.Source, c.host.Type())
	if err == nil && unit == nil {
		err = errors.New("compiler returned no unit")
	}
	if err != nil {
		return c.compileFailed(ev, err)
	}
	return c.swap(ev, unit)
}

func (c *Coordinator) swap(ev watch.Event, unit *vm.Unit) Outcome {
	c.host.ResetTransient()
	if err := c.transition(Active, unit, nil); err != nil {
		log.Errorf("%s", err)
		return Outcome{Kind: OutcomeUnchanged, Err: err}
	}
	c.src.Commit(ev.Digest)
	c.reported = ""

	log.Infof("swapped in %s (unit %s, digest %.12s)", ev.Path, unit.ID, ev.Digest)
	c.record(journal.Entry{
		Path:    ev.Path,
		Digest:  ev.Digest,
		UnitID:  unit.ID.String(),
		Outcome: journal.OutcomeSwapped,
	})
	out := Outcome{Kind: OutcomeSwapped, Unit: unit, Path: ev.Path, Digest: ev.Digest}
	c.notify(out)
	return out
}

func (c *Coordinator) compileFailed(ev watch.Event, err error) Outcome {
	lastGood := c.State().Unit
	if terr := c.transition(Failed, lastGood, err); terr != nil {
		log.Errorf("%s", terr)
		return Outcome{Kind: OutcomeUnchanged, Err: terr}
	}

	out := Outcome{Kind: OutcomeFailed, Unit: lastGood, Err: err, Path: ev.Path, Digest: ev.Digest}
	// The watcher reports a broken file every tick; say so once per version.
	if ev.Digest == c.reported {
		return out
	}
	c.reported = ev.Digest
	if lastGood != nil && lastGood.Valid() {
		log.Errorf("%s (still running unit %s)", err, lastGood.ID)
	} else {
		log.Errorf("%s", err)
	}
	c.record(journal.Entry{
		Path:    ev.Path,
		Digest:  ev.Digest,
		Outcome: journal.OutcomeCompileError,
		Message: err.Error(),
	})
	c.notify(out)
	return out
}

func (c *Coordinator) reportWatchError(err error) {
	msg := err.Error()
	if msg == c.watchErr {
		return
	}
	c.watchErr = msg
	log.Warningf("%s", msg)
	c.record(journal.Entry{
		Path:    c.src.Path(),
		Outcome: journal.OutcomeWatchError,
		Message: msg,
	})
}

// MarkRuntimeFailure takes a unit that failed while running out of service.
// It stays out until a new version of the script compiles.
func (c *Coordinator) MarkRuntimeFailure(unit *vm.Unit, err error) {
	if unit == nil || unit != c.State().Unit {
		return
	}
	unit.MarkFailed(err)
	if terr := c.transition(Failed, unit, err); terr != nil {
		log.Errorf("%s", terr)
		return
	}
	log.Errorf("unit %s stopped: %s", unit.ID, err)
	c.record(journal.Entry{
		Path:    unit.Path,
		Digest:  unit.Digest,
		UnitID:  unit.ID.String(),
		Outcome: journal.OutcomeRuntimeError,
		Message: err.Error(),
	})
	c.notify(Outcome{Kind: OutcomeFailed, Unit: unit, Err: err, Path: unit.Path, Digest: unit.Digest})
}

// SetScriptPath switches the watched script. The next Poll compiles it.
func (c *Coordinator) SetScriptPath(path string) error {
	if err := c.src.SetPath(path); err != nil {
		return err
	}
	c.reported = ""
	log.Noticef("script path set to %s", path)
	c.record(journal.Entry{Path: path, Outcome: journal.OutcomePathChanged})
	return nil
}

// ForceReload makes the next Poll recompile the current file.
func (c *Coordinator) ForceReload() {
	c.reported = ""
	c.src.Reset()
}

// ScriptPath returns the watched path.
func (c *Coordinator) ScriptPath() string {
	return c.src.Path()
}

// Host returns the host units run against.
func (c *Coordinator) Host() *host.Host {
	return c.host
}

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Active returns the unit to invoke this tick, or nil.
func (c *Coordinator) Active() *vm.Unit {
	s := c.State()
	if s.Unit == nil || !s.Unit.Valid() {
		return nil
	}
	return s.Unit
}

// LastError returns the error of the Failed state, or nil.
func (c *Coordinator) LastError() error {
	s := c.State()
	if s.Phase != Failed {
		return nil
	}
	return s.Err
}

// Subscribe registers fn to be called after every swap and every newly
// reported failure. It returns a function that removes the subscription.
func (c *Coordinator) Subscribe(fn func(Outcome)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Coordinator) notify(out Outcome) {
	c.subsMu.Lock()
	fns := make([]func(Outcome), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()
	for _, fn := range fns {
		fn(out)
	}
}

func (c *Coordinator) record(e journal.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(e); err != nil {
		log.Warningf("journal: %s", err)
	}
}

// transition moves to phase to, rejecting edges the state machine does not
// have.
func (c *Coordinator) transition(to Phase, unit *vm.Unit, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.state.Phase
	if !allowed(from, to) {
		return fmt.Errorf("reload: illegal transition %s -> %s", from, to)
	}
	next := State{Phase: to, Unit: unit, Err: err}
	if to == Compiling {
		// The running unit keeps running while its successor compiles.
		next.Unit = c.state.Unit
	}
	c.state = next
	return nil
}
