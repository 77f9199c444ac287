// Package live runs a host and its hot-reloaded script on one goroutine.
//
// Every tick polls the reload coordinator, invokes the active unit and
// advances the host clock, in that order. Anything else that needs the host
// or the coordinator (control API, drag and drop, signal handlers) submits a
// function through Do, which runs it on the tick goroutine between frames.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/olive/compiler"
	"github.com/chazu/olive/host"
	"github.com/chazu/olive/reload"
	"github.com/chazu/olive/vm"
)

var log = commonlog.GetLogger("olive.live")

// ErrStopped is returned by Do when the context ends before the request runs.
var ErrStopped = errors.New("live: runtime not running")

// request is a unit of work to execute on the tick goroutine.
type request struct {
	fn   func(*reload.Coordinator) (any, error)
	done chan result
}

type result struct {
	value any
	err   error
}

// Status is a point-in-time view of the runtime, safe to read from any
// goroutine.
type Status struct {
	Phase      string
	ScriptPath string
	UnitID     string
	Digest     string
	CompiledAt time.Time

	Error       string
	ErrorLine   int
	ErrorColumn int

	Frame   int64
	Seconds float64
	Ticks   int64
	Swaps   int64
	// Failures counts reported compile errors and runtime errors.
	Failures int64

	Fields map[string]any
}

// Runtime owns the tick loop.
type Runtime struct {
	coord    *reload.Coordinator
	host     *host.Host
	requests chan request
	now      func() time.Time

	// tick goroutine only
	start time.Time
	last  time.Time
	frame int64
	ticks int64

	mu       sync.Mutex
	status   Status
	swaps    int64
	failures int64
}

// New creates a runtime driving coord. The host is the coordinator's.
func New(coord *reload.Coordinator) *Runtime {
	r := &Runtime{
		coord:    coord,
		host:     coord.Host(),
		requests: make(chan request, 64),
		now:      time.Now,
		frame:    1,
	}
	r.host.Advance(1, 0, 0)
	coord.Subscribe(r.observe)
	r.publish()
	return r
}

// Coordinator returns the reload coordinator. Callers outside the tick
// goroutine must go through Do.
func (r *Runtime) Coordinator() *reload.Coordinator {
	return r.coord
}

// Run ticks fps times a second until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		return fmt.Errorf("live: fps must be positive, got %d", fps)
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	log.Infof("running %s at %d fps", r.coord.ScriptPath(), fps)
	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		case req := <-r.requests:
			// Serve requests promptly even at low frame rates.
			req.done <- r.execute(req.fn)
		}
	}
}

// Tick runs one frame: pending requests, reload poll, script invocation,
// clock advance.
func (r *Runtime) Tick(ctx context.Context) {
	r.drain()
	if ctx.Err() != nil {
		return
	}

	if r.start.IsZero() {
		r.start = r.now()
		r.last = r.start
	}
	r.coord.Poll(ctx)

	if unit := r.coord.Active(); unit != nil {
		if err := unit.Invoke(r.host); err != nil {
			r.coord.MarkRuntimeFailure(unit, err)
		}
	}

	r.advance()
	r.publish()
}

// Do runs fn on the tick goroutine and waits for it. A panic in fn is
// returned as an error.
func (r *Runtime) Do(ctx context.Context, fn func(*reload.Coordinator) (any, error)) (any, error) {
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case r.requests <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}
}

// SetScriptPath switches the watched script from any goroutine.
func (r *Runtime) SetScriptPath(ctx context.Context, path string) error {
	_, err := r.Do(ctx, func(c *reload.Coordinator) (any, error) {
		if err := c.SetScriptPath(path); err != nil {
			return nil, err
		}
		r.publish()
		return nil, nil
	})
	return err
}

// ForceReload makes the next tick recompile the script, from any goroutine.
func (r *Runtime) ForceReload(ctx context.Context) error {
	_, err := r.Do(ctx, func(c *reload.Coordinator) (any, error) {
		c.ForceReload()
		return nil, nil
	})
	return err
}

// Status returns the snapshot published at the end of the last tick.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.Fields = make(map[string]any, len(r.status.Fields))
	for k, v := range r.status.Fields {
		s.Fields[k] = v
	}
	return s
}

func (r *Runtime) drain() {
	for {
		select {
		case req := <-r.requests:
			req.done <- r.execute(req.fn)
		default:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (r *Runtime) execute(fn func(*reload.Coordinator) (any, error)) (res result) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("request panicked: %v", p)
			res = result{err: fmt.Errorf("live: request panicked: %v", p)}
		}
	}()
	v, err := fn(r.coord)
	return result{value: v, err: err}
}

func (r *Runtime) advance() {
	now := r.now()
	delta := now.Sub(r.last).Seconds()
	r.last = now
	r.frame++
	r.ticks++
	r.host.Advance(r.frame, now.Sub(r.start).Seconds(), delta)
}

// observe is called by the coordinator on the tick goroutine.
func (r *Runtime) observe(out reload.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch out.Kind {
	case reload.OutcomeSwapped:
		r.swaps++
	case reload.OutcomeFailed:
		r.failures++
	}
}

func (r *Runtime) publish() {
	st := r.coord.State()
	frame, seconds, _ := r.host.Clock()
	s := Status{
		Phase:      st.Phase.String(),
		ScriptPath: r.coord.ScriptPath(),
		Frame:      frame,
		Seconds:    seconds,
		Ticks:      r.ticks,
		Fields:     make(map[string]any),
	}
	for name, v := range r.host.Dump() {
		s.Fields[name] = detach(v)
	}
	if u := st.Unit; u != nil {
		s.UnitID = u.ID.String()
		s.Digest = u.Digest
		s.CompiledAt = u.CompiledAt
	}
	if st.Err != nil {
		s.Error = st.Err.Error()
		s.ErrorLine, s.ErrorColumn = errorPosition(st.Err)
	}

	r.mu.Lock()
	s.Swaps = r.swaps
	s.Failures = r.failures
	r.status = s
	r.mu.Unlock()
}

func errorPosition(err error) (line, col int) {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Line(), ce.Column()
	}
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		return re.Pos.Line, re.Pos.Column
	}
	return 0, 0
}

// detach copies arrays so the published status does not share storage with
// values the script may mutate on the next tick.
func detach(v any) any {
	a, ok := v.(*vm.Array)
	if !ok {
		return v
	}
	elems := make([]any, len(a.Elems))
	for i, e := range a.Elems {
		elems[i] = detach(e)
	}
	return vm.NewArray(elems...)
}
