package reload

import (
	"fmt"

	"github.com/chazu/olive/vm"
)

// Phase is the coordinator's state machine position.
type Phase int

const (
	Idle Phase = iota
	Compiling
	Active
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Active:
		return "active"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// edges lists every legal transition. Active -> Failed is taken when the
// running unit raises a runtime error; Failed -> Failed when the last good
// unit fails after a compile error.
var edges = map[Phase][]Phase{
	Idle:      {Compiling},
	Compiling: {Active, Failed},
	Active:    {Compiling, Failed},
	Failed:    {Compiling, Failed},
}

func allowed(from, to Phase) bool {
	for _, p := range edges[from] {
		if p == to {
			return true
		}
	}
	return false
}

// State is a snapshot of the coordinator. In Active, Unit is the running
// unit. In Failed, Unit is the last unit that compiled (nil if none has)
// and Err the failure. In Compiling, Unit is whatever was running before.
type State struct {
	Phase Phase
	Unit  *vm.Unit
	Err   error
}

func (s State) String() string {
	switch s.Phase {
	case Active:
		return fmt.Sprintf("active(%s)", s.Unit.ID)
	case Failed:
		if s.Unit != nil {
			return fmt.Sprintf("failed(%v, last good %s)", s.Err, s.Unit.ID)
		}
		return fmt.Sprintf("failed(%v)", s.Err)
	}
	return s.Phase.String()
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeUnchanged OutcomeKind = iota
	OutcomeSwapped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSwapped:
		return "swapped"
	case OutcomeFailed:
		return "failed"
	}
	return "unchanged"
}

// Outcome is the result of one Poll: Swapped(Unit), Unchanged, or
// Failed(Err). Unchanged may carry the watch error that prevented a check.
type Outcome struct {
	Kind   OutcomeKind
	Unit   *vm.Unit
	Err    error
	Path   string
	Digest string
}
