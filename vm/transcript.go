package vm

import (
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var scriptLog = commonlog.GetLogger("olive.script")

// Transcript is the script-visible console. Text accumulates until a line
// ends and is then written to the sink, which logs by default.
type Transcript struct {
	mu   sync.Mutex
	buf  strings.Builder
	sink func(line string)
}

// DefaultTranscript is bound to the Transcript global in every unit.
var DefaultTranscript = NewTranscript(func(line string) {
	scriptLog.Noticef("%s", line)
})

// NewTranscript creates a transcript writing complete lines to sink.
func NewTranscript(sink func(line string)) *Transcript {
	return &Transcript{sink: sink}
}

// SetSink replaces the line sink.
func (t *Transcript) SetSink(sink func(line string)) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

func (t *Transcript) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			t.buf.WriteString(s)
			return
		}
		t.buf.WriteString(s[:i])
		line := t.buf.String()
		t.buf.Reset()
		if t.sink != nil {
			t.sink(line)
		}
		s = s[i+1:]
	}
}

func registerTranscriptPrimitives() {
	c := transcriptPrim
	c.def1("show:", func(recv, arg any) (any, error) {
		recv.(*Transcript).write(DisplayString(arg))
		return recv, nil
	})
	c.def1("showln:", func(recv, arg any) (any, error) {
		recv.(*Transcript).write(DisplayString(arg) + "\n")
		return recv, nil
	})
	c.def1("print:", func(recv, arg any) (any, error) {
		recv.(*Transcript).write(PrintString(arg))
		return recv, nil
	})
	c.def0("cr", func(recv any) (any, error) {
		recv.(*Transcript).write("\n")
		return recv, nil
	})
	c.def0("tab", func(recv any) (any, error) {
		recv.(*Transcript).write("\t")
		return recv, nil
	})
	c.def0("space", func(recv any) (any, error) {
		recv.(*Transcript).write(" ")
		return recv, nil
	})
}
