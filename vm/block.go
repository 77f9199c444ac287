package vm

import "fmt"

// ---------------------------------------------------------------------------
// Frames and blocks
// ---------------------------------------------------------------------------

// Code is a compiled expression or statement sequence.
type Code func(f *Frame) (any, error)

// Frame holds the variables of one activation. Variables are addressed by
// (depth, index): depth 0 is the frame itself, 1 its lexical parent, and so
// on. The unit's variables live in the outermost frame.
type Frame struct {
	slots []any
	outer *Frame
	home  *Frame
	done  bool
}

// NewFrame creates a frame with size slots whose home (the target of ^) is
// itself.
func NewFrame(size int, outer *Frame) *Frame {
	f := &Frame{slots: make([]any, size), outer: outer}
	f.home = f
	return f
}

// Home returns the frame a ^ inside f returns from.
func (f *Frame) Home() *Frame { return f.home }

// Load reads a variable.
func (f *Frame) Load(depth, index int) any {
	return f.at(depth).slots[index]
}

// Store writes a variable.
func (f *Frame) Store(depth, index int, v any) {
	f.at(depth).slots[index] = v
}

func (f *Frame) at(depth int) *Frame {
	cur := f
	for ; depth > 0; depth-- {
		cur = cur.outer
	}
	return cur
}

// Block is a closure over the frame it was created in.
type Block struct {
	NumArgs  int
	NumSlots int
	Body     Code
	Outer    *Frame
	Home     *Frame
	Pos      Pos
}

// Call evaluates the block with args and returns its last statement's value.
func (b *Block) Call(args []any) (any, error) {
	if len(args) != b.NumArgs {
		return nil, fmt.Errorf("block at %s expects %d arguments, got %d", b.Pos, b.NumArgs, len(args))
	}
	f := &Frame{slots: make([]any, b.NumSlots), outer: b.Outer, home: b.Home}
	copy(f.slots, args)
	return b.Body(f)
}

// NonLocalReturn carries a ^ out of nested blocks to the frame it belongs to.
// It travels as an error so every call boundary can pass it through.
type NonLocalReturn struct {
	Value any
	Home  *Frame
}

func (r *NonLocalReturn) Error() string {
	return "non-local return outside its home context"
}

// Activate runs body as the home activation of frame f, turning a ^ aimed at
// f into a normal result.
func Activate(f *Frame, body Code) (any, error) {
	defer func() { f.done = true }()
	v, err := body(f)
	if err != nil {
		if nlr, ok := err.(*NonLocalReturn); ok && nlr.Home == f {
			return nlr.Value, nil
		}
		return nil, err
	}
	return v, nil
}

// Return builds the error value for ^v evaluated in f.
func Return(f *Frame, v any) error {
	if f.home == nil || f.home.done {
		return fmt.Errorf("block cannot return: its home context has finished")
	}
	return &NonLocalReturn{Value: v, Home: f.home}
}

// Sequence runs statements in order, yielding the last value.
func Sequence(stmts []Code) Code {
	return func(f *Frame) (any, error) {
		var last any
		for _, s := range stmts {
			v, err := s(f)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	}
}

// MakeBlock returns Code that creates a closure over the current frame.
func MakeBlock(numArgs, numSlots int, body Code, pos Pos) Code {
	return func(f *Frame) (any, error) {
		return &Block{
			NumArgs:  numArgs,
			NumSlots: numSlots,
			Body:     body,
			Outer:    f,
			Home:     f.home,
			Pos:      pos,
		}, nil
	}
}
