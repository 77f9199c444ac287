package main

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/olive/host"
	"github.com/chazu/olive/vm"
)

var demoLog = commonlog.GetLogger("olive.demo")

// newPersistentProgram declares the demo host type under name, which is what
// scripts write in their parameter annotation. The camera and the
// counter live in the state registry; everything else is reset whenever a
// new script version is swapped in.
func newPersistentProgram(name string) *host.Type {
	return host.NewType(name, host.Program()).
		AddField(host.Field{
			Name:       "camera",
			Persistent: true,
			ReadOnly:   true,
			Doc:        "Capture device opened once at startup. Send it nextFrame to grab a frame.",
		}).
		AddField(host.Field{
			Name:       "counter",
			Default:    int64(0),
			Persistent: true,
			Doc:        "General purpose counter that survives reloads.",
		}).
		AddField(host.Field{
			Name:    "background",
			Default: "black",
			Doc:     "Clear colour for the next frame.",
		}).
		AddMethod("say:", 1, func(h *host.Host, args []any) (any, error) {
			demoLog.Noticef("%s", vm.DisplayString(args[0]))
			return h, nil
		}, "Log a message from the script.")
}

// Camera is a simulated capture device: it counts the frames it has been
// asked for.
type Camera struct {
	width, height int64
	frames        int64
}

// NewCamera opens a simulated camera.
func NewCamera(width, height int) *Camera {
	return &Camera{width: int64(width), height: int64(height)}
}

// Respond implements host.Responder.
func (c *Camera) Respond(selector string, args []any) (any, error) {
	switch selector {
	case "nextFrame":
		c.frames++
		return c.frames, nil
	case "frameCount":
		return c.frames, nil
	case "width":
		return c.width, nil
	case "height":
		return c.height, nil
	case "isOpen":
		return true, nil
	}
	return nil, fmt.Errorf("%w: Camera>>%s", host.ErrNotUnderstood, selector)
}

func (c *Camera) String() string {
	return fmt.Sprintf("a Camera (%dx%d)", c.width, c.height)
}

// newDemoHost builds the host and opens its camera.
func newDemoHost(name string, width, height int) (*host.Host, error) {
	h, err := host.New(newPersistentProgram(name), host.Options{Width: width, Height: height})
	if err != nil {
		return nil, err
	}
	if err := h.Set("camera", NewCamera(width, height)); err != nil {
		return nil, err
	}
	return h, nil
}
