package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/olive/live"
	"github.com/chazu/olive/vm"
)

// Control service procedures. Messages are protobuf well-known types, so
// clients need no generated code.
const (
	ControlServiceName         = "olive.v1.ControlService"
	SetScriptPathProcedure     = "/" + ControlServiceName + "/SetScriptPath"
	StatusProcedure            = "/" + ControlServiceName + "/Status"
	ReloadProcedure            = "/" + ControlServiceName + "/Reload"
	defaultControlRequestLimit = 5 * time.Second
)

// ControlService implements the control API over a live runtime.
type ControlService struct {
	runtime *live.Runtime
	timeout time.Duration
}

// NewControlService creates a ControlService.
func NewControlService(rt *live.Runtime) *ControlService {
	return &ControlService{runtime: rt, timeout: defaultControlRequestLimit}
}

// SetScriptPath points the runtime at a different script file, as a drag
// and drop onto the window would.
func (s *ControlService) SetScriptPath(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	path := req.Msg.GetValue()
	if path == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("path is required"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if info.IsDir() {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is a directory", path))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.runtime.SetScriptPath(ctx, path); err != nil {
		return nil, runtimeError(err)
	}
	return s.status()
}

// Status reports the reload state and host fields.
func (s *ControlService) Status(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.status()
}

// Reload forces the next tick to recompile the current script.
func (s *ControlService) Reload(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.runtime.ForceReload(ctx); err != nil {
		return nil, runtimeError(err)
	}
	return s.status()
}

func (s *ControlService) status() (*connect.Response[structpb.Struct], error) {
	msg, err := StatusStruct(s.runtime.Status())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func runtimeError(err error) error {
	if errors.Is(err, live.ErrStopped) {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// StatusStruct converts a runtime status into a protobuf Struct.
func StatusStruct(st live.Status) (*structpb.Struct, error) {
	fields := make(map[string]any, len(st.Fields))
	names := make([]string, 0, len(st.Fields))
	for name := range st.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields[name] = structValue(st.Fields[name])
	}

	m := map[string]any{
		"phase":    st.Phase,
		"script":   st.ScriptPath,
		"frame":    st.Frame,
		"seconds":  st.Seconds,
		"ticks":    st.Ticks,
		"swaps":    st.Swaps,
		"failures": st.Failures,
		"fields":   fields,
	}
	if st.UnitID != "" {
		m["unit"] = st.UnitID
		m["digest"] = st.Digest
		m["compiledAt"] = st.CompiledAt.UTC().Format(time.RFC3339Nano)
	}
	if st.Error != "" {
		m["error"] = map[string]any{
			"message": st.Error,
			"line":    st.ErrorLine,
			"column":  st.ErrorColumn,
		}
	}
	return structpb.NewStruct(m)
}

// structValue maps a script value onto what structpb accepts.
func structValue(v any) any {
	switch v := v.(type) {
	case nil, bool, int64, float64, string:
		return v
	case vm.Symbol:
		return string(v)
	case *vm.Array:
		elems := v.Elems
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = structValue(e)
		}
		return out
	default:
		return vm.PrintString(v)
	}
}
