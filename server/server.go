// Package server exposes a live runtime to the outside: a Connect control
// API, a gRPC health service and a language server for script editors.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/olive/live"
)

var log = commonlog.GetLogger("olive.server")

// OliveServer serves the control API over HTTP/1.1 to Connect and gRPC-Web
// clients.
type OliveServer struct {
	control *ControlService
	mux     *http.ServeMux
	srv     *http.Server
}

// New creates an OliveServer for rt.
func New(rt *live.Runtime, opts ...connect.HandlerOption) *OliveServer {
	s := &OliveServer{
		control: NewControlService(rt),
		mux:     http.NewServeMux(),
	}
	s.srv = &http.Server{Handler: s.mux}

	s.mux.Handle(SetScriptPathProcedure, connect.NewUnaryHandler(SetScriptPathProcedure, s.control.SetScriptPath, opts...))
	s.mux.Handle(StatusProcedure, connect.NewUnaryHandler(StatusProcedure, s.control.Status, opts...))
	s.mux.Handle(ReloadProcedure, connect.NewUnaryHandler(ReloadProcedure, s.control.Reload, opts...))
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *OliveServer) Handler() http.Handler {
	return s.mux
}

// Serve serves the control API on lis until Shutdown.
func (s *OliveServer) Serve(lis net.Listener) error {
	log.Infof("control service listening on %s", lis.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", lis.Addr(), StatusProcedure)
	err := s.srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server.
func (s *OliveServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
