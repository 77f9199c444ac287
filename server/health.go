package server

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/chazu/olive/reload"
)

// Health serves grpc.health.v1. Both the overall status ("") and the control
// service report SERVING while a valid unit is active.
type Health struct {
	health *health.Server
	grpc   *grpc.Server
	unsub  func()
}

// NewHealth creates a health server that follows coord.
func NewHealth(coord *reload.Coordinator) *Health {
	h := &Health{
		health: health.NewServer(),
		grpc:   grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.set(coord.Active() != nil)
	h.unsub = coord.Subscribe(func(reload.Outcome) {
		h.set(coord.Active() != nil)
	})
	return h
}

func (h *Health) set(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ControlServiceName, status)
}

// Serve accepts health checks on lis until Stop.
func (h *Health) Serve(lis net.Listener) error {
	log.Infof("health service listening on %s", lis.Addr())
	return h.grpc.Serve(lis)
}

// Stop unsubscribes and shuts the gRPC server down.
func (h *Health) Stop() {
	h.unsub()
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
