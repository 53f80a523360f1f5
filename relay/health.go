package relay

import (
	"errors"
	"log/slog"
	"net"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const HealthService = "session-lab.relay"

// Health exposes the standard gRPC health protocol for the relay.
type Health struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewHealth(log *slog.Logger) *Health {
	h := health.NewServer()
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(log)))
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	return &Health{log: log, server: s, health: h}
}

// Serve blocks until Stop is called or the listener fails.
func (h *Health) Serve(lis net.Listener) error {
	h.log.Info("Starting gRPC health server", "address", lis.Addr().String(), "at", time.Now().UTC())
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *Health) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(HealthService, st)
}

func (h *Health) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
