package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/library-lending/internal/port"
)

// LendingServiceName is the service name reported next to the overall ("") status.
const LendingServiceName = "library.Lending"

// GRPCHealth publishes store health over the standard grpc.health.v1 service.
type GRPCHealth struct {
	server *health.Server
	store  port.Pinger
	logger *slog.Logger
}

func NewGRPCHealth(store port.Pinger, logger *slog.Logger) *GRPCHealth {
	h := &GRPCHealth{
		server: health.NewServer(),
		store:  store,
		logger: logger,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Refresh pings the store once and publishes the result.
func (h *GRPCHealth) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "store ping failed", "error", err)
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

// Watch refreshes the status every interval until ctx is done.
func (h *GRPCHealth) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING from now on, later refreshes are ignored.
func (h *GRPCHealth) Shutdown() {
	h.server.Shutdown()
}

func (h *GRPCHealth) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(LendingServiceName, status)
}
