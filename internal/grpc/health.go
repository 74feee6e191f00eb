// Package grpc exposes the service's gRPC health endpoint.
package grpc

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"lineup-chat/internal/observability"
)

// ServiceName is the health service name reported for the chat backend.
const ServiceName = "lineup.chat"

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer reports SERVING while the database answers pings.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
}

func NewHealthServer(pinger Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: server, health: hs, pinger: pinger, interval: interval}
}

// Server returns the underlying grpc.Server for Serve and GracefulStop.
func (h *HealthServer) Server() *grpc.Server {
	return h.server
}

// Check pings the database once and updates the reported status.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	pingCtx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()
	if err := h.pinger.PingContext(pingCtx); err != nil {
		log.Warn("health check failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
	return status
}

// Run re-checks on every interval until ctx is done, then marks the service down.
func (h *HealthServer) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
