package gameserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name whose status tracks the tick loop.
const HealthService = "subjugate.World"

// HealthProbeInterval is how often the admin server re-checks the tick loop.
const HealthProbeInterval = time.Second

// AdminServer serves the standard gRPC health protocol. Both the overall
// status and HealthService report SERVING while healthy returns true.
type AdminServer struct {
	addr    string
	healthy func(time.Time) bool
	now     func() time.Time
	logger  *zap.Logger

	server *grpc.Server
	health *health.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewAdminServer creates an AdminServer listening on addr.
//
// Precondition: healthy, now and logger must be non-nil.
func NewAdminServer(addr string, healthy func(time.Time) bool, now func() time.Time, logger *zap.Logger) *AdminServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &AdminServer{
		addr:    addr,
		healthy: healthy,
		now:     now,
		logger:  logger,
		server:  srv,
		health:  hs,
	}
}

// Start listens and serves until Stop is called.
func (a *AdminServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.addr, err)
	}
	a.mu.Lock()
	a.lis = lis
	a.mu.Unlock()

	a.logger.Info("admin health server listening", zap.String("addr", lis.Addr().String()))

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.probe(probeCtx)

	return a.server.Serve(lis)
}

func (a *AdminServer) probe(ctx context.Context) {
	ticker := time.NewTicker(HealthProbeInterval)
	defer ticker.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if a.healthy(a.now()) {
			status = healthpb.HealthCheckResponse_SERVING
		}
		if status != last {
			a.health.SetServingStatus("", status)
			a.health.SetServingStatus(HealthService, status)
			a.logger.Info("health status changed", zap.Stringer("status", status))
			last = status
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (a *AdminServer) Stop() {
	a.health.Shutdown()
	a.server.GracefulStop()
}

// Addr returns the bound address once Start is listening, or the configured
// address before.
func (a *AdminServer) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lis != nil {
		return a.lis.Addr().String()
	}
	return a.addr
}
