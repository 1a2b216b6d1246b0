package gameserver_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/subjugate/internal/gameserver"
)

func TestAdminServer_ReflectsTickHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := gameserver.NewAdminServer("127.0.0.1:0", func(time.Time) bool { return healthy.Load() }, time.Now, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	t.Cleanup(func() {
		srv.Stop()
		<-errCh
	})

	require.Eventually(t, func() bool { return srv.Addr() != "127.0.0.1:0" }, 5*time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	status := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(ctx, time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	assert.Eventually(t, func() bool {
		return status(gameserver.HealthService) == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(""))

	healthy.Store(false)
	assert.Eventually(t, func() bool {
		return status(gameserver.HealthService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 3*gameserver.HealthProbeInterval+time.Second, 20*time.Millisecond)
}
