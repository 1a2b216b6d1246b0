// Package main provides the world server binary: it loads content, connects
// to PostgreSQL, and serves the binary game protocol over TCP and WebSocket
// with a gRPC health endpoint for orchestration.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/observability"
	"github.com/cory-johannsen/subjugate/internal/server"
)

// housekeepingInterval spaces database health checks and expired-token purges.
const housekeepingInterval = 30 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, zap.String("shard", cfg.Server.Shard))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting world server",
		zap.String("mode", cfg.Server.Mode),
		zap.Int("tick_rate", cfg.Tick.Rate),
		zap.Int("network_rate", cfg.Tick.NetworkRate),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, cleanup, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("initializing world server", zap.Error(err))
	}
	defer cleanup()
	a.scheduler.Shutdown = cancel

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(housekeepingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
				if err := a.pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
					continue
				}
				n, err := a.stores.Sessions.PurgeExpired(ctx)
				if err != nil {
					logger.Warn("purging expired session tokens", zap.Error(err))
				} else if n > 0 {
					logger.Debug("purged expired session tokens", zap.Int64("count", n))
				}
			}
		},
	})

	lifecycle.Add("scheduler", &server.FuncService{
		StartFn: a.scheduler.Start,
		StopFn:  a.scheduler.Stop,
	})

	lifecycle.Add("tcp", &server.FuncService{
		StartFn: a.tcp.Start,
		StopFn:  a.tcp.Stop,
	})

	if a.ws != nil {
		lifecycle.Add("websocket", &server.FuncService{
			StartFn: a.ws.Start,
			StopFn:  a.ws.Stop,
		})
	}

	if a.admin != nil {
		lifecycle.Add("admin", &server.FuncService{
			StartFn: a.admin.Start,
			StopFn:  a.admin.Stop,
		})
	}

	logger.Info("world server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("tcp_addr", cfg.GameServer.Addr()),
		zap.String("websocket_addr", cfg.GameServer.WebSocketAddr()),
		zap.String("admin_addr", cfg.GameServer.AdminAddr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
