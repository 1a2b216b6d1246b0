package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/scripting"
	"github.com/cory-johannsen/subjugate/internal/storage/postgres"
)

// WebSocketPath is the HTTP path upgraded to the game protocol.
const WebSocketPath = "/ws"

// startHour is the in-game hour the clock reads at process start.
const startHour gameserver.GameHour = 8

// app holds the long-running services assembled by initializeApp.
type app struct {
	pool      *postgres.Pool
	stores    *postgres.Stores
	scheduler *gameserver.Scheduler
	tcp       *network.Acceptor
	ws        *network.WebSocketAcceptor // nil when gameserver.websocket_port is 0
	admin     *gameserver.AdminServer    // nil when gameserver.admin_port is 0
}

func newApp(pool *postgres.Pool, stores *postgres.Stores, scheduler *gameserver.Scheduler, tcp *network.Acceptor, ws *network.WebSocketAcceptor, admin *gameserver.AdminServer) *app {
	return &app{pool: pool, stores: stores, scheduler: scheduler, tcp: tcp, ws: ws, admin: admin}
}

func provideNow() func() time.Time { return time.Now }

func provideRoller(logger *zap.Logger) *dice.Roller {
	return dice.NewRoller(dice.NewCryptoSource(), logger)
}

func providePool(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Pool, func(), error) {
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pool, pool.Close, nil
}

// providePostgresStores builds the repositories and clears online flags
// left behind by an unclean shutdown.
func providePostgresStores(ctx context.Context, pool *postgres.Pool) (*postgres.Stores, error) {
	stores := postgres.NewStores(pool.DB())
	if err := stores.Characters.ResetOnline(ctx); err != nil {
		return nil, fmt.Errorf("resetting online flags: %w", err)
	}
	return stores, nil
}

func provideStores(s *postgres.Stores) gameserver.Stores {
	return gameserver.Stores{
		Accounts:       s.Accounts,
		Sessions:       s.Sessions,
		Characters:     s.Characters,
		Territories:    s.Territories,
		Reincarnations: s.Reincarnations,
		Log:            s.Log,
	}
}

func provideContent(cfg config.Config, logger *zap.Logger) (gameserver.Content, error) {
	start := time.Now()
	content, err := gameserver.LoadContent(cfg.Content)
	if err != nil {
		return gameserver.Content{}, err
	}
	logger.Info("content loaded",
		zap.Int("npc_templates", len(content.Templates)),
		zap.Int("spawn_directives", len(content.Spawns)),
		zap.Int("territories", len(content.Territories)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

func provideWorld(ctx context.Context, cfg config.Config, content gameserver.Content, stores gameserver.Stores, roller *dice.Roller, now func() time.Time, logger *zap.Logger) (*gameserver.World, error) {
	return gameserver.NewWorld(ctx, cfg, content, stores, roller, now, logger)
}

// provideEvents loads the world-event scripts. It returns nil when
// content.script_dir is empty.
func provideEvents(cfg config.Config, roller *dice.Roller, logger *zap.Logger) (*scripting.Manager, func(), error) {
	if cfg.Content.ScriptDir == "" {
		logger.Info("world event scripting disabled")
		return nil, func() {}, nil
	}
	events := scripting.NewManager(roller, 0, logger)
	if err := events.LoadDir(cfg.Content.ScriptDir); err != nil {
		events.Close()
		return nil, nil, err
	}
	return events, events.Close, nil
}

func provideQueue(cfg config.Config) *gameserver.CommandQueue {
	return gameserver.NewCommandQueue(cfg.GameServer.CommandQueue, cfg.GameServer.SessionCommandLimit)
}

func provideGameClock(now func() time.Time, roller *dice.Roller) *gameserver.GameClock {
	return gameserver.NewGameClock(now(), startHour, gameserver.DefaultDayLength, gameserver.DefaultWeatherInterval, roller)
}

func provideNetworkOptions(cfg config.Config) network.Options {
	return network.Options{
		SendQueue:    cfg.GameServer.SendQueue,
		WriteTimeout: cfg.GameServer.WriteTimeout,
	}
}

func provideAcceptor(cfg config.Config, opts network.Options, handler *gameserver.Handler, logger *zap.Logger) *network.Acceptor {
	return network.NewAcceptor(cfg.GameServer.Addr(), opts, handler, logger)
}

func provideWebSocket(cfg config.Config, opts network.Options, handler *gameserver.Handler, logger *zap.Logger) *network.WebSocketAcceptor {
	if cfg.GameServer.WebSocketPort == 0 {
		return nil
	}
	return network.NewWebSocketAcceptor(cfg.GameServer.WebSocketAddr(), WebSocketPath, opts, handler, logger)
}

func provideAdmin(cfg config.Config, scheduler *gameserver.Scheduler, now func() time.Time, logger *zap.Logger) *gameserver.AdminServer {
	if cfg.GameServer.AdminPort == 0 {
		return nil
	}
	return gameserver.NewAdminServer(cfg.GameServer.AdminAddr(), scheduler.Healthy, now, logger)
}
