// Package main provides the all-in-one development server. It runs the world
// server against an embedded SQLite database so no PostgreSQL instance is needed.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/observability"
	"github.com/cory-johannsen/subjugate/internal/scripting"
	"github.com/cory-johannsen/subjugate/internal/server"
	"github.com/cory-johannsen/subjugate/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	dbPath := flag.String("db", "", "sqlite database file; overrides database.path")
	seed := flag.Uint64("seed", 0, "deterministic dice seed; 0 uses crypto randomness")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg.Database.Driver = "sqlite"
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging, zap.String("shard", cfg.Server.Shard))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting development server",
		zap.String("mode", cfg.Server.Mode),
		zap.String("database", cfg.Database.Path),
	)

	// Open SQLite
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dbStart := time.Now()
	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	repos := sqlite.NewStores(db)
	if err := repos.Characters.ResetOnline(ctx); err != nil {
		logger.Fatal("resetting online flags", zap.Error(err))
	}
	logger.Info("database opened",
		zap.String("path", cfg.Database.Path),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	stores := gameserver.Stores{
		Accounts:       repos.Accounts,
		Sessions:       repos.Sessions,
		Characters:     repos.Characters,
		Territories:    repos.Territories,
		Reincarnations: repos.Reincarnations,
		Log:            repos.Log,
	}

	// Build the world
	src := dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}
	roller := dice.NewRoller(src, logger)

	content, err := gameserver.LoadContent(cfg.Content)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	w, err := gameserver.NewWorld(ctx, cfg, content, stores, roller, time.Now, logger)
	if err != nil {
		logger.Fatal("building world", zap.Error(err))
	}

	var events *scripting.Manager
	if cfg.Content.ScriptDir != "" {
		events = scripting.NewManager(roller, 0, logger)
		if err := events.LoadDir(cfg.Content.ScriptDir); err != nil {
			logger.Fatal("loading world event scripts", zap.Error(err))
		}
		defer events.Close()
	}

	// Build services
	sessions := network.NewManager()
	queue := gameserver.NewCommandQueue(cfg.GameServer.CommandQueue, cfg.GameServer.SessionCommandLimit)
	chat := gameserver.NewChatService(time.Now, logger)
	clock := gameserver.NewGameClock(time.Now(), 8, gameserver.DefaultDayLength, gameserver.DefaultWeatherInterval, roller)
	scheduler := gameserver.NewScheduler(cfg, w, sessions, queue, chat, clock, events, stores, time.Now, logger)
	scheduler.Shutdown = cancel
	handler := gameserver.NewHandler(cfg, sessions, queue, stores, time.Now, logger)

	opts := network.Options{SendQueue: cfg.GameServer.SendQueue, WriteTimeout: cfg.GameServer.WriteTimeout}
	tcp := network.NewAcceptor(cfg.GameServer.Addr(), opts, handler, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("scheduler", &server.FuncService{
		StartFn: scheduler.Start,
		StopFn:  scheduler.Stop,
	})

	lifecycle.Add("tcp", &server.FuncService{
		StartFn: tcp.Start,
		StopFn:  tcp.Stop,
	})

	if cfg.GameServer.WebSocketPort != 0 {
		ws := network.NewWebSocketAcceptor(cfg.GameServer.WebSocketAddr(), "/ws", opts, handler, logger)
		lifecycle.Add("websocket", &server.FuncService{
			StartFn: ws.Start,
			StopFn:  ws.Stop,
		})
	}

	logger.Info("development server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("tcp_addr", cfg.GameServer.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
