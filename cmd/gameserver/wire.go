//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/network"
)

var storageSet = wire.NewSet(
	providePool,
	providePostgresStores,
	provideStores,
)

var worldSet = wire.NewSet(
	provideNow,
	provideRoller,
	provideContent,
	provideWorld,
	provideEvents,
	provideGameClock,
)

var serverSet = wire.NewSet(
	network.NewManager,
	provideQueue,
	gameserver.NewChatService,
	gameserver.NewScheduler,
	gameserver.NewHandler,
	provideNetworkOptions,
	provideAcceptor,
	provideWebSocket,
	provideAdmin,
)

// initializeApp assembles every service of the world server.
func initializeApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, func(), error) {
	wire.Build(storageSet, worldSet, serverSet, newApp)
	return nil, nil, nil
}
