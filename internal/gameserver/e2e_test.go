package gameserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/testutil"
)

func TestTCP_RegisterLoginEnterWorld(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a listener and the tick loop")
	}
	h := newHarness(t)
	acceptor := network.NewAcceptor("127.0.0.1:0", network.Options{SendQueue: 64}, h.handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)
	go func() { errCh <- acceptor.Start(ctx) }()
	go func() { errCh <- h.sched.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		acceptor.Stop()
		h.sched.Stop()
		<-errCh
		<-errCh
	})
	require.Eventually(t, acceptor.IsRunning, wait, 10*time.Millisecond)

	c := testutil.NewClient(t, acceptor.Addr())
	defer c.Close()

	var hello protocol.KV
	c.Expect(protocol.Handshake, &hello, wait)
	assert.Equal(t, "test", hello.String("shard"))

	c.Send(protocol.RegisterRequest, protocol.Credentials{Username: "ayla", Password: "secret"})
	var reg protocol.AuthResult
	c.Expect(protocol.RegisterResponse, &reg, wait)
	require.True(t, reg.Success, reg.Message)

	c.Send(protocol.LoginRequest, protocol.Credentials{Username: "ayla", Password: "secret"})
	var login protocol.AuthResult
	c.Expect(protocol.LoginResponse, &login, wait)
	require.True(t, login.Success, login.Message)

	c.Send(protocol.CharacterCreate, protocol.CharacterRequest{Name: "Ayla"})
	var list protocol.CharacterList
	c.Expect(protocol.CharacterListResponse, &list, wait)
	require.Len(t, list.Characters, 1)
	charID := list.Characters[0].ID

	c.Send(protocol.EnterWorld, protocol.EnterWorldRequest{Token: login.Token, CharacterID: charID})
	var info protocol.KV
	c.Expect(protocol.CharacterInfo, &info, wait)
	assert.Equal(t, "Ayla", info.String("name"))
	assert.NotZero(t, info.Int("entity_id"))
	assert.Eventually(t, func() bool { return h.db.stored(charID).Online }, wait, 10*time.Millisecond)

	c.Send(protocol.Ping, protocol.Heartbeat{UnixMillis: 7})
	var pong protocol.Heartbeat
	c.Expect(protocol.Pong, &pong, wait)
	assert.Equal(t, int64(7), pong.UnixMillis)

	c.Close()
	assert.Eventually(t, func() bool { return !h.db.stored(charID).Online }, wait, 10*time.Millisecond,
		"closing the connection saves the character offline")
}
