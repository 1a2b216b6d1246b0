package gameserver_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

func TestAdmin_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 110, 100, false)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminKick, Target: "Brom"})
	h.tick()

	a.expectError("forbidden")
	assert.False(t, b.sess.Closed())
	assert.Empty(t, h.db.logged(storage.LogAdmin))
}

func TestAdmin_Kick(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)
	b := h.connect()
	pb := b.enter("Brom", 110, 100, false)

	a.send(protocol.KickPlayer, protocol.AdminRequest{Target: "Brom", Reason: "afk"})
	h.tick()

	var kv protocol.KV
	b.rec.Expect(protocol.KickPlayer, &kv, wait)
	assert.Equal(t, "afk", kv.String("reason"))
	require.True(t, b.closed(), "the kicked session closes after the notice is flushed")

	a.rec.Expect(protocol.AdminCommand, &kv, wait)
	assert.True(t, kv.Bool("ok"))
	assert.Equal(t, gameserver.AdminKick, kv.String("command"))
	assert.Len(t, h.db.logged(storage.LogAdmin), 1)

	_, ok := h.world.Registry.Player(pb.ID())
	assert.False(t, ok, "the kicked player leaves the world in the tick that kicks it")
	assert.Empty(t, h.world.Registry.Nearby(world.Vector3{X: 110, Z: 100}, 1, world.CategoryPlayer))
	assert.False(t, h.db.stored(pb.CharacterID).Online)
}

func TestAdmin_KickUnknownPlayer(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminKick, Target: "Nobody"})
	h.tick()
	a.expectError("no_target")
}

func TestAdmin_BanKeepsAdminFlag(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)
	b := h.connect()
	pb := b.enter("Brom", 110, 100, true)

	a.send(protocol.BanPlayer, protocol.AdminRequest{Target: "Brom", Reason: "cheating"})
	h.tick()

	b.rec.Wait(protocol.BanPlayer, 1, wait)
	b.rec.Wait(protocol.KickPlayer, 1, wait)
	require.True(t, b.closed())

	acct, err := fakeAccounts{h.db}.GetByID(context.Background(), pb.AccountID)
	require.NoError(t, err)
	assert.True(t, acct.Banned)
	assert.True(t, acct.Admin)

	c := h.connect()
	res := c.login(acct.Username, "secret")
	assert.False(t, res.Success)
}

func TestAdmin_MuteAndUnmute(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)
	b := h.connect()
	b.enter("Brom", 110, 100, false)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminMute, Target: "Brom", Reason: "1m"})
	h.tick()
	a.rec.Wait(protocol.AdminCommand, 1, wait)

	b.send(protocol.ChatMessage, protocol.Chat{Channel: gameserver.ChannelGlobal, Text: "let me speak"})
	h.tick()
	b.expectError("chat_rejected")

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminUnmute, Target: "Brom"})
	h.tick()
	h.clk.Advance(gameserver.ChatCooldown)
	b.send(protocol.ChatMessage, protocol.Chat{Channel: gameserver.ChannelGlobal, Text: "thanks"})
	h.tick()

	var msg protocol.Chat
	a.rec.Expect(protocol.ChatMessage, &msg, wait)
	assert.Equal(t, "thanks", msg.Text)
}

func TestAdmin_MuteRejectsBadDuration(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)
	b := h.connect()
	b.enter("Brom", 110, 100, false)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminMute, Target: "Brom", Reason: "forever"})
	h.tick()
	a.expectError("admin_failed")
}

func TestAdmin_Announce(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)
	b := h.connect()
	b.enter("Brom", 900, 900, false)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminAnnounce, Reason: "server restart in 5 minutes"})
	h.tick()

	var msg protocol.Chat
	b.rec.Expect(protocol.WorldAnnouncement, &msg, wait)
	assert.Equal(t, "server restart in 5 minutes", msg.Text)
	assert.Equal(t, gameserver.ChannelAnnounce, msg.Channel)
}

func TestAdmin_Shutdown(t *testing.T) {
	h := newHarness(t)
	var called atomic.Bool
	h.sched.Shutdown = func() { called.Store(true) }
	a := h.connect()
	a.enter("Ayla", 100, 100, true)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: gameserver.AdminShutdown, Reason: "maintenance"})
	h.tick()

	var kv protocol.KV
	a.rec.Expect(protocol.ServerShutdown, &kv, wait)
	assert.Equal(t, "maintenance", kv.String("reason"))
	assert.Eventually(t, called.Load, wait, 10*time.Millisecond)
}

func TestAdmin_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, true)

	a.send(protocol.AdminCommand, protocol.AdminRequest{Command: "teleport"})
	h.tick()
	a.expectError("admin_failed")
}
