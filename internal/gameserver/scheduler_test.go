package gameserver_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/scripting"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

func spawnIDs(t *testing.T, frames []protocol.Frame) []uint64 {
	t.Helper()
	var ids []uint64
	for _, f := range frames {
		var sp protocol.Spawn
		require.NoError(t, sp.UnmarshalBinary(f.Payload))
		ids = append(ids, sp.EntityID)
	}
	return ids
}

func TestEnterWorld_SpawnsForNeighbours(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	pa := a.enter("Ayla", 100, 100, false)
	b := h.connect()
	pb := b.enter("Brom", 110, 100, false)

	assert.ElementsMatch(t, []uint64{pa.ID(), pb.ID()}, spawnIDs(t, b.rec.Wait(protocol.PlayerSpawn, 2, wait)),
		"the newcomer sees itself and its neighbour")
	assert.ElementsMatch(t, []uint64{pa.ID(), pb.ID()}, spawnIDs(t, a.rec.Wait(protocol.PlayerSpawn, 2, wait)),
		"the neighbour is told about the newcomer")

	assert.True(t, h.db.stored(pb.CharacterID).Online)
	assert.Equal(t, pb.ID(), b.sess.PlayerID())
	b.rec.Wait(protocol.TerritoryInfo, 1, wait)
	b.rec.Wait(protocol.WeatherUpdate, 1, wait)
}

func TestEnterWorld_DistantPlayersStayHidden(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 900, 900, false)
	h.ticks(4)

	assert.Len(t, a.rec.Of(protocol.PlayerSpawn), 1, "only the self spawn")
	assert.Len(t, b.rec.Of(protocol.PlayerSpawn), 1, "only the self spawn")
}

func TestEnterWorld_InvalidTokenClosesSession(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	acct := h.db.account("ayla", "secret", false)
	ch := h.db.character(t, acct.ID, "Ayla", 100, 100)

	c.send(protocol.EnterWorld, protocol.EnterWorldRequest{Token: "bogus", CharacterID: ch.ID})

	c.expectError("invalid_token")
	assert.True(t, c.closed())
	h.tick()
	assert.Empty(t, h.world.Registry.Players())
	assert.Zero(t, h.sessions.Count(), "the disconnect is processed on the next tick")
}

func TestEnterWorld_ForeignCharacterClosesSession(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	mine := h.db.account("ayla", "secret", false)
	theirs := h.db.account("brom", "secret", false)
	ch := h.db.character(t, theirs.ID, "Brom", 100, 100)

	c.send(protocol.EnterWorld, protocol.EnterWorldRequest{Token: h.db.token(mine.ID), CharacterID: ch.ID})

	c.expectError("character_mismatch")
	assert.True(t, c.closed())
	assert.False(t, h.db.stored(ch.ID).Online)
}

func TestEnterWorld_Twice(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	c.send(protocol.EnterWorld, protocol.EnterWorldRequest{Token: h.db.token(p.AccountID), CharacterID: p.CharacterID})
	h.tick()

	c.expectError("already_in_world")
	assert.Len(t, h.world.Registry.Players(), 1)
}

func TestCommand_NotInWorld(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.send(protocol.AttackRequest, protocol.Attack{TargetID: 1, Kind: protocol.KindNPC})
	h.tick()
	c.expectError("not_in_world")
}

func TestMove_ClampedToWorldAndBroadcast(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	pa := a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 110, 100, false)

	a.send(protocol.MoveRequest, protocol.Move{X: -50, Y: 3, Z: 120, Rotation: 1.5})
	h.ticks(2)

	assert.Equal(t, world.Vector3{X: 0, Y: 3, Z: 120}, pa.Position())
	var pos protocol.Position
	b.rec.Last(protocol.MoveUpdate, &pos, wait)
	assert.Equal(t, pa.ID(), pos.EntityID)
	assert.Equal(t, 0.0, pos.X)
	assert.Equal(t, 120.0, pos.Z)
	a.rec.Wait(protocol.StatUpdate, 1, wait)
}

func TestMove_RejectsNonFiniteFields(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	pa := a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 110, 100, false)
	h.ticks(2)
	b.rec.Reset()

	for _, m := range []protocol.Move{
		{X: 105, Z: 100, Rotation: math.NaN()},
		{X: 105, Y: math.Inf(1), Z: 100},
		{X: math.Inf(-1), Z: 100},
		{X: 105, Z: math.NaN()},
	} {
		a.send(protocol.MoveRequest, m)
	}
	h.ticks(4)

	assert.Equal(t, world.Vector3{X: 100, Z: 100}, pa.Position())
	assert.Zero(t, pa.Rotation())
	assert.Empty(t, b.rec.Of(protocol.MoveUpdate), "viewers see no update for a dropped move")
}

func TestMove_OutOfViewDespawns(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	pa := a.enter("Ayla", 100, 100, false)
	b := h.connect()
	pb := b.enter("Brom", 110, 100, false)

	b.send(protocol.MoveRequest, protocol.Move{X: 800, Z: 800})
	h.ticks(2)

	var d protocol.Despawn
	a.rec.Expect(protocol.PlayerDespawn, &d, wait)
	assert.Equal(t, pb.ID(), d.EntityID)
	b.rec.Expect(protocol.PlayerDespawn, &d, wait)
	assert.Equal(t, pa.ID(), d.EntityID)

	b.send(protocol.MoveRequest, protocol.Move{X: 105, Z: 100})
	h.ticks(2)
	assert.Len(t, a.rec.Of(protocol.PlayerSpawn), 3, "self, arrival, and return")
}

func TestDisconnect_SavesAndDespawns(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	pa := a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 110, 100, false)

	a.send(protocol.MoveRequest, protocol.Move{X: 120, Z: 90})
	h.tick()
	a.sess.Close()
	h.tick()

	_, ok := h.world.Registry.Player(pa.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, h.sessions.Count())

	saved := h.db.stored(pa.CharacterID)
	assert.False(t, saved.Online)
	assert.Equal(t, 120.0, saved.X)
	assert.Equal(t, 90.0, saved.Z)

	var d protocol.Despawn
	b.rec.Expect(protocol.PlayerDespawn, &d, wait)
	assert.Equal(t, pa.ID(), d.EntityID)
}

func TestLeaveWorld_KeepsSessionOpen(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	c.send(protocol.LeaveWorld, nil)
	h.tick()

	c.rec.Wait(protocol.LeaveWorld, 1, wait)
	assert.Zero(t, c.sess.PlayerID())
	assert.False(t, c.sess.Closed())
	assert.False(t, h.db.stored(p.CharacterID).Online)
	assert.Empty(t, h.world.Registry.Players())
}

func TestHousekeeping_ClosesIdleSessions(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	h.clk.Advance(h.cfg.GameServer.LivenessTimeout + time.Second)
	h.tick()
	require.True(t, c.closed())

	assert.Empty(t, h.world.Registry.Nearby(world.Vector3{X: 100, Z: 100}, 1, world.CategoryPlayer),
		"the idle player leaves the spatial index in the tick that closes it")
	assert.Empty(t, h.world.Registry.Players())
	assert.Zero(t, h.sessions.Count())
	assert.False(t, h.db.stored(p.CharacterID).Online)
}

func TestRegeneration(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	p.HP, p.MP = 10, 0
	h.ticks(h.cfg.Tick.Rate)
	assert.Greater(t, p.HP, 10)
	assert.Greater(t, p.MP, 0)

	p.HP = 10
	p.LastDamaged = h.clk.Now()
	h.ticks(h.cfg.Tick.Rate)
	assert.Equal(t, 10, p.HP, "no health regeneration while in combat")
}

func TestAttack_KillsNPC(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)
	n := h.spawnNPC(dummyTemplate, 101, 100)
	h.ticks(2)
	c.rec.Wait(protocol.NPCSpawn, 1, wait)

	c.send(protocol.AttackRequest, protocol.Attack{TargetID: n.ID(), Kind: protocol.KindNPC})
	h.tick()

	var res protocol.AttackResult
	c.rec.Expect(protocol.AttackResponse, &res, wait)
	assert.True(t, res.Accepted)
	assert.True(t, res.TargetDied)
	assert.Equal(t, n.ID(), res.TargetID)

	_, alive := h.world.Registry.NPC(n.ID())
	assert.False(t, alive)
	assert.Equal(t, 1, h.world.Respawns.Pending())

	var d protocol.Despawn
	c.rec.Expect(protocol.NPCDespawn, &d, wait)
	assert.Equal(t, n.ID(), d.EntityID)

	var loot protocol.LootNotice
	c.rec.Expect(protocol.LootDrop, &loot, wait)
	assert.Equal(t, []int{7001}, loot.ItemIDs)
	assert.Equal(t, n.ID(), loot.NPCID)
	assert.Equal(t, p.ID(), loot.OwnerID)
	assert.NotEmpty(t, loot.DropID)

	c.rec.Wait(protocol.LevelUp, 1, wait)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 1, p.Lifetime.Kills)
	assert.Len(t, h.db.logged(storage.LogLevelUp), 1)
}

func TestAttack_NPCRespawnsAfterDelay(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.enter("Ayla", 100, 100, false)
	n := h.spawnNPC(dummyTemplate, 101, 100)

	c.send(protocol.AttackRequest, protocol.Attack{TargetID: n.ID(), Kind: protocol.KindNPC})
	h.tick()
	require.Empty(t, h.world.Registry.NPCs())

	h.clk.Advance(30 * time.Second)
	h.tick()
	require.Len(t, h.world.Registry.NPCs(), 1)
	assert.Equal(t, dummyTemplate, h.world.Registry.NPCs()[0].TemplateID)
	assert.Zero(t, h.world.Respawns.Pending())
}

func TestAttack_BossKillIsAnnounced(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)
	n := h.spawnNPC(guardianTemplate, 101, 100)

	c.send(protocol.AttackRequest, protocol.Attack{TargetID: n.ID(), Kind: protocol.KindNPC})
	h.tick()

	var msg protocol.Chat
	c.rec.Expect(protocol.WorldAnnouncement, &msg, wait)
	assert.Equal(t, "Ayla has slain Phoenix Guardian!", msg.Text)
	assert.Equal(t, 1, p.Lifetime.BossKills)
}

func TestAttack_OutOfRange(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	c.enter("Ayla", 100, 100, false)
	n := h.spawnNPC(dummyTemplate, 150, 100)

	c.send(protocol.AttackRequest, protocol.Attack{TargetID: n.ID(), Kind: protocol.KindNPC})
	h.tick()

	var res protocol.AttackResult
	c.rec.Expect(protocol.AttackResponse, &res, wait)
	assert.False(t, res.Accepted)
	assert.Equal(t, protocol.ReasonOutOfRange, res.Reason)
	_, alive := h.world.Registry.NPC(n.ID())
	assert.True(t, alive)
}

func TestNPC_KillsPlayerWhoRespawns(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)
	h.spawnNPC(wolfTemplate, 104, 100)

	for i := 0; i < 200 && p.IsAlive(); i++ {
		h.tick()
	}
	require.False(t, p.IsAlive(), "the wolf should have caught and killed the player")

	var death protocol.Death
	c.rec.Expect(protocol.PlayerDied, &death, wait)
	assert.Equal(t, p.ID(), death.VictimID)
	assert.Equal(t, protocol.KindNPC, death.KillerKind)
	assert.Equal(t, uint32(h.cfg.Tick.RespawnDelay/time.Millisecond), death.RespawnMillis)
	assert.Len(t, h.db.logged(storage.LogDeath), 1)

	h.tick()
	assert.False(t, p.IsAlive(), "no respawn before the delay")

	h.clk.Advance(h.cfg.Tick.RespawnDelay)
	h.tick()

	var r protocol.Respawn
	c.rec.Expect(protocol.Respawned, &r, wait)
	assert.Equal(t, p.ID(), r.EntityID)
	assert.True(t, p.IsAlive())
	assert.Equal(t, world.Vector3{X: h.cfg.World.SpawnX, Z: h.cfg.World.SpawnZ}, p.Position())
	assert.Equal(t, p.EffectiveMaxHP(), p.HP)
}

func TestTerritory_CaptureThroughScheduler(t *testing.T) {
	keep := territory.Definition{
		ID:             1,
		Name:           "Phoenix Keep",
		Center:         territory.Point{X: 500, Z: 500},
		Radius:         30,
		RequiredPoints: 100,
		Buff:           character.Buff{HP: 50, Attack: 5},
	}
	h := newHarness(t, withTerritories(keep))
	c := h.connect()
	p := c.enter("Ayla", 500, 500, false)

	var kv protocol.KV
	c.rec.Last(protocol.TerritoryUpdate, &kv, wait)
	assert.Equal(t, "capture_started", kv.String("event"))

	h.clk.Advance(h.cfg.Tick.CaptureDuration)
	h.tick()

	c.rec.Wait(protocol.TerritoryUpdate, 2, wait)
	c.rec.Last(protocol.TerritoryUpdate, &kv, wait)
	assert.Equal(t, "captured", kv.String("event"))
	assert.Equal(t, "Ayla", kv.String("character"))

	ctrl, ok := h.db.control(keep.ID)
	require.True(t, ok)
	assert.Equal(t, p.CharacterID, ctrl.ControllerID)
	assert.Equal(t, keep.Buff, p.TerritoryBuff)
	c.rec.Wait(protocol.TerritoryBuff, 1, wait)
	assert.Len(t, h.db.logged(storage.LogCapture), 1)

	h.ticks(h.cfg.Tick.Rate)
	assert.Positive(t, p.Lifetime.TerritorySeconds)
}

func TestTerritoryInfo(t *testing.T) {
	keep := territory.Definition{ID: 1, Name: "Phoenix Keep", Center: territory.Point{X: 500, Z: 500}, Radius: 30, RequiredPoints: 100}
	h := newHarness(t, withTerritories(keep))
	c := h.connect()
	c.enter("Ayla", 100, 100, false)
	c.rec.Reset()

	c.send(protocol.TerritoryInfo, nil)
	h.tick()

	var st protocol.TerritoryStatus
	c.rec.Expect(protocol.TerritoryInfo, &st, wait)
	require.Len(t, st.Territories, 1)
	assert.Equal(t, "Phoenix Keep", st.Territories[0].Name)
	assert.Zero(t, st.Territories[0].ControllerID)
}

func TestReincarnate_RefusedBelowMinimumLevel(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	c.send(protocol.Reincarnate, nil)
	h.tick()

	var res protocol.ReincarnationResult
	c.rec.Expect(protocol.ReincarnationPerks, &res, wait)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "minimum level")
	assert.Zero(t, p.ReincarnationCount)
}

func TestReincarnate_ResetsLifeAndKeepsPerks(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)
	p.Level = 120
	p.Lifetime.Kills = 500

	c.send(protocol.Reincarnate, protocol.KV{"preview": true})
	h.tick()
	var preview protocol.ReincarnationResult
	c.rec.Expect(protocol.ReincarnationPerks, &preview, wait)
	assert.True(t, preview.Success)
	assert.Equal(t, 120, p.Level, "a preview changes nothing")

	c.rec.Reset()
	c.send(protocol.Reincarnate, nil)
	h.tick()

	var res protocol.ReincarnationResult
	c.rec.Expect(protocol.ReincarnationPerks, &res, wait)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, p.ReincarnationCount)
	assert.Equal(t, 1, p.Level)
	assert.Len(t, h.db.logged(storage.LogReincarnation), 1)
	c.rec.Wait(protocol.WorldAnnouncement, 1, wait)
}

func TestChat_GlobalAndWhisper(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, false)
	b := h.connect()
	b.enter("Brom", 900, 900, false)
	c := h.connect()
	c.enter("Cato", 500, 500, false)

	a.send(protocol.ChatMessage, protocol.Chat{Channel: "global", Text: "hello"})
	h.tick()
	for _, cl := range []*client{a, b, c} {
		var msg protocol.Chat
		cl.rec.Expect(protocol.ChatMessage, &msg, wait)
		assert.Equal(t, "Ayla", msg.Sender)
		assert.Equal(t, "hello", msg.Text)
	}

	h.clk.Advance(time.Second)
	a.send(protocol.Whisper, protocol.Chat{Target: "Brom", Text: "psst"})
	h.tick()
	var msg protocol.Chat
	b.rec.Expect(protocol.Whisper, &msg, wait)
	assert.Equal(t, "psst", msg.Text)
	a.rec.Wait(protocol.Whisper, 1, wait)
	c.rec.Never(protocol.Whisper, 50*time.Millisecond)
}

func TestChat_CooldownRejected(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	a.enter("Ayla", 100, 100, false)

	a.send(protocol.ChatMessage, protocol.Chat{Channel: "global", Text: "one"})
	a.send(protocol.ChatMessage, protocol.Chat{Channel: "global", Text: "two"})
	h.tick()

	a.expectError("chat_rejected")
	assert.Len(t, a.rec.Wait(protocol.ChatMessage, 1, wait), 1)
}

func TestWorldEvents_ScriptSpawnsAndAnnounces(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invasion.lua"), []byte(`
function on_start()
  engine.spawn(101, 300, 5000)
  engine.announce("the dummies are coming")
end

function on_tick(elapsed)
  if engine.npc_count(101) < 2 then
    engine.spawn(101, 310, 300)
  end
end
`), 0o644))
	roller := dice.NewRoller(dice.Constant(0.5), zap.NewNop())
	events := scripting.NewManager(roller, 0, zap.NewNop())
	require.NoError(t, events.LoadDir(dir))
	t.Cleanup(events.Close)

	h := newHarness(t, withEvents(events))
	c := h.connect()
	c.enter("Ayla", 100, 100, false)

	var ev protocol.EventNotice
	c.rec.Expect(protocol.WorldEvent, &ev, wait)
	assert.Equal(t, "invasion", ev.Name)
	assert.Equal(t, "the dummies are coming", ev.Message)

	npcs := h.world.Registry.NPCs()
	require.Len(t, npcs, 1)
	assert.Equal(t, 1000.0, npcs[0].Position().Z, "scripted spawns are clamped to the world")

	h.ticks(h.cfg.Tick.Rate)
	assert.Len(t, h.world.Registry.NPCs(), 2)
}

func TestScheduler_StartStopFlushesPlayers(t *testing.T) {
	h := newHarness(t)
	c := h.connect()
	p := c.enter("Ayla", 100, 100, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.sched.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, h.db.stored(p.CharacterID).Online)
	assert.Empty(t, h.world.Registry.Players())
}

func TestScheduler_Healthy(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.sched.Healthy(h.clk.Now()), "no tick yet")

	h.tick()
	now := h.clk.Now()
	assert.True(t, h.sched.Healthy(now))
	assert.False(t, h.sched.Healthy(now.Add(11*h.cfg.Tick.Interval())))
	assert.Equal(t, uint64(1), h.sched.Ticks())
}
