package gameserver

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// enterWorld places a validated character snapshot in the world.
//
// Precondition: c has been loaded and its ownership checked against the
// session's account.
// Postcondition: On success the session puppets the new player, the
// character is marked online, and the player and its neighbours have
// spawned for each other.
func (s *Scheduler) enterWorld(sess *network.Session, c *character.Character) {
	if sess == nil || c == nil || sess.Closed() {
		return
	}
	if sess.PlayerID() != 0 {
		s.sendError(sess, "already_in_world", "already in the world")
		return
	}
	if c.Dead || c.HP <= 0 {
		c.Dead = false
		c.HP, c.MP = c.MaxHP, c.MaxMP
		c.X, c.Y, c.Z = s.spawn.X, s.spawn.Y, s.spawn.Z
	}

	now := s.now()
	p, err := s.world.Registry.AddPlayer(c, now)
	if err != nil {
		s.sendError(sess, "character_active", "character is already in the world")
		return
	}
	if err := s.sessions.BindPlayer(sess.ID(), p.ID()); err != nil {
		s.world.Registry.RemovePlayer(p.ID())
		return
	}
	p.SetTerritoryBuff(s.world.Territories.BuffFor(c.ID))

	ctx, cancel := s.persistCtx()
	if err := s.stores.Characters.SetOnline(ctx, c.ID, true); err != nil {
		s.logger.Error("marking character online", zap.Int64("character_id", c.ID), zap.Error(err))
	}
	cancel()

	s.send(sess, protocol.CharacterInfo, characterInfo(p))
	s.send(sess, protocol.PlayerSpawn, playerSpawn(p))
	s.refreshView(p, sess, nil)
	s.send(sess, protocol.TerritoryInfo, s.territoryStatus(now))
	s.send(sess, protocol.WeatherUpdate, s.clock.Notice(now))
	if p.TerritoryBuff != (character.Buff{}) {
		s.send(sess, protocol.TerritoryBuff, buffNotice(p))
	}
	s.announceSpawn(p)
	s.sent[p.ID()] = playerState(p)

	sess.Logger().Info("player entered world",
		zap.String("character", p.Name),
		zap.Int64("character_id", p.CharacterID),
		zap.Uint64("entity_id", p.ID()),
	)
}

// leaveWorld saves and removes the player puppeted by sess. The session
// stays open.
func (s *Scheduler) leaveWorld(sess *network.Session) {
	pid := s.sessions.UnbindPlayer(sess.ID())
	if pid == 0 {
		return
	}
	p, ok := s.world.Registry.Player(pid)
	if !ok {
		return
	}
	s.save(p, false)
	s.world.Registry.RemovePlayer(pid)
	s.forget(world.CategoryPlayer, pid)
	delete(s.views, pid)
	s.cancelRespawn(pid)
	s.chat.Forget(p.CharacterID)

	sess.Logger().Info("player left world",
		zap.String("character", p.Name),
		zap.Int64("character_id", p.CharacterID),
	)
}

// disconnect removes the session and its player.
//
// Postcondition: The player is out of the registry and spatial index before
// any later step of the current tick runs.
func (s *Scheduler) disconnect(sess *network.Session) {
	if sess == nil {
		return
	}
	s.leaveWorld(sess)
	s.sessions.Remove(sess.ID())
}

// save persists p. online selects the stored online flag.
func (s *Scheduler) save(p *world.Player, online bool) {
	p.AccruePlaytime(s.now())
	snap := p.Snapshot()
	snap.Online = online

	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.stores.Characters.Save(ctx, snap); err != nil {
		s.logger.Error("saving character", zap.Int64("character_id", p.CharacterID), zap.Error(err))
	}
	if !online {
		if err := s.stores.Characters.SetOnline(ctx, p.CharacterID, false); err != nil {
			s.logger.Error("marking character offline", zap.Int64("character_id", p.CharacterID), zap.Error(err))
		}
	}
}

// move applies a client position update, clamped to the world bounds. Dead
// players cannot move, and updates carrying a non-finite field are dropped.
func (s *Scheduler) move(p *world.Player, m protocol.Move) {
	if !p.IsAlive() {
		return
	}
	if !finite(m.X) || !finite(m.Y) || !finite(m.Z) || !finite(m.Rotation) {
		return
	}
	size := s.cfg.World.Size
	pos := world.Vector3{
		X: clamp(m.X, 0, size),
		Y: m.Y,
		Z: clamp(m.Z, 0, size),
	}
	if err := s.world.Registry.Relocate(p.ID(), pos, m.Rotation); err != nil {
		s.logger.Warn("moving player", zap.Uint64("entity_id", p.ID()), zap.Error(err))
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func characterInfo(p *world.Player) protocol.KV {
	return protocol.KV{
		"entity_id":      float64(p.ID()),
		"character_id":   float64(p.CharacterID),
		"name":           p.Name,
		"game_mode":      p.GameMode,
		"level":          float64(p.Level),
		"experience":     float64(p.Experience),
		"hp":             float64(p.HP),
		"max_hp":         float64(p.EffectiveMaxHP()),
		"mp":             float64(p.MP),
		"max_mp":         float64(p.MaxMP),
		"attack":         p.EffectiveAttack(),
		"defense":        p.EffectiveDefense(),
		"speed":          p.Speed,
		"reincarnations": float64(p.ReincarnationCount),
		"perks":          perkMap(p.Perks),
	}
}

func perkMap(perks character.Perks) map[string]any {
	out := make(map[string]any)
	for k, v := range perks.Map() {
		out[k] = v
	}
	return out
}

func buffNotice(p *world.Player) protocol.KV {
	b := p.TerritoryBuff
	return protocol.KV{
		"hp":            float64(b.HP),
		"attack":        float64(b.Attack),
		"defense":       float64(b.Defense),
		"xp_multiplier": b.ExperienceMultiple,
	}
}

func statsOf(p *world.Player) protocol.Stats {
	return protocol.Stats{
		EntityID:   p.ID(),
		Level:      uint16(p.Level),
		Experience: uint64(p.Experience),
		HP:         int32(p.HP),
		MaxHP:      int32(p.EffectiveMaxHP()),
		MP:         int32(p.MP),
		MaxMP:      int32(p.MaxMP),
		Attack:     int32(p.EffectiveAttack()),
		Defense:    int32(p.EffectiveDefense()),
		Speed:      p.Speed,
	}
}
