package gameserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/combat"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

func (s *Scheduler) attack(sess *network.Session, p *world.Player, a protocol.Attack) {
	res, reason := s.world.Resolver.BasicAttack(p.ID(), a.TargetID, categoryOf(a.Kind))
	if reason != protocol.ReasonNone {
		s.send(sess, protocol.AttackResponse, protocol.AttackResult{
			TargetID: a.TargetID,
			Kind:     a.Kind,
			SkillID:  combat.BasicAttackSkill,
			Reason:   reason,
		})
		return
	}
	s.send(sess, protocol.AttackResponse, attackResult(*res))
	s.applyHit(*res)
}

func (s *Scheduler) useSkill(sess *network.Session, p *world.Player, m protocol.Skill) {
	targetID, kind := m.TargetID, categoryOf(m.Kind)
	res, reason := s.world.Resolver.UseSkill(p.ID(), int(m.SkillID), targetID, kind)
	if reason != protocol.ReasonNone {
		s.send(sess, protocol.AttackResponse, protocol.AttackResult{
			TargetID: targetID,
			Kind:     m.Kind,
			SkillID:  int16(m.SkillID),
			Reason:   reason,
		})
		return
	}

	if res.Skill.IsHeal() {
		s.send(sess, protocol.AttackResponse, protocol.AttackResult{
			TargetID: p.ID(),
			Kind:     protocol.KindPlayer,
			SkillID:  int16(m.SkillID),
			Accepted: true,
			TargetHP: int32(res.CasterHP),
		})
		s.toNearby(p.Position(), protocol.DamageDealt, protocol.Damage{
			AttackerID:   p.ID(),
			AttackerKind: protocol.KindPlayer,
			TargetID:     p.ID(),
			TargetKind:   protocol.KindPlayer,
			SkillID:      int16(m.SkillID),
			Amount:       uint32(res.Healed),
			TargetHP:     int32(res.CasterHP),
			TargetMaxHP:  int32(p.EffectiveMaxHP()),
			Heal:         true,
		}, 0)
		return
	}

	s.send(sess, protocol.AttackResponse, attackResult(res.Hits[0]))
	for _, hit := range res.Hits {
		s.applyHit(hit)
	}
}

// applyHit broadcasts a resolved hit and runs its death consequences.
func (s *Scheduler) applyHit(hit combat.DamageResult) {
	var pos world.Vector3
	switch hit.TargetKind {
	case world.CategoryNPC:
		n, ok := s.world.Registry.NPC(hit.TargetID)
		if !ok {
			return
		}
		pos = n.Position()
		s.toNearby(pos, protocol.DamageDealt, damageNotice(hit), 0)
		if hit.TargetDied {
			s.npcKilled(n, hit.AttackerID)
		}
	case world.CategoryPlayer:
		p, ok := s.world.Registry.Player(hit.TargetID)
		if !ok {
			return
		}
		pos = p.Position()
		s.toNearby(pos, protocol.DamageDealt, damageNotice(hit), 0)
		if hit.TargetDied {
			s.playerKilled(p, hit.AttackerID, hit.AttackerKind)
		}
	}
}

// npcKilled removes a dead NPC, schedules its respawn, and rewards the killer.
func (s *Scheduler) npcKilled(n *world.NPC, killerID uint64) {
	now := s.now()
	s.world.Registry.RemoveNPC(n.ID())
	s.forget(world.CategoryNPC, n.ID())
	s.world.Respawns.Schedule(n, now)

	killer, ok := s.world.Registry.Player(killerID)
	if !ok {
		return
	}
	killer.Lifetime.Kills++
	if killer.TargetID == n.ID() {
		killer.TargetID = 0
	}
	if n.IsBoss() {
		killer.Lifetime.BossKills++
		s.announce(killer.Name + " has slain " + n.Name + "!")
	}

	gain := progression.GainExperience(killer, n.XPReward)
	sess, online := s.sessions.SessionForPlayer(killer.ID())
	if online {
		s.send(sess, protocol.StatUpdate, statsOf(killer))
	}
	if gain.Levels > 0 {
		if online {
			s.send(sess, protocol.LevelUp, protocol.KV{
				"level":      float64(gain.LevelAfter),
				"levels":     float64(gain.Levels),
				"experience": float64(killer.Experience),
				"next_level": float64(progression.ExperienceToLevel(killer.Level)),
			})
		}
		s.logger.Info("level up",
			zap.String("character", killer.Name),
			zap.Int("level", gain.LevelAfter),
		)
		s.record(storage.LogLevelUp, killer.CharacterID, map[string]any{
			"level":  gain.LevelAfter,
			"levels": gain.Levels,
		})
	}

	if drop := npc.RollLoot(n, killer.ID(), s.world.Roller); drop != nil {
		s.toNearby(drop.Position, protocol.LootDrop, protocol.LootNotice{
			DropID:  drop.ID,
			NPCID:   drop.NPCID,
			OwnerID: drop.OwnerID,
			ItemIDs: drop.Items,
			X:       drop.Position.X,
			Z:       drop.Position.Z,
		}, 0)
	}
}

// playerKilled marks a player dead and queues its respawn.
func (s *Scheduler) playerKilled(p *world.Player, killerID uint64, killerKind world.Category) {
	ev := s.world.Resolver.HandleDeath(p.ID(), killerID, killerKind)
	if ev == nil {
		return
	}
	delay := s.cfg.Tick.RespawnDelay
	s.toNearby(p.Position(), protocol.PlayerDied, protocol.Death{
		VictimID:      p.ID(),
		KillerID:      killerID,
		KillerKind:    kindOf(killerKind),
		RespawnMillis: uint32(delay / time.Millisecond),
	}, 0)
	if ev.PvP {
		if killer, ok := s.world.Registry.Player(killerID); ok {
			s.toPlayer(killerID, protocol.PlayerKilled, protocol.KV{
				"victim_id":    float64(p.ID()),
				"victim":       p.Name,
				"player_kills": float64(killer.Lifetime.PlayerKills),
			})
		}
	}
	s.cancelRespawn(p.ID())
	s.respawns = append(s.respawns, playerRespawn{playerID: p.ID(), at: s.now().Add(delay)})
	s.record(storage.LogDeath, p.CharacterID, map[string]any{
		"killer_id":   float64(killerID),
		"killer_kind": killerKind.String(),
		"pvp":         ev.PvP,
	})
}

func attackResult(r combat.DamageResult) protocol.AttackResult {
	return protocol.AttackResult{
		TargetID:   r.TargetID,
		Kind:       kindOf(r.TargetKind),
		SkillID:    int16(r.SkillID),
		Accepted:   true,
		Damage:     uint32(r.Damage),
		TargetHP:   int32(r.TargetHP),
		TargetDied: r.TargetDied,
	}
}

func damageNotice(r combat.DamageResult) protocol.Damage {
	return protocol.Damage{
		AttackerID:   r.AttackerID,
		AttackerKind: kindOf(r.AttackerKind),
		TargetID:     r.TargetID,
		TargetKind:   kindOf(r.TargetKind),
		SkillID:      int16(r.SkillID),
		Amount:       uint32(r.Damage),
		TargetHP:     int32(r.TargetHP),
		TargetMaxHP:  int32(r.TargetMaxHP),
		Died:         r.TargetDied,
		AreaEffect:   r.AreaEffect,
	}
}
