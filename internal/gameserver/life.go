package gameserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// RegenDelay is how long a player must go undamaged before HP regenerates.
const RegenDelay = 10 * time.Second

// respawn revives players whose death delay has elapsed and restores NPCs
// whose respawn timers are due.
func (s *Scheduler) respawn(now time.Time) {
	pending := s.respawns[:0]
	var due []playerRespawn
	for _, r := range s.respawns {
		if now.Before(r.at) {
			pending = append(pending, r)
		} else {
			due = append(due, r)
		}
	}
	s.respawns = pending

	for _, r := range due {
		if !s.world.Resolver.Respawn(r.playerID, s.spawn) {
			continue
		}
		p, ok := s.world.Registry.Player(r.playerID)
		if !ok {
			continue
		}
		pos := p.Position()
		s.toNearby(pos, protocol.Respawned, protocol.Respawn{
			EntityID: p.ID(),
			X:        pos.X,
			Y:        pos.Y,
			Z:        pos.Z,
			HP:       int32(p.HP),
			MP:       int32(p.MP),
		}, 0)
	}

	for _, n := range s.world.Respawns.Tick(now, s.world.Registry) {
		s.logger.Debug("npc respawned",
			zap.String("npc", n.Name),
			zap.Uint64("npc_id", n.ID()),
		)
	}
}

func (s *Scheduler) cancelRespawn(playerID uint64) {
	kept := s.respawns[:0]
	for _, r := range s.respawns {
		if r.playerID != playerID {
			kept = append(kept, r)
		}
	}
	s.respawns = kept
}

// regenerate restores HP and MP for each whole second elapsed.
//
// HP regenerates 1% of effective max HP per second (at least 1) once a
// player has gone RegenDelay without damage. MP regenerates 2% of max MP
// per second (at least 1) regardless of combat.
func (s *Scheduler) regenerate(now time.Time, seconds int) {
	if seconds <= 0 {
		return
	}
	for _, p := range s.world.Registry.Players() {
		if !p.IsAlive() {
			continue
		}
		if maxHP := p.EffectiveMaxHP(); p.HP < maxHP && now.Sub(p.LastDamaged) >= RegenDelay {
			p.HP = min(maxHP, p.HP+max(1, maxHP/100)*seconds)
		}
		if p.MP < p.MaxMP {
			p.MP = min(p.MaxMP, p.MP+max(1, p.MaxMP*2/100)*seconds)
		}
	}
}
