package gameserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/observability"
)

// updateNPCs runs the AI for every live NPC and applies the actions it
// returns through the registry and combat resolver. A panic in one NPC is
// logged and skips only that NPC.
func (s *Scheduler) updateNPCs(dt time.Duration, now time.Time) {
	for _, n := range s.world.Registry.NPCs() {
		observability.Guard(s.logger, "npc", func() { s.updateNPC(n, dt, now) },
			zap.Uint64("npc_id", n.ID()),
			zap.Int("template_id", n.TemplateID),
		)
	}
}

func (s *Scheduler) updateNPC(n *world.NPC, dt time.Duration, now time.Time) {
	reg := s.world.Registry
	for _, a := range s.world.AI.Update(n, reg, dt, now) {
		switch a.Kind {
		case npc.ActionMove, npc.ActionLeash:
			if err := reg.Relocate(a.NPCID, a.Position, a.Rotation); err != nil {
				s.logger.Warn("moving npc", zap.Uint64("npc_id", a.NPCID), zap.Error(err))
			}
		case npc.ActionAttack:
			p, ok := reg.Player(a.TargetID)
			if !ok || !p.IsAlive() {
				continue
			}
			s.applyHit(s.world.Resolver.NPCStrike(n, p))
		}
	}
}

// spawnNPC places a new NPC from a template. Scripted spawns carry no
// respawn delay of their own.
func (s *Scheduler) spawnNPC(templateID int, pos world.Vector3, respawn bool) (*world.NPC, bool) {
	tmpl, ok := s.world.Templates[templateID]
	if !ok {
		return nil, false
	}
	spec := tmpl.Spec()
	if !respawn {
		spec.RespawnDelay = 0
	}
	return s.world.Registry.SpawnNPC(spec, pos), true
}

func (s *Scheduler) countNPCs(templateID int) int {
	count := 0
	for _, n := range s.world.Registry.NPCs() {
		if templateID == 0 || n.TemplateID == templateID {
			count++
		}
	}
	return count
}
