package gameserver

import (
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// view is the set of entities a player's client currently has spawned.
type view struct {
	players map[uint64]struct{}
	npcs    map[uint64]struct{}
}

func newView() *view {
	return &view{players: make(map[uint64]struct{}), npcs: make(map[uint64]struct{})}
}

// entityState is what was last broadcast for an entity; a difference marks
// the entity dirty.
type entityState struct {
	pos    world.Vector3
	rot    float64
	hp     int
	mp     int
	state  world.NPCState
	target uint64
}

func playerState(p *world.Player) entityState {
	return entityState{pos: p.Position(), rot: p.Rotation(), hp: p.HP, mp: p.MP, target: p.TargetID}
}

func npcState(n *world.NPC) entityState {
	return entityState{pos: n.Position(), rot: n.Rotation(), hp: n.HP, state: n.State, target: n.TargetID}
}

func (s *Scheduler) viewOf(playerID uint64) *view {
	v, ok := s.views[playerID]
	if !ok {
		v = newView()
		s.views[playerID] = v
	}
	return v
}

// broadcast fans out the entity changes since the previous pass. Each
// player receives spawns for entities that entered view distance, despawns
// for those that left, updates for visible dirty entities, and its own
// stats when they changed.
func (s *Scheduler) broadcast() {
	dirty := make(map[uint64]bool)
	players := s.world.Registry.Players()
	for _, p := range players {
		st := playerState(p)
		if prev, ok := s.sent[p.ID()]; !ok || prev != st {
			dirty[p.ID()] = true
			s.sent[p.ID()] = st
		}
	}
	for _, n := range s.world.Registry.NPCs() {
		st := npcState(n)
		if prev, ok := s.sent[n.ID()]; !ok || prev != st {
			dirty[n.ID()] = true
			s.sent[n.ID()] = st
		}
	}

	for _, p := range players {
		sess, ok := s.sessions.SessionForPlayer(p.ID())
		if !ok {
			continue
		}
		s.refreshView(p, sess, dirty)
		if dirty[p.ID()] {
			s.send(sess, protocol.StatUpdate, statsOf(p))
		}
	}
}

// refreshView reconciles p's view with what is within view distance. A nil
// dirty map sends spawns only.
func (s *Scheduler) refreshView(p *world.Player, sess *network.Session, dirty map[uint64]bool) {
	v := s.viewOf(p.ID())
	radius := s.cfg.World.ViewDistance

	seen := make(map[uint64]struct{})
	for _, q := range s.world.Registry.NearbyPlayers(p.Position(), radius) {
		if q.ID() == p.ID() {
			continue
		}
		seen[q.ID()] = struct{}{}
		if _, had := v.players[q.ID()]; !had {
			s.send(sess, protocol.PlayerSpawn, playerSpawn(q))
		} else if dirty[q.ID()] {
			s.send(sess, protocol.MoveUpdate, playerPosition(q))
		}
	}
	for id := range v.players {
		if _, still := seen[id]; !still {
			s.send(sess, protocol.PlayerDespawn, protocol.Despawn{EntityID: id, Kind: protocol.KindPlayer})
		}
	}
	v.players = seen

	seen = make(map[uint64]struct{})
	for _, n := range s.world.Registry.NearbyNPCs(p.Position(), radius) {
		seen[n.ID()] = struct{}{}
		if _, had := v.npcs[n.ID()]; !had {
			s.send(sess, protocol.NPCSpawn, npcSpawn(n))
		} else if dirty[n.ID()] {
			s.send(sess, protocol.NPCUpdate, npcUpdate(n))
		}
	}
	for id := range v.npcs {
		if _, still := seen[id]; !still {
			s.send(sess, protocol.NPCDespawn, protocol.Despawn{EntityID: id, Kind: protocol.KindNPC})
		}
	}
	v.npcs = seen
}

// announceSpawn shows p to every nearby player that does not see it yet.
func (s *Scheduler) announceSpawn(p *world.Player) {
	var payload []byte
	for _, q := range s.world.Registry.NearbyPlayers(p.Position(), s.cfg.World.ViewDistance) {
		if q.ID() == p.ID() {
			continue
		}
		v := s.viewOf(q.ID())
		if _, had := v.players[p.ID()]; had {
			continue
		}
		sess, ok := s.sessions.SessionForPlayer(q.ID())
		if !ok {
			continue
		}
		if payload == nil {
			var err error
			if payload, err = playerSpawn(p).MarshalBinary(); err != nil {
				return
			}
		}
		_ = sess.SendRaw(protocol.PlayerSpawn, payload)
		v.players[p.ID()] = struct{}{}
	}
}

// forget despawns an entity from every view that contains it.
func (s *Scheduler) forget(category world.Category, id uint64) {
	delete(s.sent, id)
	for viewer, v := range s.views {
		set, pt := v.npcs, protocol.NPCDespawn
		if category == world.CategoryPlayer {
			set, pt = v.players, protocol.PlayerDespawn
		}
		if _, ok := set[id]; !ok {
			continue
		}
		delete(set, id)
		s.toPlayer(viewer, pt, protocol.Despawn{EntityID: id, Kind: kindOf(category)})
	}
}

func playerSpawn(p *world.Player) protocol.Spawn {
	pos := p.Position()
	return protocol.Spawn{
		EntityID: p.ID(),
		Kind:     protocol.KindPlayer,
		Name:     p.Name,
		Level:    uint16(p.Level),
		HP:       int32(p.HP),
		MaxHP:    int32(p.EffectiveMaxHP()),
		X:        pos.X,
		Y:        pos.Y,
		Z:        pos.Z,
		Rotation: p.Rotation(),
	}
}

func playerPosition(p *world.Player) protocol.Position {
	pos := p.Position()
	return protocol.Position{
		EntityID: p.ID(),
		Kind:     protocol.KindPlayer,
		X:        pos.X,
		Y:        pos.Y,
		Z:        pos.Z,
		Rotation: p.Rotation(),
	}
}

func npcSpawn(n *world.NPC) protocol.Spawn {
	pos := n.Position()
	return protocol.Spawn{
		EntityID:   n.ID(),
		Kind:       protocol.KindNPC,
		TemplateID: uint32(n.TemplateID),
		Name:       n.Name,
		Level:      uint16(n.Level),
		HP:         int32(n.HP),
		MaxHP:      int32(n.MaxHP),
		X:          pos.X,
		Y:          pos.Y,
		Z:          pos.Z,
		Rotation:   n.Rotation(),
		State:      uint8(n.State),
	}
}

func npcUpdate(n *world.NPC) protocol.NPCState {
	pos := n.Position()
	return protocol.NPCState{
		EntityID: n.ID(),
		State:    uint8(n.State),
		HP:       int32(n.HP),
		MaxHP:    int32(n.MaxHP),
		TargetID: n.TargetID,
		X:        pos.X,
		Y:        pos.Y,
		Z:        pos.Z,
		Rotation: n.Rotation(),
	}
}
