package gameserver

import (
	"cmp"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// presence lists the live players within radius of center, ordered by
// entity id so the first arrival is deterministic.
func (s *Scheduler) presence(center world.Vector3, radius float64) []territory.Occupant {
	players := s.world.Registry.NearbyPlayers(center, radius)
	slices.SortFunc(players, func(a, b *world.Player) int { return cmp.Compare(a.ID(), b.ID()) })
	out := make([]territory.Occupant, 0, len(players))
	for _, p := range players {
		if !p.IsAlive() {
			continue
		}
		out = append(out, territory.Occupant{CharacterID: p.CharacterID, Name: p.Name})
	}
	return out
}

// updateTerritories advances capture state, applies captures, and accrues
// held-territory time for controllers in the world.
func (s *Scheduler) updateTerritories(now time.Time, seconds int) {
	mgr := s.world.Territories
	for _, ev := range mgr.Update(now, s.presence) {
		s.toAll(protocol.TerritoryUpdate, protocol.KV{
			"event":          ev.Kind.String(),
			"territory_id":   float64(ev.TerritoryID),
			"territory":      ev.TerritoryName,
			"character_id":   float64(ev.CharacterID),
			"character":      ev.Name,
			"previous_id":    float64(ev.PreviousControllerID),
			"previous":       ev.PreviousController,
			"capture_millis": float64(mgr.CaptureDuration() / time.Millisecond),
		})
		if ev.Kind == territory.Captured {
			s.captured(ev)
		}
	}

	if seconds <= 0 {
		return
	}
	for _, t := range mgr.Territories() {
		if t.ControllerID == 0 {
			continue
		}
		if p, ok := s.world.Registry.PlayerByCharacter(t.ControllerID); ok {
			p.Lifetime.TerritorySeconds += int64(seconds)
		}
	}
}

func (s *Scheduler) captured(ev territory.Event) {
	t, ok := s.world.Territories.Territory(ev.TerritoryID)
	if !ok {
		return
	}
	ctx, cancel := s.persistCtx()
	if err := s.stores.Territories.SaveControl(ctx, t.Control()); err != nil {
		s.logger.Error("saving territory control",
			zap.Int("territory_id", t.ID),
			zap.Error(err),
		)
	}
	cancel()
	s.record(storage.LogCapture, ev.CharacterID, map[string]any{
		"territory_id": ev.TerritoryID,
		"territory":    ev.TerritoryName,
		"previous_id":  float64(ev.PreviousControllerID),
	})

	s.refreshBuff(ev.CharacterID)
	if ev.PreviousControllerID != 0 && ev.PreviousControllerID != ev.CharacterID {
		s.refreshBuff(ev.PreviousControllerID)
	}
	s.announce(ev.Name + " has captured " + ev.TerritoryName + "!")
}

// refreshBuff recomputes the territory buff of an in-world character.
func (s *Scheduler) refreshBuff(characterID int64) {
	p, ok := s.world.Registry.PlayerByCharacter(characterID)
	if !ok {
		return
	}
	p.SetTerritoryBuff(s.world.Territories.BuffFor(characterID))
	s.toPlayer(p.ID(), protocol.TerritoryBuff, buffNotice(p))
}

func (s *Scheduler) territoryStatus(now time.Time) protocol.TerritoryStatus {
	mgr := s.world.Territories
	out := protocol.TerritoryStatus{}
	for _, t := range mgr.Territories() {
		out.Territories = append(out.Territories, protocol.TerritorySummary{
			ID:             t.ID,
			Name:           t.Name,
			ControllerID:   t.ControllerID,
			ControllerName: t.ControllerName,
			Capturing:      t.Capturing(),
			Progress:       t.Progress(now, mgr.CaptureDuration()),
		})
	}
	return out
}
