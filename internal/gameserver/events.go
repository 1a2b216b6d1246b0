package gameserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// bindEvents connects the world-event scripts to the simulation. Every
// callback runs on the scheduler goroutine because hooks are only called
// from worldEvents.
func (s *Scheduler) bindEvents() {
	if s.events == nil {
		return
	}
	s.events.Spawn = func(templateID int, x, z float64) (uint64, bool) {
		size := s.cfg.World.Size
		n, ok := s.spawnNPC(templateID, world.Vector3{X: clamp(x, 0, size), Z: clamp(z, 0, size)}, false)
		if !ok {
			return 0, false
		}
		return n.ID(), true
	}
	s.events.Announce = func(event, msg string) {
		s.toAll(protocol.WorldEvent, protocol.EventNotice{Name: event, Phase: "announce", Message: msg})
	}
	s.events.PlayerCount = func() int { return len(s.world.Registry.Players()) }
	s.events.NPCCount = s.countNPCs
}

// worldEvents advances the game clock and the scripted world events.
func (s *Scheduler) worldEvents(now time.Time, seconds int) {
	if s.clock.Advance(now) {
		notice := s.clock.Notice(now)
		s.toAll(protocol.TimeUpdate, notice)
		s.toAll(protocol.WeatherUpdate, notice)
		s.logger.Debug("game hour",
			zap.Int("day", notice.Day),
			zap.Int("hour", notice.Hour),
			zap.String("weather", notice.Weather),
		)
	}

	if s.events == nil {
		return
	}
	if !s.eventsStarted {
		s.eventsStarted = true
		s.events.Start()
	}
	if seconds > 0 {
		s.events.Tick(float64(seconds))
	}
}
