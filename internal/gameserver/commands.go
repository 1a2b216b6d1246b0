package gameserver

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// sendChat delivers a global message to every in-world session, or a
// whisper to its target and back to the sender.
func (s *Scheduler) sendChat(sess *network.Session, p *world.Player, m protocol.Chat) {
	channel := m.Channel
	if channel == "" {
		channel = ChannelGlobal
	}
	var target *world.Player
	switch channel {
	case ChannelGlobal:
	case ChannelWhisper:
		t, ok := s.world.Registry.PlayerByName(m.Target)
		if !ok {
			s.sendError(sess, "chat_rejected", "player "+m.Target+" is not online")
			return
		}
		target = t
	default:
		s.sendError(sess, "chat_rejected", "unknown channel "+channel)
		return
	}

	msg, err := s.chat.Submit(channel, p.CharacterID, p.Name, m.Target, m.Text)
	if err != nil {
		s.sendError(sess, "chat_rejected", err.Error())
		return
	}
	if target == nil {
		s.toAll(protocol.ChatMessage, msg)
		return
	}
	s.toPlayer(target.ID(), protocol.Whisper, msg)
	if target.ID() != p.ID() {
		s.send(sess, protocol.Whisper, msg)
	}
}

// reincarnate answers a reincarnation request. preview reports the score
// and perks without changing anything.
func (s *Scheduler) reincarnate(sess *network.Session, p *world.Player, preview bool) {
	if preview {
		score, perks, err := s.world.Progression.Preview(p.ID())
		if err != nil {
			s.send(sess, protocol.ReincarnationPerks, s.reincarnationRefusal(p, err))
			return
		}
		s.send(sess, protocol.ReincarnationPerks, protocol.ReincarnationResult{
			Success: true,
			Count:   p.ReincarnationCount + 1,
			Score:   score,
			Perks:   perks.Map(),
		})
		return
	}

	ctx, cancel := s.persistCtx()
	defer cancel()
	res, err := s.world.Progression.Perform(ctx, p.ID())
	if err != nil {
		s.send(sess, protocol.ReincarnationPerks, s.reincarnationRefusal(p, err))
		return
	}
	s.send(sess, protocol.ReincarnationPerks, protocol.ReincarnationResult{
		Success: true,
		Count:   res.Count,
		Score:   res.Score,
		Perks:   res.TotalPerks.Map(),
	})
	s.send(sess, protocol.StatUpdate, statsOf(p))
	s.send(sess, protocol.CharacterInfo, characterInfo(p))
	s.record(storage.LogReincarnation, p.CharacterID, map[string]any{
		"count":          res.Count,
		"score":          res.Score,
		"previous_level": res.History.PreviousLevel,
	})
	s.announce(p.Name + " has been reincarnated!")
}

func (s *Scheduler) reincarnationRefusal(p *world.Player, err error) protocol.ReincarnationResult {
	if errors.Is(err, progression.ErrNotEligible) {
		_, reason := progression.CanReincarnate(p)
		return protocol.ReincarnationResult{Reason: reason, Count: p.ReincarnationCount}
	}
	s.logger.Error("reincarnating", zap.Int64("character_id", p.CharacterID), zap.Error(err))
	return protocol.ReincarnationResult{Reason: "reincarnation failed", Count: p.ReincarnationCount}
}
