package gameserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// Admin commands.
const (
	AdminKick     = "kick"
	AdminBan      = "ban"
	AdminAnnounce = "announce"
	AdminMute     = "mute"
	AdminUnmute   = "unmute"
	AdminShutdown = "shutdown"
)

// DefaultMuteDuration applies when a mute request carries no duration.
const DefaultMuteDuration = 10 * time.Minute

// admin executes a privileged command.
//
// Precondition: sess must belong to an admin account; otherwise the request
// is refused and nothing changes.
func (s *Scheduler) admin(sess *network.Session, req protocol.AdminRequest) {
	if sess == nil || !sess.Admin() {
		s.sendError(sess, "forbidden", "admin privileges required")
		return
	}
	log := sess.Logger().With(
		zap.String("admin_command", req.Command),
		zap.String("target", req.Target),
	)

	switch req.Command {
	case AdminKick:
		if !s.kick(req.Target, req.Reason) {
			s.sendError(sess, "no_target", "player "+req.Target+" is not online")
			return
		}
	case AdminBan:
		p, ok := s.world.Registry.PlayerByName(req.Target)
		if !ok {
			s.sendError(sess, "no_target", "player "+req.Target+" is not online")
			return
		}
		ctx, cancel := s.persistCtx()
		acct, err := s.stores.Accounts.GetByID(ctx, p.AccountID)
		if err == nil {
			err = s.stores.Accounts.SetFlags(ctx, p.AccountID, acct.Admin, true)
		}
		cancel()
		if err != nil {
			log.Error("banning account", zap.Error(err))
			s.sendError(sess, "admin_failed", "ban failed")
			return
		}
		s.toPlayer(p.ID(), protocol.BanPlayer, protocol.KV{"reason": req.Reason})
		s.kick(req.Target, req.Reason)
	case AdminAnnounce:
		if req.Reason == "" {
			s.sendError(sess, "admin_failed", "announcement text required")
			return
		}
		s.announce(req.Reason)
	case AdminMute:
		p, ok := s.world.Registry.PlayerByName(req.Target)
		if !ok {
			s.sendError(sess, "no_target", "player "+req.Target+" is not online")
			return
		}
		d := DefaultMuteDuration
		if req.Reason != "" {
			parsed, err := time.ParseDuration(req.Reason)
			if err != nil || parsed <= 0 {
				s.sendError(sess, "admin_failed", "invalid mute duration "+req.Reason)
				return
			}
			d = parsed
		}
		s.chat.Mute(p.CharacterID, d)
	case AdminUnmute:
		p, ok := s.world.Registry.PlayerByName(req.Target)
		if !ok {
			s.sendError(sess, "no_target", "player "+req.Target+" is not online")
			return
		}
		s.chat.Unmute(p.CharacterID)
	case AdminShutdown:
		s.toAll(protocol.ServerShutdown, protocol.KV{"reason": req.Reason})
		if s.Shutdown != nil {
			s.Shutdown()
		}
	default:
		s.sendError(sess, "admin_failed", "unknown admin command "+req.Command)
		return
	}

	log.Info("admin command executed")
	var charID int64
	if p, ok := s.playerFor(sess); ok {
		charID = p.CharacterID
	}
	s.record(storage.LogAdmin, charID, map[string]any{
		"command":    req.Command,
		"target":     req.Target,
		"reason":     req.Reason,
		"account_id": float64(sess.AccountID()),
	})
	s.send(sess, protocol.AdminCommand, protocol.KV{"ok": true, "command": req.Command})
}

// kick notifies and disconnects the named player.
func (s *Scheduler) kick(name, reason string) bool {
	p, ok := s.world.Registry.PlayerByName(name)
	if !ok {
		return false
	}
	sess, ok := s.sessions.SessionForPlayer(p.ID())
	if !ok {
		return false
	}
	s.send(sess, protocol.KickPlayer, protocol.KV{"reason": reason})
	sess.CloseAfterFlush()
	s.disconnect(sess)
	return true
}
