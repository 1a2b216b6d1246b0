package gameserver

import (
	"context"
	"encoding"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// Handler is the network.Handler of the world server. Authentication and
// character management run on the session's read goroutine because they
// touch only persistence and session state; everything that reads or
// writes the world is queued for the scheduler.
type Handler struct {
	cfg      config.Config
	sessions *network.Manager
	queue    *CommandQueue
	stores   Stores
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	tokens map[uint64]string
}

// NewHandler creates a Handler.
//
// Precondition: every argument must be non-nil.
func NewHandler(cfg config.Config, sessions *network.Manager, queue *CommandQueue, stores Stores, now func() time.Time, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		queue:    queue,
		stores:   stores,
		now:      now,
		logger:   logger,
		tokens:   make(map[uint64]string),
	}
}

// Opened registers s and arranges for its disconnect to reach the scheduler.
func (h *Handler) Opened(s *network.Session) {
	if err := h.sessions.Add(s); err != nil {
		s.Logger().Error("registering session", zap.Error(err))
		s.Close()
		return
	}
	s.OnClose(func(s *network.Session) {
		h.mu.Lock()
		delete(h.tokens, s.ID())
		h.mu.Unlock()
		h.queue.Disconnect(Command{Session: s, At: h.now()})
	})
	s.Logger().Info("session opened")
	h.reply(s, protocol.Handshake, protocol.KV{
		"session_id":   float64(s.ID()),
		"shard":        h.cfg.Server.Shard,
		"server_time":  float64(h.now().UnixMilli()),
		"tick_rate":    float64(h.cfg.Tick.Rate),
		"network_rate": float64(h.cfg.Tick.NetworkRate),
	})
}

// HandleFrame routes one inbound frame.
func (h *Handler) HandleFrame(s *network.Session, f protocol.Frame) {
	switch f.Type {
	case protocol.Ping:
		var hb protocol.Heartbeat
		_ = hb.UnmarshalBinary(f.Payload)
		h.reply(s, protocol.Pong, hb)

	case protocol.LoginRequest:
		h.login(s, f.Payload)
	case protocol.RegisterRequest:
		h.register(s, f.Payload)
	case protocol.Logout:
		h.logout(s)
	case protocol.CharacterListRequest:
		h.listCharacters(s)
	case protocol.CharacterCreate:
		h.createCharacter(s, f.Payload)
	case protocol.CharacterDelete:
		h.deleteCharacter(s, f.Payload)
	case protocol.CharacterSelect:
		h.selectCharacter(s, f.Payload)
	case protocol.EnterWorld:
		h.enterWorld(s, f.Payload)

	case protocol.LeaveWorld:
		h.enqueue(s, CmdLeaveWorld, nil)
	case protocol.MoveRequest:
		var m protocol.Move
		if h.decode(s, f, &m) {
			h.enqueue(s, CmdMove, m)
		}
	case protocol.AttackRequest:
		var a protocol.Attack
		if h.decode(s, f, &a) {
			h.enqueue(s, CmdAttack, a)
		}
	case protocol.SkillUse:
		var m protocol.Skill
		if h.decode(s, f, &m) {
			h.enqueue(s, CmdSkill, m)
		}
	case protocol.ChatMessage, protocol.Whisper:
		var m protocol.Chat
		if h.decode(s, f, &m) {
			if f.Type == protocol.Whisper {
				m.Channel = ChannelWhisper
			}
			h.enqueue(s, CmdChat, m)
		}
	case protocol.Reincarnate:
		kv := protocol.KV{}
		if len(f.Payload) > 0 && !h.decode(s, f, &kv) {
			return
		}
		h.enqueue(s, CmdReincarnate, kv)
	case protocol.TerritoryInfo:
		h.enqueue(s, CmdTerritoryInfo, nil)
	case protocol.AdminCommand, protocol.KickPlayer, protocol.BanPlayer:
		var req protocol.AdminRequest
		if !h.decode(s, f, &req) {
			return
		}
		switch f.Type {
		case protocol.KickPlayer:
			req.Command = AdminKick
		case protocol.BanPlayer:
			req.Command = AdminBan
		}
		h.enqueue(s, CmdAdmin, req)

	default:
		s.Logger().Debug("unsupported packet", zap.Stringer("packet", f.Type))
		h.fail(s, "unsupported", "unsupported packet "+f.Type.String())
	}
}

func (h *Handler) decode(s *network.Session, f protocol.Frame, m encoding.BinaryUnmarshaler) bool {
	if err := m.UnmarshalBinary(f.Payload); err != nil {
		s.Logger().Debug("malformed payload", zap.Stringer("packet", f.Type), zap.Error(err))
		h.fail(s, "bad_request", "malformed "+f.Type.String())
		return false
	}
	return true
}

// enqueue hands a world command to the scheduler. Rejected moves are dropped
// silently; the next move supersedes them.
func (h *Handler) enqueue(s *network.Session, kind CommandKind, payload any) {
	ok, reason := h.queue.Enqueue(Command{Kind: kind, Session: s, Payload: payload, At: h.now()})
	if ok {
		return
	}
	s.Logger().Warn("command rejected", zap.Stringer("command", kind), zap.String("reason", reason))
	if kind != CmdMove {
		h.fail(s, reason, "server busy, try again")
	}
}

func (h *Handler) reply(s *network.Session, t protocol.PacketType, m encoding.BinaryMarshaler) {
	if err := s.Send(t, m); err != nil && !errors.Is(err, network.ErrSessionClosed) {
		s.Logger().Debug("send failed", zap.Stringer("packet", t), zap.Error(err))
	}
}

func (h *Handler) fail(s *network.Session, code, message string) {
	h.reply(s, protocol.ErrorMessage, protocol.ErrorNotice{Code: code, Message: message})
}

// ctx bounds a persistence call made on a session goroutine.
func (h *Handler) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.cfg.Tick.SaveTimeout)
}
