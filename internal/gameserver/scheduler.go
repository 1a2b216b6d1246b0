// Package gameserver runs the authoritative world simulation: a single
// scheduler goroutine drains client commands, advances NPCs, territories,
// respawns and world events at a fixed rate, and broadcasts the resulting
// state to the sessions that can see it.
package gameserver

import (
	"context"
	"encoding"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/game/combat"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/observability"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/scripting"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// World bundles the simulation state owned by the scheduler goroutine.
type World struct {
	Registry    *world.Registry
	Resolver    *combat.Resolver
	AI          *npc.AI
	Respawns    *npc.RespawnManager
	Templates   map[int]*npc.Template
	Territories *territory.Manager
	Progression *progression.Engine
	Roller      *dice.Roller
}

type playerRespawn struct {
	playerID uint64
	at       time.Time
}

// Scheduler is the single writer of world state.
//
// Invariant: every mutation of the registry, combat, territory and NPC state
// happens on the goroutine running Start (or the caller of Tick in tests).
type Scheduler struct {
	cfg      config.Config
	world    *World
	sessions *network.Manager
	queue    *CommandQueue
	chat     *ChatService
	clock    *GameClock
	events   *scripting.Manager
	stores   Stores
	now      func() time.Time
	logger   *zap.Logger

	spawn         world.Vector3
	tick          uint64
	started       time.Time
	lastTick      time.Time
	secondCarry   time.Duration
	eventsStarted bool
	respawns      []playerRespawn
	views         map[uint64]*view
	sent          map[uint64]entityState
	heartbeat     atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once

	// Shutdown is invoked when an admin requests a server shutdown. nil = ignored.
	Shutdown func()
}

// NewScheduler wires a Scheduler. events may be nil when no world-event
// scripts are configured.
//
// Precondition: every other argument must be non-nil.
func NewScheduler(
	cfg config.Config,
	w *World,
	sessions *network.Manager,
	queue *CommandQueue,
	chat *ChatService,
	clock *GameClock,
	events *scripting.Manager,
	stores Stores,
	now func() time.Time,
	logger *zap.Logger,
) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		world:    w,
		sessions: sessions,
		queue:    queue,
		chat:     chat,
		clock:    clock,
		events:   events,
		stores:   stores,
		now:      now,
		logger:   logger,
		spawn:    world.Vector3{X: cfg.World.SpawnX, Y: cfg.World.SpawnY, Z: cfg.World.SpawnZ},
		views:    make(map[uint64]*view),
		sent:     make(map[uint64]entityState),
		stop:     make(chan struct{}),
	}
	s.bindEvents()
	return s
}

// Start runs the tick loop until ctx is cancelled or Stop is called. On exit
// every player still in the world is saved and marked offline.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.cfg.Tick.Interval()
	s.logger.Info("tick scheduler started",
		zap.Int("tick_rate", s.cfg.Tick.Rate),
		zap.Int("network_rate", s.cfg.Tick.NetworkRate),
		zap.Duration("interval", interval),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case <-s.stop:
			s.flush()
			return nil
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Stop asks Start to return. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Tick advances the world by one step ending at now.
//
// Order: drain commands, housekeeping, NPC AI, territory, respawns,
// regeneration, world events, and on every BroadcastEvery-th tick the
// broadcast pass.
func (s *Scheduler) Tick(now time.Time) {
	if s.started.IsZero() {
		s.started = now
		s.lastTick = now.Add(-s.cfg.Tick.Interval())
	}
	dt := now.Sub(s.lastTick)
	s.lastTick = now
	s.tick++

	s.secondCarry += dt
	seconds := int(s.secondCarry / time.Second)
	s.secondCarry -= time.Duration(seconds) * time.Second

	s.drain()
	s.housekeeping(now)
	s.updateNPCs(dt, now)
	s.phase("territory", func() { s.updateTerritories(now, seconds) })
	s.phase("respawn", func() { s.respawn(now) })
	s.phase("regeneration", func() { s.regenerate(now, seconds) })
	s.phase("world_events", func() { s.worldEvents(now, seconds) })
	if s.tick%uint64(s.cfg.Tick.BroadcastEvery()) == 0 {
		s.broadcast()
	}

	s.heartbeat.Store(now.UnixNano())
	if elapsed := s.now().Sub(now); elapsed > s.cfg.Tick.Interval() {
		s.logger.Warn("tick overran its interval",
			zap.Uint64("tick", s.tick),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// phase runs one tick phase; a panic is logged and the tick continues.
func (s *Scheduler) phase(name string, fn func()) {
	observability.Guard(s.logger, name, fn, zap.Uint64("tick", s.tick))
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() uint64 { return s.tick }

// Healthy reports whether a tick completed within ten intervals of now.
// It is safe to call from any goroutine.
func (s *Scheduler) Healthy(now time.Time) bool {
	last := s.heartbeat.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) <= 10*s.cfg.Tick.Interval()
}

func (s *Scheduler) drain() {
	for _, cmd := range s.queue.Drain() {
		observability.Guard(s.logger, "command", func() { s.dispatch(cmd) },
			zap.Stringer("command", cmd.Kind),
		)
	}
}

func (s *Scheduler) dispatch(cmd Command) {
	sess := cmd.Session
	switch cmd.Kind {
	case CmdEnterWorld:
		s.enterWorld(sess, cmd.Character)
		return
	case CmdDisconnect:
		s.disconnect(sess)
		return
	case CmdAdmin:
		if req, ok := cmd.Payload.(protocol.AdminRequest); ok {
			s.admin(sess, req)
		}
		return
	}

	p, ok := s.playerFor(sess)
	if !ok {
		s.sendError(sess, "not_in_world", protocol.ReasonNotInWorld.String())
		return
	}
	switch cmd.Kind {
	case CmdLeaveWorld:
		s.leaveWorld(sess)
		s.send(sess, protocol.LeaveWorld, protocol.KV{"ok": true})
	case CmdMove:
		if m, ok := cmd.Payload.(protocol.Move); ok {
			s.move(p, m)
		}
	case CmdAttack:
		if a, ok := cmd.Payload.(protocol.Attack); ok {
			s.attack(sess, p, a)
		}
	case CmdSkill:
		if m, ok := cmd.Payload.(protocol.Skill); ok {
			s.useSkill(sess, p, m)
		}
	case CmdChat:
		if m, ok := cmd.Payload.(protocol.Chat); ok {
			s.sendChat(sess, p, m)
		}
	case CmdReincarnate:
		kv, _ := cmd.Payload.(protocol.KV)
		s.reincarnate(sess, p, kv.Bool("preview"))
	case CmdTerritoryInfo:
		s.send(sess, protocol.TerritoryInfo, s.territoryStatus(s.now()))
	}
}

// housekeeping closes sessions that have been silent for the liveness
// window and removes their players before the rest of the tick runs.
func (s *Scheduler) housekeeping(now time.Time) {
	for _, sess := range s.sessions.IdleSessions(now, s.cfg.GameServer.LivenessTimeout) {
		sess.Logger().Info("closing idle session",
			zap.Duration("idle", now.Sub(sess.LastActivity())),
		)
		sess.Close()
		s.disconnect(sess)
	}
}

// flush saves every player still in the world.
func (s *Scheduler) flush() {
	for _, sess := range s.sessions.InWorld() {
		s.leaveWorld(sess)
	}
	s.logger.Info("tick scheduler stopped", zap.Uint64("ticks", s.tick))
}

func (s *Scheduler) playerFor(sess *network.Session) (*world.Player, bool) {
	if sess == nil {
		return nil, false
	}
	pid := sess.PlayerID()
	if pid == 0 {
		return nil, false
	}
	return s.world.Registry.Player(pid)
}

// persistCtx bounds a persistence call made from the tick loop.
func (s *Scheduler) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.Tick.SaveTimeout)
}

// record writes a game log entry. Failures are logged, never returned.
func (s *Scheduler) record(kind string, characterID int64, detail map[string]any) {
	if s.stores.Log == nil {
		return
	}
	ctx, cancel := s.persistCtx()
	defer cancel()
	err := s.stores.Log.Record(ctx, storage.LogEntry{
		Kind:        kind,
		CharacterID: characterID,
		Detail:      detail,
		At:          s.now(),
	})
	if err != nil {
		s.logger.Error("recording game log", zap.String("kind", kind), zap.Error(err))
	}
}

func (s *Scheduler) send(sess *network.Session, t protocol.PacketType, m encoding.BinaryMarshaler) {
	if err := sess.Send(t, m); err != nil && !errors.Is(err, network.ErrSessionClosed) {
		sess.Logger().Debug("send failed", zap.Stringer("packet", t), zap.Error(err))
	}
}

func (s *Scheduler) sendError(sess *network.Session, code, message string) {
	if sess == nil {
		return
	}
	s.send(sess, protocol.ErrorMessage, protocol.ErrorNotice{Code: code, Message: message})
}

// toPlayer sends m to the session puppeting playerID, if any.
func (s *Scheduler) toPlayer(playerID uint64, t protocol.PacketType, m encoding.BinaryMarshaler) {
	if sess, ok := s.sessions.SessionForPlayer(playerID); ok {
		s.send(sess, t, m)
	}
}

// toNearby sends m to every player within view distance of pos except exclude.
func (s *Scheduler) toNearby(pos world.Vector3, t protocol.PacketType, m encoding.BinaryMarshaler, exclude uint64) {
	payload, err := m.MarshalBinary()
	if err != nil {
		s.logger.Error("marshalling broadcast", zap.Stringer("packet", t), zap.Error(err))
		return
	}
	for _, p := range s.world.Registry.NearbyPlayers(pos, s.cfg.World.ViewDistance) {
		if p.ID() == exclude {
			continue
		}
		if sess, ok := s.sessions.SessionForPlayer(p.ID()); ok {
			_ = sess.SendRaw(t, payload)
		}
	}
}

// toAll sends m to every in-world session.
func (s *Scheduler) toAll(t protocol.PacketType, m encoding.BinaryMarshaler) {
	if err := s.sessions.Broadcast(t, m); err != nil {
		s.logger.Error("broadcasting", zap.Stringer("packet", t), zap.Error(err))
	}
}

func (s *Scheduler) announce(text string) {
	s.toAll(protocol.WorldAnnouncement, s.chat.Announce(text))
}

func categoryOf(k protocol.EntityKind) world.Category {
	switch k {
	case protocol.KindPlayer:
		return world.CategoryPlayer
	case protocol.KindNPC:
		return world.CategoryNPC
	}
	return 0
}

func kindOf(c world.Category) protocol.EntityKind {
	switch c {
	case world.CategoryPlayer:
		return protocol.KindPlayer
	case world.CategoryNPC:
		return protocol.KindNPC
	}
	return 0
}
