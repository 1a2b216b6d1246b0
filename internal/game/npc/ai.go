package npc

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

const (
	// PatrolChance is the per-tick probability an idle NPC starts patrolling.
	PatrolChance = 0.10
	// RestChance is the per-tick probability a patrolling NPC goes idle.
	RestChance = 0.05
)

// WorldQuery is the read-only view of the world the AI needs.
type WorldQuery interface {
	NearbyPlayers(pos world.Vector3, radius float64) []*world.Player
	Player(id uint64) (*world.Player, bool)
}

// ActionKind identifies what an Action asks the caller to do.
type ActionKind uint8

const (
	// ActionMove relocates the NPC to Position.
	ActionMove ActionKind = iota + 1
	// ActionAttack strikes the player TargetID.
	ActionAttack
	// ActionLeash teleports the NPC back to Position (its spawn) after a full heal.
	ActionLeash
)

// Action is a side effect the AI wants applied to the world.
type Action struct {
	Kind     ActionKind
	NPCID    uint64
	TargetID uint64
	Position world.Vector3
	Rotation float64
}

// AI runs the per-NPC state machine.
type AI struct {
	roller *dice.Roller
	logger *zap.Logger
}

// NewAI creates an AI that rolls state changes with roller.
//
// Precondition: roller and logger must be non-nil.
func NewAI(roller *dice.Roller, logger *zap.Logger) *AI {
	return &AI{roller: roller, logger: logger}
}

// Update advances one NPC by dt.
//
// Update writes only n's AI fields (State, TargetID, patrol waypoint, and HP
// on leash). Position changes and attacks are returned as Actions so the
// caller can route them through the registry and combat resolver.
//
// Precondition: n and q must be non-nil.
// Postcondition: Dead NPCs return no actions and are left unchanged.
func (a *AI) Update(n *world.NPC, q WorldQuery, dt time.Duration, now time.Time) []Action {
	if !n.IsAlive() {
		return nil
	}
	switch n.State {
	case world.StateIdle:
		return a.idle(n, q)
	case world.StatePatrolling:
		return a.patrol(n, q, dt)
	case world.StateChasing:
		return a.chase(n, q, dt)
	case world.StateAttacking:
		return a.attack(n, q, now)
	}
	return nil
}

// acquire switches n to Chasing if a live player is within aggro range. The
// nearest live player is chosen, the lowest entity id breaking ties.
func (a *AI) acquire(n *world.NPC, q WorldQuery) bool {
	pos := n.Position()
	var target *world.Player
	var best float64
	for _, p := range q.NearbyPlayers(pos, n.AggroRange) {
		if !p.IsAlive() {
			continue
		}
		d := pos.DistanceTo(p.Position())
		if target == nil || d < best || (d == best && p.ID() < target.ID()) {
			target, best = p, d
		}
	}
	if target == nil {
		return false
	}
	n.TargetID = target.ID()
	n.State = world.StateChasing
	n.HasPatrol = false
	a.logger.Debug("npc aggro",
		zap.String("npc", n.Name),
		zap.Uint64("npc_id", n.ID()),
		zap.String("target", target.Name),
	)
	return true
}

func (a *AI) idle(n *world.NPC, q WorldQuery) []Action {
	if a.acquire(n, q) {
		return nil
	}
	if a.roller.Chance("npc_patrol", PatrolChance) {
		n.State = world.StatePatrolling
	}
	return nil
}

func (a *AI) patrol(n *world.NPC, q WorldQuery, dt time.Duration) []Action {
	if a.acquire(n, q) {
		return nil
	}
	b := n.Behavior
	pos := n.Position()
	switch {
	case flatDistance(pos, n.SpawnPosition) > b.WanderRadius:
		n.PatrolTarget, n.HasPatrol = n.SpawnPosition, true
	case !n.HasPatrol || flatDistance(pos, n.PatrolTarget) < 0.01:
		angle := a.roller.Between(0, 2*math.Pi)
		dist := a.roller.Between(0, b.WanderRadius)
		n.PatrolTarget = world.Vector3{
			X: n.SpawnPosition.X + math.Cos(angle)*dist,
			Y: pos.Y,
			Z: n.SpawnPosition.Z + math.Sin(angle)*dist,
		}
		n.HasPatrol = true
	}

	var actions []Action
	if step := b.PatrolSpeed * dt.Seconds(); step > 0 {
		actions = append(actions, moveToward(n, n.PatrolTarget, step))
	}
	if a.roller.Chance("npc_rest", RestChance) {
		n.State = world.StateIdle
		n.HasPatrol = false
	}
	return actions
}

// target returns n's current target if it is still a live player.
func (a *AI) target(n *world.NPC, q WorldQuery) (*world.Player, bool) {
	if n.TargetID == 0 {
		return nil, false
	}
	p, ok := q.Player(n.TargetID)
	if !ok || !p.IsAlive() {
		return nil, false
	}
	return p, true
}

func (a *AI) drop(n *world.NPC) {
	n.TargetID = 0
	n.State = world.StateIdle
}

func (a *AI) chase(n *world.NPC, q WorldQuery, dt time.Duration) []Action {
	p, ok := a.target(n, q)
	if !ok {
		a.drop(n)
		return nil
	}
	b := n.Behavior
	if n.Position().DistanceTo(n.SpawnPosition) > b.LeashRange {
		a.logger.Debug("npc leashed", zap.String("npc", n.Name), zap.Uint64("npc_id", n.ID()))
		a.drop(n)
		n.HP = n.MaxHP
		return []Action{{Kind: ActionLeash, NPCID: n.ID(), Position: n.SpawnPosition}}
	}
	if n.Position().DistanceTo(p.Position()) <= b.AttackRange {
		n.State = world.StateAttacking
		return nil
	}
	step := b.ChaseSpeed * dt.Seconds()
	if step <= 0 {
		return nil
	}
	return []Action{moveToward(n, p.Position(), step)}
}

func (a *AI) attack(n *world.NPC, q WorldQuery, now time.Time) []Action {
	p, ok := a.target(n, q)
	if !ok {
		a.drop(n)
		return nil
	}
	if n.Position().DistanceTo(p.Position()) > n.Behavior.AttackRange {
		n.State = world.StateChasing
		return nil
	}
	if !n.LastAttack.IsZero() && now.Sub(n.LastAttack) < n.Behavior.AttackCooldown {
		return nil
	}
	return []Action{{Kind: ActionAttack, NPCID: n.ID(), TargetID: p.ID()}}
}

// moveToward steps n across the ground plane toward dest, keeping its height.
func moveToward(n *world.NPC, dest world.Vector3, step float64) Action {
	pos := n.Position()
	flat := world.Vector3{X: dest.X, Y: pos.Y, Z: dest.Z}
	next := pos.Toward(flat, step)
	return Action{
		Kind:     ActionMove,
		NPCID:    n.ID(),
		Position: next,
		Rotation: math.Atan2(flat.X-pos.X, flat.Z-pos.Z),
	}
}

func flatDistance(a, b world.Vector3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}
