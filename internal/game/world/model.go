// Package world holds the live simulation state: every player and NPC in the
// world, indexed by chunk for proximity queries.
package world

import (
	"math"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/character"
)

// Vector3 is a world-space position. Y is height; the ground plane is X/Z.
type Vector3 struct {
	X, Y, Z float64
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vector3) DistanceTo(o Vector3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Toward returns the point at most step units from v in the direction of target.
//
// Postcondition: Returns target when it is within step of v.
func (v Vector3) Toward(target Vector3, step float64) Vector3 {
	d := v.DistanceTo(target)
	if d <= step || d == 0 {
		return target
	}
	f := step / d
	return Vector3{
		X: v.X + (target.X-v.X)*f,
		Y: v.Y + (target.Y-v.Y)*f,
		Z: v.Z + (target.Z-v.Z)*f,
	}
}

// ChunkID addresses one square cell of the ground plane.
type ChunkID struct {
	X, Z int
}

// ChunkOf returns the chunk containing pos.
//
// Precondition: size must be > 0.
func ChunkOf(pos Vector3, size float64) ChunkID {
	return ChunkID{
		X: int(math.Floor(pos.X / size)),
		Z: int(math.Floor(pos.Z / size)),
	}
}

// Category separates entity kinds into independent indexes.
type Category uint8

const (
	CategoryPlayer Category = iota + 1
	CategoryNPC
)

func (c Category) String() string {
	switch c {
	case CategoryPlayer:
		return "player"
	case CategoryNPC:
		return "npc"
	default:
		return "unknown"
	}
}

// Entity is anything placed in the world.
type Entity interface {
	ID() uint64
	Position() Vector3
	Rotation() float64
	Category() Category
	Chunk() ChunkID
}

// placement is the positional state shared by players and NPCs.
// Only the Registry writes it.
type placement struct {
	id       uint64
	pos      Vector3
	rotation float64
	chunk    ChunkID
}

func (p *placement) ID() uint64        { return p.id }
func (p *placement) Position() Vector3 { return p.pos }
func (p *placement) Rotation() float64 { return p.rotation }
func (p *placement) Chunk() ChunkID    { return p.chunk }

// Player is a character currently in the world.
//
// MaxHP, Attack, and Defense are the character's own values including
// perks; territory buffs are applied on read via the Effective methods.
type Player struct {
	placement

	CharacterID int64
	AccountID   int64
	Name        string
	GameMode    string
	GuildID     int64

	Level      int
	Experience int64
	HP         int
	MaxHP      int
	MP         int
	MaxMP      int
	Attack     int
	Defense    int
	Speed      float64

	Dead        bool
	LastAttack  time.Time
	LastDamaged time.Time
	TargetID    uint64

	ReincarnationCount int
	Perks              character.Perks
	Lifetime           character.Lifetime
	TerritoryBuff      character.Buff

	SkillCooldowns map[int]time.Time
	EnteredAt      time.Time
}

func (p *Player) Category() Category { return CategoryPlayer }

// IsAlive reports whether p can act and be targeted.
func (p *Player) IsAlive() bool { return p.HP > 0 && !p.Dead }

// EffectiveMaxHP is MaxHP plus the territory buff.
func (p *Player) EffectiveMaxHP() int { return p.MaxHP + p.TerritoryBuff.HP }

// EffectiveAttack is Attack plus the territory buff.
func (p *Player) EffectiveAttack() int { return p.Attack + p.TerritoryBuff.Attack }

// EffectiveDefense is Defense plus the territory buff.
func (p *Player) EffectiveDefense() int { return p.Defense + p.TerritoryBuff.Defense }

// ExperienceMultiplier is the factor applied to experience gains.
func (p *Player) ExperienceMultiplier() float64 {
	return 1 + p.Perks.ExperienceMultiple + p.TerritoryBuff.ExperienceMultiple
}

// SetTerritoryBuff replaces the territory buff, clamping HP to the new maximum.
func (p *Player) SetTerritoryBuff(b character.Buff) {
	p.TerritoryBuff = b
	if max := p.EffectiveMaxHP(); p.HP > max {
		p.HP = max
	}
}

// Snapshot copies p's persistent state into a character record.
//
// Postcondition: The returned character has ID == p.CharacterID and Online == true.
func (p *Player) Snapshot() *character.Character {
	hp := p.HP
	if hp > p.MaxHP {
		hp = p.MaxHP
	}
	return &character.Character{
		ID:                 p.CharacterID,
		AccountID:          p.AccountID,
		Name:               p.Name,
		GameMode:           p.GameMode,
		GuildID:            p.GuildID,
		Level:              p.Level,
		Experience:         p.Experience,
		HP:                 hp,
		MaxHP:              p.MaxHP,
		MP:                 p.MP,
		MaxMP:              p.MaxMP,
		Attack:             p.Attack,
		Defense:            p.Defense,
		Speed:              p.Speed,
		X:                  p.pos.X,
		Y:                  p.pos.Y,
		Z:                  p.pos.Z,
		Rotation:           p.rotation,
		ReincarnationCount: p.ReincarnationCount,
		Perks:              p.Perks,
		Lifetime:           p.Lifetime,
		Online:             true,
		Dead:               p.Dead,
	}
}

// ApplyLife copies the life-scoped state of c onto p: level, experience,
// stats, reincarnation count, perks, and lifetime counters. Position and
// identity are untouched.
func (p *Player) ApplyLife(c *character.Character) {
	p.Level = c.Level
	p.Experience = c.Experience
	p.HP, p.MaxHP = c.HP, c.MaxHP
	p.MP, p.MaxMP = c.MP, c.MaxMP
	p.Attack, p.Defense, p.Speed = c.Attack, c.Defense, c.Speed
	p.ReincarnationCount = c.ReincarnationCount
	p.Perks = c.Perks
	p.Lifetime = c.Lifetime
	p.Dead = c.Dead
}

// AccruePlaytime folds the whole seconds since the last accrual into the
// lifetime playtime counter.
func (p *Player) AccruePlaytime(now time.Time) {
	secs := int64(now.Sub(p.EnteredAt) / time.Second)
	if secs <= 0 {
		return
	}
	p.Lifetime.PlaytimeSeconds += secs
	p.EnteredAt = p.EnteredAt.Add(time.Duration(secs) * time.Second)
}

// NPCKind distinguishes ordinary monsters from bosses.
type NPCKind string

const (
	KindMonster NPCKind = "monster"
	KindBoss    NPCKind = "boss"
)

// NPCState is the AI state of an NPC.
type NPCState uint8

const (
	StateIdle NPCState = iota
	StatePatrolling
	StateChasing
	StateAttacking
)

func (s NPCState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePatrolling:
		return "patrolling"
	case StateChasing:
		return "chasing"
	case StateAttacking:
		return "attacking"
	default:
		return "unknown"
	}
}

// Behavior holds the movement and combat tuning of an NPC's AI.
type Behavior struct {
	WanderRadius   float64
	PatrolSpeed    float64
	ChaseSpeed     float64
	LeashRange     float64
	AttackRange    float64
	AttackCooldown time.Duration
}

// NPCSpec is everything needed to spawn an NPC.
type NPCSpec struct {
	TemplateID   int
	Name         string
	Kind         NPCKind
	Level        int
	MaxHP        int
	Attack       int
	Defense      int
	XPReward     int64
	LootTable    []int
	AggroRange   float64
	RespawnDelay time.Duration
	Behavior     Behavior
}

// NPC is a live non-player entity.
type NPC struct {
	placement

	TemplateID int
	Name       string
	Kind       NPCKind
	Level      int
	HP         int
	MaxHP      int
	Attack     int
	Defense    int
	XPReward   int64
	LootTable  []int
	AggroRange float64

	State         NPCState
	TargetID      uint64
	SpawnPosition Vector3
	PatrolTarget  Vector3
	HasPatrol     bool
	LastAttack    time.Time
	RespawnDelay  time.Duration
	Behavior      Behavior
}

func (n *NPC) Category() Category { return CategoryNPC }

// IsAlive reports whether n can act and be targeted.
func (n *NPC) IsAlive() bool { return n.HP > 0 }

// IsBoss reports whether n is a boss.
func (n *NPC) IsBoss() bool { return n.Kind == KindBoss }

// Spec returns the spawn description n was created from.
func (n *NPC) Spec() NPCSpec {
	return NPCSpec{
		TemplateID:   n.TemplateID,
		Name:         n.Name,
		Kind:         n.Kind,
		Level:        n.Level,
		MaxHP:        n.MaxHP,
		Attack:       n.Attack,
		Defense:      n.Defense,
		XPReward:     n.XPReward,
		LootTable:    n.LootTable,
		AggroRange:   n.AggroRange,
		RespawnDelay: n.RespawnDelay,
		Behavior:     n.Behavior,
	}
}
