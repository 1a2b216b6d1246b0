package combat

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

const (
	// AttackCooldown is the minimum interval between basic attacks.
	AttackCooldown = 1500 * time.Millisecond
	// BasicAttackSkill marks a hit that did not come from a skill.
	BasicAttackSkill = -1
)

// DamageResult describes one hit landing on one target.
type DamageResult struct {
	AttackerID   uint64
	AttackerKind world.Category
	TargetID     uint64
	TargetKind   world.Category
	SkillID      int
	Damage       int
	TargetHP     int
	TargetMaxHP  int
	TargetDied   bool
	AreaEffect   bool
}

// SkillResult describes a completed skill use.
//
// Hits is empty for heal skills; otherwise Hits[0] is the primary target.
type SkillResult struct {
	CasterID uint64
	Skill    *Skill
	Healed   int
	CasterHP int
	CasterMP int
	Hits     []DamageResult
}

// DeathEvent records a player death.
type DeathEvent struct {
	VictimID   uint64
	KillerID   uint64
	KillerKind world.Category
	PvP        bool
}

// Resolver applies combat rules to entities in a Registry.
//
// It is not safe for concurrent use; the tick goroutine owns it.
type Resolver struct {
	registry *world.Registry
	skills   *Catalog
	roller   *dice.Roller
	now      func() time.Time
	logger   *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: all arguments must be non-nil.
func NewResolver(registry *world.Registry, skills *Catalog, roller *dice.Roller, now func() time.Time, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		skills:   skills,
		roller:   roller,
		now:      now,
		logger:   logger,
	}
}

// Skills returns the skill catalog.
func (r *Resolver) Skills() *Catalog { return r.skills }

func (r *Resolver) variance() float64 {
	return r.roller.Between(MinVariance, MaxVariance)
}

// target is the resolver's view of anything that can be hit.
type target struct {
	player *world.Player
	npc    *world.NPC
}

func (r *Resolver) lookup(id uint64, kind world.Category) (target, bool) {
	switch kind {
	case world.CategoryPlayer:
		p, ok := r.registry.Player(id)
		return target{player: p}, ok
	case world.CategoryNPC:
		n, ok := r.registry.NPC(id)
		return target{npc: n}, ok
	}
	return target{}, false
}

func (t target) alive() bool {
	if t.player != nil {
		return t.player.IsAlive()
	}
	return t.npc.IsAlive()
}

func (t target) position() world.Vector3 {
	if t.player != nil {
		return t.player.Position()
	}
	return t.npc.Position()
}

func (t target) defense() (def, level int) {
	if t.player != nil {
		return t.player.EffectiveDefense(), t.player.Level
	}
	return t.npc.Defense, t.npc.Level
}

// apply subtracts dmg from the target, flooring hp at zero.
func (t target) apply(dmg int, now time.Time) (hp, maxHP int, died bool) {
	if t.player != nil {
		p := t.player
		p.HP -= dmg
		p.LastDamaged = now
		if p.HP <= 0 {
			p.HP = 0
			died = true
		}
		return p.HP, p.EffectiveMaxHP(), died
	}
	n := t.npc
	n.HP -= dmg
	if n.HP <= 0 {
		n.HP = 0
		died = true
	}
	return n.HP, n.MaxHP, died
}

func (t target) id() uint64 {
	if t.player != nil {
		return t.player.ID()
	}
	return t.npc.ID()
}

// BasicAttack resolves a melee swing from a player.
//
// Postcondition: Returns (nil, reason) and changes nothing when the attacker is
// dead or on cooldown, or the target is missing, dead, or beyond MeleeRange.
// Otherwise the damage is applied, attacker.LastAttack is stamped, and
// (result, ReasonNone) is returned.
func (r *Resolver) BasicAttack(attackerID, targetID uint64, kind world.Category) (*DamageResult, protocol.Reason) {
	now := r.now()
	attacker, ok := r.registry.Player(attackerID)
	if !ok {
		return nil, protocol.ReasonNotInWorld
	}
	if !attacker.IsAlive() {
		return nil, protocol.ReasonAttackerDead
	}
	if !attacker.LastAttack.IsZero() && now.Sub(attacker.LastAttack) < AttackCooldown {
		return nil, protocol.ReasonCooldown
	}
	tgt, ok := r.lookup(targetID, kind)
	if !ok || tgt.id() == attackerID && kind == world.CategoryPlayer {
		return nil, protocol.ReasonNoTarget
	}
	if !tgt.alive() {
		return nil, protocol.ReasonTargetDead
	}
	if attacker.Position().DistanceTo(tgt.position()) > MeleeRange {
		return nil, protocol.ReasonOutOfRange
	}

	def, defLevel := tgt.defense()
	dmg := CalculateDamage(DamageInput{
		Attack:        attacker.EffectiveAttack(),
		Defense:       def,
		AttackerLevel: attacker.Level,
		DefenderLevel: defLevel,
		Multiplier:    1,
		Type:          Physical,
	}, r.variance())
	hp, maxHP, died := tgt.apply(dmg, now)
	attacker.LastAttack = now
	attacker.TargetID = targetID

	r.logger.Debug("basic attack",
		zap.Uint64("attacker", attackerID),
		zap.Uint64("target", targetID),
		zap.Stringer("kind", kind),
		zap.Int("damage", dmg),
		zap.Bool("died", died),
	)
	return &DamageResult{
		AttackerID:   attackerID,
		AttackerKind: world.CategoryPlayer,
		TargetID:     targetID,
		TargetKind:   kind,
		SkillID:      BasicAttackSkill,
		Damage:       dmg,
		TargetHP:     hp,
		TargetMaxHP:  maxHP,
		TargetDied:   died,
	}, protocol.ReasonNone
}

// UseSkill resolves a skill cast by a player.
//
// Validation covers the skill id, level gate, MP, cooldown, and for damage
// skills a live target within range. A rejected cast changes nothing. An
// accepted cast consumes MP and stamps the cooldown before its effect.
// Area skills also hit every other live NPC within AoERadius of the primary
// target for SplashDamage of the primary hit.
//
// Postcondition: Returns (nil, reason) on rejection, or (result, ReasonNone).
func (r *Resolver) UseSkill(casterID uint64, skillID int, targetID uint64, kind world.Category) (*SkillResult, protocol.Reason) {
	now := r.now()
	caster, ok := r.registry.Player(casterID)
	if !ok {
		return nil, protocol.ReasonNotInWorld
	}
	if !caster.IsAlive() {
		return nil, protocol.ReasonAttackerDead
	}
	skill, ok := r.skills.Get(skillID)
	if !ok {
		return nil, protocol.ReasonUnknownSkill
	}
	if caster.Level < skill.RequiredLevel {
		return nil, protocol.ReasonLevelTooLow
	}
	if caster.MP < skill.MPCost {
		return nil, protocol.ReasonInsufficientMP
	}
	if until, ok := caster.SkillCooldowns[skillID]; ok && now.Before(until) {
		return nil, protocol.ReasonCooldown
	}

	var tgt target
	if !skill.IsHeal() {
		tgt, ok = r.lookup(targetID, kind)
		if !ok || tgt.id() == casterID && kind == world.CategoryPlayer {
			return nil, protocol.ReasonNoTarget
		}
		if !tgt.alive() {
			return nil, protocol.ReasonTargetDead
		}
		if caster.Position().DistanceTo(tgt.position()) > skill.Range {
			return nil, protocol.ReasonOutOfRange
		}
	}

	caster.MP -= skill.MPCost
	caster.SkillCooldowns[skillID] = now.Add(skill.Cooldown())

	res := &SkillResult{CasterID: casterID, Skill: skill}
	if skill.IsHeal() {
		before := caster.HP
		caster.HP = min(caster.HP+skill.HealAmount, caster.EffectiveMaxHP())
		res.Healed = caster.HP - before
		res.CasterHP, res.CasterMP = caster.HP, caster.MP
		r.logger.Debug("skill heal", zap.Uint64("caster", casterID), zap.Int("healed", res.Healed))
		return res, protocol.ReasonNone
	}

	def, defLevel := tgt.defense()
	dmg := CalculateDamage(DamageInput{
		Attack:        caster.EffectiveAttack(),
		Defense:       def,
		AttackerLevel: caster.Level,
		DefenderLevel: defLevel,
		Multiplier:    skill.Multiplier,
		Type:          skill.DamageType,
	}, r.variance())
	hp, maxHP, died := tgt.apply(dmg, now)
	caster.TargetID = targetID
	res.Hits = append(res.Hits, DamageResult{
		AttackerID:   casterID,
		AttackerKind: world.CategoryPlayer,
		TargetID:     targetID,
		TargetKind:   kind,
		SkillID:      skillID,
		Damage:       dmg,
		TargetHP:     hp,
		TargetMaxHP:  maxHP,
		TargetDied:   died,
	})

	if skill.AoERadius > 0 {
		splash := SplashDamage(dmg)
		for _, n := range r.registry.NearbyNPCs(tgt.position(), skill.AoERadius) {
			if n.ID() == targetID && kind == world.CategoryNPC || !n.IsAlive() {
				continue
			}
			hp, maxHP, died := target{npc: n}.apply(splash, now)
			res.Hits = append(res.Hits, DamageResult{
				AttackerID:   casterID,
				AttackerKind: world.CategoryPlayer,
				TargetID:     n.ID(),
				TargetKind:   world.CategoryNPC,
				SkillID:      skillID,
				Damage:       splash,
				TargetHP:     hp,
				TargetMaxHP:  maxHP,
				TargetDied:   died,
				AreaEffect:   true,
			})
		}
	}
	res.CasterHP, res.CasterMP = caster.HP, caster.MP

	r.logger.Debug("skill used",
		zap.Uint64("caster", casterID),
		zap.String("skill", skill.Name),
		zap.Int("targets", len(res.Hits)),
	)
	return res, protocol.ReasonNone
}

// NPCStrike resolves an NPC's attack on a player. Range and cooldown are the
// caller's concern.
//
// Precondition: n and p must be non-nil and alive.
// Postcondition: n.LastAttack is stamped and the damage is applied to p.
func (r *Resolver) NPCStrike(n *world.NPC, p *world.Player) DamageResult {
	now := r.now()
	dmg := CalculateDamage(DamageInput{
		Attack:        n.Attack,
		Defense:       p.EffectiveDefense(),
		AttackerLevel: n.Level,
		DefenderLevel: p.Level,
		Multiplier:    1,
		Type:          Physical,
	}, r.variance())
	hp, maxHP, died := target{player: p}.apply(dmg, now)
	n.LastAttack = now
	return DamageResult{
		AttackerID:   n.ID(),
		AttackerKind: world.CategoryNPC,
		TargetID:     p.ID(),
		TargetKind:   world.CategoryPlayer,
		SkillID:      BasicAttackSkill,
		Damage:       dmg,
		TargetHP:     hp,
		TargetMaxHP:  maxHP,
		TargetDied:   died,
	}
}

// HandleDeath marks a player dead. killerKind is zero when there is no killer.
//
// Postcondition: Returns nil if the player is unknown. Otherwise the player is
// Dead with HP 0 and one more death; a player killer gains a kill and a player kill.
func (r *Resolver) HandleDeath(playerID, killerID uint64, killerKind world.Category) *DeathEvent {
	p, ok := r.registry.Player(playerID)
	if !ok {
		return nil
	}
	p.Dead = true
	p.HP = 0
	p.TargetID = 0
	p.Lifetime.Deaths++

	ev := &DeathEvent{VictimID: playerID, KillerID: killerID, KillerKind: killerKind}
	if killerKind == world.CategoryPlayer {
		if killer, ok := r.registry.Player(killerID); ok {
			killer.Lifetime.Kills++
			killer.Lifetime.PlayerKills++
			ev.PvP = true
		}
	}
	r.logger.Info("player died",
		zap.String("player", p.Name),
		zap.Uint64("killer", killerID),
		zap.Stringer("killer_kind", killerKind),
	)
	return ev
}

// Respawn revives a dead player at pos with full HP and MP.
//
// Postcondition: Returns false if the player is unknown.
func (r *Resolver) Respawn(playerID uint64, pos world.Vector3) bool {
	p, ok := r.registry.Player(playerID)
	if !ok {
		return false
	}
	p.Dead = false
	p.HP = p.EffectiveMaxHP()
	p.MP = p.MaxMP
	if err := r.registry.Relocate(playerID, pos, 0); err != nil {
		return false
	}
	r.logger.Info("player respawned", zap.String("player", p.Name))
	return true
}
