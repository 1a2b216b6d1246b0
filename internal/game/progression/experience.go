package progression

import (
	"math"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Stat growth per level gained.
const (
	LevelHP      = 10
	LevelMP      = 5
	LevelAttack  = 2
	LevelDefense = 1
)

// ExperienceToLevel returns the experience needed to advance from level.
func ExperienceToLevel(level int) int64 {
	return int64(level) * int64(level) * 100
}

// Gain is the outcome of awarding experience.
type Gain struct {
	Awarded    int64
	Levels     int
	LevelAfter int
}

// GainExperience awards base experience scaled by p's multiplier and applies
// any level-ups. Each level raises max HP, max MP, attack, and defense and
// fully heals. Experience stops accruing at MaxLevel.
//
// Postcondition: p.Level <= character.MaxLevel; p.Experience < ExperienceToLevel(p.Level) unless capped.
func GainExperience(p *world.Player, base int64) Gain {
	if base <= 0 || p.Level >= character.MaxLevel {
		return Gain{LevelAfter: p.Level}
	}
	awarded := int64(math.Floor(float64(base) * p.ExperienceMultiplier()))
	p.Experience += awarded

	g := Gain{Awarded: awarded}
	for p.Level < character.MaxLevel && p.Experience >= ExperienceToLevel(p.Level) {
		p.Experience -= ExperienceToLevel(p.Level)
		p.Level++
		p.MaxHP += LevelHP
		p.MaxMP += LevelMP
		p.Attack += LevelAttack
		p.Defense += LevelDefense
		g.Levels++
	}
	if p.Level >= character.MaxLevel {
		p.Experience = 0
	}
	if g.Levels > 0 {
		p.HP = p.EffectiveMaxHP()
		p.MP = p.MaxMP
	}
	g.LevelAfter = p.Level
	return g
}
