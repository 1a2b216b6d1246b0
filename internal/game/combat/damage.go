// Package combat resolves attacks, skills, deaths, and respawns against the
// world registry.
package combat

import (
	"fmt"
	"math"
	"strings"
)

// DamageType selects how defense applies to a hit.
type DamageType uint8

const (
	Physical DamageType = iota
	Magical
	True
)

func (d DamageType) String() string {
	switch d {
	case Physical:
		return "physical"
	case Magical:
		return "magical"
	case True:
		return "true"
	default:
		return fmt.Sprintf("damage_type(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DamageType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DamageType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "physical":
		*d = Physical
	case "magical":
		*d = Magical
	case "true":
		*d = True
	default:
		return fmt.Errorf("unknown damage type %q", string(b))
	}
	return nil
}

const (
	// MinVariance and MaxVariance bound the random damage factor.
	MinVariance = 0.9
	MaxVariance = 1.1

	levelStep   = 0.02
	minLevelMod = 0.5
	maxLevelMod = 1.5
)

// DamageInput is the stat snapshot a single hit is computed from.
type DamageInput struct {
	Attack        int
	Defense       int
	AttackerLevel int
	DefenderLevel int
	Multiplier    float64
	Type          DamageType
}

// CalculateDamage computes the damage of one hit.
//
// Physical and magical damage are reduced by def/(def+100), scaled by a level
// modifier of 2% per level of difference clamped to [0.5, 1.5], and scaled by
// variance. True damage is attack times multiplier with no other factor.
//
// Precondition: variance should be in [MinVariance, MaxVariance]; it is clamped otherwise.
// Postcondition: Returns >= 1.
func CalculateDamage(in DamageInput, variance float64) int {
	base := float64(in.Attack) * in.Multiplier
	if in.Type == True {
		return atLeastOne(base)
	}

	def := math.Max(0, float64(in.Defense))
	dmg := base * (1 - def/(def+100))

	levelMod := 1 + float64(in.AttackerLevel-in.DefenderLevel)*levelStep
	dmg *= clamp(levelMod, minLevelMod, maxLevelMod)
	dmg *= clamp(variance, MinVariance, MaxVariance)
	return atLeastOne(dmg)
}

// SplashDamage is the damage dealt to secondary targets of an area skill.
//
// Postcondition: Returns >= 1.
func SplashDamage(primary int) int {
	return max(1, primary*7/10)
}

func atLeastOne(v float64) int {
	n := int(v)
	if n < 1 {
		return 1
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
