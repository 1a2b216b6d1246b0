package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/subjugate/internal/game/combat"
)

func TestCalculateDamage_DefenseCurve(t *testing.T) {
	in := combat.DamageInput{Attack: 100, Defense: 100, AttackerLevel: 10, DefenderLevel: 10, Multiplier: 1}
	assert.Equal(t, 50, combat.CalculateDamage(in, 1.0), "def 100 halves damage")

	in.Defense = 0
	assert.Equal(t, 100, combat.CalculateDamage(in, 1.0))
	assert.Equal(t, 110, combat.CalculateDamage(in, 1.1))
	assert.Equal(t, 110, combat.CalculateDamage(in, 5), "variance is clamped")
}

func TestCalculateDamage_LevelModifierClamped(t *testing.T) {
	in := combat.DamageInput{Attack: 100, AttackerLevel: 60, DefenderLevel: 10, Multiplier: 1}
	assert.Equal(t, 150, combat.CalculateDamage(in, 1.0))

	in.AttackerLevel, in.DefenderLevel = 1, 100
	assert.Equal(t, 50, combat.CalculateDamage(in, 1.0))

	in.AttackerLevel, in.DefenderLevel = 15, 10
	assert.Equal(t, 110, combat.CalculateDamage(in, 1.0))
}

func TestCalculateDamage_TrueIgnoresDefense(t *testing.T) {
	in := combat.DamageInput{Attack: 40, Defense: 10000, AttackerLevel: 1, DefenderLevel: 99, Multiplier: 5, Type: combat.True}
	assert.Equal(t, 200, combat.CalculateDamage(in, 0.9))
}

func TestCalculateDamage_FloorsAtOne(t *testing.T) {
	in := combat.DamageInput{Attack: 1, Defense: 5000, AttackerLevel: 1, DefenderLevel: 150, Multiplier: 1}
	assert.Equal(t, 1, combat.CalculateDamage(in, 0.9))
	assert.Equal(t, 1, combat.SplashDamage(1))
	assert.Equal(t, 7, combat.SplashDamage(10))
}

func TestDamageType_Text(t *testing.T) {
	var d combat.DamageType
	assert.NoError(t, d.UnmarshalText([]byte("Magical")))
	assert.Equal(t, combat.Magical, d)
	assert.Error(t, d.UnmarshalText([]byte("psychic")))
	b, _ := combat.True.MarshalText()
	assert.Equal(t, "true", string(b))
}

func TestProperty_DamageMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := combat.DamageInput{
			Attack:        rapid.IntRange(0, 2000).Draw(t, "atk"),
			Defense:       rapid.IntRange(0, 2000).Draw(t, "def"),
			AttackerLevel: rapid.IntRange(1, 150).Draw(t, "alvl"),
			DefenderLevel: rapid.IntRange(1, 150).Draw(t, "dlvl"),
			Multiplier:    rapid.Float64Range(0.5, 6).Draw(t, "mult"),
			Type:          combat.DamageType(rapid.IntRange(0, 2).Draw(t, "type")),
		}
		v := rapid.Float64Range(combat.MinVariance, combat.MaxVariance).Draw(t, "variance")
		base := combat.CalculateDamage(in, v)
		if base < 1 {
			t.Fatalf("damage %d below floor", base)
		}

		stronger := in
		stronger.Attack += rapid.IntRange(1, 500).Draw(t, "extra_atk")
		if got := combat.CalculateDamage(stronger, v); got < base {
			t.Fatalf("more attack lowered damage: %d < %d", got, base)
		}

		tougher := in
		tougher.Defense += rapid.IntRange(1, 500).Draw(t, "extra_def")
		if got := combat.CalculateDamage(tougher, v); got > base {
			t.Fatalf("more defense raised damage: %d > %d", got, base)
		}
	})
}
