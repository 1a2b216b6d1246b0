package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
)

func TestCryptoSource_Ranges(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
		f := src.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestCryptoSource_PanicsOnNonPositive(t *testing.T) {
	assert.PanicsWithValue(t, "dice: Intn called with n <= 0", func() {
		dice.NewCryptoSource().Intn(0)
	})
}

func TestSeededSource_Reproducible(t *testing.T) {
	a, b := dice.NewSeededSource(7), dice.NewSeededSource(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestConstant(t *testing.T) {
	c := dice.Constant(0.5)
	assert.Equal(t, 5, c.Intn(10))
	assert.Equal(t, 0.5, c.Float64())
}

func TestRoller_ChanceBounds(t *testing.T) {
	r := dice.NewRoller(dice.Constant(0.29), zap.NewNop())
	assert.True(t, r.Chance("loot", 0.3))
	assert.False(t, r.Chance("loot", 0.29))
	assert.False(t, r.Chance("never", 0))

	r = dice.NewRoller(dice.Constant(0.999), zap.NewNop())
	assert.True(t, r.Chance("always", 1))
}

func TestProperty_BetweenStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		lo := rapid.Float64Range(-1000, 1000).Draw(t, "lo")
		width := rapid.Float64Range(0, 1000).Draw(t, "width")
		r := dice.NewRoller(dice.NewSeededSource(seed), zap.NewNop())
		v := r.Between(lo, lo+width)
		if v < lo || v > lo+width {
			t.Fatalf("Between(%v, %v) = %v", lo, lo+width, v)
		}
	})
}
