package character_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/subjugate/internal/game/character"
)

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"Ayla", "Sir Lance", "abc", "Player1234567890"} {
		assert.NoError(t, character.ValidateName(ok), ok)
	}
	for _, bad := range []string{"", "ab", " Ayla", "Ayla ", "x_y_z", "Player12345678901", "drop;table"} {
		assert.ErrorIs(t, character.ValidateName(bad), character.ErrInvalidName, bad)
	}
}

func TestNew_StartingStats(t *testing.T) {
	c, err := character.New(7, "Ayla", 100, 0, 100)
	require.NoError(t, err)

	assert.Equal(t, int64(7), c.AccountID)
	assert.Equal(t, character.StartingLevel, c.Level)
	assert.Equal(t, character.BaseHP, c.HP)
	assert.Equal(t, character.BaseHP, c.MaxHP)
	assert.Equal(t, character.BaseMP, c.MP)
	assert.Equal(t, character.BaseAttack, c.Attack)
	assert.Equal(t, character.BaseDefense, c.Defense)
	assert.Equal(t, character.BaseSpeed, c.Speed)
	assert.Equal(t, 100.0, c.X)
	assert.Equal(t, 100.0, c.Z)
	assert.Equal(t, character.DefaultGameMode, c.GameMode)
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := character.New(0, "Ayla", 0, 0, 0)
	assert.Error(t, err)
	_, err = character.New(1, "!", 0, 0, 0)
	assert.ErrorIs(t, err, character.ErrInvalidName)
}

func TestResetLife_KeepsPerksAndCount(t *testing.T) {
	c, err := character.New(1, "Ayla", 0, 0, 0)
	require.NoError(t, err)
	c.Level = 120
	c.Experience = 5000
	c.Lifetime.Kills = 900
	c.ReincarnationCount = 2
	c.Perks = character.Perks{HP: 40, MP: 20, Attack: 4, Defense: 3, Speed: 0.4, ExperienceMultiple: 0.08}
	c.Dead = true

	c.ResetLife()

	assert.Equal(t, 1, c.Level)
	assert.Zero(t, c.Experience)
	assert.Zero(t, c.Lifetime.Kills)
	assert.False(t, c.Dead)
	assert.Equal(t, 2, c.ReincarnationCount)
	assert.Equal(t, 140, c.MaxHP)
	assert.Equal(t, 140, c.HP)
	assert.Equal(t, 70, c.MaxMP)
	assert.Equal(t, 14, c.Attack)
	assert.Equal(t, 13, c.Defense)
	assert.InDelta(t, 5.4, c.Speed, 1e-9)
}

func TestProperty_PerksAddIsCommutative(t *testing.T) {
	gen := rapid.Custom(func(t *rapid.T) character.Perks {
		return character.Perks{
			HP:      rapid.IntRange(0, 5000).Draw(t, "hp"),
			MP:      rapid.IntRange(0, 5000).Draw(t, "mp"),
			Attack:  rapid.IntRange(0, 500).Draw(t, "atk"),
			Defense: rapid.IntRange(0, 500).Draw(t, "def"),
		}
	})
	rapid.Check(t, func(t *rapid.T) {
		a, b := gen.Draw(t, "a"), gen.Draw(t, "b")
		if a.Add(b) != b.Add(a) {
			t.Fatalf("Add not commutative for %+v, %+v", a, b)
		}
		if !(character.Perks{}).Add(a).Add(character.Perks{}).IsZero() && a.IsZero() {
			t.Fatal("zero perks changed a zero sum")
		}
	})
}
