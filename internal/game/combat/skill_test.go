package combat_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/subjugate/internal/game/combat"
)

func TestDefaultCatalog(t *testing.T) {
	c := combat.DefaultCatalog()
	all := c.All()
	require.Len(t, all, 13)
	assert.Equal(t, combat.SkillSlash, all[0].ID)
	assert.Equal(t, combat.SkillMeteor, all[len(all)-1].ID)

	heal, ok := c.Get(combat.SkillHeal)
	require.True(t, ok)
	assert.True(t, heal.IsHeal())
	assert.Equal(t, 10*time.Second, heal.Cooldown())

	thrust, _ := c.Get(combat.SkillThrust)
	assert.Equal(t, 3.0, thrust.Range)
	snipe, _ := c.Get(combat.SkillSnipe)
	assert.Equal(t, 30.0, snipe.Range)
	ua, _ := c.Get(combat.SkillUltimateArrow)
	assert.Equal(t, combat.True, ua.DamageType)
	assert.Equal(t, 22.5, ua.Range)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  - id: 0
    name: Slash
    damage_multiplier: 1.5
    mp_cost: 10
    cooldown: 3
    range: 2
    required_level: 1
  - id: 32
    name: Meteor
    damage_multiplier: 6
    mp_cost: 60
    cooldown: 40
    range: 20
    aoe_radius: 10
    damage_type: magical
    required_level: 60
`), 0644))

	c, err := combat.LoadCatalog(path)
	require.NoError(t, err)
	m, ok := c.Get(32)
	require.True(t, ok)
	assert.Equal(t, combat.Magical, m.DamageType)
	assert.Equal(t, 40*time.Second, m.Cooldown())
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := combat.LoadCatalog("/nonexistent/skills.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  - {id: 1, name: A, damage_multiplier: 1, range: 2, required_level: 1}
  - {id: 1, name: B, damage_multiplier: 1, range: 2, required_level: 1}
`), 0644))
	_, err = combat.LoadCatalog(path)
	assert.ErrorContains(t, err, "duplicate skill id 1")
}

func TestSkillValidate(t *testing.T) {
	assert.Error(t, (&combat.Skill{ID: 1, RequiredLevel: 1}).Validate())
	assert.Error(t, (&combat.Skill{ID: 1, Name: "x", RequiredLevel: 1, Range: 2}).Validate())
	assert.NoError(t, (&combat.Skill{ID: 1, Name: "x", RequiredLevel: 1, HealAmount: 5}).Validate())
}
