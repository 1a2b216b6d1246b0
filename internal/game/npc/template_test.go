package npc_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

const phoenixYAML = `
id: 6002
name: Phoenix Guardian
type: boss
level: 75
hp: 25000
attack: 350
defense: 150
xp_reward: 10000
loot_table: [1003, 3001, 3002]
aggro_range: 25
respawn_delay: 1h
behavior:
  leash_range: 80
  attack_cooldown: 3s
`

func TestLoadTemplateFromBytes(t *testing.T) {
	tmpl, err := npc.LoadTemplateFromBytes([]byte(phoenixYAML))
	require.NoError(t, err)
	assert.Equal(t, 6002, tmpl.ID)
	assert.Equal(t, world.KindBoss, tmpl.Type)

	spec := tmpl.Spec()
	assert.Equal(t, time.Hour, spec.RespawnDelay)
	assert.Equal(t, 25000, spec.MaxHP)
	assert.Equal(t, 80.0, spec.Behavior.LeashRange)
	assert.Equal(t, 3*time.Second, spec.Behavior.AttackCooldown)
	assert.Equal(t, 4.0, spec.Behavior.ChaseSpeed, "unset overrides keep defaults")
	assert.Equal(t, []int{1003, 3001, 3002}, spec.LootTable)
}

func TestTemplateSpec_DefaultRespawn(t *testing.T) {
	tmpl := &npc.Template{ID: 5001, Name: "Slime", Type: world.KindMonster, Level: 1, MaxHP: 50}
	require.NoError(t, tmpl.Validate())
	assert.Equal(t, npc.DefaultRespawnDelay, tmpl.Spec().RespawnDelay)
	assert.Equal(t, npc.DefaultBehavior(), tmpl.Spec().Behavior)
}

func TestTemplateValidate(t *testing.T) {
	base := npc.Template{ID: 1, Name: "X", Type: world.KindMonster, Level: 1, MaxHP: 1}
	cases := map[string]func(*npc.Template){
		"id":       func(t *npc.Template) { t.ID = 0 },
		"name":     func(t *npc.Template) { t.Name = "" },
		"type":     func(t *npc.Template) { t.Type = "critter" },
		"level":    func(t *npc.Template) { t.Level = 0 },
		"hp":       func(t *npc.Template) { t.MaxHP = 0 },
		"aggro":    func(t *npc.Template) { t.AggroRange = -1 },
		"respawn":  func(t *npc.Template) { t.RespawnDelay = "soon" },
		"cooldown": func(t *npc.Template) { t.Behavior = &npc.BehaviorOverrides{AttackCooldown: "x"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tmpl := base
			mutate(&tmpl)
			assert.Error(t, tmpl.Validate())
		})
	}
}

func TestLoadTemplates_DirAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phoenix.yaml"), []byte(phoenixYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	got, err := npc.LoadTemplates(dir)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, 6002)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "phoenix2.yaml"), []byte(phoenixYAML), 0644))
	_, err = npc.LoadTemplates(dir)
	assert.ErrorContains(t, err, "duplicate")

	_, err = npc.LoadTemplates(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadSpawnsAndPopulate(t *testing.T) {
	templates := map[int]*npc.Template{
		5001: {ID: 5001, Name: "Slime", Type: world.KindMonster, Level: 1, MaxHP: 50, AggroRange: 5},
	}
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
spawns:
  - template: 5001
    count: 10
    area: {min_x: 50, max_x: 150, min_z: 50, max_z: 150}
`), 0644))

	spawns, err := npc.LoadSpawns(path, templates)
	require.NoError(t, err)
	require.Len(t, spawns, 1)

	reg := world.NewRegistry(50)
	roller := dice.NewRoller(dice.NewSeededSource(1), zap.NewNop())
	npcs := npc.Populate(reg, templates, spawns, roller)
	require.Len(t, npcs, 10)
	for _, n := range npcs {
		pos := n.Position()
		assert.True(t, pos.X >= 50 && pos.X <= 150 && pos.Z >= 50 && pos.Z <= 150, "position %v", pos)
		assert.Equal(t, pos, n.SpawnPosition)
	}
	assert.Equal(t, 10, reg.Stats().NPCs)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("spawns:\n  - {template: 9, count: 1}\n"), 0644))
	_, err = npc.LoadSpawns(bad, templates)
	assert.ErrorContains(t, err, "unknown npc template 9")
}
