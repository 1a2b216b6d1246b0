// Package npc provides NPC templates, spawn directives, AI, loot, and respawn scheduling.
package npc

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// DefaultRespawnDelay applies to templates that do not set respawn_delay.
const DefaultRespawnDelay = 30 * time.Second

// DefaultBehavior returns the AI tuning used when a template sets no overrides.
func DefaultBehavior() world.Behavior {
	return world.Behavior{
		WanderRadius:   20,
		PatrolSpeed:    2,
		ChaseSpeed:     4,
		LeashRange:     50,
		AttackRange:    2.5,
		AttackCooldown: 2 * time.Second,
	}
}

// BehaviorOverrides adjusts DefaultBehavior per template. Zero fields keep the default.
type BehaviorOverrides struct {
	WanderRadius   float64 `yaml:"wander_radius,omitempty" json:"wander_radius,omitempty"`
	PatrolSpeed    float64 `yaml:"patrol_speed,omitempty" json:"patrol_speed,omitempty"`
	ChaseSpeed     float64 `yaml:"chase_speed,omitempty" json:"chase_speed,omitempty"`
	LeashRange     float64 `yaml:"leash_range,omitempty" json:"leash_range,omitempty"`
	AttackRange    float64 `yaml:"attack_range,omitempty" json:"attack_range,omitempty"`
	AttackCooldown string  `yaml:"attack_cooldown,omitempty" json:"attack_cooldown,omitempty"`
}

// Template defines a reusable NPC archetype loaded from YAML.
type Template struct {
	ID         int           `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Type       world.NPCKind `yaml:"type" json:"type"`
	Level      int           `yaml:"level" json:"level"`
	MaxHP      int           `yaml:"hp" json:"hp"`
	Attack     int           `yaml:"attack" json:"attack"`
	Defense    int           `yaml:"defense" json:"defense"`
	XPReward   int64         `yaml:"xp_reward" json:"xp_reward"`
	LootTable  []int         `yaml:"loot_table,omitempty" json:"loot_table,omitempty"`
	AggroRange float64       `yaml:"aggro_range" json:"aggro_range"`
	// RespawnDelay is a duration string such as "30s" or "1h". Empty means DefaultRespawnDelay;
	// "0s" disables respawning.
	RespawnDelay string             `yaml:"respawn_delay,omitempty" json:"respawn_delay,omitempty"`
	Behavior     *BehaviorOverrides `yaml:"behavior,omitempty" json:"behavior,omitempty"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID > 0, Name is non-empty, Type is monster or boss,
// Level >= 1, MaxHP >= 1, AggroRange >= 0, and all durations parse.
func (t *Template) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("npc template: id must be positive, got %d", t.ID)
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %d: name must not be empty", t.ID)
	}
	if t.Type != world.KindMonster && t.Type != world.KindBoss {
		return fmt.Errorf("npc template %d: type must be monster or boss, got %q", t.ID, t.Type)
	}
	if t.Level < 1 {
		return fmt.Errorf("npc template %d: level must be >= 1", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("npc template %d: hp must be >= 1", t.ID)
	}
	if t.AggroRange < 0 {
		return fmt.Errorf("npc template %d: aggro_range must be >= 0", t.ID)
	}
	if t.RespawnDelay != "" {
		if _, err := time.ParseDuration(t.RespawnDelay); err != nil {
			return fmt.Errorf("npc template %d: respawn_delay %q is not a valid duration: %w", t.ID, t.RespawnDelay, err)
		}
	}
	if t.Behavior != nil && t.Behavior.AttackCooldown != "" {
		if _, err := time.ParseDuration(t.Behavior.AttackCooldown); err != nil {
			return fmt.Errorf("npc template %d: attack_cooldown %q is not a valid duration: %w", t.ID, t.Behavior.AttackCooldown, err)
		}
	}
	return nil
}

// Spec resolves the template into a spawnable NPC description.
//
// Precondition: t must have passed Validate.
func (t *Template) Spec() world.NPCSpec {
	delay := DefaultRespawnDelay
	if t.RespawnDelay != "" {
		delay, _ = time.ParseDuration(t.RespawnDelay)
	}
	b := DefaultBehavior()
	if o := t.Behavior; o != nil {
		b.WanderRadius = cmp.Or(o.WanderRadius, b.WanderRadius)
		b.PatrolSpeed = cmp.Or(o.PatrolSpeed, b.PatrolSpeed)
		b.ChaseSpeed = cmp.Or(o.ChaseSpeed, b.ChaseSpeed)
		b.LeashRange = cmp.Or(o.LeashRange, b.LeashRange)
		b.AttackRange = cmp.Or(o.AttackRange, b.AttackRange)
		if o.AttackCooldown != "" {
			b.AttackCooldown, _ = time.ParseDuration(o.AttackCooldown)
		}
	}
	return world.NPCSpec{
		TemplateID:   t.ID,
		Name:         t.Name,
		Kind:         t.Type,
		Level:        t.Level,
		MaxHP:        t.MaxHP,
		Attack:       t.Attack,
		Defense:      t.Defense,
		XPReward:     t.XPReward,
		LootTable:    slices.Clone(t.LootTable),
		AggroRange:   t.AggroRange,
		RespawnDelay: delay,
		Behavior:     b,
	}
}

// LoadTemplateFromBytes parses a single NPC template from raw YAML bytes.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates keyed by id.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse, validate,
// or duplicate-id failure.
func LoadTemplates(dir string) (map[int]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	templates := make(map[int]*Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if _, dup := templates[tmpl.ID]; dup {
			return nil, fmt.Errorf("loading %q: duplicate npc template id %d", path, tmpl.ID)
		}
		templates[tmpl.ID] = tmpl
	}
	return templates, nil
}
