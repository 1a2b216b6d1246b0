package combat

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Skill ids of the built-in catalog.
const (
	SkillSlash         = 0
	SkillThrust        = 1
	SkillCleave        = 2
	SkillPowerShot     = 10
	SkillMultiShot     = 11
	SkillSnipe         = 12
	SkillFireball      = 20
	SkillIceLance      = 21
	SkillLightningBolt = 22
	SkillHeal          = 23
	SkillUltimateSlash = 30
	SkillUltimateArrow = 31
	SkillMeteor        = 32
)

// Skill is an active ability a player can use.
//
// A skill with HealAmount > 0 heals its caster and needs no target.
type Skill struct {
	ID              int        `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	Description     string     `yaml:"description,omitempty" json:"description,omitempty"`
	Multiplier      float64    `yaml:"damage_multiplier,omitempty" json:"damage_multiplier,omitempty"`
	MPCost          int        `yaml:"mp_cost" json:"mp_cost"`
	CooldownSeconds float64    `yaml:"cooldown" json:"cooldown"`
	Range           float64    `yaml:"range" json:"range"`
	AoERadius       float64    `yaml:"aoe_radius,omitempty" json:"aoe_radius,omitempty"`
	DamageType      DamageType `yaml:"damage_type,omitempty" json:"damage_type,omitempty"`
	RequiredLevel   int        `yaml:"required_level" json:"required_level"`
	HealAmount      int        `yaml:"heal_amount,omitempty" json:"heal_amount,omitempty"`
}

// Cooldown returns the skill cooldown as a duration.
func (s *Skill) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds * float64(time.Second))
}

// IsHeal reports whether s restores health instead of dealing damage.
func (s *Skill) IsHeal() bool { return s.HealAmount > 0 }

// Validate checks the skill's invariants.
//
// Postcondition: Returns nil iff the skill has a name, non-negative costs, and
// either a heal amount or a positive multiplier and range.
func (s *Skill) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("skill %d: name must not be empty", s.ID)
	case s.MPCost < 0:
		return fmt.Errorf("skill %d: mp_cost must be >= 0", s.ID)
	case s.CooldownSeconds < 0:
		return fmt.Errorf("skill %d: cooldown must be >= 0", s.ID)
	case s.RequiredLevel < 1:
		return fmt.Errorf("skill %d: required_level must be >= 1", s.ID)
	case s.IsHeal():
		return nil
	case s.Multiplier <= 0:
		return fmt.Errorf("skill %d: damage_multiplier must be > 0", s.ID)
	case s.Range <= 0:
		return fmt.Errorf("skill %d: range must be > 0", s.ID)
	}
	return nil
}

// Catalog indexes skills by id.
type Catalog struct {
	skills map[int]*Skill
}

// NewCatalog indexes skills.
//
// Postcondition: Returns an error on an invalid skill or a duplicate id.
func NewCatalog(skills []*Skill) (*Catalog, error) {
	c := &Catalog{skills: make(map[int]*Skill, len(skills))}
	for _, s := range skills {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.skills[s.ID]; dup {
			return nil, fmt.Errorf("duplicate skill id %d", s.ID)
		}
		c.skills[s.ID] = s
	}
	return c, nil
}

// LoadCatalog reads a YAML list of skills from path.
//
// Postcondition: Returns a Catalog or a read, parse, or validation error.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skills %s: %w", path, err)
	}
	var doc struct {
		Skills []*Skill `yaml:"skills"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing skills %s: %w", path, err)
	}
	return NewCatalog(doc.Skills)
}

// Get returns the skill with the given id.
func (c *Catalog) Get(id int) (*Skill, bool) {
	s, ok := c.skills[id]
	return s, ok
}

// All returns every skill ordered by id.
func (c *Catalog) All() []*Skill {
	out := make([]*Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Skill) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Melee, ranged, and magic base ranges.
const (
	MeleeRange  = 2.0
	RangedRange = 15.0
	MagicRange  = 20.0
)

// DefaultCatalog returns the built-in skill set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]*Skill{
		{ID: SkillSlash, Name: "Slash", Multiplier: 1.5, MPCost: 10, CooldownSeconds: 3, Range: MeleeRange, RequiredLevel: 1},
		{ID: SkillThrust, Name: "Thrust", Multiplier: 2.0, MPCost: 15, CooldownSeconds: 4, Range: MeleeRange * 1.5, RequiredLevel: 10},
		{ID: SkillCleave, Name: "Cleave", Multiplier: 1.8, MPCost: 25, CooldownSeconds: 6, Range: MeleeRange, AoERadius: 3, RequiredLevel: 20},
		{ID: SkillPowerShot, Name: "Power Shot", Multiplier: 2.2, MPCost: 12, CooldownSeconds: 3.5, Range: RangedRange, RequiredLevel: 1},
		{ID: SkillMultiShot, Name: "Multi Shot", Multiplier: 1.2, MPCost: 20, CooldownSeconds: 5, Range: RangedRange, RequiredLevel: 15},
		{ID: SkillSnipe, Name: "Snipe", Multiplier: 3.0, MPCost: 30, CooldownSeconds: 8, Range: RangedRange * 2, RequiredLevel: 30},
		{ID: SkillFireball, Name: "Fireball", Multiplier: 2.5, MPCost: 20, CooldownSeconds: 4, Range: MagicRange, DamageType: Magical, RequiredLevel: 1},
		{ID: SkillIceLance, Name: "Ice Lance", Multiplier: 2.0, MPCost: 18, CooldownSeconds: 4.5, Range: MagicRange, DamageType: Magical, RequiredLevel: 8},
		{ID: SkillLightningBolt, Name: "Lightning Bolt", Multiplier: 2.8, MPCost: 25, CooldownSeconds: 5, Range: MagicRange * 1.2, DamageType: Magical, RequiredLevel: 18},
		{ID: SkillHeal, Name: "Heal", HealAmount: 100, MPCost: 30, CooldownSeconds: 10, Range: MagicRange, RequiredLevel: 12},
		{ID: SkillUltimateSlash, Name: "Ultimate Slash", Multiplier: 5.0, MPCost: 50, CooldownSeconds: 30, Range: MeleeRange, DamageType: True, RequiredLevel: 50},
		{ID: SkillUltimateArrow, Name: "Ultimate Arrow", Multiplier: 4.5, MPCost: 50, CooldownSeconds: 30, Range: RangedRange * 1.5, DamageType: True, RequiredLevel: 50},
		{ID: SkillMeteor, Name: "Meteor", Multiplier: 6.0, MPCost: 60, CooldownSeconds: 40, Range: MagicRange, AoERadius: 10, DamageType: Magical, RequiredLevel: 60},
	})
	if err != nil {
		panic("combat: default catalog invalid: " + err.Error())
	}
	return c
}
