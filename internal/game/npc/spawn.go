package npc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Area is an axis-aligned rectangle on the ground plane.
type Area struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MinZ float64 `yaml:"min_z" json:"min_z"`
	MaxZ float64 `yaml:"max_z" json:"max_z"`
}

// Spawn is a directive to place Count NPCs of one template at random points in Area.
type Spawn struct {
	TemplateID int  `yaml:"template" json:"template"`
	Count      int  `yaml:"count" json:"count"`
	Area       Area `yaml:"area" json:"area"`
}

// Validate checks the directive against the loaded templates.
func (s Spawn) Validate(templates map[int]*Template) error {
	if _, ok := templates[s.TemplateID]; !ok {
		return fmt.Errorf("spawn: unknown npc template %d", s.TemplateID)
	}
	if s.Count < 1 {
		return fmt.Errorf("spawn %d: count must be >= 1", s.TemplateID)
	}
	if s.Area.MinX > s.Area.MaxX || s.Area.MinZ > s.Area.MaxZ {
		return fmt.Errorf("spawn %d: area min must not exceed max", s.TemplateID)
	}
	return nil
}

// LoadSpawns reads spawn directives from a YAML file and validates them.
func LoadSpawns(path string, templates map[int]*Template) ([]Spawn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spawns %q: %w", path, err)
	}
	var doc struct {
		Spawns []Spawn `yaml:"spawns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing spawns %q: %w", path, err)
	}
	for _, s := range doc.Spawns {
		if err := s.Validate(templates); err != nil {
			return nil, err
		}
	}
	return doc.Spawns, nil
}

// Populate spawns every directive into reg at random points within each area.
//
// Precondition: directives must have passed Validate against templates.
// Postcondition: Returns the spawned NPCs in directive order.
func Populate(reg *world.Registry, templates map[int]*Template, directives []Spawn, roller *dice.Roller) []*world.NPC {
	var out []*world.NPC
	for _, d := range directives {
		spec := templates[d.TemplateID].Spec()
		for i := 0; i < d.Count; i++ {
			pos := world.Vector3{
				X: roller.Between(d.Area.MinX, d.Area.MaxX),
				Z: roller.Between(d.Area.MinZ, d.Area.MaxZ),
			}
			out = append(out, reg.SpawnNPC(spec, pos))
		}
	}
	return out
}
