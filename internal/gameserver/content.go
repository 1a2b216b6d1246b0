package gameserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/game/combat"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Content is the static game data read at startup.
type Content struct {
	Templates   map[int]*npc.Template
	Spawns      []npc.Spawn
	Skills      *combat.Catalog
	Territories []territory.Definition
}

// LoadContent reads NPC templates, spawn directives, skills and territory
// definitions from the configured paths.
//
// An empty SkillsFile selects combat.DefaultCatalog. An empty SpawnsFile or
// TerritoriesDir loads nothing for that kind.
//
// Precondition: cfg.NPCDir must name a readable directory.
// Postcondition: Returns the content or the first load error.
func LoadContent(cfg config.ContentConfig) (Content, error) {
	var c Content
	var err error

	if c.Templates, err = npc.LoadTemplates(cfg.NPCDir); err != nil {
		return Content{}, fmt.Errorf("loading npc templates: %w", err)
	}
	if cfg.SpawnsFile != "" {
		if c.Spawns, err = npc.LoadSpawns(cfg.SpawnsFile, c.Templates); err != nil {
			return Content{}, fmt.Errorf("loading spawns: %w", err)
		}
	}
	if cfg.SkillsFile == "" {
		c.Skills = combat.DefaultCatalog()
	} else if c.Skills, err = combat.LoadCatalog(cfg.SkillsFile); err != nil {
		return Content{}, fmt.Errorf("loading skills: %w", err)
	}
	if cfg.TerritoriesDir != "" {
		if c.Territories, err = territory.LoadDefinitions(cfg.TerritoriesDir); err != nil {
			return Content{}, fmt.Errorf("loading territories: %w", err)
		}
	}
	return c, nil
}

// NewWorld assembles the simulation state from content, restores persisted
// territory control and places the initial NPC population.
//
// Precondition: stores.Territories and stores.Reincarnations must be non-nil.
// Postcondition: Returns a World ready for NewScheduler, or the restore error.
func NewWorld(ctx context.Context, cfg config.Config, content Content, stores Stores, roller *dice.Roller, now func() time.Time, logger *zap.Logger) (*World, error) {
	start := time.Now()
	reg := world.NewRegistry(cfg.World.ChunkSize)

	territories := territory.NewManager(content.Territories, cfg.Tick.CaptureDuration, cfg.Tick.MinCapturePlayers, logger)
	controls, err := stores.Territories.LoadControl(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring territory control: %w", err)
	}
	territories.Restore(controls)

	w := &World{
		Registry:    reg,
		Resolver:    combat.NewResolver(reg, content.Skills, roller, now, logger),
		AI:          npc.NewAI(roller, logger),
		Respawns:    npc.NewRespawnManager(),
		Templates:   content.Templates,
		Territories: territories,
		Progression: progression.NewEngine(reg, stores.Reincarnations, now, logger),
		Roller:      roller,
	}
	spawned := npc.Populate(reg, content.Templates, content.Spawns, roller)

	logger.Info("world built",
		zap.Int("npc_templates", len(content.Templates)),
		zap.Int("npcs", len(spawned)),
		zap.Int("skills", len(content.Skills.All())),
		zap.Int("territories", len(content.Territories)),
		zap.Int("restored_controls", len(controls)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return w, nil
}
