// Package progression implements experience, levelling, and reincarnation.
package progression

import (
	"fmt"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Reincarnation limits.
const (
	MinReincarnationLevel = 100
	MaxReincarnations     = 10
)

// Success score weights. They sum to 1.
const (
	LevelWeight     = 0.30
	KillsWeight     = 0.20
	TerritoryWeight = 0.25
	BossKillsWeight = 0.15
	PlaytimeWeight  = 0.10
)

// Success score normalizers: the value of each metric that scores 1.
const (
	KillsNorm            = 1000
	TerritorySecondsNorm = 360000
	BossKillsNorm        = 50
	PlaytimeSecondsNorm  = 720000
)

// Per-reincarnation perk bases, scaled by count × score.
const (
	PerkHP         = 50
	PerkMP         = 25
	PerkAttack     = 5
	PerkDefense    = 5
	PerkSpeed      = 0.5
	PerkExperience = 0.1
)

// LifeStats are the metrics of one life that feed the success score.
type LifeStats struct {
	Level            int
	Kills            int
	BossKills        int
	TerritorySeconds int64
	PlaytimeSeconds  int64
}

// StatsOf extracts the life metrics of p.
func StatsOf(p *world.Player) LifeStats {
	return LifeStats{
		Level:            p.Level,
		Kills:            p.Lifetime.Kills,
		BossKills:        p.Lifetime.BossKills,
		TerritorySeconds: p.Lifetime.TerritorySeconds,
		PlaytimeSeconds:  p.Lifetime.PlaytimeSeconds,
	}
}

// CanReincarnate reports whether p may reincarnate, and the reason when it may not.
func CanReincarnate(p *world.Player) (bool, string) {
	if p.Level < MinReincarnationLevel {
		return false, fmt.Sprintf("minimum level %d required", MinReincarnationLevel)
	}
	if p.ReincarnationCount >= MaxReincarnations {
		return false, fmt.Sprintf("maximum reincarnations (%d) reached", MaxReincarnations)
	}
	return true, ""
}

func ratio(v, norm float64) float64 {
	if v <= 0 {
		return 0
	}
	return min(v/norm, 1)
}

// SuccessScore weighs a life's metrics into a score in [0, 1].
func SuccessScore(s LifeStats) float64 {
	return ratio(float64(s.Level), character.MaxLevel)*LevelWeight +
		ratio(float64(s.Kills), KillsNorm)*KillsWeight +
		ratio(float64(s.TerritorySeconds), TerritorySecondsNorm)*TerritoryWeight +
		ratio(float64(s.BossKills), BossKillsNorm)*BossKillsWeight +
		ratio(float64(s.PlaytimeSeconds), PlaytimeSecondsNorm)*PlaytimeWeight
}

// PerksFor returns the perks granted by reaching reincarnation count with
// the given success score. Integer perks are truncated.
//
// Precondition: count >= 1; 0 <= score <= 1.
func PerksFor(count int, score float64) character.Perks {
	m := float64(count) * score
	return character.Perks{
		HP:                 int(PerkHP * m),
		MP:                 int(PerkMP * m),
		Attack:             int(PerkAttack * m),
		Defense:            int(PerkDefense * m),
		Speed:              PerkSpeed * m,
		ExperienceMultiple: PerkExperience * m,
	}
}
