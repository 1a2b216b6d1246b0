// Package character defines the persisted character model: the snapshot the
// world server loads on world entry and saves on disconnect or reincarnation.
package character

import "time"

// Starting values for a fresh character or a freshly reincarnated one.
const (
	StartingLevel   = 1
	BaseHP          = 100
	BaseMP          = 50
	BaseAttack      = 10
	BaseDefense     = 10
	BaseSpeed       = 5.0
	MaxLevel        = 150
	MaxCharacters   = 4
	DefaultGameMode = "pvp"
)

// Perks are permanent, stacking bonuses earned through reincarnation.
type Perks struct {
	HP                 int     `json:"hp"`
	MP                 int     `json:"mp"`
	Attack             int     `json:"attack"`
	Defense            int     `json:"defense"`
	Speed              float64 `json:"speed"`
	ExperienceMultiple float64 `json:"xp_multiplier"`
}

// Add returns the field-by-field sum of p and o.
func (p Perks) Add(o Perks) Perks {
	return Perks{
		HP:                 p.HP + o.HP,
		MP:                 p.MP + o.MP,
		Attack:             p.Attack + o.Attack,
		Defense:            p.Defense + o.Defense,
		Speed:              p.Speed + o.Speed,
		ExperienceMultiple: p.ExperienceMultiple + o.ExperienceMultiple,
	}
}

// IsZero reports whether p grants nothing.
func (p Perks) IsZero() bool { return p == Perks{} }

// Map flattens p for self-describing payloads.
func (p Perks) Map() map[string]float64 {
	return map[string]float64{
		"hp":            float64(p.HP),
		"mp":            float64(p.MP),
		"attack":        float64(p.Attack),
		"defense":       float64(p.Defense),
		"speed":         p.Speed,
		"xp_multiplier": p.ExperienceMultiple,
	}
}

// Lifetime holds the counters of one character life. They feed the
// reincarnation success score and are reset when a character reincarnates.
type Lifetime struct {
	Kills            int
	PlayerKills      int
	BossKills        int
	Deaths           int
	TerritorySeconds int64
	PlaytimeSeconds  int64
}

// Character is a player character's persistent state.
//
// AccountID and ID are set by the persistence layer; zero values indicate an unsaved character.
type Character struct {
	ID        int64
	AccountID int64

	Name     string
	GameMode string
	GuildID  int64

	Level      int
	Experience int64
	HP         int
	MaxHP      int
	MP         int
	MaxMP      int
	Attack     int
	Defense    int
	Speed      float64

	X, Y, Z  float64
	Rotation float64

	ReincarnationCount int
	Perks              Perks
	Lifetime           Lifetime

	Online bool
	Dead   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Buff is a stat bonus held only while a condition lasts, such as territory control.
type Buff struct {
	HP                 int     `json:"hp" yaml:"hp"`
	Attack             int     `json:"attack" yaml:"attack"`
	Defense            int     `json:"defense" yaml:"defense"`
	ExperienceMultiple float64 `json:"xp_multiplier" yaml:"xp_multiplier"`
}

// Add returns the field-by-field sum of b and o.
func (b Buff) Add(o Buff) Buff {
	return Buff{
		HP:                 b.HP + o.HP,
		Attack:             b.Attack + o.Attack,
		Defense:            b.Defense + o.Defense,
		ExperienceMultiple: b.ExperienceMultiple + o.ExperienceMultiple,
	}
}
